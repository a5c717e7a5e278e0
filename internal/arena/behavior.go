package arena

import (
	"context"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Jamesmykil253/MoBa-sub001/logging"
	"github.com/Jamesmykil253/MoBa-sub001/logging/behavior"
)

// BehaviorState names one node of the entity behavior graph.
type BehaviorState string

const (
	StateIdle      BehaviorState = "idle"
	StateMoving    BehaviorState = "moving"
	StateJumping   BehaviorState = "jumping"
	StateFalling   BehaviorState = "falling"
	StateAttacking BehaviorState = "attacking"
	StateCasting   BehaviorState = "casting"
	StateStunned   BehaviorState = "stunned"
	StateDead      BehaviorState = "dead"
)

// StateSpec declares one state's gates, dwell, successors, and hooks. The
// machine consults only this data; adding a state means adding a table row,
// not new arbitration code.
type StateSpec struct {
	// AllowMove feeds the solver's horizontal gate, AllowAct the combat
	// resolver's cast gate.
	AllowMove bool
	AllowAct  bool

	// MinDwellTicks blocks voluntary exits until the state has been held
	// this long, so single-tick flicker cannot occur.
	MinDwellTicks uint64

	// Next lists the declared successors. Requests outside this set are
	// rejected and logged, never partially applied.
	Next []BehaviorState

	OnEnter func(e *Entity, tick uint64)
	OnExit  func(e *Entity, tick uint64)
}

// StateTable maps every state to its spec.
type StateTable map[BehaviorState]StateSpec

// DefaultStateTable builds the arena behavior graph.
func DefaultStateTable() StateTable {
	return StateTable{
		StateIdle: {
			AllowMove: true,
			AllowAct:  true,
			Next:      []BehaviorState{StateMoving, StateJumping, StateFalling, StateAttacking, StateCasting, StateStunned, StateDead},
		},
		StateMoving: {
			AllowMove: true,
			AllowAct:  true,
			Next:      []BehaviorState{StateIdle, StateJumping, StateFalling, StateAttacking, StateCasting, StateStunned, StateDead},
		},
		StateJumping: {
			AllowMove:     true,
			MinDwellTicks: 2,
			Next:          []BehaviorState{StateFalling, StateIdle, StateMoving, StateStunned, StateDead},
		},
		StateFalling: {
			AllowMove: true,
			Next:      []BehaviorState{StateIdle, StateMoving, StateStunned, StateDead},
		},
		StateAttacking: {
			Next:   []BehaviorState{StateIdle, StateMoving, StateStunned, StateDead},
			OnExit: clearPending,
		},
		StateCasting: {
			Next:   []BehaviorState{StateIdle, StateMoving, StateStunned, StateDead},
			OnExit: clearPending,
		},
		StateStunned: {
			OnEnter: func(e *Entity, _ uint64) {
				e.PendingAbility = ""
				e.ClearIntent()
			},
			Next: []BehaviorState{StateIdle, StateFalling, StateDead},
		},
		StateDead: {
			OnEnter: func(e *Entity, _ uint64) {
				e.PendingAbility = ""
				e.ClearIntent()
				e.Kinematics.Vel = mgl64.Vec3{}
			},
			Next: []BehaviorState{StateIdle},
		},
	}
}

func clearPending(e *Entity, _ uint64) {
	e.PendingAbility = ""
}

// StateMachine applies the behavior table to entities. It never mutates an
// entity outside an accepted transition's hooks.
type StateMachine struct {
	table StateTable
	pub   logging.Publisher
}

// NewStateMachine builds a machine over the given table.
func NewStateMachine(table StateTable, pub logging.Publisher) *StateMachine {
	if table == nil {
		table = DefaultStateTable()
	}
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &StateMachine{table: table, pub: pub}
}

// Spec returns the table row for a state.
func (m *StateMachine) Spec(state BehaviorState) StateSpec {
	return m.table[state]
}

// AllowMove reports whether the entity's current state permits horizontal
// control.
func (m *StateMachine) AllowMove(e *Entity) bool {
	return m.table[e.State].AllowMove
}

// AllowAct reports whether the entity's current state permits starting an
// attack or cast.
func (m *StateMachine) AllowAct(e *Entity) bool {
	return m.table[e.State].AllowAct
}

// CanRequest reports whether a voluntary transition would be accepted,
// without applying it or logging a rejection.
func (m *StateMachine) CanRequest(e *Entity, tick uint64, to BehaviorState) bool {
	spec := m.table[e.State]
	if tick-e.StateSince < spec.MinDwellTicks {
		return false
	}
	for _, next := range spec.Next {
		if next == to {
			return true
		}
	}
	return false
}

// Request applies a voluntary transition. Undeclared or dwell-blocked
// requests leave the entity exactly where it was and emit a debug rejection
// event.
func (m *StateMachine) Request(e *Entity, tick uint64, to BehaviorState, cause string) bool {
	if e.State == to {
		return false
	}
	spec := m.table[e.State]
	if tick-e.StateSince < spec.MinDwellTicks {
		m.reject(e, tick, to, "min_dwell")
		return false
	}
	declared := false
	for _, next := range spec.Next {
		if next == to {
			declared = true
			break
		}
	}
	if !declared {
		m.reject(e, tick, to, "undeclared")
		return false
	}
	m.apply(e, tick, to, cause, false)
	return true
}

// Force applies a transition that outranks declarations and dwell: death on
// lethal damage, stun application, and respawn. Hooks still run.
func (m *StateMachine) Force(e *Entity, tick uint64, to BehaviorState, cause string) {
	if e.State == to {
		return
	}
	m.apply(e, tick, to, cause, true)
}

func (m *StateMachine) apply(e *Entity, tick uint64, to BehaviorState, cause string, forced bool) {
	from := e.State
	dwell := tick - e.StateSince
	if exit := m.table[from].OnExit; exit != nil {
		exit(e, tick)
	}
	e.State = to
	e.StateSince = tick
	e.StateUntil = 0
	if enter := m.table[to].OnEnter; enter != nil {
		enter(e, tick)
	}
	behavior.Transition(context.Background(), m.pub, tick, logging.EntityRef{ID: e.ID, Kind: entityRefKind(e)}, behavior.TransitionPayload{
		From:   string(from),
		To:     string(to),
		Cause:  cause,
		Dwell:  dwell,
		Forced: forced,
	})
}

func (m *StateMachine) reject(e *Entity, tick uint64, to BehaviorState, reason string) {
	behavior.TransitionRejected(context.Background(), m.pub, tick, logging.EntityRef{ID: e.ID, Kind: entityRefKind(e)}, behavior.TransitionRejectedPayload{
		From:   string(e.State),
		To:     string(to),
		Reason: reason,
	})
}

func entityRefKind(e *Entity) logging.EntityKind {
	switch e.Kind {
	case KindPlayer:
		return logging.EntityKindPlayer
	default:
		return logging.EntityKindNPC
	}
}
