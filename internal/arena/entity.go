package arena

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Jamesmykil253/MoBa-sub001/internal/config"
)

// EntityKind distinguishes player avatars from server-driven targets.
type EntityKind string

const (
	KindPlayer EntityKind = "player"
	KindDummy  EntityKind = "dummy"
)

// Stats is the flat combat stat block every entity carries. Damage
// strategies read the attacker's power and the target's defenses.
type Stats struct {
	MaxHealth   float64
	AttackPower float64
	SpellPower  float64
	Armor       float64
	Ward        float64
}

// StatsFromConfig converts a configured stat block.
func StatsFromConfig(c config.BaseStatsConfig) Stats {
	return Stats{
		MaxHealth:   c.MaxHealth,
		AttackPower: c.AttackPower,
		SpellPower:  c.SpellPower,
		Armor:       c.Armor,
		Ward:        c.Ward,
	}
}

// KinematicState is the solver-facing motion state of an entity.
type KinematicState struct {
	Pos      mgl64.Vec3
	Vel      mgl64.Vec3
	Grounded bool
}

// Entity is one simulated actor. All fields are owned by the simulation
// goroutine; nothing here is safe to touch from outside a Step.
type Entity struct {
	ID   string
	Kind EntityKind

	// ConnID links a player avatar to its connection; empty for dummies.
	ConnID string

	Kinematics KinematicState

	Health float64
	Stats  Stats

	State      BehaviorState
	StateSince uint64
	// StateUntil is the tick at which a timed state (attacking, casting,
	// stunned, dead) ends. Zero means no timer is armed.
	StateUntil uint64
	// RespawnAt is the tick the entity returns to play; meaningful only
	// while dead.
	RespawnAt uint64

	// PendingAbility holds the ability committed at cast start; it resolves
	// when the cast timer completes.
	PendingAbility string
	PendingAim     mgl64.Vec3
	PendingObserve uint64

	// Cooldowns maps ability ID to the tick it becomes castable again.
	Cooldowns map[string]uint64

	// Intent fields mirror the most recent consumed command. A tick with no
	// command leaves the entity coasting with zeroed move intent.
	IntentMove mgl64.Vec2
	IntentJump bool
	LastAim    mgl64.Vec3

	// TeleportGraceUntil exempts displacement checks after a server-side
	// teleport such as a respawn.
	TeleportGraceUntil uint64

	// LastInputSeq is the newest consumed command sequence, echoed in
	// corrections so clients can rewind their prediction buffers.
	LastInputSeq uint64
}

// Alive reports whether the entity participates in movement and combat.
func (e *Entity) Alive() bool {
	return e != nil && e.State != StateDead
}

// ApplyHealthDelta adjusts health, clamping to [0, MaxHealth]. It returns
// true when the stored value actually changed.
func (e *Entity) ApplyHealthDelta(delta float64) bool {
	if e == nil || delta == 0 {
		return false
	}
	next := e.Health + delta
	if next < 0 {
		next = 0
	}
	if e.Stats.MaxHealth > 0 && next > e.Stats.MaxHealth {
		next = e.Stats.MaxHealth
	}
	if math.Abs(next-e.Health) < 1e-9 {
		return false
	}
	e.Health = next
	return true
}

// ClearIntent zeroes the per-tick input mirror. Aim is kept so melee swings
// keep their last facing when a command goes missing.
func (e *Entity) ClearIntent() {
	e.IntentMove = mgl64.Vec2{}
	e.IntentJump = false
}

// ReadyCooldown performs the check-and-set cooldown gate for one ability.
// When the ability is ready it records tick+cooldown as the next ready tick
// and returns true; a losing same-tick recast sees the fresh stamp and
// fails. On failure it returns the tick the ability becomes ready.
func (e *Entity) ReadyCooldown(ability string, cooldown, tick uint64) (uint64, bool) {
	if e.Cooldowns == nil {
		e.Cooldowns = make(map[string]uint64)
	}
	if readyAt, ok := e.Cooldowns[ability]; ok && tick < readyAt {
		return readyAt, false
	}
	e.Cooldowns[ability] = tick + cooldown
	return 0, true
}
