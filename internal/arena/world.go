package arena

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/Jamesmykil253/MoBa-sub001/internal/config"
	"github.com/Jamesmykil253/MoBa-sub001/internal/sim"
	"github.com/Jamesmykil253/MoBa-sub001/internal/telemetry"
	"github.com/Jamesmykil253/MoBa-sub001/logging"
	combatlog "github.com/Jamesmykil253/MoBa-sub001/logging/combat"
	"github.com/Jamesmykil253/MoBa-sub001/logging/lifecycle"
	"github.com/Jamesmykil253/MoBa-sub001/logging/simulation"
)

// defaultMeleeAbility is the ability a bare attack press maps to when the
// command names no ability.
const defaultMeleeAbility = "melee_strike"

// controlTimeout bounds how long an outside caller waits for the simulation
// goroutine to service a join, leave, or reset.
const controlTimeout = 2 * time.Second

var (
	// ErrMatchFull is returned when a join would exceed the player cap.
	ErrMatchFull = errors.New("arena: match full")
	// ErrAlreadyJoined is returned when a connection already owns an entity.
	ErrAlreadyJoined = errors.New("arena: connection already joined")
	// ErrControlUnavailable is returned when the simulation goroutine does
	// not service the control queue in time.
	ErrControlUnavailable = errors.New("arena: simulation control unavailable")
)

// WorldDeps carries the world's collaborators. Zero values are usable: nil
// hooks are dropped and nil infrastructure falls back to inert defaults.
type WorldDeps struct {
	// Ground supplies floor heights to the movement solver.
	Ground GroundCheck
	// Throttler suppresses input from penalized connections; the input
	// buffer implements it.
	Throttler Throttler
	// Corrections receives reconciliation pushes addressed to one client.
	Corrections CorrectionSender
	// Faults receives classified errors the hub routes outward.
	Faults FaultSink

	Publisher logging.Publisher
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
}

func (d WorldDeps) normalized() WorldDeps {
	if d.Ground == nil {
		d.Ground = FlatGround{}
	}
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	if d.Logger == nil {
		d.Logger = telemetry.WrapLogger(log.Default())
	}
	if d.Metrics == nil {
		d.Metrics = telemetry.NewCounters()
	}
	return d
}

type controlKind int

const (
	ctrlJoin controlKind = iota
	ctrlLeave
	ctrlReset
)

type controlReply struct {
	entityID string
	snapshot Snapshot
	err      error
}

type controlRequest struct {
	kind   controlKind
	connID string
	reason string
	cfg    *config.Config
	seed   int64
	reply  chan controlReply
}

// World owns every entity and runs the authoritative per-tick pipeline:
// control hand-off, respawns, input intake and validation, behavior
// arbitration, movement, combat, reconciliation, and snapshot capture. All
// mutation happens on the simulation goroutine; outside callers reach it
// only through the control queue and the published snapshot.
type World struct {
	cfg config.Config

	machine    *StateMachine
	solver     Solver
	ground     GroundCheck
	history    *PositionHistory
	pool       *ProjectilePool
	validator  *Validator
	resolver   *Resolver
	reconciler *Reconciler
	streams    *Streams

	throttler Throttler
	sender    CorrectionSender
	faults    FaultSink
	pub       logging.Publisher
	logger    telemetry.Logger
	metrics   telemetry.Metrics

	entities map[string]*Entity
	byConn   map[string]*Entity
	order    []string
	scratch  []*Entity
	players  int
	dummySeq int

	castQueue  []pendingCast
	claimQueue []pendingClaim

	control chan controlRequest
	latest  atomic.Pointer[Snapshot]
}

type pendingCast struct {
	entity   *Entity
	ability  string
	aim      mgl64.Vec3
	observed uint64
}

type pendingClaim struct {
	entity  *Entity
	cmd     sim.InputCommand
	verdict Verdict
}

// NewWorld builds a world from validated configuration, seeds its random
// streams, and places the configured practice dummies.
func NewWorld(cfg config.Config, deps WorldDeps) *World {
	deps = deps.normalized()
	if len(cfg.Match.SpawnPoints) == 0 {
		cfg.Match.SpawnPoints = []config.SpawnPoint{{}}
	}

	w := &World{
		cfg:       cfg,
		ground:    deps.Ground,
		throttler: deps.Throttler,
		sender:    deps.Corrections,
		faults:    deps.Faults,
		pub:       deps.Publisher,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		entities:  make(map[string]*Entity),
		byConn:    make(map[string]*Entity),
		control:   make(chan controlRequest, 64),
	}
	w.machine = NewStateMachine(DefaultStateTable(), w.pub)
	w.rebuild(cfg, cfg.Simulation.Seed)

	for i := 0; i < cfg.Match.PracticeDummies; i++ {
		w.spawnDummy(0)
	}
	snap := BuildSnapshot(0, w.roster(), w.pool)
	w.latest.Store(&snap)
	return w
}

// rebuild constructs the per-match components from a configuration and seed.
// It runs at construction and again on every match reset.
func (w *World) rebuild(cfg config.Config, seed int64) {
	w.cfg = cfg
	w.streams = NewStreams(uint64(seed))
	w.solver = NewSolver(cfg.Movement, w.ground)
	w.history = NewPositionHistory(cfg.Simulation.RetentionTicks)
	w.pool = NewProjectilePool(cfg.Combat.ProjectileCapacity, w.metrics)
	w.validator = NewValidator(cfg.AntiCheat, cfg.Movement, cfg.Simulation.TickDelta(), w.throttler, w.pub, w.metrics)
	w.resolver = NewResolver(cfg.Combat, cfg.Movement, w.pool, w.history, w.streams.Combat, w.pub, w.metrics)
	w.reconciler = NewReconciler(cfg.Reconcile, w.history, w.sender, w.metrics)
}

// Step advances the world one fixed tick. It implements sim.EngineCore and
// must only be called from the simulation goroutine.
func (w *World) Step(ctx sim.TickContext, inputs map[string]sim.InputCommand) {
	tick := ctx.Tick
	dt := ctx.Delta

	w.drainControl(tick)
	live := w.roster()

	w.stepRespawns(tick, live)
	w.intakeInputs(tick, live, inputs)
	w.stepPreMove(tick, live)
	w.stepMovement(tick, dt, live)
	w.stepPostMove(tick, live)
	w.stepCombat(tick, dt, live)
	w.stepReconcile(tick)

	positions := make(map[string]mgl64.Vec3, len(live))
	for _, e := range live {
		positions[e.ID] = e.Kinematics.Pos
	}
	w.history.Record(tick, positions)

	snap := BuildSnapshot(tick, live, w.pool)
	w.latest.Store(&snap)
}

// stepRespawns returns dead entities whose timer expired to play. The timer
// is the only exit from the dead state.
func (w *World) stepRespawns(tick uint64, live []*Entity) {
	for _, e := range live {
		if e.State != StateDead || e.RespawnAt == 0 || tick < e.RespawnAt {
			continue
		}
		w.respawn(tick, e)
	}
}

// intakeInputs applies this tick's drained commands: position claims go
// through the validator, surviving intent lands on the entity, and cast
// requests queue for the combat stage. An entity whose connection produced
// nothing this tick coasts with cleared move intent.
func (w *World) intakeInputs(tick uint64, live []*Entity, inputs map[string]sim.InputCommand) {
	w.castQueue = w.castQueue[:0]
	w.claimQueue = w.claimQueue[:0]

	for _, e := range live {
		if e.ConnID == "" {
			continue
		}
		cmd, ok := inputs[e.ConnID]
		if !ok {
			e.ClearIntent()
			continue
		}
		e.LastInputSeq = cmd.Seq

		if cmd.HasClaim {
			review := w.validator.ReviewClaim(tick, e, cmd)
			if review.Verdict == VerdictFlag {
				w.fault(NewFault(FaultFatalProtocol, tick, e.ConnID, review.Check))
				e.ClearIntent()
				continue
			}
			w.claimQueue = append(w.claimQueue, pendingClaim{entity: e, cmd: cmd, verdict: review.Verdict})
		}

		if !e.Alive() {
			continue
		}
		e.IntentMove = cmd.Move
		e.IntentJump = cmd.Jump
		if cmd.Aim.Len() > 0 {
			e.LastAim = normalizeAim(cmd.Aim, e.LastAim)
		}

		ability := cmd.AbilityID
		if ability == "" && cmd.Attack {
			ability = defaultMeleeAbility
		}
		if ability != "" {
			w.castQueue = append(w.castQueue, pendingCast{entity: e, ability: ability, aim: cmd.Aim, observed: cmd.ObservedTick})
		}
	}
}

// stepPreMove expires stun timers and arbitrates the voluntary transitions
// that shape this tick's movement: jump starts and the idle/moving split.
func (w *World) stepPreMove(tick uint64, live []*Entity) {
	for _, e := range live {
		if !e.Alive() {
			continue
		}

		if e.State == StateStunned && e.StateUntil != 0 && tick >= e.StateUntil {
			w.machine.Request(e, tick, StateIdle, "stun_expired")
		}

		if e.IntentJump && e.Kinematics.Grounded && e.State != StateJumping &&
			w.machine.AllowMove(e) && w.machine.CanRequest(e, tick, StateJumping) {
			w.machine.Request(e, tick, StateJumping, "jump_input")
		}

		moving := e.IntentMove.Len() > 0
		switch e.State {
		case StateIdle:
			if moving {
				w.machine.Request(e, tick, StateMoving, "move_input")
			}
		case StateMoving:
			if !moving {
				w.machine.Request(e, tick, StateIdle, "move_stop")
			}
		}
	}
}

// stepMovement runs the pure solver for every live entity, then separates
// overlapping actors. The jump impulse fires only on the tick the jumping
// state was entered, so a held jump key cannot double-fire.
func (w *World) stepMovement(tick uint64, dt float64, live []*Entity) {
	for _, e := range live {
		if e.State == StateDead {
			continue
		}
		spec := w.machine.Spec(e.State)
		e.Kinematics = w.solver.Step(e.Kinematics, MoveDirective{
			Move:      e.IntentMove,
			Jump:      e.IntentJump,
			AllowMove: spec.AllowMove,
			AllowJump: e.State == StateJumping && e.StateSince == tick,
		}, dt)
	}
	SeparateActors(live, w.cfg.Movement.EntityRadius, w.cfg.Movement.ArenaHalfExtent)
}

// stepPostMove settles airborne states against the solver's outcome: apex
// flips jumping to falling, touchdown lands, and walking off an edge starts
// a fall.
func (w *World) stepPostMove(tick uint64, live []*Entity) {
	for _, e := range live {
		if !e.Alive() {
			continue
		}
		k := e.Kinematics
		switch {
		case e.State == StateJumping && !k.Grounded && k.Vel[1] <= 0:
			w.machine.Request(e, tick, StateFalling, "apex")
		case (e.State == StateJumping || e.State == StateFalling) && k.Grounded:
			to := StateIdle
			if e.IntentMove.Len() > 0 {
				to = StateMoving
			}
			w.machine.Request(e, tick, to, "landed")
		case (e.State == StateIdle || e.State == StateMoving) && !k.Grounded:
			w.machine.Request(e, tick, StateFalling, "airborne")
		}
	}
}

// stepCombat resolves casts whose wind-up completed this tick, commits new
// cast requests, and advances projectiles. Completions run first so a
// just-freed caster can accept a queued recast on the same tick.
func (w *World) stepCombat(tick uint64, dt float64, live []*Entity) {
	for _, e := range live {
		if e.State != StateAttacking && e.State != StateCasting {
			continue
		}
		if e.StateUntil == 0 || tick < e.StateUntil {
			continue
		}
		hits, reject := w.resolver.ResolveCast(tick, e, live)
		if reject != "" {
			w.abilityReject(tick, e, e.PendingAbility, reject, 0)
		}
		for _, hit := range hits {
			w.applyHit(tick, hit)
		}
		to := StateIdle
		if e.IntentMove.Len() > 0 {
			to = StateMoving
		}
		w.machine.Request(e, tick, to, "cast_done")
	}

	for _, pc := range w.castQueue {
		e := pc.entity
		if !e.Alive() {
			w.abilityReject(tick, e, pc.ability, CastRejectDead, 0)
			continue
		}
		if !w.machine.AllowAct(e) {
			w.abilityReject(tick, e, pc.ability, CastRejectStateBlocked, 0)
			continue
		}
		out := w.resolver.BeginCast(tick, e, pc.ability, pc.aim, pc.observed)
		if !out.Accepted {
			w.abilityReject(tick, e, pc.ability, out.Reason, out.RetryAt)
			continue
		}
		if w.machine.Request(e, tick, out.State, "cast") {
			e.StateUntil = tick + out.Duration
		}
	}

	for _, hit := range w.resolver.StepProjectiles(tick, dt, live) {
		w.applyHit(tick, hit)
	}
}

// stepReconcile checks the tick's surviving position claims: accepted claims
// compare against history under the configured epsilon, while claims the
// validator already corrected push unconditionally.
func (w *World) stepReconcile(tick uint64) {
	for _, pc := range w.claimQueue {
		if pc.verdict == VerdictCorrect {
			w.reconciler.ForceCorrect(tick, pc.entity, pc.cmd.Seq)
			continue
		}
		w.reconciler.RecordAck(tick, pc.entity, pc.cmd)
	}
}

// applyHit lands one resolved hit: damage, then death or stun. Hits against
// entities that died earlier this tick are dropped.
func (w *World) applyHit(tick uint64, hit Hit) {
	target := hit.Target
	if !target.Alive() {
		return
	}
	target.ApplyHealthDelta(-hit.Amount)
	combatlog.Damage(context.Background(), w.pub, tick, w.refByID(hit.AttackerID), w.ref(target), combatlog.DamagePayload{
		Ability:      hit.Ability,
		Raw:          hit.Raw,
		Mitigated:    hit.Amount,
		Critical:     hit.Critical,
		TargetHealth: target.Health,
	}, nil)

	if target.Health <= 0 {
		w.kill(tick, hit, target)
		return
	}
	if hit.StunTicks > 0 {
		w.machine.Force(target, tick, StateStunned, "stunned")
		target.StateUntil = tick + hit.StunTicks
	}
}

// kill forces the dead state and arms the respawn timer. Death outranks
// every other state, including an in-progress cast.
func (w *World) kill(tick uint64, hit Hit, target *Entity) {
	w.machine.Force(target, tick, StateDead, "killed")
	target.RespawnAt = tick + w.cfg.Match.RespawnDelayTicks
	lifecycle.Death(context.Background(), w.pub, tick, w.refByID(hit.AttackerID), w.ref(target), lifecycle.DeathPayload{
		KilledBy: hit.AttackerID,
		Ability:  hit.Ability,
	})
}

// respawn returns a dead entity to play at a configured spawn point with
// full health and a teleport grace window so the warp is not penalized.
func (w *World) respawn(tick uint64, e *Entity) {
	idx, pos := w.pickSpawn()
	e.Kinematics = KinematicState{Pos: pos, Grounded: true}
	e.Health = e.Stats.MaxHealth
	e.RespawnAt = 0
	e.TeleportGraceUntil = tick + uint64(w.cfg.AntiCheat.TeleportGraceTicks)
	w.machine.Request(e, tick, StateIdle, "respawn")
	lifecycle.Respawn(context.Background(), w.pub, tick, w.ref(e), lifecycle.RespawnPayload{
		SpawnPoint: idx,
		Position:   []float64{pos[0], pos[1], pos[2]},
	})
}

// Join asks the simulation goroutine to admit a connection. It returns the
// new entity's ID and a keyframe snapshot that includes it.
func (w *World) Join(connID string) (string, Snapshot, error) {
	req := controlRequest{kind: ctrlJoin, connID: connID, reply: make(chan controlReply, 1)}
	if err := w.submit(req); err != nil {
		return "", Snapshot{}, err
	}
	select {
	case rep := <-req.reply:
		return rep.entityID, rep.snapshot, rep.err
	case <-time.After(controlTimeout):
		return "", Snapshot{}, ErrControlUnavailable
	}
}

// Leave asks the simulation goroutine to remove a connection's entity.
func (w *World) Leave(connID, reason string) {
	_ = w.submit(controlRequest{kind: ctrlLeave, connID: connID, reason: reason})
}

// RequestReset schedules a match reset. A nil cfg keeps the current
// configuration and reseeds; a non-nil cfg swaps configuration at the match
// boundary, which is the only point configuration may change.
func (w *World) RequestReset(cfg *config.Config, seed int64) error {
	return w.submit(controlRequest{kind: ctrlReset, cfg: cfg, seed: seed})
}

func (w *World) submit(req controlRequest) error {
	select {
	case w.control <- req:
		return nil
	case <-time.After(controlTimeout):
		return ErrControlUnavailable
	}
}

// LatestSnapshot returns the most recent published snapshot. Safe from any
// goroutine.
func (w *World) LatestSnapshot() *Snapshot {
	return w.latest.Load()
}

func (w *World) drainControl(tick uint64) {
	for {
		select {
		case req := <-w.control:
			w.handleControl(tick, req)
		default:
			return
		}
	}
}

func (w *World) handleControl(tick uint64, req controlRequest) {
	switch req.kind {
	case ctrlJoin:
		e, err := w.admit(tick, req.connID)
		rep := controlReply{err: err}
		if err == nil {
			rep.entityID = e.ID
			rep.snapshot = BuildSnapshot(tick, w.roster(), w.pool)
		}
		if req.reply != nil {
			req.reply <- rep
		}
	case ctrlLeave:
		w.evict(tick, req.connID, req.reason)
	case ctrlReset:
		w.resetMatch(tick, req.cfg, req.seed)
	}
}

// admit creates a player entity for a connection. Entity IDs are name-based
// UUIDs over the connection ID, so a replay that presents the same join
// sequence reproduces the same world byte for byte. Runs on the simulation
// goroutine.
func (w *World) admit(tick uint64, connID string) (*Entity, error) {
	if _, ok := w.byConn[connID]; ok {
		return nil, ErrAlreadyJoined
	}
	if w.players >= w.cfg.Match.MaxPlayers {
		return nil, ErrMatchFull
	}
	_, pos := w.pickSpawn()
	e := &Entity{
		ID:                 uuid.NewSHA1(uuid.NameSpaceOID, []byte(connID)).String(),
		Kind:               KindPlayer,
		ConnID:             connID,
		Kinematics:         KinematicState{Pos: pos, Grounded: true},
		Stats:              StatsFromConfig(w.cfg.Combat.PlayerStats),
		State:              StateIdle,
		StateSince:         tick,
		Cooldowns:          make(map[string]uint64),
		LastAim:            mgl64.Vec3{0, 0, 1},
		TeleportGraceUntil: tick + uint64(w.cfg.AntiCheat.TeleportGraceTicks),
	}
	e.Health = e.Stats.MaxHealth
	w.insert(e)
	lifecycle.Joined(context.Background(), w.pub, tick, w.ref(e))
	return e, nil
}

// evict removes a connection's entity and drops its per-connection state.
// In-flight projectiles it owns keep flying with neutral attacker stats.
func (w *World) evict(tick uint64, connID, reason string) {
	e := w.byConn[connID]
	if e == nil {
		return
	}
	w.remove(e)
	w.validator.Forget(connID)
	w.reconciler.Forget(connID)
	lifecycle.Disconnected(context.Background(), w.pub, tick, w.ref(e), lifecycle.DisconnectedPayload{Reason: reason})
}

// resetMatch swaps configuration and reseeds at a match boundary. Connected
// players stay admitted but respawn fresh; dummies and all transient combat
// state are rebuilt. The tick counter keeps running across the boundary.
func (w *World) resetMatch(tick uint64, cfg *config.Config, seed int64) {
	next := w.cfg
	if cfg != nil {
		next = *cfg
	}
	if len(next.Match.SpawnPoints) == 0 {
		next.Match.SpawnPoints = []config.SpawnPoint{{}}
	}
	w.rebuild(next, seed)

	for _, id := range append([]string(nil), w.order...) {
		e := w.entities[id]
		if e.Kind == KindDummy {
			w.remove(e)
		}
	}
	w.dummySeq = 0
	for i := 0; i < w.cfg.Match.PracticeDummies; i++ {
		w.spawnDummy(tick)
	}

	for _, id := range w.order {
		e := w.entities[id]
		if e.Kind != KindPlayer {
			continue
		}
		e.Stats = StatsFromConfig(w.cfg.Combat.PlayerStats)
		e.Cooldowns = make(map[string]uint64)
		e.PendingAbility = ""
		e.RespawnAt = 0
		e.ClearIntent()
		_, pos := w.pickSpawn()
		e.Kinematics = KinematicState{Pos: pos, Grounded: true}
		e.Health = e.Stats.MaxHealth
		e.TeleportGraceUntil = tick + uint64(w.cfg.AntiCheat.TeleportGraceTicks)
		w.machine.Force(e, tick, StateIdle, "match_reset")
	}

	simulation.MatchReset(context.Background(), w.pub, tick, simulation.MatchResetPayload{
		Seed:     seed,
		Entities: len(w.entities),
	})
}

func (w *World) spawnDummy(tick uint64) *Entity {
	w.dummySeq++
	_, pos := w.pickSpawn()
	e := &Entity{
		ID:         fmt.Sprintf("dummy-%02d", w.dummySeq),
		Kind:       KindDummy,
		Kinematics: KinematicState{Pos: pos, Grounded: true},
		Stats:      StatsFromConfig(w.cfg.Combat.DummyStats),
		State:      StateIdle,
		StateSince: tick,
		Cooldowns:  make(map[string]uint64),
		LastAim:    mgl64.Vec3{0, 0, 1},
	}
	e.Health = e.Stats.MaxHealth
	w.insert(e)
	return e
}

// pickSpawn draws a spawn point from the configured list. Spawn points are
// the only teleport destinations the server recognizes.
func (w *World) pickSpawn() (int, mgl64.Vec3) {
	points := w.cfg.Match.SpawnPoints
	idx := w.streams.Spawn.Intn(len(points))
	p := points[idx]
	return idx, mgl64.Vec3{p.X, p.Y, p.Z}
}

// roster rebuilds the scratch slice of entities in ID order. The order is
// what makes every per-tick iteration deterministic.
func (w *World) roster() []*Entity {
	w.scratch = w.scratch[:0]
	for _, id := range w.order {
		w.scratch = append(w.scratch, w.entities[id])
	}
	return w.scratch
}

func (w *World) insert(e *Entity) {
	w.entities[e.ID] = e
	if e.ConnID != "" {
		w.byConn[e.ConnID] = e
	}
	i := sort.SearchStrings(w.order, e.ID)
	w.order = append(w.order, "")
	copy(w.order[i+1:], w.order[i:])
	w.order[i] = e.ID
	if e.Kind == KindPlayer {
		w.players++
	}
}

func (w *World) remove(e *Entity) {
	delete(w.entities, e.ID)
	if e.ConnID != "" {
		delete(w.byConn, e.ConnID)
	}
	i := sort.SearchStrings(w.order, e.ID)
	if i < len(w.order) && w.order[i] == e.ID {
		w.order = append(w.order[:i], w.order[i+1:]...)
	}
	if e.Kind == KindPlayer {
		w.players--
	}
}

func (w *World) abilityReject(tick uint64, e *Entity, ability, reason string, retryAt uint64) {
	combatlog.CastRejected(context.Background(), w.pub, tick, w.ref(e), combatlog.CastRejectedPayload{
		Ability:     ability,
		Reason:      reason,
		RetryAtTick: retryAt,
	})
	if e.ConnID == "" {
		return
	}
	f := NewFault(FaultAbilityRejection, tick, e.ConnID, reason)
	f.Ability = ability
	f.RetryAt = retryAt
	w.fault(f)
}

func (w *World) fault(f *Fault) {
	if w.faults != nil {
		w.faults.OnFault(f)
	}
}

func (w *World) ref(e *Entity) logging.EntityRef {
	return logging.EntityRef{ID: e.ID, Kind: entityRefKind(e)}
}

func (w *World) refByID(id string) logging.EntityRef {
	if e, ok := w.entities[id]; ok {
		return w.ref(e)
	}
	return logging.EntityRef{ID: id, Kind: logging.EntityKindNPC}
}
