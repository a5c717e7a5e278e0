package arena

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Jamesmykil253/MoBa-sub001/internal/config"
	"github.com/Jamesmykil253/MoBa-sub001/internal/telemetry"
	"github.com/Jamesmykil253/MoBa-sub001/logging"
	"github.com/Jamesmykil253/MoBa-sub001/logging/combat"
)

// Cast rejection reasons. They travel to the originating client inside an
// ability-rejection fault and appear in rejection events.
const (
	CastRejectUnknown      = "unknown_ability"
	CastRejectCooldown     = "cooldown"
	CastRejectStateBlocked = "state_blocked"
	CastRejectDead         = "dead"
	CastRejectCapacity     = "projectile_capacity"
)

// Hit is one resolved instance of damage, before it is applied to the
// target's health.
type Hit struct {
	AttackerID string
	Target     *Entity
	Ability    string
	Type       DamageType
	Raw        float64
	Amount     float64
	Critical   bool
	StunTicks  uint64
}

// CastOutcome reports whether a cast attempt was committed.
type CastOutcome struct {
	Accepted bool
	Reason   string
	// RetryAt carries the ready tick on cooldown rejections.
	RetryAt uint64
	// State is the behavior state the caster locks into while winding up.
	State BehaviorState
	// Duration is the wind-up length in ticks.
	Duration uint64
}

// Resolver owns ability resolution: cooldown gating, lag-compensated hit
// queries, projectile flight, and damage strategy dispatch. It never touches
// entity health; it reports hits and the caller applies them.
type Resolver struct {
	cfg        config.CombatConfig
	movement   config.MovementConfig
	strategies map[DamageType]DamageStrategy
	pool       *ProjectilePool
	history    *PositionHistory
	rng        *rand.Rand
	pub        logging.Publisher
	metrics    telemetry.Metrics
	newQuery   func(positions map[string]mgl64.Vec3) SpatialQuery
}

// NewResolver wires a resolver over the shared pool, history, and combat
// random stream.
func NewResolver(cfg config.CombatConfig, movement config.MovementConfig, pool *ProjectilePool, history *PositionHistory, rng *rand.Rand, pub logging.Publisher, metrics telemetry.Metrics) *Resolver {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &Resolver{
		cfg:        cfg,
		movement:   movement,
		strategies: DefaultStrategies(),
		pool:       pool,
		history:    history,
		rng:        rng,
		pub:        pub,
		metrics:    metrics,
		newQuery: func(positions map[string]mgl64.Vec3) SpatialQuery {
			return NewCircleOverlap(positions)
		},
	}
}

// UseSpatialQuery swaps the factory building the per-cast hit-test index.
// The default probes a brute-force circle overlap.
func (r *Resolver) UseSpatialQuery(build func(positions map[string]mgl64.Vec3) SpatialQuery) {
	if build != nil {
		r.newQuery = build
	}
}

// Ability looks up an ability definition.
func (r *Resolver) Ability(id string) (config.AbilityConfig, bool) {
	ability, ok := r.cfg.Abilities[id]
	return ability, ok
}

// BeginCast runs the commit gates for a cast attempt at the press tick. On
// success the cooldown is stamped, the pending ability is stored on the
// caster, and the outcome names the wind-up state and duration. Damage
// resolves later, at the completion tick.
//
// The cooldown gate is check-and-set in one step: the first accepted cast
// of a tick stamps the ready tick, so a second attempt in the same tick
// already sees the ability on cooldown.
func (r *Resolver) BeginCast(tick uint64, caster *Entity, abilityID string, aim mgl64.Vec3, observed uint64) CastOutcome {
	ability, ok := r.cfg.Abilities[abilityID]
	if !ok {
		return CastOutcome{Reason: CastRejectUnknown}
	}
	if ability.Kind == "projectile" && r.pool != nil && r.pool.Live() >= r.pool.Capacity() {
		return CastOutcome{Reason: CastRejectCapacity}
	}
	if readyAt, ready := caster.ReadyCooldown(abilityID, ability.CooldownTicks, tick); !ready {
		return CastOutcome{Reason: CastRejectCooldown, RetryAt: readyAt}
	}

	caster.PendingAbility = abilityID
	caster.PendingAim = normalizeAim(aim, caster.LastAim)
	caster.PendingObserve = observed
	caster.LastAim = caster.PendingAim

	state := StateCasting
	if ability.Kind == "melee" {
		state = StateAttacking
	}
	duration := ability.CastTicks
	if duration == 0 {
		duration = r.cfg.AttackStateTicks
	}
	if duration == 0 {
		duration = 1
	}
	return CastOutcome{Accepted: true, State: state, Duration: duration}
}

// ResolveCast applies the caster's pending ability at its completion tick.
// Melee and hitscan queries rewind targets to the tick the caster claims to
// have observed, clamped to the retained history window. A projectile cast
// claims a pool slot instead of dealing damage now.
func (r *Resolver) ResolveCast(tick uint64, caster *Entity, targets []*Entity) ([]Hit, string) {
	abilityID := caster.PendingAbility
	ability, ok := r.cfg.Abilities[abilityID]
	if !ok {
		return nil, CastRejectUnknown
	}

	switch ability.Kind {
	case "projectile":
		return nil, r.spawnProjectile(tick, caster, abilityID, ability)
	case "hitscan":
		return r.resolveHitscan(caster, ability, abilityID, targets), ""
	default:
		return r.resolveMelee(caster, ability, abilityID, targets), ""
	}
}

func (r *Resolver) spawnProjectile(tick uint64, caster *Entity, abilityID string, ability config.AbilityConfig) string {
	vel := caster.PendingAim.Mul(ability.ProjectileSpeed)
	pr, ok := r.pool.Spawn(caster.ID, abilityID, caster.Kinematics.Pos, vel, ability.Radius, tick+ability.ProjectileLifetimeTicks)
	if !ok {
		return CastRejectCapacity
	}
	combat.ProjectileSpawned(context.Background(), r.pub, tick, r.actorRef(caster), projectileRef(pr.Handle), combat.ProjectileSpawnedPayload{
		Ability: abilityID,
		Slot:    pr.slot,
	})
	return ""
}

func projectileRef(handle ProjectileHandle) logging.EntityRef {
	return logging.EntityRef{ID: fmt.Sprintf("proj-%d", handle), Kind: logging.EntityKindProjectile}
}

// candidatePositions collects the live opponents a cast may hit and the
// positions the hit test runs against, rewound when the caster made a
// latency claim.
func (r *Resolver) candidatePositions(caster *Entity, targets []*Entity) (map[string]*Entity, map[string]mgl64.Vec3) {
	rewound := r.rewind(caster.PendingObserve)
	byID := make(map[string]*Entity, len(targets))
	positions := make(map[string]mgl64.Vec3, len(targets))
	for _, target := range targets {
		if target.ID == caster.ID || !target.Alive() {
			continue
		}
		byID[target.ID] = target
		positions[target.ID] = r.targetPos(rewound, target)
	}
	return byID, positions
}

// resolveMelee hits every live target inside the swing arc: within reach of
// the caster and in the frontal half-plane of the aim.
func (r *Resolver) resolveMelee(caster *Entity, ability config.AbilityConfig, abilityID string, targets []*Entity) []Hit {
	byID, positions := r.candidatePositions(caster, targets)
	query := r.newQuery(positions)
	reach := ability.Range + r.movement.EntityRadius
	aimX, aimZ := caster.PendingAim[0], caster.PendingAim[2]

	var hits []Hit
	crit := r.rollCrit(ability)
	for _, id := range query.WithinCircle(caster.Kinematics.Pos, reach) {
		pos := positions[id]
		toX := pos[0] - caster.Kinematics.Pos[0]
		toZ := pos[2] - caster.Kinematics.Pos[2]
		if (aimX != 0 || aimZ != 0) && aimX*toX+aimZ*toZ < 0 {
			continue
		}
		hits = append(hits, r.makeHit(caster, byID[id], abilityID, ability, crit))
	}
	return hits
}

// resolveHitscan traces the aim ray against rewound target positions and
// hits the closest intersection only.
func (r *Resolver) resolveHitscan(caster *Entity, ability config.AbilityConfig, abilityID string, targets []*Entity) []Hit {
	byID, positions := r.candidatePositions(caster, targets)
	query := r.newQuery(positions)
	acceptRadius := ability.Radius + r.movement.EntityRadius

	var best *Entity
	bestDist := ability.Range + 1
	for _, rayHit := range query.AlongRay(caster.Kinematics.Pos, caster.PendingAim, ability.Range, acceptRadius) {
		if rayHit.Dist < bestDist {
			best = byID[rayHit.ID]
			bestDist = rayHit.Dist
		}
	}
	if best == nil {
		return nil
	}
	return []Hit{r.makeHit(caster, best, abilityID, ability, r.rollCrit(ability))}
}

// StepProjectiles advances every live projectile by one tick, expiring
// spent ones and resolving impacts against current target positions.
func (r *Resolver) StepProjectiles(tick uint64, dt float64, targets []*Entity) []Hit {
	bound := r.movement.ArenaHalfExtent + 5
	var hits []Hit
	r.pool.ForEach(func(pr *Projectile) {
		pr.Pos = pr.Pos.Add(pr.Vel.Mul(dt))

		if tick >= pr.ExpiresAt || outOfBounds(pr.Pos, bound) {
			r.pool.Release(pr)
			return
		}

		for _, target := range targets {
			if target.ID == pr.Owner || !target.Alive() {
				continue
			}
			if pr.Pos.Sub(target.Kinematics.Pos).Len() > pr.Radius+r.movement.EntityRadius {
				continue
			}
			ability, ok := r.cfg.Abilities[pr.Ability]
			if ok {
				attacker := ownerStats(pr.Owner, targets)
				hit := r.finishHit(attacker, target, pr.Ability, ability, r.rollCrit(ability))
				hit.AttackerID = pr.Owner
				hits = append(hits, hit)
			}
			r.pool.Release(pr)
			return
		}
	})
	return hits
}

// rewind returns historical positions at the observed tick, clamped to the
// retained window. Tick zero means the caster made no latency claim, so no
// rewind happens; a cold history likewise falls back to current positions.
func (r *Resolver) rewind(observed uint64) map[string]mgl64.Vec3 {
	if r.history == nil || observed == 0 {
		return nil
	}
	positions, _, ok := r.history.At(observed)
	if !ok {
		return nil
	}
	return positions
}

func (r *Resolver) targetPos(positions map[string]mgl64.Vec3, target *Entity) mgl64.Vec3 {
	if positions != nil {
		if pos, ok := positions[target.ID]; ok {
			return pos
		}
	}
	return target.Kinematics.Pos
}

func (r *Resolver) rollCrit(ability config.AbilityConfig) bool {
	if ability.CritChance <= 0 || r.rng == nil {
		return false
	}
	return r.rng.Float64() < ability.CritChance
}

func (r *Resolver) makeHit(caster *Entity, target *Entity, abilityID string, ability config.AbilityConfig, crit bool) Hit {
	hit := r.finishHit(caster.Stats, target, abilityID, ability, crit)
	hit.AttackerID = caster.ID
	return hit
}

func (r *Resolver) finishHit(attacker Stats, target *Entity, abilityID string, ability config.AbilityConfig, crit bool) Hit {
	raw := ability.Damage
	if crit {
		raw *= ability.CritMultiplier
	}
	amount := raw
	if strategy, ok := r.strategies[DamageType(ability.DamageType)]; ok {
		amount = strategy.Mitigate(raw, attacker, target.Stats)
	}
	return Hit{
		Target:    target,
		Ability:   abilityID,
		Type:      DamageType(ability.DamageType),
		Raw:       raw,
		Amount:    amount,
		Critical:  crit,
		StunTicks: ability.StunTicks,
	}
}

// ownerStats finds the live attacker's stat block for a projectile impact.
// A caster who died or left mid-flight contributes neutral stats.
func ownerStats(ownerID string, entities []*Entity) Stats {
	for _, e := range entities {
		if e.ID == ownerID {
			return e.Stats
		}
	}
	return Stats{}
}

func (r *Resolver) actorRef(e *Entity) logging.EntityRef {
	return logging.EntityRef{ID: e.ID, Kind: entityRefKind(e)}
}

func normalizeAim(aim, fallback mgl64.Vec3) mgl64.Vec3 {
	if l := aim.Len(); l > 1e-9 {
		return aim.Mul(1 / l)
	}
	if l := fallback.Len(); l > 1e-9 {
		return fallback.Mul(1 / l)
	}
	return mgl64.Vec3{0, 0, 1}
}

func outOfBounds(pos mgl64.Vec3, bound float64) bool {
	return pos[0] < -bound || pos[0] > bound || pos[2] < -bound || pos[2] > bound || pos[1] < -bound
}
