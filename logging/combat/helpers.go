package combat

import (
	"context"

	"github.com/Jamesmykil253/MoBa-sub001/logging"
)

const (
	// EventDamage is emitted once per target an ability damages.
	EventDamage logging.EventType = "combat.damage"
	// EventCastRejected is emitted when a cast request fails resolution.
	EventCastRejected logging.EventType = "combat.cast_rejected"
	// EventProjectileSpawned is emitted when a cast allocates a projectile.
	EventProjectileSpawned logging.EventType = "combat.projectile_spawned"
)

// DamagePayload captures one resolved hit.
type DamagePayload struct {
	Ability      string  `json:"ability"`
	Raw          float64 `json:"raw"`
	Mitigated    float64 `json:"mitigated"`
	Critical     bool    `json:"critical,omitempty"`
	TargetHealth float64 `json:"targetHealth"`
}

// CastRejectedPayload describes why a cast did not resolve.
type CastRejectedPayload struct {
	Ability     string `json:"ability"`
	Reason      string `json:"reason"`
	RetryAtTick uint64 `json:"retryAtTick,omitempty"`
}

// ProjectileSpawnedPayload records the arena slot serving a projectile cast.
type ProjectileSpawnedPayload struct {
	Ability string `json:"ability"`
	Slot    int    `json:"slot"`
}

// Damage publishes a combat damage event for a single target.
func Damage(ctx context.Context, pub logging.Publisher, tick uint64, actor, target logging.EntityRef, payload DamagePayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventDamage,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// CastRejected publishes a rejection notice. Rejections are routine
// (cooldowns, pool exhaustion) and therefore debug severity.
func CastRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CastRejectedPayload) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventCastRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCombat,
		Payload:  payload,
	}
	pub.Publish(ctx, event)
}

// ProjectileSpawned publishes the projectile allocation for a cast.
func ProjectileSpawned(ctx context.Context, pub logging.Publisher, tick uint64, actor, projectile logging.EntityRef, payload ProjectileSpawnedPayload) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventProjectileSpawned,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{projectile},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCombat,
		Payload:  payload,
	}
	pub.Publish(ctx, event)
}
