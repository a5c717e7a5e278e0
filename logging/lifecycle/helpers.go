package lifecycle

import (
	"context"

	"github.com/Jamesmykil253/MoBa-sub001/logging"
)

const (
	// EventDeath is emitted when an entity's health reaches zero.
	EventDeath logging.EventType = "lifecycle.death"
	// EventRespawn is emitted when a dead entity re-enters play.
	EventRespawn logging.EventType = "lifecycle.respawn"
	// EventJoined is emitted when a connection claims an entity.
	EventJoined logging.EventType = "lifecycle.joined"
	// EventDisconnected is emitted when a connection leaves or is dropped.
	EventDisconnected logging.EventType = "lifecycle.disconnected"
)

// DeathPayload describes the fatal blow.
type DeathPayload struct {
	KilledBy string `json:"killedBy,omitempty"`
	Ability  string `json:"ability,omitempty"`
}

// RespawnPayload records where the entity re-entered.
type RespawnPayload struct {
	SpawnPoint int       `json:"spawnPoint"`
	Position   []float64 `json:"position"`
}

// DisconnectedPayload records why the connection went away.
type DisconnectedPayload struct {
	Reason string `json:"reason"`
}

// Death publishes an entity death event.
func Death(ctx context.Context, pub logging.Publisher, tick uint64, actor, victim logging.EntityRef, payload DeathPayload) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventDeath,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{victim},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	}
	pub.Publish(ctx, event)
}

// Respawn publishes an entity respawn event.
func Respawn(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RespawnPayload) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventRespawn,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	}
	pub.Publish(ctx, event)
}

// Joined publishes a connection join event.
func Joined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
	}
	pub.Publish(ctx, event)
}

// Disconnected publishes a connection departure event.
func Disconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload DisconnectedPayload) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventDisconnected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	}
	pub.Publish(ctx, event)
}
