package simulation

import (
	"context"

	"github.com/Jamesmykil253/MoBa-sub001/logging"
)

const (
	// EventTickOverrun is emitted when tick processing exceeds its budget
	// past the configured tolerance. The match continues.
	EventTickOverrun logging.EventType = "simulation.tick_overrun"
	// EventCatchupClamped is emitted when the loop discards accumulated
	// time instead of bursting past the catch-up limit.
	EventCatchupClamped logging.EventType = "simulation.catchup_clamped"
	// EventMatchReset is emitted when a new match configuration is applied.
	EventMatchReset logging.EventType = "simulation.match_reset"
)

// TickOverrunPayload reports a budget breach.
type TickOverrunPayload struct {
	DurationMillis int64 `json:"durationMillis"`
	BudgetMillis   int64 `json:"budgetMillis"`
	Consecutive    int   `json:"consecutive"`
}

// CatchupClampedPayload reports discarded catch-up steps.
type CatchupClampedPayload struct {
	PendingSteps int `json:"pendingSteps"`
	MaxSteps     int `json:"maxSteps"`
}

// MatchResetPayload reports a configuration swap at a match boundary.
type MatchResetPayload struct {
	Seed     int64 `json:"seed"`
	Entities int   `json:"entities"`
}

var worldRef = logging.EntityRef{ID: "world", Kind: logging.EntityKindWorld}

// TickOverrun publishes a capacity warning for a slow tick.
func TickOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickOverrunPayload) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventTickOverrun,
		Tick:     tick,
		Actor:    worldRef,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
	}
	pub.Publish(ctx, event)
}

// CatchupClamped publishes a dropped-backlog notice.
func CatchupClamped(ctx context.Context, pub logging.Publisher, tick uint64, payload CatchupClampedPayload) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventCatchupClamped,
		Tick:     tick,
		Actor:    worldRef,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
	}
	pub.Publish(ctx, event)
}

// MatchReset publishes the application of a staged configuration.
func MatchReset(ctx context.Context, pub logging.Publisher, tick uint64, payload MatchResetPayload) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventMatchReset,
		Tick:     tick,
		Actor:    worldRef,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySimulation,
		Payload:  payload,
	}
	pub.Publish(ctx, event)
}
