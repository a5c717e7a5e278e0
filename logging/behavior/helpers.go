package behavior

import (
	"context"

	"github.com/Jamesmykil253/MoBa-sub001/logging"
)

const (
	// EventTransition is emitted when an entity changes behavior state.
	EventTransition logging.EventType = "behavior.transition"
	// EventTransitionRejected is emitted when an attempted transition is
	// not declared by the state table and the entity stays put.
	EventTransitionRejected logging.EventType = "behavior.transition_rejected"
)

// TransitionPayload captures one state change.
type TransitionPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Cause  string `json:"cause,omitempty"`
	Dwell  uint64 `json:"dwellTicks,omitempty"`
	Forced bool   `json:"forced,omitempty"`
}

// TransitionRejectedPayload captures a refused state change.
type TransitionRejectedPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// Transition publishes a behavior state change.
func Transition(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload TransitionPayload) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventTransition,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryBehavior,
		Payload:  payload,
	}
	pub.Publish(ctx, event)
}

// TransitionRejected publishes a refused transition at debug severity; the
// machine stays in its current state.
func TransitionRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload TransitionRejectedPayload) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventTransitionRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryBehavior,
		Payload:  payload,
	}
	pub.Publish(ctx, event)
}
