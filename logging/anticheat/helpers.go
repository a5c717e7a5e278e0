package anticheat

import (
	"context"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/Jamesmykil253/MoBa-sub001/logging"
)

const (
	// EventViolation is emitted when validation rejects or corrects a
	// claimed state; the connection continues.
	EventViolation logging.EventType = "anticheat.violation"
	// EventThrottled is emitted when a connection's input is temporarily
	// suppressed by the penalty backoff.
	EventThrottled logging.EventType = "anticheat.throttled"
	// EventFlagged is emitted when the penalty counter crosses the hard
	// threshold and the connection is scheduled for disconnect.
	EventFlagged logging.EventType = "anticheat.flagged"
)

// Detail is one ordered key/value pair of a flag report. Order is
// preserved so repeated runs log identically.
type Detail struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// ViolationPayload captures one rejected or corrected submission.
type ViolationPayload struct {
	Check     string  `json:"check"`
	Penalties uint32  `json:"penalties"`
	Observed  float64 `json:"observed,omitempty"`
	Limit     float64 `json:"limit,omitempty"`
	Corrected bool    `json:"corrected,omitempty"`
}

// ThrottledPayload captures an input-suppression window.
type ThrottledPayload struct {
	Penalties  uint32 `json:"penalties"`
	UntilTick  uint64 `json:"untilTick"`
	DelayTicks uint64 `json:"delayTicks"`
}

// FlaggedPayload carries the escalation report.
type FlaggedPayload struct {
	Check     string   `json:"check"`
	Penalties uint32   `json:"penalties"`
	Threshold uint32   `json:"threshold"`
	Details   []Detail `json:"details,omitempty"`
}

// Details flattens an ordered map into the payload form.
func Details(m *orderedmap.OrderedMap[string, any]) []Detail {
	if m == nil || m.Len() == 0 {
		return nil
	}
	out := make([]Detail, 0, m.Len())
	for el := m.Front(); el != nil; el = el.Next() {
		out = append(out, Detail{Key: el.Key, Value: el.Value})
	}
	return out
}

// Violation publishes a single validation failure.
func Violation(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ViolationPayload) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventViolation,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryAntiCheat,
		Payload:  payload,
	}
	pub.Publish(ctx, event)
}

// Throttled publishes an input-backoff notice.
func Throttled(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ThrottledPayload) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventThrottled,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryAntiCheat,
		Payload:  payload,
	}
	pub.Publish(ctx, event)
}

// Flagged publishes the hard-threshold escalation for a connection.
func Flagged(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload FlaggedPayload) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventFlagged,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityError,
		Category: logging.CategoryAntiCheat,
		Payload:  payload,
	}
	pub.Publish(ctx, event)
}
