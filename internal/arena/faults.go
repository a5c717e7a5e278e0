package arena

import (
	"errors"
	"fmt"
)

// FaultClass separates recoverable per-command problems from failures that
// end a connection or degrade the whole match.
type FaultClass string

const (
	// FaultTransientInput covers rejected commands from a connection that
	// stays healthy: stale ticks, duplicate sequences, full queues.
	FaultTransientInput FaultClass = "transient_input_violation"

	// FaultFatalProtocol covers malformed or hostile traffic. The connection
	// is disconnected and its entity removed.
	FaultFatalProtocol FaultClass = "fatal_protocol_violation"

	// FaultCapacityDegradation covers tick overruns and discarded backlog.
	// The match keeps running.
	FaultCapacityDegradation FaultClass = "capacity_degradation"

	// FaultStateRejection covers behavior transitions that no declared edge
	// permits. The entity stays in its current state.
	FaultStateRejection FaultClass = "state_rejection"

	// FaultAbilityRejection covers failed casts: cooldown, resources, state
	// gating, projectile capacity. Reported to the originating client only.
	FaultAbilityRejection FaultClass = "ability_rejection"
)

// Fault is a classified simulation error. ConnID is empty for faults that do
// not belong to a single connection. Ability and RetryAt are set only on
// ability rejections so the origin client can schedule a recast.
type Fault struct {
	Class   FaultClass
	Reason  string
	ConnID  string
	Tick    uint64
	Ability string
	RetryAt uint64
}

func (f *Fault) Error() string {
	if f.ConnID != "" {
		return fmt.Sprintf("%s: %s (conn=%s tick=%d)", f.Class, f.Reason, f.ConnID, f.Tick)
	}
	return fmt.Sprintf("%s: %s (tick=%d)", f.Class, f.Reason, f.Tick)
}

// NewFault builds a classified fault.
func NewFault(class FaultClass, tick uint64, connID, reason string) *Fault {
	return &Fault{Class: class, Reason: reason, ConnID: connID, Tick: tick}
}

// ClassOf extracts the fault class from an error chain, defaulting to
// FaultTransientInput for unclassified errors.
func ClassOf(err error) FaultClass {
	var f *Fault
	if errors.As(err, &f) {
		return f.Class
	}
	return FaultTransientInput
}

// IsFatal reports whether the error requires disconnecting the connection.
func IsFatal(err error) bool {
	return ClassOf(err) == FaultFatalProtocol
}

// FaultSink receives faults the simulation wants routed outward. The hub
// implements it: ability rejections go to the originating client, fatal
// protocol violations tear the connection down.
type FaultSink interface {
	OnFault(fault *Fault)
}

// FaultSinkFunc adapts a function to FaultSink.
type FaultSinkFunc func(fault *Fault)

// OnFault invokes the function.
func (f FaultSinkFunc) OnFault(fault *Fault) {
	if f != nil {
		f(fault)
	}
}
