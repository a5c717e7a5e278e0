package sim

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// InputCommand is one client-issued command, addressed to a single tick.
// Commands are immutable once enqueued; intake stamps the connection and
// entity identity so later stages never trust client-supplied routing.
type InputCommand struct {
	// ConnID and EntityID are stamped server-side at intake.
	ConnID   string
	EntityID string

	// Seq is the client's monotonically increasing command sequence.
	Seq uint64

	// ClientTick is the simulation tick the client addressed this command to.
	ClientTick uint64

	// Move is the desired movement intent on the ground plane. Intake clamps
	// the magnitude to 1 so a hand-rolled client cannot exceed full stick.
	Move mgl64.Vec2

	Jump      bool
	Attack    bool
	AbilityID string
	Aim       mgl64.Vec3

	// ObservedTick is the historical tick the client claims to have been
	// seeing when it issued an attack or cast. Combat rewinds to it.
	ObservedTick uint64

	// ClaimedPos carries the client's predicted position when HasClaim is
	// set. Reconciliation compares it against the authoritative history.
	ClaimedPos mgl64.Vec3
	HasClaim   bool

	// SentAt is the client wall-clock in unix milliseconds, used only for
	// latency diagnostics, never for simulation decisions.
	SentAt int64

	// ReceivedTick records the server tick at which intake accepted the
	// command.
	ReceivedTick uint64
}

// Normalize clamps the movement intent to the unit disc and scrubs
// non-finite floats from every client-supplied field. It returns false when
// a non-finite value was present, which intake treats as a protocol
// violation rather than a recoverable input.
func (c *InputCommand) Normalize() bool {
	ok := true
	for _, v := range []float64{c.Move[0], c.Move[1], c.Aim[0], c.Aim[1], c.Aim[2], c.ClaimedPos[0], c.ClaimedPos[1], c.ClaimedPos[2]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			ok = false
			break
		}
	}
	if !ok {
		c.Move = mgl64.Vec2{}
		c.Aim = mgl64.Vec3{}
		c.ClaimedPos = mgl64.Vec3{}
		c.HasClaim = false
		return false
	}
	if l := c.Move.Len(); l > 1 {
		c.Move = c.Move.Mul(1 / l)
	}
	return true
}

// Idle reports whether the command carries no intent at all.
func (c InputCommand) Idle() bool {
	return c.Move[0] == 0 && c.Move[1] == 0 && !c.Jump && !c.Attack && c.AbilityID == ""
}
