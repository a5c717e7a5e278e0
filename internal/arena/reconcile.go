package arena

import (
	"github.com/Jamesmykil253/MoBa-sub001/internal/config"
	"github.com/Jamesmykil253/MoBa-sub001/internal/sim"
	"github.com/Jamesmykil253/MoBa-sub001/internal/telemetry"
)

// Correction is the authoritative state pushed to a client whose prediction
// drifted. Corrections are idempotent: applying the same one twice is
// harmless, and a client holding a newer correction discards older ones.
type Correction struct {
	Tick     uint64     `json:"tick"`
	EntityID string     `json:"entityId"`
	// InputSeq anchors the client's replay: inputs at or before it are
	// settled, later ones are re-simulated on top of the corrected state.
	InputSeq uint64     `json:"inputSeq"`
	Pos      [3]float64 `json:"pos"`
	Vel      [3]float64 `json:"vel"`
}

// CorrectionSender delivers corrections to one connection. Sends are
// fire-and-forget; a lost correction is superseded by the next divergence.
type CorrectionSender interface {
	SendCorrection(connID string, correction Correction)
}

// CorrectionSenderFunc adapts a function to CorrectionSender.
type CorrectionSenderFunc func(connID string, correction Correction)

// SendCorrection invokes the function.
func (f CorrectionSenderFunc) SendCorrection(connID string, correction Correction) {
	if f != nil {
		f(connID, correction)
	}
}

// Reconciler compares client-claimed positions against the authoritative
// record and pushes corrections when they drift apart. It never moves the
// server's entities; the flow of truth is strictly server to client.
type Reconciler struct {
	cfg      config.ReconcileConfig
	history  *PositionHistory
	sender   CorrectionSender
	lastSent map[string]uint64
	metrics  telemetry.Metrics
}

// NewReconciler builds a reconciler over the shared position history.
func NewReconciler(cfg config.ReconcileConfig, history *PositionHistory, sender CorrectionSender, metrics telemetry.Metrics) *Reconciler {
	return &Reconciler{
		cfg:      cfg,
		history:  history,
		sender:   sender,
		lastSent: make(map[string]uint64),
		metrics:  metrics,
	}
}

// RecordAck checks one consumed command's claimed position against the
// authoritative position for the tick it addressed. It must run after the
// entity has moved for the current tick so a claim for this very tick
// compares against settled state. It returns true when the claim diverged.
func (r *Reconciler) RecordAck(tick uint64, e *Entity, cmd sim.InputCommand) bool {
	if !cmd.HasClaim {
		return false
	}

	authoritative := e.Kinematics.Pos
	if cmd.ClientTick < tick && r.history != nil {
		if pos, _, ok := r.history.EntityAt(cmd.ClientTick, e.ID); ok {
			authoritative = pos
		}
	}

	if cmd.ClaimedPos.Sub(authoritative).Len() <= r.cfg.PositionEpsilon {
		return false
	}
	r.push(tick, e, cmd.Seq)
	return true
}

// ForceCorrect pushes a correction regardless of epsilon, used when the
// validator has already judged the claim invalid.
func (r *Reconciler) ForceCorrect(tick uint64, e *Entity, seq uint64) {
	r.push(tick, e, seq)
}

// push sends the current authoritative state, spacing repeats so a client
// in sustained divergence is not flooded every tick.
func (r *Reconciler) push(tick uint64, e *Entity, seq uint64) {
	if r.sender == nil || e.ConnID == "" {
		return
	}
	if last, ok := r.lastSent[e.ConnID]; ok && tick-last < r.cfg.MinResendTicks {
		return
	}
	r.lastSent[e.ConnID] = tick

	pos := e.Kinematics.Pos
	vel := e.Kinematics.Vel
	r.sender.SendCorrection(e.ConnID, Correction{
		Tick:     tick,
		EntityID: e.ID,
		InputSeq: seq,
		Pos:      [3]float64{pos[0], pos[1], pos[2]},
		Vel:      [3]float64{vel[0], vel[1], vel[2]},
	})
	if r.metrics != nil {
		r.metrics.Add(telemetry.KeyCorrectionsSent, 1)
	}
}

// Forget drops reconciliation state for a connection.
func (r *Reconciler) Forget(connID string) {
	delete(r.lastSent, connID)
}

// Reset drops all reconciliation state, for match restarts.
func (r *Reconciler) Reset() {
	r.lastSent = make(map[string]uint64)
}
