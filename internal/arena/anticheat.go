package arena

import (
	"context"
	"math"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Jamesmykil253/MoBa-sub001/internal/config"
	"github.com/Jamesmykil253/MoBa-sub001/internal/sim"
	"github.com/Jamesmykil253/MoBa-sub001/internal/telemetry"
	"github.com/Jamesmykil253/MoBa-sub001/logging"
	"github.com/Jamesmykil253/MoBa-sub001/logging/anticheat"
)

// Verdict is the validator's judgment of one claimed state.
type Verdict int

const (
	// VerdictAccept admits the claim as plausible.
	VerdictAccept Verdict = iota
	// VerdictCorrect rejects the claim; the authoritative state stands and
	// the client is pushed a correction.
	VerdictCorrect
	// VerdictFlag escalates the connection for disconnect.
	VerdictFlag
)

func (v Verdict) String() string {
	switch v {
	case VerdictCorrect:
		return "correct"
	case VerdictFlag:
		return "flag"
	default:
		return "accept"
	}
}

// Validation check names, stable for events and tests.
const (
	CheckFinite   = "non_finite"
	CheckSpeed    = "speed"
	CheckTeleport = "teleport"
)

// Throttler suppresses input intake for a connection until a tick. The
// input buffer satisfies it.
type Throttler interface {
	Throttle(connID string, untilTick uint64)
}

// ClaimReview is the outcome of validating one claimed position.
type ClaimReview struct {
	Verdict   Verdict
	Check     string
	Observed  float64
	Limit     float64
	Penalties int
	// ThrottledUntil is nonzero when the claim pushed the connection into
	// an input-suppression window.
	ThrottledUntil uint64
}

type claimRecord struct {
	penalties     int
	cleanTicks    int
	lastClaim     mgl64.Vec3
	lastClaimTick uint64
	hasClaim      bool
}

// Validator scores client-claimed positions against what the movement
// model permits. Violations are never trusted into the simulation; they
// raise a penalty counter that throttles the connection with exponential
// backoff and, past a hard threshold, escalates to disconnect. The claims
// themselves only ever influence corrections, not authoritative state.
type Validator struct {
	cfg       config.AntiCheatConfig
	movement  config.MovementConfig
	tickDelta float64
	throttler Throttler
	records   map[string]*claimRecord
	pub       logging.Publisher
	metrics   telemetry.Metrics
}

// NewValidator builds a validator. tickDelta is the fixed tick length in
// seconds, used to convert configured speeds into per-tick allowances.
func NewValidator(cfg config.AntiCheatConfig, movement config.MovementConfig, tickDelta float64, throttler Throttler, pub logging.Publisher, metrics telemetry.Metrics) *Validator {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &Validator{
		cfg:       cfg,
		movement:  movement,
		tickDelta: tickDelta,
		throttler: throttler,
		records:   make(map[string]*claimRecord),
		pub:       pub,
		metrics:   metrics,
	}
}

// ReviewClaim validates the claimed position carried by one command. The
// caller only acts on the verdict: correct pushes a reconciliation
// correction, flag tears the connection down.
func (v *Validator) ReviewClaim(tick uint64, e *Entity, cmd sim.InputCommand) ClaimReview {
	rec := v.record(cmd.ConnID)
	claimed := cmd.ClaimedPos

	for _, value := range []float64{claimed[0], claimed[1], claimed[2]} {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			rec.penalties = v.cfg.DisconnectThreshold
			return v.flag(tick, e, rec, CheckFinite, math.NaN(), 0)
		}
	}

	review := ClaimReview{Verdict: VerdictAccept, Penalties: rec.penalties}
	grace := tick <= e.TeleportGraceUntil

	if rec.hasClaim && cmd.ClientTick > rec.lastClaimTick && !grace {
		span := float64(cmd.ClientTick - rec.lastClaimTick)
		delta := claimed.Sub(rec.lastClaim)

		horizontal := math.Hypot(delta[0], delta[2])
		speedLimit := v.movement.MaxSpeed * v.cfg.SpeedTolerance * v.tickDelta * span
		teleportLimit := v.cfg.TeleportCap * span

		if delta.Len() > teleportLimit {
			review = v.penalize(tick, e, rec, CheckTeleport, delta.Len(), teleportLimit)
		} else if horizontal > speedLimit {
			review = v.penalize(tick, e, rec, CheckSpeed, horizontal, speedLimit)
		}
	}

	if review.Verdict == VerdictAccept {
		rec.cleanTicks++
		if rec.cleanTicks >= v.cfg.PenaltyDecayEvery && rec.penalties > 0 {
			rec.penalties--
			rec.cleanTicks = 0
		}
		review.Penalties = rec.penalties
	}

	rec.lastClaim = claimed
	rec.lastClaimTick = cmd.ClientTick
	rec.hasClaim = true
	return review
}

// penalize records a violation, throttles the connection with exponential
// backoff, and escalates past the hard threshold.
func (v *Validator) penalize(tick uint64, e *Entity, rec *claimRecord, check string, observed, limit float64) ClaimReview {
	rec.penalties++
	rec.cleanTicks = 0
	if v.metrics != nil {
		v.metrics.Add(telemetry.KeyViolations, 1)
	}

	anticheat.Violation(context.Background(), v.pub, tick, v.actorRef(e), anticheat.ViolationPayload{
		Check:     check,
		Penalties: uint32(rec.penalties),
		Observed:  observed,
		Limit:     limit,
		Corrected: true,
	})

	if rec.penalties >= v.cfg.DisconnectThreshold {
		return v.flag(tick, e, rec, check, observed, limit)
	}

	shift := rec.penalties
	if shift > v.cfg.ThrottleMaxShift {
		shift = v.cfg.ThrottleMaxShift
	}
	delay := uint64(v.cfg.ThrottleBaseTicks) << shift
	until := tick + delay
	if v.throttler != nil {
		v.throttler.Throttle(e.ConnID, until)
	}
	anticheat.Throttled(context.Background(), v.pub, tick, v.actorRef(e), anticheat.ThrottledPayload{
		Penalties:  uint32(rec.penalties),
		UntilTick:  until,
		DelayTicks: delay,
	})

	return ClaimReview{
		Verdict:        VerdictCorrect,
		Check:          check,
		Observed:       observed,
		Limit:          limit,
		Penalties:      rec.penalties,
		ThrottledUntil: until,
	}
}

func (v *Validator) flag(tick uint64, e *Entity, rec *claimRecord, check string, observed, limit float64) ClaimReview {
	details := orderedmap.NewOrderedMap[string, any]()
	details.Set("check", check)
	details.Set("observed", observed)
	details.Set("limit", limit)
	details.Set("authoritative", []float64{e.Kinematics.Pos[0], e.Kinematics.Pos[1], e.Kinematics.Pos[2]})

	anticheat.Flagged(context.Background(), v.pub, tick, v.actorRef(e), anticheat.FlaggedPayload{
		Check:     check,
		Penalties: uint32(rec.penalties),
		Threshold: uint32(v.cfg.DisconnectThreshold),
		Details:   anticheat.Details(details),
	})
	return ClaimReview{
		Verdict:   VerdictFlag,
		Check:     check,
		Observed:  observed,
		Limit:     limit,
		Penalties: rec.penalties,
	}
}

// Penalties reports the current penalty count for a connection.
func (v *Validator) Penalties(connID string) int {
	if rec, ok := v.records[connID]; ok {
		return rec.penalties
	}
	return 0
}

// Forget drops all validation state for a connection.
func (v *Validator) Forget(connID string) {
	delete(v.records, connID)
}

// Reset drops all validation state, for match restarts.
func (v *Validator) Reset() {
	v.records = make(map[string]*claimRecord)
}

func (v *Validator) record(connID string) *claimRecord {
	rec, ok := v.records[connID]
	if !ok {
		rec = &claimRecord{}
		v.records[connID] = rec
	}
	return rec
}

func (v *Validator) actorRef(e *Entity) logging.EntityRef {
	return logging.EntityRef{ID: e.ID, Kind: entityRefKind(e)}
}
