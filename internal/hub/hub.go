// Package hub connects the transport layer to the simulation: it owns the
// session registry, the input buffer, the world, and the loop that drives
// them, and it routes snapshots, corrections, and faults back out to the
// right sockets.
package hub

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Jamesmykil253/MoBa-sub001/internal/arena"
	"github.com/Jamesmykil253/MoBa-sub001/internal/config"
	"github.com/Jamesmykil253/MoBa-sub001/internal/net/proto"
	"github.com/Jamesmykil253/MoBa-sub001/internal/sim"
	"github.com/Jamesmykil253/MoBa-sub001/internal/telemetry"
	"github.com/Jamesmykil253/MoBa-sub001/logging"
	"github.com/Jamesmykil253/MoBa-sub001/logging/simulation"
)

// ErrUnknownConn is returned when an attach names a connection the hub has
// never admitted or has already dropped.
var ErrUnknownConn = errors.New("hub: unknown connection")

// Deps carries the hub's process-level collaborators. Every field is
// optional; nil fields fall back to inert defaults.
type Deps struct {
	Publisher logging.Publisher
	Logger    telemetry.Logger
	Metrics   *telemetry.Counters
	Clock     logging.Clock
}

func (d Deps) normalized() Deps {
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	if d.Logger == nil {
		d.Logger = telemetry.WrapLogger(log.Default())
	}
	if d.Metrics == nil {
		d.Metrics = telemetry.NewCounters()
	}
	if d.Clock == nil {
		d.Clock = logging.ClockFunc(time.Now)
	}
	return d
}

// Hub owns all live sessions and the simulation stack beneath them. It is
// the world's CorrectionSender and FaultSink, so everything the simulation
// wants delivered to a client funnels through here.
type Hub struct {
	world  *arena.World
	buffer *sim.InputBuffer
	loop   *sim.Loop

	pub     logging.Publisher
	logger  telemetry.Logger
	metrics *telemetry.Counters
	clock   logging.Clock

	mu       sync.Mutex
	cfg      config.Config
	sessions map[string]*Session
}

// New builds the full simulation stack for one arena: input buffer, world,
// and loop, wired so the hub receives corrections and faults.
func New(cfg config.Config, deps Deps) *Hub {
	deps = deps.normalized()
	h := &Hub{
		pub:      deps.Publisher,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		clock:    deps.Clock,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}

	h.buffer = sim.NewInputBuffer(cfg.Simulation.PendingInputsPerConn, uint64(cfg.Simulation.FutureWindowTicks), deps.Metrics)
	h.world = arena.NewWorld(cfg, arena.WorldDeps{
		Throttler:   h.buffer,
		Corrections: h,
		Faults:      h,
		Publisher:   deps.Publisher,
		Logger:      deps.Logger,
		Metrics:     deps.Metrics,
	})
	h.loop = sim.NewLoop(h.world, h.buffer, sim.LoopConfig{
		TickInterval:         cfg.Simulation.TickInterval(),
		CatchupMaxTicks:      cfg.Simulation.CatchupMaxTicks,
		OverrunWarnThreshold: cfg.Simulation.OverrunWarnThreshold,
	}, sim.LoopHooks{
		AfterStep:      h.afterStep,
		OnOverrun:      h.onOverrun,
		OnCatchupClamp: h.onCatchupClamp,
	}, sim.Deps{
		Logger:    deps.Logger,
		Metrics:   deps.Metrics,
		Clock:     deps.Clock,
		Publisher: deps.Publisher,
	})
	return h
}

// Run drives the simulation loop until stop closes.
func (h *Hub) Run(stop <-chan struct{}) {
	h.loop.Run(stop)
}

// CurrentTick reports the most recently completed simulation tick.
func (h *Hub) CurrentTick() uint64 {
	return h.loop.CurrentTick()
}

// Join admits a new connection: the world spawns its entity, the input
// buffer opens its lane, and a session waits for the websocket attach. The
// returned payload carries the identity and timing constants a predicting
// client starts from, plus a keyframe that already includes its entity.
func (h *Hub) Join() (proto.JoinResponse, error) {
	connID := uuid.NewString()
	entityID, snap, err := h.world.Join(connID)
	if err != nil {
		return proto.JoinResponse{}, err
	}
	h.buffer.Register(connID, h.loop.CurrentTick())

	sess := newSession(connID, entityID, h.clock.Now())
	h.mu.Lock()
	h.sessions[connID] = sess
	cfg := h.cfg
	h.mu.Unlock()

	return proto.JoinResponse{
		ID:                 connID,
		EntityID:           entityID,
		TickRate:           cfg.Simulation.TickRate,
		SnapshotEveryTicks: cfg.Simulation.SnapshotEveryTicks,
		HeartbeatMillis:    cfg.Match.HeartbeatInterval.Milliseconds(),
		Snapshot:           snap,
	}, nil
}

// Attach binds an upgraded websocket to a joined connection and returns the
// session along with an encoded keyframe for the client to start from.
// Attaching again replaces the previous socket.
func (h *Hub) Attach(connID string, conn *websocket.Conn) (*Session, []byte, error) {
	h.mu.Lock()
	sess, ok := h.sessions[connID]
	h.mu.Unlock()
	if !ok {
		return nil, nil, ErrUnknownConn
	}

	now := h.clock.Now()
	sess.attach(conn, now, func() {
		h.Disconnect(connID, "write_failure")
	})

	var snap arena.Snapshot
	if latest := h.world.LatestSnapshot(); latest != nil {
		snap = *latest
	}
	data, err := proto.EncodeSnapshot(snap, now, true)
	if err != nil {
		return nil, nil, err
	}
	return sess, data, nil
}

// Disconnect removes a connection: the socket closes, buffered input is
// forgotten, and the entity leaves the world on the next tick. Idempotent
// and safe from any goroutine, the simulation's included.
func (h *Hub) Disconnect(connID, reason string) {
	h.mu.Lock()
	sess, ok := h.sessions[connID]
	if ok {
		delete(h.sessions, connID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	sess.detach()
	h.buffer.Forget(connID)
	h.world.Leave(connID, reason)
}

// StageInput converts a decoded client message into a simulation command,
// stamps its identity server-side, and enqueues it for the addressed tick.
// The returned reason echoes to the client when the command is refused.
func (h *Hub) StageInput(connID string, msg proto.ClientMessage) (sim.InputCommand, bool, string) {
	h.mu.Lock()
	sess, ok := h.sessions[connID]
	h.mu.Unlock()
	if !ok {
		return sim.InputCommand{}, false, sim.RejectUnknownConn
	}

	cmd, ok := proto.Command(msg)
	if !ok {
		return sim.InputCommand{}, false, proto.RejectMalformed
	}
	cmd.ConnID = connID
	cmd.EntityID = sess.EntityID

	if !cmd.Normalize() {
		h.OnFault(arena.NewFault(arena.FaultFatalProtocol, h.loop.CurrentTick(), connID, arena.CheckFinite))
		return sim.InputCommand{}, false, arena.CheckFinite
	}

	if accepted, reason := h.loop.Enqueue(cmd); !accepted {
		return cmd, false, reason
	}
	return cmd, true, ""
}

// Heartbeat records a liveness ping and returns the RTT to echo back.
func (h *Hub) Heartbeat(connID string, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	h.mu.Lock()
	sess, ok := h.sessions[connID]
	h.mu.Unlock()
	if !ok {
		return 0, false
	}
	return sess.heartbeat(receivedAt, clientSent), true
}

// MatchRestart schedules a world reset at the next tick boundary. A non-nil
// cfg becomes the active configuration when the reset lands; restarts are
// the only point where configuration changes take effect.
func (h *Hub) MatchRestart(cfg *config.Config, seed int64) error {
	if err := h.world.RequestReset(cfg, seed); err != nil {
		return err
	}
	if cfg != nil {
		// The loop's tick cadence is fixed for the process; the hub adopts
		// only the knobs it owns.
		h.mu.Lock()
		h.cfg.Simulation.SnapshotEveryTicks = cfg.Simulation.SnapshotEveryTicks
		h.cfg.Match.HeartbeatInterval = cfg.Match.HeartbeatInterval
		h.cfg.Match.DisconnectAfter = cfg.Match.DisconnectAfter
		h.mu.Unlock()
	}
	return nil
}

// SendCorrection implements arena.CorrectionSender. A correction that cannot
// be queued is dropped; the next divergence pushes a fresh one.
func (h *Hub) SendCorrection(connID string, c arena.Correction) {
	data, err := proto.EncodeCorrection(c)
	if err != nil {
		h.logger.Printf("failed to marshal correction for %s: %v", connID, err)
		return
	}
	h.sendTo(connID, data)
}

// OnFault implements arena.FaultSink. Ability rejections are echoed to the
// originating client only; fatal protocol violations tear the connection
// down. Everything else has already been published as events where it
// happened.
func (h *Hub) OnFault(f *arena.Fault) {
	switch f.Class {
	case arena.FaultAbilityRejection:
		data, err := proto.EncodeCastReject(f.Tick, f.Ability, f.Reason, f.RetryAt)
		if err != nil {
			return
		}
		h.sendTo(f.ConnID, data)
	case arena.FaultFatalProtocol:
		h.logger.Printf("disconnecting %s after protocol violation: %s", f.ConnID, f.Reason)
		h.metrics.Add(telemetry.KeyConnectionsDropped, 1)
		h.expel(f.ConnID, f.Reason)
	}
}

// expel closes the socket with a policy-violation frame and removes the
// connection.
func (h *Hub) expel(connID, reason string) {
	h.mu.Lock()
	sess, ok := h.sessions[connID]
	h.mu.Unlock()
	if ok {
		sess.closeWith(websocket.ClosePolicyViolation, reason)
	}
	h.Disconnect(connID, reason)
}

func (h *Hub) sendTo(connID string, data []byte) bool {
	h.mu.Lock()
	sess, ok := h.sessions[connID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	if !sess.Send(data) {
		h.metrics.Add(telemetry.KeyFramesDropped, 1)
		return false
	}
	return true
}

// afterStep runs on the simulation goroutine after every completed tick. It
// sweeps connections whose heartbeats went silent, then fans the snapshot
// out on the configured cadence.
func (h *Hub) afterStep(res sim.LoopStepResult) {
	h.sweepStale(res)
	h.maybeBroadcast(res)
}

func (h *Hub) sweepStale(res sim.LoopStepResult) {
	h.mu.Lock()
	window := h.cfg.Match.DisconnectAfter
	var stale []*Session
	for _, sess := range h.sessions {
		if res.Now.Sub(sess.lastSeen()) > window {
			stale = append(stale, sess)
		}
	}
	h.mu.Unlock()

	for _, sess := range stale {
		h.logger.Printf("disconnecting %s due to heartbeat timeout", sess.ConnID)
		h.metrics.Add(telemetry.KeyConnectionsDropped, 1)
		h.Disconnect(sess.ConnID, "heartbeat_timeout")
	}
}

func (h *Hub) maybeBroadcast(res sim.LoopStepResult) {
	// During catch-up bursts only the last step of the batch publishes.
	if res.BatchRemaining != 0 {
		return
	}
	h.mu.Lock()
	every := uint64(h.cfg.Simulation.SnapshotEveryTicks)
	h.mu.Unlock()
	if every > 1 && res.Tick%every != 0 {
		return
	}

	latest := h.world.LatestSnapshot()
	if latest == nil {
		return
	}
	data, err := proto.EncodeSnapshot(*latest, res.Now, false)
	if err != nil {
		h.logger.Printf("failed to marshal snapshot: %v", err)
		return
	}
	h.broadcast(data)
}

// broadcast fans one encoded frame out to every session. The frame is
// marshalled once; sessions that cannot keep up lose it.
func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		targets = append(targets, sess)
	}
	h.mu.Unlock()

	sent := 0
	for _, sess := range targets {
		if sess.Send(data) {
			sent++
		} else {
			h.metrics.Add(telemetry.KeyFramesDropped, 1)
		}
	}
	if sent > 0 {
		h.metrics.Add(telemetry.KeyBroadcasts, 1)
		h.metrics.Add(telemetry.KeyBroadcastBytes, uint64(len(data))*uint64(sent))
	}
}

func (h *Hub) onOverrun(res sim.LoopStepResult, consecutive int) {
	h.logger.Printf("tick %d ran %s against a %s budget (%d consecutive)", res.Tick, res.Duration, res.Budget, consecutive)
	simulation.TickOverrun(context.Background(), h.pub, res.Tick, simulation.TickOverrunPayload{
		DurationMillis: res.Duration.Milliseconds(),
		BudgetMillis:   res.Budget.Milliseconds(),
		Consecutive:    consecutive,
	})
}

func (h *Hub) onCatchupClamp(discarded, maxSteps int) {
	tick := h.loop.CurrentTick()
	h.logger.Printf("discarded %d catch-up steps past the %d-step cap at tick %d", discarded, maxSteps, tick)
	simulation.CatchupClamped(context.Background(), h.pub, tick, simulation.CatchupClampedPayload{
		PendingSteps: discarded + maxSteps,
		MaxSteps:     maxSteps,
	})
}

// DiagnosticsConn describes one connection for the diagnostics endpoint.
type DiagnosticsConn struct {
	ID            string `json:"id"`
	EntityID      string `json:"entityId"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	RTTMillis     int64  `json:"rttMillis"`
	DroppedFrames uint64 `json:"droppedFrames,omitempty"`
}

// Diagnostics is the payload served by the diagnostics endpoint.
type Diagnostics struct {
	Tick        uint64            `json:"tick"`
	Connections []DiagnosticsConn `json:"connections"`
	Counters    map[string]uint64 `json:"counters"`
}

// DiagnosticsSnapshot captures per-connection liveness and the counter set.
func (h *Hub) DiagnosticsSnapshot() Diagnostics {
	h.mu.Lock()
	conns := make([]DiagnosticsConn, 0, len(h.sessions))
	for _, sess := range h.sessions {
		conns = append(conns, DiagnosticsConn{
			ID:            sess.ConnID,
			EntityID:      sess.EntityID,
			LastHeartbeat: sess.lastSeen().UnixMilli(),
			RTTMillis:     sess.rtt().Milliseconds(),
			DroppedFrames: sess.droppedCount(),
		})
	}
	h.mu.Unlock()

	sort.Slice(conns, func(i, j int) bool { return conns[i].ID < conns[j].ID })
	return Diagnostics{
		Tick:        h.loop.CurrentTick(),
		Connections: conns,
		Counters:    h.metrics.Snapshot(),
	}
}
