package hub

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jamesmykil253/MoBa-sub001/internal/arena"
	"github.com/Jamesmykil253/MoBa-sub001/internal/config"
	"github.com/Jamesmykil253/MoBa-sub001/internal/net/proto"
	"github.com/Jamesmykil253/MoBa-sub001/internal/sim"
	"github.com/Jamesmykil253/MoBa-sub001/internal/telemetry"
	"github.com/Jamesmykil253/MoBa-sub001/logging"
)

func hubTestConfig(mutate func(*config.Config)) config.Config {
	cfg := config.Default()
	cfg.Match.SpawnPoints = []config.SpawnPoint{{}}
	cfg.Match.PracticeDummies = 0
	if mutate != nil {
		mutate(&cfg)
	}
	return cfg
}

// joinHub pumps the loop manually until the world services the join, since
// tests drive ticks with Advance instead of running the loop goroutine.
func joinHub(t *testing.T, h *Hub) (proto.JoinResponse, error) {
	t.Helper()
	type result struct {
		resp proto.JoinResponse
		err  error
	}
	resC := make(chan result, 1)
	go func() {
		resp, err := h.Join()
		resC <- result{resp, err}
	}()

	deadline := time.NewTimer(2 * time.Second)
	defer deadline.Stop()
	for {
		select {
		case res := <-resC:
			return res.resp, res.err
		case <-deadline.C:
			t.Fatal("join was not serviced in time")
		default:
			h.loop.Advance(1)
			time.Sleep(time.Millisecond)
		}
	}
}

func mustJoin(t *testing.T, h *Hub) proto.JoinResponse {
	t.Helper()
	resp, err := joinHub(t, h)
	require.NoError(t, err)
	return resp
}

// attachClient dials a real websocket into the hub and returns the client
// side. The server side forwards the keyframe exactly like the ws handler.
func attachClient(t *testing.T, h *Hub, connID string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		sess, keyframe, err := h.Attach(connID, conn)
		if !assert.NoError(t, err) {
			conn.Close()
			return
		}
		sess.Send(keyframe)
	}))
	t.Cleanup(srv.Close)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(payload, &frame))
	return frame
}

func TestJoinAdmitsConnection(t *testing.T) {
	h := New(hubTestConfig(nil), Deps{})
	resp := mustJoin(t, h)

	assert.NotEmpty(t, resp.ID)
	assert.NotEmpty(t, resp.EntityID)
	assert.Equal(t, 50, resp.TickRate)
	assert.Equal(t, 2, resp.SnapshotEveryTicks)
	assert.Equal(t, int64(2000), resp.HeartbeatMillis)
	require.Len(t, resp.Snapshot.Entities, 1)
	assert.Equal(t, resp.EntityID, resp.Snapshot.Entities[0].ID)

	assert.Equal(t, 1, h.buffer.Connections())
	diag := h.DiagnosticsSnapshot()
	require.Len(t, diag.Connections, 1)
	assert.Equal(t, resp.ID, diag.Connections[0].ID)
	assert.Equal(t, resp.EntityID, diag.Connections[0].EntityID)
}

func TestJoinRejectsWhenMatchFull(t *testing.T) {
	h := New(hubTestConfig(func(cfg *config.Config) {
		cfg.Match.MaxPlayers = 1
	}), Deps{})

	mustJoin(t, h)
	_, err := joinHub(t, h)
	require.ErrorIs(t, err, arena.ErrMatchFull)
	assert.Equal(t, 1, h.buffer.Connections())
}

func TestStageInputStampsIdentity(t *testing.T) {
	h := New(hubTestConfig(nil), Deps{})
	resp := mustJoin(t, h)

	cmd, ok, reason := h.StageInput(resp.ID, proto.ClientMessage{
		Type: proto.TypeInput,
		Seq:  1,
		Tick: h.CurrentTick() + 1,
		Move: [2]float64{0, 1},
	})
	require.True(t, ok, "reason: %s", reason)
	assert.Equal(t, resp.ID, cmd.ConnID)
	assert.Equal(t, resp.EntityID, cmd.EntityID)
	assert.Equal(t, 1, h.buffer.Occupancy())
}

func TestStageInputRejections(t *testing.T) {
	h := New(hubTestConfig(nil), Deps{})
	resp := mustJoin(t, h)

	t.Run("unknown connection", func(t *testing.T) {
		_, ok, reason := h.StageInput("missing", proto.ClientMessage{Type: proto.TypeInput, Seq: 1, Tick: h.CurrentTick() + 1})
		assert.False(t, ok)
		assert.Equal(t, sim.RejectUnknownConn, reason)
	})

	t.Run("non input message", func(t *testing.T) {
		_, ok, reason := h.StageInput(resp.ID, proto.ClientMessage{Type: proto.TypeHeartbeat})
		assert.False(t, ok)
		assert.Equal(t, proto.RejectMalformed, reason)
	})

	t.Run("stale tick", func(t *testing.T) {
		_, ok, reason := h.StageInput(resp.ID, proto.ClientMessage{Type: proto.TypeInput, Seq: 2, Tick: 0})
		assert.False(t, ok)
		assert.Equal(t, sim.RejectStaleTick, reason)
	})
}

func TestStageInputNonFiniteExpels(t *testing.T) {
	h := New(hubTestConfig(nil), Deps{})
	resp := mustJoin(t, h)

	_, ok, reason := h.StageInput(resp.ID, proto.ClientMessage{
		Type: proto.TypeInput,
		Seq:  1,
		Tick: h.CurrentTick() + 1,
		Move: [2]float64{math.NaN(), 0},
	})
	assert.False(t, ok)
	assert.Equal(t, arena.CheckFinite, reason)

	assert.Empty(t, h.DiagnosticsSnapshot().Connections, "a non-finite payload ends the connection")
	assert.Equal(t, 0, h.buffer.Connections())
	assert.Equal(t, uint64(1), h.metrics.Get(telemetry.KeyConnectionsDropped))
}

func TestHeartbeatTracksRTT(t *testing.T) {
	h := New(hubTestConfig(nil), Deps{})
	resp := mustJoin(t, h)

	now := time.Now()
	rtt, ok := h.Heartbeat(resp.ID, now, now.Add(-50*time.Millisecond).UnixMilli())
	require.True(t, ok)
	assert.InDelta(t, 50, rtt.Milliseconds(), 1)

	_, ok = h.Heartbeat("missing", now, now.UnixMilli())
	assert.False(t, ok)
}

func TestSweepDropsSilentConnections(t *testing.T) {
	var mu sync.Mutex
	current := time.Unix(1_700_000_000, 0)
	clock := logging.ClockFunc(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	})

	h := New(hubTestConfig(nil), Deps{Clock: clock})
	mustJoin(t, h)
	require.Len(t, h.DiagnosticsSnapshot().Connections, 1)

	mu.Lock()
	current = current.Add(h.cfg.Match.DisconnectAfter + time.Second)
	mu.Unlock()
	h.loop.Advance(1)

	assert.Empty(t, h.DiagnosticsSnapshot().Connections)
	assert.Equal(t, 0, h.buffer.Connections())
	assert.Equal(t, uint64(1), h.metrics.Get(telemetry.KeyConnectionsDropped))

	h.loop.Advance(1)
	snap := h.world.LatestSnapshot()
	require.NotNil(t, snap)
	assert.Empty(t, snap.Entities, "the evicted player leaves the world")
}

func TestAttachDeliversKeyframe(t *testing.T) {
	h := New(hubTestConfig(nil), Deps{})
	resp := mustJoin(t, h)
	conn := attachClient(t, h, resp.ID)

	frame := readFrame(t, conn)
	assert.Equal(t, proto.TypeSnapshot, frame["type"])
	assert.Equal(t, true, frame["keyframe"])
}

func TestAttachUnknownConnFails(t *testing.T) {
	h := New(hubTestConfig(nil), Deps{})
	_, _, err := h.Attach("missing", nil)
	require.ErrorIs(t, err, ErrUnknownConn)
}

func TestBroadcastFollowsCadence(t *testing.T) {
	h := New(hubTestConfig(nil), Deps{})
	resp := mustJoin(t, h)
	conn := attachClient(t, h, resp.ID)
	readFrame(t, conn)

	h.loop.Advance(2)

	frame := readFrame(t, conn)
	assert.Equal(t, proto.TypeSnapshot, frame["type"])
	_, keyframed := frame["keyframe"]
	assert.False(t, keyframed, "periodic broadcasts are not keyframes")
	assert.GreaterOrEqual(t, h.metrics.Get(telemetry.KeyBroadcasts), uint64(1))
}

func TestCastRejectReachesOriginOnly(t *testing.T) {
	h := New(hubTestConfig(func(cfg *config.Config) {
		cfg.Match.MaxPlayers = 2
	}), Deps{})
	caster := mustJoin(t, h)
	other := mustJoin(t, h)

	casterConn := attachClient(t, h, caster.ID)
	otherConn := attachClient(t, h, other.ID)
	readFrame(t, casterConn)
	readFrame(t, otherConn)

	h.OnFault(&arena.Fault{
		Class:   arena.FaultAbilityRejection,
		Reason:  "cooldown",
		ConnID:  caster.ID,
		Tick:    40,
		Ability: "fire_bolt",
		RetryAt: 60,
	})

	frame := readFrame(t, casterConn)
	assert.Equal(t, proto.TypeCastReject, frame["type"])
	assert.Equal(t, "fire_bolt", frame["ability"])
	assert.Equal(t, "cooldown", frame["reason"])
	assert.Equal(t, float64(60), frame["retryAtTick"])

	otherConn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := otherConn.ReadMessage()
	assert.Error(t, err, "the other client hears nothing about the failed cast")
}

func TestFatalFaultClosesWithPolicyViolation(t *testing.T) {
	h := New(hubTestConfig(nil), Deps{})
	resp := mustJoin(t, h)
	conn := attachClient(t, h, resp.ID)
	readFrame(t, conn)

	h.OnFault(arena.NewFault(arena.FaultFatalProtocol, 10, resp.ID, arena.CheckTeleport))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
	assert.Empty(t, h.DiagnosticsSnapshot().Connections)
}

func TestCorrectionReachesClient(t *testing.T) {
	h := New(hubTestConfig(nil), Deps{})
	resp := mustJoin(t, h)
	conn := attachClient(t, h, resp.ID)
	readFrame(t, conn)

	h.SendCorrection(resp.ID, arena.Correction{
		Tick:     75,
		EntityID: resp.EntityID,
		InputSeq: 9,
		Pos:      [3]float64{1, 0, 2},
	})

	frame := readFrame(t, conn)
	assert.Equal(t, proto.TypeCorrection, frame["type"])
	assert.Equal(t, resp.EntityID, frame["entityId"])
	assert.Equal(t, float64(9), frame["inputSeq"])
}

func TestDisconnectIsIdempotent(t *testing.T) {
	h := New(hubTestConfig(nil), Deps{})
	resp := mustJoin(t, h)

	h.Disconnect(resp.ID, "client_close")
	h.Disconnect(resp.ID, "client_close")

	assert.Empty(t, h.DiagnosticsSnapshot().Connections)
	assert.Equal(t, 0, h.buffer.Connections())

	h.loop.Advance(1)
	snap := h.world.LatestSnapshot()
	require.NotNil(t, snap)
	assert.Empty(t, snap.Entities)
}

func TestMatchRestartAdoptsStagedConfig(t *testing.T) {
	h := New(hubTestConfig(nil), Deps{})
	mustJoin(t, h)

	staged := hubTestConfig(func(cfg *config.Config) {
		cfg.Simulation.SnapshotEveryTicks = 5
		cfg.Match.PracticeDummies = 2
	})
	require.NoError(t, h.MatchRestart(&staged, 99))
	h.loop.Advance(1)

	h.mu.Lock()
	every := h.cfg.Simulation.SnapshotEveryTicks
	h.mu.Unlock()
	assert.Equal(t, 5, every)

	snap := h.world.LatestSnapshot()
	require.NotNil(t, snap)
	assert.Len(t, snap.Entities, 3, "the player plus two fresh dummies")
}
