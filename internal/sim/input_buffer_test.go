package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Jamesmykil253/MoBa-sub001/internal/telemetry"
)

func newTestBuffer(perConn int, window uint64) (*InputBuffer, *telemetry.Counters) {
	counters := telemetry.NewCounters()
	return NewInputBuffer(perConn, window, counters), counters
}

func cmdFor(conn string, seq, tick uint64) InputCommand {
	return InputCommand{ConnID: conn, EntityID: "e-" + conn, Seq: seq, ClientTick: tick}
}

func TestInputBufferEnqueueValidation(t *testing.T) {
	buf, _ := newTestBuffer(2, 3)
	buf.Register("alpha", 10)

	t.Run("unknown connection", func(t *testing.T) {
		ok, reason := buf.Enqueue(10, cmdFor("ghost", 1, 11))
		require.False(t, ok)
		assert.Equal(t, RejectUnknownConn, reason)
	})

	t.Run("stale tick", func(t *testing.T) {
		ok, reason := buf.Enqueue(10, cmdFor("alpha", 1, 10))
		require.False(t, ok)
		assert.Equal(t, RejectStaleTick, reason)
	})

	t.Run("future tick beyond window", func(t *testing.T) {
		ok, reason := buf.Enqueue(10, cmdFor("alpha", 1, 14))
		require.False(t, ok)
		assert.Equal(t, RejectFutureTick, reason)
	})

	t.Run("accepted", func(t *testing.T) {
		ok, reason := buf.Enqueue(10, cmdFor("alpha", 1, 11))
		require.True(t, ok)
		assert.Empty(t, reason)
	})

	t.Run("duplicate sequence", func(t *testing.T) {
		ok, reason := buf.Enqueue(10, cmdFor("alpha", 1, 12))
		require.False(t, ok)
		assert.Equal(t, RejectDuplicateSeq, reason)
	})

	t.Run("queue full", func(t *testing.T) {
		ok, _ := buf.Enqueue(10, cmdFor("alpha", 2, 12))
		require.True(t, ok)
		ok, reason := buf.Enqueue(10, cmdFor("alpha", 3, 13))
		require.False(t, ok)
		assert.Equal(t, RejectQueueFull, reason)
	})
}

func TestInputBufferNewestWinsPerTick(t *testing.T) {
	buf, counters := newTestBuffer(4, 5)
	buf.Register("alpha", 0)
	buf.Register("beta", 0)

	for _, seq := range []uint64{1, 2, 3} {
		ok, reason := buf.Enqueue(1, cmdFor("alpha", seq, seq))
		require.True(t, ok, "seq %d rejected: %s", seq, reason)
	}
	ok, _ := buf.Enqueue(1, cmdFor("beta", 7, 2))
	require.True(t, ok)

	drained := buf.DrainForTick(2)
	require.Len(t, drained, 2)
	assert.Equal(t, uint64(2), drained["alpha"].ClientTick)
	assert.Equal(t, uint64(2), drained["alpha"].Seq)
	assert.Equal(t, uint64(7), drained["beta"].Seq)

	// A command addressed past the drained tick stays queued for later.
	assert.Equal(t, 1, buf.Occupancy())
	drained = buf.DrainForTick(3)
	require.Len(t, drained, 1)
	assert.Equal(t, uint64(3), drained["alpha"].ClientTick)
	assert.Zero(t, buf.Occupancy())
	assert.Equal(t, uint64(3), counters.Get(telemetry.KeyInputsDrained))
}

func TestInputBufferDrainWithNothingPending(t *testing.T) {
	buf, _ := newTestBuffer(4, 3)
	buf.Register("alpha", 0)

	drained := buf.DrainForTick(1)
	assert.Empty(t, drained)
}

func TestInputBufferStaleAfterDrain(t *testing.T) {
	buf, _ := newTestBuffer(4, 5)
	buf.Register("alpha", 0)

	buf.DrainForTick(12)
	ok, reason := buf.Enqueue(12, cmdFor("alpha", 1, 12))
	require.False(t, ok)
	assert.Equal(t, RejectStaleTick, reason)

	ok, _ = buf.Enqueue(12, cmdFor("alpha", 1, 13))
	assert.True(t, ok)
}

func TestInputBufferThrottle(t *testing.T) {
	buf, _ := newTestBuffer(4, 5)
	buf.Register("alpha", 0)
	buf.Throttle("alpha", 20)

	ok, reason := buf.Enqueue(15, cmdFor("alpha", 1, 16))
	require.False(t, ok)
	assert.Equal(t, RejectThrottled, reason)

	ok, _ = buf.Enqueue(20, cmdFor("alpha", 1, 21))
	assert.True(t, ok)
}

func TestInputBufferForget(t *testing.T) {
	buf, _ := newTestBuffer(4, 5)
	buf.Register("alpha", 0)
	ok, _ := buf.Enqueue(1, cmdFor("alpha", 1, 2))
	require.True(t, ok)

	buf.Forget("alpha")
	assert.Zero(t, buf.Occupancy())
	assert.Zero(t, buf.Connections())

	ok, reason := buf.Enqueue(1, cmdFor("alpha", 2, 2))
	require.False(t, ok)
	assert.Equal(t, RejectUnknownConn, reason)
}

func TestInputBufferSeqZeroSkipsDuplicateTracking(t *testing.T) {
	buf, _ := newTestBuffer(4, 5)
	buf.Register("alpha", 0)

	ok, _ := buf.Enqueue(1, cmdFor("alpha", 0, 2))
	require.True(t, ok)
	ok, reason := buf.Enqueue(1, cmdFor("alpha", 0, 3))
	require.True(t, ok, reason)

	// A numbered command after unnumbered ones still dedupes normally.
	ok, _ = buf.Enqueue(1, cmdFor("alpha", 5, 4))
	require.True(t, ok)
	ok, reason = buf.Enqueue(1, cmdFor("alpha", 5, 5))
	require.False(t, ok)
	assert.Equal(t, RejectDuplicateSeq, reason)
}

func TestInputBufferSeqMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		buf, _ := newTestBuffer(8, 64)
		buf.Register("alpha", 0)

		serverTick := uint64(1)
		var lastAccepted uint64
		tracked := false
		for i := 0; i < 32; i++ {
			seq := rapid.Uint64Range(0, 12).Draw(t, "seq")
			tick := serverTick + rapid.Uint64Range(1, 4).Draw(t, "ahead")
			ok, _ := buf.Enqueue(serverTick, cmdFor("alpha", seq, tick))
			if ok && seq > 0 {
				if tracked && seq <= lastAccepted {
					t.Fatalf("accepted non-increasing seq %d after %d", seq, lastAccepted)
				}
				lastAccepted = seq
				tracked = true
			}
			if rapid.Bool().Draw(t, "advance") {
				serverTick++
				buf.DrainForTick(serverTick)
			}
		}
	})
}
