package sim

import (
	"sort"
	"sync"

	"github.com/Jamesmykil253/MoBa-sub001/internal/telemetry"
)

// Rejection reasons surfaced by InputBuffer.Enqueue. They are stable strings
// so the network layer can echo them in command rejects and tests can assert
// on them.
const (
	RejectUnknownConn  = "unknown_conn"
	RejectStaleTick    = "stale_tick"
	RejectFutureTick   = "future_tick"
	RejectDuplicateSeq = "duplicate_seq"
	RejectThrottled    = "throttled"
	RejectQueueFull    = "queue_full"
)

type connQueue struct {
	pending        []InputCommand
	lastSeq        uint64
	hasSeq         bool
	lastDrained    uint64
	throttledUntil uint64
}

// InputBuffer holds client commands between network intake and the tick that
// consumes them. Writers are the per-connection read pumps; the only reader
// is the simulation goroutine via DrainForTick, so a single mutex is enough.
type InputBuffer struct {
	mu       sync.Mutex
	conns    map[string]*connQueue
	perConn  int
	window   uint64
	occupied int
	metrics  telemetry.Metrics
}

// NewInputBuffer builds a buffer that keeps at most perConn pending commands
// per connection and accepts commands addressed up to futureWindow ticks
// ahead of the current tick.
func NewInputBuffer(perConn int, futureWindow uint64, metrics telemetry.Metrics) *InputBuffer {
	if perConn <= 0 {
		perConn = 1
	}
	return &InputBuffer{
		conns:   make(map[string]*connQueue),
		perConn: perConn,
		window:  futureWindow,
		metrics: metrics,
	}
}

// Register creates the pending queue for a connection. Commands addressed at
// or before atTick are treated as stale from the start.
func (b *InputBuffer) Register(connID string, atTick uint64) {
	if b == nil || connID == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.conns[connID]; ok {
		return
	}
	b.conns[connID] = &connQueue{
		pending:     make([]InputCommand, 0, b.perConn),
		lastDrained: atTick,
	}
}

// Forget drops a connection's queue and everything pending in it.
func (b *InputBuffer) Forget(connID string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.conns[connID]
	if !ok {
		return
	}
	b.occupied -= len(q.pending)
	delete(b.conns, connID)
	b.storeOccupancy()
}

// Throttle rejects further commands from connID until the given tick. The
// simulation goroutine calls this when a connection accumulates violations.
func (b *InputBuffer) Throttle(connID string, untilTick uint64) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.conns[connID]; ok && untilTick > q.throttledUntil {
		q.throttledUntil = untilTick
	}
}

// Enqueue validates and stores one command. It returns false plus a
// rejection reason when the command cannot be accepted; the connection
// itself stays healthy in every case except an unknown connID. Commands
// without a sequence number skip duplicate tracking.
func (b *InputBuffer) Enqueue(serverTick uint64, cmd InputCommand) (bool, string) {
	if b == nil {
		return false, RejectUnknownConn
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.conns[cmd.ConnID]
	if !ok {
		return false, RejectUnknownConn
	}
	if q.throttledUntil > serverTick {
		return false, RejectThrottled
	}
	if cmd.ClientTick <= q.lastDrained {
		return false, RejectStaleTick
	}
	if cmd.ClientTick > serverTick+b.window {
		return false, RejectFutureTick
	}
	if cmd.Seq > 0 && q.hasSeq && cmd.Seq <= q.lastSeq {
		return false, RejectDuplicateSeq
	}
	if len(q.pending) >= b.perConn {
		return false, RejectQueueFull
	}

	q.pending = append(q.pending, cmd)
	if cmd.Seq > 0 {
		q.lastSeq = cmd.Seq
		q.hasSeq = true
	}
	b.occupied++
	if b.metrics != nil {
		b.metrics.Add(telemetry.KeyInputsEnqueued, 1)
	}
	b.storeOccupancy()
	return true, ""
}

// DrainForTick consumes at most one command per connection for the given
// tick: the newest pending command addressed at or before it. Older pending
// commands for the same window are discarded, commands addressed to future
// ticks stay queued, and every registered connection's consumed watermark
// advances to tick whether or not it contributed a command.
func (b *InputBuffer) DrainForTick(tick uint64) map[string]InputCommand {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var out map[string]InputCommand
	for connID, q := range b.conns {
		q.lastDrained = tick
		if len(q.pending) == 0 {
			continue
		}
		// Pending commands arrive in sequence order per connection, but a
		// sort keeps the newest-wins rule independent of arrival jitter.
		sort.SliceStable(q.pending, func(i, j int) bool {
			if q.pending[i].ClientTick != q.pending[j].ClientTick {
				return q.pending[i].ClientTick < q.pending[j].ClientTick
			}
			return q.pending[i].Seq < q.pending[j].Seq
		})
		eligible := 0
		for eligible < len(q.pending) && q.pending[eligible].ClientTick <= tick {
			eligible++
		}
		if eligible == 0 {
			continue
		}
		chosen := q.pending[eligible-1]
		rest := q.pending[eligible:]
		b.occupied -= eligible
		q.pending = append(q.pending[:0], rest...)
		if out == nil {
			out = make(map[string]InputCommand)
		}
		out[connID] = chosen
		if b.metrics != nil {
			b.metrics.Add(telemetry.KeyInputsDrained, 1)
		}
	}
	b.storeOccupancy()
	return out
}

// Occupancy reports the total number of pending commands across all
// connections.
func (b *InputBuffer) Occupancy() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.occupied
}

// Connections reports how many connections currently hold a queue.
func (b *InputBuffer) Connections() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

func (b *InputBuffer) storeOccupancy() {
	if b.metrics == nil {
		return
	}
	b.metrics.Store(telemetry.KeyBufferOccupancy, uint64(b.occupied))
}
