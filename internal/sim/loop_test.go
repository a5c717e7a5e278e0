package sim

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jamesmykil253/MoBa-sub001/internal/telemetry"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// loopHarness runs a loop against a manual clock and an injected ticker
// channel so tests control time exactly.
type loopHarness struct {
	t       *testing.T
	loop    *Loop
	buffer  *InputBuffer
	clock   *manualClock
	metrics *telemetry.Counters

	tickC   chan time.Time
	steps   chan TickContext
	inputs  chan map[string]InputCommand
	results chan LoopStepResult

	stop chan struct{}
	done chan struct{}

	// stepCost is how far the clock jumps inside each engine step,
	// simulating simulation work that eats into the tick budget.
	stepCost atomic.Int64
}

func newLoopHarness(t *testing.T, cfg LoopConfig, hooks LoopHooks) *loopHarness {
	t.Helper()
	h := &loopHarness{
		t:       t,
		clock:   &manualClock{now: time.Unix(1000, 0)},
		metrics: telemetry.NewCounters(),
		tickC:   make(chan time.Time),
		steps:   make(chan TickContext, 64),
		inputs:  make(chan map[string]InputCommand, 64),
		results: make(chan LoopStepResult, 64),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	h.buffer = NewInputBuffer(8, 16, h.metrics)

	core := EngineCoreFunc(func(ctx TickContext, ins map[string]InputCommand) {
		if cost := h.stepCost.Load(); cost > 0 {
			h.clock.Advance(time.Duration(cost))
		}
		h.steps <- ctx
		h.inputs <- ins
	})

	ready := make(chan struct{})
	prev := hooks.Prepare
	hooks.Prepare = func() {
		if prev != nil {
			prev()
		}
		close(ready)
	}
	afterPrev := hooks.AfterStep
	hooks.AfterStep = func(res LoopStepResult) {
		if afterPrev != nil {
			afterPrev(res)
		}
		h.results <- res
	}

	h.loop = NewLoop(core, h.buffer, cfg, hooks, Deps{Clock: h.clock, Metrics: h.metrics})
	h.loop.newTicker = func(time.Duration) (<-chan time.Time, func()) {
		return h.tickC, func() {}
	}

	go func() {
		h.loop.Run(h.stop)
		close(h.done)
	}()
	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("loop never prepared")
	}
	t.Cleanup(func() {
		close(h.stop)
		select {
		case <-h.done:
		case <-time.After(time.Second):
			t.Fatal("loop did not stop")
		}
	})
	return h
}

// wakeup advances the manual clock and delivers one ticker wakeup.
func (h *loopHarness) wakeup(advance time.Duration) {
	h.t.Helper()
	h.clock.Advance(advance)
	select {
	case h.tickC <- h.clock.Now():
	case <-time.After(time.Second):
		h.t.Fatal("loop stopped receiving wakeups")
	}
}

func (h *loopHarness) nextStep() (TickContext, map[string]InputCommand) {
	h.t.Helper()
	select {
	case ctx := <-h.steps:
		return ctx, <-h.inputs
	case <-time.After(time.Second):
		h.t.Fatal("expected a simulation step")
		return TickContext{}, nil
	}
}

func (h *loopHarness) expectNoStep() {
	h.t.Helper()
	select {
	case ctx := <-h.steps:
		h.t.Fatalf("unexpected step at tick %d", ctx.Tick)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestLoopRunsFixedSteps(t *testing.T) {
	h := newLoopHarness(t, LoopConfig{TickInterval: 20 * time.Millisecond, CatchupMaxTicks: 5}, LoopHooks{})

	h.wakeup(20 * time.Millisecond)
	ctx, _ := h.nextStep()
	assert.Equal(t, uint64(1), ctx.Tick)
	assert.InDelta(t, 0.02, ctx.Delta, 1e-12)

	h.wakeup(20 * time.Millisecond)
	ctx, _ = h.nextStep()
	assert.Equal(t, uint64(2), ctx.Tick)

	// A wakeup with less than a full interval accumulated runs nothing.
	h.wakeup(5 * time.Millisecond)
	h.expectNoStep()
	h.wakeup(15 * time.Millisecond)
	ctx, _ = h.nextStep()
	assert.Equal(t, uint64(3), ctx.Tick)
}

func TestLoopCatchesUpWithFixedDelta(t *testing.T) {
	h := newLoopHarness(t, LoopConfig{TickInterval: 20 * time.Millisecond, CatchupMaxTicks: 5}, LoopHooks{})

	h.wakeup(60 * time.Millisecond)
	for want := uint64(1); want <= 3; want++ {
		ctx, _ := h.nextStep()
		assert.Equal(t, want, ctx.Tick)
		assert.InDelta(t, 0.02, ctx.Delta, 1e-12, "catch-up steps keep the fixed delta")
	}
	h.expectNoStep()

	remaining := []int{}
	for i := 0; i < 3; i++ {
		res := <-h.results
		remaining = append(remaining, res.BatchRemaining)
	}
	assert.Equal(t, []int{2, 1, 0}, remaining)
}

func TestLoopClampsCatchupBacklog(t *testing.T) {
	var clamped atomic.Int64
	var clampMax atomic.Int64
	h := newLoopHarness(t, LoopConfig{TickInterval: 20 * time.Millisecond, CatchupMaxTicks: 5}, LoopHooks{
		OnCatchupClamp: func(discarded, maxSteps int) {
			clamped.Store(int64(discarded))
			clampMax.Store(int64(maxSteps))
		},
	})

	h.wakeup(200 * time.Millisecond)
	for want := uint64(1); want <= 5; want++ {
		ctx, _ := h.nextStep()
		assert.Equal(t, want, ctx.Tick)
	}
	h.expectNoStep()
	assert.Equal(t, int64(5), clamped.Load())
	assert.Equal(t, int64(5), clampMax.Load())
	assert.Equal(t, uint64(5), h.metrics.Get(telemetry.KeyCatchupSteps))

	// The discarded backlog does not leak into the next wakeup.
	h.wakeup(20 * time.Millisecond)
	ctx, _ := h.nextStep()
	assert.Equal(t, uint64(6), ctx.Tick)
}

func TestLoopOverrunWarning(t *testing.T) {
	type overrun struct {
		tick        uint64
		consecutive int
	}
	var mu sync.Mutex
	var seen []overrun
	h := newLoopHarness(t, LoopConfig{TickInterval: 20 * time.Millisecond, CatchupMaxTicks: 1, OverrunWarnThreshold: 2}, LoopHooks{
		OnOverrun: func(res LoopStepResult, consecutive int) {
			mu.Lock()
			seen = append(seen, overrun{tick: res.Tick, consecutive: consecutive})
			mu.Unlock()
		},
	})

	h.stepCost.Store(int64(30 * time.Millisecond))
	h.wakeup(20 * time.Millisecond)
	h.nextStep()
	// The slow step pushed the clock past a full interval on its own.
	h.wakeup(0)
	h.nextStep()

	mu.Lock()
	require.Len(t, seen, 1, "warning fires only once the streak reaches the threshold")
	assert.Equal(t, uint64(2), seen[0].tick)
	assert.Equal(t, 2, seen[0].consecutive)
	mu.Unlock()
	assert.Equal(t, uint64(2), h.metrics.Get(telemetry.KeyTickOverruns))

	// One in-budget step resets the streak, so a later slow step starts over.
	h.stepCost.Store(0)
	h.wakeup(20 * time.Millisecond)
	h.nextStep()
	h.stepCost.Store(int64(30 * time.Millisecond))
	h.wakeup(20 * time.Millisecond)
	h.nextStep()

	mu.Lock()
	assert.Len(t, seen, 1)
	mu.Unlock()
}

func TestLoopDrainsInputsIntoSteps(t *testing.T) {
	counters := telemetry.NewCounters()
	buffer := NewInputBuffer(8, 16, counters)
	buffer.Register("alpha", 0)

	var got []map[string]InputCommand
	core := EngineCoreFunc(func(_ TickContext, ins map[string]InputCommand) {
		got = append(got, ins)
	})
	loop := NewLoop(core, buffer, LoopConfig{TickInterval: 20 * time.Millisecond}, LoopHooks{}, Deps{Metrics: counters})

	ok, reason := loop.Enqueue(InputCommand{ConnID: "alpha", Seq: 1, ClientTick: 1, Jump: true})
	require.True(t, ok, reason)

	res := loop.Advance(1)
	assert.Equal(t, uint64(1), res.Tick)
	assert.Equal(t, 1, res.Inputs)
	require.Len(t, got, 1)
	require.Contains(t, got[0], "alpha")
	assert.True(t, got[0]["alpha"].Jump)

	res = loop.Advance(1)
	assert.Equal(t, uint64(2), res.Tick)
	assert.Zero(t, res.Inputs)
}

func TestLoopEnqueueReportsDrops(t *testing.T) {
	counters := telemetry.NewCounters()
	buffer := NewInputBuffer(1, 3, counters)
	buffer.Register("alpha", 0)

	var mu sync.Mutex
	drops := map[string]int{}
	loop := NewLoop(EngineCoreFunc(func(TickContext, map[string]InputCommand) {}), buffer,
		LoopConfig{TickInterval: 20 * time.Millisecond}, LoopHooks{
			OnCommandDrop: func(reason string, _ InputCommand) {
				mu.Lock()
				drops[reason]++
				mu.Unlock()
			},
		}, Deps{Metrics: counters, Logger: telemetry.LoggerFunc(func(string, ...any) {})})

	ok, reason := loop.Enqueue(InputCommand{ConnID: "ghost", Seq: 1, ClientTick: 1})
	require.False(t, ok)
	assert.Equal(t, RejectUnknownConn, reason)

	ok, _ = loop.Enqueue(InputCommand{ConnID: "alpha", Seq: 1, ClientTick: 1})
	require.True(t, ok)
	ok, reason = loop.Enqueue(InputCommand{ConnID: "alpha", Seq: 2, ClientTick: 2})
	require.False(t, ok)
	assert.Equal(t, RejectQueueFull, reason)

	mu.Lock()
	assert.Equal(t, map[string]int{RejectUnknownConn: 1, RejectQueueFull: 1}, drops)
	mu.Unlock()
	assert.Equal(t, uint64(2), counters.Get(telemetry.KeyInputsRejected))
}
