package sim

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Jamesmykil253/MoBa-sub001/internal/telemetry"
)

// LoopConfig controls the timing of the simulation loop.
type LoopConfig struct {
	// TickInterval is the fixed simulation step. Every step advances the
	// world by exactly this much regardless of wall-clock jitter.
	TickInterval time.Duration

	// CatchupMaxTicks caps how many steps a single wakeup may run when the
	// loop falls behind. Backlog beyond the cap is discarded so a stall
	// cannot snowball.
	CatchupMaxTicks int

	// OverrunWarnThreshold is the number of consecutive over-budget steps
	// before OnOverrun fires.
	OverrunWarnThreshold int
}

func (c LoopConfig) normalized() LoopConfig {
	if c.TickInterval <= 0 {
		c.TickInterval = 20 * time.Millisecond
	}
	if c.CatchupMaxTicks < 1 {
		c.CatchupMaxTicks = 1
	}
	if c.OverrunWarnThreshold < 1 {
		c.OverrunWarnThreshold = 1
	}
	return c
}

// LoopStepResult describes one completed simulation step.
type LoopStepResult struct {
	Tick     uint64
	Now      time.Time
	Delta    float64
	Duration time.Duration
	Budget   time.Duration
	Inputs   int

	// BatchRemaining is how many catch-up steps follow this one inside the
	// same wakeup. Subscribers that fan state out can skip intermediate
	// steps and publish only when it reaches zero.
	BatchRemaining int
}

// LoopHooks lets the host observe the loop without the loop knowing about
// networking or persistence. All hooks run on the simulation goroutine and
// every field is optional.
type LoopHooks struct {
	// Prepare runs once before the first step of Run.
	Prepare func()

	// AfterStep runs after every completed step.
	AfterStep func(result LoopStepResult)

	// OnCommandDrop runs when an enqueued command is rejected.
	OnCommandDrop func(reason string, cmd InputCommand)

	// OnOverrun runs when OverrunWarnThreshold consecutive steps exceeded
	// the tick budget.
	OnOverrun func(result LoopStepResult, consecutive int)

	// OnCatchupClamp runs when backlog beyond CatchupMaxTicks is discarded.
	OnCatchupClamp func(discarded, maxSteps int)
}

// Loop owns the fixed-tick cadence of the simulation. It drains the input
// buffer and drives the engine core from a single goroutine; everything else
// reaches the simulation through Enqueue or through state the core publishes
// itself.
type Loop struct {
	core   EngineCore
	buffer *InputBuffer
	cfg    LoopConfig
	hooks  LoopHooks
	deps   Deps

	tick    atomic.Uint64
	running atomic.Bool

	dropMu     sync.Mutex
	dropCounts map[string]uint64

	newTicker func(d time.Duration) (<-chan time.Time, func())
}

// NewLoop wires a loop around the given core and buffer.
func NewLoop(core EngineCore, buffer *InputBuffer, cfg LoopConfig, hooks LoopHooks, deps Deps) *Loop {
	return &Loop{
		core:       core,
		buffer:     buffer,
		cfg:        cfg.normalized(),
		hooks:      hooks,
		deps:       deps.normalized(),
		dropCounts: make(map[string]uint64),
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// CurrentTick reports the most recently completed tick. Safe from any
// goroutine.
func (l *Loop) CurrentTick() uint64 {
	if l == nil {
		return 0
	}
	return l.tick.Load()
}

// Config returns the normalized loop configuration.
func (l *Loop) Config() LoopConfig {
	return l.cfg
}

// Enqueue hands a command to the input buffer, stamping the tick at which it
// was received. Rejections are reported through metrics, backpressure logs
// and the OnCommandDrop hook; the caller gets the reason back so it can echo
// it to the client.
func (l *Loop) Enqueue(cmd InputCommand) (bool, string) {
	if l == nil || l.buffer == nil {
		return false, RejectUnknownConn
	}
	cmd.ReceivedTick = l.tick.Load()
	ok, reason := l.buffer.Enqueue(cmd.ReceivedTick, cmd)
	if ok {
		return true, ""
	}
	l.deps.Metrics.Add(telemetry.KeyInputsRejected, 1)
	l.reportDrop(reason, cmd)
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	return false, reason
}

// reportDrop logs dropped commands per connection with power-of-two
// sampling so a misbehaving client cannot flood the log.
func (l *Loop) reportDrop(reason string, cmd InputCommand) {
	l.dropMu.Lock()
	l.dropCounts[cmd.ConnID]++
	count := l.dropCounts[cmd.ConnID]
	l.dropMu.Unlock()
	if count&(count-1) != 0 {
		return
	}
	l.deps.Logger.Printf("[backpressure] dropping input conn=%s reason=%s count=%d", cmd.ConnID, reason, count)
}

// Run drives the loop until stop closes. Wall-clock time is folded into an
// accumulator and consumed in fixed TickInterval slices, so a slow wakeup
// produces several fixed steps rather than one long one.
func (l *Loop) Run(stop <-chan struct{}) {
	if l == nil || !l.running.CompareAndSwap(false, true) {
		return
	}
	defer l.running.Store(false)

	last := l.deps.Clock.Now()
	if l.hooks.Prepare != nil {
		l.hooks.Prepare()
	}

	tickC, stopTicker := l.newTicker(l.cfg.TickInterval)
	defer stopTicker()

	var acc time.Duration
	overruns := 0

	for {
		select {
		case <-stop:
			return
		case <-tickC:
			now := l.deps.Clock.Now()
			acc += now.Sub(last)
			last = now

			steps := int(acc / l.cfg.TickInterval)
			if steps == 0 {
				continue
			}
			acc -= time.Duration(steps) * l.cfg.TickInterval
			if steps > l.cfg.CatchupMaxTicks {
				discarded := steps - l.cfg.CatchupMaxTicks
				steps = l.cfg.CatchupMaxTicks
				acc = 0
				l.deps.Metrics.Add(telemetry.KeyCatchupSteps, uint64(discarded))
				if l.hooks.OnCatchupClamp != nil {
					l.hooks.OnCatchupClamp(discarded, l.cfg.CatchupMaxTicks)
				}
			}

			for i := 0; i < steps; i++ {
				res := l.step(steps - i - 1)
				if res.Duration > res.Budget {
					overruns++
					l.deps.Metrics.Add(telemetry.KeyTickOverruns, 1)
					if overruns >= l.cfg.OverrunWarnThreshold && l.hooks.OnOverrun != nil {
						l.hooks.OnOverrun(res, overruns)
					}
				} else {
					overruns = 0
				}
			}
		}
	}
}

// Advance runs the given number of steps synchronously on the caller's
// goroutine. It exists for tests and offline tools; it must not be mixed
// with a concurrently running Run.
func (l *Loop) Advance(steps int) LoopStepResult {
	var res LoopStepResult
	for i := 0; i < steps; i++ {
		res = l.step(0)
	}
	return res
}

func (l *Loop) step(batchRemaining int) LoopStepResult {
	tick := l.tick.Add(1)
	start := l.deps.Clock.Now()
	inputs := l.buffer.DrainForTick(tick)
	l.core.Step(TickContext{Tick: tick, Now: start, Delta: l.cfg.TickInterval.Seconds()}, inputs)
	duration := l.deps.Clock.Now().Sub(start)

	res := LoopStepResult{
		Tick:           tick,
		Now:            start,
		Delta:          l.cfg.TickInterval.Seconds(),
		Duration:       duration,
		Budget:         l.cfg.TickInterval,
		Inputs:         len(inputs),
		BatchRemaining: batchRemaining,
	}
	l.deps.Metrics.Add(telemetry.KeyTicks, 1)
	l.deps.Metrics.Store(telemetry.KeyLastTickMillis, uint64(duration.Milliseconds()))
	if l.hooks.AfterStep != nil {
		l.hooks.AfterStep(res)
	}
	return res
}
