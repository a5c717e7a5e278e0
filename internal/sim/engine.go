package sim

import "time"

// TickContext carries the timing of one fixed simulation step. Delta is
// always the configured tick interval in seconds, never the wall-clock time
// elapsed since the previous step.
type TickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

// EngineCore is the surface the loop drives once per simulation tick. The
// loop is the only caller of Step, so implementations may mutate their state
// without locking.
type EngineCore interface {
	Step(ctx TickContext, inputs map[string]InputCommand)
}

// EngineCoreFunc adapts a plain function to EngineCore.
type EngineCoreFunc func(ctx TickContext, inputs map[string]InputCommand)

// Step invokes the function.
func (f EngineCoreFunc) Step(ctx TickContext, inputs map[string]InputCommand) {
	f(ctx, inputs)
}
