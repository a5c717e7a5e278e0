package telemetry

import "sync"

// Well-known counter keys recorded by the simulation and transport layers.
const (
	KeyTicks              = "sim_ticks_total"
	KeyTickOverruns       = "sim_tick_overruns_total"
	KeyCatchupSteps       = "sim_catchup_steps_total"
	KeyInputsEnqueued     = "input_enqueued_total"
	KeyInputsRejected     = "input_rejected_total"
	KeyInputsDrained      = "input_drained_total"
	KeyViolations         = "anticheat_violations_total"
	KeyCorrectionsSent    = "reconcile_corrections_total"
	KeyBroadcasts         = "net_broadcasts_total"
	KeyBroadcastBytes     = "net_broadcast_bytes_total"
	KeyFramesDropped      = "net_frames_dropped_total"
	KeyBufferOccupancy    = "input_buffer_occupancy"
	KeyProjectilesLive    = "combat_projectiles_live"
	KeyLastTickMillis     = "sim_last_tick_millis"
	KeyEventsDropped      = "logging_events_dropped_total"
	KeyConnectionsDropped = "net_connections_dropped_total"
)

// Counters is a keyed metrics store shared across goroutines. Add
// accumulates, Store overwrites (gauge semantics); Snapshot copies the
// merged view for the diagnostics endpoint.
type Counters struct {
	mu     sync.RWMutex
	values map[string]uint64
}

func NewCounters() *Counters {
	return &Counters{values: make(map[string]uint64)}
}

func (c *Counters) Add(key string, delta uint64) {
	if c == nil || key == "" {
		return
	}
	c.mu.Lock()
	c.values[key] += delta
	c.mu.Unlock()
}

func (c *Counters) Store(key string, value uint64) {
	if c == nil || key == "" {
		return
	}
	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
}

func (c *Counters) Get(key string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[key]
}

func (c *Counters) Snapshot() map[string]uint64 {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	copied := make(map[string]uint64, len(c.values))
	for k, v := range c.values {
		copied[k] = v
	}
	return copied
}
