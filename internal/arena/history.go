package arena

import (
	"github.com/go-gl/mathgl/mgl64"
)

type historyFrame struct {
	tick      uint64
	positions map[string]mgl64.Vec3
}

// PositionHistory is a ring of authoritative per-tick entity positions. Lag
// compensation rewinds combat queries against it and reconciliation checks
// client claims against it. Queries outside the retained window clamp to
// the nearest retained tick instead of failing.
type PositionHistory struct {
	frames []historyFrame
	newest uint64
	count  int
}

// NewPositionHistory retains the given number of ticks.
func NewPositionHistory(retention int) *PositionHistory {
	if retention < 1 {
		retention = 1
	}
	return &PositionHistory{frames: make([]historyFrame, retention)}
}

// Record stores the positions for one tick. It takes ownership of the map.
// Ticks must be recorded in increasing order; the ring overwrites the
// retention-oldest frame.
func (h *PositionHistory) Record(tick uint64, positions map[string]mgl64.Vec3) {
	h.frames[tick%uint64(len(h.frames))] = historyFrame{tick: tick, positions: positions}
	h.newest = tick
	if h.count < len(h.frames) {
		h.count++
	}
}

// Bounds reports the oldest and newest retained ticks.
func (h *PositionHistory) Bounds() (oldest, newest uint64, ok bool) {
	if h.count == 0 {
		return 0, 0, false
	}
	newest = h.newest
	oldest = newest - uint64(h.count-1)
	return oldest, newest, true
}

// At returns the positions recorded at the given tick, clamped into the
// retained window. The second return is the tick actually used.
func (h *PositionHistory) At(tick uint64) (map[string]mgl64.Vec3, uint64, bool) {
	oldest, newest, ok := h.Bounds()
	if !ok {
		return nil, 0, false
	}
	if tick < oldest {
		tick = oldest
	}
	if tick > newest {
		tick = newest
	}
	frame := h.frames[tick%uint64(len(h.frames))]
	if frame.tick != tick {
		return nil, 0, false
	}
	return frame.positions, tick, true
}

// EntityAt returns one entity's position at the given tick, clamped into
// the retained window.
func (h *PositionHistory) EntityAt(tick uint64, id string) (mgl64.Vec3, uint64, bool) {
	positions, used, ok := h.At(tick)
	if !ok {
		return mgl64.Vec3{}, 0, false
	}
	pos, present := positions[id]
	if !present {
		return mgl64.Vec3{}, 0, false
	}
	return pos, used, true
}

// Reset discards all retained frames.
func (h *PositionHistory) Reset() {
	for i := range h.frames {
		h.frames[i] = historyFrame{}
	}
	h.newest = 0
	h.count = 0
}
