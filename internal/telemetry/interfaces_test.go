package telemetry

import (
	"bytes"
	"log"
	"testing"
)

func TestWrapLogger(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		logger := WrapLogger(nil)
		logger.Printf("ignored %d", 42)
	})

	t.Run("forwards to logger", func(t *testing.T) {
		var buf bytes.Buffer
		base := log.New(&buf, "", 0)
		logger := WrapLogger(base)
		logger.Printf("hello %s", "world")
		if got := buf.String(); got != "hello world\n" {
			t.Fatalf("unexpected log output: %q", got)
		}
	})
}

func TestCounters(t *testing.T) {
	counters := NewCounters()

	counters.Add(KeyTicks, 2)
	counters.Store(KeyBufferOccupancy, 5)
	counters.Add(KeyTicks, 3)

	snapshot := counters.Snapshot()
	if got := snapshot[KeyTicks]; got != 5 {
		t.Fatalf("unexpected counter value: %d", got)
	}
	if got := snapshot[KeyBufferOccupancy]; got != 5 {
		t.Fatalf("unexpected gauge value: %d", got)
	}

	counters.Store(KeyBufferOccupancy, 1)
	if got := counters.Get(KeyBufferOccupancy); got != 1 {
		t.Fatalf("store should overwrite, got %d", got)
	}

	// Nil receivers must not panic.
	var nilCounters *Counters
	nilCounters.Add("ignored", 1)
	nilCounters.Store("ignored", 1)
	if nilCounters.Snapshot() != nil {
		t.Fatalf("nil snapshot should be nil")
	}
}
