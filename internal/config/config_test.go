package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 50, cfg.Simulation.TickRate)
	assert.Equal(t, 20*time.Millisecond, cfg.Simulation.TickInterval())
	assert.InDelta(t, 0.02, cfg.Simulation.TickDelta(), 1e-12)
	assert.Contains(t, cfg.Combat.Abilities, "melee_strike")
	assert.Contains(t, cfg.Combat.Abilities, "arc_burst")
	assert.NotEmpty(t, cfg.Match.SpawnPoints)
}

func TestServerAddr(t *testing.T) {
	cfg := Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 9000
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arena.yaml")
	err := os.WriteFile(path, []byte(`
server:
  host: 127.0.0.1
  port: 9090
simulation:
  tick_rate: 25
  seed: 42
movement:
  max_speed: 10
anticheat:
  disconnect_threshold: 5
`), 0o644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Simulation.TickRate)
	assert.Equal(t, int64(42), cfg.Simulation.Seed)
	assert.Equal(t, 10.0, cfg.Movement.MaxSpeed)
	assert.Equal(t, 5, cfg.AntiCheat.DisconnectThreshold)
	// Untouched sections keep their defaults.
	assert.Equal(t, 100, cfg.Simulation.RetentionTicks)
	assert.Contains(t, cfg.Combat.Abilities, "fire_bolt")
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arena.yaml")
	err := os.WriteFile(path, []byte(`
simulation:
  tick_rate: 0
`), 0o644)
	require.NoError(t, err)

	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick_rate")
}

func TestValidateTickRateRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := Default()
		cfg.Simulation.TickRate = rapid.IntRange(1, 240).Draw(t, "tick_rate")
		if err := cfg.Validate(); err != nil {
			t.Fatalf("valid tick rate rejected: %v", err)
		}
	})

	rapid.Check(t, func(t *rapid.T) {
		cfg := Default()
		cfg.Simulation.TickRate = rapid.OneOf(
			rapid.IntRange(-100, 0),
			rapid.IntRange(241, 10000),
		).Draw(t, "tick_rate")
		if err := cfg.Validate(); err == nil {
			t.Fatalf("out-of-range tick rate accepted: %d", cfg.Simulation.TickRate)
		}
	})
}

func TestValidateSpeedTolerance(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := Default()
		cfg.AntiCheat.SpeedTolerance = rapid.Float64Range(0, 0.99).Draw(t, "tolerance")
		if err := cfg.Validate(); err == nil {
			t.Fatalf("tolerance below 1 accepted: %g", cfg.AntiCheat.SpeedTolerance)
		}
	})
}

func TestTickIntervalZeroRate(t *testing.T) {
	var sim SimulationConfig
	assert.Equal(t, time.Duration(0), sim.TickInterval())
	assert.Equal(t, 0.0, sim.TickDelta())
}
