// Package config provides Viper-based configuration loading for the arena server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP/websocket listener settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SimulationConfig holds the fixed-step loop settings.
type SimulationConfig struct {
	// TickRate is the number of simulation steps per second.
	TickRate int `mapstructure:"tick_rate"`
	// CatchupMaxTicks bounds how many catch-up steps a single wakeup may
	// run before accumulated time is discarded.
	CatchupMaxTicks int `mapstructure:"catchup_max_ticks"`
	// OverrunWarnThreshold is the number of consecutive over-budget ticks
	// tolerated before a capacity warning is published.
	OverrunWarnThreshold int `mapstructure:"overrun_warn_threshold"`
	// FutureWindowTicks is how far ahead of the server tick a client
	// command may claim to be before it is rejected.
	FutureWindowTicks int `mapstructure:"future_window_ticks"`
	// PendingInputsPerConn caps the per-connection queue of undrained commands.
	PendingInputsPerConn int `mapstructure:"pending_inputs_per_conn"`
	// RetentionTicks is the snapshot history window used for lag
	// compensation and reconciliation.
	RetentionTicks int `mapstructure:"retention_ticks"`
	// SnapshotEveryTicks is the broadcast cadence; 1 broadcasts every tick.
	SnapshotEveryTicks int `mapstructure:"snapshot_every_ticks"`
	// Seed feeds the per-subsystem deterministic RNGs.
	Seed int64 `mapstructure:"seed"`
}

// TickInterval returns the wall-clock budget of one tick.
func (s SimulationConfig) TickInterval() time.Duration {
	if s.TickRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(s.TickRate)
}

// TickDelta returns the fixed integration step in seconds.
func (s SimulationConfig) TickDelta() float64 {
	if s.TickRate <= 0 {
		return 0
	}
	return 1.0 / float64(s.TickRate)
}

// MovementConfig holds the kinematic constants shared by server and
// predicting clients.
type MovementConfig struct {
	// MaxSpeed is the horizontal speed in units per second.
	MaxSpeed float64 `mapstructure:"max_speed"`
	// Gravity is the downward acceleration in units per second squared.
	Gravity float64 `mapstructure:"gravity"`
	// JumpImpulse is the instantaneous upward velocity applied on jump.
	JumpImpulse float64 `mapstructure:"jump_impulse"`
	// MaxVelocity hard-clamps the magnitude of the final velocity vector.
	MaxVelocity float64 `mapstructure:"max_velocity"`
	// ArenaHalfExtent bounds the playable square on X/Z.
	ArenaHalfExtent float64 `mapstructure:"arena_half_extent"`
	// EntityRadius is the collision radius used by spatial queries.
	EntityRadius float64 `mapstructure:"entity_radius"`
}

// AntiCheatConfig holds validation bounds and penalty escalation settings.
type AntiCheatConfig struct {
	// SpeedTolerance scales MaxSpeed into the accepted per-tick bound.
	SpeedTolerance float64 `mapstructure:"speed_tolerance"`
	// TeleportCap is the per-tick displacement treated as a warp when no
	// server-initiated teleport is pending.
	TeleportCap float64 `mapstructure:"teleport_cap"`
	// TeleportGraceTicks exempts displacement checks after a server teleport.
	TeleportGraceTicks int `mapstructure:"teleport_grace_ticks"`
	// PenaltyDecayEvery awards one penalty forgiveness per this many clean ticks.
	PenaltyDecayEvery int `mapstructure:"penalty_decay_every"`
	// ThrottleBaseTicks seeds the exponential input-suppression backoff.
	ThrottleBaseTicks int `mapstructure:"throttle_base_ticks"`
	// ThrottleMaxShift caps the backoff exponent.
	ThrottleMaxShift int `mapstructure:"throttle_max_shift"`
	// DisconnectThreshold is the penalty count that escalates to a fatal
	// protocol violation.
	DisconnectThreshold int `mapstructure:"disconnect_threshold"`
}

// ReconcileConfig tunes client prediction reconciliation.
type ReconcileConfig struct {
	// PositionEpsilon is the divergence between a claimed position and the
	// authoritative history that triggers a correction push.
	PositionEpsilon float64 `mapstructure:"position_epsilon"`
	// MinResendTicks spaces repeated corrections to the same connection.
	MinResendTicks uint64 `mapstructure:"min_resend_ticks"`
}

// AbilityConfig describes one castable ability.
type AbilityConfig struct {
	// Kind is "melee", "hitscan", or "projectile".
	Kind string `mapstructure:"kind"`
	// DamageType selects the damage strategy: "physical", "magical", "hybrid".
	DamageType string `mapstructure:"damage_type"`
	Damage     float64 `mapstructure:"damage"`
	// Range is the reach in units (melee arc length, hitscan ray, or
	// projectile travel ceiling).
	Range float64 `mapstructure:"range"`
	// Radius is the hit acceptance radius around the target line.
	Radius float64 `mapstructure:"radius"`
	// CooldownTicks gates recast; CastTicks locks the caster's state.
	CooldownTicks uint64 `mapstructure:"cooldown_ticks"`
	CastTicks     uint64 `mapstructure:"cast_ticks"`
	// ProjectileSpeed and ProjectileLifetimeTicks apply to kind "projectile".
	ProjectileSpeed         float64 `mapstructure:"projectile_speed"`
	ProjectileLifetimeTicks uint64  `mapstructure:"projectile_lifetime_ticks"`
	// CritChance is the per-cast critical probability in [0, 1).
	CritChance float64 `mapstructure:"crit_chance"`
	// CritMultiplier scales damage on a critical hit.
	CritMultiplier float64 `mapstructure:"crit_multiplier"`
	// StunTicks locks hit targets in the stunned state; zero means no stun.
	StunTicks uint64 `mapstructure:"stun_ticks"`
}

// BaseStatsConfig seeds every spawned entity of one kind.
type BaseStatsConfig struct {
	MaxHealth   float64 `mapstructure:"max_health"`
	AttackPower float64 `mapstructure:"attack_power"`
	SpellPower  float64 `mapstructure:"spell_power"`
	Armor       float64 `mapstructure:"armor"`
	Ward        float64 `mapstructure:"ward"`
}

// CombatConfig holds the ability table and projectile pool sizing.
type CombatConfig struct {
	Abilities map[string]AbilityConfig `mapstructure:"abilities"`
	// ProjectileCapacity fixes the projectile arena size for the match.
	ProjectileCapacity int `mapstructure:"projectile_capacity"`
	// AttackStateTicks locks the basic-attack state when an ability does
	// not override it.
	AttackStateTicks uint64 `mapstructure:"attack_state_ticks"`

	PlayerStats BaseStatsConfig `mapstructure:"player_stats"`
	DummyStats  BaseStatsConfig `mapstructure:"dummy_stats"`
}

// SpawnPoint is a server-configured teleport-eligible destination.
type SpawnPoint struct {
	X float64 `mapstructure:"x"`
	Y float64 `mapstructure:"y"`
	Z float64 `mapstructure:"z"`
}

// MatchConfig holds per-match lifecycle settings.
type MatchConfig struct {
	MaxPlayers        int `mapstructure:"max_players"`
	RespawnDelayTicks uint64 `mapstructure:"respawn_delay_ticks"`
	// SpawnPoints is the fixed list of valid spawn/teleport destinations;
	// it is never discovered from world contents at runtime.
	SpawnPoints []SpawnPoint `mapstructure:"spawn_points"`
	// PracticeDummies is the number of ownerless target entities placed
	// in the arena.
	PracticeDummies int `mapstructure:"practice_dummies"`
	// HeartbeatInterval and DisconnectAfter govern connection liveness.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	DisconnectAfter   time.Duration `mapstructure:"disconnect_after"`
}

// LoggingConfig holds process log settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// EventsConfig holds event bus routing settings.
type EventsConfig struct {
	Sinks []string `mapstructure:"sinks"`
	// BufferSize is the router queue depth before events drop.
	BufferSize int `mapstructure:"buffer_size"`
	// MinSeverity filters events below "debug", "info", "warn", "error".
	MinSeverity string `mapstructure:"min_severity"`
	// JSONLPath receives newline-delimited events when the jsonl sink is enabled.
	JSONLPath string `mapstructure:"jsonl_path"`
}

// SentryConfig holds optional crash reporting settings.
type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Movement   MovementConfig   `mapstructure:"movement"`
	AntiCheat  AntiCheatConfig  `mapstructure:"anticheat"`
	Reconcile  ReconcileConfig  `mapstructure:"reconcile"`
	Combat     CombatConfig     `mapstructure:"combat"`
	Match      MatchConfig      `mapstructure:"match"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Events     EventsConfig     `mapstructure:"events"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
}

// Validate checks all configuration invariants.
//
// Postcondition: returns nil if the configuration is valid, or an error
// describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSimulation(c.Simulation); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateMovement(c.Movement); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateAntiCheat(c.AntiCheat); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateReconcile(c.Reconcile); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateCombat(c.Combat); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateMatch(c.Match); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, "server.shutdown_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSimulation(s SimulationConfig) error {
	var errs []string
	if s.TickRate < 1 || s.TickRate > 240 {
		errs = append(errs, fmt.Sprintf("simulation.tick_rate must be 1-240, got %d", s.TickRate))
	}
	if s.CatchupMaxTicks < 1 {
		errs = append(errs, fmt.Sprintf("simulation.catchup_max_ticks must be >= 1, got %d", s.CatchupMaxTicks))
	}
	if s.OverrunWarnThreshold < 1 {
		errs = append(errs, fmt.Sprintf("simulation.overrun_warn_threshold must be >= 1, got %d", s.OverrunWarnThreshold))
	}
	if s.FutureWindowTicks < 0 {
		errs = append(errs, "simulation.future_window_ticks must not be negative")
	}
	if s.PendingInputsPerConn < 1 {
		errs = append(errs, fmt.Sprintf("simulation.pending_inputs_per_conn must be >= 1, got %d", s.PendingInputsPerConn))
	}
	if s.RetentionTicks < 1 {
		errs = append(errs, fmt.Sprintf("simulation.retention_ticks must be >= 1, got %d", s.RetentionTicks))
	}
	if s.SnapshotEveryTicks < 1 {
		errs = append(errs, fmt.Sprintf("simulation.snapshot_every_ticks must be >= 1, got %d", s.SnapshotEveryTicks))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateMovement(m MovementConfig) error {
	var errs []string
	if m.MaxSpeed <= 0 {
		errs = append(errs, fmt.Sprintf("movement.max_speed must be > 0, got %g", m.MaxSpeed))
	}
	if m.Gravity <= 0 {
		errs = append(errs, fmt.Sprintf("movement.gravity must be > 0, got %g", m.Gravity))
	}
	if m.JumpImpulse <= 0 {
		errs = append(errs, fmt.Sprintf("movement.jump_impulse must be > 0, got %g", m.JumpImpulse))
	}
	if m.MaxVelocity < m.MaxSpeed {
		errs = append(errs, "movement.max_velocity must be >= movement.max_speed")
	}
	if m.ArenaHalfExtent <= 0 {
		errs = append(errs, fmt.Sprintf("movement.arena_half_extent must be > 0, got %g", m.ArenaHalfExtent))
	}
	if m.EntityRadius <= 0 {
		errs = append(errs, fmt.Sprintf("movement.entity_radius must be > 0, got %g", m.EntityRadius))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAntiCheat(a AntiCheatConfig) error {
	var errs []string
	if a.SpeedTolerance < 1 {
		errs = append(errs, fmt.Sprintf("anticheat.speed_tolerance must be >= 1, got %g", a.SpeedTolerance))
	}
	if a.TeleportCap <= 0 {
		errs = append(errs, fmt.Sprintf("anticheat.teleport_cap must be > 0, got %g", a.TeleportCap))
	}
	if a.TeleportGraceTicks < 0 {
		errs = append(errs, "anticheat.teleport_grace_ticks must not be negative")
	}
	if a.PenaltyDecayEvery < 1 {
		errs = append(errs, fmt.Sprintf("anticheat.penalty_decay_every must be >= 1, got %d", a.PenaltyDecayEvery))
	}
	if a.ThrottleBaseTicks < 1 {
		errs = append(errs, fmt.Sprintf("anticheat.throttle_base_ticks must be >= 1, got %d", a.ThrottleBaseTicks))
	}
	if a.ThrottleMaxShift < 0 || a.ThrottleMaxShift > 16 {
		errs = append(errs, fmt.Sprintf("anticheat.throttle_max_shift must be 0-16, got %d", a.ThrottleMaxShift))
	}
	if a.DisconnectThreshold < 1 {
		errs = append(errs, fmt.Sprintf("anticheat.disconnect_threshold must be >= 1, got %d", a.DisconnectThreshold))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateReconcile(r ReconcileConfig) error {
	if r.PositionEpsilon <= 0 {
		return fmt.Errorf("reconcile.position_epsilon must be > 0, got %g", r.PositionEpsilon)
	}
	return nil
}

func validateCombat(c CombatConfig) error {
	var errs []string
	if c.ProjectileCapacity < 1 {
		errs = append(errs, fmt.Sprintf("combat.projectile_capacity must be >= 1, got %d", c.ProjectileCapacity))
	}
	if len(c.Abilities) == 0 {
		errs = append(errs, "combat.abilities must not be empty")
	}
	validKinds := map[string]bool{"melee": true, "hitscan": true, "projectile": true}
	validTypes := map[string]bool{"physical": true, "magical": true, "hybrid": true}
	if c.PlayerStats.MaxHealth <= 0 {
		errs = append(errs, fmt.Sprintf("combat.player_stats.max_health must be > 0, got %g", c.PlayerStats.MaxHealth))
	}
	if c.DummyStats.MaxHealth <= 0 {
		errs = append(errs, fmt.Sprintf("combat.dummy_stats.max_health must be > 0, got %g", c.DummyStats.MaxHealth))
	}
	for id, ability := range c.Abilities {
		if !validKinds[ability.Kind] {
			errs = append(errs, fmt.Sprintf("combat.abilities.%s.kind must be one of [melee, hitscan, projectile], got %q", id, ability.Kind))
		}
		if !validTypes[ability.DamageType] {
			errs = append(errs, fmt.Sprintf("combat.abilities.%s.damage_type must be one of [physical, magical, hybrid], got %q", id, ability.DamageType))
		}
		if ability.Damage < 0 {
			errs = append(errs, fmt.Sprintf("combat.abilities.%s.damage must be >= 0, got %g", id, ability.Damage))
		}
		if ability.Range <= 0 {
			errs = append(errs, fmt.Sprintf("combat.abilities.%s.range must be > 0, got %g", id, ability.Range))
		}
		if ability.CritChance < 0 || ability.CritChance >= 1 {
			errs = append(errs, fmt.Sprintf("combat.abilities.%s.crit_chance must be in [0, 1), got %g", id, ability.CritChance))
		}
		if ability.Kind == "projectile" {
			if ability.ProjectileSpeed <= 0 {
				errs = append(errs, fmt.Sprintf("combat.abilities.%s.projectile_speed must be > 0, got %g", id, ability.ProjectileSpeed))
			}
			if ability.ProjectileLifetimeTicks < 1 {
				errs = append(errs, fmt.Sprintf("combat.abilities.%s.projectile_lifetime_ticks must be >= 1, got %d", id, ability.ProjectileLifetimeTicks))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateMatch(m MatchConfig) error {
	var errs []string
	if m.MaxPlayers < 1 {
		errs = append(errs, fmt.Sprintf("match.max_players must be >= 1, got %d", m.MaxPlayers))
	}
	if len(m.SpawnPoints) == 0 {
		errs = append(errs, "match.spawn_points must not be empty")
	}
	if m.PracticeDummies < 0 {
		errs = append(errs, "match.practice_dummies must not be negative")
	}
	if m.HeartbeatInterval <= 0 {
		errs = append(errs, "match.heartbeat_interval must be > 0")
	}
	if m.DisconnectAfter < m.HeartbeatInterval {
		errs = append(errs, "match.disconnect_after must be >= match.heartbeat_interval")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result.
//
// Precondition: path must point to a readable YAML configuration file.
// Postcondition: returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetEnvPrefix("ARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Default returns the built-in configuration used when no file is supplied.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: defaults failed to unmarshal: %v", err))
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("simulation.tick_rate", 50)
	v.SetDefault("simulation.catchup_max_ticks", 5)
	v.SetDefault("simulation.overrun_warn_threshold", 3)
	v.SetDefault("simulation.future_window_ticks", 3)
	v.SetDefault("simulation.pending_inputs_per_conn", 8)
	v.SetDefault("simulation.retention_ticks", 100)
	v.SetDefault("simulation.snapshot_every_ticks", 2)
	v.SetDefault("simulation.seed", 1)

	v.SetDefault("movement.max_speed", 7.5)
	v.SetDefault("movement.gravity", 25.0)
	v.SetDefault("movement.jump_impulse", 8.5)
	v.SetDefault("movement.max_velocity", 30.0)
	v.SetDefault("movement.arena_half_extent", 40.0)
	v.SetDefault("movement.entity_radius", 0.5)

	v.SetDefault("anticheat.speed_tolerance", 1.2)
	v.SetDefault("anticheat.teleport_cap", 2.5)
	v.SetDefault("anticheat.teleport_grace_ticks", 20)
	v.SetDefault("anticheat.penalty_decay_every", 50)
	v.SetDefault("anticheat.throttle_base_ticks", 2)
	v.SetDefault("anticheat.throttle_max_shift", 6)
	v.SetDefault("anticheat.disconnect_threshold", 25)

	v.SetDefault("reconcile.position_epsilon", 0.35)
	v.SetDefault("reconcile.min_resend_ticks", 5)

	v.SetDefault("combat.projectile_capacity", 64)
	v.SetDefault("combat.attack_state_ticks", 10)
	v.SetDefault("combat.player_stats", map[string]any{
		"max_health":   100.0,
		"attack_power": 10.0,
		"spell_power":  10.0,
		"armor":        20.0,
		"ward":         20.0,
	})
	v.SetDefault("combat.dummy_stats", map[string]any{
		"max_health":   250.0,
		"attack_power": 0.0,
		"spell_power":  0.0,
		"armor":        10.0,
		"ward":         10.0,
	})
	v.SetDefault("combat.abilities", map[string]any{
		"melee_strike": map[string]any{
			"kind":            "melee",
			"damage_type":     "physical",
			"damage":          12.0,
			"range":           2.2,
			"radius":          1.2,
			"cooldown_ticks":  20,
			"cast_ticks":      10,
			"crit_chance":     0.1,
			"crit_multiplier": 1.5,
		},
		"fire_bolt": map[string]any{
			"kind":            "hitscan",
			"damage_type":     "magical",
			"damage":          9.0,
			"range":           18.0,
			"radius":          0.6,
			"cooldown_ticks":  33,
			"cast_ticks":      15,
			"crit_chance":     0.05,
			"crit_multiplier": 2.0,
		},
		"arc_burst": map[string]any{
			"kind":                      "projectile",
			"damage_type":               "hybrid",
			"damage":                    16.0,
			"range":                     30.0,
			"radius":                    0.8,
			"cooldown_ticks":            50,
			"cast_ticks":                15,
			"projectile_speed":          24.0,
			"projectile_lifetime_ticks": 75,
			"crit_chance":               0.05,
			"crit_multiplier":           1.75,
			"stun_ticks":                12,
		},
	})

	v.SetDefault("match.max_players", 16)
	v.SetDefault("match.respawn_delay_ticks", 150)
	v.SetDefault("match.spawn_points", []map[string]any{
		{"x": -30.0, "y": 0.0, "z": -30.0},
		{"x": 30.0, "y": 0.0, "z": -30.0},
		{"x": -30.0, "y": 0.0, "z": 30.0},
		{"x": 30.0, "y": 0.0, "z": 30.0},
	})
	v.SetDefault("match.practice_dummies", 2)
	v.SetDefault("match.heartbeat_interval", "2s")
	v.SetDefault("match.disconnect_after", "6s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("events.sinks", []string{"console"})
	v.SetDefault("events.buffer_size", 512)
	v.SetDefault("events.min_severity", "info")
	v.SetDefault("events.jsonl_path", "")

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
}
