package arena

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jamesmykil253/MoBa-sub001/internal/config"
	"github.com/Jamesmykil253/MoBa-sub001/internal/sim"
)

type faultRecorder struct {
	faults []*Fault
}

func (r *faultRecorder) OnFault(f *Fault) {
	r.faults = append(r.faults, f)
}

// worldTestConfig strips the defaults down to a single origin spawn with no
// dummies and no teleport grace, so positions stay easy to reason about.
// Tests opt back into what they need.
func worldTestConfig(mutate func(*config.Config)) config.Config {
	cfg := config.Default()
	cfg.Match.SpawnPoints = []config.SpawnPoint{{}}
	cfg.Match.PracticeDummies = 0
	cfg.AntiCheat.TeleportGraceTicks = 0
	if mutate != nil {
		mutate(&cfg)
	}
	return cfg
}

func stepWorld(w *World, tick uint64, inputs map[string]sim.InputCommand) {
	w.Step(sim.TickContext{Tick: tick, Delta: w.cfg.Simulation.TickDelta()}, inputs)
}

func admitPlayer(t *testing.T, w *World, connID string) *Entity {
	t.Helper()
	e, err := w.admit(0, connID)
	require.NoError(t, err)
	return e
}

func TestMoveIntentAdvancesAndInputLossCoasts(t *testing.T) {
	w := NewWorld(worldTestConfig(nil), WorldDeps{})
	e := admitPlayer(t, w, "c1")

	stepWorld(w, 1, map[string]sim.InputCommand{
		"c1": {ConnID: "c1", Seq: 1, Move: mgl64.Vec2{0, 1}},
	})

	assert.Equal(t, StateMoving, e.State)
	assert.Equal(t, 7.5, e.Kinematics.Vel[2])
	assert.InDelta(t, 0.15, e.Kinematics.Pos[2], 1e-9)

	stepWorld(w, 2, nil)

	assert.Equal(t, StateIdle, e.State, "a lost command stops the entity instead of repeating the old one")
	assert.Zero(t, e.Kinematics.Vel[2])
	assert.InDelta(t, 0.15, e.Kinematics.Pos[2], 1e-9, "the entity holds position, it does not snap back")
	assert.Equal(t, uint64(1), e.LastInputSeq)
}

func TestJumpRunsItsArc(t *testing.T) {
	w := NewWorld(worldTestConfig(nil), WorldDeps{})
	e := admitPlayer(t, w, "c1")

	stepWorld(w, 1, map[string]sim.InputCommand{
		"c1": {ConnID: "c1", Seq: 1, Jump: true},
	})

	require.Equal(t, StateJumping, e.State)
	assert.False(t, e.Kinematics.Grounded)
	assert.Equal(t, 8.0, e.Kinematics.Vel[1], "impulse minus one tick of gravity")

	var fallingAt, landedAt uint64
	for tick := uint64(2); tick <= 60; tick++ {
		stepWorld(w, tick, nil)
		if fallingAt == 0 && e.State == StateFalling {
			fallingAt = tick
		}
		if e.Kinematics.Grounded {
			landedAt = tick
			break
		}
	}

	assert.Equal(t, uint64(17), fallingAt, "the apex flips jumping to falling")
	require.NotZero(t, landedAt, "the arc must come back down")
	assert.InDelta(t, 33, float64(landedAt), 1)
	assert.Equal(t, StateIdle, e.State)
	assert.Zero(t, e.Kinematics.Pos[1])
	assert.Zero(t, e.Kinematics.Vel[1])
}

func TestMeleeKillAndRespawnCycle(t *testing.T) {
	w := NewWorld(worldTestConfig(func(cfg *config.Config) {
		cfg.Match.PracticeDummies = 1
		cfg.Match.RespawnDelayTicks = 5
		cfg.Combat.DummyStats.MaxHealth = 1
	}), WorldDeps{})
	player := admitPlayer(t, w, "c1")
	dummy := w.entities["dummy-01"]
	require.NotNil(t, dummy)
	dummy.Kinematics.Pos = mgl64.Vec3{0, 0, 1.5}

	stepWorld(w, 1, map[string]sim.InputCommand{
		"c1": {ConnID: "c1", Seq: 1, Attack: true},
	})
	require.Equal(t, StateAttacking, player.State)
	require.Equal(t, uint64(21), player.Cooldowns[defaultMeleeAbility])

	for tick := uint64(2); tick <= 10; tick++ {
		stepWorld(w, tick, nil)
		require.Equal(t, StateAttacking, player.State, "the wind-up holds through tick %d", tick)
	}

	stepWorld(w, 11, nil)
	assert.Equal(t, StateDead, dummy.State)
	assert.Zero(t, dummy.Health)
	assert.Equal(t, uint64(16), dummy.RespawnAt)
	assert.Equal(t, StateIdle, player.State, "the swing completes and frees the attacker")

	for tick := uint64(12); tick <= 15; tick++ {
		stepWorld(w, tick, nil)
		require.Equal(t, StateDead, dummy.State)
	}

	stepWorld(w, 16, nil)
	assert.Equal(t, StateIdle, dummy.State)
	assert.Equal(t, dummy.Stats.MaxHealth, dummy.Health)
	assert.Zero(t, dummy.RespawnAt)
	assert.True(t, dummy.Kinematics.Grounded)
}

func TestUnknownAbilityRejectsToOrigin(t *testing.T) {
	faults := &faultRecorder{}
	w := NewWorld(worldTestConfig(nil), WorldDeps{Faults: faults})
	e := admitPlayer(t, w, "c1")

	stepWorld(w, 1, map[string]sim.InputCommand{
		"c1": {ConnID: "c1", Seq: 1, AbilityID: "meteor"},
	})

	require.Len(t, faults.faults, 1)
	f := faults.faults[0]
	assert.Equal(t, FaultAbilityRejection, f.Class)
	assert.Equal(t, CastRejectUnknown, f.Reason)
	assert.Equal(t, "c1", f.ConnID)
	assert.Equal(t, "meteor", f.Ability)
	assert.Equal(t, uint64(1), f.Tick)
	assert.Equal(t, StateIdle, e.State, "a rejected cast never locks the caster")
}

func TestCooldownRejectCarriesRetryTick(t *testing.T) {
	faults := &faultRecorder{}
	w := NewWorld(worldTestConfig(nil), WorldDeps{Faults: faults})
	admitPlayer(t, w, "c1")

	stepWorld(w, 1, map[string]sim.InputCommand{
		"c1": {ConnID: "c1", Seq: 1, Attack: true},
	})
	for tick := uint64(2); tick <= 11; tick++ {
		stepWorld(w, tick, nil)
	}

	stepWorld(w, 12, map[string]sim.InputCommand{
		"c1": {ConnID: "c1", Seq: 2, Attack: true},
	})

	require.Len(t, faults.faults, 1)
	f := faults.faults[0]
	assert.Equal(t, FaultAbilityRejection, f.Class)
	assert.Equal(t, CastRejectCooldown, f.Reason)
	assert.Equal(t, defaultMeleeAbility, f.Ability)
	assert.Equal(t, uint64(21), f.RetryAt, "the client learns exactly when to retry")
}

func TestNaNClaimIsFatalProtocolViolation(t *testing.T) {
	faults := &faultRecorder{}
	w := NewWorld(worldTestConfig(nil), WorldDeps{Faults: faults})
	e := admitPlayer(t, w, "c1")

	stepWorld(w, 1, map[string]sim.InputCommand{
		"c1": {ConnID: "c1", Seq: 1, Move: mgl64.Vec2{0, 1}, HasClaim: true, ClaimedPos: mgl64.Vec3{math.NaN(), 0, 0}, ClientTick: 1},
	})

	require.Len(t, faults.faults, 1)
	f := faults.faults[0]
	assert.Equal(t, FaultFatalProtocol, f.Class)
	assert.Equal(t, CheckFinite, f.Reason)
	assert.Equal(t, "c1", f.ConnID)
	assert.Zero(t, e.Kinematics.Pos[2], "intent from the hostile command is discarded")
	assert.NotNil(t, w.byConn["c1"], "removal is the hub's call, not the world's")
}

func TestAccurateClaimsStayQuiet(t *testing.T) {
	corrections := &correctionLog{}
	w := NewWorld(worldTestConfig(nil), WorldDeps{Corrections: corrections})
	admitPlayer(t, w, "c1")

	stepWorld(w, 1, map[string]sim.InputCommand{
		"c1": {ConnID: "c1", Seq: 1, ClientTick: 1, Move: mgl64.Vec2{0, 1}, HasClaim: true, ClaimedPos: mgl64.Vec3{0, 0, 0.15}},
	})
	stepWorld(w, 2, map[string]sim.InputCommand{
		"c1": {ConnID: "c1", Seq: 2, ClientTick: 2, Move: mgl64.Vec2{0, 1}, HasClaim: true, ClaimedPos: mgl64.Vec3{0, 0, 0.30}},
	})

	assert.Empty(t, corrections.sent, "a client predicting correctly hears nothing")
}

func TestDivergentClaimGetsCorrection(t *testing.T) {
	corrections := &correctionLog{}
	w := NewWorld(worldTestConfig(nil), WorldDeps{Corrections: corrections})
	e := admitPlayer(t, w, "c1")

	stepWorld(w, 1, map[string]sim.InputCommand{
		"c1": {ConnID: "c1", Seq: 9, ClientTick: 1, HasClaim: true, ClaimedPos: mgl64.Vec3{5, 0, 0}},
	})

	require.Len(t, corrections.sent, 1)
	c := corrections.sent[0]
	assert.Equal(t, e.ID, c.EntityID)
	assert.Equal(t, uint64(1), c.Tick)
	assert.Equal(t, uint64(9), c.InputSeq)
	assert.Equal(t, [3]float64{0, 0, 0}, c.Pos, "the authoritative position wins")
	assert.Equal(t, mgl64.Vec3{0, 0, 0}, e.Kinematics.Pos, "the claim never moves the server entity")
}

func TestWarpClaimForcesCorrectionAndPenalty(t *testing.T) {
	corrections := &correctionLog{}
	w := NewWorld(worldTestConfig(nil), WorldDeps{Corrections: corrections})
	admitPlayer(t, w, "c1")

	stepWorld(w, 1, map[string]sim.InputCommand{
		"c1": {ConnID: "c1", Seq: 1, ClientTick: 1, HasClaim: true, ClaimedPos: mgl64.Vec3{}},
	})
	require.Empty(t, corrections.sent)

	stepWorld(w, 2, map[string]sim.InputCommand{
		"c1": {ConnID: "c1", Seq: 2, ClientTick: 2, HasClaim: true, ClaimedPos: mgl64.Vec3{50, 0, 0}},
	})

	require.Len(t, corrections.sent, 1)
	assert.Equal(t, 1, w.validator.Penalties("c1"))
}

func TestDeadEntityIgnoresInput(t *testing.T) {
	w := NewWorld(worldTestConfig(nil), WorldDeps{})
	e := admitPlayer(t, w, "c1")
	w.machine.Force(e, 1, StateDead, "killed")
	e.RespawnAt = 1000

	stepWorld(w, 2, map[string]sim.InputCommand{
		"c1": {ConnID: "c1", Seq: 5, Move: mgl64.Vec2{0, 1}, Jump: true, Attack: true},
	})

	assert.Equal(t, StateDead, e.State)
	assert.Equal(t, mgl64.Vec3{}, e.Kinematics.Pos)
	assert.Zero(t, e.IntentMove.Len())
	assert.Empty(t, e.Cooldowns)
	assert.Equal(t, uint64(5), e.LastInputSeq, "the command is still acknowledged")
}

func TestStunnedCastIsStateBlocked(t *testing.T) {
	faults := &faultRecorder{}
	w := NewWorld(worldTestConfig(nil), WorldDeps{Faults: faults})
	e := admitPlayer(t, w, "c1")
	w.machine.Force(e, 1, StateStunned, "stunned")
	e.StateUntil = 100

	stepWorld(w, 2, map[string]sim.InputCommand{
		"c1": {ConnID: "c1", Seq: 1, AbilityID: defaultMeleeAbility},
	})

	require.Len(t, faults.faults, 1)
	assert.Equal(t, CastRejectStateBlocked, faults.faults[0].Reason)
	assert.Empty(t, e.Cooldowns, "a blocked cast burns no cooldown")
}

func TestStunExpiresOnItsTick(t *testing.T) {
	w := NewWorld(worldTestConfig(nil), WorldDeps{})
	e := admitPlayer(t, w, "c1")
	w.machine.Force(e, 1, StateStunned, "stunned")
	e.StateUntil = 5

	for tick := uint64(2); tick <= 4; tick++ {
		stepWorld(w, tick, nil)
		require.Equal(t, StateStunned, e.State, "tick %d is still inside the stun", tick)
	}
	stepWorld(w, 5, nil)
	assert.Equal(t, StateIdle, e.State)
}

func TestMatchResetRestoresRoster(t *testing.T) {
	w := NewWorld(worldTestConfig(func(cfg *config.Config) {
		cfg.Match.PracticeDummies = 1
	}), WorldDeps{})
	player := admitPlayer(t, w, "c1")
	w.entities["dummy-01"].Kinematics.Pos = mgl64.Vec3{0, 0, 5}

	stepWorld(w, 1, map[string]sim.InputCommand{
		"c1": {ConnID: "c1", Seq: 1, Attack: true},
	})
	require.Equal(t, uint64(21), player.Cooldowns[defaultMeleeAbility])
	player.Health = 40

	require.NoError(t, w.RequestReset(nil, 99))
	stepWorld(w, 4, nil)

	assert.Same(t, player, w.byConn["c1"], "connected players survive the boundary")
	assert.Equal(t, player.Stats.MaxHealth, player.Health)
	assert.Empty(t, player.Cooldowns)
	assert.Equal(t, StateIdle, player.State)
	assert.Zero(t, player.StateUntil)

	dummy := w.entities["dummy-01"]
	require.NotNil(t, dummy, "dummies are rebuilt from scratch")
	assert.Equal(t, dummy.Stats.MaxHealth, dummy.Health)

	snap := w.LatestSnapshot()
	require.NotNil(t, snap)
	assert.Equal(t, uint64(4), snap.Tick, "the tick counter runs on across the boundary")
}

func TestJoinLeaveThroughControlQueue(t *testing.T) {
	w := NewWorld(worldTestConfig(func(cfg *config.Config) {
		cfg.Match.MaxPlayers = 1
	}), WorldDeps{})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tick := uint64(0)
		for {
			select {
			case <-stop:
				return
			default:
			}
			tick++
			stepWorld(w, tick, nil)
			time.Sleep(time.Millisecond)
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	id, snap, err := w.Join("c1")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	found := false
	for _, e := range snap.Entities {
		if e.ID == id {
			found = true
		}
	}
	assert.True(t, found, "the keyframe includes the freshly admitted entity")

	_, _, err = w.Join("c1")
	require.ErrorIs(t, err, ErrAlreadyJoined)

	_, _, err = w.Join("c2")
	require.ErrorIs(t, err, ErrMatchFull)

	w.Leave("c1", "client_quit")
	require.Eventually(t, func() bool {
		return len(w.LatestSnapshot().Entities) == 0
	}, time.Second, 2*time.Millisecond)

	_, _, err = w.Join("c2")
	require.NoError(t, err, "leaving frees the slot")
}

func TestIdenticalInputsReplayIdentically(t *testing.T) {
	script := func(tick uint64) map[string]sim.InputCommand {
		cmd := sim.InputCommand{ConnID: "p1", Seq: tick, ClientTick: tick}
		switch {
		case tick <= 30:
			cmd.Move = mgl64.Vec2{0, 1}
		case tick == 31:
			cmd.Jump = true
		case tick == 65:
			cmd.Attack = true
		case tick == 80:
			cmd.AbilityID = "arc_burst"
			cmd.Aim = mgl64.Vec3{1, 0, 0.2}
		case tick == 100:
			cmd.AbilityID = "fire_bolt"
			cmd.Aim = mgl64.Vec3{-1, 0, 0.4}
		default:
			return nil
		}
		return map[string]sim.InputCommand{"p1": cmd}
	}

	run := func() []string {
		cfg := config.Default()
		cfg.Simulation.Seed = 7
		w := NewWorld(cfg, WorldDeps{})
		_, err := w.admit(0, "p1")
		require.NoError(t, err)

		checksums := make([]string, 0, 150)
		for tick := uint64(1); tick <= 150; tick++ {
			stepWorld(w, tick, script(tick))
			checksums = append(checksums, w.LatestSnapshot().Checksum)
		}
		return checksums
	}

	first := run()
	second := run()

	require.Equal(t, first, second, "same seed and same inputs reproduce the match checksum for checksum")

	distinct := map[string]struct{}{}
	for _, sum := range first {
		distinct[sum] = struct{}{}
	}
	assert.Greater(t, len(distinct), 1, "the world actually evolved during the replay")
}
