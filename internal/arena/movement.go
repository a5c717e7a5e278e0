package arena

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Jamesmykil253/MoBa-sub001/internal/config"
)

// MoveDirective is the solver's view of one entity's intent for one tick,
// after behavior gating. AllowMove strips horizontal control, AllowJump
// gates the impulse; the solver itself never consults behavior state.
type MoveDirective struct {
	Move      mgl64.Vec2
	Jump      bool
	AllowMove bool
	AllowJump bool
}

// Solver integrates entity motion with a fixed timestep. It is pure: the
// same kinematic state, directive, and delta always produce the same output,
// with no reads of wall-clock time or shared mutable state.
type Solver struct {
	cfg    config.MovementConfig
	ground GroundCheck
}

// NewSolver builds a solver over the given ground model.
func NewSolver(cfg config.MovementConfig, ground GroundCheck) Solver {
	if ground == nil {
		ground = FlatGround{}
	}
	return Solver{cfg: cfg, ground: ground}
}

// Step advances one entity by dt seconds.
func (s Solver) Step(k KinematicState, in MoveDirective, dt float64) KinematicState {
	move := in.Move
	if !in.AllowMove {
		move = mgl64.Vec2{}
	} else if l := move.Len(); l > 1 {
		move = move.Mul(1 / l)
	}

	k.Vel[0] = move[0] * s.cfg.MaxSpeed
	k.Vel[2] = move[1] * s.cfg.MaxSpeed

	if in.Jump && in.AllowJump && k.Grounded {
		k.Vel[1] = s.cfg.JumpImpulse
		k.Grounded = false
	}
	if !k.Grounded {
		k.Vel[1] -= s.cfg.Gravity * dt
	}

	if speed := k.Vel.Len(); speed > s.cfg.MaxVelocity {
		k.Vel = k.Vel.Mul(s.cfg.MaxVelocity / speed)
	}

	k.Pos = k.Pos.Add(k.Vel.Mul(dt))

	if floor, ok := s.ground.FloorHeight(k.Pos); ok && k.Pos[1] <= floor && k.Vel[1] <= 0 {
		k.Pos[1] = floor
		k.Vel[1] = 0
		k.Grounded = true
	} else {
		k.Grounded = false
	}

	k.Pos = clampToArena(k.Pos, s.cfg.ArenaHalfExtent, s.cfg.EntityRadius)
	return k
}

// SeparateActors pushes overlapping live entities apart on the ground plane.
// It runs a few relaxation passes after all entities have moved so two
// actors never finish a tick stacked on the same spot.
func SeparateActors(entities []*Entity, radius, halfExtent float64) {
	if len(entities) < 2 {
		return
	}
	minDist := radius * 2

	const iterations = 4
	for iter := 0; iter < iterations; iter++ {
		adjusted := false
		for i := 0; i < len(entities); i++ {
			for j := i + 1; j < len(entities); j++ {
				a, b := entities[i], entities[j]
				if !a.Alive() || !b.Alive() {
					continue
				}
				dx := b.Kinematics.Pos[0] - a.Kinematics.Pos[0]
				dz := b.Kinematics.Pos[2] - a.Kinematics.Pos[2]
				distSq := dx*dx + dz*dz

				var dist float64
				if distSq == 0 {
					dx, dz = 1, 0
					dist = 1
				} else {
					dist = mgl64.Vec2{dx, dz}.Len()
				}
				if dist >= minDist {
					continue
				}

				overlap := (minDist - dist) / 2
				nx := dx / dist
				nz := dz / dist

				a.Kinematics.Pos[0] -= nx * overlap
				a.Kinematics.Pos[2] -= nz * overlap
				b.Kinematics.Pos[0] += nx * overlap
				b.Kinematics.Pos[2] += nz * overlap

				a.Kinematics.Pos = clampToArena(a.Kinematics.Pos, halfExtent, radius)
				b.Kinematics.Pos = clampToArena(b.Kinematics.Pos, halfExtent, radius)
				adjusted = true
			}
		}
		if !adjusted {
			break
		}
	}
}
