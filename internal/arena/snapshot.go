package arena

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zeebo/xxh3"
)

// EntitySnapshot is the wire form of one entity at one tick.
type EntitySnapshot struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Pos       [3]float64 `json:"pos"`
	Vel       [3]float64 `json:"vel"`
	Health    float64    `json:"health"`
	MaxHealth float64    `json:"maxHealth"`
	State     string     `json:"state"`
	Grounded  bool       `json:"grounded"`
}

// ProjectileSnapshot is the wire form of one in-flight projectile.
type ProjectileSnapshot struct {
	ID      uint32     `json:"id"`
	Ability string     `json:"ability"`
	Pos     [3]float64 `json:"pos"`
	Vel     [3]float64 `json:"vel"`
}

// Snapshot is the authoritative world state at one tick. Entities appear in
// ID order so two snapshots of identical state are byte-identical, and the
// checksum lets clients and replay tooling verify divergence cheaply.
type Snapshot struct {
	Tick        uint64               `json:"tick"`
	Entities    []EntitySnapshot     `json:"entities"`
	Projectiles []ProjectileSnapshot `json:"projectiles,omitempty"`
	Checksum    string               `json:"checksum"`
}

// BuildSnapshot captures the current world state. The entities slice must
// already be in deterministic order.
func BuildSnapshot(tick uint64, entities []*Entity, pool *ProjectilePool) Snapshot {
	snap := Snapshot{
		Tick:     tick,
		Entities: make([]EntitySnapshot, 0, len(entities)),
	}
	for _, e := range entities {
		pos := e.Kinematics.Pos
		vel := e.Kinematics.Vel
		snap.Entities = append(snap.Entities, EntitySnapshot{
			ID:        e.ID,
			Kind:      string(e.Kind),
			Pos:       [3]float64{pos[0], pos[1], pos[2]},
			Vel:       [3]float64{vel[0], vel[1], vel[2]},
			Health:    e.Health,
			MaxHealth: e.Stats.MaxHealth,
			State:     string(e.State),
			Grounded:  e.Kinematics.Grounded,
		})
	}
	if pool != nil {
		pool.ForEach(func(pr *Projectile) {
			snap.Projectiles = append(snap.Projectiles, ProjectileSnapshot{
				ID:      uint32(pr.Handle),
				Ability: pr.Ability,
				Pos:     [3]float64{pr.Pos[0], pr.Pos[1], pr.Pos[2]},
				Vel:     [3]float64{pr.Vel[0], pr.Vel[1], pr.Vel[2]},
			})
		})
	}
	snap.Checksum = snapshotChecksum(snap)
	return snap
}

// snapshotChecksum hashes the canonical binary form of a snapshot. Float
// bits go in raw so the checksum is exact, not formatting-dependent.
func snapshotChecksum(snap Snapshot) string {
	h := xxh3.New()
	var buf [8]byte
	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	writeFloat := func(f float64) {
		writeU64(math.Float64bits(f))
	}
	writeString := func(s string) {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}

	writeU64(snap.Tick)
	for _, e := range snap.Entities {
		writeString(e.ID)
		writeString(e.Kind)
		writeString(e.State)
		for i := 0; i < 3; i++ {
			writeFloat(e.Pos[i])
		}
		for i := 0; i < 3; i++ {
			writeFloat(e.Vel[i])
		}
		writeFloat(e.Health)
		writeFloat(e.MaxHealth)
		if e.Grounded {
			writeU64(1)
		} else {
			writeU64(0)
		}
	}
	for _, pr := range snap.Projectiles {
		writeU64(uint64(pr.ID))
		writeString(pr.Ability)
		for i := 0; i < 3; i++ {
			writeFloat(pr.Pos[i])
		}
		for i := 0; i < 3; i++ {
			writeFloat(pr.Vel[i])
		}
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
