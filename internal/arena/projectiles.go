package arena

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Jamesmykil253/MoBa-sub001/internal/telemetry"
)

// ProjectileHandle identifies a live projectile. The generation in the high
// bits keeps a recycled slot from aliasing the projectile that used to live
// there.
type ProjectileHandle uint32

func makeHandle(slot int, gen uint16) ProjectileHandle {
	return ProjectileHandle(uint32(gen)<<16 | uint32(slot)&0xffff)
}

// Projectile is one in-flight slot of the pool.
type Projectile struct {
	Handle  ProjectileHandle
	Owner   string
	Ability string
	Pos     mgl64.Vec3
	Vel     mgl64.Vec3
	Radius  float64
	// ExpiresAt is the tick the projectile despawns if it hits nothing.
	ExpiresAt uint64

	active bool
	gen    uint16
	slot   int
}

// Active reports whether the slot currently holds a live projectile.
func (p *Projectile) Active() bool {
	return p != nil && p.active
}

// ProjectilePool is a fixed-capacity free-list arena. Casting never
// allocates: a spawn pops a free slot and a despawn pushes it back. When
// the pool is exhausted the cast is rejected rather than growing the pool
// mid-match.
type ProjectilePool struct {
	slots   []Projectile
	free    []int
	live    int
	metrics telemetry.Metrics
}

// NewProjectilePool builds a pool with a fixed slot count.
func NewProjectilePool(capacity int, metrics telemetry.Metrics) *ProjectilePool {
	if capacity < 1 {
		capacity = 1
	}
	p := &ProjectilePool{
		slots:   make([]Projectile, capacity),
		free:    make([]int, 0, capacity),
		metrics: metrics,
	}
	for i := capacity - 1; i >= 0; i-- {
		p.slots[i].slot = i
		p.free = append(p.free, i)
	}
	return p
}

// Spawn claims a slot. It returns false when the pool is exhausted.
func (p *ProjectilePool) Spawn(owner, ability string, pos, vel mgl64.Vec3, radius float64, expiresAt uint64) (*Projectile, bool) {
	if len(p.free) == 0 {
		return nil, false
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	pr := &p.slots[idx]
	pr.Handle = makeHandle(idx, pr.gen)
	pr.Owner = owner
	pr.Ability = ability
	pr.Pos = pos
	pr.Vel = vel
	pr.Radius = radius
	pr.ExpiresAt = expiresAt
	pr.active = true

	p.live++
	p.storeLive()
	return pr, true
}

// Release returns a slot to the free list. Releasing an inactive slot is a
// no-op, so despawning during iteration is safe.
func (p *ProjectilePool) Release(pr *Projectile) {
	if pr == nil || !pr.active {
		return
	}
	pr.active = false
	pr.gen++
	p.free = append(p.free, pr.slot)
	p.live--
	p.storeLive()
}

// Live reports the number of in-flight projectiles.
func (p *ProjectilePool) Live() int {
	return p.live
}

// Capacity reports the fixed slot count.
func (p *ProjectilePool) Capacity() int {
	return len(p.slots)
}

// ForEach visits every live projectile in slot order. The visited
// projectile may be released inside fn.
func (p *ProjectilePool) ForEach(fn func(pr *Projectile)) {
	for i := range p.slots {
		if p.slots[i].active {
			fn(&p.slots[i])
		}
	}
}

// Reset releases every slot, bumping generations so stale handles from the
// previous match never resolve.
func (p *ProjectilePool) Reset() {
	for i := range p.slots {
		if p.slots[i].active {
			p.Release(&p.slots[i])
		}
	}
}

func (p *ProjectilePool) storeLive() {
	if p.metrics == nil {
		return
	}
	p.metrics.Store(telemetry.KeyProjectilesLive, uint64(p.live))
}
