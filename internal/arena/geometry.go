package arena

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// GroundCheck reports the supporting surface height beneath a position. The
// movement solver queries it every tick instead of baking terrain knowledge
// into its integration.
type GroundCheck interface {
	// FloorHeight returns the surface height under pos and whether any
	// surface exists there at all.
	FloorHeight(pos mgl64.Vec3) (float64, bool)
}

// FlatGround is the default arena floor: one infinite plane.
type FlatGround struct {
	Height float64
}

// FloorHeight implements GroundCheck.
func (g FlatGround) FloorHeight(mgl64.Vec3) (float64, bool) {
	return g.Height, true
}

// SpatialQuery answers hit-test probes over one position set. Cast
// resolution consumes it instead of scanning the entity list itself, so a
// world with a real spatial index can swap in its own implementation.
type SpatialQuery interface {
	// WithinCircle returns the ids within radius of center on the ground
	// plane, in ascending id order.
	WithinCircle(center mgl64.Vec3, radius float64) []string
	// AlongRay returns the ids whose body sphere of the given radius
	// intersects the ray, with the distance along it, in ascending id
	// order. dir must be normalized.
	AlongRay(origin, dir mgl64.Vec3, maxDist, radius float64) []RayHit
}

// RayHit names one entity intersected by a ray probe.
type RayHit struct {
	ID   string
	Dist float64
}

// CircleOverlap is the reference SpatialQuery: brute-force circle and
// segment tests over a flat arena. Results come back in id order so hit
// resolution stays replayable.
type CircleOverlap struct {
	positions map[string]mgl64.Vec3
	ids       []string
}

// NewCircleOverlap indexes one position set for probing.
func NewCircleOverlap(positions map[string]mgl64.Vec3) *CircleOverlap {
	ids := make([]string, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &CircleOverlap{positions: positions, ids: ids}
}

// WithinCircle implements SpatialQuery.
func (q *CircleOverlap) WithinCircle(center mgl64.Vec3, radius float64) []string {
	var matched []string
	for _, id := range q.ids {
		if withinRange(center, q.positions[id], radius, 1.0) {
			matched = append(matched, id)
		}
	}
	return matched
}

// AlongRay implements SpatialQuery.
func (q *CircleOverlap) AlongRay(origin, dir mgl64.Vec3, maxDist, radius float64) []RayHit {
	var hits []RayHit
	for _, id := range q.ids {
		if dist, ok := segmentSphere(origin, dir, maxDist, q.positions[id], radius); ok {
			hits = append(hits, RayHit{ID: id, Dist: dist})
		}
	}
	return hits
}

// clampToArena keeps a position inside the square play area, leaving the
// vertical axis alone.
func clampToArena(pos mgl64.Vec3, halfExtent, radius float64) mgl64.Vec3 {
	limit := halfExtent - radius
	if limit < 0 {
		limit = 0
	}
	pos[0] = clamp(pos[0], -limit, limit)
	pos[2] = clamp(pos[2], -limit, limit)
	return pos
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// segmentSphere intersects the segment origin..origin+dir*maxDist with a
// sphere. It returns the distance along the segment to the closest approach
// inside the sphere and whether the sphere was hit. dir must be normalized.
func segmentSphere(origin, dir mgl64.Vec3, maxDist float64, center mgl64.Vec3, radius float64) (float64, bool) {
	toCenter := center.Sub(origin)
	proj := toCenter.Dot(dir)
	if proj < 0 || proj > maxDist {
		return 0, false
	}
	closest := origin.Add(dir.Mul(proj))
	if closest.Sub(center).Len() > radius {
		return 0, false
	}
	return proj, true
}

// withinRange reports whether two positions are within reach of each other
// on the ground plane, ignoring small height differences up to step.
func withinRange(a, b mgl64.Vec3, reach, step float64) bool {
	dx := a[0] - b[0]
	dz := a[2] - b[2]
	if dx*dx+dz*dz > reach*reach {
		return false
	}
	dy := a[1] - b[1]
	if dy < 0 {
		dy = -dy
	}
	return dy <= step
}
