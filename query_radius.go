package collisiongrid

import "github.com/go-gl/mathgl/mgl32"

// RadiusQuery finds entities whose location is within a sphere. The
// distance test is the whole check; no narrow phase runs.
type RadiusQuery struct {
	queryBase
	origin         Vector
	radius         float32
	addOtherRadius bool
}

func newRadiusQuery(h *CollisionHash, arena *HitArena, location mgl32.Vec3, radius float32, flags uint32, addOtherRadius bool) *RadiusQuery {
	var extra uint32
	if addOtherRadius {
		extra = 1
	}
	return &RadiusQuery{
		queryBase:      newQueryBase(h, arena, flags, extra),
		origin:         FromVec3(location),
		radius:         radius,
		addOtherRadius: addOtherRadius,
	}
}

func (q *RadiusQuery) Query() {
	q.queryRecords(q, &q.grid.global)

	r := Splat(q.radius)
	lo, hi := q.grid.BoundsToGrid(q.origin.Sub(r), q.origin.Add(r))
	for i := lo[0]; i <= hi[0]; i++ {
		for j := lo[1]; j <= hi[1]; j++ {
			for k := lo[2]; k <= hi[2]; k++ {
				q.visit(q, q.grid.Node(i, j, k))
			}
		}
	}
}

func (q *RadiusQuery) primitiveQuery(r *Record) {
	loc := q.hash.entities.Location(r.Entity)
	maxRange := q.radius
	if q.addOtherRadius {
		maxRange += q.hash.entities.CollisionRadius(r.Entity)
	}
	if FromVec3(loc).Sub(q.origin).SizeSq() <= maxRange*maxRange {
		q.prepend(Hit{Entity: r.Entity, Time: 1, Location: loc})
	}
}
