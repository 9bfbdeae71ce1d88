package collisiongrid

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// boxBounded walks every cell overlapped by a fixed box.
type boxBounded struct {
	queryBase
	bounds Box
}

func (q *boxBounded) intersects(b Box) bool {
	return q.bounds.Intersects3(b)
}

func (q *boxBounded) run(s shape) {
	q.queryRecords(s, &q.grid.global)

	lo, hi := q.grid.BoundsToGrid(q.bounds.Min, q.bounds.Max)
	for i := lo[0]; i <= hi[0]; i++ {
		for j := lo[1]; j <= hi[1]; j++ {
			for k := lo[2]; k <= hi[2]; k++ {
				q.visit(s, q.grid.Node(i, j, k))
			}
		}
	}
}

// BoxQuery reports every record whose cached box overlaps the bounds.
type BoxQuery struct {
	boxBounded
}

func newBoxQuery(h *CollisionHash, arena *HitArena, b Box, flags uint32) *BoxQuery {
	return &BoxQuery{boxBounded{newQueryBase(h, arena, flags, 0), NewBox(b.Min.Mask3(), b.Max.Mask3())}}
}

func (q *BoxQuery) Query() { q.run(q) }

func (q *BoxQuery) primitiveQuery(r *Record) {
	if q.bounds.Intersects3(r.Box) {
		q.prepend(Hit{Entity: r.Entity, Time: 1, Location: r.Box.CenterPoint().Vec3()})
	}
}

// PointQuery tests a box around a point through the narrow phase.
type PointQuery struct {
	boxBounded
	location mgl32.Vec3
	extent   mgl32.Vec3
}

func newPointQuery(h *CollisionHash, arena *HitArena, location, extent mgl32.Vec3, flags, extra uint32) *PointQuery {
	l, e := FromVec3(location), FromVec3(extent)
	return &PointQuery{
		boxBounded: boxBounded{newQueryBase(h, arena, flags, extra), BoxStrict(l.Sub(e), l.Add(e))},
		location:   location,
		extent:     extent,
	}
}

func (q *PointQuery) Query() { q.run(q) }

func (q *PointQuery) primitiveQuery(r *Record) {
	hit := Hit{Entity: r.Entity, Time: 1}
	if q.hash.narrow.PointCheck(&hit, r.Entity, q.location, q.extent, q.extra) {
		q.prepend(hit)
	}
}

// EncroachmentQuery looks for entities the prober would overlap at a
// hypothetical pose.
type EncroachmentQuery struct {
	boxBounded
	prober     EntityID
	pose       Pose
	checkWorld bool
}

func newEncroachmentQuery(h *CollisionHash, arena *HitArena, prober EntityID, pose Pose, flags, extra uint32) *EncroachmentQuery {
	var b Box
	if r := h.lookup(prober); r != nil {
		b = r.Box
	} else {
		b = h.entities.Bounds(prober)
	}
	b = PoseBox(b, FromVec3(h.entities.Location(prober)), pose)
	return &EncroachmentQuery{
		boxBounded: boxBounded{newQueryBase(h, arena, flags, extra), b},
		prober:     prober,
		pose:       pose,
		checkWorld: h.entities.IsBrush(prober),
	}
}

func (q *EncroachmentQuery) Query() { q.run(q) }

// Bounds is the box the query walks.
func (q *EncroachmentQuery) Bounds() Box { return q.bounds }

func (q *EncroachmentQuery) shouldQuery(r *Record) bool {
	return r.Entity != q.prober && r.Flags&MovingBrush == 0
}

func (q *EncroachmentQuery) primitiveQuery(r *Record) {
	ents := q.hash.entities
	if q.checkWorld && !ents.CollidesWithWorld(r.Entity) {
		return
	}
	hit := Hit{Entity: r.Entity, Time: 1}
	if q.hash.narrow.EncroachCheck(&hit, q.prober, q.pose, ents.Location(r.Entity), ents.CylinderExtent(r.Entity)) {
		hit.Entity = r.Entity
		q.prepend(hit)
	}
}

// PoseBox moves b, given for an entity at origin, to pose. The corners are
// turned by pose.Rotation around origin before the move and the result is
// their bounding box.
func PoseBox(b Box, origin Vector, pose Pose) Box {
	to := FromVec3(pose.Location)
	if pose.Rotation == (mgl32.Quat{}) || pose.Rotation.ApproxEqual(mgl32.QuatIdent()) {
		return b.Sub(origin).Add(to)
	}
	min := Splat(float32(math.Inf(1)))
	max := Splat(float32(math.Inf(-1)))
	for _, c := range b.Corners() {
		p := FromVec3(pose.Rotation.Rotate(c.Sub(origin).Vec3())).Add(to)
		min = Min(min, p)
		max = Max(max, p)
	}
	return BoxStrict(min.Mask3(), max.Mask3())
}
