package collisiongrid

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// LineQuery traces a box of half size extent from start to end.
//
// Cells are walked with a nested i/j/k scan that stops each inner run once
// a contiguous stretch of intersecting cells has ended. That is only
// correct for convex traces; other shapes need a different walk.
type LineQuery struct {
	queryBase
	start  Vector
	end    Vector
	extent Vector

	traceStart  mgl32.Vec3
	traceEnd    mgl32.Vec3
	traceExtent mgl32.Vec3

	dir    Vector
	inv    Vector
	corner uint8
	length float32
}

func newLineQuery(h *CollisionHash, arena *HitArena, end, start, extent mgl32.Vec3, flags, extra uint32) *LineQuery {
	q := &LineQuery{
		queryBase:   newQueryBase(h, arena, flags, extra),
		start:       FromVec3(start),
		end:         FromVec3(end),
		extent:      FromVec3(extent).Absolute(),
		traceStart:  start,
		traceEnd:    end,
		traceExtent: extent,
	}
	q.computeRay()
	return q
}

// computeRay caches the direction, its reciprocal and the box corner whose
// faces the ray enters through: Max on axes where it travels negative.
func (q *LineQuery) computeRay() {
	delta := q.end.Sub(q.start).Mask3()
	q.length = delta.Vec3().Len()
	q.dir = delta.Normal()
	q.inv = q.dir.Reciprocal()
	q.inv[3] = 0
	q.corner = 0
	for a := 0; a < 3; a++ {
		switch {
		case q.dir[a] == 0:
			q.inv[a] = 0
		case q.inv[a] < 0:
			q.corner |= 1 << a
		}
	}
}

func (q *LineQuery) tolerance() float32 {
	return 1e-3 + q.length*1e-5
}

// entryTime returns the distance along the ray at which it enters b. A
// start inside b enters at 0. The entry point is on the last face plane
// crossed, so the largest per axis plane time wins; the point must then lie
// within b on the other two axes and within the segment.
func (q *LineQuery) entryTime(b Box) (float32, bool) {
	if b.Contains3(q.start) {
		return 0, true
	}
	face := b.Extrema(q.corner)
	t := float32(math.Inf(-1))
	axis := -1
	for a := 0; a < 3; a++ {
		if q.dir[a] == 0 {
			continue
		}
		if ta := (face[a] - q.start[a]) * q.inv[a]; ta > t {
			t, axis = ta, a
		}
	}
	if axis < 0 || t < 0 || t > q.length+q.tolerance() {
		return 0, false
	}
	eps := q.tolerance()
	for a := 0; a < 3; a++ {
		if a == axis {
			continue
		}
		p := q.start[a] + q.dir[a]*t
		if p < b.Min[a]-eps || p > b.Max[a]+eps {
			return 0, false
		}
	}
	return t, true
}

func (q *LineQuery) intersects(b Box) bool {
	_, ok := q.entryTime(b.ExpandBounds(q.extent))
	return ok
}

// gridStart clips the start to the padded world box. It fails when the
// segment never reaches the box.
func (q *LineQuery) gridStart() (Vector, bool) {
	b := q.grid.Box.ExpandBounds(Splat(q.hash.cfg.LineClipPadding))
	if b.Contains3(q.start) {
		return q.start, true
	}
	t, ok := q.entryTime(b)
	if !ok {
		return Vector{}, false
	}
	return Clamp(q.start.Add(q.dir.Scale(t)), b.Min, b.Max).Mask3(), true
}

// Query visits nothing at all, the overflow list included, when the
// segment misses the world.
func (q *LineQuery) Query() {
	fixed, ok := q.gridStart()
	if !ok {
		q.flags = 0
		return
	}
	q.queryRecords(q, &q.grid.global)

	push := q.end.Sub(fixed).SignsNoZero().Mul(q.extent).Mask3()
	iStart := q.grid.PointToGrid(fixed.Sub(push))
	iEnd := q.grid.PointToGrid(q.end.Add(push))

	if iStart.Eq3(iEnd) {
		q.visit(q, q.grid.NodeAt(iStart))
		return
	}

	var adv Integers
	moving := 0
	for a := 0; a < 3; a++ {
		switch d := iEnd[a] - iStart[a]; {
		case d > 0:
			adv[a] = 1
		case d < 0:
			adv[a] = -1
		}
		if adv[a] != 0 {
			moving++
		}
	}

	if moving == 1 {
		for c := iStart; ; c = c.Add(adv) {
			q.visit(q, q.grid.NodeAt(c))
			if c.Eq3(iEnd) {
				break
			}
		}
		return
	}
	q.walk(iStart, iEnd, adv)
}

// walk scans i from start to end. For every i the j and k runs begin at
// the first cell that intersected on the previous run and stop as soon as
// a run of intersecting cells ends. Each i starts its k runs where the
// first j run of the previous i did.
func (q *LineQuery) walk(start, end, adv Integers) {
	c := start
	for ; ; c[0] += adv[0] {
		c[1] = start[1]
		firstK := start[2]
		foundJ := false
		for ; ; c[1] += adv[1] {
			c[2] = start[2]
			foundK := false
			for ; ; c[2] += adv[2] {
				hit := q.intersects(q.grid.CellBox(c))
				if hit {
					q.visit(q, q.grid.NodeAt(c))
					if !foundK {
						start[2] = c[2]
						foundK = true
					}
				} else if foundK {
					break
				}
				if c[2] == end[2] {
					break
				}
			}
			if foundK && !foundJ {
				start[1] = c[1]
				firstK = start[2]
				foundJ = true
			}
			if !foundK && foundJ {
				break
			}
			if c[1] == end[1] {
				break
			}
		}
		start[2] = firstK
		if c[0] == end[0] {
			break
		}
	}
}

func (q *LineQuery) primitiveQuery(r *Record) {
	hit := Hit{Entity: r.Entity, Time: 1}
	if q.hash.narrow.LineCheck(&hit, r.Entity, q.traceEnd, q.traceStart, q.traceExtent, q.extra) {
		q.prepend(hit)
	}
}
