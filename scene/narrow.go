package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ScottBrooks/collisiongrid"
)

// CylinderPrimitive tests against the upright cylinders of scene actors.
// Query extents are treated as cylinders too: X is the radius, Z the half
// height.
type CylinderPrimitive struct {
	S *Scene
}

func (c CylinderPrimitive) PointCheck(hit *collisiongrid.Hit, id collisiongrid.EntityID, location, extent mgl32.Vec3, extra uint32) bool {
	a, ok := c.S.Actors[id]
	if !ok {
		return false
	}
	delta := collisiongrid.FromVec3(location.Sub(a.Location))
	if !delta.InCylinder(a.Radius+extent[0], a.HalfHeight+extent[2]) {
		return false
	}
	hit.Time = 0
	hit.Location = location
	hit.Normal = delta.NormalXY().Vec3()
	return true
}

// LineCheck finds where the segment, grown by extent, first touches the
// actor's cylinder. Time is the fraction of the segment travelled.
func (c CylinderPrimitive) LineCheck(hit *collisiongrid.Hit, id collisiongrid.EntityID, end, start, extent mgl32.Vec3, extra uint32) bool {
	a, ok := c.S.Actors[id]
	if !ok {
		return false
	}
	r := float64(a.Radius + extent[0])
	h := float64(a.HalfHeight + extent[2])
	d := end.Sub(start)
	f := start.Sub(a.Location)

	lo, hi := 0.0, 1.0
	side := true

	// Infinite cylinder around the Z axis.
	qa := float64(d[0]*d[0] + d[1]*d[1])
	qb := 2 * float64(f[0]*d[0]+f[1]*d[1])
	qc := float64(f[0]*f[0]+f[1]*f[1]) - r*r
	if qa == 0 {
		if qc > 0 {
			return false
		}
	} else {
		disc := qb*qb - 4*qa*qc
		if disc < 0 {
			return false
		}
		sq := math.Sqrt(disc)
		t0, t1 := (-qb-sq)/(2*qa), (-qb+sq)/(2*qa)
		if t0 > lo {
			lo = t0
		}
		if t1 < hi {
			hi = t1
		}
	}

	// Caps.
	if d[2] == 0 {
		if math.Abs(float64(f[2])) > h {
			return false
		}
	} else {
		t0 := (-h - float64(f[2])) / float64(d[2])
		t1 := (h - float64(f[2])) / float64(d[2])
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > lo {
			lo = t0
			side = false
		}
		if t1 < hi {
			hi = t1
		}
	}
	if lo > hi {
		return false
	}

	t := float32(lo)
	p := start.Add(d.Mul(t))
	hit.Time = t
	hit.Location = p
	switch {
	case side:
		hit.Normal = collisiongrid.FromVec3(p.Sub(a.Location)).NormalXY().Vec3()
	case d[2] > 0:
		hit.Normal = mgl32.Vec3{0, 0, -1}
	default:
		hit.Normal = mgl32.Vec3{0, 0, 1}
	}
	return true
}

// EncroachCheck places the prober's cylinder at pose and tests it against
// another cylinder. Rotation does not change an upright cylinder.
func (c CylinderPrimitive) EncroachCheck(hit *collisiongrid.Hit, prober collisiongrid.EntityID, pose collisiongrid.Pose, location, extent mgl32.Vec3) bool {
	a, ok := c.S.Actors[prober]
	if !ok {
		return false
	}
	delta := collisiongrid.FromVec3(location.Sub(pose.Location))
	if !delta.InCylinder(a.Radius+extent[0], a.HalfHeight+extent[2]) {
		return false
	}
	hit.Time = 0
	hit.Location = location
	hit.Normal = delta.NormalXY().Vec3()
	return true
}
