package collisiongrid

import "fmt"

// WorldLimit is the half extent of the box used for unbounded worlds and
// the clamp applied to boxes built from point sets.
const WorldLimit = 32768

// Box is an axis aligned box. Min <= Max per lane by convention.
type Box struct {
	Min, Max Vector
}

// NewBox sorts the lanes of a and b into Min and Max.
func NewBox(a, b Vector) Box {
	return Box{Min: Min(a, b), Max: Max(a, b)}
}

// BoxStrict trusts the caller's ordering.
func BoxStrict(min, max Vector) Box {
	return Box{Min: min, Max: max}
}

// BoxFromPoints returns the bounds of pts clamped to +-WorldLimit, with W
// cleared. An empty slice gives the zero box.
func BoxFromPoints(pts []Vector) Box {
	if len(pts) == 0 {
		return Box{}
	}
	b := Box{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Min = Min(b.Min, p)
		b.Max = Max(b.Max, p)
	}
	lim := Splat(WorldLimit)
	b.Min = Clamp(b.Min, lim.Neg(), lim).Mask3()
	b.Max = Clamp(b.Max, lim.Neg(), lim).Mask3()
	return b
}

func (b Box) Add(v Vector) Box { return Box{b.Min.Add(v), b.Max.Add(v)} }
func (b Box) Sub(v Vector) Box { return Box{b.Min.Sub(v), b.Max.Sub(v)} }
func (b Box) Mul(v Vector) Box { return Box{b.Min.Mul(v), b.Max.Mul(v)} }

// IsZero reports the degenerate all zero box. It is a valid point box at the
// origin, so callers that need "no data" must check this explicitly.
func (b Box) IsZero() bool {
	return b.Min == Vector{} && b.Max == Vector{}
}

func (b Box) CenterPoint() Vector {
	return b.Min.Add(b.Max).Scale(0.5)
}

func (b Box) Size() Vector {
	return b.Max.Sub(b.Min)
}

// Intersects3 tests overlap on X, Y and Z. Touching faces count.
func (b Box) Intersects3(o Box) bool {
	return b.Min.LessEqualMask(o.Max)&Mask3D == Mask3D &&
		o.Min.LessEqualMask(b.Max)&Mask3D == Mask3D
}

// IntersectsAll4 also requires the W lanes to overlap.
func (b Box) IntersectsAll4(o Box) bool {
	return b.Min.LessEqual(o.Max) && o.Min.LessEqual(b.Max)
}

// Contains3 tests p against X, Y and Z, inclusive.
func (b Box) Contains3(p Vector) bool {
	return b.Min.LessEqualMask(p)&Mask3D == Mask3D &&
		p.LessEqualMask(b.Max)&Mask3D == Mask3D
}

// ContainsAll4 also requires W to be in range.
func (b Box) ContainsAll4(p Vector) bool {
	return b.Min.LessEqual(p) && p.LessEqual(b.Max)
}

// Expand grows the box to include p.
func (b Box) Expand(p Vector) Box {
	return Box{Min(b.Min, p), Max(b.Max, p)}
}

// ExpandBox returns the union of both boxes.
func (b Box) ExpandBox(o Box) Box {
	return Box{Min(b.Min, o.Min), Max(b.Max, o.Max)}
}

// ExpandNonZero is ExpandBox where a zero box on either side means no data.
func (b Box) ExpandNonZero(o Box) Box {
	switch {
	case o.IsZero():
		return b
	case b.IsZero():
		return o
	}
	return b.ExpandBox(o)
}

// ExpandBounds grows every face outward by the matching lane of by.
func (b Box) ExpandBounds(by Vector) Box {
	return Box{b.Min.Sub(by), b.Max.Add(by)}
}

// Extrema selects a corner lane by lane: bit n of corner picks Max for
// lane n, otherwise Min.
func (b Box) Extrema(corner uint8) Vector {
	var v Vector
	for i := range v {
		if corner&(1<<i) != 0 {
			v[i] = b.Max[i]
		} else {
			v[i] = b.Min[i]
		}
	}
	return v
}

// Corners returns the eight X/Y/Z corners of the box.
func (b Box) Corners() [8]Vector {
	var c [8]Vector
	for n := range c {
		c[n] = b.Extrema(uint8(n)).Mask3()
	}
	return c
}

func (b Box) String() string {
	return fmt.Sprintf("[(%g,%g,%g)-(%g,%g,%g)]", b.Min[0], b.Min[1], b.Min[2], b.Max[0], b.Max[1], b.Max[2])
}
