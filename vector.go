package collisiongrid

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Lane masks returned by the comparison helpers. Bit n is set when lane n
// passed.
const (
	Mask3D  uint8 = 0b0111
	MaskAll uint8 = 0b1111
)

const (
	signBit  uint32 = 0x80000000
	absMask  uint32 = 0x7FFFFFFF
	expoMask uint32 = 0x7F800000
)

// Vector is a 4 lane float vector. W is padding and stays zero for
// positions and directions.
type Vector mgl32.Vec4

func NewVector(x, y, z float32) Vector {
	return Vector{x, y, z, 0}
}

func NewVector4(x, y, z, w float32) Vector {
	return Vector{x, y, z, w}
}

// Splat fills X, Y and Z with f.
func Splat(f float32) Vector {
	return Vector{f, f, f, 0}
}

func FromVec3(v mgl32.Vec3) Vector {
	return Vector{v[0], v[1], v[2], 0}
}

// VectorFrom reads four lanes from f. Missing lanes are zero.
func VectorFrom(f []float32) Vector {
	var v Vector
	copy(v[:], f)
	return v
}

// LoadUnsafe reads externally owned data and masks W to zero.
func LoadUnsafe(f []float32) Vector {
	var v Vector
	if len(f) > 3 {
		f = f[:3]
	}
	copy(v[:], f)
	return v
}

// Vectorize converts cell coordinates to floats.
func Vectorize(i Integers) Vector {
	return Vector{float32(i[0]), float32(i[1]), float32(i[2]), float32(i[3])}
}

func (v Vector) X() float32 { return v[0] }
func (v Vector) Y() float32 { return v[1] }
func (v Vector) Z() float32 { return v[2] }
func (v Vector) W() float32 { return v[3] }

func (v Vector) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{v[0], v[1], v[2]}
}

func (v Vector) Add(o Vector) Vector {
	return Vector(mgl32.Vec4(v).Add(mgl32.Vec4(o)))
}

func (v Vector) Sub(o Vector) Vector {
	return Vector(mgl32.Vec4(v).Sub(mgl32.Vec4(o)))
}

// Mul multiplies lane by lane.
func (v Vector) Mul(o Vector) Vector {
	return Vector{v[0] * o[0], v[1] * o[1], v[2] * o[2], v[3] * o[3]}
}

// Div divides lane by lane. W lanes of zero divided by zero give NaN, so
// callers mask W when it matters.
func (v Vector) Div(o Vector) Vector {
	return Vector{v[0] / o[0], v[1] / o[1], v[2] / o[2], v[3] / o[3]}
}

func (v Vector) Scale(s float32) Vector {
	return Vector(mgl32.Vec4(v).Mul(s))
}

func (v Vector) DivScalar(s float32) Vector {
	return Vector{v[0] / s, v[1] / s, v[2] / s, v[3] / s}
}

func (v Vector) Neg() Vector {
	return Vector{-v[0], -v[1], -v[2], -v[3]}
}

func (v Vector) Dot3(o Vector) float32 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

// Mask3 clears W.
func (v Vector) Mask3() Vector {
	v[3] = 0
	return v
}

// And keeps only the lanes set in mask.
func (v Vector) And(mask uint8) Vector {
	for i := range v {
		if mask&(1<<i) == 0 {
			v[i] = 0
		}
	}
	return v
}

func (v Vector) LessMask(o Vector) uint8 {
	var m uint8
	for i := range v {
		if v[i] < o[i] {
			m |= 1 << i
		}
	}
	return m
}

func (v Vector) LessEqualMask(o Vector) uint8 {
	var m uint8
	for i := range v {
		if v[i] <= o[i] {
			m |= 1 << i
		}
	}
	return m
}

// Less reports whether all four lanes of v are below o.
func (v Vector) Less(o Vector) bool {
	return v.LessMask(o) == MaskAll
}

// LessEqual reports whether all four lanes of v are at most o.
func (v Vector) LessEqual(o Vector) bool {
	return v.LessEqualMask(o) == MaskAll
}

func (v Vector) Equal(o Vector) bool {
	return v == o
}

// InvalidBits returns a lane mask of NaN or Inf lanes.
func (v Vector) InvalidBits() uint8 {
	var m uint8
	for i, f := range v {
		if math.Float32bits(f)&expoMask == expoMask {
			m |= 1 << i
		}
	}
	return m
}

func (v Vector) IsValid() bool {
	return v.InvalidBits() == 0
}

// GreaterThanZero returns 1 for every lane that is >= 0.
func (v Vector) GreaterThanZero() Integers {
	var r Integers
	for i, f := range v {
		if f >= 0 {
			r[i] = 1
		}
	}
	return r
}

// SignBits returns the sign bit of every lane, movemask style.
func (v Vector) SignBits() uint8 {
	var m uint8
	for i, f := range v {
		if math.Float32bits(f)&signBit != 0 {
			m |= 1 << i
		}
	}
	return m
}

// SignsNoZero maps every lane to -1 or +1. Zero counts as positive.
func (v Vector) SignsNoZero() Vector {
	var r Vector
	for i, f := range v {
		if f < 0 {
			r[i] = -1
		} else {
			r[i] = 1
		}
	}
	return r
}

func (v Vector) SizeSq() float32 {
	return v.Dot3(v)
}

func (v Vector) SizeXYSq() float32 {
	return v[0]*v[0] + v[1]*v[1]
}

// InCylinder tests v as an offset from the center of a vertical cylinder.
// The bounds are inclusive.
func (v Vector) InCylinder(radius, height float32) bool {
	return v.SizeXYSq() <= radius*radius && v[2]*v[2] <= height*height
}

// InCylinderRadius ignores height.
func (v Vector) InCylinderRadius(radius float32) bool {
	return v.SizeXYSq() < radius*radius
}

// InCylinderExtent takes the radius from extent.X and the half height from
// extent.Z.
func (v Vector) InCylinderExtent(extent Vector) bool {
	return v.InCylinder(extent[0], extent[2])
}

func (v Vector) Absolute() Vector {
	for i, f := range v {
		v[i] = math.Float32frombits(math.Float32bits(f) & absMask)
	}
	return v
}

// Truncate32 rounds every lane toward zero.
func (v Vector) Truncate32() Integers {
	return Integers{int32(v[0]), int32(v[1]), int32(v[2]), int32(v[3])}
}

// Normal returns v scaled to unit length using an approximate inverse
// square root. A zero vector stays zero.
func (v Vector) Normal() Vector {
	sq := mgl32.Vec4(v).Dot(mgl32.Vec4(v))
	if sq == 0 {
		return Vector{}
	}
	return v.Scale(fastInvSqrt(sq))
}

// NormalXY normalizes the XY projection. Z and W are cleared.
func (v Vector) NormalXY() Vector {
	sq := v.SizeXYSq()
	if sq == 0 {
		return Vector{}
	}
	r := fastInvSqrt(sq)
	return Vector{v[0] * r, v[1] * r, 0, 0}
}

// Reciprocal is a fast 1/x for every lane, within about 1e-5 relative
// error. Zero lanes become +Inf or -Inf following the sign of the input.
func (v Vector) Reciprocal() Vector {
	for i, f := range v {
		v[i] = fastRecip(f)
	}
	return v
}

// TransformByXY rotates the XY part of v into the frame of dir, which must
// be a normalized XY direction. Z and W are kept.
func (v Vector) TransformByXY(dir Vector) Vector {
	return Vector{
		v[0]*dir[0] + v[1]*dir[1],
		-v[0]*dir[1] + v[1]*dir[0],
		v[2],
		v[3],
	}
}

func Min(a, b Vector) Vector {
	for i := range a {
		if b[i] < a[i] {
			a[i] = b[i]
		}
	}
	return a
}

func Max(a, b Vector) Vector {
	for i := range a {
		if b[i] > a[i] {
			a[i] = b[i]
		}
	}
	return a
}

func Clamp(v, lo, hi Vector) Vector {
	return Min(Max(v, lo), hi)
}

func fastInvSqrt(x float32) float32 {
	half := 0.5 * x
	i := math.Float32bits(x)
	i = 0x5f375a86 - (i >> 1)
	y := math.Float32frombits(i)
	y = y * (1.5 - half*y*y)
	y = y * (1.5 - half*y*y)
	y = y * (1.5 - half*y*y)
	return y
}

func fastRecip(x float32) float32 {
	bits := math.Float32bits(x)
	sign := bits & signBit
	ax := math.Float32frombits(bits & absMask)
	switch {
	case ax == 0:
		return math.Float32frombits(sign | expoMask)
	case math.IsInf(float64(ax), 0):
		return math.Float32frombits(sign)
	case ax != ax:
		return x
	}
	y := math.Float32frombits(0x7EF311C7 - math.Float32bits(ax))
	y = y * (2 - ax*y)
	y = y * (2 - ax*y)
	y = y * (2 - ax*y)
	y = y * (2 - ax*y)
	return math.Float32frombits(math.Float32bits(y) | sign)
}

// Integers is a 4 lane int32 cell coordinate. The last lane is padding.
type Integers [4]int32

func (c Integers) I() int32 { return c[0] }
func (c Integers) J() int32 { return c[1] }
func (c Integers) K() int32 { return c[2] }

func (c Integers) Add(o Integers) Integers {
	return Integers{c[0] + o[0], c[1] + o[1], c[2] + o[2], c[3] + o[3]}
}

func (c Integers) Sub(o Integers) Integers {
	return Integers{c[0] - o[0], c[1] - o[1], c[2] - o[2], c[3] - o[3]}
}

// Eq3 compares i, j and k.
func (c Integers) Eq3(o Integers) bool {
	return c[0] == o[0] && c[1] == o[1] && c[2] == o[2]
}
