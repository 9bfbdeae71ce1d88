package scene

import (
	"github.com/EngoEngine/ecs"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/ScottBrooks/collisiongrid"
)

// Query flag categories used by the scene.
const (
	FlagActor uint32 = 1 << iota
	FlagProjectile
	FlagBrush
	FlagAll = FlagActor | FlagProjectile | FlagBrush
)

// Actor is an upright collision cylinder.
type Actor struct {
	ecs.BasicEntity

	Location mgl32.Vec3
	Velocity mgl32.Vec3
	Angle    float32

	// Radius and HalfHeight size the collision cylinder.
	Radius     float32
	HalfHeight float32

	QueryFlags    uint32
	Brush         bool
	MovingBrush   bool
	CollideWorld  bool
	CollideActors bool
	Deleted       bool
	Health        float32

	handle collisiongrid.Handle
	moved  bool
}

func NewActor(pos mgl32.Vec3, radius, halfHeight float32) *Actor {
	return &Actor{
		BasicEntity:   ecs.NewBasic(),
		Location:      pos,
		Radius:        radius,
		HalfHeight:    halfHeight,
		QueryFlags:    FlagActor,
		CollideWorld:  true,
		CollideActors: true,
		Health:        100,
	}
}

// NewBrush returns a static box shaped blocker. Its cylinder covers the box
// footprint for the narrow phase.
func NewBrush(b collisiongrid.Box, moving bool) *Actor {
	size := b.Size()
	r := size.X()
	if size.Y() > r {
		r = size.Y()
	}
	a := NewActor(b.CenterPoint().Vec3(), r/2, size.Z()/2)
	a.QueryFlags = FlagBrush
	a.Brush = true
	a.MovingBrush = moving
	a.CollideWorld = false
	return a
}

func (a *Actor) EntityID() collisiongrid.EntityID {
	return collisiongrid.EntityID(a.ID())
}

// Extent is the cylinder as (radius, radius, half height).
func (a *Actor) Extent() mgl32.Vec3 {
	return mgl32.Vec3{a.Radius, a.Radius, a.HalfHeight}
}

func (a *Actor) Bounds() collisiongrid.Box {
	l, e := collisiongrid.FromVec3(a.Location), collisiongrid.FromVec3(a.Extent())
	return collisiongrid.BoxStrict(l.Sub(e), l.Add(e))
}

// MoveTo places the actor and flags it for re-insertion.
func (a *Actor) MoveTo(pos mgl32.Vec3) {
	if pos != a.Location {
		a.Location = pos
		a.moved = true
	}
}

func (a *Actor) Moved() bool { return a.moved }

func (a *Actor) Handle() collisiongrid.Handle { return a.handle }

// TakeDamage reports whether the actor is out of health.
func (a *Actor) TakeDamage(amount float32) bool {
	a.Health -= amount
	return a.Health <= 0
}
