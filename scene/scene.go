package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"github.com/ScottBrooks/collisiongrid"
)

var log = logrus.WithField("component", "scene")

// Scene owns the actors of one world and the collision hash indexing them.
// It is the hash's view of the entities.
type Scene struct {
	Actors map[collisiongrid.EntityID]*Actor
	World  collisiongrid.Box
	Hash   *collisiongrid.CollisionHash
}

// New builds a scene over bounds. A zero box gives an unbounded world.
func New(bounds collisiongrid.Box, cfg collisiongrid.Config) (*Scene, error) {
	s := &Scene{
		Actors: map[collisiongrid.EntityID]*Actor{},
		World:  bounds,
	}
	world := collisiongrid.WorldBounds{Unbounded: bounds.IsZero()}
	if !world.Unbounded {
		for _, c := range bounds.Corners() {
			world.Points = append(world.Points, c.Vec3())
		}
	}
	h, err := collisiongrid.NewCollisionHash(world, s, CylinderPrimitive{s}, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating collision hash: %w", err)
	}
	s.Hash = h
	if world.Unbounded {
		s.World = h.Grid().Box
	}
	return s, nil
}

// Spawn registers a and indexes it. The actor stays registered when it
// cannot be placed in the grid.
func (s *Scene) Spawn(a *Actor) (bool, error) {
	s.Actors[a.EntityID()] = a
	if !a.CollideActors {
		return false, nil
	}
	ok, err := s.Hash.AddEntity(a.EntityID())
	if err != nil {
		return false, fmt.Errorf("spawning actor %d: %w", a.ID(), err)
	}
	if !ok {
		log.Warnf("Actor %d at %v could not be placed", a.ID(), a.Location)
	}
	return ok, nil
}

// Destroy unregisters the actor and removes it from the index.
func (s *Scene) Destroy(id collisiongrid.EntityID) {
	if _, ok := s.Actors[id]; !ok {
		return
	}
	s.Hash.RemoveEntity(id)
	delete(s.Actors, id)
}

// Kill marks the actor deleted and forgets it without touching the index.
// Its records are dropped lazily by later queries.
func (s *Scene) Kill(id collisiongrid.EntityID) {
	a, ok := s.Actors[id]
	if !ok {
		return
	}
	a.Deleted = true
	delete(s.Actors, id)
}

// Refresh re-inserts every actor that moved since the last refresh.
func (s *Scene) Refresh() error {
	for id, a := range s.Actors {
		if !a.moved {
			continue
		}
		a.moved = false
		if !a.CollideActors {
			continue
		}
		if _, err := s.Hash.MoveEntity(id); err != nil {
			return fmt.Errorf("moving actor %d: %w", a.ID(), err)
		}
	}
	return nil
}

func (s *Scene) InBounds(pos mgl32.Vec3) bool {
	return s.World.Contains3(collisiongrid.FromVec3(pos))
}

func (s *Scene) Actor(id collisiongrid.EntityID) (*Actor, bool) {
	a, ok := s.Actors[id]
	return a, ok
}

// Entities implementation. Unknown ids read as zero.

func (s *Scene) Bounds(id collisiongrid.EntityID) collisiongrid.Box {
	if a, ok := s.Actors[id]; ok {
		return a.Bounds()
	}
	return collisiongrid.Box{}
}

func (s *Scene) QueryFlags(id collisiongrid.EntityID) uint32 {
	if a, ok := s.Actors[id]; ok {
		return a.QueryFlags
	}
	return 0
}

func (s *Scene) IsBrush(id collisiongrid.EntityID) bool {
	a, ok := s.Actors[id]
	return ok && a.Brush
}

func (s *Scene) IsMovingBrush(id collisiongrid.EntityID) bool {
	a, ok := s.Actors[id]
	return ok && a.MovingBrush
}

func (s *Scene) Alive(id collisiongrid.EntityID) bool {
	a, ok := s.Actors[id]
	return ok && !a.Deleted && a.CollideActors
}

func (s *Scene) Location(id collisiongrid.EntityID) mgl32.Vec3 {
	if a, ok := s.Actors[id]; ok {
		return a.Location
	}
	return mgl32.Vec3{}
}

func (s *Scene) CollisionRadius(id collisiongrid.EntityID) float32 {
	if a, ok := s.Actors[id]; ok {
		return a.Radius
	}
	return 0
}

func (s *Scene) CylinderExtent(id collisiongrid.EntityID) mgl32.Vec3 {
	if a, ok := s.Actors[id]; ok {
		return a.Extent()
	}
	return mgl32.Vec3{}
}

func (s *Scene) CollidesWithWorld(id collisiongrid.EntityID) bool {
	a, ok := s.Actors[id]
	return ok && a.CollideWorld
}

func (s *Scene) CollisionHandle(id collisiongrid.EntityID) collisiongrid.Handle {
	if a, ok := s.Actors[id]; ok {
		return a.handle
	}
	return collisiongrid.NoHandle
}

func (s *Scene) SetCollisionHandle(id collisiongrid.EntityID, h collisiongrid.Handle) {
	if a, ok := s.Actors[id]; ok {
		a.handle = h
	}
}
