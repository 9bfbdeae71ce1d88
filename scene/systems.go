package scene

import (
	"math"
	"math/rand"

	"github.com/EngoEngine/ecs"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/ScottBrooks/collisiongrid"
)

func clampToBox(pos, vel mgl32.Vec3, b collisiongrid.Box) (mgl32.Vec3, mgl32.Vec3) {
	for a := 0; a < 3; a++ {
		if pos[a] < b.Min[a] {
			pos[a] = b.Min[a]
			vel[a] *= -1
		}
		if pos[a] > b.Max[a] {
			pos[a] = b.Max[a]
			vel[a] *= -1
		}
	}
	return pos, vel
}

// MovementSystem integrates actor velocities and bounces actors off the
// world box.
type MovementSystem struct {
	Scene *Scene
}

func (ms *MovementSystem) Remove(ecs.BasicEntity) {}
func (ms *MovementSystem) Update(dt float32) {
	for _, a := range ms.Scene.Actors {
		if a.Velocity == (mgl32.Vec3{}) || (a.Brush && !a.MovingBrush) {
			continue
		}
		pos, vel := clampToBox(a.Location.Add(a.Velocity.Mul(dt)), a.Velocity, ms.Scene.World)
		a.Velocity = vel
		a.MoveTo(pos)
	}
}

// Contact is a pair of overlapping actors. A has the lower id.
type Contact struct {
	A *Actor
	B *Actor
}

// CollisionSystem re-inserts moved actors and reports overlapping pairs
// using radius queries.
type CollisionSystem struct {
	Scene     *Scene
	Arena     collisiongrid.HitArena
	OnContact func(Contact)

	Contacts int
}

func (cs *CollisionSystem) Add(a *Actor) (bool, error) {
	return cs.Scene.Spawn(a)
}

func (cs *CollisionSystem) Remove(ent ecs.BasicEntity) {
	cs.Scene.Destroy(collisiongrid.EntityID(ent.ID()))
}

func (cs *CollisionSystem) Update(dt float32) {
	if err := cs.Scene.Refresh(); err != nil {
		log.Errorf("Refreshing scene: %v", err)
		return
	}
	cs.Arena.Reset()
	for id, a := range cs.Scene.Actors {
		if a.Brush || a.Deleted || a.QueryFlags&FlagActor == 0 {
			continue
		}
		hits := cs.Scene.Hash.QueryRadius(&cs.Arena, a.Location, a.Radius, FlagActor, true)
		for h := hits; h != nil; h = h.Next {
			if h.Entity <= id {
				continue
			}
			b, ok := cs.Scene.Actors[h.Entity]
			if !ok {
				continue
			}
			cs.Contacts++
			if cs.OnContact != nil {
				cs.OnContact(Contact{A: a, B: b})
			}
		}
	}
}

type wanderer struct {
	actor      *Actor
	nextTurnAt float32
	stopTurnAt float32
	turn       float32
}

// WanderSystem steers actors along random turns at a fixed speed.
type WanderSystem struct {
	Rand     *rand.Rand
	Speed    float32
	TurnRate float32 // degrees per second

	clock     float32
	wanderers []*wanderer
}

func (ws *WanderSystem) Add(a *Actor) {
	ws.wanderers = append(ws.wanderers, &wanderer{actor: a})
}

func (ws *WanderSystem) Remove(ent ecs.BasicEntity) {
	idx := -1
	for i, w := range ws.wanderers {
		if w.actor.ID() == ent.ID() {
			idx = i
		}
	}
	if idx != -1 {
		ws.wanderers = append(ws.wanderers[:idx], ws.wanderers[idx+1:]...)
	}
}

func (ws *WanderSystem) Update(dt float32) {
	ws.clock += dt
	for _, w := range ws.wanderers {
		if w.actor.Deleted {
			continue
		}
		if w.nextTurnAt < ws.clock {
			w.nextTurnAt = ws.clock + float32(ws.Rand.Intn(10))
			w.stopTurnAt = ws.clock + 2
			if ws.Rand.Intn(2) == 0 {
				w.turn = -ws.TurnRate
			} else {
				w.turn = ws.TurnRate
			}
		}
		if w.stopTurnAt < ws.clock {
			w.turn = 0
		}
		w.actor.Angle += w.turn * dt
		rad := float64(mgl32.DegToRad(w.actor.Angle))
		w.actor.Velocity = mgl32.Vec3{float32(math.Cos(rad)), float32(math.Sin(rad)), 0}.Mul(ws.Speed)
	}
}

// Projectile is traced through the grid every tick. It is never indexed.
type Projectile struct {
	ecs.BasicEntity

	Location mgl32.Vec3
	Velocity mgl32.Vec3
	Radius   float32
	Damage   float32
	Life     float32
	Owner    collisiongrid.EntityID
}

// ProjectileHit is reported for the first actor a projectile's trace
// touches.
type ProjectileHit struct {
	Projectile *Projectile
	Target     *Actor
	Hit        collisiongrid.Hit
}

// ProjectileSystem moves projectiles with line queries and drops them on
// their first hit, when they expire or when they leave the world.
type ProjectileSystem struct {
	Scene       *Scene
	Arena       collisiongrid.HitArena
	Projectiles []*Projectile
	OnHit       func(ProjectileHit)

	Traces int
	Hits   int
}

// Fire launches a projectile from the front of owner along its heading.
func (ps *ProjectileSystem) Fire(owner *Actor, speed, damage, life float32) *Projectile {
	rad := float64(mgl32.DegToRad(owner.Angle))
	dir := mgl32.Vec3{float32(math.Cos(rad)), float32(math.Sin(rad)), 0}.Normalize()
	p := &Projectile{
		BasicEntity: ecs.NewBasic(),
		Location:    owner.Location.Add(dir.Mul(owner.Radius + 1)),
		Velocity:    owner.Velocity.Add(dir.Mul(speed)),
		Radius:      4,
		Damage:      damage,
		Life:        life,
		Owner:       owner.EntityID(),
	}
	ps.Projectiles = append(ps.Projectiles, p)
	return p
}

func (ps *ProjectileSystem) Remove(ent ecs.BasicEntity) {
	idx := -1
	for i, p := range ps.Projectiles {
		if p.ID() == ent.ID() {
			idx = i
		}
	}
	if idx != -1 {
		ps.Projectiles = append(ps.Projectiles[:idx], ps.Projectiles[idx+1:]...)
	}
}

func (ps *ProjectileSystem) Update(dt float32) {
	ps.Arena.Reset()
	live := ps.Projectiles[:0]
	for _, p := range ps.Projectiles {
		next := p.Location.Add(p.Velocity.Mul(dt))
		extent := mgl32.Vec3{p.Radius, p.Radius, p.Radius}
		hits := ps.Scene.Hash.QueryLine(&ps.Arena, next, p.Location, extent, FlagActor|FlagBrush, 0)
		ps.Traces++

		var first *collisiongrid.Hit
		for h := hits; h != nil; h = h.Next {
			if h.Entity == p.Owner {
				continue
			}
			if first == nil || h.Time < first.Time {
				first = h
			}
		}
		if first != nil {
			if target, ok := ps.Scene.Actors[first.Entity]; ok {
				ps.Hits++
				if ps.OnHit != nil {
					ps.OnHit(ProjectileHit{Projectile: p, Target: target, Hit: *first})
				}
				continue
			}
		}

		p.Location = next
		p.Life -= dt
		if p.Life <= 0 || !ps.Scene.InBounds(next) {
			continue
		}
		live = append(live, p)
	}
	for i := len(live); i < len(ps.Projectiles); i++ {
		ps.Projectiles[i] = nil
	}
	ps.Projectiles = live
}
