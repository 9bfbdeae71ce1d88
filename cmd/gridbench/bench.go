package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/EngoEngine/ecs"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"github.com/ScottBrooks/collisiongrid"
	"github.com/ScottBrooks/collisiongrid/scene"
)

type bench struct {
	sc    *Scenario
	rng   *rand.Rand
	scene *scene.Scene
	world ecs.World

	wander      *scene.WanderSystem
	collisions  *scene.CollisionSystem
	projectiles *scene.ProjectileSystem

	arena     collisiongrid.HitArena
	wanderers []*scene.Actor
	flags     []uint32
	dead      []*scene.Actor
	deaths    int
	tick      int

	rows []TickRow
}

func newBench(sc *Scenario, cfg collisiongrid.Config) (*bench, error) {
	s, err := scene.New(sc.worldBox(), cfg)
	if err != nil {
		return nil, err
	}
	b := &bench{
		sc:    sc,
		rng:   rand.New(rand.NewSource(sc.Seed)),
		scene: s,
	}
	for _, q := range sc.Queries {
		f, _ := parseFlags(q.Flags)
		b.flags = append(b.flags, f)
	}

	b.wander = &scene.WanderSystem{Rand: b.rng, Speed: sc.Wanderers.Speed, TurnRate: sc.Wanderers.TurnRate}
	b.collisions = &scene.CollisionSystem{Scene: s}
	b.projectiles = &scene.ProjectileSystem{Scene: s, OnHit: b.onHit}

	b.world.AddSystem(b.wander)
	b.world.AddSystem(&scene.MovementSystem{Scene: s})
	b.world.AddSystem(b.collisions)
	b.world.AddSystem(b.projectiles)

	if err := b.populate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *bench) randomPoint(margin float32) mgl32.Vec3 {
	w := b.scene.World
	var p mgl32.Vec3
	for a := 0; a < 3; a++ {
		lo, hi := w.Min[a]+margin, w.Max[a]-margin
		if hi < lo {
			lo, hi = w.Min[a], w.Max[a]
		}
		p[a] = lo + b.rng.Float32()*(hi-lo)
	}
	return p
}

func (b *bench) populate() error {
	br := b.sc.Brushes
	for i := 0; i < br.Count; i++ {
		c := collisiongrid.FromVec3(b.randomPoint(br.MaxSize / 2))
		half := collisiongrid.NewVector(
			br.MinSize+b.rng.Float32()*(br.MaxSize-br.MinSize),
			br.MinSize+b.rng.Float32()*(br.MaxSize-br.MinSize),
			br.MinSize,
		).Scale(0.5)
		moving := i%10 == 0
		brush := scene.NewBrush(collisiongrid.BoxStrict(c.Sub(half), c.Add(half)), moving)
		if moving {
			brush.Velocity = mgl32.Vec3{b.rng.Float32()*100 - 50, b.rng.Float32()*100 - 50, 0}
		}
		if _, err := b.collisions.Add(brush); err != nil {
			return err
		}
	}

	wa := b.sc.Wanderers
	for i := 0; i < wa.Count; i++ {
		a := scene.NewActor(b.randomPoint(wa.HalfHeight), wa.Radius, wa.HalfHeight)
		a.Angle = b.rng.Float32() * 360
		if _, err := b.collisions.Add(a); err != nil {
			return err
		}
		b.wander.Add(a)
		b.wanderers = append(b.wanderers, a)
	}
	logrus.Infof("Populated %d brushes and %d wanderers over %s", br.Count, wa.Count, b.scene.World)
	return nil
}

func (b *bench) onHit(h scene.ProjectileHit) {
	if h.Target.Brush {
		return
	}
	if h.Target.TakeDamage(h.Projectile.Damage) {
		b.dead = append(b.dead, h.Target)
	}
}

// reap drops actors killed this tick. Every other death is left for the
// queries to purge lazily.
func (b *bench) reap() {
	for _, a := range b.dead {
		if _, ok := b.scene.Actor(a.EntityID()); !ok {
			continue
		}
		b.deaths++
		if b.deaths%2 == 0 {
			b.world.RemoveEntity(a.BasicEntity)
		} else {
			b.scene.Kill(a.EntityID())
			b.wander.Remove(a.BasicEntity)
		}
		logrus.Debugf("Actor %d died", a.ID())
	}
	b.dead = b.dead[:0]

	live := b.wanderers[:0]
	for _, a := range b.wanderers {
		if _, ok := b.scene.Actor(a.EntityID()); ok {
			live = append(live, a)
		}
	}
	b.wanderers = live
}

func (b *bench) fire() {
	p := b.sc.Projectiles
	if p.FireEvery <= 0 || len(b.wanderers) == 0 || b.tick%p.FireEvery != 0 {
		return
	}
	for i := 0; i < len(b.wanderers)/50+1; i++ {
		owner := b.wanderers[b.rng.Intn(len(b.wanderers))]
		b.projectiles.Fire(owner, p.Speed, p.Damage, p.Life)
	}
}

func (b *bench) runQueries(row *TickRow) {
	b.arena.Reset()
	h := b.scene.Hash
	start := time.Now()
	for n, q := range b.sc.Queries {
		flags := b.flags[n]
		for i := 0; i < q.PerTick; i++ {
			var hits *collisiongrid.Hit
			switch {
			case q.Sphere != nil:
				hits = h.QueryRadius(&b.arena, q.Sphere.Center.vector().Vec3(), float32(q.Sphere.Radius), flags, false)
			case q.Box != nil:
				c, e := q.Box.Center.vector(), q.Box.Edge.half()
				hits = h.QueryBox(&b.arena, collisiongrid.BoxStrict(c.Sub(e), c.Add(e)), flags)
			case len(b.wanderers) == 0:
				continue
			case q.RelativeSphere != nil:
				a := b.wanderers[b.rng.Intn(len(b.wanderers))]
				hits = h.QueryRadius(&b.arena, a.Location, float32(q.RelativeSphere.Radius), flags, true)
			case q.RelativeBox != nil:
				a := b.wanderers[b.rng.Intn(len(b.wanderers))]
				hits = h.QueryPoint(&b.arena, a.Location, q.RelativeBox.Edge.half().Vec3(), flags, 0)
			}
			row.Queries++
			row.Hits += hits.Len()
		}
	}
	row.QueryMicros = float64(time.Since(start).Microseconds())
}

// probe asks whether a random wanderer could turn around in place.
func (b *bench) probe(row *TickRow) {
	if len(b.wanderers) == 0 {
		return
	}
	a := b.wanderers[b.rng.Intn(len(b.wanderers))]
	turn := mgl32.QuatRotate(mgl32.DegToRad(180), mgl32.Vec3{0, 0, 1})
	hits := b.scene.Hash.QueryEncroachment(&b.arena, a.EntityID(), a.Location, turn, scene.FlagAll, 0)
	row.Encroached = hits.Len()
}

func (b *bench) step() TickRow {
	row := TickRow{Tick: b.tick}
	before := b.scene.Hash.Stats()

	b.fire()
	start := time.Now()
	b.world.Update(b.sc.DT)
	row.UpdateMicros = float64(time.Since(start).Microseconds())
	b.reap()
	b.runQueries(&row)
	b.probe(&row)

	after := b.scene.Hash.Stats()
	row.Actors = len(b.scene.Actors)
	row.Records = after.Records
	row.GlobalRecords = after.GlobalRecords
	row.Purged = int(after.Purged - before.Purged)
	row.Contacts = b.collisions.Contacts
	row.Traces = b.projectiles.Traces
	row.ProjectileHits = b.projectiles.Hits
	row.Projectiles = len(b.projectiles.Projectiles)
	b.collisions.Contacts, b.projectiles.Traces, b.projectiles.Hits = 0, 0, 0

	b.tick++
	return row
}

func (b *bench) run(ticks int) []TickRow {
	for i := 0; i < ticks; i++ {
		row := b.step()
		b.rows = append(b.rows, row)
		if i%100 == 0 {
			logrus.WithFields(logrus.Fields{
				"actors":  row.Actors,
				"records": row.Records,
				"global":  row.GlobalRecords,
				"hits":    row.Hits,
			}).Infof("Tick %d", row.Tick)
		}
	}
	return b.rows
}

func (b *bench) String() string {
	g := b.scene.Hash.Grid()
	return fmt.Sprintf("grid %s size %v cells %d", g.ID, g.Size, g.CellCount())
}
