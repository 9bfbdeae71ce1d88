package collisiongrid

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
)

// Entities is the host's view of its entities. Every method may be called
// with an id the host no longer knows; Alive must then report false.
type Entities interface {
	// Bounds is the collision box of the entity at its current pose.
	Bounds(id EntityID) Box
	QueryFlags(id EntityID) uint32
	IsBrush(id EntityID) bool
	IsMovingBrush(id EntityID) bool
	// Alive reports whether the entity exists and still collides.
	Alive(id EntityID) bool
	Location(id EntityID) mgl32.Vec3
	CollisionRadius(id EntityID) float32
	// CylinderExtent is (radius, radius, half height).
	CylinderExtent(id EntityID) mgl32.Vec3
	CollidesWithWorld(id EntityID) bool
	CollisionHandle(id EntityID) Handle
	SetCollisionHandle(id EntityID, h Handle)
}

// Pose is a hypothetical placement used by encroachment queries.
type Pose struct {
	Location mgl32.Vec3
	Rotation mgl32.Quat
}

// NarrowPhase runs the exact shape tests. Each method reports true on
// overlap and may fill in the hit's time, location, normal and item.
type NarrowPhase interface {
	PointCheck(hit *Hit, id EntityID, location, extent mgl32.Vec3, extra uint32) bool
	LineCheck(hit *Hit, id EntityID, end, start, extent mgl32.Vec3, extra uint32) bool
	// EncroachCheck tests the prober at pose against a cylinder at
	// location with the given extent.
	EncroachCheck(hit *Hit, prober EntityID, pose Pose, location, extent mgl32.Vec3) bool
}

// Stats are running counters of a CollisionHash.
type Stats struct {
	Records       int
	GlobalRecords int
	PoolBlocks    int
	Queries       uint64
	Purged        uint64
	Refused       uint64
}

// CollisionHash indexes the entities of one world. It is not safe for
// concurrent use; mutations and queries must be serialized by the caller.
type CollisionHash struct {
	cfg      Config
	grid     *Grid
	pool     *ElementPool[Record, *Record]
	entities Entities
	narrow   NarrowPhase
	log      *logrus.Entry

	queries uint64
	purged  uint64
	refused uint64
}

func NewCollisionHash(world WorldBounds, entities Entities, narrow NarrowPhase, cfg Config) (*CollisionHash, error) {
	g, err := NewGrid(world, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating grid: %w", err)
	}
	var flags PoolFlags
	if cfg.Pool.ZeroOnRelease {
		flags |= ZeroOnRelease
	}
	return &CollisionHash{
		cfg:      cfg,
		grid:     g,
		pool:     NewElementPool[Record, *Record]("Record", cfg.Pool.BlockSize, cfg.Pool.MaxBlocks, flags),
		entities: entities,
		narrow:   narrow,
		log:      g.log,
	}, nil
}

func (h *CollisionHash) Grid() *Grid { return h.grid }

func (h *CollisionHash) Config() Config { return h.cfg }

func (h *CollisionHash) Stats() Stats {
	return Stats{
		Records:       h.pool.Len(),
		GlobalRecords: h.grid.global.Len(),
		PoolBlocks:    h.pool.Blocks(),
		Queries:       h.queries,
		Purged:        h.purged,
		Refused:       h.refused,
	}
}

// Record returns the live record of id.
func (h *CollisionHash) Record(id EntityID) (*Record, bool) {
	r := h.lookup(id)
	return r, r != nil
}

// AddEntity indexes id. Adding an entity that is already indexed refreshes
// it. It reports false when the entity's box cannot be placed; the entity
// is then not indexed. The only error is pool exhaustion.
func (h *CollisionHash) AddEntity(id EntityID) (bool, error) {
	if r := h.lookup(id); r != nil {
		h.unlink(r)
	}
	r, idx, err := h.pool.Acquire()
	if err != nil {
		h.entities.SetCollisionHandle(id, NoHandle)
		return false, fmt.Errorf("adding entity %d: %w", id, err)
	}
	handle := Handle(idx + 1)
	h.initRecord(r, id, handle)
	if !h.grid.Insert(r) {
		h.refused++
		h.pool.Release(r)
		h.entities.SetCollisionHandle(id, NoHandle)
		return false, nil
	}
	h.entities.SetCollisionHandle(id, handle)
	return true, nil
}

// RemoveEntity drops id from the index. It reports false when id was not
// indexed.
func (h *CollisionHash) RemoveEntity(id EntityID) bool {
	r := h.lookup(id)
	if r == nil {
		return false
	}
	h.unlink(r)
	h.entities.SetCollisionHandle(id, NoHandle)
	return true
}

// MoveEntity re-reads the entity's bounds and flags and re-inserts it. The
// old placement is removed with the box snapshot taken at insert time. An
// entity that was not indexed is added.
func (h *CollisionHash) MoveEntity(id EntityID) (bool, error) {
	r := h.lookup(id)
	if r == nil {
		return h.AddEntity(id)
	}
	h.grid.Remove(r)
	assertf(r.links == 0, "record of entity %d still linked %d times after remove", id, r.links)
	h.initRecord(r, id, r.handle)
	if !h.grid.Insert(r) {
		h.refused++
		h.pool.Release(r)
		h.entities.SetCollisionHandle(id, NoHandle)
		return false, nil
	}
	return true, nil
}

// Close drops every record. The hash must not be used afterwards.
func (h *CollisionHash) Close() {
	h.pool.Exit()
}

func (h *CollisionHash) initRecord(r *Record, id EntityID, handle Handle) {
	b := h.entities.Bounds(id)
	r.Entity = id
	r.handle = handle
	r.QueryFlags = h.entities.QueryFlags(id)
	r.Box = BoxStrict(b.Min.Mask3(), b.Max.Mask3())
	r.Flags = Committed
	r.tag = 0
	if h.entities.IsMovingBrush(id) {
		r.Flags |= MovingBrush
	}
	if h.entities.IsBrush(id) {
		r.Box = r.Box.ExpandBounds(Splat(h.cfg.BrushPadding))
		r.Flags |= BoxReject
	}
}

// lookup resolves the entity's handle. A handle pointing at a free record
// or at another entity's record resolves to nil.
func (h *CollisionHash) lookup(id EntityID) *Record {
	handle := h.entities.CollisionHandle(id)
	if handle == NoHandle {
		return nil
	}
	r := h.pool.GetIndexedElement(int32(handle - 1))
	if r == nil || r.Flags&Committed == 0 || r.Entity != id || r.handle != handle {
		return nil
	}
	return r
}

func (h *CollisionHash) unlink(r *Record) {
	h.grid.Remove(r)
	assertf(r.links == 0, "record of entity %d still linked %d times after remove", r.Entity, r.links)
	h.pool.Release(r)
}

// valid reports whether r still belongs to a live entity that points back
// at it.
func (h *CollisionHash) valid(r *Record) bool {
	switch {
	case r.Flags&Committed == 0:
	case !h.entities.Alive(r.Entity):
		h.log.Debugf("Entity %d shouldn't be in the grid", r.Entity)
	case h.entities.CollisionHandle(r.Entity) != r.handle:
		h.log.Debugf("Record %d no longer owned by entity %d", r.handle, r.Entity)
	default:
		return true
	}
	return false
}

// purge is called after a stale record was dropped from one list. The
// record goes back to the pool once no list holds it.
func (h *CollisionHash) purge(r *Record) {
	h.purged++
	if r.links > 0 {
		return
	}
	if h.entities.CollisionHandle(r.Entity) == r.handle {
		h.entities.SetCollisionHandle(r.Entity, NoHandle)
	}
	h.pool.Release(r)
}

func (h *CollisionHash) arena(a *HitArena) *HitArena {
	if a != nil {
		return a
	}
	return NewHitArena(h.cfg.ArenaBlockSize)
}

// QueryPoint returns entities whose narrow phase reports overlap with the
// box location +- extent.
func (h *CollisionHash) QueryPoint(arena *HitArena, location, extent mgl32.Vec3, flags, extra uint32) *Hit {
	q := newPointQuery(h, h.arena(arena), location, extent, flags, extra)
	q.Query()
	return q.result
}

// QueryRadius returns entities whose location lies within radius of
// location, boundary included. With addOtherRadius the entity's collision
// radius is added to the search radius.
func (h *CollisionHash) QueryRadius(arena *HitArena, location mgl32.Vec3, radius float32, flags uint32, addOtherRadius bool) *Hit {
	q := newRadiusQuery(h, h.arena(arena), location, radius, flags, addOtherRadius)
	q.Query()
	return q.result
}

// QueryBox returns entities whose cached box overlaps box. No narrow phase
// is consulted.
func (h *CollisionHash) QueryBox(arena *HitArena, box Box, flags uint32) *Hit {
	q := newBoxQuery(h, h.arena(arena), box, flags)
	q.Query()
	return q.result
}

// QueryLine traces from start to end with a box of half size extent.
func (h *CollisionHash) QueryLine(arena *HitArena, end, start, extent mgl32.Vec3, flags, extra uint32) *Hit {
	if end == start {
		return nil
	}
	q := newLineQuery(h, h.arena(arena), end, start, extent, flags, extra)
	q.Query()
	return q.result
}

// QueryEncroachment returns entities the prober would overlap if it were
// moved to location and turned by rotation. rotation is relative to the
// prober's current orientation; use mgl32.QuatIdent for none.
func (h *CollisionHash) QueryEncroachment(arena *HitArena, prober EntityID, location mgl32.Vec3, rotation mgl32.Quat, flags, extra uint32) *Hit {
	q := newEncroachmentQuery(h, h.arena(arena), prober, Pose{Location: location, Rotation: rotation}, flags, extra)
	q.Query()
	return q.result
}
