package collisiongrid

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntity struct {
	box          Box
	flags        uint32
	brush        bool
	moving       bool
	dead         bool
	collideWorld bool
	radius       float32
	handle       Handle
}

// fakeWorld is both the entity view and the narrow phase. Its narrow phase
// tests boxes exactly and counts calls.
type fakeWorld struct {
	ents map[EntityID]*fakeEntity

	pointChecks  int
	lineChecks   int
	encroachOK   bool
	encroachSeen []EntityID
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{ents: map[EntityID]*fakeEntity{}, encroachOK: true}
}

func (w *fakeWorld) add(id EntityID, b Box) *fakeEntity {
	e := &fakeEntity{box: b, flags: 1, radius: b.Size()[0] / 2, collideWorld: true}
	w.ents[id] = e
	return e
}

func (w *fakeWorld) Bounds(id EntityID) Box {
	if e, ok := w.ents[id]; ok {
		return e.box
	}
	return Box{}
}

func (w *fakeWorld) QueryFlags(id EntityID) uint32 {
	if e, ok := w.ents[id]; ok {
		return e.flags
	}
	return 0
}

func (w *fakeWorld) IsBrush(id EntityID) bool {
	e, ok := w.ents[id]
	return ok && e.brush
}

func (w *fakeWorld) IsMovingBrush(id EntityID) bool {
	e, ok := w.ents[id]
	return ok && e.moving
}

func (w *fakeWorld) Alive(id EntityID) bool {
	e, ok := w.ents[id]
	return ok && !e.dead
}

func (w *fakeWorld) Location(id EntityID) mgl32.Vec3 {
	return w.Bounds(id).CenterPoint().Vec3()
}

func (w *fakeWorld) CollisionRadius(id EntityID) float32 {
	if e, ok := w.ents[id]; ok {
		return e.radius
	}
	return 0
}

func (w *fakeWorld) CylinderExtent(id EntityID) mgl32.Vec3 {
	return w.Bounds(id).Size().Scale(0.5).Vec3()
}

func (w *fakeWorld) CollidesWithWorld(id EntityID) bool {
	e, ok := w.ents[id]
	return ok && e.collideWorld
}

func (w *fakeWorld) CollisionHandle(id EntityID) Handle {
	if e, ok := w.ents[id]; ok {
		return e.handle
	}
	return NoHandle
}

func (w *fakeWorld) SetCollisionHandle(id EntityID, h Handle) {
	if e, ok := w.ents[id]; ok {
		e.handle = h
	}
}

func (w *fakeWorld) PointCheck(hit *Hit, id EntityID, location, extent mgl32.Vec3, extra uint32) bool {
	w.pointChecks++
	l, e := FromVec3(location), FromVec3(extent)
	return w.Bounds(id).Intersects3(BoxStrict(l.Sub(e), l.Add(e)))
}

func (w *fakeWorld) LineCheck(hit *Hit, id EntityID, end, start, extent mgl32.Vec3, extra uint32) bool {
	w.lineChecks++
	t, ok := segmentHitsBox(FromVec3(start), FromVec3(end), w.Bounds(id).ExpandBounds(FromVec3(extent)))
	hit.Time = t
	return ok
}

func (w *fakeWorld) EncroachCheck(hit *Hit, prober EntityID, pose Pose, location, extent mgl32.Vec3) bool {
	w.encroachSeen = append(w.encroachSeen, hit.Entity)
	return w.encroachOK
}

// segmentHitsBox is a plain slab test with t in [0,1].
func segmentHitsBox(start, end Vector, b Box) (float32, bool) {
	lo, hi := 0.0, 1.0
	for a := 0; a < 3; a++ {
		s, d := float64(start[a]), float64(end[a]-start[a])
		mn, mx := float64(b.Min[a]), float64(b.Max[a])
		if d == 0 {
			if s < mn || s > mx {
				return 0, false
			}
			continue
		}
		t0, t1 := (mn-s)/d, (mx-s)/d
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		lo = math.Max(lo, t0)
		hi = math.Min(hi, t1)
		if lo > hi {
			return 0, false
		}
	}
	return float32(lo), true
}

func newTestHash(t *testing.T) (*CollisionHash, *fakeWorld) {
	t.Helper()
	w := newFakeWorld()
	h, err := NewCollisionHash(cubeWorld(4096), w, w, DefaultConfig())
	require.NoError(t, err)
	return h, w
}

func sortedIDs(h *Hit) []EntityID {
	ids := h.Entities()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func cube(c mgl32.Vec3, half float32) Box {
	v := FromVec3(c)
	return BoxStrict(v.Sub(Splat(half)), v.Add(Splat(half)))
}

func TestHashAddRemove(t *testing.T) {
	h, w := newTestHash(t)
	e := w.add(1, box(10, 10, 10, 20, 20, 20))

	ok, err := h.AddEntity(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Handle(1), e.handle)

	r, found := h.Record(1)
	require.True(t, found)
	assert.Equal(t, EntityID(1), r.Entity)
	assert.Equal(t, 1, h.Stats().Records)

	// Adding again refreshes in place of duplicating.
	ok, err = h.AddEntity(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, h.Stats().Records)

	assert.True(t, h.RemoveEntity(1))
	assert.False(t, h.RemoveEntity(1))
	assert.Equal(t, NoHandle, e.handle)
	assert.Zero(t, h.Stats().Records)
	for _, n := range h.Grid().Occupancy() {
		require.Zero(t, n)
	}
}

func TestHashRefusesInvalidBox(t *testing.T) {
	h, w := newTestHash(t)
	nan := float32(math.NaN())
	e := w.add(1, box(nan, 0, 0, 1, 1, 1))

	ok, err := h.AddEntity(1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, NoHandle, e.handle)
	assert.Equal(t, uint64(1), h.Stats().Refused)
	assert.Zero(t, h.Stats().Records)
}

func TestHashPoolExhausted(t *testing.T) {
	w := newFakeWorld()
	cfg := DefaultConfig()
	cfg.Pool.BlockSize = 1
	cfg.Pool.MaxBlocks = 1
	h, err := NewCollisionHash(cubeWorld(4096), w, w, cfg)
	require.NoError(t, err)

	w.add(1, box(10, 10, 10, 20, 20, 20))
	w.add(2, box(10, 10, 10, 20, 20, 20))
	_, err = h.AddEntity(1)
	require.NoError(t, err)
	_, err = h.AddEntity(2)
	require.ErrorIs(t, err, ErrPoolExhausted)
	assert.Equal(t, NoHandle, w.ents[2].handle)
}

func TestHashStaleHandle(t *testing.T) {
	h, w := newTestHash(t)
	w.add(1, box(10, 10, 10, 20, 20, 20))
	w.add(2, box(10, 10, 10, 20, 20, 20))
	_, err := h.AddEntity(1)
	require.NoError(t, err)

	// Entity 2 claims entity 1's record.
	w.ents[2].handle = w.ents[1].handle
	_, found := h.Record(2)
	assert.False(t, found)
	assert.False(t, h.RemoveEntity(2))
	_, found = h.Record(1)
	assert.True(t, found)
}

func TestQueryPointEmpty(t *testing.T) {
	h, _ := newTestHash(t)
	assert.Nil(t, h.QueryPoint(nil, mgl32.Vec3{100, 100, 100}, mgl32.Vec3{10, 10, 10}, 1, 0))
	assert.Equal(t, uint64(1), h.Stats().Queries)
}

func TestQueryPoint(t *testing.T) {
	h, w := newTestHash(t)
	w.add(1, box(100, 100, 100, 200, 200, 200))
	w.add(2, box(300, 300, 300, 400, 400, 400))
	w.add(3, box(150, 150, 150, 160, 160, 160)).flags = 2
	for id := range w.ents {
		_, err := h.AddEntity(id)
		require.NoError(t, err)
	}

	got := h.QueryPoint(nil, mgl32.Vec3{190, 190, 190}, mgl32.Vec3{20, 20, 20}, 1, 0)
	assert.Equal(t, []EntityID{1}, got.Entities())

	got = h.QueryPoint(nil, mgl32.Vec3{155, 155, 155}, mgl32.Vec3{1, 1, 1}, 3, 0)
	assert.Equal(t, []EntityID{1, 3}, sortedIDs(got))
}

func TestQueryLineZeroLength(t *testing.T) {
	h, w := newTestHash(t)
	w.add(1, box(0, 0, 0, 4096, 4096, 4096))
	_, err := h.AddEntity(1)
	require.NoError(t, err)

	p := mgl32.Vec3{100, 100, 100}
	assert.Nil(t, h.QueryLine(nil, p, p, mgl32.Vec3{}, 1, 0))
	assert.Zero(t, h.Stats().Queries)
	assert.Zero(t, w.lineChecks)
}

func TestQueryLineOutsideWorld(t *testing.T) {
	h, w := newTestHash(t)
	w.add(1, box(9000, 8900, 8900, 9100, 9100, 9100))
	_, err := h.AddEntity(1)
	require.NoError(t, err)
	require.Equal(t, 1, h.Stats().GlobalRecords)

	got := h.QueryLine(nil, mgl32.Vec3{9200, 9000, 9000}, mgl32.Vec3{8800, 9000, 9000}, mgl32.Vec3{}, 1, 0)
	assert.Nil(t, got, "a trace that misses the world skips the overflow list")
	assert.Zero(t, w.lineChecks)

	// A trace through the world sees overflow records.
	h.QueryLine(nil, mgl32.Vec3{200, 100, 100}, mgl32.Vec3{100, 100, 100}, mgl32.Vec3{}, 1, 0)
	assert.Equal(t, 1, w.lineChecks)
}

func TestQueryLineFindsAlongPath(t *testing.T) {
	cases := []struct {
		name       string
		start, end mgl32.Vec3
		extent     mgl32.Vec3
	}{
		{"diagonal", mgl32.Vec3{100, 100, 100}, mgl32.Vec3{4000, 3000, 2000}, mgl32.Vec3{}},
		{"reverse", mgl32.Vec3{4000, 3000, 2000}, mgl32.Vec3{100, 100, 100}, mgl32.Vec3{8, 8, 8}},
		{"single axis", mgl32.Vec3{100, 700, 700}, mgl32.Vec3{3900, 700, 700}, mgl32.Vec3{}},
		{"flat", mgl32.Vec3{3900, 100, 2000}, mgl32.Vec3{100, 3900, 2000}, mgl32.Vec3{30, 30, 30}},
		{"one cell", mgl32.Vec3{10, 10, 10}, mgl32.Vec3{400, 300, 200}, mgl32.Vec3{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h, w := newTestHash(t)
			var want []EntityID
			for n := 1; n <= 9; n++ {
				f := float32(n) / 10
				p := c.start.Add(c.end.Sub(c.start).Mul(f))
				w.add(EntityID(n), cube(p, 5))
				want = append(want, EntityID(n))
				// Well off the path.
				w.add(EntityID(100+n), cube(p.Add(mgl32.Vec3{0, 0, 300}), 5))
			}
			for id := range w.ents {
				_, err := h.AddEntity(id)
				require.NoError(t, err)
			}
			got := h.QueryLine(nil, c.end, c.start, c.extent, 1, 0)
			if diff := cmp.Diff(want, sortedIDs(got)); diff != "" {
				t.Errorf("hits (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQueryLineMatchesBruteForce(t *testing.T) {
	h, w := newTestHash(t)
	rng := rand.New(rand.NewSource(7))
	point := func() mgl32.Vec3 {
		return mgl32.Vec3{50 + rng.Float32()*4000, 50 + rng.Float32()*4000, 50 + rng.Float32()*4000}
	}
	for id := EntityID(1); id <= 300; id++ {
		w.add(id, cube(point(), 10+rng.Float32()*200))
		_, err := h.AddEntity(id)
		require.NoError(t, err)
	}

	for n := 0; n < 60; n++ {
		start, end := point(), point()
		ext := mgl32.Vec3{rng.Float32() * 20, rng.Float32() * 20, rng.Float32() * 20}
		var want []EntityID
		for id, e := range w.ents {
			if _, ok := segmentHitsBox(FromVec3(start), FromVec3(end), e.box.ExpandBounds(FromVec3(ext))); ok {
				want = append(want, id)
			}
		}
		sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

		got := sortedIDs(h.QueryLine(nil, end, start, ext, 1, 0))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("trace %v -> %v (-want +got):\n%s", start, end, diff)
		}
	}
}

func TestQueryRadiusBoundary(t *testing.T) {
	h, w := newTestHash(t)
	w.add(1, cube(mgl32.Vec3{1003, 1004, 1000}, 1))
	w.add(2, cube(mgl32.Vec3{1003, 1004.001, 1000}, 1))
	far := w.add(3, cube(mgl32.Vec3{1007, 1000, 1000}, 1))
	far.radius = 2
	for id := range w.ents {
		_, err := h.AddEntity(id)
		require.NoError(t, err)
	}

	origin := mgl32.Vec3{1000, 1000, 1000}
	got := h.QueryRadius(nil, origin, 5, 1, false)
	assert.Equal(t, []EntityID{1}, got.Entities())

	got = h.QueryRadius(nil, origin, 5, 1, true)
	assert.Equal(t, []EntityID{1, 2, 3}, sortedIDs(got))
}

func TestQueryBoxFindsOverflow(t *testing.T) {
	h, w := newTestHash(t)
	w.add(1, box(1, 1, 1, 4000, 4000, 4000))
	w.add(2, box(600, 600, 600, 610, 610, 610))
	for id := range w.ents {
		_, err := h.AddEntity(id)
		require.NoError(t, err)
	}
	require.Equal(t, 1, h.Stats().GlobalRecords)

	got := h.QueryBox(nil, box(605, 605, 605, 606, 606, 606), 1)
	assert.Equal(t, []EntityID{1, 2}, sortedIDs(got))

	got = h.QueryBox(nil, box(3000, 3000, 3000, 3001, 3001, 3001), 1)
	assert.Equal(t, []EntityID{1}, got.Entities())

	r, _ := h.Record(2)
	assert.Equal(t, r.Box.CenterPoint().Vec3(), h.QueryBox(nil, r.Box, 1).Location)
}

func TestQueryListFlagsSkipList(t *testing.T) {
	h, w := newTestHash(t)
	w.add(1, box(100, 100, 100, 110, 110, 110)).flags = 4
	_, err := h.AddEntity(1)
	require.NoError(t, err)

	assert.Nil(t, h.QueryPoint(nil, mgl32.Vec3{105, 105, 105}, mgl32.Vec3{1, 1, 1}, 1, 0))
	assert.Zero(t, w.pointChecks)
}

func TestLazyDeletion(t *testing.T) {
	h, w := newTestHash(t)
	e := w.add(1, box(400, 100, 100, 600, 200, 200))
	_, err := h.AddEntity(1)
	require.NoError(t, err)
	r, _ := h.Record(1)
	require.Equal(t, int32(2), r.Links())

	e.dead = true

	// Only the cell the query walks drops the record.
	got := h.QueryBox(nil, box(100, 100, 100, 200, 200, 200), 1)
	assert.Nil(t, got)
	assert.Equal(t, int32(1), r.Links())
	assert.Zero(t, h.Grid().Node(0, 0, 0).Records.Len())
	assert.Equal(t, 1, h.Grid().Node(1, 0, 0).Records.Len())
	assert.Equal(t, 1, h.Stats().Records)
	assert.Equal(t, Handle(1), e.handle)

	got = h.QueryBox(nil, box(900, 100, 100, 1000, 200, 200), 1)
	assert.Nil(t, got)
	assert.Zero(t, h.Grid().Node(1, 0, 0).Records.Len())
	assert.Zero(t, h.Stats().Records)
	assert.Equal(t, uint64(2), h.Stats().Purged)
	assert.Equal(t, NoHandle, e.handle)
}

func TestLazyDeletionOfReusedHandle(t *testing.T) {
	h, w := newTestHash(t)
	e := w.add(1, box(100, 100, 100, 110, 110, 110))
	_, err := h.AddEntity(1)
	require.NoError(t, err)

	// The entity forgets its handle without telling the hash.
	e.handle = NoHandle
	assert.Nil(t, h.QueryPoint(nil, mgl32.Vec3{105, 105, 105}, mgl32.Vec3{1, 1, 1}, 1, 0))
	assert.Zero(t, w.pointChecks)
	assert.Zero(t, h.Stats().Records)
}

func TestMoveUsesSnapshot(t *testing.T) {
	h, w := newTestHash(t)
	e := w.add(1, box(100, 100, 100, 110, 110, 110))
	_, err := h.AddEntity(1)
	require.NoError(t, err)

	// The host moves the entity before telling the hash.
	e.box = box(3000, 3000, 3000, 3010, 3010, 3010)
	ok, err := h.MoveEntity(1)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Zero(t, h.Grid().Node(0, 0, 0).Records.Len())
	assert.Equal(t, 1, h.Grid().Node(5, 5, 5).Records.Len())
	assert.Equal(t, Handle(1), e.handle)

	e.box = box(100, 100, 100, 110, 110, 110)
	require.True(t, h.RemoveEntity(1))
	for _, n := range h.Grid().Occupancy() {
		require.Zero(t, n)
	}
}

func TestMoveEntityNotIndexed(t *testing.T) {
	h, w := newTestHash(t)
	w.add(1, box(100, 100, 100, 110, 110, 110))
	ok, err := h.MoveEntity(1)
	require.NoError(t, err)
	assert.True(t, ok)
	_, found := h.Record(1)
	assert.True(t, found)
}

func TestBrushBoxReject(t *testing.T) {
	h, w := newTestHash(t)
	brush := w.add(1, box(600, 600, 600, 700, 700, 700))
	brush.brush = true
	_, err := h.AddEntity(1)
	require.NoError(t, err)

	r, _ := h.Record(1)
	assert.NotZero(t, r.Flags&BoxReject)
	assert.Equal(t, box(598, 598, 598, 702, 702, 702), r.Box)

	// Same cell, outside the padded box: no narrow phase.
	assert.Nil(t, h.QueryPoint(nil, mgl32.Vec3{900, 650, 650}, mgl32.Vec3{10, 10, 10}, 1, 0))
	assert.Zero(t, w.pointChecks)

	got := h.QueryPoint(nil, mgl32.Vec3{710, 650, 650}, mgl32.Vec3{10, 10, 10}, 1, 0)
	assert.Equal(t, []EntityID{1}, got.Entities())
	assert.Equal(t, 1, w.pointChecks)
}

func TestEncroachmentFilters(t *testing.T) {
	h, w := newTestHash(t)
	w.add(1, box(100, 100, 100, 120, 120, 120))
	w.add(2, box(110, 110, 110, 130, 130, 130))
	w.add(3, box(90, 90, 90, 140, 140, 140)).moving = true
	w.add(4, box(2000, 2000, 2000, 2010, 2010, 2010))
	for id := range w.ents {
		_, err := h.AddEntity(id)
		require.NoError(t, err)
	}

	got := h.QueryEncroachment(nil, 1, mgl32.Vec3{112, 112, 112}, mgl32.QuatIdent(), 1, 0)
	assert.Equal(t, []EntityID{2}, got.Entities())

	w.encroachOK = false
	assert.Nil(t, h.QueryEncroachment(nil, 1, mgl32.Vec3{112, 112, 112}, mgl32.QuatIdent(), 1, 0))
}

func TestEncroachmentBrushNeedsWorldCollision(t *testing.T) {
	h, w := newTestHash(t)
	w.add(1, box(100, 100, 100, 200, 200, 200)).brush = true
	w.add(2, box(150, 150, 150, 160, 160, 160))
	w.add(3, box(150, 150, 170, 160, 160, 180)).collideWorld = false
	for id := range w.ents {
		_, err := h.AddEntity(id)
		require.NoError(t, err)
	}

	got := h.QueryEncroachment(nil, 1, mgl32.Vec3{150, 150, 150}, mgl32.Quat{}, 1, 0)
	assert.Equal(t, []EntityID{2}, got.Entities())
}

func TestPoseBox(t *testing.T) {
	b := box(-2, -1, -1, 2, 1, 1)

	moved := PoseBox(b, Vector{}, Pose{Location: mgl32.Vec3{10, 0, 0}, Rotation: mgl32.QuatIdent()})
	assert.Equal(t, box(8, -1, -1, 12, 1, 1), moved)

	turned := PoseBox(b, Vector{}, Pose{Location: mgl32.Vec3{10, 0, 0}, Rotation: mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1})})
	want := box(9, -2, -1, 11, 2, 1)
	for a := 0; a < 3; a++ {
		assert.InDelta(t, want.Min[a], turned.Min[a], 1e-4)
		assert.InDelta(t, want.Max[a], turned.Max[a], 1e-4)
	}
}

func TestQueriesShareArena(t *testing.T) {
	h, w := newTestHash(t)
	for id := EntityID(1); id <= 5; id++ {
		w.add(id, cube(mgl32.Vec3{float32(id) * 100, 100, 100}, 10))
		_, err := h.AddEntity(id)
		require.NoError(t, err)
	}
	arena := NewHitArena(2)
	a := h.QueryBox(arena, box(0, 0, 0, 1000, 1000, 1000), 1)
	b := h.QueryRadius(arena, mgl32.Vec3{100, 100, 100}, 5, 1, false)
	assert.Equal(t, 5, a.Len())
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 6, arena.Allocated())
}
