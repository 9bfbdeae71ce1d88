package collisiongrid

import (
	"fmt"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cubeWorld(edge float32) WorldBounds {
	return WorldBounds{Points: []mgl32.Vec3{{0, 0, 0}, {edge, edge, edge}}}
}

func newTestGrid(t *testing.T) *Grid {
	t.Helper()
	g, err := NewGrid(cubeWorld(4096), DefaultConfig())
	require.NoError(t, err)
	return g
}

func box(x0, y0, z0, x1, y1, z1 float32) Box {
	return BoxStrict(NewVector(x0, y0, z0), NewVector(x1, y1, z1))
}

func TestGridSize(t *testing.T) {
	cases := []struct {
		name  string
		world WorldBounds
		want  Integers
	}{
		{"cube", cubeWorld(4096), Integers{8, 8, 8, 0}},
		{"partial cell", WorldBounds{Points: []mgl32.Vec3{{0, 0, 0}, {1000, 513, 1}}}, Integers{2, 2, 1, 0}},
		{"flat", WorldBounds{Points: []mgl32.Vec3{{5, 5, 5}}}, Integers{1, 1, 1, 0}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			g, err := NewGrid(c.world, DefaultConfig())
			require.NoError(t, err)
			assert.Equal(t, c.want, g.Size)
			assert.Equal(t, int(c.want[0]*c.want[1]*c.want[2]), g.CellCount())
		})
	}
}

func TestGridUnbounded(t *testing.T) {
	for _, w := range []WorldBounds{{Unbounded: true}, {}} {
		g, err := NewGrid(w, DefaultConfig())
		require.NoError(t, err)
		assert.Equal(t, Integers{128, 128, 128, 0}, g.Size)
		assert.Equal(t, box(-WorldLimit, -WorldLimit, -WorldLimit, WorldLimit, WorldLimit, WorldLimit), g.Box)
	}
}

func TestGridTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CellEdge = 256
	_, err := NewGrid(WorldBounds{Unbounded: true}, cfg)
	require.ErrorIs(t, err, ErrGridTooLarge)

	cfg.CellEdge = 0
	_, err = NewGrid(WorldBounds{Unbounded: true}, cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBoundsToGrid(t *testing.T) {
	g := newTestGrid(t)
	cases := []struct {
		p    Vector
		want Integers
	}{
		{NewVector(0, 0, 0), Integers{0, 0, 0, 0}},
		{NewVector(511.9, 512, 1023), Integers{0, 1, 1, 0}},
		{NewVector(-100, 99999, 2048), Integers{0, 7, 4, 0}},
		{NewVector(4096, 4096, 4096), Integers{7, 7, 7, 0}},
	}
	for _, c := range cases {
		t.Run(fmt.Sprint(c.p.Vec3()), func(t *testing.T) {
			got := g.PointToGrid(c.p)
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Errorf("cell mismatch (-want +got):\n%s", diff)
			}
			// Feeding the cell's own corner back in lands in the same cell.
			assert.Equal(t, got, g.PointToGrid(g.CellBox(got).Min))
		})
	}
}

func cellsHolding(g *Grid, r *Record) []Integers {
	var out []Integers
	g.ForEachCell(func(c *Cell) {
		if c.Records.Contains(r) {
			out = append(out, c.Coords())
		}
	})
	return out
}

func TestGridInsertCoverage(t *testing.T) {
	g := newTestGrid(t)
	r := &Record{Entity: 1, QueryFlags: 1, Box: box(100, 100, 100, 1100, 600, 300)}
	require.True(t, g.Insert(r))
	assert.False(t, r.IsGlobal())

	var want []Integers
	for i := int32(0); i < 8; i++ {
		for j := int32(0); j < 8; j++ {
			for k := int32(0); k < 8; k++ {
				c := Integers{i, j, k, 0}
				if g.CellBox(c).Intersects3(r.Box) {
					want = append(want, c)
				}
			}
		}
	}
	got := cellsHolding(g, r)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("covered cells (-want +got):\n%s", diff)
	}
	assert.Equal(t, int32(len(want)), r.Links())
	assert.Len(t, got, 6)
}

func TestGridRoundTrip(t *testing.T) {
	g := newTestGrid(t)
	empty := g.Occupancy()
	recs := []*Record{
		{Entity: 1, QueryFlags: 1, Box: box(10, 10, 10, 20, 20, 20)},
		{Entity: 2, QueryFlags: 1, Box: box(500, 500, 500, 1600, 700, 900)},
		{Entity: 3, QueryFlags: 1, Box: box(0, 0, 0, 4096, 4096, 4096)},
		{Entity: 4, QueryFlags: 1, Box: box(9000, 9000, 9000, 9100, 9100, 9100)},
	}
	for _, r := range recs {
		require.True(t, g.Insert(r))
	}
	assert.Equal(t, 2, g.Global().Len())
	for _, r := range recs {
		g.Remove(r)
		assert.Zero(t, r.Links(), "entity %d", r.Entity)
	}
	if diff := cmp.Diff(empty, g.Occupancy()); diff != "" {
		t.Errorf("occupancy after removal (-want +got):\n%s", diff)
	}
	assert.Zero(t, g.Global().Len())
}

func TestGridOverflow(t *testing.T) {
	g := newTestGrid(t)

	small := &Record{Entity: 1, Box: box(1, 1, 1, 2500, 2500, 2000)}
	require.True(t, g.Insert(small))
	assert.False(t, small.IsGlobal(), "5x5x4 cells stays in the grid")

	big := &Record{Entity: 2, Box: box(1, 1, 1, 2600, 2600, 2600)}
	require.True(t, g.Insert(big))
	assert.True(t, big.IsGlobal(), "6x6x6 cells overflows")
	assert.Empty(t, cellsHolding(g, big))

	outside := &Record{Entity: 3, Box: box(-500, -500, -500, -100, -100, -100)}
	require.True(t, g.Insert(outside))
	assert.True(t, outside.IsGlobal())
	assert.Equal(t, 2, g.Global().Len())
}

func TestGridRefusesInvalidBox(t *testing.T) {
	g := newTestGrid(t)
	nan := float32(math.NaN())
	r := &Record{Entity: 1, Box: box(nan, 0, 0, 10, 10, 10)}
	assert.False(t, g.Insert(r))
	assert.Zero(t, r.Links())
	assert.Zero(t, g.Global().Len())
}

func TestGridNode(t *testing.T) {
	g := newTestGrid(t)
	assert.Nil(t, g.Node(-1, 0, 0))
	assert.Nil(t, g.Node(0, 8, 0))
	c := g.Node(3, 4, 5)
	require.NotNil(t, c)
	assert.Equal(t, Integers{3, 4, 5, 0}, c.Coords())
	assert.Equal(t, box(1536, 2048, 2560, 2048, 2560, 3072), g.CellBox(c.Coords()))
}

func TestGridTagSkipsZero(t *testing.T) {
	g := newTestGrid(t)
	g.tag = math.MaxUint32
	assert.Equal(t, uint32(1), g.nextTag())
	assert.Equal(t, uint32(2), g.nextTag())
}
