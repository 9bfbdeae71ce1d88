package collisiongrid

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var unitIJK = Integers{1, 1, 1, 0}

// WorldBounds describes the space a grid covers: either the bounds of a
// point set or the fixed unbounded box.
type WorldBounds struct {
	Points    []mgl32.Vec3
	Unbounded bool
}

// Cell is one grid partition.
type Cell struct {
	Records RecordList
	// Tag is the last query that visited the cell.
	Tag     uint32
	I, J, K uint8
}

func (c *Cell) Coords() Integers {
	return Integers{int32(c.I), int32(c.J), int32(c.K), 0}
}

// Grid is a uniform partition of a world box into cubic cells plus an
// overflow list for records that are too large or outside the box. Its
// size is fixed at construction.
type Grid struct {
	ID   uuid.UUID
	Size Integers
	Box  Box

	global   RecordList
	cells    []Cell
	unit     Vector
	mult     Vector
	top      Vector
	overflow int32
	tag      uint32
	log      *logrus.Entry
}

// NewGrid lays cells over world. It fails with ErrGridTooLarge when any
// axis needs more than cfg.MaxCellsPerAxis cells.
func NewGrid(world WorldBounds, cfg Config) (*Grid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Grid{
		ID:       uuid.New(),
		unit:     Splat(cfg.CellEdge),
		mult:     Splat(1 / cfg.CellEdge),
		overflow: cfg.OverflowThreshold,
	}
	g.log = log.WithField("grid", g.ID.String())

	if world.Unbounded || len(world.Points) == 0 {
		if !world.Unbounded {
			g.log.Warnf("No world geometry, using unbounded box")
		}
		ext := Splat(cfg.UnboundedExtent)
		g.Box = BoxStrict(ext.Neg(), ext)
	} else {
		pts := make([]Vector, len(world.Points))
		for i, p := range world.Points {
			pts[i] = FromVec3(p)
		}
		g.Box = BoxFromPoints(pts)
	}

	span := g.Box.Size()
	for a := 0; a < 3; a++ {
		n := int32(math.Ceil(float64(span[a] / cfg.CellEdge)))
		if n < 1 {
			n = 1
		}
		if n > cfg.MaxCellsPerAxis {
			return nil, fmt.Errorf("axis %d needs %d cells, limit %d: %w", a, n, cfg.MaxCellsPerAxis, ErrGridTooLarge)
		}
		g.Size[a] = n
	}
	g.top = Vectorize(g.Size.Sub(unitIJK))

	g.cells = make([]Cell, g.Size[0]*g.Size[1]*g.Size[2])
	l := 0
	for i := int32(0); i < g.Size[0]; i++ {
		for j := int32(0); j < g.Size[1]; j++ {
			for k := int32(0); k < g.Size[2]; k++ {
				g.cells[l] = Cell{I: uint8(i), J: uint8(j), K: uint8(k)}
				l++
			}
		}
	}
	g.log.Debugf("Grid allocated [%d,%d,%d] over %s", g.Size[0], g.Size[1], g.Size[2], g.Box)
	return g, nil
}

// BoundsToGrid converts a world space min/max pair to the inclusive cell
// range that covers it, clamped to the grid. Insert, Remove and every query
// go through here.
func (g *Grid) BoundsToGrid(min, max Vector) (Integers, Integers) {
	lo := Clamp(min.Sub(g.Box.Min).Mul(g.mult), Vector{}, g.top).Truncate32()
	hi := Clamp(max.Sub(g.Box.Min).Mul(g.mult), Vector{}, g.top).Truncate32()
	return lo, hi
}

// PointToGrid returns the clamped cell holding p.
func (g *Grid) PointToGrid(p Vector) Integers {
	c, _ := g.BoundsToGrid(p, p)
	return c
}

// Insert places r in the cells its box covers, or in the overflow list when
// the box is outside the world or covers too many cells. It fails when the
// box is invalid or maps to an empty range.
func (g *Grid) Insert(r *Record) bool {
	if !r.Box.Min.IsValid() || !r.Box.Max.IsValid() {
		g.log.Warnf("Refusing record for entity %d with invalid box %s", r.Entity, r.Box)
		return false
	}
	if !g.Box.Intersects3(r.Box) {
		r.Flags |= Global
		g.global.Add(r)
		return true
	}

	lo, hi := g.BoundsToGrid(r.Box.Min, r.Box.Max)
	total := hi.Sub(lo).Add(unitIJK)
	if total[0] <= 0 || total[1] <= 0 || total[2] <= 0 {
		assertf(false, "bad cell range %v-%v for box %s", lo, hi, r.Box)
		g.log.Warnf("Refusing record for entity %d, empty cell range for %s", r.Entity, r.Box)
		return false
	}
	if total[0]*total[1]*total[2] >= g.overflow {
		r.Flags |= Global
		g.global.Add(r)
		return true
	}

	r.Flags &^= Global
	for i := lo[0]; i <= hi[0]; i++ {
		for j := lo[1]; j <= hi[1]; j++ {
			for k := lo[2]; k <= hi[2]; k++ {
				if c := g.Node(i, j, k); c != nil {
					c.Records.Add(r)
				}
			}
		}
	}
	return true
}

// Remove undoes Insert using the record's cached box.
func (g *Grid) Remove(r *Record) {
	if r.Flags&Global != 0 {
		g.global.RemoveItem(r)
		return
	}
	lo, hi := g.BoundsToGrid(r.Box.Min, r.Box.Max)
	for i := lo[0]; i <= hi[0]; i++ {
		for j := lo[1]; j <= hi[1]; j++ {
			for k := lo[2]; k <= hi[2]; k++ {
				if c := g.Node(i, j, k); c != nil {
					c.Records.RemoveItem(r)
				}
			}
		}
	}
}

// Node returns the cell at (i,j,k), or nil when out of range.
func (g *Grid) Node(i, j, k int32) *Cell {
	if i < 0 || j < 0 || k < 0 || i >= g.Size[0] || j >= g.Size[1] || k >= g.Size[2] {
		assertf(false, "bad node request [%d,%d,%d] size %v", i, j, k, g.Size)
		return nil
	}
	return &g.cells[(i*g.Size[1]+j)*g.Size[2]+k]
}

func (g *Grid) NodeAt(c Integers) *Cell {
	return g.Node(c[0], c[1], c[2])
}

// CellBox returns the world space box of the cell at c.
func (g *Grid) CellBox(c Integers) Box {
	min := g.Box.Min.Add(Vectorize(c).Mul(g.unit))
	return BoxStrict(min, min.Add(g.unit))
}

// Global is the overflow list.
func (g *Grid) Global() *RecordList { return &g.global }

func (g *Grid) CellCount() int { return len(g.cells) }

// ForEachCell calls fn for every cell in index order.
func (g *Grid) ForEachCell(fn func(c *Cell)) {
	for i := range g.cells {
		fn(&g.cells[i])
	}
}

// Occupancy returns the list length of every cell in index order.
func (g *Grid) Occupancy() []int {
	occ := make([]int, len(g.cells))
	for i := range g.cells {
		occ[i] = g.cells[i].Records.Len()
	}
	return occ
}

// nextTag starts a query. Zero is never handed out so fresh records and
// cells are never mistaken for visited.
func (g *Grid) nextTag() uint32 {
	g.tag++
	if g.tag == 0 {
		g.tag = 1
	}
	return g.tag
}
