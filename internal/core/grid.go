package core

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGrid is returned for unusable grid configurations.
var ErrInvalidGrid = errors.New("invalid grid")

// GridConfig describes the dimensions and topology of a GridMap.
type GridConfig struct {
	Width, Height, Depth int
	Resolution           float64 // world units per cell edge
	Origin               Vec3    // world position of the min corner of cell (0,0,0)
	Connectivity         Connectivity
	// AllowCornerCutting lets diagonal moves squeeze past blocked orthogonal cells.
	AllowCornerCutting bool
}

// Validate checks the configuration.
func (c GridConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 || c.Depth <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %dx%dx%d", ErrInvalidGrid, c.Width, c.Height, c.Depth)
	}
	if !(c.Resolution > 0) || math.IsInf(c.Resolution, 0) {
		return fmt.Errorf("%w: resolution must be positive, got %v", ErrInvalidGrid, c.Resolution)
	}
	if !c.Connectivity.Valid() {
		return fmt.Errorf("%w: unsupported connectivity %d", ErrInvalidGrid, int(c.Connectivity))
	}
	if !c.Connectivity.Is3D() && c.Depth != 1 {
		return fmt.Errorf("%w: %s requires depth 1, got %d", ErrInvalidGrid, c.Connectivity, c.Depth)
	}
	return nil
}

// GridMap is the static spatial model. It owns dense occupancy and traversal
// cost arrays. Out-of-bounds coordinates are always obstacles.
//
// GridMap is safe for concurrent reads. Mutating calls (AddObstacle,
// SetTraversalCost) must not run concurrently with readers.
type GridMap struct {
	cfg      GridConfig
	occupied []bool
	cost     []float64
	version  uint64
}

// NewGridMap creates an obstacle-free grid with unit traversal cost.
func NewGridMap(cfg GridConfig) (*GridMap, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := cfg.Width * cfg.Height * cfg.Depth
	g := &GridMap{
		cfg:      cfg,
		occupied: make([]bool, n),
		cost:     make([]float64, n),
	}
	for i := range g.cost {
		g.cost[i] = 1
	}
	return g, nil
}

// Config returns the grid configuration.
func (g *GridMap) Config() GridConfig { return g.cfg }

func (g *GridMap) Width() int                 { return g.cfg.Width }
func (g *GridMap) Height() int                { return g.cfg.Height }
func (g *GridMap) Depth() int                 { return g.cfg.Depth }
func (g *GridMap) Resolution() float64        { return g.cfg.Resolution }
func (g *GridMap) Connectivity() Connectivity { return g.cfg.Connectivity }
func (g *GridMap) Is3D() bool                 { return g.cfg.Depth > 1 }

// Version increases with every mutation.
func (g *GridMap) Version() uint64 { return g.version }

// InBounds reports whether c lies inside the grid.
func (g *GridMap) InBounds(c Cell) bool {
	return c.X >= 0 && c.X < g.cfg.Width &&
		c.Y >= 0 && c.Y < g.cfg.Height &&
		c.Z >= 0 && c.Z < g.cfg.Depth
}

func (g *GridMap) index(c Cell) int {
	return (c.Z*g.cfg.Height+c.Y)*g.cfg.Width + c.X
}

func (g *GridMap) cellAt(i int) Cell {
	x := i % g.cfg.Width
	i /= g.cfg.Width
	return Cell{X: x, Y: i % g.cfg.Height, Z: i / g.cfg.Height}
}

// IsObstacle is true for out-of-bounds or occupied cells.
func (g *GridMap) IsObstacle(c Cell) bool {
	if !g.InBounds(c) {
		return true
	}
	return g.occupied[g.index(c)]
}

// IsFree is the negation of IsObstacle.
func (g *GridMap) IsFree(c Cell) bool { return !g.IsObstacle(c) }

// Neighbors returns the free neighbours of c.
func (g *GridMap) Neighbors(c Cell) []Cell {
	return g.AppendNeighbors(make([]Cell, 0, len(g.cfg.Connectivity.Offsets())), c)
}

// AppendNeighbors appends the free neighbours of c to dst and returns it.
// Reusing dst keeps hot loops allocation free.
func (g *GridMap) AppendNeighbors(dst []Cell, c Cell) []Cell {
	for _, d := range g.cfg.Connectivity.Offsets() {
		n := c.Add(d)
		if g.IsObstacle(n) {
			continue
		}
		if !g.cfg.AllowCornerCutting && !g.cornerClear(c, d) {
			continue
		}
		dst = append(dst, n)
	}
	return dst
}

// cornerClear checks that every orthogonal sub-step of a diagonal move is free.
func (g *GridMap) cornerClear(from, d Cell) bool {
	if StepLength(d) <= 1 {
		return true
	}
	comps := [3]Cell{{d.X, 0, 0}, {0, d.Y, 0}, {0, 0, d.Z}}
	for mask := 1; mask < 7; mask++ {
		var sub Cell
		for i := 0; i < 3; i++ {
			if mask&(1<<i) != 0 {
				sub = sub.Add(comps[i])
			}
		}
		if sub == (Cell{}) || sub == d {
			continue
		}
		if g.IsObstacle(from.Add(sub)) {
			return false
		}
	}
	return true
}

// TraversalCost returns the cost multiplier of entering c (+Inf when out of bounds).
func (g *GridMap) TraversalCost(c Cell) float64 {
	if !g.InBounds(c) {
		return math.Inf(1)
	}
	return g.cost[g.index(c)]
}

// SetTraversalCost sets the cost multiplier of entering c. Costs below 1 would
// make the distance heuristics inadmissible and are rejected.
func (g *GridMap) SetTraversalCost(c Cell, cost float64) error {
	if !g.InBounds(c) {
		return fmt.Errorf("%w: cell %v out of bounds", ErrInvalidGrid, c)
	}
	if !(cost >= 1) || math.IsInf(cost, 0) {
		return fmt.Errorf("%w: traversal cost must be finite and >= 1, got %v", ErrInvalidGrid, cost)
	}
	g.cost[g.index(c)] = cost
	g.version++
	return nil
}

// MoveCost is the cost of stepping from one cell to an adjacent one.
func (g *GridMap) MoveCost(from, to Cell) float64 {
	d := Cell{to.X - from.X, to.Y - from.Y, to.Z - from.Z}
	return StepLength(d) * g.TraversalCost(to)
}

// WorldToGrid maps a world position to the cell containing it.
func (g *GridMap) WorldToGrid(p Vec3) Cell {
	r := g.cfg.Resolution
	o := g.cfg.Origin
	c := Cell{
		X: int(math.Floor((p.X - o.X) / r)),
		Y: int(math.Floor((p.Y - o.Y) / r)),
	}
	if g.Is3D() {
		c.Z = int(math.Floor((p.Z - o.Z) / r))
	}
	return c
}

// GridToWorld returns the world position of the centre of c.
func (g *GridMap) GridToWorld(c Cell) Vec3 {
	r := g.cfg.Resolution
	o := g.cfg.Origin
	return Vec3{
		X: o.X + (float64(c.X)+0.5)*r,
		Y: o.Y + (float64(c.Y)+0.5)*r,
		Z: o.Z + (float64(c.Z)+0.5)*r,
	}
}

// AddObstacle marks every cell whose centre lies inside o and returns the
// number of newly marked cells. Marking is additive only.
func (g *GridMap) AddObstacle(o Obstacle) int {
	lo, hi := g.clampRange(o.bounds())
	marked := 0
	for z := lo.Z; z <= hi.Z; z++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for x := lo.X; x <= hi.X; x++ {
				c := Cell{x, y, z}
				i := g.index(c)
				if g.occupied[i] {
					continue
				}
				if g.covers(o, g.GridToWorld(c)) {
					g.occupied[i] = true
					marked++
				}
			}
		}
	}
	if marked > 0 {
		g.version++
	}
	return marked
}

// MarkObstacle marks a single cell. Out-of-bounds cells are ignored.
func (g *GridMap) MarkObstacle(c Cell) bool {
	if !g.InBounds(c) || g.occupied[g.index(c)] {
		return false
	}
	g.occupied[g.index(c)] = true
	g.version++
	return true
}

// covers dispatches containment over the closed obstacle variants.
func (g *GridMap) covers(o Obstacle, p Vec3) bool {
	flat := !g.Is3D()
	switch ob := o.(type) {
	case Box:
		return ob.contains(p, flat)
	case Sphere:
		return ob.contains(p, flat)
	case Footprint:
		return ob.contains(p, flat)
	default:
		panic(fmt.Sprintf("core: unhandled obstacle type %T", o))
	}
}

// clampRange converts a world-space bounding box into an in-bounds cell range.
func (g *GridMap) clampRange(lo, hi Vec3) (Cell, Cell) {
	a := g.WorldToGrid(lo)
	b := g.WorldToGrid(hi)
	clamp := func(v, n int) int {
		if v < 0 {
			return 0
		}
		if v >= n {
			return n - 1
		}
		return v
	}
	a = Cell{clamp(a.X, g.cfg.Width), clamp(a.Y, g.cfg.Height), clamp(a.Z, g.cfg.Depth)}
	b = Cell{clamp(b.X, g.cfg.Width), clamp(b.Y, g.cfg.Height), clamp(b.Z, g.cfg.Depth)}
	return a, b
}

// ObstacleCells lists occupied cells in index order.
func (g *GridMap) ObstacleCells() []Cell {
	var out []Cell
	for i, occ := range g.occupied {
		if occ {
			out = append(out, g.cellAt(i))
		}
	}
	return out
}

// FreeCount returns the number of walkable cells.
func (g *GridMap) FreeCount() int {
	n := 0
	for _, occ := range g.occupied {
		if !occ {
			n++
		}
	}
	return n
}
