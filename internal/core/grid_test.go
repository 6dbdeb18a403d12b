package core

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func newTestGrid(t *testing.T, w, h int, conn Connectivity) *GridMap {
	t.Helper()
	g, err := NewGridMap(GridConfig{Width: w, Height: h, Depth: 1, Resolution: 1, Connectivity: conn})
	if err != nil {
		t.Fatalf("NewGridMap: %v", err)
	}
	return g
}

func TestGridConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  GridConfig
		ok   bool
	}{
		{"valid 2D", GridConfig{Width: 4, Height: 4, Depth: 1, Resolution: 1, Connectivity: Conn8}, true},
		{"valid 3D", GridConfig{Width: 4, Height: 4, Depth: 3, Resolution: 0.5, Connectivity: Conn26}, true},
		{"zero width", GridConfig{Width: 0, Height: 4, Depth: 1, Resolution: 1, Connectivity: Conn4}, false},
		{"zero resolution", GridConfig{Width: 4, Height: 4, Depth: 1, Connectivity: Conn4}, false},
		{"bad connectivity", GridConfig{Width: 4, Height: 4, Depth: 1, Resolution: 1, Connectivity: 7}, false},
		{"2D topology in 3D", GridConfig{Width: 4, Height: 4, Depth: 2, Resolution: 1, Connectivity: Conn8}, false},
	}

	for _, tt := range tests {
		err := tt.cfg.Validate()
		if (err == nil) != tt.ok {
			t.Errorf("%s: Validate() = %v, want ok=%v", tt.name, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrInvalidGrid) {
			t.Errorf("%s: error %v does not wrap ErrInvalidGrid", tt.name, err)
		}
	}
}

func TestOutOfBoundsIsObstacle(t *testing.T) {
	g := newTestGrid(t, 3, 3, Conn4)
	for _, c := range []Cell{{-1, 0, 0}, {3, 0, 0}, {0, -1, 0}, {0, 3, 0}, {0, 0, 1}} {
		if !g.IsObstacle(c) {
			t.Errorf("IsObstacle(%v) = false for out-of-bounds cell", c)
		}
	}
	if g.IsObstacle(Cell{1, 1, 0}) {
		t.Error("in-bounds empty cell reported as obstacle")
	}
}

func TestCellRoundTrip(t *testing.T) {
	g, err := NewGridMap(GridConfig{
		Width: 7, Height: 5, Depth: 3,
		Resolution:   0.5,
		Origin:       Vec3{-2.5, 1, 0},
		Connectivity: Conn26,
	})
	if err != nil {
		t.Fatal(err)
	}
	for z := 0; z < 3; z++ {
		for y := 0; y < 5; y++ {
			for x := 0; x < 7; x++ {
				c := Cell{x, y, z}
				if got := g.WorldToGrid(g.GridToWorld(c)); got != c {
					t.Errorf("round trip %v -> %v", c, got)
				}
			}
		}
	}

	p := Vec3{-2.3, 2.9, 0.7}
	c := g.WorldToGrid(p)
	if back := g.WorldToGrid(g.GridToWorld(c)); back != c {
		t.Errorf("world point %v: cell %v, centre maps to %v", p, c, back)
	}
}

func TestWorldToGridIgnoresZIn2D(t *testing.T) {
	g := newTestGrid(t, 4, 4, Conn8)
	if c := g.WorldToGrid(Vec3{1.2, 2.7, 40}); c != (Cell{1, 2, 0}) {
		t.Errorf("WorldToGrid = %v, want (1,2,0)", c)
	}
}

func TestNeighborsExcludeSelfAndObstacles(t *testing.T) {
	for _, conn := range []Connectivity{Conn4, Conn8} {
		g := newTestGrid(t, 5, 5, conn)
		g.MarkObstacle(Cell{2, 1, 0})
		g.MarkObstacle(Cell{3, 3, 0})

		for y := -1; y <= 5; y++ {
			for x := -1; x <= 5; x++ {
				c := Cell{x, y, 0}
				for _, n := range g.Neighbors(c) {
					if n == c {
						t.Errorf("%v: Neighbors(%v) includes itself", conn, c)
					}
					if g.IsObstacle(n) {
						t.Errorf("%v: Neighbors(%v) includes obstacle %v", conn, c, n)
					}
				}
			}
		}
	}
}

func TestNeighbors3D(t *testing.T) {
	g, err := NewGridMap(GridConfig{Width: 3, Height: 3, Depth: 3, Resolution: 1, Connectivity: Conn26})
	if err != nil {
		t.Fatal(err)
	}
	if n := len(g.Neighbors(Cell{1, 1, 1})); n != 26 {
		t.Errorf("centre of 3x3x3 has %d neighbours, want 26", n)
	}
	if n := len(g.Neighbors(Cell{0, 0, 0})); n != 7 {
		t.Errorf("corner of 3x3x3 has %d neighbours, want 7", n)
	}
}

func TestCornerCutting(t *testing.T) {
	cfg := GridConfig{Width: 3, Height: 3, Depth: 1, Resolution: 1, Connectivity: Conn8}

	g, _ := NewGridMap(cfg)
	g.MarkObstacle(Cell{1, 0, 0})
	for _, n := range g.Neighbors(Cell{0, 0, 0}) {
		if n == (Cell{1, 1, 0}) {
			t.Error("diagonal past a blocked cell offered without corner cutting")
		}
	}

	cfg.AllowCornerCutting = true
	g, _ = NewGridMap(cfg)
	g.MarkObstacle(Cell{1, 0, 0})
	found := false
	for _, n := range g.Neighbors(Cell{0, 0, 0}) {
		if n == (Cell{1, 1, 0}) {
			found = true
		}
	}
	if !found {
		t.Error("diagonal missing with corner cutting enabled")
	}
}

func TestAppendNeighborsReusesBuffer(t *testing.T) {
	g := newTestGrid(t, 4, 4, Conn4)
	buf := make([]Cell, 0, 4)
	buf = g.AppendNeighbors(buf[:0], Cell{1, 1, 0})
	if len(buf) != 4 || cap(buf) != 4 {
		t.Errorf("len=%d cap=%d, want 4/4", len(buf), cap(buf))
	}
}

func TestMoveCost(t *testing.T) {
	g := newTestGrid(t, 4, 4, Conn8)
	if err := g.SetTraversalCost(Cell{1, 1, 0}, 3); err != nil {
		t.Fatal(err)
	}
	if c := g.MoveCost(Cell{0, 0, 0}, Cell{1, 1, 0}); math.Abs(c-3*math.Sqrt2) > 1e-12 {
		t.Errorf("diagonal into cost-3 cell = %v", c)
	}
	if c := g.MoveCost(Cell{0, 0, 0}, Cell{1, 0, 0}); c != 1 {
		t.Errorf("axis move = %v, want 1", c)
	}
	if err := g.SetTraversalCost(Cell{0, 0, 0}, 0.5); err == nil {
		t.Error("cost below 1 accepted")
	}
	if err := g.SetTraversalCost(Cell{9, 9, 0}, 2); err == nil {
		t.Error("out-of-bounds cost accepted")
	}
}

func TestAddObstacleBox(t *testing.T) {
	g := newTestGrid(t, 10, 10, Conn8)
	v := g.Version()

	// A wall one cell thick along x=5. Cell centres sit at x.5.
	n := g.AddObstacle(Box{Min: Vec3{5, 0, 0}, Max: Vec3{6, 10, 0}})
	if n != 10 {
		t.Fatalf("marked %d cells, want 10", n)
	}
	for y := 0; y < 10; y++ {
		if !g.IsObstacle(Cell{5, y, 0}) {
			t.Errorf("(5,%d) not marked", y)
		}
		if g.IsObstacle(Cell{4, y, 0}) || g.IsObstacle(Cell{6, y, 0}) {
			t.Errorf("wall leaked at y=%d", y)
		}
	}
	if g.Version() == v {
		t.Error("version not bumped")
	}

	v = g.Version()
	if n := g.AddObstacle(Box{Min: Vec3{5, 0, 0}, Max: Vec3{6, 10, 0}}); n != 0 {
		t.Errorf("re-adding marked %d cells", n)
	}
	if g.Version() != v {
		t.Error("version bumped by a no-op")
	}
	if len(g.ObstacleCells()) != 10 || g.FreeCount() != 90 {
		t.Errorf("ObstacleCells=%d FreeCount=%d", len(g.ObstacleCells()), g.FreeCount())
	}
}

func TestAddObstacleSphere(t *testing.T) {
	g := newTestGrid(t, 10, 10, Conn8)
	n := g.AddObstacle(Sphere{Center: Vec3{5, 5, 100}, Radius: 1})
	if n != 4 {
		t.Fatalf("marked %d cells, want 4", n)
	}
	want := []Cell{{4, 4, 0}, {5, 4, 0}, {4, 5, 0}, {5, 5, 0}}
	got := g.ObstacleCells()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ObstacleCells[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAddObstacleSphere3D(t *testing.T) {
	g, err := NewGridMap(GridConfig{Width: 5, Height: 5, Depth: 5, Resolution: 1, Connectivity: Conn6})
	if err != nil {
		t.Fatal(err)
	}
	g.AddObstacle(Sphere{Center: Vec3{2.5, 2.5, 2.5}, Radius: 1})
	if !g.IsObstacle(Cell{2, 2, 2}) || !g.IsObstacle(Cell{2, 2, 3}) {
		t.Error("sphere core not marked")
	}
	if g.IsObstacle(Cell{3, 3, 3}) {
		t.Error("cell outside radius marked")
	}
}

func TestAddObstacleFootprint(t *testing.T) {
	g := newTestGrid(t, 6, 6, Conn8)
	tri := Footprint{
		Polygon: orb.Polygon{orb.Ring{{0, 0}, {4, 0}, {0, 4}, {0, 0}}},
		MaxZ:    10,
	}
	if err := tri.Validate(); err != nil {
		t.Fatal(err)
	}
	g.AddObstacle(tri)

	for _, c := range []Cell{{0, 0, 0}, {1, 1, 0}, {2, 0, 0}} {
		if !g.IsObstacle(c) {
			t.Errorf("%v inside footprint not marked", c)
		}
	}
	for _, c := range []Cell{{3, 3, 0}, {5, 0, 0}, {0, 5, 0}} {
		if g.IsObstacle(c) {
			t.Errorf("%v outside footprint marked", c)
		}
	}
}

func TestObstacleValidate(t *testing.T) {
	tests := []struct {
		o  Obstacle
		ok bool
	}{
		{Box{Min: Vec3{0, 0, 0}, Max: Vec3{1, 1, 1}}, true},
		{Box{Min: Vec3{2, 0, 0}, Max: Vec3{1, 1, 1}}, false},
		{Sphere{Radius: 1}, true},
		{Sphere{Radius: 0}, false},
		{Footprint{Polygon: orb.Polygon{orb.Ring{{0, 0}, {1, 0}}}}, false},
		{Footprint{Polygon: orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}}}, MinZ: 5, MaxZ: 1}, false},
	}
	for _, tt := range tests {
		err := tt.o.Validate()
		if (err == nil) != tt.ok {
			t.Errorf("%s %+v: Validate() = %v, want ok=%v", tt.o.Kind(), tt.o, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrInvalidObstacle) {
			t.Errorf("%v does not wrap ErrInvalidObstacle", err)
		}
	}
}
