package algo

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/elektrokombinacija/skymind-sim/internal/core"
)

// createGrid creates an empty w x h grid.
func createGrid(t *testing.T, w, h int, conn core.Connectivity) *core.GridMap {
	t.Helper()
	g, err := core.NewGridMap(core.GridConfig{Width: w, Height: h, Depth: 1, Resolution: 1, Connectivity: conn})
	if err != nil {
		t.Fatalf("NewGridMap: %v", err)
	}
	return g
}

func createPlanner(t *testing.T, g *core.GridMap) *Planner {
	t.Helper()
	p, err := NewPlanner(g, PlannerConfig{})
	if err != nil {
		t.Fatalf("NewPlanner: %v", err)
	}
	return p
}

// randomGrid blocks roughly density of the cells using a fixed seed.
func randomGrid(t *testing.T, seed int64, w, h int, conn core.Connectivity, density float64) *core.GridMap {
	t.Helper()
	g := createGrid(t, w, h, conn)
	rng := rand.New(rand.NewSource(seed))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if rng.Float64() < density {
				g.MarkObstacle(core.Cell{X: x, Y: y})
			}
		}
	}
	return g
}

func freeCells(g *core.GridMap) []core.Cell {
	var out []core.Cell
	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			if c := (core.Cell{X: x, Y: y}); g.IsFree(c) {
				out = append(out, c)
			}
		}
	}
	return out
}

func TestDiagonalOpenGrid(t *testing.T) {
	g := createGrid(t, 10, 10, core.Conn8)
	p := createPlanner(t, g)

	path, st := p.FindPath(core.Cell{}, core.Cell{X: 9, Y: 9})
	if path == nil || !st.Found {
		t.Fatal("Expected path, got nil")
	}
	if moves := len(path) - 1; moves != 9 {
		t.Errorf("Expected 9 moves, got %d", moves)
	}
	for i, c := range path {
		if c.X != i || c.Y != i {
			t.Errorf("waypoint %d = %v, want straight diagonal", i, c)
		}
	}
	if want := 9 * math.Sqrt2; math.Abs(st.Cost-want) > 1e-9 {
		t.Errorf("Expected cost %.6f, got %.6f", want, st.Cost)
	}
}

func TestWallWithGap(t *testing.T) {
	for _, conn := range []core.Connectivity{core.Conn4, core.Conn8} {
		g := createGrid(t, 10, 10, conn)
		for y := 0; y < 10; y++ {
			if y != 3 {
				g.MarkObstacle(core.Cell{X: 5, Y: y})
			}
		}
		p := createPlanner(t, g)

		path, _ := p.FindPath(core.Cell{}, core.Cell{X: 9})
		if path == nil {
			t.Fatalf("%v: Expected path through gap", conn)
		}
		if !path.Contains(core.Cell{X: 5, Y: 3}) {
			t.Errorf("%v: path %v does not pass (5,3)", conn, path)
		}
		if err := CheckPath(g, path); err != nil {
			t.Errorf("%v: %v", conn, err)
		}
	}
}

func TestBlockedEndpoints(t *testing.T) {
	g := createGrid(t, 5, 5, core.Conn8)
	g.MarkObstacle(core.Cell{})
	p := createPlanner(t, g)

	tests := []struct {
		name        string
		start, goal core.Cell
	}{
		{"start is obstacle", core.Cell{}, core.Cell{X: 4, Y: 4}},
		{"goal is obstacle", core.Cell{X: 4, Y: 4}, core.Cell{}},
		{"start out of bounds", core.Cell{X: -1}, core.Cell{X: 2}},
		{"goal out of bounds", core.Cell{X: 2}, core.Cell{X: 2, Y: 5}},
	}
	for _, tt := range tests {
		path, st := p.FindPath(tt.start, tt.goal)
		if path != nil || st.Found {
			t.Errorf("%s: expected no path, got %v", tt.name, path)
		}
		if st.Expanded != 0 {
			t.Errorf("%s: expanded %d nodes, want 0", tt.name, st.Expanded)
		}
	}
}

func TestStartIsGoal(t *testing.T) {
	p := createPlanner(t, createGrid(t, 3, 3, core.Conn4))
	path, st := p.FindPath(core.Cell{X: 1, Y: 1}, core.Cell{X: 1, Y: 1})
	if len(path) != 1 || st.Cost != 0 {
		t.Errorf("path %v cost %v, want single cell", path, st.Cost)
	}
}

// On orthogonal uniform-cost grids A* must match the BFS move count.
func TestOptimalAgainstBFS(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		g := randomGrid(t, seed, 12, 12, core.Conn4, 0.25)
		p := createPlanner(t, g)
		cells := freeCells(g)
		rng := rand.New(rand.NewSource(seed * 31))

		for k := 0; k < 40; k++ {
			a := cells[rng.Intn(len(cells))]
			b := cells[rng.Intn(len(cells))]
			want, reachable := BFSDistance(g, a, b)
			path, st := p.FindPath(a, b)
			if reachable != (path != nil) {
				t.Fatalf("seed %d %v->%v: BFS reachable=%v, A* path=%v", seed, a, b, reachable, path)
			}
			if !reachable {
				continue
			}
			if st.Cost != float64(want) || len(path)-1 != want {
				t.Errorf("seed %d %v->%v: A* cost %v (%d moves), BFS %d", seed, a, b, st.Cost, len(path)-1, want)
			}
			if err := CheckPath(g, path); err != nil {
				t.Errorf("seed %d: %v", seed, err)
			}
			if math.Abs(PathCost(g, path)-st.Cost) > 1e-9 {
				t.Errorf("seed %d: PathCost %v != reported %v", seed, PathCost(g, path), st.Cost)
			}
		}
	}
}

func TestHeuristicsNeverOverestimate(t *testing.T) {
	g := randomGrid(t, 7, 15, 15, core.Conn8, 0.2)
	cells := freeCells(g)
	kinds := []HeuristicKind{HeuristicAuto, HeuristicEuclidean, HeuristicChebyshev, HeuristicOctile}

	var costs []float64
	var pairs [][2]core.Cell
	ref := createPlanner(t, g)
	for i := 0; i < len(cells); i += 9 {
		for j := 0; j < len(cells); j += 13 {
			if _, st := ref.FindPath(cells[i], cells[j]); st.Found {
				pairs = append(pairs, [2]core.Cell{cells[i], cells[j]})
				costs = append(costs, st.Cost)
			}
		}
	}

	for _, k := range kinds {
		p, err := NewPlanner(g, PlannerConfig{Heuristic: k})
		if err != nil {
			t.Fatal(err)
		}
		for i, pr := range pairs {
			if h := p.Heuristic()(pr[0], pr[1]); h > costs[i]+1e-9 {
				t.Errorf("%v: h(%v,%v)=%v exceeds true cost %v", k, pr[0], pr[1], h, costs[i])
			}
			if _, st := p.FindPath(pr[0], pr[1]); math.Abs(st.Cost-costs[i]) > 1e-9 {
				t.Errorf("%v: cost %v, want %v", k, st.Cost, costs[i])
			}
		}
	}
}

func TestManhattanRejectedOnDiagonalGrid(t *testing.T) {
	_, err := NewPlanner(createGrid(t, 4, 4, core.Conn8), PlannerConfig{Heuristic: HeuristicManhattan})
	if !errors.Is(err, ErrInadmissibleHeuristic) {
		t.Errorf("expected ErrInadmissibleHeuristic, got %v", err)
	}
	if _, err := NewPlanner(createGrid(t, 4, 4, core.Conn4), PlannerConfig{Heuristic: HeuristicManhattan}); err != nil {
		t.Errorf("manhattan on 4-connected grid: %v", err)
	}
}

func TestOctile(t *testing.T) {
	if got, want := Octile(core.Cell{}, core.Cell{X: 3, Y: 1}), 2+math.Sqrt2; math.Abs(got-want) > 1e-12 {
		t.Errorf("Octile 2D = %v, want %v", got, want)
	}
	if got, want := Octile(core.Cell{}, core.Cell{X: 2, Y: 2, Z: 2}), 2*math.Sqrt(3); math.Abs(got-want) > 1e-12 {
		t.Errorf("Octile 3D = %v, want %v", got, want)
	}
}

func TestParseHeuristic(t *testing.T) {
	for _, name := range []string{"auto", "Manhattan", " octile ", ""} {
		if _, err := ParseHeuristic(name); err != nil {
			t.Errorf("ParseHeuristic(%q): %v", name, err)
		}
	}
	if _, err := ParseHeuristic("dijkstra"); err == nil {
		t.Error("unknown heuristic accepted")
	}
}

func TestDeterministicTieBreak(t *testing.T) {
	g := createGrid(t, 8, 8, core.Conn4)
	p := createPlanner(t, g)
	first, _ := p.FindPath(core.Cell{}, core.Cell{X: 7, Y: 7})
	for i := 0; i < 10; i++ {
		again, _ := p.FindPath(core.Cell{}, core.Cell{X: 7, Y: 7})
		if len(again) != len(first) {
			t.Fatalf("run %d: length %d vs %d", i, len(again), len(first))
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("run %d: paths diverge at %d: %v vs %v", i, j, again[j], first[j])
			}
		}
	}
}

func TestMaxExpansions(t *testing.T) {
	g := createGrid(t, 10, 10, core.Conn4)
	p, err := NewPlanner(g, PlannerConfig{MaxExpansions: 3})
	if err != nil {
		t.Fatal(err)
	}
	path, st := p.FindPath(core.Cell{}, core.Cell{X: 9, Y: 9})
	if path != nil || st.Expanded != 3 {
		t.Errorf("path %v expanded %d, want nil after 3", path, st.Expanded)
	}
}

func TestSearch3D(t *testing.T) {
	g, err := core.NewGridMap(core.GridConfig{Width: 4, Height: 4, Depth: 4, Resolution: 1, Connectivity: core.Conn26})
	if err != nil {
		t.Fatal(err)
	}
	p := createPlanner(t, g)
	_, st := p.FindPath(core.Cell{}, core.Cell{X: 3, Y: 3, Z: 3})
	if want := 3 * math.Sqrt(3); math.Abs(st.Cost-want) > 1e-9 {
		t.Errorf("cost %v, want %v", st.Cost, want)
	}

	g6, _ := core.NewGridMap(core.GridConfig{Width: 4, Height: 4, Depth: 4, Resolution: 1, Connectivity: core.Conn6})
	_, st = createPlanner(t, g6).FindPath(core.Cell{}, core.Cell{X: 3, Y: 3, Z: 3})
	if st.Cost != 9 {
		t.Errorf("6-connected cost %v, want 9", st.Cost)
	}
}

func TestTraversalCostDetour(t *testing.T) {
	g := createGrid(t, 5, 3, core.Conn4)
	for x := 1; x <= 3; x++ {
		if err := g.SetTraversalCost(core.Cell{X: x, Y: 1}, 10); err != nil {
			t.Fatal(err)
		}
	}
	path, st := createPlanner(t, g).FindPath(core.Cell{Y: 1}, core.Cell{X: 4, Y: 1})
	if path.Contains(core.Cell{X: 2, Y: 1}) {
		t.Errorf("path %v crosses expensive cells", path)
	}
	if st.Cost != 6 {
		t.Errorf("cost %v, want 6", st.Cost)
	}
}
