// Package algo implements grid path planning: A* search, fallback targets
// for unreachable goals, and multi-agent goal assignment.
package algo

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"github.com/elektrokombinacija/skymind-sim/internal/core"
)

// ErrInadmissibleHeuristic is returned when the heuristic can overestimate
// on the grid's connectivity.
var ErrInadmissibleHeuristic = errors.New("heuristic is not admissible for this connectivity")

// PlannerConfig configures a Planner.
type PlannerConfig struct {
	Heuristic HeuristicKind `yaml:"heuristic" json:"heuristic"`
	// MaxExpansions bounds the search; 0 means unbounded.
	MaxExpansions int `yaml:"max_expansions" json:"max_expansions"`
}

// Stats describes a single search.
type Stats struct {
	Found    bool
	Cost     float64
	Expanded int
}

// Planner runs A* over a GridMap. A Planner only reads the grid and may be
// shared by concurrent searches as long as the grid is not mutated.
type Planner struct {
	grid *core.GridMap
	cfg  PlannerConfig
	h    Heuristic
}

// NewPlanner binds a planner to grid.
func NewPlanner(grid *core.GridMap, cfg PlannerConfig) (*Planner, error) {
	if grid == nil {
		return nil, errors.New("planner: nil grid")
	}
	if cfg.MaxExpansions < 0 {
		return nil, fmt.Errorf("planner: max expansions must be >= 0, got %d", cfg.MaxExpansions)
	}
	h, err := SelectHeuristic(cfg.Heuristic, grid.Connectivity())
	if err != nil {
		return nil, err
	}
	return &Planner{grid: grid, cfg: cfg, h: h}, nil
}

// Grid returns the planner's grid.
func (p *Planner) Grid() *core.GridMap { return p.grid }

// Heuristic returns the distance estimate in use.
func (p *Planner) Heuristic() Heuristic { return p.h }

// astarNode for priority queue.
type astarNode struct {
	cell  core.Cell
	g     float64 // Cost so far
	h     float64
	f     float64 // g + h
	seq   int     // push order
	index int     // heap index
}

// astarHeap implements heap.Interface. Ties on f prefer the node nearer the
// goal, then the earlier push, so searches are reproducible.
type astarHeap []*astarNode

func (h astarHeap) Len() int { return len(h) }
func (h astarHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.f != b.f {
		return a.f < b.f
	}
	if a.h != b.h {
		return a.h < b.h
	}
	return a.seq < b.seq
}
func (h astarHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *astarHeap) Push(x any) {
	n := x.(*astarNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *astarHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// FindPath returns the cheapest path from start to goal inclusive, or nil.
// It never substitutes a different goal; see NearestReachable and
// AdjacentFree for fallback targets.
func (p *Planner) FindPath(start, goal core.Cell) (core.Path, Stats) {
	var st Stats
	if p.grid.IsObstacle(start) || p.grid.IsObstacle(goal) {
		return nil, st
	}

	gScore := map[core.Cell]float64{start: 0}
	cameFrom := make(map[core.Cell]core.Cell)
	closed := make(map[core.Cell]bool)

	open := &astarHeap{}
	heap.Init(open)
	seq := 0
	push := func(c core.Cell, g float64) {
		h := p.h(c, goal)
		heap.Push(open, &astarNode{cell: c, g: g, h: h, f: g + h, seq: seq})
		seq++
	}
	push(start, 0)

	nbuf := make([]core.Cell, 0, len(p.grid.Connectivity().Offsets()))
	for open.Len() > 0 {
		current := heap.Pop(open).(*astarNode)
		if closed[current.cell] || current.g > gScore[current.cell] {
			continue // stale entry
		}
		closed[current.cell] = true
		st.Expanded++

		if current.cell == goal {
			st.Found = true
			st.Cost = current.g
			return reconstructPath(cameFrom, start, goal), st
		}
		if p.cfg.MaxExpansions > 0 && st.Expanded >= p.cfg.MaxExpansions {
			return nil, st
		}

		nbuf = p.grid.AppendNeighbors(nbuf[:0], current.cell)
		for _, n := range nbuf {
			if closed[n] {
				continue
			}
			tentative := current.g + p.grid.MoveCost(current.cell, n)
			old, seen := gScore[n]
			if seen && tentative >= old {
				continue
			}
			gScore[n] = tentative
			cameFrom[n] = current.cell
			push(n, tentative)
		}
	}

	return nil, st // No path found
}

func reconstructPath(cameFrom map[core.Cell]core.Cell, start, goal core.Cell) core.Path {
	path := core.Path{goal}
	for c := goal; c != start; {
		c = cameFrom[c]
		path = append(path, c)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// PathCost sums MoveCost along path.
func PathCost(grid *core.GridMap, path core.Path) float64 {
	cost := 0.0
	for i := 1; i < len(path); i++ {
		cost += grid.MoveCost(path[i-1], path[i])
	}
	return cost
}

// CheckPath verifies that consecutive cells are grid neighbours and that no
// cell is an obstacle.
func CheckPath(grid *core.GridMap, path core.Path) error {
	for i, c := range path {
		if grid.IsObstacle(c) {
			return fmt.Errorf("waypoint %d %v is an obstacle", i, c)
		}
		if i == 0 {
			continue
		}
		adjacent := false
		for _, n := range grid.Neighbors(path[i-1]) {
			if n == c {
				adjacent = true
				break
			}
		}
		if !adjacent {
			return fmt.Errorf("waypoints %d %v and %d %v are not adjacent", i-1, path[i-1], i, c)
		}
	}
	return nil
}

// BFSDistance is the unweighted number of moves between start and goal.
func BFSDistance(grid *core.GridMap, start, goal core.Cell) (int, bool) {
	if grid.IsObstacle(start) || grid.IsObstacle(goal) {
		return 0, false
	}
	dist := map[core.Cell]int{start: 0}
	queue := []core.Cell{start}
	var nbuf []core.Cell
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == goal {
			return dist[c], true
		}
		nbuf = grid.AppendNeighbors(nbuf[:0], c)
		for _, n := range nbuf {
			if _, ok := dist[n]; ok {
				continue
			}
			dist[n] = dist[c] + 1
			queue = append(queue, n)
		}
	}
	return 0, false
}

func isFinite(v float64) bool { return !math.IsInf(v, 0) && !math.IsNaN(v) }
