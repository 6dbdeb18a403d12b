package algo

import "github.com/elektrokombinacija/skymind-sim/internal/core"

// NearestReachable searches breadth-first from start over free cells and
// returns the first cell other than start that the search reaches. The goal
// only matters to the caller; the search order is the grid's neighbour
// order. It fails when start is blocked or has no free neighbour.
func (p *Planner) NearestReachable(start, goal core.Cell) (core.Cell, bool) {
	if p.grid.IsObstacle(start) {
		return start, false
	}
	seen := map[core.Cell]bool{start: true}
	queue := []core.Cell{start}
	var nbuf []core.Cell
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c != start {
			return c, true
		}
		nbuf = p.grid.AppendNeighbors(nbuf[:0], c)
		for _, n := range nbuf {
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	return start, false
}

// AdjacentFree returns the free neighbour of start closest to goal.
func (p *Planner) AdjacentFree(start, goal core.Cell) (core.Cell, bool) {
	var (
		best  core.Cell
		bestH float64
		found bool
	)
	for _, n := range p.grid.Neighbors(start) {
		if h := p.h(n, goal); !found || h < bestH {
			best, bestH, found = n, h, true
		}
	}
	return best, found
}
