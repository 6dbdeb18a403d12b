package algo

import (
	"context"
	"fmt"
	"math"

	hungarianAlgorithm "github.com/oddg/hungarian-algorithm"
	"golang.org/x/sync/errgroup"

	"github.com/elektrokombinacija/skymind-sim/internal/core"
)

// costScale converts path costs to the integer costs the solver works with.
const costScale = 1000

// CostMatrix computes A* path costs from every start to every goal. Entries
// are +Inf for unreachable pairs. Rows are computed concurrently by at most
// workers goroutines (0 means one per row).
func (p *Planner) CostMatrix(ctx context.Context, starts, goals []core.Cell, workers int) ([][]float64, error) {
	costs := make([][]float64, len(starts))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range starts {
		g.Go(func() error {
			row := make([]float64, len(goals))
			for j, goal := range goals {
				if err := ctx.Err(); err != nil {
					return err
				}
				row[j] = math.Inf(1)
				if path, st := p.FindPath(starts[i], goal); path != nil {
					row[j] = st.Cost
				}
			}
			costs[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return costs, nil
}

// AssignGoals matches starts to goals minimising total path cost. The result
// maps start index to goal index; starts left without a reachable goal are
// absent from it.
func AssignGoals(ctx context.Context, p *Planner, starts, goals []core.Cell, workers int) (map[int]int, error) {
	out := make(map[int]int)
	if len(starts) == 0 || len(goals) == 0 {
		return out, nil
	}
	costs, err := p.CostMatrix(ctx, starts, goals, workers)
	if err != nil {
		return nil, err
	}

	n := len(starts)
	if len(goals) > n {
		n = len(goals)
	}
	// Padding and unreachable pairs cost more than any complete real assignment.
	prohibitive := 1
	for _, row := range costs {
		for _, c := range row {
			if isFinite(c) {
				prohibitive += int(math.Round(c * costScale))
			}
		}
	}
	matrix := make([][]int, n)
	for i := range matrix {
		matrix[i] = make([]int, n)
		for j := range matrix[i] {
			matrix[i][j] = prohibitive
			if i < len(starts) && j < len(goals) && isFinite(costs[i][j]) {
				matrix[i][j] = int(math.Round(costs[i][j] * costScale))
			}
		}
	}

	cols, err := hungarianAlgorithm.Solve(matrix)
	if err != nil {
		return nil, fmt.Errorf("assign goals: %w", err)
	}
	for i := 0; i < len(starts); i++ {
		j := cols[i]
		if j < len(goals) && isFinite(costs[i][j]) {
			out[i] = j
		}
	}
	return out, nil
}
