package algo

import (
	"fmt"
	"math"
	"strings"

	"github.com/elektrokombinacija/skymind-sim/internal/core"
)

// Heuristic estimates the remaining cost between two cells.
type Heuristic func(a, b core.Cell) float64

// HeuristicKind selects a Heuristic.
type HeuristicKind int

const (
	HeuristicAuto HeuristicKind = iota // pick the tightest admissible estimate
	HeuristicManhattan
	HeuristicEuclidean
	HeuristicChebyshev
	HeuristicOctile
)

var heuristicNames = [...]string{"auto", "manhattan", "euclidean", "chebyshev", "octile"}

func (k HeuristicKind) String() string {
	if k < 0 || int(k) >= len(heuristicNames) {
		return fmt.Sprintf("HeuristicKind(%d)", int(k))
	}
	return heuristicNames[k]
}

// ParseHeuristic converts a name to a HeuristicKind.
func ParseHeuristic(s string) (HeuristicKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return HeuristicAuto, nil
	}
	for i, n := range heuristicNames {
		if n == name {
			return HeuristicKind(i), nil
		}
	}
	return HeuristicAuto, fmt.Errorf("unknown heuristic %q", s)
}

func (k HeuristicKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *HeuristicKind) UnmarshalText(b []byte) error {
	v, err := ParseHeuristic(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// SelectHeuristic returns the heuristic for kind on conn. Manhattan
// overestimates when diagonal moves exist and is rejected there.
func SelectHeuristic(kind HeuristicKind, conn core.Connectivity) (Heuristic, error) {
	switch kind {
	case HeuristicAuto:
		if conn.Diagonal() {
			return Octile, nil
		}
		return Manhattan, nil
	case HeuristicManhattan:
		if conn.Diagonal() {
			return nil, fmt.Errorf("%w: manhattan on %s", ErrInadmissibleHeuristic, conn)
		}
		return Manhattan, nil
	case HeuristicEuclidean:
		return Euclidean, nil
	case HeuristicChebyshev:
		return Chebyshev, nil
	case HeuristicOctile:
		return Octile, nil
	}
	return nil, fmt.Errorf("unknown heuristic %v", kind)
}

func deltas(a, b core.Cell) (float64, float64, float64) {
	return math.Abs(float64(a.X - b.X)), math.Abs(float64(a.Y - b.Y)), math.Abs(float64(a.Z - b.Z))
}

// Manhattan is exact on empty orthogonal grids.
func Manhattan(a, b core.Cell) float64 {
	dx, dy, dz := deltas(a, b)
	return dx + dy + dz
}

// Euclidean is the straight-line distance.
func Euclidean(a, b core.Cell) float64 {
	dx, dy, dz := deltas(a, b)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Chebyshev counts moves when every move costs 1; each step changes any axis
// by at most one, so it never exceeds the true cost.
func Chebyshev(a, b core.Cell) float64 {
	dx, dy, dz := deltas(a, b)
	return math.Max(dx, math.Max(dy, dz))
}

// Octile is the exact distance on an empty grid with diagonal moves costing
// sqrt(2) and, in 3D, sqrt(3).
func Octile(a, b core.Cell) float64 {
	dx, dy, dz := deltas(a, b)
	// sort descending
	if dx < dy {
		dx, dy = dy, dx
	}
	if dy < dz {
		dy, dz = dz, dy
	}
	if dx < dy {
		dx, dy = dy, dx
	}
	return (math.Sqrt(3)-math.Sqrt2)*dz + (math.Sqrt2-1)*dy + dx
}
