// Package mapio loads map descriptions: a JSON document (optionally carrying
// GeoJSON obstacle footprints) or a fixed-width text grid.
package mapio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/elektrokombinacija/skymind-sim/internal/core"
	"github.com/elektrokombinacija/skymind-sim/internal/sim"
)

// ErrMalformedMap wraps every description error.
var ErrMalformedMap = errors.New("malformed map description")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedMap, fmt.Sprintf(format, args...))
}

// Description is a parsed map: grid geometry, obstacles and initial agents.
type Description struct {
	Name      string
	Grid      core.GridConfig
	Obstacles []core.Obstacle
	// Blocked lists individual obstacle cells, as produced by text grids.
	Blocked []core.Cell
	Costs   []CellCost
	Agents  []sim.AgentSpec
}

// CellCost is a per-cell traversal cost override.
type CellCost struct {
	Cell core.Cell
	Cost float64
}

// Build creates the grid and checks that every agent starts on a free cell.
func (d *Description) Build() (*core.GridMap, []sim.AgentSpec, error) {
	g, err := core.NewGridMap(d.Grid)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedMap, err)
	}
	for i, o := range d.Obstacles {
		if err := o.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%w: obstacle %d: %v", ErrMalformedMap, i, err)
		}
		g.AddObstacle(o)
	}
	for _, c := range d.Blocked {
		if !g.InBounds(c) {
			return nil, nil, malformed("blocked cell %v out of bounds", c)
		}
		g.MarkObstacle(c)
	}
	for _, c := range d.Costs {
		if err := g.SetTraversalCost(c.Cell, c.Cost); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformedMap, err)
		}
	}
	for _, a := range d.Agents {
		if g.IsObstacle(a.Start) {
			return nil, nil, malformed("agent %q starts on blocked cell %v", a.ID, a.Start)
		}
	}
	return g, append([]sim.AgentSpec(nil), d.Agents...), nil
}

// Load reads a description, choosing the format by file extension.
func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d *Description
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		d, err = ParseJSON(data)
	case ".txt", ".map":
		d, err = ParseText(data)
	default:
		return nil, fmt.Errorf("%s: %w: unsupported extension %q", path, ErrMalformedMap, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if d.Name == "" {
		d.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return d, nil
}
