// Package main generates deterministic map descriptions for simulator
// benchmarks.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/elektrokombinacija/skymind-sim/internal/core"
	"github.com/elektrokombinacija/skymind-sim/internal/mapio"
)

// MapParams defines parameters for map generation.
type MapParams struct {
	Seed            int64
	NumAgents       int
	Width           int
	Height          int
	Layers          int     // Grid depth; 1 = flat map
	ObstacleDensity float64 // Approximate fraction of cells covered by boxes
	Towers          int     // Spherical obstacles
	ReleaseSpread   float64 // Missions are released uniformly in [0, ReleaseSpread)
	Speed           float64
}

// generateMap creates a map description with collision-free agent starts
// and distinct goals.
func generateMap(params MapParams) (*mapio.Document, error) {
	rng := rand.New(rand.NewSource(params.Seed))

	doc := &mapio.Document{
		Name:   fmt.Sprintf("skymind_%d_%dx%dx%d_%d", params.NumAgents, params.Width, params.Height, params.Layers, params.Seed),
		Width:  params.Width,
		Height: params.Height,
		Depth:  params.Layers,
	}

	// Boxes of 1-3 cells per side until the target coverage is reached
	target := int(params.ObstacleDensity * float64(params.Width*params.Height))
	for covered := 0; covered < target; {
		w, h := 1+rng.Intn(3), 1+rng.Intn(3)
		x, y := rng.Intn(params.Width), rng.Intn(params.Height)
		spec := mapio.ObstacleSpec{
			Type: "box",
			Min:  []float64{float64(x), float64(y)},
			Size: []float64{float64(w) - 0.01, float64(h) - 0.01},
		}
		if params.Layers > 1 {
			top := 1 + rng.Intn(params.Layers)
			spec.Min = append(spec.Min, 0)
			spec.Size = append(spec.Size, float64(top)-0.01)
		}
		doc.Obstacles = append(doc.Obstacles, spec)
		covered += w * h
	}

	for i := 0; i < params.Towers; i++ {
		center := []float64{rng.Float64() * float64(params.Width), rng.Float64() * float64(params.Height)}
		if params.Layers > 1 {
			center = append(center, rng.Float64()*float64(params.Layers))
		}
		doc.Obstacles = append(doc.Obstacles, mapio.ObstacleSpec{
			Type:   "sphere",
			Center: center,
			Radius: 0.5 + rng.Float64()*1.5,
		})
	}

	desc, err := doc.Description()
	if err != nil {
		return nil, err
	}
	grid, _, err := desc.Build()
	if err != nil {
		return nil, err
	}

	var free []core.Cell
	for z := 0; z < grid.Depth(); z++ {
		for y := 0; y < grid.Height(); y++ {
			for x := 0; x < grid.Width(); x++ {
				if c := (core.Cell{X: x, Y: y, Z: z}); grid.IsFree(c) {
					free = append(free, c)
				}
			}
		}
	}
	if len(free) < 2*params.NumAgents {
		return nil, fmt.Errorf("only %d free cells for %d agents", len(free), params.NumAgents)
	}

	// Starts and goals are drawn without replacement from one permutation
	perm := rng.Perm(len(free))
	coords := func(c core.Cell) []int {
		if params.Layers > 1 {
			return []int{c.X, c.Y, c.Z}
		}
		return []int{c.X, c.Y}
	}
	for i := 0; i < params.NumAgents; i++ {
		a := mapio.AgentRecord{
			ID:    fmt.Sprintf("drone-%03d", i),
			Start: coords(free[perm[2*i]]),
			Goal:  coords(free[perm[2*i+1]]),
			Speed: params.Speed,
		}
		if params.ReleaseSpread > 0 {
			a.ReleaseAt = math.Round(rng.Float64()*params.ReleaseSpread*10) / 10
		}
		doc.Agents = append(doc.Agents, a)
	}

	return doc, nil
}

func main() {
	// Parse flags
	seed := flag.Int64("seed", 42, "Random seed for deterministic generation")
	numAgents := flag.Int("agents", 10, "Number of agents")
	width := flag.Int("width", 20, "Grid width")
	height := flag.Int("height", 20, "Grid height")
	layers := flag.Int("layers", 1, "Grid depth (1 = flat map)")
	density := flag.Float64("density", 0.15, "Box obstacle coverage (0-1)")
	towers := flag.Int("towers", 2, "Number of spherical obstacles")
	release := flag.Float64("release", 0, "Spread mission releases over this many seconds")
	speed := flag.Float64("speed", 1, "Agent speed (cells per second)")
	outputDir := flag.String("output", "testdata", "Output directory")
	scalingMode := flag.Bool("scaling", false, "Generate scaling test maps (10, 50, 100, 500 agents)")

	flag.Parse()

	// Create output directory
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	base := MapParams{
		Seed:            *seed,
		NumAgents:       *numAgents,
		Width:           *width,
		Height:          *height,
		Layers:          *layers,
		ObstacleDensity: *density,
		Towers:          *towers,
		ReleaseSpread:   *release,
		Speed:           *speed,
	}

	var params []MapParams
	if *scalingMode {
		for _, size := range []int{10, 50, 100, 500} {
			// Grid size scales with sqrt of agents
			gridSize := int(math.Ceil(math.Sqrt(float64(size)) * 4))
			if gridSize < 20 {
				gridSize = 20
			}
			p := base
			p.NumAgents = size
			p.Width, p.Height = gridSize, gridSize
			params = append(params, p)
		}
	} else {
		params = append(params, base)
	}

	for _, p := range params {
		doc, err := generateMap(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating map (%d agents): %v\n", p.NumAgents, err)
			continue
		}

		filename := filepath.Join(*outputDir, doc.Name+".json")
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error marshaling map %s: %v\n", doc.Name, err)
			continue
		}

		if err := os.WriteFile(filename, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing map %s: %v\n", filename, err)
			continue
		}

		fmt.Printf("Generated: %s (%d agents, %d obstacles, %dx%dx%d grid)\n",
			filename, len(doc.Agents), len(doc.Obstacles), doc.Width, doc.Height, p.Layers)
	}
}
