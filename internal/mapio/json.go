package mapio

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/elektrokombinacija/skymind-sim/internal/core"
	"github.com/elektrokombinacija/skymind-sim/internal/sim"
)

// Document is the JSON map format. Coordinates are [x, y] or [x, y, z]
// arrays; obstacle geometry is in world units, agent cells in grid indices.
type Document struct {
	Name         string          `json:"name,omitempty"`
	Width        int             `json:"width"`
	Height       int             `json:"height"`
	Depth        int             `json:"depth,omitempty"`
	Resolution   float64         `json:"resolution,omitempty"`
	Origin       []float64       `json:"origin,omitempty"`
	Connectivity int             `json:"connectivity,omitempty"`
	CornerCut    bool            `json:"allow_corner_cutting,omitempty"`
	Obstacles    []ObstacleSpec  `json:"obstacles,omitempty"`
	Footprints   json.RawMessage `json:"footprints,omitempty"`
	Costs        []CostSpec      `json:"costs,omitempty"`
	Agents       []AgentRecord   `json:"agents,omitempty"`
}

// ObstacleSpec is one tagged obstacle. Type selects which fields apply:
// "box" uses Min with Max or Size, "sphere" uses Center and Radius,
// "polygon" uses Points with optional MinZ/MaxZ.
type ObstacleSpec struct {
	Type   string      `json:"type"`
	Min    []float64   `json:"min,omitempty"`
	Max    []float64   `json:"max,omitempty"`
	Size   []float64   `json:"size,omitempty"`
	Center []float64   `json:"center,omitempty"`
	Radius float64     `json:"radius,omitempty"`
	Points [][]float64 `json:"points,omitempty"`
	MinZ   *float64    `json:"min_z,omitempty"`
	MaxZ   *float64    `json:"max_z,omitempty"`
}

// CostSpec overrides the traversal cost of a single cell.
type CostSpec struct {
	Cell []int   `json:"cell"`
	Cost float64 `json:"cost"`
}

// AgentRecord describes one initial agent.
type AgentRecord struct {
	ID        string              `json:"id"`
	Start     []int               `json:"start"`
	Goal      []int               `json:"goal,omitempty"`
	Speed     float64             `json:"speed,omitempty"`
	ReleaseAt float64             `json:"release_at,omitempty"`
	Battery   *core.BatteryConfig `json:"battery,omitempty"`
}

// ParseJSON decodes a Document and converts it to a Description.
// Unknown fields are rejected.
func ParseJSON(data []byte) (*Description, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMap, err)
	}
	return doc.Description()
}

// Description validates the document and applies defaults: depth 1,
// resolution 1, and 8- or 26-connectivity depending on depth.
func (doc *Document) Description() (*Description, error) {
	d := &Description{Name: doc.Name}
	cfg := core.GridConfig{
		Width:              doc.Width,
		Height:             doc.Height,
		Depth:              doc.Depth,
		Resolution:         doc.Resolution,
		Connectivity:       core.Connectivity(doc.Connectivity),
		AllowCornerCutting: doc.CornerCut,
	}
	if cfg.Depth == 0 {
		cfg.Depth = 1
	}
	if cfg.Resolution == 0 {
		cfg.Resolution = 1
	}
	if cfg.Connectivity == 0 {
		cfg.Connectivity = core.Conn8
		if cfg.Depth > 1 {
			cfg.Connectivity = core.Conn26
		}
	}
	if doc.Origin != nil {
		o, err := toVec("origin", doc.Origin)
		if err != nil {
			return nil, err
		}
		cfg.Origin = o
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMap, err)
	}
	d.Grid = cfg

	for i, spec := range doc.Obstacles {
		o, err := spec.obstacle(cfg)
		if err != nil {
			return nil, fmt.Errorf("obstacle %d: %w", i, err)
		}
		d.Obstacles = append(d.Obstacles, o)
	}
	if len(doc.Footprints) > 0 {
		obs, err := parseFootprints(doc.Footprints, cfg)
		if err != nil {
			return nil, err
		}
		d.Obstacles = append(d.Obstacles, obs...)
	}
	for i, c := range doc.Costs {
		cell, err := toCell(fmt.Sprintf("costs[%d].cell", i), c.Cell)
		if err != nil {
			return nil, err
		}
		d.Costs = append(d.Costs, CellCost{Cell: cell, Cost: c.Cost})
	}

	seen := make(map[string]bool, len(doc.Agents))
	for i, a := range doc.Agents {
		if a.ID == "" {
			return nil, malformed("agent %d has no id", i)
		}
		if seen[a.ID] {
			return nil, malformed("duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
		if a.Start == nil {
			return nil, malformed("agent %q has no start", a.ID)
		}
		spec := sim.AgentSpec{ID: a.ID, Speed: a.Speed, ReleaseAt: a.ReleaseAt, Battery: a.Battery}
		var err error
		if spec.Start, err = toCell(a.ID+".start", a.Start); err != nil {
			return nil, err
		}
		if a.Goal != nil {
			goal, err := toCell(a.ID+".goal", a.Goal)
			if err != nil {
				return nil, err
			}
			spec.Goal = &goal
		}
		d.Agents = append(d.Agents, spec)
	}
	return d, nil
}

// zSpan is the default vertical extent of footprints: the whole grid.
func zSpan(cfg core.GridConfig) (float64, float64) {
	return cfg.Origin.Z, cfg.Origin.Z + float64(cfg.Depth)*cfg.Resolution
}

func (s ObstacleSpec) obstacle(cfg core.GridConfig) (core.Obstacle, error) {
	var o core.Obstacle
	switch s.Type {
	case "box":
		lo, err := toVec("min", s.Min)
		if err != nil {
			return nil, err
		}
		switch {
		case s.Max != nil && s.Size != nil:
			return nil, malformed("box sets both max and size")
		case s.Max != nil:
			hi, err := toVec("max", s.Max)
			if err != nil {
				return nil, err
			}
			o = core.Box{Min: lo, Max: hi}
		case s.Size != nil:
			size, err := toVec("size", s.Size)
			if err != nil {
				return nil, err
			}
			o = core.BoxFromSize(lo, size)
		default:
			return nil, malformed("box needs max or size")
		}
	case "sphere":
		c, err := toVec("center", s.Center)
		if err != nil {
			return nil, err
		}
		o = core.Sphere{Center: c, Radius: s.Radius}
	case "polygon":
		if len(s.Points) < 3 {
			return nil, malformed("polygon needs at least 3 points, got %d", len(s.Points))
		}
		ring := make(orb.Ring, 0, len(s.Points)+1)
		for i, p := range s.Points {
			if len(p) != 2 {
				return nil, malformed("points[%d] must be [x, y]", i)
			}
			ring = append(ring, orb.Point{p[0], p[1]})
		}
		if len(ring) > 0 && !ring.Closed() {
			ring = append(ring, ring[0])
		}
		f := core.Footprint{Polygon: orb.Polygon{ring}}
		f.MinZ, f.MaxZ = zSpan(cfg)
		if s.MinZ != nil {
			f.MinZ = *s.MinZ
		}
		if s.MaxZ != nil {
			f.MaxZ = *s.MaxZ
		}
		o = f
	default:
		return nil, malformed("unknown obstacle type %q", s.Type)
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMap, err)
	}
	return o, nil
}

// parseFootprints reads a GeoJSON FeatureCollection. Polygons and
// multipolygons become extruded footprints (optional "min_z"/"max_z"
// properties); points with a "radius" property become spheres.
func parseFootprints(raw json.RawMessage, cfg core.GridConfig) ([]core.Obstacle, error) {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: footprints: %v", ErrMalformedMap, err)
	}
	defMin, defMax := zSpan(cfg)
	var out []core.Obstacle
	for i, f := range fc.Features {
		minZ := f.Properties.MustFloat64("min_z", defMin)
		maxZ := f.Properties.MustFloat64("max_z", defMax)
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			out = append(out, core.Footprint{Polygon: g, MinZ: minZ, MaxZ: maxZ})
		case orb.MultiPolygon:
			for _, p := range g {
				out = append(out, core.Footprint{Polygon: p, MinZ: minZ, MaxZ: maxZ})
			}
		case orb.Point:
			r := f.Properties.MustFloat64("radius", 0)
			z := f.Properties.MustFloat64("z", cfg.Origin.Z)
			out = append(out, core.Sphere{Center: core.Vec3{X: g.X(), Y: g.Y(), Z: z}, Radius: r})
		default:
			return nil, malformed("footprint %d: unsupported geometry %T", i, f.Geometry)
		}
	}
	for i, o := range out {
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("%w: footprint %d: %v", ErrMalformedMap, i, err)
		}
	}
	return out, nil
}

func toVec(name string, v []float64) (core.Vec3, error) {
	switch len(v) {
	case 2:
		return core.Vec3{X: v[0], Y: v[1]}, nil
	case 3:
		return core.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
	}
	return core.Vec3{}, malformed("%s must have 2 or 3 coordinates, got %d", name, len(v))
}

func toCell(name string, v []int) (core.Cell, error) {
	switch len(v) {
	case 2:
		return core.Cell{X: v[0], Y: v[1]}, nil
	case 3:
		return core.Cell{X: v[0], Y: v[1], Z: v[2]}, nil
	}
	return core.Cell{}, malformed("%s must have 2 or 3 coordinates, got %d", name, len(v))
}
