package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrInvalidObstacle is returned by Obstacle.Validate.
var ErrInvalidObstacle = errors.New("invalid obstacle")

// Obstacle is a geometric descriptor used to mark grid cells. The set of
// implementations is closed: Box, Sphere and Footprint.
type Obstacle interface {
	// Kind returns a short name for logs and snapshots.
	Kind() string
	// Validate checks the geometry.
	Validate() error

	// bounds returns the world-space bounding box.
	bounds() (Vec3, Vec3)
}

// Box is an axis-aligned box with inclusive corners.
type Box struct {
	Min, Max Vec3
}

// BoxFromSize builds a Box from its min corner and edge lengths.
func BoxFromSize(corner, size Vec3) Box {
	return Box{Min: corner, Max: corner.Add(size)}
}

func (b Box) Kind() string { return "box" }

func (b Box) Validate() error {
	if b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z {
		return fmt.Errorf("%w: box min %v exceeds max %v", ErrInvalidObstacle, b.Min, b.Max)
	}
	return nil
}

func (b Box) bounds() (Vec3, Vec3) { return b.Min, b.Max }

func (b Box) contains(p Vec3, flat bool) bool {
	if p.X < b.Min.X || p.X > b.Max.X || p.Y < b.Min.Y || p.Y > b.Max.Y {
		return false
	}
	return flat || (p.Z >= b.Min.Z && p.Z <= b.Max.Z)
}

// Sphere is a ball; in 2D grids it acts as a disc.
type Sphere struct {
	Center Vec3
	Radius float64
}

func (s Sphere) Kind() string { return "sphere" }

func (s Sphere) Validate() error {
	if !(s.Radius > 0) || math.IsInf(s.Radius, 0) {
		return fmt.Errorf("%w: sphere radius must be positive, got %v", ErrInvalidObstacle, s.Radius)
	}
	return nil
}

func (s Sphere) bounds() (Vec3, Vec3) {
	r := Vec3{s.Radius, s.Radius, s.Radius}
	return s.Center.Sub(r), s.Center.Add(r)
}

func (s Sphere) contains(p Vec3, flat bool) bool {
	d := p.Sub(s.Center)
	if flat {
		d.Z = 0
	}
	return d.X*d.X+d.Y*d.Y+d.Z*d.Z <= s.Radius*s.Radius
}

// Footprint is a planar polygon extruded between MinZ and MaxZ, such as a
// building outline imported from GeoJSON.
type Footprint struct {
	Polygon    orb.Polygon
	MinZ, MaxZ float64
}

func (f Footprint) Kind() string { return "polygon" }

func (f Footprint) Validate() error {
	if len(f.Polygon) == 0 || len(f.Polygon[0]) < 3 {
		return fmt.Errorf("%w: polygon needs an outer ring of at least 3 points", ErrInvalidObstacle)
	}
	if f.MinZ > f.MaxZ {
		return fmt.Errorf("%w: polygon min_z %v exceeds max_z %v", ErrInvalidObstacle, f.MinZ, f.MaxZ)
	}
	return nil
}

func (f Footprint) bounds() (Vec3, Vec3) {
	b := f.Polygon.Bound()
	return Vec3{b.Min.X(), b.Min.Y(), f.MinZ}, Vec3{b.Max.X(), b.Max.Y(), f.MaxZ}
}

func (f Footprint) contains(p Vec3, flat bool) bool {
	if !flat && (p.Z < f.MinZ || p.Z > f.MaxZ) {
		return false
	}
	return planar.PolygonContains(f.Polygon, orb.Point{p.X, p.Y})
}
