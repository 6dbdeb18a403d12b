// Package core defines the domain model for the skymind simulator: grid
// cells, world coordinates, obstacles, the grid map and the drone state machine.
package core

import (
	"fmt"
	"math"
)

// Cell is a discrete grid coordinate. 2D maps use Z = 0.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Add returns the cell offset by d.
func (c Cell) Add(d Cell) Cell {
	return Cell{c.X + d.X, c.Y + d.Y, c.Z + d.Z}
}

// Path is an ordered sequence of cells from start to goal inclusive.
type Path []Cell

// Start returns the first cell. The path must be non-empty.
func (p Path) Start() Cell { return p[0] }

// Goal returns the last cell. The path must be non-empty.
func (p Path) Goal() Cell { return p[len(p)-1] }

// Contains reports whether c appears on the path.
func (p Path) Contains(c Cell) bool {
	for _, pc := range p {
		if pc == c {
			return true
		}
	}
	return false
}

// Vec3 is a world-space position or velocity.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Length() float64      { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }
func (v Vec3) Dist(o Vec3) float64  { return v.Sub(o).Length() }
func (v Vec3) String() string       { return fmt.Sprintf("(%.3f,%.3f,%.3f)", v.X, v.Y, v.Z) }

// Normalize returns the unit vector, or the zero vector for zero length.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return Vec3{v.X / l, v.Y / l, v.Z / l}
}

// Connectivity is the neighbour topology of the grid.
type Connectivity int

const (
	Conn4  Connectivity = 4  // 2D orthogonal
	Conn8  Connectivity = 8  // 2D with diagonals
	Conn6  Connectivity = 6  // 3D orthogonal
	Conn26 Connectivity = 26 // 3D full
)

func (c Connectivity) String() string {
	switch c {
	case Conn4, Conn8, Conn6, Conn26:
		return fmt.Sprintf("%d-connected", int(c))
	default:
		return fmt.Sprintf("Connectivity(%d)", int(c))
	}
}

// Is3D reports whether the topology moves along Z.
func (c Connectivity) Is3D() bool {
	return c == Conn6 || c == Conn26
}

// Diagonal reports whether diagonal moves are allowed.
func (c Connectivity) Diagonal() bool {
	return c == Conn8 || c == Conn26
}

// Valid reports whether c is one of the supported topologies.
func (c Connectivity) Valid() bool {
	switch c {
	case Conn4, Conn8, Conn6, Conn26:
		return true
	}
	return false
}

// offsets for each topology, in a fixed order so neighbour iteration is deterministic.
var (
	offsets4  = []Cell{{1, 0, 0}, {0, 1, 0}, {-1, 0, 0}, {0, -1, 0}}
	offsets6  = []Cell{{1, 0, 0}, {0, 1, 0}, {-1, 0, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}
	offsets8  = buildOffsets(false)
	offsets26 = buildOffsets(true)
)

func buildOffsets(threeD bool) []Cell {
	zs := []int{0}
	if threeD {
		zs = []int{-1, 0, 1}
	}
	var out []Cell
	for _, dz := range zs {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				out = append(out, Cell{dx, dy, dz})
			}
		}
	}
	return out
}

// Offsets returns the neighbour offsets for the topology. The slice is shared; do not modify.
func (c Connectivity) Offsets() []Cell {
	switch c {
	case Conn4:
		return offsets4
	case Conn8:
		return offsets8
	case Conn6:
		return offsets6
	case Conn26:
		return offsets26
	default:
		return nil
	}
}

// StepLength is the geometric length of a unit move: 1, sqrt(2) or sqrt(3).
func StepLength(d Cell) float64 {
	n := abs(d.X) + abs(d.Y) + abs(d.Z)
	switch n {
	case 0:
		return 0
	case 1:
		return 1
	case 2:
		return math.Sqrt2
	default:
		return math.Sqrt(3)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
