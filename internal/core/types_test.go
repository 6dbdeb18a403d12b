package core

import (
	"math"
	"testing"
)

func TestStepLength(t *testing.T) {
	tests := []struct {
		d    Cell
		want float64
	}{
		{Cell{0, 0, 0}, 0},
		{Cell{1, 0, 0}, 1},
		{Cell{0, -1, 0}, 1},
		{Cell{1, 1, 0}, math.Sqrt2},
		{Cell{-1, 0, 1}, math.Sqrt2},
		{Cell{1, -1, 1}, math.Sqrt(3)},
	}

	for _, tt := range tests {
		if got := StepLength(tt.d); got != tt.want {
			t.Errorf("StepLength(%v) = %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestConnectivityOffsets(t *testing.T) {
	tests := []struct {
		conn Connectivity
		want int
	}{
		{Conn4, 4},
		{Conn8, 8},
		{Conn6, 6},
		{Conn26, 26},
		{Connectivity(5), 0},
	}

	for _, tt := range tests {
		offs := tt.conn.Offsets()
		if len(offs) != tt.want {
			t.Errorf("%v: got %d offsets, want %d", tt.conn, len(offs), tt.want)
		}
		seen := make(map[Cell]bool)
		for _, o := range offs {
			if o == (Cell{}) {
				t.Errorf("%v: offsets include the zero move", tt.conn)
			}
			if seen[o] {
				t.Errorf("%v: duplicate offset %v", tt.conn, o)
			}
			if !tt.conn.Is3D() && o.Z != 0 {
				t.Errorf("%v: 2D topology has Z offset %v", tt.conn, o)
			}
			seen[o] = true
		}
	}
}

func TestPathEnds(t *testing.T) {
	p := Path{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}}
	if p.Start() != (Cell{0, 0, 0}) || p.Goal() != (Cell{1, 1, 0}) {
		t.Errorf("unexpected ends %v -> %v", p.Start(), p.Goal())
	}
	if !p.Contains(Cell{1, 0, 0}) || p.Contains(Cell{2, 2, 0}) {
		t.Error("Contains mismatch")
	}
}

func TestVec3(t *testing.T) {
	v := Vec3{3, 4, 0}
	if v.Length() != 5 {
		t.Errorf("Length = %v, want 5", v.Length())
	}
	n := v.Normalize()
	if math.Abs(n.Length()-1) > 1e-12 {
		t.Errorf("Normalize length = %v", n.Length())
	}
	if (Vec3{}).Normalize() != (Vec3{}) {
		t.Error("zero vector should normalize to zero")
	}
	if d := (Vec3{1, 1, 1}).Dist(Vec3{1, 1, 3}); d != 2 {
		t.Errorf("Dist = %v, want 2", d)
	}
}
