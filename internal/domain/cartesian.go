package domain

import (
	"fmt"
	"math"

	"github.com/san-kum/agentsim/internal/dynamo"
)

// Voxel is one cell of the regular grid.
type Voxel struct {
	Index     int
	Coords    [2]int
	Min, Max  dynamo.Vec
	Neighbors []int
}

// Cartesian partitions the rectangle [Min, Max) into N[0] x N[1] voxels.
// Voxels are addressed by the flat index ix + iy*N[0].
type Cartesian struct {
	Min, Max dynamo.Vec
	N        [2]int
	Size     dynamo.Vec

	voxels []Voxel
}

// NewCartesian builds the voxel grid and precomputes every voxel's neighbors.
func NewCartesian(min, max dynamo.Vec, n [2]int) (*Cartesian, error) {
	if !dynamo.IsFinite(min) || !dynamo.IsFinite(max) {
		return nil, &dynamo.DomainError{Reason: "bounds must be finite"}
	}
	for axis := 0; axis < 2; axis++ {
		if n[axis] <= 0 {
			return nil, &dynamo.DomainError{
				Reason: fmt.Sprintf("voxel count on axis %d must be positive, got %d", axis, n[axis]),
			}
		}
		lo, hi := dynamo.Axis(min, axis), dynamo.Axis(max, axis)
		if lo >= hi {
			return nil, &dynamo.DomainError{
				Reason: fmt.Sprintf("degenerate bounds on axis %d: [%g, %g)", axis, lo, hi),
			}
		}
	}

	c := &Cartesian{
		Min: min,
		Max: max,
		N:   n,
		Size: dynamo.Vec{
			X: (max.X - min.X) / float64(n[0]),
			Y: (max.Y - min.Y) / float64(n[1]),
		},
	}
	c.voxels = make([]Voxel, n[0]*n[1])
	for idx := range c.voxels {
		ix, iy := c.Coords(idx)
		c.voxels[idx] = Voxel{
			Index:     idx,
			Coords:    [2]int{ix, iy},
			Min:       c.corner(ix, iy),
			Max:       c.corner(ix+1, iy+1),
			Neighbors: c.neighbors(ix, iy),
		}
	}
	return c, nil
}

// NewSquare is the square domain [0, size)^2 split into n x n voxels.
func NewSquare(size float64, n int) (*Cartesian, error) {
	return NewCartesian(dynamo.Vec{}, dynamo.Vec{X: size, Y: size}, [2]int{n, n})
}

// corner returns the lower-left corner of voxel (ix, iy); the far edge of
// the grid is pinned to Max so the voxels tile the domain exactly.
func (c *Cartesian) corner(ix, iy int) dynamo.Vec {
	p := dynamo.Vec{
		X: c.Min.X + float64(ix)*c.Size.X,
		Y: c.Min.Y + float64(iy)*c.Size.Y,
	}
	if ix == c.N[0] {
		p.X = c.Max.X
	}
	if iy == c.N[1] {
		p.Y = c.Max.Y
	}
	return p
}

// neighbors are sorted ascending because the flat index grows with x first.
func (c *Cartesian) neighbors(ix, iy int) []int {
	out := make([]int, 0, 8)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if idx, ok := c.IdxCheck(ix+dx, iy+dy); ok {
				out = append(out, idx)
			}
		}
	}
	return out
}

// Len returns the number of voxels.
func (c *Cartesian) Len() int { return len(c.voxels) }

// Idx returns the flat index of voxel (ix, iy).
func (c *Cartesian) Idx(ix, iy int) int { return ix + iy*c.N[0] }

// IdxCheck returns the flat index and true if (ix, iy) is inside the grid.
func (c *Cartesian) IdxCheck(ix, iy int) (int, bool) {
	if ix < 0 || iy < 0 || ix >= c.N[0] || iy >= c.N[1] {
		return -1, false
	}
	return c.Idx(ix, iy), true
}

// Coords returns the grid coordinates of a flat index.
func (c *Cartesian) Coords(idx int) (ix, iy int) {
	return idx % c.N[0], idx / c.N[0]
}

// Voxel returns a copy of voxel idx.
func (c *Cartesian) Voxel(idx int) Voxel {
	v := c.voxels[idx]
	v.Neighbors = append([]int(nil), v.Neighbors...)
	return v
}

// NeighborsOf returns the in-range neighbors of voxel idx in ascending
// order. There is no wraparound.
func (c *Cartesian) NeighborsOf(idx int) []int {
	return append([]int(nil), c.voxels[idx].Neighbors...)
}

// Contains reports whether p lies inside [Min, Max) on both axes.
func (c *Cartesian) Contains(p dynamo.Vec) bool {
	return p.X >= c.Min.X && p.X < c.Max.X && p.Y >= c.Min.Y && p.Y < c.Max.Y
}

// VoxelOf returns the flat index of the voxel containing p.
func (c *Cartesian) VoxelOf(p dynamo.Vec) (int, error) {
	if !c.Contains(p) {
		return -1, &dynamo.OutOfBoundsError{Pos: p, Min: c.Min, Max: c.Max}
	}
	return c.Idx(c.cell(p.X, 0), c.cell(p.Y, 1)), nil
}

func (c *Cartesian) cell(x float64, axis int) int {
	lo, size := dynamo.Axis(c.Min, axis), dynamo.Axis(c.Size, axis)
	i := int(math.Floor((x - lo) / size))
	// rounding can push a point just below Max into cell N
	if i >= c.N[axis] {
		i = c.N[axis] - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Reflect mirrors an out-of-range coordinate once across the wall it
// crossed and negates the matching velocity component. A coordinate that is
// still outside afterwards is returned unchanged in that state; VoxelOf
// reports it.
func (c *Cartesian) Reflect(pos, vel dynamo.Vec) (dynamo.Vec, dynamo.Vec) {
	for axis := 0; axis < 2; axis++ {
		x := dynamo.Axis(pos, axis)
		lo, hi := dynamo.Axis(c.Min, axis), dynamo.Axis(c.Max, axis)

		switch {
		case x < lo:
			x = 2*lo - x
		case x >= hi:
			x = 2*hi - x
			if x >= hi {
				x = math.Nextafter(hi, lo)
			}
		default:
			continue
		}
		pos = dynamo.SetAxis(pos, axis, x)
		vel = dynamo.SetAxis(vel, axis, -dynamo.Axis(vel, axis))
	}
	return pos, vel
}

// MinVoxelSize returns the smaller voxel edge.
func (c *Cartesian) MinVoxelSize() float64 {
	return math.Min(c.Size.X, c.Size.Y)
}

// CheckCutoff rejects interaction ranges wider than a voxel: such pairs
// would never be evaluated by the neighbor search.
func (c *Cartesian) CheckCutoff(cutoff float64) error {
	if cutoff > c.MinVoxelSize() {
		return &dynamo.DomainError{
			Reason: fmt.Sprintf("cutoff %g exceeds voxel size %g; lower n_voxels", cutoff, c.MinVoxelSize()),
		}
	}
	return nil
}
