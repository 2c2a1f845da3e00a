package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

type voxelKey struct {
	x, y, z int64
}

func keyFor(p r3.Vector, size float64) voxelKey {
	return voxelKey{
		x: int64(math.Floor(p.X / size)),
		y: int64(math.Floor(p.Y / size)),
		z: int64(math.Floor(p.Z / size)),
	}
}

// VoxelDownsample partitions pts by an axis-aligned grid of the given cell
// size and returns one centroid representative per occupied cell. Order is
// not guaranteed to match input order. size <= 0 returns pts unchanged.
func VoxelDownsample(pts []r3.Vector, size float64) []r3.Vector {
	if size <= 0 || len(pts) == 0 {
		return append([]r3.Vector(nil), pts...)
	}

	type accum struct {
		sum r3.Vector
		n   int
	}
	cells := make(map[voxelKey]*accum)
	for _, p := range pts {
		if !finite(p) {
			continue
		}
		k := keyFor(p, size)
		a, ok := cells[k]
		if !ok {
			a = &accum{}
			cells[k] = a
		}
		a.sum = a.sum.Add(p)
		a.n++
	}

	out := make([]r3.Vector, 0, len(cells))
	for _, a := range cells {
		n := float64(a.n)
		out = append(out, r3.Vector{X: a.sum.X / n, Y: a.sum.Y / n, Z: a.sum.Z / n})
	}
	return out
}

func finite(p r3.Vector) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0) &&
		!math.IsNaN(p.Z) && !math.IsInf(p.Z, 0)
}
