package pointcloud

import "github.com/golang/geo/r3"

// Frame is one LiDAR scan: an ordered point set with an optional timestamp.
type Frame struct {
	Index     int
	Timestamp *float64
	Points    []r3.Vector
}

// Clone returns a deep copy of the frame's point slice.
func (f Frame) Clone() Frame {
	pts := make([]r3.Vector, len(f.Points))
	copy(pts, f.Points)
	return Frame{Index: f.Index, Timestamp: f.Timestamp, Points: pts}
}

// Transformed returns a new frame with every point mapped through apply.
func (f Frame) Transformed(apply func(r3.Vector) r3.Vector) Frame {
	pts := make([]r3.Vector, len(f.Points))
	for i, p := range f.Points {
		pts[i] = apply(p)
	}
	return Frame{Index: f.Index, Timestamp: f.Timestamp, Points: pts}
}

// Bounds returns the axis-aligned bounding box of pts. ok is false for an
// empty slice.
func Bounds(pts []r3.Vector) (min, max r3.Vector, ok bool) {
	if len(pts) == 0 {
		return r3.Vector{}, r3.Vector{}, false
	}
	min, max = pts[0], pts[0]
	for _, p := range pts[1:] {
		min = r3.Vector{X: minF(min.X, p.X), Y: minF(min.Y, p.Y), Z: minF(min.Z, p.Z)}
		max = r3.Vector{X: maxF(max.X, p.X), Y: maxF(max.Y, p.Y), Z: maxF(max.Z, p.Z)}
	}
	return min, max, true
}

// Centroid returns the mean of pts. ok is false for an empty slice.
func Centroid(pts []r3.Vector) (r3.Vector, bool) {
	if len(pts) == 0 {
		return r3.Vector{}, false
	}
	var sum r3.Vector
	for _, p := range pts {
		sum = sum.Add(p)
	}
	n := float64(len(pts))
	return r3.Vector{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}, true
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
