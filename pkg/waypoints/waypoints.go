// Package waypoints turns an optimized trajectory into a 2D waypoint path:
// projection, minimum-spacing filtering, optional Z-band filtering, and
// optional Douglas-Peucker simplification.
package waypoints

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"

	"github.com/itohio/vehicle-mapping/internal/config"
	"github.com/itohio/vehicle-mapping/pkg/spatial"
)

// Extract runs the full waypoint pipeline over an ordered trajectory:
// project to 2D, minimum-spacing filter, optional Z-band filter, optional
// Douglas-Peucker simplification. The result is non-empty iff trajectory
// is non-empty, and its first/last points match the trajectory's
// first/last 2D projections (subject to the Z-band filter).
func Extract(trajectory []spatial.Pose, cfg config.Waypoints) []r3.Vector {
	if len(trajectory) == 0 {
		return nil
	}

	positions := make([]r3.Vector, len(trajectory))
	for i, p := range trajectory {
		positions[i] = p.Translation()
	}

	filtered := filterByDistance(positions, cfg.SMin)

	if cfg.ZBand != nil {
		filtered = filterByZBand(filtered, *cfg.ZBand)
	}

	if cfg.Simplify {
		filtered = douglasPeucker(filtered, cfg.Epsilon)
	}

	return filtered
}

// filterByDistance keeps the first point and thereafter every candidate
// whose 2D distance to the last kept point exceeds sMin. The trajectory's
// last point is always retained, even when it lands closer than sMin to
// the previous kept point.
func filterByDistance(positions []r3.Vector, sMin float64) []r3.Vector {
	if len(positions) == 0 {
		return nil
	}
	out := []r3.Vector{positions[0]}
	for _, p := range positions[1:] {
		last := out[len(out)-1]
		if dist2D(p, last) > sMin {
			out = append(out, p)
		}
	}
	final := positions[len(positions)-1]
	if dist2D(out[len(out)-1], final) > 1e-12 {
		out = append(out, final)
	}
	return out
}

// filterByZBand drops points whose z deviates from the median z by more
// than zBand.
func filterByZBand(positions []r3.Vector, zBand float64) []r3.Vector {
	if len(positions) == 0 {
		return nil
	}
	zs := make([]float64, len(positions))
	for i, p := range positions {
		zs[i] = p.Z
	}
	sort.Float64s(zs)
	median := zs[len(zs)/2]
	if len(zs)%2 == 0 {
		median = (zs[len(zs)/2-1] + zs[len(zs)/2]) / 2
	}

	out := make([]r3.Vector, 0, len(positions))
	for _, p := range positions {
		if math.Abs(p.Z-median) <= zBand {
			out = append(out, p)
		}
	}
	return out
}

// douglasPeucker recursively keeps endpoints and any interior point whose
// perpendicular distance to the chord exceeds epsilon. Always retains the
// first and last point.
func douglasPeucker(points []r3.Vector, epsilon float64) []r3.Vector {
	if len(points) < 3 {
		return points
	}
	idx := simplifyIndices(points, epsilon)
	out := make([]r3.Vector, len(idx))
	for i, ix := range idx {
		out[i] = points[ix]
	}
	return out
}

func simplifyIndices(points []r3.Vector, epsilon float64) []int {
	if len(points) < 3 {
		idx := make([]int, len(points))
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	start, end := points[0], points[len(points)-1]
	lineX, lineY := end.X-start.X, end.Y-start.Y
	lineLen := math.Hypot(lineX, lineY)

	if lineLen < 1e-6 {
		return []int{0, len(points) - 1}
	}
	unitX, unitY := lineX/lineLen, lineY/lineLen

	maxDist := -1.0
	maxIdx := 0
	for i, p := range points {
		vx, vy := p.X-start.X, p.Y-start.Y
		projLen := vx*unitX + vy*unitY
		projX, projY := start.X+projLen*unitX, start.Y+projLen*unitY
		d := math.Hypot(p.X-projX, p.Y-projY)
		if d > maxDist {
			maxDist = d
			maxIdx = i
		}
	}

	if maxDist > epsilon {
		left := simplifyIndices(points[:maxIdx+1], epsilon)
		right := simplifyIndices(points[maxIdx:], epsilon)
		out := append([]int(nil), left[:len(left)-1]...)
		for _, ix := range right {
			out = append(out, ix+maxIdx)
		}
		return out
	}
	return []int{0, len(points) - 1}
}

func dist2D(a, b r3.Vector) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Statistics describes a waypoint set: count, total path length, average
// spacing, and 2D bounds.
type Statistics struct {
	NumWaypoints int
	TotalLength  float64
	AvgSpacing   float64
	BoundsMin    r3.Vector
	BoundsMax    r3.Vector
}

// Stats reports the given waypoint set's statistics.
func Stats(points []r3.Vector) Statistics {
	if len(points) == 0 {
		return Statistics{}
	}

	var total float64
	for i := 1; i < len(points); i++ {
		total += dist2D(points[i], points[i-1])
	}
	avg := 0.0
	if len(points) > 1 {
		avg = total / float64(len(points)-1)
	}

	min, max := points[0], points[0]
	for _, p := range points[1:] {
		min = r3.Vector{X: minF(min.X, p.X), Y: minF(min.Y, p.Y), Z: minF(min.Z, p.Z)}
		max = r3.Vector{X: maxF(max.X, p.X), Y: maxF(max.Y, p.Y), Z: maxF(max.Z, p.Z)}
	}

	return Statistics{
		NumWaypoints: len(points),
		TotalLength:  total,
		AvgSpacing:   avg,
		BoundsMin:    min,
		BoundsMax:    max,
	}
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
