package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// RangeGate drops points whose Euclidean norm falls outside [rMin, rMax].
// Non-finite points are dropped silently, per the preprocessor contract.
func RangeGate(pts []r3.Vector, rMin, rMax float64) []r3.Vector {
	out := make([]r3.Vector, 0, len(pts))
	for _, p := range pts {
		if !finite(p) {
			continue
		}
		norm := p.Norm()
		if norm >= rMin && norm <= rMax {
			out = append(out, p)
		}
	}
	return out
}

// GroundCut drops points with z below zGround.
func GroundCut(pts []r3.Vector, zGround float64) []r3.Vector {
	out := make([]r3.Vector, 0, len(pts))
	for _, p := range pts {
		if p.Z >= zGround {
			out = append(out, p)
		}
	}
	return out
}

// StatisticalOutlierRemoval drops points whose mean distance to their kNN
// nearest neighbors exceeds mean + sigmaRatio*stddev over all points' mean
// distances.
func StatisticalOutlierRemoval(pts []r3.Vector, kNN int, sigmaRatio float64) []r3.Vector {
	n := len(pts)
	if n == 0 || kNN <= 0 {
		return append([]r3.Vector(nil), pts...)
	}

	tree := NewKDTree(pts)
	meanDist := make([]float64, n)
	var sum, sumSq float64
	for i, p := range pts {
		neighbors := tree.KNearest(p, kNN+1) // includes self
		var acc float64
		count := 0
		for _, idx := range neighbors {
			if idx == i {
				continue
			}
			acc += dist(pts[idx], p)
			count++
		}
		if count == 0 {
			meanDist[i] = 0
		} else {
			meanDist[i] = acc / float64(count)
		}
		sum += meanDist[i]
		sumSq += meanDist[i] * meanDist[i]
	}

	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	stddev := math.Sqrt(variance)
	threshold := mean + sigmaRatio*stddev

	out := make([]r3.Vector, 0, n)
	for i, p := range pts {
		if meanDist[i] <= threshold {
			out = append(out, p)
		}
	}
	return out
}

func dist(a, b r3.Vector) float64 {
	return a.Sub(b).Norm()
}
