package pointcloud

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// EstimateNormals computes a per-point surface normal via local PCA: for
// each point, gather neighbors within radius (capped at maxNN, nearest
// first), and take the eigenvector of the smallest eigenvalue of their
// covariance matrix. Callers pass radius = 2x the voxel size and maxNN=30.
func EstimateNormals(pts []r3.Vector, radius float64, maxNN int) []r3.Vector {
	normals := make([]r3.Vector, len(pts))
	if len(pts) == 0 {
		return normals
	}
	tree := NewKDTree(pts)

	for i, p := range pts {
		candidates := tree.RadiusSearch(p, radius)
		if len(candidates) > maxNN {
			candidates = tree.KNearest(p, maxNN)
		}
		normals[i] = localNormal(pts, candidates, p)
	}
	return normals
}

func localNormal(pts []r3.Vector, neighborIdx []int, fallback r3.Vector) r3.Vector {
	if len(neighborIdx) < 3 {
		return r3.Vector{X: 0, Y: 0, Z: 1}
	}

	neighbors := make([]r3.Vector, len(neighborIdx))
	for i, idx := range neighborIdx {
		neighbors[i] = pts[idx]
	}
	centroid, _ := Centroid(neighbors)

	cov := mat.NewSymDense(3, nil)
	for _, n := range neighbors {
		d := n.Sub(centroid)
		arr := [3]float64{d.X, d.Y, d.Z}
		for r := 0; r < 3; r++ {
			for c := r; c < 3; c++ {
				cov.SetSym(r, c, cov.At(r, c)+arr[r]*arr[c])
			}
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return r3.Vector{X: 0, Y: 0, Z: 1}
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	minIdx := 0
	for i := 1; i < len(values); i++ {
		if values[i] < values[minIdx] {
			minIdx = i
		}
	}
	normal := r3.Vector{
		X: vectors.At(0, minIdx),
		Y: vectors.At(1, minIdx),
		Z: vectors.At(2, minIdx),
	}
	if normal.Norm() == 0 {
		return r3.Vector{X: 0, Y: 0, Z: 1}
	}
	return normal.Normalize()
}
