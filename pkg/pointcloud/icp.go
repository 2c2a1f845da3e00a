package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/itohio/vehicle-mapping/pkg/spatial"
)

// ICPResult is the outcome of a registration call: the transform that maps
// source points onto target points, a fitness in [0,1] (fraction of source
// points with an inlier correspondence), and the inlier RMSE.
type ICPResult struct {
	Transform spatial.Pose
	Fitness   float64
	RMSE      float64
}

type correspondence struct {
	srcIdx, tgtIdx int
	sqDist         float64
}

func findCorrespondences(source []r3.Vector, targetTree *KDTree, maxDist float64) []correspondence {
	maxSq := maxDist * maxDist
	out := make([]correspondence, 0, len(source))
	for i, p := range source {
		idx, sqDist, ok := targetTree.Nearest(p)
		if !ok || sqDist > maxSq {
			continue
		}
		out = append(out, correspondence{srcIdx: i, tgtIdx: idx, sqDist: sqDist})
	}
	return out
}

// RegisterPointToPlane aligns source onto target by minimizing point-to-
// plane residuals against targetNormals, the variant the odometry path
// uses. initial is the starting transform (usually identity, since callers
// pre-warp source into the predicted world frame before calling this).
func RegisterPointToPlane(source, target, targetNormals []r3.Vector, initial spatial.Pose, maxCorrespondence float64, maxIterations int) ICPResult {
	if len(source) == 0 || len(target) == 0 {
		return ICPResult{Transform: initial, Fitness: 0, RMSE: 0}
	}

	targetTree := NewKDTree(target)
	current := initial

	var lastRMSE float64
	var lastFitness float64

	for iter := 0; iter < maxIterations; iter++ {
		warped := current.TransformAll(source)
		corr := findCorrespondences(warped, targetTree, maxCorrespondence)
		if len(corr) < 6 {
			break
		}

		A := mat.NewDense(len(corr), 6, nil)
		b := mat.NewVecDense(len(corr), nil)

		var sqSum float64
		for row, c := range corr {
			p := warped[c.srcIdx]
			q := target[c.tgtIdx]
			n := targetNormals[c.tgtIdx]

			cross := p.Cross(n)
			A.Set(row, 0, n.X)
			A.Set(row, 1, n.Y)
			A.Set(row, 2, n.Z)
			A.Set(row, 3, cross.X)
			A.Set(row, 4, cross.Y)
			A.Set(row, 5, cross.Z)

			residual := n.Dot(p.Sub(q))
			b.SetVec(row, -residual)
			sqSum += residual * residual
		}

		var AtA mat.Dense
		AtA.Mul(A.T(), A)
		var Atb mat.VecDense
		Atb.MulVec(A.T(), b)

		// Levenberg-style damping on the diagonal for numerical stability.
		for i := 0; i < 6; i++ {
			AtA.Set(i, i, AtA.At(i, i)+1e-6)
		}

		var x mat.VecDense
		if err := x.SolveVec(&AtA, &Atb); err != nil {
			break
		}

		delta := spatial.Exp(spatial.Twist{x.AtVec(0), x.AtVec(1), x.AtVec(2), x.AtVec(3), x.AtVec(4), x.AtVec(5)})
		current = delta.Compose(current)

		lastFitness = float64(len(corr)) / float64(len(source))
		lastRMSE = math.Sqrt(sqSum / float64(len(corr)))

		if vecNorm6(&x) < 1e-7 {
			break
		}
	}

	return ICPResult{Transform: current, Fitness: lastFitness, RMSE: lastRMSE}
}

// RegisterPointToPoint aligns source onto target using the classic
// Besl-McKay closed-form (SVD) rigid alignment per iteration, the variant
// loop verification uses.
func RegisterPointToPoint(source, target []r3.Vector, initial spatial.Pose, maxCorrespondence float64, maxIterations int) ICPResult {
	if len(source) == 0 || len(target) == 0 {
		return ICPResult{Transform: initial, Fitness: 0, RMSE: 0}
	}

	targetTree := NewKDTree(target)
	current := initial

	var lastFitness, lastRMSE float64

	for iter := 0; iter < maxIterations; iter++ {
		warped := current.TransformAll(source)
		corr := findCorrespondences(warped, targetTree, maxCorrespondence)
		if len(corr) < 3 {
			break
		}

		srcPts := make([]r3.Vector, len(corr))
		tgtPts := make([]r3.Vector, len(corr))
		var sqSum float64
		for i, c := range corr {
			srcPts[i] = warped[c.srcIdx]
			tgtPts[i] = target[c.tgtIdx]
			sqSum += c.sqDist
		}

		step, ok := kabsch(srcPts, tgtPts)
		if !ok {
			break
		}
		current = step.Compose(current)

		lastFitness = float64(len(corr)) / float64(len(source))
		lastRMSE = math.Sqrt(sqSum / float64(len(corr)))

		tx := step.Translation()
		if tx.Norm() < 1e-7 {
			break
		}
	}

	return ICPResult{Transform: current, Fitness: lastFitness, RMSE: lastRMSE}
}

// kabsch computes the rigid transform mapping src onto dst in the
// least-squares sense via SVD of the cross-covariance matrix.
func kabsch(src, dst []r3.Vector) (spatial.Pose, bool) {
	srcCentroid, ok1 := Centroid(src)
	dstCentroid, ok2 := Centroid(dst)
	if !ok1 || !ok2 {
		return spatial.Identity(), false
	}

	H := mat.NewDense(3, 3, nil)
	for i := range src {
		s := src[i].Sub(srcCentroid)
		d := dst[i].Sub(dstCentroid)
		sArr := [3]float64{s.X, s.Y, s.Z}
		dArr := [3]float64{d.X, d.Y, d.Z}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				H.Set(r, c, H.At(r, c)+sArr[r]*dArr[c])
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(H, mat.SVDFull) {
		return spatial.Identity(), false
	}
	var U, V mat.Dense
	svd.UTo(&U)
	svd.VTo(&V)

	var Ut mat.Dense
	Ut.CloneFrom(U.T())

	var R mat.Dense
	R.Mul(&V, &Ut)

	det := mat.Det(&R)
	if det < 0 {
		// Reflection correction: flip the sign of V's last column.
		for r := 0; r < 3; r++ {
			V.Set(r, 2, -V.At(r, 2))
		}
		R.Mul(&V, &Ut)
	}

	var rArr [3][3]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			rArr[r][c] = R.At(r, c)
		}
	}

	rotatedCentroid := r3.Vector{
		X: rArr[0][0]*srcCentroid.X + rArr[0][1]*srcCentroid.Y + rArr[0][2]*srcCentroid.Z,
		Y: rArr[1][0]*srcCentroid.X + rArr[1][1]*srcCentroid.Y + rArr[1][2]*srcCentroid.Z,
		Z: rArr[2][0]*srcCentroid.X + rArr[2][1]*srcCentroid.Y + rArr[2][2]*srcCentroid.Z,
	}
	t := dstCentroid.Sub(rotatedCentroid)

	return spatial.NewFromRT(rArr, t), true
}

func vecNorm6(v *mat.VecDense) float64 {
	var sum float64
	for i := 0; i < 6; i++ {
		sum += v.AtVec(i) * v.AtVec(i)
	}
	return math.Sqrt(sum)
}
