// Package posegraph implements an SE(3) factor graph optimized by damped
// Gauss-Newton (Levenberg-Marquardt) over the tangent space, with
// prior/odometry/loop factors, diagonal sigma weighting, and a
// chain-from-odometry convenience constructor.
package posegraph

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/itohio/vehicle-mapping/internal/logging"
	"github.com/itohio/vehicle-mapping/pkg/spatial"
)

var log = logging.Named("posegraph")

// ErrUnderdetermined is returned by Optimize when the graph has no prior
// factor to anchor the gauge freedom.
var ErrUnderdetermined = errors.New("posegraph: no prior factor, graph is underdetermined")

type factorKind int

const (
	factorPrior factorKind = iota
	factorOdom
	factorLoop
)

type factor struct {
	kind        factorKind
	from, to    int // for priors, `from` is the pinned vertex and `to` is unused
	measurement spatial.Pose
	sigma       [6]float64 // rotation xyz (rad), translation xyz (m)
}

// Graph accumulates vertices and factors and runs nonlinear optimization.
type Graph struct {
	vertices    map[int]spatial.Pose
	factors     []factor
	hasPrior    bool
	odomFactors int
	loopFactors int
}

// New returns an empty pose graph.
func New() *Graph {
	return &Graph{vertices: make(map[int]spatial.Pose)}
}

// AddPrior pins a vertex's pose with Gaussian uncertainty sigma. Call it
// exactly once, normally at vertex 0.
func (g *Graph) AddPrior(id int, pose spatial.Pose, sigma [6]float64) {
	g.factors = append(g.factors, factor{kind: factorPrior, from: id, measurement: pose, sigma: sigma})
	g.hasPrior = true
}

// AddInitial registers an initial estimate for a vertex if one isn't
// already present.
func (g *Graph) AddInitial(id int, pose spatial.Pose) {
	if _, ok := g.vertices[id]; !ok {
		g.vertices[id] = pose
	}
}

// AddOdometry adds a between factor tagged as an odometry constraint.
func (g *Graph) AddOdometry(from, to int, relative spatial.Pose, sigma [6]float64) {
	g.factors = append(g.factors, factor{kind: factorOdom, from: from, to: to, measurement: relative, sigma: sigma})
	g.odomFactors++
}

// AddLoopClosure adds a between factor tagged as a loop-closure constraint.
func (g *Graph) AddLoopClosure(from, to int, relative spatial.Pose, sigma [6]float64) {
	g.factors = append(g.factors, factor{kind: factorLoop, from: from, to: to, measurement: relative, sigma: sigma})
	g.loopFactors++
}

// BuildFromOdometry builds a graph from an absolute-pose chain: a prior at
// vertex 0 plus a chain of between factors for consecutive poses.
func BuildFromOdometry(poses []spatial.Pose, sigmaOdom, sigmaPrior [6]float64) *Graph {
	g := New()
	if len(poses) == 0 {
		return g
	}

	g.AddPrior(0, poses[0], sigmaPrior)
	g.AddInitial(0, poses[0])

	for i := 1; i < len(poses); i++ {
		relative := poses[i].RelativeTo(poses[i-1])
		g.AddOdometry(i-1, i, relative, sigmaOdom)
		g.AddInitial(i, poses[i])
	}
	return g
}

// Statistics reports graph size.
type Statistics struct {
	NumPoses        int
	NumOdomFactors  int
	NumLoopFactors  int
	NumTotalFactors int
}

// Stats reports graph size statistics.
func (g *Graph) Stats() Statistics {
	return Statistics{
		NumPoses:        len(g.vertices),
		NumOdomFactors:  g.odomFactors,
		NumLoopFactors:  g.loopFactors,
		NumTotalFactors: len(g.factors),
	}
}

// TrajectoryLength sums consecutive translation distances across sorted
// vertex ids.
func (g *Graph) TrajectoryLength() float64 {
	ids := g.sortedIDs()
	var length float64
	for i := 1; i < len(ids); i++ {
		p1 := g.vertices[ids[i-1]].Translation()
		p2 := g.vertices[ids[i]].Translation()
		length += p2.Sub(p1).Norm()
	}
	return length
}

func (g *Graph) sortedIDs() []int {
	ids := make([]int, 0, len(g.vertices))
	for id := range g.vertices {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// OptimizeResult is the outcome of a call to Optimize.
type OptimizeResult struct {
	Poses      map[int]spatial.Pose
	Converged  bool
	Iterations int
	FinalCost  float64
}

// Optimize runs damped Gauss-Newton over the tangent space of SE(3) using
// central-difference Jacobians of each factor's residual. Non-convergence
// is reported via Converged=false with the best estimate so far, not an
// error.
func (g *Graph) Optimize(maxIters int) (OptimizeResult, error) {
	if !g.hasPrior {
		return OptimizeResult{}, ErrUnderdetermined
	}

	ids := g.sortedIDs()
	index := make(map[int]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}
	n := len(ids)
	poses := make([]spatial.Pose, n)
	for i, id := range ids {
		poses[i] = g.vertices[id]
	}

	lambda := 1e-3
	cost := g.evaluateCost(ids, index, poses)

	converged := false
	iter := 0
	for ; iter < maxIters; iter++ {
		J, r, weights := g.assembleSystem(ids, index, poses)
		rows, cols := J.Dims()
		if rows == 0 {
			converged = true
			break
		}

		var JtW mat.Dense
		JtW.Mul(J.T(), weights)

		var JtWJ mat.Dense
		JtWJ.Mul(&JtW, J)

		var JtWr mat.VecDense
		JtWr.MulVec(&JtW, r)

		for i := 0; i < cols; i++ {
			JtWJ.Set(i, i, JtWJ.At(i, i)*(1+lambda))
		}

		var negJtWr mat.VecDense
		negJtWr.ScaleVec(-1, &JtWr)

		var delta mat.VecDense
		if err := delta.SolveVec(&JtWJ, &negJtWr); err != nil {
			lambda *= 10
			continue
		}

		trial := applyDelta(poses, &delta)
		trialCost := g.evaluateCost(ids, index, trial)

		if trialCost < cost {
			relChange := (cost - trialCost) / maxF(cost, 1e-12)
			poses = trial
			cost = trialCost
			lambda = maxF(lambda/10, 1e-12)
			if relChange < 1e-6 {
				converged = true
				iter++
				break
			}
		} else {
			lambda *= 10
			if lambda > 1e12 {
				break
			}
		}
	}

	if !converged {
		log.Warn().Int("iterations", iter).Float64("cost", cost).Msg("pose graph optimization did not converge")
	}

	result := make(map[int]spatial.Pose, n)
	for i, id := range ids {
		result[id] = poses[i]
		g.vertices[id] = poses[i]
	}

	return OptimizeResult{Poses: result, Converged: converged, Iterations: iter, FinalCost: cost}, nil
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// applyDelta retracts the solved increment onto each pose. The delta vector
// is laid out in Twist order per vertex, matching the Jacobian columns built
// in assembleSystem.
func applyDelta(poses []spatial.Pose, delta *mat.VecDense) []spatial.Pose {
	out := make([]spatial.Pose, len(poses))
	for i, p := range poses {
		xi := spatial.Twist{
			delta.AtVec(i*6 + 0), delta.AtVec(i*6 + 1), delta.AtVec(i*6 + 2),
			delta.AtVec(i*6 + 3), delta.AtVec(i*6 + 4), delta.AtVec(i*6 + 5),
		}
		out[i] = p.Compose(spatial.Exp(xi))
	}
	return out
}

func residualOrder(xi spatial.Twist) [6]float64 {
	// Twist is (rho translation, phi rotation); factor residuals are
	// ordered rotation-then-translation to match the sigma layout.
	return [6]float64{xi[3], xi[4], xi[5], xi[0], xi[1], xi[2]}
}

func factorResidual(f factor, poses []spatial.Pose, index map[int]int) [6]float64 {
	switch f.kind {
	case factorPrior:
		pi := poses[index[f.from]]
		err := pi.Inverse().Compose(f.measurement)
		return residualOrder(spatial.Log(err))
	default:
		pi := poses[index[f.from]]
		pj := poses[index[f.to]]
		predicted := pi.Inverse().Compose(pj)
		err := predicted.Compose(f.measurement.Inverse())
		return residualOrder(spatial.Log(err))
	}
}

func (g *Graph) evaluateCost(ids []int, index map[int]int, poses []spatial.Pose) float64 {
	var cost float64
	for _, f := range g.factors {
		r := factorResidual(f, poses, index)
		for k := 0; k < 6; k++ {
			w := 1.0 / (f.sigma[k] * f.sigma[k])
			cost += 0.5 * w * r[k] * r[k]
		}
	}
	return cost
}

// assembleSystem builds the stacked Jacobian, residual, and diagonal weight
// matrix across all factors via central-difference perturbation of each
// involved vertex's 6-DOF tangent increment.
func (g *Graph) assembleSystem(ids []int, index map[int]int, poses []spatial.Pose) (*mat.Dense, *mat.VecDense, *mat.Dense) {
	n := len(poses)
	numFactors := len(g.factors)
	rows := numFactors * 6
	cols := n * 6

	J := mat.NewDense(rows, cols, nil)
	r := mat.NewVecDense(rows, nil)
	W := mat.NewDense(rows, rows, nil)

	const h = 1e-6

	for fi, f := range g.factors {
		base := factorResidual(f, poses, index)
		rowOff := fi * 6
		for k := 0; k < 6; k++ {
			r.SetVec(rowOff+k, base[k])
			w := 1.0 / (f.sigma[k] * f.sigma[k])
			W.Set(rowOff+k, rowOff+k, w)
		}

		involved := []int{f.from}
		if f.kind != factorPrior {
			involved = append(involved, f.to)
		}

		for _, vertexID := range involved {
			vi := index[vertexID]
			for d := 0; d < 6; d++ {
				plusTwist := spatial.Twist{}
				plusTwist[d] = h
				perturbed := append([]spatial.Pose(nil), poses...)
				perturbed[vi] = poses[vi].Compose(spatial.Exp(plusTwist))
				plusRes := factorResidual(f, perturbed, index)

				minusTwist := spatial.Twist{}
				minusTwist[d] = -h
				perturbed[vi] = poses[vi].Compose(spatial.Exp(minusTwist))
				minusRes := factorResidual(f, perturbed, index)

				col := vi*6 + d
				for k := 0; k < 6; k++ {
					deriv := (plusRes[k] - minusRes[k]) / (2 * h)
					J.Set(rowOff+k, col, deriv)
				}
			}
		}
	}

	return J, r, W
}
