// Package icpodom implements ICP odometry: frame-to-local-map registration
// with a motion-model fallback on implausible corrections.
package icpodom

import (
	"github.com/golang/geo/r3"

	"github.com/itohio/vehicle-mapping/internal/config"
	"github.com/itohio/vehicle-mapping/internal/logging"
	"github.com/itohio/vehicle-mapping/pkg/pointcloud"
	"github.com/itohio/vehicle-mapping/pkg/spatial"
)

var log = logging.Named("icpodom")

// localMapCap sets the thinning stride for each retained world-frame frame
// fed into the local-map target: every (len/localMapCap)-th point is kept,
// so a frame contributes fewer than 2*localMapCap points.
const localMapCap = 5000

// Result is the outcome of registering one frame.
type Result struct {
	Pose    spatial.Pose
	Fitness float64
	RMSE    float64
}

// Odometry holds the sliding-window odometry state: the absolute pose
// chain and the full-resolution world-frame point sets retained up to
// WindowK frames back for the local-map target.
type Odometry struct {
	cfg config.ICP

	poses  []spatial.Pose
	window [][]r3.Vector // world-frame points, retained window
}

// New builds an odometry tracker from configuration.
func New(cfg config.ICP) *Odometry {
	return &Odometry{cfg: cfg}
}

// Poses returns the absolute pose chain accumulated so far.
func (o *Odometry) Poses() []spatial.Pose {
	return append([]spatial.Pose(nil), o.poses...)
}

// Register runs one step of the odometry algorithm on a preprocessed frame.
func (o *Odometry) Register(frame pointcloud.Frame) Result {
	i := len(o.poses)

	if i == 0 {
		o.poses = append(o.poses, spatial.Identity())
		o.window = append(o.window, append([]r3.Vector(nil), frame.Points...))
		return Result{Pose: spatial.Identity(), Fitness: 1.0, RMSE: 0.0}
	}

	if len(frame.Points) == 0 {
		// FrameEmpty: recoverable, reuse the previous pose with fitness 0.
		prev := o.poses[i-1]
		o.poses = append(o.poses, prev)
		o.window = append(o.window, nil)
		o.trimWindow()
		return Result{Pose: prev, Fitness: 0, RMSE: 0}
	}

	target := o.buildLocalMapTarget(i)
	targetNormals := pointcloud.EstimateNormals(target, 2*o.cfg.VICP, 30)

	source := pointcloud.VoxelDownsample(frame.Points, o.cfg.VICP)
	prevPose := o.poses[i-1]
	worldSource := prevPose.TransformAll(source)

	icpResult := pointcloud.RegisterPointToPlane(
		worldSource, target, targetNormals,
		spatial.Identity(),
		2*o.cfg.DCorr, 2*o.cfg.NIt,
	)

	candidate := icpResult.Transform.Compose(prevPose)

	delta := candidate.Translation().Sub(prevPose.Translation()).Norm()
	threshold := 3 * o.cfg.ExpectedStepM

	var pose spatial.Pose
	var fitness float64
	if delta > threshold {
		log.Warn().Int("frame", i).Float64("delta_m", delta).Msg("implausible ICP correction, using motion model")
		pose = o.motionModelFallback(i)
		fitness = 0
	} else {
		pose = candidate
		fitness = icpResult.Fitness
	}

	o.poses = append(o.poses, pose)
	o.window = append(o.window, pose.TransformAll(frame.Points))
	o.trimWindow()

	return Result{Pose: pose, Fitness: fitness, RMSE: icpResult.RMSE}
}

// motionModelFallback preserves translation velocity and zeroes angular
// velocity: it copies the previous pose and adds the previous translation
// delta, rather than composing a rotation-aware increment.
func (o *Odometry) motionModelFallback(i int) spatial.Pose {
	if len(o.poses) < 2 {
		return o.poses[i-1]
	}
	prev := o.poses[i-1]
	prevPrev := o.poses[i-2]
	velocity := prev.Translation().Sub(prevPrev.Translation())
	newTranslation := prev.Translation().Add(velocity)
	return spatial.NewFromRT(prev.Rotation(), newTranslation)
}

// buildLocalMapTarget assembles the last min(WindowK, i) retained
// world-frame point sets, subsampled and voxelized at v_icp.
func (o *Odometry) buildLocalMapTarget(i int) []r3.Vector {
	k := o.cfg.WindowK
	if k > i {
		k = i
	}
	start := len(o.window) - k
	if start < 0 {
		start = 0
	}

	var combined []r3.Vector
	for _, pts := range o.window[start:] {
		combined = append(combined, decimate(pts, localMapCap)...)
	}
	return pointcloud.VoxelDownsample(combined, o.cfg.VICP)
}

// trimWindow releases world-frame buffers older than WindowK so memory
// stays bounded over long sequences.
func (o *Odometry) trimWindow() {
	k := o.cfg.WindowK
	if len(o.window) <= k {
		return
	}
	drop := len(o.window) - k
	o.window = o.window[drop:]
}

func decimate(pts []r3.Vector, cap int) []r3.Vector {
	if len(pts) <= cap {
		return pts
	}
	step := len(pts) / cap
	if step < 1 {
		step = 1
	}
	out := make([]r3.Vector, 0, cap+1)
	for i := 0; i < len(pts); i += step {
		out = append(out, pts[i])
	}
	return out
}
