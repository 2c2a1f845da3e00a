// Package pipeline implements the orchestrator: it drives preprocessing,
// ICP odometry, loop detection, pose graph optimization, map building, and
// waypoint extraction over a directory of point-cloud frames, then writes
// the output artifacts.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"

	"github.com/itohio/vehicle-mapping/internal/config"
	"github.com/itohio/vehicle-mapping/internal/logging"
	"github.com/itohio/vehicle-mapping/pkg/icpodom"
	"github.com/itohio/vehicle-mapping/pkg/ioformats"
	"github.com/itohio/vehicle-mapping/pkg/loopdetect"
	"github.com/itohio/vehicle-mapping/pkg/mapbuilder"
	"github.com/itohio/vehicle-mapping/pkg/pointcloud"
	"github.com/itohio/vehicle-mapping/pkg/posegraph"
	"github.com/itohio/vehicle-mapping/pkg/preprocess"
	"github.com/itohio/vehicle-mapping/pkg/spatial"
	"github.com/itohio/vehicle-mapping/pkg/waypoints"
)

var log = logging.Named("pipeline")

// Orchestrator drives the full mapping pipeline over one configuration.
type Orchestrator struct {
	cfg config.Config
}

// New builds an orchestrator from a validated configuration.
func New(cfg config.Config) *Orchestrator {
	return &Orchestrator{cfg: cfg}
}

// Run discovers frames under inputDir, runs the full pipeline, writes
// artifacts to outputDir (if non-empty), and returns a summary Report.
// Cancellation via ctx is observed only at component boundaries.
func (o *Orchestrator) Run(ctx context.Context, inputDir, outputDir string) (Report, error) {
	if err := o.cfg.Validate(); err != nil {
		return Report{}, &Error{Kind: KindConfigInvalid, Err: err}
	}

	frames, err := o.loadFrames(ctx, inputDir)
	if err != nil {
		return Report{}, err
	}
	if len(frames) == 0 {
		return Report{}, &Error{Kind: KindInputMissing, Err: fmt.Errorf("no point-cloud frames found in %s", inputDir)}
	}
	log.Info().Int("frames", len(frames)).Msg("frames loaded")

	pre := preprocess.New(o.cfg.Preprocessor)
	processed := pre.ProcessAll(frames)

	if err := checkContext(ctx); err != nil {
		return Report{}, err
	}

	odom := icpodom.New(o.cfg.ICP)
	for _, f := range processed {
		if err := checkContext(ctx); err != nil {
			return Report{}, err
		}
		odom.Register(f)
	}
	odomPoses := odom.Poses()
	log.Info().Int("poses", len(odomPoses)).Msg("odometry complete")

	if err := checkContext(ctx); err != nil {
		return Report{}, err
	}

	graph := posegraph.BuildFromOdometry(odomPoses, o.cfg.Graph.SigmaOdom, o.cfg.Graph.SigmaPrior)
	optimized, err := graph.Optimize(o.cfg.Graph.MaxIters)
	if err != nil {
		return Report{}, &Error{Kind: KindOptimizationUnderDetermined, Err: err}
	}

	if o.cfg.Loop.Enabled {
		if err := checkContext(ctx); err != nil {
			return Report{}, err
		}
		poseByID := make([]spatial.Pose, len(odomPoses))
		for i := range odomPoses {
			poseByID[i] = optimized.Poses[i]
		}
		detector := loopdetect.New(o.cfg.Loop)
		provider := func(i int) []r3.Vector { return processed[i].Points }
		verified := detector.DetectAndVerify(poseByID, provider)
		if len(verified) > 0 {
			log.Info().Int("loops", len(verified)).Msg("adding loop closure constraints")
			for _, v := range verified {
				graph.AddLoopClosure(v.I, v.J, v.Relative, o.cfg.Graph.SigmaLoop)
			}
			optimized, err = graph.Optimize(o.cfg.Graph.MaxIters)
			if err != nil {
				return Report{}, &Error{Kind: KindOptimizationUnderDetermined, Err: err}
			}
		}
	}

	if !optimized.Converged {
		log.Warn().Int("iterations", optimized.Iterations).Msg("pose graph did not converge, using best estimate")
	}

	optimizedPoses := make([]spatial.Pose, len(odomPoses))
	for i := range odomPoses {
		optimizedPoses[i] = optimized.Poses[i]
	}

	if err := checkContext(ctx); err != nil {
		return Report{}, err
	}

	builder := mapbuilder.New(o.cfg.Map)
	framePoints := make([][]r3.Vector, len(processed))
	for i, f := range processed {
		framePoints[i] = f.Points
	}
	builder.AddFramesOrdered(framePoints, optimizedPoses)
	finalMap := builder.Finalize()
	mapStats := builder.Stats()
	log.Info().Int("points", mapStats.NumPoints).Msg("map finalized")

	wps := waypoints.Extract(optimizedPoses, o.cfg.Waypoints)
	wpStats := waypoints.Stats(wps)
	log.Info().Int("waypoints", wpStats.NumWaypoints).Float64("path_length_m", wpStats.TotalLength).Msg("waypoints extracted")

	graphStats := graph.Stats()
	report := Report{
		NumFrames:           len(processed),
		NumOdomFactors:      graphStats.NumOdomFactors,
		NumLoopFactors:      graphStats.NumLoopFactors,
		OptimizerConverged:  optimized.Converged,
		OptimizerIterations: optimized.Iterations,
		OptimizerFinalCost:  optimized.FinalCost,
		MapPoints:           mapStats.NumPoints,
		MapBoundsMin:        mapStats.BoundsMin,
		MapBoundsMax:        mapStats.BoundsMax,
		NumWaypoints:        wpStats.NumWaypoints,
		PathLength:          wpStats.TotalLength,
	}

	if outputDir != "" {
		if err := o.writeArtifacts(outputDir, finalMap, optimizedPoses, odomPoses, wps, report); err != nil {
			return report, &Error{Kind: KindPipelineFailure, Err: err}
		}
	}

	return report, nil
}

func (o *Orchestrator) loadFrames(ctx context.Context, inputDir string) ([]pointcloud.Frame, error) {
	files, err := ioformats.DiscoverFrames(inputDir)
	if err != nil {
		return nil, &Error{Kind: KindInputMissing, Err: err}
	}

	frames := make([]pointcloud.Frame, len(files))
	for i, path := range files {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}
		pts, err := ioformats.LoadPoints(path)
		if err != nil {
			return nil, &Error{Kind: KindInputMissing, Err: err}
		}
		var ts *float64
		if v, ok := ioformats.TimestampFromName(path); ok {
			ts = &v
		}
		frames[i] = pointcloud.Frame{Index: i, Timestamp: ts, Points: pts}
	}
	return frames, nil
}

func (o *Orchestrator) writeArtifacts(
	outputDir string,
	finalMap []r3.Vector,
	optimizedPoses, odomPoses []spatial.Pose,
	wps []r3.Vector,
	report Report,
) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("pipeline: create output dir: %w", err)
	}

	if err := ioformats.WriteFile(filepath.Join(outputDir, "map.ply"), func(w io.Writer) error {
		return ioformats.WritePLY(w, finalMap)
	}); err != nil {
		return err
	}
	if err := ioformats.WriteFile(filepath.Join(outputDir, "map.pcd"), func(w io.Writer) error {
		return ioformats.WritePCD(w, finalMap)
	}); err != nil {
		return err
	}

	trajectory := make(map[int]spatial.Pose, len(optimizedPoses))
	for i, p := range optimizedPoses {
		trajectory[i] = p
	}
	if err := ioformats.WriteFile(filepath.Join(outputDir, "trajectory.txt"), func(w io.Writer) error {
		return ioformats.WriteTrajectory(w, trajectory)
	}); err != nil {
		return err
	}

	wpXY := make([][2]float64, len(wps))
	for i, p := range wps {
		wpXY[i] = [2]float64{p.X, p.Y}
	}
	if err := ioformats.WriteFile(filepath.Join(outputDir, "waypoints.txt"), func(w io.Writer) error {
		return ioformats.WriteWaypointsFile(w, wpXY)
	}); err != nil {
		return err
	}

	if err := ioformats.WriteFile(filepath.Join(outputDir, "odometry_poses.bin"), func(w io.Writer) error {
		return ioformats.WriteOdometryPosesBinary(w, odomPoses)
	}); err != nil {
		return err
	}
	if err := ioformats.WriteFile(filepath.Join(outputDir, "odometry_poses.txt"), func(w io.Writer) error {
		return ioformats.WriteOdometryPosesText(w, odomPoses)
	}); err != nil {
		return err
	}

	if err := ioformats.WriteFile(filepath.Join(outputDir, "report.txt"), func(w io.Writer) error {
		return WriteReport(w, report)
	}); err != nil {
		return err
	}

	return nil
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return &Error{Kind: KindPipelineFailure, Err: ctx.Err()}
	default:
		return nil
	}
}
