package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"

	"github.com/itohio/vehicle-mapping/internal/config"
	"github.com/itohio/vehicle-mapping/internal/pipeline"
	"github.com/itohio/vehicle-mapping/pkg/ioformats"
)

func wallFrame(nx, ny int) []r3.Vector {
	pts := make([]r3.Vector, 0, nx*ny)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			pts = append(pts, r3.Vector{X: float64(i) * 0.2, Y: float64(j) * 0.2, Z: 2.0})
		}
	}
	return pts
}

func writeFrames(t *testing.T, dir string, frames [][]r3.Vector) {
	t.Helper()
	for i, pts := range frames {
		path := filepath.Join(dir, frameName(i))
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, ioformats.WritePCD(f, pts))
		require.NoError(t, f.Close())
	}
}

func frameName(i int) string {
	return fmt.Sprintf("%03d.pcd", i)
}

func TestRunSingleFrameProducesIdentityTrajectory(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	writeFrames(t, inputDir, [][]r3.Vector{wallFrame(20, 20)})

	cfg := config.Default()
	orch := pipeline.New(cfg)

	report, err := orch.Run(context.Background(), inputDir, outputDir)
	require.NoError(t, err)
	require.Equal(t, 1, report.NumFrames)
	require.Equal(t, 1, report.NumWaypoints)

	for _, name := range []string{"map.ply", "map.pcd", "trajectory.txt", "waypoints.txt", "odometry_poses.bin", "odometry_poses.txt", "report.txt"} {
		_, err := os.Stat(filepath.Join(outputDir, name))
		require.NoError(t, err, name)
	}
}

func TestRunTwoIdenticalFramesYieldsNearIdentityOdometry(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	frame := wallFrame(25, 25)
	writeFrames(t, inputDir, [][]r3.Vector{frame, frame})

	cfg := config.Default()
	orch := pipeline.New(cfg)

	report, err := orch.Run(context.Background(), inputDir, outputDir)
	require.NoError(t, err)
	require.Equal(t, 2, report.NumFrames)
	require.Equal(t, 1, report.NumOdomFactors)
	// The waypoint path spans pose 0 to pose 1, so it measures the odometry step.
	require.Less(t, report.PathLength, 2*cfg.ICP.VICP)
}

// corridorWorld builds a small static scene with enough geometric
// constraint in every direction for point-to-plane ICP: two side walls, an
// end wall, a floor, and two pillars.
func corridorWorld() []r3.Vector {
	var pts []r3.Vector
	for x := -2.0; x <= 14.0; x += 0.2 {
		for z := 0.0; z <= 2.0; z += 0.4 {
			pts = append(pts, r3.Vector{X: x, Y: -2, Z: z})
			pts = append(pts, r3.Vector{X: x, Y: 2, Z: z})
		}
		for y := -2.0; y <= 2.0; y += 0.4 {
			pts = append(pts, r3.Vector{X: x, Y: y, Z: 0})
		}
	}
	for y := -2.0; y <= 2.0; y += 0.2 {
		for z := 0.0; z <= 2.0; z += 0.4 {
			pts = append(pts, r3.Vector{X: 14, Y: y, Z: z})
		}
	}
	for _, pillar := range [][2]float64{{4, 0.8}, {8, -1.1}} {
		for z := 0.0; z <= 2.0; z += 0.2 {
			pts = append(pts, r3.Vector{X: pillar[0], Y: pillar[1], Z: z})
		}
	}
	return pts
}

func corridorFrames(n int, step float64) [][]r3.Vector {
	world := corridorWorld()
	frames := make([][]r3.Vector, n)
	for i := range frames {
		offset := r3.Vector{X: float64(i) * step}
		local := make([]r3.Vector, len(world))
		for j, p := range world {
			local[j] = p.Sub(offset)
		}
		frames[i] = local
	}
	return frames
}

func TestRunCorridorSequenceTracksMotion(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()

	const n = 12
	const step = 0.25
	writeFrames(t, inputDir, corridorFrames(n, step))

	cfg := config.Default()
	cfg.Loop.Enabled = true
	cfg.Loop.Strategy = config.LoopStrategySpatial
	cfg.Loop.GMin = 8
	cfg.Waypoints.SMin = 1.0

	orch := pipeline.New(cfg)
	report, err := orch.Run(context.Background(), inputDir, outputDir)
	require.NoError(t, err)

	require.Equal(t, n, report.NumFrames)
	require.Equal(t, n-1, report.NumOdomFactors)

	expected := step * float64(n-1)
	require.Greater(t, report.PathLength, expected*0.5, "odometry lost most of the motion")
	require.Less(t, report.PathLength, expected*2.0, "odometry overshot the motion")
	require.GreaterOrEqual(t, report.NumWaypoints, 2)

	_, err = os.Stat(filepath.Join(outputDir, "trajectory.txt"))
	require.NoError(t, err)
}

func TestRunEmptyInputDirReturnsInputMissing(t *testing.T) {
	inputDir := t.TempDir()
	cfg := config.Default()
	orch := pipeline.New(cfg)

	_, err := orch.Run(context.Background(), inputDir, "")
	require.Error(t, err)
	require.Equal(t, 1, pipeline.ExitCode(err))
}

func TestRunInvalidConfigReturnsConfigInvalid(t *testing.T) {
	inputDir := t.TempDir()
	writeFrames(t, inputDir, [][]r3.Vector{wallFrame(5, 5)})

	cfg := config.Default()
	cfg.Preprocessor.VPre = -1
	orch := pipeline.New(cfg)

	_, err := orch.Run(context.Background(), inputDir, "")
	require.Error(t, err)
	require.Equal(t, 2, pipeline.ExitCode(err))
}

func TestRunCancelledContextFails(t *testing.T) {
	inputDir := t.TempDir()
	writeFrames(t, inputDir, [][]r3.Vector{wallFrame(5, 5), wallFrame(5, 5)})

	cfg := config.Default()
	orch := pipeline.New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.Run(ctx, inputDir, "")
	require.Error(t, err)
	require.Equal(t, 3, pipeline.ExitCode(err))
}
