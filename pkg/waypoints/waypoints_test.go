package waypoints_test

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/vehicle-mapping/internal/config"
	"github.com/itohio/vehicle-mapping/pkg/spatial"
	"github.com/itohio/vehicle-mapping/pkg/waypoints"
)

func straightTrajectory(n int, step float64) []spatial.Pose {
	poses := make([]spatial.Pose, n)
	for i := range poses {
		poses[i] = spatial.NewFromRT([3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, r3.Vector{X: float64(i) * step})
	}
	return poses
}

func TestMinimumSpacingInvariant(t *testing.T) {
	cfg := config.Default().Waypoints
	cfg.SMin = 1.0
	cfg.Simplify = false

	traj := straightTrajectory(100, 0.1) // x from 0 to 9.9 m
	out := waypoints.Extract(traj, cfg)

	require.Len(t, out, 11) // 0, 1.1, 2.2, ..., 9.8 kept by spacing, plus the forced final 9.9
	for i := 1; i < len(out); i++ {
		dist := out[i].Sub(out[i-1]).Norm()
		if i < len(out)-1 {
			assert.GreaterOrEqual(t, dist, cfg.SMin-1e-9)
		}
	}
}

func TestDouglasPeuckerStraightLineReducesToEndpoints(t *testing.T) {
	cfg := config.Default().Waypoints
	cfg.SMin = 0 // keep everything before simplification so DP sees the full line
	cfg.Simplify = true
	cfg.Epsilon = 0.05

	traj := straightTrajectory(100, 0.1)
	out := waypoints.Extract(traj, cfg)

	require.Len(t, out, 2)
	assert.InDelta(t, 0, out[0].X, 1e-9)
	assert.InDelta(t, 9.9, out[1].X, 1e-6)
}

func zigzagTrajectory(n int) []spatial.Pose {
	poses := make([]spatial.Pose, n)
	r := [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	for i := range poses {
		y := 0.0
		if i%2 == 1 {
			y = 0.5
		}
		poses[i] = spatial.NewFromRT(r, r3.Vector{X: float64(i), Y: y})
	}
	return poses
}

func TestDouglasPeuckerZeroEpsilonKeepsEveryDeviatingPoint(t *testing.T) {
	cfg := config.Default().Waypoints
	cfg.SMin = 0
	cfg.Simplify = true
	cfg.Epsilon = 0

	traj := zigzagTrajectory(9)
	out := waypoints.Extract(traj, cfg)

	// Every interior zigzag point deviates from its chord, so epsilon=0
	// must reproduce the full input.
	require.Len(t, out, 9)
	for i, p := range out {
		assert.InDelta(t, float64(i), p.X, 1e-9)
	}
}

func TestDouglasPeuckerHugeEpsilonReducesToEndpoints(t *testing.T) {
	cfg := config.Default().Waypoints
	cfg.SMin = 0
	cfg.Simplify = true
	cfg.Epsilon = 1e9

	traj := zigzagTrajectory(9)
	out := waypoints.Extract(traj, cfg)

	require.Len(t, out, 2)
	assert.InDelta(t, 0, out[0].X, 1e-9)
	assert.InDelta(t, 8, out[1].X, 1e-9)
}

func TestEmptyTrajectoryYieldsEmptyWaypoints(t *testing.T) {
	out := waypoints.Extract(nil, config.Default().Waypoints)
	assert.Empty(t, out)
}

func TestSingleFrameYieldsSingleWaypoint(t *testing.T) {
	out := waypoints.Extract([]spatial.Pose{spatial.Identity()}, config.Default().Waypoints)
	require.Len(t, out, 1)
	assert.Equal(t, r3.Vector{}, out[0])
}

func TestZBandFilterDropsOffGroundPoints(t *testing.T) {
	cfg := config.Default().Waypoints
	cfg.SMin = 0
	band := 0.5
	cfg.ZBand = &band

	poses := []spatial.Pose{
		spatial.NewFromRT([3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, r3.Vector{X: 0, Z: 0}),
		spatial.NewFromRT([3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, r3.Vector{X: 1, Z: 5}),
		spatial.NewFromRT([3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, r3.Vector{X: 2, Z: 0}),
	}
	out := waypoints.Extract(poses, cfg)
	for _, p := range out {
		assert.Less(t, p.Z, 1.0)
	}
}

func TestStatsComputesLengthAndSpacing(t *testing.T) {
	pts := []r3.Vector{{X: 0}, {X: 1}, {X: 3}}
	stats := waypoints.Stats(pts)
	assert.Equal(t, 3, stats.NumWaypoints)
	assert.InDelta(t, 3.0, stats.TotalLength, 1e-9)
	assert.InDelta(t, 1.5, stats.AvgSpacing, 1e-9)
}
