package loopdetect_test

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/vehicle-mapping/internal/config"
	"github.com/itohio/vehicle-mapping/pkg/loopdetect"
	"github.com/itohio/vehicle-mapping/pkg/spatial"
)

func wallFrame(n int, offset r3.Vector) []r3.Vector {
	pts := make([]r3.Vector, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			pts = append(pts, r3.Vector{X: float64(i) * 0.1, Y: float64(j) * 0.1, Z: 2}.Add(offset))
		}
	}
	return pts
}

func TestSpatialDetectorFindsRevisit(t *testing.T) {
	cfg := config.Default().Loop
	cfg.Enabled = true
	cfg.Strategy = config.LoopStrategySpatial
	cfg.GMin = 5
	cfg.DMax = 1.0
	cfg.FLoop = 0.1
	cfg.VLoop = 0.05

	d := loopdetect.New(cfg)

	n := 10
	poses := make([]spatial.Pose, n)
	frames := make([][]r3.Vector, n)
	for i := range poses {
		poses[i] = spatial.Identity()
		frames[i] = wallFrame(8, r3.Vector{})
	}

	verified := d.DetectAndVerify(poses, func(idx int) []r3.Vector { return frames[idx] })
	require.NotEmpty(t, verified)
	for _, v := range verified {
		assert.GreaterOrEqual(t, v.J-v.I, cfg.GMin)
		assert.Greater(t, v.Fitness, cfg.FLoop)
	}
}

func TestSpatialDetectorDisabledByDefault(t *testing.T) {
	cfg := config.Default().Loop // strategy "none"
	d := loopdetect.New(cfg)
	poses := []spatial.Pose{spatial.Identity(), spatial.Identity()}
	verified := d.DetectAndVerify(poses, func(idx int) []r3.Vector { return nil })
	assert.Empty(t, verified)
}

func TestDescriptorCandidatesFindIdenticalRevisit(t *testing.T) {
	cfg := config.Default().Loop
	cfg.Enabled = true
	cfg.Strategy = config.LoopStrategyDescriptor
	cfg.GMin = 5
	cfg.SigmaSim = 0.5
	cfg.FLoop = 0.1
	cfg.VLoop = 0.05
	cfg.S = 16
	cfg.R = 8
	cfg.MaxRange = 20

	d := loopdetect.New(cfg)

	n := 10
	poses := make([]spatial.Pose, n)
	frames := make([][]r3.Vector, n)
	for i := range poses {
		poses[i] = spatial.Identity()
		frames[i] = wallFrame(8, r3.Vector{})
	}

	verified := d.DetectAndVerify(poses, func(idx int) []r3.Vector { return frames[idx] })
	require.NotEmpty(t, verified)
}

