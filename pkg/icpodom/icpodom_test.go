package icpodom_test

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/vehicle-mapping/internal/config"
	"github.com/itohio/vehicle-mapping/pkg/icpodom"
	"github.com/itohio/vehicle-mapping/pkg/pointcloud"
	"github.com/itohio/vehicle-mapping/pkg/spatial"
)

func wallFrame(offsetX float64) pointcloud.Frame {
	var pts []r3.Vector
	for y := -2.0; y <= 2.0; y += 0.2 {
		for z := 0.0; z <= 2.0; z += 0.2 {
			pts = append(pts, r3.Vector{X: 5 + offsetX, Y: y, Z: z})
		}
	}
	// a unique pillar feature so point-to-plane correspondence is well posed
	pts = append(pts, r3.Vector{X: 3 + offsetX, Y: 0, Z: 1})
	return pointcloud.Frame{Points: pts}
}

func TestFirstFrameIsIdentity(t *testing.T) {
	odo := icpodom.New(config.Default().ICP)
	res := odo.Register(wallFrame(0))
	assert.True(t, res.Pose.Equal(spatial.Identity(), 1e-9))
	assert.Equal(t, 1.0, res.Fitness)
}

func TestIdenticalFramesYieldNearIdentityDelta(t *testing.T) {
	cfg := config.Default().ICP
	odo := icpodom.New(cfg)

	res0 := odo.Register(wallFrame(0))
	require.Equal(t, 1.0, res0.Fitness)

	res1 := odo.Register(wallFrame(0))
	assert.InDelta(t, 0, res1.Pose.Translation().Norm(), 0.1)
}

func TestEmptyFrameReusesPreviousPose(t *testing.T) {
	odo := icpodom.New(config.Default().ICP)
	prev := odo.Register(wallFrame(0))
	res := odo.Register(pointcloud.Frame{Points: nil})
	assert.Equal(t, 0.0, res.Fitness)
	assert.True(t, res.Pose.Equal(prev.Pose, 1e-9))
}

func TestImplausibleJumpTriggersMotionModelFallback(t *testing.T) {
	cfg := config.Default().ICP
	odo := icpodom.New(cfg)

	odo.Register(wallFrame(0))
	odo.Register(wallFrame(0.1))

	// The scene leaps 5 m between frames; any registration that tracks it
	// exceeds 3*expected_step_m and must be rejected in favor of the
	// velocity-only motion model.
	res := odo.Register(wallFrame(5.0))
	assert.Equal(t, 0.0, res.Fitness)

	// Fallback keeps the chain plausible and later frames keep registering.
	next := odo.Register(wallFrame(5.1))
	delta := next.Pose.Translation().Sub(res.Pose.Translation()).Norm()
	assert.LessOrEqual(t, delta, 3*cfg.ExpectedStepM+1e-9)
}

func TestStepDeltaStaysWithinPlausibilityBound(t *testing.T) {
	cfg := config.Default().ICP
	odo := icpodom.New(cfg)

	var prev spatial.Pose
	for i := 0; i < 6; i++ {
		res := odo.Register(wallFrame(float64(i) * 0.1))
		if i > 0 && res.Fitness > 0 {
			delta := res.Pose.Translation().Sub(prev.Translation()).Norm()
			assert.LessOrEqual(t, delta, 3*cfg.ExpectedStepM+1e-9, "frame %d", i)
		}
		prev = res.Pose
	}
}
