package preprocess_test

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"

	"github.com/itohio/vehicle-mapping/internal/config"
	"github.com/itohio/vehicle-mapping/pkg/preprocess"
	"github.com/itohio/vehicle-mapping/pkg/pointcloud"
)

func TestProcessOrderAndEmptyFrame(t *testing.T) {
	cfg := config.Default().Preprocessor
	cfg.RemoveGround = true
	cfg.ZGround = 0
	cfg.VPre = 0.05

	p := preprocess.New(cfg)

	out := p.Process(pointcloud.Frame{Index: 3, Points: nil})
	assert.Equal(t, 3, out.Index)
	assert.Empty(t, out.Points)

	frame := pointcloud.Frame{
		Index: 1,
		Points: []r3.Vector{
			{X: 1, Y: 0, Z: -1},  // below ground, dropped
			{X: 1, Y: 0, Z: 1},   // kept
			{X: 1000, Y: 0, Z: 1}, // out of range, dropped
		},
	}
	out = p.Process(frame)
	assert.Len(t, out.Points, 1)
}

func TestProcessAllPreservesOrder(t *testing.T) {
	cfg := config.Default().Preprocessor
	p := preprocess.New(cfg)

	frames := make([]pointcloud.Frame, 10)
	for i := range frames {
		frames[i] = pointcloud.Frame{Index: i, Points: []r3.Vector{{X: 1, Y: 0, Z: 0}}}
	}
	out := p.ProcessAll(frames)
	for i, f := range out {
		assert.Equal(t, i, f.Index)
	}
}
