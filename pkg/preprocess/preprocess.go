// Package preprocess implements the frame preprocessor: range gate,
// optional ground cut, voxel downsample, in that fixed order.
package preprocess

import (
	"github.com/itohio/vehicle-mapping/internal/config"
	"github.com/itohio/vehicle-mapping/pkg/pointcloud"
)

// Pipeline holds the preprocessor's parameters.
type Pipeline struct {
	cfg config.Preprocessor
}

// New builds a preprocessor pipeline from its configuration.
func New(cfg config.Preprocessor) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Process applies range gate, optional ground cut, and voxel downsample to
// a raw frame, preserving its index and timestamp. Empty frames are legal
// and produce empty outputs.
func (p *Pipeline) Process(frame pointcloud.Frame) pointcloud.Frame {
	pts := pointcloud.RangeGate(frame.Points, p.cfg.RMin, p.cfg.RMax)
	if p.cfg.RemoveGround {
		pts = pointcloud.GroundCut(pts, p.cfg.ZGround)
	}
	pts = pointcloud.VoxelDownsample(pts, p.cfg.VPre)

	return pointcloud.Frame{Index: frame.Index, Timestamp: frame.Timestamp, Points: pts}
}

// ProcessAll runs Process over every frame, in parallel, since
// preprocessing frames is embarrassingly independent. Output order matches
// input order.
func (p *Pipeline) ProcessAll(frames []pointcloud.Frame) []pointcloud.Frame {
	out := make([]pointcloud.Frame, len(frames))
	sem := make(chan struct{}, maxParallelism())
	done := make(chan int, len(frames))

	for i, f := range frames {
		i, f := i, f
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			out[i] = p.Process(f)
			done <- i
		}()
	}
	for range frames {
		<-done
	}
	return out
}

func maxParallelism() int {
	return 8
}
