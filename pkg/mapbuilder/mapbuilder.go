// Package mapbuilder accumulates world-frame points into a global cloud,
// periodically downsamples it, and runs statistical outlier removal at
// finalize.
package mapbuilder

import (
	"sync"

	"github.com/golang/geo/r3"

	"github.com/itohio/vehicle-mapping/internal/config"
	"github.com/itohio/vehicle-mapping/internal/logging"
	"github.com/itohio/vehicle-mapping/pkg/pointcloud"
	"github.com/itohio/vehicle-mapping/pkg/spatial"
)

var log = logging.Named("mapbuilder")

// Builder exclusively owns the growing global map; callers only ever see
// copies.
type Builder struct {
	cfg config.Map

	points      []r3.Vector
	framesAdded int
}

// New builds a map builder from configuration.
func New(cfg config.Map) *Builder {
	return &Builder{cfg: cfg}
}

// AddFrame optionally downsamples points at VFrame, transforms them by
// pose, and merges them into the global map.
func (b *Builder) AddFrame(points []r3.Vector, pose spatial.Pose) {
	pts := points
	if b.cfg.VFrame > 0 {
		pts = pointcloud.VoxelDownsample(pts, b.cfg.VFrame)
	}
	world := pose.TransformAll(pts)
	b.points = append(b.points, world...)
	b.framesAdded++
	b.maybeDownsample()
}

// maybeDownsample replaces the accumulated cloud by its VMap voxel
// downsampling every DownsampleEvery frames, keeping memory bounded during
// long sequences. Finalize still runs the authoritative downsample.
func (b *Builder) maybeDownsample() {
	every := b.cfg.DownsampleEvery
	if every <= 0 || b.cfg.VMap <= 0 || b.framesAdded%every != 0 {
		return
	}
	before := len(b.points)
	b.points = pointcloud.VoxelDownsample(b.points, b.cfg.VMap)
	log.Debug().Int("before", before).Int("after", len(b.points)).Msg("periodic map downsample")
}

// AddFramesOrdered transforms each frame by its pose in parallel, then
// merges in index order so the result is reproducible regardless of
// transform scheduling. Only the transforms run concurrently; the merge
// into the map is serial.
func (b *Builder) AddFramesOrdered(frames [][]r3.Vector, poses []spatial.Pose) {
	n := len(frames)
	transformed := make([][]r3.Vector, n)

	var wg sync.WaitGroup
	sem := make(chan struct{}, 8)
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			pts := frames[i]
			if b.cfg.VFrame > 0 {
				pts = pointcloud.VoxelDownsample(pts, b.cfg.VFrame)
			}
			transformed[i] = poses[i].TransformAll(pts)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		b.points = append(b.points, transformed[i]...)
		b.framesAdded++
		b.maybeDownsample()
	}
}

// Finalize voxel downsamples the accumulated cloud at VMap, then removes
// statistical outliers. Invariant: len(result) <= len(pre-finalize points)
// and no two retained points share a VMap voxel.
func (b *Builder) Finalize() []r3.Vector {
	pts := b.points
	if b.cfg.VMap > 0 {
		pts = pointcloud.VoxelDownsample(pts, b.cfg.VMap)
	}
	pts = pointcloud.StatisticalOutlierRemoval(pts, b.cfg.KNN, b.cfg.SigmaRatio)
	b.points = pts
	log.Debug().Int("points", len(pts)).Int("frames", b.framesAdded).Msg("map finalized")
	return append([]r3.Vector(nil), pts...)
}

// Points returns the current accumulated (not-yet-finalized) global map.
func (b *Builder) Points() []r3.Vector {
	return append([]r3.Vector(nil), b.points...)
}

// Statistics describes the current map: point count, frame count, bounds,
// and centroid.
type Statistics struct {
	NumPoints int
	NumFrames int
	BoundsMin r3.Vector
	BoundsMax r3.Vector
	Center    r3.Vector
	HasPoints bool
}

// Stats reports the current map's statistics.
func (b *Builder) Stats() Statistics {
	if len(b.points) == 0 {
		return Statistics{NumFrames: b.framesAdded}
	}
	min, max, _ := pointcloud.Bounds(b.points)
	center, _ := pointcloud.Centroid(b.points)
	return Statistics{
		NumPoints: len(b.points),
		NumFrames: b.framesAdded,
		BoundsMin: min,
		BoundsMax: max,
		Center:    center,
		HasPoints: true,
	}
}
