// Package loopdetect implements loop closure detection: candidate proposal
// by spatial proximity or Scan-Context descriptor similarity, followed by
// ICP verification.
package loopdetect

import (
	"sync"

	"github.com/golang/geo/r3"

	"github.com/itohio/vehicle-mapping/internal/config"
	"github.com/itohio/vehicle-mapping/internal/logging"
	"github.com/itohio/vehicle-mapping/pkg/pointcloud"
	"github.com/itohio/vehicle-mapping/pkg/spatial"
)

var log = logging.Named("loopdetect")

// Candidate is an unverified loop pair proposed by either detection
// strategy.
type Candidate struct {
	I, J int
}

// Verified is a loop candidate that passed ICP verification: the relative
// transform T_ij and the fitness score it was accepted at.
type Verified struct {
	I, J     int
	Relative spatial.Pose
	Fitness  float64
}

// Detector proposes and verifies loop closures over a frame sequence given
// each frame's sensor-local points (through a FrameProvider) and the
// current pose estimate for each frame index.
type Detector struct {
	cfg config.Loop
}

// New builds a loop detector from configuration.
func New(cfg config.Loop) *Detector {
	return &Detector{cfg: cfg}
}

// FrameProvider resolves a frame index to its preprocessed, sensor-local
// point set, used lazily so callers need only retain the frames that loop
// candidates actually reference.
type FrameProvider func(index int) []r3.Vector

// DetectAndVerify runs the configured strategy over poses and verifies
// every candidate with ICP. Candidates are independent, so verification
// runs in parallel over pairs.
func (d *Detector) DetectAndVerify(poses []spatial.Pose, points FrameProvider) []Verified {
	var candidates []Candidate
	switch d.cfg.Strategy {
	case config.LoopStrategySpatial:
		candidates = d.spatialCandidates(poses)
	case config.LoopStrategyDescriptor:
		candidates = d.descriptorCandidates(poses, points)
	default:
		return nil
	}

	log.Debug().Int("candidates", len(candidates)).Msg("loop candidates proposed")

	results := make([]*Verified, len(candidates))

	var wg sync.WaitGroup
	sem := make(chan struct{}, 8)
	for i, c := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, c Candidate) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = d.verify(poses, points, c)
		}(i, c)
	}
	wg.Wait()

	var verified []Verified
	for _, r := range results {
		if r != nil {
			verified = append(verified, *r)
		}
	}
	log.Debug().Int("verified", len(verified)).Msg("loop closures verified")
	return verified
}

// spatialCandidates proposes pairs (i, j) with j-i >= GMin and
// ||t_i - t_j|| < DMax.
func (d *Detector) spatialCandidates(poses []spatial.Pose) []Candidate {
	var out []Candidate
	for i := 0; i < len(poses); i++ {
		ti := poses[i].Translation()
		for j := i + d.cfg.GMin; j < len(poses); j++ {
			tj := poses[j].Translation()
			if tj.Sub(ti).Norm() < d.cfg.DMax {
				out = append(out, Candidate{I: i, J: j})
			}
		}
	}
	return out
}

// descriptorCandidates builds a Scan-Context descriptor per frame and
// proposes every pair whose cyclic-shift cosine similarity exceeds
// SigmaSim, subject to the same minimum frame gap as the spatial detector.
// Descriptors match revisits regardless of accumulated odometry drift.
func (d *Detector) descriptorCandidates(poses []spatial.Pose, points FrameProvider) []Candidate {
	n := len(poses)
	descriptors := make([][]float64, n)
	for i := 0; i < n; i++ {
		descriptors[i] = computeDescriptor(points(i), d.cfg.S, d.cfg.R, d.cfg.MaxRange)
	}

	var out []Candidate
	for i := 0; i < n; i++ {
		for j := i + d.cfg.GMin; j < n; j++ {
			sim := descriptorSimilarity(descriptors[i], descriptors[j], d.cfg.S)
			if sim > d.cfg.SigmaSim {
				out = append(out, Candidate{I: i, J: j})
			}
		}
	}
	return out
}

// verify seeds ICP with the pose-chain initial guess pose_i^-1 * pose_j and
// runs point-to-point ICP at voxel VLoop, accepting iff fitness > FLoop.
func (d *Detector) verify(poses []spatial.Pose, points FrameProvider, c Candidate) *Verified {
	cloudI := pointcloud.VoxelDownsample(points(c.I), d.cfg.VLoop)
	cloudJ := pointcloud.VoxelDownsample(points(c.J), d.cfg.VLoop)
	if len(cloudI) == 0 || len(cloudJ) == 0 {
		return nil
	}

	initial := poses[c.J].RelativeTo(poses[c.I])
	result := pointcloud.RegisterPointToPoint(cloudI, cloudJ, initial, 2*d.cfg.VLoop, 50)

	if result.Fitness <= d.cfg.FLoop {
		return nil
	}
	log.Info().Int("from", c.I).Int("to", c.J).Float64("fitness", result.Fitness).Msg("verified loop closure")
	return &Verified{I: c.I, J: c.J, Relative: result.Transform, Fitness: result.Fitness}
}
