package loopdetect

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"
)

// computeDescriptor bins points into an S-sector x R-ring polar histogram
// flattened row-major, keeping the maximum z per bin. Bins floor at zero,
// so descriptors of empty or below-ground regions stay zero.
func computeDescriptor(pts []r3.Vector, sectors, rings int, maxRange float64) []float64 {
	desc := make([]float64, rings*sectors)

	for _, p := range pts {
		r := math.Hypot(p.X, p.Y)
		angle := math.Atan2(p.Y, p.X)

		ringIdx := int(r / maxRange * float64(rings))
		if ringIdx < 0 {
			ringIdx = 0
		}
		if ringIdx >= rings {
			ringIdx = rings - 1
		}

		sectorIdx := int((angle + math.Pi) / (2 * math.Pi) * float64(sectors))
		if sectorIdx < 0 {
			sectorIdx = 0
		}
		if sectorIdx >= sectors {
			sectorIdx = sectors - 1
		}

		bin := ringIdx*sectors + sectorIdx
		if p.Z > desc[bin] {
			desc[bin] = p.Z
		}
	}
	return desc
}

// descriptorSimilarity returns the maximum cosine similarity between desc1
// and every cyclic column shift of desc2, making the match invariant to
// the sensor's yaw at revisit time.
func descriptorSimilarity(desc1, desc2 []float64, sectors int) float64 {
	norm1 := floats.Norm(desc1, 2)
	if norm1 == 0 {
		return 0
	}

	shifted := make([]float64, len(desc2))
	var best float64
	for shift := 0; shift < sectors; shift++ {
		rollColumns(shifted, desc2, shift, sectors)
		norm2 := floats.Norm(shifted, 2)
		if norm2 == 0 {
			continue
		}
		sim := floats.Dot(desc1, shifted) / (norm1 * norm2)
		if sim > best {
			best = sim
		}
	}
	return best
}

// rollColumns writes src cyclically shifted by shift columns into dst, both
// laid out as rings x sectors row-major.
func rollColumns(dst, src []float64, shift, sectors int) {
	rings := len(src) / sectors
	for r := 0; r < rings; r++ {
		row := r * sectors
		for c := 0; c < sectors; c++ {
			dst[row+(c+shift)%sectors] = src[row+c]
		}
	}
}
