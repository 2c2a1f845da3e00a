// Package spatial implements SE(3) poses, quaternion conversions, and the
// Lie-algebra exponential/logarithm maps used by the pose graph optimizer.
package spatial

import (
	"math"

	"github.com/golang/geo/r3"
)

// Pose is a rigid-body transform represented as a 4x4 homogeneous matrix:
//
//	[ R  t ]
//	[ 0  1 ]
//
// stored row-major as m[row][col].
type Pose struct {
	m [4][4]float64
}

// Identity returns the identity pose.
func Identity() Pose {
	var p Pose
	for i := 0; i < 4; i++ {
		p.m[i][i] = 1
	}
	return p
}

// NewFromRT builds a pose from a 3x3 rotation matrix and a translation vector.
func NewFromRT(r [3][3]float64, t r3.Vector) Pose {
	p := Identity()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			p.m[i][j] = r[i][j]
		}
	}
	p.m[0][3] = t.X
	p.m[1][3] = t.Y
	p.m[2][3] = t.Z
	return p
}

// NewFromMatrix builds a pose from a raw row-major 4x4 matrix. The caller is
// responsible for passing a valid rigid transform (orthonormal rotation
// block, bottom row [0 0 0 1]).
func NewFromMatrix(m [4][4]float64) Pose {
	return Pose{m: m}
}

// Matrix returns the underlying row-major 4x4 matrix.
func (p Pose) Matrix() [4][4]float64 {
	return p.m
}

// Translation returns the pose's translation component.
func (p Pose) Translation() r3.Vector {
	return r3.Vector{X: p.m[0][3], Y: p.m[1][3], Z: p.m[2][3]}
}

// Rotation returns the pose's 3x3 rotation block.
func (p Pose) Rotation() [3][3]float64 {
	var r [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = p.m[i][j]
		}
	}
	return r
}

// Compose returns p * other, i.e. apply other first, then p.
func (p Pose) Compose(other Pose) Pose {
	var out [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += p.m[i][k] * other.m[k][j]
			}
			out[i][j] = sum
		}
	}
	return Pose{m: out}
}

// Inverse returns the inverse transform, exploiting rotation orthonormality:
// R^-1 = R^T, t' = -R^T t.
func (p Pose) Inverse() Pose {
	r := p.Rotation()
	t := p.Translation()

	var rt [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rt[i][j] = r[j][i]
		}
	}

	tInv := r3.Vector{
		X: -(rt[0][0]*t.X + rt[0][1]*t.Y + rt[0][2]*t.Z),
		Y: -(rt[1][0]*t.X + rt[1][1]*t.Y + rt[1][2]*t.Z),
		Z: -(rt[2][0]*t.X + rt[2][1]*t.Y + rt[2][2]*t.Z),
	}
	return NewFromRT(rt, tInv)
}

// Transform applies the pose to a point.
func (p Pose) Transform(v r3.Vector) r3.Vector {
	r := p.m
	return r3.Vector{
		X: r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z + r[0][3],
		Y: r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z + r[1][3],
		Z: r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z + r[2][3],
	}
}

// TransformAll applies the pose to every point in pts, allocating a new slice.
func (p Pose) TransformAll(pts []r3.Vector) []r3.Vector {
	out := make([]r3.Vector, len(pts))
	for i, v := range pts {
		out[i] = p.Transform(v)
	}
	return out
}

// RelativeTo computes the relative transform from `from` to the receiver,
// i.e. from.Inverse().Compose(p).
func (p Pose) RelativeTo(from Pose) Pose {
	return from.Inverse().Compose(p)
}

// Equal reports approximate equality within tol on every matrix entry.
func (p Pose) Equal(other Pose, tol float64) bool {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(p.m[i][j]-other.m[i][j]) > tol {
				return false
			}
		}
	}
	return true
}
