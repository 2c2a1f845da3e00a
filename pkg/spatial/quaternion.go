package spatial

import (
	"math"

	"github.com/golang/geo/r3"
)

// Quaternion is a unit quaternion (x, y, z, w) representing a rotation.
type Quaternion struct {
	X, Y, Z, W float64
}

// Quaternion converts the pose's rotation block to a unit quaternion using
// the standard trace-based branch selection (Shepperd's method).
func (p Pose) Quaternion() Quaternion {
	r := p.Rotation()
	trace := r[0][0] + r[1][1] + r[2][2]

	var x, y, z, w float64
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1.0)
		w = 0.25 / s
		x = (r[2][1] - r[1][2]) * s
		y = (r[0][2] - r[2][0]) * s
		z = (r[1][0] - r[0][1]) * s
	case r[0][0] > r[1][1] && r[0][0] > r[2][2]:
		s := 2.0 * math.Sqrt(1.0+r[0][0]-r[1][1]-r[2][2])
		w = (r[2][1] - r[1][2]) / s
		x = 0.25 * s
		y = (r[0][1] + r[1][0]) / s
		z = (r[0][2] + r[2][0]) / s
	case r[1][1] > r[2][2]:
		s := 2.0 * math.Sqrt(1.0+r[1][1]-r[0][0]-r[2][2])
		w = (r[0][2] - r[2][0]) / s
		x = (r[0][1] + r[1][0]) / s
		y = 0.25 * s
		z = (r[1][2] + r[2][1]) / s
	default:
		s := 2.0 * math.Sqrt(1.0+r[2][2]-r[0][0]-r[1][1])
		w = (r[1][0] - r[0][1]) / s
		x = (r[0][2] + r[2][0]) / s
		y = (r[1][2] + r[2][1]) / s
		z = 0.25 * s
	}
	return Quaternion{X: x, Y: y, Z: z, W: w}
}

// Normalized returns the quaternion scaled to unit norm. A zero quaternion
// normalizes to identity.
func (q Quaternion) Normalized() Quaternion {
	n := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if n == 0 {
		return Quaternion{W: 1}
	}
	return Quaternion{X: q.X / n, Y: q.Y / n, Z: q.Z / n, W: q.W / n}
}

// RotationMatrix converts a unit quaternion to a 3x3 rotation matrix.
func (q Quaternion) RotationMatrix() [3][3]float64 {
	x, y, z, w := q.X, q.Y, q.Z, q.W
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}
}

// NewFromQuaternion builds a pose from a translation and unit quaternion.
func NewFromQuaternion(t r3.Vector, q Quaternion) Pose {
	r := q.RotationMatrix()
	return NewFromRT(r, t)
}
