package spatial

import (
	"math"

	"github.com/golang/geo/r3"
)

// Twist is an element of se(3), the Lie algebra of SE(3): a linear velocity
// (indices 0-2) and an angular velocity (indices 3-5). The pose-graph
// optimizer's Gauss-Newton step lives in this tangent space.
type Twist [6]float64

func skew(v [3]float64) [3][3]float64 {
	return [3][3]float64{
		{0, -v[2], v[1]},
		{v[2], 0, -v[0]},
		{-v[1], v[0], 0},
	}
}

func matMul3(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += a[i][k] * b[k][j]
			}
			out[i][j] = s
		}
	}
	return out
}

func matAdd3(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = a[i][j] + b[i][j]
		}
	}
	return out
}

func matScale3(a [3][3]float64, s float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = a[i][j] * s
		}
	}
	return out
}

func identity3() [3][3]float64 {
	return [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

func matVec3(a [3][3]float64, v [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = a[i][0]*v[0] + a[i][1]*v[1] + a[i][2]*v[2]
	}
	return out
}

// Exp maps a twist to an SE(3) pose via the closed-form Rodrigues
// exponential for so(3) and the corresponding left Jacobian for the
// translation part.
func Exp(xi Twist) Pose {
	rho := [3]float64{xi[0], xi[1], xi[2]}
	phi := [3]float64{xi[3], xi[4], xi[5]}
	theta := math.Sqrt(phi[0]*phi[0] + phi[1]*phi[1] + phi[2]*phi[2])

	Phi := skew(phi)
	I := identity3()

	var R, V [3][3]float64
	const eps = 1e-9
	if theta < eps {
		// Small-angle approximation: R ~ I + Phi, V ~ I.
		R = matAdd3(I, Phi)
		V = I
	} else {
		Phi2 := matMul3(Phi, Phi)
		a := math.Sin(theta) / theta
		b := (1 - math.Cos(theta)) / (theta * theta)
		c := (theta - math.Sin(theta)) / (theta * theta * theta)
		R = matAdd3(I, matAdd3(matScale3(Phi, a), matScale3(Phi2, b)))
		V = matAdd3(I, matAdd3(matScale3(Phi, b), matScale3(Phi2, c)))
	}

	t := matVec3(V, rho)
	return NewFromRT(R, r3.Vector{X: t[0], Y: t[1], Z: t[2]})
}

// Log maps an SE(3) pose to its se(3) twist representation, the inverse of Exp.
func Log(p Pose) Twist {
	R := p.Rotation()
	trace := R[0][0] + R[1][1] + R[2][2]
	cosTheta := (trace - 1) / 2
	cosTheta = math.Max(-1, math.Min(1, cosTheta))
	theta := math.Acos(cosTheta)

	var phi [3]float64
	const eps = 1e-9
	if theta < eps {
		phi = [3]float64{
			(R[2][1] - R[1][2]) / 2,
			(R[0][2] - R[2][0]) / 2,
			(R[1][0] - R[0][1]) / 2,
		}
	} else {
		s := theta / (2 * math.Sin(theta))
		phi = [3]float64{
			s * (R[2][1] - R[1][2]),
			s * (R[0][2] - R[2][0]),
			s * (R[1][0] - R[0][1]),
		}
	}

	Phi := skew(phi)
	I := identity3()
	var V [3][3]float64
	if theta < eps {
		V = I
	} else {
		Phi2 := matMul3(Phi, Phi)
		b := (1 - math.Cos(theta)) / (theta * theta)
		c := (theta - math.Sin(theta)) / (theta * theta * theta)
		V = matAdd3(I, matAdd3(matScale3(Phi, b), matScale3(Phi2, c)))
	}

	Vinv := invert3(V)
	t := p.Translation()
	rho := matVec3(Vinv, [3]float64{t.X, t.Y, t.Z})

	return Twist{rho[0], rho[1], rho[2], phi[0], phi[1], phi[2]}
}

// invert3 inverts a well-conditioned 3x3 matrix via the adjugate/determinant
// formula; V is always invertible for finite theta.
func invert3(m [3][3]float64) [3][3]float64 {
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	invDet := 1.0 / det

	var out [3][3]float64
	out[0][0] = (m[1][1]*m[2][2] - m[1][2]*m[2][1]) * invDet
	out[0][1] = (m[0][2]*m[2][1] - m[0][1]*m[2][2]) * invDet
	out[0][2] = (m[0][1]*m[1][2] - m[0][2]*m[1][1]) * invDet
	out[1][0] = (m[1][2]*m[2][0] - m[1][0]*m[2][2]) * invDet
	out[1][1] = (m[0][0]*m[2][2] - m[0][2]*m[2][0]) * invDet
	out[1][2] = (m[0][2]*m[1][0] - m[0][0]*m[1][2]) * invDet
	out[2][0] = (m[1][0]*m[2][1] - m[1][1]*m[2][0]) * invDet
	out[2][1] = (m[0][1]*m[2][0] - m[0][0]*m[2][1]) * invDet
	out[2][2] = (m[0][0]*m[1][1] - m[0][1]*m[1][0]) * invDet
	return out
}
