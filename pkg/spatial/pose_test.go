package spatial_test

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/vehicle-mapping/pkg/spatial"
)

func TestIdentityComposeInverse(t *testing.T) {
	id := spatial.Identity()
	require.True(t, id.Equal(id.Inverse(), 1e-9))

	r := [3][3]float64{
		{0, -1, 0},
		{1, 0, 0},
		{0, 0, 1},
	}
	p := spatial.NewFromRT(r, r3.Vector{X: 1, Y: 2, Z: 3})
	roundTrip := p.Compose(p.Inverse())
	assert.True(t, roundTrip.Equal(id, 1e-9))
}

func TestQuaternionRoundTrip(t *testing.T) {
	r := [3][3]float64{
		{0, -1, 0},
		{1, 0, 0},
		{0, 0, 1},
	}
	p := spatial.NewFromRT(r, r3.Vector{X: 1, Y: -2, Z: 0.5})

	q := p.Quaternion()
	rebuilt := spatial.NewFromQuaternion(p.Translation(), q)

	assert.True(t, p.Equal(rebuilt, 1e-9), "quaternion round trip should reproduce the original pose")

	norm := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	assert.InDelta(t, 1.0, norm, 1e-9)
}

func TestRelativeToMatchesComposition(t *testing.T) {
	a := spatial.NewFromRT(identityR(), r3.Vector{X: 1, Y: 0, Z: 0})
	b := spatial.NewFromRT(identityR(), r3.Vector{X: 3, Y: 0, Z: 0})

	rel := b.RelativeTo(a)
	// a composed with the relative transform should reproduce b.
	assert.True(t, a.Compose(rel).Equal(b, 1e-9))
}

func TestLogExpRoundTrip(t *testing.T) {
	r := [3][3]float64{
		{math.Cos(0.3), -math.Sin(0.3), 0},
		{math.Sin(0.3), math.Cos(0.3), 0},
		{0, 0, 1},
	}
	p := spatial.NewFromRT(r, r3.Vector{X: 0.5, Y: -0.2, Z: 1.5})

	xi := spatial.Log(p)
	rebuilt := spatial.Exp(xi)

	assert.True(t, p.Equal(rebuilt, 1e-6), "Log/Exp should round-trip a pose")
}

func TestExpZeroIsIdentity(t *testing.T) {
	p := spatial.Exp(spatial.Twist{})
	assert.True(t, p.Equal(spatial.Identity(), 1e-9))
}

func identityR() [3][3]float64 {
	return [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}
