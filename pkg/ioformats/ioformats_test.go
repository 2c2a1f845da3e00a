package ioformats_test

import (
	"bytes"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/vehicle-mapping/pkg/ioformats"
	"github.com/itohio/vehicle-mapping/pkg/spatial"
)

func TestPCDRoundTrip(t *testing.T) {
	pts := []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: -1.5, Y: 0, Z: 2.25}}

	var buf bytes.Buffer
	require.NoError(t, ioformats.WritePCD(&buf, pts))

	got, err := ioformats.ReadPCD(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, got, len(pts))
	for i := range pts {
		assert.InDelta(t, pts[i].X, got[i].X, 1e-5)
		assert.InDelta(t, pts[i].Y, got[i].Y, 1e-5)
		assert.InDelta(t, pts[i].Z, got[i].Z, 1e-5)
	}
}

func TestPLYRoundTrip(t *testing.T) {
	pts := []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: -1.5, Y: 0, Z: 2.25}}

	var buf bytes.Buffer
	require.NoError(t, ioformats.WritePLY(&buf, pts))

	got, err := ioformats.ReadPLY(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, got, len(pts))
	for i := range pts {
		assert.InDelta(t, pts[i].X, got[i].X, 1e-5)
	}
}

func TestBINRoundTrip(t *testing.T) {
	pts := []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: -1.5, Y: 0, Z: 2.25}}

	var buf bytes.Buffer
	require.NoError(t, ioformats.WriteBIN(&buf, pts))

	got, err := ioformats.ReadBIN(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, got, len(pts))
	for i := range pts {
		assert.InDelta(t, pts[i].X, got[i].X, 1e-4)
	}
}

func TestTimestampFromName(t *testing.T) {
	cases := map[string]float64{
		"000001.pcd":               1,
		"1704000000.123456.pcd":    1704000000.123456,
		"frame_001.pcd":            1,
	}
	for name, want := range cases {
		got, ok := ioformats.TimestampFromName(name)
		require.True(t, ok, name)
		assert.InDelta(t, want, got, 1e-6, name)
	}

	_, ok := ioformats.TimestampFromName("noNumbersHere.pcd")
	assert.False(t, ok)
}

func TestOdometryPosesBinaryRoundTrip(t *testing.T) {
	poses := []spatial.Pose{spatial.Identity(), spatial.NewFromRT([3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, r3.Vector{X: 1, Y: 2, Z: 3})}

	var buf bytes.Buffer
	require.NoError(t, ioformats.WriteOdometryPosesBinary(&buf, poses))

	got, err := ioformats.ReadOdometryPosesBinary(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, got, len(poses))
	for i := range poses {
		assert.True(t, poses[i].Equal(got[i], 1e-9))
	}
}

func TestWriteTrajectoryFormat(t *testing.T) {
	poses := map[int]spatial.Pose{0: spatial.Identity(), 1: spatial.Identity()}
	var buf bytes.Buffer
	require.NoError(t, ioformats.WriteTrajectory(&buf, poses))
	assert.Contains(t, buf.String(), "0 0.000000 0.000000 0.000000")
	assert.Contains(t, buf.String(), "1 0.000000 0.000000 0.000000")
}

func TestWriteWaypointsFileFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ioformats.WriteWaypointsFile(&buf, [][2]float64{{1, 2}, {3.14159, -1}}))
	assert.Contains(t, buf.String(), "1.0000 2.0000")
	assert.Contains(t, buf.String(), "3.1416 -1.0000")
}
