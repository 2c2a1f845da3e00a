package ioformats

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/golang/geo/r3"
)

// ReadBIN parses a KITTI-style .bin point cloud: a flat little-endian
// float32 array of (x, y, z, intensity) quadruples. The intensity channel
// is ignored.
func ReadBIN(r io.Reader) ([]r3.Vector, error) {
	data, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("ioformats: bin: read: %w", err)
	}
	const stride = 4 * 4 // x,y,z,intensity as float32
	if len(data)%stride != 0 {
		return nil, fmt.Errorf("ioformats: bin: length %d is not a multiple of %d bytes", len(data), stride)
	}
	n := len(data) / stride
	pts := make([]r3.Vector, n)
	for i := 0; i < n; i++ {
		off := i * stride
		x := math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
		y := math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:]))
		z := math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:]))
		pts[i] = r3.Vector{X: float64(x), Y: float64(y), Z: float64(z)}
	}
	return pts, nil
}

// WriteBIN writes a KITTI-style .bin point cloud with an intensity channel
// of 1.0 for every point, mirroring ReadBIN's layout.
func WriteBIN(w io.Writer, points []r3.Vector) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 16)
	for _, p := range points {
		binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(float32(p.X)))
		binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(p.Y)))
		binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(p.Z)))
		binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(1.0))
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("ioformats: bin: write: %w", err)
		}
	}
	return bw.Flush()
}
