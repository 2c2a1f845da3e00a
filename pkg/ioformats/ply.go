package ioformats

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
)

// ReadPLY parses an ASCII PLY point cloud ("element vertex" with x, y, z
// properties). Binary PLY is not supported; extra properties (color,
// normals) are ignored.
func ReadPLY(r io.Reader) ([]r3.Vector, error) {
	br := bufio.NewReader(r)

	vertexCount := -1
	var properties []string
	inVertexElement := false
	format := "ascii"

	for {
		line, err := br.ReadString('\n')
		if err != nil && line == "" {
			return nil, fmt.Errorf("ioformats: ply: unexpected EOF in header: %w", err)
		}
		trimmed := strings.TrimSpace(line)
		fields := strings.Fields(trimmed)
		if len(fields) == 0 {
			if err == io.EOF {
				return nil, fmt.Errorf("ioformats: ply: header ended without end_header")
			}
			continue
		}

		switch fields[0] {
		case "format":
			if len(fields) > 1 {
				format = fields[1]
			}
		case "element":
			if len(fields) >= 3 && fields[1] == "vertex" {
				vertexCount, _ = strconv.Atoi(fields[2])
				inVertexElement = true
			} else {
				inVertexElement = false
			}
		case "property":
			if inVertexElement && len(fields) >= 3 {
				properties = append(properties, fields[len(fields)-1])
			}
		case "end_header":
			goto doneHeader
		}
		if err == io.EOF {
			return nil, fmt.Errorf("ioformats: ply: header ended without end_header")
		}
	}

doneHeader:
	if format != "ascii" {
		return nil, fmt.Errorf("ioformats: ply: unsupported format %q (ascii only)", format)
	}
	if vertexCount < 0 {
		return nil, fmt.Errorf("ioformats: ply: missing vertex element")
	}

	xi, yi, zi := fieldIndex(properties, "x"), fieldIndex(properties, "y"), fieldIndex(properties, "z")
	if xi < 0 || yi < 0 || zi < 0 {
		return nil, fmt.Errorf("ioformats: ply: missing x/y/z properties")
	}

	pts := make([]r3.Vector, 0, vertexCount)
	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for i := 0; i < vertexCount && scanner.Scan(); i++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			i--
			continue
		}
		cols := strings.Fields(line)
		maxIdx := xi
		if yi > maxIdx {
			maxIdx = yi
		}
		if zi > maxIdx {
			maxIdx = zi
		}
		if maxIdx >= len(cols) {
			return nil, fmt.Errorf("ioformats: ply: vertex %d has too few columns", i)
		}
		x, err1 := strconv.ParseFloat(cols[xi], 64)
		y, err2 := strconv.ParseFloat(cols[yi], 64)
		z, err3 := strconv.ParseFloat(cols[zi], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("ioformats: ply: vertex %d has non-numeric x/y/z", i)
		}
		pts = append(pts, r3.Vector{X: x, Y: y, Z: z})
	}
	return pts, nil
}

// WritePLY writes an ASCII PLY point cloud (no color).
func WritePLY(w io.Writer, points []r3.Vector) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ply\n")
	fmt.Fprintf(bw, "format ascii 1.0\n")
	fmt.Fprintf(bw, "comment vehicle mapping core output\n")
	fmt.Fprintf(bw, "element vertex %d\n", len(points))
	fmt.Fprintf(bw, "property float x\n")
	fmt.Fprintf(bw, "property float y\n")
	fmt.Fprintf(bw, "property float z\n")
	fmt.Fprintf(bw, "end_header\n")
	for _, p := range points {
		fmt.Fprintf(bw, "%.6f %.6f %.6f\n", p.X, p.Y, p.Z)
	}
	return bw.Flush()
}
