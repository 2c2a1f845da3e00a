// Package ioformats implements point-cloud file discovery/loading (PCD,
// PLY, BIN) and the pipeline's output artifacts (map, trajectory,
// waypoints, odometry poses). Readers are dispatched by file extension at
// discovery time.
package ioformats

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
)

// ReadPCD parses an ASCII or binary PCD point cloud following the v0.7
// header layout (VERSION, FIELDS/SIZE/TYPE/COUNT/WIDTH/HEIGHT/POINTS/DATA).
// Only x, y, z fields are extracted; extra fields (rgb, intensity, normals)
// are ignored.
func ReadPCD(r io.Reader) ([]r3.Vector, error) {
	br := bufio.NewReader(r)

	var fields []string
	var sizes []int
	var types []string
	var counts []int
	points := -1
	dataMode := "ascii"

	for {
		line, err := br.ReadString('\n')
		if err != nil && line == "" {
			return nil, fmt.Errorf("ioformats: pcd: unexpected EOF in header: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fieldsOfLine := strings.Fields(line)
		if len(fieldsOfLine) == 0 {
			continue
		}
		keyword := strings.ToUpper(fieldsOfLine[0])

		switch keyword {
		case "VERSION":
			if len(fieldsOfLine) > 1 && fieldsOfLine[1] != ".7" && fieldsOfLine[1] != "0.7" {
				return nil, fmt.Errorf("ioformats: pcd: unsupported pcd version %q", fieldsOfLine[1])
			}
		case "FIELDS":
			fields = fieldsOfLine[1:]
		case "SIZE":
			sizes = make([]int, len(fieldsOfLine)-1)
			for i, s := range fieldsOfLine[1:] {
				sizes[i], _ = strconv.Atoi(s)
			}
		case "TYPE":
			types = fieldsOfLine[1:]
		case "COUNT":
			counts = make([]int, len(fieldsOfLine)-1)
			for i, s := range fieldsOfLine[1:] {
				counts[i], _ = strconv.Atoi(s)
			}
		case "WIDTH", "HEIGHT", "VIEWPOINT":
			// Not needed to extract x/y/z; POINTS governs the read count.
		case "POINTS":
			points, _ = strconv.Atoi(fieldsOfLine[1])
		case "DATA":
			dataMode = strings.ToLower(fieldsOfLine[1])
		}

		if keyword == "DATA" {
			break
		}
		if err == io.EOF {
			return nil, fmt.Errorf("ioformats: pcd: header ended without DATA line")
		}
	}

	if points < 0 {
		return nil, fmt.Errorf("ioformats: pcd: missing POINTS header")
	}
	xi, yi, zi := fieldIndex(fields, "x"), fieldIndex(fields, "y"), fieldIndex(fields, "z")
	if xi < 0 || yi < 0 || zi < 0 {
		return nil, fmt.Errorf("ioformats: pcd: missing x/y/z fields")
	}

	switch dataMode {
	case "ascii":
		return readPCDAscii(br, points, xi, yi, zi)
	case "binary":
		return readPCDBinary(br, points, fields, sizes, types, counts, xi, yi, zi)
	default:
		return nil, fmt.Errorf("ioformats: pcd: unsupported DATA mode %q", dataMode)
	}
}

func fieldIndex(fields []string, name string) int {
	for i, f := range fields {
		if strings.EqualFold(f, name) {
			return i
		}
	}
	return -1
}

func readPCDAscii(br *bufio.Reader, n, xi, yi, zi int) ([]r3.Vector, error) {
	pts := make([]r3.Vector, 0, n)
	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for i := 0; i < n && scanner.Scan(); i++ {
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
			return nil, fmt.Errorf("ioformats: pcd: row %d has too few columns", i)
		}
		x, err1 := strconv.ParseFloat(cols[xi], 64)
		y, err2 := strconv.ParseFloat(cols[yi], 64)
		z, err3 := strconv.ParseFloat(cols[zi], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("ioformats: pcd: row %d has non-numeric x/y/z", i)
		}
		pts = append(pts, r3.Vector{X: x, Y: y, Z: z})
	}
	return pts, nil
}

func readPCDBinary(br *bufio.Reader, n int, fields []string, sizes []int, types []string, counts []int, xi, yi, zi int) ([]r3.Vector, error) {
	if len(sizes) != len(fields) || len(types) != len(fields) {
		return nil, fmt.Errorf("ioformats: pcd: inconsistent FIELDS/SIZE/TYPE header")
	}
	if counts == nil {
		counts = make([]int, len(fields))
		for i := range counts {
			counts[i] = 1
		}
	}

	offsets := make([]int, len(fields))
	rowBytes := 0
	for i := range fields {
		offsets[i] = rowBytes
		rowBytes += sizes[i] * counts[i]
	}

	pts := make([]r3.Vector, 0, n)
	row := make([]byte, rowBytes)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(br, row); err != nil {
			return nil, fmt.Errorf("ioformats: pcd: reading binary row %d: %w", i, err)
		}
		x := decodeField(row, offsets[xi], sizes[xi], types[xi])
		y := decodeField(row, offsets[yi], sizes[yi], types[yi])
		z := decodeField(row, offsets[zi], sizes[zi], types[zi])
		pts = append(pts, r3.Vector{X: x, Y: y, Z: z})
	}
	return pts, nil
}

func decodeField(row []byte, offset, size int, typ string) float64 {
	switch {
	case strings.EqualFold(typ, "F") && size == 4:
		bits := binary.LittleEndian.Uint32(row[offset:])
		return float64(math.Float32frombits(bits))
	case strings.EqualFold(typ, "F") && size == 8:
		bits := binary.LittleEndian.Uint64(row[offset:])
		return math.Float64frombits(bits)
	case strings.EqualFold(typ, "U") && size == 4:
		return float64(binary.LittleEndian.Uint32(row[offset:]))
	case strings.EqualFold(typ, "I") && size == 4:
		return float64(int32(binary.LittleEndian.Uint32(row[offset:])))
	default:
		return 0
	}
}

// WritePCD writes an ASCII PCD file (no color).
func WritePCD(w io.Writer, points []r3.Vector) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# .PCD v0.7 - Point Cloud Data file format\n")
	fmt.Fprintf(bw, "VERSION .7\n")
	fmt.Fprintf(bw, "FIELDS x y z\n")
	fmt.Fprintf(bw, "SIZE 4 4 4\n")
	fmt.Fprintf(bw, "TYPE F F F\n")
	fmt.Fprintf(bw, "COUNT 1 1 1\n")
	fmt.Fprintf(bw, "WIDTH %d\n", len(points))
	fmt.Fprintf(bw, "HEIGHT 1\n")
	fmt.Fprintf(bw, "VIEWPOINT 0 0 0 1 0 0 0\n")
	fmt.Fprintf(bw, "POINTS %d\n", len(points))
	fmt.Fprintf(bw, "DATA ascii\n")
	for _, p := range points {
		fmt.Fprintf(bw, "%.6f %.6f %.6f\n", p.X, p.Y, p.Z)
	}
	return bw.Flush()
}
