package ioformats

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/itohio/vehicle-mapping/pkg/spatial"
)

// WriteTrajectory writes one `id x y z qx qy qz qw` line per pose in
// ascending index order. The quaternion is the standard trace-based-branch
// conversion, normalized.
func WriteTrajectory(w io.Writer, poses map[int]spatial.Pose) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Trajectory from mapping\n")
	fmt.Fprintf(bw, "# Format: id x y z qx qy qz qw\n\n")

	ids := make([]int, 0, len(poses))
	for id := range poses {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		p := poses[id]
		t := p.Translation()
		q := p.Quaternion().Normalized()
		fmt.Fprintf(bw, "%d %.6f %.6f %.6f %.6f %.6f %.6f %.6f\n", id, t.X, t.Y, t.Z, q.X, q.Y, q.Z, q.W)
	}
	return bw.Flush()
}

// WriteWaypointsFile writes the header and one `x y` line per waypoint at
// 4 decimal places.
func WriteWaypointsFile(w io.Writer, xy [][2]float64) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Waypoints extracted from mapping trajectory\n")
	fmt.Fprintf(bw, "# Format: x y (meters)\n")
	fmt.Fprintf(bw, "# Total waypoints: %d\n\n", len(xy))
	for _, p := range xy {
		fmt.Fprintf(bw, "%.4f %.4f\n", p[0], p[1])
	}
	return bw.Flush()
}

const odometryMagic = "VMOP" // Vehicle Mapping Odometry Poses

// WriteOdometryPosesBinary writes the pre-optimization pose chain as a
// small self-describing binary: magic, N, then N row-major 4x4 float64
// matrices.
func WriteOdometryPosesBinary(w io.Writer, poses []spatial.Pose) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(odometryMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, int64(len(poses))); err != nil {
		return err
	}
	for _, p := range poses {
		m := p.Matrix()
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				if err := binary.Write(bw, binary.LittleEndian, m[i][j]); err != nil {
					return err
				}
			}
		}
	}
	return bw.Flush()
}

// ReadOdometryPosesBinary is the inverse of WriteOdometryPosesBinary.
func ReadOdometryPosesBinary(r io.Reader) ([]spatial.Pose, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(odometryMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("ioformats: odometry poses: %w", err)
	}
	if string(magic) != odometryMagic {
		return nil, fmt.Errorf("ioformats: odometry poses: bad magic %q", magic)
	}
	var n int64
	if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("ioformats: odometry poses: %w", err)
	}
	poses := make([]spatial.Pose, n)
	for i := range poses {
		var m [4][4]float64
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				if err := binary.Read(br, binary.LittleEndian, &m[r][c]); err != nil {
					return nil, fmt.Errorf("ioformats: odometry poses: row %d: %w", i, err)
				}
			}
		}
		poses[i] = spatial.NewFromMatrix(m)
	}
	return poses, nil
}

// WriteOdometryPosesText writes the pre-optimization pose chain in the
// same human-readable `id x y z qx qy qz qw` format as trajectory.txt, so
// the intermediate artifact is inspectable without a binary reader.
func WriteOdometryPosesText(w io.Writer, poses []spatial.Pose) error {
	indexed := make(map[int]spatial.Pose, len(poses))
	for i, p := range poses {
		indexed[i] = p
	}
	return WriteTrajectory(w, indexed)
}

// WriteFile creates (or truncates) path and calls write with the resulting
// file handle. The parent directory must already exist.
func WriteFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ioformats: create %s: %w", path, err)
	}
	defer f.Close()
	if err := write(f); err != nil {
		return err
	}
	return f.Sync()
}
