package ioformats

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
)

// DiscoverFrames lists point-cloud files in dir by ascending lexicographic
// filename, recognizing PCD/PLY/BIN by extension.
func DiscoverFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ioformats: discover: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		switch ext {
		case ".pcd", ".ply", ".bin":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadPoints dispatches to the reader matching path's extension.
func LoadPoints(path string) ([]r3.Vector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ioformats: load %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pcd":
		return ReadPCD(f)
	case ".ply":
		return ReadPLY(f)
	case ".bin":
		return ReadBIN(f)
	default:
		return nil, fmt.Errorf("ioformats: load %s: unrecognized extension", path)
	}
}

var embeddedNumber = regexp.MustCompile(`\d+\.?\d*`)

// TimestampFromName extracts a timestamp from a point-cloud filename: the
// stem parsed whole as a float, falling back to the last embedded number.
// ok is false if no number is found.
func TimestampFromName(path string) (value float64, ok bool) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if v, err := strconv.ParseFloat(stem, 64); err == nil {
		return v, true
	}

	matches := embeddedNumber.FindAllString(stem, -1)
	if len(matches) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(matches[len(matches)-1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
