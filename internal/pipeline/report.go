package pipeline

import (
	"bufio"
	"fmt"
	"io"

	"github.com/golang/geo/r3"
)

// Report summarizes one Run: frame and factor counts, optimizer status,
// and map/waypoint statistics.
type Report struct {
	NumFrames           int
	NumOdomFactors      int
	NumLoopFactors      int
	OptimizerConverged  bool
	OptimizerIterations int
	OptimizerFinalCost  float64
	MapPoints           int
	MapBoundsMin        r3.Vector
	MapBoundsMax        r3.Vector
	NumWaypoints        int
	PathLength          float64
}

// WriteReport renders the report as report.txt.
func WriteReport(w io.Writer, r Report) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Vehicle mapping pipeline report\n\n")
	fmt.Fprintf(bw, "frames: %d\n", r.NumFrames)
	fmt.Fprintf(bw, "odom_factors: %d\n", r.NumOdomFactors)
	fmt.Fprintf(bw, "loop_factors: %d\n", r.NumLoopFactors)
	fmt.Fprintf(bw, "optimizer_converged: %t\n", r.OptimizerConverged)
	fmt.Fprintf(bw, "optimizer_iterations: %d\n", r.OptimizerIterations)
	fmt.Fprintf(bw, "optimizer_final_cost: %.6f\n", r.OptimizerFinalCost)
	fmt.Fprintf(bw, "map_points: %d\n", r.MapPoints)
	fmt.Fprintf(bw, "map_bounds_min: %.3f %.3f %.3f\n", r.MapBoundsMin.X, r.MapBoundsMin.Y, r.MapBoundsMin.Z)
	fmt.Fprintf(bw, "map_bounds_max: %.3f %.3f %.3f\n", r.MapBoundsMax.X, r.MapBoundsMax.Y, r.MapBoundsMax.Z)
	fmt.Fprintf(bw, "waypoints: %d\n", r.NumWaypoints)
	fmt.Fprintf(bw, "path_length_m: %.3f\n", r.PathLength)
	return bw.Flush()
}
