// Command vehiclemap runs the offline/online LiDAR SLAM pipeline over a
// directory of point-cloud frames, producing a trajectory, a fused voxel
// map, and a simplified waypoint path.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/itohio/vehicle-mapping/internal/config"
	"github.com/itohio/vehicle-mapping/internal/logging"
	"github.com/itohio/vehicle-mapping/internal/pipeline"
)

var (
	inputDir   = flag.String("input", "", "directory of point-cloud frames (PCD/PLY/BIN)")
	outputDir  = flag.String("output", "output", "directory to write map/trajectory/waypoints artifacts")
	configPath = flag.String("config", "", "optional YAML configuration file (defaults used if empty)")
	logLevel   = flag.String("log-level", "info", "log level: debug, info, warn, error")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	if level, err := zerolog.ParseLevel(*logLevel); err == nil {
		logging.SetLevel(level)
	} else {
		logging.Log.Warn().Str("log_level", *logLevel).Msg("unrecognized log level, keeping default")
	}
	log := logging.Named("cmd")

	if *inputDir == "" {
		log.Error().Msg("--input is required")
		flag.Usage()
		return 1
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, warnings, err := config.Load(*configPath)
		if err != nil {
			log.Error().Err(err).Str("config", *configPath).Msg("failed to load configuration")
			return 2
		}
		for _, w := range warnings {
			log.Warn().Msg(w)
		}
		cfg = loaded
	}

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("configuration invalid")
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	orch := pipeline.New(cfg)
	report, err := orch.Run(ctx, *inputDir, *outputDir)
	if err != nil {
		log.Error().Err(err).Msg("pipeline run failed")
		return pipeline.ExitCode(err)
	}

	log.Info().
		Int("frames", report.NumFrames).
		Int("odom_factors", report.NumOdomFactors).
		Int("loop_factors", report.NumLoopFactors).
		Bool("converged", report.OptimizerConverged).
		Int("map_points", report.MapPoints).
		Int("waypoints", report.NumWaypoints).
		Float64("path_length_m", report.PathLength).
		Msg("pipeline complete")

	fmt.Printf("Output written to %s\n", *outputDir)
	return 0
}
