// Package config defines the pipeline's configuration document and its
// validation rules, loaded from a single hierarchical YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preprocessor configures the per-frame range gate, ground cut, and voxel
// downsample.
type Preprocessor struct {
	VPre         float64 `yaml:"v_pre"`
	RMin         float64 `yaml:"r_min"`
	RMax         float64 `yaml:"r_max"`
	RemoveGround bool    `yaml:"remove_ground"`
	ZGround      float64 `yaml:"z_ground"`
}

// ICP configures the odometry registration.
type ICP struct {
	VICP          float64 `yaml:"v_icp"`
	DCorr         float64 `yaml:"d_corr"`
	NIt           int     `yaml:"n_it"`
	WindowK       int     `yaml:"window_k"`
	ExpectedStepM float64 `yaml:"expected_step_m"`
}

// LoopStrategy selects which loop-detection strategy runs.
type LoopStrategy string

const (
	LoopStrategyNone       LoopStrategy = "none"
	LoopStrategySpatial    LoopStrategy = "spatial"
	LoopStrategyDescriptor LoopStrategy = "descriptor"
)

// Loop configures loop-closure detection and verification.
type Loop struct {
	Enabled  bool         `yaml:"enabled"`
	Strategy LoopStrategy `yaml:"strategy"`
	DMax     float64      `yaml:"d_max"`
	GMin     int          `yaml:"g_min"`
	VLoop    float64      `yaml:"v_loop"`
	FLoop    float64      `yaml:"f_loop"`
	S        int          `yaml:"s"`
	R        int          `yaml:"r"`
	MaxRange float64      `yaml:"max_range"`
	SigmaSim float64      `yaml:"sigma_sim"`
}

// Graph configures the pose graph's noise models and optimizer.
type Graph struct {
	SigmaOdom  [6]float64 `yaml:"sigma_odom"`
	SigmaLoop  [6]float64 `yaml:"sigma_loop"`
	SigmaPrior [6]float64 `yaml:"sigma_prior"`
	MaxIters   int        `yaml:"max_iters"`
}

// Map configures the map builder. DownsampleEvery sets how often (in
// frames) the growing
// global cloud is replaced by its voxel downsampling at VMap; 0 disables
// periodic downsampling and leaves only the finalize pass.
type Map struct {
	VFrame          float64 `yaml:"v_frame"`
	VMap            float64 `yaml:"v_map"`
	KNN             int     `yaml:"k_nn"`
	SigmaRatio      float64 `yaml:"sigma_ratio"`
	DownsampleEvery int     `yaml:"downsample_every"`
}

// Waypoints configures waypoint extraction.
type Waypoints struct {
	SMin     float64  `yaml:"s_min"`
	ZBand    *float64 `yaml:"z_band,omitempty"`
	Simplify bool     `yaml:"simplify"`
	Epsilon  float64  `yaml:"epsilon"`
}

// Config is the full recognized-options document: preprocessor, icp, loop,
// graph, map, waypoints.
type Config struct {
	Preprocessor Preprocessor `yaml:"preprocessor"`
	ICP          ICP          `yaml:"icp"`
	Loop         Loop         `yaml:"loop"`
	Graph        Graph        `yaml:"graph"`
	Map          Map          `yaml:"map"`
	Waypoints    Waypoints    `yaml:"waypoints"`
}

// Default returns the configuration populated with every component's
// default parameters.
func Default() Config {
	return Config{
		Preprocessor: Preprocessor{
			VPre: 0.1, RMin: 0.5, RMax: 80, RemoveGround: false, ZGround: -1.5,
		},
		ICP: ICP{
			VICP: 0.1, DCorr: 0.5, NIt: 50, WindowK: 5, ExpectedStepM: 0.25,
		},
		Loop: Loop{
			Enabled: false, Strategy: LoopStrategyNone,
			DMax: 5.0, GMin: 50, VLoop: 0.2, FLoop: 0.3,
			S: 60, R: 20, MaxRange: 80.0, SigmaSim: 0.1,
		},
		Graph: Graph{
			SigmaOdom:  [6]float64{0.1, 0.1, 0.1, 0.05, 0.05, 0.05},
			SigmaLoop:  [6]float64{0.2, 0.2, 0.2, 0.1, 0.1, 0.1},
			SigmaPrior: [6]float64{0.01, 0.01, 0.01, 0.01, 0.01, 0.01},
			MaxIters:   100,
		},
		Map: Map{
			VFrame: 0.1, VMap: 0.2, KNN: 20, SigmaRatio: 2.0, DownsampleEvery: 10,
		},
		Waypoints: Waypoints{
			SMin: 1.0, Simplify: false, Epsilon: 0.05,
		},
	}
}

// Load reads a YAML document at path over the default configuration.
// Unknown keys are returned as warnings, not load failures.
func Load(path string) (Config, []string, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	warnings := unknownKeyWarnings(data)
	return cfg, warnings, nil
}

// unknownKeyWarnings inspects the raw document for top-level and
// second-level keys not recognized by the configuration schema, returning
// human-readable warning strings instead of failing the load.
func unknownKeyWarnings(data []byte) []string {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil || len(root.Content) == 0 {
		return nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil
	}

	recognizedTop := map[string]map[string]bool{
		"preprocessor": {"v_pre": true, "r_min": true, "r_max": true, "remove_ground": true, "z_ground": true},
		"icp":          {"v_icp": true, "d_corr": true, "n_it": true, "window_k": true, "expected_step_m": true},
		"loop":         {"enabled": true, "strategy": true, "d_max": true, "g_min": true, "v_loop": true, "f_loop": true, "s": true, "r": true, "max_range": true, "sigma_sim": true},
		"graph":        {"sigma_odom": true, "sigma_loop": true, "sigma_prior": true, "max_iters": true},
		"map":          {"v_frame": true, "v_map": true, "k_nn": true, "sigma_ratio": true, "downsample_every": true},
		"waypoints":    {"s_min": true, "z_band": true, "simplify": true, "epsilon": true},
	}

	var warnings []string
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i].Value
		sub, ok := recognizedTop[key]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("config: unrecognized top-level key %q", key))
			continue
		}
		val := doc.Content[i+1]
		if val.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j+1 < len(val.Content); j += 2 {
			subKey := val.Content[j].Value
			if !sub[subKey] {
				warnings = append(warnings, fmt.Sprintf("config: unrecognized key %q under %q", subKey, key))
			}
		}
	}
	return warnings
}
