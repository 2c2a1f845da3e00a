package config

import "fmt"

// InvalidError reports a configuration validity failure. The CLI maps it
// to exit code 2.
type InvalidError struct {
	Reasons []string
}

func (e *InvalidError) Error() string {
	if len(e.Reasons) == 1 {
		return fmt.Sprintf("config invalid: %s", e.Reasons[0])
	}
	return fmt.Sprintf("config invalid: %d problems, first: %s", len(e.Reasons), e.Reasons[0])
}

// Validate checks the configuration for negative voxel sizes, inverted
// ranges, and out-of-[0,1] ratios.
func (c Config) Validate() error {
	var reasons []string

	check := func(cond bool, msg string) {
		if cond {
			reasons = append(reasons, msg)
		}
	}

	check(c.Preprocessor.VPre < 0, "preprocessor.v_pre must be non-negative")
	check(c.Preprocessor.RMin < 0, "preprocessor.r_min must be non-negative")
	check(c.Preprocessor.RMax <= c.Preprocessor.RMin, "preprocessor.r_max must exceed r_min")

	check(c.ICP.VICP < 0, "icp.v_icp must be non-negative")
	check(c.ICP.DCorr <= 0, "icp.d_corr must be positive")
	check(c.ICP.NIt <= 0, "icp.n_it must be positive")
	check(c.ICP.WindowK <= 0, "icp.window_k must be positive")
	check(c.ICP.ExpectedStepM <= 0, "icp.expected_step_m must be positive")

	if c.Loop.Enabled {
		check(c.Loop.DMax <= 0, "loop.d_max must be positive")
		check(c.Loop.GMin < 0, "loop.g_min must be non-negative")
		check(c.Loop.VLoop < 0, "loop.v_loop must be non-negative")
		check(c.Loop.FLoop < 0 || c.Loop.FLoop > 1, "loop.f_loop must be in [0,1]")
		check(c.Loop.S <= 0, "loop.s must be positive")
		check(c.Loop.R <= 0, "loop.r must be positive")
		check(c.Loop.MaxRange <= 0, "loop.max_range must be positive")
		check(c.Loop.SigmaSim < 0 || c.Loop.SigmaSim > 1, "loop.sigma_sim must be in [0,1]")
		check(c.Loop.Strategy != LoopStrategyNone && c.Loop.Strategy != LoopStrategySpatial && c.Loop.Strategy != LoopStrategyDescriptor,
			"loop.strategy must be one of none, spatial, descriptor")
	}

	for _, s := range c.Graph.SigmaOdom {
		check(s <= 0, "graph.sigma_odom entries must be positive")
	}
	for _, s := range c.Graph.SigmaLoop {
		check(s <= 0, "graph.sigma_loop entries must be positive")
	}
	for _, s := range c.Graph.SigmaPrior {
		check(s <= 0, "graph.sigma_prior entries must be positive")
	}
	check(c.Graph.MaxIters <= 0, "graph.max_iters must be positive")

	check(c.Map.VFrame < 0, "map.v_frame must be non-negative")
	check(c.Map.VMap < 0, "map.v_map must be non-negative")
	check(c.Map.KNN <= 0, "map.k_nn must be positive")
	check(c.Map.SigmaRatio <= 0, "map.sigma_ratio must be positive")
	check(c.Map.DownsampleEvery < 0, "map.downsample_every must be non-negative")

	check(c.Waypoints.SMin <= 0, "waypoints.s_min must be positive")
	check(c.Waypoints.Simplify && c.Waypoints.Epsilon < 0, "waypoints.epsilon must be non-negative")

	if len(reasons) > 0 {
		return &InvalidError{Reasons: reasons}
	}
	return nil
}
