package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/vehicle-mapping/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsInvertedRange(t *testing.T) {
	cfg := config.Default()
	cfg.Preprocessor.RMin = 10
	cfg.Preprocessor.RMax = 1
	err := cfg.Validate()
	require.Error(t, err)
	var invalid *config.InvalidError
	require.ErrorAs(t, err, &invalid)
}

func TestValidateRejectsOutOfRangeRatio(t *testing.T) {
	cfg := config.Default()
	cfg.Loop.Enabled = true
	cfg.Loop.Strategy = config.LoopStrategySpatial
	cfg.Loop.FLoop = 1.5
	assert.Error(t, cfg.Validate())
}

func TestLoadWarnsOnUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	contents := []byte("preprocessor:\n  v_pre: 0.2\n  bogus_key: 1\nnot_a_section: true\n")
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	cfg, warnings, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.Preprocessor.VPre)
	assert.NotEmpty(t, warnings)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
