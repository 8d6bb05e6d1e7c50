package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
)

func newConfigCommand(t *testing.T, args ...string) (*cobra.Command, *configFlags) {
	t.Helper()
	c := &cobra.Command{Use: "test"}
	f := &configFlags{}
	registerConfigFlags(c, f)
	require.NoError(t, c.Flags().Parse(args))
	return c, f
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildConfig_FileThenEnvThenFlags(t *testing.T) {
	// GIVEN a config file, an env override and an explicit flag
	path := writeFile(t, "governor.yaml", "target_fps: 30\nmemory_budget_mb: 512\nquality_level: ultra\n")
	t.Setenv("GOVERNOR_MEMORY_BUDGET_MB", "256")
	c, f := newConfigCommand(t, "--config", path, "--quality", "low")

	// WHEN the effective config is built
	cfg, err := buildConfig(c, f)

	// THEN each layer wins only for the fields it sets
	require.NoError(t, err)
	assert.Equal(t, uint32(30), cfg.TargetFPS, "from file")
	assert.Equal(t, uint64(256), cfg.MemoryBudgetMB, "env beats file")
	assert.Equal(t, governor.QualityLow, cfg.QualityLevel, "flag beats file")
	assert.Equal(t, 80.0, cfg.CPUThreshold, "default")
}

func TestBuildConfig_UnchangedFlagsDoNotOverride(t *testing.T) {
	// GIVEN the env sets target_fps and the flag keeps its default value
	t.Setenv("GOVERNOR_TARGET_FPS", "45")
	c, f := newConfigCommand(t)

	cfg, err := buildConfig(c, f)

	require.NoError(t, err)
	assert.Equal(t, uint32(45), cfg.TargetFPS)
}

func TestBuildConfig_ExplicitFlagBeatsEnv(t *testing.T) {
	t.Setenv("GOVERNOR_TARGET_FPS", "45")
	c, f := newConfigCommand(t, "--target-fps", "120", "--gc-interval", "10s", "--strict-budget")

	cfg, err := buildConfig(c, f)

	require.NoError(t, err)
	assert.Equal(t, uint32(120), cfg.TargetFPS)
	assert.Equal(t, 10*time.Second, cfg.GCInterval)
	assert.True(t, cfg.StrictBudget)
}

func TestBuildConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero target fps", []string{"--target-fps", "0"}},
		{"unknown quality", []string{"--quality", "potato"}},
		{"cleanup below pressure", []string{"--pressure-threshold", "90", "--cleanup-threshold", "70"}},
		{"missing config file", []string{"--config", "/nonexistent/governor.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, f := newConfigCommand(t, tt.args...)
			_, err := buildConfig(c, f)
			assert.Error(t, err)
		})
	}
}

func TestBuildConfig_InvalidValueIsConfigError(t *testing.T) {
	c, f := newConfigCommand(t, "--smoothing-factor", "1.5")

	_, err := buildConfig(c, f)

	require.Error(t, err)
	assert.True(t, errors.Is(err, governor.ErrInvalidConfig))
	var cfgErr *governor.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "smoothing_factor", cfgErr.Field)
}

func TestConfigCommand_OutputLoadsBack(t *testing.T) {
	// GIVEN the config command with one explicit override
	var buf bytes.Buffer
	c := &cobra.Command{Use: "config", RunE: configCmd.RunE}
	registerConfigFlags(c, &configOpts)
	t.Cleanup(func() { configOpts = configFlags{} })
	c.SetOut(&buf)
	require.NoError(t, c.Flags().Parse([]string{"--target-fps", "90", "--quality", "medium"}))

	// WHEN it prints the effective config
	require.NoError(t, c.RunE(c, nil))

	// THEN the YAML is a valid config file carrying the override
	loaded, err := governor.LoadConfig(writeFile(t, "effective.yaml", buf.String()))
	require.NoError(t, err)
	want := governor.DefaultConfig()
	want.TargetFPS = 90
	want.QualityLevel = governor.QualityMedium
	assert.Equal(t, want, loaded)
	assert.Contains(t, buf.String(), "gc_interval: 30s")
}
