package governor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "governor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, QualityHigh, cfg.QualityLevel)
	assert.Equal(t, uint64(1024), cfg.MemoryBudgetMB)
	assert.Equal(t, uint64(1024*1024*1024), cfg.MemoryBudgetBytes())
}

func TestLoadConfig_OverlaysFileOnDefaults(t *testing.T) {
	// GIVEN a file that sets a few fields
	path := writeFile(t, `
target_fps: 144
quality_level: ultra
memory_budget_mb: 2048
optimization_interval: 500ms
`)

	// WHEN loaded
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	// THEN the named fields change and the rest keep defaults
	assert.Equal(t, uint32(144), cfg.TargetFPS)
	assert.Equal(t, QualityUltra, cfg.QualityLevel)
	assert.Equal(t, uint64(2048), cfg.MemoryBudgetMB)
	assert.Equal(t, 500*time.Millisecond, cfg.OptimizationInterval)
	assert.Equal(t, 80.0, cfg.CPUThreshold)
	assert.True(t, cfg.MonitoringEnabled)
}

func TestLoadConfig_UnknownField_Rejected(t *testing.T) {
	// Typos must cause errors
	path := writeFile(t, "target_fsp: 60\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_EmptyFile_ReturnsDefaults(t *testing.T) {
	path := writeFile(t, "")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv_OverridesOnlySetVariables(t *testing.T) {
	// GIVEN environment overrides for two fields
	t.Setenv("GOVERNOR_TARGET_FPS", "30")
	t.Setenv("GOVERNOR_QUALITY_LEVEL", "low")
	t.Setenv("GOVERNOR_GC_INTERVAL", "5s")

	// WHEN applied to defaults
	cfg := DefaultConfig()
	require.NoError(t, ApplyEnv(&cfg))

	// THEN those fields change and the rest are untouched
	assert.Equal(t, uint32(30), cfg.TargetFPS)
	assert.Equal(t, QualityLow, cfg.QualityLevel)
	assert.Equal(t, 5*time.Second, cfg.GCInterval)
	assert.Equal(t, uint64(1024), cfg.MemoryBudgetMB)
}

func TestApplyEnv_BadValue(t *testing.T) {
	t.Setenv("GOVERNOR_QUALITY_LEVEL", "extreme")
	cfg := DefaultConfig()
	assert.Error(t, ApplyEnv(&cfg))
}

func TestConfig_Validate_RejectsWithoutClamping(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero target fps", func(c *Config) { c.TargetFPS = 0 }, "target_fps"},
		{"zero budget", func(c *Config) { c.MemoryBudgetMB = 0 }, "memory_budget_mb"},
		{"cpu over 100", func(c *Config) { c.CPUThreshold = 150 }, "cpu_threshold"},
		{"gpu zero", func(c *Config) { c.GPUThreshold = 0 }, "gpu_threshold"},
		{"inverted fps thresholds", func(c *Config) { c.HighFPSThreshold = 20 }, "high_fps_threshold"},
		{"inverted memory thresholds", func(c *Config) { c.CleanupThreshold = 70 }, "cleanup_threshold"},
		{"zero sample interval", func(c *Config) { c.SampleInterval = 0 }, "sample_interval"},
		{"negative optimization interval", func(c *Config) { c.OptimizationInterval = -time.Second }, "optimization_interval"},
		{"zero gc interval", func(c *Config) { c.GCInterval = 0 }, "gc_interval"},
		{"smoothing above one", func(c *Config) { c.SmoothingFactor = 1.5 }, "smoothing_factor"},
		{"smoothing zero", func(c *Config) { c.SmoothingFactor = 0 }, "smoothing_factor"},
		{"negative rate limit", func(c *Config) { c.EventRateLimit = -1 }, "event_rate_limit"},
		{"zero queue", func(c *Config) { c.EventQueueCapacity = 0 }, "event_queue_capacity"},
		{"bad quality", func(c *Config) { c.QualityLevel = QualityLevel(7) }, "quality_level"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tc.field, cerr.Field)
		})
	}
}
