package governor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable read by ApplyEnv.
const EnvPrefix = "GOVERNOR_"

// Config holds every recognized governor option.
// Loaded from YAML via LoadConfig, overlaid from the environment via ApplyEnv.
type Config struct {
	MonitoringEnabled  bool         `yaml:"monitoring_enabled" env:"MONITORING_ENABLED"`
	TargetFPS          uint32       `yaml:"target_fps" env:"TARGET_FPS"`
	AdaptiveQuality    bool         `yaml:"adaptive_quality" env:"ADAPTIVE_QUALITY"`
	MemoryOptimization bool         `yaml:"memory_optimization" env:"MEMORY_OPTIMIZATION"`
	FrameRateLimiting  bool         `yaml:"frame_rate_limiting" env:"FRAME_RATE_LIMITING"`
	LoggingEnabled     bool         `yaml:"logging_enabled" env:"LOGGING_ENABLED"`
	QualityLevel       QualityLevel `yaml:"quality_level" env:"QUALITY_LEVEL"`
	MemoryBudgetMB     uint64       `yaml:"memory_budget_mb" env:"MEMORY_BUDGET_MB"`
	CPUThreshold       float64      `yaml:"cpu_threshold" env:"CPU_THRESHOLD"`
	GPUThreshold       float64      `yaml:"gpu_threshold" env:"GPU_THRESHOLD"`

	MemoryThresholdMB float64 `yaml:"memory_threshold_mb" env:"MEMORY_THRESHOLD_MB"` // High-Memory rule trigger
	LowFPSThreshold   float64 `yaml:"low_fps_threshold" env:"LOW_FPS_THRESHOLD"`
	HighFPSThreshold  float64 `yaml:"high_fps_threshold" env:"HIGH_FPS_THRESHOLD"`
	PressureThreshold float64 `yaml:"pressure_threshold" env:"PRESSURE_THRESHOLD"` // percent of budget
	CleanupThreshold  float64 `yaml:"cleanup_threshold" env:"CLEANUP_THRESHOLD"`   // percent of budget
	StrictBudget      bool    `yaml:"strict_budget" env:"STRICT_BUDGET"`

	SampleInterval       time.Duration `yaml:"sample_interval" env:"SAMPLE_INTERVAL"`
	OptimizationInterval time.Duration `yaml:"optimization_interval" env:"OPTIMIZATION_INTERVAL"`
	GCInterval           time.Duration `yaml:"gc_interval" env:"GC_INTERVAL"`

	EventQueueCapacity int     `yaml:"event_queue_capacity" env:"EVENT_QUEUE_CAPACITY"`
	EventRateLimit     float64 `yaml:"event_rate_limit" env:"EVENT_RATE_LIMIT"` // per kind per second, 0 = unlimited
	SmoothingFactor    float64 `yaml:"smoothing_factor" env:"SMOOTHING_FACTOR"`
	Seed               int64   `yaml:"seed" env:"SEED"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		MonitoringEnabled:    true,
		TargetFPS:            60,
		AdaptiveQuality:      true,
		MemoryOptimization:   true,
		FrameRateLimiting:    false,
		LoggingEnabled:       true,
		QualityLevel:         QualityHigh,
		MemoryBudgetMB:       1024,
		CPUThreshold:         80,
		GPUThreshold:         80,
		MemoryThresholdMB:    800,
		LowFPSThreshold:      30,
		HighFPSThreshold:     80,
		PressureThreshold:    80,
		CleanupThreshold:     90,
		StrictBudget:         false,
		SampleInterval:       time.Second,
		OptimizationInterval: 2 * time.Second,
		GCInterval:           30 * time.Second,
		EventQueueCapacity:   DefaultEventQueueCapacity,
		EventRateLimit:       0,
		SmoothingFactor:      0.1,
		Seed:                 42,
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading governor config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing governor config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays GOVERNOR_* environment variables onto cfg. Variables that
// are not set leave the field untouched.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks every field. The first violation is returned as a *ConfigError.
func (c Config) Validate() error {
	if c.TargetFPS == 0 {
		return NewConfigError("target_fps", c.TargetFPS, "must be positive")
	}
	if !c.QualityLevel.IsValid() {
		return NewConfigError("quality_level", int(c.QualityLevel), "unknown quality level")
	}
	if c.MemoryBudgetMB == 0 {
		return NewConfigError("memory_budget_mb", c.MemoryBudgetMB, "must be positive")
	}
	if err := validatePercent("cpu_threshold", c.CPUThreshold); err != nil {
		return err
	}
	if err := validatePercent("gpu_threshold", c.GPUThreshold); err != nil {
		return err
	}
	if err := validatePositive("memory_threshold_mb", c.MemoryThresholdMB); err != nil {
		return err
	}
	if err := validatePositive("low_fps_threshold", c.LowFPSThreshold); err != nil {
		return err
	}
	if c.HighFPSThreshold <= c.LowFPSThreshold {
		return NewConfigError("high_fps_threshold", c.HighFPSThreshold, "must be greater than low_fps_threshold")
	}
	if err := validatePercent("pressure_threshold", c.PressureThreshold); err != nil {
		return err
	}
	if err := validatePercent("cleanup_threshold", c.CleanupThreshold); err != nil {
		return err
	}
	if c.CleanupThreshold < c.PressureThreshold {
		return NewConfigError("cleanup_threshold", c.CleanupThreshold, "must not be below pressure_threshold")
	}
	intervals := []struct {
		name string
		d    time.Duration
	}{
		{"sample_interval", c.SampleInterval},
		{"optimization_interval", c.OptimizationInterval},
		{"gc_interval", c.GCInterval},
	}
	for _, iv := range intervals {
		if iv.d <= 0 {
			return NewConfigError(iv.name, iv.d, "must be positive")
		}
	}
	if c.EventQueueCapacity <= 0 {
		return NewConfigError("event_queue_capacity", c.EventQueueCapacity, "must be positive")
	}
	if c.EventRateLimit < 0 || math.IsNaN(c.EventRateLimit) || math.IsInf(c.EventRateLimit, 0) {
		return NewConfigError("event_rate_limit", c.EventRateLimit, "must be a finite non-negative number")
	}
	if !(c.SmoothingFactor > 0 && c.SmoothingFactor <= 1) {
		return NewConfigError("smoothing_factor", c.SmoothingFactor, "must be in (0, 1]")
	}
	return nil
}

// MemoryBudgetBytes returns the budget in bytes.
func (c Config) MemoryBudgetBytes() uint64 {
	return c.MemoryBudgetMB * BytesPerMB
}

func validatePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return NewConfigError(name, val, "must be a finite number")
	}
	if val <= 0 {
		return NewConfigError(name, val, "must be positive")
	}
	return nil
}

func validatePercent(name string, val float64) error {
	if err := validatePositive(name, val); err != nil {
		return err
	}
	if val > 100 {
		return NewConfigError(name, val, "must not exceed 100")
	}
	return nil
}
