package cmd

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
)

// configFlags mirror governor.Config. A flag only overrides the config file
// and environment when the user set it explicitly.
type configFlags struct {
	path string

	monitoring         bool
	targetFPS          uint32
	adaptiveQuality    bool
	memoryOptimization bool
	frameRateLimiting  bool
	loggingEnabled     bool
	quality            string
	memoryBudgetMB     uint64
	cpuThreshold       float64
	gpuThreshold       float64
	memoryThresholdMB  float64
	lowFPSThreshold    float64
	highFPSThreshold   float64
	pressureThreshold  float64
	cleanupThreshold   float64
	strictBudget       bool

	sampleInterval       time.Duration
	optimizationInterval time.Duration
	gcInterval           time.Duration

	eventQueueCapacity int
	eventRateLimit     float64
	smoothingFactor    float64
	seed               int64
}

func registerConfigFlags(cmd *cobra.Command, f *configFlags) {
	d := governor.DefaultConfig()
	fs := cmd.Flags()
	fs.StringVar(&f.path, "config", "", "Path to a YAML governor config file")

	fs.BoolVar(&f.monitoring, "monitoring", d.MonitoringEnabled, "Collect performance metrics every tick")
	fs.Uint32Var(&f.targetFPS, "target-fps", d.TargetFPS, "Target frame rate")
	fs.BoolVar(&f.adaptiveQuality, "adaptive-quality", d.AdaptiveQuality, "Let optimizer rules change quality")
	fs.BoolVar(&f.memoryOptimization, "memory-optimization", d.MemoryOptimization, "Run allocator sweeps and memory actions")
	fs.BoolVar(&f.frameRateLimiting, "frame-rate-limiting", d.FrameRateLimiting, "Pad frames shorter than the target")
	fs.BoolVar(&f.loggingEnabled, "logging-enabled", d.LoggingEnabled, "Log per-tick governor activity")
	fs.StringVar(&f.quality, "quality", d.QualityLevel.String(), "Initial quality level (low, medium, high, ultra, custom)")
	fs.Uint64Var(&f.memoryBudgetMB, "memory-budget-mb", d.MemoryBudgetMB, "Allocator memory budget in MB")
	fs.Float64Var(&f.cpuThreshold, "cpu-threshold", d.CPUThreshold, "CPU usage percent that triggers the high-cpu rule")
	fs.Float64Var(&f.gpuThreshold, "gpu-threshold", d.GPUThreshold, "GPU usage percent that triggers the high-gpu rule")
	fs.Float64Var(&f.memoryThresholdMB, "memory-threshold-mb", d.MemoryThresholdMB, "Memory in MB that triggers the high-memory rule")
	fs.Float64Var(&f.lowFPSThreshold, "low-fps-threshold", d.LowFPSThreshold, "Frame rate below which quality is lowered")
	fs.Float64Var(&f.highFPSThreshold, "high-fps-threshold", d.HighFPSThreshold, "Frame rate above which quality is raised")
	fs.Float64Var(&f.pressureThreshold, "pressure-threshold", d.PressureThreshold, "Allocator pressure threshold, percent of budget")
	fs.Float64Var(&f.cleanupThreshold, "cleanup-threshold", d.CleanupThreshold, "Allocator cleanup threshold, percent of budget")
	fs.BoolVar(&f.strictBudget, "strict-budget", d.StrictBudget, "Reject allocations that do not fit the budget after eviction")

	fs.DurationVar(&f.sampleInterval, "sample-interval", d.SampleInterval, "Interval between metrics history snapshots")
	fs.DurationVar(&f.optimizationInterval, "optimization-interval", d.OptimizationInterval, "Interval between optimizer passes")
	fs.DurationVar(&f.gcInterval, "gc-interval", d.GCInterval, "Interval between periodic allocator sweeps")

	fs.IntVar(&f.eventQueueCapacity, "event-queue-capacity", d.EventQueueCapacity, "Maximum undelivered events")
	fs.Float64Var(&f.eventRateLimit, "event-rate-limit", d.EventRateLimit, "Events per second per kind (0 = unlimited)")
	fs.Float64Var(&f.smoothingFactor, "smoothing-factor", d.SmoothingFactor, "Exponential smoothing factor for the frame rate")
	fs.Int64Var(&f.seed, "seed", d.Seed, "Seed for simulated workload and usage")
}

// buildConfig layers defaults, the config file, GOVERNOR_* variables and
// explicitly set flags, in that order, then validates the result.
func buildConfig(cmd *cobra.Command, f *configFlags) (governor.Config, error) {
	cfg := governor.DefaultConfig()
	if f.path != "" {
		var err error
		if cfg, err = governor.LoadConfig(f.path); err != nil {
			return cfg, err
		}
	}
	if err := governor.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := applyFlagOverrides(cmd, f, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid governor config: %w", err)
	}
	return cfg, nil
}

func applyFlagOverrides(cmd *cobra.Command, f *configFlags, cfg *governor.Config) error {
	changed := cmd.Flags().Changed
	if changed("monitoring") {
		cfg.MonitoringEnabled = f.monitoring
	}
	if changed("target-fps") {
		cfg.TargetFPS = f.targetFPS
	}
	if changed("adaptive-quality") {
		cfg.AdaptiveQuality = f.adaptiveQuality
	}
	if changed("memory-optimization") {
		cfg.MemoryOptimization = f.memoryOptimization
	}
	if changed("frame-rate-limiting") {
		cfg.FrameRateLimiting = f.frameRateLimiting
	}
	if changed("logging-enabled") {
		cfg.LoggingEnabled = f.loggingEnabled
	}
	if changed("quality") {
		q, err := governor.ParseQualityLevel(f.quality)
		if err != nil {
			return fmt.Errorf("--quality: %w", err)
		}
		cfg.QualityLevel = q
	}
	if changed("memory-budget-mb") {
		cfg.MemoryBudgetMB = f.memoryBudgetMB
	}
	if changed("cpu-threshold") {
		cfg.CPUThreshold = f.cpuThreshold
	}
	if changed("gpu-threshold") {
		cfg.GPUThreshold = f.gpuThreshold
	}
	if changed("memory-threshold-mb") {
		cfg.MemoryThresholdMB = f.memoryThresholdMB
	}
	if changed("low-fps-threshold") {
		cfg.LowFPSThreshold = f.lowFPSThreshold
	}
	if changed("high-fps-threshold") {
		cfg.HighFPSThreshold = f.highFPSThreshold
	}
	if changed("pressure-threshold") {
		cfg.PressureThreshold = f.pressureThreshold
	}
	if changed("cleanup-threshold") {
		cfg.CleanupThreshold = f.cleanupThreshold
	}
	if changed("strict-budget") {
		cfg.StrictBudget = f.strictBudget
	}
	if changed("sample-interval") {
		cfg.SampleInterval = f.sampleInterval
	}
	if changed("optimization-interval") {
		cfg.OptimizationInterval = f.optimizationInterval
	}
	if changed("gc-interval") {
		cfg.GCInterval = f.gcInterval
	}
	if changed("event-queue-capacity") {
		cfg.EventQueueCapacity = f.eventQueueCapacity
	}
	if changed("event-rate-limit") {
		cfg.EventRateLimit = f.eventRateLimit
	}
	if changed("smoothing-factor") {
		cfg.SmoothingFactor = f.smoothingFactor
	}
	if changed("seed") {
		cfg.Seed = f.seed
	}
	return nil
}

var configOpts configFlags

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective governor configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(cmd, &configOpts)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		logrus.Debugf("effective config built from %q", configOpts.path)
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	registerConfigFlags(configCmd, &configOpts)
}
