// Package metrics samples frame timing and resource usage, keeps rolling
// windows and a bounded snapshot history, and exposes ad-hoc counters and
// timers for collaborating subsystems.
package metrics

import (
	"fmt"
	"maps"
	"time"

	"k8s.io/utils/clock"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/internal/window"
)

const (
	// WindowSize is the capacity of each rolling window.
	WindowSize = 60
	// HistorySize is the capacity of the snapshot history.
	HistorySize = 100
)

// Config holds the collector parameters.
type Config struct {
	TargetFPS         uint32
	SampleInterval    time.Duration
	LowFPSThreshold   float64
	CPUThreshold      float64 // percent
	GPUThreshold      float64 // percent
	MemoryThresholdMB float64
	MemoryBudgetMB    float64
}

// ConfigFrom extracts the collector parameters from a governor config.
func ConfigFrom(c governor.Config) Config {
	return Config{
		TargetFPS:         c.TargetFPS,
		SampleInterval:    c.SampleInterval,
		LowFPSThreshold:   c.LowFPSThreshold,
		CPUThreshold:      c.CPUThreshold,
		GPUThreshold:      c.GPUThreshold,
		MemoryThresholdMB: c.MemoryThresholdMB,
		MemoryBudgetMB:    float64(c.MemoryBudgetMB),
	}
}

func (c Config) validate() error {
	if c.TargetFPS == 0 {
		return governor.NewConfigError("target_fps", c.TargetFPS, "must be positive")
	}
	if c.SampleInterval <= 0 {
		return governor.NewConfigError("sample_interval", c.SampleInterval, "must be positive")
	}
	if !(c.LowFPSThreshold > 0) {
		return governor.NewConfigError("low_fps_threshold", c.LowFPSThreshold, "must be positive")
	}
	if !(c.CPUThreshold > 0 && c.CPUThreshold <= 100) {
		return governor.NewConfigError("cpu_threshold", c.CPUThreshold, "must be in (0, 100]")
	}
	if !(c.GPUThreshold > 0 && c.GPUThreshold <= 100) {
		return governor.NewConfigError("gpu_threshold", c.GPUThreshold, "must be in (0, 100]")
	}
	if !(c.MemoryThresholdMB > 0) {
		return governor.NewConfigError("memory_threshold_mb", c.MemoryThresholdMB, "must be positive")
	}
	if !(c.MemoryBudgetMB > 0) {
		return governor.NewConfigError("memory_budget_mb", c.MemoryBudgetMB, "must be positive")
	}
	return nil
}

// Statistics is derived on demand from the rolling windows.
type Statistics struct {
	AverageFPS float64
	MinFPS     float64
	MaxFPS     float64

	AverageFrameTimeMS float64
	MinFrameTimeMS     float64
	MaxFrameTimeMS     float64
	FrameTimeStdDevMS  float64
	FrameTimeP95MS     float64
	FrameTimeP99MS     float64

	AverageCPU       float64
	AverageGPU       float64
	AverageMemoryMB  float64
	PeakMemoryMB     float64
	AverageDrawCalls float64

	Samples    uint64 // frames observed since the last reset
	HistoryLen int
}

// Collector is the performance monitor. Not safe for concurrent use.
type Collector struct {
	cfg    Config
	clock  clock.PassiveClock
	bus    *governor.EventBus
	source UsageSource

	frameTimes *window.Ring[float64]
	fps        *window.Ring[float64]
	cpu        *window.Ring[float64]
	gpu        *window.Ring[float64]
	memory     *window.Ring[float64]
	drawCalls  *window.Ring[float64]
	history    *window.Ring[governor.PerformanceMetrics]

	current      governor.PerformanceMetrics
	lastSnapshot time.Time
	peakMemoryMB float64
	samples      uint64

	quality     governor.QualityLevel
	allocatedMB float64

	counters map[string]int64
	timers   map[string]time.Time
}

// NewCollector validates cfg and returns an empty collector. bus may be nil.
func NewCollector(cfg Config, clk clock.PassiveClock, bus *governor.EventBus, source UsageSource) (*Collector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("new collector: nil usage source")
	}
	return &Collector{
		cfg:        cfg,
		clock:      clk,
		bus:        bus,
		source:     source,
		frameTimes: window.New[float64](WindowSize),
		fps:        window.New[float64](WindowSize),
		cpu:        window.New[float64](WindowSize),
		gpu:        window.New[float64](WindowSize),
		memory:     window.New[float64](WindowSize),
		drawCalls:  window.New[float64](WindowSize),
		history:    window.New[governor.PerformanceMetrics](HistorySize),
		quality:    governor.QualityHigh,
		counters:   make(map[string]int64),
		timers:     make(map[string]time.Time),
	}, nil
}

// SetLoad tells the usage source what the rest of the governor is doing:
// the current quality level and the memory tracked by the allocator.
func (c *Collector) SetLoad(quality governor.QualityLevel, allocatedMB float64) {
	c.quality = quality
	c.allocatedMB = allocatedMB
}

// Update records one frame and returns the refreshed snapshot. Threshold
// events are published every frame their condition holds.
func (c *Collector) Update(frameTime time.Duration, stats governor.RenderStats) governor.PerformanceMetrics {
	now := c.clock.Now()
	ms := governor.DurationToMS(frameTime)
	fps := governor.FrameTimeToFPS(ms)

	usage := c.source.Sample(UsageInput{
		FrameTimeMS:       ms,
		TargetFrameTimeMS: 1000 / float64(c.cfg.TargetFPS),
		Quality:           c.quality,
		AllocatedMB:       c.allocatedMB,
		Stats:             stats,
	})

	c.frameTimes.Push(ms)
	c.fps.Push(fps)
	c.cpu.Push(usage.CPU)
	c.gpu.Push(usage.GPU)
	c.memory.Push(usage.MemoryMB)
	c.drawCalls.Push(float64(stats.DrawCalls))
	c.peakMemoryMB = max(c.peakMemoryMB, usage.MemoryMB)
	c.samples++

	c.current = governor.PerformanceMetrics{
		Timestamp:        now,
		FPS:              fps,
		AverageFPS:       window.Mean(c.fps.Values()),
		FrameTimeMS:      ms,
		CPUUsage:         usage.CPU,
		GPUUsage:         usage.GPU,
		MemoryUsageMB:    usage.MemoryMB,
		MemoryPercentage: usage.MemoryMB / c.cfg.MemoryBudgetMB * 100,
		DrawCalls:        stats.DrawCalls,
		TriangleCount:    stats.TriangleCount,
		UpdateTimeMS:     stats.UpdateTimeMS,
		RenderTimeMS:     stats.RenderTimeMS,
		PhysicsTimeMS:    stats.PhysicsTimeMS,
		AudioTimeMS:      stats.AudioTimeMS,
	}

	if c.history.Len() == 0 || now.Sub(c.lastSnapshot) >= c.cfg.SampleInterval {
		c.history.Push(c.current)
		c.lastSnapshot = now
	}

	c.checkThresholds()
	return c.current
}

func (c *Collector) checkThresholds() {
	if c.bus == nil {
		return
	}
	m := c.current
	if m.FPS < c.cfg.LowFPSThreshold {
		c.bus.Publish(governor.LowFrameRate{FPS: m.FPS, Threshold: c.cfg.LowFPSThreshold})
	}
	if m.CPUUsage > c.cfg.CPUThreshold {
		c.bus.Publish(governor.HighCPUUsage{Usage: m.CPUUsage, Threshold: c.cfg.CPUThreshold})
	}
	if m.GPUUsage > c.cfg.GPUThreshold {
		c.bus.Publish(governor.HighGPUUsage{Usage: m.GPUUsage, Threshold: c.cfg.GPUThreshold})
	}
	if m.MemoryUsageMB > c.cfg.MemoryThresholdMB {
		c.bus.Publish(governor.HighMemoryUsage{Usage: m.MemoryUsageMB, Threshold: c.cfg.MemoryThresholdMB, Unit: governor.MemoryUnitMB})
	}
}

// Current returns the snapshot of the last frame.
func (c *Collector) Current() governor.PerformanceMetrics { return c.current }

// History returns the periodic snapshots, oldest first.
func (c *Collector) History() []governor.PerformanceMetrics { return c.history.Values() }

// Statistics derives aggregates from the rolling windows.
func (c *Collector) Statistics() Statistics {
	fps := window.Summarize(c.fps.Values())
	frameTimes := c.frameTimes.Values()
	ft := window.Summarize(frameTimes)
	return Statistics{
		AverageFPS:         fps.Mean,
		MinFPS:             fps.Min,
		MaxFPS:             fps.Max,
		AverageFrameTimeMS: ft.Mean,
		MinFrameTimeMS:     ft.Min,
		MaxFrameTimeMS:     ft.Max,
		FrameTimeStdDevMS:  ft.StdDev,
		FrameTimeP95MS:     window.Percentile(frameTimes, 95),
		FrameTimeP99MS:     window.Percentile(frameTimes, 99),
		AverageCPU:         window.Mean(c.cpu.Values()),
		AverageGPU:         window.Mean(c.gpu.Values()),
		AverageMemoryMB:    window.Mean(c.memory.Values()),
		PeakMemoryMB:       c.peakMemoryMB,
		AverageDrawCalls:   window.Mean(c.drawCalls.Values()),
		Samples:            c.samples,
		HistoryLen:         c.history.Len(),
	}
}

// IncrementCounter adds one to the named counter.
func (c *Collector) IncrementCounter(name string) { c.counters[name]++ }

// AddCounter adds delta to the named counter.
func (c *Collector) AddCounter(name string, delta int64) { c.counters[name] += delta }

// SetCounter overwrites the named counter.
func (c *Collector) SetCounter(name string, value int64) { c.counters[name] = value }

// Counter returns the named counter, 0 if never touched.
func (c *Collector) Counter(name string) int64 { return c.counters[name] }

// Counters returns a copy of every counter.
func (c *Collector) Counters() map[string]int64 { return maps.Clone(c.counters) }

// StartTimer starts (or restarts) the named timer.
func (c *Collector) StartTimer(name string) { c.timers[name] = c.clock.Now() }

// EndTimer stops the named timer and returns the elapsed milliseconds.
func (c *Collector) EndTimer(name string) (float64, error) {
	start, ok := c.timers[name]
	if !ok {
		return 0, fmt.Errorf("end timer %q: %w", name, governor.ErrUnknownTimer)
	}
	delete(c.timers, name)
	return governor.DurationToMS(c.clock.Since(start)), nil
}

// Reset clears windows, history, peak and counters. Running timers survive.
func (c *Collector) Reset() {
	for _, w := range []*window.Ring[float64]{c.frameTimes, c.fps, c.cpu, c.gpu, c.memory, c.drawCalls} {
		w.Reset()
	}
	c.history.Reset()
	c.current = governor.PerformanceMetrics{}
	c.lastSnapshot = time.Time{}
	c.peakMemoryMB = 0
	c.samples = 0
	clear(c.counters)
}
