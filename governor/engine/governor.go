// Package engine composes the governor components and runs one tick across
// them in a fixed order: metrics, pacing, memory, optimizer, event dispatch.
package engine

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/memory"
	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/metrics"
	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/optimizer"
	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/pacing"
	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/trace"
)

// Option customizes a Governor.
type Option func(*options)

type options struct {
	clock     clock.PassiveClock
	registry  prometheus.Registerer
	usage     metrics.UsageSource
	observers []governor.Observer
	rules     []optimizer.Rule
	rulesSet  bool
}

// WithClock injects the time source. Defaults to the real clock.
func WithClock(clk clock.PassiveClock) Option {
	return func(o *options) { o.clock = clk }
}

// WithRegistry exports governor metrics to reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// WithUsageSource replaces the simulated cpu/gpu/memory estimator.
func WithUsageSource(src metrics.UsageSource) Option {
	return func(o *options) { o.usage = src }
}

// WithObserver subscribes obs to the event stream.
func WithObserver(obs governor.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// WithRules replaces the default optimizer rules. An empty slice means no rules.
func WithRules(rules []optimizer.Rule) Option {
	return func(o *options) { o.rules, o.rulesSet = rules, true }
}

// TickResult is what one tick produced.
type TickResult struct {
	Metrics       governor.PerformanceMetrics
	Frame         pacing.FrameResult
	FreedBytes    uint64
	Optimizations []trace.OptimizationRecord
	Dispatched    int
}

// Governor is the adaptive performance governor. It owns its state and
// components; the caller owns the Governor and drives it once per frame.
// Not safe for concurrent use.
type Governor struct {
	cfg   governor.Config
	clock clock.PassiveClock

	bus   *governor.EventBus
	state *governor.State
	rng   *governor.PartitionedRNG

	collector *metrics.Collector
	allocator *memory.Allocator
	pacer     *pacing.Pacer
	optimizer *optimizer.Optimizer
	exporter  *metrics.Exporter

	lastUpdate time.Time
	ticks      uint64
	last       governor.PerformanceMetrics
}

// New validates cfg and wires every component.
func New(cfg governor.Config, opts ...Option) (*Governor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	g := &Governor{
		cfg:   cfg,
		clock: o.clock,
		rng:   governor.NewPartitionedRNG(cfg.Seed),
	}
	g.bus = governor.NewEventBus(cfg.EventQueueCapacity, o.clock)
	if err := g.bus.SetRateLimit(cfg.EventRateLimit); err != nil {
		return nil, err
	}
	g.state = governor.NewState(cfg.QualityLevel, g.bus)

	var err error
	if g.allocator, err = memory.NewAllocator(memory.ConfigFrom(cfg), o.clock, g.bus); err != nil {
		return nil, fmt.Errorf("memory allocator: %w", err)
	}
	if g.pacer, err = pacing.New(pacing.ConfigFrom(cfg), o.clock, g.bus); err != nil {
		return nil, fmt.Errorf("frame pacer: %w", err)
	}

	usage := o.usage
	if usage == nil {
		usage = metrics.NewSimulatedUsage(g.rng)
	}
	if g.collector, err = metrics.NewCollector(metrics.ConfigFrom(cfg), o.clock, g.bus, usage); err != nil {
		return nil, fmt.Errorf("metrics collector: %w", err)
	}

	var maint optimizer.Maintainer
	if cfg.MemoryOptimization {
		maint = g.allocator
	}
	if g.optimizer, err = optimizer.New(optimizer.ConfigFrom(cfg), o.clock, g.state, maint, g.bus); err != nil {
		return nil, fmt.Errorf("optimizer: %w", err)
	}
	rules := o.rules
	if !o.rulesSet {
		rules = optimizer.DefaultRules(cfg)
	}
	if err := g.optimizer.AddRules(rules); err != nil {
		return nil, err
	}

	if o.registry != nil {
		g.exporter = metrics.NewExporter(o.registry)
		g.bus.Subscribe(g.exporter)
	}
	for _, obs := range o.observers {
		g.bus.Subscribe(obs)
	}

	if cfg.LoggingEnabled {
		logrus.Infof("governor: target %d fps, quality %s, budget %d MB, %d rules",
			cfg.TargetFPS, cfg.QualityLevel, cfg.MemoryBudgetMB, len(rules))
	}
	return g, nil
}

// Update measures the time since the previous Update on the governor's clock
// and ticks with it. The first call only establishes the baseline.
func (g *Governor) Update(stats governor.RenderStats) (TickResult, bool) {
	now := g.clock.Now()
	if g.lastUpdate.IsZero() {
		g.lastUpdate = now
		return TickResult{}, false
	}
	delta := now.Sub(g.lastUpdate)
	g.lastUpdate = now
	return g.Tick(delta, stats), true
}

// Tick runs one governor tick for a frame that took frameTime.
func (g *Governor) Tick(frameTime time.Duration, stats governor.RenderStats) TickResult {
	var res TickResult
	g.ticks++

	// metrics
	if g.cfg.MonitoringEnabled {
		g.collector.SetLoad(g.state.Quality(), governor.BytesToMB(g.allocator.CurrentUsage()))
		res.Metrics = g.collector.Update(frameTime, stats)
	}

	// pacing
	res.Frame = g.pacer.Observe(frameTime)
	if !g.cfg.MonitoringEnabled {
		res.Metrics = g.bareMetrics(res.Frame, stats)
	}

	// memory
	if g.cfg.MemoryOptimization {
		res.FreedBytes = g.allocator.Update()
	}

	// optimizer
	if g.cfg.AdaptiveQuality {
		res.Optimizations = g.optimizer.Update(res.Metrics)
	}

	if g.exporter != nil {
		g.exporter.ObserveMetrics(res.Metrics)
		g.exporter.ObserveQuality(g.state.Quality())
		g.exporter.ObserveAllocator(g.allocator.CurrentUsage(), g.allocator.Budget(), g.allocator.Len())
	}

	if g.cfg.LoggingEnabled {
		g.logTick(res)
	}

	g.last = res.Metrics
	res.Dispatched = g.bus.Dispatch()
	return res
}

// bareMetrics builds the snapshot from the pacer and allocator alone when
// the collector is disabled. Resource usage stays zero.
func (g *Governor) bareMetrics(frame pacing.FrameResult, stats governor.RenderStats) governor.PerformanceMetrics {
	usedMB := governor.BytesToMB(g.allocator.CurrentUsage())
	return governor.PerformanceMetrics{
		Timestamp:        g.clock.Now(),
		FPS:              frame.FPS,
		AverageFPS:       g.pacer.AverageFPS(),
		FrameTimeMS:      governor.DurationToMS(frame.FrameTime),
		MemoryUsageMB:    usedMB,
		MemoryPercentage: usedMB / float64(g.cfg.MemoryBudgetMB) * 100,
		DrawCalls:        stats.DrawCalls,
		TriangleCount:    stats.TriangleCount,
		UpdateTimeMS:     stats.UpdateTimeMS,
		RenderTimeMS:     stats.RenderTimeMS,
		PhysicsTimeMS:    stats.PhysicsTimeMS,
		AudioTimeMS:      stats.AudioTimeMS,
	}
}

func (g *Governor) logTick(res TickResult) {
	logrus.Debugf("tick %d: %.1f fps (avg %.1f), %.2f ms, cpu %.1f%%, gpu %.1f%%, mem %.1f MB, quality %s",
		g.ticks, res.Metrics.FPS, res.Metrics.AverageFPS, res.Metrics.FrameTimeMS,
		res.Metrics.CPUUsage, res.Metrics.GPUUsage, res.Metrics.MemoryUsageMB, g.state.Quality())
	if res.FreedBytes > 0 {
		logrus.Debugf("tick %d: memory sweep freed %.2f MB", g.ticks, governor.BytesToMB(res.FreedBytes))
	}
	for _, rec := range res.Optimizations {
		logrus.Infof("optimization %s: %s (quality %s -> %s, estimated impact %+.2f)",
			rec.Rule, rec.Action, rec.QualityBefore, rec.QualityAfter, rec.Impact)
	}
}

// Ticks returns how many ticks have run.
func (g *Governor) Ticks() uint64 { return g.ticks }

// Config returns the configuration the governor was built with.
func (g *Governor) Config() governor.Config { return g.cfg }

// CurrentQuality returns the shared quality level.
func (g *Governor) CurrentQuality() governor.QualityLevel { return g.state.Quality() }

// SetQuality jumps to q, including into or out of Custom.
func (g *Governor) SetQuality(q governor.QualityLevel) error { return g.state.SetQuality(q) }

// UsagePercentage returns allocator usage as a percent of the budget.
func (g *Governor) UsagePercentage() float64 { return g.allocator.UsagePercentage() }

// IsUnderPressure reports allocator usage above the pressure threshold.
func (g *Governor) IsUnderPressure() bool { return g.allocator.IsUnderPressure() }

// MemoryStatistics returns the allocator's reporting view.
func (g *Governor) MemoryStatistics() memory.Statistics { return g.allocator.Statistics() }

// Metrics returns the snapshot the last tick evaluated, whether it came from
// the collector or, with monitoring off, from the pacer and allocator.
func (g *Governor) Metrics() governor.PerformanceMetrics { return g.last }

// Statistics returns the collector's derived statistics.
func (g *Governor) Statistics() metrics.Statistics { return g.collector.Statistics() }

// PacerStatistics returns the frame pacer's reporting view.
func (g *Governor) PacerStatistics() pacing.Statistics { return g.pacer.Statistics() }

// Optimizations returns the retained optimization records, oldest first.
func (g *Governor) Optimizations() []trace.OptimizationRecord {
	return g.optimizer.History().Records()
}

// OptimizationSummary aggregates the optimization history.
func (g *Governor) OptimizationSummary() *trace.Summary {
	return trace.Summarize(g.optimizer.History())
}

// Feature returns a feature toggle written by optimizer actions.
func (g *Governor) Feature(name string) (enabled, ok bool) { return g.state.Feature(name) }

// Setting returns a setting written by optimizer actions.
func (g *Governor) Setting(name string) (float64, bool) { return g.state.Setting(name) }

// Subscribe adds an observer to the event stream.
func (g *Governor) Subscribe(obs governor.Observer) { g.bus.Subscribe(obs) }

// Allocator exposes the allocator for collaborators that allocate memory.
func (g *Governor) Allocator() *memory.Allocator { return g.allocator }

// Collector exposes the metrics collector for counters and timers.
func (g *Governor) Collector() *metrics.Collector { return g.collector }

// Pacer exposes the frame pacer for reconfiguration.
func (g *Governor) Pacer() *pacing.Pacer { return g.pacer }

// Optimizer exposes the rule engine for adding or removing rules.
func (g *Governor) Optimizer() *optimizer.Optimizer { return g.optimizer }

// Bus exposes the event bus counters.
func (g *Governor) Bus() *governor.EventBus { return g.bus }

// RNG returns the governor's partitioned random source.
func (g *Governor) RNG() *governor.PartitionedRNG { return g.rng }

// State returns the shared quality, feature and setting state.
func (g *Governor) State() *governor.State { return g.state }
