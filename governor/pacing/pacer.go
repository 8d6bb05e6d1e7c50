// Package pacing measures per-frame timing against a target frame rate.
//
// The pacer never blocks. When frame-rate limiting is enabled each FrameResult
// carries the wait that would bring the frame up to the target duration, and
// the caller decides whether to sleep, yield or schedule the next tick.
package pacing

import (
	"math"
	"time"

	"k8s.io/utils/clock"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/internal/window"
)

const (
	// WindowSize is the number of frame samples kept for averaging and stability.
	WindowSize = 60

	// StableThreshold is the stability score above which pacing is stable.
	StableThreshold = 0.8

	// MinStableSamples is the number of samples required before the pacer
	// reports stability or emits FrameRateStabilized.
	MinStableSamples = 10

	lowThresholdRatio  = 0.8
	highThresholdRatio = 1.2
	slowFrameRatio     = 2.0
)

// Adjustment is the pacer's quality recommendation.
type Adjustment int

const (
	Maintain Adjustment = iota
	Decrease
	Increase
)

func (a Adjustment) String() string {
	switch a {
	case Decrease:
		return "decrease"
	case Increase:
		return "increase"
	default:
		return "maintain"
	}
}

// Config holds the pacer parameters.
type Config struct {
	TargetFPS       uint32
	SmoothingFactor float64 // exponential smoothing weight of the newest fps, in (0, 1]
	Limiting        bool    // report RecommendedWait
}

// ConfigFrom extracts the pacer parameters from a governor config.
func ConfigFrom(c governor.Config) Config {
	return Config{
		TargetFPS:       c.TargetFPS,
		SmoothingFactor: c.SmoothingFactor,
		Limiting:        c.FrameRateLimiting,
	}
}

// FrameResult describes one observed frame.
type FrameResult struct {
	FrameTime       time.Duration
	FPS             float64
	RecommendedWait time.Duration // zero unless limiting is enabled and the frame was short
}

// Statistics is the reporting view of the pacer.
type Statistics struct {
	TargetFPS   uint32
	FPS         float64
	AverageFPS  float64
	SmoothedFPS float64
	Stability   float64
	Stable      bool
	FrameTimeMS window.Summary
	TotalFrames uint64
	SlowFrames  uint64 // frames longer than twice the target duration
}

// Pacer tracks frame timing. Not safe for concurrent use.
type Pacer struct {
	clock clock.PassiveClock
	bus   *governor.EventBus

	target    uint32
	low       float64
	high      float64
	smoothing float64
	limiting  bool

	frames *window.Ring[float64] // frame times, ms

	lastUpdate  time.Time
	firstFrame  time.Time
	secondStart time.Time

	fps      float64
	smoothed float64
	average  float64
	stable   bool

	totalFrames uint64
	slowFrames  uint64
}

// New validates cfg and returns a pacer with thresholds at 0.8x and 1.2x the
// target. bus may be nil.
func New(cfg Config, clk clock.PassiveClock, bus *governor.EventBus) (*Pacer, error) {
	p := &Pacer{
		clock:    clk,
		bus:      bus,
		limiting: cfg.Limiting,
		frames:   window.New[float64](WindowSize),
	}
	if err := p.SetTargetFPS(cfg.TargetFPS); err != nil {
		return nil, err
	}
	if err := p.SetSmoothingFactor(cfg.SmoothingFactor); err != nil {
		return nil, err
	}
	return p, nil
}

// SetTargetFPS changes the target and resets the low/high thresholds to 0.8x
// and 1.2x of it.
func (p *Pacer) SetTargetFPS(fps uint32) error {
	if fps == 0 {
		return governor.NewConfigError("target_fps", fps, "must be positive")
	}
	p.target = fps
	p.low = float64(fps) * lowThresholdRatio
	p.high = float64(fps) * highThresholdRatio
	return nil
}

// SetThresholds overrides the average-fps bounds used by IsTooLow and IsTooHigh.
func (p *Pacer) SetThresholds(low, high float64) error {
	if !(low > 0) {
		return governor.NewConfigError("low_threshold", low, "must be positive")
	}
	if !(high > low) {
		return governor.NewConfigError("high_threshold", high, "must be greater than low_threshold")
	}
	p.low, p.high = low, high
	return nil
}

// SetSmoothingFactor sets the weight of the newest fps sample.
func (p *Pacer) SetSmoothingFactor(f float64) error {
	if !(f > 0 && f <= 1) {
		return governor.NewConfigError("smoothing_factor", f, "must be in (0, 1]")
	}
	p.smoothing = f
	return nil
}

// SetLimiting toggles RecommendedWait reporting.
func (p *Pacer) SetLimiting(enabled bool) { p.limiting = enabled }

// TargetFPS returns the target frame rate.
func (p *Pacer) TargetFPS() uint32 { return p.target }

// TargetFrameTime is the frame duration that hits the target exactly.
func (p *Pacer) TargetFrameTime() time.Duration {
	return time.Second / time.Duration(p.target)
}

// Thresholds returns the low and high average-fps bounds.
func (p *Pacer) Thresholds() (low, high float64) { return p.low, p.high }

// Update measures the time since the previous Update on the pacer's clock and
// observes it as one frame. The first call only establishes the baseline.
func (p *Pacer) Update() FrameResult {
	now := p.clock.Now()
	if p.lastUpdate.IsZero() {
		p.lastUpdate = now
		return FrameResult{}
	}
	delta := now.Sub(p.lastUpdate)
	p.lastUpdate = now
	return p.Observe(delta)
}

// Observe records one frame of the given duration.
func (p *Pacer) Observe(frameTime time.Duration) FrameResult {
	now := p.clock.Now()
	ms := governor.DurationToMS(frameTime)
	p.frames.Push(ms)
	p.totalFrames++
	if ms > governor.DurationToMS(p.TargetFrameTime())*slowFrameRatio {
		p.slowFrames++
	}

	p.fps = governor.FrameTimeToFPS(ms)
	if p.totalFrames == 1 {
		p.smoothed = p.fps
		p.firstFrame = now
		p.secondStart = now
	} else {
		p.smoothed = p.smoothing*p.fps + (1-p.smoothing)*p.smoothed
	}

	// The average refreshes every frame during the first second, then once
	// per elapsed second.
	switch {
	case now.Sub(p.firstFrame) < time.Second:
		p.average = p.windowAverage()
	case now.Sub(p.secondStart) >= time.Second:
		p.average = p.windowAverage()
		p.secondStart = now
	}

	p.updateStability()

	res := FrameResult{FrameTime: frameTime, FPS: p.fps}
	if p.limiting {
		if target := p.TargetFrameTime(); frameTime < target {
			res.RecommendedWait = target - frameTime
		}
	}
	return res
}

func (p *Pacer) windowAverage() float64 {
	return governor.FrameTimeToFPS(window.Mean(p.frames.Values()))
}

func (p *Pacer) updateStability() {
	if p.frames.Len() < MinStableSamples {
		p.stable = false
		return
	}
	stable := p.Stability() > StableThreshold
	if stable && !p.stable && p.bus != nil {
		p.bus.Publish(governor.FrameRateStabilized{FPS: p.average})
	}
	p.stable = stable
}

// Stability returns 1/(1+cv) of the frame-time window, where cv is the
// population coefficient of variation. An empty window scores 0.
func (p *Pacer) Stability() float64 {
	s := window.Summarize(p.frames.Values())
	if s.Count == 0 || s.Mean <= 0 {
		return 0
	}
	return math.Min(1, 1/(1+s.StdDev/s.Mean))
}

// IsStable reports a stability score above 0.8 over at least ten samples.
func (p *Pacer) IsStable() bool { return p.stable }

// FPS returns the instantaneous fps of the last frame.
func (p *Pacer) FPS() float64 { return p.fps }

// AverageFPS returns the rolling-average fps.
func (p *Pacer) AverageFPS() float64 { return p.average }

// SmoothedFPS returns the exponentially smoothed fps.
func (p *Pacer) SmoothedFPS() float64 { return p.smoothed }

// IsTooLow reports an average below the low threshold. False before any frame.
func (p *Pacer) IsTooLow() bool {
	return p.totalFrames > 0 && p.average < p.low
}

// IsTooHigh reports an average above the high threshold.
func (p *Pacer) IsTooHigh() bool {
	return p.totalFrames > 0 && p.average > p.high
}

// QualityAdjustment recommends Decrease when too slow, Increase when too fast
// and stable, and Maintain otherwise.
func (p *Pacer) QualityAdjustment() Adjustment {
	switch {
	case p.IsTooLow():
		return Decrease
	case p.IsTooHigh() && p.stable:
		return Increase
	default:
		return Maintain
	}
}

// Statistics returns the reporting view.
func (p *Pacer) Statistics() Statistics {
	return Statistics{
		TargetFPS:   p.target,
		FPS:         p.fps,
		AverageFPS:  p.average,
		SmoothedFPS: p.smoothed,
		Stability:   p.Stability(),
		Stable:      p.stable,
		FrameTimeMS: window.Summarize(p.frames.Values()),
		TotalFrames: p.totalFrames,
		SlowFrames:  p.slowFrames,
	}
}

// Reset clears all samples and derived values. Configuration is kept.
func (p *Pacer) Reset() {
	p.frames.Reset()
	p.lastUpdate, p.firstFrame, p.secondStart = time.Time{}, time.Time{}, time.Time{}
	p.fps, p.smoothed, p.average = 0, 0, 0
	p.stable = false
	p.totalFrames, p.slowFrames = 0, 0
}
