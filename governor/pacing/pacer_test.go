package pacing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testclock "k8s.io/utils/clock/testing"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
)

func newTestPacer(t *testing.T, cfg Config) (*Pacer, *testclock.FakeClock, *governor.EventBus) {
	t.Helper()
	clk := testclock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	bus := governor.NewEventBus(64, clk)
	p, err := New(cfg, clk, bus)
	require.NoError(t, err)
	return p, clk, bus
}

func defaultConfig() Config {
	return Config{TargetFPS: 60, SmoothingFactor: 0.1}
}

// observeN advances the clock by d and observes a frame of d, n times.
func observeN(p *Pacer, clk *testclock.FakeClock, d time.Duration, n int) {
	for i := 0; i < n; i++ {
		clk.Step(d)
		p.Observe(d)
	}
}

func TestPacer_SlowFrames_AverageBelowLowThreshold(t *testing.T) {
	// GIVEN target 60 fps with a low threshold of 48
	p, clk, _ := newTestPacer(t, defaultConfig())
	require.NoError(t, p.SetThresholds(48, 72))

	// WHEN 10 frames of 25ms are observed
	observeN(p, clk, 25*time.Millisecond, 10)

	// THEN the average is 40 fps and the pacer recommends lowering quality
	assert.InDelta(t, 40.0, p.AverageFPS(), 1e-9)
	assert.True(t, p.IsTooLow())
	assert.False(t, p.IsTooHigh())
	assert.Equal(t, Decrease, p.QualityAdjustment())
}

func TestPacer_DefaultThresholdsFollowTarget(t *testing.T) {
	p, _, _ := newTestPacer(t, defaultConfig())

	low, high := p.Thresholds()
	assert.InDelta(t, 48.0, low, 1e-9)
	assert.InDelta(t, 72.0, high, 1e-9)

	require.NoError(t, p.SetTargetFPS(30))
	low, high = p.Thresholds()
	assert.InDelta(t, 24.0, low, 1e-9)
	assert.InDelta(t, 36.0, high, 1e-9)
}

func TestPacer_NoFrames_NoRecommendation(t *testing.T) {
	p, _, _ := newTestPacer(t, defaultConfig())

	assert.False(t, p.IsTooLow())
	assert.False(t, p.IsTooHigh())
	assert.Equal(t, Maintain, p.QualityAdjustment())
	assert.Zero(t, p.Stability())
}

func TestPacer_Average_RefreshesOncePerSecondAfterWarmup(t *testing.T) {
	// GIVEN a pacer past its first second with an average of 50 fps
	p, clk, _ := newTestPacer(t, defaultConfig())
	p.Observe(20 * time.Millisecond)
	clk.Step(time.Second)
	p.Observe(20 * time.Millisecond)
	require.InDelta(t, 50.0, p.AverageFPS(), 1e-9)

	// WHEN slower frames arrive within the same second
	for i := 0; i < 5; i++ {
		clk.Step(100 * time.Millisecond)
		p.Observe(40 * time.Millisecond)
	}

	// THEN the average is unchanged until the next second boundary
	assert.InDelta(t, 50.0, p.AverageFPS(), 1e-9)
	assert.InDelta(t, 25.0, p.FPS(), 1e-9)

	clk.Step(500 * time.Millisecond)
	p.Observe(40 * time.Millisecond)
	// window: 20, 20, 40 x 6 -> mean 35ms
	assert.InDelta(t, 1000.0/35.0, p.AverageFPS(), 1e-9)
}

func TestPacer_SmoothedFPS(t *testing.T) {
	p, _, _ := newTestPacer(t, Config{TargetFPS: 60, SmoothingFactor: 0.5})

	p.Observe(20 * time.Millisecond)
	assert.InDelta(t, 50.0, p.SmoothedFPS(), 1e-9)
	p.Observe(10 * time.Millisecond)
	assert.InDelta(t, 75.0, p.SmoothedFPS(), 1e-9)
}

func TestPacer_Stability_EmitsStabilizedOnce(t *testing.T) {
	// GIVEN constant frame times
	p, clk, bus := newTestPacer(t, defaultConfig())

	// WHEN fewer than ten samples exist
	observeN(p, clk, 16*time.Millisecond, MinStableSamples-1)

	// THEN the pacer is not yet stable
	assert.False(t, p.IsStable())
	assert.Empty(t, bus.Pending())

	// WHEN the tenth and further samples arrive
	observeN(p, clk, 16*time.Millisecond, 5)

	// THEN exactly one FrameRateStabilized event is published
	assert.True(t, p.IsStable())
	assert.InDelta(t, 1.0, p.Stability(), 1e-9)
	assert.Equal(t, []governor.Event{governor.FrameRateStabilized{FPS: 62.5}}, bus.Pending())
}

func TestPacer_Stability_JitteryFramesAreUnstable(t *testing.T) {
	p, clk, bus := newTestPacer(t, defaultConfig())

	for i := 0; i < 20; i++ {
		d := 10 * time.Millisecond
		if i%2 == 1 {
			d = 40 * time.Millisecond
		}
		clk.Step(d)
		p.Observe(d)
	}

	// mean 25, stddev 15
	assert.InDelta(t, 1/1.6, p.Stability(), 1e-9)
	assert.False(t, p.IsStable())
	assert.Empty(t, bus.Pending())
}

func TestPacer_QualityAdjustment_IncreaseRequiresStability(t *testing.T) {
	p, clk, _ := newTestPacer(t, Config{TargetFPS: 30, SmoothingFactor: 0.1})

	observeN(p, clk, 10*time.Millisecond, 5)
	assert.True(t, p.IsTooHigh())
	assert.Equal(t, Maintain, p.QualityAdjustment(), "not enough samples for stability")

	observeN(p, clk, 10*time.Millisecond, 5)
	assert.Equal(t, Increase, p.QualityAdjustment())
}

func TestPacer_RecommendedWait(t *testing.T) {
	target := time.Second / 60
	tests := []struct {
		name     string
		limiting bool
		frame    time.Duration
		want     time.Duration
	}{
		{"short frame", true, 10 * time.Millisecond, target - 10*time.Millisecond},
		{"long frame", true, 20 * time.Millisecond, 0},
		{"exact frame", true, target, 0},
		{"limiting off", false, 10 * time.Millisecond, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Limiting = tt.limiting
			p, _, _ := newTestPacer(t, cfg)

			res := p.Observe(tt.frame)

			assert.Equal(t, tt.want, res.RecommendedWait)
			assert.Equal(t, tt.frame, res.FrameTime)
		})
	}
}

func TestPacer_Update_MeasuresClockDelta(t *testing.T) {
	p, clk, _ := newTestPacer(t, defaultConfig())

	assert.Equal(t, FrameResult{}, p.Update(), "first update only sets the baseline")

	clk.Step(20 * time.Millisecond)
	res := p.Update()

	assert.Equal(t, 20*time.Millisecond, res.FrameTime)
	assert.InDelta(t, 50.0, res.FPS, 1e-9)
	assert.Equal(t, uint64(1), p.Statistics().TotalFrames)
}

func TestPacer_Statistics(t *testing.T) {
	p, clk, _ := newTestPacer(t, defaultConfig())
	observeN(p, clk, 10*time.Millisecond, 2)
	observeN(p, clk, 40*time.Millisecond, 1)

	stats := p.Statistics()

	assert.Equal(t, uint64(3), stats.TotalFrames)
	assert.Equal(t, uint64(1), stats.SlowFrames)
	assert.InDelta(t, 10.0, stats.FrameTimeMS.Min, 1e-9)
	assert.InDelta(t, 40.0, stats.FrameTimeMS.Max, 1e-9)
	assert.InDelta(t, 20.0, stats.FrameTimeMS.Mean, 1e-9)
	assert.Equal(t, uint32(60), stats.TargetFPS)

	p.Reset()
	assert.Zero(t, p.Statistics().TotalFrames)
	assert.Zero(t, p.AverageFPS())
}

func TestPacer_Setters_RejectInvalid(t *testing.T) {
	p, _, _ := newTestPacer(t, defaultConfig())

	assert.ErrorIs(t, p.SetTargetFPS(0), governor.ErrInvalidConfig)
	assert.ErrorIs(t, p.SetThresholds(0, 10), governor.ErrInvalidConfig)
	assert.ErrorIs(t, p.SetThresholds(50, 50), governor.ErrInvalidConfig)
	assert.ErrorIs(t, p.SetSmoothingFactor(0), governor.ErrInvalidConfig)
	assert.ErrorIs(t, p.SetSmoothingFactor(1.5), governor.ErrInvalidConfig)

	// nothing changed
	low, high := p.Thresholds()
	assert.InDelta(t, 48.0, low, 1e-9)
	assert.InDelta(t, 72.0, high, 1e-9)
	assert.Equal(t, uint32(60), p.TargetFPS())
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	clk := testclock.NewFakeClock(time.Now())

	_, err := New(Config{TargetFPS: 0, SmoothingFactor: 0.1}, clk, nil)
	assert.ErrorIs(t, err, governor.ErrInvalidConfig)

	_, err = New(Config{TargetFPS: 60, SmoothingFactor: 0}, clk, nil)
	assert.ErrorIs(t, err, governor.ErrInvalidConfig)
}
