package engine

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/metrics"
	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/pacing"
	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/trace"
	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/workload"
)

// Sleeper advances time between frames. A fake clock steps instantly; the
// real clock blocks.
type Sleeper interface {
	Sleep(d time.Duration)
}

// RunSummary reports a finished scenario run.
type RunSummary struct {
	Scenario       string
	Ticks          int
	SimulatedTime  time.Duration
	FinalQuality   governor.QualityLevel
	QualityChanges int

	Allocations        int
	AllocationFailures int
	Frees              int
	Accesses           int
	FreedByGovernorMB  float64

	Pacer         pacing.Statistics
	Metrics       metrics.Statistics
	Optimizations *trace.Summary

	EventsPublished   int
	EventsDropped     int
	EventsRateLimited int
}

// RunScenario drives the governor with frames from gen until the scenario
// ends, maxTicks ticks have run (0 means no limit) or ctx is cancelled.
// Each frame sleeps for its frame time plus any recommended pacing wait.
func (g *Governor) RunScenario(ctx context.Context, gen *workload.Generator, sleeper Sleeper, maxTicks int) (RunSummary, error) {
	sum := RunSummary{Scenario: gen.Name()}
	var err error
	for maxTicks <= 0 || sum.Ticks < maxTicks {
		if err = ctx.Err(); err != nil {
			break
		}
		frame, ok := gen.Next(g.CurrentQuality())
		if !ok {
			break
		}
		sleeper.Sleep(frame.FrameTime)
		sum.SimulatedTime += frame.FrameTime

		g.applyWorkload(frame, &sum)
		res := g.Tick(frame.FrameTime, frame.Stats)
		sum.Ticks++
		sum.FreedByGovernorMB += governor.BytesToMB(res.FreedBytes)

		if wait := res.Frame.RecommendedWait; wait > 0 {
			sleeper.Sleep(wait)
			sum.SimulatedTime += wait
		}
	}

	sum.FinalQuality = g.CurrentQuality()
	sum.QualityChanges = g.state.QualityChanges()
	sum.Pacer = g.pacer.Statistics()
	sum.Metrics = g.collector.Statistics()
	sum.Optimizations = g.OptimizationSummary()
	sum.EventsPublished = g.bus.Published()
	sum.EventsDropped = g.bus.Dropped()
	sum.EventsRateLimited = g.bus.RateLimited()
	return sum, err
}

// applyWorkload replays a frame's memory traffic against the allocator.
// Frees and accesses of ids the governor already evicted are expected.
func (g *Governor) applyWorkload(frame workload.Frame, sum *RunSummary) {
	for _, id := range frame.Free {
		if err := g.allocator.Deallocate(id); err == nil {
			sum.Frees++
		} else if !errors.Is(err, governor.ErrUnknownAllocation) {
			logrus.Warnf("tick %d: free %s: %v", frame.Tick, id, err)
		}
	}
	for _, id := range frame.Access {
		if err := g.allocator.Access(id); err == nil {
			sum.Accesses++
		} else if !errors.Is(err, governor.ErrUnknownAllocation) {
			logrus.Warnf("tick %d: access %s: %v", frame.Tick, id, err)
		}
	}
	for _, req := range frame.Allocate {
		if err := g.allocator.Allocate(req.ID, req.Size, req.Type, req.Priority); err != nil {
			sum.AllocationFailures++
			logrus.Debugf("tick %d: allocate %s: %v", frame.Tick, req.ID, err)
			continue
		}
		sum.Allocations++
	}
}
