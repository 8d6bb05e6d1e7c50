package metrics

import (
	"math"
	"math/rand"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
)

// UsageInput is what a UsageSource may base its estimate on.
type UsageInput struct {
	FrameTimeMS       float64
	TargetFrameTimeMS float64
	Quality           governor.QualityLevel
	AllocatedMB       float64 // memory tracked by the allocator
	Stats             governor.RenderStats
}

// Usage is one cpu/gpu/memory reading.
type Usage struct {
	CPU      float64 // percent
	GPU      float64 // percent
	MemoryMB float64
}

// UsageSource supplies cpu/gpu/memory readings for a frame.
type UsageSource interface {
	Sample(in UsageInput) Usage
}

// FixedUsage reports values set by a collaborator that can measure them.
type FixedUsage struct {
	Usage
}

// Set replaces the reported values.
func (f *FixedUsage) Set(u Usage) { f.Usage = u }

func (f *FixedUsage) Sample(UsageInput) Usage { return f.Usage }

// qualityLoad scales the simulated cost of a frame with the quality level.
var qualityLoad = map[governor.QualityLevel]float64{
	governor.QualityLow:    0.55,
	governor.QualityMedium: 0.75,
	governor.QualityHigh:   1.0,
	governor.QualityUltra:  1.3,
	governor.QualityCustom: 1.0,
}

// SimulatedUsage estimates usage when no OS query exists.
//
// cpu and gpu grow with the quality level and with how far the frame overran
// its target; gpu also grows with draw calls. Memory is a quality-scaled
// baseline plus whatever the allocator tracks. A small seeded jitter keeps
// the readings from being perfectly flat.
type SimulatedUsage struct {
	rng            *rand.Rand
	BaselineMB     float64
	JitterPercent  float64
	DrawCallWeight float64 // gpu percent per 100 draw calls
}

// NewSimulatedUsage draws its jitter from the usage subsystem of rng.
func NewSimulatedUsage(rng *governor.PartitionedRNG) *SimulatedUsage {
	return &SimulatedUsage{
		rng:            rng.ForSubsystem(governor.SubsystemUsage),
		BaselineMB:     256,
		JitterPercent:  3,
		DrawCallWeight: 2,
	}
}

func (s *SimulatedUsage) Sample(in UsageInput) Usage {
	q, ok := qualityLoad[in.Quality]
	if !ok {
		q = 1
	}
	load := 1.0
	if in.TargetFrameTimeMS > 0 && in.FrameTimeMS > 0 {
		load = in.FrameTimeMS / in.TargetFrameTimeMS
	}

	cpu := 35*q + 25*math.Min(load, 3) + s.jitter()
	gpu := 40*q + 20*math.Min(load, 3) + s.DrawCallWeight*float64(in.Stats.DrawCalls)/100 + s.jitter()
	mem := s.BaselineMB*q + in.AllocatedMB

	return Usage{
		CPU:      clampPercent(cpu),
		GPU:      clampPercent(gpu),
		MemoryMB: math.Max(0, mem),
	}
}

func (s *SimulatedUsage) jitter() float64 {
	if s.JitterPercent == 0 {
		return 0
	}
	return (s.rng.Float64()*2 - 1) * s.JitterPercent
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
