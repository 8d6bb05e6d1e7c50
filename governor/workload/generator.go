package workload

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/memory"
)

// qualityCost scales a phase's frame time with the current quality level, so
// lowering quality visibly speeds frames up in simulation.
var qualityCost = map[governor.QualityLevel]float64{
	governor.QualityLow:    0.6,
	governor.QualityMedium: 0.8,
	governor.QualityHigh:   1.0,
	governor.QualityUltra:  1.3,
	governor.QualityCustom: 1.0,
}

// minFrameTimeMS keeps sampled frame times positive.
const minFrameTimeMS = 0.5

// AllocRequest is one allocation the scenario wants made this tick.
type AllocRequest struct {
	ID       string
	Size     uint64 // bytes
	Type     memory.AllocationType
	Priority memory.Priority
}

// Frame is everything the scenario produces for one tick.
type Frame struct {
	Tick      int
	Phase     string
	FrameTime time.Duration
	Stats     governor.RenderStats
	Allocate  []AllocRequest
	Access    []string
	Free      []string
}

type phaseSamplers struct {
	frameTime Sampler
	drawCalls Sampler
	triangles Sampler
	sizes     []Sampler
}

type liveAlloc struct {
	id        string
	spec      int // index into the phase's allocations
	createdAt int
}

// Generator walks a scenario tick by tick.
type Generator struct {
	spec     *ScenarioSpec
	samplers []phaseSamplers
	rng      *rand.Rand

	tick      int
	phase     int
	phaseTick int
	seq       int
	live      []liveAlloc
}

// NewGenerator validates spec and prepares its samplers. All randomness is
// drawn from rng.
func NewGenerator(spec *ScenarioSpec, rng *rand.Rand) (*Generator, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{spec: spec, rng: rng}
	for _, p := range spec.Phases {
		ps := phaseSamplers{}
		ps.frameTime, _ = NewSampler(p.FrameTime)
		if p.DrawCalls != nil {
			ps.drawCalls, _ = NewSampler(*p.DrawCalls)
		}
		if p.Triangles != nil {
			ps.triangles, _ = NewSampler(*p.Triangles)
		}
		for _, a := range p.Allocations {
			s, _ := NewSampler(a.SizeMB)
			ps.sizes = append(ps.sizes, s)
		}
		g.samplers = append(g.samplers, ps)
	}
	return g, nil
}

// Name returns the scenario name.
func (g *Generator) Name() string { return g.spec.Name }

// TotalTicks returns the scenario length.
func (g *Generator) TotalTicks() int { return g.spec.TotalTicks() }

// Done reports whether every phase has been played.
func (g *Generator) Done() bool { return g.phase >= len(g.spec.Phases) }

// Next produces the frame for the next tick at the given quality level.
// Returns false once the scenario is exhausted.
func (g *Generator) Next(quality governor.QualityLevel) (Frame, bool) {
	if g.Done() {
		return Frame{}, false
	}
	phase := &g.spec.Phases[g.phase]
	ps := g.samplers[g.phase]

	cost, ok := qualityCost[quality]
	if !ok {
		cost = 1
	}
	ms := math.Max(minFrameTimeMS, ps.frameTime.Sample(g.rng)*cost)

	f := Frame{
		Tick:      g.tick,
		Phase:     phase.Name,
		FrameTime: governor.MSToDuration(ms),
	}
	if ps.drawCalls != nil {
		f.Stats.DrawCalls = int(math.Max(0, math.Round(ps.drawCalls.Sample(g.rng)*cost)))
	}
	if ps.triangles != nil {
		f.Stats.TriangleCount = int(math.Max(0, math.Round(ps.triangles.Sample(g.rng)*cost)))
	}
	f.Stats.RenderTimeMS = ms * 0.6
	f.Stats.UpdateTimeMS = ms * 0.25

	g.churn(phase, ps, &f)

	g.tick++
	g.phaseTick++
	if g.phaseTick >= phase.Ticks {
		g.phase++
		g.phaseTick = 0
	}
	return f, true
}

// churn emits allocation, access and free requests for this tick.
// Allocations still live when a phase ends are left to the evictor.
func (g *Generator) churn(phase *PhaseSpec, ps phaseSamplers, f *Frame) {
	kept := g.live[:0]
	for _, l := range g.live {
		a := phase.Allocations[l.spec]
		age := g.phaseTick - l.createdAt
		if a.Lifetime > 0 && age >= a.Lifetime {
			f.Free = append(f.Free, l.id)
			continue
		}
		if a.AccessEvery > 0 && age > 0 && age%a.AccessEvery == 0 {
			f.Access = append(f.Access, l.id)
		}
		kept = append(kept, l)
	}
	g.live = kept

	for i, a := range phase.Allocations {
		if g.phaseTick%a.Every != 0 {
			continue
		}
		mb := math.Max(0, ps.sizes[i].Sample(g.rng))
		size := uint64(mb * governor.BytesPerMB)
		if size == 0 {
			continue
		}
		g.seq++
		id := fmt.Sprintf("%s-%d", a.Prefix, g.seq)
		f.Allocate = append(f.Allocate, AllocRequest{ID: id, Size: size, Type: a.Type, Priority: a.Priority})
		g.live = append(g.live, liveAlloc{id: id, spec: i, createdAt: g.phaseTick})
	}

	if g.phaseTick+1 >= phase.Ticks {
		g.live = g.live[:0]
	}
}
