package workload

import (
	"fmt"
	"sort"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/memory"
)

func constant(v float64) DistSpec {
	return DistSpec{Type: "constant", Params: map[string]float64{"value": v}}
}

func gaussian(mean, stdDev, min, max float64) DistSpec {
	return DistSpec{Type: "gaussian", Params: map[string]float64{"mean": mean, "std_dev": stdDev, "min": min, "max": max}}
}

func ptr(d DistSpec) *DistSpec { return &d }

// builtinScenarios are the named scenarios selectable without a file.
var builtinScenarios = map[string]func() ScenarioSpec{
	// Light, steady load: frames well under the 60fps budget.
	"steady": func() ScenarioSpec {
		return ScenarioSpec{
			Name: "steady",
			Phases: []PhaseSpec{{
				Name:      "steady",
				Ticks:     600,
				FrameTime: gaussian(10, 1, 6, 16),
				DrawCalls: ptr(gaussian(400, 40, 100, 800)),
				Triangles: ptr(gaussian(60000, 5000, 20000, 120000)),
				Allocations: []AllocationSpec{
					{Prefix: "sprite", Type: memory.TypeTexture, Priority: memory.PriorityMedium, SizeMB: constant(2), Every: 60, Lifetime: 300, AccessEvery: 20},
					{Prefix: "scratch", Type: memory.TypeTemporary, Priority: memory.PriorityTemporary, SizeMB: constant(1), Every: 30, Lifetime: 10},
				},
			}},
		}
	},
	// A boss fight: heavy frames that should push quality down, then recovery.
	"spike": func() ScenarioSpec {
		return ScenarioSpec{
			Name: "spike",
			Phases: []PhaseSpec{
				{
					Name:      "warmup",
					Ticks:     300,
					FrameTime: gaussian(12, 1.5, 8, 18),
					DrawCalls: ptr(gaussian(500, 50, 200, 900)),
				},
				{
					Name:      "boss",
					Ticks:     600,
					FrameTime: gaussian(45, 6, 30, 70),
					DrawCalls: ptr(gaussian(2500, 300, 1500, 4000)),
					Allocations: []AllocationSpec{
						{Prefix: "particles", Type: memory.TypeBuffer, Priority: memory.PriorityLow, SizeMB: gaussian(8, 2, 2, 16), Every: 15, Lifetime: 120, AccessEvery: 5},
						{Prefix: "sfx", Type: memory.TypeAudio, Priority: memory.PriorityTemporary, SizeMB: constant(3), Every: 20, Lifetime: 40},
					},
				},
				{
					Name:      "recovery",
					Ticks:     900,
					FrameTime: gaussian(9, 0.5, 6, 12),
					DrawCalls: ptr(gaussian(300, 30, 100, 600)),
				},
			},
		}
	},
	// Streaming a large level: steady frames, memory climbing past the budget.
	"memory-churn": func() ScenarioSpec {
		return ScenarioSpec{
			Name: "memory-churn",
			Phases: []PhaseSpec{{
				Name:      "streaming",
				Ticks:     1800,
				FrameTime: gaussian(15, 2, 10, 25),
				Allocations: []AllocationSpec{
					{Prefix: "level", Type: memory.TypeAsset, Priority: memory.PriorityLow, SizeMB: gaussian(40, 10, 10, 80), Every: 30},
					{Prefix: "atlas", Type: memory.TypeTexture, Priority: memory.PriorityHigh, SizeMB: constant(16), Every: 240, AccessEvery: 30},
					{Prefix: "core", Type: memory.TypeSystem, Priority: memory.PriorityCritical, SizeMB: constant(64), Every: 1800},
				},
			}},
		}
	},
}

// BuiltinScenarioNames lists the built-in scenario names, sorted.
func BuiltinScenarioNames() []string {
	names := make([]string, 0, len(builtinScenarios))
	for name := range builtinScenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuiltinScenario returns a fresh copy of the named built-in scenario.
func BuiltinScenario(name string) (*ScenarioSpec, error) {
	mk, ok := builtinScenarios[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q; valid: %v", name, BuiltinScenarioNames())
	}
	spec := mk()
	return &spec, nil
}

// ResolveScenario returns the built-in scenario named ref, or loads ref as a
// YAML file when no built-in matches.
func ResolveScenario(ref string) (*ScenarioSpec, error) {
	if _, ok := builtinScenarios[ref]; ok {
		return BuiltinScenario(ref)
	}
	return LoadScenario(ref)
}
