// Package workload generates synthetic frame-time and allocation scenarios
// used to drive the governor in simulation.
package workload

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/memory"
)

// ScenarioSpec is the top-level scenario configuration.
// Loaded from YAML via LoadScenario(path).
type ScenarioSpec struct {
	Name   string      `yaml:"name"`
	Seed   int64       `yaml:"seed,omitempty"` // 0 = use the governor seed
	Phases []PhaseSpec `yaml:"phases"`
}

// PhaseSpec is a run of ticks with one load profile.
type PhaseSpec struct {
	Name        string           `yaml:"name"`
	Ticks       int              `yaml:"ticks"`
	FrameTime   DistSpec         `yaml:"frame_time"` // ms at high quality
	DrawCalls   *DistSpec        `yaml:"draw_calls,omitempty"`
	Triangles   *DistSpec        `yaml:"triangles,omitempty"`
	Allocations []AllocationSpec `yaml:"allocations,omitempty"`
}

// AllocationSpec describes recurring allocation churn within a phase.
type AllocationSpec struct {
	Prefix      string                `yaml:"prefix"`
	Type        memory.AllocationType `yaml:"type"`
	Priority    memory.Priority       `yaml:"priority"`
	SizeMB      DistSpec              `yaml:"size_mb"`
	Every       int                   `yaml:"every"`                  // allocate once every N ticks
	Lifetime    int                   `yaml:"lifetime,omitempty"`     // ticks until freed; 0 = never
	AccessEvery int                   `yaml:"access_every,omitempty"` // ticks between accesses; 0 = never
}

// DistSpec parameterizes a distribution.
type DistSpec struct {
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

// LoadScenario reads and parses a YAML scenario file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadScenario(path string) (*ScenarioSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var spec ScenarioSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &spec, nil
}

// Validate checks that all fields in the spec are valid.
func (s *ScenarioSpec) Validate() error {
	if len(s.Phases) == 0 {
		return fmt.Errorf("scenario %q: at least one phase required", s.Name)
	}
	for i, p := range s.Phases {
		if err := validatePhase(&p); err != nil {
			return fmt.Errorf("phases[%d] %q: %w", i, p.Name, err)
		}
	}
	return nil
}

func validatePhase(p *PhaseSpec) error {
	if p.Ticks <= 0 {
		return fmt.Errorf("ticks must be positive, got %d", p.Ticks)
	}
	if _, err := NewSampler(p.FrameTime); err != nil {
		return fmt.Errorf("frame_time: %w", err)
	}
	optional := []struct {
		name string
		dist *DistSpec
	}{{"draw_calls", p.DrawCalls}, {"triangles", p.Triangles}}
	for _, o := range optional {
		if o.dist == nil {
			continue
		}
		if _, err := NewSampler(*o.dist); err != nil {
			return fmt.Errorf("%s: %w", o.name, err)
		}
	}
	for i, a := range p.Allocations {
		if a.Prefix == "" {
			return fmt.Errorf("allocations[%d]: prefix required", i)
		}
		if !a.Priority.IsValid() {
			return fmt.Errorf("allocations[%d]: invalid priority", i)
		}
		if a.Every <= 0 {
			return fmt.Errorf("allocations[%d]: every must be positive, got %d", i, a.Every)
		}
		if a.Lifetime < 0 || a.AccessEvery < 0 {
			return fmt.Errorf("allocations[%d]: lifetime and access_every must not be negative", i)
		}
		if _, err := NewSampler(a.SizeMB); err != nil {
			return fmt.Errorf("allocations[%d] size_mb: %w", i, err)
		}
	}
	return nil
}

// TotalTicks is the sum of all phase lengths.
func (s *ScenarioSpec) TotalTicks() int {
	n := 0
	for _, p := range s.Phases {
		n += p.Ticks
	}
	return n
}
