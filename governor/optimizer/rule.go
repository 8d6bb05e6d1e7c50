package optimizer

import (
	"fmt"
	"time"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
)

const (
	MinPriority = 0
	MaxPriority = 1000
)

// Rule is a condition/action pair gated by a cooldown. Higher Priority rules
// are evaluated first; rules of equal priority keep insertion order.
type Rule struct {
	Name      string
	Condition Condition
	Action    Action
	Priority  int
	Cooldown  time.Duration

	lastApplied time.Time
	applied     bool
}

// LastApplied returns when the rule last fired, or false if it never has.
func (r *Rule) LastApplied() (time.Time, bool) {
	return r.lastApplied, r.applied
}

// coolingDown reports whether the cooldown has not yet fully elapsed at now.
func (r *Rule) coolingDown(now time.Time) bool {
	return r.applied && now.Sub(r.lastApplied) < r.Cooldown
}

// Validate checks the rule's static fields.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return governor.NewConfigError("rule.name", r.Name, "must not be empty")
	}
	if err := validateCondition(r.Condition); err != nil {
		return governor.NewConfigError("rule.condition", r.Name, err.Error())
	}
	if err := r.Action.validate(); err != nil {
		return governor.NewConfigError("rule.action", r.Name, err.Error())
	}
	if r.Priority < MinPriority || r.Priority > MaxPriority {
		return governor.NewConfigError("rule.priority", r.Priority, fmt.Sprintf("must be in [%d, %d]", MinPriority, MaxPriority))
	}
	if r.Cooldown < 0 {
		return governor.NewConfigError("rule.cooldown", r.Cooldown, "must not be negative")
	}
	return nil
}

// DefaultRules returns the built-in rule set with thresholds taken from cfg.
func DefaultRules(cfg governor.Config) []Rule {
	return []Rule{
		{
			Name:      "low-fps",
			Condition: FPSBelow{Threshold: cfg.LowFPSThreshold},
			Action:    DecreaseQuality(),
			Priority:  100,
			Cooldown:  5 * time.Second,
		},
		{
			Name:      "high-cpu",
			Condition: CPUAbove{Threshold: cfg.CPUThreshold},
			Action:    DecreaseQuality(),
			Priority:  90,
			Cooldown:  3 * time.Second,
		},
		{
			Name:      "high-gpu",
			Condition: GPUAbove{Threshold: cfg.GPUThreshold},
			Action:    DecreaseQuality(),
			Priority:  90,
			Cooldown:  3 * time.Second,
		},
		{
			Name:      "high-memory",
			Condition: MemoryAbove{ThresholdMB: cfg.MemoryThresholdMB},
			Action:    RunGarbageCollection(),
			Priority:  80,
			Cooldown:  2 * time.Second,
		},
		{
			Name:      "high-fps",
			Condition: FPSAbove{Threshold: cfg.HighFPSThreshold},
			Action:    IncreaseQuality(),
			Priority:  50,
			Cooldown:  10 * time.Second,
		},
	}
}
