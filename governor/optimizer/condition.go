package optimizer

import (
	"fmt"
	"strings"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
)

// Condition is a predicate over one metrics snapshot.
type Condition interface {
	Evaluate(m governor.PerformanceMetrics) bool
	fmt.Stringer
}

// FPSBelow holds when the instantaneous fps is below Threshold.
type FPSBelow struct{ Threshold float64 }

func (c FPSBelow) Evaluate(m governor.PerformanceMetrics) bool { return m.FPS < c.Threshold }
func (c FPSBelow) String() string                              { return fmt.Sprintf("fps < %g", c.Threshold) }

// FPSAbove holds when the instantaneous fps is above Threshold.
type FPSAbove struct{ Threshold float64 }

func (c FPSAbove) Evaluate(m governor.PerformanceMetrics) bool { return m.FPS > c.Threshold }
func (c FPSAbove) String() string                              { return fmt.Sprintf("fps > %g", c.Threshold) }

// CPUAbove holds when cpu usage (percent) is above Threshold.
type CPUAbove struct{ Threshold float64 }

func (c CPUAbove) Evaluate(m governor.PerformanceMetrics) bool { return m.CPUUsage > c.Threshold }
func (c CPUAbove) String() string                              { return fmt.Sprintf("cpu > %g%%", c.Threshold) }

// GPUAbove holds when gpu usage (percent) is above Threshold.
type GPUAbove struct{ Threshold float64 }

func (c GPUAbove) Evaluate(m governor.PerformanceMetrics) bool { return m.GPUUsage > c.Threshold }
func (c GPUAbove) String() string                              { return fmt.Sprintf("gpu > %g%%", c.Threshold) }

// MemoryAbove holds when memory usage exceeds ThresholdMB.
type MemoryAbove struct{ ThresholdMB float64 }

func (c MemoryAbove) Evaluate(m governor.PerformanceMetrics) bool {
	return m.MemoryUsageMB > c.ThresholdMB
}
func (c MemoryAbove) String() string { return fmt.Sprintf("memory > %gMB", c.ThresholdMB) }

// FrameTimeAbove holds when the frame time exceeds ThresholdMS.
type FrameTimeAbove struct{ ThresholdMS float64 }

func (c FrameTimeAbove) Evaluate(m governor.PerformanceMetrics) bool {
	return m.FrameTimeMS > c.ThresholdMS
}
func (c FrameTimeAbove) String() string { return fmt.Sprintf("frame time > %gms", c.ThresholdMS) }

// And holds when every sub-condition holds. Evaluation stops at the first
// false sub-condition. An empty And holds.
type And []Condition

func (c And) Evaluate(m governor.PerformanceMetrics) bool {
	for _, sub := range c {
		if !sub.Evaluate(m) {
			return false
		}
	}
	return true
}

func (c And) String() string { return join(c, " && ") }

// Or holds when any sub-condition holds. Evaluation stops at the first true
// sub-condition. An empty Or does not hold.
type Or []Condition

func (c Or) Evaluate(m governor.PerformanceMetrics) bool {
	for _, sub := range c {
		if sub.Evaluate(m) {
			return true
		}
	}
	return false
}

func (c Or) String() string { return join(c, " || ") }

func join(conds []Condition, sep string) string {
	parts := make([]string, len(conds))
	for i, sub := range conds {
		parts[i] = sub.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// validateCondition rejects nil leaves anywhere in the tree.
func validateCondition(c Condition) error {
	switch c := c.(type) {
	case nil:
		return fmt.Errorf("nil condition")
	case And:
		for _, sub := range c {
			if err := validateCondition(sub); err != nil {
				return err
			}
		}
	case Or:
		for _, sub := range c {
			if err := validateCondition(sub); err != nil {
				return err
			}
		}
	}
	return nil
}
