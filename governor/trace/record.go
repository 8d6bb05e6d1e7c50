// Package trace keeps the bounded audit history of optimizer decisions.
// It stores pure data and depends only on the root governor package.
package trace

import (
	"time"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
)

// OptimizationRecord captures one applied optimizer rule.
type OptimizationRecord struct {
	ID            string
	Timestamp     time.Time
	Rule          string
	Action        string  // human-readable action description
	Impact        float64 // fixed heuristic per action type, not measured
	QualityBefore governor.QualityLevel
	QualityAfter  governor.QualityLevel
	FPSBefore     float64
	FPSAfter      float64 // valid once FPSAfterKnown is set
	FPSAfterKnown bool
}

// FPSDelta returns FPSAfter - FPSBefore, or false when the after value has
// not been observed yet.
func (r OptimizationRecord) FPSDelta() (float64, bool) {
	if !r.FPSAfterKnown {
		return 0, false
	}
	return r.FPSAfter - r.FPSBefore, true
}
