package trace

import "github.com/Amendoiim/2d-brawler-engine-sub002/governor"

// Summary aggregates statistics from a History.
type Summary struct {
	TotalOptimizations int // retained records
	QualityDecreases   int
	QualityIncreases   int
	TotalImpact        float64
	MeanImpact         float64
	MeanFPSDelta       float64 // over records with a known after value
	MeasuredRecords    int
	UniqueRules        int
	RuleDistribution   map[string]int // rule name -> times applied
}

// Summarize computes aggregate statistics from a History.
// Safe for nil or empty histories (returns zero-value fields).
func Summarize(h *History) *Summary {
	summary := &Summary{
		RuleDistribution: make(map[string]int),
	}
	if h == nil || h.Len() == 0 {
		return summary
	}

	totalDelta := 0.0
	for _, r := range h.Records() {
		summary.TotalOptimizations++
		summary.TotalImpact += r.Impact
		summary.RuleDistribution[r.Rule]++
		switch {
		case r.QualityBefore == governor.QualityCustom || r.QualityAfter == governor.QualityCustom:
			// jumps into or out of custom are neither
		case r.QualityAfter < r.QualityBefore:
			summary.QualityDecreases++
		case r.QualityAfter > r.QualityBefore:
			summary.QualityIncreases++
		}
		if d, ok := r.FPSDelta(); ok {
			totalDelta += d
			summary.MeasuredRecords++
		}
	}
	summary.MeanImpact = summary.TotalImpact / float64(summary.TotalOptimizations)
	if summary.MeasuredRecords > 0 {
		summary.MeanFPSDelta = totalDelta / float64(summary.MeasuredRecords)
	}
	summary.UniqueRules = len(summary.RuleDistribution)

	return summary
}
