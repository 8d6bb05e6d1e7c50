package governor

import "fmt"

// EventKind names a class of performance event.
type EventKind string

const (
	KindLowFrameRate        EventKind = "low_frame_rate"
	KindHighCPUUsage        EventKind = "high_cpu_usage"
	KindHighGPUUsage        EventKind = "high_gpu_usage"
	KindHighMemoryUsage     EventKind = "high_memory_usage"
	KindQualityLevelChanged EventKind = "quality_level_changed"
	KindOptimizationApplied EventKind = "optimization_applied"
	KindMemoryCleanup       EventKind = "memory_cleanup"
	KindFrameRateStabilized EventKind = "frame_rate_stabilized"
)

// AllEventKinds lists every kind in a stable order.
var AllEventKinds = []EventKind{
	KindLowFrameRate,
	KindHighCPUUsage,
	KindHighGPUUsage,
	KindHighMemoryUsage,
	KindQualityLevelChanged,
	KindOptimizationApplied,
	KindMemoryCleanup,
	KindFrameRateStabilized,
}

// IsStateChange reports whether kind records a change collaborators must not
// miss. These kinds bypass rate limiting and overflow eviction on the bus.
func IsStateChange(kind EventKind) bool {
	switch kind {
	case KindQualityLevelChanged, KindOptimizationApplied, KindMemoryCleanup:
		return true
	}
	return false
}

// Event is one advisory signal emitted by a governor component.
// Concrete types are the structs below; observers switch on them.
type Event interface {
	Kind() EventKind
	fmt.Stringer
}

// LowFrameRate is emitted each tick the fps is below the low threshold.
type LowFrameRate struct {
	FPS       float64
	Threshold float64
}

func (LowFrameRate) Kind() EventKind { return KindLowFrameRate }
func (e LowFrameRate) String() string {
	return fmt.Sprintf("low frame rate: %.1f fps (threshold %.1f)", e.FPS, e.Threshold)
}

// HighCPUUsage is emitted each tick cpu usage exceeds its threshold.
type HighCPUUsage struct {
	Usage     float64
	Threshold float64
}

func (HighCPUUsage) Kind() EventKind { return KindHighCPUUsage }
func (e HighCPUUsage) String() string {
	return fmt.Sprintf("high cpu usage: %.1f%% (threshold %.1f%%)", e.Usage, e.Threshold)
}

// HighGPUUsage is emitted each tick gpu usage exceeds its threshold.
type HighGPUUsage struct {
	Usage     float64
	Threshold float64
}

func (HighGPUUsage) Kind() EventKind { return KindHighGPUUsage }
func (e HighGPUUsage) String() string {
	return fmt.Sprintf("high gpu usage: %.1f%% (threshold %.1f%%)", e.Usage, e.Threshold)
}

// MemoryUnit says how a HighMemoryUsage reading is measured.
type MemoryUnit string

const (
	// MemoryUnitMB is used by the metrics collector against memory_threshold_mb.
	MemoryUnitMB MemoryUnit = "mb"
	// MemoryUnitPercent is used by the allocator against pressure_threshold.
	MemoryUnitPercent MemoryUnit = "percent"
)

// HighMemoryUsage is emitted while memory is above a threshold. Usage and
// Threshold share Unit.
type HighMemoryUsage struct {
	Usage     float64
	Threshold float64
	Unit      MemoryUnit
}

func (HighMemoryUsage) Kind() EventKind { return KindHighMemoryUsage }
func (e HighMemoryUsage) String() string {
	if e.Unit == MemoryUnitPercent {
		return fmt.Sprintf("high memory usage: %.1f%% of budget (threshold %.1f%%)", e.Usage, e.Threshold)
	}
	return fmt.Sprintf("high memory usage: %.1f MB (threshold %.1f MB)", e.Usage, e.Threshold)
}

// QualityLevelChanged is emitted whenever State changes the quality level.
type QualityLevelChanged struct {
	From QualityLevel
	To   QualityLevel
}

func (QualityLevelChanged) Kind() EventKind { return KindQualityLevelChanged }
func (e QualityLevelChanged) String() string {
	return fmt.Sprintf("quality level changed: %s -> %s", e.From, e.To)
}

// OptimizationApplied is emitted when an optimizer rule fires. Impact is the
// rule's fixed heuristic estimate, not a measurement.
type OptimizationApplied struct {
	Optimization string
	Impact       float64
}

func (OptimizationApplied) Kind() EventKind { return KindOptimizationApplied }
func (e OptimizationApplied) String() string {
	return fmt.Sprintf("optimization applied: %s (estimated impact %+.2f)", e.Optimization, e.Impact)
}

// MemoryCleanup is emitted when a sweep frees a non-zero amount of memory.
type MemoryCleanup struct {
	FreedMB float64
}

func (MemoryCleanup) Kind() EventKind { return KindMemoryCleanup }
func (e MemoryCleanup) String() string {
	return fmt.Sprintf("memory cleanup: freed %.2f MB", e.FreedMB)
}

// FrameRateStabilized is emitted when frame pacing becomes stable.
type FrameRateStabilized struct {
	FPS float64
}

func (FrameRateStabilized) Kind() EventKind { return KindFrameRateStabilized }
func (e FrameRateStabilized) String() string {
	return fmt.Sprintf("frame rate stabilized at %.1f fps", e.FPS)
}
