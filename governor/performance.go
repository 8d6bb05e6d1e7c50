package governor

import "time"

// PerformanceMetrics is a point-in-time aggregate of one tick. It is what the
// optimizer evaluates its rules against and what the collector keeps in its
// bounded history.
type PerformanceMetrics struct {
	Timestamp        time.Time
	FPS              float64
	AverageFPS       float64
	FrameTimeMS      float64
	CPUUsage         float64 // percent
	GPUUsage         float64 // percent
	MemoryUsageMB    float64
	MemoryPercentage float64
	DrawCalls        int
	TriangleCount    int

	// Sub-system timings reported by collaborators (ms).
	UpdateTimeMS  float64
	RenderTimeMS  float64
	PhysicsTimeMS float64
	AudioTimeMS   float64
}

// RenderStats is what the rendering, physics and audio collaborators report
// for the frame that just finished. All fields are optional.
type RenderStats struct {
	DrawCalls     int
	TriangleCount int
	UpdateTimeMS  float64
	RenderTimeMS  float64
	PhysicsTimeMS float64
	AudioTimeMS   float64
}

// FrameTimeToFPS converts a frame time in milliseconds to frames per second.
// Returns 0 for non-positive frame times.
func FrameTimeToFPS(frameTimeMS float64) float64 {
	if frameTimeMS <= 0 {
		return 0
	}
	return 1000.0 / frameTimeMS
}

// DurationToMS converts a duration to fractional milliseconds.
func DurationToMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// MSToDuration converts fractional milliseconds to a duration.
func MSToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// BytesPerMB is the divisor used for every byte-to-MB conversion.
const BytesPerMB = 1024 * 1024

// BytesToMB converts a byte count to MB.
func BytesToMB(b uint64) float64 {
	return float64(b) / BytesPerMB
}
