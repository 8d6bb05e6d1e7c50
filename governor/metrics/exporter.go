package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
)

const (
	namespace = "governor"
)

// Exporter mirrors governor state into Prometheus collectors. It is also an
// Observer: subscribe it to the event bus to count events by kind and
// optimizations by rule.
type Exporter struct {
	fps              prometheus.Gauge
	averageFPS       prometheus.Gauge
	frameTime        prometheus.Gauge
	cpuUsage         prometheus.Gauge
	gpuUsage         prometheus.Gauge
	memoryUsage      prometheus.Gauge
	memoryPercentage prometheus.Gauge
	drawCalls        prometheus.Gauge
	triangles        prometheus.Gauge

	qualityLevel prometheus.Gauge

	allocatedBytes prometheus.Gauge
	budgetBytes    prometheus.Gauge
	allocations    prometheus.Gauge

	events        *prometheus.CounterVec
	optimizations *prometheus.CounterVec
}

// NewExporter registers the governor collectors with reg.
func NewExporter(reg prometheus.Registerer) *Exporter {
	f := promauto.With(reg)
	gauge := func(subsystem, name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}
	return &Exporter{
		fps:              gauge("frame", "fps", "Instantaneous frames per second of the last frame"),
		averageFPS:       gauge("frame", "average_fps", "Rolling-average frames per second"),
		frameTime:        gauge("frame", "time_milliseconds", "Duration of the last frame in milliseconds"),
		cpuUsage:         gauge("resource", "cpu_usage_percent", "CPU usage percentage"),
		gpuUsage:         gauge("resource", "gpu_usage_percent", "GPU usage percentage"),
		memoryUsage:      gauge("resource", "memory_usage_megabytes", "Memory usage in MB"),
		memoryPercentage: gauge("resource", "memory_usage_percent", "Memory usage as a percentage of the budget"),
		drawCalls:        gauge("render", "draw_calls", "Draw calls in the last frame"),
		triangles:        gauge("render", "triangles", "Triangles in the last frame"),
		qualityLevel:     gauge("", "quality_level", "Current quality level (0=low, 1=medium, 2=high, 3=ultra, 4=custom)"),
		allocatedBytes:   gauge("allocator", "allocated_bytes", "Bytes tracked by the allocator"),
		budgetBytes:      gauge("allocator", "budget_bytes", "Allocator memory budget in bytes"),
		allocations:      gauge("allocator", "allocations", "Number of tracked allocations"),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events dispatched, by kind",
		}, []string{"kind"}),
		optimizations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "applied_total",
			Help:      "Optimizations applied, by rule",
		}, []string{"rule"}),
	}
}

// ObserveMetrics sets the frame and resource gauges from a snapshot.
func (e *Exporter) ObserveMetrics(m governor.PerformanceMetrics) {
	e.fps.Set(m.FPS)
	e.averageFPS.Set(m.AverageFPS)
	e.frameTime.Set(m.FrameTimeMS)
	e.cpuUsage.Set(m.CPUUsage)
	e.gpuUsage.Set(m.GPUUsage)
	e.memoryUsage.Set(m.MemoryUsageMB)
	e.memoryPercentage.Set(m.MemoryPercentage)
	e.drawCalls.Set(float64(m.DrawCalls))
	e.triangles.Set(float64(m.TriangleCount))
}

// ObserveQuality sets the quality gauge.
func (e *Exporter) ObserveQuality(q governor.QualityLevel) {
	e.qualityLevel.Set(float64(q))
}

// ObserveAllocator sets the allocator gauges.
func (e *Exporter) ObserveAllocator(allocated, budget uint64, count int) {
	e.allocatedBytes.Set(float64(allocated))
	e.budgetBytes.Set(float64(budget))
	e.allocations.Set(float64(count))
}

// OnEvent counts the event.
func (e *Exporter) OnEvent(ev governor.Event) {
	e.events.WithLabelValues(string(ev.Kind())).Inc()
	if applied, ok := ev.(governor.OptimizationApplied); ok {
		e.optimizations.WithLabelValues(applied.Optimization).Inc()
	}
}
