package trace

import "github.com/Amendoiim/2d-brawler-engine-sub002/governor/internal/window"

// DefaultCapacity is the number of records kept before the oldest is dropped.
const DefaultCapacity = 100

// History is a bounded, append-only list of optimization records.
type History struct {
	records *window.Ring[OptimizationRecord]
	total   int
}

// NewHistory creates a History. Non-positive capacity means DefaultCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{records: window.New[OptimizationRecord](capacity)}
}

// Record appends r, dropping the oldest record when full.
func (h *History) Record(r OptimizationRecord) {
	h.records.Push(r)
	h.total++
}

// FillFPSAfter stamps fps as the after value of every record still waiting
// for one. Returns how many records were updated.
func (h *History) FillFPSAfter(fps float64) int {
	n := 0
	for i := 0; i < h.records.Len(); i++ {
		r := h.records.At(i)
		if r.FPSAfterKnown {
			continue
		}
		r.FPSAfter = fps
		r.FPSAfterKnown = true
		h.records.Set(i, r)
		n++
	}
	return n
}

// Records returns a copy of the retained records, oldest first.
func (h *History) Records() []OptimizationRecord { return h.records.Values() }

// Len returns the number of retained records.
func (h *History) Len() int { return h.records.Len() }

// Total returns how many records were ever appended, including dropped ones.
func (h *History) Total() int { return h.total }

// Last returns the newest record.
func (h *History) Last() (OptimizationRecord, bool) { return h.records.Last() }
