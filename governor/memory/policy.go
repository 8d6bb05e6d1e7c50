package memory

import "time"

// retention is the minimum age and idle time before an allocation of a tier
// becomes eligible for eviction. Both bounds are strict.
type retention struct {
	minAge  time.Duration
	minIdle time.Duration
}

var retentionByPriority = map[Priority]retention{
	PriorityHigh:      {minAge: 300 * time.Second, minIdle: 60 * time.Second},
	PriorityMedium:    {minAge: 120 * time.Second, minIdle: 30 * time.Second},
	PriorityLow:       {minAge: 60 * time.Second, minIdle: 10 * time.Second},
	PriorityTemporary: {minAge: 0, minIdle: 5 * time.Second},
}

// BackstopAge is the age beyond which any freeable, non-critical allocation is
// evicted regardless of tier or idle time.
const BackstopAge = 600 * time.Second

// ShouldFree reports whether a is old and idle enough for its tier to be
// evicted at now. Critical allocations are never eligible. The CanBeFreed flag
// is checked separately by callers.
func ShouldFree(a *Allocation, now time.Time) bool {
	if a.Priority == PriorityCritical {
		return false
	}
	r, ok := retentionByPriority[a.Priority]
	if !ok {
		return false
	}
	if a.Idle(now) <= r.minIdle {
		return false
	}
	// Temporary has no age requirement.
	if r.minAge == 0 {
		return true
	}
	return a.Age(now) > r.minAge
}

// evictable combines the flag, the tier policy and the critical invariant.
func evictable(a *Allocation, now time.Time) bool {
	return a.CanBeFreed && a.Priority != PriorityCritical && ShouldFree(a, now)
}

// pastBackstop reports whether a is freeable and older than BackstopAge.
func pastBackstop(a *Allocation, now time.Time) bool {
	return a.CanBeFreed && a.Priority != PriorityCritical && a.Age(now) > BackstopAge
}
