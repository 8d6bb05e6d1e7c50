package memory

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
)

// Config groups allocator parameters.
type Config struct {
	BudgetBytes       uint64        // advisory ceiling (must be > 0)
	PressureThreshold float64       // percent of budget above which IsUnderPressure (default 80)
	CleanupThreshold  float64       // percent of budget above which NeedsCleanup (default 90)
	GCInterval        time.Duration // periodic sweep cadence (must be > 0)
	StrictBudget      bool          // reject allocations eviction cannot make room for
}

// ConfigFrom extracts the allocator parameters from a governor config.
func ConfigFrom(c governor.Config) Config {
	return Config{
		BudgetBytes:       c.MemoryBudgetBytes(),
		PressureThreshold: c.PressureThreshold,
		CleanupThreshold:  c.CleanupThreshold,
		GCInterval:        c.GCInterval,
		StrictBudget:      c.StrictBudget,
	}
}

// Snapshot is the derived usage view, recomputed on demand.
type Snapshot struct {
	CurrentBytes    uint64
	PeakBytes       uint64
	BudgetBytes     uint64
	UsagePercentage float64
	Allocations     int
}

// Statistics is the reporting view of the allocator.
type Statistics struct {
	UsageMB         float64
	PeakMB          float64
	BudgetMB        float64
	UsagePercentage float64
	Allocations     int
	ByTypeMB        map[AllocationType]float64
	ByPriority      map[Priority]int

	TotalAllocations   uint64 // successful Allocate calls
	TotalEvictions     uint64
	EvictedMB          float64
	OverBudgetAdmitted uint64 // allocations recorded while over budget
	Sweeps             uint64
}

// Allocator tracks named allocations against a soft memory budget and reclaims
// space with a priority, age and idle-time policy.
//
// Not safe for concurrent use.
type Allocator struct {
	cfg   Config
	clock clock.PassiveClock
	bus   *governor.EventBus

	allocations map[string]*Allocation
	current     uint64
	peak        uint64
	lastSweep   time.Time
	autoCleanup bool

	totalAllocations uint64
	totalEvictions   uint64
	evictedBytes     uint64
	overBudget       uint64
	sweeps           uint64
}

// NewAllocator validates cfg and returns an empty allocator. bus may be nil.
func NewAllocator(cfg Config, clk clock.PassiveClock, bus *governor.EventBus) (*Allocator, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Allocator{
		cfg:         cfg,
		clock:       clk,
		bus:         bus,
		allocations: make(map[string]*Allocation),
		lastSweep:   clk.Now(),
		autoCleanup: true,
	}, nil
}

func validateConfig(cfg Config) error {
	if cfg.BudgetBytes == 0 {
		return governor.NewConfigError("memory_budget", cfg.BudgetBytes, "must be positive")
	}
	if err := validateThresholds(cfg.PressureThreshold, cfg.CleanupThreshold); err != nil {
		return err
	}
	if cfg.GCInterval <= 0 {
		return governor.NewConfigError("gc_interval", cfg.GCInterval, "must be positive")
	}
	return nil
}

func validateThresholds(pressure, cleanup float64) error {
	if pressure <= 0 || pressure > 100 {
		return governor.NewConfigError("pressure_threshold", pressure, "must be in (0, 100]")
	}
	if cleanup <= 0 || cleanup > 100 {
		return governor.NewConfigError("cleanup_threshold", cleanup, "must be in (0, 100]")
	}
	if cleanup < pressure {
		return governor.NewConfigError("cleanup_threshold", cleanup, "must not be below pressure_threshold")
	}
	return nil
}

// SetBudget changes the advisory ceiling. Zero is rejected.
func (a *Allocator) SetBudget(bytes uint64) error {
	if bytes == 0 {
		return governor.NewConfigError("memory_budget", bytes, "must be positive")
	}
	a.cfg.BudgetBytes = bytes
	return nil
}

// SetThresholds changes the pressure and cleanup thresholds (percent of budget).
func (a *Allocator) SetThresholds(pressure, cleanup float64) error {
	if err := validateThresholds(pressure, cleanup); err != nil {
		return err
	}
	a.cfg.PressureThreshold = pressure
	a.cfg.CleanupThreshold = cleanup
	return nil
}

// SetAutoCleanup enables or disables the periodic sweep and the age backstop
// run by Update. Explicit RunGarbageCollection calls are unaffected.
func (a *Allocator) SetAutoCleanup(enabled bool) {
	a.autoCleanup = enabled
}

// Allocate records a new allocation. When it would push usage over the budget,
// eligible allocations at or below priority are evicted first. The allocation
// is recorded even if not enough was reclaimed, unless the allocator is in
// strict mode, in which case ErrBudgetExceeded is returned and nothing changes.
func (a *Allocator) Allocate(id string, size uint64, typ AllocationType, priority Priority) error {
	if id == "" {
		return fmt.Errorf("allocate: empty id")
	}
	if size == 0 {
		return fmt.Errorf("allocate %q: size must be positive", id)
	}
	if !typ.IsValid() {
		return fmt.Errorf("allocate %q: invalid type %d", id, int(typ))
	}
	if !priority.IsValid() {
		return fmt.Errorf("allocate %q: invalid priority %d", id, int(priority))
	}
	if _, exists := a.allocations[id]; exists {
		return fmt.Errorf("allocate %q: %w", id, governor.ErrDuplicateAllocation)
	}

	now := a.clock.Now()
	if a.current+size > a.cfg.BudgetBytes {
		needed := a.current + size - a.cfg.BudgetBytes
		freed := a.FreeMemoryByPriority(priority, needed)
		if freed > 0 && a.bus != nil {
			a.bus.Publish(governor.MemoryCleanup{FreedMB: governor.BytesToMB(freed)})
		}
		if a.current+size > a.cfg.BudgetBytes {
			if a.cfg.StrictBudget {
				return fmt.Errorf("allocate %q (%.2f MB): %w", id, governor.BytesToMB(size), governor.ErrBudgetExceeded)
			}
			a.overBudget++
			logrus.Warnf("allocation %s (%.2f MB) exceeds memory budget: %.2f/%.2f MB",
				id, governor.BytesToMB(size), governor.BytesToMB(a.current+size), governor.BytesToMB(a.cfg.BudgetBytes))
		}
	}

	a.allocations[id] = &Allocation{
		ID:         id,
		Size:       size,
		Type:       typ,
		Priority:   priority,
		CreatedAt:  now,
		LastAccess: now,
		CanBeFreed: priority != PriorityCritical,
	}
	a.current += size
	a.peak = max(a.peak, a.current)
	a.totalAllocations++
	logrus.Debugf("allocated %s: %d bytes (%s, %s)", id, size, typ, priority)
	return nil
}

// Deallocate removes an allocation. Unknown ids return ErrUnknownAllocation.
func (a *Allocator) Deallocate(id string) error {
	alloc, ok := a.allocations[id]
	if !ok {
		return fmt.Errorf("deallocate %q: %w", id, governor.ErrUnknownAllocation)
	}
	a.remove(alloc)
	return nil
}

// Access marks an allocation as used now. Unknown ids return ErrUnknownAllocation.
func (a *Allocator) Access(id string) error {
	alloc, ok := a.allocations[id]
	if !ok {
		return fmt.Errorf("access %q: %w", id, governor.ErrUnknownAllocation)
	}
	alloc.LastAccess = a.clock.Now()
	alloc.AccessCount++
	return nil
}

// SetFreeable pins (false) or unpins (true) an allocation. Critical allocations
// stay unfreeable regardless.
func (a *Allocator) SetFreeable(id string, freeable bool) error {
	alloc, ok := a.allocations[id]
	if !ok {
		return fmt.Errorf("set freeable %q: %w", id, governor.ErrUnknownAllocation)
	}
	alloc.CanBeFreed = freeable && alloc.Priority != PriorityCritical
	return nil
}

// Get returns a copy of the allocation with the given id.
func (a *Allocator) Get(id string) (Allocation, bool) {
	alloc, ok := a.allocations[id]
	if !ok {
		return Allocation{}, false
	}
	return *alloc, true
}

// Len returns the number of tracked allocations.
func (a *Allocator) Len() int { return len(a.allocations) }

// FreeMemoryByPriority evicts eligible allocations whose priority is at or
// below priority until at least needed bytes are reclaimed or no candidates
// remain. Lowest tier goes first; within a tier the least recently accessed.
// Returns the bytes freed.
func (a *Allocator) FreeMemoryByPriority(priority Priority, needed uint64) uint64 {
	now := a.clock.Now()
	var candidates []*Allocation
	for _, alloc := range a.allocations {
		if alloc.Priority <= priority && evictable(alloc, now) {
			candidates = append(candidates, alloc)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.Priority != cj.Priority {
			return ci.Priority < cj.Priority
		}
		if !ci.LastAccess.Equal(cj.LastAccess) {
			return ci.LastAccess.Before(cj.LastAccess)
		}
		return ci.ID < cj.ID
	})

	var freed uint64
	for _, alloc := range candidates {
		if freed >= needed {
			break
		}
		freed += a.evict(alloc, "pressure")
	}
	return freed
}

// RunGarbageCollection evicts every freeable allocation that passes ShouldFree
// and restarts the sweep interval. Emits MemoryCleanup when anything was freed.
func (a *Allocator) RunGarbageCollection() uint64 {
	now := a.clock.Now()
	freed := a.sweep(now, func(alloc *Allocation) bool { return evictable(alloc, now) }, "sweep")
	a.lastSweep = now
	a.sweeps++
	a.publishCleanup(freed)
	return freed
}

// ClearCache evicts every freeable temporary allocation (temporary tier or
// temporary type) regardless of age. Emits MemoryCleanup when anything was freed.
func (a *Allocator) ClearCache() uint64 {
	freed := a.sweep(a.clock.Now(), func(alloc *Allocation) bool {
		if !alloc.CanBeFreed || alloc.Priority == PriorityCritical {
			return false
		}
		return alloc.Priority == PriorityTemporary || alloc.Type == TypeTemporary
	}, "cache clear")
	a.publishCleanup(freed)
	return freed
}

// Update runs once per tick: the age backstop always, the periodic sweep when
// GCInterval has elapsed since the last one, then the pressure check.
// Returns the bytes freed this tick.
func (a *Allocator) Update() uint64 {
	now := a.clock.Now()
	var freed uint64
	if a.autoCleanup {
		freed += a.sweep(now, func(alloc *Allocation) bool { return pastBackstop(alloc, now) }, "backstop")
		if now.Sub(a.lastSweep) >= a.cfg.GCInterval {
			freed += a.sweep(now, func(alloc *Allocation) bool { return evictable(alloc, now) }, "sweep")
			a.lastSweep = now
			a.sweeps++
		}
		a.publishCleanup(freed)
	}
	if a.IsUnderPressure() && a.bus != nil {
		a.bus.Publish(governor.HighMemoryUsage{Usage: a.UsagePercentage(), Threshold: a.cfg.PressureThreshold, Unit: governor.MemoryUnitPercent})
	}
	return freed
}

// sweep evicts every allocation matching pred, in id order.
func (a *Allocator) sweep(now time.Time, pred func(*Allocation) bool, reason string) uint64 {
	ids := make([]string, 0, len(a.allocations))
	for id, alloc := range a.allocations {
		if pred(alloc) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	var freed uint64
	for _, id := range ids {
		freed += a.evict(a.allocations[id], reason)
	}
	return freed
}

func (a *Allocator) evict(alloc *Allocation, reason string) uint64 {
	if alloc.Priority == PriorityCritical {
		// unreachable through the policy; keeps the invariant local
		return 0
	}
	a.remove(alloc)
	a.totalEvictions++
	a.evictedBytes += alloc.Size
	logrus.Debugf("evicted %s (%s, %s, %.2f MB) by %s", alloc.ID, alloc.Type, alloc.Priority, governor.BytesToMB(alloc.Size), reason)
	return alloc.Size
}

func (a *Allocator) remove(alloc *Allocation) {
	delete(a.allocations, alloc.ID)
	a.current -= alloc.Size
}

func (a *Allocator) publishCleanup(freed uint64) {
	if freed == 0 {
		return
	}
	logrus.Infof("memory cleanup freed %.2f MB", governor.BytesToMB(freed))
	if a.bus != nil {
		a.bus.Publish(governor.MemoryCleanup{FreedMB: governor.BytesToMB(freed)})
	}
}

// CurrentUsage returns tracked bytes.
func (a *Allocator) CurrentUsage() uint64 { return a.current }

// PeakUsage returns the highest tracked bytes observed.
func (a *Allocator) PeakUsage() uint64 { return a.peak }

// Budget returns the advisory ceiling in bytes.
func (a *Allocator) Budget() uint64 { return a.cfg.BudgetBytes }

// UsagePercentage returns current usage as a percent of the budget.
func (a *Allocator) UsagePercentage() float64 {
	return float64(a.current) * 100 / float64(a.cfg.BudgetBytes)
}

// IsUnderPressure reports usage above the pressure threshold.
func (a *Allocator) IsUnderPressure() bool {
	return a.UsagePercentage() > a.cfg.PressureThreshold
}

// NeedsCleanup reports usage above the cleanup threshold.
func (a *Allocator) NeedsCleanup() bool {
	return a.UsagePercentage() > a.cfg.CleanupThreshold
}

// Snapshot returns the derived usage view.
func (a *Allocator) Snapshot() Snapshot {
	return Snapshot{
		CurrentBytes:    a.current,
		PeakBytes:       a.peak,
		BudgetBytes:     a.cfg.BudgetBytes,
		UsagePercentage: a.UsagePercentage(),
		Allocations:     len(a.allocations),
	}
}

// Statistics returns totals plus a per-type MB and per-tier count breakdown.
func (a *Allocator) Statistics() Statistics {
	stats := Statistics{
		UsageMB:            governor.BytesToMB(a.current),
		PeakMB:             governor.BytesToMB(a.peak),
		BudgetMB:           governor.BytesToMB(a.cfg.BudgetBytes),
		UsagePercentage:    a.UsagePercentage(),
		Allocations:        len(a.allocations),
		ByTypeMB:           make(map[AllocationType]float64),
		ByPriority:         make(map[Priority]int),
		TotalAllocations:   a.totalAllocations,
		TotalEvictions:     a.totalEvictions,
		EvictedMB:          governor.BytesToMB(a.evictedBytes),
		OverBudgetAdmitted: a.overBudget,
		Sweeps:             a.sweeps,
	}
	for _, alloc := range a.allocations {
		stats.ByTypeMB[alloc.Type] += governor.BytesToMB(alloc.Size)
		stats.ByPriority[alloc.Priority]++
	}
	return stats
}
