package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testclock "k8s.io/utils/clock/testing"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
)

const mb = 1 << 20

func testConfig(budgetMB uint64) Config {
	return Config{
		BudgetBytes:       budgetMB * mb,
		PressureThreshold: 80,
		CleanupThreshold:  90,
		GCInterval:        30 * time.Second,
	}
}

func newTestAllocator(t *testing.T, cfg Config) (*Allocator, *testclock.FakeClock, *governor.EventBus) {
	t.Helper()
	clk := testclock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	bus := governor.NewEventBus(64, clk)
	a, err := NewAllocator(cfg, clk, bus)
	require.NoError(t, err)
	return a, clk, bus
}

func TestNewAllocator_RejectsInvalidConfig(t *testing.T) {
	clk := testclock.NewFakeClock(time.Now())
	tests := []struct {
		name  string
		mut   func(*Config)
		field string
	}{
		{"zero budget", func(c *Config) { c.BudgetBytes = 0 }, "memory_budget"},
		{"pressure over 100", func(c *Config) { c.PressureThreshold = 120 }, "pressure_threshold"},
		{"cleanup below pressure", func(c *Config) { c.CleanupThreshold = 50 }, "cleanup_threshold"},
		{"zero gc interval", func(c *Config) { c.GCInterval = 0 }, "gc_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(100)
			tt.mut(&cfg)
			_, err := NewAllocator(cfg, clk, nil)
			require.ErrorIs(t, err, governor.ErrInvalidConfig)
			var cerr *governor.ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestAllocator_AllocateDeallocate_RestoresUsage(t *testing.T) {
	// GIVEN an allocator with some existing usage
	a, _, _ := newTestAllocator(t, testConfig(100))
	require.NoError(t, a.Allocate("base", 10*mb, TypeTexture, PriorityHigh))
	before := a.CurrentUsage()

	// WHEN an allocation is made and released
	require.NoError(t, a.Allocate("sprite", 5*mb, TypeTexture, PriorityMedium))
	assert.Equal(t, before+5*mb, a.CurrentUsage())
	require.NoError(t, a.Deallocate("sprite"))

	// THEN usage returns to where it was and peak remembers the high mark
	assert.Equal(t, before, a.CurrentUsage())
	assert.Equal(t, 15*uint64(mb), a.PeakUsage())
	_, ok := a.Get("sprite")
	assert.False(t, ok)
}

func TestAllocator_Allocate_Validation(t *testing.T) {
	a, _, _ := newTestAllocator(t, testConfig(100))

	assert.Error(t, a.Allocate("", mb, TypeBuffer, PriorityLow))
	assert.Error(t, a.Allocate("zero", 0, TypeBuffer, PriorityLow))
	assert.Error(t, a.Allocate("bad", mb, TypeBuffer, Priority(99)))
	assert.Error(t, a.Allocate("bad-type", mb, AllocationType(99), PriorityLow))
	assert.Error(t, a.Allocate("neg-type", mb, AllocationType(-1), PriorityLow))
	assert.NotContains(t, a.Statistics().ByTypeMB, AllocationType(99))
	assert.Zero(t, a.Len())

	require.NoError(t, a.Allocate("dup", mb, TypeBuffer, PriorityLow))
	assert.ErrorIs(t, a.Allocate("dup", mb, TypeBuffer, PriorityLow), governor.ErrDuplicateAllocation)
	assert.Equal(t, 1, a.Len())
}

func TestAllocator_UnknownIDs_FailFast(t *testing.T) {
	a, _, _ := newTestAllocator(t, testConfig(100))

	assert.ErrorIs(t, a.Deallocate("ghost"), governor.ErrUnknownAllocation)
	assert.ErrorIs(t, a.Access("ghost"), governor.ErrUnknownAllocation)
	assert.ErrorIs(t, a.SetFreeable("ghost", true), governor.ErrUnknownAllocation)
}

func TestAllocator_Access_UpdatesLastAccess(t *testing.T) {
	a, clk, _ := newTestAllocator(t, testConfig(100))
	require.NoError(t, a.Allocate("music", 4*mb, TypeAudio, PriorityMedium))

	clk.Step(3 * time.Second)
	require.NoError(t, a.Access("music"))

	got, ok := a.Get("music")
	require.True(t, ok)
	assert.Equal(t, clk.Now(), got.LastAccess)
	assert.Equal(t, uint64(1), got.AccessCount)
	assert.Equal(t, 3*time.Second, got.Age(clk.Now()))
}

// The 100MB scenario: a low-priority 80MB block followed by a 30MB critical
// request that overflows the budget.
func TestAllocator_Allocate_EvictsEligibleLowerPriority(t *testing.T) {
	// GIVEN "a" created 70s ago and last accessed 15s ago
	a, clk, bus := newTestAllocator(t, testConfig(100))
	require.NoError(t, a.Allocate("a", 80*mb, TypeAsset, PriorityLow))
	clk.Step(55 * time.Second)
	require.NoError(t, a.Access("a"))
	clk.Step(15 * time.Second)

	// WHEN a critical 30MB allocation arrives
	require.NoError(t, a.Allocate("b", 30*mb, TypeSystem, PriorityCritical))

	// THEN "a" is evicted to make room
	assert.Equal(t, uint64(30*mb), a.CurrentUsage())
	_, ok := a.Get("a")
	assert.False(t, ok)
	assert.Contains(t, bus.Pending(), governor.Event(governor.MemoryCleanup{FreedMB: 80}))
	assert.Equal(t, uint64(1), a.Statistics().TotalEvictions)
}

func TestAllocator_Allocate_SoftBudgetKeepsRecentlyUsed(t *testing.T) {
	// GIVEN "a" created 70s ago but accessed 2s ago
	a, clk, _ := newTestAllocator(t, testConfig(100))
	require.NoError(t, a.Allocate("a", 80*mb, TypeAsset, PriorityLow))
	clk.Step(68 * time.Second)
	require.NoError(t, a.Access("a"))
	clk.Step(2 * time.Second)

	// WHEN a critical 30MB allocation arrives
	require.NoError(t, a.Allocate("b", 30*mb, TypeSystem, PriorityCritical))

	// THEN nothing is evicted and the budget is overshot
	assert.Equal(t, uint64(110*mb), a.CurrentUsage())
	assert.Equal(t, 2, a.Len())
	assert.InDelta(t, 110.0, a.UsagePercentage(), 1e-9)
	assert.Equal(t, uint64(1), a.Statistics().OverBudgetAdmitted)
}

func TestAllocator_Allocate_OnlyEvictsAtOrBelowRequestingPriority(t *testing.T) {
	a, clk, _ := newTestAllocator(t, testConfig(100))
	require.NoError(t, a.Allocate("high", 90*mb, TypeTexture, PriorityHigh))
	clk.Step(time.Hour)

	require.NoError(t, a.Allocate("low", 20*mb, TypeTexture, PriorityLow))

	_, ok := a.Get("high")
	assert.True(t, ok, "a low-priority request must not evict a high-priority block")
}

func TestAllocator_Allocate_EvictsLowestTierThenLeastRecent(t *testing.T) {
	// GIVEN three eligible blocks of different tiers and access times
	a, clk, _ := newTestAllocator(t, testConfig(100))
	require.NoError(t, a.Allocate("medium", 30*mb, TypeBuffer, PriorityMedium))
	require.NoError(t, a.Allocate("low-old", 30*mb, TypeBuffer, PriorityLow))
	require.NoError(t, a.Allocate("low-new", 30*mb, TypeBuffer, PriorityLow))
	clk.Step(200 * time.Second)
	require.NoError(t, a.Access("low-new"))
	clk.Step(50 * time.Second)

	// WHEN a high request needs 20MB of room
	require.NoError(t, a.Allocate("incoming", 30*mb, TypeBuffer, PriorityHigh))

	// THEN only the least recently used low block goes
	_, ok := a.Get("low-old")
	assert.False(t, ok)
	for _, id := range []string{"medium", "low-new", "incoming"} {
		_, ok := a.Get(id)
		assert.True(t, ok, id)
	}
}

func TestAllocator_StrictBudget_RejectsAndRecordsNothing(t *testing.T) {
	cfg := testConfig(100)
	cfg.StrictBudget = true
	a, _, _ := newTestAllocator(t, cfg)
	require.NoError(t, a.Allocate("a", 80*mb, TypeAsset, PriorityLow))

	err := a.Allocate("b", 30*mb, TypeSystem, PriorityCritical)

	assert.ErrorIs(t, err, governor.ErrBudgetExceeded)
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, uint64(80*mb), a.CurrentUsage())
}

func TestAllocator_CriticalNeverEvicted(t *testing.T) {
	// GIVEN a critical block that is ancient and idle, even with freeable forced on
	a, clk, _ := newTestAllocator(t, testConfig(100))
	require.NoError(t, a.Allocate("core", 50*mb, TypeSystem, PriorityCritical))
	require.NoError(t, a.SetFreeable("core", true))
	clk.Step(2 * time.Hour)

	// WHEN every reclamation path runs
	a.Update()
	a.RunGarbageCollection()
	a.ClearCache()
	a.FreeMemoryByPriority(PriorityCritical, 1<<40)
	require.NoError(t, a.Allocate("big", 80*mb, TypeSystem, PriorityCritical))

	// THEN the critical block survives
	got, ok := a.Get("core")
	require.True(t, ok)
	assert.False(t, got.CanBeFreed)
}

func TestAllocator_Update_PeriodicSweep(t *testing.T) {
	// GIVEN an idle temporary block
	a, clk, bus := newTestAllocator(t, testConfig(100))
	require.NoError(t, a.Allocate("scratch", 2*mb, TypeTemporary, PriorityTemporary))

	// WHEN less than gc_interval elapses
	clk.Step(10 * time.Second)
	assert.Zero(t, a.Update())
	assert.Equal(t, 1, a.Len())

	// THEN the sweep runs once gc_interval has elapsed
	clk.Step(20 * time.Second)
	assert.Equal(t, uint64(2*mb), a.Update())
	assert.Zero(t, a.Len())
	assert.Contains(t, bus.Pending(), governor.Event(governor.MemoryCleanup{FreedMB: 2}))
	assert.Equal(t, uint64(1), a.Statistics().Sweeps)
}

func TestAllocator_Update_BackstopIgnoresRecentAccess(t *testing.T) {
	// GIVEN a high block accessed just before the backstop age
	cfg := testConfig(100)
	cfg.GCInterval = time.Hour
	a, clk, _ := newTestAllocator(t, cfg)
	require.NoError(t, a.Allocate("atlas", 10*mb, TypeTexture, PriorityHigh))
	clk.Step(600 * time.Second)
	require.NoError(t, a.Access("atlas"))

	// WHEN exactly at the backstop age nothing happens
	assert.Zero(t, a.Update())

	// THEN one second later the backstop evicts it
	clk.Step(time.Second)
	assert.Equal(t, uint64(10*mb), a.Update())
	assert.Zero(t, a.Len())
}

func TestAllocator_Update_BackstopSparesPinned(t *testing.T) {
	cfg := testConfig(100)
	cfg.GCInterval = time.Hour
	a, clk, _ := newTestAllocator(t, cfg)
	require.NoError(t, a.Allocate("atlas", 10*mb, TypeTexture, PriorityHigh))
	require.NoError(t, a.SetFreeable("atlas", false))
	clk.Step(700 * time.Second)

	assert.Zero(t, a.Update())
	assert.Equal(t, 1, a.Len())
}

func TestAllocator_Update_PublishesPressure(t *testing.T) {
	a, _, bus := newTestAllocator(t, testConfig(100))
	require.NoError(t, a.Allocate("big", 85*mb, TypeAsset, PriorityHigh))

	a.Update()

	assert.True(t, a.IsUnderPressure())
	assert.False(t, a.NeedsCleanup())
	assert.Contains(t, bus.Pending(), governor.Event(governor.HighMemoryUsage{Usage: 85, Threshold: 80, Unit: governor.MemoryUnitPercent}))
}

func TestAllocator_SetAutoCleanup_DisablesUpdateSweeps(t *testing.T) {
	a, clk, _ := newTestAllocator(t, testConfig(100))
	require.NoError(t, a.Allocate("scratch", mb, TypeTemporary, PriorityTemporary))
	a.SetAutoCleanup(false)
	clk.Step(time.Hour)

	assert.Zero(t, a.Update())
	assert.Equal(t, uint64(mb), a.RunGarbageCollection())
}

func TestAllocator_ClearCache_IgnoresAge(t *testing.T) {
	a, _, _ := newTestAllocator(t, testConfig(100))
	require.NoError(t, a.Allocate("tmp-tier", mb, TypeBuffer, PriorityTemporary))
	require.NoError(t, a.Allocate("tmp-type", 2*mb, TypeTemporary, PriorityLow))
	require.NoError(t, a.Allocate("keep", 4*mb, TypeTexture, PriorityLow))

	freed := a.ClearCache()

	assert.Equal(t, uint64(3*mb), freed)
	assert.Equal(t, 1, a.Len())
}

func TestAllocator_Statistics_ByType(t *testing.T) {
	a, _, _ := newTestAllocator(t, testConfig(100))
	require.NoError(t, a.Allocate("t1", 3*mb, TypeTexture, PriorityHigh))
	require.NoError(t, a.Allocate("t2", 1*mb, TypeTexture, PriorityLow))
	require.NoError(t, a.Allocate("s1", 2*mb, TypeShader, PriorityCritical))

	stats := a.Statistics()

	assert.InDelta(t, 4.0, stats.ByTypeMB[TypeTexture], 1e-9)
	assert.InDelta(t, 2.0, stats.ByTypeMB[TypeShader], 1e-9)
	assert.Equal(t, 1, stats.ByPriority[PriorityCritical])
	assert.InDelta(t, 6.0, stats.UsageMB, 1e-9)
	assert.Equal(t, 3, stats.Allocations)

	snap := a.Snapshot()
	assert.Equal(t, uint64(6*mb), snap.CurrentBytes)
	assert.InDelta(t, 6.0, snap.UsagePercentage, 1e-9)
}

func TestAllocator_Setters_Validate(t *testing.T) {
	a, _, _ := newTestAllocator(t, testConfig(100))

	assert.ErrorIs(t, a.SetBudget(0), governor.ErrInvalidConfig)
	assert.ErrorIs(t, a.SetThresholds(95, 90), governor.ErrInvalidConfig)
	require.NoError(t, a.SetThresholds(50, 60))
	require.NoError(t, a.SetBudget(200*mb))

	require.NoError(t, a.Allocate("x", 110*mb, TypeAsset, PriorityLow))
	assert.True(t, a.IsUnderPressure())
	assert.InDelta(t, 55.0, a.UsagePercentage(), 1e-9)
}
