// Package optimizer is the adaptive quality rule engine.
//
// On a fixed cadence the optimizer walks its rules in priority order, skips
// those still cooling down, and applies the action of every rule whose
// condition holds against the latest metrics snapshot. Each firing is
// recorded in a bounded trace.History and published as OptimizationApplied.
package optimizer

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/trace"
)

// Target is the state the optimizer mutates. *governor.State implements it.
type Target interface {
	Quality() governor.QualityLevel
	SetQuality(q governor.QualityLevel) error
	SetFeature(name string, enabled bool)
	SetSetting(name string, value float64)
}

// Maintainer performs memory maintenance actions. *memory.Allocator
// implements it. Both methods return the bytes freed.
type Maintainer interface {
	RunGarbageCollection() uint64
	ClearCache() uint64
}

// Config holds the optimizer parameters.
type Config struct {
	Interval        time.Duration
	HistoryCapacity int // non-positive means trace.DefaultCapacity
}

// ConfigFrom extracts the optimizer parameters from a governor config.
func ConfigFrom(c governor.Config) Config {
	return Config{Interval: c.OptimizationInterval}
}

// Optimizer evaluates rules against metrics. Not safe for concurrent use.
type Optimizer struct {
	interval time.Duration
	clock    clock.PassiveClock
	target   Target
	maint    Maintainer
	bus      *governor.EventBus

	rules   []*Rule
	history *trace.History

	lastRun time.Time
	ran     bool
	newID   func() string
}

// New returns an optimizer with no rules. maint and bus may be nil; without a
// Maintainer, memory actions are recorded but free nothing.
func New(cfg Config, clk clock.PassiveClock, target Target, maint Maintainer, bus *governor.EventBus) (*Optimizer, error) {
	if cfg.Interval <= 0 {
		return nil, governor.NewConfigError("optimization_interval", cfg.Interval, "must be positive")
	}
	if target == nil {
		return nil, fmt.Errorf("new optimizer: nil target")
	}
	return &Optimizer{
		interval: cfg.Interval,
		clock:    clk,
		target:   target,
		maint:    maint,
		bus:      bus,
		history:  trace.NewHistory(cfg.HistoryCapacity),
		newID:    uuid.NewString,
	}, nil
}

// AddRule validates r and inserts it. Rule names are unique.
func (o *Optimizer) AddRule(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	for _, existing := range o.rules {
		if existing.Name == r.Name {
			return governor.NewConfigError("rule.name", r.Name, "duplicate rule name")
		}
	}
	r.lastApplied, r.applied = time.Time{}, false
	o.rules = append(o.rules, &r)
	sort.SliceStable(o.rules, func(i, j int) bool {
		return o.rules[i].Priority > o.rules[j].Priority
	})
	return nil
}

// AddRules adds each rule in order and stops at the first error.
func (o *Optimizer) AddRules(rules []Rule) error {
	for _, r := range rules {
		if err := o.AddRule(r); err != nil {
			return fmt.Errorf("adding rule %q: %w", r.Name, err)
		}
	}
	return nil
}

// RemoveRule deletes the named rule.
func (o *Optimizer) RemoveRule(name string) error {
	for i, r := range o.rules {
		if r.Name == name {
			o.rules = append(o.rules[:i], o.rules[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove rule %q: %w", name, governor.ErrUnknownRule)
}

// Rules returns copies of the rules in evaluation order.
func (o *Optimizer) Rules() []Rule {
	out := make([]Rule, len(o.rules))
	for i, r := range o.rules {
		out[i] = *r
	}
	return out
}

// Rule returns a copy of the named rule.
func (o *Optimizer) Rule(name string) (Rule, bool) {
	for _, r := range o.rules {
		if r.Name == name {
			return *r, true
		}
	}
	return Rule{}, false
}

// History returns the audit history.
func (o *Optimizer) History() *trace.History { return o.history }

// Update is called every tick. It stamps the fps of m as the after value of
// records from the previous evaluation, then evaluates the rules if the
// interval has elapsed. Returns the records created by this call.
func (o *Optimizer) Update(m governor.PerformanceMetrics) []trace.OptimizationRecord {
	o.history.FillFPSAfter(m.FPS)

	now := o.clock.Now()
	if o.ran && now.Sub(o.lastRun) < o.interval {
		return nil
	}
	o.lastRun, o.ran = now, true
	return o.Evaluate(m)
}

// Evaluate runs one pass over the rules immediately, ignoring the interval
// but not the per-rule cooldowns.
func (o *Optimizer) Evaluate(m governor.PerformanceMetrics) []trace.OptimizationRecord {
	now := o.clock.Now()
	var applied []trace.OptimizationRecord
	for _, r := range o.rules {
		if r.coolingDown(now) {
			continue
		}
		if !r.Condition.Evaluate(m) {
			continue
		}
		before := o.target.Quality()
		if err := o.apply(r.Action); err != nil {
			logrus.Warnf("optimizer rule %s: %v", r.Name, err)
			continue
		}
		r.lastApplied, r.applied = now, true

		rec := trace.OptimizationRecord{
			ID:            o.newID(),
			Timestamp:     now,
			Rule:          r.Name,
			Action:        r.Action.String(),
			Impact:        r.Action.Impact(),
			QualityBefore: before,
			QualityAfter:  o.target.Quality(),
			FPSBefore:     m.FPS,
		}
		o.history.Record(rec)
		applied = append(applied, rec)
		logrus.Debugf("optimizer rule %s fired (%s): %s, quality %s -> %s",
			r.Name, r.Condition, rec.Action, rec.QualityBefore, rec.QualityAfter)
		if o.bus != nil {
			o.bus.Publish(governor.OptimizationApplied{Optimization: r.Name, Impact: rec.Impact})
		}
	}
	return applied
}

func (o *Optimizer) apply(a Action) error {
	switch a.Kind {
	case ActionDecreaseQuality:
		return o.target.SetQuality(o.target.Quality().Decrease())
	case ActionIncreaseQuality:
		return o.target.SetQuality(o.target.Quality().Increase())
	case ActionSetQuality:
		return o.target.SetQuality(a.Quality)
	case ActionToggleFeature:
		o.target.SetFeature(a.Feature, a.Enabled)
	case ActionAdjustSetting:
		o.target.SetSetting(a.Setting, a.Value)
	case ActionRunGarbageCollection:
		if o.maint != nil {
			freed := o.maint.RunGarbageCollection()
			logrus.Debugf("optimizer garbage collection freed %.2f MB", governor.BytesToMB(freed))
		}
	case ActionClearCache:
		if o.maint != nil {
			freed := o.maint.ClearCache()
			logrus.Debugf("optimizer cache clear freed %.2f MB", governor.BytesToMB(freed))
		}
	default:
		return fmt.Errorf("unknown action kind %d", int(a.Kind))
	}
	return nil
}

// ResetCooldowns lets every rule fire again immediately.
func (o *Optimizer) ResetCooldowns() {
	for _, r := range o.rules {
		r.lastApplied, r.applied = time.Time{}, false
	}
}
