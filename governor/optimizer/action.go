package optimizer

import (
	"fmt"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
)

// ActionKind names what a rule does when it fires.
type ActionKind int

const (
	ActionDecreaseQuality ActionKind = iota
	ActionIncreaseQuality
	ActionSetQuality
	ActionToggleFeature
	ActionAdjustSetting
	ActionRunGarbageCollection
	ActionClearCache
)

var actionKindNames = map[ActionKind]string{
	ActionDecreaseQuality:      "decrease_quality",
	ActionIncreaseQuality:      "increase_quality",
	ActionSetQuality:           "set_quality",
	ActionToggleFeature:        "toggle_feature",
	ActionAdjustSetting:        "adjust_setting",
	ActionRunGarbageCollection: "run_garbage_collection",
	ActionClearCache:           "clear_cache",
}

func (k ActionKind) String() string {
	if s, ok := actionKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// ParseActionKind parses the snake_case name of an action kind.
func ParseActionKind(s string) (ActionKind, error) {
	for k, name := range actionKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// Estimated impact of each action on frame rate, as a fraction. These are
// fixed approximations recorded for telemetry, not measurements.
const (
	ImpactDecreaseQuality      = 0.20
	ImpactIncreaseQuality      = -0.10
	ImpactSetQuality           = 0.10
	ImpactDisableFeature       = 0.05
	ImpactEnableFeature        = -0.05
	ImpactAdjustSetting        = 0.05
	ImpactRunGarbageCollection = 0.05
	ImpactClearCache           = 0.03
)

// Action is the effect of a rule. Only the fields relevant to Kind are used.
type Action struct {
	Kind    ActionKind
	Quality governor.QualityLevel // ActionSetQuality
	Feature string                // ActionToggleFeature
	Enabled bool                  // ActionToggleFeature
	Setting string                // ActionAdjustSetting
	Value   float64               // ActionAdjustSetting
}

func DecreaseQuality() Action { return Action{Kind: ActionDecreaseQuality} }
func IncreaseQuality() Action { return Action{Kind: ActionIncreaseQuality} }

func SetQuality(q governor.QualityLevel) Action {
	return Action{Kind: ActionSetQuality, Quality: q}
}

func ToggleFeature(name string, enabled bool) Action {
	return Action{Kind: ActionToggleFeature, Feature: name, Enabled: enabled}
}

func AdjustSetting(name string, value float64) Action {
	return Action{Kind: ActionAdjustSetting, Setting: name, Value: value}
}

func RunGarbageCollection() Action { return Action{Kind: ActionRunGarbageCollection} }
func ClearCache() Action           { return Action{Kind: ActionClearCache} }

// Impact returns the heuristic impact estimate for the action.
func (a Action) Impact() float64 {
	switch a.Kind {
	case ActionDecreaseQuality:
		return ImpactDecreaseQuality
	case ActionIncreaseQuality:
		return ImpactIncreaseQuality
	case ActionSetQuality:
		return ImpactSetQuality
	case ActionToggleFeature:
		if a.Enabled {
			return ImpactEnableFeature
		}
		return ImpactDisableFeature
	case ActionAdjustSetting:
		return ImpactAdjustSetting
	case ActionRunGarbageCollection:
		return ImpactRunGarbageCollection
	case ActionClearCache:
		return ImpactClearCache
	}
	return 0
}

func (a Action) String() string {
	switch a.Kind {
	case ActionSetQuality:
		return fmt.Sprintf("set quality to %s", a.Quality)
	case ActionToggleFeature:
		if a.Enabled {
			return fmt.Sprintf("enable feature %s", a.Feature)
		}
		return fmt.Sprintf("disable feature %s", a.Feature)
	case ActionAdjustSetting:
		return fmt.Sprintf("set %s to %g", a.Setting, a.Value)
	case ActionDecreaseQuality:
		return "decrease quality"
	case ActionIncreaseQuality:
		return "increase quality"
	case ActionRunGarbageCollection:
		return "run garbage collection"
	case ActionClearCache:
		return "clear cache"
	}
	return a.Kind.String()
}

func (a Action) validate() error {
	if _, ok := actionKindNames[a.Kind]; !ok {
		return fmt.Errorf("unknown action kind %d", int(a.Kind))
	}
	switch a.Kind {
	case ActionSetQuality:
		if !a.Quality.IsValid() {
			return fmt.Errorf("set_quality: invalid level %d", int(a.Quality))
		}
	case ActionToggleFeature:
		if a.Feature == "" {
			return fmt.Errorf("toggle_feature: empty feature name")
		}
	case ActionAdjustSetting:
		if a.Setting == "" {
			return fmt.Errorf("adjust_setting: empty setting name")
		}
	}
	return nil
}
