package optimizer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor"
)

// RuleSet is the YAML form of a list of rules:
//
//	rules:
//	  - name: low-fps
//	    priority: 100
//	    cooldown: 5s
//	    when:
//	      any:
//	        - fps_below: 30
//	        - frame_time_above_ms: 33
//	    action:
//	      type: decrease_quality
type RuleSet struct {
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec is one rule in a RuleSet.
type RuleSpec struct {
	Name     string        `yaml:"name"`
	Priority int           `yaml:"priority"`
	Cooldown time.Duration `yaml:"cooldown"`
	When     ConditionSpec `yaml:"when"`
	Action   ActionSpec    `yaml:"action"`
}

// ConditionSpec holds exactly one leaf threshold or one combinator.
type ConditionSpec struct {
	FPSBelow         *float64        `yaml:"fps_below,omitempty"`
	FPSAbove         *float64        `yaml:"fps_above,omitempty"`
	CPUAbove         *float64        `yaml:"cpu_above,omitempty"`
	GPUAbove         *float64        `yaml:"gpu_above,omitempty"`
	MemoryAboveMB    *float64        `yaml:"memory_above_mb,omitempty"`
	FrameTimeAboveMS *float64        `yaml:"frame_time_above_ms,omitempty"`
	All              []ConditionSpec `yaml:"all,omitempty"`
	Any              []ConditionSpec `yaml:"any,omitempty"`
}

// ActionSpec names an action kind and its parameters.
type ActionSpec struct {
	Type    string                 `yaml:"type"`
	Quality *governor.QualityLevel `yaml:"quality,omitempty"`
	Feature string                 `yaml:"feature,omitempty"`
	Enabled *bool                  `yaml:"enabled,omitempty"`
	Setting string                 `yaml:"setting,omitempty"`
	Value   *float64               `yaml:"value,omitempty"`
}

// LoadRules reads a rule set from a YAML file. Unknown fields are rejected.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	return ParseRules(bytes.NewReader(data))
}

// ParseRules decodes and converts a YAML rule set. Each rule is validated.
func ParseRules(r io.Reader) ([]Rule, error) {
	var set RuleSet
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&set); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	rules := make([]Rule, 0, len(set.Rules))
	seen := make(map[string]bool, len(set.Rules))
	for i, spec := range set.Rules {
		rule, err := spec.toRule()
		if err != nil {
			return nil, fmt.Errorf("rules[%d] %q: %w", i, spec.Name, err)
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rules[%d] %q: %w", i, spec.Name, err)
		}
		if seen[rule.Name] {
			return nil, fmt.Errorf("rules[%d]: duplicate rule name %q", i, rule.Name)
		}
		seen[rule.Name] = true
		rules = append(rules, rule)
	}
	return rules, nil
}

// MarshalRules renders rules in the RuleSet YAML form.
func MarshalRules(rules []Rule) ([]byte, error) {
	set := RuleSet{Rules: make([]RuleSpec, 0, len(rules))}
	for _, r := range rules {
		when, err := conditionToSpec(r.Condition)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		set.Rules = append(set.Rules, RuleSpec{
			Name:     r.Name,
			Priority: r.Priority,
			Cooldown: r.Cooldown,
			When:     when,
			Action:   actionToSpec(r.Action),
		})
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(set); err != nil {
		return nil, fmt.Errorf("encoding rules: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding rules: %w", err)
	}
	return buf.Bytes(), nil
}

func (s RuleSpec) toRule() (Rule, error) {
	cond, err := s.When.toCondition()
	if err != nil {
		return Rule{}, fmt.Errorf("when: %w", err)
	}
	action, err := s.Action.toAction()
	if err != nil {
		return Rule{}, fmt.Errorf("action: %w", err)
	}
	return Rule{
		Name:      s.Name,
		Condition: cond,
		Action:    action,
		Priority:  s.Priority,
		Cooldown:  s.Cooldown,
	}, nil
}

func (s ConditionSpec) toCondition() (Condition, error) {
	var found []Condition
	leaf := func(v *float64, mk func(float64) Condition) {
		if v != nil {
			found = append(found, mk(*v))
		}
	}
	leaf(s.FPSBelow, func(v float64) Condition { return FPSBelow{Threshold: v} })
	leaf(s.FPSAbove, func(v float64) Condition { return FPSAbove{Threshold: v} })
	leaf(s.CPUAbove, func(v float64) Condition { return CPUAbove{Threshold: v} })
	leaf(s.GPUAbove, func(v float64) Condition { return GPUAbove{Threshold: v} })
	leaf(s.MemoryAboveMB, func(v float64) Condition { return MemoryAbove{ThresholdMB: v} })
	leaf(s.FrameTimeAboveMS, func(v float64) Condition { return FrameTimeAbove{ThresholdMS: v} })

	if s.All != nil {
		subs, err := toConditions(s.All)
		if err != nil {
			return nil, fmt.Errorf("all: %w", err)
		}
		found = append(found, And(subs))
	}
	if s.Any != nil {
		subs, err := toConditions(s.Any)
		if err != nil {
			return nil, fmt.Errorf("any: %w", err)
		}
		found = append(found, Or(subs))
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("no condition given")
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("exactly one condition key expected, got %d; combine with all/any", len(found))
	}
}

func toConditions(specs []ConditionSpec) ([]Condition, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("empty combinator")
	}
	out := make([]Condition, 0, len(specs))
	for i, sub := range specs {
		c, err := sub.toCondition()
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s ActionSpec) toAction() (Action, error) {
	kind, err := ParseActionKind(s.Type)
	if err != nil {
		return Action{}, err
	}
	a := Action{Kind: kind, Feature: s.Feature, Setting: s.Setting}
	switch kind {
	case ActionSetQuality:
		if s.Quality == nil {
			return Action{}, fmt.Errorf("set_quality requires quality")
		}
		a.Quality = *s.Quality
	case ActionToggleFeature:
		if s.Enabled == nil {
			return Action{}, fmt.Errorf("toggle_feature requires enabled")
		}
		a.Enabled = *s.Enabled
	case ActionAdjustSetting:
		if s.Value == nil {
			return Action{}, fmt.Errorf("adjust_setting requires value")
		}
		a.Value = *s.Value
	}
	return a, nil
}

func conditionToSpec(c Condition) (ConditionSpec, error) {
	ptr := func(v float64) *float64 { return &v }
	switch c := c.(type) {
	case FPSBelow:
		return ConditionSpec{FPSBelow: ptr(c.Threshold)}, nil
	case FPSAbove:
		return ConditionSpec{FPSAbove: ptr(c.Threshold)}, nil
	case CPUAbove:
		return ConditionSpec{CPUAbove: ptr(c.Threshold)}, nil
	case GPUAbove:
		return ConditionSpec{GPUAbove: ptr(c.Threshold)}, nil
	case MemoryAbove:
		return ConditionSpec{MemoryAboveMB: ptr(c.ThresholdMB)}, nil
	case FrameTimeAbove:
		return ConditionSpec{FrameTimeAboveMS: ptr(c.ThresholdMS)}, nil
	case And:
		subs, err := conditionsToSpecs(c)
		return ConditionSpec{All: subs}, err
	case Or:
		subs, err := conditionsToSpecs(c)
		return ConditionSpec{Any: subs}, err
	}
	return ConditionSpec{}, fmt.Errorf("condition %T has no YAML form", c)
}

func conditionsToSpecs(conds []Condition) ([]ConditionSpec, error) {
	out := make([]ConditionSpec, 0, len(conds))
	for _, c := range conds {
		s, err := conditionToSpec(c)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func actionToSpec(a Action) ActionSpec {
	s := ActionSpec{Type: a.Kind.String()}
	switch a.Kind {
	case ActionSetQuality:
		q := a.Quality
		s.Quality = &q
	case ActionToggleFeature:
		enabled := a.Enabled
		s.Feature, s.Enabled = a.Feature, &enabled
	case ActionAdjustSetting:
		v := a.Value
		s.Setting, s.Value = a.Setting, &v
	}
	return s
}
