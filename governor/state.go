package governor

import (
	"fmt"
	"maps"
)

// State is the caller-owned governor state shared by all components.
//
// The quality level and the feature/setting tables are written only by
// optimizer actions and read by everyone else. State publishes a
// QualityLevelChanged event for every effective quality change.
type State struct {
	quality  QualityLevel
	features map[string]bool
	settings map[string]float64
	bus      *EventBus

	qualityChanges int
}

// NewState creates a State at the given initial quality. bus may be nil.
func NewState(initial QualityLevel, bus *EventBus) *State {
	return &State{
		quality:  initial,
		features: make(map[string]bool),
		settings: make(map[string]float64),
		bus:      bus,
	}
}

// Quality returns the current quality level.
func (s *State) Quality() QualityLevel {
	return s.quality
}

// SetQuality moves to q. Setting the current level is a no-op and emits nothing.
func (s *State) SetQuality(q QualityLevel) error {
	if !q.IsValid() {
		return fmt.Errorf("set quality: invalid level %d", int(q))
	}
	if q == s.quality {
		return nil
	}
	from := s.quality
	s.quality = q
	s.qualityChanges++
	if s.bus != nil {
		s.bus.Publish(QualityLevelChanged{From: from, To: q})
	}
	return nil
}

// QualityChanges returns how many effective quality changes have happened.
func (s *State) QualityChanges() int {
	return s.qualityChanges
}

// SetFeature records a feature toggle for collaborators to read.
func (s *State) SetFeature(name string, enabled bool) {
	s.features[name] = enabled
}

// Feature returns the recorded toggle for name and whether one exists.
func (s *State) Feature(name string) (enabled bool, ok bool) {
	enabled, ok = s.features[name]
	return enabled, ok
}

// Features returns a copy of the feature table.
func (s *State) Features() map[string]bool {
	return maps.Clone(s.features)
}

// SetSetting records a parameterized setting for collaborators to read.
func (s *State) SetSetting(name string, value float64) {
	s.settings[name] = value
}

// Setting returns the recorded value for name and whether one exists.
func (s *State) Setting(name string) (value float64, ok bool) {
	value, ok = s.settings[name]
	return value, ok
}

// Settings returns a copy of the settings table.
func (s *State) Settings() map[string]float64 {
	return maps.Clone(s.settings)
}
