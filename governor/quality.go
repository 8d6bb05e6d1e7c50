package governor

import (
	"fmt"
	"strings"
)

// QualityLevel is the discrete rendering/simulation fidelity tier shared by all
// collaborators.
type QualityLevel int

const (
	QualityLow QualityLevel = iota
	QualityMedium
	QualityHigh
	QualityUltra
	// QualityCustom is a user-pinned level. It is reachable only by an explicit
	// set and is never the result of a step.
	QualityCustom
)

var qualityNames = map[QualityLevel]string{
	QualityLow:    "low",
	QualityMedium: "medium",
	QualityHigh:   "high",
	QualityUltra:  "ultra",
	QualityCustom: "custom",
}

// String returns the lower-case name used in config files and logs.
func (q QualityLevel) String() string {
	if name, ok := qualityNames[q]; ok {
		return name
	}
	return fmt.Sprintf("quality(%d)", int(q))
}

// IsValid reports whether q is one of the five defined levels.
func (q QualityLevel) IsValid() bool {
	_, ok := qualityNames[q]
	return ok
}

// Decrease steps one rung down the ladder, saturating at Low.
// Custom is pinned and returned unchanged.
func (q QualityLevel) Decrease() QualityLevel {
	switch {
	case q == QualityCustom:
		return q
	case q <= QualityLow:
		return QualityLow
	default:
		return q - 1
	}
}

// Increase steps one rung up the ladder, saturating at Ultra.
// Custom is pinned and returned unchanged.
func (q QualityLevel) Increase() QualityLevel {
	switch {
	case q == QualityCustom:
		return q
	case q >= QualityUltra:
		return QualityUltra
	default:
		return q + 1
	}
}

// ParseQualityLevel parses a case-insensitive level name.
func ParseQualityLevel(s string) (QualityLevel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for q, n := range qualityNames {
		if n == name {
			return q, nil
		}
	}
	return 0, fmt.Errorf("unknown quality level %q; valid: low, medium, high, ultra, custom", s)
}

// MarshalText implements encoding.TextMarshaler so levels serialize by name in
// YAML and environment variables.
func (q QualityLevel) MarshalText() ([]byte, error) {
	if !q.IsValid() {
		return nil, fmt.Errorf("invalid quality level %d", int(q))
	}
	return []byte(q.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *QualityLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseQualityLevel(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
