package governor

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is matched by every *ConfigError.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownTimer is returned when ending a timer that was never started.
	ErrUnknownTimer = errors.New("unknown timer")

	// ErrUnknownAllocation is returned by lookups of an allocation id that is
	// not tracked.
	ErrUnknownAllocation = errors.New("unknown allocation")

	// ErrDuplicateAllocation is returned when allocating an id that is already tracked.
	ErrDuplicateAllocation = errors.New("allocation already exists")

	// ErrBudgetExceeded is returned by a strict-budget allocator when eviction
	// cannot create enough headroom.
	ErrBudgetExceeded = errors.New("memory budget exceeded")

	// ErrUnknownRule is returned when removing or looking up a rule by a name
	// that is not registered.
	ErrUnknownRule = errors.New("unknown rule")
)

// ConfigError reports a configuration value rejected by a setter or by
// Config.Validate. Values are never clamped.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Reason, e.Value)
}

// Is lets errors.Is(err, ErrInvalidConfig) match any ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewConfigError builds a ConfigError.
func NewConfigError(field string, value any, reason string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}
