package memory

import (
	"fmt"
	"strings"
	"time"
)

// AllocationType tags what kind of resource an allocation backs.
type AllocationType int

const (
	TypeTexture AllocationType = iota
	TypeBuffer
	TypeShader
	TypeAudio
	TypeAsset
	TypeSystem
	TypeTemporary
)

var typeNames = []string{"texture", "buffer", "shader", "audio", "asset", "system", "temporary"}

// AllTypes lists every allocation type in declaration order.
var AllTypes = []AllocationType{TypeTexture, TypeBuffer, TypeShader, TypeAudio, TypeAsset, TypeSystem, TypeTemporary}

func (t AllocationType) String() string {
	if t.IsValid() {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// IsValid reports whether t is one of the defined types.
func (t AllocationType) IsValid() bool {
	return int(t) >= 0 && int(t) < len(typeNames)
}

// ParseAllocationType parses a lower-case type name.
func ParseAllocationType(s string) (AllocationType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range typeNames {
		if n == name {
			return AllocationType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown allocation type %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *AllocationType) UnmarshalText(text []byte) error {
	parsed, err := ParseAllocationType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Priority is the eviction tier of an allocation. Higher values are kept longer.
// The ladder is Critical > High > Medium > Low > Temporary.
type Priority int

const (
	PriorityTemporary Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
	// PriorityCritical allocations are never evicted.
	PriorityCritical
)

var priorityNames = []string{"temporary", "low", "medium", "high", "critical"}

func (p Priority) String() string {
	if int(p) >= 0 && int(p) < len(priorityNames) {
		return priorityNames[p]
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// IsValid reports whether p is one of the five tiers.
func (p Priority) IsValid() bool {
	return p >= PriorityTemporary && p <= PriorityCritical
}

// ParsePriority parses a lower-case tier name.
func ParsePriority(s string) (Priority, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range priorityNames {
		if n == name {
			return Priority(i), nil
		}
	}
	return 0, fmt.Errorf("unknown allocation priority %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Allocation is one tracked block of memory. Owned by the Allocator; callers
// receive copies.
type Allocation struct {
	ID          string
	Size        uint64 // bytes
	Type        AllocationType
	Priority    Priority
	CreatedAt   time.Time
	LastAccess  time.Time
	AccessCount uint64
	CanBeFreed  bool
}

// Age is the time since creation.
func (a *Allocation) Age(now time.Time) time.Duration {
	return now.Sub(a.CreatedAt)
}

// Idle is the time since the last access.
func (a *Allocation) Idle(now time.Time) time.Duration {
	return now.Sub(a.LastAccess)
}
