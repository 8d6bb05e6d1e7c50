package governor

import (
	"math"

	"golang.org/x/time/rate"
	"k8s.io/utils/clock"
)

// Observer receives dispatched events. Implementations run synchronously on the
// thread that drives the governor tick and must not call back into Dispatch.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) { f(e) }

// DefaultEventQueueCapacity bounds the number of undelivered events.
const DefaultEventQueueCapacity = 256

// EventBus collects events published during a tick and delivers them to the
// registered observers in a single dispatch step.
//
// The queue is bounded: when full, the oldest pending event is dropped and
// counted. An optional per-kind rate limit keeps level-triggered events from
// flooding observers.
type EventBus struct {
	clock     clock.PassiveClock
	observers []Observer
	pending   []Event
	capacity  int

	limit    rate.Limit
	burst    int
	limiters map[EventKind]*rate.Limiter

	published   int
	dropped     int
	rateLimited int
}

// NewEventBus creates a bus with the given queue capacity. A non-positive
// capacity uses DefaultEventQueueCapacity.
func NewEventBus(capacity int, clk clock.PassiveClock) *EventBus {
	if capacity <= 0 {
		capacity = DefaultEventQueueCapacity
	}
	return &EventBus{
		clock:    clk,
		capacity: capacity,
		pending:  make([]Event, 0, capacity),
		limit:    rate.Inf,
		limiters: make(map[EventKind]*rate.Limiter),
	}
}

// SetRateLimit caps delivery to perSecond events of each kind. Zero disables
// the limit; negative or non-finite values are rejected.
func (b *EventBus) SetRateLimit(perSecond float64) error {
	if perSecond < 0 || math.IsNaN(perSecond) || math.IsInf(perSecond, 0) {
		return NewConfigError("event_rate_limit", perSecond, "must be a finite non-negative number")
	}
	b.limiters = make(map[EventKind]*rate.Limiter)
	if perSecond == 0 {
		b.limit = rate.Inf
		b.burst = 0
		return nil
	}
	b.limit = rate.Limit(perSecond)
	b.burst = int(math.Max(1, math.Ceil(perSecond)))
	return nil
}

// Subscribe registers an observer. Observers are called in registration order.
func (b *EventBus) Subscribe(o Observer) {
	if o == nil {
		return
	}
	b.observers = append(b.observers, o)
}

// Publish queues an event for the next Dispatch. State-change events are
// never rate limited and never evicted on overflow; when the queue is full of
// them it grows past capacity.
func (b *EventBus) Publish(e Event) {
	if e == nil {
		return
	}
	stateChange := IsStateChange(e.Kind())
	if !stateChange && !b.allow(e.Kind()) {
		b.rateLimited++
		return
	}
	b.published++
	if len(b.pending) >= b.capacity {
		if i := b.oldestAdvisory(); i >= 0 {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			b.dropped++
		} else if !stateChange {
			b.dropped++
			return
		}
	}
	b.pending = append(b.pending, e)
}

// oldestAdvisory returns the index of the oldest pending advisory event, or -1.
func (b *EventBus) oldestAdvisory() int {
	for i, ev := range b.pending {
		if !IsStateChange(ev.Kind()) {
			return i
		}
	}
	return -1
}

func (b *EventBus) allow(kind EventKind) bool {
	if b.limit == rate.Inf {
		return true
	}
	lim, ok := b.limiters[kind]
	if !ok {
		lim = rate.NewLimiter(b.limit, b.burst)
		b.limiters[kind] = lim
	}
	return lim.AllowN(b.clock.Now(), 1)
}

// Dispatch delivers every pending event to every observer and empties the
// queue. Events published by observers during dispatch are delivered on the
// next call. Returns the number of events delivered.
func (b *EventBus) Dispatch() int {
	if len(b.pending) == 0 {
		return 0
	}
	events := b.pending
	b.pending = make([]Event, 0, b.capacity)
	for _, ev := range events {
		for _, o := range b.observers {
			o.OnEvent(ev)
		}
	}
	return len(events)
}

// Pending returns a copy of the undelivered events.
func (b *EventBus) Pending() []Event {
	out := make([]Event, len(b.pending))
	copy(out, b.pending)
	return out
}

// Published returns the number of events accepted into the queue.
func (b *EventBus) Published() int { return b.published }

// Dropped returns the number of events discarded because the queue was full.
func (b *EventBus) Dropped() int { return b.dropped }

// RateLimited returns the number of events suppressed by the rate limit.
func (b *EventBus) RateLimited() int { return b.rateLimited }
