// Package governor provides the shared vocabulary of the adaptive performance
// governor: quality levels, the caller-owned governor state, the event stream,
// configuration, and the per-tick performance snapshot.
//
// # Reading Guide
//
// Start with these files:
//   - quality.go: the QualityLevel ladder and its saturating step functions
//   - state.go: State, the single owner of the current quality level and the
//     feature/setting tables that optimizer actions write
//   - bus.go: EventBus, a bounded queue of typed events dispatched once per tick
//
// # Architecture
//
// The components live in sub-packages and depend only on this package:
//   - governor/metrics/: frame, cpu, gpu and memory sampling, counters and timers
//   - governor/memory/: budgeted allocation tracking with priority-based eviction
//   - governor/pacing/: frame pacing, stability scoring and quality advice
//   - governor/optimizer/: the rule engine that drives quality transitions
//   - governor/trace/: the bounded optimization audit history
//   - governor/engine/: the Governor that runs one tick across all components
//   - governor/workload/: synthetic frame-time scenarios for simulation
//
// Nothing here is safe for concurrent use. A Governor is owned by the caller
// that drives the game loop and all state is mutated synchronously per tick.
package governor
