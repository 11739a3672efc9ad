// Package scheduler is the L3 layer: it takes a canonically ordered batch of
// transitions and runs them across a pool of virtual workers under axioms
// A1-A4, merging completed deltas into the block buffered store in strict
// canonical order regardless of execution completion order.
//
// The scheduler operates in epochs. Each epoch sweeps the remaining input
// queue once, assigning transitions to idle workers when their declared
// key-hints clear the axiom check against every currently busy worker, and
// pushing the rest onto a wait-queue. When no idle worker remains, or the
// queue is exhausted, the scheduler blocks until every dispatched transition
// completes, merges their deltas, then promotes the wait-queue and starts
// the next epoch.
//
// A transition with no KeyHint runs in discovery mode: by default it is
// treated as touching every key and is therefore serialized against the
// rest of its epoch. With Config.EnableSpeculativeDiscovery set, a
// discovery-mode transition is instead admitted optimistically alongside
// its epoch; once every job in the epoch finishes, its actual observed
// read/write sets are cross-checked against the rest, and on a real
// overlap the later transition in canonical order discards its delta and
// reschedules with its now-concrete sets, the same recovery a declared
// key-hint's drift takes. Either way, the concrete read/write sets
// observed at completion are the scheduler's only source for populating
// the result cache (pkg/cache).
package scheduler
