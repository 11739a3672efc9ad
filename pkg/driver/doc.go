// Package driver adapts the engine (pkg/store, pkg/txcontext, pkg/scheduler,
// pkg/cache) to an ABCI-style message pump: an ordered stream of
// BeginBlock/CheckTx/DeliverTx/EndBlock/Commit/Query messages driven by a
// Raft log that stands in for the consensus protocol proper, which this
// package deliberately does not implement.
//
// Engine is the driver's core: it owns the bbolt backing engine, the block
// buffered store, the scheduler, and the result cache, and exposes both the
// streaming ABCI-style surface and a batch ApplyBatch entry point for
// callers that already know the full canonical order of a block up front,
// so the scheduler's cross-transition parallelism actually has more than
// one transition to work with. The Raft-driven path, which orga apply also
// takes, uses the streaming surface one DeliverTx at a time.
package driver
