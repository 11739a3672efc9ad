// Package txcontext implements the transition context — the L2 overlay
// layer. A Context wraps a store.BufferedStore over the worker's current
// view of the block buffered store and records every key a transition
// touches. On Finish(true) its delta commits into the parent overlay by
// key-wise overwrite; on Finish(false) the delta is discarded and the
// tracker's read/write sets are still returned for scheduler diagnostics
// and, on a key-hint violation, for rescheduling with the observed sets.
package txcontext
