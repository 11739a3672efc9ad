// Package engineerr defines the engine's error taxonomy. Every
// sentinel is wrapped with fmt.Errorf("...: %w", cause) at the call site so
// callers can errors.Is/errors.As against the sentinels below while still
// seeing the underlying cause in the message.
package engineerr

import "errors"

// Store errors.
var (
	// ErrBackend marks an I/O or backend failure surfaced by the backing
	// engine. It propagates and may abort a commit.
	ErrBackend = errors.New("store: backend failure")
	// ErrInvalidKey marks an empty key. Overlay operations reject these
	// before ever reaching the backing engine.
	ErrInvalidKey = errors.New("store: invalid key")
)

// Execution errors.
var (
	// ErrOutOfBudget marks a transition that exceeded its gas ceiling.
	ErrOutOfBudget = errors.New("exec: out of budget")
	// ErrApplication marks a transition explicitly rejected by application
	// logic; the rejection code and message travel separately in
	// types.ExecResult.
	ErrApplication = errors.New("exec: rejected by application")
)

// Scheduler errors.
var (
	// ErrKeyHintViolation marks a transition whose observed reads or writes
	// escaped its declared KeyHint. The scheduler discards its delta and
	// reschedules with the observed sets.
	ErrKeyHintViolation = errors.New("sched: key-hint violation")
	// ErrDeterminismViolation marks a debug-only divergence between two
	// executions of the same fingerprint against the same read-value
	// hashes. It is fatal.
	ErrDeterminismViolation = errors.New("sched: determinism violation")
)

// ErrCommit marks a failure during the atomic flush to the backing engine.
// It is fatal at the block level: the caller must return to the last
// committed snapshot.
var ErrCommit = errors.New("commit: flush failed")
