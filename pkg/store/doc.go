/*
Package store implements the layered key/value overlay stack that forms
the L0/L1 layers of the engine.

# Architecture

Every overlay implements the same four-method contract:

	┌────────────────────────── Store ───────────────────────────┐
	│  Get(key) (value []byte, ok bool, err error)                │
	│  Put(key, value []byte) error                               │
	│  Delete(key []byte) error                                   │
	│  Range(lo, hi []byte) (Iterator, error)                     │
	└───────────────────────────────────────────────────────────┘

Overlays compose by wrapping an inner Store:

	BufferedStore(inner)   — reads fall through to inner; writes
	                         accumulate in an in-memory delta until Commit.
	Prefixed(prefix, inner) — transparently rewrites every key to
	                         prefix ∥ key before delegating to inner.
	Snapshot(bolt tx)       — a read-only view pinned to one bbolt
	                         transaction (the consistent-snapshot operation
	                         the backing engine needs to provide).
	MapStore                — an in-memory ordered map, useful standalone
	                         and as the inner store in tests.
	NullStore                — always-empty, always-accepting; the base of
	                         an empty working state.

A *BoltStore (bolt.go) is the L0 backing engine adapter: go.etcd.io/bbolt
gives ordered byte keys, a single bucket namespace, and MVCC snapshots for
free, which is exactly the shape of "an opaque ordered key/value store
with a consistent-snapshot operation" the rest of the stack builds on.

# Invariants

A BufferedStore read is observationally equivalent to reading the delta
overlaid on inner; Prefixed is fully transparent; iteration merges ordered
streams respecting deletions in O(log n + k).

# Errors

Overlay operations return engineerr.ErrBackend only when the backing bbolt
engine surfaces I/O failure, and engineerr.ErrInvalidKey for empty keys.
Logical misses are not errors: Get returns ok=false.
*/
package store
