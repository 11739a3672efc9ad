// Package cache implements the fingerprint-keyed result/replay cache.
// Each entry records a transition's read-set (with a per-key hash of the
// value observed at read time), its write-set, and the write-set's encoded
// bytes. A cached result may be replayed without re-executing the
// transition as long as every cached read key still hashes to the same
// value in the current buffered store; a mismatch invalidates the entry
// for this execution only, it is not evicted. The cache itself is
// size-bounded with LRU eviction (github.com/hashicorp/golang-lru).
package cache
