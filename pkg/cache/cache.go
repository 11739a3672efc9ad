package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/turbofish-org/orga/pkg/store"
	"github.com/turbofish-org/orga/pkg/types"
)

// absentHash is the value-hash recorded for a read that observed no value.
// It must not collide with sha256.Sum256 of any real payload's bytes; using
// a tag prefix no real value carries makes that collision only
// theoretically possible.
var absentHash = sha256.Sum256([]byte("orga:cache:absent-read\x00"))

func valueHash(value []byte, ok bool) [32]byte {
	if !ok {
		return absentHash
	}
	return sha256.Sum256(value)
}

// HashRead computes the value-hash for one observed read, for callers
// building ReadHashes to pass to Install.
func HashRead(value []byte, ok bool) [32]byte {
	return valueHash(value, ok)
}

// Entry is one cached transition result.
type Entry struct {
	ReadSet       types.KeySet
	ReadHashes    map[string][32]byte
	WriteSet      types.WriteSet
	WritesetBytes []byte
}

// Cache is the LRU-bounded fingerprint -> Entry table.
type Cache struct {
	lru *lru.Cache
}

// New builds a Cache holding at most capacity entries.
func New(capacity int) (*Cache, error) {
	if capacity < 1 {
		capacity = 1
	}
	l, err := lru.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Cache{lru: l}, nil
}

// Lookup returns the cached entry for fp, or ok=false on a miss.
func (c *Cache) Lookup(fp types.Fingerprint) (*Entry, bool) {
	v, ok := c.lru.Get(fp)
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

// ReplayValid reports whether entry's cached reads still match current:
// every cached read key must hash to the same value now as when the entry
// was installed.
func ReplayValid(entry *Entry, current store.Store) (bool, error) {
	for k, wantHash := range entry.ReadHashes {
		v, ok, err := current.Get([]byte(k))
		if err != nil {
			return false, err
		}
		if valueHash(v, ok) != wantHash {
			return false, nil
		}
	}
	return true, nil
}

// HashObservations hashes the values a transition observed at read time,
// producing the ReadHashes an Install call needs. Hashing observations
// rather than the post-execution store matters for keys the transition both
// read and wrote: replay validity compares against the pre-state the
// transition saw, not the state it left behind.
func HashObservations(obs map[string]types.ReadObservation) map[string][32]byte {
	hashes := make(map[string][32]byte, len(obs))
	for k, o := range obs {
		hashes[k] = valueHash(o.Value, o.Exists)
	}
	return hashes
}

// ComputeReadHashes hashes the current value of every key in reads,
// producing the ReadHashes an Install call needs when the caller still
// holds the pre-execution store the reads were served from.
func ComputeReadHashes(current store.Store, reads types.KeySet) (map[string][32]byte, error) {
	hashes := make(map[string][32]byte, len(reads))
	for k := range reads {
		v, ok, err := current.Get([]byte(k))
		if err != nil {
			return nil, err
		}
		hashes[k] = valueHash(v, ok)
	}
	return hashes, nil
}

// Install inserts or overwrites fp's entry after a successful execution.
func (c *Cache) Install(fp types.Fingerprint, readSet types.KeySet, readHashes map[string][32]byte, writeSet types.WriteSet) error {
	encoded, err := encodeWriteSet(writeSet)
	if err != nil {
		return fmt.Errorf("cache: encode writeset: %w", err)
	}
	c.lru.Add(fp, &Entry{
		ReadSet:       readSet,
		ReadHashes:    readHashes,
		WriteSet:      writeSet,
		WritesetBytes: encoded,
	})
	return nil
}

// Invalidate evicts fp's entry outright. A replay-hash mismatch should not
// call this: that only skips replay for the current execution, it does not
// evict the entry.
func (c *Cache) Invalidate(fp types.Fingerprint) {
	c.lru.Remove(fp)
}

// EvictForDeletedKeys drops every entry whose read-set or write-set
// references a key in deleted: an entry is evicted as soon as a key it
// cares about is deleted at commit time, rather than waiting for a replay
// attempt to notice the mismatch. Returns the evicted fingerprints for
// callers that want to publish cache-invalidated events.
func (c *Cache) EvictForDeletedKeys(deleted types.KeySet) []types.Fingerprint {
	if len(deleted) == 0 {
		return nil
	}
	var evicted []types.Fingerprint
	for _, k := range c.lru.Keys() {
		fp := k.(types.Fingerprint)
		v, ok := c.lru.Peek(fp)
		if !ok {
			continue
		}
		entry := v.(*Entry)
		if entry.ReadSet.Intersects(deleted) || entry.WriteSet.Keys().Intersects(deleted) {
			c.lru.Remove(fp)
			evicted = append(evicted, fp)
		}
	}
	return evicted
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	return c.lru.Len()
}

type encodedOp struct {
	Key      []byte
	IsDelete bool
	Value    []byte
}

func encodeWriteSet(ws types.WriteSet) ([]byte, error) {
	ops := make([]encodedOp, 0, len(ws))
	for _, kv := range ws.Sorted() {
		ops = append(ops, encodedOp{Key: kv.Key, IsDelete: kv.Op.IsDelete, Value: kv.Op.Value})
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ops); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeWriteSet reverses encodeWriteSet, for callers that only retained an
// entry's WritesetBytes.
func DecodeWriteSet(b []byte) (types.WriteSet, error) {
	var ops []encodedOp
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&ops); err != nil {
		return nil, err
	}
	ws := types.NewWriteSet()
	for _, op := range ops {
		if op.IsDelete {
			ws.Delete(op.Key)
		} else {
			ws.Put(op.Key, op.Value)
		}
	}
	return ws, nil
}
