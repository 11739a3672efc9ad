package store

import (
	"bytes"
	"sort"
)

type deltaEntry struct {
	deleted bool
	value   []byte
}

// BufferedStore accumulates writes in memory over inner, answering reads
// from its own delta first and falling through to inner on a delta miss.
// It is the primary tool for transactional isolation: the transition
// context buffers here and either merges the delta into the parent on
// success or discards it on abort.
type BufferedStore struct {
	inner Store
	keys  [][]byte // sorted keys present in delta (put or tombstone)
	delta map[string]deltaEntry
}

// NewBufferedStore wraps inner with an empty delta.
func NewBufferedStore(inner Store) *BufferedStore {
	return &BufferedStore{inner: inner, delta: make(map[string]deltaEntry)}
}

func (b *BufferedStore) search(key []byte) (int, bool) {
	i := sort.Search(len(b.keys), func(i int) bool { return bytes.Compare(b.keys[i], key) >= 0 })
	found := i < len(b.keys) && bytes.Equal(b.keys[i], key)
	return i, found
}

// Get implements Store: a deletion in the delta masks inner, a put in the
// delta returns that value, and an absent delta key defers to inner.
func (b *BufferedStore) Get(key []byte) ([]byte, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	if e, ok := b.delta[string(key)]; ok {
		if e.deleted {
			return nil, false, nil
		}
		return e.value, true, nil
	}
	return b.inner.Get(key)
}

// Put implements Store, recording the write in the delta only.
func (b *BufferedStore) Put(key, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	b.set(key, deltaEntry{value: append([]byte(nil), value...)})
	return nil
}

// Delete implements Store, recording a tombstone in the delta only.
func (b *BufferedStore) Delete(key []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	b.set(key, deltaEntry{deleted: true})
	return nil
}

func (b *BufferedStore) set(key []byte, e deltaEntry) {
	k := string(key)
	if _, exists := b.delta[k]; !exists {
		i, _ := b.search(key)
		kc := append([]byte(nil), key...)
		b.keys = append(b.keys, nil)
		copy(b.keys[i+1:], b.keys[i:])
		b.keys[i] = kc
	}
	b.delta[k] = e
}

// Range implements Store, merging the delta and inner ordered streams in
// O(log n + k): the delta's sorted keys are already in memory, so the merge
// is a linear walk alongside inner's iterator.
func (b *BufferedStore) Range(lo, hi []byte) (Iterator, error) {
	innerIt, err := b.inner.Range(lo, hi)
	if err != nil {
		return nil, err
	}
	start := 0
	if lo != nil {
		start, _ = b.search(lo)
	}
	end := len(b.keys)
	if hi != nil {
		end, _ = b.search(hi)
	}
	if end < start {
		end = start
	}
	deltaKeys := make([][]byte, end-start)
	copy(deltaKeys, b.keys[start:end])
	return &bufferedIterator{delta: b.delta, deltaKeys: deltaKeys, inner: innerIt}, nil
}

// Commit applies the delta to parent by key-wise overwrite, replaying puts
// and deletes in sorted key order. It stops at the first error parent
// returns and passes it on; keys applied before that point keep their new
// values in parent. The in-memory overlays reject only empty keys, which a
// delta never holds, so over them Commit applies the whole delta.
func (b *BufferedStore) Commit(parent Store) error {
	for _, k := range b.keys {
		e := b.delta[string(k)]
		if e.deleted {
			if err := parent.Delete(k); err != nil {
				return err
			}
			continue
		}
		if err := parent.Put(k, e.value); err != nil {
			return err
		}
	}
	return nil
}

// Each calls fn for every key currently in the delta, in sorted order,
// exposing whether the operation is a delete and, if not, its value. It
// lets callers outside this package (pkg/txcontext builds a types.WriteSet
// from it) inspect the concrete delta without reimplementing delta
// bookkeeping.
func (b *BufferedStore) Each(fn func(key []byte, deleted bool, value []byte)) {
	for _, k := range b.keys {
		e := b.delta[string(k)]
		fn(k, e.deleted, e.value)
	}
}

// Discard clears the delta without touching parent.
func (b *BufferedStore) Discard() {
	b.keys = nil
	b.delta = make(map[string]deltaEntry)
}

// bufferedIterator merges the sorted delta keys with inner's ascending
// stream, preferring the delta on ties and skipping tombstones.
type bufferedIterator struct {
	delta     map[string]deltaEntry
	deltaKeys [][]byte
	di        int
	inner     Iterator
	innerOK   bool
	innerInit bool

	key   []byte
	value []byte
	err   error
}

func (it *bufferedIterator) advanceInner() {
	it.innerOK = it.inner.Next()
	it.innerInit = true
}

func (it *bufferedIterator) Next() bool {
	if !it.innerInit {
		it.advanceInner()
	}
	for {
		var dKey []byte
		hasDelta := it.di < len(it.deltaKeys)
		if hasDelta {
			dKey = it.deltaKeys[it.di]
		}

		switch {
		case !hasDelta && !it.innerOK:
			if it.err == nil {
				it.err = it.inner.Err()
			}
			return false
		case hasDelta && (!it.innerOK || bytes.Compare(dKey, it.inner.Key()) < 0):
			e := it.delta[string(dKey)]
			it.di++
			if e.deleted {
				continue
			}
			it.key, it.value = dKey, e.value
			return true
		case hasDelta && bytes.Equal(dKey, it.inner.Key()):
			e := it.delta[string(dKey)]
			it.di++
			it.advanceInner()
			if e.deleted {
				continue
			}
			it.key, it.value = dKey, e.value
			return true
		default: // inner strictly less, or no delta left
			k, v := append([]byte(nil), it.inner.Key()...), append([]byte(nil), it.inner.Value()...)
			it.advanceInner()
			it.key, it.value = k, v
			return true
		}
	}
}

func (it *bufferedIterator) Key() []byte   { return it.key }
func (it *bufferedIterator) Value() []byte { return it.value }
func (it *bufferedIterator) Err() error    { return it.err }
func (it *bufferedIterator) Close() error  { return it.inner.Close() }
