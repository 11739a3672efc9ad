package store

import (
	"bytes"
	"sort"
)

// MapStore is an in-memory ordered map. Keys are kept in a sorted slice so
// Range can binary-search into position instead of scanning; gets and puts
// pay an O(log n) search plus, for puts on a new key, an O(n) insert. This
// trades write throughput for ordered iteration, the engine's only
// hand-rolled data structure (see DESIGN.md).
type MapStore struct {
	keys   [][]byte
	values map[string][]byte
}

// NewMapStore returns an empty MapStore.
func NewMapStore() *MapStore {
	return &MapStore{values: make(map[string][]byte)}
}

func (m *MapStore) search(key []byte) (int, bool) {
	i := sort.Search(len(m.keys), func(i int) bool { return bytes.Compare(m.keys[i], key) >= 0 })
	found := i < len(m.keys) && bytes.Equal(m.keys[i], key)
	return i, found
}

// Get implements Store.
func (m *MapStore) Get(key []byte) ([]byte, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	v, ok := m.values[string(key)]
	return v, ok, nil
}

// Put implements Store.
func (m *MapStore) Put(key, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	i, found := m.search(key)
	if !found {
		k := append([]byte(nil), key...)
		m.keys = append(m.keys, nil)
		copy(m.keys[i+1:], m.keys[i:])
		m.keys[i] = k
	}
	m.values[string(key)] = append([]byte(nil), value...)
	return nil
}

// Delete implements Store.
func (m *MapStore) Delete(key []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	i, found := m.search(key)
	if found {
		copy(m.keys[i:], m.keys[i+1:])
		m.keys = m.keys[:len(m.keys)-1]
		delete(m.values, string(key))
	}
	return nil
}

// Has reports whether key has an entry.
func (m *MapStore) Has(key []byte) bool {
	_, ok := m.values[string(key)]
	return ok
}

// Range implements Store.
func (m *MapStore) Range(lo, hi []byte) (Iterator, error) {
	start := 0
	if lo != nil {
		start, _ = m.search(lo)
	}
	end := len(m.keys)
	if hi != nil {
		end, _ = m.search(hi)
	}
	if end < start {
		end = start
	}
	keys := make([][]byte, end-start)
	copy(keys, m.keys[start:end])
	return &mapIterator{store: m, keys: keys, pos: -1}, nil
}

type mapIterator struct {
	store *MapStore
	keys  [][]byte
	pos   int
}

func (it *mapIterator) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

func (it *mapIterator) Key() []byte { return it.keys[it.pos] }

func (it *mapIterator) Value() []byte { return it.store.values[string(it.keys[it.pos])] }

func (it *mapIterator) Err() error { return nil }

func (it *mapIterator) Close() error { return nil }
