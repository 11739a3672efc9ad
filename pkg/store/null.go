package store

// NullStore is an always-empty overlay: every Get misses, every Range is
// empty, and Put/Delete are accepted but discarded. It is the base of an
// empty working state and a convenient inner for tests that only exercise
// one overlay in isolation.
type NullStore struct{}

// Get always misses.
func (NullStore) Get(key []byte) ([]byte, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	return nil, false, nil
}

// Put discards the write.
func (NullStore) Put(key, value []byte) error { return checkKey(key) }

// Delete discards the delete.
func (NullStore) Delete(key []byte) error { return checkKey(key) }

// Range always returns an empty iterator.
func (NullStore) Range(lo, hi []byte) (Iterator, error) {
	return &nullIterator{}, nil
}

type nullIterator struct{}

func (nullIterator) Next() bool    { return false }
func (nullIterator) Key() []byte   { return nil }
func (nullIterator) Value() []byte { return nil }
func (nullIterator) Err() error    { return nil }
func (nullIterator) Close() error  { return nil }
