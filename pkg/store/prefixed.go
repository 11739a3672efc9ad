package store

// Prefixed transparently rewrites every key to prefix ∥ key before
// delegating to inner: for any sequence of operations, behavior is
// indistinguishable from the same operations against inner with keys
// manually prefixed.
type Prefixed struct {
	prefix []byte
	inner  Store
}

// NewPrefixed wraps inner so every key is namespaced under prefix.
func NewPrefixed(prefix []byte, inner Store) *Prefixed {
	return &Prefixed{prefix: append([]byte(nil), prefix...), inner: inner}
}

func (p *Prefixed) full(key []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(key))
	out = append(out, p.prefix...)
	out = append(out, key...)
	return out
}

// Get implements Store.
func (p *Prefixed) Get(key []byte) ([]byte, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	return p.inner.Get(p.full(key))
}

// Put implements Store.
func (p *Prefixed) Put(key, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return p.inner.Put(p.full(key), value)
}

// Delete implements Store.
func (p *Prefixed) Delete(key []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return p.inner.Delete(p.full(key))
}

// Range implements Store, returning keys with the prefix stripped back off.
func (p *Prefixed) Range(lo, hi []byte) (Iterator, error) {
	innerLo := p.full(lo)
	var innerHi []byte
	if hi == nil {
		// Upper-bound the scan at the end of this prefix's keyspace by
		// incrementing the prefix itself (prefix-successor).
		innerHi = prefixSuccessor(p.prefix)
	} else {
		innerHi = p.full(hi)
	}
	it, err := p.inner.Range(innerLo, innerHi)
	if err != nil {
		return nil, err
	}
	return &stripIterator{inner: it, n: len(p.prefix)}, nil
}

// prefixSuccessor returns the smallest key that sorts strictly after every
// key beginning with prefix, or nil if prefix is all 0xff (meaning "no
// upper bound").
func prefixSuccessor(prefix []byte) []byte {
	out := append([]byte(nil), prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}

type stripIterator struct {
	inner Iterator
	n     int
}

func (s *stripIterator) Next() bool { return s.inner.Next() }
func (s *stripIterator) Key() []byte {
	return s.inner.Key()[s.n:]
}
func (s *stripIterator) Value() []byte { return s.inner.Value() }
func (s *stripIterator) Err() error    { return s.inner.Err() }
func (s *stripIterator) Close() error  { return s.inner.Close() }
