package store

import (
	"fmt"

	"github.com/turbofish-org/orga/pkg/engineerr"
)

// Store is the contract every overlay in the stack implements. A Store
// handle is single-owner within one transition: it is never shared across
// goroutines concurrently.
type Store interface {
	// Get returns the value for key and ok=true, or ok=false if key is
	// absent. A zero-length value is legal and distinct from absence.
	Get(key []byte) (value []byte, ok bool, err error)
	// Put sets key to value, creating or overwriting it.
	Put(key, value []byte) error
	// Delete removes key. Deleting an absent key is idempotent and not an
	// error.
	Delete(key []byte) error
	// Range returns an ascending iterator over [lo, hi). A nil lo starts at
	// the first key; a nil hi runs to the last key.
	Range(lo, hi []byte) (Iterator, error)
}

// Iterator walks a Range result in ascending key order. Callers must call
// Close when done, even after an error or early exit.
type Iterator interface {
	// Next advances the iterator and reports whether a new (key, value)
	// pair is available.
	Next() bool
	// Key returns the current key. Valid only after a true Next.
	Key() []byte
	// Value returns the current value. Valid only after a true Next.
	Value() []byte
	// Err returns the first error encountered during iteration, if any.
	Err() error
	// Close releases resources held by the iterator.
	Close() error
}

func checkKey(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", engineerr.ErrInvalidKey)
	}
	return nil
}
