package txcontext

import (
	"fmt"

	"github.com/turbofish-org/orga/pkg/engineerr"
	"github.com/turbofish-org/orga/pkg/store"
	"github.com/turbofish-org/orga/pkg/types"
)

// Context is the store handle transition logic executes against. It is
// single-owner: create one per transition, run the transition's Execute
// function against it, then call Finish.
type Context struct {
	buf      *store.BufferedStore
	parent   store.Store
	reads    types.KeySet
	writes   types.KeySet
	observed map[string]types.ReadObservation
	hint     *types.KeyHint
	gasUsed  uint64
	gasLimit uint64
}

// New creates a Context over parent. hint may be nil (discovery mode).
// gasLimit of 0 means unlimited.
func New(parent store.Store, hint *types.KeyHint, gasLimit uint64) *Context {
	return &Context{
		buf:      store.NewBufferedStore(parent),
		parent:   parent,
		reads:    types.NewKeySet(),
		writes:   types.NewKeySet(),
		observed: make(map[string]types.ReadObservation),
		hint:     hint,
		gasLimit: gasLimit,
	}
}

// Get implements the read half of the store contract, always recording key
// in the read-set — both hits and misses count. The first read of a key the
// transition has not yet written also records the observed value, the
// pre-state this transition's outcome depends on; reads of the
// transition's own writes are self-determined and observe nothing.
func (c *Context) Get(key []byte) ([]byte, bool, error) {
	c.reads.Add(key)
	selfRead := c.writes.Has(key)
	v, ok, err := c.buf.Get(key)
	if err != nil {
		return v, ok, err
	}
	if !selfRead {
		if _, seen := c.observed[string(key)]; !seen {
			c.observed[string(key)] = types.ReadObservation{
				Value:  append([]byte(nil), v...),
				Exists: ok,
			}
		}
	}
	return v, ok, nil
}

// Put implements the write half of the store contract, recording key in
// the write-set and buffering the value.
func (c *Context) Put(key, value []byte) error {
	c.writes.Add(key)
	return c.buf.Put(key, value)
}

// Delete implements the write half of the store contract. Deleting an
// absent key is idempotent but still claims the key in the write-set.
func (c *Context) Delete(key []byte) error {
	c.writes.Add(key)
	return c.buf.Delete(key)
}

// Range implements Store. Ranging does not (and cannot, at key-level
// granularity) add individual keys to the read-set; sub-key range tracking
// is out of scope here.
func (c *Context) Range(lo, hi []byte) (store.Iterator, error) {
	return c.buf.Range(lo, hi)
}

// Charge accounts gas used by the transition so far, returning
// engineerr.ErrOutOfBudget once the running total exceeds gasLimit (0 means
// unlimited). The caller aborts the transition on error.
func (c *Context) Charge(gas uint64) error {
	c.gasUsed += gas
	if c.gasLimit != 0 && c.gasUsed > c.gasLimit {
		return fmt.Errorf("%w: used %d of %d", engineerr.ErrOutOfBudget, c.gasUsed, c.gasLimit)
	}
	return nil
}

// Delta builds a types.WriteSet from the context's buffered operations so
// far. Callers (the result cache, mempool speculative execution) use it to
// capture the concrete writeset without waiting for Commit.
func (c *Context) Delta() types.WriteSet {
	ws := types.NewWriteSet()
	c.buf.Each(func(key []byte, deleted bool, value []byte) {
		if deleted {
			ws.Delete(key)
		} else {
			ws.Put(key, value)
		}
	})
	return ws
}

// GasUsed reports gas charged so far.
func (c *Context) GasUsed() uint64 { return c.gasUsed }

// ReadSet returns the keys observed so far (hits and misses).
func (c *Context) ReadSet() types.KeySet { return c.reads }

// WriteSet returns the keys written so far (puts and deletes).
func (c *Context) WriteSet() types.KeySet { return c.writes }

// ReadObservations returns, per key, the value observed at first read.
// Keys read only after the transition wrote them are absent: their reads
// carry no pre-state dependency. The result cache hashes these to decide
// replay validity later.
func (c *Context) ReadObservations() map[string]types.ReadObservation { return c.observed }

// Drift reports whether the observed read/write sets escaped the declared
// KeyHint. A nil hint never drifts: it already claims "all keys" for
// scheduling purposes.
func (c *Context) Drift() bool {
	if c.hint == nil {
		return false
	}
	for k := range c.reads {
		if !c.hint.Reads.Has([]byte(k)) && !c.hint.Writes.Has([]byte(k)) {
			return true
		}
	}
	for k := range c.writes {
		if !c.hint.Writes.Has([]byte(k)) {
			return true
		}
	}
	return false
}

// Finish completes the transition. On success the buffered delta merges
// into parent by key-wise overwrite; on failure the delta is discarded and
// parent is untouched. The read/write sets are returned either way.
//
// Finish is for standalone or serial callers. The scheduler, which must
// defer merges to a canonical-order epoch boundary rather than apply them
// as each worker happens to finish, instead runs the transition to
// completion and calls Commit or Discard itself once it is safe to do so.
func (c *Context) Finish(success bool) (types.KeySet, types.KeySet, error) {
	if success {
		if err := c.Commit(); err != nil {
			return c.reads, c.writes, err
		}
	} else {
		c.Discard()
	}
	return c.reads, c.writes, nil
}

// Commit merges the buffered delta into parent by key-wise overwrite. The
// caller is responsible for ensuring no concurrent writer touches parent.
func (c *Context) Commit() error {
	if err := c.buf.Commit(c.parent); err != nil {
		return fmt.Errorf("txcontext: commit: %w", err)
	}
	return nil
}

// Discard drops the buffered delta, leaving parent untouched.
func (c *Context) Discard() {
	c.buf.Discard()
}
