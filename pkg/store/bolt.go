package store

import (
	"fmt"

	"github.com/turbofish-org/orga/pkg/engineerr"
	"github.com/turbofish-org/orga/pkg/metrics"
	bolt "go.etcd.io/bbolt"
)

var rootBucket = []byte("orga")

// BoltStore is the L0 backing engine adapter: a single bbolt bucket exposed
// through the Store contract. bbolt's Cursor walks keys in byte-sorted
// order for free, and a read-only Tx is exactly the consistent-snapshot
// operation the backing engine needs (see Snapshot). Where a typed store
// might open one bucket per collection, this engine has a single untyped
// byte-key/byte-value namespace, so there is exactly one bucket.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if absent) the bbolt file at path and
// ensures the root bucket exists.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", engineerr.ErrBackend, path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create root bucket: %v", engineerr.ErrBackend, err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", engineerr.ErrBackend, err)
	}
	return nil
}

// Get implements Store.
func (s *BoltStore) Get(key []byte) ([]byte, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	metrics.StoreOpsTotal.WithLabelValues("get").Inc()
	var value []byte
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(rootBucket).Get(key)
		if v != nil {
			found = true
			value = make([]byte, len(v))
			copy(value, v)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: get: %v", engineerr.ErrBackend, err)
	}
	return value, found, nil
}

// Put implements Store.
func (s *BoltStore) Put(key, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	metrics.StoreOpsTotal.WithLabelValues("put").Inc()
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Put(key, value)
	})
	if err != nil {
		return fmt.Errorf("%w: put: %v", engineerr.ErrBackend, err)
	}
	return nil
}

// Delete implements Store.
func (s *BoltStore) Delete(key []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	metrics.StoreOpsTotal.WithLabelValues("delete").Inc()
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Delete(key)
	})
	if err != nil {
		return fmt.Errorf("%w: delete: %v", engineerr.ErrBackend, err)
	}
	return nil
}

// Range implements Store.
func (s *BoltStore) Range(lo, hi []byte) (Iterator, error) {
	metrics.StoreOpsTotal.WithLabelValues("range").Inc()
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("%w: begin range tx: %v", engineerr.ErrBackend, err)
	}
	return newBoltIterator(tx, rootBucket, lo, hi, true), nil
}

// CommitBatch runs apply inside a single atomic bbolt read-write
// transaction and reports success; Commit reaches it through CommitDelta to
// flush the block buffered store to the backing engine as one batch.
func (s *BoltStore) CommitBatch(apply func(tx *bolt.Tx) error) error {
	metrics.StoreOpsTotal.WithLabelValues("commit").Inc()
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return apply(tx)
	}); err != nil {
		return fmt.Errorf("%w: %v", engineerr.ErrCommit, err)
	}
	return nil
}

// CommitDelta applies delta's buffered operations to the backing engine in
// a single atomic bbolt transaction.
func (s *BoltStore) CommitDelta(delta *BufferedStore) error {
	return s.CommitBatch(func(tx *bolt.Tx) error {
		b := tx.Bucket(rootBucket)
		var opErr error
		delta.Each(func(key []byte, deleted bool, value []byte) {
			if opErr != nil {
				return
			}
			if deleted {
				opErr = b.Delete(key)
			} else {
				opErr = b.Put(key, value)
			}
		})
		return opErr
	})
}

// Snapshot pins a read-only bbolt transaction and exposes it through the
// Store contract, serving Query and the next block's reads.
func (s *BoltStore) Snapshot() (*Snapshot, error) {
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("%w: begin snapshot: %v", engineerr.ErrBackend, err)
	}
	return &Snapshot{tx: tx}, nil
}

// Snapshot is a read-only view pinned to one bbolt transaction. Its Range
// iterators remain valid for the Snapshot's lifetime; Close releases the
// underlying bbolt transaction and must be called exactly once.
type Snapshot struct {
	tx *bolt.Tx
}

// Get implements Store.
func (s *Snapshot) Get(key []byte) ([]byte, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	b := s.tx.Bucket(rootBucket)
	if b == nil {
		return nil, false, nil
	}
	v := b.Get(key)
	if v == nil {
		return nil, false, nil
	}
	value := make([]byte, len(v))
	copy(value, v)
	return value, true, nil
}

// Put always fails: a Snapshot is read-only.
func (s *Snapshot) Put(key, value []byte) error {
	return fmt.Errorf("%w: snapshot is read-only", engineerr.ErrBackend)
}

// Delete always fails: a Snapshot is read-only.
func (s *Snapshot) Delete(key []byte) error {
	return fmt.Errorf("%w: snapshot is read-only", engineerr.ErrBackend)
}

// Range implements Store.
func (s *Snapshot) Range(lo, hi []byte) (Iterator, error) {
	return newBoltIterator(s.tx, rootBucket, lo, hi, false), nil
}

// Close releases the pinned bbolt transaction.
func (s *Snapshot) Close() error {
	if err := s.tx.Rollback(); err != nil {
		return fmt.Errorf("%w: close snapshot: %v", engineerr.ErrBackend, err)
	}
	return nil
}

type boltIterator struct {
	tx     *bolt.Tx
	ownTx  bool
	cur    *bolt.Cursor
	hi     []byte
	k, v   []byte
	primed bool // true once the initial Seek/First result is ready to yield
}

func newBoltIterator(tx *bolt.Tx, bucket, lo, hi []byte, ownTx bool) *boltIterator {
	b := tx.Bucket(bucket)
	it := &boltIterator{tx: tx, ownTx: ownTx, hi: hi}
	if b == nil {
		return it
	}
	it.cur = b.Cursor()
	if lo != nil {
		it.k, it.v = it.cur.Seek(lo)
	} else {
		it.k, it.v = it.cur.First()
	}
	it.primed = true
	return it
}

func (it *boltIterator) Next() bool {
	if it.cur == nil {
		return false
	}
	if it.primed {
		it.primed = false
	} else {
		it.k, it.v = it.cur.Next()
	}
	if it.k == nil {
		return false
	}
	if it.hi != nil && string(it.k) >= string(it.hi) {
		it.k, it.v = nil, nil
		return false
	}
	return true
}

func (it *boltIterator) Key() []byte   { return it.k }
func (it *boltIterator) Value() []byte { return it.v }
func (it *boltIterator) Err() error    { return nil }

func (it *boltIterator) Close() error {
	if it.ownTx {
		if err := it.tx.Rollback(); err != nil {
			return fmt.Errorf("%w: close range tx: %v", engineerr.ErrBackend, err)
		}
	}
	return nil
}
