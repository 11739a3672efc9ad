package scheduler

import (
	"hash/fnv"

	bloomfilter "github.com/holiman/bloomfilter/v2"
	"github.com/turbofish-org/orga/pkg/types"
)

// fnv64 adapts a precomputed 64-bit digest to hash.Hash64, the interface
// bloomfilter.Filter.Add/Contains expect. Write/Reset are no-ops: the digest
// is already final by construction.
type fnv64 uint64

func (h fnv64) Write(p []byte) (int, error) { return len(p), nil }
func (h fnv64) Sum(b []byte) []byte         { return b }
func (h fnv64) Reset()                      {}
func (h fnv64) Size() int                   { return 8 }
func (h fnv64) BlockSize() int              { return 8 }
func (h fnv64) Sum64() uint64               { return uint64(h) }

func digest(key []byte) fnv64 {
	h := fnv.New64a()
	h.Write(key)
	return fnv64(h.Sum64())
}

// buildFilter summarizes ks into a Bloom filter with the given parameters.
// A zero-member KeySet still yields a valid, always-empty filter.
func buildFilter(bits, hashes uint64, ks types.KeySet) (*bloomfilter.Filter, error) {
	f, err := bloomfilter.New(bits, hashes)
	if err != nil {
		return nil, err
	}
	for k := range ks {
		f.Add(digest([]byte(k)))
	}
	return f, nil
}

// mayIntersect is a Bloom pre-check: it tests every key of candidate
// against busy's summary filter. A false result is a hard
// guarantee of disjointness; true only means the caller must fall back to
// the precise KeySet.Intersects check.
func mayIntersect(busy *bloomfilter.Filter, candidate types.KeySet) bool {
	if busy == nil {
		return len(candidate) > 0
	}
	for k := range candidate {
		if busy.Contains(digest([]byte(k))) {
			return true
		}
	}
	return false
}
