package driver

import "github.com/turbofish-org/orga/pkg/types"

// mempoolIndex implements a "scheduled" mempool divergence strategy: each
// payload's fingerprint is assigned to one of n mempool buffered stores by
// its first byte, which is close enough to the eventual block-processing
// assignment that a later DeliverTx for the same fingerprint is likely to
// find a warm result-cache entry keyed by the same read-set. `simple` (one
// shared mempool store) and `correlated` (derived from submitter identity)
// are both legitimate alternatives; `scheduled` is picked here to maximize
// cache hit rate into block processing.
func mempoolIndex(fp types.Fingerprint, n int) int {
	if n < 1 {
		n = 1
	}
	return int(fp[0]) % n
}
