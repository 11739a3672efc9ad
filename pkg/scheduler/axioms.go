package scheduler

import "github.com/turbofish-org/orga/pkg/types"

// verdict is the outcome of checking a candidate transition's key-hint
// against one busy worker's seeded sets, classified by axioms A1-A4.
type verdict int

const (
	// verdictClear covers A1 (disjoint) and A2 (read-only share): A2 is
	// treated as a performance refinement of A1 rather than a distinct
	// check, since both resolve to "safe to run concurrently, no merge
	// ordering needed".
	verdictClear verdict = iota
	// verdictWriteSkew is A3: concurrent execution allowed, merge order
	// still canonical.
	verdictWriteSkew
	// verdictConflict is A4: the candidate must wait for the busy worker
	// to complete and merge.
	verdictConflict
)

// hintView is the scheduler's working form of a KeyHint: a nil Transition
// hint (discovery mode) becomes a wildcard that is considered to intersect
// everything.
type hintView struct {
	reads    types.KeySet
	writes   types.KeySet
	wildcard bool
}

func viewOf(hint *types.KeyHint) hintView {
	if hint == nil {
		return hintView{reads: types.NewKeySet(), writes: types.NewKeySet(), wildcard: true}
	}
	reads, writes := hint.Reads, hint.Writes
	if reads == nil {
		reads = types.NewKeySet()
	}
	if writes == nil {
		writes = types.NewKeySet()
	}
	return hintView{reads: reads, writes: writes}
}

func crosses(a, b types.KeySet, aWild, bWild bool) bool {
	if aWild || bWild {
		return true
	}
	return a.Intersects(b)
}

// classify applies A1-A4 between a candidate and one busy worker's seeded
// view. a3Enabled gates whether a write-write overlap without a dependent
// read degrades to a conflict (disabled, the safe default) or is allowed to
// run concurrently with ordered merge (enabled).
func classify(candidate, busy hintView, a3Enabled bool) verdict {
	writeWrite := crosses(candidate.writes, busy.writes, candidate.wildcard, busy.wildcard)
	readWrite := crosses(candidate.reads, busy.writes, candidate.wildcard, busy.wildcard) ||
		crosses(candidate.writes, busy.reads, candidate.wildcard, busy.wildcard)

	if !writeWrite && !readWrite {
		return verdictClear
	}

	if writeWrite && !readWrite && a3Enabled && !candidate.wildcard && !busy.wildcard {
		contended := candidate.writes.Intersect(busy.writes)
		bothReads := candidate.reads.Union(busy.reads)
		if !bothReads.Intersects(contended) {
			return verdictWriteSkew
		}
	}

	return verdictConflict
}
