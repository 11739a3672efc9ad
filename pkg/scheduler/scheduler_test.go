package scheduler

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/turbofish-org/orga/pkg/store"
	"github.com/turbofish-org/orga/pkg/txcontext"
	"github.com/turbofish-org/orga/pkg/types"
)

func fp(label string) types.Fingerprint { return types.Fingerprint32([]byte(label)) }

func getAmount(tc *txcontext.Context, key string) (int, error) {
	v, ok, err := tc.Get([]byte(key))
	if err != nil || !ok {
		return 0, err
	}
	return strconv.Atoi(string(v))
}

func putAmount(tc *txcontext.Context, key string, v int) error {
	return tc.Put([]byte(key), []byte(strconv.Itoa(v)))
}

func seedBalances(t *testing.T, s store.Store, balances map[string]int) {
	t.Helper()
	for k, v := range balances {
		require.NoError(t, s.Put([]byte(k), []byte(strconv.Itoa(v))))
	}
}

func readBalance(t *testing.T, s store.Store, key string) int {
	t.Helper()
	v, ok, err := s.Get([]byte(key))
	require.NoError(t, err)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(string(v))
	require.NoError(t, err)
	return n
}

func transferExec(execs map[types.Fingerprint]func(*txcontext.Context) (int, error)) Executor {
	return func(tc *txcontext.Context, t types.Transition) ([]byte, uint32, error) {
		fn, ok := execs[t.ID]
		if !ok {
			return nil, 1, nil
		}
		code, err := fn(tc)
		if err != nil {
			return nil, 1, err
		}
		return nil, uint32(code), nil
	}
}

// TestDisjointPayments covers the scenario where two transitions
// touching disjoint keys run concurrently and commit to the serial result.
func TestDisjointPayments(t *testing.T) {
	parent := store.NewBufferedStore(store.NewMapStore())
	seedBalances(t, parent, map[string]int{"alice": 100, "bob": 50, "carol": 0, "dave": 0})

	t1, t2 := fp("t1"), fp("t2")
	transitions := []types.Transition{
		{ID: t1, Kind: types.KindTx, Hint: &types.KeyHint{
			Reads: types.NewKeySet([]byte("alice")), Writes: types.NewKeySet([]byte("alice"), []byte("bob")),
		}},
		{ID: t2, Kind: types.KindTx, Hint: &types.KeyHint{
			Reads: types.NewKeySet([]byte("carol")), Writes: types.NewKeySet([]byte("carol"), []byte("dave")),
		}},
	}

	exec := transferExec(map[types.Fingerprint]func(*txcontext.Context) (int, error){
		t1: func(tc *txcontext.Context) (int, error) {
			a, err := getAmount(tc, "alice")
			if err != nil {
				return 0, err
			}
			b, err := getAmount(tc, "bob")
			if err != nil {
				return 0, err
			}
			if err := putAmount(tc, "alice", a-10); err != nil {
				return 0, err
			}
			return 0, putAmount(tc, "bob", b+10)
		},
		t2: func(tc *txcontext.Context) (int, error) {
			c, err := getAmount(tc, "carol")
			if err != nil {
				return 0, err
			}
			d, err := getAmount(tc, "dave")
			if err != nil {
				return 0, err
			}
			if err := putAmount(tc, "carol", c-0); err != nil {
				return 0, err
			}
			return 0, putAmount(tc, "dave", d+0)
		},
	})

	s := New(Config{WorkerCount: 2, BloomBits: 2048, BloomHashes: 4})
	results, err := s.RunBlock(context.Background(), parent, transitions, exec)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Err)
	}

	require.Equal(t, 90, readBalance(t, parent, "alice"))
	require.Equal(t, 60, readBalance(t, parent, "bob"))
	require.Equal(t, 0, readBalance(t, parent, "carol"))
	require.Equal(t, 0, readBalance(t, parent, "dave"))
}

// TestDependentPayments covers the scenario where a shared key ("bob")
// forces A4 serialization across two epochs.
func TestDependentPayments(t *testing.T) {
	parent := store.NewBufferedStore(store.NewMapStore())
	seedBalances(t, parent, map[string]int{"alice": 10, "bob": 0, "carol": 0})

	t1, t2 := fp("t1"), fp("t2")
	transitions := []types.Transition{
		{ID: t1, Kind: types.KindTx, Hint: &types.KeyHint{
			Reads: types.NewKeySet([]byte("alice")), Writes: types.NewKeySet([]byte("alice"), []byte("bob")),
		}},
		{ID: t2, Kind: types.KindTx, Hint: &types.KeyHint{
			Reads: types.NewKeySet([]byte("bob")), Writes: types.NewKeySet([]byte("bob"), []byte("carol")),
		}},
	}

	exec := transferExec(map[types.Fingerprint]func(*txcontext.Context) (int, error){
		t1: func(tc *txcontext.Context) (int, error) {
			a, err := getAmount(tc, "alice")
			if err != nil {
				return 0, err
			}
			b, err := getAmount(tc, "bob")
			if err != nil {
				return 0, err
			}
			if err := putAmount(tc, "alice", a-5); err != nil {
				return 0, err
			}
			return 0, putAmount(tc, "bob", b+5)
		},
		t2: func(tc *txcontext.Context) (int, error) {
			b, err := getAmount(tc, "bob")
			if err != nil {
				return 0, err
			}
			c, err := getAmount(tc, "carol")
			if err != nil {
				return 0, err
			}
			if err := putAmount(tc, "bob", b-5); err != nil {
				return 0, err
			}
			return 0, putAmount(tc, "carol", c+5)
		},
	})

	s := New(Config{WorkerCount: 2, BloomBits: 2048, BloomHashes: 4})
	results, err := s.RunBlock(context.Background(), parent, transitions, exec)
	require.NoError(t, err)
	for _, r := range results {
		require.NoError(t, r.Err)
	}

	require.Equal(t, 5, readBalance(t, parent, "alice"))
	require.Equal(t, 0, readBalance(t, parent, "bob"))
	require.Equal(t, 5, readBalance(t, parent, "carol"))
}

// TestWriteSkewWithA3 covers the scenario where two writers of the same
// key run concurrently under A3 and merge in canonical order.
func TestWriteSkewWithA3(t *testing.T) {
	parent := store.NewBufferedStore(store.NewMapStore())
	seedBalances(t, parent, map[string]int{"a": 1, "b": 1})

	t1, t2 := fp("t1"), fp("t2")
	transitions := []types.Transition{
		{ID: t1, Kind: types.KindTx, Hint: &types.KeyHint{Writes: types.NewKeySet([]byte("last_sender"))}},
		{ID: t2, Kind: types.KindTx, Hint: &types.KeyHint{Writes: types.NewKeySet([]byte("last_sender"))}},
	}

	exec := func(tc *txcontext.Context, tr types.Transition) ([]byte, uint32, error) {
		var who string
		switch tr.ID {
		case t1:
			who = "alice"
		case t2:
			who = "bob"
		}
		return nil, 0, tc.Put([]byte("last_sender"), []byte(who))
	}

	s := New(Config{WorkerCount: 2, EnableAxiomA3: true, BloomBits: 2048, BloomHashes: 4})
	results, err := s.RunBlock(context.Background(), parent, transitions, exec)
	require.NoError(t, err)
	for _, r := range results {
		require.NoError(t, r.Err)
	}

	v, ok, err := parent.Get([]byte("last_sender"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "bob", string(v))
}

// TestSpeculativeDiscoveryDisjointCommitsInOneEpoch covers two discovery-mode
// (nil Hint) transitions touching disjoint keys: with EnableSpeculativeDiscovery
// they run concurrently in a single epoch rather than serializing.
func TestSpeculativeDiscoveryDisjointCommitsInOneEpoch(t *testing.T) {
	parent := store.NewBufferedStore(store.NewMapStore())

	t1, t2 := fp("d1"), fp("d2")
	transitions := []types.Transition{
		{ID: t1, Kind: types.KindTx},
		{ID: t2, Kind: types.KindTx},
	}

	attempts := map[types.Fingerprint]int{}
	exec := func(tc *txcontext.Context, tr types.Transition) ([]byte, uint32, error) {
		attempts[tr.ID]++
		switch tr.ID {
		case t1:
			return nil, 0, tc.Put([]byte("a"), []byte("1"))
		case t2:
			return nil, 0, tc.Put([]byte("b"), []byte("2"))
		}
		return nil, 1, nil
	}

	s := New(Config{WorkerCount: 2, EnableSpeculativeDiscovery: true, BloomBits: 2048, BloomHashes: 4})
	results, err := s.RunBlock(context.Background(), parent, transitions, exec)
	require.NoError(t, err)
	for _, r := range results {
		require.NoError(t, r.Err)
	}
	require.Equal(t, 1, attempts[t1])
	require.Equal(t, 1, attempts[t2], "disjoint speculative transitions commit on their first attempt")

	require.Equal(t, 1, readBalance(t, parent, "a"))
	require.Equal(t, 2, readBalance(t, parent, "b"))
}

// TestSpeculativeDiscoveryConflictReschedules covers two discovery-mode
// transitions that both write the same key: admitted speculatively, their
// actual write-sets are found to overlap at completion, and the later one
// in canonical order is discarded and rescheduled.
func TestSpeculativeDiscoveryConflictReschedules(t *testing.T) {
	parent := store.NewBufferedStore(store.NewMapStore())

	t1, t2 := fp("d1"), fp("d2")
	transitions := []types.Transition{
		{ID: t1, Kind: types.KindTx},
		{ID: t2, Kind: types.KindTx},
	}

	t2Attempts := 0
	exec := func(tc *txcontext.Context, tr types.Transition) ([]byte, uint32, error) {
		switch tr.ID {
		case t1:
			return nil, 0, tc.Put([]byte("x"), []byte("alice"))
		case t2:
			t2Attempts++
			return nil, 0, tc.Put([]byte("x"), []byte("bob"))
		}
		return nil, 1, nil
	}

	s := New(Config{WorkerCount: 2, EnableSpeculativeDiscovery: true, BloomBits: 2048, BloomHashes: 4})
	results, err := s.RunBlock(context.Background(), parent, transitions, exec)
	require.NoError(t, err)
	for _, r := range results {
		require.NoError(t, r.Err)
	}
	require.Equal(t, 2, t2Attempts, "t2's speculative attempt conflicts with t1 and is rescheduled once")

	v, ok, err := parent.Get([]byte("x"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "bob", string(v), "canonical order: t2 (later index) wins the final write")
}

// TestWaitQueueBlocksLaterConflictingTransitions pins the ordering rule
// for candidates swept after a transition has already been pushed onto the
// wait-queue: T1 conflicts with busy T0 and waits, so T2, which reads the
// key T1 writes, must wait too even though T2 is disjoint from every busy
// worker. Admitting T2 in T0's epoch would let it read "b" before the
// canonically earlier T1 writes it.
func TestWaitQueueBlocksLaterConflictingTransitions(t *testing.T) {
	parent := store.NewBufferedStore(store.NewMapStore())
	seedBalances(t, parent, map[string]int{"a": 10})

	t0, t1, t2 := fp("t0"), fp("t1"), fp("t2")
	transitions := []types.Transition{
		{ID: t0, Kind: types.KindTx, Hint: &types.KeyHint{
			Reads: types.NewKeySet([]byte("a")), Writes: types.NewKeySet([]byte("a")),
		}},
		{ID: t1, Kind: types.KindTx, Hint: &types.KeyHint{
			Reads: types.NewKeySet([]byte("a")), Writes: types.NewKeySet([]byte("b")),
		}},
		{ID: t2, Kind: types.KindTx, Hint: &types.KeyHint{
			Reads: types.NewKeySet([]byte("b")), Writes: types.NewKeySet([]byte("c")),
		}},
	}

	exec := transferExec(map[types.Fingerprint]func(*txcontext.Context) (int, error){
		t0: func(tc *txcontext.Context) (int, error) {
			a, err := getAmount(tc, "a")
			if err != nil {
				return 0, err
			}
			return 0, putAmount(tc, "a", a*2)
		},
		t1: func(tc *txcontext.Context) (int, error) {
			a, err := getAmount(tc, "a")
			if err != nil {
				return 0, err
			}
			return 0, putAmount(tc, "b", a)
		},
		t2: func(tc *txcontext.Context) (int, error) {
			b, err := getAmount(tc, "b")
			if err != nil {
				return 0, err
			}
			return 0, putAmount(tc, "c", b)
		},
	})

	s := New(Config{WorkerCount: 3, BloomBits: 2048, BloomHashes: 4})
	results, err := s.RunBlock(context.Background(), parent, transitions, exec)
	require.NoError(t, err)
	for _, r := range results {
		require.NoError(t, r.Err)
	}

	// Serial order: a=20, b=20, c=20.
	require.Equal(t, 20, readBalance(t, parent, "a"))
	require.Equal(t, 20, readBalance(t, parent, "b"))
	require.Equal(t, 20, readBalance(t, parent, "c"))
}

// TestKeyHintViolationReschedules covers the scenario where a
// transition writes outside its declared hint, gets rescheduled with its
// observed sets, and its second attempt commits.
func TestKeyHintViolationReschedules(t *testing.T) {
	parent := store.NewBufferedStore(store.NewMapStore())
	seedBalances(t, parent, map[string]int{"alice": 100, "bob": 50})

	attempts := 0
	t1 := fp("t1")
	transitions := []types.Transition{
		{ID: t1, Kind: types.KindTx, Hint: &types.KeyHint{Writes: types.NewKeySet([]byte("alice"))}},
	}

	exec := func(tc *txcontext.Context, tr types.Transition) ([]byte, uint32, error) {
		attempts++
		a, err := getAmount(tc, "alice")
		if err != nil {
			return nil, 1, err
		}
		b, err := getAmount(tc, "bob")
		if err != nil {
			return nil, 1, err
		}
		if err := putAmount(tc, "alice", a-10); err != nil {
			return nil, 1, err
		}
		return nil, 0, putAmount(tc, "bob", b+10)
	}

	s := New(Config{WorkerCount: 1, BloomBits: 2048, BloomHashes: 4})
	results, err := s.RunBlock(context.Background(), parent, transitions, exec)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Equal(t, 2, attempts, "the drifting attempt is discarded and rescheduled once")

	require.Equal(t, 90, readBalance(t, parent, "alice"))
	require.Equal(t, 60, readBalance(t, parent, "bob"))
}
