package txcontext

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/turbofish-org/orga/pkg/store"
	"github.com/turbofish-org/orga/pkg/types"
)

func TestContextTracksReadsAndWrites(t *testing.T) {
	parent := store.NewMapStore()
	require.NoError(t, parent.Put([]byte("alice"), []byte("100")))

	ctx := New(parent, nil, 0)
	_, _, err := ctx.Get([]byte("alice"))
	require.NoError(t, err)
	_, _, err = ctx.Get([]byte("missing"))
	require.NoError(t, err)
	require.NoError(t, ctx.Put([]byte("bob"), []byte("1")))

	require.True(t, ctx.ReadSet().Has([]byte("alice")))
	require.True(t, ctx.ReadSet().Has([]byte("missing")), "a miss still counts as a read")
	require.True(t, ctx.WriteSet().Has([]byte("bob")))
}

func TestContextFinishSuccessMergesToParent(t *testing.T) {
	parent := store.NewMapStore()
	ctx := New(parent, nil, 0)
	require.NoError(t, ctx.Put([]byte("alice"), []byte("90")))

	_, _, err := ctx.Finish(true)
	require.NoError(t, err)

	v, ok, err := parent.Get([]byte("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "90", string(v))
}

func TestContextFinishFailureDiscardsDelta(t *testing.T) {
	parent := store.NewMapStore()
	ctx := New(parent, nil, 0)
	require.NoError(t, ctx.Put([]byte("alice"), []byte("90")))

	_, _, err := ctx.Finish(false)
	require.NoError(t, err)

	_, ok, err := parent.Get([]byte("alice"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestContextGasCeiling(t *testing.T) {
	parent := store.NewMapStore()
	ctx := New(parent, nil, 100)
	require.NoError(t, ctx.Charge(60))
	require.NoError(t, ctx.Charge(39))
	require.Error(t, ctx.Charge(2))
}

func TestContextDelta(t *testing.T) {
	parent := store.NewMapStore()
	ctx := New(parent, nil, 0)
	require.NoError(t, ctx.Put([]byte("alice"), []byte("90")))
	require.NoError(t, ctx.Delete([]byte("bob")))

	ws := ctx.Delta()
	sorted := ws.Sorted()
	require.Len(t, sorted, 2)
	require.Equal(t, "alice", string(sorted[0].Key))
	require.False(t, sorted[0].Op.IsDelete)
	require.Equal(t, "90", string(sorted[0].Op.Value))
	require.Equal(t, "bob", string(sorted[1].Key))
	require.True(t, sorted[1].Op.IsDelete)
}

func TestContextReadObservationsCapturePreState(t *testing.T) {
	parent := store.NewMapStore()
	require.NoError(t, parent.Put([]byte("alice"), []byte("100")))

	ctx := New(parent, nil, 0)

	// First read observes the pre-state; the later read of the same key
	// sees the buffered write but the observation keeps the original value.
	_, _, err := ctx.Get([]byte("alice"))
	require.NoError(t, err)
	require.NoError(t, ctx.Put([]byte("alice"), []byte("90")))
	v, ok, err := ctx.Get([]byte("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "90", string(v))

	obs := ctx.ReadObservations()
	require.Equal(t, "100", string(obs["alice"].Value))
	require.True(t, obs["alice"].Exists)

	// A miss is observed as absence.
	_, ok, err = ctx.Get([]byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, obs["missing"].Exists)

	// A key written before it is ever read is self-determined: no
	// pre-state observation.
	require.NoError(t, ctx.Put([]byte("bob"), []byte("1")))
	_, _, err = ctx.Get([]byte("bob"))
	require.NoError(t, err)
	_, seen := obs["bob"]
	require.False(t, seen)
}

func TestContextDrift(t *testing.T) {
	parent := store.NewMapStore()
	hint := &types.KeyHint{Writes: types.NewKeySet([]byte("alice"))}
	ctx := New(parent, hint, 0)
	require.NoError(t, ctx.Put([]byte("alice"), []byte("1")))
	require.False(t, ctx.Drift())

	require.NoError(t, ctx.Put([]byte("bob"), []byte("1")))
	require.True(t, ctx.Drift())
}
