package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/turbofish-org/orga/pkg/store"
	"github.com/turbofish-org/orga/pkg/types"
)

func installTransfer(t *testing.T, c *Cache, s store.Store, fp types.Fingerprint) {
	t.Helper()
	reads := types.NewKeySet([]byte("alice"), []byte("bob"))
	hashes, err := ComputeReadHashes(s, reads)
	require.NoError(t, err)

	ws := types.NewWriteSet()
	ws.Put([]byte("alice"), []byte("99"))
	ws.Put([]byte("bob"), []byte("51"))

	require.NoError(t, c.Install(fp, reads, hashes, ws))
}

// TestCacheReplayValid: no prior write touched the cached read-set, so the
// entry is still replayable.
func TestCacheReplayValid(t *testing.T) {
	s := store.NewMapStore()
	require.NoError(t, s.Put([]byte("alice"), []byte("100")))
	require.NoError(t, s.Put([]byte("bob"), []byte("50")))

	c, err := New(16)
	require.NoError(t, err)

	fp := types.Fingerprint32([]byte("transfer-1"))
	installTransfer(t, c, s, fp)

	entry, ok := c.Lookup(fp)
	require.True(t, ok)

	valid, err := ReplayValid(entry, s)
	require.NoError(t, err)
	require.True(t, valid)
}

// TestCacheReplayInvalidatedByInterveningWrite: a later write to a cached
// read key invalidates replay for this execution without evicting the
// entry.
func TestCacheReplayInvalidatedByInterveningWrite(t *testing.T) {
	s := store.NewMapStore()
	require.NoError(t, s.Put([]byte("alice"), []byte("100")))
	require.NoError(t, s.Put([]byte("bob"), []byte("50")))

	c, err := New(16)
	require.NoError(t, err)

	fp := types.Fingerprint32([]byte("transfer-1"))
	installTransfer(t, c, s, fp)

	require.NoError(t, s.Put([]byte("alice"), []byte("40")))

	entry, ok := c.Lookup(fp)
	require.True(t, ok, "the entry must still be present, not evicted")

	valid, err := ReplayValid(entry, s)
	require.NoError(t, err)
	require.False(t, valid)
}

func TestCacheLookupMiss(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)
	_, ok := c.Lookup(types.Fingerprint32([]byte("nope")))
	require.False(t, ok)
}

func TestCacheEvictsOldestBeyondCapacity(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)

	fp1 := types.Fingerprint32([]byte("a"))
	fp2 := types.Fingerprint32([]byte("b"))
	require.NoError(t, c.Install(fp1, types.NewKeySet(), nil, types.NewWriteSet()))
	require.NoError(t, c.Install(fp2, types.NewKeySet(), nil, types.NewWriteSet()))

	_, ok := c.Lookup(fp1)
	require.False(t, ok)
	_, ok = c.Lookup(fp2)
	require.True(t, ok)
	require.Equal(t, 1, c.Len())
}

func TestEncodeDecodeWriteSetRoundTrips(t *testing.T) {
	ws := types.NewWriteSet()
	ws.Put([]byte("alice"), []byte("90"))
	ws.Delete([]byte("bob"))

	encoded, err := encodeWriteSet(ws)
	require.NoError(t, err)

	decoded, err := DecodeWriteSet(encoded)
	require.NoError(t, err)

	require.Equal(t, ws.Sorted(), decoded.Sorted())
}

func TestHashReadDistinguishesAbsentFromEmptyValue(t *testing.T) {
	require.NotEqual(t, HashRead(nil, false), HashRead([]byte{}, true))
}

// TestEvictForDeletedKeysEagerlyDropsMatchingEntries: an entry referencing
// a key deleted at commit time is dropped outright, not merely invalidated
// for the current execution.
func TestEvictForDeletedKeysEagerlyDropsMatchingEntries(t *testing.T) {
	s := store.NewMapStore()
	require.NoError(t, s.Put([]byte("alice"), []byte("100")))
	require.NoError(t, s.Put([]byte("bob"), []byte("50")))
	require.NoError(t, s.Put([]byte("carol"), []byte("0")))

	c, err := New(16)
	require.NoError(t, err)

	fpTransfer := types.Fingerprint32([]byte("transfer-1"))
	installTransfer(t, c, s, fpTransfer)

	fpUnrelated := types.Fingerprint32([]byte("unrelated"))
	reads := types.NewKeySet([]byte("carol"))
	hashes, err := ComputeReadHashes(s, reads)
	require.NoError(t, err)
	ws := types.NewWriteSet()
	ws.Put([]byte("carol"), []byte("1"))
	require.NoError(t, c.Install(fpUnrelated, reads, hashes, ws))

	evicted := c.EvictForDeletedKeys(types.NewKeySet([]byte("bob")))
	require.ElementsMatch(t, []types.Fingerprint{fpTransfer}, evicted)

	_, ok := c.Lookup(fpTransfer)
	require.False(t, ok, "entry referencing a deleted key must be evicted")
	_, ok = c.Lookup(fpUnrelated)
	require.True(t, ok, "entry not touching the deleted key must survive")
}
