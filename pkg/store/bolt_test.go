package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoltStoreGetPutDeleteRange(t *testing.T) {
	dir := t.TempDir()
	bs, err := OpenBoltStore(filepath.Join(dir, "orga.db"))
	require.NoError(t, err)
	defer bs.Close()

	require.NoError(t, bs.Put([]byte("b"), []byte("2")))
	require.NoError(t, bs.Put([]byte("a"), []byte("1")))

	v, ok, err := bs.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", string(v))

	it, err := bs.Range(nil, nil)
	require.NoError(t, err)
	var order []string
	for it.Next() {
		order = append(order, string(it.Key()))
	}
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
	require.Equal(t, []string{"a", "b"}, order)

	require.NoError(t, bs.Delete([]byte("a")))
	_, ok, err = bs.Get([]byte("a"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBoltStoreEmptyValueDistinctFromAbsence(t *testing.T) {
	dir := t.TempDir()
	bs, err := OpenBoltStore(filepath.Join(dir, "orga.db"))
	require.NoError(t, err)
	defer bs.Close()

	require.NoError(t, bs.Put([]byte("k"), []byte{}))

	v, ok, err := bs.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok, "an empty value is present, not absent")
	require.Empty(t, v)

	_, ok, err = bs.Get([]byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBoltStoreSnapshotIsPinned(t *testing.T) {
	dir := t.TempDir()
	bs, err := OpenBoltStore(filepath.Join(dir, "orga.db"))
	require.NoError(t, err)
	defer bs.Close()

	require.NoError(t, bs.Put([]byte("alice"), []byte("100")))

	snap, err := bs.Snapshot()
	require.NoError(t, err)
	defer snap.Close()

	require.NoError(t, bs.Put([]byte("alice"), []byte("90")))

	v, ok, err := snap.Get([]byte("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "100", string(v), "snapshot must not observe writes made after it was taken")

	v, ok, err = bs.Get([]byte("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "90", string(v))
}
