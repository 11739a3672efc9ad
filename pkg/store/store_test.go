package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, it Iterator) map[string]string {
	t.Helper()
	out := make(map[string]string)
	for it.Next() {
		out[string(it.Key())] = string(it.Value())
	}
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
	return out
}

func TestMapStoreGetPutDelete(t *testing.T) {
	m := NewMapStore()
	_, ok, err := m.Get([]byte("a"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.Put([]byte("a"), []byte("1")))
	v, ok, err := m.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", string(v))

	require.NoError(t, m.Delete([]byte("a")))
	_, ok, err = m.Get([]byte("a"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMapStoreRangeOrder(t *testing.T) {
	m := NewMapStore()
	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, m.Put([]byte(k), []byte(k)))
	}
	it, err := m.Range(nil, nil)
	require.NoError(t, err)
	var order []string
	for it.Next() {
		order = append(order, string(it.Key()))
	}
	require.Equal(t, []string{"a", "b", "c"}, order)
}

// TestBufferedStoreOverlayTransparency covers the overlay transparency
// invariant: write-then-read returns the write, delete-then-read returns
// absence, and iteration reflects the merged view.
func TestBufferedStoreOverlayTransparency(t *testing.T) {
	inner := NewMapStore()
	require.NoError(t, inner.Put([]byte("alice"), []byte("100")))
	require.NoError(t, inner.Put([]byte("bob"), []byte("50")))

	buf := NewBufferedStore(inner)

	// write then read
	require.NoError(t, buf.Put([]byte("alice"), []byte("90")))
	v, ok, err := buf.Get([]byte("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "90", string(v))

	// delete then read
	require.NoError(t, buf.Delete([]byte("bob")))
	_, ok, err = buf.Get([]byte("bob"))
	require.NoError(t, err)
	require.False(t, ok)

	// absent delta key defers to inner
	require.NoError(t, inner.Put([]byte("carol"), []byte("0")))
	v, ok, err = buf.Get([]byte("carol"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "0", string(v))

	// new key only in delta
	require.NoError(t, buf.Put([]byte("dave"), []byte("5")))

	it, err := buf.Range(nil, nil)
	require.NoError(t, err)
	merged := collect(t, it)
	require.Equal(t, map[string]string{"alice": "90", "carol": "0", "dave": "5"}, merged)
}

func TestBufferedStoreCommitMergesToParent(t *testing.T) {
	parent := NewMapStore()
	require.NoError(t, parent.Put([]byte("alice"), []byte("100")))

	buf := NewBufferedStore(parent)
	require.NoError(t, buf.Put([]byte("alice"), []byte("90")))
	require.NoError(t, buf.Put([]byte("bob"), []byte("60")))

	require.NoError(t, buf.Commit(parent))

	v, ok, err := parent.Get([]byte("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "90", string(v))

	v, ok, err = parent.Get([]byte("bob"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "60", string(v))
}

func TestBufferedStoreDiscardLeavesParentUnchanged(t *testing.T) {
	parent := NewMapStore()
	require.NoError(t, parent.Put([]byte("alice"), []byte("100")))

	buf := NewBufferedStore(parent)
	require.NoError(t, buf.Put([]byte("alice"), []byte("1")))
	buf.Discard()

	v, ok, err := parent.Get([]byte("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "100", string(v))
}

func TestPrefixedTransparency(t *testing.T) {
	inner := NewMapStore()
	p := NewPrefixed([]byte("ns/"), inner)

	require.NoError(t, p.Put([]byte("a"), []byte("1")))
	v, ok, err := inner.Get([]byte("ns/a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", string(v))

	v, ok, err = p.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", string(v))

	require.NoError(t, inner.Put([]byte("other/b"), []byte("2")))
	it, err := p.Range(nil, nil)
	require.NoError(t, err)
	merged := collect(t, it)
	require.Equal(t, map[string]string{"a": "1"}, merged)
}

func TestNullStoreAlwaysEmpty(t *testing.T) {
	var n NullStore
	require.NoError(t, n.Put([]byte("a"), []byte("1")))
	_, ok, err := n.Get([]byte("a"))
	require.NoError(t, err)
	require.False(t, ok)

	it, err := n.Range(nil, nil)
	require.NoError(t, err)
	require.Empty(t, collect(t, it))
}

func TestEmptyKeyRejected(t *testing.T) {
	m := NewMapStore()
	_, _, err := m.Get(nil)
	require.Error(t, err)
	require.Error(t, m.Put(nil, []byte("x")))
	require.Error(t, m.Delete(nil))
}
