package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorageRoundTrip(t *testing.T) {
	store := NewMemoryStorage()

	require.NoError(t, store.Store("scans/2026-08-01/a.json", []byte(`{"id":"a"}`)))

	data, err := store.Retrieve("scans/2026-08-01/a.json")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"a"}`, string(data))
}

func TestMemoryStorageListByPrefix(t *testing.T) {
	store := NewMemoryStorage()
	require.NoError(t, store.Store("scans/2026-08-01/b.json", []byte("b")))
	require.NoError(t, store.Store("scans/2026-08-01/a.json", []byte("a")))
	require.NoError(t, store.Store("scans/2026-08-02/c.json", []byte("c")))
	require.NoError(t, store.Store("other/d.json", []byte("d")))

	names, err := store.List("scans/2026-08-01/")
	require.NoError(t, err)
	assert.Equal(t, []string{"scans/2026-08-01/a.json", "scans/2026-08-01/b.json"}, names)

	all, err := store.List("scans/")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryStorageDelete(t *testing.T) {
	store := NewMemoryStorage()
	require.NoError(t, store.Store("scans/a.json", []byte("a")))

	require.NoError(t, store.Delete("scans/a.json"))

	_, err := store.Retrieve("scans/a.json")
	assert.Error(t, err)
	assert.Error(t, store.Delete("scans/a.json"))
}

func TestMemoryStorageCopiesData(t *testing.T) {
	store := NewMemoryStorage()

	payload := []byte("original")
	require.NoError(t, store.Store("scans/a.json", payload))
	payload[0] = 'X'

	data, err := store.Retrieve("scans/a.json")
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}
