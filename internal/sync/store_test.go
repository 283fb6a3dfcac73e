package sync

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *ManifestStore {
	t.Helper()
	store := NewManifestStore(filepath.Join(t.TempDir(), "manifest.db"))
	require.NoError(t, store.Open())
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreEmptyGet(t *testing.T) {
	store := openTestStore(t)

	manifest, err := store.Get()
	require.NoError(t, err)
	assert.Empty(t, manifest)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)

	want := manifest(
		&FileEntry{Path: "a.md", Hash: "h1", Size: 10, MTime: "2025-03-01T10:00:00.5Z"},
		&FileEntry{Path: "notes/b.md", Hash: "h2", Size: 20, MTime: "2025-03-02T11:00:00Z"},
	)
	require.NoError(t, store.Put(want))

	got, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStorePutReplaces(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put(manifest(
		entry("old1.md", "h1"),
		entry("old2.md", "h2"),
	)))
	require.NoError(t, store.Put(manifest(entry("new.md", "h3"))))

	got, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"new.md"}, got.Paths())

	count, err := store.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestStoreSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "manifest.db")

	store := NewManifestStore(dbPath)
	require.NoError(t, store.Open())
	require.NoError(t, store.Put(manifest(entry("a.md", "h1"))))
	require.NoError(t, store.Close())

	reopened := NewManifestStore(dbPath)
	require.NoError(t, reopened.Open())
	defer reopened.Close()

	got, err := reopened.Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md"}, got.Paths())
}

func TestStoreDoubleOpen(t *testing.T) {
	store := openTestStore(t)
	assert.Error(t, store.Open())
}
