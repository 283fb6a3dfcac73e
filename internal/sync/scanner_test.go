package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
}

func TestScanBasicTree(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.md":          "alpha\n",
		"notes/b.md":    "bravo\n",
		"notes/c/d.txt": "delta\n",
	})

	scanner := NewScanner(root, NewIgnoreList(root))
	manifest, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a.md", "notes/b.md", "notes/c/d.txt"}, manifest.Paths())
	for _, e := range manifest {
		assert.NotEmpty(t, e.Hash)
		assert.NotEmpty(t, e.MTime)
		assert.Positive(t, e.Size)
	}
}

func TestScanSkipsHiddenEntries(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.md":           "alpha\n",
		".hidden.md":     "nope\n",
		".git/config":    "nope\n",
		"sub/.secret":    "nope\n",
		"sub/visible.md": "yes\n",
	})

	scanner := NewScanner(root, NewIgnoreList(root))
	manifest, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a.md", "sub/visible.md"}, manifest.Paths())
}

func TestScanSkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeTree(t, root, map[string]string{"real.md": "real\n"})
	writeTree(t, outside, map[string]string{"target.md": "outside\n"})

	require.NoError(t, os.Symlink(filepath.Join(outside, "target.md"), filepath.Join(root, "link.md")))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "linkdir")))

	scanner := NewScanner(root, NewIgnoreList(root))
	manifest, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"real.md"}, manifest.Paths())
}

func TestScanHonorsIgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"keep.md":       "keep\n",
		"drop.draft":    "drop\n",
		"logs/x.log":    "drop\n",
		IgnoreFileName:  "*.draft\n",
		"scratch.tmp":   "drop\n",
		"keep/deep.md":  "keep\n",
	})

	scanner := NewScanner(root, NewIgnoreList(root))
	manifest, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"keep.md", "keep/deep.md"}, manifest.Paths())
}

func TestScanDeterministic(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.md": "alpha\n",
		"b.md": "bravo\n",
	})

	scanner := NewScanner(root, NewIgnoreList(root))

	first, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	second, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScanPicksUpChanges(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.md": "v1\n"})

	scanner := NewScanner(root, NewIgnoreList(root))
	first, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	writeTree(t, root, map[string]string{"a.md": "v2 longer\n", "b.md": "new\n"})

	second, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first["a.md"].Hash, second["a.md"].Hash)
	assert.Contains(t, second, "b.md")
}

func TestScanCancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.md": "alpha\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := NewScanner(root, NewIgnoreList(root))
	_, err := scanner.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
