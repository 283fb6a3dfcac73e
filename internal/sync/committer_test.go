package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillbox/quillbox/internal/utils"
)

// fakeSnapshots is an in-memory Snapshots with scripted history.
type fakeSnapshots struct {
	head     string
	commits  map[string]map[string]string
	messages []string
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{commits: map[string]map[string]string{}}
}

func (f *fakeSnapshots) addCommit(id string, files map[string]string) {
	f.commits[id] = files
	f.head = id
}

func (f *fakeSnapshots) Head() (string, bool) { return f.head, f.head != "" }

func (f *fakeSnapshots) Exists(id string) bool {
	_, ok := f.commits[id]
	return ok
}

func (f *fakeSnapshots) ContentAt(id string, relPath string) (*string, error) {
	files, ok := f.commits[id]
	if !ok {
		return nil, fmt.Errorf("unknown snapshot %s", id)
	}
	content, ok := files[relPath]
	if !ok {
		return nil, nil
	}
	return &content, nil
}

func (f *fakeSnapshots) Snapshot(message string) error {
	f.messages = append(f.messages, message)
	f.addCommit(fmt.Sprintf("snap-%d", len(f.messages)), nil)
	return nil
}

type committerFixture struct {
	root      string
	store     *ManifestStore
	snaps     *fakeSnapshots
	committer *Committer
}

func newCommitterFixture(t *testing.T) *committerFixture {
	t.Helper()
	root := t.TempDir()
	aux := t.TempDir()

	store := NewManifestStore(filepath.Join(aux, "manifest.db"))
	require.NoError(t, store.Open())
	t.Cleanup(func() { store.Close() })

	snaps := newFakeSnapshots()
	scanner := NewScanner(root, NewIgnoreList(root))
	committer := NewCommitter(root, scanner, store, snaps, NewNormalizer(nil), filepath.Join(aux, "commit.lock"))

	return &committerFixture{root: root, store: store, snaps: snaps, committer: committer}
}

func (f *committerFixture) readFile(t *testing.T, relPath string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(relPath)))
	require.NoError(t, err)
	return string(raw)
}

func TestCommitUploadsPersistManifest(t *testing.T) {
	f := newCommitterFixture(t)
	writeTree(t, f.root, map[string]string{"a.txt": "uploaded\n"})

	result, err := f.committer.Commit(context.Background(), &CommitRequest{
		UploadedFiles: []string{"a.txt"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesSynced)
	assert.Equal(t, "snap-1", result.CommitID)
	require.Len(t, f.snaps.messages, 1)
	assert.Contains(t, f.snaps.messages[0], "1 uploaded")

	persisted, err := f.store.Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, persisted.Paths())
}

func TestCommitDeletionsIdempotent(t *testing.T) {
	f := newCommitterFixture(t)
	writeTree(t, f.root, map[string]string{"gone.txt": "x\n", "kept.txt": "y\n"})

	result, err := f.committer.Commit(context.Background(), &CommitRequest{
		DeletedFiles: []string{"gone.txt", "never-existed.txt"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.FilesSynced)

	assert.NoFileExists(t, filepath.Join(f.root, "gone.txt"))
	assert.FileExists(t, filepath.Join(f.root, "kept.txt"))

	persisted, err := f.store.Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"kept.txt"}, persisted.Paths())
}

func TestCommitRejectsEscapingPathsBeforeMutating(t *testing.T) {
	f := newCommitterFixture(t)
	writeTree(t, f.root, map[string]string{"victim.txt": "v\n"})

	_, err := f.committer.Commit(context.Background(), &CommitRequest{
		DeletedFiles: []string{"victim.txt", "../outside.txt"},
	})
	require.ErrorIs(t, err, utils.ErrPathEscapesRoot)

	// nothing was deleted, validation runs before any filesystem change
	assert.FileExists(t, filepath.Join(f.root, "victim.txt"))
}

func TestCommitCleanMerge(t *testing.T) {
	f := newCommitterFixture(t)

	f.snaps.addCommit("base", map[string]string{"note.txt": "line1\nline2\n"})
	f.snaps.addCommit("head", map[string]string{"note.txt": "line1\nCHANGED\n"})
	writeTree(t, f.root, map[string]string{"note.txt": "line1\nline2\nline3\n"})

	result, err := f.committer.Commit(context.Background(), &CommitRequest{
		ConflictFiles:  []string{"note.txt"},
		LastSyncCommit: "base",
	})
	require.NoError(t, err)

	require.Len(t, result.MergeResults, 1)
	assert.Equal(t, MergeStatusMerged, result.MergeResults[0].Status)
	assert.Empty(t, result.MergeResults[0].Content)
	assert.Equal(t, 1, result.FilesSynced)

	assert.Equal(t, "line1\nCHANGED\nline3\n", f.readFile(t, "note.txt"))
}

func TestCommitConflictRestoresServerCopy(t *testing.T) {
	f := newCommitterFixture(t)

	f.snaps.addCommit("base", map[string]string{"note.txt": "x\n"})
	f.snaps.addCommit("head", map[string]string{"note.txt": "z\n"})
	writeTree(t, f.root, map[string]string{"note.txt": "y\n"})

	result, err := f.committer.Commit(context.Background(), &CommitRequest{
		ConflictFiles:  []string{"note.txt"},
		LastSyncCommit: "base",
	})
	require.NoError(t, err)

	require.Len(t, result.MergeResults, 1)
	mr := result.MergeResults[0]
	assert.Equal(t, MergeStatusConflicted, mr.Status)
	assert.Contains(t, mr.Content, "<<<<<<< local")
	assert.Contains(t, mr.Content, "y\n")
	assert.Contains(t, mr.Content, "z\n")

	// the durable server copy never carries marker text
	assert.Equal(t, "z\n", f.readFile(t, "note.txt"))
	assert.Equal(t, 0, result.FilesSynced)
}

func TestCommitUnknownBaseFallsBackToWholeFileConflict(t *testing.T) {
	f := newCommitterFixture(t)

	f.snaps.addCommit("head", map[string]string{"note.txt": "server version\n"})
	writeTree(t, f.root, map[string]string{"note.txt": "client version\n"})

	result, err := f.committer.Commit(context.Background(), &CommitRequest{
		ConflictFiles:  []string{"note.txt"},
		LastSyncCommit: "pruned-away",
	})
	require.NoError(t, err)

	require.Len(t, result.MergeResults, 1)
	assert.Equal(t, MergeStatusConflicted, result.MergeResults[0].Status)
	assert.Equal(t, "server version\n", f.readFile(t, "note.txt"))
}

func TestCommitDeleteModifyRestoresServerEdit(t *testing.T) {
	f := newCommitterFixture(t)

	// client deleted the file locally, server edited it since the base
	f.snaps.addCommit("head", map[string]string{"note.txt": "server edit\n"})

	result, err := f.committer.Commit(context.Background(), &CommitRequest{
		ConflictFiles: []string{"note.txt"},
	})
	require.NoError(t, err)

	require.Len(t, result.MergeResults, 1)
	assert.Equal(t, MergeStatusMerged, result.MergeResults[0].Status)
	assert.Equal(t, "server edit\n", f.readFile(t, "note.txt"))
}

func TestCommitModifyDeleteKeepsClientEdit(t *testing.T) {
	f := newCommitterFixture(t)

	// server deleted the file, client's edit is already on disk
	f.snaps.addCommit("head", map[string]string{})
	writeTree(t, f.root, map[string]string{"note.txt": "client edit\n"})

	result, err := f.committer.Commit(context.Background(), &CommitRequest{
		ConflictFiles: []string{"note.txt"},
	})
	require.NoError(t, err)

	require.Len(t, result.MergeResults, 1)
	assert.Equal(t, MergeStatusMerged, result.MergeResults[0].Status)
	assert.Equal(t, "client edit\n", f.readFile(t, "note.txt"))
}

func TestCommitResolutionSkipsMerge(t *testing.T) {
	f := newCommitterFixture(t)

	f.snaps.addCommit("head", map[string]string{"note.txt": "server version\n"})
	writeTree(t, f.root, map[string]string{"note.txt": "client version\n"})

	result, err := f.committer.Commit(context.Background(), &CommitRequest{
		ConflictFiles: []string{"note.txt"},
		Resolutions:   map[string]string{"note.txt": "hand resolved\n"},
	})
	require.NoError(t, err)

	assert.Empty(t, result.MergeResults)
	assert.Equal(t, 1, result.FilesSynced)
	assert.Equal(t, "hand resolved\n", f.readFile(t, "note.txt"))
}

func TestCommitNormalizesUploadedMarkdown(t *testing.T) {
	f := newCommitterFixture(t)
	writeTree(t, f.root, map[string]string{"note.md": "just text\n"})

	result, err := f.committer.Commit(context.Background(), &CommitRequest{
		UploadedFiles: []string{"note.md"},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)

	meta, body := readMeta(t, filepath.Join(f.root, "note.md"))
	require.NotNil(t, meta)
	assert.Equal(t, "note", meta["title"])
	assert.Equal(t, "just text\n", body)
}

func TestCommitIdempotent(t *testing.T) {
	f := newCommitterFixture(t)
	writeTree(t, f.root, map[string]string{"note.md": "body text\n"})

	req := &CommitRequest{UploadedFiles: []string{"note.md"}}
	_, err := f.committer.Commit(context.Background(), req)
	require.NoError(t, err)

	first, err := f.store.Get()
	require.NoError(t, err)
	firstContent := f.readFile(t, "note.md")

	// same inputs, no external change: the resulting manifest must not move
	_, err = f.committer.Commit(context.Background(), req)
	require.NoError(t, err)

	second, err := f.store.Get()
	require.NoError(t, err)

	require.Contains(t, second, "note.md")
	assert.Equal(t, first["note.md"].Hash, second["note.md"].Hash)
	assert.Equal(t, first["note.md"].MTime, second["note.md"].MTime)
	assert.Equal(t, firstContent, f.readFile(t, "note.md"))
}

func TestCommitEmptyRequest(t *testing.T) {
	f := newCommitterFixture(t)

	result, err := f.committer.Commit(context.Background(), &CommitRequest{})
	require.NoError(t, err)
	assert.Zero(t, result.FilesSynced)
	assert.Empty(t, result.MergeResults)
	assert.Empty(t, result.Warnings)
}
