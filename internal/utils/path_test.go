package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a/b/c.md", "a/b/c.md"},
		{"./a/b.md", "a/b.md"},
		{"a//b.md", "a/b.md"},
		{"/a/b.md", "a/b.md"},
		{`a\b.md`, "a/b.md"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormPath(tt.input), "NormPath(%q)", tt.input)
	}
}

func TestRootJoin(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "notes/a.md", false},
		{"dot segments collapse", "notes/./a.md", false},
		{"empty", "", true},
		{"absolute", "/etc/passwd", true},
		{"parent escape", "../outside.md", true},
		{"nested parent escape", "notes/../../outside.md", true},
		{"bare dotdot", "..", true},
		{"backslash absolute", `\evil`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RootJoin(root, tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			rel, err := filepath.Rel(root, got)
			require.NoError(t, err)
			assert.NotContains(t, rel, "..")
		})
	}
}

func TestRootJoinResolved(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "real.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "link.md")))

	got, err := RootJoinResolved(root, "real.md")
	require.NoError(t, err)
	assert.True(t, FileExists(got))

	_, err = RootJoinResolved(root, "link.md")
	assert.ErrorIs(t, err, ErrPathEscapesRoot)

	_, err = RootJoinResolved(root, "missing.md")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = RootJoinResolved(root, "../escape.md")
	assert.ErrorIs(t, err, ErrPathEscapesRoot)
}

func TestRootJoinConfinesInteriorDotDot(t *testing.T) {
	root := t.TempDir()

	// interior ".." that still lands inside root is fine
	got, err := RootJoin(root, "a/../b.md")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "b.md"), got)
}
