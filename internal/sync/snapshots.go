package sync

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Snapshots supplies historical file content at a prior commit and records
// new commits over the working tree.
type Snapshots interface {
	// Head returns the current snapshot id, if any snapshot exists.
	Head() (string, bool)
	// Exists reports whether id names a known snapshot.
	Exists(id string) bool
	// ContentAt returns the text content of relPath at snapshot id, or nil
	// when the file is absent there or is not text.
	ContentAt(id string, relPath string) (*string, error)
	// Snapshot records the current working tree. No-op when nothing changed.
	Snapshot(message string) error
}

const contentCacheSize = 512

var snapshotAuthor = object.Signature{
	Name:  "quillbox",
	Email: "sync@quillbox.local",
}

// GitSnapshots implements Snapshots over a git repository colocated with the
// content root. Content lookups are immutable per (id, path) and cached.
type GitSnapshots struct {
	repo  *git.Repository
	root  string
	cache *lru.Cache[string, *string]
}

// OpenGitSnapshots opens the repository at root, initializing one on first
// use.
func OpenGitSnapshots(root string) (*GitSnapshots, error) {
	repo, err := git.PlainOpen(root)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		slog.Info("initializing snapshot repository", "root", root)
		repo, err = git.PlainInit(root, false)
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot repository at %s: %w", root, err)
	}

	cache, err := lru.New[string, *string](contentCacheSize)
	if err != nil {
		return nil, err
	}

	return &GitSnapshots{
		repo:  repo,
		root:  root,
		cache: cache,
	}, nil
}

func (g *GitSnapshots) Head() (string, bool) {
	ref, err := g.repo.Head()
	if err != nil {
		// empty repository has no head yet
		return "", false
	}
	return ref.Hash().String(), true
}

func (g *GitSnapshots) Exists(id string) bool {
	if id == "" {
		return false
	}
	_, err := g.repo.CommitObject(plumbing.NewHash(id))
	return err == nil
}

func (g *GitSnapshots) ContentAt(id string, relPath string) (*string, error) {
	cacheKey := id + "\x00" + relPath
	if content, ok := g.cache.Get(cacheKey); ok {
		return content, nil
	}

	commit, err := g.repo.CommitObject(plumbing.NewHash(id))
	if err != nil {
		return nil, fmt.Errorf("resolve snapshot %s: %w", id, err)
	}

	file, err := commit.File(relPath)
	if errors.Is(err, object.ErrFileNotFound) {
		g.cache.Add(cacheKey, nil)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s at snapshot %s: %w", relPath, id, err)
	}

	// binary files are never content-merged
	if isBinary, err := file.IsBinary(); err != nil || isBinary {
		g.cache.Add(cacheKey, nil)
		return nil, nil
	}

	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("read %s at snapshot %s: %w", relPath, id, err)
	}

	g.cache.Add(cacheKey, &content)
	return &content, nil
}

func (g *GitSnapshots) Snapshot(message string) error {
	wt, err := g.repo.Worktree()
	if err != nil {
		return fmt.Errorf("snapshot worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("snapshot status: %w", err)
	}
	if status.IsClean() {
		slog.Debug("snapshot skipped, working tree clean")
		return nil
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("snapshot stage: %w", err)
	}

	author := snapshotAuthor
	author.When = time.Now()
	hash, err := wt.Commit(message, &git.CommitOptions{Author: &author})
	if err != nil {
		return fmt.Errorf("snapshot commit: %w", err)
	}

	slog.Info("snapshot created", "commit", hash.String()[:8])
	return nil
}
