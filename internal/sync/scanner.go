package sync

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	gosync "sync"

	"golang.org/x/sync/errgroup"

	"github.com/quillbox/quillbox/internal/utils"
)

// Scanner walks the content root and produces a manifest snapshot. Stateless
// apart from an mtime+size hash cache that avoids re-digesting unchanged
// files across scans.
type Scanner struct {
	root   string
	ignore *IgnoreList

	mu        gosync.Mutex
	lastState Manifest
}

func NewScanner(root string, ignore *IgnoreList) *Scanner {
	return &Scanner{
		root:      root,
		ignore:    ignore,
		lastState: make(Manifest),
	}
}

// Scan walks the tree rooted at the content root and returns one FileEntry
// per regular file, keyed by slash-separated relative path. Entries whose
// name starts with "." are skipped, as are ignore-list matches and symbolic
// links (links are never followed, so the walk cannot leave the root).
// Identical tree state yields an identical manifest.
func (s *Scanner) Scan(ctx context.Context) (Manifest, error) {
	type pending struct {
		relPath string
		absPath string
		size    int64
		mtime   string
	}

	var toHash []pending
	manifest := make(Manifest)

	s.mu.Lock()
	prev := s.lastState
	s.mu.Unlock()

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk error: %w", walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if path == s.root {
			return nil
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// never follow symlinks, files or dirs
		if d.Type()&fs.ModeSymlink != 0 {
			slog.Debug("scan skip symlink", "path", path)
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return fmt.Errorf("walk rel path: %w", err)
		}
		relPath = utils.NormPath(relPath)

		if s.ignore != nil && s.ignore.ShouldIgnore(relPath) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("scan stat failed, skipping", "path", path, "error", err)
			return nil
		}

		mtime := info.ModTime().UTC().Format(MTimeFormat)

		// reuse the digest when size+mtime are unchanged since the last scan
		if prevEntry, ok := prev[relPath]; ok && prevEntry.Size == info.Size() && prevEntry.MTime == mtime {
			manifest[relPath] = &FileEntry{
				Path:  relPath,
				Hash:  prevEntry.Hash,
				Size:  info.Size(),
				MTime: mtime,
			}
			return nil
		}

		toHash = append(toHash, pending{
			relPath: relPath,
			absPath: path,
			size:    info.Size(),
			mtime:   mtime,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.root, err)
	}

	var mu gosync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for _, p := range toHash {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hash, err := utils.FileHash(p.absPath)
			if err != nil {
				// file vanished or unreadable mid-scan, leave it out
				slog.Warn("scan hash failed, skipping", "path", p.absPath, "error", err)
				return nil
			}
			mu.Lock()
			manifest[p.relPath] = &FileEntry{
				Path:  p.relPath,
				Hash:  hash,
				Size:  p.size,
				MTime: p.mtime,
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.root, err)
	}

	s.mu.Lock()
	s.lastState = manifest
	s.mu.Unlock()

	return manifest, nil
}

// Root returns the content root the scanner is bound to.
func (s *Scanner) Root() string {
	return s.root
}
