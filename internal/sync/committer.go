package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	gosync "sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/quillbox/quillbox/internal/utils"
)

// CommitRequest is one sync session's batch of resolution instructions.
type CommitRequest struct {
	// UploadedFiles lists paths whose content the client already uploaded.
	UploadedFiles []string
	// DeletedFiles lists paths to remove from the content root.
	DeletedFiles []string
	// ConflictFiles lists paths the plan reported as conflicts, to be
	// resolved via the merge engine.
	ConflictFiles []string
	// Resolutions carries client-resolved content for previously conflicted
	// paths, written verbatim before merging starts.
	Resolutions map[string]string
	// LastSyncCommit is the client's record of the last common snapshot,
	// used as the merge base when it is still reachable.
	LastSyncCommit string
}

// CommitResult reports the outcome of a commit session.
type CommitResult struct {
	MergeResults []*MergeResult
	CommitID     string
	FilesSynced  int
	Warnings     []string
}

// Committer orchestrates the commit protocol. The entire sequence runs under
// a process-wide mutex plus an advisory file lock, so exactly one commit
// mutates the content root and the manifest store at a time. There is no
// cancellation once a commit starts and no timeout on the critical section.
type Committer struct {
	root       string
	scanner    *Scanner
	store      *ManifestStore
	snaps      Snapshots
	normalizer *Normalizer
	lock       *flock.Flock
	mu         gosync.Mutex
}

func NewCommitter(root string, scanner *Scanner, store *ManifestStore, snaps Snapshots, normalizer *Normalizer, lockPath string) *Committer {
	return &Committer{
		root:       root,
		scanner:    scanner,
		store:      store,
		snaps:      snaps,
		normalizer: normalizer,
		lock:       flock.New(lockPath),
	}
}

// Commit runs the commit protocol:
//
//  1. apply deletions (idempotent)
//  2. capture pre-commit server content of every conflict path
//  3. resolve conflicts through the merge engine
//  4. normalize metadata on uploaded and cleanly merged files
//  5. snapshot the working tree (failure logged, not surfaced)
//  6. rescan and persist the new server-last-known manifest
//
// Step 6 runs even when an earlier step failed, so the persisted manifest
// always matches the on-disk state the session left behind.
func (c *Committer) Commit(ctx context.Context, req *CommitRequest) (*CommitResult, error) {
	// validate every client-supplied path before touching the filesystem
	if err := c.validatePaths(req); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.lock.Lock(); err != nil {
		return nil, fmt.Errorf("acquire commit lock: %w", err)
	}
	defer c.lock.Unlock()

	tStart := time.Now()
	result := &CommitResult{}

	oldManifest, err := c.store.Get()
	if err != nil {
		return nil, fmt.Errorf("load last-known manifest: %w", err)
	}

	// write client-side resolutions before anything else; a resolved path
	// needs no server-side merge
	resolved := make(map[string]bool, len(req.Resolutions))
	var commitErr error
	for relPath, content := range req.Resolutions {
		absPath, _ := utils.RootJoin(c.root, relPath)
		if err := utils.WriteFileAtomic(absPath, []byte(content), 0o644); err != nil {
			commitErr = fmt.Errorf("write resolution %s: %w", relPath, err)
			break
		}
		resolved[relPath] = true
	}

	// step 1: deletions, missing targets are fine
	if commitErr == nil {
		for _, relPath := range req.DeletedFiles {
			absPath, _ := utils.RootJoin(c.root, relPath)
			if err := os.Remove(absPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				commitErr = fmt.Errorf("delete %s: %w", relPath, err)
				break
			}
		}
	}

	// step 2: capture the server side of every conflict from the snapshot
	// that predates this session's uploads
	headBefore, hasHead := c.snaps.Head()

	// step 3: resolve conflicts
	var cleanMerges []string
	if commitErr == nil {
		cleanMerges, commitErr = c.resolveConflicts(req, headBefore, hasHead, resolved, result)
	}

	// step 4: metadata normalization over uploads and clean merges
	if commitErr == nil {
		normalizePaths := make([]string, 0, len(req.UploadedFiles)+len(cleanMerges)+len(resolved))
		normalizePaths = append(normalizePaths, req.UploadedFiles...)
		normalizePaths = append(normalizePaths, cleanMerges...)
		for relPath := range resolved {
			normalizePaths = append(normalizePaths, relPath)
		}
		result.Warnings = append(result.Warnings, c.normalizer.Normalize(normalizePaths, oldManifest, c.root)...)
	}

	// step 5: snapshot; failure is local, content state is already correct
	if commitErr == nil {
		msg := fmt.Sprintf("sync: %d uploaded, %d deleted, %d conflicts", len(req.UploadedFiles), len(req.DeletedFiles), len(req.ConflictFiles))
		if err := c.snaps.Snapshot(msg); err != nil {
			slog.Warn("snapshot failed", "error", err)
		}
	}

	// step 6: always reconcile the manifest with reality
	manifest, err := c.scanner.Scan(ctx)
	if err != nil {
		if commitErr == nil {
			commitErr = fmt.Errorf("post-commit scan: %w", err)
		}
	} else if err := c.store.Put(manifest); err != nil && commitErr == nil {
		commitErr = fmt.Errorf("persist manifest: %w", err)
	}

	if id, ok := c.snaps.Head(); ok {
		result.CommitID = id
	}
	result.FilesSynced = len(req.UploadedFiles) + len(req.DeletedFiles) + len(cleanMerges) + len(resolved)

	slog.Info("commit",
		"uploaded", len(req.UploadedFiles),
		"deleted", len(req.DeletedFiles),
		"conflicts", len(req.ConflictFiles),
		"resolutions", len(resolved),
		"warnings", len(result.Warnings),
		"commit", result.CommitID,
		"took", time.Since(tStart),
	)

	if commitErr != nil {
		return result, commitErr
	}
	return result, nil
}

// resolveConflicts handles step 3 for every conflict path and returns the
// paths that merged cleanly.
func (c *Committer) resolveConflicts(req *CommitRequest, headBefore string, hasHead bool, resolved map[string]bool, result *CommitResult) ([]string, error) {
	var cleanMerges []string

	baseUsable := req.LastSyncCommit != "" && c.snaps.Exists(req.LastSyncCommit)

	for _, relPath := range req.ConflictFiles {
		if resolved[relPath] {
			continue
		}

		absPath, _ := utils.RootJoin(c.root, relPath)

		var serverContent *string
		if hasHead {
			content, err := c.snaps.ContentAt(headBefore, relPath)
			if err != nil {
				return cleanMerges, fmt.Errorf("capture server content %s: %w", relPath, err)
			}
			serverContent = content
		}

		localBytes, err := os.ReadFile(absPath)
		localExists := err == nil
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cleanMerges, fmt.Errorf("read local %s: %w", relPath, err)
		}

		switch {
		case !localExists && serverContent != nil:
			// delete/modify: server's edit wins, restore its content
			if err := utils.WriteFileAtomic(absPath, []byte(*serverContent), 0o644); err != nil {
				return cleanMerges, fmt.Errorf("restore server %s: %w", relPath, err)
			}
			result.MergeResults = append(result.MergeResults, &MergeResult{Path: relPath, Status: MergeStatusMerged})
			cleanMerges = append(cleanMerges, relPath)

		case localExists && serverContent == nil:
			// modify/delete: client's edit wins and is already on disk
			result.MergeResults = append(result.MergeResults, &MergeResult{Path: relPath, Status: MergeStatusMerged})
			cleanMerges = append(cleanMerges, relPath)

		case !localExists && serverContent == nil:
			// gone on both sides, nothing to resolve
			result.MergeResults = append(result.MergeResults, &MergeResult{Path: relPath, Status: MergeStatusMerged})

		default:
			var base *string
			if baseUsable {
				content, err := c.snaps.ContentAt(req.LastSyncCommit, relPath)
				if err != nil {
					return cleanMerges, fmt.Errorf("load merge base %s: %w", relPath, err)
				}
				base = content
			}

			merged, hasConflict := Merge(base, *serverContent, string(localBytes))
			if !hasConflict {
				if err := utils.WriteFileAtomic(absPath, []byte(merged), 0o644); err != nil {
					return cleanMerges, fmt.Errorf("write merged %s: %w", relPath, err)
				}
				result.MergeResults = append(result.MergeResults, &MergeResult{Path: relPath, Status: MergeStatusMerged})
				cleanMerges = append(cleanMerges, relPath)
				continue
			}

			// never leave marker text as the durable server copy; restore the
			// server's version and hand the markers back for resolution
			if err := utils.WriteFileAtomic(absPath, []byte(*serverContent), 0o644); err != nil {
				return cleanMerges, fmt.Errorf("restore server %s: %w", relPath, err)
			}
			result.MergeResults = append(result.MergeResults, &MergeResult{
				Path:    relPath,
				Status:  MergeStatusConflicted,
				Content: merged,
			})
		}
	}

	return cleanMerges, nil
}

func (c *Committer) validatePaths(req *CommitRequest) error {
	check := func(relPath string) error {
		if _, err := utils.RootJoin(c.root, relPath); err != nil {
			return err
		}
		return nil
	}

	for _, p := range req.UploadedFiles {
		if err := check(p); err != nil {
			return err
		}
	}
	for _, p := range req.DeletedFiles {
		if err := check(p); err != nil {
			return err
		}
	}
	for _, p := range req.ConflictFiles {
		if err := check(p); err != nil {
			return err
		}
	}
	for p := range req.Resolutions {
		if err := check(p); err != nil {
			return err
		}
	}
	return nil
}
