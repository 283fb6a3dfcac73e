package sync

import (
	"context"
	"fmt"
	"log/slog"
)

// ServiceConfig configures the sync engine.
type ServiceConfig struct {
	// ContentDir is the content root all sync sessions operate on.
	ContentDir string
	// DBPath locates the manifest store database.
	DBPath string
	// LockPath locates the commit lock file.
	LockPath string
	// FrontMatter supplies default front-matter keys for the normalizer.
	FrontMatter map[string]string
}

// Service binds the engine together: scanner, manifest store, snapshots and
// the commit coordinator. Planning is lock-free; commits serialize through
// the Committer.
type Service struct {
	root      string
	scanner   *Scanner
	store     *ManifestStore
	snaps     Snapshots
	committer *Committer
}

func NewService(cfg *ServiceConfig) (*Service, error) {
	snaps, err := OpenGitSnapshots(cfg.ContentDir)
	if err != nil {
		return nil, err
	}

	ignore := NewIgnoreList(cfg.ContentDir)
	scanner := NewScanner(cfg.ContentDir, ignore)
	store := NewManifestStore(cfg.DBPath)
	normalizer := NewNormalizer(cfg.FrontMatter)
	committer := NewCommitter(cfg.ContentDir, scanner, store, snaps, normalizer, cfg.LockPath)

	return &Service{
		root:      cfg.ContentDir,
		scanner:   scanner,
		store:     store,
		snaps:     snaps,
		committer: committer,
	}, nil
}

func (s *Service) Start(ctx context.Context) error {
	if err := s.store.Open(); err != nil {
		return err
	}

	// seed the last-known manifest on a fresh store so the first session
	// doesn't see every server file as brand new after a reinstall
	count, err := s.store.Count()
	if err != nil {
		return err
	}
	if count == 0 {
		if _, ok := s.snaps.Head(); ok {
			manifest, err := s.scanner.Scan(ctx)
			if err != nil {
				return fmt.Errorf("seed manifest: %w", err)
			}
			if err := s.store.Put(manifest); err != nil {
				return fmt.Errorf("seed manifest: %w", err)
			}
			slog.Info("seeded manifest store", "files", len(manifest))
		}
	}

	return nil
}

func (s *Service) Shutdown(ctx context.Context) error {
	return s.store.Close()
}

// Root returns the content root.
func (s *Service) Root() string {
	return s.root
}

// PlanSession computes the sync plan for a client-declared manifest against
// the last-known and freshly scanned server manifests. Returns the plan and
// the current snapshot id. Not serialized; correctness relies on the commit
// phase using current state rather than this plan's snapshot of it.
func (s *Service) PlanSession(ctx context.Context, client Manifest) (*SyncPlan, string, error) {
	lastKnown, err := s.store.Get()
	if err != nil {
		return nil, "", fmt.Errorf("load last-known manifest: %w", err)
	}

	current, err := s.scanner.Scan(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("scan content root: %w", err)
	}

	plan := Plan(client, lastKnown, current)
	head, _ := s.snaps.Head()

	if plan.HasChanges() {
		slog.Debug("plan",
			"uploads", plan.ToUpload.Cardinality(),
			"downloads", plan.ToDownload.Cardinality(),
			"localDeletes", plan.ToDeleteLocal.Cardinality(),
			"remoteDeletes", plan.ToDeleteRemote.Cardinality(),
			"conflicts", len(plan.Conflicts),
		)
	}

	return plan, head, nil
}

// Commit executes the serialized commit protocol for one session.
func (s *Service) Commit(ctx context.Context, req *CommitRequest) (*CommitResult, error) {
	return s.committer.Commit(ctx, req)
}
