package sync

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/quillbox/quillbox/internal/db"
)

const manifestSchema = `
CREATE TABLE IF NOT EXISTS sync_manifest (
    path TEXT PRIMARY KEY,
    hash TEXT NOT NULL,
    size INTEGER NOT NULL,
    mtime TEXT NOT NULL -- RFC3339Nano string
);

CREATE INDEX IF NOT EXISTS idx_manifest_hash ON sync_manifest(hash);
`

// ManifestStore persists the server-last-known manifest across sync
// sessions, backed by SQLite. Written only by the commit coordinator.
type ManifestStore struct {
	db     *sqlx.DB
	dbPath string
}

func NewManifestStore(dbPath string) *ManifestStore {
	return &ManifestStore{dbPath: dbPath}
}

// Open the store and the underlying database.
func (s *ManifestStore) Open() error {
	if s.db != nil {
		return fmt.Errorf("manifest store already open")
	}

	sdb, err := db.NewSqliteDb(db.WithPath(s.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("open manifest store: %w", err)
	}

	if _, err := sdb.Exec(manifestSchema); err != nil {
		sdb.Close()
		return fmt.Errorf("initialize manifest schema: %w", err)
	}

	s.db = sdb
	return nil
}

// Close closes the underlying database connection.
func (s *ManifestStore) Close() error {
	if s.db == nil {
		return fmt.Errorf("manifest store not open")
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	s.db = nil
	slog.Debug("manifest store closed")
	return nil
}

// Get returns the persisted manifest. An empty store yields an empty
// manifest, not an error.
func (s *ManifestStore) Get() (Manifest, error) {
	var entries []*FileEntry
	if err := s.db.Select(&entries, "SELECT path, hash, size, mtime FROM sync_manifest"); err != nil {
		return nil, fmt.Errorf("query manifest: %w", err)
	}

	manifest := make(Manifest, len(entries))
	for _, e := range entries {
		manifest[e.Path] = e
	}
	return manifest, nil
}

// Put replaces the persisted manifest in a single transaction.
func (s *ManifestStore) Put(manifest Manifest) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin manifest tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM sync_manifest"); err != nil {
		return fmt.Errorf("clear manifest: %w", err)
	}

	stmt, err := tx.Preparex("INSERT INTO sync_manifest (path, hash, size, mtime) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare manifest insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range manifest.Entries() {
		if _, err := stmt.Exec(e.Path, e.Hash, e.Size, e.MTime); err != nil {
			return fmt.Errorf("insert manifest entry %s: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit manifest tx: %w", err)
	}
	return nil
}

// Count returns the number of persisted entries.
func (s *ManifestStore) Count() (int64, error) {
	var count int64
	if err := s.db.Get(&count, "SELECT COUNT(*) FROM sync_manifest"); err != nil {
		return 0, fmt.Errorf("count manifest entries: %w", err)
	}
	return count, nil
}
