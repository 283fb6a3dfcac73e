// Package sync implements the bidirectional content synchronization engine:
// manifest scanning, three-state sync planning, line-level three-way merge
// and the serialized commit protocol.
package sync

import (
	"sort"
	"time"
)

// MTimeFormat is the wire and storage encoding for file modification times.
// RFC3339 with nanoseconds so a rescan on a sub-second-mtime filesystem
// produces identical entries.
const MTimeFormat = time.RFC3339Nano

// FileEntry is one file's observed state. Immutable once created; a new scan
// produces new entries.
type FileEntry struct {
	Path  string `json:"path" db:"path"`
	Hash  string `json:"hash" db:"hash"`
	Size  int64  `json:"size" db:"size"`
	MTime string `json:"mtime" db:"mtime"`
}

// Manifest maps relative slash-separated paths to their observed state.
type Manifest map[string]*FileEntry

// Paths returns the manifest keys in sorted order.
func (m Manifest) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Entries returns the manifest values ordered by path.
func (m Manifest) Entries() []*FileEntry {
	entries := make([]*FileEntry, 0, len(m))
	for _, p := range m.Paths() {
		entries = append(entries, m[p])
	}
	return entries
}

// ManifestFromEntries builds a Manifest from a flat entry list, as received
// from a client. Later duplicates win.
func ManifestFromEntries(entries []*FileEntry) Manifest {
	m := make(Manifest, len(entries))
	for _, e := range entries {
		if e == nil || e.Path == "" {
			continue
		}
		m[e.Path] = e
	}
	return m
}

// pathUnion returns the sorted union of keys across manifests.
func pathUnion(manifests ...Manifest) []string {
	all := make(map[string]struct{})
	for _, m := range manifests {
		for p := range m {
			all[p] = struct{}{}
		}
	}
	paths := make([]string, 0, len(all))
	for p := range all {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
