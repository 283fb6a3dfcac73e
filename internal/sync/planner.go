package sync

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// ConflictType classifies a concurrent-edit conflict.
type ConflictType string

const (
	// ConflictEditEdit means both sides edited the file since the last sync.
	ConflictEditEdit ConflictType = "edit-edit"
	// ConflictDeleteModify means the client deleted what the server edited.
	ConflictDeleteModify ConflictType = "delete-modify"
	// ConflictModifyDelete means the client edited what the server deleted.
	ConflictModifyDelete ConflictType = "modify-delete"
)

// Conflict records one path that cannot be synced without explicit
// resolution. ChangeType is a free-form descriptor for diagnostics.
type Conflict struct {
	Path       string       `json:"path"`
	Action     ConflictType `json:"action"`
	ChangeType string       `json:"change_type"`
}

// SyncPlan is the disjoint-category outcome of comparing three manifests.
// A path appears in at most one transfer category unless it is also in
// Conflicts, in which case the conflict wins and the transfer entry is
// dropped before the plan is returned.
type SyncPlan struct {
	ToUpload       mapset.Set[string] `json:"-"`
	ToDownload     mapset.Set[string] `json:"-"`
	ToDeleteLocal  mapset.Set[string] `json:"-"`
	ToDeleteRemote mapset.Set[string] `json:"-"`
	Conflicts      []*Conflict        `json:"conflicts"`
}

func NewSyncPlan() *SyncPlan {
	return &SyncPlan{
		ToUpload:       mapset.NewSet[string](),
		ToDownload:     mapset.NewSet[string](),
		ToDeleteLocal:  mapset.NewSet[string](),
		ToDeleteRemote: mapset.NewSet[string](),
	}
}

// HasChanges reports whether the plan requires any client action.
func (p *SyncPlan) HasChanges() bool {
	return p.ToUpload.Cardinality() > 0 ||
		p.ToDownload.Cardinality() > 0 ||
		p.ToDeleteLocal.Cardinality() > 0 ||
		p.ToDeleteRemote.Cardinality() > 0 ||
		len(p.Conflicts) > 0
}

func (p *SyncPlan) addConflict(path string, action ConflictType, change string) {
	// conflicts take precedence over transfer categories
	p.ToUpload.Remove(path)
	p.ToDownload.Remove(path)
	p.ToDeleteLocal.Remove(path)
	p.ToDeleteRemote.Remove(path)
	p.Conflicts = append(p.Conflicts, &Conflict{
		Path:       path,
		Action:     action,
		ChangeType: change,
	})
}

// Plan classifies every path in the union of the three manifests. Pure
// function over its inputs: client is the client-declared manifest,
// lastKnown the server's record of the previous successful commit, current
// the fresh scan of the content root.
func Plan(client, lastKnown, current Manifest) *SyncPlan {
	plan := NewSyncPlan()

	for _, path := range pathUnion(client, lastKnown, current) {
		cl, onClient := client[path]
		lk, onLastKnown := lastKnown[path]
		sv, onServer := current[path]

		switch {
		case !onClient && !onServer:
			// deleted on both sides already; nothing to do

		case !onClient && !onLastKnown && onServer:
			// new on server
			plan.ToDownload.Add(path)

		case onClient && !onLastKnown && !onServer:
			// new on client
			plan.ToUpload.Add(path)

		case onClient && onLastKnown && !onServer:
			// server deleted it; did the client edit it since last sync?
			if cl.Hash == lk.Hash {
				plan.ToDeleteLocal.Add(path)
			} else {
				plan.addConflict(path, ConflictModifyDelete, "client edited, server deleted")
			}

		case !onClient && onLastKnown && onServer:
			// client deleted it; did the server edit it since last sync?
			if sv.Hash == lk.Hash {
				plan.ToDeleteRemote.Add(path)
			} else {
				plan.addConflict(path, ConflictDeleteModify, "client deleted, server edited")
			}

		case onClient && !onLastKnown && onServer:
			// created independently on both sides with no common ancestor
			if cl.Hash != sv.Hash {
				plan.addConflict(path, ConflictEditEdit, "created on both sides")
			}

		default: // present in all three
			clientChanged := cl.Hash != lk.Hash
			serverChanged := sv.Hash != lk.Hash

			switch {
			case cl.Hash == sv.Hash:
				// in sync (covers convergent edits too)
			case clientChanged && !serverChanged:
				plan.ToUpload.Add(path)
			case serverChanged && !clientChanged:
				plan.ToDownload.Add(path)
			default:
				plan.addConflict(path, ConflictEditEdit, "edited on both sides")
			}
		}
	}

	return plan
}
