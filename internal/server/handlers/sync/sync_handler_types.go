package sync

import (
	"sort"

	engine "github.com/quillbox/quillbox/internal/sync"
)

type InitRequest struct {
	Files []*engine.FileEntry `json:"files"`
	// LastSyncCommit is advisory at init time: planning needs only the three
	// manifests. The commit step is where the base snapshot id is consumed,
	// so clients send it again in CommitRequest.
	LastSyncCommit string `json:"last_sync_commit"`
}

// PlanPayload is the wire form of a SyncPlan, with deterministic ordering.
type PlanPayload struct {
	ToUpload       []string          `json:"to_upload"`
	ToDownload     []string          `json:"to_download"`
	ToDeleteLocal  []string          `json:"to_delete_local"`
	ToDeleteRemote []string          `json:"to_delete_remote"`
	Conflicts      []*engine.Conflict `json:"conflicts"`
}

func NewPlanPayload(plan *engine.SyncPlan) *PlanPayload {
	sorted := func(s []string) []string {
		sort.Strings(s)
		return s
	}
	conflicts := plan.Conflicts
	if conflicts == nil {
		conflicts = []*engine.Conflict{}
	}
	return &PlanPayload{
		ToUpload:       sorted(plan.ToUpload.ToSlice()),
		ToDownload:     sorted(plan.ToDownload.ToSlice()),
		ToDeleteLocal:  sorted(plan.ToDeleteLocal.ToSlice()),
		ToDeleteRemote: sorted(plan.ToDeleteRemote.ToSlice()),
		Conflicts:      conflicts,
	}
}

type InitResponse struct {
	Plan           *PlanPayload `json:"plan"`
	ServerCommitID string       `json:"server_commit_id,omitempty"`
}

type UploadRequest struct {
	Path string `form:"path" binding:"required"`
}

type UploadResponse struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

type DownloadRequest struct {
	Path string `form:"path" binding:"required"`
}

type CommitRequest struct {
	Resolutions    map[string]string `json:"resolutions"`
	UploadedFiles  []string          `json:"uploaded_files"`
	DeletedFiles   []string          `json:"deleted_files"`
	ConflictFiles  []string          `json:"conflict_files"`
	LastSyncCommit string            `json:"last_sync_commit"`
}

type CommitResponse struct {
	Status       string                `json:"status"`
	FilesSynced  int                   `json:"files_synced"`
	Warnings     []string              `json:"warnings"`
	CommitHash   string                `json:"commit_hash,omitempty"`
	MergeResults []*engine.MergeResult `json:"merge_results"`
}
