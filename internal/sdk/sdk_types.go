package sdk

import (
	engine "github.com/quillbox/quillbox/internal/sync"
)

type InitParams struct {
	Files          []*engine.FileEntry `json:"files"`
	LastSyncCommit string              `json:"last_sync_commit,omitempty"`
}

type PlanPayload struct {
	ToUpload       []string           `json:"to_upload"`
	ToDownload     []string           `json:"to_download"`
	ToDeleteLocal  []string           `json:"to_delete_local"`
	ToDeleteRemote []string           `json:"to_delete_remote"`
	Conflicts      []*engine.Conflict `json:"conflicts"`
}

type InitResponse struct {
	Plan           *PlanPayload `json:"plan"`
	ServerCommitID string       `json:"server_commit_id"`
}

type UploadResponse struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

type CommitParams struct {
	Resolutions    map[string]string `json:"resolutions,omitempty"`
	UploadedFiles  []string          `json:"uploaded_files,omitempty"`
	DeletedFiles   []string          `json:"deleted_files,omitempty"`
	ConflictFiles  []string          `json:"conflict_files,omitempty"`
	LastSyncCommit string            `json:"last_sync_commit,omitempty"`
}

type CommitResponse struct {
	Status       string                `json:"status"`
	FilesSynced  int                   `json:"files_synced"`
	Warnings     []string              `json:"warnings"`
	CommitHash   string                `json:"commit_hash"`
	MergeResults []*engine.MergeResult `json:"merge_results"`
}
