package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/quillbox/quillbox/internal/server/handlers/api"
	engine "github.com/quillbox/quillbox/internal/sync"
	"github.com/quillbox/quillbox/internal/utils"
)

// SyncService is the slice of the engine the handler needs.
type SyncService interface {
	Root() string
	PlanSession(ctx context.Context, client engine.Manifest) (*engine.SyncPlan, string, error)
	Commit(ctx context.Context, req *engine.CommitRequest) (*engine.CommitResult, error)
}

type SyncHandler struct {
	svc           SyncService
	maxUploadSize int64
}

func New(svc SyncService, maxUploadSize int64) *SyncHandler {
	return &SyncHandler{
		svc:           svc,
		maxUploadSize: maxUploadSize,
	}
}

// Init starts a sync session: the client declares its manifest, the server
// answers with the transfer plan and its current snapshot id.
func (h *SyncHandler) Init(ctx *gin.Context) {
	var req InitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("bind request: %w", err))
		return
	}

	for _, entry := range req.Files {
		if entry == nil {
			continue
		}
		if _, err := utils.RootJoin(h.svc.Root(), entry.Path); err != nil {
			api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidPath, err)
			return
		}
	}

	plan, head, err := h.svc.PlanSession(ctx.Request.Context(), engine.ManifestFromEntries(req.Files))
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &InitResponse{
		Plan:           NewPlanPayload(plan),
		ServerCommitID: head,
	})
}

// Upload receives one file's content for a sync session. The write is
// atomic; a concurrent download never sees a torn file.
func (h *SyncHandler) Upload(ctx *gin.Context) {
	var req UploadRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("bind query: %w", err))
		return
	}

	absPath, err := utils.RootJoin(h.svc.Root(), req.Path)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidPath, err)
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("form file: %w", err))
		return
	}

	if file.Size <= 0 {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, errors.New("empty upload"))
		return
	}
	if file.Size > h.maxUploadSize {
		api.AbortWithError(ctx, http.StatusRequestEntityTooLarge, api.CodePayloadTooLarge,
			fmt.Errorf("upload of %s exceeds limit of %s", humanize.IBytes(uint64(file.Size)), humanize.IBytes(uint64(h.maxUploadSize))))
		return
	}

	fd, err := file.Open()
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("open upload: %w", err))
		return
	}
	defer fd.Close()

	size, err := utils.CopyReaderAtomic(absPath, fd, 0o644)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, fmt.Errorf("write upload: %w", err))
		return
	}

	slog.Debug("upload", "path", req.Path, "size", humanize.IBytes(uint64(size)))
	ctx.PureJSON(http.StatusOK, &UploadResponse{
		Path: req.Path,
		Size: size,
	})
}

// Download serves one file's current server content. Symbolic links are
// resolved and re-confined, so a link inside the content root can never leak
// bytes from outside it.
func (h *SyncHandler) Download(ctx *gin.Context) {
	var req DownloadRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("bind query: %w", err))
		return
	}

	absPath, err := utils.RootJoinResolved(h.svc.Root(), req.Path)
	switch {
	case errors.Is(err, utils.ErrPathEscapesRoot):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidPath, err)
		return
	case errors.Is(err, os.ErrNotExist):
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeFileNotFound, fmt.Errorf("no such file: %s", req.Path))
		return
	case err != nil:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, fmt.Errorf("resolve path: %w", err))
		return
	}

	if !utils.FileExists(absPath) {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeFileNotFound, fmt.Errorf("no such file: %s", req.Path))
		return
	}

	ctx.File(absPath)
}

// Commit applies a session's resolution instructions. A client that
// disconnects mid-commit does not interrupt server-side work, so the commit
// runs on a context detached from the request.
func (h *SyncHandler) Commit(ctx *gin.Context) {
	var req CommitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("bind request: %w", err))
		return
	}

	result, err := h.svc.Commit(context.WithoutCancel(ctx.Request.Context()), &engine.CommitRequest{
		UploadedFiles:  req.UploadedFiles,
		DeletedFiles:   req.DeletedFiles,
		ConflictFiles:  req.ConflictFiles,
		Resolutions:    req.Resolutions,
		LastSyncCommit: req.LastSyncCommit,
	})
	if err != nil {
		if errors.Is(err, utils.ErrPathEscapesRoot) {
			api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidPath, err)
			return
		}
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeCommitFailed, err)
		return
	}

	resp := &CommitResponse{
		Status:       "ok",
		FilesSynced:  result.FilesSynced,
		Warnings:     result.Warnings,
		CommitHash:   result.CommitID,
		MergeResults: result.MergeResults,
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	if resp.MergeResults == nil {
		resp.MergeResults = []*engine.MergeResult{}
	}
	ctx.PureJSON(http.StatusOK, resp)
}
