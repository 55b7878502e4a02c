package importer

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studiokit/imagekit-backend/internal/imagekit"
	"github.com/studiokit/imagekit-backend/internal/middleware"
	"github.com/studiokit/imagekit-backend/internal/models"
	"github.com/studiokit/imagekit-backend/internal/secrets"
	"github.com/studiokit/imagekit-backend/pkg/queue"
	"github.com/studiokit/imagekit-backend/pkg/response"
)

// Handler exposes media library browsing and bulk import over HTTP.
type Handler struct {
	importer   *Importer
	repo       *Repository
	secretsSvc *secrets.Service
	queue      *queue.Queue
	logger     *zap.Logger
}

func NewHandler(importer *Importer, repo *Repository, secretsSvc *secrets.Service, q *queue.Queue, logger *zap.Logger) *Handler {
	return &Handler{
		importer:   importer,
		repo:       repo,
		secretsSvc: secretsSvc,
		queue:      q,
		logger:     logger,
	}
}

// BrowseFiles lists importable remote videos, optionally filtered by
// comma-separated folder paths.
func (h *Handler) BrowseFiles(c *gin.Context) {
	creds := h.secretsSvc.Resolve(c.Request.Context())
	if !creds.Valid() {
		response.UnprocessableEntity(c, imagekit.ErrCredentialsMissing.Error())
		return
	}

	var folders []string
	if raw := c.Query("folders"); raw != "" {
		for _, folder := range strings.Split(raw, ",") {
			if folder = strings.TrimSpace(folder); folder != "" {
				folders = append(folders, folder)
			}
		}
	}

	files, err := h.importer.ListRemote(c.Request.Context(), creds, folders)
	if err != nil {
		h.vendorError(c, err, "failed to list remote files")
		return
	}
	response.OK(c, files)
}

// BrowseFolders lists remote folder paths for the filter picker.
func (h *Handler) BrowseFolders(c *gin.Context) {
	creds := h.secretsSvc.Resolve(c.Request.Context())
	if !creds.Valid() {
		response.UnprocessableEntity(c, imagekit.ErrCredentialsMissing.Error())
		return
	}

	folders, err := h.importer.ListFolders(c.Request.Context(), creds)
	if err != nil {
		h.vendorError(c, err, "failed to list remote folders")
		return
	}
	response.OK(c, folders)
}

type createJobRequest struct {
	Folders []string `json:"folders"`
}

// CreateJob persists a queued import job and enqueues it for the worker.
func (h *Handler) CreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	creds := h.secretsSvc.Resolve(c.Request.Context())
	if !creds.Valid() {
		response.UnprocessableEntity(c, imagekit.ErrCredentialsMissing.Error())
		return
	}

	job := &models.ImportJob{
		ID:      uuid.New(),
		Status:  models.ImportJobQueued,
		Folders: req.Folders,
	}
	if raw := c.GetString(middleware.ContextUserID); raw != "" {
		if userID, err := uuid.Parse(raw); err == nil {
			job.RequestedBy = userID
		}
	}

	if err := h.repo.Create(c.Request.Context(), job); err != nil {
		h.logger.Error("create import job failed", zap.Error(err))
		response.Internal(c, "failed to create import job")
		return
	}
	err := h.queue.EnqueueAssetImport(c.Request.Context(), queue.AssetImportPayload{
		JobID:       job.ID,
		Folders:     job.Folders,
		RequestedBy: job.RequestedBy,
	})
	if err != nil {
		h.logger.Error("enqueue import job failed", zap.Error(err), zap.String("job_id", job.ID.String()))
		response.Internal(c, "failed to enqueue import job")
		return
	}
	response.Accepted(c, job)
}

// GetJob returns one import job with its results.
func (h *Handler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid job id")
		return
	}
	job, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get import job failed", zap.Error(err))
		response.Internal(c, "failed to load import job")
		return
	}
	if job == nil {
		response.NotFound(c, "import job not found")
		return
	}
	response.OK(c, job)
}

// ListJobs returns recent import jobs.
func (h *Handler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	jobs, err := h.repo.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list import jobs failed", zap.Error(err))
		response.Internal(c, "failed to list import jobs")
		return
	}
	response.OK(c, jobs)
}

func (h *Handler) vendorError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, imagekit.ErrCredentialsInvalid) {
		response.UnprocessableEntity(c, imagekit.ErrCredentialsInvalid.Error())
		return
	}
	h.logger.Error(fallback, zap.Error(err))
	response.ServiceUnavailable(c, fallback)
}
