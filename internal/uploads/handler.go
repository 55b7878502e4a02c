package uploads

import (
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studiokit/imagekit-backend/internal/imagekit"
	"github.com/studiokit/imagekit-backend/pkg/response"
)

// Handler exposes the upload orchestrator over HTTP.
type Handler struct {
	orch        *Orchestrator
	maxFileSize int64
	logger      *zap.Logger
}

func NewHandler(orch *Orchestrator, maxFileSizeMB int, logger *zap.Logger) *Handler {
	return &Handler{
		orch:        orch,
		maxFileSize: int64(maxFileSizeMB) * 1024 * 1024,
		logger:      logger,
	}
}

type stageURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// Stage accepts either a multipart file (field "file") or a JSON body with a
// url, and stages it for the next commit.
func (h *Handler) Stage(c *gin.Context) {
	contentType := c.GetHeader("Content-Type")

	var input StagedUpload
	if strings.HasPrefix(contentType, "multipart/form-data") {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			response.BadRequest(c, "missing file field")
			return
		}
		if h.maxFileSize > 0 && fileHeader.Size > h.maxFileSize {
			response.PayloadTooLarge(c, imagekit.NewUploadError(413, "").Message)
			return
		}
		f, err := fileHeader.Open()
		if err != nil {
			response.Internal(c, "failed to open uploaded file")
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			response.Internal(c, "failed to read uploaded file")
			return
		}
		input = StagedUpload{
			Kind: KindFile,
			File: &imagekit.UploadFile{
				Name:        fileHeader.Filename,
				ContentType: fileHeader.Header.Get("Content-Type"),
				Data:        data,
			},
		}
	} else {
		var req stageURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "url is required")
			return
		}
		input = StagedUpload{Kind: KindURL, URL: req.URL}
	}

	if !h.orch.Stage(input) {
		response.Conflict(c, "an upload is already in progress")
		return
	}
	response.OK(c, h.orch.Status())
}

// Commit starts the staged upload with the submitted settings.
func (h *Handler) Commit(c *gin.Context) {
	var cfg Settings
	if err := c.ShouldBindJSON(&cfg); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid upload settings")
		return
	}

	err := h.orch.Commit(c.Request.Context(), cfg)
	switch {
	case err == nil:
		response.Accepted(c, h.orch.Status())
	case errors.Is(err, ErrNoStagedUpload):
		response.Conflict(c, err.Error())
	case errors.Is(err, imagekit.ErrInvalidURL):
		response.BadRequest(c, err.Error())
	case errors.Is(err, imagekit.ErrCredentialsMissing):
		response.UnprocessableEntity(c, err.Error())
	default:
		h.logger.Error("commit failed", zap.Error(err))
		response.Internal(c, "failed to start upload")
	}
}

// Cancel aborts the in-flight file upload.
func (h *Handler) Cancel(c *gin.Context) {
	if !h.orch.Cancel() {
		response.Conflict(c, "no cancellable upload in progress")
		return
	}
	response.OK(c, h.orch.Status())
}

// CancelSession is the session-scoped variant kept for older clients.
func (h *Handler) CancelSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	if !h.orch.CancelSession(id) {
		response.NotFound(c, "no such upload session")
		return
	}
	response.OK(c, h.orch.Status())
}

// Reset discards all upload state.
func (h *Handler) Reset(c *gin.Context) {
	h.orch.Reset()
	response.OK(c, h.orch.Status())
}

// Status returns the orchestrator snapshot.
func (h *Handler) Status(c *gin.Context) {
	response.OK(c, h.orch.Status())
}

// Events streams upload events over a websocket.
func (h *Handler) Events(c *gin.Context) {
	ServeEvents(h.orch.Events(), h.logger)(c)
}
