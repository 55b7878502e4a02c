package assets

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studiokit/imagekit-backend/internal/imagekit"
	"github.com/studiokit/imagekit-backend/internal/secrets"
	"github.com/studiokit/imagekit-backend/pkg/response"
)

// Handler handles asset document HTTP endpoints.
type Handler struct {
	repo    *Repository
	secrets *secrets.Service
	client  *imagekit.Client
	logger  *zap.Logger
}

// NewHandler creates an assets handler.
func NewHandler(repo *Repository, secretsSvc *secrets.Service, client *imagekit.Client, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, secrets: secretsSvc, client: client, logger: logger}
}

// List handles GET /assets.
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, err := h.repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list assets failed", zap.Error(err))
		response.Internal(c, "failed to list assets")
		return
	}
	response.OK(c, list)
}

// Get handles GET /assets/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid asset id")
		return
	}
	asset, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get asset failed", zap.Error(err), zap.String("asset_id", id.String()))
		response.Internal(c, "failed to load asset")
		return
	}
	if asset == nil {
		response.NotFound(c, "asset not found")
		return
	}
	response.OK(c, asset)
}

// Refresh handles POST /assets/:id/refresh: re-fetches vendor file details
// and replaces the asset's metadata and sanitized url.
func (h *Handler) Refresh(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid asset id")
		return
	}
	asset, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil || asset == nil {
		response.NotFound(c, "asset not found")
		return
	}
	if asset.FileID == "" {
		response.BadRequest(c, "asset has no vendor file id")
		return
	}

	record := h.secrets.Resolve(c.Request.Context())
	if !record.Valid() {
		response.UnprocessableEntity(c, imagekit.ErrCredentialsMissing.Error())
		return
	}
	detail, err := h.client.GetFileDetails(c.Request.Context(), record, asset.FileID)
	if err != nil {
		h.logger.Warn("refresh asset failed", zap.Error(err), zap.String("file_id", asset.FileID))
		response.ServiceUnavailable(c, "failed to fetch file details")
		return
	}
	if err := h.repo.UpdateData(c.Request.Context(), id, detail.URL, detail.Raw); err != nil {
		h.logger.Error("update asset data failed", zap.Error(err), zap.String("asset_id", id.String()))
		response.Internal(c, "failed to update asset")
		return
	}
	updated, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil || updated == nil {
		response.Internal(c, "failed to reload asset")
		return
	}
	response.OK(c, updated)
}

// ThumbnailRequest is the body for PATCH /assets/:id/thumbnail.
type ThumbnailRequest struct {
	ThumbnailTime float64 `json:"thumbnailTime"`
}

// PatchThumbnail handles PATCH /assets/:id/thumbnail.
func (h *Handler) PatchThumbnail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid asset id")
		return
	}
	var req ThumbnailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.ThumbnailTime < 0 {
		response.BadRequest(c, "thumbnailTime must be non-negative")
		return
	}
	if err := h.repo.UpdateThumbnailTime(c.Request.Context(), id, req.ThumbnailTime); err != nil {
		response.NotFound(c, "asset not found")
		return
	}
	response.OK(c, gin.H{"id": id, "thumbnailTime": req.ThumbnailTime})
}

// Delete handles DELETE /assets/:id. With ?remote=true the vendor file is
// deleted as well; a vendor not-found counts as already deleted. The two
// failure modes are reported distinctly so the caller knows what remains.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid asset id")
		return
	}
	deleteRemote := c.DefaultQuery("remote", "true") == "true"

	asset, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get asset failed", zap.Error(err), zap.String("asset_id", id.String()))
		response.Internal(c, "failed to load asset")
		return
	}
	if asset == nil {
		response.NoContent(c)
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		h.logger.Error("delete asset document failed", zap.Error(err), zap.String("asset_id", id.String()))
		response.Internal(c, "failed to delete asset document")
		return
	}

	if deleteRemote && asset.FileID != "" {
		record := h.secrets.Resolve(c.Request.Context())
		if !record.Valid() {
			response.OK(c, gin.H{"deleted": true, "remote": "skipped", "reason": "credentials not configured"})
			return
		}
		if err := h.client.DeleteFile(c.Request.Context(), record, asset.FileID); err != nil {
			h.logger.Warn("vendor delete failed", zap.Error(err), zap.String("file_id", asset.FileID))
			response.OK(c, gin.H{"deleted": true, "remote": "failed", "reason": err.Error()})
			return
		}
	}
	response.OK(c, gin.H{"deleted": true, "remote": remoteStatus(deleteRemote, asset.FileID)})
}

func remoteStatus(requested bool, fileID string) string {
	if !requested || fileID == "" {
		return "skipped"
	}
	return "deleted"
}

// LinkRequest is the body for PUT /documents/:id/fields/:field.
type LinkRequest struct {
	AssetID uuid.UUID `json:"assetId" binding:"required"`
}

// Link handles PUT /documents/:id/fields/:field: sets the weak reference from
// a document field to an asset atomically.
func (h *Handler) Link(c *gin.Context) {
	documentID := c.Param("id")
	field := c.Param("field")
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.repo.LinkToDocument(c.Request.Context(), documentID, field, req.AssetID); err != nil {
		h.logger.Warn("link asset failed", zap.Error(err),
			zap.String("document_id", documentID), zap.String("asset_id", req.AssetID.String()))
		response.NotFound(c, "asset not found")
		return
	}
	response.OK(c, gin.H{"documentId": documentID, "field": field, "assetId": req.AssetID})
}

// Unlink handles DELETE /documents/:id/fields/:field.
func (h *Handler) Unlink(c *gin.Context) {
	if err := h.repo.UnlinkDocument(c.Request.Context(), c.Param("id"), c.Param("field")); err != nil {
		h.logger.Error("unlink asset failed", zap.Error(err))
		response.Internal(c, "failed to clear reference")
		return
	}
	response.NoContent(c)
}

// GetDocumentAsset handles GET /documents/:id/fields/:field.
func (h *Handler) GetDocumentAsset(c *gin.Context) {
	asset, err := h.repo.GetDocumentAsset(c.Request.Context(), c.Param("id"), c.Param("field"))
	if err != nil {
		h.logger.Error("resolve document asset failed", zap.Error(err))
		response.Internal(c, "failed to resolve reference")
		return
	}
	if asset == nil {
		response.NotFound(c, "no asset linked")
		return
	}
	response.OK(c, asset)
}
