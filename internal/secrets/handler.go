package secrets

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/studiokit/imagekit-backend/internal/imagekit"
	"github.com/studiokit/imagekit-backend/internal/models"
	"github.com/studiokit/imagekit-backend/pkg/response"
)

// Handler handles secrets HTTP endpoints.
type Handler struct {
	service *Service
	client  *imagekit.Client
	logger  *zap.Logger
}

// NewHandler creates a secrets handler.
func NewHandler(service *Service, client *imagekit.Client, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, client: client, logger: logger}
}

// SaveRequest is the body for PUT /secrets.
type SaveRequest struct {
	PublicKey           string `json:"publicKey"`
	PrivateKey          string `json:"privateKey"`
	URLEndpoint         string `json:"urlEndpoint"`
	EnablePrivateImages bool   `json:"enablePrivateImages"`
}

// Get handles GET /secrets.
func (h *Handler) Get(c *gin.Context) {
	record := h.service.Load(c.Request.Context())
	response.OK(c, record.View())
}

// Save handles PUT /secrets. The record is replaced wholesale.
func (h *Handler) Save(c *gin.Context) {
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	persisted, err := h.service.Save(c.Request.Context(), models.Secrets{
		PublicKey:           req.PublicKey,
		PrivateKey:          req.PrivateKey,
		URLEndpoint:         req.URLEndpoint,
		EnablePrivateImages: req.EnablePrivateImages,
	})
	if err != nil {
		if errors.Is(err, imagekit.ErrCredentialsInvalid) {
			response.UnprocessableEntity(c, err.Error())
			return
		}
		h.logger.Error("save secrets failed", zap.Error(err))
		response.Internal(c, "failed to save secrets")
		return
	}
	response.OK(c, persisted.View())
}

// Test handles POST /secrets/test: verifies the stored credentials against
// the vendor by listing a single file.
func (h *Handler) Test(c *gin.Context) {
	record := h.service.Resolve(c.Request.Context())
	if !record.Valid() {
		response.UnprocessableEntity(c, imagekit.ErrCredentialsMissing.Error())
		return
	}
	if err := h.client.TestCredentials(c.Request.Context(), record); err != nil {
		if errors.Is(err, imagekit.ErrCredentialsInvalid) {
			response.UnprocessableEntity(c, err.Error())
			return
		}
		h.logger.Warn("credential test failed", zap.Error(err))
		response.ServiceUnavailable(c, "unable to verify credentials")
		return
	}
	response.OK(c, gin.H{"valid": true})
}
