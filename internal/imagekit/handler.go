package imagekit

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/studiokit/imagekit-backend/internal/models"
	"github.com/studiokit/imagekit-backend/pkg/response"
)

// SecretsSource resolves stored credentials with environment fallbacks.
type SecretsSource interface {
	Resolve(ctx context.Context) models.Secrets
}

// Handler serves vendor auth parameters for client-side signed uploads.
type Handler struct {
	secrets SecretsSource
	ttl     time.Duration
	logger  *zap.Logger
}

func NewHandler(secrets SecretsSource, ttlSec int, logger *zap.Logger) *Handler {
	return &Handler{
		secrets: secrets,
		ttl:     time.Duration(ttlSec) * time.Second,
		logger:  logger,
	}
}

// Auth signs one-time upload auth parameters with the stored private key.
func (h *Handler) Auth(c *gin.Context) {
	creds := h.secrets.Resolve(c.Request.Context())
	if !creds.Valid() {
		response.UnprocessableEntity(c, ErrCredentialsMissing.Error())
		return
	}

	params, err := GenerateAuthParams(creds, h.ttl)
	if err != nil {
		h.logger.Error("auth param signing failed", zap.Error(err))
		response.Internal(c, "failed to generate auth parameters")
		return
	}
	response.OK(c, params)
}
