package assets

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studiokit/imagekit-backend/internal/imagekit"
	"github.com/studiokit/imagekit-backend/internal/models"
)

// Writer materializes asset documents from normalized vendor upload results.
type Writer struct {
	repo   *Repository
	logger *zap.Logger
}

// NewWriter creates an asset document writer.
func NewWriter(repo *Repository, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{repo: repo, logger: logger}
}

// Materialize maps a vendor upload result onto a persisted asset document.
// The session id becomes the document id; status is always ready and the
// poster frame starts at zero until edited.
func (w *Writer) Materialize(ctx context.Context, sessionID uuid.UUID, result *imagekit.UploadResponse) (*models.VideoAsset, error) {
	asset := &models.VideoAsset{
		ID:            sessionID,
		Type:          models.TypeVideoAsset,
		FileID:        result.FileID,
		Status:        models.AssetStatusReady,
		URL:           imagekit.CleanURL(result.URL),
		Filename:      result.Name,
		ThumbnailTime: 0,
		Data:          result.Raw,
	}
	if err := w.repo.Create(ctx, asset); err != nil {
		return nil, fmt.Errorf("create asset document: %w", err)
	}
	w.logger.Info("asset document created",
		zap.String("asset_id", asset.ID.String()),
		zap.String("file_id", asset.FileID),
		zap.String("filename", asset.Filename),
	)
	return asset, nil
}

// FromRemoteFile maps a vendor file listing entry onto a new asset document
// shape (used by the importer). The document is not persisted here.
func FromRemoteFile(file imagekit.FileDetails) *models.VideoAsset {
	data := file.Raw
	if data == nil {
		data = map[string]any{}
	}
	data["upload_id"] = file.FileID
	if file.Width > 0 && file.Height > 0 {
		data["resolution"] = fmt.Sprintf("%dx%d", file.Width, file.Height)
		data["max_resolution"] = fmt.Sprintf("%dx%d", file.Width, file.Height)
		data["aspect_ratio"] = fmt.Sprintf("%.2f", float64(file.Width)/float64(file.Height))
	}
	return &models.VideoAsset{
		ID:            uuid.New(),
		Type:          models.TypeVideoAsset,
		FileID:        file.FileID,
		Status:        models.AssetStatusReady,
		URL:           imagekit.CleanURL(file.URL),
		Filename:      file.Name,
		ThumbnailTime: 0,
		Data:          data,
	}
}
