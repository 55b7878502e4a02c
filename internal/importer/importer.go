package importer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/studiokit/imagekit-backend/internal/assets"
	"github.com/studiokit/imagekit-backend/internal/imagekit"
	"github.com/studiokit/imagekit-backend/internal/models"
)

const listPageSize = 100

// VendorBrowser lists remote media library contents.
type VendorBrowser interface {
	ListFiles(ctx context.Context, secrets models.Secrets, opts imagekit.ListOptions) ([]imagekit.FileDetails, error)
	ListFolders(ctx context.Context, secrets models.Secrets) ([]string, error)
}

// AssetStore is the subset of the asset repository the importer needs.
type AssetStore interface {
	GetByFileID(ctx context.Context, fileID string) (*models.VideoAsset, error)
	Create(ctx context.Context, a *models.VideoAsset) error
}

// Importer pulls existing vendor videos into local asset documents.
type Importer struct {
	browser VendorBrowser
	store   AssetStore
	limit   int
	logger  *zap.Logger
}

func NewImporter(browser VendorBrowser, store AssetStore, limit int, logger *zap.Logger) *Importer {
	if limit <= 0 {
		limit = listPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{browser: browser, store: store, limit: limit, logger: logger}
}

// IsImportable reports whether a remote file can become a video asset
// document: video or audio by vendor file type or mime prefix.
func IsImportable(file imagekit.FileDetails) bool {
	fileType := strings.ToLower(file.FileType)
	mime := strings.ToLower(file.Mime)
	for _, prefix := range []string{"video", "audio"} {
		if strings.HasPrefix(fileType, prefix) || strings.HasPrefix(mime, prefix) {
			return true
		}
	}
	return false
}

// matchesFolders applies the folder filters. Filters are OR-combined, each
// matching as a path prefix or substring. No filters means match all.
func matchesFolders(filePath string, folders []string) bool {
	if len(folders) == 0 {
		return true
	}
	for _, folder := range folders {
		if folder == "" {
			continue
		}
		if strings.HasPrefix(filePath, folder) || strings.Contains(filePath, folder) {
			return true
		}
	}
	return false
}

// ListRemote returns importable remote videos, filtered by folders and capped
// at the configured limit. Listing is paged; videos are filtered client-side
// because the vendor list endpoint only narrows to non-image files.
func (im *Importer) ListRemote(ctx context.Context, secrets models.Secrets, folders []string) ([]imagekit.FileDetails, error) {
	videos := make([]imagekit.FileDetails, 0)
	skip := 0
	for {
		page, err := im.browser.ListFiles(ctx, secrets, imagekit.ListOptions{
			FileType: "non-image",
			Limit:    listPageSize,
			Skip:     skip,
		})
		if err != nil {
			return nil, err
		}
		for _, file := range page {
			if !IsImportable(file) || !matchesFolders(file.FilePath, folders) {
				continue
			}
			videos = append(videos, file)
			if len(videos) >= im.limit {
				return videos, nil
			}
		}
		if len(page) < listPageSize {
			return videos, nil
		}
		skip += listPageSize
	}
}

// ListFolders returns the vendor folder paths available for filtering.
func (im *Importer) ListFolders(ctx context.Context, secrets models.Secrets) ([]string, error) {
	return im.browser.ListFolders(ctx, secrets)
}

// ImportOne creates an asset document for a remote file. Idempotent on the
// vendor file id: an existing document is reported as skipped, never
// duplicated or overwritten.
func (im *Importer) ImportOne(ctx context.Context, file imagekit.FileDetails) models.ImportItemResult {
	result := models.ImportItemResult{FileID: file.FileID, Filename: file.Name}

	existing, err := im.store.GetByFileID(ctx, file.FileID)
	if err != nil {
		result.Outcome = models.ImportFailed
		result.Error = err.Error()
		return result
	}
	if existing != nil {
		result.Outcome = models.ImportSkipped
		result.AssetID = existing.ID
		return result
	}

	asset := assets.FromRemoteFile(file)
	if err := im.store.Create(ctx, asset); err != nil {
		result.Outcome = models.ImportFailed
		result.Error = err.Error()
		return result
	}
	result.Outcome = models.ImportCreated
	result.AssetID = asset.ID
	im.logger.Info("imported remote asset",
		zap.String("file_id", file.FileID),
		zap.String("asset_id", asset.ID.String()),
	)
	return result
}

// Run lists and imports remote videos sequentially, filling job with counts
// and per-item results. Individual failures are recorded and do not abort
// the run.
func (im *Importer) Run(ctx context.Context, secrets models.Secrets, job *models.ImportJob) error {
	files, err := im.ListRemote(ctx, secrets, job.Folders)
	if err != nil {
		job.Status = models.ImportJobFailed
		return err
	}

	job.Total = len(files)
	job.Results = make([]models.ImportItemResult, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			job.Status = models.ImportJobFailed
			return err
		}
		result := im.ImportOne(ctx, file)
		job.Results = append(job.Results, result)
		switch result.Outcome {
		case models.ImportCreated:
			job.Imported++
		case models.ImportSkipped:
			job.Skipped++
		case models.ImportFailed:
			job.Failed++
		}
	}
	job.Status = models.ImportJobCompleted
	return nil
}
