package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studiokit/imagekit-backend/internal/models"
)

// Repository handles video asset persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an assets repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const assetColumns = `id, file_id, status, url, filename, thumbnail_time, data, created_at, updated_at`

func scanAsset(row pgx.Row) (*models.VideoAsset, error) {
	var a models.VideoAsset
	var data []byte
	err := row.Scan(&a.ID, &a.FileID, &a.Status, &a.URL, &a.Filename, &a.ThumbnailTime, &data, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &a.Data); err != nil {
			return nil, fmt.Errorf("decode asset data: %w", err)
		}
	}
	a.Type = models.TypeVideoAsset
	return &a, nil
}

// Create inserts a new asset document with a caller-assigned id.
func (r *Repository) Create(ctx context.Context, a *models.VideoAsset) error {
	data, err := json.Marshal(a.Data)
	if err != nil {
		return fmt.Errorf("encode asset data: %w", err)
	}
	const q = `INSERT INTO video_assets (id, file_id, status, url, filename, thumbnail_time, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, q, a.ID, a.FileID, a.Status, a.URL, a.Filename, a.ThumbnailTime, data).
		Scan(&a.CreatedAt, &a.UpdatedAt)
}

// GetByID returns an asset by id, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.VideoAsset, error) {
	a, err := scanAsset(r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM video_assets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// GetByFileID returns the asset for a vendor file id, or nil when none exists.
func (r *Repository) GetByFileID(ctx context.Context, fileID string) (*models.VideoAsset, error) {
	a, err := scanAsset(r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM video_assets WHERE file_id = $1`, fileID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// List returns asset documents ordered by creation time, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]models.VideoAsset, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+assetColumns+` FROM video_assets ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.VideoAsset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// UpdateThumbnailTime patches the poster frame time of an asset.
func (r *Repository) UpdateThumbnailTime(ctx context.Context, id uuid.UUID, seconds float64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE video_assets SET thumbnail_time = $1, updated_at = NOW() WHERE id = $2`, seconds, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateData replaces the vendor metadata and sanitized url of an asset
// (detail refresh from the vendor).
func (r *Repository) UpdateData(ctx context.Context, id uuid.UUID, url string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode asset data: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE video_assets SET url = $1, data = $2, updated_at = NOW() WHERE id = $3`, url, raw, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes an asset document. Weak references in document_assets are
// nulled by the schema's ON DELETE SET NULL.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM video_assets WHERE id = $1`, id)
	return err
}

// LinkToDocument sets the weak reference from a document field to an asset in
// one transaction: the reference is either set or the field is left untouched.
func (r *Repository) LinkToDocument(ctx context.Context, documentID, field string, assetID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM video_assets WHERE id = $1)`, assetID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return pgx.ErrNoRows
	}

	_, err = tx.Exec(ctx, `INSERT INTO document_assets (document_id, field, asset_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (document_id, field) DO UPDATE SET asset_id = EXCLUDED.asset_id, updated_at = NOW()`,
		documentID, field, assetID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UnlinkDocument clears the reference from a document field.
func (r *Repository) UnlinkDocument(ctx context.Context, documentID, field string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM document_assets WHERE document_id = $1 AND field = $2`, documentID, field)
	return err
}

// GetDocumentAsset resolves the asset currently referenced by a document
// field, or nil when the field is unset or the reference dangles.
func (r *Repository) GetDocumentAsset(ctx context.Context, documentID, field string) (*models.VideoAsset, error) {
	a, err := scanAsset(r.pool.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM video_assets v
		 JOIN document_assets d ON d.asset_id = v.id
		 WHERE d.document_id = $1 AND d.field = $2`, documentID, field))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}
