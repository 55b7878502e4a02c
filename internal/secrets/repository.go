package secrets

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studiokit/imagekit-backend/internal/models"
)

// Repository persists the singleton secrets record.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a secrets repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the secrets record. found is false when the record does not
// exist yet; that is not an error.
func (r *Repository) Get(ctx context.Context) (models.Secrets, bool, error) {
	const q = `SELECT COALESCE(public_key,''), COALESCE(private_key,''), COALESCE(url_endpoint,''), enable_private_images, updated_at
		FROM secrets WHERE id = $1`
	var s models.Secrets
	err := r.pool.QueryRow(ctx, q, models.SecretsDocumentID).
		Scan(&s.PublicKey, &s.PrivateKey, &s.URLEndpoint, &s.EnablePrivateImages, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Secrets{}, false, nil
	}
	if err != nil {
		return models.Secrets{}, false, err
	}
	return s, true, nil
}

// CreateOrReplace overwrites the singleton record wholesale.
func (r *Repository) CreateOrReplace(ctx context.Context, s models.Secrets) error {
	const q = `INSERT INTO secrets (id, public_key, private_key, url_endpoint, enable_private_images)
		VALUES ($1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''), $5)
		ON CONFLICT (id) DO UPDATE SET
			public_key = EXCLUDED.public_key,
			private_key = EXCLUDED.private_key,
			url_endpoint = EXCLUDED.url_endpoint,
			enable_private_images = EXCLUDED.enable_private_images,
			updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, models.SecretsDocumentID, s.PublicKey, s.PrivateKey, s.URLEndpoint, s.EnablePrivateImages)
	return err
}
