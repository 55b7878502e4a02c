package importer

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

// Repository persists bulk import jobs.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const jobColumns = `id, status, folders, requested_by, total, imported, skipped, failed, results, created_at, updated_at`

func scanJob(row pgx.Row) (*models.ImportJob, error) {
	var job models.ImportJob
	var requestedBy *uuid.UUID
	var results []byte
	err := row.Scan(&job.ID, &job.Status, &job.Folders, &requestedBy,
		&job.Total, &job.Imported, &job.Skipped, &job.Failed, &results,
		&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if requestedBy != nil {
		job.RequestedBy = *requestedBy
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &job.Results); err != nil {
			return nil, fmt.Errorf("decode job results: %w", err)
		}
	}
	return &job, nil
}

// Create inserts a queued job.
func (r *Repository) Create(ctx context.Context, job *models.ImportJob) error {
	var requestedBy *uuid.UUID
	if job.RequestedBy != uuid.Nil {
		requestedBy = &job.RequestedBy
	}
	query := `INSERT INTO import_jobs (id, status, folders, requested_by)
	          VALUES ($1, $2, $3, $4)
	          RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query, job.ID, job.Status, job.Folders, requestedBy).
		Scan(&job.CreatedAt, &job.UpdatedAt)
}

// GetByID returns a job, or (nil, nil) when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.ImportJob, error) {
	query := `SELECT ` + jobColumns + ` FROM import_jobs WHERE id = $1`
	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// SetStatus transitions a job's lifecycle status.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status models.ImportJobStatus) error {
	query := `UPDATE import_jobs SET status = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, status)
	return err
}

// Finish records the final counts and per-item results.
func (r *Repository) Finish(ctx context.Context, job *models.ImportJob) error {
	results, err := json.Marshal(job.Results)
	if err != nil {
		return fmt.Errorf("encode job results: %w", err)
	}
	query := `UPDATE import_jobs
	          SET status = $2, total = $3, imported = $4, skipped = $5, failed = $6,
	              results = $7, updated_at = NOW()
	          WHERE id = $1`
	_, err = r.pool.Exec(ctx, query, job.ID, job.Status, job.Total,
		job.Imported, job.Skipped, job.Failed, results)
	return err
}

// List returns recent jobs, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]models.ImportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + jobColumns + ` FROM import_jobs ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]models.ImportJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}
