package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/studiokit/imagekit-backend/internal/imagekit"
	"github.com/studiokit/imagekit-backend/internal/importer"
	"github.com/studiokit/imagekit-backend/internal/models"
	"github.com/studiokit/imagekit-backend/internal/secrets"
	"github.com/studiokit/imagekit-backend/pkg/queue"
)

// ImportProcessor processes bulk asset import jobs: list remote videos,
// create missing asset documents, persist per-item results.
type ImportProcessor struct {
	jobRepo    *importer.Repository
	importer   *importer.Importer
	secretsSvc *secrets.Service
	queue      *queue.Queue
	logger     *zap.Logger
}

// NewImportProcessor creates a bulk import processor.
func NewImportProcessor(jobRepo *importer.Repository, im *importer.Importer, secretsSvc *secrets.Service, q *queue.Queue, logger *zap.Logger) *ImportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportProcessor{jobRepo: jobRepo, importer: im, secretsSvc: secretsSvc, queue: q, logger: logger}
}

// Process executes one import job.
func (p *ImportProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeAssetImport {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.AssetImportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	record, err := p.jobRepo.GetByID(ctx, payload.JobID)
	if err != nil || record == nil {
		return fmt.Errorf("import job not found: %s", payload.JobID)
	}
	if record.Status == models.ImportJobCompleted {
		p.logger.Info("import job already completed", zap.String("job_id", record.ID.String()))
		return nil
	}

	creds := p.secretsSvc.Resolve(ctx)
	if !creds.Valid() {
		// Not retryable: missing credentials will not fix themselves mid-job.
		record.Status = models.ImportJobFailed
		if err := p.jobRepo.Finish(ctx, record); err != nil {
			p.logger.Error("finish import job failed", zap.Error(err), zap.String("job_id", record.ID.String()))
		}
		p.logger.Warn("import job failed", zap.String("job_id", record.ID.String()), zap.String("reason", imagekit.ErrCredentialsMissing.Error()))
		return nil
	}

	if err := p.jobRepo.SetStatus(ctx, record.ID, models.ImportJobRunning); err != nil {
		return fmt.Errorf("set job running: %w", err)
	}

	runErr := p.importer.Run(ctx, creds, record)
	if err := p.jobRepo.Finish(ctx, record); err != nil {
		p.logger.Error("finish import job failed", zap.Error(err), zap.String("job_id", record.ID.String()))
		return fmt.Errorf("finish job: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("run import: %w", runErr)
	}

	p.logger.Info("import job completed",
		zap.String("job_id", record.ID.String()),
		zap.Int("total", record.Total),
		zap.Int("imported", record.Imported),
		zap.Int("skipped", record.Skipped),
		zap.Int("failed", record.Failed),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ImportProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("import worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
