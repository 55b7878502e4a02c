package models

import (
	"time"

	"github.com/google/uuid"
)

// ImportJobStatus is the lifecycle status of a bulk import job.
type ImportJobStatus string

const (
	ImportJobQueued    ImportJobStatus = "queued"
	ImportJobRunning   ImportJobStatus = "running"
	ImportJobCompleted ImportJobStatus = "completed"
	ImportJobFailed    ImportJobStatus = "failed"
)

// ImportOutcome is the per-item result kind of an import.
type ImportOutcome string

const (
	ImportCreated ImportOutcome = "created"
	ImportSkipped ImportOutcome = "skipped"
	ImportFailed  ImportOutcome = "failed"
)

// ImportItemResult records the outcome of importing one remote file.
type ImportItemResult struct {
	FileID   string        `json:"fileId"`
	Filename string        `json:"filename"`
	Outcome  ImportOutcome `json:"outcome"`
	AssetID  uuid.UUID     `json:"assetId,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// ImportJob is a persisted bulk import run.
type ImportJob struct {
	ID          uuid.UUID          `json:"id"`
	Status      ImportJobStatus    `json:"status"`
	Folders     []string           `json:"folders"`
	RequestedBy uuid.UUID          `json:"requested_by"`
	Total       int                `json:"total"`
	Imported    int                `json:"imported"`
	Skipped     int                `json:"skipped"`
	Failed      int                `json:"failed"`
	Results     []ImportItemResult `json:"results"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}
