// Package jobs defines asynchronous export jobs for normalized tables.
package jobs

import (
	"context"
	"time"

	"github.com/dvloznov/gl-mapper/internal/schema"
	"github.com/dvloznov/gl-mapper/internal/table"
)

// JobType selects where an export job writes.
type JobType string

const (
	JobTypeExportStorage   JobType = "export_storage"
	JobTypeExportWarehouse JobType = "export_warehouse"
)

// JobStatus is the lifecycle state of a job:
// pending -> running -> completed | retrying -> pending ... | failed.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// Terminal reports whether no further transitions happen from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ExportJob exports the normalized table of one transformation run.
// Destination is a gs:// URI for storage exports and a table ID for
// warehouse exports.
type ExportJob struct {
	JobID       string    `json:"job_id"`
	Type        JobType   `json:"type"`
	RunID       string    `json:"run_id"`
	Destination string    `json:"destination"`
	Rows        int       `json:"rows"`
	Status      JobStatus `json:"status"`
	Error       string    `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	// Payload. Shared with the run that produced it and never modified.
	Table  *table.Table         `json:"-"`
	Schema *schema.TargetSchema `json:"-"`
}

// Job is what a JobHandler receives.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ExportJob) GetID() string        { return j.JobID }
func (j *ExportJob) GetType() JobType     { return j.Type }
func (j *ExportJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues export jobs.
type Publisher interface {
	PublishExport(ctx context.Context, job *ExportJob) error
	Close() error
}

// Consumer runs a handler for every enqueued job until stopped.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	// Stop waits for in-flight jobs or until ctx is done.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error makes the job eligible for retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job state for status queries.
type JobStore interface {
	SaveJob(ctx context.Context, job *ExportJob) error
	GetJob(ctx context.Context, jobID string) (*ExportJob, error)
	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ExportJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter narrows ListJobs. Zero fields match everything.
type JobFilter struct {
	RunID  string
	Status JobStatus
	Limit  int
	Offset int
}
