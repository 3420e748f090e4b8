package bigquery

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/gl-mapper/internal/schema"
	"github.com/dvloznov/gl-mapper/internal/table"
)

// Run status values stored in transformation_runs.status.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

// RunRepository records an audit row per transformation run.
type RunRepository interface {
	// StartRun inserts row with status=RUNNING.
	StartRun(ctx context.Context, row *TransformationRunRow) error

	// MarkRunFailed sets status=FAILED, finished_ts and error_message. Failures
	// to record are logged, not returned.
	MarkRunFailed(ctx context.Context, runID string, runErr error)

	// MarkRunSucceeded sets status=SUCCESS, finished_ts and the run counters.
	MarkRunSucceeded(ctx context.Context, runID string, stats RunStats) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]*TransformationRunRow, error)
}

// ExportRepository loads normalized tables into the warehouse.
type ExportRepository interface {
	// ExportTable appends the rows of t, tagged with runID, to tableID. The
	// table is created from s when it does not exist.
	ExportTable(ctx context.Context, tableID, runID string, s *schema.TargetSchema, t *table.Table) error
}

// TransformationRunRow is one row of the transformation_runs table.
type TransformationRunRow struct {
	RunID      string `bigquery:"run_id" json:"run_id"`
	Source     string `bigquery:"source" json:"source"`
	SchemaPath string `bigquery:"schema_path" json:"schema_path"`
	ModelName  string `bigquery:"model_name" json:"model_name"`

	StartedTS  time.Time              `bigquery:"started_ts" json:"started_ts"`
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts" json:"finished_ts"`

	Status       string `bigquery:"status" json:"status"`
	ErrorMessage string `bigquery:"error_message" json:"error_message,omitempty"`

	InputRows    bigquery.NullInt64  `bigquery:"input_rows" json:"input_rows"`
	InputColumns bigquery.NullInt64  `bigquery:"input_columns" json:"input_columns"`
	IssueCount   bigquery.NullInt64  `bigquery:"issue_count" json:"issue_count"`
	WarningCount bigquery.NullInt64  `bigquery:"warning_count" json:"warning_count"`
	OutputURI    bigquery.NullString `bigquery:"output_uri" json:"output_uri"`
}

// RunStats are the counters written when a run succeeds.
type RunStats struct {
	InputRows    int
	InputColumns int
	IssueCount   int
	WarningCount int
	OutputURI    string
}
