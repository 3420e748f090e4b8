package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	bq "github.com/dvloznov/gl-mapper/internal/bigquery"
	"github.com/dvloznov/gl-mapper/internal/logger"
)

// StartRunWithClient inserts row into transformation_runs with status=RUNNING.
// Uses DML INSERT so the row can be updated right away.
func StartRunWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, row *TransformationRunRow) error {
	if row.StartedTS.IsZero() {
		row.StartedTS = time.Now()
	}
	row.Status = bq.RunStatusRunning

	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			run_id,
			source,
			schema_path,
			model_name,
			started_ts,
			status
		)
		VALUES (
			@run_id,
			@source,
			@schema_path,
			@model_name,
			@started_ts,
			@status
		)
	`, ds.table(runsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: row.RunID},
		{Name: "source", Value: row.Source},
		{Name: "schema_path", Value: row.SchemaPath},
		{Name: "model_name", Value: row.ModelName},
		{Name: "started_ts", Value: row.StartedTS},
		{Name: "status", Value: row.Status},
	}

	if err := runQuery(ctx, q); err != nil {
		return fmt.Errorf("StartRun: %w", err)
	}
	return nil
}

// MarkRunFailedWithClient sets status=FAILED, finished_ts and error_message.
// Errors are logged because the caller is already handling a failure.
func MarkRunFailedWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, runID string, runErr error) {
	log := logger.FromContext(ctx)

	errMsg := ""
	if runErr != nil {
		errMsg = truncateMessage(runErr.Error())
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, ds.table(runsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: bq.RunStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errMsg},
		{Name: "run_id", Value: runID},
	}

	if err := runQuery(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkRunFailed: could not record failure")
	}
}

// MarkRunSucceededWithClient sets status=SUCCESS, finished_ts and the counters.
func MarkRunSucceededWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, runID string, stats RunStats) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = "",
		    input_rows = @input_rows,
		    input_columns = @input_columns,
		    issue_count = @issue_count,
		    warning_count = @warning_count,
		    output_uri = @output_uri
		WHERE run_id = @run_id
	`, ds.table(runsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: bq.RunStatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "input_rows", Value: stats.InputRows},
		{Name: "input_columns", Value: stats.InputColumns},
		{Name: "issue_count", Value: stats.IssueCount},
		{Name: "warning_count", Value: stats.WarningCount},
		{Name: "output_uri", Value: bigquery.NullString{StringVal: stats.OutputURI, Valid: stats.OutputURI != ""}},
		{Name: "run_id", Value: runID},
	}

	if err := runQuery(ctx, q); err != nil {
		return fmt.Errorf("MarkRunSucceeded: %w", err)
	}
	return nil
}

// ListRunsWithClient returns up to limit runs, newest first.
func ListRunsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, limit int) ([]*TransformationRunRow, error) {
	if limit <= 0 {
		limit = 50
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			source,
			schema_path,
			model_name,
			started_ts,
			finished_ts,
			status,
			error_message,
			input_rows,
			input_columns,
			issue_count,
			warning_count,
			output_uri
		FROM %s
		ORDER BY started_ts DESC
		LIMIT @limit
	`, ds.table(runsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: reading query: %w", err)
	}

	var runs []*TransformationRunRow
	for {
		var row TransformationRunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRuns: iterating: %w", err)
		}
		runs = append(runs, &row)
	}

	return runs, nil
}

func runQuery(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
