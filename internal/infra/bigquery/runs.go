package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	bq "github.com/dvloznov/gl-mapper/internal/bigquery"
)

const (
	runsTable = "transformation_runs"

	// DefaultExportTable receives normalized rows when no table is configured.
	DefaultExportTable = "normalized_ledger"

	maxErrorMessageLen = 2000
)

type TransformationRunRow = bq.TransformationRunRow
type RunStats = bq.RunStats

// Dataset names the project and dataset all tables live in.
type Dataset struct {
	ProjectID string
	DatasetID string
}

// table returns the backquoted fully qualified table name for SQL.
func (d Dataset) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.ProjectID, d.DatasetID, name)
}

func truncateMessage(msg string) string {
	if len(msg) > maxErrorMessageLen {
		return msg[:maxErrorMessageLen]
	}
	return msg
}

// RunsTableSchema is the transformation_runs schema derived from TransformationRunRow.
func RunsTableSchema() (bigquery.Schema, error) {
	s, err := bigquery.InferSchema(TransformationRunRow{})
	if err != nil {
		return nil, fmt.Errorf("RunsTableSchema: %w", err)
	}
	return s, nil
}

// EnsureRunsTableWithClient creates transformation_runs unless it exists.
func EnsureRunsTableWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) error {
	s, err := RunsTableSchema()
	if err != nil {
		return err
	}
	return EnsureTableWithClient(ctx, client, ds, runsTable, s)
}
