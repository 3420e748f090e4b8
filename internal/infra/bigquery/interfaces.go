package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	bq "github.com/dvloznov/gl-mapper/internal/bigquery"
	"github.com/dvloznov/gl-mapper/internal/schema"
	"github.com/dvloznov/gl-mapper/internal/table"
)

type (
	RunRepository    = bq.RunRepository
	ExportRepository = bq.ExportRepository
)

// BigQueryRepository implements RunRepository and ExportRepository against
// one dataset with a shared client.
type BigQueryRepository struct {
	client *bigquery.Client
	ds     Dataset
}

// NewBigQueryRepository creates a client for ds.ProjectID and makes sure the
// transformation_runs table exists.
func NewBigQueryRepository(ctx context.Context, ds Dataset) (*BigQueryRepository, error) {
	if ds.ProjectID == "" || ds.DatasetID == "" {
		return nil, fmt.Errorf("NewBigQueryRepository: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, ds.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRepository: creating client: %w", err)
	}
	if err := EnsureRunsTableWithClient(ctx, client, ds); err != nil {
		client.Close()
		return nil, fmt.Errorf("NewBigQueryRepository: %w", err)
	}
	return &BigQueryRepository{client: client, ds: ds}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *BigQueryRepository) StartRun(ctx context.Context, row *TransformationRunRow) error {
	return StartRunWithClient(ctx, r.client, r.ds, row)
}

func (r *BigQueryRepository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	MarkRunFailedWithClient(ctx, r.client, r.ds, runID, runErr)
}

func (r *BigQueryRepository) MarkRunSucceeded(ctx context.Context, runID string, stats RunStats) error {
	return MarkRunSucceededWithClient(ctx, r.client, r.ds, runID, stats)
}

func (r *BigQueryRepository) ListRuns(ctx context.Context, limit int) ([]*TransformationRunRow, error) {
	return ListRunsWithClient(ctx, r.client, r.ds, limit)
}

func (r *BigQueryRepository) ExportTable(ctx context.Context, tableID, runID string, s *schema.TargetSchema, t *table.Table) error {
	return ExportTableWithClient(ctx, r.client, r.ds, tableID, runID, s, t)
}

var (
	_ RunRepository    = (*BigQueryRepository)(nil)
	_ ExportRepository = (*BigQueryRepository)(nil)
)
