package jobs

import (
	"context"
	"fmt"

	bq "github.com/dvloznov/gl-mapper/internal/bigquery"
	"github.com/dvloznov/gl-mapper/internal/table"
)

// TableSink writes a table to a local path or gs:// URI.
type TableSink interface {
	Save(ctx context.Context, t *table.Table, dest string) error
}

// ExportHandler runs export jobs against storage and the warehouse.
// Either target may be nil, in which case jobs of that type fail.
type ExportHandler struct {
	Sink      TableSink
	Warehouse bq.ExportRepository
}

// Handle implements JobHandler.
func (h *ExportHandler) Handle(ctx context.Context, job Job) error {
	export, ok := job.(*ExportJob)
	if !ok {
		return fmt.Errorf("ExportHandler: unsupported job %T", job)
	}
	if export.Table == nil {
		return fmt.Errorf("ExportHandler: job %s has no table", export.JobID)
	}

	switch export.Type {
	case JobTypeExportStorage:
		if h.Sink == nil {
			return fmt.Errorf("ExportHandler: storage export not configured")
		}
		if err := h.Sink.Save(ctx, export.Table, export.Destination); err != nil {
			return fmt.Errorf("ExportHandler: save %s: %w", export.Destination, err)
		}
	case JobTypeExportWarehouse:
		if h.Warehouse == nil {
			return fmt.Errorf("ExportHandler: warehouse export not configured")
		}
		if export.Schema == nil {
			return fmt.Errorf("ExportHandler: job %s has no schema", export.JobID)
		}
		if err := h.Warehouse.ExportTable(ctx, export.Destination, export.RunID, export.Schema, export.Table); err != nil {
			return fmt.Errorf("ExportHandler: export to %s: %w", export.Destination, err)
		}
	default:
		return fmt.Errorf("ExportHandler: unknown job type %q", export.Type)
	}
	return nil
}
