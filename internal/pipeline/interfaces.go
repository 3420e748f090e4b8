package pipeline

import (
	"context"

	bq "github.com/dvloznov/gl-mapper/internal/bigquery"
	"github.com/dvloznov/gl-mapper/internal/ingest"
	"github.com/dvloznov/gl-mapper/internal/issuelog"
	"github.com/dvloznov/gl-mapper/internal/mapping"
	"github.com/dvloznov/gl-mapper/internal/schema"
	"github.com/dvloznov/gl-mapper/internal/table"
)

// TableSource reads the input table of a session.
type TableSource interface {
	Load(ctx context.Context, source string) (*ingest.Result, error)
}

// TableSink writes the normalized table.
type TableSink interface {
	Save(ctx context.Context, t *table.Table, dest string) error
}

// MappingProposer suggests a mapping for the input columns.
type MappingProposer interface {
	Propose(ctx context.Context, inputColumns []string, s *schema.TargetSchema) ([]mapping.Candidate, error)
}

// IssueSink records validation issues.
type IssueSink interface {
	Log(issues []string) error
}

// Approver turns candidates into the mapping a human signed off on. It is the
// caller's hook for review and editing.
type Approver func(ctx context.Context, inputColumns []string, candidates []mapping.Candidate) (*mapping.ApprovedMapping, error)

// AcceptProposals approves every candidate as proposed.
func AcceptProposals(ctx context.Context, inputColumns []string, candidates []mapping.Candidate) (*mapping.ApprovedMapping, error) {
	return mapping.FromCandidates(candidates), nil
}

// RunRecorder stores the run audit trail.
type RunRecorder = bq.RunRepository

// WarehouseExporter loads normalized rows into the warehouse.
type WarehouseExporter = bq.ExportRepository

var (
	_ TableSource     = (*ingest.Loader)(nil)
	_ TableSink       = (*ingest.Loader)(nil)
	_ MappingProposer = (*mapping.Proposer)(nil)
	_ IssueSink       = (*issuelog.Logger)(nil)
)
