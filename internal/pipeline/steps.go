package pipeline

import (
	"context"
	"fmt"

	bq "github.com/dvloznov/gl-mapper/internal/bigquery"
	"github.com/dvloznov/gl-mapper/internal/ingest"
	"github.com/dvloznov/gl-mapper/internal/logger"
	"github.com/dvloznov/gl-mapper/internal/mapping"
	"github.com/dvloznov/gl-mapper/internal/schema"
	"github.com/dvloznov/gl-mapper/internal/table"
)

// PipelineStep represents a single step of a transformation session.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RunID      string
	Source     string
	OutputPath string
	Schema     *schema.TargetSchema

	Input        *ingest.Result
	InputColumns []string
	Candidates   []mapping.Candidate
	Approved     *mapping.ApprovedMapping

	Output      *table.Table
	Diagnostics Diagnostics
	Issues      []string
	Summary     Summary

	RunStarted bool
}

// StartRunStep records the run with status=RUNNING.
type StartRunStep struct {
	Runs       RunRecorder
	SchemaPath string
	ModelName  string
}

func (s *StartRunStep) Execute(ctx context.Context, state *PipelineState) error {
	row := &bq.TransformationRunRow{
		RunID:      state.RunID,
		Source:     state.Source,
		SchemaPath: s.SchemaPath,
		ModelName:  s.ModelName,
	}
	if err := s.Runs.StartRun(ctx, row); err != nil {
		return err
	}
	state.RunStarted = true
	return nil
}

// IngestStep reads the input table.
type IngestStep struct {
	Source TableSource
}

func (s *IngestStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := s.Source.Load(ctx, state.Source)
	if err != nil {
		return err
	}
	state.Input = res
	state.InputColumns = res.Table.ColumnNames()
	return nil
}

// ProposeStep asks the model for candidates. It is skipped when the session
// already carries an approved mapping.
type ProposeStep struct {
	Proposer MappingProposer
}

func (s *ProposeStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Approved != nil {
		log := logger.FromContext(ctx)
		log.Info().Msg("Using supplied mapping, skipping proposal")
		return nil
	}
	candidates, err := s.Proposer.Propose(ctx, state.InputColumns, state.Schema)
	if err != nil {
		return err
	}
	state.Candidates = candidates
	return nil
}

// ApproveStep hands the candidates to the approver.
type ApproveStep struct {
	Approve Approver
}

func (s *ApproveStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Approved != nil {
		return nil
	}
	approved, err := s.Approve(ctx, state.InputColumns, state.Candidates)
	if err != nil {
		return fmt.Errorf("approve mapping: %w", err)
	}
	if approved == nil {
		approved = mapping.NewApprovedMapping()
	}
	state.Approved = approved

	if unknown := approved.UnknownTargets(state.Schema); len(unknown) > 0 {
		log := logger.FromContext(ctx)
		log.Warn().Strs("targets", unknown).Msg("Approved mapping names targets outside the schema")
	}
	return nil
}

// NormalizeStep applies the approved mapping.
type NormalizeStep struct{}

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	n := NewNormalizer(logger.FromContext(ctx))
	state.Output, state.Diagnostics = n.Normalize(state.Input.Table, state.Schema, state.Approved)
	return nil
}

// ValidateStep checks the normalized table and builds the summary.
type ValidateStep struct{}

func (s *ValidateStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Issues = Validate(state.Output, state.Schema)
	state.Summary = Summarize(state.InputColumns, state.Approved, state.Output, state.Schema)

	log := logger.FromContext(ctx)
	log.Info().
		Int("issues", len(state.Issues)).
		Int("warnings", len(state.Diagnostics.Warnings)).
		Int("rows", state.Output.NumRows()).
		Msg("Validation finished")
	return nil
}

// LogIssuesStep appends validation issues to the issue log.
type LogIssuesStep struct {
	Issues IssueSink
}

func (s *LogIssuesStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.Issues.Log(state.Issues); err != nil {
		return fmt.Errorf("log issues: %w", err)
	}
	return nil
}

// SaveOutputStep writes the normalized table to the output path.
type SaveOutputStep struct {
	Sink TableSink
}

func (s *SaveOutputStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.OutputPath == "" {
		return nil
	}
	return s.Sink.Save(ctx, state.Output, state.OutputPath)
}

// WarehouseExportStep loads the normalized rows into the warehouse.
type WarehouseExportStep struct {
	Warehouse WarehouseExporter
	TableID   string
}

func (s *WarehouseExportStep) Execute(ctx context.Context, state *PipelineState) error {
	return s.Warehouse.ExportTable(ctx, s.TableID, state.RunID, state.Schema, state.Output)
}

// MarkSuccessStep marks the run as SUCCESS with its counters.
type MarkSuccessStep struct {
	Runs RunRecorder
}

func (s *MarkSuccessStep) Execute(ctx context.Context, state *PipelineState) error {
	return s.Runs.MarkRunSucceeded(ctx, state.RunID, bq.RunStats{
		InputRows:    state.Input.Table.NumRows(),
		InputColumns: len(state.InputColumns),
		IssueCount:   len(state.Issues),
		WarningCount: len(state.Diagnostics.Warnings),
		OutputURI:    state.OutputPath,
	})
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially and stops at the first error.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
