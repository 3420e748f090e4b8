package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/gl-mapper/internal/logger"
	"github.com/dvloznov/gl-mapper/internal/mapping"
	"github.com/dvloznov/gl-mapper/internal/schema"
)

// Session wires the collaborators of one transformation run:
// ingest, propose, approve, normalize, validate, log issues and export.
// Runs and Warehouse are optional.
type Session struct {
	Schema     *schema.TargetSchema
	SchemaPath string
	ModelName  string

	Source    TableSource
	Sink      TableSink
	Proposer  MappingProposer
	Approve   Approver
	Issues    IssueSink
	Runs      RunRecorder
	Warehouse WarehouseExporter

	ExportTable string
	Log         zerolog.Logger
}

// Request is the input of one run.
type Request struct {
	// RunID names the run. Empty means a fresh UUID.
	RunID      string
	Source     string
	OutputPath string
	// Approved skips the proposal and approval steps when set.
	Approved *mapping.ApprovedMapping
}

// Steps returns the pipeline for this session's collaborators.
func (s *Session) Steps() []PipelineStep {
	var steps []PipelineStep
	if s.Runs != nil {
		steps = append(steps, &StartRunStep{Runs: s.Runs, SchemaPath: s.SchemaPath, ModelName: s.ModelName})
	}
	steps = append(steps, &IngestStep{Source: s.Source})

	approve := s.Approve
	if approve == nil {
		approve = AcceptProposals
	}
	steps = append(steps,
		&ProposeStep{Proposer: s.Proposer},
		&ApproveStep{Approve: approve},
		&NormalizeStep{},
		&ValidateStep{},
	)

	if s.Issues != nil {
		steps = append(steps, &LogIssuesStep{Issues: s.Issues})
	}
	if s.Sink != nil {
		steps = append(steps, &SaveOutputStep{Sink: s.Sink})
	}
	if s.Warehouse != nil {
		steps = append(steps, &WarehouseExportStep{Warehouse: s.Warehouse, TableID: s.ExportTable})
	}
	if s.Runs != nil {
		steps = append(steps, &MarkSuccessStep{Runs: s.Runs})
	}
	return steps
}

// Run executes one transformation. A hard error stops the run; the state
// reached so far is returned with it.
func (s *Session) Run(ctx context.Context, req Request) (*PipelineState, error) {
	if s.Schema == nil {
		return nil, fmt.Errorf("Session.Run: no target schema")
	}
	if s.Source == nil {
		return nil, fmt.Errorf("Session.Run: no table source")
	}
	if req.Approved == nil && s.Proposer == nil {
		return nil, fmt.Errorf("Session.Run: no mapping proposer and no approved mapping")
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	state := &PipelineState{
		RunID:      runID,
		Source:     req.Source,
		OutputPath: req.OutputPath,
		Schema:     s.Schema,
		Approved:   req.Approved,
	}

	log := s.Log.With().Str("run_id", state.RunID).Logger()
	ctx = logger.WithContext(ctx, log)

	log.Info().Str("source", req.Source).Msg("Transformation run started")

	if err := NewPipeline(s.Steps()...).Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Transformation run failed")
		if s.Runs != nil && state.RunStarted {
			s.Runs.MarkRunFailed(ctx, state.RunID, err)
		}
		return state, err
	}

	log.Info().
		Int("issues", len(state.Issues)).
		Str("output", state.OutputPath).
		Msg("Transformation run finished")
	return state, nil
}
