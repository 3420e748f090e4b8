package handlers

import (
	"encoding/json"
	"fmt"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/dvloznov/gl-mapper/internal/api/middleware"
	"github.com/dvloznov/gl-mapper/internal/jobs"
	"github.com/dvloznov/gl-mapper/internal/logger"
	"github.com/dvloznov/gl-mapper/internal/mapping"
	"github.com/dvloznov/gl-mapper/internal/pipeline"
	"github.com/dvloznov/gl-mapper/internal/table"
)

// previewRows is the number of normalized rows returned inline.
const previewRows = 10

// Export targets accepted by POST /api/transform.
const (
	ExportNone      = ""
	ExportStorage   = "storage"
	ExportWarehouse = "warehouse"
)

// ExportConfig enables asynchronous exports. An empty field disables that target.
type ExportConfig struct {
	// Bucket receives storage exports under exports/<run_id>.csv.
	Bucket string
	// Table is the warehouse table for warehouse exports.
	Table string
}

// TransformHandler runs transformations synchronously and enqueues exports.
type TransformHandler struct {
	session   *pipeline.Session
	publisher jobs.Publisher
	export    ExportConfig
	paths     Paths
}

// NewTransformHandler creates a new transform handler. publisher may be nil
// when exports are disabled.
func NewTransformHandler(session *pipeline.Session, publisher jobs.Publisher, export ExportConfig, paths Paths) *TransformHandler {
	return &TransformHandler{session: session, publisher: publisher, export: export, paths: paths}
}

type transformRequest struct {
	Source     string                   `json:"source"`
	Mapping    *mapping.ApprovedMapping `json:"mapping"`
	OutputPath string                   `json:"output_path"`
	Export     string                   `json:"export"`
}

type transformResponse struct {
	RunID      string                   `json:"run_id"`
	Mapping    *mapping.ApprovedMapping `json:"mapping"`
	Summary    pipeline.Summary         `json:"summary"`
	Issues     []string                 `json:"issues"`
	Warnings   []pipeline.Warning       `json:"warnings"`
	Preview    *table.Table             `json:"preview"`
	OutputPath string                   `json:"output_path,omitempty"`
	Job        *jobs.ExportJob          `json:"job,omitempty"`
}

// Transform handles POST /api/transform
func (h *TransformHandler) Transform(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req transformRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Source == "" {
		middleware.WriteError(w, http.StatusBadRequest, "source is required")
		return
	}
	if req.OutputPath != "" {
		middleware.WriteError(w, http.StatusBadRequest, "output_path is chosen by the server")
		return
	}
	source, err := h.paths.Source(req.Source)
	if err != nil {
		log.Warn().Err(err).Str("source", req.Source).Msg("Rejected source path")
		writePathError(w, err)
		return
	}
	if err := h.checkExport(req.Export); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID := uuid.NewString()
	session := *h.session
	session.Log = log
	state, err := session.Run(ctx, pipeline.Request{
		RunID:      runID,
		Source:     source,
		OutputPath: h.paths.Output(runID),
		Approved:   req.Mapping,
	})
	if err != nil {
		writeRunError(w, err)
		return
	}

	resp := transformResponse{
		RunID:      state.RunID,
		Mapping:    state.Approved,
		Summary:    state.Summary,
		Issues:     nonNil(state.Issues),
		Warnings:   state.Diagnostics.Warnings,
		Preview:    state.Output.Head(previewRows),
		OutputPath: state.OutputPath,
	}
	if resp.Warnings == nil {
		resp.Warnings = []pipeline.Warning{}
	}

	if req.Export != ExportNone {
		job := h.exportJob(req.Export, state)
		if err := h.publisher.PublishExport(ctx, job); err != nil {
			log.Error().Err(err).Str("run_id", state.RunID).Msg("Failed to enqueue export job")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue export job")
			return
		}
		log.Info().Str("job_id", job.JobID).Str("run_id", state.RunID).Msg("Export job enqueued")
		resp.Job = job
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

func (h *TransformHandler) checkExport(target string) error {
	switch target {
	case ExportNone:
		return nil
	case ExportStorage:
		if h.export.Bucket == "" || h.publisher == nil {
			return fmt.Errorf("storage export is not configured")
		}
	case ExportWarehouse:
		if h.export.Table == "" || h.publisher == nil {
			return fmt.Errorf("warehouse export is not configured")
		}
	default:
		return fmt.Errorf("unknown export target %q", target)
	}
	return nil
}

func (h *TransformHandler) exportJob(target string, state *pipeline.PipelineState) *jobs.ExportJob {
	job := &jobs.ExportJob{
		RunID:  state.RunID,
		Rows:   state.Output.NumRows(),
		Table:  state.Output,
		Schema: state.Schema,
	}
	switch target {
	case ExportStorage:
		job.Type = jobs.JobTypeExportStorage
		job.Destination = fmt.Sprintf("gs://%s/exports/%s.csv", h.export.Bucket, state.RunID)
	case ExportWarehouse:
		job.Type = jobs.JobTypeExportWarehouse
		job.Destination = h.export.Table
	}
	return job
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writePathError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrPathNotAllowed) {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	middleware.WriteError(w, http.StatusInternalServerError, "Invalid path")
}
