package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dvloznov/gl-mapper/internal/api/middleware"
	"github.com/dvloznov/gl-mapper/internal/ingest"
	"github.com/dvloznov/gl-mapper/internal/logger"
	"github.com/dvloznov/gl-mapper/internal/mapping"
	"github.com/dvloznov/gl-mapper/internal/pipeline"
	"github.com/dvloznov/gl-mapper/internal/schema"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// MappingsHandler asks the model for mapping proposals.
type MappingsHandler struct {
	schema   *schema.TargetSchema
	source   pipeline.TableSource
	proposer pipeline.MappingProposer
	paths    Paths
}

// NewMappingsHandler creates a new mappings handler. source may be nil, in
// which case requests must list their columns.
func NewMappingsHandler(s *schema.TargetSchema, source pipeline.TableSource, proposer pipeline.MappingProposer, paths Paths) *MappingsHandler {
	return &MappingsHandler{schema: s, source: source, proposer: proposer, paths: paths}
}

type proposeRequest struct {
	Source  string   `json:"source"`
	Columns []string `json:"columns"`
}

type proposeResponse struct {
	InputColumns []string                 `json:"input_columns"`
	Candidates   []mapping.Candidate      `json:"candidates"`
	Mapping      *mapping.ApprovedMapping `json:"mapping"`
}

// Propose handles POST /api/mappings/propose
func (h *MappingsHandler) Propose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req proposeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	columns := req.Columns
	switch {
	case req.Source != "" && len(req.Columns) > 0:
		middleware.WriteError(w, http.StatusBadRequest, "Provide either source or columns, not both")
		return
	case req.Source != "":
		if h.source == nil {
			middleware.WriteError(w, http.StatusBadRequest, "Loading sources is not enabled")
			return
		}
		path, err := h.paths.Source(req.Source)
		if err != nil {
			log.Warn().Err(err).Str("source", req.Source).Msg("Rejected source path")
			writePathError(w, err)
			return
		}
		result, err := h.source.Load(ctx, path)
		if err != nil {
			log.Error().Err(err).Str("source", req.Source).Msg("Failed to load source")
			writeRunError(w, err)
			return
		}
		columns = result.Table.ColumnNames()
	case len(req.Columns) == 0:
		middleware.WriteError(w, http.StatusBadRequest, "source or columns is required")
		return
	}

	candidates, err := h.proposer.Propose(ctx, columns, h.schema)
	if err != nil {
		log.Error().Err(err).Msg("Failed to propose mapping")
		writeRunError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, proposeResponse{
		InputColumns: columns,
		Candidates:   candidates,
		Mapping:      mapping.FromCandidates(candidates),
	})
}

// maxRawReply bounds the model reply echoed back in error responses.
const maxRawReply = 4096

// writeRunError maps typed hard errors to HTTP status codes. Other errors are
// reported verbatim.
func writeRunError(w http.ResponseWriter, err error) {
	var ingestErr *ingest.IngestionError
	var formatErr *mapping.ResponseFormatError
	switch {
	case errors.As(err, &ingestErr):
		middleware.WriteError(w, http.StatusUnprocessableEntity, ingestErr.Error())
	case errors.As(err, &formatErr):
		middleware.WriteJSON(w, http.StatusBadGateway, map[string]string{
			"error": "Model returned an unusable mapping: " + formatErr.Reason,
			"raw":   truncateRunes(formatErr.Raw, maxRawReply),
		})
	default:
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
