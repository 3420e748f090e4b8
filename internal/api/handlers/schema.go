package handlers

import (
	"net/http"

	"github.com/dvloznov/gl-mapper/internal/api/middleware"
	"github.com/dvloznov/gl-mapper/internal/schema"
)

// SchemaHandler serves the target schema.
type SchemaHandler struct {
	schema *schema.TargetSchema
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(s *schema.TargetSchema) *SchemaHandler {
	return &SchemaHandler{schema: s}
}

// GetSchema handles GET /api/schema
func (h *SchemaHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.schema)
}
