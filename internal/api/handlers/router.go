package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/gl-mapper/internal/api/middleware"
)

// Router holds the handlers mounted by NewRouter. Nil handlers are not mounted.
type Router struct {
	Schema    *SchemaHandler
	Mappings  *MappingsHandler
	Transform *TransformHandler
	Jobs      *JobsHandler
}

// NewRouter registers the API routes on a new ServeMux.
func NewRouter(h Router) *http.ServeMux {
	mux := http.NewServeMux()

	if h.Schema != nil {
		mux.HandleFunc("/api/schema", method(http.MethodGet, h.Schema.GetSchema))
	}

	if h.Mappings != nil {
		mux.HandleFunc("/api/mappings/propose", method(http.MethodPost, h.Mappings.Propose))
	}

	if h.Transform != nil {
		mux.HandleFunc("/api/transform", method(http.MethodPost, h.Transform.Transform))
	}

	if h.Jobs != nil {
		mux.HandleFunc("/api/jobs", method(http.MethodGet, h.Jobs.ListJobs))

		mux.HandleFunc("/api/jobs/", method(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			h.Jobs.GetJob(w, r, jobID)
		}))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return mux
}

func method(m string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != m {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		next(w, r)
	}
}
