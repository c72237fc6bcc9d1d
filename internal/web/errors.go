package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/csvgrid/csvgrid/internal/grid"
	"github.com/csvgrid/csvgrid/internal/logging"
	"github.com/csvgrid/csvgrid/internal/schema"
	"github.com/csvgrid/csvgrid/internal/uploads"
)

// apiError is the JSON error envelope returned by every handler.
type apiError struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response with the given status code and
// logs it with the request ID for correlation.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	log := logging.FromContext(r.Context())
	if status >= 500 {
		log.Error("request failed", "status", status, "error", message, "path", r.URL.Path)
	} else {
		log.Warn("request rejected", "status", status, "error", message, "path", r.URL.Path)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiError{Error: message})
}

// respondError maps engine errors onto HTTP status codes. Workflow misuse
// (wrong step, already submitted) is a conflict, unknown schemas and uploads
// are not found, and everything else from the engine is a bad request.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, grid.ErrStep), errors.Is(err, grid.ErrSubmitted):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, schema.ErrNotFound), errors.Is(err, uploads.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusBadRequest, err.Error())
	}
}
