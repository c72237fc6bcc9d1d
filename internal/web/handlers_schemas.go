package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/csvgrid/csvgrid/internal/grid"
	"github.com/csvgrid/csvgrid/internal/schema"
)

// handleListSchemas returns all registered schemas in stable order.
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"schemas": s.registry.List()})
}

// handleAddSchema registers a new schema. A blank ID gets a generated one.
func (s *Server) handleAddSchema(w http.ResponseWriter, r *http.Request) {
	var sc schema.Schema
	if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	stored, err := s.registry.Add(sc)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(stored)
}

// handleGetSchema returns one schema by ID.
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "schemaID")
	sc, ok := s.registry.Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "schema not found")
		return
	}
	writeJSON(w, sc)
}

// handleReplaceSchema swaps a schema definition in place. The path ID wins
// over any ID in the body.
func (s *Server) handleReplaceSchema(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "schemaID")

	var sc schema.Schema
	if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.registry.Replace(id, sc); err != nil {
		respondError(w, r, err)
		return
	}

	stored, _ := s.registry.Get(id)
	writeJSON(w, stored)
}

// handleRemoveSchema deletes a schema. The empty schema is refused.
func (s *Server) handleRemoveSchema(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "schemaID")
	if err := s.registry.Remove(id); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "deleted"})
}

// catalogPayload is the request and response shape for the field catalog.
type catalogPayload struct {
	Columns []schema.SchemaColumn `json:"columns"`
}

// handleGetCatalog returns the persisted field catalog.
func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	cols := grid.LoadCatalog(r.Context(), s.store)
	if cols == nil {
		cols = []schema.SchemaColumn{}
	}
	writeJSON(w, catalogPayload{Columns: cols})
}

// handlePutCatalog replaces the field catalog. Sessions created after this
// call derive columns against the new catalog; live sessions keep the one
// they started with.
func (s *Server) handlePutCatalog(w http.ResponseWriter, r *http.Request) {
	var payload catalogPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := grid.SaveCatalog(r.Context(), s.store, payload.Columns); err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "saved"})
}
