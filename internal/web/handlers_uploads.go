package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/csvgrid/csvgrid/internal/uploads"
)

// handleListUploads returns the upload history, newest first.
func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	ups, err := s.uploads.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if ups == nil {
		ups = []uploads.Upload{}
	}
	writeJSON(w, map[string]any{"uploads": ups})
}

// handleCreateUpload records an upload directly, outside the session flow.
// Sessions record their own uploads on submit.
func (s *Server) handleCreateUpload(w http.ResponseWriter, r *http.Request) {
	var up uploads.Upload
	if err := json.NewDecoder(r.Body).Decode(&up); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	stored, err := s.uploads.Create(r.Context(), up)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(stored)
}

// handleGetUpload returns one recorded upload with its rows.
func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "uploadID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid upload ID")
		return
	}

	up, err := s.uploads.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, up)
}

// handleDeleteUpload removes one recorded upload.
func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "uploadID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid upload ID")
		return
	}

	if err := s.uploads.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "deleted"})
}
