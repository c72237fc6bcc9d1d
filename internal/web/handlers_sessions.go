package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/csvgrid/csvgrid/internal/automap"
	"github.com/csvgrid/csvgrid/internal/grid"
)

// columnView is the client-facing shape of an expected column. Compiled rule
// internals stay server-side.
type columnView struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// sessionView is the full session state returned after every session
// operation, so clients never need a follow-up read.
type sessionView struct {
	Workbook    string          `json:"workbook"`
	Step        grid.Step       `json:"step"`
	Headers     []string        `json:"headers"`
	SchemaID    string          `json:"schemaId"`
	Derived     bool            `json:"derived"`
	Columns     []columnView    `json:"columns"`
	Mapping     automap.Mapping `json:"mapping"`
	CanContinue bool            `json:"canContinue"`
	RowCount    int             `json:"rowCount"`
	InvalidRows int             `json:"invalidRows"`
	Filter      grid.FilterMode `json:"filter"`
	Page        int             `json:"page"`
	PageCount   int             `json:"pageCount"`
	PageSize    int             `json:"pageSize"`
	Rows        []grid.RowView  `json:"rows"`
	CanSubmit   bool            `json:"canSubmit"`
	Submitted   bool            `json:"submitted"`
	SubmitError string          `json:"submitError,omitempty"`
}

func viewOf(sess *grid.Session) sessionView {
	cols := make([]columnView, 0, len(sess.Columns()))
	for _, c := range sess.Columns() {
		cols = append(cols, columnView{Key: c.Key, Label: c.Label, Required: c.Required})
	}
	return sessionView{
		Workbook:    sess.Workbook(),
		Step:        sess.Step(),
		Headers:     sess.Headers(),
		SchemaID:    sess.SchemaID(),
		Derived:     sess.DerivedColumns(),
		Columns:     cols,
		Mapping:     sess.Mapping(),
		CanContinue: sess.CanContinue(),
		RowCount:    sess.RowCount(),
		InvalidRows: sess.InvalidRowCount(),
		Filter:      sess.Filter(),
		Page:        sess.Page(),
		PageCount:   sess.PageCount(),
		PageSize:    sess.PageSize(),
		Rows:        sess.VisiblePage(),
		CanSubmit:   sess.CanSubmit(),
		Submitted:   sess.Submitted(),
		SubmitError: sess.SubmitError(),
	}
}

// withSession runs fn against the workbook's locked session and responds
// with the refreshed session view, or maps the error.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, sess *grid.Session) error) {
	workbook := chi.URLParam(r, "workbook")
	if workbook == "" {
		writeError(w, r, http.StatusBadRequest, "missing workbook")
		return
	}

	h := s.session(r.Context(), workbook)
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := fn(r.Context(), h.sess); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, viewOf(h.sess))
}

// handleSessionView returns the current session state without changing it.
func (s *Server) handleSessionView(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ctx context.Context, sess *grid.Session) error {
		return nil
	})
}

// handleSessionReset wipes the session and its snapshot. The in-memory
// handle is dropped so the next request starts clean against the current
// field catalog.
func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	workbook := chi.URLParam(r, "workbook")
	if workbook == "" {
		writeError(w, r, http.StatusBadRequest, "missing workbook")
		return
	}

	h := s.session(r.Context(), workbook)
	h.mu.Lock()
	h.sess.Reset(r.Context())
	h.mu.Unlock()
	s.forgetSession(workbook)

	writeJSON(w, map[string]string{"status": "reset"})
}

// handleSessionImport feeds an uploaded file into the session and advances
// it to the map step.
func (s *Server) handleSessionImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to read file")
		return
	}

	s.withSession(w, r, func(ctx context.Context, sess *grid.Session) error {
		return sess.ImportData(ctx, raw)
	})
}

type useSchemaRequest struct {
	SchemaID string `json:"schemaId"`
	Derived  bool   `json:"derived"`
}

// handleSessionSchema switches the active schema, or to derived columns.
func (s *Server) handleSessionSchema(w http.ResponseWriter, r *http.Request) {
	var req useSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Derived && req.SchemaID == "" {
		writeError(w, r, http.StatusBadRequest, "schemaId or derived is required")
		return
	}

	s.withSession(w, r, func(ctx context.Context, sess *grid.Session) error {
		if req.Derived {
			return sess.UseDerivedColumns(ctx)
		}
		return sess.UseSchema(ctx, req.SchemaID)
	})
}

type setMappingRequest struct {
	ColumnKey string `json:"columnKey"`
	Header    string `json:"header"`
}

// handleSessionMapping assigns one column to a header, or unmaps it with an
// empty header.
func (s *Server) handleSessionMapping(w http.ResponseWriter, r *http.Request) {
	var req setMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	s.withSession(w, r, func(ctx context.Context, sess *grid.Session) error {
		return sess.SetMapping(ctx, req.ColumnKey, req.Header)
	})
}

// handleSessionApply projects and validates the grid, entering the edit step.
func (s *Server) handleSessionApply(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ctx context.Context, sess *grid.Session) error {
		return sess.ApplyMapping(ctx)
	})
}

// handleSessionBack returns from edit to map, discarding the mapped grid.
func (s *Server) handleSessionBack(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ctx context.Context, sess *grid.Session) error {
		return sess.Back(ctx)
	})
}

type updateCellRequest struct {
	Row       int    `json:"row"`
	ColumnKey string `json:"columnKey"`
	Value     string `json:"value"`
}

// handleSessionUpdateCell writes one cell and re-validates its row.
func (s *Server) handleSessionUpdateCell(w http.ResponseWriter, r *http.Request) {
	var req updateCellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	s.withSession(w, r, func(ctx context.Context, sess *grid.Session) error {
		return sess.UpdateCell(ctx, req.Row, req.ColumnKey, req.Value)
	})
}

type viewRequest struct {
	Filter   *string `json:"filter"`
	Page     *int    `json:"page"`
	PageSize *int    `json:"pageSize"`
}

// handleSessionSetView adjusts filter and pagination. Absent fields are left
// alone; page zero is a real page, so all fields are optional pointers.
func (s *Server) handleSessionSetView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	s.withSession(w, r, func(ctx context.Context, sess *grid.Session) error {
		if req.Filter != nil {
			if err := sess.SetFilter(ctx, grid.FilterMode(*req.Filter)); err != nil {
				return err
			}
		}
		if req.PageSize != nil {
			if err := sess.SetPageSize(ctx, *req.PageSize); err != nil {
				return err
			}
		}
		if req.Page != nil {
			if err := sess.SetPage(ctx, *req.Page); err != nil {
				return err
			}
		}
		return nil
	})
}

type deleteRowsRequest struct {
	Rows        []int `json:"rows"`
	AllFiltered bool  `json:"allFiltered"`
}

// handleSessionDeleteRows removes the named rows, or the whole filtered set
// when allFiltered is true. Remaining rows are renumbered gaplessly.
func (s *Server) handleSessionDeleteRows(w http.ResponseWriter, r *http.Request) {
	var req deleteRowsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	s.withSession(w, r, func(ctx context.Context, sess *grid.Session) error {
		sess.ClearSelection()
		if req.AllFiltered {
			if err := sess.SelectAllFiltered(); err != nil {
				return err
			}
		} else {
			for _, idx := range req.Rows {
				if err := sess.ToggleRow(idx); err != nil {
					sess.ClearSelection()
					return err
				}
			}
		}
		return sess.DeleteSelected(ctx)
	})
}

type clearColumnRequest struct {
	ColumnKey string `json:"columnKey"`
	Rows      []int  `json:"rows"`
}

// handleSessionClearColumn blanks a column across the named rows, or across
// the whole filtered set when no rows are given.
func (s *Server) handleSessionClearColumn(w http.ResponseWriter, r *http.Request) {
	var req clearColumnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	s.withSession(w, r, func(ctx context.Context, sess *grid.Session) error {
		sess.ClearSelection()
		for _, idx := range req.Rows {
			if err := sess.ToggleRow(idx); err != nil {
				sess.ClearSelection()
				return err
			}
		}
		if err := sess.ArmColumn(req.ColumnKey); err != nil {
			sess.ClearSelection()
			return err
		}
		if err := sess.ClearArmedColumn(ctx); err != nil {
			sess.ClearSelection()
			return err
		}
		sess.ClearSelection()
		return nil
	})
}

// handleSessionSubmit hands the grid to the submit collaborator. The
// response view carries the outcome: submitted on success, submitError on a
// collaborator failure, neither when invalid rows gated the call.
func (s *Server) handleSessionSubmit(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ctx context.Context, sess *grid.Session) error {
		return sess.Submit(ctx)
	})
}

// handleExport streams the mapped grid as a CSV download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	workbook := chi.URLParam(r, "workbook")
	if workbook == "" {
		writeError(w, r, http.StatusBadRequest, "missing workbook")
		return
	}

	h := s.session(r.Context(), workbook)
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sess.Step() != grid.StepEdit {
		respondError(w, r, fmt.Errorf("export: %w", grid.ErrStep))
		return
	}

	csvText := h.sess.ExportCSV()
	filename := fmt.Sprintf("%s_%s.csv", workbook, time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Write([]byte(csvText))
}
