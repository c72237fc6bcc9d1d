package web

import (
	"io"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/csvgrid/csvgrid/internal/automap"
	"github.com/csvgrid/csvgrid/internal/sheet"
	"github.com/csvgrid/csvgrid/internal/textenc"
)

// parseResponse describes one analyzed file: the decoded grid plus the
// best-guess schema and mapping for it.
type parseResponse struct {
	Filename  string             `json:"filename"`
	Encoding  string             `json:"encoding"`
	Delimiter string             `json:"delimiter"`
	Headers   []string           `json:"headers"`
	Rows      [][]string         `json:"rows"`
	RowCount  int                `json:"rowCount"`
	Detection *automap.Detection `json:"detection,omitempty"`
	Mapping   automap.Mapping    `json:"mapping,omitempty"`
}

// handleParse decodes and parses an uploaded file without touching session
// state. Clients use it to preview a file before starting an import.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
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

	opts := sheet.Options{SkipEmptyLines: s.cfg.Grid.SkipEmptyLines}
	if v := r.FormValue("delimiter"); v != "" {
		d, _ := utf8.DecodeRuneInString(v)
		opts.Delimiter = d
	}
	if v := r.FormValue("skipEmptyLines"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "skipEmptyLines must be true or false")
			return
		}
		opts.SkipEmptyLines = b
	}

	text := textenc.Decode(raw)
	if opts.Delimiter == 0 {
		opts.Delimiter = sheet.DetectDelimiter(text)
	}
	sh := sheet.Parse(text, opts)

	resp := parseResponse{
		Filename:  header.Filename,
		Encoding:  string(textenc.DetectEncoding(raw)),
		Delimiter: string(opts.Delimiter),
		Headers:   sh.Headers,
		Rows:      sh.Rows,
		RowCount:  len(sh.Rows),
	}
	if det, ok := automap.DetectSchema(s.registry.List(), sh.Headers); ok {
		resp.Detection = &det
		if cols, ok := s.registry.Compiled(det.SchemaID); ok {
			resp.Mapping = automap.MapColumns(cols, sh.Headers)
		}
	}

	writeJSON(w, resp)
}
