package grid

import (
	"context"
	"errors"
	"fmt"

	"github.com/csvgrid/csvgrid/internal/automap"
	"github.com/csvgrid/csvgrid/internal/schema"
	"github.com/csvgrid/csvgrid/internal/sessionstore"
	"github.com/csvgrid/csvgrid/internal/sheet"
	"github.com/csvgrid/csvgrid/internal/textenc"
)

// Step is the session's position in the import flow.
type Step string

const (
	StepImport Step = "import"
	StepMap    Step = "map"
	StepEdit   Step = "edit"
)

// FilterMode restricts the visible rows by validity.
type FilterMode string

const (
	FilterAll     FilterMode = "all"
	FilterValid   FilterMode = "valid"
	FilterInvalid FilterMode = "invalid"
)

var (
	// ErrStep rejects an operation issued outside its step.
	ErrStep = errors.New("operation not allowed in this step")
	// ErrSubmitted rejects edits to already-submitted data.
	ErrSubmitted = errors.New("session already submitted")
)

// DefaultPageSize is used when Config.PageSize is unset.
const DefaultPageSize = 25

// SubmitRequest is the payload handed to the submit collaborator.
type SubmitRequest struct {
	Workbook string          `json:"workbook"`
	Rows     []MappedRow     `json:"rows"`
	Mapping  automap.Mapping `json:"mapping"`
}

// Submitter delivers a finished grid to the outside world. Failures are
// surfaced as the session's submit-error string, never as a session failure.
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) error
}

// Config wires a session's collaborators. Store and Submitter may be nil;
// the session then runs without persistence or submission.
type Config struct {
	// Workbook namespaces the session's snapshot in the store.
	Workbook string

	Registry  *schema.Registry
	Store     sessionstore.Store
	Submitter Submitter

	// Catalog holds user-defined columns that upgrade matching raw
	// headers when no schema is active.
	Catalog []schema.SchemaColumn

	// DefaultSchemaID is the schema auto-mapped against when detection
	// finds nothing. Blank means fall back to header-derived columns.
	DefaultSchemaID string

	AllowSubmitWithErrors bool
	PageSize              int
	SkipEmptyLines        bool
}

// Session is the editable-grid state machine. It moves import -> map -> edit,
// lets the user reconcile and fix the data, and snapshots itself through the
// store after every state-affecting operation.
//
// A session is single-goroutine by design: every operation is a synchronous
// computation owned by one caller. Only the injected collaborators are safe
// for concurrent use.
type Session struct {
	cfg Config

	step        Step
	data        sheet.Sheet
	fingerprint uint64

	schemaID string
	derived  bool
	columns  []schema.ExpectedColumn
	mapping  automap.Mapping

	mappedRows  []MappedRow
	validations []RowValidation

	filter   FilterMode
	page     int
	pageSize int

	selected map[int]struct{}
	armed    string

	submitted bool
	submitErr string
}

// NewSession creates a session in the import step.
func NewSession(cfg Config) *Session {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Registry == nil {
		cfg.Registry = schema.NewRegistry()
	}
	s := &Session{cfg: cfg}
	s.toInitial()
	return s
}

func (s *Session) toInitial() {
	s.step = StepImport
	s.data = sheet.Sheet{Headers: []string{}, Rows: [][]string{}}
	s.fingerprint = s.data.Fingerprint()
	s.schemaID = s.cfg.DefaultSchemaID
	s.derived = false
	s.columns = nil
	s.mapping = nil
	s.mappedRows = nil
	s.validations = nil
	s.filter = FilterAll
	s.page = 0
	s.pageSize = s.cfg.PageSize
	s.selected = make(map[int]struct{})
	s.armed = ""
	s.submitted = false
	s.submitErr = ""
}

// ============================================================================
// Import and mapping
// ============================================================================

// ImportData decodes and parses raw file bytes, runs best-schema detection,
// and moves to the map step. Detection hits switch the active schema; misses
// keep the configured default schema or fall back to header-derived columns.
// Parsing is best-effort and never fails; an empty file simply produces an
// empty grid.
func (s *Session) ImportData(ctx context.Context, raw []byte) error {
	if s.step != StepImport {
		return fmt.Errorf("import data: %w", ErrStep)
	}

	text := textenc.Decode(raw)
	s.data = sheet.Parse(text, sheet.Options{SkipEmptyLines: s.cfg.SkipEmptyLines})
	s.fingerprint = s.data.Fingerprint()

	if det, ok := automap.DetectSchema(s.cfg.Registry.List(), s.data.Headers); ok {
		s.setSchema(det.SchemaID)
	} else if s.schemaID != "" {
		s.setSchema(s.schemaID)
	} else {
		s.setDerived()
	}

	s.step = StepMap
	s.persist(ctx)
	return nil
}

func (s *Session) setSchema(id string) {
	cols, ok := s.cfg.Registry.Compiled(id)
	if !ok {
		s.setDerived()
		return
	}
	s.schemaID = id
	s.derived = false
	s.columns = cols
	s.mapping = automap.MapColumns(cols, s.data.Headers)
}

func (s *Session) setDerived() {
	s.schemaID = ""
	s.derived = true
	s.columns = automap.DeriveColumns(s.data.Headers, s.cfg.Catalog)
	s.mapping = automap.MapColumns(s.columns, s.data.Headers)
}

// UseSchema switches the active schema during mapping and recomputes the
// auto-mapping against it.
func (s *Session) UseSchema(ctx context.Context, id string) error {
	if s.step != StepMap {
		return fmt.Errorf("use schema: %w", ErrStep)
	}
	if _, ok := s.cfg.Registry.Get(id); !ok {
		return fmt.Errorf("use schema %s: %w", id, schema.ErrNotFound)
	}
	s.setSchema(id)
	s.persist(ctx)
	return nil
}

// UseDerivedColumns switches mapping to the ad-hoc column set derived from
// the raw headers plus the field catalog.
func (s *Session) UseDerivedColumns(ctx context.Context) error {
	if s.step != StepMap {
		return fmt.Errorf("use derived columns: %w", ErrStep)
	}
	s.setDerived()
	s.persist(ctx)
	return nil
}

// SetMapping assigns one expected column to a header, or unmaps it with "".
func (s *Session) SetMapping(ctx context.Context, columnKey, header string) error {
	if s.step != StepMap {
		return fmt.Errorf("set mapping: %w", ErrStep)
	}
	if _, ok := s.mapping[columnKey]; !ok {
		return fmt.Errorf("set mapping: unknown column %q", columnKey)
	}
	if header != "" && !s.hasHeader(header) {
		return fmt.Errorf("set mapping: header %q not in file", header)
	}
	s.mapping[columnKey] = header
	s.persist(ctx)
	return nil
}

func (s *Session) hasHeader(header string) bool {
	for _, h := range s.data.Headers {
		if h == header {
			return true
		}
	}
	return false
}

// CanContinue reports whether the map step may advance: every required
// column must be mapped, except in derived mode where any non-empty column
// set suffices.
func (s *Session) CanContinue() bool {
	if s.step != StepMap {
		return false
	}
	if s.derived {
		return len(s.columns) > 0
	}
	for _, col := range s.columns {
		if col.Required && s.mapping[col.Key] == "" {
			return false
		}
	}
	return true
}

// ApplyMapping projects the parsed rows through the mapping, validates the
// whole grid once, and enters the edit step.
func (s *Session) ApplyMapping(ctx context.Context) error {
	if s.step != StepMap {
		return fmt.Errorf("apply mapping: %w", ErrStep)
	}
	if !s.CanContinue() {
		return errors.New("apply mapping: required columns are unmapped")
	}

	s.mappedRows = Apply(s.data.Rows, s.data.Headers, s.columns, s.mapping)
	s.validations = ValidateRows(s.mappedRows, s.columns)
	s.step = StepEdit
	s.filter = FilterAll
	s.page = 0
	s.clearSelectionState()
	s.persist(ctx)
	return nil
}

// Back returns from edit to map, discarding the mapped grid. Blocked once
// the data has been submitted.
func (s *Session) Back(ctx context.Context) error {
	if s.step != StepEdit {
		return fmt.Errorf("back: %w", ErrStep)
	}
	if s.submitted {
		return fmt.Errorf("back: %w", ErrSubmitted)
	}
	s.step = StepMap
	s.mappedRows = nil
	s.validations = nil
	s.filter = FilterAll
	s.page = 0
	s.clearSelectionState()
	s.persist(ctx)
	return nil
}

// Reset clears all session state and the persisted snapshot, returning to
// the import step.
func (s *Session) Reset(ctx context.Context) {
	s.toInitial()
	if s.cfg.Store != nil {
		// Snapshot removal failing must not fail the reset.
		_ = s.cfg.Store.Remove(ctx, s.storeKey())
	}
}

// ============================================================================
// Editing
// ============================================================================

// UpdateCell writes one cell and re-validates only the owning row. Editing
// other rows' validations is never triggered, keeping edits O(columns).
func (s *Session) UpdateCell(ctx context.Context, rowIndex int, columnKey, value string) error {
	if s.step != StepEdit {
		return fmt.Errorf("update cell: %w", ErrStep)
	}
	if s.submitted {
		return fmt.Errorf("update cell: %w", ErrSubmitted)
	}
	if rowIndex < 0 || rowIndex >= len(s.mappedRows) {
		return fmt.Errorf("update cell: row %d out of range", rowIndex)
	}
	if _, ok := s.mappedRows[rowIndex][columnKey]; !ok {
		return fmt.Errorf("update cell: unknown column %q", columnKey)
	}

	s.mappedRows[rowIndex][columnKey] = value
	s.revalidateRow(rowIndex)
	s.clampPage()
	s.persist(ctx)
	return nil
}

func (s *Session) revalidateRow(i int) {
	s.validations[i] = RowValidation{RowIndex: i, Errors: ValidateRow(s.mappedRows[i], s.columns)}
}

// SetFilter switches the validity filter and clamps the page back into the
// shrunken range if needed.
func (s *Session) SetFilter(ctx context.Context, mode FilterMode) error {
	if s.step != StepEdit {
		return fmt.Errorf("set filter: %w", ErrStep)
	}
	switch mode {
	case FilterAll, FilterValid, FilterInvalid:
	default:
		return fmt.Errorf("set filter: unknown mode %q", mode)
	}
	s.filter = mode
	s.clampPage()
	s.persist(ctx)
	return nil
}

// FilteredIndices returns the row indices the current filter admits, in row
// order.
func (s *Session) FilteredIndices() []int {
	out := make([]int, 0, len(s.validations))
	for i, rv := range s.validations {
		switch s.filter {
		case FilterValid:
			if !rv.Valid() {
				continue
			}
		case FilterInvalid:
			if rv.Valid() {
				continue
			}
		}
		out = append(out, i)
	}
	return out
}

// SetPage moves pagination within the filtered set, clamping into range.
func (s *Session) SetPage(ctx context.Context, page int) error {
	if s.step != StepEdit {
		return fmt.Errorf("set page: %w", ErrStep)
	}
	s.page = page
	s.clampPage()
	s.persist(ctx)
	return nil
}

// SetPageSize changes the page size and re-clamps the page index.
func (s *Session) SetPageSize(ctx context.Context, size int) error {
	if s.step != StepEdit {
		return fmt.Errorf("set page size: %w", ErrStep)
	}
	if size <= 0 {
		return fmt.Errorf("set page size: %d is not positive", size)
	}
	s.pageSize = size
	s.clampPage()
	s.persist(ctx)
	return nil
}

func (s *Session) clampPage() {
	maxPage := 0
	if n := len(s.FilteredIndices()); n > 0 {
		maxPage = (n - 1) / s.pageSize
	}
	if s.page > maxPage {
		s.page = maxPage
	}
	if s.page < 0 {
		s.page = 0
	}
}

// PageCount returns the number of pages over the filtered set, at least 1.
func (s *Session) PageCount() int {
	n := len(s.FilteredIndices())
	if n == 0 {
		return 1
	}
	return (n + s.pageSize - 1) / s.pageSize
}

// RowView pairs a row with its identity and current validation for display.
type RowView struct {
	Index      int           `json:"index"`
	Row        MappedRow     `json:"row"`
	Validation RowValidation `json:"validation"`
}

// VisiblePage returns the current page of the filtered set.
func (s *Session) VisiblePage() []RowView {
	idx := s.FilteredIndices()
	start := s.page * s.pageSize
	if start >= len(idx) {
		return []RowView{}
	}
	end := min(start+s.pageSize, len(idx))

	views := make([]RowView, 0, end-start)
	for _, i := range idx[start:end] {
		views = append(views, RowView{Index: i, Row: s.mappedRows[i], Validation: s.validations[i]})
	}
	return views
}

// ============================================================================
// Selection and bulk operations
// ============================================================================

// ToggleRow flips one row's membership in the selection.
func (s *Session) ToggleRow(rowIndex int) error {
	if s.step != StepEdit {
		return fmt.Errorf("toggle row: %w", ErrStep)
	}
	if rowIndex < 0 || rowIndex >= len(s.mappedRows) {
		return fmt.Errorf("toggle row: row %d out of range", rowIndex)
	}
	if _, ok := s.selected[rowIndex]; ok {
		delete(s.selected, rowIndex)
	} else {
		s.selected[rowIndex] = struct{}{}
	}
	return nil
}

// SelectAllFiltered selects every row the current filter admits.
func (s *Session) SelectAllFiltered() error {
	if s.step != StepEdit {
		return fmt.Errorf("select all: %w", ErrStep)
	}
	for _, i := range s.FilteredIndices() {
		s.selected[i] = struct{}{}
	}
	return nil
}

// ClearSelection drops all row selections and the armed column.
func (s *Session) ClearSelection() {
	s.clearSelectionState()
}

func (s *Session) clearSelectionState() {
	s.selected = make(map[int]struct{})
	s.armed = ""
}

// IsSelected reports one row's selection state.
func (s *Session) IsSelected(rowIndex int) bool {
	_, ok := s.selected[rowIndex]
	return ok
}

// SelectedCount returns the size of the row selection.
func (s *Session) SelectedCount() int {
	return len(s.selected)
}

// DeleteSelected removes the selected rows. Remaining rows and their
// validations stay index-aligned, renumbered to a gapless 0..n-1.
func (s *Session) DeleteSelected(ctx context.Context) error {
	if s.step != StepEdit {
		return fmt.Errorf("delete selected: %w", ErrStep)
	}
	if s.submitted {
		return fmt.Errorf("delete selected: %w", ErrSubmitted)
	}
	if len(s.selected) == 0 {
		return nil
	}

	keptRows := make([]MappedRow, 0, len(s.mappedRows))
	keptVals := make([]RowValidation, 0, len(s.validations))
	for i := range s.mappedRows {
		if _, drop := s.selected[i]; drop {
			continue
		}
		keptRows = append(keptRows, s.mappedRows[i])
		keptVals = append(keptVals, RowValidation{
			RowIndex: len(keptRows) - 1,
			Errors:   s.validations[i].Errors,
		})
	}

	s.mappedRows = keptRows
	s.validations = keptVals
	s.clearSelectionState()
	s.clampPage()
	s.persist(ctx)
	return nil
}

// ArmColumn marks a column for a bulk clear; the next ClearArmedColumn call
// acts on it.
func (s *Session) ArmColumn(columnKey string) error {
	if s.step != StepEdit {
		return fmt.Errorf("arm column: %w", ErrStep)
	}
	for _, col := range s.columns {
		if col.Key == columnKey {
			s.armed = columnKey
			return nil
		}
	}
	return fmt.Errorf("arm column: unknown column %q", columnKey)
}

// DisarmColumn cancels the armed column.
func (s *Session) DisarmColumn() {
	s.armed = ""
}

// ArmedColumn returns the armed column key, or "".
func (s *Session) ArmedColumn() string {
	return s.armed
}

// ClearArmedColumn blanks the armed column's value across the selected rows,
// or across the whole filtered set when no rows are selected, re-validating
// each affected row.
func (s *Session) ClearArmedColumn(ctx context.Context) error {
	if s.step != StepEdit {
		return fmt.Errorf("clear column: %w", ErrStep)
	}
	if s.submitted {
		return fmt.Errorf("clear column: %w", ErrSubmitted)
	}
	if s.armed == "" {
		return nil
	}

	var targets []int
	if len(s.selected) > 0 {
		targets = make([]int, 0, len(s.selected))
		for i := range s.selected {
			targets = append(targets, i)
		}
	} else {
		targets = s.FilteredIndices()
	}

	for _, i := range targets {
		s.mappedRows[i][s.armed] = ""
		s.revalidateRow(i)
	}
	s.clampPage()
	s.persist(ctx)
	return nil
}

// ============================================================================
// Submission and export
// ============================================================================

// InvalidRowCount returns how many rows currently fail validation.
func (s *Session) InvalidRowCount() int {
	n := 0
	for _, rv := range s.validations {
		if !rv.Valid() {
			n++
		}
	}
	return n
}

// InvalidCellCount returns the total number of cell errors across the grid.
func (s *Session) InvalidCellCount() int {
	n := 0
	for _, rv := range s.validations {
		n += len(rv.Errors)
	}
	return n
}

// CanSubmit reports whether Submit would invoke the collaborator.
func (s *Session) CanSubmit() bool {
	if s.step != StepEdit || s.submitted {
		return false
	}
	if s.cfg.AllowSubmitWithErrors {
		return true
	}
	return s.InvalidRowCount() == 0
}

// Submit hands the grid to the submit collaborator. With invalid rows
// present and AllowSubmitWithErrors off, Submit is a no-op and the
// collaborator is never invoked. A collaborator failure is captured as the
// session's submit-error string, leaving the grid intact for retry; calling
// Submit again re-invokes the collaborator without re-validating.
func (s *Session) Submit(ctx context.Context) error {
	if s.step != StepEdit {
		return fmt.Errorf("submit: %w", ErrStep)
	}
	if s.submitted {
		return fmt.Errorf("submit: %w", ErrSubmitted)
	}
	if !s.cfg.AllowSubmitWithErrors && s.InvalidRowCount() > 0 {
		return nil
	}

	if s.cfg.Submitter == nil {
		s.submitErr = "no submitter configured"
		s.persist(ctx)
		return nil
	}

	if err := s.cfg.Submitter.Submit(ctx, SubmitRequest{
		Workbook: s.cfg.Workbook,
		Rows:     s.mappedRows,
		Mapping:  s.mapping.Clone(),
	}); err != nil {
		s.submitErr = err.Error()
	} else {
		s.submitErr = ""
		s.submitted = true
	}
	s.persist(ctx)
	return nil
}

// ExportCSV renders the grid as CSV text: column labels as the header row,
// every mapped row beneath in column order.
func (s *Session) ExportCSV() string {
	labels := make([]string, len(s.columns))
	for i, col := range s.columns {
		labels[i] = col.Label
	}

	rows := make([][]string, len(s.mappedRows))
	for ri, mr := range s.mappedRows {
		rec := make([]string, len(s.columns))
		for ci, col := range s.columns {
			rec[ci] = mr[col.Key]
		}
		rows[ri] = rec
	}
	return sheet.ExportString(labels, rows)
}

// ============================================================================
// Accessors
// ============================================================================

// Step returns the session's current step.
func (s *Session) Step() Step { return s.step }

// Workbook returns the session's namespace.
func (s *Session) Workbook() string { return s.cfg.Workbook }

// Headers returns the parsed header row.
func (s *Session) Headers() []string { return s.data.Headers }

// RowCount returns the number of mapped rows.
func (s *Session) RowCount() int { return len(s.mappedRows) }

// Rows returns the mapped rows. The slice is the session's own; callers must
// not mutate it.
func (s *Session) Rows() []MappedRow { return s.mappedRows }

// Validations returns the index-aligned row validations.
func (s *Session) Validations() []RowValidation { return s.validations }

// Columns returns the active expected columns.
func (s *Session) Columns() []schema.ExpectedColumn { return s.columns }

// Mapping returns a copy of the active column mapping.
func (s *Session) Mapping() automap.Mapping { return s.mapping.Clone() }

// SchemaID returns the active schema ID, or "" in derived mode.
func (s *Session) SchemaID() string { return s.schemaID }

// DerivedColumns reports whether the ad-hoc header-derived column set is
// active.
func (s *Session) DerivedColumns() bool { return s.derived }

// Filter returns the active filter mode.
func (s *Session) Filter() FilterMode { return s.filter }

// Page returns the current page index.
func (s *Session) Page() int { return s.page }

// PageSize returns the page size.
func (s *Session) PageSize() int { return s.pageSize }

// Submitted reports whether the grid has been submitted.
func (s *Session) Submitted() bool { return s.submitted }

// SubmitError returns the last submission failure message, or "".
func (s *Session) SubmitError() string { return s.submitErr }
