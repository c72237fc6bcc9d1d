package grid

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/csvgrid/csvgrid/internal/automap"
	"github.com/csvgrid/csvgrid/internal/sheet"
)

// Snapshot is the serialized form of a session: everything needed to resume
// an in-progress import without re-uploading the file. Row selection and the
// armed column are deliberately ephemeral and not part of it.
type Snapshot struct {
	Step        Step            `json:"step"`
	Headers     []string        `json:"headers"`
	Rows        [][]string      `json:"rows"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	SchemaID    string          `json:"schemaId,omitempty"`
	Derived     bool            `json:"derived,omitempty"`
	Mapping     automap.Mapping `json:"mapping,omitempty"`
	MappedRows  []MappedRow     `json:"mappedRows,omitempty"`
	RowErrors   []RowValidation `json:"rowErrors,omitempty"`
	FilterMode  FilterMode      `json:"filterMode,omitempty"`
	Page        int             `json:"page,omitempty"`
	PageSize    int             `json:"pageSize,omitempty"`
	Submitted   bool            `json:"submitted,omitempty"`
	SubmitError string          `json:"submitError,omitempty"`
}

// Snapshot captures the session's current persistable state.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Step:        s.step,
		Headers:     s.data.Headers,
		Rows:        s.data.Rows,
		Fingerprint: strconv.FormatUint(s.fingerprint, 16),
		SchemaID:    s.schemaID,
		Derived:     s.derived,
		Mapping:     s.mapping,
		MappedRows:  s.mappedRows,
		RowErrors:   s.validations,
		FilterMode:  s.filter,
		Page:        s.page,
		PageSize:    s.pageSize,
		Submitted:   s.submitted,
		SubmitError: s.submitErr,
	}
}

// SnapshotKeyPrefix namespaces session snapshots within the store, keeping
// them separate from reserved keys like the field catalog. Maintenance jobs
// that expire old snapshots scope their deletes to this prefix.
const SnapshotKeyPrefix = "session:"

func (s *Session) storeKey() string {
	return SnapshotKeyPrefix + s.cfg.Workbook
}

// persist writes the snapshot through the store. Storage failures are
// swallowed: persistence must never fail a user action.
func (s *Session) persist(ctx context.Context) {
	if s.cfg.Store == nil {
		return
	}
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return
	}
	_ = s.cfg.Store.Set(ctx, s.storeKey(), data)
}

// Restore loads the workbook's snapshot and rebuilds the session from it.
// A missing, corrupt, or stale snapshot leaves the session in its initial
// state and returns false; Restore never fails.
func (s *Session) Restore(ctx context.Context) bool {
	if s.cfg.Store == nil {
		return false
	}
	data, err := s.cfg.Store.Get(ctx, s.storeKey())
	if err != nil || len(data) == 0 {
		return false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return false
	}
	if !s.restoreFrom(snap) {
		s.toInitial()
		return false
	}
	return true
}

// restoreFrom validates the snapshot and rebuilds runtime state from it.
// Compiled validators do not serialize, so columns are recompiled and every
// row re-validated; the stored rowErrors exist for external readers of the
// store.
func (s *Session) restoreFrom(snap Snapshot) bool {
	switch snap.Step {
	case StepImport, StepMap, StepEdit:
	default:
		return false
	}

	restored := sheet.Sheet{Headers: snap.Headers, Rows: snap.Rows}
	if restored.Headers == nil {
		restored.Headers = []string{}
	}
	if restored.Rows == nil {
		restored.Rows = [][]string{}
	}

	if snap.Fingerprint != "" {
		want, err := strconv.ParseUint(snap.Fingerprint, 16, 64)
		if err != nil || restored.Fingerprint() != want {
			return false
		}
	}

	s.toInitial()
	s.data = restored
	s.fingerprint = restored.Fingerprint()
	s.step = snap.Step
	if snap.Step == StepImport {
		return true
	}

	if snap.Derived {
		s.setDerived()
	} else if snap.SchemaID != "" {
		if _, ok := s.cfg.Registry.Compiled(snap.SchemaID); !ok {
			return false
		}
		s.setSchema(snap.SchemaID)
	} else {
		return false
	}

	// Overlay the user's manual mapping edits, dropping entries for
	// columns that no longer exist.
	for key := range s.mapping {
		if header, ok := snap.Mapping[key]; ok && (header == "" || s.hasHeader(header)) {
			s.mapping[key] = header
		}
	}

	if snap.FilterMode != "" {
		switch snap.FilterMode {
		case FilterAll, FilterValid, FilterInvalid:
			s.filter = snap.FilterMode
		}
	}
	if snap.PageSize > 0 {
		s.pageSize = snap.PageSize
	}
	s.page = snap.Page
	s.submitted = snap.Submitted
	s.submitErr = snap.SubmitError

	if snap.Step == StepEdit {
		if len(snap.MappedRows) > 0 {
			rows := make([]MappedRow, len(snap.MappedRows))
			for i, mr := range snap.MappedRows {
				row := make(MappedRow, len(s.columns))
				for _, col := range s.columns {
					row[col.Key] = mr[col.Key]
				}
				rows[i] = row
			}
			s.mappedRows = rows
		} else {
			s.mappedRows = Apply(s.data.Rows, s.data.Headers, s.columns, s.mapping)
		}
		s.validations = ValidateRows(s.mappedRows, s.columns)
	}

	s.clampPage()
	return true
}
