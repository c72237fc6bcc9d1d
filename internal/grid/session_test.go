package grid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/csvgrid/csvgrid/internal/schema"
	"github.com/csvgrid/csvgrid/internal/sessionstore"
	"github.com/csvgrid/csvgrid/internal/sheet"
)

const assetCSV = "Asset ID,Unique Identifier\n123,a-1\n,b-2\nabc,c-3\n"

type fakeSubmitter struct {
	calls int
	err   error
	last  SubmitRequest
}

func (f *fakeSubmitter) Submit(_ context.Context, req SubmitRequest) error {
	f.calls++
	f.last = req
	return f.err
}

// failingStore errors on every call, standing in for a dead backend.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("store down")
}
func (failingStore) Set(context.Context, string, []byte) error { return errors.New("store down") }
func (failingStore) Remove(context.Context, string) error      { return errors.New("store down") }

func assetRegistry() *schema.Registry {
	return schema.NewRegistry(schema.Schema{
		ID:   "assets",
		Name: "Assets",
		Columns: []schema.SchemaColumn{
			{Key: "assetId", Label: "Asset ID", Required: true, Rules: []schema.Rule{
				{Kind: schema.RuleRegex, Pattern: `^[0-9]+$`},
			}},
			{Key: "uniqueIdentifier", Label: "Unique Identifier", Required: true},
		},
	})
}

// editSession imports csv and advances a fresh session into the edit step.
func editSession(t *testing.T, cfg Config, csv string) *Session {
	t.Helper()
	if cfg.Registry == nil {
		cfg.Registry = assetRegistry()
	}
	s := NewSession(cfg)
	assert.NoError(t, s.ImportData(context.Background(), []byte(csv)))
	assert.NoError(t, s.ApplyMapping(context.Background()))
	return s
}

// ============================================================================
// Import and mapping step
// ============================================================================

func TestSession_ImportDetectsSchema(t *testing.T) {
	s := NewSession(Config{Workbook: "wb", Registry: assetRegistry()})

	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte(assetCSV)...)
	assert.NoError(t, s.ImportData(context.Background(), raw))

	assert.Equal(t, StepMap, s.Step())
	assert.Equal(t, "assets", s.SchemaID())
	assert.False(t, s.DerivedColumns())
	// The BOM must not leak into the first header.
	assert.Equal(t, []string{"Asset ID", "Unique Identifier"}, s.Headers())
	assert.Equal(t, "Asset ID", s.Mapping()["assetId"])
	assert.Equal(t, "Unique Identifier", s.Mapping()["uniqueIdentifier"])
	assert.True(t, s.CanContinue())
}

func TestSession_ImportFallsBackToDerivedColumns(t *testing.T) {
	s := NewSession(Config{Workbook: "wb", Registry: assetRegistry()})

	assert.NoError(t, s.ImportData(context.Background(), []byte("Color,Shape\nred,circle\n")))

	assert.Equal(t, StepMap, s.Step())
	assert.True(t, s.DerivedColumns())
	assert.Equal(t, "", s.SchemaID())
	assert.Len(t, s.Columns(), 2)
	assert.Equal(t, "Color", s.Columns()[0].Label)
	assert.True(t, s.CanContinue())
}

func TestSession_ImportPrefersConfiguredDefaultOnMiss(t *testing.T) {
	s := NewSession(Config{
		Workbook:        "wb",
		Registry:        assetRegistry(),
		DefaultSchemaID: "assets",
	})

	assert.NoError(t, s.ImportData(context.Background(), []byte("Color,Shape\nred,circle\n")))

	assert.Equal(t, "assets", s.SchemaID())
	assert.False(t, s.DerivedColumns())
	// Nothing matched, so every column is unmapped and required gates hold.
	assert.Equal(t, "", s.Mapping()["assetId"])
	assert.False(t, s.CanContinue())
}

func TestSession_StepGuards(t *testing.T) {
	s := NewSession(Config{Workbook: "wb", Registry: assetRegistry()})

	// Map and edit operations are rejected before import.
	assert.ErrorIs(t, s.ApplyMapping(context.Background()), ErrStep)
	assert.ErrorIs(t, s.UpdateCell(context.Background(), 0, "assetId", "1"), ErrStep)
	assert.ErrorIs(t, s.Submit(context.Background()), ErrStep)
	assert.False(t, s.CanContinue())
	assert.False(t, s.CanSubmit())

	assert.NoError(t, s.ImportData(context.Background(), []byte(assetCSV)))

	// A second import without a reset is rejected.
	assert.ErrorIs(t, s.ImportData(context.Background(), []byte(assetCSV)), ErrStep)
	assert.ErrorIs(t, s.UpdateCell(context.Background(), 0, "assetId", "1"), ErrStep)
}

func TestSession_SetMapping(t *testing.T) {
	s := NewSession(Config{Workbook: "wb", Registry: assetRegistry()})
	assert.NoError(t, s.ImportData(context.Background(), []byte(assetCSV)))

	assert.Error(t, s.SetMapping(context.Background(), "nope", "Asset ID"))
	assert.Error(t, s.SetMapping(context.Background(), "assetId", "Ghost Header"))

	// Unmapping a required column blocks the continue gate.
	assert.NoError(t, s.SetMapping(context.Background(), "assetId", ""))
	assert.False(t, s.CanContinue())

	assert.NoError(t, s.SetMapping(context.Background(), "assetId", "Asset ID"))
	assert.True(t, s.CanContinue())
}

func TestSession_UseSchemaAndDerived(t *testing.T) {
	s := NewSession(Config{Workbook: "wb", Registry: assetRegistry()})
	assert.NoError(t, s.ImportData(context.Background(), []byte(assetCSV)))

	assert.ErrorIs(t, s.UseSchema(context.Background(), "missing"), schema.ErrNotFound)

	assert.NoError(t, s.UseDerivedColumns(context.Background()))
	assert.True(t, s.DerivedColumns())
	assert.Len(t, s.Columns(), 2)

	assert.NoError(t, s.UseSchema(context.Background(), "assets"))
	assert.False(t, s.DerivedColumns())
	assert.Equal(t, "assets", s.SchemaID())
	assert.Equal(t, "Asset ID", s.Mapping()["assetId"])
}

// ============================================================================
// Edit step
// ============================================================================

func TestSession_ApplyMappingValidatesGrid(t *testing.T) {
	s := editSession(t, Config{Workbook: "wb"}, assetCSV)

	assert.Equal(t, StepEdit, s.Step())
	assert.Equal(t, 3, s.RowCount())
	assert.Equal(t, 2, s.InvalidRowCount())
	assert.Equal(t, 2, s.InvalidCellCount())
	assert.True(t, s.Validations()[0].Valid())
	assert.Equal(t, "Asset ID is required", s.Validations()[1].Errors[0].Message)
	assert.Equal(t, "Asset ID is invalid", s.Validations()[2].Errors[0].Message)
}

func TestSession_UpdateCellRevalidatesOnlyOwningRow(t *testing.T) {
	s := editSession(t, Config{Workbook: "wb"}, assetCSV)

	before := s.Validations()[2].Errors
	assert.NoError(t, s.UpdateCell(context.Background(), 1, "assetId", "456"))

	assert.True(t, s.Validations()[1].Valid())
	assert.Equal(t, 1, s.InvalidRowCount())

	// Row 2 was not re-validated: its error slice is the same backing array.
	after := s.Validations()[2].Errors
	assert.Len(t, after, 1)
	assert.True(t, &before[0] == &after[0])
}

func TestSession_UpdateCellBounds(t *testing.T) {
	s := editSession(t, Config{Workbook: "wb"}, assetCSV)

	assert.Error(t, s.UpdateCell(context.Background(), -1, "assetId", "1"))
	assert.Error(t, s.UpdateCell(context.Background(), 3, "assetId", "1"))
	assert.Error(t, s.UpdateCell(context.Background(), 0, "nope", "1"))
}

func TestSession_BackDiscardsGrid(t *testing.T) {
	s := editSession(t, Config{Workbook: "wb"}, assetCSV)

	assert.NoError(t, s.Back(context.Background()))
	assert.Equal(t, StepMap, s.Step())
	assert.Equal(t, 0, s.RowCount())
	assert.Empty(t, s.Validations())

	// The mapping survives, so the grid can be rebuilt.
	assert.NoError(t, s.ApplyMapping(context.Background()))
	assert.Equal(t, 3, s.RowCount())
	assert.Equal(t, 2, s.InvalidRowCount())
}

// ============================================================================
// Filtering, pagination, selection
// ============================================================================

// wideCSV builds a ten-row sheet where rows 1, 4 and 7 miss the required
// Asset ID.
func wideCSV() string {
	var b strings.Builder
	b.WriteString("Asset ID,Unique Identifier\n")
	for i := 0; i < 10; i++ {
		if i%3 == 1 {
			fmt.Fprintf(&b, ",u-%d\n", i)
		} else {
			fmt.Fprintf(&b, "%d,u-%d\n", i, i)
		}
	}
	return b.String()
}

func TestSession_FilterModes(t *testing.T) {
	s := editSession(t, Config{Workbook: "wb"}, wideCSV())

	assert.Equal(t, FilterAll, s.Filter())
	assert.Len(t, s.FilteredIndices(), 10)

	assert.NoError(t, s.SetFilter(context.Background(), FilterInvalid))
	assert.Equal(t, []int{1, 4, 7}, s.FilteredIndices())

	assert.NoError(t, s.SetFilter(context.Background(), FilterValid))
	assert.Len(t, s.FilteredIndices(), 7)

	assert.Error(t, s.SetFilter(context.Background(), FilterMode("bogus")))
	assert.Equal(t, FilterValid, s.Filter())
}

func TestSession_PaginationClamps(t *testing.T) {
	s := editSession(t, Config{Workbook: "wb", PageSize: 3}, wideCSV())

	assert.Equal(t, 4, s.PageCount())
	assert.NoError(t, s.SetPage(context.Background(), 99))
	assert.Equal(t, 3, s.Page())

	page := s.VisiblePage()
	assert.Len(t, page, 1)
	assert.Equal(t, 9, page[0].Index)

	// Narrowing the filter pulls the page back into range.
	assert.NoError(t, s.SetFilter(context.Background(), FilterInvalid))
	assert.Equal(t, 0, s.Page())
	assert.Equal(t, 1, s.PageCount())
	assert.Len(t, s.VisiblePage(), 3)

	assert.Error(t, s.SetPageSize(context.Background(), 0))
	assert.NoError(t, s.SetPageSize(context.Background(), 2))
	assert.Equal(t, 2, s.PageCount())
}

func TestSession_VisiblePageCarriesValidation(t *testing.T) {
	s := editSession(t, Config{Workbook: "wb", PageSize: 5}, wideCSV())
	assert.NoError(t, s.SetFilter(context.Background(), FilterInvalid))

	for _, view := range s.VisiblePage() {
		assert.False(t, view.Validation.Valid())
		assert.Equal(t, view.Index, view.Validation.RowIndex)
		assert.Equal(t, "", view.Row["assetId"])
	}
}

func TestSession_DeleteSelectedReindexes(t *testing.T) {
	s := editSession(t, Config{Workbook: "wb"}, wideCSV())

	assert.NoError(t, s.ToggleRow(1))
	assert.NoError(t, s.ToggleRow(4))
	assert.NoError(t, s.ToggleRow(7))
	assert.Equal(t, 3, s.SelectedCount())

	assert.NoError(t, s.DeleteSelected(context.Background()))

	assert.Equal(t, 7, s.RowCount())
	assert.Equal(t, 0, s.InvalidRowCount())
	assert.Equal(t, 0, s.SelectedCount())
	for i, rv := range s.Validations() {
		assert.Equal(t, i, rv.RowIndex)
	}
	// Survivors keep their data in original order.
	assert.Equal(t, "0", s.Rows()[0]["assetId"])
	assert.Equal(t, "2", s.Rows()[1]["assetId"])
	assert.Equal(t, "9", s.Rows()[6]["assetId"])
}

func TestSession_DeleteAllFiltered(t *testing.T) {
	s := editSession(t, Config{Workbook: "wb", PageSize: 2}, wideCSV())

	assert.NoError(t, s.SetFilter(context.Background(), FilterInvalid))
	assert.NoError(t, s.SelectAllFiltered())
	assert.Equal(t, 3, s.SelectedCount())

	assert.NoError(t, s.DeleteSelected(context.Background()))

	assert.Equal(t, 7, s.RowCount())
	assert.Empty(t, s.FilteredIndices())
	assert.Equal(t, 0, s.Page())
	assert.Empty(t, s.VisiblePage())
}

func TestSession_ToggleRowBounds(t *testing.T) {
	s := editSession(t, Config{Workbook: "wb"}, assetCSV)

	assert.Error(t, s.ToggleRow(-1))
	assert.Error(t, s.ToggleRow(3))

	assert.NoError(t, s.ToggleRow(0))
	assert.True(t, s.IsSelected(0))
	assert.NoError(t, s.ToggleRow(0))
	assert.False(t, s.IsSelected(0))
}

// ============================================================================
// Armed-column bulk clear
// ============================================================================

func TestSession_ClearArmedColumnOverSelection(t *testing.T) {
	s := editSession(t, Config{Workbook: "wb"}, wideCSV())

	assert.Error(t, s.ArmColumn("nope"))
	assert.NoError(t, s.ArmColumn("assetId"))
	assert.Equal(t, "assetId", s.ArmedColumn())

	assert.NoError(t, s.ToggleRow(0))
	assert.NoError(t, s.ToggleRow(2))
	assert.NoError(t, s.ClearArmedColumn(context.Background()))

	assert.Equal(t, "", s.Rows()[0]["assetId"])
	assert.Equal(t, "", s.Rows()[2]["assetId"])
	assert.Equal(t, "3", s.Rows()[3]["assetId"])
	// Cleared required cells turn their rows invalid immediately.
	assert.False(t, s.Validations()[0].Valid())
	assert.False(t, s.Validations()[2].Valid())
}

func TestSession_ClearArmedColumnOverFilteredWhenNoneSelected(t *testing.T) {
	s := editSession(t, Config{Workbook: "wb"}, wideCSV())

	assert.NoError(t, s.SetFilter(context.Background(), FilterValid))
	assert.NoError(t, s.ArmColumn("uniqueIdentifier"))
	assert.NoError(t, s.ClearArmedColumn(context.Background()))

	// Every previously valid row lost its required identifier.
	assert.Equal(t, 10, s.InvalidRowCount())
	// The rows that were already invalid kept their identifiers.
	assert.Equal(t, "u-1", s.Rows()[1]["uniqueIdentifier"])
	assert.Equal(t, "", s.Rows()[0]["uniqueIdentifier"])
}

func TestSession_ClearArmedColumnNoopWhenDisarmed(t *testing.T) {
	s := editSession(t, Config{Workbook: "wb"}, assetCSV)

	assert.NoError(t, s.ArmColumn("assetId"))
	s.DisarmColumn()
	assert.Equal(t, "", s.ArmedColumn())

	assert.NoError(t, s.ClearArmedColumn(context.Background()))
	assert.Equal(t, "123", s.Rows()[0]["assetId"])
}

// ============================================================================
// Submission
// ============================================================================

func TestSession_SubmitBlockedByInvalidRows(t *testing.T) {
	sub := &fakeSubmitter{}
	s := editSession(t, Config{Workbook: "wb", Submitter: sub}, assetCSV)

	assert.False(t, s.CanSubmit())
	assert.NoError(t, s.Submit(context.Background()))

	// The collaborator is never invoked while the gate holds.
	assert.Equal(t, 0, sub.calls)
	assert.False(t, s.Submitted())

	assert.NoError(t, s.UpdateCell(context.Background(), 1, "assetId", "456"))
	assert.NoError(t, s.UpdateCell(context.Background(), 2, "assetId", "789"))
	assert.True(t, s.CanSubmit())
	assert.NoError(t, s.Submit(context.Background()))

	assert.Equal(t, 1, sub.calls)
	assert.True(t, s.Submitted())
	assert.Equal(t, "wb", sub.last.Workbook)
	assert.Len(t, sub.last.Rows, 3)
	assert.Equal(t, "Asset ID", sub.last.Mapping["assetId"])
}

func TestSession_SubmitWithErrorsAllowed(t *testing.T) {
	sub := &fakeSubmitter{}
	s := editSession(t, Config{Workbook: "wb", Submitter: sub, AllowSubmitWithErrors: true}, assetCSV)

	assert.Equal(t, 2, s.InvalidRowCount())
	assert.True(t, s.CanSubmit())
	assert.NoError(t, s.Submit(context.Background()))

	assert.Equal(t, 1, sub.calls)
	assert.True(t, s.Submitted())
}

func TestSession_SubmitFailureAndRetry(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("upstream rejected the batch")}
	s := editSession(t, Config{Workbook: "wb", Submitter: sub, AllowSubmitWithErrors: true}, assetCSV)

	vals := s.Validations()
	assert.NoError(t, s.Submit(context.Background()))
	assert.Equal(t, 1, sub.calls)
	assert.False(t, s.Submitted())
	assert.Equal(t, "upstream rejected the batch", s.SubmitError())

	// Retry re-invokes the collaborator without re-validating the grid.
	sub.err = nil
	assert.NoError(t, s.Submit(context.Background()))
	assert.Equal(t, 2, sub.calls)
	assert.True(t, s.Submitted())
	assert.Equal(t, "", s.SubmitError())
	assert.True(t, &vals[0] == &s.Validations()[0])
}

func TestSession_SubmitWithoutSubmitter(t *testing.T) {
	s := editSession(t, Config{Workbook: "wb", AllowSubmitWithErrors: true}, assetCSV)

	assert.NoError(t, s.Submit(context.Background()))
	assert.False(t, s.Submitted())
	assert.Equal(t, "no submitter configured", s.SubmitError())
}

func TestSession_EditsBlockedAfterSubmit(t *testing.T) {
	sub := &fakeSubmitter{}
	s := editSession(t, Config{Workbook: "wb", Submitter: sub, AllowSubmitWithErrors: true}, assetCSV)
	assert.NoError(t, s.Submit(context.Background()))
	assert.True(t, s.Submitted())

	assert.ErrorIs(t, s.UpdateCell(context.Background(), 0, "assetId", "1"), ErrSubmitted)
	assert.ErrorIs(t, s.DeleteSelected(context.Background()), ErrSubmitted)
	assert.ErrorIs(t, s.ClearArmedColumn(context.Background()), ErrSubmitted)
	assert.ErrorIs(t, s.Back(context.Background()), ErrSubmitted)
	assert.ErrorIs(t, s.Submit(context.Background()), ErrSubmitted)
	assert.Equal(t, 1, sub.calls)
}

// ============================================================================
// Export
// ============================================================================

func TestSession_ExportRoundTrip(t *testing.T) {
	s := editSession(t, Config{Workbook: "wb"}, assetCSV)
	assert.NoError(t, s.UpdateCell(context.Background(), 0, "uniqueIdentifier", `tricky, "value"`))

	out := s.ExportCSV()
	parsed := sheet.Parse(out, sheet.Options{Delimiter: ','})

	assert.Equal(t, []string{"Asset ID", "Unique Identifier"}, parsed.Headers)
	assert.Len(t, parsed.Rows, 3)
	assert.Equal(t, []string{"123", `tricky, "value"`}, parsed.Rows[0])
	assert.Equal(t, []string{"abc", "c-3"}, parsed.Rows[2])
}

// ============================================================================
// Persistence
// ============================================================================

func TestSession_SnapshotRestoreRoundTrip(t *testing.T) {
	store := sessionstore.NewMemory()
	cfg := Config{Workbook: "wb-7", Registry: assetRegistry(), Store: store, PageSize: 1}

	s1 := editSession(t, cfg, wideCSV())
	assert.NoError(t, s1.UpdateCell(context.Background(), 1, "assetId", "100"))
	assert.NoError(t, s1.SetFilter(context.Background(), FilterInvalid))
	assert.NoError(t, s1.SetPage(context.Background(), 1))
	assert.Equal(t, 1, s1.Page())

	s2 := NewSession(cfg)
	assert.True(t, s2.Restore(context.Background()))

	assert.Equal(t, StepEdit, s2.Step())
	assert.Equal(t, "assets", s2.SchemaID())
	assert.Equal(t, s1.Headers(), s2.Headers())
	assert.Equal(t, s1.Rows(), s2.Rows())
	assert.Equal(t, s1.Mapping(), s2.Mapping())
	assert.Equal(t, FilterInvalid, s2.Filter())
	assert.Equal(t, 1, s2.Page())
	assert.Equal(t, 1, s2.PageSize())
	// Validations are recomputed on restore and agree with the source.
	assert.Equal(t, s1.InvalidRowCount(), s2.InvalidRowCount())
	assert.Equal(t, s1.FilteredIndices(), s2.FilteredIndices())
}

func TestSession_RestoreMapStep(t *testing.T) {
	store := sessionstore.NewMemory()
	cfg := Config{Workbook: "wb-8", Registry: assetRegistry(), Store: store}

	s1 := NewSession(cfg)
	assert.NoError(t, s1.ImportData(context.Background(), []byte(assetCSV)))
	assert.NoError(t, s1.SetMapping(context.Background(), "uniqueIdentifier", ""))

	s2 := NewSession(cfg)
	assert.True(t, s2.Restore(context.Background()))

	assert.Equal(t, StepMap, s2.Step())
	assert.Equal(t, "", s2.Mapping()["uniqueIdentifier"])
	assert.Equal(t, "Asset ID", s2.Mapping()["assetId"])
	assert.False(t, s2.CanContinue())
}

func TestSession_RestoreToleratesBadSnapshots(t *testing.T) {
	ctx := context.Background()

	// Missing snapshot.
	s := NewSession(Config{Workbook: "wb-9", Registry: assetRegistry(), Store: sessionstore.NewMemory()})
	assert.False(t, s.Restore(ctx))
	assert.Equal(t, StepImport, s.Step())

	// Corrupt JSON.
	store := sessionstore.NewMemory()
	cfg := Config{Workbook: "wb-10", Registry: assetRegistry(), Store: store}
	s = NewSession(cfg)
	assert.NoError(t, store.Set(ctx, s.storeKey(), []byte("{not json")))
	assert.False(t, s.Restore(ctx))
	assert.Equal(t, StepImport, s.Step())

	// Tampered rows no longer match the recorded fingerprint.
	s1 := editSession(t, cfg, assetCSV)
	snap := s1.Snapshot()
	snap.Rows = append(snap.Rows, []string{"999", "z-9"})
	raw, err := json.Marshal(snap)
	assert.NoError(t, err)
	assert.NoError(t, store.Set(ctx, s1.storeKey(), raw))

	s2 := NewSession(cfg)
	assert.False(t, s2.Restore(ctx))
	assert.Equal(t, StepImport, s2.Step())
}

func TestSession_StoreFailuresAreSwallowed(t *testing.T) {
	cfg := Config{Workbook: "wb-11", Registry: assetRegistry(), Store: failingStore{}}

	s := editSession(t, cfg, assetCSV)
	assert.NoError(t, s.UpdateCell(context.Background(), 1, "assetId", "456"))
	assert.Equal(t, 1, s.InvalidRowCount())

	s.Reset(context.Background())
	assert.Equal(t, StepImport, s.Step())

	assert.False(t, NewSession(cfg).Restore(context.Background()))
}

func TestSession_ResetRemovesSnapshot(t *testing.T) {
	store := sessionstore.NewMemory()
	cfg := Config{Workbook: "wb-12", Registry: assetRegistry(), Store: store}

	s := editSession(t, cfg, assetCSV)
	assert.Equal(t, 1, store.Len())

	s.Reset(context.Background())
	assert.Equal(t, StepImport, s.Step())
	assert.Equal(t, 0, store.Len())
	assert.False(t, NewSession(cfg).Restore(context.Background()))
}

// Two sessions over different workbooks never see each other's snapshots.
func TestSession_WorkbooksAreNamespaced(t *testing.T) {
	store := sessionstore.NewMemory()

	a := editSession(t, Config{Workbook: "wb-a", Registry: assetRegistry(), Store: store}, assetCSV)
	b := NewSession(Config{Workbook: "wb-b", Registry: assetRegistry(), Store: store})
	assert.NoError(t, b.ImportData(context.Background(), []byte("Color\nred\n")))

	restoredA := NewSession(Config{Workbook: "wb-a", Registry: assetRegistry(), Store: store})
	assert.True(t, restoredA.Restore(context.Background()))
	assert.Equal(t, StepEdit, restoredA.Step())
	assert.Equal(t, a.Headers(), restoredA.Headers())

	restoredB := NewSession(Config{Workbook: "wb-b", Registry: assetRegistry(), Store: store})
	assert.True(t, restoredB.Restore(context.Background()))
	assert.Equal(t, StepMap, restoredB.Step())
	assert.Equal(t, b.Headers(), restoredB.Headers())
}
