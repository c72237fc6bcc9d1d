package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/csvgrid/csvgrid/internal/config"
	"github.com/csvgrid/csvgrid/internal/grid"
	"github.com/csvgrid/csvgrid/internal/schema"
)

type exportOptions struct {
	schemaID       string
	derived        bool
	workbook       string
	out            string
	skipEmptyLines bool
}

func newExportCmd() *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write a mapped grid back out as normalized CSV",
		Long: `Export writes a grid as CSV with the schema's column labels in schema
order. Given a file it runs the full import pipeline offline: parse the file,
map its headers onto a schema, and export. Required columns must all map, the
same gate the interactive flow applies. Given --workbook it instead re-exports
the session snapshot stored for that workbook in the configured store.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case opts.workbook != "" && len(args) > 0:
				return errors.New("pass either a file or --workbook, not both")
			case opts.workbook != "":
				return runExportWorkbook(cmd, opts)
			case len(args) == 1:
				return runExportFile(cmd, args[0], opts)
			default:
				return errors.New("requires a file argument or --workbook")
			}
		},
	}

	cmd.Flags().StringVarP(&opts.schemaID, "schema", "s", "", "Schema ID to map onto (default: auto-detect)")
	cmd.Flags().BoolVar(&opts.derived, "derived", false, "Use columns derived from the file's own headers")
	cmd.Flags().StringVarP(&opts.workbook, "workbook", "w", "", "Workbook whose stored session snapshot to export")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output path (default: stdout)")
	cmd.Flags().BoolVar(&opts.skipEmptyLines, "skip-empty-lines", false, "Drop blank lines while parsing")

	return cmd
}

func runExportFile(cmd *cobra.Command, file string, opts *exportOptions) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sess := grid.NewSession(grid.Config{
		Workbook:       "export",
		Registry:       schema.NewRegistry(schema.Defaults()...),
		SkipEmptyLines: opts.skipEmptyLines,
	})
	if err := sess.ImportData(ctx, raw); err != nil {
		return err
	}
	if opts.derived {
		if err := sess.UseDerivedColumns(ctx); err != nil {
			return err
		}
	} else if opts.schemaID != "" {
		if err := sess.UseSchema(ctx, opts.schemaID); err != nil {
			return err
		}
	}
	if err := sess.ApplyMapping(ctx); err != nil {
		return err
	}

	return writeExport(cmd, sess, opts.out)
}

// runExportWorkbook restores the workbook's session snapshot from the
// configured store and writes its grid. Only a session that reached the edit
// step has a grid to export, the same rule the HTTP export endpoint applies.
func runExportWorkbook(cmd *cobra.Command, opts *exportOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx := cmd.Context()
	store, _, cleanup, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	sess := grid.NewSession(grid.Config{
		Workbook:        opts.workbook,
		Registry:        schema.NewRegistry(schema.Defaults()...),
		Store:           store,
		Catalog:         grid.LoadCatalog(ctx, store),
		DefaultSchemaID: cfg.Grid.DefaultSchemaID,
		PageSize:        cfg.Grid.PageSize,
	})
	if !sess.Restore(ctx) {
		return fmt.Errorf("no session snapshot for workbook %q", opts.workbook)
	}
	if sess.Step() != grid.StepEdit {
		return fmt.Errorf("workbook %q has no applied grid to export", opts.workbook)
	}

	return writeExport(cmd, sess, opts.out)
}

func writeExport(cmd *cobra.Command, sess *grid.Session, out string) error {
	csvText := sess.ExportCSV()
	if out == "" {
		cmd.Print(csvText)
		return nil
	}
	if err := os.WriteFile(out, []byte(csvText), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	cmd.Printf("exported %d rows to %s\n", sess.RowCount(), out)
	return nil
}
