package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/csvgrid/csvgrid/internal/automap"
	"github.com/csvgrid/csvgrid/internal/grid"
	"github.com/csvgrid/csvgrid/internal/schema"
	"github.com/csvgrid/csvgrid/internal/sheet"
	"github.com/csvgrid/csvgrid/internal/textenc"
)

type validateOptions struct {
	schemaID       string
	skipEmptyLines bool
	maxErrors      int
	jobs           int
}

func newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate [files...]",
		Short: "Validate CSV files against a schema",
		Long: `Validate parses each file, maps its headers onto a schema, and reports
every failing cell. The exit code is non-zero when any file has invalid rows,
so the command can gate CI pipelines and batch jobs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.schemaID, "schema", "s", "", "Schema ID to validate against (default: auto-detect per file)")
	cmd.Flags().BoolVar(&opts.skipEmptyLines, "skip-empty-lines", false, "Drop blank lines while parsing")
	cmd.Flags().IntVar(&opts.maxErrors, "max-errors", 10, "Errors to print per file, 0 for all")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 4, "Files validated concurrently")

	return cmd
}

type fileReport struct {
	file        string
	schemaID    string
	derived     bool
	rows        int
	invalidRows int
	errors      []string
}

func runValidate(cmd *cobra.Command, files []string, opts *validateOptions) error {
	registry := schema.NewRegistry(schema.Defaults()...)
	if opts.schemaID != "" {
		if _, ok := registry.Get(opts.schemaID); !ok {
			return fmt.Errorf("unknown schema: %s", opts.schemaID)
		}
	}
	if opts.jobs < 1 {
		opts.jobs = 1
	}

	reports := make([]fileReport, len(files))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(opts.jobs)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rep, err := validateFile(registry, file, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	totalInvalid := 0
	for _, rep := range reports {
		totalInvalid += rep.invalidRows
		printReport(cmd, rep, opts.maxErrors)
	}
	if totalInvalid > 0 {
		return fmt.Errorf("validation failed: %d invalid rows across %d files", totalInvalid, len(files))
	}
	return nil
}

// validateFile reports every failing cell instead of refusing at the
// mapping gate, so files missing a required column still get a full report.
func validateFile(registry *schema.Registry, file string, opts *validateOptions) (fileReport, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return fileReport{}, err
	}

	text := textenc.Decode(raw)
	sh := sheet.Parse(text, sheet.Options{SkipEmptyLines: opts.skipEmptyLines})

	rep := fileReport{file: file}
	var cols []schema.ExpectedColumn
	switch {
	case opts.schemaID != "":
		cols, _ = registry.Compiled(opts.schemaID)
		rep.schemaID = opts.schemaID
	default:
		if det, ok := automap.DetectSchema(registry.List(), sh.Headers); ok {
			cols, _ = registry.Compiled(det.SchemaID)
			rep.schemaID = det.SchemaID
		} else {
			cols = automap.DeriveColumns(sh.Headers, nil)
			rep.derived = true
		}
	}

	mapping := automap.MapColumns(cols, sh.Headers)
	rows := grid.Apply(sh.Rows, sh.Headers, cols, mapping)
	validations := grid.ValidateRows(rows, cols)

	rep.rows = len(rows)
	for _, rv := range validations {
		if rv.Valid() {
			continue
		}
		rep.invalidRows++
		for _, ce := range rv.Errors {
			rep.errors = append(rep.errors, fmt.Sprintf("row %d: %s", rv.RowIndex+1, ce.Message))
		}
	}
	return rep, nil
}

func printReport(cmd *cobra.Command, rep fileReport, maxErrors int) {
	schemaName := rep.schemaID
	if rep.derived {
		schemaName = "(derived)"
	}
	cmd.Printf("%s: schema=%s rows=%d invalid=%d\n", rep.file, schemaName, rep.rows, rep.invalidRows)

	shown := rep.errors
	if maxErrors > 0 && len(shown) > maxErrors {
		shown = shown[:maxErrors]
	}
	for _, e := range shown {
		cmd.Printf("  %s\n", e)
	}
	if rest := len(rep.errors) - len(shown); rest > 0 {
		cmd.Printf("  ... and %d more\n", rest)
	}
}
