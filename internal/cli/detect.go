package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/csvgrid/csvgrid/internal/automap"
	"github.com/csvgrid/csvgrid/internal/schema"
	"github.com/csvgrid/csvgrid/internal/sheet"
	"github.com/csvgrid/csvgrid/internal/textenc"
)

type detectReport struct {
	File      string             `json:"file"`
	Encoding  string             `json:"encoding"`
	Delimiter string             `json:"delimiter"`
	Headers   []string           `json:"headers"`
	RowCount  int                `json:"rowCount"`
	Detection *automap.Detection `json:"detection,omitempty"`
	Mapping   automap.Mapping    `json:"mapping,omitempty"`
}

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [file]",
		Short: "Report a file's encoding, delimiter, and best-matching schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args[0])
		},
	}
}

func runDetect(cmd *cobra.Command, file string) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	text := textenc.Decode(raw)
	delim := sheet.DetectDelimiter(text)
	sh := sheet.Parse(text, sheet.Options{Delimiter: delim})

	rep := detectReport{
		File:      file,
		Encoding:  string(textenc.DetectEncoding(raw)),
		Delimiter: string(delim),
		Headers:   sh.Headers,
		RowCount:  len(sh.Rows),
	}

	registry := schema.NewRegistry(schema.Defaults()...)
	if det, ok := automap.DetectSchema(registry.List(), sh.Headers); ok {
		rep.Detection = &det
		if cols, ok := registry.Compiled(det.SchemaID); ok {
			rep.Mapping = automap.MapColumns(cols, sh.Headers)
		}
	}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}
