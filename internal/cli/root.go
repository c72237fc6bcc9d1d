// Package cli wires the command-line interface using Cobra. The serve
// command runs the HTTP server; validate, detect, and export run the import
// engine against local files without a server.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command and attaches all sub-commands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "csvgrid",
		Short: "CSV import engine with schema mapping and validation",
		Long: `csvgrid maps messy CSV files onto known column schemas, validates every
cell against the schema's rules, and serves an editable import grid over HTTP.
The validate, detect, and export commands run the same engine against local
files for scripting and CI use.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(newServeCmd(), newValidateCmd(), newDetectCmd(), newExportCmd())

	return rootCmd
}
