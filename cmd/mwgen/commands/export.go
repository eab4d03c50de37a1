// ABOUTME: CLI commands for exporting and resetting the case history
// ABOUTME: export writes YAML or Markdown; reset deletes every case and chunk
package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harper/mwgen/internal/storage/sqlite"
)

var (
	exportFormat string
	exportOut    string
	resetYes     bool
)

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export saved cases to YAML or Markdown",
		Long: `Export every saved case, most recent first.

Without --out the export is written to stdout. The format defaults to
YAML, or Markdown when --out ends in .md.

Examples:
  mwgen export
  mwgen export --out cases.md
  mwgen export --format yaml --out backup.yaml`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}

	cmd.Flags().StringVar(&exportFormat, "format", "", "Export format: yaml or markdown")
	cmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file")

	return cmd
}

// exportFormatFor resolves the export format from the flag and output path
func exportFormatFor(format, out string) (string, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return "yaml", nil
	case "markdown", "md":
		return "markdown", nil
	case "":
		if ext := strings.ToLower(filepath.Ext(out)); ext == ".md" || ext == ".markdown" {
			return "markdown", nil
		}
		return "yaml", nil
	default:
		return "", fmt.Errorf("unknown export format %q (want yaml or markdown)", format)
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := exportFormatFor(exportFormat, exportOut)
	if err != nil {
		return err
	}

	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	if exportOut != "" {
		if format == "markdown" {
			err = a.store.ExportToMarkdown(ctx, exportOut)
		} else {
			err = a.store.ExportToYAML(ctx, exportOut)
		}
		if err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported to %s\n", exportOut)
		}
		return nil
	}

	data, err := a.store.Export(ctx)
	if err != nil {
		return err
	}
	if format == "markdown" {
		return sqlite.WriteMarkdown(cmd.OutOrStdout(), data)
	}
	encoder := yaml.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

// NewResetCmd creates the reset command
func NewResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every saved case",
		Long: `Delete every saved case and the embedding index, leaving an empty database.

This cannot be undone. Consider 'mwgen export' first.

Examples:
  mwgen reset --yes`,
		Args: cobra.NoArgs,
		RunE: runReset,
	}

	cmd.Flags().BoolVar(&resetYes, "yes", false, "Confirm deleting all cases")

	return cmd
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		return errors.New("refusing to delete all cases without --yes")
	}

	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Reset(cmd.Context()); err != nil {
		return fmt.Errorf("resetting database: %w", err)
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Database reset (%s)\n", a.store.Path())
	}
	return nil
}
