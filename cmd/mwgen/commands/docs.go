// ABOUTME: CLI command that writes extra documentation for a saved case
// ABOUTME: api documents the latest code; changes summarizes what the improvement changed
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/mwgen/internal/agents"
)

var docsKind string

// NewDocsCmd creates the docs command
func NewDocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs <id>",
		Short: "Write API docs or a change summary for a case",
		Long: `Write additional documentation for a saved case.

Kinds:
  api      API reference for the case's latest code (improved when present)
  changes  summary of what the improved revision changed and why

Examples:
  mwgen docs 12
  mwgen docs 12 --kind changes`,
		Args: cobra.ExactArgs(1),
		RunE: runDocs,
	}

	cmd.Flags().StringVar(&docsKind, "kind", string(agents.DocAPI), "Documentation kind: api or changes")

	return cmd
}

func runDocs(cmd *cobra.Command, args []string) error {
	id, err := parseCaseID(args[0])
	if err != nil {
		return err
	}
	if kind := agents.DocKind(docsKind); kind != agents.DocAPI && kind != agents.DocChanges {
		return fmt.Errorf("unknown --kind %q (want api or changes)", docsKind)
	}

	a, err := newApp(appOptions{completion: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	c, err := a.store.Get(ctx, id)
	if err != nil {
		return err
	}

	docs := a.pipeline.Agents().Docs
	var out string
	switch agents.DocKind(docsKind) {
	case agents.DocChanges:
		if !c.HasImprovement() {
			return fmt.Errorf("case %d has no improved revision; run 'mwgen improve %d' first", id, id)
		}
		out, err = docs.SummarizeChanges(ctx, c.Code, c.ImprovedCode, c.Validation)
	default:
		code := c.Code
		if c.HasImprovement() {
			code = c.ImprovedCode
		}
		out, err = docs.DocumentAPI(ctx, code, c.Requirements)
	}
	if err != nil {
		return err
	}

	if jsonOutput() {
		return printJSON(cmd, map[string]interface{}{
			"case_id": id,
			"kind":    docsKind,
			"content": out,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
