// ABOUTME: CLI command that improves a saved case and records the revision
// ABOUTME: A case can be improved once; later attempts are rejected by the store
package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/mwgen/internal/core"
	"github.com/harper/mwgen/internal/storage/sqlite"
)

// NewImproveCmd creates the improve command
func NewImproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "improve <id>",
		Short: "Improve a saved case",
		Long: `Revise a saved case's code using its validation feedback, document the
revision, check it still meets the requirements, and save it onto the case.

Examples:
  mwgen improve 12`,
		Args: cobra.ExactArgs(1),
		RunE: runImprove,
	}
}

func runImprove(cmd *cobra.Command, args []string) error {
	id, err := parseCaseID(args[0])
	if err != nil {
		return err
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
	if c.HasImprovement() {
		return fmt.Errorf("case %d: %w", id, sqlite.ErrAlreadyImproved)
	}

	result := core.ResultFromCase(*c)
	if _, err := a.pipeline.Improve(ctx, result); err != nil {
		_ = printResult(cmd, result)
		return err
	}

	if _, err := saveWithRetry(ctx, a, result); err != nil {
		if errors.Is(err, sqlite.ErrAlreadyImproved) {
			return fmt.Errorf("case %d: %w", id, err)
		}
		return fmt.Errorf("saving improvement: %w", err)
	}

	return printResult(cmd, result)
}
