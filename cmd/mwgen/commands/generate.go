// ABOUTME: CLI command that runs the base generation flow for one request
// ABOUTME: Optionally improves the result, then saves it with retries
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/mwgen/internal/core"
	"github.com/harper/mwgen/internal/models"
	"github.com/harper/mwgen/internal/storage/sqlite"
	"github.com/harper/mwgen/internal/util"
)

var (
	generateImprove bool
	generateNoSave  bool
	generateFile    string
)

// NewGenerateCmd creates the generate command
func NewGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [request...]",
		Short: "Generate middleware from a description",
		Long: `Generate HTTP middleware from a plain-language description.

Runs parse, generate, document and validate, then saves the case to the
local history. With --improve the code is revised against the validation
feedback before saving.

Examples:
  mwgen generate "rate limit each client IP to 100 requests per minute"
  mwgen generate --improve --file request.txt
  echo "log request latency" | mwgen generate -
  mwgen generate --no-save --format json "add CORS headers"`,
		RunE: runGenerate,
	}

	cmd.Flags().BoolVar(&generateImprove, "improve", false, "Improve the code using the validation feedback")
	cmd.Flags().BoolVar(&generateNoSave, "no-save", false, "Do not save the case")
	cmd.Flags().StringVarP(&generateFile, "file", "f", "", "Read the request from a file")

	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	input, err := readInput(args, generateFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := newApp(appOptions{completion: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	result, err := a.pipeline.Run(ctx, input)
	if err != nil {
		if result != nil {
			_ = printResult(cmd, result)
		}
		return err
	}

	// A failed improvement leaves the base result intact, so it is still saved
	var improveErr error
	if generateImprove {
		if _, err := a.pipeline.Improve(ctx, result); err != nil {
			a.logger.Warn("improvement failed, keeping base result", zap.Error(err))
			improveErr = err
		}
	}

	if !generateNoSave {
		saved, err := saveWithRetry(ctx, a, result)
		if err != nil {
			_ = printResult(cmd, result)
			return fmt.Errorf("saving case: %w", err)
		}
		a.logger.Debug("saved", zap.Int64("case_id", saved.ID))
	}

	if err := printResult(cmd, result); err != nil {
		return err
	}
	return improvementFailure(result.CaseID, improveErr)
}

// improvementFailure reports a failed improvement along with the case it left unimproved
func improvementFailure(caseID int64, err error) error {
	if err == nil {
		return nil
	}
	if caseID == 0 {
		return fmt.Errorf("improvement failed: %w", err)
	}
	return fmt.Errorf("case %d saved without improvement: %w", caseID, err)
}

// saveWithRetry saves r, retrying store failures that may be transient
func saveWithRetry(ctx context.Context, a *app, r *core.Result) (models.Case, error) {
	var saved models.Case
	err := util.Retry(ctx, a.cfg.SaveRetries+1, a.cfg.RetryDelay, func() error {
		c, err := a.pipeline.Save(ctx, r)
		if errors.Is(err, core.ErrIncompleteResult) || errors.Is(err, sqlite.ErrAlreadyImproved) {
			return &util.Permanent{Err: err}
		}
		if err != nil {
			a.logger.Warn("save failed", zap.Error(err))
			return err
		}
		saved = c
		return nil
	})
	return saved, err
}

// printResult writes a pipeline result as JSON or as titled sections
func printResult(cmd *cobra.Command, r *core.Result) error {
	if jsonOutput() {
		return printJSON(cmd, r)
	}

	w := cmd.OutOrStdout()
	if r.CaseID != 0 {
		fmt.Fprintf(w, "✓ Case %d\n", r.CaseID)
	}
	if r.FailedStage != "" {
		fmt.Fprintf(w, "✗ Failed at %s\n", r.FailedStage)
	}
	printSection(w, "Requirements", r.Requirements.Summary())
	printSection(w, "Code", r.Code)
	printSection(w, "Documentation", r.Documentation)
	printSection(w, "Validation", r.Validation)
	if r.Improvement != nil {
		printImprovement(w, r.Improvement)
	}
	return nil
}

func printImprovement(w io.Writer, im *core.Improvement) {
	var analysis strings.Builder
	for _, c := range im.Analysis.Categories() {
		if len(c.Items) == 0 {
			continue
		}
		fmt.Fprintf(&analysis, "%s:\n", c.Name)
		for _, item := range c.Items {
			fmt.Fprintf(&analysis, "  - %s\n", item)
		}
	}

	printSection(w, "Analysis", analysis.String())
	printSection(w, "Improved Code", im.Code)
	printSection(w, "Improved Documentation", im.Documentation)

	switch {
	case im.FailedStage != "":
		fmt.Fprintf(w, "\n✗ Improvement failed at %s\n", im.FailedStage)
	case im.VerifyError != "":
		fmt.Fprintf(w, "\n? Verification unavailable: %s\n", im.VerifyError)
	case im.Verified:
		fmt.Fprintf(w, "\n✓ Improvement verified\n")
	default:
		fmt.Fprintf(w, "\n✗ Improvement not verified\n")
	}
}
