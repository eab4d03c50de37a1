// ABOUTME: CLI command that generates middleware informed by similar saved cases
// ABOUTME: Retrieval strategy is chosen with --strategy; the result is printed, never saved
package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/mwgen/internal/core"
	"github.com/harper/mwgen/internal/retrieval"
)

var (
	ragTopK     int
	ragStrategy string
	ragFile     string
)

// NewRAGCmd creates the rag command
func NewRAGCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rag [request...]",
		Short: "Generate middleware using similar past cases",
		Long: `Generate middleware using the most similar saved cases as examples.

Strategies:
  keyword    match request words against saved inputs (default)
  embedding  nearest neighbours in the embedding index (see 'mwgen index')
  auto       embedding, falling back to keyword when the index is unavailable

Examples:
  mwgen rag "throttle login attempts per user"
  mwgen rag --strategy auto --top-k 5 "cache GET responses for 60 seconds"`,
		RunE: runRAG,
	}

	cmd.Flags().IntVarP(&ragTopK, "top-k", "k", 0, "Number of similar cases to use (default from config)")
	cmd.Flags().StringVar(&ragStrategy, "strategy", retrieval.StrategyKeyword, "Retrieval strategy: keyword, embedding or auto")
	cmd.Flags().StringVarP(&ragFile, "file", "f", "", "Read the request from a file")

	return cmd
}

func runRAG(cmd *cobra.Command, args []string) error {
	input, err := readInput(args, ragFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := newApp(appOptions{completion: true, strategy: ragStrategy})
	if err != nil {
		return err
	}
	defer a.Close()

	topK := ragTopK
	if topK == 0 {
		topK = a.cfg.TopK
	}
	if err := validatePositiveInt(topK, "--top-k"); err != nil {
		return err
	}

	result, err := a.pipeline.RunRAG(cmd.Context(), input, topK)
	if errors.Is(err, core.ErrEmptyStore) {
		return fmt.Errorf("%w: run 'mwgen generate' first", err)
	}
	if errors.Is(err, retrieval.ErrIndexUnavailable) {
		_ = printRAGResult(cmd, result)
		return fmt.Errorf("%w: run 'mwgen index' or use --strategy auto", err)
	}
	if result != nil {
		if perr := printRAGResult(cmd, result); perr != nil {
			return perr
		}
	}
	return err
}

func printRAGResult(cmd *cobra.Command, r *core.RAGResult) error {
	if r == nil {
		return nil
	}
	if jsonOutput() {
		return printJSON(cmd, r)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Strategy: %s\n", r.Strategy)
	fmt.Fprintf(w, "Similar cases: %d\n", len(r.Similar))
	for _, c := range r.Similar {
		fmt.Fprintf(w, "  #%d %s\n", c.ID, truncate(c.InputText, 70))
	}
	if r.FailedStage != "" {
		fmt.Fprintf(w, "✗ Failed at %s\n", r.FailedStage)
	}
	printSection(w, "Requirements", r.Requirements.Summary())
	printSection(w, "Code", r.Code)
	return nil
}
