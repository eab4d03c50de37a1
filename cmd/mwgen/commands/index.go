// ABOUTME: CLI command that builds the embedding index used by rag --strategy embedding
// ABOUTME: Only cases without chunks are embedded unless --all is given
package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/mwgen/internal/retrieval"
)

var indexAll bool

// NewIndexCmd creates the index command
func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed saved cases for similarity search",
		Long: `Embed saved case requests into the local embedding index.

Embedding retrieval needs OPENAI_API_KEY. Cases that are already indexed
are skipped unless --all is given, which re-embeds everything.

Examples:
  mwgen index
  mwgen index --all`,
		Args: cobra.NoArgs,
		RunE: runIndex,
	}

	cmd.Flags().BoolVar(&indexAll, "all", false, "Re-embed every case")

	return cmd
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := newApp(appOptions{embeddings: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.embedder == nil {
		return errors.New("indexing needs OPENAI_API_KEY for embeddings")
	}

	ctx := cmd.Context()

	cases, err := a.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("listing cases: %w", err)
	}

	indexer := retrieval.NewIndexer(a.embedder, a.store, a.cfg.ChunkSize, a.logger)
	n, err := indexer.IndexAll(ctx, cases, indexAll)
	if err != nil {
		return fmt.Errorf("indexed %d case(s) before failing: %w", n, err)
	}

	chunks, err := a.store.ChunkCount(ctx)
	if err != nil {
		return fmt.Errorf("counting chunks: %w", err)
	}

	if jsonOutput() {
		return printJSON(cmd, map[string]int{"indexed": n, "cases": len(cases), "chunks": chunks})
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Indexed %d of %d case(s), %d chunk(s) in index\n", n, len(cases), chunks)
	}
	return nil
}
