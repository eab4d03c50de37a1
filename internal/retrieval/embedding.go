// ABOUTME: EmbeddingRetriever ranks indexed chunks by L2 distance to the query's first chunk
// ABOUTME: Returns distinct owning cases in ascending distance order
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/harper/mwgen/internal/core"
	"github.com/harper/mwgen/internal/models"
	"github.com/harper/mwgen/internal/storage/sqlite"
)

// EmbeddingRetriever is the vector retrieval strategy
type EmbeddingRetriever struct {
	embedder Embedder
	index    ChunkIndex
	chunker  *core.ChunkEngine
}

// NewEmbeddingRetriever creates an EmbeddingRetriever. A nil embedder or index makes every call fail with ErrIndexUnavailable.
func NewEmbeddingRetriever(embedder Embedder, index ChunkIndex, chunkSize int) *EmbeddingRetriever {
	return &EmbeddingRetriever{
		embedder: embedder,
		index:    index,
		chunker:  core.NewChunkEngine(chunkSize),
	}
}

// Name returns the strategy name
func (r *EmbeddingRetriever) Name() string {
	return StrategyEmbedding
}

// Retrieve returns up to topK distinct cases nearest to the query
func (r *EmbeddingRetriever) Retrieve(ctx context.Context, query string, topK int) ([]models.Case, error) {
	if r.embedder == nil || r.index == nil {
		return nil, ErrIndexUnavailable
	}

	n, err := r.index.ChunkCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: no chunks indexed", ErrIndexUnavailable)
	}

	result := []models.Case{}
	chunks := r.chunker.Split(query)
	if topK <= 0 || len(chunks) == 0 {
		return result, nil
	}

	vector, err := r.embedder.Embed(ctx, chunks[0])
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.index.Nearest(ctx, vector, 0)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	seen := make(map[int64]bool)
	for _, m := range matches {
		if seen[m.CaseID] {
			continue
		}
		seen[m.CaseID] = true

		c, err := r.index.Get(ctx, m.CaseID)
		if errors.Is(err, sqlite.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load case %d: %w", m.CaseID, err)
		}

		result = append(result, *c)
		if len(result) == topK {
			break
		}
	}
	return result, nil
}
