// ABOUTME: Indexer provisions the embedding index from stored cases
// ABOUTME: Chunks a case's input text, embeds each chunk, and replaces the case's chunks
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/harper/mwgen/internal/core"
	"github.com/harper/mwgen/internal/logging"
	"github.com/harper/mwgen/internal/models"
)

// ChunkWriter is the embedding index write side
type ChunkWriter interface {
	SaveChunks(ctx context.Context, caseID int64, chunks []models.EmbeddingChunk) error
	IndexedCaseIDs(ctx context.Context) (map[int64]bool, error)
}

// Indexer embeds cases into the chunk index
type Indexer struct {
	embedder Embedder
	index    ChunkWriter
	chunker  *core.ChunkEngine
	logger   *zap.Logger
}

// NewIndexer creates an Indexer
func NewIndexer(embedder Embedder, index ChunkWriter, chunkSize int, logger *zap.Logger) *Indexer {
	return &Indexer{
		embedder: embedder,
		index:    index,
		chunker:  core.NewChunkEngine(chunkSize),
		logger:   logging.OrNop(logger),
	}
}

// IndexCase embeds c's input text and stores its chunks, returning how many were written
func (ix *Indexer) IndexCase(ctx context.Context, c models.Case) (int, error) {
	if ix.embedder == nil {
		return 0, ErrIndexUnavailable
	}

	chunks := ix.chunker.Chunk(c.ID, c.InputText)
	for i := range chunks {
		vec, err := ix.embedder.Embed(ctx, chunks[i].Text)
		if err != nil {
			return 0, fmt.Errorf("embed case %d chunk %d: %w", c.ID, i, err)
		}
		chunks[i].Embedding = vec
	}

	if err := ix.index.SaveChunks(ctx, c.ID, chunks); err != nil {
		return 0, fmt.Errorf("save chunks for case %d: %w", c.ID, err)
	}

	ix.logger.Debug("indexed case", zap.Int64("case_id", c.ID), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// IndexAll indexes every case. With all false, cases that already have chunks are skipped.
// It returns the number of cases indexed.
func (ix *Indexer) IndexAll(ctx context.Context, cases []models.Case, all bool) (int, error) {
	done := map[int64]bool{}
	if !all {
		ids, err := ix.index.IndexedCaseIDs(ctx)
		if err != nil {
			return 0, fmt.Errorf("list indexed cases: %w", err)
		}
		done = ids
	}

	indexed := 0
	for _, c := range cases {
		if done[c.ID] {
			continue
		}
		if _, err := ix.IndexCase(ctx, c); err != nil {
			return indexed, err
		}
		indexed++
	}

	ix.logger.Info("index pass complete", zap.Int("indexed", indexed), zap.Int("total", len(cases)))
	return indexed, nil
}
