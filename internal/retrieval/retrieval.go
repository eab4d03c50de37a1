// ABOUTME: CaseRetriever strategies that find prior cases relevant to a new request
// ABOUTME: Strategies fail explicitly; falling back is a choice the caller makes through Fallback
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/harper/mwgen/internal/logging"
	"github.com/harper/mwgen/internal/models"
)

// Strategy names
const (
	StrategyKeyword   = "keyword"
	StrategyEmbedding = "embedding"
	StrategyAuto      = "auto"
)

// ErrIndexUnavailable is returned when the embedding strategy has no embedder or no indexed chunks
var ErrIndexUnavailable = errors.New("embedding index unavailable")

// Retriever returns up to topK cases, most relevant first
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]models.Case, error)
	Name() string
}

// CaseLister lists every persisted case, most recent first
type CaseLister interface {
	ListAll(ctx context.Context) ([]models.Case, error)
}

// CaseGetter loads one case by id
type CaseGetter interface {
	Get(ctx context.Context, id int64) (*models.Case, error)
}

// ChunkIndex is the embedding index read side
type ChunkIndex interface {
	CaseGetter
	Nearest(ctx context.Context, vector []float64, limit int) ([]models.ChunkMatch, error)
	ChunkCount(ctx context.Context) (int, error)
}

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type fallback struct {
	primary   Retriever
	secondary Retriever
	logger    *zap.Logger
}

// Fallback tries primary and uses secondary only when primary reports ErrIndexUnavailable
func Fallback(primary, secondary Retriever, logger *zap.Logger) Retriever {
	return &fallback{primary: primary, secondary: secondary, logger: logging.OrNop(logger)}
}

func (f *fallback) Name() string {
	return fmt.Sprintf("%s>%s", f.primary.Name(), f.secondary.Name())
}

func (f *fallback) Retrieve(ctx context.Context, query string, topK int) ([]models.Case, error) {
	cases, err := f.primary.Retrieve(ctx, query, topK)
	if err == nil {
		return cases, nil
	}
	if !errors.Is(err, ErrIndexUnavailable) {
		return nil, err
	}

	f.logger.Info("primary retrieval unavailable, falling back",
		zap.String("primary", f.primary.Name()),
		zap.String("secondary", f.secondary.Name()),
		zap.Error(err))
	return f.secondary.Retrieve(ctx, query, topK)
}

// New builds the retriever for strategy. Auto prefers embeddings when an embedder exists.
func New(strategy string, lister CaseLister, index ChunkIndex, embedder Embedder, chunkSize int, logger *zap.Logger) (Retriever, error) {
	keyword := NewKeywordRetriever(lister)

	switch strategy {
	case "", StrategyKeyword:
		return keyword, nil
	case StrategyEmbedding:
		return NewEmbeddingRetriever(embedder, index, chunkSize), nil
	case StrategyAuto:
		if embedder == nil {
			return keyword, nil
		}
		return Fallback(NewEmbeddingRetriever(embedder, index, chunkSize), keyword, logger), nil
	default:
		return nil, fmt.Errorf("unknown retrieval strategy %q (want %s, %s or %s)",
			strategy, StrategyKeyword, StrategyEmbedding, StrategyAuto)
	}
}
