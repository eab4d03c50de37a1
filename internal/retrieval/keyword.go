// ABOUTME: KeywordRetriever scans cases newest first for any query token as a substring
// ABOUTME: Needs no index; the first topK matches in scan order win
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/harper/mwgen/internal/models"
)

// KeywordRetriever is the index-free retrieval strategy
type KeywordRetriever struct {
	cases CaseLister
}

// NewKeywordRetriever creates a KeywordRetriever over cases
func NewKeywordRetriever(cases CaseLister) *KeywordRetriever {
	return &KeywordRetriever{cases: cases}
}

// Name returns the strategy name
func (r *KeywordRetriever) Name() string {
	return StrategyKeyword
}

// Retrieve returns at most topK cases whose input text contains any query token
func (r *KeywordRetriever) Retrieve(ctx context.Context, query string, topK int) ([]models.Case, error) {
	result := []models.Case{}
	tokens := strings.Fields(strings.ToLower(query))
	if topK <= 0 || len(tokens) == 0 {
		return result, nil
	}

	all, err := r.cases.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("keyword retrieval: %w", err)
	}

	for _, c := range all {
		if matchesAny(strings.ToLower(c.InputText), tokens) {
			result = append(result, c)
			if len(result) == topK {
				break
			}
		}
	}
	return result, nil
}

func matchesAny(text string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}
