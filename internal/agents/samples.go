// ABOUTME: SampleRequester brainstorms example middleware requests
// ABOUTME: Keeps only suggestions that mention an HTTP request concept
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/harper/mwgen/internal/llm"
)

// MaxSamples bounds one sample request
const MaxSamples = 20

// httpKeywords are matched as lowercase substrings
var httpKeywords = []string{
	"http", "request", "header", "body", "payload", "content-type",
	"authorization", "token", "jwt", "cors", "method", "get", "post",
	"put", "delete", "url", "query", "parameter",
}

// SampleRequester is the sample request agent
type SampleRequester struct {
	base
}

// NewSampleRequester creates a SampleRequester
func NewSampleRequester(client llm.Completer, cfg Config) *SampleRequester {
	return &SampleRequester{base: newBase(client, cfg)}
}

// Samples asks for n example requests. Malformed output yields an empty list and a Diagnostic.
func (s *SampleRequester) Samples(ctx context.Context, n int) ([]string, *Diagnostic, error) {
	if n <= 0 {
		n = 5
	}
	if n > MaxSamples {
		n = MaxSamples
	}

	raw, err := s.complete(ctx, paramsSamples, samplesPrompt(n))
	if err != nil {
		return nil, nil, fmt.Errorf("generate samples: %w", err)
	}

	samples, diag := DecodeOrDefault("samples", raw, func() []string { return []string{} })
	if diag != nil {
		s.warnDiagnostic(diag)
		return []string{}, diag, nil
	}

	return FilterHTTPSamples(samples), nil, nil
}

// FilterHTTPSamples keeps samples containing at least one HTTP keyword
func FilterHTTPSamples(samples []string) []string {
	kept := make([]string, 0, len(samples))
	for _, sample := range samples {
		lower := strings.ToLower(sample)
		for _, kw := range httpKeywords {
			if strings.Contains(lower, kw) {
				kept = append(kept, sample)
				break
			}
		}
	}
	return kept
}
