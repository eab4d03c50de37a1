// ABOUTME: Improver rewrites code from validation feedback and verifies the revision
// ABOUTME: Verify is a heuristic yes/no read of the model's answer and is advisory only
package agents

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/harper/mwgen/internal/llm"
	"github.com/harper/mwgen/internal/models"
)

// ImproveResult is the revised code plus the analysis that drove it
type ImproveResult struct {
	Code       string                     `json:"code"`
	Analysis   models.ImprovementAnalysis `json:"analysis"`
	Diagnostic *Diagnostic                `json:"diagnostic,omitempty"`
}

// Improver is the improvement agent
type Improver struct {
	base
	validator *Validator
}

// NewImprover creates an Improver that classifies feedback with validator
func NewImprover(client llm.Completer, validator *Validator, cfg Config) *Improver {
	return &Improver{base: newBase(client, cfg), validator: validator}
}

// Improve classifies feedback, then asks for a revision that addresses it
func (im *Improver) Improve(ctx context.Context, original, feedback string) (ImproveResult, error) {
	analysis, diag, err := im.validator.Classify(ctx, feedback)
	if err != nil {
		return ImproveResult{Analysis: analysis}, fmt.Errorf("improve code: classify: %w", err)
	}

	raw, err := im.completeText(ctx, paramsImprove, improvePrompt(original, feedback, analysis, im.language))
	if err != nil {
		return ImproveResult{Analysis: analysis, Diagnostic: diag}, fmt.Errorf("improve code: %w", err)
	}

	code := StripCodeFence(raw)
	if strings.TrimSpace(code) == "" {
		return ImproveResult{Analysis: analysis, Diagnostic: diag}, fmt.Errorf("improve code: %w", ErrEmptyOutput)
	}

	return ImproveResult{Code: code, Analysis: analysis, Diagnostic: diag}, nil
}

// Verify asks whether improved still meets req and is better than original.
// A transport failure returns false with the error; any answer without an affirmative word is false.
func (im *Improver) Verify(ctx context.Context, original, improved string, req models.Requirements) (bool, error) {
	answer, err := im.complete(ctx, paramsVerify, verifyPrompt(original, improved, req))
	if err != nil {
		return false, fmt.Errorf("verify improvement: %w", err)
	}
	return IsAffirmative(answer), nil
}

// IsAffirmative reports whether answer contains the word "true" or "yes", ignoring case
func IsAffirmative(answer string) bool {
	words := strings.FieldsFunc(strings.ToLower(answer), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if w == "true" || w == "yes" {
			return true
		}
	}
	return false
}
