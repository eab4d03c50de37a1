// ABOUTME: Validator checks generated code against its requirements
// ABOUTME: Classify buckets the feedback into the five improvement categories
package agents

import (
	"context"
	"fmt"

	"github.com/harper/mwgen/internal/llm"
	"github.com/harper/mwgen/internal/models"
)

// Validator is the validation agent
type Validator struct {
	base
}

// NewValidator creates a Validator
func NewValidator(client llm.Completer, cfg Config) *Validator {
	return &Validator{base: newBase(client, cfg)}
}

// Validate returns free-text feedback. A failed or empty call is an error, never "".
func (v *Validator) Validate(ctx context.Context, code string, req models.Requirements) (string, error) {
	feedback, err := v.completeText(ctx, paramsValidate, validatePrompt(code, req, v.language))
	if err != nil {
		return "", fmt.Errorf("validate code: %w", err)
	}
	return feedback, nil
}

// Classify maps feedback into the five categories.
// Malformed or empty JSON yields the all-empty analysis and a Diagnostic; a failed call is an error.
func (v *Validator) Classify(ctx context.Context, feedback string) (models.ImprovementAnalysis, *Diagnostic, error) {
	raw, err := v.complete(ctx, paramsClassify, classifyPrompt(feedback))
	if err != nil {
		return models.EmptyAnalysis(), nil, fmt.Errorf("classify feedback: %w", err)
	}

	analysis, diag := DecodeOrDefault("classify", raw, models.EmptyAnalysis)
	if diag != nil {
		v.warnDiagnostic(diag)
	}
	return analysis.Normalize(), diag, nil
}
