// ABOUTME: Generator produces middleware source code from Requirements
// ABOUTME: Always returns non-empty code or an explicit error
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/harper/mwgen/internal/llm"
	"github.com/harper/mwgen/internal/models"
)

// Generator is the code generation agent
type Generator struct {
	base
}

// NewGenerator creates a Generator
func NewGenerator(client llm.Completer, cfg Config) *Generator {
	return &Generator{base: newBase(client, cfg)}
}

// Language returns the language generated code is written in
func (g *Generator) Language() string {
	return g.language
}

// Generate writes middleware code for req
func (g *Generator) Generate(ctx context.Context, req models.Requirements) (string, error) {
	return g.generate(ctx, generatePrompt(req, g.language))
}

// GenerateEnhanced writes middleware code for req with prior cases' code as references.
// The order of similar is kept in the prompt.
func (g *Generator) GenerateEnhanced(ctx context.Context, req models.Requirements, similar []models.Case) (string, error) {
	return g.generate(ctx, generateEnhancedPrompt(req, similar, g.language))
}

func (g *Generator) generate(ctx context.Context, prompt string) (string, error) {
	raw, err := g.completeText(ctx, paramsGenerate, prompt)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	code := StripCodeFence(raw)
	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("generate code: %w", ErrEmptyOutput)
	}
	return code, nil
}
