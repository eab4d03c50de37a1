// ABOUTME: Parser turns free text into structured Requirements
// ABOUTME: Malformed model output degrades to a default value plus a Diagnostic, never an error
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/harper/mwgen/internal/llm"
	"github.com/harper/mwgen/internal/models"
)

// Parser is the requirement parsing agent
type Parser struct {
	base
}

// NewParser creates a Parser
func NewParser(client llm.Completer, cfg Config) *Parser {
	return &Parser{base: newBase(client, cfg)}
}

// Parse structures text. The error is reserved for transport failures;
// unparseable output returns empty Requirements and a Diagnostic.
func (p *Parser) Parse(ctx context.Context, text string) (models.Requirements, *Diagnostic, error) {
	if strings.TrimSpace(text) == "" {
		return models.Requirements{}, nil, ErrEmptyInput
	}

	raw, err := p.complete(ctx, paramsParse, parsePrompt(text))
	if err != nil {
		return models.Requirements{}, nil, fmt.Errorf("parse requirements: %w", err)
	}

	req, diag := DecodeOrDefault("parse", raw, func() models.Requirements {
		return models.Requirements{}
	})
	if diag != nil {
		p.warnDiagnostic(diag)
		return models.Requirements{}, diag, nil
	}

	if req.IsEmpty() {
		return models.Requirements{}, nil, nil
	}
	return req.Normalize(), nil, nil
}

// ParseEnhanced structures text using the requirements of similar prior cases as examples.
// Empty or malformed output degrades to the "unknown" intent default.
func (p *Parser) ParseEnhanced(ctx context.Context, text string, similar []models.Case) (models.Requirements, *Diagnostic, error) {
	if strings.TrimSpace(text) == "" {
		return models.Requirements{}, nil, ErrEmptyInput
	}

	raw, err := p.complete(ctx, paramsParseEnhanced, parseEnhancedPrompt(text, similar))
	if err != nil {
		return models.Requirements{}, nil, fmt.Errorf("parse enhanced requirements: %w", err)
	}

	req, diag := DecodeOrDefault("parse_enhanced", raw, models.UnknownRequirements)
	if diag != nil {
		p.warnDiagnostic(diag)
		return req, diag, nil
	}

	if req.IsEmpty() {
		return models.UnknownRequirements(), nil, nil
	}
	return req.Normalize(), nil, nil
}
