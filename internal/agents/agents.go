// ABOUTME: Agents wrap language-model calls behind narrow typed operations
// ABOUTME: One injected Completer is shared by every agent; no agent retries
package agents

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/harper/mwgen/internal/llm"
	"github.com/harper/mwgen/internal/logging"
)

var (
	// ErrEmptyInput is returned when an operation is given blank text
	ErrEmptyInput = errors.New("input text cannot be empty")
	// ErrEmptyOutput is returned when a free-text operation gets no text back
	ErrEmptyOutput = errors.New("model returned empty output")
)

// DefaultTargetLanguage is the language generated middleware is written in
const DefaultTargetLanguage = "Python"

// Config is shared by every agent
type Config struct {
	// Model overrides the backend's default chat model
	Model string
	// TargetLanguage is the language generated code is written in
	TargetLanguage string
	Logger         *zap.Logger
}

// callParams are the sampling settings of one operation
type callParams struct {
	MaxTokens   int
	Temperature float32
	JSON        bool
}

// Per-operation sampling: structured and judging tasks run cold, brainstorming runs warm
var (
	paramsParse         = callParams{MaxTokens: 1000, Temperature: 0.1, JSON: true}
	paramsParseEnhanced = callParams{MaxTokens: 1000, Temperature: 0.3, JSON: true}
	paramsSamples       = callParams{MaxTokens: 500, Temperature: 0.5}
	paramsGenerate      = callParams{MaxTokens: 2000, Temperature: 0.2}
	paramsValidate      = callParams{MaxTokens: 1000, Temperature: 0.1}
	paramsClassify      = callParams{MaxTokens: 1000, Temperature: 0.1, JSON: true}
	paramsImprove       = callParams{MaxTokens: 2000, Temperature: 0.2}
	paramsVerify        = callParams{MaxTokens: 100, Temperature: 0.1}
	paramsDocument      = callParams{MaxTokens: 1500, Temperature: 0.3}
	paramsChanges       = callParams{MaxTokens: 1000, Temperature: 0.2}
	paramsAPI           = callParams{MaxTokens: 1500, Temperature: 0.3}
)

// base holds what every agent needs to issue a call
type base struct {
	client   llm.Completer
	model    string
	language string
	logger   *zap.Logger
}

func newBase(client llm.Completer, cfg Config) base {
	language := cfg.TargetLanguage
	if language == "" {
		language = DefaultTargetLanguage
	}
	return base{
		client:   client,
		model:    cfg.Model,
		language: language,
		logger:   logging.OrNop(cfg.Logger),
	}
}

// complete issues exactly one request and returns the first part, or "" when there is none
func (b base) complete(ctx context.Context, p callParams, prompt string) (string, error) {
	resp, err := b.client.Complete(ctx, llm.Request{
		Model:       b.model,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
		Prompt:      prompt,
		JSON:        p.JSON,
	})
	if err != nil {
		return "", err
	}
	return resp.First(""), nil
}

// completeText is complete for free-text operations, where no text is a failure
func (b base) completeText(ctx context.Context, p callParams, prompt string) (string, error) {
	text, err := b.complete(ctx, p, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}

func (b base) warnDiagnostic(d *Diagnostic) {
	if d == nil {
		return
	}
	b.logger.Warn("structured output degraded to default",
		zap.String("operation", d.Operation),
		zap.String("raw", logging.Truncate(d.Raw, 500)),
		zap.Error(d.Err))
}

// Set bundles one of every agent around a shared client
type Set struct {
	Parser    *Parser
	Generator *Generator
	Validator *Validator
	Improver  *Improver
	Docs      *Documenter
	Samples   *SampleRequester
}

// NewSet builds every agent over one client
func NewSet(client llm.Completer, cfg Config) *Set {
	validator := NewValidator(client, cfg)
	return &Set{
		Parser:    NewParser(client, cfg),
		Generator: NewGenerator(client, cfg),
		Validator: validator,
		Improver:  NewImprover(client, validator, cfg),
		Docs:      NewDocumenter(client, cfg),
		Samples:   NewSampleRequester(client, cfg),
	}
}
