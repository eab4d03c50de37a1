// ABOUTME: Documenter renders prose documentation through one templated primitive
// ABOUTME: Four templates: document, document revision, changes summary, API documentation
package agents

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/harper/mwgen/internal/llm"
	"github.com/harper/mwgen/internal/models"
)

// DocKind selects a documentation template
type DocKind string

// Documentation templates
const (
	DocDocument DocKind = "document"
	DocRevision DocKind = "revision"
	DocChanges  DocKind = "changes"
	DocAPI      DocKind = "api"
)

// docVars are the values a template may reference
type docVars struct {
	Language     string
	Code         string
	Original     string
	Feedback     string
	Requirements string
}

type docTemplate struct {
	params callParams
	tmpl   *template.Template
}

var docTemplates = map[DocKind]docTemplate{
	DocDocument: {paramsDocument, template.Must(template.New("document").Parse(
		`Write documentation for the following {{.Language}} code.

Code:
{{.Code}}

Include appropriate comments and explanation.`))},

	DocRevision: {paramsDocument, template.Must(template.New("revision").Parse(
		`Write documentation for the following {{.Language}} code.

Code:
{{.Code}}

This code is an improved version of the following original code:
{{.Original}}

The documentation must also cover:
1. What was improved
2. Performance and security changes
3. Changes in logic`))},

	DocChanges: {paramsChanges, template.Must(template.New("changes").Parse(
		`Analyze and summarize the differences between the two versions of this code.

Original code:
{{.Original}}

Improved code:
{{.Code}}

Validation feedback:
{{.Feedback}}

The summary must include these sections:
## Key Changes
## Functional and Performance Improvements
## Security Hardening
## Structural Changes
## New Error Handling

Format: Markdown with clear section headers and the important changes emphasized.`))},

	DocAPI: {paramsAPI, template.Must(template.New("api").Parse(
		`Write API documentation for the following middleware code.

Code:
{{.Code}}

Requirements:
{{.Requirements}}

The documentation must include these sections:
## Overview
## Request and Response Format
## Middleware Behavior
## Error Handling
## Configuration Options
## Usage Examples

Format: Markdown, compatible with an OpenAPI description, with clear examples.`))},
}

// Documenter is the documentation agent
type Documenter struct {
	base
}

// NewDocumenter creates a Documenter
func NewDocumenter(client llm.Completer, cfg Config) *Documenter {
	return &Documenter{base: newBase(client, cfg)}
}

// Document describes code
func (d *Documenter) Document(ctx context.Context, code string) (string, error) {
	return d.render(ctx, DocDocument, docVars{Code: code})
}

// DocumentRevision describes improved code relative to original
func (d *Documenter) DocumentRevision(ctx context.Context, improved, original string) (string, error) {
	return d.render(ctx, DocRevision, docVars{Code: improved, Original: original})
}

// SummarizeChanges renders a Markdown summary of what changed between two versions
func (d *Documenter) SummarizeChanges(ctx context.Context, original, improved, feedback string) (string, error) {
	return d.render(ctx, DocChanges, docVars{Code: improved, Original: original, Feedback: feedback})
}

// DocumentAPI renders Markdown API documentation for code
func (d *Documenter) DocumentAPI(ctx context.Context, code string, req models.Requirements) (string, error) {
	return d.render(ctx, DocAPI, docVars{Code: code, Requirements: jsonBlock(req)})
}

// render is the one templated prose primitive behind every operation
func (d *Documenter) render(ctx context.Context, kind DocKind, vars docVars) (string, error) {
	t, ok := docTemplates[kind]
	if !ok {
		return "", fmt.Errorf("unknown documentation kind %q", kind)
	}
	vars.Language = d.language

	var prompt strings.Builder
	if err := t.tmpl.Execute(&prompt, vars); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", kind, err)
	}

	text, err := d.completeText(ctx, t.params, prompt.String())
	if err != nil {
		return "", fmt.Errorf("%s documentation: %w", kind, err)
	}
	return text, nil
}
