// ABOUTME: Language-model capability shared by every agent
// ABOUTME: One request shape, one normalized response shape, one read rule
package llm

import (
	"context"
	"strings"
)

// Request is a single-turn completion request
type Request struct {
	// Model overrides the backend's default chat model when set
	Model       string
	MaxTokens   int
	Temperature float32
	Prompt      string
	// JSON asks the backend for a JSON object when it supports a response format
	JSON bool
}

// Response is the canonical ordered list of text parts returned by a backend
type Response struct {
	Parts []string
}

// First returns the first part, or fallback when there are none
func (r Response) First(fallback string) string {
	if len(r.Parts) == 0 {
		return fallback
	}
	return r.Parts[0]
}

// Text joins every part in order
func (r Response) Text() string {
	return strings.Join(r.Parts, "")
}

// ContentBlock is a typed response segment as returned by block-based APIs
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Normalize converts any supported backend response shape into a Response.
// Blank parts and non-text blocks are dropped. Unknown shapes yield an empty Response.
func Normalize(v any) Response {
	var parts []string
	add := func(s string) {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}

	switch t := v.(type) {
	case nil:
	case Response:
		for _, p := range t.Parts {
			add(p)
		}
	case string:
		add(t)
	case []string:
		for _, p := range t {
			add(p)
		}
	case ContentBlock:
		if t.Type == "" || t.Type == "text" {
			add(t.Text)
		}
	case []ContentBlock:
		for _, b := range t {
			if b.Type == "" || b.Type == "text" {
				add(b.Text)
			}
		}
	}

	return Response{Parts: parts}
}

// Completer issues completion requests to a language model
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Embedder turns text into an embedding vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// CompleterFunc adapts a function to the Completer interface
type CompleterFunc func(ctx context.Context, req Request) (Response, error)

// Complete calls f(ctx, req)
func (f CompleterFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// EmbedderFunc adapts a function to the Embedder interface
type EmbedderFunc func(ctx context.Context, text string) ([]float64, error)

// Embed calls f(ctx, text)
func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float64, error) {
	return f(ctx, text)
}
