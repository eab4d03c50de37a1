// ABOUTME: MCP tool definitions and registration for the middleware generator
// ABOUTME: Defines JSON schemas for the five generation, improvement, retrieval, history and sample tools
package mcp

import (
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/harper/mwgen/internal/core"
	"github.com/harper/mwgen/internal/logging"
)

// Deps are the services the tools run against
type Deps struct {
	Pipeline  *core.Pipeline
	Cases     CaseReader
	Retriever core.Retriever
	// Indexer, when set, indexes saved cases in the background
	Indexer     core.CaseIndexer
	DefaultTopK int
	Logger      *zap.Logger
}

// NewHandlers creates the tool handlers without registering them
func NewHandlers(deps Deps) *Handlers {
	topK := deps.DefaultTopK
	if topK <= 0 {
		topK = 3
	}
	return &Handlers{
		pipeline:    deps.Pipeline,
		cases:       deps.Cases,
		retriever:   deps.Retriever,
		indexer:     deps.Indexer,
		defaultTopK: topK,
		logger:      logging.OrNop(deps.Logger),
		shutdownWg:  &sync.WaitGroup{},
	}
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, deps Deps) *Handlers {
	handlers := NewHandlers(deps)

	// 1. generate_middleware - run the full pipeline for a natural-language request
	server.AddTool(mcp.Tool{
		Name:        "generate_middleware",
		Description: "Generate HTTP middleware from a natural-language request. Parses requirements, generates code, documents and validates it, and saves the result as a case.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"request": map[string]interface{}{
					"type":        "string",
					"description": "What the middleware should do, in plain language",
				},
				"improve": map[string]interface{}{
					"type":        "boolean",
					"description": "Also run the improvement step on the generated code (default: false)",
					"default":     false,
				},
				"save": map[string]interface{}{
					"type":        "boolean",
					"description": "Persist the result as a case (default: true)",
					"default":     true,
				},
			},
			Required: []string{"request"},
		},
	}, handlers.GenerateMiddleware)

	// 2. improve_case - improve a stored case once
	server.AddTool(mcp.Tool{
		Name:        "improve_case",
		Description: "Improve the code of a stored case using its validation feedback. A case can be improved only once.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"case_id": map[string]interface{}{
					"type":        "number",
					"description": "ID of the case to improve",
				},
			},
			Required: []string{"case_id"},
		},
	}, handlers.ImproveCase)

	// 3. retrieve_cases - find similar prior cases, optionally generating from them
	server.AddTool(mcp.Tool{
		Name:        "retrieve_cases",
		Description: "Find stored cases relevant to a query. With generate=true, runs retrieval-augmented generation and returns new requirements and code without saving.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Request text to match against stored cases",
				},
				"top_k": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of cases to return (default: 3)",
					"default":     3,
				},
				"generate": map[string]interface{}{
					"type":        "boolean",
					"description": "Generate new code using the retrieved cases as examples (default: false)",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}, handlers.RetrieveCases)

	// 4. list_cases - history, most recent first
	server.AddTool(mcp.Tool{
		Name:        "list_cases",
		Description: "List stored cases, most recent first, optionally limited to one calendar date.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"date": map[string]interface{}{
					"type":        "string",
					"description": "Calendar date in YYYY-MM-DD form (UTC)",
				},
			},
		},
	}, handlers.ListCases)

	// 5. sample_requests - brainstorm example requests
	server.AddTool(mcp.Tool{
		Name:        "sample_requests",
		Description: "Suggest example middleware requests concerning HTTP request handling.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"count": map[string]interface{}{
					"type":        "number",
					"description": "Number of suggestions to ask for (default: 5, max: 20)",
					"default":     5,
				},
			},
		},
	}, handlers.SampleRequests)

	return handlers
}
