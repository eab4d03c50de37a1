// ABOUTME: MCP tool handler implementations for the middleware generator
// ABOUTME: Tool failures are returned as error results; saved cases are indexed in the background
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/harper/mwgen/internal/core"
	"github.com/harper/mwgen/internal/models"
)

// CaseReader is the read side of the record store
type CaseReader interface {
	Get(ctx context.Context, id int64) (*models.Case, error)
	ListAll(ctx context.Context) ([]models.Case, error)
	ListByDate(ctx context.Context, date string) ([]models.Case, error)
}

// indexTimeout bounds one background indexing run
const indexTimeout = 2 * time.Minute

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	pipeline    *core.Pipeline
	cases       CaseReader
	retriever   core.Retriever
	indexer     core.CaseIndexer
	defaultTopK int
	logger      *zap.Logger
	shutdownWg  *sync.WaitGroup // Track pending background indexing
}

// GenerateMiddleware handles the generate_middleware tool
func (h *Handlers) GenerateMiddleware(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("request")
	if err != nil {
		return mcp.NewToolResultError("request argument is required and must be a string"), nil
	}
	improve := request.GetBool("improve", false)
	save := request.GetBool("save", true)

	result, err := h.pipeline.Run(ctx, text)
	if err != nil {
		return stageFailure("pipeline failed", result, err), nil
	}

	response := map[string]interface{}{
		"result": result,
	}

	// A failed improvement leaves the base result intact, so it is still saved
	if improve {
		if im, err := h.pipeline.Improve(ctx, result); err != nil {
			h.logger.Warn("improvement failed, saving base result", zap.Error(err))
			response["improvement_error"] = err.Error()
			if im != nil {
				response["failed_stage"] = im.FailedStage
			}
		}
	}

	if save {
		saved, err := h.pipeline.Save(ctx, result)
		if err != nil {
			return stageFailure("save failed", result, err), nil
		}
		response["case_id"] = saved.ID
		h.indexAsync(saved)
	}

	return jsonResult(response)
}

// ImproveCase handles the improve_case tool
func (h *Handlers) ImproveCase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetInt("case_id", 0)
	if id <= 0 {
		return mcp.NewToolResultError("case_id argument is required and must be a positive number"), nil
	}

	c, err := h.cases.Get(ctx, int64(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load case: %v", err)), nil
	}
	if c.HasImprovement() {
		return mcp.NewToolResultError(fmt.Sprintf("case %d already has an improved revision", id)), nil
	}

	result := core.ResultFromCase(*c)
	im, err := h.pipeline.Improve(ctx, result)
	if err != nil {
		return stageFailure("improvement failed", im, err), nil
	}

	saved, err := h.pipeline.Save(ctx, result)
	if err != nil {
		return stageFailure("save failed", im, err), nil
	}

	response := map[string]interface{}{
		"case_id":     saved.ID,
		"improvement": im,
	}
	return jsonResult(response)
}

// RetrieveCases handles the retrieve_cases tool
func (h *Handlers) RetrieveCases(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}
	topK := request.GetInt("top_k", h.defaultTopK)

	if request.GetBool("generate", false) {
		rag, err := h.pipeline.RunRAG(ctx, query, topK)
		if err != nil {
			return stageFailure("retrieval-augmented generation failed", rag, err), nil
		}
		return jsonResult(rag)
	}

	cases, err := h.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("retrieval failed: %v", err)), nil
	}

	response := map[string]interface{}{
		"strategy": h.retriever.Name(),
		"cases":    summarize(cases),
	}
	return jsonResult(response)
}

// ListCases handles the list_cases tool
func (h *Handlers) ListCases(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date := request.GetString("date", "")

	var (
		cases []models.Case
		err   error
	)
	if date != "" {
		cases, err = h.cases.ListByDate(ctx, date)
	} else {
		cases, err = h.cases.ListAll(ctx)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list cases: %v", err)), nil
	}

	response := map[string]interface{}{
		"cases": summarize(cases),
	}
	return jsonResult(response)
}

// SampleRequests handles the sample_requests tool
func (h *Handlers) SampleRequests(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	count := request.GetInt("count", 5)

	samples, diag, err := h.pipeline.Agents().Samples.Samples(ctx, count)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sample generation failed: %v", err)), nil
	}

	response := map[string]interface{}{
		"samples": samples,
	}
	if diag != nil {
		response["diagnostic"] = diag
	}
	return jsonResult(response)
}

// Shutdown waits for pending background indexing to complete
func (h *Handlers) Shutdown() {
	h.logger.Info("waiting for pending indexing to complete")
	h.shutdownWg.Wait()
	h.logger.Info("all indexing completed")
}

// indexAsync indexes a saved case in the background when an indexer is wired
func (h *Handlers) indexAsync(c models.Case) {
	if h.indexer == nil || h.pipeline.IndexesOnSave() {
		return
	}

	h.shutdownWg.Add(1)
	go func() {
		defer h.shutdownWg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
		defer cancel()
		if _, err := h.indexer.IndexCase(ctx, c); err != nil {
			h.logger.Warn("background indexing failed", zap.Int64("case_id", c.ID), zap.Error(err))
		}
	}()
}

// caseSummary is the compact listing form of a case
type caseSummary struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	InputText string    `json:"input_text"`
	Summary   string    `json:"summary"`
	Improved  bool      `json:"improved"`
}

func summarize(cases []models.Case) []caseSummary {
	out := make([]caseSummary, 0, len(cases))
	for _, c := range cases {
		out = append(out, caseSummary{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
			InputText: c.InputText,
			Summary:   c.Requirements.Summary(),
			Improved:  c.HasImprovement(),
		})
	}
	return out
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}

// stageFailure reports err along with whatever partial output exists
func stageFailure(prefix string, partial interface{}, err error) *mcp.CallToolResult {
	msg := fmt.Sprintf("%s: %v", prefix, err)

	var stageErr *core.StageError
	if errors.As(err, &stageErr) {
		if data, mErr := json.Marshal(partial); mErr == nil && string(data) != "null" {
			msg = fmt.Sprintf("%s\npartial result: %s", msg, data)
		}
	}
	return mcp.NewToolResultError(msg)
}
