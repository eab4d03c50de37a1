// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Enables LLM agents like Claude to generate middleware via stdio
package commands

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/mwgen/internal/mcp"
	"github.com/harper/mwgen/internal/retrieval"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs mwgen as an MCP (Model Context Protocol) server, letting LLM agents
like Claude generate, improve and look up middleware cases via stdio.

Configure in Claude Desktop's config file to enable the tools.`,
		Args: cobra.NoArgs,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by Claude Desktop)
  mwgen mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "mwgen": {
  #       "command": "mwgen",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp(appOptions{completion: true, strategy: retrieval.StrategyAuto})
	if err != nil {
		return err
	}
	defer a.Close()

	server := mcpserver.NewMCPServer("mwgen", versionInfo.Version)

	deps := mcp.Deps{
		Pipeline:    a.pipeline,
		Cases:       a.store,
		Retriever:   a.retriever,
		DefaultTopK: a.cfg.TopK,
		Logger:      a.logger,
	}
	// Handlers skip background indexing when the pipeline indexes on save
	if a.embedder != nil {
		deps.Indexer = retrieval.NewIndexer(a.embedder, a.store, a.cfg.ChunkSize, a.logger)
	}

	// Register MCP tools and get handlers for shutdown
	handlers := mcp.RegisterTools(server, deps)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a.logger.Info("MCP server starting on stdio", zap.String("retrieval", a.retriever.Name()))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received, waiting for background indexing")
		handlers.Shutdown()

	case err := <-serverErr:
		handlers.Shutdown()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
