// ABOUTME: Serve command starts the HTTP JSON API with metrics and optional tracing
// ABOUTME: Logs as JSON and shuts down gracefully on SIGINT or SIGTERM
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/mwgen/internal/httpapi"
	"github.com/harper/mwgen/internal/retrieval"
	"github.com/harper/mwgen/internal/telemetry"
)

var (
	serveAddr     string
	serveStrategy string
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP JSON API.

Endpoints:
  GET  /health
  GET  /metrics
  POST /api/v1/generate
  POST /api/v1/rag
  GET  /api/v1/cases[?date=YYYY-MM-DD]
  GET  /api/v1/cases/{id}
  POST /api/v1/cases/{id}/improve
  GET  /api/v1/samples[?n=5]

Set OTEL_EXPORTER_OTLP_ENDPOINT to export traces over OTLP/gRPC.`,
		Args: cobra.NoArgs,
		RunE: runServe,
		Example: `  mwgen serve
  mwgen serve --addr 127.0.0.1:9090 --strategy auto`,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&serveStrategy, "strategy", retrieval.StrategyAuto, "Retrieval strategy for /api/v1/rag")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	metrics := telemetry.NewCollector()

	a, err := newApp(appOptions{
		completion: true,
		strategy:   serveStrategy,
		logFormat:  "json",
		metrics:    metrics,
		tracing:    true,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.HTTPAddr
	}

	server := httpapi.NewServer(httpapi.Config{
		Pipeline:    a.pipeline,
		Cases:       a.store,
		Metrics:     metrics,
		Logger:      a.logger,
		CORSOrigins: a.cfg.CORSOrigins,
		DefaultTopK: a.cfg.TopK,
		Version:     versionInfo.Version,
	})

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a.logger.Info("starting server",
		zap.String("addr", addr),
		zap.String("provider", a.cfg.Provider),
		zap.String("retrieval", a.retriever.Name()))

	if err := server.ListenAndServe(ctx, addr); err != nil {
		return err
	}
	a.logger.Info("shutdown complete")
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
