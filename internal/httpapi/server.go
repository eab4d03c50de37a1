// ABOUTME: HTTP JSON API over the generation pipeline, served by the serve command
// ABOUTME: chi router with CORS, request ids, zap request logging, and a Prometheus endpoint
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/harper/mwgen/internal/core"
	"github.com/harper/mwgen/internal/logging"
	"github.com/harper/mwgen/internal/models"
	"github.com/harper/mwgen/internal/telemetry"
)

// CaseReader is the read side of the record store
type CaseReader interface {
	Get(ctx context.Context, id int64) (*models.Case, error)
	ListAll(ctx context.Context) ([]models.Case, error)
	ListByDate(ctx context.Context, date string) ([]models.Case, error)
}

// Config wires a Server
type Config struct {
	Pipeline    *core.Pipeline
	Cases       CaseReader
	Metrics     *telemetry.Collector
	Logger      *zap.Logger
	CORSOrigins []string
	// DefaultTopK is used by the rag endpoint when the request has none
	DefaultTopK int
	Version     string
}

// Server holds the services needed by handlers
type Server struct {
	pipeline    *core.Pipeline
	cases       CaseReader
	metrics     *telemetry.Collector
	logger      *zap.Logger
	validate    *validator.Validate
	corsOrigins []string
	defaultTopK int
	version     string
}

// NewServer creates a Server
func NewServer(cfg Config) *Server {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	topK := cfg.DefaultTopK
	if topK <= 0 {
		topK = 3
	}
	return &Server{
		pipeline:    cfg.Pipeline,
		cases:       cfg.Cases,
		metrics:     cfg.Metrics,
		logger:      logging.OrNop(cfg.Logger),
		validate:    newValidator(),
		corsOrigins: origins,
		defaultTopK: topK,
		version:     cfg.Version,
	}
}

// Router builds the route table
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)
		r.Post("/rag", s.handleRAG)
		r.Get("/samples", s.handleSamples)

		r.Get("/cases", s.handleListCases)
		r.Get("/cases/{caseId}", s.handleGetCase)
		r.Post("/cases/{caseId}/improve", s.handleImprove)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http api shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
