// ABOUTME: Guard bounds every model call with a rate limit, a circuit breaker, and a timeout
// ABOUTME: It never retries; a failed call is reported to the caller as-is
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// GuardConfig configures a Guard
type GuardConfig struct {
	Name              string
	RequestsPerSecond float64
	Burst             int
	// MaxFailures consecutive failures open the breaker
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing
	OpenTimeout time.Duration
	// Timeout bounds each call including the wait for a rate-limit token
	Timeout time.Duration
}

// Guard wraps backend calls for one provider
type Guard struct {
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
}

// NewGuard creates a Guard. Zero values fall back to permissive defaults.
func NewGuard(cfg GuardConfig, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "llm"
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	maxFailures := cfg.MaxFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// A caller abandoning a request says nothing about backend health
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Guard{
		limiter: rate.NewLimiter(limit, cfg.Burst),
		breaker: breaker,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Do runs fn once under the guard
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		if IsUnavailable(err) {
			g.logger.Warn("model call rejected by circuit breaker", zap.Error(err))
		}
		return nil, err
	}
	return result, nil
}

// State reports the breaker state for health endpoints
func (g *Guard) State() string {
	return g.breaker.State().String()
}

// Completer wraps next so every completion goes through the guard
func (g *Guard) Completer(next Completer) Completer {
	return CompleterFunc(func(ctx context.Context, req Request) (Response, error) {
		out, err := g.Do(ctx, func(ctx context.Context) (interface{}, error) {
			return next.Complete(ctx, req)
		})
		if err != nil {
			return Response{}, err
		}
		return out.(Response), nil
	})
}

// Embedder wraps next so every embedding goes through the guard
func (g *Guard) Embedder(next Embedder) Embedder {
	return EmbedderFunc(func(ctx context.Context, text string) ([]float64, error) {
		out, err := g.Do(ctx, func(ctx context.Context) (interface{}, error) {
			return next.Embed(ctx, text)
		})
		if err != nil {
			return nil, err
		}
		return out.([]float64), nil
	})
}

// IsUnavailable reports whether err came from an open or saturated breaker
func IsUnavailable(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
