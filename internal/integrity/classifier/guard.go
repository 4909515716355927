// Package classifier bounds calls to an external manipulation classifier.
//
// Guard wraps any integrity.Classifier with a deadline, a call-rate limit
// and a circuit breaker. Every failure mode surfaces as an error wrapping
// integrity.ErrClassifierUnavailable so the detector records the call as
// inconclusive.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"skillcred/internal/integrity"
	"skillcred/internal/integrity/metrics"
	"skillcred/pkg/platform/circuit"
)

const (
	defaultTimeout = 5 * time.Second
	defaultRate    = 2
	defaultBurst   = 4
)

type Guard struct {
	backend integrity.Classifier
	timeout time.Duration
	limiter *rate.Limiter
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Guard)

func WithTimeout(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRateLimit bounds the sustained call rate. perSecond <= 0 disables it.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(g *Guard) {
		if perSecond <= 0 {
			g.limiter = nil
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(g *Guard) {
		g.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

func NewGuard(backend integrity.Classifier, opts ...Option) *Guard {
	g := &Guard{
		backend: backend,
		timeout: defaultTimeout,
		limiter: rate.NewLimiter(defaultRate, defaultBurst),
		breaker: circuit.New("manipulation-classifier", circuit.WithCooldown(30*time.Second)),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) Classify(ctx context.Context, text string) (integrity.Verdict, error) {
	if !g.breaker.Allow() {
		g.metrics.ObserveClassifierCall("circuit_open", 0)
		return integrity.Verdict{}, fmt.Errorf("%w: circuit %s open", integrity.ErrClassifierUnavailable, g.breaker.Name())
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			g.metrics.ObserveClassifierCall("rate_limited", 0)
			return integrity.Verdict{}, fmt.Errorf("%w: rate limit: %w", integrity.ErrClassifierUnavailable, err)
		}
	}

	start := time.Now()
	verdict, err := g.backend.Classify(ctx, text)
	elapsed := time.Since(start)
	if err != nil {
		g.metrics.ObserveClassifierCall("error", elapsed)
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.metrics.SetCircuitOpen(true)
			g.logger.WarnContext(ctx, "classifier circuit opened", "breaker", g.breaker.Name(), "error", err)
		}
		return integrity.Verdict{}, fmt.Errorf("%w: %w", integrity.ErrClassifierUnavailable, err)
	}

	outcome := "clean"
	if verdict.Detected {
		outcome = "detected"
	}
	g.metrics.ObserveClassifierCall(outcome, elapsed)
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.metrics.SetCircuitOpen(false)
		g.logger.InfoContext(ctx, "classifier circuit closed", "breaker", g.breaker.Name())
	}
	return verdict, nil
}
