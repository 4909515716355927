// Package collector fetches raw evidence from every configured source in
// parallel. Each fetch has its own deadline and a failing source is recorded
// as unavailable instead of aborting the batch.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"skillcred/internal/evidence/metrics"
	"skillcred/internal/evidence/models"
	"skillcred/pkg/domain"
)

const defaultFetchTimeout = 3 * time.Second

// Fetcher retrieves one source's raw extraction for a subject.
type Fetcher interface {
	Source() models.SourceID
	Fetch(ctx context.Context, subjectID domain.SubjectID) ([]byte, error)
}

// Result is the fan-in of one collection round.
type Result struct {
	Extractions []models.Extraction
	Unavailable []models.UnavailableSource
	Latencies   map[models.SourceID]time.Duration
}

type Collector struct {
	fetchers []Fetcher
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Collector)

func WithFetchTimeout(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Collector) {
		c.metrics = m
	}
}

func New(fetchers []Fetcher, opts ...Option) *Collector {
	c := &Collector{
		fetchers: fetchers,
		timeout:  defaultFetchTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sources lists the sources this collector can fetch.
func (c *Collector) Sources() []models.SourceID {
	out := make([]models.SourceID, 0, len(c.fetchers))
	for _, f := range c.fetchers {
		out = append(out, f.Source())
	}
	return out
}

type slot struct {
	payload []byte
	err     error
	latency time.Duration
}

// Collect fetches every source except those in skip. Only cancellation of
// the caller's context is returned as an error.
func (c *Collector) Collect(ctx context.Context, subjectID domain.SubjectID, skip ...models.SourceID) (Result, error) {
	skipped := make(map[models.SourceID]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}

	slots := make([]slot, len(c.fetchers))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range c.fetchers {
		if skipped[f.Source()] {
			continue
		}
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, c.timeout)
			defer cancel()

			start := time.Now()
			payload, err := f.Fetch(fctx, subjectID)
			slots[i] = slot{payload: payload, err: err, latency: time.Since(start)}
			c.metrics.ObserveFetchLatency(string(f.Source()), slots[i].latency)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("evidence collection cancelled: %w", err)
	}

	res := Result{Latencies: make(map[models.SourceID]time.Duration, len(c.fetchers))}
	for i, f := range c.fetchers {
		src := f.Source()
		if skipped[src] {
			continue
		}
		s := slots[i]
		res.Latencies[src] = s.latency
		if s.err != nil {
			reason := models.ReasonFetchFailed
			if errors.Is(s.err, context.DeadlineExceeded) {
				reason = models.ReasonFetchTimeout
			}
			res.Unavailable = append(res.Unavailable, models.UnavailableSource{Source: src, Reason: reason})
			c.metrics.IncSourceUnavailable(string(src), reason)
			c.logger.WarnContext(ctx, "evidence fetch failed",
				"subject_id", subjectID,
				"source", src,
				"reason", reason,
				"duration_ms", s.latency.Milliseconds(),
				"error", s.err,
			)
			continue
		}
		res.Extractions = append(res.Extractions, models.Extraction{Source: src, Payload: s.payload})
	}
	return res, nil
}
