// Package app assembles the evaluation pipeline, the review queue and their
// stores from configuration. The HTTP server and the CLI share it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"skillcred/internal/decision"
	decisionmetrics "skillcred/internal/decision/metrics"
	decisionmemory "skillcred/internal/decision/store/memory"
	decisionsql "skillcred/internal/decision/store/sql"
	"skillcred/internal/evidence/adapters/httpsource"
	"skillcred/internal/evidence/collector"
	evidencemetrics "skillcred/internal/evidence/metrics"
	evmodels "skillcred/internal/evidence/models"
	"skillcred/internal/evidence/normalizer"
	"skillcred/internal/evidence/weights"
	"skillcred/internal/integrity"
	"skillcred/internal/integrity/classifier"
	"skillcred/internal/integrity/classifier/gemini"
	integritymetrics "skillcred/internal/integrity/metrics"
	jwttoken "skillcred/internal/jwt_token"
	"skillcred/internal/platform/config"
	"skillcred/internal/platform/database"
	redisclient "skillcred/internal/platform/redis"
	"skillcred/internal/ratelimit"
	"skillcred/internal/review"
	"skillcred/internal/review/blacklist"
	reviewmetrics "skillcred/internal/review/metrics"
	reviewmemory "skillcred/internal/review/store/memory"
	reviewsql "skillcred/internal/review/store/sql"
	"skillcred/internal/scoring"
	id "skillcred/pkg/domain"
	"skillcred/pkg/platform/audit"
	"skillcred/pkg/platform/audit/publisher"
	kafkastore "skillcred/pkg/platform/audit/store/kafka"
	auditmemory "skillcred/pkg/platform/audit/store/memory"
)

const (
	auditBufferSize    = 1024
	kafkaPartitions    = 3
	kafkaReplication   = 1
	topicSetupDeadline = 10 * time.Second
)

// App holds the wired services and the resources they own.
type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	Decisions *decision.Service
	Reviews   *review.Service
	Tokens    *jwttoken.JWTService
	Audit     *publisher.Publisher
	Throttle  *ratelimit.Middleware

	db      *sql.DB
	redis   *redisclient.Client
	kafka   *kgo.Client
	closers []func() error
}

// New wires every component described by cfg. On error, resources opened
// so far are released.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		Tokens:   jwttoken.NewJWTService(cfg.Auth.ReviewerSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := a.openAudit(ctx); err != nil {
		return nil, err
	}

	reviewStore, decisionStore, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}

	index, err := a.blacklistIndex(ctx)
	if err != nil {
		return nil, err
	}
	a.Throttle = ratelimit.New(a.rateLimitStore(), cfg.RateLimit.Requests, cfg.RateLimit.Window, logger)
	a.Reviews = review.New(reviewStore,
		review.WithIndex(index),
		review.WithBlacklistTTL(cfg.Review.BlacklistTTL),
		review.WithLogger(logger),
		review.WithAuditPublisher(a.Audit),
		review.WithMetrics(reviewmetrics.New(a.Registry)),
	)
	if err := a.Reviews.Warm(ctx); err != nil {
		return nil, fmt.Errorf("warm blacklist index: %w", err)
	}

	evMetrics := evidencemetrics.New(a.Registry)
	norm, err := normalizer.New(
		normalizer.WithLogger(logger),
		normalizer.WithMetrics(evMetrics),
	)
	if err != nil {
		return nil, fmt.Errorf("build normalizer: %w", err)
	}

	table, err := weights.FromConfig(cfg.Weights)
	if err != nil {
		return nil, fmt.Errorf("weights: %w", err)
	}
	scorer := scoring.New(table, scoring.WithPolicy(scoring.PolicyFromConfig(cfg.Scoring)))

	detector, err := a.detector(ctx)
	if err != nil {
		return nil, err
	}

	route, err := decision.ParseZeroVerifiedRoute(cfg.Policy.ZeroVerifiedRoute)
	if err != nil {
		return nil, err
	}
	opts := []decision.Option{
		decision.WithZeroVerifiedRoute(route),
		decision.WithLogger(logger),
		decision.WithMetrics(decisionmetrics.New(a.Registry)),
		decision.WithAuditPublisher(a.Audit),
	}
	col, err := a.collector(evMetrics)
	if err != nil {
		return nil, err
	}
	if col != nil {
		opts = append(opts, decision.WithCollector(col))
	}
	a.Decisions = decision.New(decisionStore, norm, scorer, detector, a.Reviews, opts...)
	a.Reviews.Subscribe(a.Decisions)

	logger.InfoContext(ctx, "skillcred wired",
		"review_store", cfg.Review.Store,
		"classifier", cfg.Classifier.Provider,
		"redis", a.redis != nil,
		"kafka", a.kafka != nil,
		"evidence_endpoints", len(cfg.Evidence.Endpoints),
	)
	return a, nil
}

func (a *App) openAudit(ctx context.Context) error {
	if len(a.Config.Kafka.Brokers) == 0 {
		a.Audit = publisher.NewPublisher(auditmemory.NewInMemoryStore(), publisher.WithLogger(a.Logger))
		a.closers = append(a.closers, a.Audit.Close)
		return nil
	}

	client, err := kafkastore.NewClient(a.Config.Kafka.Brokers)
	if err != nil {
		return err
	}
	a.kafka = client
	a.closers = append(a.closers, func() error { client.Close(); return nil })

	store := kafkastore.New(client, a.Config.Kafka.TopicPrefix)
	setupCtx, cancel := context.WithTimeout(ctx, topicSetupDeadline)
	defer cancel()
	if err := kafkastore.EnsureTopics(setupCtx, kadm.NewClient(client), store.Topics(), kafkaPartitions, kafkaReplication); err != nil {
		return fmt.Errorf("ensure audit topics: %w", err)
	}

	a.Audit = publisher.NewPublisher(store,
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(a.Logger),
	)
	// Drain the buffer before the client closes.
	a.closers = append(a.closers, a.Audit.Close)
	return nil
}

func (a *App) openStores(ctx context.Context) (review.Store, decision.Store, error) {
	if a.Config.Review.Store == "memory" {
		return reviewmemory.New(), decisionmemory.New(), nil
	}

	db, dialect, err := database.Open(ctx, a.Config.Review.Store, a.Config.Review.DSN)
	if err != nil {
		return nil, nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	reviews := reviewsql.New(db, dialect)
	if err := reviews.EnsureSchema(ctx); err != nil {
		return nil, nil, fmt.Errorf("review schema: %w", err)
	}
	decisions := decisionsql.New(db, dialect)
	if err := decisions.EnsureSchema(ctx); err != nil {
		return nil, nil, fmt.Errorf("decision schema: %w", err)
	}
	return reviews, decisions, nil
}

func (a *App) blacklistIndex(ctx context.Context) (blacklist.Index, error) {
	client, err := redisclient.New(ctx, a.Config.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return blacklist.NewMemory(), nil
	}
	a.redis = client
	a.closers = append(a.closers, client.Close)
	return blacklist.NewRedis(client.Client), nil
}

func (a *App) rateLimitStore() ratelimit.Store {
	if a.redis != nil {
		return ratelimit.NewRedisStore(a.redis.Client)
	}
	return ratelimit.NewMemoryStore()
}

func (a *App) detector(ctx context.Context) (*integrity.Detector, error) {
	m := integritymetrics.New(a.Registry)
	opts := []integrity.Option{
		integrity.WithThresholds(integrity.ThresholdsFromConfig(a.Config.Integrity)),
		integrity.WithLogger(a.Logger),
		integrity.WithMetrics(m),
	}

	c := a.Config.Classifier
	if c.Provider == "gemini" {
		backend, err := gemini.New(ctx, c.Gemini.APIKey, c.Gemini.Model)
		if err != nil {
			return nil, fmt.Errorf("gemini classifier: %w", err)
		}
		opts = append(opts, integrity.WithClassifier(classifier.NewGuard(backend,
			classifier.WithTimeout(c.Timeout),
			classifier.WithRateLimit(c.RatePerSecond, c.Burst),
			classifier.WithLogger(a.Logger),
			classifier.WithMetrics(m),
		)))
	}
	return integrity.New(opts...), nil
}

// collector returns nil when no evidence endpoint is configured.
func (a *App) collector(m *evidencemetrics.Metrics) (*collector.Collector, error) {
	endpoints := a.Config.Evidence.Endpoints
	if len(endpoints) == 0 {
		return nil, nil
	}
	fetchers := make([]collector.Fetcher, 0, len(endpoints))
	for _, src := range slices.Sorted(maps.Keys(endpoints)) {
		f, err := httpsource.New(evmodels.SourceID(src), endpoints[src])
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { f.Close(); return nil })
		fetchers = append(fetchers, f)
	}
	return collector.New(fetchers,
		collector.WithFetchTimeout(a.Config.Evidence.FetchTimeout),
		collector.WithLogger(a.Logger),
		collector.WithMetrics(m),
	), nil
}

// Health reports whether the external dependencies answer.
func (a *App) Health(ctx context.Context) error {
	var errs []error
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.kafka != nil {
		if err := a.kafka.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("kafka: %w", err))
		}
	}
	return errors.Join(errs...)
}

// AuditEvents reads back a subject's audit trail. It fails when events are
// streamed to Kafka.
func (a *App) AuditEvents(ctx context.Context, subjectID id.SubjectID) ([]audit.Event, error) {
	return a.Audit.List(ctx, subjectID)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
