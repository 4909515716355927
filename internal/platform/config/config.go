// Package config loads process configuration from a YAML file and
// SKILLCRED_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the typed process configuration. It is read once at start and
// treated as immutable afterwards.
type Config struct {
	Server     Server             `mapstructure:"server"`
	Log        Log                `mapstructure:"log"`
	Weights    map[string]float64 `mapstructure:"weights"`
	Scoring    Scoring            `mapstructure:"scoring"`
	Policy     Policy             `mapstructure:"policy"`
	Integrity  Integrity          `mapstructure:"integrity"`
	Classifier Classifier         `mapstructure:"classifier"`
	Evidence   Evidence           `mapstructure:"evidence"`
	Review     Review             `mapstructure:"review"`
	Redis      RedisConfig        `mapstructure:"redis"`
	Kafka      Kafka              `mapstructure:"kafka"`
	Auth       Auth               `mapstructure:"auth"`
	RateLimit  RateLimit          `mapstructure:"ratelimit"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type Log struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

type Scoring struct {
	MinEvidentiaryConfidence float64 `mapstructure:"min_evidentiary_confidence"`
	StrongThreshold          float64 `mapstructure:"strong_threshold"`
	WeakThreshold            float64 `mapstructure:"weak_threshold"`
}

type Policy struct {
	// ZeroVerifiedRoute is "provisional" or "pending_test".
	ZeroVerifiedRoute string `mapstructure:"zero_verified_route"`
}

type Integrity struct {
	HiddenTokenLow         int           `mapstructure:"hidden_token_low"`
	HiddenTokenMedium      int           `mapstructure:"hidden_token_medium"`
	SuspiciousStemHigh     int           `mapstructure:"suspicious_stem_high"`
	SuspiciousStemCritical int           `mapstructure:"suspicious_stem_critical"`
	MinHumanLatency        time.Duration `mapstructure:"min_human_latency"`
	UniformityRatio        float64       `mapstructure:"uniformity_ratio"`
}

type Classifier struct {
	Provider      string        `mapstructure:"provider"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	Gemini        Gemini        `mapstructure:"gemini"`
}

type Gemini struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type Evidence struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// Endpoints maps a source id to the URL its extraction is fetched from.
	Endpoints map[string]string `mapstructure:"endpoints"`
}

type Review struct {
	Store        string        `mapstructure:"store"`
	DSN          string        `mapstructure:"dsn"`
	BlacklistTTL time.Duration `mapstructure:"blacklist_ttl"`
}

// RedisConfig configures the optional Redis blacklist index. An empty URL
// disables Redis.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type Kafka struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

type Auth struct {
	ReviewerSigningKey string `mapstructure:"reviewer_signing_key"`
	Issuer             string `mapstructure:"issuer"`
	Audience           string `mapstructure:"audience"`
}

// RateLimit throttles the intake endpoints per client. A non-positive
// Requests disables throttling.
type RateLimit struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

const weightTolerance = 1e-6

// Default returns the configuration used when no file or env override is set.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Log:    Log{Format: "json", Level: "info"},
		Weights: map[string]float64{
			"code-host":          0.45,
			"narrative":          0.25,
			"network-profile":    0.15,
			"competitive-coding": 0.10,
			"live-assessment":    0.05,
		},
		Scoring: Scoring{
			MinEvidentiaryConfidence: 50,
			StrongThreshold:          70,
			WeakThreshold:            40,
		},
		Policy: Policy{ZeroVerifiedRoute: "provisional"},
		Integrity: Integrity{
			HiddenTokenLow:         10,
			HiddenTokenMedium:      50,
			SuspiciousStemHigh:     3,
			SuspiciousStemCritical: 100,
			MinHumanLatency:        2 * time.Second,
			UniformityRatio:        0.9,
		},
		Classifier: Classifier{
			Provider:      "none",
			Timeout:       5 * time.Second,
			RatePerSecond: 2,
			Burst:         4,
			Gemini:        Gemini{Model: "gemini-2.5-flash"},
		},
		Evidence: Evidence{FetchTimeout: 3 * time.Second},
		Review:   Review{Store: "memory"},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
		Kafka: Kafka{TopicPrefix: "skillcred"},
		Auth: Auth{
			ReviewerSigningKey: "dev-secret-key-change-in-production",
			Issuer:             "skillcred",
			Audience:           "skillcred-review",
		},
		RateLimit: RateLimit{Requests: 30, Window: time.Minute},
	}
}

// Load reads path (optional) and the environment on top of Default.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("SKILLCRED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("weights", d.Weights)
	v.SetDefault("scoring.min_evidentiary_confidence", d.Scoring.MinEvidentiaryConfidence)
	v.SetDefault("scoring.strong_threshold", d.Scoring.StrongThreshold)
	v.SetDefault("scoring.weak_threshold", d.Scoring.WeakThreshold)
	v.SetDefault("policy.zero_verified_route", d.Policy.ZeroVerifiedRoute)
	v.SetDefault("integrity.hidden_token_low", d.Integrity.HiddenTokenLow)
	v.SetDefault("integrity.hidden_token_medium", d.Integrity.HiddenTokenMedium)
	v.SetDefault("integrity.suspicious_stem_high", d.Integrity.SuspiciousStemHigh)
	v.SetDefault("integrity.suspicious_stem_critical", d.Integrity.SuspiciousStemCritical)
	v.SetDefault("integrity.min_human_latency", d.Integrity.MinHumanLatency)
	v.SetDefault("integrity.uniformity_ratio", d.Integrity.UniformityRatio)
	v.SetDefault("classifier.provider", d.Classifier.Provider)
	v.SetDefault("classifier.timeout", d.Classifier.Timeout)
	v.SetDefault("classifier.rate_per_second", d.Classifier.RatePerSecond)
	v.SetDefault("classifier.burst", d.Classifier.Burst)
	v.SetDefault("classifier.gemini.api_key", "")
	v.SetDefault("classifier.gemini.model", d.Classifier.Gemini.Model)
	v.SetDefault("evidence.fetch_timeout", d.Evidence.FetchTimeout)
	v.SetDefault("evidence.endpoints", map[string]string{})
	v.SetDefault("review.store", d.Review.Store)
	v.SetDefault("review.dsn", "")
	v.SetDefault("review.blacklist_ttl", d.Review.BlacklistTTL)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", d.Redis.PoolSize)
	v.SetDefault("redis.min_idle_conns", d.Redis.MinIdleConns)
	v.SetDefault("redis.dial_timeout", d.Redis.DialTimeout)
	v.SetDefault("redis.read_timeout", d.Redis.ReadTimeout)
	v.SetDefault("redis.write_timeout", d.Redis.WriteTimeout)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", d.Kafka.TopicPrefix)
	v.SetDefault("auth.reviewer_signing_key", d.Auth.ReviewerSigningKey)
	v.SetDefault("auth.issuer", d.Auth.Issuer)
	v.SetDefault("auth.audience", d.Auth.Audience)
	v.SetDefault("ratelimit.requests", d.RateLimit.Requests)
	v.SetDefault("ratelimit.window", d.RateLimit.Window)
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	sum := 0.0
	for src, w := range c.Weights {
		if w < 0 || math.IsNaN(w) {
			errs = append(errs, fmt.Errorf("weights.%s must be non-negative", src))
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightTolerance {
		errs = append(errs, fmt.Errorf("weights must sum to 1.0, got %.6f", sum))
	}
	if c.Scoring.WeakThreshold > c.Scoring.StrongThreshold {
		errs = append(errs, errors.New("scoring.weak_threshold must not exceed scoring.strong_threshold"))
	}
	switch c.Policy.ZeroVerifiedRoute {
	case "provisional", "pending_test":
	default:
		errs = append(errs, fmt.Errorf("policy.zero_verified_route %q is not provisional or pending_test", c.Policy.ZeroVerifiedRoute))
	}
	switch c.Review.Store {
	case "memory":
	case "postgres", "sqlite":
		if c.Review.DSN == "" {
			errs = append(errs, fmt.Errorf("review.dsn is required for store %q", c.Review.Store))
		}
	default:
		errs = append(errs, fmt.Errorf("review.store %q is not memory, postgres or sqlite", c.Review.Store))
	}
	switch c.Classifier.Provider {
	case "none":
	case "gemini":
		if c.Classifier.Gemini.APIKey == "" {
			errs = append(errs, errors.New("classifier.gemini.api_key is required for provider gemini"))
		}
	default:
		errs = append(errs, fmt.Errorf("classifier.provider %q is not none or gemini", c.Classifier.Provider))
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("ratelimit.window must be positive when ratelimit.requests is set"))
	}
	return errors.Join(errs...)
}
