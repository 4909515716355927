package blacklist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"skillcred/internal/review/models"
	id "skillcred/pkg/domain"
)

const keyPrefix = "skillcred:blacklist:"

// RedisIndex shares the index across instances. Entries with an expiry are
// stored with a matching TTL so Redis drops them on its own.
type RedisIndex struct {
	client *redis.Client
	now    func() time.Time
}

type RedisOption func(*RedisIndex)

func WithRedisClock(now func() time.Time) RedisOption {
	return func(r *RedisIndex) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisIndex {
	r := &RedisIndex{client: client, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisIndex) Put(ctx context.Context, e models.BlacklistEntry) error {
	key := keyPrefix + e.SubjectID.String()
	var ttl time.Duration
	if e.ExpiresAt != nil {
		ttl = e.ExpiresAt.Sub(r.now())
		if ttl <= 0 {
			return r.client.Del(ctx, key).Err()
		}
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode blacklist entry: %w", err)
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set blacklist entry: %w", err)
	}
	return nil
}

func (r *RedisIndex) Lookup(ctx context.Context, subjectID id.SubjectID) (models.BlacklistEntry, bool, error) {
	raw, err := r.client.Get(ctx, keyPrefix+subjectID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.BlacklistEntry{}, false, nil
	}
	if err != nil {
		return models.BlacklistEntry{}, false, fmt.Errorf("redis get blacklist entry: %w", err)
	}
	var e models.BlacklistEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return models.BlacklistEntry{}, false, fmt.Errorf("decode blacklist entry: %w", err)
	}
	// TTL granularity can leave an entry readable just past its expiry.
	if !e.Active(r.now()) {
		return models.BlacklistEntry{}, false, nil
	}
	return e, true, nil
}
