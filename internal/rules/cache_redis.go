package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"healthcert/internal/domain"
)

const cacheKeyPrefix = "rules:cfg:"

// CachedLoader decorates a Loader with a Redis TTL cache so rule configuration
// is fetched from the blob store at most once per window. Cache failures fall
// through to the inner loader; a stale or missing cache never blocks issuance.
type CachedLoader struct {
	next   Loader
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedLoader wraps a loader with a Redis cache.
func NewCachedLoader(next Loader, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedLoader {
	return &CachedLoader{next: next, client: client, ttl: ttl, logger: logger}
}

// FetchRuleConfiguration serves from cache when fresh, else loads and caches.
func (l *CachedLoader) FetchRuleConfiguration(ctx context.Context, container, filename string) (*domain.EligibilityConfiguration, error) {
	key := cacheKeyPrefix + container + "/" + filename

	raw, err := l.client.Get(ctx, key).Bytes()
	if err == nil {
		var cfg domain.EligibilityConfiguration
		if err := json.Unmarshal(raw, &cfg); err == nil && len(cfg.Rules) > 0 {
			return &cfg, nil
		}
		// corrupt cache entry falls through to the source of truth
	} else if !errors.Is(err, redis.Nil) && l.logger != nil {
		l.logger.WarnContext(ctx, "rule cache read failed", "key", key, "error", err)
	}

	cfg, err := l.next.FetchRuleConfiguration(ctx, container, filename)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(cfg); err == nil {
		if err := l.client.Set(ctx, key, encoded, l.ttl).Err(); err != nil && l.logger != nil {
			l.logger.WarnContext(ctx, "rule cache write failed", "key", key, "error", err)
		}
	}
	return cfg, nil
}

// Invalidate drops the cached entry so the next fetch reloads from the store.
func (l *CachedLoader) Invalidate(ctx context.Context, container, filename string) error {
	key := cacheKeyPrefix + container + "/" + filename
	if err := l.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("invalidate rule cache %s: %w", key, err)
	}
	return nil
}
