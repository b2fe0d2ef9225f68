package capability

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is how long cached capability responses live.
const DefaultCacheTTL = time.Hour

// CachedCompleter wraps a Completer with a redis response cache keyed by a
// hash of the prompt pair. Cache errors are logged and treated as misses;
// the cache never makes a call fail.
type CachedCompleter struct {
	inner Completer
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedCompleter creates a caching wrapper. A zero ttl uses DefaultCacheTTL.
func NewCachedCompleter(inner Completer, rdb *redis.Client, ttl time.Duration) *CachedCompleter {
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedCompleter{inner: inner, rdb: rdb, ttl: ttl}
}

// cacheKey hashes the prompt pair with a separator so boundary-shifted pairs
// cannot collide.
func cacheKey(system, prompt string) string {
	h := sha256.Sum256([]byte(system + "\x00" + prompt))
	return "capability:response:" + hex.EncodeToString(h[:])
}

// Complete returns the cached response when present, otherwise delegates to
// the wrapped completer and stores the result.
func (c *CachedCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	key := cacheKey(system, prompt)

	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		return cached, nil
	}
	if err != redis.Nil {
		slog.Warn("capability cache read failed", "error", err)
	}

	text, err := c.inner.Complete(ctx, system, prompt)
	if err != nil {
		return "", err
	}

	if err := c.rdb.Set(ctx, key, text, c.ttl).Err(); err != nil {
		slog.Warn("capability cache write failed", "error", err)
	}
	return text, nil
}
