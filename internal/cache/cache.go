package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/researchly/marketscout/config"
	"github.com/researchly/marketscout/internal/cache/inmemory"
	redisbackend "github.com/researchly/marketscout/internal/cache/redis"
)

// Backend stores raw payloads under fingerprint keys with a TTL. Expired
// entries are reported as absent.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

// Cache is the result cache in front of the provider gateways. Concurrent
// callers of the same fingerprint share one in-flight fetch; only successful
// payloads are stored.
type Cache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group

	// Optional observation hooks for metrics.
	OnHit  func()
	OnMiss func()
}

// New builds a cache over the given backend.
func New(backend Backend, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{backend: backend, ttl: ttl}
}

// NewFromConfig selects the configured backend, mirroring the store factory
// pattern used elsewhere.
func NewFromConfig(cfg config.CacheConfig) (*Cache, error) {
	switch cfg.Backend {
	case "inmemory":
		return New(inmemory.NewBackend(), cfg.TTL), nil
	case "redis":
		b, err := redisbackend.NewBackend(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Pass, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		return New(b, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

// Fingerprint derives the cache key from a kind, query and auxiliary
// parameters. Normalization keeps equivalent requests on one entry.
func Fingerprint(kind, query string, params ...string) string {
	parts := append([]string{kind, query}, params...)
	raw := strings.ToLower(strings.TrimSpace(strings.Join(parts, "|")))
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GetOrFetch returns the cached payload for fingerprint, or invokes fetch
// exactly once per fingerprint across concurrent callers. Failed fetches are
// never cached.
func (c *Cache) GetOrFetch(ctx context.Context, fingerprint string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if payload, ok, err := c.backend.Get(ctx, fingerprint); err == nil && ok {
		if c.OnHit != nil {
			c.OnHit()
		}
		return payload, nil
	}
	if c.OnMiss != nil {
		c.OnMiss()
	}

	v, err, _ := c.group.Do(fingerprint, func() (interface{}, error) {
		// Re-check: a concurrent caller may have populated the entry
		// between our miss and acquiring the flight.
		if payload, ok, err := c.backend.Get(ctx, fingerprint); err == nil && ok {
			return payload, nil
		}
		payload, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.backend.Set(ctx, fingerprint, payload, c.ttl); err != nil {
			// A write failure degrades to uncached operation.
			return payload, nil
		}
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
