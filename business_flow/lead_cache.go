package businessflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/lead-manager/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

const (
	cacheScopeList  = "list"
	cacheScopeStats = "stats"
	cacheScopeLead  = "lead"
)

var leadCacheRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lead_cache_requests_total",
		Help: "Lead cache lookups by scope and result",
	},
	[]string{"scope", "result"},
)

// LeadCache is a redis cache-aside for read results.
// Every key embeds a generation number; writes bump the generation so older entries are never read again
// and expire on their own. A nil *LeadCache is a valid, always-missing cache.
type LeadCache struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

// NewLeadCache returns nil when caching is disabled or no client is configured
func NewLeadCache(rc *redis.Client, cfg config.CacheConfig) *LeadCache {
	if rc == nil || !cfg.Enabled {
		return nil
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LeadCache{rc: rc, prefix: cfg.RedisPrefix, ttl: ttl}
}

func (c *LeadCache) generationKey() string {
	return c.prefix + "leads:gen"
}

// Key resolves the cache key for scope and params under the current generation.
// It returns "" when the cache is unavailable; Load and Store treat "" as a miss.
func (c *LeadCache) Key(ctx context.Context, scope string, params any) string {
	if c == nil {
		return ""
	}

	gen, err := c.rc.Get(ctx, c.generationKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("Lead cache generation lookup failed: %v", err)
		leadCacheRequests.WithLabelValues(scope, "error").Inc()
		return ""
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%sleads:%d:%s:%s", c.prefix, gen, scope, hex.EncodeToString(sum[:8]))
}

// Load decodes the cached value into dest and reports whether it was a hit
func (c *LeadCache) Load(ctx context.Context, scope, key string, dest any) bool {
	if c == nil || key == "" {
		return false
	}

	bs, err := c.rc.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("Lead cache read failed for %s: %v", key, err)
			leadCacheRequests.WithLabelValues(scope, "error").Inc()
			return false
		}
		leadCacheRequests.WithLabelValues(scope, "miss").Inc()
		return false
	}
	if err := json.Unmarshal(bs, dest); err != nil {
		leadCacheRequests.WithLabelValues(scope, "miss").Inc()
		return false
	}

	leadCacheRequests.WithLabelValues(scope, "hit").Inc()
	return true
}

// Store writes value under key; failures are logged only
func (c *LeadCache) Store(ctx context.Context, key string, value any) {
	if c == nil || key == "" {
		return
	}

	bs, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rc.Set(ctx, key, bs, c.ttl).Err(); err != nil {
		log.Printf("Lead cache write failed for %s: %v", key, err)
	}
}

// Invalidate moves every reader to a fresh generation
func (c *LeadCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.rc.Incr(ctx, c.generationKey()).Err(); err != nil {
		log.Printf("Lead cache invalidation failed: %v", err)
	}
}
