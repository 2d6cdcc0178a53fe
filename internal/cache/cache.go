package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/codec"
	"github.com/eko/gocache/lib/v4/store"
	go_store "github.com/eko/gocache/store/go_cache/v4"
	redis_store "github.com/eko/gocache/store/redis/v4"
	"github.com/goccy/go-json"
	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/metrics"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// redisTTL bounds the lifetime of entries in a shared redis.
// Runs clear the caches at start, the TTL only cleans up after crashed runs.
const redisTTL = 24 * time.Hour

// PrefixedCache wraps a cache.Cache and adds a prefix to all keys.
type PrefixedCache[T any] struct {
	cache     *cache.Cache[any]
	cacheType config.CacheType
	prefix    string
}

// NewPrefixedCache creates a new prefixed cache wrapper.
func NewPrefixedCache[T any](c *cache.Cache[any], cacheType config.CacheType, prefix string) *PrefixedCache[T] {
	return &PrefixedCache[T]{
		cache:     c,
		cacheType: cacheType,
		prefix:    prefix,
	}
}

func (p *PrefixedCache[T]) key(key any) string {
	return p.prefix + fmt.Sprintf("%v", key)
}

// Get retrieves a value from the cache with the prefixed key.
func (p *PrefixedCache[T]) Get(ctx context.Context, key any) (T, error) {
	var result T
	raw, err := p.cache.Get(ctx, p.key(key))
	if err != nil {
		metrics.RecordCache(p.prefix, false)
		return result, err
	}

	var data []byte
	switch v := raw.(type) {
	case []byte:
		data = v
	case string:
		// the redis store hands back strings
		data = []byte(v)
	default:
		return result, fmt.Errorf("unexpected cache value type %T", raw)
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return result, err
	}
	metrics.RecordCache(p.prefix, true)
	return result, nil
}

// Set stores a value in the cache with the prefixed key.
func (p *PrefixedCache[T]) Set(ctx context.Context, key any, object T, options ...store.Option) error {
	data, err := json.Marshal(object)
	if err != nil {
		return err
	}
	options = append(options, store.WithTags([]string{p.prefix}))
	if p.cacheType == config.CacheTypeRedis {
		options = append(options, store.WithExpiration(redisTTL))
	}
	return p.cache.Set(ctx, p.key(key), data, options...)
}

// Clear removes all values with this prefix. Other prefixes sharing the
// same store are left alone.
func (p *PrefixedCache[T]) Clear(ctx context.Context) error {
	return p.cache.Invalidate(ctx, store.WithInvalidateTags([]string{p.prefix}))
}

// GetType returns the cache type.
func (p *PrefixedCache[T]) GetType() string {
	return p.cache.GetType()
}

// GetStats returns the cache statistics.
func (p *PrefixedCache[T]) GetStats() *codec.Stats {
	return p.cache.GetCodec().GetStats()
}

func newMemoryCache() *cache.Cache[any] {
	// never expire items in memory cache by ttl, runs clear the caches themselves
	gocacheClient := gocache.New(gocache.NoExpiration, gocache.NoExpiration)
	gocacheStore := go_store.NewGoCache(gocacheClient)
	return cache.New[any](gocacheStore)
}

func newRedisCache(cfg *config.CacheConfig) *cache.Cache[any] {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		// plain host:port
		opts = &redis.Options{Addr: cfg.RedisURL}
	}
	redisStore := redis_store.NewRedis(redis.NewClient(opts))
	return cache.New[any](redisStore)
}

func newCacheInstanceByType(cfg *config.CacheConfig) *cache.Cache[any] {
	switch cfg.Type {
	case config.CacheTypeRedis:
		return newRedisCache(cfg)
	default:
		return newMemoryCache()
	}
}
