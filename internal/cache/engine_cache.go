package cache

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/codec"
	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/media"
)

// TagMap maps manager tag IDs to their labels.
type TagMap map[int32]string

// Cache key prefixes.
const (
	SonarrItemsCachePrefix = "reqtag-sonarr-items-"
	SonarrTagsCachePrefix  = "reqtag-sonarr-tags-"
	RadarrItemsCachePrefix = "reqtag-radarr-items-"
	RadarrTagsCachePrefix  = "reqtag-radarr-tags-"
)

// EngineCache holds the content manager caches shared by all sections of a run.
type EngineCache struct {
	SonarrTagsCache  *PrefixedCache[TagMap]
	RadarrTagsCache  *PrefixedCache[TagMap]
	SonarrItemsCache *PrefixedCache[[]media.ManagedRecord]
	RadarrItemsCache *PrefixedCache[[]media.ManagedRecord]
}

// NewEngineCache creates the engine caches on the configured store.
func NewEngineCache(cfg *config.CacheConfig) *EngineCache {
	c := newCacheInstanceByType(cfg)
	return &EngineCache{
		SonarrTagsCache:  NewPrefixedCache[TagMap](c, cfg.Type, SonarrTagsCachePrefix),
		RadarrTagsCache:  NewPrefixedCache[TagMap](c, cfg.Type, RadarrTagsCachePrefix),
		SonarrItemsCache: NewPrefixedCache[[]media.ManagedRecord](c, cfg.Type, SonarrItemsCachePrefix),
		RadarrItemsCache: NewPrefixedCache[[]media.ManagedRecord](c, cfg.Type, RadarrItemsCachePrefix),
	}
}

// ClearAll drops every cached entry.
func (e *EngineCache) ClearAll(ctx context.Context) {
	errs := []error{
		e.SonarrTagsCache.Clear(ctx),
		e.RadarrTagsCache.Clear(ctx),
		e.SonarrItemsCache.Clear(ctx),
		e.RadarrItemsCache.Clear(ctx),
	}
	for _, err := range errs {
		if err != nil {
			log.Errorf("failed to clear cache: %v", err)
		}
	}
}

type Stats struct {
	*codec.Stats
	CacheName string `json:"cacheName"`
}

// GetStats returns the hit and miss counters of the shared store.
func (e *EngineCache) GetStats() []*Stats {
	return []*Stats{
		{
			Stats:     e.RadarrTagsCache.GetStats(),
			CacheName: "engine",
		},
	}
}
