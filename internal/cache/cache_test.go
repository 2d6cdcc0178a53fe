package cache

import (
	"context"
	"testing"

	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixedCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	ec := NewEngineCache(&config.CacheConfig{Type: config.CacheTypeMemory})

	require.NoError(t, ec.RadarrTagsCache.Set(ctx, "all", TagMap{1: "requester-alice", 2: "keep"}))
	got, err := ec.RadarrTagsCache.Get(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, TagMap{1: "requester-alice", 2: "keep"}, got)

	records := []media.ManagedRecord{{ManagerID: 5, ExternalID: media.ExternalID{Scheme: media.SchemeTMDB, Value: "949"}, Tags: []string{"keep"}}}
	require.NoError(t, ec.RadarrItemsCache.Set(ctx, "all", records))
	gotRecords, err := ec.RadarrItemsCache.Get(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, records, gotRecords)
}

func TestPrefixedCache_PrefixesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	ec := NewEngineCache(&config.CacheConfig{Type: config.CacheTypeMemory})

	require.NoError(t, ec.RadarrTagsCache.Set(ctx, "all", TagMap{1: "radarr"}))
	require.NoError(t, ec.SonarrTagsCache.Set(ctx, "all", TagMap{1: "sonarr"}))

	radarr, err := ec.RadarrTagsCache.Get(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, "radarr", radarr[1])

	require.NoError(t, ec.SonarrTagsCache.Clear(ctx))

	_, err = ec.SonarrTagsCache.Get(ctx, "all")
	require.Error(t, err)
	radarr, err = ec.RadarrTagsCache.Get(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, "radarr", radarr[1])
}

func TestEngineCache_ClearAll(t *testing.T) {
	ctx := context.Background()
	ec := NewEngineCache(&config.CacheConfig{Type: config.CacheTypeMemory})

	require.NoError(t, ec.RadarrTagsCache.Set(ctx, "all", TagMap{1: "a"}))
	require.NoError(t, ec.SonarrItemsCache.Set(ctx, "all", []media.ManagedRecord{{ManagerID: 1}}))

	ec.ClearAll(ctx)

	_, err := ec.RadarrTagsCache.Get(ctx, "all")
	assert.Error(t, err)
	_, err = ec.SonarrItemsCache.Get(ctx, "all")
	assert.Error(t, err)
}
