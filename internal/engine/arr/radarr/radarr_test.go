package radarr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jon4hz/reqtag/internal/cache"
	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRadarr struct {
	mu      sync.Mutex
	tags    []map[string]any
	movie   map[string]any
	updates int
}

func newFakeRadarr() *fakeRadarr {
	return &fakeRadarr{
		tags: []map[string]any{
			{"id": 1, "label": "4k"},
			{"id": 2, "label": "not-requested"},
		},
		movie: map[string]any{"id": 7, "title": "Dune", "tmdbId": 438631, "tags": []int{1, 2}},
	}
}

func (f *fakeRadarr) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("X-Api-Key") != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/api/v3/tag" && r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(f.tags)
	case r.URL.Path == "/api/v3/tag" && r.Method == http.MethodPost:
		var tag map[string]any
		_ = json.NewDecoder(r.Body).Decode(&tag)
		tag["id"] = len(f.tags) + 1
		f.tags = append(f.tags, tag)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(tag)
	case r.URL.Path == "/api/v3/movie" && r.Method == http.MethodGet:
		if id := r.URL.Query().Get("tmdbId"); id != "" && id != "438631" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{f.movie})
	case r.URL.Path == "/api/v3/movie/7" && r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(f.movie)
	case r.URL.Path == "/api/v3/movie/7" && r.Method == http.MethodPut:
		var movie map[string]any
		_ = json.NewDecoder(r.Body).Decode(&movie)
		f.movie["tags"] = movie["tags"]
		f.updates++
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(f.movie)
	case strings.HasPrefix(r.URL.Path, "/api/v3/movie/"):
		w.WriteHeader(http.StatusNotFound)
	case r.URL.Path == "/api/v3/system/status":
		_, _ = w.Write([]byte(`{"version": "5.0.0"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestRadarr(t *testing.T) (*Radarr, *fakeRadarr) {
	t.Helper()
	fake := newFakeRadarr()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := &config.RadarrConfig{URL: server.URL, APIKey: "secret"}
	ec := cache.NewEngineCache(&config.CacheConfig{Type: config.CacheTypeMemory})
	return NewRadarr(NewClient(cfg), cfg, ec), fake
}

func TestRadarr_ListItems(t *testing.T) {
	r, _ := newTestRadarr(t)
	ctx := context.Background()

	records, err := r.ListItems(ctx, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, media.ManagedRecord{
		ManagerID:  7,
		ExternalID: media.ExternalID{Scheme: media.SchemeTMDB, Value: "438631"},
		Title:      "Dune",
		Tags:       []string{"4k", "not-requested"},
	}, records[0])

	byID, err := r.ListItems(ctx, &media.ExternalID{Scheme: media.SchemeTMDB, Value: "1"})
	require.NoError(t, err)
	assert.Empty(t, byID)

	_, err = r.ListItems(ctx, &media.ExternalID{Scheme: media.SchemeTVDB, Value: "1"})
	assert.Error(t, err)
}

func TestRadarr_ApplyTags(t *testing.T) {
	r, fake := newTestRadarr(t)
	ctx := context.Background()

	require.NoError(t, r.ApplyTags(ctx, 7, []string{"requester:alice"}, []string{"not_requested"}))

	record, err := r.GetItem(ctx, 7)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"4k", "requester-alice"}, record.Tags)
	assert.Equal(t, 1, fake.updates)

	// unchanged state makes no write
	require.NoError(t, r.ApplyTags(ctx, 7, []string{"requester:alice"}, []string{"not_requested"}))
	assert.Equal(t, 1, fake.updates)
}

func TestRadarr_GetItemNotFound(t *testing.T) {
	r, _ := newTestRadarr(t)
	_, err := r.GetItem(context.Background(), 8)
	require.Error(t, err)
	assert.ErrorContains(t, err, "not found")
}

func TestRadarr_ResetTags(t *testing.T) {
	r, _ := newTestRadarr(t)
	ctx := context.Background()

	updated, err := r.ResetTags(ctx, func(tag string) bool { return tag == "not-requested" })
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	record, err := r.GetItem(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"4k"}, record.Tags)
}

func TestRadarr_Health(t *testing.T) {
	r, _ := newTestRadarr(t)
	assert.NoError(t, r.Health(context.Background()))
}
