package sonarr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jon4hz/reqtag/internal/cache"
	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSonarr_ListItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v3/tag":
			_, _ = w.Write([]byte(`[{"id": 1, "label": "requester-alice"}, {"id": 2, "label": "anime"}]`))
		case "/api/v3/series":
			if r.URL.Query().Get("tvdbId") == "999" {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			_, _ = w.Write([]byte(`[
				{
					"id": 123,
					"title": "Severance",
					"tvdbId": 371980,
					"tags": [1, 2],
					"statistics": {"episodeFileCount": 19, "episodeCount": 19, "totalEpisodeCount": 19, "percentOfEpisodes": 100}
				},
				{"id": 124, "title": "No Stats", "tvdbId": 1, "tags": []}
			]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := &config.SonarrConfig{URL: server.URL, APIKey: "secret"}
	s := NewSonarr(NewClient(cfg), cfg, cache.NewEngineCache(&config.CacheConfig{Type: config.CacheTypeMemory}))

	records, err := s.ListItems(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, media.ExternalID{Scheme: media.SchemeTVDB, Value: "371980"}, records[0].ExternalID)
	assert.Equal(t, []string{"requester-alice", "anime"}, records[0].Tags)
	require.NotNil(t, records[0].EpisodeStats)
	assert.Equal(t, 19, records[0].EpisodeStats.EpisodeCount)
	assert.InDelta(t, 100.0, records[0].EpisodeStats.PercentComplete, 0.001)
	assert.Nil(t, records[1].EpisodeStats)

	none, err := s.ListItems(context.Background(), &media.ExternalID{Scheme: media.SchemeTVDB, Value: "999"})
	require.NoError(t, err)
	assert.Empty(t, none)
}
