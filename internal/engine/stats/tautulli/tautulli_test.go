package tautulli

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/engine/stats"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/jon4hz/reqtag/internal/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyServer(t *testing.T, total int, stopAt int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		length, _ := strconv.Atoi(r.URL.Query().Get("length"))
		assert.Equal(t, "1", r.URL.Query().Get("section_id"))

		if stopAt >= 0 && start >= stopAt {
			fmt.Fprint(w, `{"response":{"result":"error","message":"database is locked","data":{}}}`)
			return
		}

		var rows string
		for i := start; i < min(start+length, total); i++ {
			if rows != "" {
				rows += ","
			}
			// even rows are episodes of show 77, odd rows are movie 10
			if i%2 == 0 {
				rows += fmt.Sprintf(`{"id": %d, "date": %d, "user": "alice", "media_type": "episode", "rating_key": %d, "grandparent_rating_key": 77, "watched_status": 1}`, i+1, 1700000000+i, 1000+i)
			} else {
				rows += fmt.Sprintf(`{"id": %d, "date": %d, "user": "bob", "media_type": "movie", "rating_key": 10, "watched_status": 0.25}`, i+1, 1700000000+i)
			}
		}
		fmt.Fprintf(w, `{"response":{"result":"success","message":null,"data":{"recordsFiltered": %d, "recordsTotal": %d, "data": [%s]}}}`, total, total, rows)
	}))
}

func TestListAllHistory(t *testing.T) {
	server := historyServer(t, 5, -1)
	defer server.Close()

	s := New(&config.TautulliConfig{URL: server.URL, APIKey: "key"}, 2)
	sessions, err := s.ListAllHistory(context.Background(), stats.HistoryFilter{SectionID: "1"})
	require.NoError(t, err)
	require.Len(t, sessions, 5)

	assert.Equal(t, media.WatchSession{
		Username:       "alice",
		MediaLibraryID: "77",
		EpisodeID:      "1000",
		Watched:        true,
		Timestamp:      time.Unix(1700000000, 0),
	}, sessions[0])
	assert.Equal(t, "10", sessions[1].MediaLibraryID)
	assert.Empty(t, sessions[1].EpisodeID)
	assert.False(t, sessions[1].Watched)
}

func TestListAllHistory_Partial(t *testing.T) {
	server := historyServer(t, 6, 4)
	defer server.Close()

	s := New(&config.TautulliConfig{URL: server.URL, APIKey: "key"}, 2)
	sessions, err := s.ListAllHistory(context.Background(), stats.HistoryFilter{SectionID: "1"})
	require.ErrorIs(t, err, pagination.ErrFetchFailed)
	assert.Len(t, sessions, 4)
}
