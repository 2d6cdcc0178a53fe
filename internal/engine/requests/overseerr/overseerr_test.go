package overseerr

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListAllRequests(t *testing.T) {
	// the server caps the page size at 2 whatever the client asks for
	const serverPageSize = 2
	all := []string{
		`{"id": 1, "createdAt": "2024-01-01T00:00:00Z", "media": {"ratingKey": "100", "mediaAddedAt": "2024-01-02T00:00:00Z"}, "requestedBy": {"username": "alice", "plexUsername": "AlicePlex", "displayName": "Alice A."}}`,
		`{"id": 2, "createdAt": "2024-02-01T00:00:00Z", "media": {"ratingKey": "101"}, "requestedBy": {"username": "bob", "displayName": ""}}`,
		`{"id": 3, "createdAt": "2024-03-01T00:00:00Z", "media": {"ratingKey": ""}, "requestedBy": {"username": "carol"}}`,
		`{"id": 4, "createdAt": "2024-04-01T00:00:00Z", "media": {"ratingKey": "103"}, "requestedBy": {"username": "dave"}}`,
		`{"id": 5, "createdAt": "2024-05-01T00:00:00Z", "media": {"ratingKey": "104"}, "requestedBy": {"username": "erin"}}`,
	}

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/v1/request", r.URL.Path)
		assert.Equal(t, "available", r.URL.Query().Get("filter"))
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "100", r.URL.Query().Get("take"))

		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		end := min(skip+serverPageSize, len(all))
		var rows string
		for i := skip; i < end; i++ {
			if rows != "" {
				rows += ","
			}
			rows += all[i]
		}
		fmt.Fprintf(w, `{"pageInfo": {"pages": 3, "pageSize": %d, "results": %d, "page": %d}, "results": [%s]}`,
			serverPageSize, len(all), skip/serverPageSize+1, rows)
	}))
	defer server.Close()

	o := New(&config.OverseerrConfig{URL: server.URL, APIKey: "key"}, 100)
	reqs, err := o.ListAllRequests(context.Background(), "available")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	// request 3 is not in the library yet
	require.Len(t, reqs, 4)
	assert.Equal(t, media.Request{
		ID:                   1,
		MediaLibraryID:       "100",
		RequesterUsername:    "AlicePlex",
		RequesterDisplayName: "Alice A.",
		MediaAddedAt:         time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		CreatedAt:            time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}, reqs[0])
	assert.Equal(t, "bob", reqs[1].RequesterUsername)
	assert.Equal(t, "bob", reqs[1].DisplayName())
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/status", r.URL.Path)
		fmt.Fprint(w, `{"version": "1.33.2"}`)
	}))
	defer server.Close()

	o := New(&config.OverseerrConfig{URL: server.URL, APIKey: "key"}, 100)
	assert.NoError(t, o.Health(context.Background()))
}
