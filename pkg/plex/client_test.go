package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(&config.PlexConfig{
		URL:               server.URL,
		Token:             "plex-token",
		RequestsPerSecond: 1000,
	}, httpclient.WithRetry(1, time.Millisecond))
}

func TestIdentity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		assert.Equal(t, "plex-token", r.Header.Get("X-Plex-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		fmt.Fprint(w, `{"MediaContainer":{"machineIdentifier":"abc123","friendlyName":"home","version":"1.40"}}`)
	})

	id, err := c.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", id.MachineIdentifier)
	assert.Equal(t, "home", id.FriendlyName)
}

func TestSectionItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/library/sections/1/all", r.URL.Path)
		assert.Equal(t, "100", r.Header.Get("X-Plex-Container-Start"))
		assert.Equal(t, "50", r.Header.Get("X-Plex-Container-Size"))
		assert.Equal(t, "1", r.URL.Query().Get("includeGuids"))
		fmt.Fprint(w, `{"MediaContainer":{"size":1,"totalSize":151,"offset":100,"Metadata":[
			{"ratingKey":"42","type":"movie","title":"Heat","addedAt":1700000000,"librarySectionID":1,
			 "Guid":[{"id":"imdb://tt0113277"},{"id":"tmdb://949"}],
			 "Label":[{"tag":"requester:alice"}]}
		]}}`)
	})

	page, err := c.SectionItems(context.Background(), "1", 100, 50)
	require.NoError(t, err)
	assert.Equal(t, 151, page.TotalSize)
	assert.Equal(t, 100, page.Offset)
	assert.Equal(t, 1, page.Size)
	require.Len(t, page.Items, 1)
	item := page.Items[0]
	assert.Equal(t, "42", item.RatingKey)
	assert.Equal(t, int64(1700000000), item.AddedAt)
	assert.Equal(t, []GUID{{ID: "imdb://tt0113277"}, {ID: "tmdb://949"}}, item.GUID)
	assert.Equal(t, []string{"requester:alice"}, item.LabelTitles())
}

func TestItem_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := c.Item(context.Background(), "42")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSectionLabels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/library/sections/1/label", r.URL.Path)
		fmt.Fprint(w, `{"MediaContainer":{"Directory":[
			{"key":"139932","title":"requester:alice"},
			{"key":"/library/sections/1/all?label=140154","title":"stale_request"}
		]}}`)
	})

	labels, err := c.SectionLabels(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, []Directory{
		{Key: "139932", Title: "requester:alice"},
		{Key: "140154", Title: "stale_request"},
	}, labels)
}

func TestAddAndRemoveLabel(t *testing.T) {
	var got []url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/library/sections/1/all", r.URL.Path)
		got = append(got, r.URL.Query())
	})

	require.NoError(t, c.AddLabel(context.Background(), "1", "42", TypeMovie, "requester:alice"))
	require.NoError(t, c.RemoveLabel(context.Background(), "1", "77", TypeCollection, "owner:bob"))

	require.Len(t, got, 2)
	assert.Equal(t, "requester:alice", got[0].Get("label[0].tag.tag"))
	assert.Equal(t, "1", got[0].Get("label.locked"))
	assert.Equal(t, "1", got[0].Get("type"))
	assert.Equal(t, "42", got[0].Get("id"))
	assert.Equal(t, "1", got[0].Get("includeExternalMedia"))

	assert.Equal(t, "owner:bob", got[1].Get("label[].tag.tag-"))
	assert.Equal(t, strconv.Itoa(TypeCollection), got[1].Get("type"))
	assert.Equal(t, "77", got[1].Get("id"))
}

func TestCreateSmartCollection(t *testing.T) {
	tests := []struct {
		name      string
		typ       int
		wantInner string
	}{
		{name: "movie", typ: TypeMovie, wantInner: "label=139932&sort=titleSort&type=1"},
		{name: "show", typ: TypeShow, wantInner: "show.label=139932&sort=titleSort&type=2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/library/collections", r.URL.Path)
				q := r.URL.Query()
				assert.Equal(t, "Movies Requested by Alice", q.Get("title"))
				assert.Equal(t, "1", q.Get("smart"))
				assert.Equal(t, "3", q.Get("sectionId"))
				assert.Equal(t, "server://abc123/com.plexapp.plugins.library/library/sections/3/all?"+tt.wantInner, q.Get("uri"))
				fmt.Fprint(w, `{"MediaContainer":{"Metadata":[{"ratingKey":"900","title":"Movies Requested by Alice","type":"collection"}]}}`)
			})

			col, err := c.CreateSmartCollection(context.Background(), SmartCollection{
				SectionID: "3",
				MachineID: "abc123",
				Type:      tt.typ,
				Title:     "Movies Requested by Alice",
				LabelKey:  "139932",
			})
			require.NoError(t, err)
			assert.Equal(t, "900", col.RatingKey)
		})
	}
}

func TestSectionCollections(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/library/sections/1/collections", r.URL.Path)
		fmt.Fprint(w, `{"MediaContainer":{"Metadata":[
			{"ratingKey":"900","title":"Movies Requested by Alice","Label":[{"tag":"owner:alice"}]},
			{"ratingKey":"901","title":"Marvel"}
		]}}`)
	})

	cols, err := c.SectionCollections(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, []string{"owner:alice"}, cols[0].LabelTitles())
	assert.Empty(t, cols[1].LabelTitles())
}
