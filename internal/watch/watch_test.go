package watch

import (
	"fmt"
	"testing"
	"time"

	"github.com/jon4hz/reqtag/internal/media"
	"github.com/stretchr/testify/assert"
)

var (
	now        = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	staleAdded = Period{Months: 6}
	staleView  = Period{Months: 3}
)

func monthsAgo(n int) time.Time {
	return now.AddDate(0, -n, 0)
}

func movie(addedAt time.Time) media.Item {
	return media.Item{LibraryID: "42", Kind: media.KindMovie, AddedAt: addedAt, ExternalIDs: media.ExternalIDs{media.SchemeTMDB: "123"}}
}

func show(addedAt time.Time) media.Item {
	return media.Item{LibraryID: "77", Kind: media.KindShow, AddedAt: addedAt, ExternalIDs: media.ExternalIDs{media.SchemeTVDB: "555"}}
}

func aliceRequest(libraryID string) media.Request {
	return media.Request{ID: 1, MediaLibraryID: libraryID, RequesterUsername: "alice"}
}

func TestEvaluate_Movie(t *testing.T) {
	tests := []struct {
		name     string
		item     media.Item
		sessions []media.WatchSession
		want     Facts
	}{
		{
			name:     "requester fully watched",
			item:     movie(monthsAgo(1)),
			sessions: []media.WatchSession{{Username: "alice", MediaLibraryID: "42", Watched: true, Timestamp: monthsAgo(1)}},
			want:     Facts{RequesterFullyWatched: true},
		},
		{
			name:     "requester username match is case-insensitive",
			item:     movie(monthsAgo(1)),
			sessions: []media.WatchSession{{Username: "Alice", MediaLibraryID: "42", Watched: true, Timestamp: monthsAgo(1)}},
			want:     Facts{RequesterFullyWatched: true},
		},
		{
			name:     "requester partially watched",
			item:     movie(monthsAgo(1)),
			sessions: []media.WatchSession{{Username: "alice", MediaLibraryID: "42", Watched: false, Timestamp: monthsAgo(1)}},
			want:     Facts{},
		},
		{
			name:     "others watched recently",
			item:     movie(monthsAgo(8)),
			sessions: []media.WatchSession{{Username: "bob", MediaLibraryID: "42", Watched: true, Timestamp: monthsAgo(2)}},
			want:     Facts{OthersWatching: true},
		},
		{
			name:     "others watched long ago is stale",
			item:     movie(monthsAgo(7)),
			sessions: []media.WatchSession{{Username: "bob", MediaLibraryID: "42", Watched: true, Timestamp: monthsAgo(4)}},
			want:     Facts{IsStale: true},
		},
		{
			name: "requester watched long ago and nobody since is stale and watched",
			item: movie(monthsAgo(12)),
			sessions: []media.WatchSession{
				{Username: "alice", MediaLibraryID: "42", Watched: true, Timestamp: monthsAgo(10)},
			},
			want: Facts{RequesterFullyWatched: true, IsStale: true},
		},
		{
			name: "never watched and old is stale",
			item: movie(monthsAgo(9)),
			want: Facts{IsStale: true},
		},
		{
			name: "never watched but recently added is not stale",
			item: movie(monthsAgo(5)),
			want: Facts{},
		},
		{
			name: "recent own session keeps item fresh without others watching",
			item: movie(monthsAgo(9)),
			sessions: []media.WatchSession{
				{Username: "alice", MediaLibraryID: "42", Watched: false, Timestamp: monthsAgo(1)},
			},
			want: Facts{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(Input{
				Item:       tt.item,
				Request:    aliceRequest("42"),
				Sessions:   tt.sessions,
				Now:        now,
				StaleAdded: staleAdded,
				StaleView:  staleView,
			})
			assert.Equal(t, tt.want.RequesterFullyWatched, got.RequesterFullyWatched, "requesterFullyWatched")
			assert.Equal(t, tt.want.OthersWatching, got.OthersWatching, "othersWatching")
			assert.Equal(t, tt.want.IsStale, got.IsStale, "isStale")
		})
	}
}

func TestEvaluate_StalenessBoundary(t *testing.T) {
	item := movie(monthsAgo(7))

	t.Run("last watch four months ago", func(t *testing.T) {
		for _, user := range []string{"alice", "bob"} {
			got := Evaluate(Input{
				Item:       item,
				Request:    aliceRequest("42"),
				Sessions:   []media.WatchSession{{Username: user, Timestamp: monthsAgo(4)}},
				Now:        now,
				StaleAdded: staleAdded,
				StaleView:  staleView,
			})
			assert.True(t, got.IsStale, user)
			assert.False(t, got.OthersWatching, user)
		}
	})

	t.Run("last watch two months ago by the requester", func(t *testing.T) {
		got := Evaluate(Input{
			Item:       item,
			Request:    aliceRequest("42"),
			Sessions:   []media.WatchSession{{Username: "alice", Timestamp: monthsAgo(2)}},
			Now:        now,
			StaleAdded: staleAdded,
			StaleView:  staleView,
		})
		assert.False(t, got.IsStale)
		assert.False(t, got.OthersWatching)
	})

	t.Run("last watch two months ago by someone else", func(t *testing.T) {
		got := Evaluate(Input{
			Item:       item,
			Request:    aliceRequest("42"),
			Sessions:   []media.WatchSession{{Username: "bob", Timestamp: monthsAgo(2)}},
			Now:        now,
			StaleAdded: staleAdded,
			StaleView:  staleView,
		})
		assert.False(t, got.IsStale)
		assert.True(t, got.OthersWatching)
	})
}

func TestEvaluate_StaleAndOthersWatchingAreExclusive(t *testing.T) {
	for added := 0; added <= 12; added++ {
		for watched := 0; watched <= 12; watched++ {
			got := Evaluate(Input{
				Item:       movie(monthsAgo(added)),
				Request:    aliceRequest("42"),
				Sessions:   []media.WatchSession{{Username: "bob", Timestamp: monthsAgo(watched)}},
				Now:        now,
				StaleAdded: staleAdded,
				StaleView:  staleView,
			})
			assert.False(t, got.IsStale && got.OthersWatching, "added %d, watched %d months ago", added, watched)
		}
	}
}

func episodes(user string, ids ...int) []media.WatchSession {
	out := make([]media.WatchSession, 0, len(ids))
	for _, id := range ids {
		out = append(out, media.WatchSession{
			Username:       user,
			MediaLibraryID: "77",
			EpisodeID:      fmt.Sprintf("ep-%d", id),
			Watched:        true,
			Timestamp:      monthsAgo(5),
		})
	}
	return out
}

func TestEvaluate_Show(t *testing.T) {
	complete := &media.ManagedRecord{EpisodeStats: &media.EpisodeStatistics{EpisodeCount: 10, PercentComplete: 100}}

	tests := []struct {
		name      string
		sessions  []media.WatchSession
		managed   *media.ManagedRecord
		wantWatch bool
		wantStale bool
	}{
		{
			name:      "seven of ten episodes watched and old enough is stale",
			sessions:  episodes("alice", 1, 2, 3, 4, 5, 6, 7),
			managed:   complete,
			wantWatch: false,
			wantStale: true,
		},
		{
			name:      "all episodes watched",
			sessions:  episodes("alice", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10),
			managed:   complete,
			wantWatch: true,
			wantStale: true,
		},
		{
			name:      "repeat views are not double counted",
			sessions:  append(episodes("alice", 1, 2, 3, 4, 5, 6, 7), episodes("alice", 1, 2, 3)...),
			managed:   complete,
			wantWatch: false,
			wantStale: true,
		},
		{
			name:      "manager not fully downloaded",
			sessions:  episodes("alice", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10),
			managed:   &media.ManagedRecord{EpisodeStats: &media.EpisodeStatistics{EpisodeCount: 10, PercentComplete: 80}},
			wantWatch: false,
			wantStale: true,
		},
		{
			name:      "unmanaged show is never fully watched",
			sessions:  episodes("alice", 1, 2),
			managed:   nil,
			wantWatch: false,
			wantStale: true,
		},
		{
			name:      "episodes watched by others do not count",
			sessions:  episodes("bob", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10),
			managed:   complete,
			wantWatch: false,
			wantStale: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(Input{
				Item:       show(monthsAgo(9)),
				Request:    aliceRequest("77"),
				Sessions:   tt.sessions,
				Managed:    tt.managed,
				Now:        now,
				StaleAdded: staleAdded,
				StaleView:  staleView,
			})
			assert.Equal(t, tt.wantWatch, got.RequesterFullyWatched)
			assert.Equal(t, tt.wantStale, got.IsStale)
			assert.False(t, got.OthersWatching)
		})
	}
}

func TestPeriod(t *testing.T) {
	p := Period{Months: 1, Days: 2}
	assert.Equal(t, time.Date(2025, time.May, 13, 12, 0, 0, 0, time.UTC), p.Before(now))
	assert.False(t, p.IsZero())
	assert.True(t, Period{}.IsZero())
}
