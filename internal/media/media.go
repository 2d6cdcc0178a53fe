// Package media holds the canonical records the reconciliation engine works on.
// Every record is rebuilt from the collaborators on each run.
package media

import (
	"strings"
	"time"
)

// Kind is the kind of a library item.
type Kind string

const (
	KindMovie Kind = "movie"
	KindShow  Kind = "show"
)

// Scheme is an external metadata provider.
type Scheme string

const (
	SchemeTMDB Scheme = "tmdb"
	SchemeTVDB Scheme = "tvdb"
	SchemeIMDB Scheme = "imdb"
)

// ManagedScheme returns the scheme the content manager for kind k is keyed by.
func (k Kind) ManagedScheme() Scheme {
	if k == KindShow {
		return SchemeTVDB
	}
	return SchemeTMDB
}

// ExternalID is a typed external identifier.
type ExternalID struct {
	Scheme Scheme `json:"scheme"`
	Value  string `json:"value"`
}

func (e ExternalID) String() string {
	return string(e.Scheme) + "://" + e.Value
}

// ParseExternalID parses identifiers of the form "tmdb://123".
func ParseExternalID(s string) (ExternalID, bool) {
	scheme, value, ok := strings.Cut(s, "://")
	if !ok || scheme == "" || value == "" {
		return ExternalID{}, false
	}
	return ExternalID{Scheme: Scheme(strings.ToLower(scheme)), Value: value}, true
}

// ExternalIDs holds at most one value per scheme.
type ExternalIDs map[Scheme]string

// Get returns the identifier for the given scheme.
func (e ExternalIDs) Get(s Scheme) (ExternalID, bool) {
	v, ok := e[s]
	if !ok || v == "" {
		return ExternalID{}, false
	}
	return ExternalID{Scheme: s, Value: v}, true
}

// Item is one movie or show in a library section.
type Item struct {
	LibraryID   string      `json:"libraryId"`
	SectionID   string      `json:"sectionId"`
	Kind        Kind        `json:"kind"`
	ExternalIDs ExternalIDs `json:"externalIds"`
	AddedAt     time.Time   `json:"addedAt"`
	Title       string      `json:"title"`
	// Labels are the labels currently set on the item in the library server.
	Labels []string `json:"labels"`
}

// Request is a user's request for a library item.
type Request struct {
	ID                   int       `json:"id"`
	MediaLibraryID       string    `json:"mediaLibraryId"`
	RequesterUsername    string    `json:"requesterUsername"`
	RequesterDisplayName string    `json:"requesterDisplayName"`
	MediaAddedAt         time.Time `json:"mediaAddedAt"`
	CreatedAt            time.Time `json:"createdAt"`
}

// DisplayName returns the display name of the requester, falling back to the username.
func (r Request) DisplayName() string {
	if name := strings.TrimSpace(r.RequesterDisplayName); name != "" {
		return name
	}
	return r.RequesterUsername
}

// EpisodeStatistics is the download state of a show as reported by its manager.
type EpisodeStatistics struct {
	EpisodeCount    int     `json:"episodeCount"`
	PercentComplete float64 `json:"percentComplete"`
}

// ManagedRecord is the content manager counterpart of an Item.
type ManagedRecord struct {
	ManagerID    int                `json:"managerId"`
	ExternalID   ExternalID         `json:"externalId"`
	Title        string             `json:"title"`
	Tags         []string           `json:"tags"`
	EpisodeStats *EpisodeStatistics `json:"episodeStats,omitempty"`
}

// WatchSession is one playback session.
type WatchSession struct {
	Username string `json:"username"`
	// MediaLibraryID is the movie key, or the show key for episodes.
	MediaLibraryID string `json:"mediaLibraryId"`
	// EpisodeID identifies the episode, empty for movies.
	EpisodeID string    `json:"episodeId,omitempty"`
	Watched   bool      `json:"watched"`
	Timestamp time.Time `json:"timestamp"`
}

// Section is a library section.
type Section struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Kind  Kind   `json:"kind"`
}

// Label is a label known to a library section.
type Label struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

// Collection is a collection in a library section.
type Collection struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
}
