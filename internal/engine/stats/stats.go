package stats

import (
	"context"

	"github.com/jon4hz/reqtag/internal/media"
)

// HistoryFilter narrows the playback history.
type HistoryFilter struct {
	// SectionID limits the history to one library section.
	SectionID string
}

// Statser is a source of playback history.
type Statser interface {
	// ListAllHistory drains the history matching filter.
	// On a partial drain the collected sessions are returned with the error.
	ListAllHistory(ctx context.Context, filter HistoryFilter) ([]media.WatchSession, error)
	Health(ctx context.Context) error
}
