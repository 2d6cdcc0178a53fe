package tautulli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/engine/stats"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/jon4hz/reqtag/internal/pagination"
	"github.com/jon4hz/reqtag/pkg/tautulli"
	"github.com/samber/lo"
)

type tautulliClient struct {
	client   *tautulli.Client
	pageSize int
}

// New creates a Statser backed by Tautulli.
func New(cfg *config.TautulliConfig, pageSize int) stats.Statser {
	return &tautulliClient{
		client:   tautulli.New(cfg),
		pageSize: pageSize,
	}
}

func (s *tautulliClient) Health(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *tautulliClient) ListAllHistory(ctx context.Context, filter stats.HistoryFilter) ([]media.WatchSession, error) {
	fetch := func(ctx context.Context, offset, limit int) (pagination.Page[tautulli.HistoryRecord], error) {
		data, err := s.client.History(ctx, tautulli.HistoryQuery{
			SectionID: filter.SectionID,
			Start:     offset,
			Length:    limit,
		})
		if err != nil {
			return pagination.Page[tautulli.HistoryRecord]{}, err
		}
		// Tautulli does not echo the page size, the row count is what it used.
		return pagination.Page[tautulli.HistoryRecord]{
			Items:         data.Data,
			TotalCount:    data.RecordsFiltered,
			PageSize:      len(data.Data),
			CurrentOffset: offset,
		}, nil
	}

	records, err := pagination.Drain(ctx, fetch, recordKey,
		pagination.WithPageSize(s.pageSize),
		pagination.WithName("tautulli"),
	)

	sessions := make([]media.WatchSession, 0, len(records))
	for _, r := range records {
		if session, ok := toSession(r); ok {
			sessions = append(sessions, session)
		}
	}
	if err != nil {
		return sessions, fmt.Errorf("failed to drain tautulli history of section %s: %w", filter.SectionID, err)
	}
	return sessions, nil
}

func recordKey(r tautulli.HistoryRecord) string {
	if r.ID != nil {
		return strconv.Itoa(*r.ID)
	}
	return fmt.Sprintf("%s|%d|%d", r.User, r.Started, lo.FromPtr(r.RatingKey))
}

func toSession(r tautulli.HistoryRecord) (media.WatchSession, bool) {
	session := media.WatchSession{
		Username:  r.User,
		Watched:   r.Watched(),
		Timestamp: time.Unix(r.Date, 0),
	}
	switch r.MediaType {
	case "episode":
		if r.GrandparentRatingKey == nil || r.RatingKey == nil {
			return session, false
		}
		session.MediaLibraryID = strconv.Itoa(*r.GrandparentRatingKey)
		session.EpisodeID = strconv.Itoa(*r.RatingKey)
	default:
		if r.RatingKey == nil {
			return session, false
		}
		session.MediaLibraryID = strconv.Itoa(*r.RatingKey)
	}
	return session, true
}
