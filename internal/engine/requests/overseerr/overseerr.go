package overseerr

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/engine/requests"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/jon4hz/reqtag/internal/pagination"
	"github.com/jon4hz/reqtag/pkg/overseerr"
	"github.com/samber/lo"
)

type overseerrClient struct {
	client   *overseerr.Client
	pageSize int
}

// New creates a Requester backed by Overseerr.
func New(cfg *config.OverseerrConfig, pageSize int) requests.Requester {
	return &overseerrClient{
		client:   overseerr.New(cfg),
		pageSize: pageSize,
	}
}

func (o *overseerrClient) Health(ctx context.Context) error {
	status, err := o.client.Status(ctx)
	if err != nil {
		return err
	}
	log.Debug("Overseerr is reachable", "version", status.Version)
	return nil
}

func (o *overseerrClient) ListAllRequests(ctx context.Context, filter string) ([]media.Request, error) {
	fetch := func(ctx context.Context, offset, limit int) (pagination.Page[overseerr.MediaRequest], error) {
		page, err := o.client.Requests(ctx, filter, offset, limit)
		if err != nil {
			return pagination.Page[overseerr.MediaRequest]{}, err
		}
		info := page.PageInfo
		return pagination.Page[overseerr.MediaRequest]{
			Items:         page.Results,
			TotalCount:    info.Results,
			PageSize:      info.PageSize,
			CurrentOffset: max(info.Page-1, 0) * info.PageSize,
		}, nil
	}

	raw, err := pagination.Drain(ctx, fetch, func(r overseerr.MediaRequest) int { return r.ID },
		pagination.WithPageSize(o.pageSize),
		pagination.WithName("overseerr"),
	)

	out := lo.FilterMap(raw, func(r overseerr.MediaRequest, _ int) (media.Request, bool) {
		if r.Media.RatingKey == "" {
			// not in the library yet
			return media.Request{}, false
		}
		return toRequest(r), true
	})
	if err != nil {
		return out, fmt.Errorf("failed to drain overseerr requests: %w", err)
	}
	return out, nil
}

func toRequest(r overseerr.MediaRequest) media.Request {
	username := r.RequestedBy.PlexUsername
	if username == "" {
		username = r.RequestedBy.Username
	}
	req := media.Request{
		ID:                   r.ID,
		MediaLibraryID:       r.Media.RatingKey,
		RequesterUsername:    username,
		RequesterDisplayName: r.RequestedBy.DisplayName,
		CreatedAt:            r.CreatedAt,
	}
	if r.Media.MediaAddedAt != nil {
		req.MediaAddedAt = *r.Media.MediaAddedAt
	}
	return req
}
