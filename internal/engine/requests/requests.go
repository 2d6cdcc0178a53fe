package requests

import (
	"context"

	"github.com/jon4hz/reqtag/internal/media"
)

// Requester is a source of media requests.
type Requester interface {
	// ListAllRequests drains every request matching filter.
	// On a partial drain the collected requests are returned with the error.
	ListAllRequests(ctx context.Context, filter string) ([]media.Request, error)
	Health(ctx context.Context) error
}
