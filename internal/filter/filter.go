package filter

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/reqtag/internal/media"
)

// Filterer defines the interface for library item filters.
type Filterer interface {
	fmt.Stringer
	// Apply returns the items that should be reconciled.
	Apply(context.Context, []media.Item) ([]media.Item, error)
}

// Filter applies all provided filters sequentially to library items.
type Filter struct {
	filters []Filterer
}

// New creates a new Filter instance with the given filters.
func New(filters ...Filterer) *Filter {
	return &Filter{
		filters: filters,
	}
}

// ApplyAll applies all filters sequentially to the provided items.
func (f *Filter) ApplyAll(ctx context.Context, items []media.Item) ([]media.Item, error) {
	var err error
	filtered := items

	for _, filter := range f.filters {
		before := len(filtered)
		filtered, err = filter.Apply(ctx, filtered)
		if err != nil {
			log.Error("Failed to apply filter.", "filter", filter.String(), "error", err)
			return nil, err
		}
		log.Debug("Filter applied.", "filter", filter.String(), "remaining_items", len(filtered), "filtered_out", before-len(filtered))
	}

	return filtered, nil
}
