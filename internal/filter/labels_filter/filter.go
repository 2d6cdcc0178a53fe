package labelsfilter

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/reqtag/internal/filter"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/jon4hz/reqtag/internal/tags"
	"github.com/samber/lo"
)

// Filter drops items carrying one of the ignore labels.
type Filter struct {
	ignore map[string]struct{}
}

var _ filter.Filterer = (*Filter)(nil)

// New creates a labels filter. Labels are compared case-insensitively.
func New(ignoreLabels []string) *Filter {
	ignore := make(map[string]struct{}, len(ignoreLabels))
	for _, l := range ignoreLabels {
		ignore[tags.Normalize(l)] = struct{}{}
	}
	return &Filter{ignore: ignore}
}

// String returns the name of the filter.
func (f *Filter) String() string { return "Labels Filter" }

// Apply drops the items labelled with an ignore label.
func (f *Filter) Apply(ctx context.Context, items []media.Item) ([]media.Item, error) {
	if len(f.ignore) == 0 {
		return items, nil
	}
	return lo.Filter(items, func(item media.Item, _ int) bool {
		for _, l := range item.Labels {
			if _, ok := f.ignore[tags.Normalize(l)]; ok {
				log.Debugf("Ignoring item %s due to label: %s", item.Title, l)
				return false
			}
		}
		return true
	}), nil
}
