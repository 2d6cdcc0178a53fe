package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/jon4hz/reqtag/internal/engine/library"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/jon4hz/reqtag/internal/tags"
)

// ErrLabelNotFound is returned when a label has no key in its section, even after a refresh.
var ErrLabelNotFound = errors.New("label not found")

// SectionCache holds the labels and collections of one section for the duration of a run.
type SectionCache struct {
	sectionID string
	lib       library.Librarier

	mu          sync.RWMutex
	labelKeys   map[string]string // normalized title -> key
	collections []media.Collection

	// createMu serializes collection creation within the section.
	createMu sync.Mutex
}

func newSectionCache(ctx context.Context, lib library.Librarier, sectionID string) (*SectionCache, error) {
	c := &SectionCache{sectionID: sectionID, lib: lib}
	if err := c.RefreshLabels(ctx); err != nil {
		return nil, err
	}
	if err := c.RefreshCollections(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// RefreshLabels reloads the label keys of the section.
func (c *SectionCache) RefreshLabels(ctx context.Context) error {
	labels, err := c.lib.ListLabels(ctx, c.sectionID)
	if err != nil {
		return fmt.Errorf("failed to list labels of section %s: %w", c.sectionID, err)
	}
	keys := make(map[string]string, len(labels))
	for _, l := range labels {
		keys[tags.Normalize(l.Title)] = l.Key
	}

	c.mu.Lock()
	c.labelKeys = keys
	c.mu.Unlock()
	return nil
}

// RefreshCollections reloads the collections of the section.
func (c *SectionCache) RefreshCollections(ctx context.Context) error {
	collections, err := c.lib.ListCollections(ctx, c.sectionID)
	if err != nil {
		return fmt.Errorf("failed to list collections of section %s: %w", c.sectionID, err)
	}

	c.mu.Lock()
	c.collections = collections
	c.mu.Unlock()
	return nil
}

// Collections returns a snapshot of the known collections.
func (c *SectionCache) Collections() []media.Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]media.Collection, len(c.collections))
	for i, col := range c.collections {
		col.Labels = slices.Clone(col.Labels)
		out[i] = col
	}
	return out
}

// Collection looks up a collection by its exact title.
func (c *SectionCache) Collection(title string) (media.Collection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, col := range c.collections {
		if col.Title == title {
			col.Labels = slices.Clone(col.Labels)
			return col, true
		}
	}
	return media.Collection{}, false
}

// LabelKey returns the key of a label. A miss reloads the labels once,
// since labels added during the run are unknown to the cache.
func (c *SectionCache) LabelKey(ctx context.Context, title string) (string, error) {
	if key, ok := c.labelKey(title); ok {
		return key, nil
	}
	if err := c.RefreshLabels(ctx); err != nil {
		return "", err
	}
	if key, ok := c.labelKey(title); ok {
		return key, nil
	}
	return "", fmt.Errorf("%w: %q in section %s", ErrLabelNotFound, title, c.sectionID)
}

func (c *SectionCache) labelKey(title string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.labelKeys[tags.Normalize(title)]
	return key, ok
}

// putCollection adds a collection the listing does not show yet.
func (c *SectionCache) putCollection(col media.Collection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slices.ContainsFunc(c.collections, func(x media.Collection) bool { return x.ID == col.ID }) {
		return
	}
	c.collections = append(c.collections, col)
}

func (c *SectionCache) addCollectionLabel(id, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.collections {
		if c.collections[i].ID != id {
			continue
		}
		if !slices.ContainsFunc(c.collections[i].Labels, func(l string) bool { return tags.Normalize(l) == tags.Normalize(label) }) {
			c.collections[i].Labels = append(c.collections[i].Labels, label)
		}
		return
	}
}
