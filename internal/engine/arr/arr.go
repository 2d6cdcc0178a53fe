package arr

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/jon4hz/reqtag/internal/tags"
)

// Arrer is a content manager (Radarr for movies, Sonarr for shows).
type Arrer interface {
	// Name returns the manager name for logs, e.g. "radarr".
	Name() string
	// Kind returns the kind of items the manager handles.
	Kind() media.Kind
	// Health checks that the manager is reachable.
	Health(ctx context.Context) error
	// ListItems returns all records, or only the records with the given external ID.
	ListItems(ctx context.Context, externalID *media.ExternalID) ([]media.ManagedRecord, error)
	GetItem(ctx context.Context, id int) (*media.ManagedRecord, error)
	// UpdateItem writes the tag set of record, creating missing tags.
	UpdateItem(ctx context.Context, record media.ManagedRecord) error
	// ApplyTags adds and removes tags with a read-modify-write on a fresh record.
	ApplyTags(ctx context.Context, id int, add, remove []string) error
	// ResetTags removes every tag matched by owned from all records.
	ResetTags(ctx context.Context, owned func(string) bool) (int, error)
}

// ErrItemNotFound is returned when a record does not exist.
var ErrItemNotFound = errors.New("manager item not found")

// MergeTags returns current plus add minus remove. Tags are compared in their
// manager rendered form. changed is false if the result equals current.
func MergeTags(current, add, remove []string) (merged []string, changed bool) {
	merged = slices.Clone(current)
	for _, r := range remove {
		before := len(merged)
		merged = slices.DeleteFunc(merged, func(t string) bool { return tags.Manager(t) == tags.Manager(r) })
		changed = changed || len(merged) != before
	}
	for _, a := range add {
		if slices.ContainsFunc(merged, func(t string) bool { return tags.Manager(t) == tags.Manager(a) }) {
			continue
		}
		merged = append(merged, tags.Manager(a))
		changed = true
	}
	return merged, changed
}

// updateRetries is the number of read-modify-write attempts after the first.
const updateRetries = 2

// ApplyTags performs a read-modify-write of the record's tags. A failed
// update is retried on a freshly read record. The manager offers no
// conditional update, so a concurrent writer can still win the race.
func ApplyTags(ctx context.Context, a Arrer, id int, add, remove []string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(b, updateRetries), ctx)

	return backoff.RetryNotify(func() error {
		record, err := a.GetItem(ctx, id)
		if err != nil {
			if errors.Is(err, ErrItemNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}
		merged, changed := MergeTags(record.Tags, add, remove)
		if !changed {
			return nil
		}
		record.Tags = merged
		return a.UpdateItem(ctx, *record)
	}, policy, func(err error, wait time.Duration) {
		log.Warn("Manager update failed, retrying on a fresh read", "manager", a.Name(), "id", id, "wait", wait, "error", err)
	})
}
