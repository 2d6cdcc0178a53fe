// Package identity maps library items onto request and content manager records.
package identity

import (
	"github.com/jon4hz/reqtag/internal/media"
)

// Selection decides which request wins when several reference the same item.
type Selection string

const (
	// SelectFirst picks the first matching request in listing order. Overseerr
	// lists requests sorted by added date, newest first.
	SelectFirst Selection = "first"
	// SelectLatest picks the most recently created matching request.
	SelectLatest Selection = "latest"
)

// Index looks up manager records by external ID.
type Index map[media.ExternalID]*media.ManagedRecord

// NewIndex builds an index over records. The first record wins on duplicate IDs.
func NewIndex(records []media.ManagedRecord) Index {
	idx := make(Index, len(records))
	for i := range records {
		id := records[i].ExternalID
		if id.Value == "" {
			continue
		}
		if _, ok := idx[id]; ok {
			continue
		}
		idx[id] = &records[i]
	}
	return idx
}

// Resolve returns the manager record for item, if any.
// Items without the scheme their kind is managed by are unmanaged, which is not an error.
func Resolve(item media.Item, index Index) (*media.ManagedRecord, bool) {
	id, ok := item.ExternalIDs.Get(item.Kind.ManagedScheme())
	if !ok {
		return nil, false
	}
	rec, ok := index[id]
	return rec, ok
}

// RequestFor returns the request for item using the given selection mode.
func RequestFor(item media.Item, requests []media.Request, sel Selection) (*media.Request, bool) {
	var found *media.Request
	for i := range requests {
		r := &requests[i]
		if r.MediaLibraryID == "" || r.MediaLibraryID != item.LibraryID {
			continue
		}
		if sel != SelectLatest {
			return r, true
		}
		if found == nil || r.CreatedAt.After(found.CreatedAt) {
			found = r
		}
	}
	return found, found != nil
}

// RequestIndex groups requests by library ID preserving their order.
type RequestIndex map[string][]media.Request

// NewRequestIndex builds a RequestIndex.
func NewRequestIndex(requests []media.Request) RequestIndex {
	idx := make(RequestIndex)
	for _, r := range requests {
		if r.MediaLibraryID == "" {
			continue
		}
		idx[r.MediaLibraryID] = append(idx[r.MediaLibraryID], r)
	}
	return idx
}

// For returns the request for item from the index.
func (idx RequestIndex) For(item media.Item, sel Selection) (*media.Request, bool) {
	return RequestFor(item, idx[item.LibraryID], sel)
}
