package library

import (
	"context"
	"errors"

	"github.com/jon4hz/reqtag/internal/media"
)

// ErrItemNotFound is returned when an item or collection does not exist.
var ErrItemNotFound = errors.New("library item not found")

// RefType is the type of a labelled library object.
type RefType string

const (
	RefMovie      RefType = "movie"
	RefShow       RefType = "show"
	RefCollection RefType = "collection"
)

// RefTypeFor returns the ref type of items of kind k.
func RefTypeFor(k media.Kind) RefType {
	if k == media.KindShow {
		return RefShow
	}
	return RefMovie
}

// Ref points at an item or collection in a section.
type Ref struct {
	SectionID string
	ID        string
	Type      RefType
}

// ServerIdentity identifies the library server.
type ServerIdentity struct {
	MachineID string
	Name      string
	Version   string
}

// SmartCollection describes a collection filtered by a single label.
type SmartCollection struct {
	SectionID string
	MachineID string
	Kind      media.Kind
	Title     string
	LabelKey  string
}

// Librarier is a library server.
type Librarier interface {
	ServerIdentity(ctx context.Context) (*ServerIdentity, error)
	// ListSections returns the movie and show sections.
	ListSections(ctx context.Context) ([]media.Section, error)
	// ListItems drains all items of a section.
	// On a partial drain the collected items are returned with the error.
	ListItems(ctx context.Context, section media.Section) ([]media.Item, error)
	GetItem(ctx context.Context, section media.Section, id string) (*media.Item, error)
	ListLabels(ctx context.Context, sectionID string) ([]media.Label, error)
	ListCollections(ctx context.Context, sectionID string) ([]media.Collection, error)
	AddLabel(ctx context.Context, ref Ref, label string) error
	RemoveLabel(ctx context.Context, ref Ref, label string) error
	CreateSmartCollection(ctx context.Context, sc SmartCollection) (*media.Collection, error)
}
