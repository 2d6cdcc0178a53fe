package plex

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/engine/library"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/jon4hz/reqtag/internal/pagination"
	"github.com/jon4hz/reqtag/pkg/plex"
	"github.com/samber/lo"
)

type plexClient struct {
	client   *plex.Client
	pageSize int
}

// New creates a Librarier backed by Plex.
func New(cfg *config.PlexConfig, pageSize int) library.Librarier {
	return &plexClient{
		client:   plex.New(cfg),
		pageSize: pageSize,
	}
}

func (p *plexClient) ServerIdentity(ctx context.Context) (*library.ServerIdentity, error) {
	id, err := p.client.Identity(ctx)
	if err != nil {
		return nil, err
	}
	return &library.ServerIdentity{
		MachineID: id.MachineIdentifier,
		Name:      id.FriendlyName,
		Version:   id.Version,
	}, nil
}

func (p *plexClient) ListSections(ctx context.Context) ([]media.Section, error) {
	dirs, err := p.client.Sections(ctx)
	if err != nil {
		return nil, err
	}
	return lo.FilterMap(dirs, func(d plex.Directory, _ int) (media.Section, bool) {
		switch d.Type {
		case "movie":
			return media.Section{ID: d.Key, Title: d.Title, Kind: media.KindMovie}, true
		case "show":
			return media.Section{ID: d.Key, Title: d.Title, Kind: media.KindShow}, true
		default:
			log.Debug("Skipping unsupported section", "section", d.Title, "type", d.Type)
			return media.Section{}, false
		}
	}), nil
}

func (p *plexClient) ListItems(ctx context.Context, section media.Section) ([]media.Item, error) {
	fetch := func(ctx context.Context, offset, limit int) (pagination.Page[plex.Metadata], error) {
		page, err := p.client.SectionItems(ctx, section.ID, offset, limit)
		if err != nil {
			return pagination.Page[plex.Metadata]{}, err
		}
		return pagination.Page[plex.Metadata]{
			Items:         page.Items,
			TotalCount:    page.TotalSize,
			PageSize:      page.Size,
			CurrentOffset: page.Offset,
		}, nil
	}

	raw, err := pagination.Drain(ctx, fetch, func(m plex.Metadata) string { return m.RatingKey },
		pagination.WithPageSize(p.pageSize),
		pagination.WithName("plex"),
	)
	items := lo.Map(raw, func(m plex.Metadata, _ int) media.Item { return toItem(m, section) })
	if err != nil {
		return items, fmt.Errorf("failed to drain items of section %s: %w", section.Title, err)
	}
	return items, nil
}

func (p *plexClient) GetItem(ctx context.Context, section media.Section, id string) (*media.Item, error) {
	m, err := p.client.Item(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	item := toItem(*m, section)
	return &item, nil
}

func (p *plexClient) ListLabels(ctx context.Context, sectionID string) ([]media.Label, error) {
	dirs, err := p.client.SectionLabels(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	return lo.Map(dirs, func(d plex.Directory, _ int) media.Label {
		return media.Label{Key: d.Key, Title: d.Title}
	}), nil
}

func (p *plexClient) ListCollections(ctx context.Context, sectionID string) ([]media.Collection, error) {
	cols, err := p.client.SectionCollections(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	return lo.Map(cols, func(m plex.Metadata, _ int) media.Collection {
		return media.Collection{ID: m.RatingKey, Title: m.Title, Labels: m.LabelTitles()}
	}), nil
}

func (p *plexClient) AddLabel(ctx context.Context, ref library.Ref, label string) error {
	return mapNotFound(p.client.AddLabel(ctx, ref.SectionID, ref.ID, plexType(ref.Type), label))
}

func (p *plexClient) RemoveLabel(ctx context.Context, ref library.Ref, label string) error {
	return mapNotFound(p.client.RemoveLabel(ctx, ref.SectionID, ref.ID, plexType(ref.Type), label))
}

func (p *plexClient) CreateSmartCollection(ctx context.Context, sc library.SmartCollection) (*media.Collection, error) {
	m, err := p.client.CreateSmartCollection(ctx, plex.SmartCollection{
		SectionID: sc.SectionID,
		MachineID: sc.MachineID,
		Type:      plexType(library.RefTypeFor(sc.Kind)),
		Title:     sc.Title,
		LabelKey:  sc.LabelKey,
	})
	if err != nil {
		return nil, err
	}
	return &media.Collection{ID: m.RatingKey, Title: m.Title, Labels: m.LabelTitles()}, nil
}

func plexType(t library.RefType) int {
	switch t {
	case library.RefShow:
		return plex.TypeShow
	case library.RefCollection:
		return plex.TypeCollection
	default:
		return plex.TypeMovie
	}
}

func mapNotFound(err error) error {
	if err != nil && errors.Is(err, plex.ErrNotFound) {
		return fmt.Errorf("%w: %w", library.ErrItemNotFound, err)
	}
	return err
}

func toItem(m plex.Metadata, section media.Section) media.Item {
	ids := make(media.ExternalIDs, len(m.GUID))
	for _, g := range m.GUID {
		id, ok := media.ParseExternalID(g.ID)
		if !ok {
			continue
		}
		switch id.Scheme {
		case media.SchemeTMDB, media.SchemeTVDB, media.SchemeIMDB:
			if _, dup := ids[id.Scheme]; !dup {
				ids[id.Scheme] = id.Value
			}
		}
	}
	sectionID := section.ID
	if m.LibrarySectionID != 0 {
		sectionID = strconv.Itoa(m.LibrarySectionID)
	}
	return media.Item{
		LibraryID:   m.RatingKey,
		SectionID:   sectionID,
		Kind:        section.Kind,
		ExternalIDs: ids,
		AddedAt:     time.Unix(m.AddedAt, 0),
		Title:       m.Title,
		Labels:      m.LabelTitles(),
	}
}
