package plex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/httpclient"
)

// Item types as used by the Plex API.
const (
	TypeMovie      = 1
	TypeShow       = 2
	TypeCollection = 18
)

// ErrNotFound is returned when an item does not exist (anymore).
var ErrNotFound = errors.New("plex item not found")

// Client represents a Plex Media Server API client
type Client struct {
	baseURL string
	token   string
	http    *httpclient.Client
}

// New creates a new Plex API client
func New(cfg *config.PlexConfig, opts ...httpclient.Option) *Client {
	opts = append([]httpclient.Option{httpclient.WithRateLimit(cfg.RequestsPerSecond)}, opts...)
	return &Client{
		baseURL: cfg.URL,
		token:   cfg.Token,
		http:    httpclient.New("plex", opts...),
	}
}

// Identity is the server identity returned by the root endpoint.
type Identity struct {
	MachineIdentifier string `json:"machineIdentifier"`
	FriendlyName      string `json:"friendlyName"`
	Version           string `json:"version"`
}

// Directory is a generic directory entry (sections, labels).
type Directory struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Tag is a tag-like entry (Label, Genre, ...).
type Tag struct {
	Tag string `json:"tag"`
}

// GUID is an external identifier like "tmdb://123".
type GUID struct {
	ID string `json:"id"`
}

// Metadata is a library item or collection.
type Metadata struct {
	RatingKey        string `json:"ratingKey"`
	Key              string `json:"key"`
	Type             string `json:"type"`
	Title            string `json:"title"`
	AddedAt          int64  `json:"addedAt"`
	LibrarySectionID int    `json:"librarySectionID"`
	GUID             []GUID `json:"Guid"`
	Label            []Tag  `json:"Label"`
	Smart            string `json:"smart"`
}

// LabelTitles returns the label strings of the item.
func (m Metadata) LabelTitles() []string {
	out := make([]string, 0, len(m.Label))
	for _, l := range m.Label {
		out = append(out, l.Tag)
	}
	return out
}

type container struct {
	MediaContainer struct {
		Size              int         `json:"size"`
		TotalSize         int         `json:"totalSize"`
		Offset            int         `json:"offset"`
		MachineIdentifier string      `json:"machineIdentifier"`
		FriendlyName      string      `json:"friendlyName"`
		Version           string      `json:"version"`
		Directory         []Directory `json:"Directory"`
		Metadata          []Metadata  `json:"Metadata"`
	} `json:"MediaContainer"`
}

// ItemsPage is one page of section items.
type ItemsPage struct {
	Items     []Metadata
	Size      int
	TotalSize int
	Offset    int
}

func (c *Client) request(method, path string, query url.Values, header http.Header) httpclient.RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
		if err != nil {
			return nil, err
		}
		if len(query) > 0 {
			req.URL.RawQuery = query.Encode()
		}
		for k, v := range header {
			req.Header[k] = v
		}
		req.Header.Set("X-Plex-Token", c.token)
		req.Header.Set("X-Plex-Product", "reqtag")
		req.Header.Set("X-Plex-Client-Identifier", "reqtag")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, header http.Header) (*container, error) {
	var out container
	if err := c.http.DoJSON(ctx, c.request(http.MethodGet, path, query, header), &out); err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, err
	}
	return &out, nil
}

// Identity returns the server identity.
func (c *Client) Identity(ctx context.Context) (*Identity, error) {
	out, err := c.get(ctx, "/", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("error getting server identity: %w", err)
	}
	if out.MediaContainer.MachineIdentifier == "" {
		return nil, fmt.Errorf("server identity without machine identifier")
	}
	return &Identity{
		MachineIdentifier: out.MediaContainer.MachineIdentifier,
		FriendlyName:      out.MediaContainer.FriendlyName,
		Version:           out.MediaContainer.Version,
	}, nil
}

// Sections returns all library sections.
func (c *Client) Sections(ctx context.Context) ([]Directory, error) {
	out, err := c.get(ctx, "/library/sections", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("error listing sections: %w", err)
	}
	return out.MediaContainer.Directory, nil
}

// SectionItems returns one page of the items in a section.
func (c *Client) SectionItems(ctx context.Context, sectionID string, offset, limit int) (*ItemsPage, error) {
	query := url.Values{
		"includeGuids":           {"1"},
		"X-Plex-Container-Start": {strconv.Itoa(offset)},
		"X-Plex-Container-Size":  {strconv.Itoa(limit)},
	}
	header := http.Header{
		"X-Plex-Container-Start": {strconv.Itoa(offset)},
		"X-Plex-Container-Size":  {strconv.Itoa(limit)},
	}
	out, err := c.get(ctx, "/library/sections/"+url.PathEscape(sectionID)+"/all", query, header)
	if err != nil {
		return nil, fmt.Errorf("error listing items of section %s: %w", sectionID, err)
	}
	mc := out.MediaContainer
	total := mc.TotalSize
	if total == 0 && mc.Offset == 0 {
		// older servers omit totalSize on unpaginated responses
		total = mc.Size
	}
	return &ItemsPage{
		Items:     mc.Metadata,
		Size:      mc.Size,
		TotalSize: total,
		Offset:    mc.Offset,
	}, nil
}

// Item returns a single item.
func (c *Client) Item(ctx context.Context, ratingKey string) (*Metadata, error) {
	out, err := c.get(ctx, "/library/metadata/"+url.PathEscape(ratingKey), url.Values{"includeGuids": {"1"}}, nil)
	if err != nil {
		return nil, fmt.Errorf("error getting item %s: %w", ratingKey, err)
	}
	if len(out.MediaContainer.Metadata) == 0 {
		return nil, fmt.Errorf("item %s: %w", ratingKey, ErrNotFound)
	}
	return &out.MediaContainer.Metadata[0], nil
}

// SectionLabels returns the labels known to a section with their keys.
func (c *Client) SectionLabels(ctx context.Context, sectionID string) ([]Directory, error) {
	out, err := c.get(ctx, "/library/sections/"+url.PathEscape(sectionID)+"/label", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("error listing labels of section %s: %w", sectionID, err)
	}
	labels := out.MediaContainer.Directory
	for i := range labels {
		labels[i].Key = labelKey(labels[i].Key)
	}
	return labels, nil
}

// labelKey extracts the numeric label key from keys like "/library/sections/1/all?label=123".
func labelKey(key string) string {
	if _, v, ok := strings.Cut(key, "label="); ok {
		v, _, _ = strings.Cut(v, "&")
		return v
	}
	return key
}

// SectionCollections returns the collections of a section.
func (c *Client) SectionCollections(ctx context.Context, sectionID string) ([]Metadata, error) {
	query := url.Values{
		"includeCollections":   {"1"},
		"includeExternalMedia": {"1"},
	}
	out, err := c.get(ctx, "/library/sections/"+url.PathEscape(sectionID)+"/collections", query, nil)
	if err != nil {
		return nil, fmt.Errorf("error listing collections of section %s: %w", sectionID, err)
	}
	return out.MediaContainer.Metadata, nil
}

func (c *Client) updateItem(ctx context.Context, sectionID, ratingKey string, typ int, updates url.Values) error {
	updates.Set("type", strconv.Itoa(typ))
	updates.Set("id", ratingKey)
	updates.Set("includeExternalMedia", "1")
	_, err := c.http.Do(ctx, c.request(http.MethodPut, "/library/sections/"+url.PathEscape(sectionID)+"/all", updates, nil))
	if httpclient.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("item %s: %w", ratingKey, ErrNotFound)
	}
	return err
}

// AddLabel adds a label to an item or collection.
func (c *Client) AddLabel(ctx context.Context, sectionID, ratingKey string, typ int, label string) error {
	err := c.updateItem(ctx, sectionID, ratingKey, typ, url.Values{
		"label[0].tag.tag": {label},
		"label.locked":     {"1"},
	})
	if err != nil {
		return fmt.Errorf("error adding label %q to %s: %w", label, ratingKey, err)
	}
	return nil
}

// RemoveLabel removes a label from an item or collection.
func (c *Client) RemoveLabel(ctx context.Context, sectionID, ratingKey string, typ int, label string) error {
	err := c.updateItem(ctx, sectionID, ratingKey, typ, url.Values{
		"label[].tag.tag-": {label},
		"label.locked":     {"1"},
	})
	if err != nil {
		return fmt.Errorf("error removing label %q from %s: %w", label, ratingKey, err)
	}
	return nil
}

// SmartCollection describes a smart collection filtered by a single label.
type SmartCollection struct {
	SectionID string
	MachineID string
	// Type is the item type of the collection content (TypeMovie or TypeShow).
	Type     int
	Title    string
	LabelKey string
}

// CreateSmartCollection creates a smart collection and returns it.
func (c *Client) CreateSmartCollection(ctx context.Context, sc SmartCollection) (*Metadata, error) {
	filter := "label"
	if sc.Type == TypeShow {
		filter = "show.label"
	}
	inner := url.Values{}
	inner.Set("type", strconv.Itoa(sc.Type))
	inner.Set("sort", "titleSort")
	inner.Set(filter, sc.LabelKey)

	uri := fmt.Sprintf("server://%s/com.plexapp.plugins.library/library/sections/%s/all?%s",
		sc.MachineID, sc.SectionID, inner.Encode())

	query := url.Values{
		"type":      {strconv.Itoa(sc.Type)},
		"title":     {sc.Title},
		"smart":     {"1"},
		"sectionId": {sc.SectionID},
		"uri":       {uri},
	}

	var out container
	if err := c.http.DoJSON(ctx, c.request(http.MethodPost, "/library/collections", query, nil), &out); err != nil {
		return nil, fmt.Errorf("error creating collection %q: %w", sc.Title, err)
	}
	if len(out.MediaContainer.Metadata) == 0 {
		return nil, fmt.Errorf("collection %q was not returned after create", sc.Title)
	}
	return &out.MediaContainer.Metadata[0], nil
}
