package overseerr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/httpclient"
)

// Client represents an Overseerr API client
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
}

// New creates a new Overseerr API client
func New(cfg *config.OverseerrConfig, opts ...httpclient.Option) *Client {
	return &Client{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		http:    httpclient.New("overseerr", opts...),
	}
}

// Status is the response of /api/v1/status.
type Status struct {
	Version         string `json:"version"`
	CommitTag       string `json:"commitTag"`
	UpdateAvailable bool   `json:"updateAvailable"`
}

// PageInfo is the pagination block of list responses.
type PageInfo struct {
	Pages    int `json:"pages"`
	PageSize int `json:"pageSize"`
	Results  int `json:"results"`
	Page     int `json:"page"`
}

// User is an Overseerr user.
type User struct {
	ID           int    `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	PlexUsername string `json:"plexUsername"`
	DisplayName  string `json:"displayName"`
}

// Media is the media block of a request.
type Media struct {
	ID           int        `json:"id"`
	MediaType    string     `json:"mediaType"`
	TmdbID       int        `json:"tmdbId"`
	TvdbID       int        `json:"tvdbId"`
	RatingKey    string     `json:"ratingKey"`
	Status       int        `json:"status"`
	MediaAddedAt *time.Time `json:"mediaAddedAt"`
}

// MediaRequest represents a media request
type MediaRequest struct {
	ID          int       `json:"id"`
	Status      int       `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Is4k        bool      `json:"is4k"`
	Media       Media     `json:"media"`
	RequestedBy User      `json:"requestedBy"`
}

// RequestPage is one page of /api/v1/request.
type RequestPage struct {
	PageInfo PageInfo       `json:"pageInfo"`
	Results  []MediaRequest `json:"results"`
}

func (c *Client) request(path string, query url.Values) httpclient.RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1"+path, http.NoBody)
		if err != nil {
			return nil, err
		}
		if len(query) > 0 {
			req.URL.RawQuery = query.Encode()
		}
		req.Header.Set("X-Api-Key", c.apiKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}
}

// Status returns the server status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.http.DoJSON(ctx, c.request("/status", nil), &status); err != nil {
		return nil, fmt.Errorf("error getting overseerr status: %w", err)
	}
	return &status, nil
}

// Requests returns one page of requests, newest first.
// filter is one of all, approved, available, pending, processing, unavailable, failed.
func (c *Client) Requests(ctx context.Context, filter string, skip, take int) (*RequestPage, error) {
	query := url.Values{
		"take": {strconv.Itoa(take)},
		"skip": {strconv.Itoa(skip)},
		"sort": {"added"},
	}
	if filter != "" {
		query.Set("filter", filter)
	}

	var page RequestPage
	if err := c.http.DoJSON(ctx, c.request("/request", query), &page); err != nil {
		return nil, fmt.Errorf("error listing requests: %w", err)
	}
	return &page, nil
}
