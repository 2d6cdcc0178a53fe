package tautulli

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/httpclient"
)

// Client represents a Tautulli API client
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
}

// New creates a new Tautulli API client
func New(cfg *config.TautulliConfig, opts ...httpclient.Option) *Client {
	return &Client{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		http:    httpclient.New("tautulli", opts...),
	}
}

// HistoryRecord is one row of get_history.
type HistoryRecord struct {
	// ID is nil for sessions still in progress.
	ID                   *int     `json:"id"`
	Date                 int64    `json:"date"`
	Started              int64    `json:"started"`
	User                 string   `json:"user"`
	UserID               int      `json:"user_id"`
	MediaType            string   `json:"media_type"`
	RatingKey            *int     `json:"rating_key"`
	ParentRatingKey      *int     `json:"parent_rating_key"`
	GrandparentRatingKey *int     `json:"grandparent_rating_key"`
	Title                string   `json:"full_title"`
	WatchedStatus        *float64 `json:"watched_status"`
	PercentComplete      int      `json:"percent_complete"`
}

// Watched reports whether Tautulli counts the record as fully watched.
func (r HistoryRecord) Watched() bool {
	return r.WatchedStatus != nil && *r.WatchedStatus >= 1
}

// HistoryData is the data block of get_history.
type HistoryData struct {
	RecordsFiltered int             `json:"recordsFiltered"`
	RecordsTotal    int             `json:"recordsTotal"`
	Data            []HistoryRecord `json:"data"`
}

type response[T any] struct {
	Response struct {
		Result  string  `json:"result"`
		Message *string `json:"message"`
		Data    T       `json:"data"`
	} `json:"response"`
}

// HistoryQuery filters get_history.
type HistoryQuery struct {
	SectionID string
	RatingKey string
	// GrandparentRatingKey restricts the history to the episodes of a show.
	GrandparentRatingKey string
	User                 string
	Start                int
	Length               int
}

func call[T any](ctx context.Context, c *Client, cmd string, params url.Values) (T, error) {
	var out response[T]
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)
	params.Set("cmd", cmd)

	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v2", http.NoBody)
		if err != nil {
			return nil, err
		}
		req.URL.RawQuery = params.Encode()
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	if err := c.http.DoJSON(ctx, build, &out); err != nil {
		return out.Response.Data, fmt.Errorf("error calling %s: %w", cmd, err)
	}
	if out.Response.Result != "success" {
		msg := "unknown error"
		if out.Response.Message != nil {
			msg = *out.Response.Message
		}
		return out.Response.Data, fmt.Errorf("%s failed: %s", cmd, msg)
	}
	return out.Response.Data, nil
}

// Ping checks that Tautulli is reachable and the API key is valid.
func (c *Client) Ping(ctx context.Context) error {
	_, err := call[map[string]any](ctx, c, "arnold", nil)
	return err
}

// History returns one page of playback history, newest first.
func (c *Client) History(ctx context.Context, q HistoryQuery) (*HistoryData, error) {
	params := url.Values{
		"start":        {strconv.Itoa(q.Start)},
		"length":       {strconv.Itoa(q.Length)},
		"order_column": {"date"},
		"order_dir":    {"desc"},
		"grouping":     {"0"},
	}
	if q.SectionID != "" {
		params.Set("section_id", q.SectionID)
	}
	if q.RatingKey != "" {
		params.Set("rating_key", q.RatingKey)
	}
	if q.GrandparentRatingKey != "" {
		params.Set("grandparent_rating_key", q.GrandparentRatingKey)
	}
	if q.User != "" {
		params.Set("user", q.User)
	}

	data, err := call[HistoryData](ctx, c, "get_history", params)
	if err != nil {
		return nil, err
	}
	return &data, nil
}
