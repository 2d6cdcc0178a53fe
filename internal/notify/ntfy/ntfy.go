package ntfy

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/httpclient"
)

// Client represents a ntfy notification client.
type Client struct {
	serverURL string
	topic     string
	username  string
	password  string
	token     string
	http      *httpclient.Client
}

// Message represents a ntfy message.
type Message struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// NewClient creates a new ntfy client.
func NewClient(cfg *config.NtfyConfig, opts ...httpclient.Option) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(cfg.ServerURL, "/"),
		topic:     cfg.Topic,
		username:  cfg.Username,
		password:  cfg.Password,
		token:     cfg.Token,
		http:      httpclient.New("ntfy", opts...),
	}
}

// SendMessage publishes a message to the configured topic.
func (c *Client) SendMessage(ctx context.Context, msg Message) error {
	msg.Topic = c.topic

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	_, err = c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Markdown", "yes")

		// token takes precedence over username/password
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		} else if c.username != "" && c.password != "" {
			req.SetBasicAuth(c.username, c.password)
		}
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("failed to send ntfy message: %w", err)
	}

	log.Debug("Sent ntfy notification", "topic", msg.Topic, "title", msg.Title)
	return nil
}

// SectionSummary is the per section part of a run summary.
type SectionSummary struct {
	Title     string
	Processed int
	Skipped   int
	Errored   int
	Mutations int
	Partial   bool
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID     string
	DryRun    bool
	Duration  time.Duration
	Processed int
	Skipped   int
	Errored   int
	Mutations int
	Sections  []SectionSummary
	// Error is set for aborted runs.
	Error string
}

// SendRunSummary sends the summary of a finished run.
func (c *Client) SendRunSummary(ctx context.Context, s RunSummary) error {
	var b strings.Builder
	if s.Error != "" {
		fmt.Fprintf(&b, "**Run aborted:** %s\n\n", s.Error)
	}
	fmt.Fprintf(&b, "**Items:** %s processed, %s skipped, %s errored\n",
		humanize.Comma(int64(s.Processed)), humanize.Comma(int64(s.Skipped)), humanize.Comma(int64(s.Errored)))
	fmt.Fprintf(&b, "**Mutations:** %s", humanize.Comma(int64(s.Mutations)))
	if s.DryRun {
		b.WriteString(" (dry run, nothing applied)")
	}
	fmt.Fprintf(&b, "\n**Duration:** %s\n", s.Duration.Round(time.Second))

	for _, sec := range s.Sections {
		fmt.Fprintf(&b, "\n- %s: %d processed, %d mutations", sec.Title, sec.Processed, sec.Mutations)
		if sec.Errored > 0 {
			fmt.Fprintf(&b, ", %d errored", sec.Errored)
		}
		if sec.Partial {
			b.WriteString(", incomplete listing")
		}
	}

	msg := Message{
		Title:   "reqtag run finished",
		Message: b.String(),
		Tags:    []string{"label", "reqtag"},
	}
	switch {
	case s.Error != "":
		msg.Title = "reqtag run aborted"
		msg.Priority = 4
		msg.Tags = []string{"warning", "reqtag"}
	case s.Errored > 0:
		msg.Priority = 3
		msg.Tags = []string{"warning", "reqtag"}
	default:
		msg.Priority = 2
	}

	return c.SendMessage(ctx, msg)
}
