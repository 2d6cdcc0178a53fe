package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/reqtag/internal/cache"
	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/database"
	"github.com/jon4hz/reqtag/internal/engine/arr"
	"github.com/jon4hz/reqtag/internal/engine/arr/radarr"
	"github.com/jon4hz/reqtag/internal/engine/arr/sonarr"
	"github.com/jon4hz/reqtag/internal/engine/library"
	"github.com/jon4hz/reqtag/internal/engine/library/plex"
	"github.com/jon4hz/reqtag/internal/engine/requests"
	"github.com/jon4hz/reqtag/internal/engine/requests/overseerr"
	"github.com/jon4hz/reqtag/internal/engine/stats"
	"github.com/jon4hz/reqtag/internal/engine/stats/tautulli"
	"github.com/jon4hz/reqtag/internal/filter"
	labelsfilter "github.com/jon4hz/reqtag/internal/filter/labels_filter"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/jon4hz/reqtag/internal/notify/ntfy"
	"github.com/jon4hz/reqtag/internal/scheduler"
)

var (
	// ErrRunInProgress is returned when a run is triggered while another one is active.
	ErrRunInProgress = errors.New("run already in progress")
	// ErrCollaboratorUnavailable aborts a run before any write.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	// ErrCollectionCreateFailed wraps failures while creating a requester collection.
	ErrCollectionCreateFailed = errors.New("collection create failed")
)

// Notifier receives the summary of every finished run.
type Notifier interface {
	SendRunSummary(ctx context.Context, s ntfy.RunSummary) error
}

// Engine reconciles the request and watch state of the library into labels, manager tags and collections.
// A scheduled job runs the reconciliation periodically.
type Engine struct {
	cfg       *config.Config
	db        database.DB
	filters   *filter.Filter
	library   library.Librarier
	requests  requests.Requester
	stats     stats.Statser
	arrs      map[media.Kind]arr.Arrer
	notifier  Notifier
	scheduler *scheduler.Scheduler
	cache     *cache.EngineCache

	now     func() time.Time
	running atomic.Bool
}

// Option customizes the engine.
type Option func(*Engine)

// WithLibrary replaces the Plex library source.
func WithLibrary(l library.Librarier) Option {
	return func(e *Engine) { e.library = l }
}

// WithRequester replaces the Overseerr request source.
func WithRequester(r requests.Requester) Option {
	return func(e *Engine) { e.requests = r }
}

// WithStats replaces the Tautulli history source.
func WithStats(s stats.Statser) Option {
	return func(e *Engine) { e.stats = s }
}

// WithArr registers the content manager of a.Kind().
func WithArr(a arr.Arrer) Option {
	return func(e *Engine) { e.arrs[a.Kind()] = a }
}

// WithNotifier replaces the ntfy notifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithClock sets the time source of the run.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a new Engine instance.
// Collaborators not provided as options are built from the configuration.
func New(cfg *config.Config, db database.DB, opts ...Option) (*Engine, error) {
	sched, err := scheduler.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		db:        db,
		arrs:      make(map[media.Kind]arr.Arrer),
		scheduler: sched,
		cache:     cache.NewEngineCache(cfg.Cache),
		filters:   filter.New(labelsfilter.New(cfg.IgnoreLabels)),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.library == nil {
		e.library = plex.New(cfg.Plex, cfg.PageSize)
	}
	if e.requests == nil {
		e.requests = overseerr.New(cfg.Overseerr, cfg.PageSize)
	}
	if e.stats == nil {
		e.stats = tautulli.New(cfg.Tautulli, cfg.PageSize)
	}

	if _, ok := e.arrs[media.KindMovie]; !ok {
		if cfg.RadarrEnabled() {
			e.arrs[media.KindMovie] = radarr.NewRadarr(radarr.NewClient(cfg.Radarr), cfg.Radarr, e.cache)
		} else {
			log.Warn("Radarr configuration is missing, movie tags will not be reconciled")
		}
	}
	if _, ok := e.arrs[media.KindShow]; !ok {
		if cfg.SonarrEnabled() {
			e.arrs[media.KindShow] = sonarr.NewSonarr(sonarr.NewClient(cfg.Sonarr), cfg.Sonarr, e.cache)
		} else {
			log.Warn("Sonarr configuration is missing, show tags will not be reconciled")
		}
	}

	if e.notifier == nil && cfg.Ntfy != nil && cfg.Ntfy.Enabled {
		e.notifier = ntfy.NewClient(cfg.Ntfy)
	}

	if err := e.setupJobs(); err != nil {
		return nil, fmt.Errorf("failed to setup jobs: %w", err)
	}

	return e, nil
}

// GetEngineCache returns the engine cache for API access.
func (e *Engine) GetEngineCache() *cache.EngineCache {
	return e.cache
}

// GetDB returns the run history database.
func (e *Engine) GetDB() database.DB {
	return e.db
}

// Running reports whether a run is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// kindConfig returns the settings of kind, never nil.
func (e *Engine) kindConfig(kind media.Kind) *config.KindConfig {
	var kc *config.KindConfig
	switch kind {
	case media.KindMovie:
		kc = e.cfg.Movies
	case media.KindShow:
		kc = e.cfg.Shows
	}
	if kc == nil {
		return &config.KindConfig{}
	}
	return kc
}

func (e *Engine) sectionEnabled(section media.Section) bool {
	return e.kindConfig(section.Kind).Enabled && e.cfg.SectionAllowed(section.ID, section.Title)
}
