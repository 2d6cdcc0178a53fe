package radarr

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	radarrAPI "github.com/devopsarr/radarr-go/radarr"
	"github.com/jon4hz/reqtag/internal/cache"
	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/engine/arr"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/samber/lo"
)

var _ arr.Arrer = (*Radarr)(nil)

// Radarr manages the tags of movies.
type Radarr struct {
	client     *radarrAPI.APIClient
	cfg        *config.RadarrConfig
	itemsCache *cache.PrefixedCache[[]media.ManagedRecord]
	tagsCache  *cache.PrefixedCache[cache.TagMap]
}

// NewClient creates a Radarr API client for the configured URL.
func NewClient(cfg *config.RadarrConfig) *radarrAPI.APIClient {
	rcfg := radarrAPI.NewConfiguration()

	url := cfg.URL
	if strings.HasPrefix(url, "http://") {
		rcfg.Scheme = "http"
		url = strings.TrimPrefix(url, "http://")
	} else if strings.HasPrefix(url, "https://") {
		rcfg.Scheme = "https"
		url = strings.TrimPrefix(url, "https://")
	}
	rcfg.Host = url

	return radarrAPI.NewAPIClient(rcfg)
}

func radarrAuthCtx(ctx context.Context, cfg *config.RadarrConfig) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg == nil {
		return ctx
	}
	return context.WithValue(
		ctx,
		radarrAPI.ContextAPIKeys,
		map[string]radarrAPI.APIKey{
			"X-Api-Key": {Key: cfg.APIKey},
		},
	)
}

// NewRadarr creates a Radarr manager.
func NewRadarr(client *radarrAPI.APIClient, cfg *config.RadarrConfig, ec *cache.EngineCache) *Radarr {
	return &Radarr{
		client:     client,
		cfg:        cfg,
		itemsCache: ec.RadarrItemsCache,
		tagsCache:  ec.RadarrTagsCache,
	}
}

func (r *Radarr) Name() string { return "radarr" }

func (r *Radarr) Kind() media.Kind { return media.KindMovie }

func (r *Radarr) Health(ctx context.Context) error {
	_, resp, err := r.client.SystemAPI.GetSystemStatus(radarrAuthCtx(ctx, r.cfg)).Execute()
	if err != nil {
		return fmt.Errorf("failed to get radarr status: %w", err)
	}
	defer resp.Body.Close() //nolint: errcheck
	return nil
}

// ListItems returns the movies, all of them cached once per run, or the
// movies matching a tmdb ID.
func (r *Radarr) ListItems(ctx context.Context, externalID *media.ExternalID) ([]media.ManagedRecord, error) {
	if externalID != nil {
		return r.listByTmdbID(ctx, *externalID)
	}

	cached, err := r.itemsCache.Get(ctx, "all")
	if err != nil {
		log.Debug("Failed to get Radarr items from cache, fetching from API", "error", err)
	}
	if len(cached) != 0 {
		return cached, nil
	}

	tagMap, err := r.GetTags(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get radarr tags: %w", err)
	}

	movies, resp, err := r.client.MovieAPI.ListMovie(radarrAuthCtx(ctx, r.cfg)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list radarr movies: %w", err)
	}
	defer resp.Body.Close() //nolint: errcheck

	records := lo.Map(movies, func(m radarrAPI.MovieResource, _ int) media.ManagedRecord {
		return toRecord(m, tagMap)
	})
	if err := r.itemsCache.Set(ctx, "all", records); err != nil {
		log.Warnf("Failed to cache Radarr items: %v", err)
	}
	return records, nil
}

func (r *Radarr) listByTmdbID(ctx context.Context, id media.ExternalID) ([]media.ManagedRecord, error) {
	if id.Scheme != media.SchemeTMDB {
		return nil, fmt.Errorf("radarr movies are keyed by %s, got %s", media.SchemeTMDB, id.Scheme)
	}
	tmdbID, err := strconv.ParseInt(id.Value, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid tmdb id %q: %w", id.Value, err)
	}

	tagMap, err := r.GetTags(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get radarr tags: %w", err)
	}

	movies, resp, err := r.client.MovieAPI.ListMovie(radarrAuthCtx(ctx, r.cfg)).TmdbId(int32(tmdbID)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list radarr movies: %w", err)
	}
	defer resp.Body.Close() //nolint: errcheck

	return lo.Map(movies, func(m radarrAPI.MovieResource, _ int) media.ManagedRecord {
		return toRecord(m, tagMap)
	}), nil
}

func (r *Radarr) GetItem(ctx context.Context, id int) (*media.ManagedRecord, error) {
	movie, err := r.getMovie(ctx, id)
	if err != nil {
		return nil, err
	}
	tagMap, err := r.GetTags(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get radarr tags: %w", err)
	}
	record := toRecord(*movie, tagMap)
	return &record, nil
}

func (r *Radarr) getMovie(ctx context.Context, id int) (*radarrAPI.MovieResource, error) {
	movieID, err := safecast.ToInt32(id)
	if err != nil {
		return nil, fmt.Errorf("invalid radarr movie id %d: %w", id, err)
	}
	movie, resp, err := r.client.MovieAPI.GetMovieById(radarrAuthCtx(ctx, r.cfg), movieID).Execute()
	if resp != nil {
		defer resp.Body.Close() //nolint: errcheck
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("radarr movie %d: %w", id, arr.ErrItemNotFound)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get radarr movie %d: %w", id, err)
	}
	return movie, nil
}

// UpdateItem replaces the tags of the movie with the tags of record.
// The rest of the movie is written back as read.
func (r *Radarr) UpdateItem(ctx context.Context, record media.ManagedRecord) error {
	movie, err := r.getMovie(ctx, record.ManagerID)
	if err != nil {
		return err
	}

	tagIDs := make([]int32, 0, len(record.Tags))
	for _, label := range record.Tags {
		id, err := r.ensureTag(ctx, label)
		if err != nil {
			return err
		}
		tagIDs = append(tagIDs, id)
	}
	movie.Tags = lo.Uniq(tagIDs)

	_, resp, err := r.client.MovieAPI.UpdateMovie(radarrAuthCtx(ctx, r.cfg), fmt.Sprintf("%d", movie.GetId())).
		MovieResource(*movie).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update radarr movie %s: %w", movie.GetTitle(), err)
	}
	defer resp.Body.Close() //nolint: errcheck

	if err := r.itemsCache.Clear(ctx); err != nil {
		log.Warnf("Failed to clear Radarr items cache: %v", err)
	}
	log.Debug("Updated Radarr movie tags", "movie", movie.GetTitle(), "tags", record.Tags)
	return nil
}

func (r *Radarr) ApplyTags(ctx context.Context, id int, add, remove []string) error {
	return arr.ApplyTags(ctx, r, id, add, remove)
}

// ResetTags removes the owned tags from every movie.
func (r *Radarr) ResetTags(ctx context.Context, owned func(string) bool) (int, error) {
	if err := r.itemsCache.Clear(ctx); err != nil {
		log.Debug("Failed to clear radarr items cache", "error", err)
	}
	records, err := r.ListItems(ctx, nil)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, rec := range records {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		remove := lo.Filter(rec.Tags, func(t string, _ int) bool { return owned(t) })
		if len(remove) == 0 {
			continue
		}
		if err := r.ApplyTags(ctx, rec.ManagerID, nil, remove); err != nil {
			log.Errorf("Failed to reset tags of Radarr movie %s: %v", rec.Title, err)
			continue
		}
		log.Info("Removed reqtag tags from Radarr movie", "movie", rec.Title, "tags", remove)
		updated++
	}
	return updated, nil
}

// GetTags returns the tag labels by ID.
func (r *Radarr) GetTags(ctx context.Context, forceRefresh bool) (cache.TagMap, error) {
	if forceRefresh {
		if err := r.tagsCache.Clear(ctx); err != nil {
			log.Debug("Failed to clear Radarr tags cache, fetching from API", "error", err)
		}
	}

	cachedTags, err := r.tagsCache.Get(ctx, "all")
	if err != nil {
		log.Debug("Failed to get Radarr tags from cache, fetching from API", "error", err)
	}
	if len(cachedTags) != 0 && !forceRefresh {
		return cachedTags, nil
	}

	tagList, resp, err := r.client.TagAPI.ListTag(radarrAuthCtx(ctx, r.cfg)).Execute()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint: errcheck

	tagMap := make(cache.TagMap)
	for _, t := range tagList {
		tagMap[t.GetId()] = t.GetLabel()
	}
	if err := r.tagsCache.Set(ctx, "all", tagMap); err != nil {
		log.Warnf("Failed to cache Radarr tags: %v", err)
	}
	return tagMap, nil
}

// ensureTag returns the ID of the tag with the given label, creating it if needed.
func (r *Radarr) ensureTag(ctx context.Context, label string) (int32, error) {
	tagMap, err := r.GetTags(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("failed to get radarr tags: %w", err)
	}
	for id, name := range tagMap {
		if strings.EqualFold(name, label) {
			return id, nil
		}
	}

	tag := radarrAPI.TagResource{
		Label: *radarrAPI.NewNullableString(&label),
	}
	newTag, resp, err := r.client.TagAPI.CreateTag(radarrAuthCtx(ctx, r.cfg)).TagResource(tag).Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to create Radarr tag %s: %w", label, err)
	}
	defer resp.Body.Close() //nolint: errcheck

	log.Infof("Created Radarr tag: %s", label)

	tagMap[newTag.GetId()] = newTag.GetLabel()
	if err := r.tagsCache.Set(ctx, "all", tagMap); err != nil {
		log.Warnf("Failed to cache new Radarr tag %s: %v", label, err)
	}
	return newTag.GetId(), nil
}

func toRecord(m radarrAPI.MovieResource, tagMap cache.TagMap) media.ManagedRecord {
	return media.ManagedRecord{
		ManagerID: int(m.GetId()),
		ExternalID: media.ExternalID{
			Scheme: media.SchemeTMDB,
			Value:  strconv.Itoa(int(m.GetTmdbId())),
		},
		Title: m.GetTitle(),
		Tags: lo.FilterMap(m.GetTags(), func(id int32, _ int) (string, bool) {
			name, ok := tagMap[id]
			return name, ok
		}),
	}
}
