package sonarr

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	sonarrAPI "github.com/devopsarr/sonarr-go/sonarr"
	"github.com/jon4hz/reqtag/internal/cache"
	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/engine/arr"
	"github.com/jon4hz/reqtag/internal/media"
	"github.com/samber/lo"
)

var _ arr.Arrer = (*Sonarr)(nil)

// Sonarr manages the tags of series and reports their episode statistics.
type Sonarr struct {
	client     *sonarrAPI.APIClient
	cfg        *config.SonarrConfig
	itemsCache *cache.PrefixedCache[[]media.ManagedRecord]
	tagsCache  *cache.PrefixedCache[cache.TagMap]
}

// NewClient creates a Sonarr API client for the configured URL.
func NewClient(cfg *config.SonarrConfig) *sonarrAPI.APIClient {
	scfg := sonarrAPI.NewConfiguration()

	url := cfg.URL
	if strings.HasPrefix(url, "http://") {
		scfg.Scheme = "http"
		url = strings.TrimPrefix(url, "http://")
	} else if strings.HasPrefix(url, "https://") {
		scfg.Scheme = "https"
		url = strings.TrimPrefix(url, "https://")
	}
	scfg.Host = url

	return sonarrAPI.NewAPIClient(scfg)
}

func sonarrAuthCtx(ctx context.Context, cfg *config.SonarrConfig) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg == nil {
		return ctx
	}
	return context.WithValue(
		ctx,
		sonarrAPI.ContextAPIKeys,
		map[string]sonarrAPI.APIKey{
			"X-Api-Key": {Key: cfg.APIKey},
		},
	)
}

func NewSonarr(client *sonarrAPI.APIClient, cfg *config.SonarrConfig, ec *cache.EngineCache) *Sonarr {
	return &Sonarr{
		client:     client,
		cfg:        cfg,
		itemsCache: ec.SonarrItemsCache,
		tagsCache:  ec.SonarrTagsCache,
	}
}

func (s *Sonarr) Name() string { return "sonarr" }

func (s *Sonarr) Kind() media.Kind { return media.KindShow }

func (s *Sonarr) Health(ctx context.Context) error {
	_, resp, err := s.client.SystemAPI.GetSystemStatus(sonarrAuthCtx(ctx, s.cfg)).Execute()
	if err != nil {
		return fmt.Errorf("failed to get sonarr status: %w", err)
	}
	defer resp.Body.Close() //nolint: errcheck
	return nil
}

func (s *Sonarr) ListItems(ctx context.Context, externalID *media.ExternalID) ([]media.ManagedRecord, error) {
	var tvdbID *int32
	if externalID != nil {
		if externalID.Scheme != media.SchemeTVDB {
			return nil, fmt.Errorf("sonarr series are keyed by %s, got %s", media.SchemeTVDB, externalID.Scheme)
		}
		id, err := strconv.ParseInt(externalID.Value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid tvdb id %q: %w", externalID.Value, err)
		}
		tvdbID = lo.ToPtr(int32(id))
	} else {
		cached, err := s.itemsCache.Get(ctx, "all")
		if err != nil {
			log.Debug("Failed to get Sonarr items from cache, fetching from API", "error", err)
		}
		if len(cached) != 0 {
			return cached, nil
		}
	}

	tagMap, err := s.GetTags(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get sonarr tags: %w", err)
	}

	req := s.client.SeriesAPI.ListSeries(sonarrAuthCtx(ctx, s.cfg)).IncludeSeasonImages(false)
	if tvdbID != nil {
		req = req.TvdbId(*tvdbID)
	}
	series, resp, err := req.Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list sonarr series: %w", err)
	}
	defer resp.Body.Close() //nolint: errcheck

	records := lo.Map(series, func(sr sonarrAPI.SeriesResource, _ int) media.ManagedRecord {
		return toRecord(sr, tagMap)
	})
	if tvdbID == nil {
		if err := s.itemsCache.Set(ctx, "all", records); err != nil {
			log.Warnf("Failed to cache Sonarr items: %v", err)
		}
	}
	return records, nil
}

func (s *Sonarr) GetItem(ctx context.Context, id int) (*media.ManagedRecord, error) {
	series, err := s.getSeries(ctx, id)
	if err != nil {
		return nil, err
	}
	tagMap, err := s.GetTags(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get sonarr tags: %w", err)
	}
	record := toRecord(*series, tagMap)
	return &record, nil
}

func (s *Sonarr) getSeries(ctx context.Context, id int) (*sonarrAPI.SeriesResource, error) {
	seriesID, err := safecast.ToInt32(id)
	if err != nil {
		return nil, fmt.Errorf("invalid sonarr series id %d: %w", id, err)
	}
	series, resp, err := s.client.SeriesAPI.GetSeriesById(sonarrAuthCtx(ctx, s.cfg), seriesID).Execute()
	if resp != nil {
		defer resp.Body.Close() //nolint: errcheck
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("sonarr series %d: %w", id, arr.ErrItemNotFound)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sonarr series %d: %w", id, err)
	}
	return series, nil
}

// UpdateItem replaces the tags of the series with the tags of record.
func (s *Sonarr) UpdateItem(ctx context.Context, record media.ManagedRecord) error {
	series, err := s.getSeries(ctx, record.ManagerID)
	if err != nil {
		return err
	}

	tagIDs := make([]int32, 0, len(record.Tags))
	for _, label := range record.Tags {
		id, err := s.ensureTag(ctx, label)
		if err != nil {
			return err
		}
		tagIDs = append(tagIDs, id)
	}
	series.Tags = lo.Uniq(tagIDs)

	_, resp, err := s.client.SeriesAPI.UpdateSeries(sonarrAuthCtx(ctx, s.cfg), fmt.Sprintf("%d", series.GetId())).
		SeriesResource(*series).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update sonarr series %s: %w", series.GetTitle(), err)
	}
	defer resp.Body.Close() //nolint: errcheck

	if err := s.itemsCache.Clear(ctx); err != nil {
		log.Warnf("Failed to clear Sonarr items cache: %v", err)
	}
	log.Debug("Updated Sonarr series tags", "series", series.GetTitle(), "tags", record.Tags)
	return nil
}

func (s *Sonarr) ApplyTags(ctx context.Context, id int, add, remove []string) error {
	return arr.ApplyTags(ctx, s, id, add, remove)
}

func (s *Sonarr) ResetTags(ctx context.Context, owned func(string) bool) (int, error) {
	if err := s.itemsCache.Clear(ctx); err != nil {
		log.Debug("Failed to clear sonarr items cache", "error", err)
	}
	records, err := s.ListItems(ctx, nil)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, rec := range records {
		select {
		case <-ctx.Done():
			log.Warn("Context cancelled, stopping Sonarr tag reset")
			return updated, ctx.Err()
		default:
		}

		remove := lo.Filter(rec.Tags, func(t string, _ int) bool { return owned(t) })
		if len(remove) == 0 {
			continue
		}
		if err := s.ApplyTags(ctx, rec.ManagerID, nil, remove); err != nil {
			log.Errorf("Failed to reset tags of Sonarr series %s: %v", rec.Title, err)
			continue
		}
		log.Info("Removed reqtag tags from Sonarr series", "series", rec.Title, "tags", remove)
		updated++
	}

	log.Infof("Updated %d Sonarr series", updated)
	return updated, nil
}

// GetTags returns the tag labels by ID.
func (s *Sonarr) GetTags(ctx context.Context, forceRefresh bool) (cache.TagMap, error) {
	if forceRefresh {
		if err := s.tagsCache.Clear(ctx); err != nil {
			log.Debug("Failed to clear Sonarr tags cache, fetching from API", "error", err)
		}
	}

	cachedTags, err := s.tagsCache.Get(ctx, "all")
	if err != nil {
		log.Debug("Failed to get Sonarr tags from cache, fetching from API", "error", err)
	}
	if len(cachedTags) != 0 && !forceRefresh {
		return cachedTags, nil
	}

	tagList, resp, err := s.client.TagAPI.ListTag(sonarrAuthCtx(ctx, s.cfg)).Execute()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint: errcheck

	tagMap := make(cache.TagMap)
	for _, t := range tagList {
		tagMap[t.GetId()] = t.GetLabel()
	}
	if err := s.tagsCache.Set(ctx, "all", tagMap); err != nil {
		log.Warnf("Failed to cache Sonarr tags: %v", err)
	}
	return tagMap, nil
}

func (s *Sonarr) ensureTag(ctx context.Context, label string) (int32, error) {
	tagMap, err := s.GetTags(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("failed to get sonarr tags: %w", err)
	}
	for id, name := range tagMap {
		if strings.EqualFold(name, label) {
			return id, nil
		}
	}

	tag := sonarrAPI.TagResource{
		Label: *sonarrAPI.NewNullableString(&label),
	}
	newTag, resp, err := s.client.TagAPI.CreateTag(sonarrAuthCtx(ctx, s.cfg)).TagResource(tag).Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to create Sonarr tag %s: %w", label, err)
	}
	defer resp.Body.Close() //nolint: errcheck

	log.Infof("Created Sonarr tag: %s", label)

	tagMap[newTag.GetId()] = newTag.GetLabel()
	if err := s.tagsCache.Set(ctx, "all", tagMap); err != nil {
		log.Warnf("Failed to cache new Sonarr tag %s: %v", label, err)
	}
	return newTag.GetId(), nil
}

func toRecord(sr sonarrAPI.SeriesResource, tagMap cache.TagMap) media.ManagedRecord {
	record := media.ManagedRecord{
		ManagerID: int(sr.GetId()),
		ExternalID: media.ExternalID{
			Scheme: media.SchemeTVDB,
			Value:  strconv.Itoa(int(sr.GetTvdbId())),
		},
		Title: sr.GetTitle(),
		Tags: lo.FilterMap(sr.GetTags(), func(id int32, _ int) (string, bool) {
			name, ok := tagMap[id]
			return name, ok
		}),
	}
	if sr.HasStatistics() {
		stats := sr.GetStatistics()
		record.EpisodeStats = &media.EpisodeStatistics{
			EpisodeCount:    int(stats.GetEpisodeCount()),
			PercentComplete: stats.GetPercentOfEpisodes(),
		}
	}
	return record
}
