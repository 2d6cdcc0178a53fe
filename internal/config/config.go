package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/reqtag/internal/watch"
	"github.com/spf13/viper"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

// RequestSelection decides which request wins when an item was requested more than once.
type RequestSelection string

const (
	RequestSelectionFirst  RequestSelection = "first"
	RequestSelectionLatest RequestSelection = "latest"
)

// Config holds the configuration for the reqtag server and its dependencies.
type Config struct {
	// Listen is the address the admin API will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// Schedule is the cron schedule of the reconciliation job (e.g. "0 3 * * *" for once a day).
	Schedule string `yaml:"schedule" mapstructure:"schedule"`
	// DryRun logs the mutations of a run without applying them.
	DryRun bool `yaml:"dry_run" mapstructure:"dry_run"`
	// Workers is the number of items processed concurrently per section.
	Workers int `yaml:"workers" mapstructure:"workers"`
	// PageSize is the page size requested from paginated endpoints.
	PageSize int `yaml:"page_size" mapstructure:"page_size"`
	// RequestFilter is the Overseerr request filter (e.g. "available", "all").
	RequestFilter string `yaml:"request_filter" mapstructure:"request_filter"`
	// RequestSelection is either "first" or "latest".
	RequestSelection RequestSelection `yaml:"request_selection" mapstructure:"request_selection"`
	// StaleAddedThreshold is how long an item must be in the library before it can be stale.
	StaleAddedThreshold watch.Period `yaml:"stale_added_threshold" mapstructure:"stale_added_threshold"`
	// StaleViewThreshold is how long since the last watch session before an item is stale.
	// It is also the window in which sessions of other users count as others watching.
	StaleViewThreshold watch.Period `yaml:"stale_view_threshold" mapstructure:"stale_view_threshold"`
	// Sections is an optional allow-list of section titles or IDs.
	Sections []string `yaml:"sections" mapstructure:"sections"`
	// IgnoreLabels are item labels that exclude an item from reconciliation.
	IgnoreLabels []string `yaml:"ignore_labels" mapstructure:"ignore_labels"`
	// APIKey protects the admin API. The API is read-only without auth if empty.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// Movies holds the settings for movie sections.
	Movies *KindConfig `yaml:"movies" mapstructure:"movies"`
	// Shows holds the settings for show sections.
	Shows *KindConfig `yaml:"shows" mapstructure:"shows"`

	// Database holds the database configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Cache holds the cache configuration.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache"`
	// Ntfy holds the ntfy notification configuration.
	Ntfy *NtfyConfig `yaml:"ntfy" mapstructure:"ntfy"`

	// Plex holds the Plex server configuration.
	Plex *PlexConfig `yaml:"plex" mapstructure:"plex"`
	// Overseerr holds the Overseerr configuration.
	Overseerr *OverseerrConfig `yaml:"overseerr" mapstructure:"overseerr"`
	// Tautulli holds the Tautulli configuration.
	Tautulli *TautulliConfig `yaml:"tautulli" mapstructure:"tautulli"`
	// Radarr holds the Radarr configuration. Optional.
	Radarr *RadarrConfig `yaml:"radarr" mapstructure:"radarr"`
	// Sonarr holds the Sonarr configuration. Optional.
	Sonarr *SonarrConfig `yaml:"sonarr" mapstructure:"sonarr"`
}

// KindConfig holds the per kind settings.
type KindConfig struct {
	// Enabled indicates whether sections of this kind are reconciled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Collections indicates whether requester smart collections are created.
	Collections bool `yaml:"collections" mapstructure:"collections"`
	// CollectionPrefix is the prefix of requester collection titles.
	CollectionPrefix string `yaml:"collection_prefix" mapstructure:"collection_prefix"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// Path is the path to the database file.
	Path string `yaml:"path" mapstructure:"path"`
}

// NtfyConfig holds the ntfy notification configuration.
type NtfyConfig struct {
	// Enabled indicates whether ntfy notifications are enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// ServerURL is the URL of the ntfy server.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	// Topic is the ntfy topic to publish notifications to.
	Topic string `yaml:"topic" mapstructure:"topic"`
	// Username is the ntfy username for authentication.
	Username string `yaml:"username" mapstructure:"username"`
	// Password is the ntfy password for authentication.
	Password string `yaml:"password" mapstructure:"password"`
	// Token is the ntfy token for authentication.
	Token string `yaml:"token" mapstructure:"token"`
}

// CacheConfig holds the configuration for the cache engine.
type CacheConfig struct {
	// Type is the type of cache engine to use (e.g., "memory", "redis").
	Type CacheType `yaml:"type" mapstructure:"type"`
	// RedisURL is the URL for the Redis cache if using Redis.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
}

// PlexConfig holds the configuration for the Plex server.
type PlexConfig struct {
	// URL is the base URL of the Plex server.
	URL string `yaml:"url" mapstructure:"url"`
	// Token is the X-Plex-Token.
	Token string `yaml:"token" mapstructure:"token"`
	// RequestsPerSecond limits the request rate against Plex.
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// OverseerrConfig holds the configuration for the Overseerr server.
type OverseerrConfig struct {
	// URL is the base URL of the Overseerr server.
	URL string `yaml:"url" mapstructure:"url"`
	// APIKey is the API key for the Overseerr server.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// TautulliConfig holds the configuration for the Tautulli server.
type TautulliConfig struct {
	// URL is the base URL of the Tautulli server.
	URL string `yaml:"url" mapstructure:"url"`
	// APIKey is the API key for the Tautulli server.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// SonarrConfig holds the configuration for the Sonarr server.
type SonarrConfig struct {
	// URL is the base URL of the Sonarr server.
	URL string `yaml:"url" mapstructure:"url"`
	// APIKey is the API key for the Sonarr server.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// RadarrConfig holds the configuration for the Radarr server.
type RadarrConfig struct {
	// URL is the base URL of the Radarr server.
	URL string `yaml:"url" mapstructure:"url"`
	// APIKey is the API key for the Radarr server.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// Load reads the configuration from path, or from the default locations if path is empty.
func Load(path string) (*Config, error) {
	v := viper.New()

	// bind some weirdly unsupported nested env vars
	bindNestedEnv(v)

	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("REQTAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFileFound bool
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.reqtag")
		v.AddConfigPath("/etc/reqtag")
	}

	if err := v.ReadInConfig(); err != nil {
		// If no config file is found, use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configFileFound = true
	}

	if configFileFound {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
		log.Debug("Some environment variables can be set with the REQTAG_ prefix to override config file values")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:3003")
	v.SetDefault("schedule", "0 3 * * *") // once a day
	v.SetDefault("dry_run", false)
	v.SetDefault("workers", 1)
	v.SetDefault("page_size", 100)
	v.SetDefault("request_filter", "available")
	v.SetDefault("request_selection", RequestSelectionFirst)
	v.SetDefault("stale_added_threshold.months", 6)
	v.SetDefault("stale_added_threshold.days", 0)
	v.SetDefault("stale_view_threshold.months", 3)
	v.SetDefault("stale_view_threshold.days", 0)
	v.SetDefault("sections", []string{})
	v.SetDefault("ignore_labels", []string{"reqtag-ignore"})
	v.SetDefault("api_key", "")

	v.SetDefault("movies.enabled", true)
	v.SetDefault("movies.collections", true)
	v.SetDefault("movies.collection_prefix", "Movies")
	v.SetDefault("shows.enabled", true)
	v.SetDefault("shows.collections", true)
	v.SetDefault("shows.collection_prefix", "TV Shows")

	v.SetDefault("plex.requests_per_second", 10)

	// Database defaults
	v.SetDefault("database.path", "./data/reqtag.db")

	// Cache defaults
	v.SetDefault("cache.type", CacheTypeMemory)
	v.SetDefault("cache.redis_url", "")

	// Ntfy defaults
	v.SetDefault("ntfy.enabled", false)
	v.SetDefault("ntfy.server_url", "https://ntfy.sh")
	v.SetDefault("ntfy.topic", "reqtag")
	v.SetDefault("ntfy.username", "")
	v.SetDefault("ntfy.password", "")
	v.SetDefault("ntfy.token", "")
}

func bindNestedEnv(v *viper.Viper) {
	v.MustBindEnv("plex.url", "REQTAG_PLEX_URL")
	v.MustBindEnv("plex.token", "REQTAG_PLEX_TOKEN")

	v.MustBindEnv("overseerr.url", "REQTAG_OVERSEERR_URL")
	v.MustBindEnv("overseerr.api_key", "REQTAG_OVERSEERR_API_KEY")

	v.MustBindEnv("tautulli.url", "REQTAG_TAUTULLI_URL")
	v.MustBindEnv("tautulli.api_key", "REQTAG_TAUTULLI_API_KEY")

	v.MustBindEnv("sonarr.url", "REQTAG_SONARR_URL")
	v.MustBindEnv("sonarr.api_key", "REQTAG_SONARR_API_KEY")

	v.MustBindEnv("radarr.url", "REQTAG_RADARR_URL")
	v.MustBindEnv("radarr.api_key", "REQTAG_RADARR_API_KEY")
}

func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing reqtag config")
	}

	if c.Schedule == "" {
		return fmt.Errorf("schedule is required")
	}
	// Basic validation for cron format (5 fields)
	if len(strings.Fields(c.Schedule)) != 5 {
		return fmt.Errorf("schedule must be a valid cron expression with 5 fields (minute hour day month weekday)")
	}

	if c.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be greater than 0")
	}

	if !slices.Contains([]RequestSelection{RequestSelectionFirst, RequestSelectionLatest}, c.RequestSelection) {
		return fmt.Errorf("request selection must be %q or %q", RequestSelectionFirst, RequestSelectionLatest)
	}

	if c.StaleAddedThreshold.Months < 0 || c.StaleAddedThreshold.Days < 0 ||
		c.StaleViewThreshold.Months < 0 || c.StaleViewThreshold.Days < 0 {
		return fmt.Errorf("stale thresholds must not be negative")
	}
	if c.StaleViewThreshold.IsZero() {
		return fmt.Errorf("stale view threshold must not be empty")
	}

	if c.Movies == nil {
		c.Movies = &KindConfig{}
	}
	if c.Shows == nil {
		c.Shows = &KindConfig{}
	}
	if !c.Movies.Enabled && !c.Shows.Enabled {
		return fmt.Errorf("at least one of movies or shows must be enabled")
	}

	if c.Cache != nil {
		if c.Cache.Type == "" {
			return fmt.Errorf("cache type is required when cache is enabled")
		}
		if c.Cache.Type == CacheTypeRedis && c.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when Redis cache is enabled") //nolint:staticcheck
		}
	} else {
		c.Cache = &CacheConfig{
			Type: CacheTypeMemory, // Default to in-memory cache if not enabled
		}
	}

	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Plex == nil {
		return fmt.Errorf("missing plex config")
	}
	if c.Plex.URL == "" {
		return fmt.Errorf("plex URL is required")
	}
	if c.Plex.Token == "" {
		return fmt.Errorf("plex token is required")
	}
	if c.Plex.RequestsPerSecond <= 0 {
		return fmt.Errorf("plex requests per second must be greater than 0")
	}

	if c.Overseerr == nil {
		return fmt.Errorf("missing overseerr config")
	}
	if c.Overseerr.URL == "" {
		return fmt.Errorf("overseerr URL is required")
	}
	if c.Overseerr.APIKey == "" {
		return fmt.Errorf("overseerr API key is required")
	}

	if c.Tautulli == nil {
		return fmt.Errorf("missing tautulli config")
	}
	if c.Tautulli.URL == "" {
		return fmt.Errorf("tautulli URL is required")
	}
	if c.Tautulli.APIKey == "" {
		return fmt.Errorf("tautulli API key is required")
	}

	// Radarr and Sonarr are optional, but need both fields once configured.
	if c.Radarr != nil && (c.Radarr.URL == "") != (c.Radarr.APIKey == "") {
		return fmt.Errorf("radarr needs both URL and API key")
	}
	if c.Sonarr != nil && (c.Sonarr.URL == "") != (c.Sonarr.APIKey == "") {
		return fmt.Errorf("sonarr needs both URL and API key")
	}

	if c.Ntfy != nil && c.Ntfy.Enabled {
		if c.Ntfy.ServerURL == "" {
			return fmt.Errorf("ntfy server URL is required when ntfy is enabled")
		}
		if c.Ntfy.Topic == "" {
			return fmt.Errorf("ntfy topic is required when ntfy is enabled")
		}
	}

	return nil
}

func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	c.Listen = urlSanitize(c.Listen)
	c.RequestFilter = strings.TrimSpace(c.RequestFilter)
	c.RequestSelection = RequestSelection(strings.ToLower(strings.TrimSpace(string(c.RequestSelection))))

	if c.Plex != nil {
		c.Plex.URL = urlSanitize(c.Plex.URL)
	}
	if c.Overseerr != nil {
		c.Overseerr.URL = urlSanitize(c.Overseerr.URL)
	}
	if c.Tautulli != nil {
		c.Tautulli.URL = urlSanitize(c.Tautulli.URL)
	}
	if c.Sonarr != nil {
		c.Sonarr.URL = urlSanitize(c.Sonarr.URL)
	}
	if c.Radarr != nil {
		c.Radarr.URL = urlSanitize(c.Radarr.URL)
	}
	if c.Ntfy != nil {
		c.Ntfy.ServerURL = urlSanitize(c.Ntfy.ServerURL)
	}
}

func urlSanitize(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}

// RadarrEnabled reports whether a Radarr server is configured.
func (c *Config) RadarrEnabled() bool {
	return c.Radarr != nil && c.Radarr.URL != ""
}

// SonarrEnabled reports whether a Sonarr server is configured.
func (c *Config) SonarrEnabled() bool {
	return c.Sonarr != nil && c.Sonarr.URL != ""
}

// SectionAllowed reports whether a section passes the allow-list.
// An empty allow-list allows every section.
func (c *Config) SectionAllowed(id, title string) bool {
	if len(c.Sections) == 0 {
		return true
	}
	return slices.ContainsFunc(c.Sections, func(s string) bool {
		s = strings.TrimSpace(s)
		return s == id || strings.EqualFold(s, title)
	})
}
