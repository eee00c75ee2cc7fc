// Package config provides configuration management for merchantcrawl.
// It handles loading, validation, and access to configuration values
// from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/jonesrussell/merchantcrawl/internal/logger"
)

// Crawler defaults.
const (
	DefaultBatchSize         = 50
	DefaultMaxEmptyPages     = 3
	DefaultMaxDuplicatePages = 3
	DefaultMinWait           = time.Second
	DefaultMaxWait           = 2 * time.Second
	DefaultRequestTimeout    = 30 * time.Second
	DefaultUserAgent         = "merchantcrawl/1.0"
)

// Validation errors.
var (
	ErrNoElasticsearchAddress = errors.New("at least one elasticsearch address is required")
	ErrNoDatabaseHost         = errors.New("database host is required")
	ErrNoSourcesFile          = errors.New("sources file path is required")
	ErrInvalidWaitWindow      = errors.New("min_wait must not exceed max_wait")
)

// Config represents the application configuration.
type Config struct {
	// App holds application-wide settings
	App AppConfig `mapstructure:"app"`
	// Logger holds logging settings
	Logger logger.Config `mapstructure:"logger"`
	// Crawler holds crawl pacing and batching defaults, overridable
	// per source
	Crawler CrawlerConfig `mapstructure:"crawler"`
	// Elasticsearch holds the document store settings
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	// Database holds the Postgres checkpoint store settings
	Database DatabaseConfig `mapstructure:"database"`
	// Geocoder holds geocoding enrichment settings
	Geocoder GeocoderConfig `mapstructure:"geocoder"`
	// Notifier holds outbound notification settings
	Notifier NotifierConfig `mapstructure:"notifier"`
	// Server holds the HTTP API settings
	Server ServerConfig `mapstructure:"server"`
}

// AppConfig holds application-wide settings.
type AppConfig struct {
	Environment string `mapstructure:"environment"`
	// SourcesFile is the path of the YAML file declaring crawl sources
	SourcesFile string `mapstructure:"sources_file"`
}

// CrawlerConfig holds crawl pacing and batching defaults.
type CrawlerConfig struct {
	// BatchSize is the accumulator flush threshold
	BatchSize int `mapstructure:"batch_size"`
	// MaxEmptyPages ends an auto-detect crawl after this many
	// consecutive empty pages
	MaxEmptyPages int `mapstructure:"max_empty_pages"`
	// MaxDuplicatePages ends an auto-detect crawl after this many
	// consecutive repeated pages
	MaxDuplicatePages int `mapstructure:"max_duplicate_pages"`
	// MinWait and MaxWait bound the jittered inter-request delay
	MinWait time.Duration `mapstructure:"min_wait"`
	MaxWait time.Duration `mapstructure:"max_wait"`
	// RequestsPerSecond, when set, derives the wait window instead
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	// RequestTimeout is the per-request HTTP timeout
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// UserAgent sent with outbound requests
	UserAgent string `mapstructure:"user_agent"`
}

// ElasticsearchConfig holds the document store settings.
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	APIKey    string   `mapstructure:"api_key"`
	// MerchantIndex receives merchant documents keyed by natural key
	MerchantIndex string `mapstructure:"merchant_index"`
	// HistoryIndex receives one run-result document per run ID
	HistoryIndex string `mapstructure:"history_index"`
}

// DatabaseConfig holds the Postgres checkpoint store settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// GeocoderConfig holds geocoding enrichment settings.
type GeocoderConfig struct {
	// Enabled toggles enrichment; a disabled geocoder yields zero
	// geocoded merchants, not a run failure
	Enabled bool `mapstructure:"enabled"`
	// APIKey for the Google Maps geocoding API
	APIKey string `mapstructure:"api_key"`
	// Region bias for geocoding lookups
	Region string `mapstructure:"region"`
	// CacheEnabled memoizes address lookups within a run
	CacheEnabled bool `mapstructure:"cache_enabled"`
}

// NotifierConfig holds outbound notification settings.
type NotifierConfig struct {
	// SlackWebhookURL enables Slack notifications when non-empty
	SlackWebhookURL string `mapstructure:"slack_webhook_url"`
	Channel         string `mapstructure:"channel"`
	Username        string `mapstructure:"username"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Load reads configuration from the given file path, falling back to
// ./config.yaml, with environment variable overrides
// (e.g. DATABASE_HOST, ELASTICSEARCH_ADDRESSES).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// The config file is optional; defaults and environment
		// variables cover the rest.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults applies default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.sources_file", "sources.yaml")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "console")

	v.SetDefault("crawler.batch_size", DefaultBatchSize)
	v.SetDefault("crawler.max_empty_pages", DefaultMaxEmptyPages)
	v.SetDefault("crawler.max_duplicate_pages", DefaultMaxDuplicatePages)
	v.SetDefault("crawler.min_wait", DefaultMinWait.String())
	v.SetDefault("crawler.max_wait", DefaultMaxWait.String())
	v.SetDefault("crawler.request_timeout", DefaultRequestTimeout.String())
	v.SetDefault("crawler.user_agent", DefaultUserAgent)

	v.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.merchant_index", "merchants")
	v.SetDefault("elasticsearch.history_index", "crawl_history")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "merchantcrawl")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("geocoder.enabled", false)
	v.SetDefault("geocoder.region", "jp")
	v.SetDefault("geocoder.cache_enabled", true)

	v.SetDefault("notifier.username", "merchantcrawl")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
}

// Validate checks the configuration needed to run a crawl.
func (c *Config) Validate() error {
	if len(c.Elasticsearch.Addresses) == 0 {
		return ErrNoElasticsearchAddress
	}
	if c.Database.Host == "" {
		return ErrNoDatabaseHost
	}
	if c.App.SourcesFile == "" {
		return ErrNoSourcesFile
	}
	if c.Crawler.RequestsPerSecond == 0 && c.Crawler.MinWait > c.Crawler.MaxWait {
		return ErrInvalidWaitWindow
	}
	return nil
}
