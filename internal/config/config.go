// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/jobscall-crawler/internal/crawler"
)

// Fetch backends.
const (
	BackendFirecrawl = "firecrawl"
	BackendColly     = "colly"
)

// Storage backends.
const (
	StorageLocal  = "local"
	StorageGCS    = "gcs"
	StorageMemory = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Site      SiteConfig      `mapstructure:"site"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Firecrawl FirecrawlConfig `mapstructure:"firecrawl"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SiteConfig describes the job board being crawled.
type SiteConfig struct {
	Root            string   `mapstructure:"root"`
	Source          string   `mapstructure:"source"`
	JobMarker       string   `mapstructure:"job_marker"`
	Exclude         []string `mapstructure:"exclude"`
	ArticleSelector string   `mapstructure:"article_selector"`
	TimeSelector    string   `mapstructure:"time_selector"`
	// Timezone applies to posting timestamps that carry no zone.
	Timezone string `mapstructure:"timezone"`
}

// CrawlerConfig governs dispatcher and stopping behavior.
type CrawlerConfig struct {
	Backend         string `mapstructure:"backend"`
	Concurrency     int    `mapstructure:"concurrency"`
	MaxCandidates   int    `mapstructure:"max_candidates"`
	Mode            string `mapstructure:"mode"`
	TargetDate      string `mapstructure:"target_date"`
	FreshnessWindow string `mapstructure:"freshness_window"`
	FetchTimeoutSec int    `mapstructure:"fetch_timeout_seconds"`
	UserAgent       string `mapstructure:"user_agent"`
}

// FirecrawlConfig points at the Firecrawl service.
type FirecrawlConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	MapLimit   int    `mapstructure:"map_limit"`
	TimeoutSec int    `mapstructure:"timeout_seconds"`
}

// StorageConfig sets where artifacts are written and where records are
// uploaded.
type StorageConfig struct {
	Backend   string   `mapstructure:"backend"`
	LocalDir  string   `mapstructure:"local_dir"`
	GCSBucket string   `mapstructure:"gcs_bucket"`
	Prefix    string   `mapstructure:"prefix"`
	R2        R2Config `mapstructure:"r2"`
}

// R2Config reaches a Cloudflare R2 (or other S3-compatible) bucket.
type R2Config struct {
	AccountID       string `mapstructure:"account_id"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
}

// DBConfig controls access to the relational database. An empty DSN
// disables the posting table.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications. With
// DryRun set, notifications for TopicName are logged instead of sent.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
	DryRun    bool   `mapstructure:"dry_run"`
}

// GeminiConfig controls structured extraction.
type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
	Concurrency int     `mapstructure:"concurrency"`
}

// MetricsConfig exposes the ops router. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// envAliases binds the variable names used by the deployment scripts.
var envAliases = map[string]string{
	"firecrawl.base_url":           "FIRECRAWL_BASE_URL",
	"firecrawl.api_key":            "FIRECRAWL_API_KEY",
	"gemini.api_key":               "GEMINI_API_KEY",
	"storage.r2.account_id":        "R2_ACCOUNT_ID",
	"storage.r2.access_key_id":     "R2_ACCESS_KEY_ID",
	"storage.r2.secret_access_key": "R2_SECRET_ACCESS_KEY",
	"storage.r2.bucket":            "R2_BUCKET_NAME",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	return LoadWith(v, path)
}

// LoadWith builds a Config using v, which may already carry flag bindings.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		envKey := "CRAWLER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, alias); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", alias, err)
		}
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.root", "https://www.jobscall.me/job")
	v.SetDefault("site.source", "jobscallme")
	v.SetDefault("site.job_marker", "/job/")
	v.SetDefault("site.exclude", []string{"/job/jobscallmefb"})
	v.SetDefault("site.article_selector", "article")
	v.SetDefault("site.time_selector", "time")
	v.SetDefault("site.timezone", "UTC")
	v.SetDefault("crawler.backend", BackendFirecrawl)
	v.SetDefault("crawler.concurrency", 5)
	v.SetDefault("crawler.max_candidates", crawler.DefaultMaxCandidates)
	v.SetDefault("crawler.mode", string(crawler.ModeRollingWindow))
	v.SetDefault("crawler.freshness_window", "1mo")
	v.SetDefault("crawler.fetch_timeout_seconds", 60)
	v.SetDefault("crawler.user_agent", "jobcrawler/0.1")
	v.SetDefault("firecrawl.base_url", "http://localhost:3002")
	v.SetDefault("firecrawl.timeout_seconds", 60)
	v.SetDefault("storage.backend", StorageLocal)
	v.SetDefault("storage.local_dir", "job-data")
	v.SetDefault("db.table", "postings")
	v.SetDefault("pubsub.dry_run", false)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.concurrency", 4)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Site.Root) == "" {
		return fmt.Errorf("site.root is required")
	}
	if strings.TrimSpace(c.Site.Source) == "" {
		return fmt.Errorf("site.source is required")
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		return fmt.Errorf("site.timezone: %w", err)
	}
	switch c.Crawler.Backend {
	case BackendFirecrawl, BackendColly:
	default:
		return fmt.Errorf("crawler.backend must be %q or %q", BackendFirecrawl, BackendColly)
	}
	if c.Crawler.FetchTimeoutSec <= 0 {
		return fmt.Errorf("crawler.fetch_timeout_seconds must be > 0")
	}
	if _, err := c.CrawlConfig(); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" && !c.PubSub.DryRun {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is")
	}
	return nil
}

// CrawlConfig converts the crawler section into a validated run config.
func (c Config) CrawlConfig() (crawler.CrawlConfig, error) {
	cfg := crawler.CrawlConfig{
		Concurrency:   c.Crawler.Concurrency,
		MaxCandidates: c.Crawler.MaxCandidates,
		Mode:          crawler.Mode(c.Crawler.Mode),
	}
	if c.Crawler.TargetDate != "" {
		target, err := crawler.ParseTargetDate(c.Crawler.TargetDate)
		if err != nil {
			return crawler.CrawlConfig{}, err
		}
		cfg.TargetDate = target
	}
	if c.Crawler.FreshnessWindow != "" {
		w, err := crawler.ParseWindow(c.Crawler.FreshnessWindow)
		if err != nil {
			return crawler.CrawlConfig{}, &crawler.ConfigError{Field: "freshness_window", Reason: err.Error()}
		}
		cfg.FreshnessWindow = w
	}
	return crawler.NewCrawlConfig(cfg)
}

// FetchTimeout is the per-page fetch budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawler.FetchTimeoutSec) * time.Second
}

// Location is the zone applied to posting timestamps without one.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
