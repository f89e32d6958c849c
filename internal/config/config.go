// Package config loads and validates bulletin service configuration via Viper.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Headless HeadlessConfig `mapstructure:"headless"`
	PDF      PDFConfig      `mapstructure:"pdf"`
	Corpus   CorpusConfig   `mapstructure:"corpus"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Regions  RegionsConfig  `mapstructure:"regions"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RequestTimeout int      `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs the recursive crawl.
type CrawlerConfig struct {
	UserAgent       string  `mapstructure:"user_agent"`
	MaxDepthDefault int     `mapstructure:"max_depth_default"`
	FanOut          int     `mapstructure:"fan_out"`
	LinkScope       string  `mapstructure:"link_scope"`
	PageTimeoutSec  int     `mapstructure:"page_timeout_seconds"`
	DomainRPS       float64 `mapstructure:"domain_rps"`
	DomainBurst     int     `mapstructure:"domain_burst"`
	IgnoreRobots    bool    `mapstructure:"ignore_robots"`
}

// HeadlessConfig configures the chromedp rendering subsystem.
type HeadlessConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Mode            string `mapstructure:"mode"`
	PromoteMinBytes int    `mapstructure:"promote_min_bytes"`
	ExecPath        string `mapstructure:"exec_path"`
	NetworkIdleMs   int    `mapstructure:"network_idle_ms"`
	EvalTimeoutSec  int    `mapstructure:"eval_timeout_seconds"`
	DisableSandbox  bool   `mapstructure:"disable_sandbox"`
	WindowWidth     int    `mapstructure:"window_width"`
	WindowHeight    int    `mapstructure:"window_height"`
	BlockMediaTypes bool   `mapstructure:"block_media"`
}

// PDFConfig configures PDF downloads.
type PDFConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
	TempDir          string `mapstructure:"temp_dir"`
}

// CorpusConfig bounds the amount of text handed to the summarizer.
type CorpusConfig struct {
	SubLinkChars int `mapstructure:"sublink_chars"`
	SourceChars  int `mapstructure:"source_chars"`
	MaxChars     int `mapstructure:"max_chars"`
}

// LLMConfig configures the summarization backend.
type LLMConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
	MaxRetries  int     `mapstructure:"max_retries"`
	TimeoutSec  int     `mapstructure:"timeout_seconds"`
	MockDelayMs int     `mapstructure:"mock_delay_ms"`
}

// StorageConfig sets paths for settings and corpus artifacts.
type StorageConfig struct {
	DataDir      string `mapstructure:"data_dir"`
	HistoryLimit int    `mapstructure:"history_limit"`
	Backend      string `mapstructure:"backend"`
	GCSBucket    string `mapstructure:"gcs_bucket"`
	Prefix       string `mapstructure:"prefix"`
}

// DBConfig controls access to the bulletin archive database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// RegionsConfig points at an optional region/country mapping file.
type RegionsConfig struct {
	File string `mapstructure:"file"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BULLETIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
	applyPlatformEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"https://aibulletin.vercel.app",
	})
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("crawler.user_agent", "aibulletin-crawler/1.0")
	v.SetDefault("crawler.max_depth_default", 2)
	v.SetDefault("crawler.fan_out", 5)
	v.SetDefault("crawler.link_scope", "same-host")
	v.SetDefault("crawler.page_timeout_seconds", 30)
	v.SetDefault("crawler.domain_rps", 0)
	v.SetDefault("crawler.domain_burst", 1)
	v.SetDefault("crawler.ignore_robots", true)
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.mode", "always")
	v.SetDefault("headless.promote_min_bytes", 2048)
	v.SetDefault("headless.network_idle_ms", 3000)
	v.SetDefault("headless.eval_timeout_seconds", 10)
	v.SetDefault("headless.disable_sandbox", true)
	v.SetDefault("headless.window_width", 1366)
	v.SetDefault("headless.window_height", 768)
	v.SetDefault("headless.block_media", true)
	v.SetDefault("pdf.timeout_seconds", 30)
	v.SetDefault("pdf.max_retries", 3)
	v.SetDefault("pdf.backoff_initial_ms", 1000)
	v.SetDefault("pdf.backoff_max_ms", 10000)
	v.SetDefault("corpus.sublink_chars", 1000)
	v.SetDefault("corpus.source_chars", 4000)
	v.SetDefault("corpus.max_chars", 12000)
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.max_tokens", 1500)
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("llm.mock_delay_ms", 0)
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.history_limit", 10)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.prefix", "corpora")
	v.SetDefault("db.table", "bulletins")
	v.SetDefault("db.max_open_conns", 4)
	v.SetDefault("logging.development", true)
}

// applyPlatformEnv honors the unprefixed variables set by hosting platforms.
func applyPlatformEnv(cfg *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = key
	}
	if raw := os.Getenv("PORT"); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil {
			cfg.Server.Port = port
		}
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.MaxDepthDefault < 1 {
		return fmt.Errorf("crawler.max_depth_default must be >= 1")
	}
	if c.Crawler.FanOut <= 0 {
		return fmt.Errorf("crawler.fan_out must be > 0")
	}
	switch c.Crawler.LinkScope {
	case "same-host", "same-site", "any":
	default:
		return fmt.Errorf("crawler.link_scope must be one of same-host, same-site, any (got %q)", c.Crawler.LinkScope)
	}
	if c.Crawler.PageTimeoutSec <= 0 {
		return fmt.Errorf("crawler.page_timeout_seconds must be > 0")
	}
	switch c.Headless.Mode {
	case "always", "auto":
	default:
		return fmt.Errorf("headless.mode must be one of always, auto (got %q)", c.Headless.Mode)
	}
	if c.PDF.TimeoutSeconds <= 0 {
		return fmt.Errorf("pdf.timeout_seconds must be > 0")
	}
	if c.PDF.MaxRetries < 0 {
		return fmt.Errorf("pdf.max_retries must be >= 0")
	}
	if c.Corpus.SubLinkChars <= 0 || c.Corpus.SourceChars <= 0 || c.Corpus.MaxChars <= 0 {
		return fmt.Errorf("corpus caps must be > 0")
	}
	if c.Storage.HistoryLimit <= 0 {
		return fmt.Errorf("storage.history_limit must be > 0")
	}
	switch c.Storage.Backend {
	case "memory", "local":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.backend is gcs")
		}
	default:
		return fmt.Errorf("storage.backend must be one of memory, local, gcs (got %q)", c.Storage.Backend)
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// PageTimeout is the budget for loading one rendered page.
func (c Config) PageTimeout() time.Duration {
	return time.Duration(c.Crawler.PageTimeoutSec) * time.Second
}

// PDFTimeout is the budget for a single PDF download attempt.
func (c Config) PDFTimeout() time.Duration {
	return time.Duration(c.PDF.TimeoutSeconds) * time.Second
}
