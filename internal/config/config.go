// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Retry     RetryConfig     `mapstructure:"retry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Robots    RobotsConfig    `mapstructure:"robots"`
	Render    RenderConfig    `mapstructure:"render"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	API       APIConfig       `mapstructure:"api"`
}

// CrawlerConfig governs the crawl loop itself.
type CrawlerConfig struct {
	StartURL       string  `mapstructure:"start_url"`
	UserAgent      string  `mapstructure:"user_agent"`
	Concurrency    int     `mapstructure:"concurrency"`
	MaxURLs        int     `mapstructure:"max_urls"`
	MaxDepth       int     `mapstructure:"max_depth"`
	DelaySeconds   float64 `mapstructure:"delay_seconds"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// RetryConfig controls the classified-retry policy for fetches.
type RetryConfig struct {
	MaxRetries    int     `mapstructure:"max_retries"`
	BaseDelaySecs float64 `mapstructure:"base_delay_seconds"`
	MaxDelaySecs  float64 `mapstructure:"max_delay_seconds"`
}

// RateLimitConfig bounds how hard the target site is hit.
type RateLimitConfig struct {
	MaxInFlight       int     `mapstructure:"max_in_flight"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RobotsConfig toggles robots.txt handling.
type RobotsConfig struct {
	Respect bool `mapstructure:"respect"`
}

// RenderConfig configures the headless rendering subsystem.
type RenderConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	MaxSessions    int  `mapstructure:"max_sessions"`
	NavTimeoutSecs int  `mapstructure:"nav_timeout_seconds"`
	SettleDelaySec int  `mapstructure:"settle_delay_seconds"`
}

// OutputConfig sets where state and the final report land.
type OutputConfig struct {
	StateFile            string `mapstructure:"state_file"`
	DatabaseFile         string `mapstructure:"database_file"`
	ReportFile           string `mapstructure:"report_file"`
	SnapshotIntervalSecs int    `mapstructure:"snapshot_interval_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// APIConfig controls the optional status/metrics HTTP server.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.user_agent", "docsite-crawler/1.0")
	v.SetDefault("crawler.concurrency", 5)
	v.SetDefault("crawler.max_urls", 0)
	v.SetDefault("crawler.max_depth", 0)
	v.SetDefault("crawler.delay_seconds", 1.0)
	v.SetDefault("crawler.timeout_seconds", 30)
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay_seconds", 1.0)
	v.SetDefault("retry.max_delay_seconds", 60.0)
	v.SetDefault("rate_limit.max_in_flight", 5)
	v.SetDefault("rate_limit.requests_per_second", 2.0)
	v.SetDefault("rate_limit.burst", 1)
	v.SetDefault("robots.respect", true)
	v.SetDefault("render.enabled", false)
	v.SetDefault("render.max_sessions", 1)
	v.SetDefault("render.nav_timeout_seconds", 30)
	v.SetDefault("render.settle_delay_seconds", 2)
	v.SetDefault("output.state_file", "crawler_state.json")
	v.SetDefault("output.database_file", "crawler_state.db")
	v.SetDefault("output.report_file", "crawl_report.txt")
	v.SetDefault("output.snapshot_interval_seconds", 30)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.addr", ":9090")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Crawler.MaxURLs < 0 {
		return fmt.Errorf("crawler.max_urls must be >= 0")
	}
	if c.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0")
	}
	if c.RateLimit.MaxInFlight <= 0 {
		return fmt.Errorf("rate_limit.max_in_flight must be > 0")
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate_limit.requests_per_second must be > 0")
	}
	if c.Render.Enabled && c.Render.MaxSessions <= 0 {
		return fmt.Errorf("render.max_sessions must be > 0 when rendering is enabled")
	}
	if c.API.Enabled && c.API.Addr == "" {
		return fmt.Errorf("api.addr must be set when the api is enabled")
	}
	return nil
}

// Delay converts the configured politeness delay to a duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Crawler.DelaySeconds * float64(time.Second))
}

// Timeout converts the per-request timeout to a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}
