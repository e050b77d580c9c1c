// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/granthalaya/sanskritcrawl/internal/scrape"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Scraper    ScraperConfig                  `mapstructure:"scraper"`
	HTTP       HTTPConfig                     `mapstructure:"http"`
	Storage    StorageConfig                  `mapstructure:"storage"`
	Validation ValidationConfig               `mapstructure:"validation"`
	Logging    LoggingConfig                  `mapstructure:"logging"`
	Metrics    MetricsConfig                  `mapstructure:"metrics"`
	Sources    map[string]scrape.SourceConfig `mapstructure:"sources"`
}

// ScraperConfig governs the per-source pipeline behavior.
type ScraperConfig struct {
	Concurrency   int    `mapstructure:"concurrency"`
	MaxRetries    int    `mapstructure:"max_retries"`
	UserAgent     string `mapstructure:"user_agent"`
	RespectRobots bool   `mapstructure:"respect_robots"`
}

// HTTPConfig configures the HTTP fetch layer.
type HTTPConfig struct {
	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
	VerifySSL      bool `mapstructure:"verify_ssl"`
}

// StorageConfig sets the content store location and dedup behavior.
type StorageConfig struct {
	Root        string `mapstructure:"root"`
	Deduplicate bool   `mapstructure:"deduplicate"`
}

// ValidationConfig bounds acceptable scraped content. An empty
// allowed_formats list permits every supported format.
type ValidationConfig struct {
	MinTextLength     int             `mapstructure:"min_text_length"`
	MaxTextLength     int             `mapstructure:"max_text_length"`
	AllowedFormats    []scrape.Format `mapstructure:"allowed_formats"`
	ForbiddenPatterns []string        `mapstructure:"forbidden_patterns"`
	ValidateEncoding  bool            `mapstructure:"validate_encoding"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment. An empty path skips the file
// and uses defaults plus SANSKRITCRAWL_* environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SANSKRITCRAWL")
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

	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources()
	}
	for name, src := range cfg.Sources {
		if src.Name == "" {
			src.Name = name
			cfg.Sources[name] = src
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scraper.concurrency", 3)
	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.user_agent", "SanskritCrawl/1.0 (research; +https://github.com/granthalaya/sanskritcrawl)")
	v.SetDefault("scraper.respect_robots", true)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.verify_ssl", true)
	v.SetDefault("storage.root", "scraped_texts")
	v.SetDefault("storage.deduplicate", true)
	v.SetDefault("validation.min_text_length", 100)
	v.SetDefault("validation.max_text_length", 10_000_000)
	v.SetDefault("validation.validate_encoding", true)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
}

// DefaultSources returns the bundled source registry.
func DefaultSources() map[string]scrape.SourceConfig {
	return map[string]scrape.SourceConfig{
		"gretil": {
			Name:             "gretil",
			BaseURL:          "http://gretil.sub.uni-goettingen.de/gretil.html",
			Description:      "Göttingen Register of Electronic Texts in Indian Languages",
			Language:         "sanskrit",
			Encoding:         "utf-8",
			RateLimit:        0.5,
			MaxPages:         100,
			SupportedFormats: []scrape.Format{scrape.FormatHTML, scrape.FormatPlainText, scrape.FormatXML},
		},
		"vedicheritage": {
			Name:             "vedicheritage",
			BaseURL:          "https://vedicheritage.gov.in",
			Description:      "Vedic Heritage Portal of the Government of India",
			Language:         "sanskrit",
			Encoding:         "utf-8",
			RateLimit:        1.0,
			MaxPages:         50,
			SupportedFormats: []scrape.Format{scrape.FormatHTML, scrape.FormatPDF},
		},
		"ambuda": {
			Name:             "ambuda",
			BaseURL:          "https://ambuda.org",
			Description:      "Ambuda digital Sanskrit library",
			Language:         "sanskrit",
			Encoding:         "utf-8",
			RateLimit:        1.0,
			MaxPages:         50,
			SupportedFormats: []scrape.Format{scrape.FormatHTML, scrape.FormatJSON},
		},
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Scraper.Concurrency <= 0 {
		return fmt.Errorf("scraper.concurrency must be > 0")
	}
	if c.Scraper.MaxRetries < 0 {
		return fmt.Errorf("scraper.max_retries must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root must be set")
	}
	if c.Validation.MinTextLength < 0 || c.Validation.MaxTextLength <= c.Validation.MinTextLength {
		return fmt.Errorf("validation text length bounds [%d, %d] are invalid",
			c.Validation.MinTextLength, c.Validation.MaxTextLength)
	}
	for _, f := range c.Validation.AllowedFormats {
		if _, err := scrape.ParseFormat(string(f)); err != nil {
			return fmt.Errorf("validation.allowed_formats: %w", err)
		}
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}
	for name, src := range c.Sources {
		if err := src.Validate(); err != nil {
			return err
		}
		if src.Name != name {
			return fmt.Errorf("source key %q does not match source name %q", name, src.Name)
		}
	}
	return nil
}

// FetchTimeout converts the HTTP timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
