package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/granthalaya/sanskritcrawl/internal/scrape"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
scraper:
  concurrency: 6
  max_retries: 5
  user_agent: test-agent
  respect_robots: false
http:
  timeout_seconds: 45
  verify_ssl: false
storage:
  root: /tmp/texts
  deduplicate: false
validation:
  min_text_length: 200
  max_text_length: 50000
  allowed_formats: ["html", "plaintext"]
  forbidden_patterns: ["page not found"]
  validate_encoding: true
logging:
  development: true
  level: debug
metrics:
  enabled: true
  addr: ":9191"
sources:
  gretil:
    name: gretil
    base_url: http://gretil.sub.uni-goettingen.de/gretil.html
    language: sanskrit
    encoding: utf-8
    rate_limit: 0.25
    max_pages: 10
    supported_formats: ["html"]
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Scraper.Concurrency != 6 || cfg.Scraper.RespectRobots {
		t.Fatalf("expected scraper overrides to apply, got %+v", cfg.Scraper)
	}
	if cfg.Storage.Root != "/tmp/texts" || cfg.Storage.Deduplicate {
		t.Fatalf("expected storage overrides to apply, got %+v", cfg.Storage)
	}
	if cfg.Validation.MinTextLength != 200 || len(cfg.Validation.ForbiddenPatterns) != 1 {
		t.Fatalf("expected validation overrides to apply, got %+v", cfg.Validation)
	}
	if want := []scrape.Format{scrape.FormatHTML, scrape.FormatPlainText}; len(cfg.Validation.AllowedFormats) != 2 ||
		cfg.Validation.AllowedFormats[0] != want[0] || cfg.Validation.AllowedFormats[1] != want[1] {
		t.Fatalf("expected allowed formats %v, got %v", want, cfg.Validation.AllowedFormats)
	}
	src, ok := cfg.Sources["gretil"]
	if !ok || src.RateLimit != 0.25 || src.MaxPages != 10 {
		t.Fatalf("expected gretil source to be loaded: %+v", cfg.Sources)
	}
	if len(cfg.Sources) != 1 {
		t.Fatalf("a configured sources block replaces the bundled registry, got %d sources", len(cfg.Sources))
	}
	if got := cfg.FetchTimeout(); got != 45*time.Second {
		t.Fatalf("expected fetch timeout 45s, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Scraper.RespectRobots {
		t.Fatalf("robots should be respected by default")
	}
	if cfg.Storage.Root != "scraped_texts" || !cfg.Storage.Deduplicate {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	for _, name := range []string{"gretil", "vedicheritage", "ambuda"} {
		src, ok := cfg.Sources[name]
		if !ok {
			t.Fatalf("expected bundled source %q", name)
		}
		if src.Name != name {
			t.Fatalf("source %q carries name %q", name, src.Name)
		}
		if src.RateLimit <= 0 || src.RateLimit > 1 {
			t.Fatalf("bundled sources stay at or below 1 req/s, got %v for %q", src.RateLimit, name)
		}
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Scraper:    ScraperConfig{Concurrency: 2, MaxRetries: 3},
		HTTP:       HTTPConfig{TimeoutSeconds: 10},
		Storage:    StorageConfig{Root: "texts"},
		Validation: ValidationConfig{MinTextLength: 10, MaxTextLength: 1000},
		Sources:    DefaultSources(),
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid concurrency",
			cfg: func() Config {
				c := base
				c.Scraper.Concurrency = 0
				return c
			}(),
			want: "scraper.concurrency",
		},
		{
			name: "negative retries",
			cfg: func() Config {
				c := base
				c.Scraper.MaxRetries = -1
				return c
			}(),
			want: "scraper.max_retries",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.HTTP.TimeoutSeconds = 0
				return c
			}(),
			want: "http.timeout_seconds",
		},
		{
			name: "missing storage root",
			cfg: func() Config {
				c := base
				c.Storage.Root = ""
				return c
			}(),
			want: "storage.root",
		},
		{
			name: "inverted text bounds",
			cfg: func() Config {
				c := base
				c.Validation.MinTextLength = 2000
				return c
			}(),
			want: "text length bounds",
		},
		{
			name: "unknown allowed format",
			cfg: func() Config {
				c := base
				c.Validation.AllowedFormats = []scrape.Format{"parchment"}
				return c
			}(),
			want: "allowed_formats",
		},
		{
			name: "no sources",
			cfg: func() Config {
				c := base
				c.Sources = nil
				return c
			}(),
			want: "at least one source",
		},
		{
			name: "bad source rate",
			cfg: func() Config {
				c := base
				c.Sources = map[string]scrape.SourceConfig{"gretil": {
					Name:    "gretil",
					BaseURL: "http://gretil.example.org",
				}}
				return c
			}(),
			want: "rate_limit",
		},
		{
			name: "key name mismatch",
			cfg: func() Config {
				c := base
				src := DefaultSources()["gretil"]
				c.Sources = map[string]scrape.SourceConfig{"other": src}
				return c
			}(),
			want: "does not match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
