// Package robots enforces robots.txt directives per source.
package robots

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/granthalaya/sanskritcrawl/internal/metrics"
	"github.com/granthalaya/sanskritcrawl/internal/scrape"
)

// maxRobotsBytes bounds how much of a robots.txt response is read.
const maxRobotsBytes = 1 << 20

// Config controls Gate behavior.
type Config struct {
	UserAgent string
	Respect   bool
	Timeout   time.Duration
	VerifySSL bool
}

// Gate fetches robots.txt once per source and answers allow/deny per URL.
// A fetch or parse failure of the robots check itself never blocks scraping;
// the gate fails open.
type Gate struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger

	mu      sync.Mutex
	cache   map[string]*robotstxt.RobotsData
	blocked map[string]uint64
}

// New builds a Gate. When cfg.Respect is false every check allows.
func New(cfg Config, logger *zap.Logger) *Gate {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	transport := http.DefaultTransport
	if !cfg.VerifySSL {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // operator opt-out for archives with broken certs
		}
	}
	return &Gate{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		logger:  logger,
		cache:   make(map[string]*robotstxt.RobotsData),
		blocked: make(map[string]uint64),
	}
}

// IsAllowed reports whether rawURL may be fetched for the given source.
// Denials are counted per source.
func (g *Gate) IsAllowed(ctx context.Context, source scrape.SourceConfig, rawURL string) bool {
	if !g.cfg.Respect {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	data := g.load(ctx, source)
	if data == nil {
		return true
	}
	group := data.FindGroup(g.cfg.UserAgent)
	if group == nil {
		return true
	}
	if !group.Test(pathWithQuery(parsed)) {
		g.mu.Lock()
		g.blocked[source.Name]++
		g.mu.Unlock()
		metrics.ObserveRobotsBlock(source.Name)
		return false
	}
	return true
}

// CrawlDelay returns the Crawl-delay advertised for the configured agent, or
// zero. The delay is exposed for reporting only; the token bucket governs
// pacing.
func (g *Gate) CrawlDelay(ctx context.Context, source scrape.SourceConfig) time.Duration {
	if !g.cfg.Respect {
		return 0
	}
	data := g.load(ctx, source)
	if data == nil {
		return 0
	}
	if group := data.FindGroup(g.cfg.UserAgent); group != nil {
		return group.CrawlDelay
	}
	return 0
}

// BlockedCount returns how many checks were denied for the source.
func (g *Gate) BlockedCount(source string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blocked[source]
}

// load returns the cached robots data for the source, fetching it once.
// A nil return means the check could not be performed and access is allowed.
func (g *Gate) load(ctx context.Context, source scrape.SourceConfig) *robotstxt.RobotsData {
	g.mu.Lock()
	data, cached := g.cache[source.Name]
	g.mu.Unlock()
	if cached {
		return data
	}

	data, err := g.fetch(ctx, source)
	if err != nil {
		g.logger.Warn("robots fetch failed; allowing access",
			zap.String("source", source.Name),
			zap.Error(err),
		)
		data = nil
	}

	g.mu.Lock()
	g.cache[source.Name] = data
	g.mu.Unlock()
	return data
}

func (g *Gate) fetch(ctx context.Context, source scrape.SourceConfig) (*robotstxt.RobotsData, error) {
	robotsURL := source.RobotsTxtURL
	if robotsURL == "" {
		base, err := url.Parse(source.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		base.Path = "/robots.txt"
		base.RawQuery = ""
		base.Fragment = ""
		robotsURL = base.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", g.cfg.UserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			g.logger.Debug("close robots body", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	// FromStatusAndBytes maps 404 to allow-all and 401/403 to deny-all,
	// matching conventional crawler behavior.
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	return data, nil
}

func pathWithQuery(u *url.URL) string {
	p := u.Path
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		return p + "?" + u.RawQuery
	}
	return strings.TrimSpace(p)
}
