// Package orchestrator coordinates scraping across all configured sources:
// adapter construction, task execution, persistence and stats.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/granthalaya/sanskritcrawl/internal/adapters"
	"github.com/granthalaya/sanskritcrawl/internal/clock"
	"github.com/granthalaya/sanskritcrawl/internal/config"
	"github.com/granthalaya/sanskritcrawl/internal/id"
	"github.com/granthalaya/sanskritcrawl/internal/metrics"
	"github.com/granthalaya/sanskritcrawl/internal/robots"
	"github.com/granthalaya/sanskritcrawl/internal/runner"
	"github.com/granthalaya/sanskritcrawl/internal/scrape"
	"github.com/granthalaya/sanskritcrawl/internal/stats"
	"github.com/granthalaya/sanskritcrawl/internal/store"
	"github.com/granthalaya/sanskritcrawl/internal/validate"
)

// AdapterFactory builds the site adapter for one source. Swappable in tests.
type AdapterFactory func(source scrape.SourceConfig, client *adapters.Client, logger *zap.Logger) (scrape.SourceAdapter, error)

// Option customizes orchestrator construction.
type Option func(*options)

type options struct {
	factory AdapterFactory
	clock   clock.Clock
}

// WithAdapterFactory overrides how per-source adapters are built.
func WithAdapterFactory(f AdapterFactory) Option {
	return func(o *options) { o.factory = f }
}

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// Orchestrator wires runners, the robots gate, the validator and the
// content store together and exposes the operations the CLI calls.
type Orchestrator struct {
	cfg       config.Config
	logger    *zap.Logger
	clock     clock.Clock
	ids       *id.Generator
	store     *store.Store
	validator *validate.Validator
	runners   map[string]*runner.Runner
	startedAt time.Time

	tasksRun       atomic.Uint64
	tasksCompleted atomic.Uint64
	tasksFailed    atomic.Uint64
	urlsScraped    atomic.Uint64
	urlsFailed     atomic.Uint64
	duplicates     atomic.Uint64
	storageErrors  atomic.Uint64
}

// New builds an orchestrator from configuration. A source whose adapter
// cannot be constructed is skipped with a warning rather than failing the
// whole run; New fails only when no source survives or a shared component
// cannot be built.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*Orchestrator, error) {
	o := options{factory: defaultFactory, clock: clock.System()}
	for _, opt := range opts {
		opt(&o)
	}

	validator, err := validate.New(validate.Config{
		MinTextLength:     cfg.Validation.MinTextLength,
		MaxTextLength:     cfg.Validation.MaxTextLength,
		AllowedFormats:    cfg.Validation.AllowedFormats,
		ForbiddenPatterns: cfg.Validation.ForbiddenPatterns,
		ValidateEncoding:  cfg.Validation.ValidateEncoding,
	})
	if err != nil {
		return nil, fmt.Errorf("build validator: %w", err)
	}

	contentStore, err := store.New(store.Config{
		Root:               cfg.Storage.Root,
		DuplicateDetection: cfg.Storage.Deduplicate,
	}, logger, o.clock)
	if err != nil {
		return nil, fmt.Errorf("open content store: %w", err)
	}

	gate := robots.New(robots.Config{
		UserAgent: cfg.Scraper.UserAgent,
		Respect:   cfg.Scraper.RespectRobots,
		Timeout:   cfg.FetchTimeout(),
		VerifySSL: cfg.HTTP.VerifySSL,
	}, logger)

	client, err := adapters.NewClient(adapters.ClientConfig{
		UserAgent: cfg.Scraper.UserAgent,
		Timeout:   cfg.FetchTimeout(),
		VerifySSL: cfg.HTTP.VerifySSL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build fetch client: %w", err)
	}

	orc := &Orchestrator{
		cfg:       cfg,
		logger:    logger,
		clock:     o.clock,
		ids:       id.New(),
		store:     contentStore,
		validator: validator,
		runners:   make(map[string]*runner.Runner, len(cfg.Sources)),
		startedAt: o.clock.Now(),
	}

	for name, src := range cfg.Sources {
		adapter, err := o.factory(src, client, logger)
		if err != nil {
			logger.Warn("skipping source, adapter init failed",
				zap.String("source", name), zap.Error(err))
			continue
		}
		r, err := runner.New(src, adapter, gate, validator, cfg.Scraper.Concurrency, logger)
		if err != nil {
			logger.Warn("skipping source, runner init failed",
				zap.String("source", name), zap.Error(err))
			continue
		}
		orc.runners[name] = r
	}
	if len(orc.runners) == 0 {
		return nil, errors.New("no usable sources configured")
	}
	return orc, nil
}

func defaultFactory(source scrape.SourceConfig, client *adapters.Client, logger *zap.Logger) (scrape.SourceAdapter, error) {
	return adapters.New(source, client, logger)
}

// ScrapeSource runs one task against a source. With no URLs given, the
// adapter discovers them from the source's base URL first. The returned
// results carry per-URL outcomes in task order, so callers can tell partial
// from total failure; an error means the task could not start.
func (o *Orchestrator) ScrapeSource(ctx context.Context, sourceName string, urls []string) (*scrape.Task, []*scrape.Result, error) {
	r, ok := o.runners[sourceName]
	if !ok {
		return nil, nil, fmt.Errorf("unknown source %q", sourceName)
	}
	src := r.Source()

	if len(urls) == 0 {
		var err error
		urls, err = o.DiscoverURLs(ctx, sourceName, src.MaxPages)
		if err != nil {
			return nil, nil, fmt.Errorf("discover %s: %w", sourceName, err)
		}
	}
	if len(urls) > src.MaxPages {
		urls = urls[:src.MaxPages]
	}

	taskID, err := o.ids.TaskID(sourceName, o.clock.Now())
	if err != nil {
		return nil, nil, err
	}
	task, err := scrape.NewTask(taskID, sourceName, urls,
		o.cfg.Scraper.MaxRetries, o.cfg.FetchTimeout(), src.RateLimit)
	if err != nil {
		return nil, nil, err
	}

	o.tasksRun.Add(1)
	results := r.RunTask(ctx, task)
	o.persist(results)

	if task.Status == scrape.StatusCompleted {
		o.tasksCompleted.Add(1)
	} else {
		o.tasksFailed.Add(1)
	}
	return task, results, nil
}

// persist writes every completed result to the content store. A duplicate
// is routine and leaves the result completed; any other storage failure is
// logged and counted but never fails the task retroactively.
func (o *Orchestrator) persist(results []*scrape.Result) {
	for _, res := range results {
		if res.Status != scrape.StatusCompleted {
			o.urlsFailed.Add(1)
			continue
		}
		o.urlsScraped.Add(1)
		path, err := o.store.Store(res.Content)
		if err != nil {
			var dup *store.DuplicateError
			if errors.As(err, &dup) {
				o.duplicates.Add(1)
				metrics.ObserveDuplicate(res.Content.Source)
				o.logger.Debug("duplicate content skipped",
					zap.String("url", res.URL), zap.String("hash", dup.Hash))
				continue
			}
			o.storageErrors.Add(1)
			o.logger.Error("failed to persist content",
				zap.String("url", res.URL), zap.Error(err))
			continue
		}
		o.logger.Debug("content stored",
			zap.String("url", res.URL), zap.String("path", path))
	}
}

// ScrapeAllSources scrapes every configured source concurrently and returns
// the per-URL results by source name. Sources that could not start are
// absent from the result and logged.
func (o *Orchestrator) ScrapeAllSources(ctx context.Context) map[string][]*scrape.Result {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string][]*scrape.Result, len(o.runners))
	)
	for name := range o.runners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, res, err := o.ScrapeSource(ctx, name, nil)
			if err != nil {
				o.logger.Error("source scrape failed",
					zap.String("source", name), zap.Error(err))
				return
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// DiscoverURLs asks the source's adapter for scrapeable URLs.
func (o *Orchestrator) DiscoverURLs(ctx context.Context, sourceName string, maxPages int) ([]string, error) {
	r, ok := o.runners[sourceName]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", sourceName)
	}
	src := r.Source()
	if maxPages <= 0 || maxPages > src.MaxPages {
		maxPages = src.MaxPages
	}
	urls, err := r.Adapter().Discover(ctx, src.BaseURL, maxPages)
	if err != nil {
		return nil, err
	}
	o.logger.Info("discovery finished",
		zap.String("source", sourceName), zap.Int("urls", len(urls)))
	return urls, nil
}

// StoredReport pairs a stored file with its re-validation outcome.
type StoredReport struct {
	Path   string          `json:"path"`
	Report validate.Report `json:"report"`
}

// ValidateStoredContent re-runs validation over already stored files,
// returning one report per file in path order. Files that cannot be loaded
// are reported invalid rather than aborting the sweep.
func (o *Orchestrator) ValidateStoredContent(f store.Filters) ([]StoredReport, error) {
	paths, err := o.store.List(f)
	if err != nil {
		return nil, err
	}
	reports := make([]StoredReport, 0, len(paths))
	for _, p := range paths {
		content, err := o.store.Load(p)
		if err != nil {
			reports = append(reports, StoredReport{
				Path:   p,
				Report: validate.Report{Errors: []string{fmt.Sprintf("load: %v", err)}},
			})
			continue
		}
		reports = append(reports, StoredReport{Path: p, Report: o.validator.Validate(content)})
	}
	return reports, nil
}

// CleanupStorage removes orphaned files and returns how many were deleted.
func (o *Orchestrator) CleanupStorage() (int, error) {
	return o.store.CleanupOrphans()
}

// ListDuplicates reports groups of stored files with identical content.
func (o *Orchestrator) ListDuplicates() ([]store.DuplicateGroup, error) {
	return o.store.FindDuplicateGroups()
}

// ExportContent copies matching stored files into dest.
func (o *Orchestrator) ExportContent(dest string, f store.Filters) error {
	return o.store.Export(dest, f)
}

// ListSources returns the usable source names, sorted.
func (o *Orchestrator) ListSources() []string {
	names := make([]string, 0, len(o.runners))
	for name := range o.runners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SourceInfo returns the configuration of one source.
func (o *Orchestrator) SourceInfo(sourceName string) (scrape.SourceConfig, error) {
	r, ok := o.runners[sourceName]
	if !ok {
		return scrape.SourceConfig{}, fmt.Errorf("unknown source %q", sourceName)
	}
	return r.Source(), nil
}

// GetStats assembles a snapshot across runners and the store.
func (o *Orchestrator) GetStats() (stats.Snapshot, error) {
	storeStats, err := o.store.Stats()
	if err != nil {
		return stats.Snapshot{}, err
	}
	perSource := make(map[string]runner.Stats, len(o.runners))
	for name, r := range o.runners {
		perSource[name] = r.Stats()
	}
	now := o.clock.Now()
	return stats.Snapshot{
		StartedAt:      o.startedAt,
		Uptime:         now.Sub(o.startedAt),
		TasksRun:       o.tasksRun.Load(),
		TasksCompleted: o.tasksCompleted.Load(),
		TasksFailed:    o.tasksFailed.Load(),
		URLsScraped:    o.urlsScraped.Load(),
		URLsFailed:     o.urlsFailed.Load(),
		Duplicates:     o.duplicates.Load(),
		StorageErrors:  o.storageErrors.Load(),
		Sources:        perSource,
		Store:          storeStats,
	}, nil
}

// Close releases every adapter.
func (o *Orchestrator) Close() error {
	var errs []error
	for name, r := range o.runners {
		if err := r.Adapter().Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
