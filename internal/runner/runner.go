// Package runner drives one source's scraping tasks end to end.
package runner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/granthalaya/sanskritcrawl/internal/metrics"
	"github.com/granthalaya/sanskritcrawl/internal/ratelimit"
	"github.com/granthalaya/sanskritcrawl/internal/robots"
	"github.com/granthalaya/sanskritcrawl/internal/scrape"
	"github.com/granthalaya/sanskritcrawl/internal/validate"
)

// Runner executes tasks for a single source. It owns the source's token
// bucket and mutates its Task; the robots gate and validator are shared.
type Runner struct {
	source    scrape.SourceConfig
	adapter   scrape.SourceAdapter
	limiter   *ratelimit.Limiter
	gate      *robots.Gate
	validator *validate.Validator
	logger    *zap.Logger

	maxConcurrent int

	stats statsCounters
}

type statsCounters struct {
	requests           atomic.Uint64
	successes          atomic.Uint64
	failures           atomic.Uint64
	retries            atomic.Uint64
	robotsBlocks       atomic.Uint64
	validationFailures atomic.Uint64
}

// Stats is a snapshot of runner counters, accumulated across every attempt
// independent of task outcomes.
type Stats struct {
	RequestsMade       uint64          `json:"requests_made"`
	SuccessfulRequests uint64          `json:"successful_requests"`
	FailedRequests     uint64          `json:"failed_requests"`
	Retries            uint64          `json:"retries"`
	RobotsBlocks       uint64          `json:"robots_blocks"`
	ValidationFailures uint64          `json:"validation_failures"`
	RateLimiter        ratelimit.Stats `json:"rate_limiter"`
}

// New builds a Runner for one source.
func New(
	source scrape.SourceConfig,
	adapter scrape.SourceAdapter,
	gate *robots.Gate,
	validator *validate.Validator,
	maxConcurrent int,
	logger *zap.Logger,
) (*Runner, error) {
	limiter, err := ratelimit.New(source.Name, source.RateLimit, burstFor(source.RateLimit))
	if err != nil {
		return nil, fmt.Errorf("limiter for %s: %w", source.Name, err)
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Runner{
		source:        source,
		adapter:       adapter,
		limiter:       limiter,
		gate:          gate,
		validator:     validator,
		maxConcurrent: maxConcurrent,
		logger:        logger.With(zap.String("source", source.Name)),
	}, nil
}

// burstFor sizes the token bucket. Sub-1rps sources get no burst headroom so
// polite pacing holds from the first request.
func burstFor(rps float64) int {
	if rps < 1 {
		return 1
	}
	return int(rps)
}

// Source returns the runner's source configuration.
func (r *Runner) Source() scrape.SourceConfig { return r.source }

// Adapter returns the runner's site adapter.
func (r *Runner) Adapter() scrape.SourceAdapter { return r.adapter }

// RunTask processes every URL in the task with bounded concurrency and
// returns one Result per URL, in task order. No per-URL failure escapes as
// an error; failures are data on the Result.
func (r *Runner) RunTask(ctx context.Context, task *scrape.Task) []*scrape.Result {
	task.Start()
	r.logger.Info("task started",
		zap.String("task_id", task.ID),
		zap.Int("urls", len(task.URLs)),
	)

	results := make([]*scrape.Result, len(task.URLs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrent)
	for i, rawURL := range task.URLs {
		g.Go(func() error {
			results[i] = r.processURL(ctx, task, rawURL)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		task.AddResult(res.Status == scrape.StatusCompleted)
		metrics.ObservePage(task.Source, string(res.Status))
	}
	if task.FailedURLs == 0 {
		task.Complete()
	} else {
		task.Fail()
	}
	metrics.ObserveTask(string(task.Status))

	r.logger.Info("task finished",
		zap.String("task_id", task.ID),
		zap.String("status", string(task.Status)),
		zap.Int("successful", task.SuccessfulURLs),
		zap.Int("failed", task.FailedURLs),
	)
	return results
}

// processURL runs the full per-URL pipeline, re-entering it on every retry
// so rate limiting and robots checks apply to each attempt.
func (r *Runner) processURL(ctx context.Context, task *scrape.Task, rawURL string) *scrape.Result {
	result := scrape.NewResult(task.ID, rawURL)
	for {
		content, err := r.attempt(ctx, task, rawURL, result.RetryCount)
		if err == nil {
			result.Complete(content)
			r.stats.successes.Add(1)
			return result
		}

		if !scrape.IsRetryable(err) || result.RetryCount >= task.MaxRetries {
			result.Fail(err.Error(), scrape.ErrorTypeOf(err))
			r.logger.Warn("url failed",
				zap.String("url", rawURL),
				zap.String("error_type", result.ErrorType),
				zap.Int("retries", result.RetryCount),
				zap.Error(err),
			)
			return result
		}

		result.Retry()
		r.stats.retries.Add(1)
		metrics.ObserveRetry(task.Source)
		r.logger.Debug("retrying url",
			zap.String("url", rawURL),
			zap.Int("attempt", result.RetryCount),
			zap.Error(err),
		)
	}
}

// attempt performs one pass of the pipeline: rate limit, robots check,
// fetch+extract, validate.
func (r *Runner) attempt(ctx context.Context, task *scrape.Task, rawURL string, retryCount int) (*scrape.Content, error) {
	if u, err := url.Parse(rawURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, scrape.Terminal(scrape.ErrorTypeMalformedURL,
			fmt.Errorf("not an absolute url: %q", rawURL))
	}

	if err := r.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	if !r.gate.IsAllowed(ctx, r.source, rawURL) {
		r.stats.robotsBlocks.Add(1)
		return nil, scrape.Terminal(scrape.ErrorTypeRobots, fmt.Errorf("disallowed by robots.txt: %s", rawURL))
	}

	fetchCtx := ctx
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	start := time.Now()
	r.stats.requests.Add(1)
	content, err := r.adapter.FetchAndExtract(fetchCtx, rawURL)
	if err != nil {
		r.stats.failures.Add(1)
		// A fetch that outlived its own deadline is transient as long as
		// the task-level context is still live.
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, scrape.Retryable(scrape.ErrorTypeNetwork, err)
		}
		return nil, err
	}

	report := r.validator.Validate(content)
	if !report.Valid {
		r.stats.failures.Add(1)
		r.stats.validationFailures.Add(1)
		return nil, scrape.Retryable(scrape.ErrorTypeValidation,
			errors.New(strings.Join(report.Errors, "; ")))
	}

	content.ProcessingTime = time.Since(start)
	content.RetryCount = retryCount
	if content.Properties == nil {
		content.Properties = make(map[string]any)
	}
	content.Properties["quality_score"] = report.Score
	if len(report.Warnings) > 0 {
		content.Properties["validation_warnings"] = report.Warnings
	}
	return content, nil
}

// Stats returns a snapshot of the runner counters.
func (r *Runner) Stats() Stats {
	return Stats{
		RequestsMade:       r.stats.requests.Load(),
		SuccessfulRequests: r.stats.successes.Load(),
		FailedRequests:     r.stats.failures.Load(),
		Retries:            r.stats.retries.Load(),
		RobotsBlocks:       r.stats.robotsBlocks.Load(),
		ValidationFailures: r.stats.validationFailures.Load(),
		RateLimiter:        r.limiter.Stats(),
	}
}
