// Package metrics exposes Prometheus collectors for the scraping pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesTotal          *prometheus.CounterVec
	retriesTotal        *prometheus.CounterVec
	robotsBlockedTotal  *prometheus.CounterVec
	duplicatesTotal     *prometheus.CounterVec
	storedBytesTotal    *prometheus.CounterVec
	rateLimitDelaySecs  *prometheus.HistogramVec
	tasksTotal          *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pages_total",
				Help: "Pages processed, labeled by source and outcome.",
			},
			[]string{"source", "status"},
		)
		retriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_retries_total",
				Help: "Retry attempts, labeled by source.",
			},
			[]string{"source"},
		)
		robotsBlockedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_robots_blocked_total",
				Help: "URLs denied by robots.txt, labeled by source.",
			},
			[]string{"source"},
		)
		duplicatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_duplicates_total",
				Help: "Stored-content duplicate hits, labeled by source.",
			},
			[]string{"source"},
		)
		storedBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_stored_bytes_total",
				Help: "Bytes persisted to the content store, labeled by source.",
			},
			[]string{"source"},
		)
		rateLimitDelaySecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_rate_limit_delay_seconds",
				Help:    "Delay introduced by the per-source token bucket.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"source"},
		)
		tasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_tasks_total",
				Help: "Scraping tasks run, labeled by status.",
			},
			[]string{"status"},
		)
	})
}

// ObservePage records one processed URL outcome.
func ObservePage(source, status string) {
	if pagesTotal != nil {
		pagesTotal.WithLabelValues(source, status).Inc()
	}
}

// ObserveRetry records a retry attempt.
func ObserveRetry(source string) {
	if retriesTotal != nil {
		retriesTotal.WithLabelValues(source).Inc()
	}
}

// ObserveRobotsBlock records a robots.txt denial.
func ObserveRobotsBlock(source string) {
	if robotsBlockedTotal != nil {
		robotsBlockedTotal.WithLabelValues(source).Inc()
	}
}

// ObserveDuplicate records a dedup hit during persistence.
func ObserveDuplicate(source string) {
	if duplicatesTotal != nil {
		duplicatesTotal.WithLabelValues(source).Inc()
	}
}

// ObserveStoredBytes records bytes written to the content store.
func ObserveStoredBytes(source string, n int64) {
	if storedBytesTotal != nil {
		storedBytesTotal.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveRateLimitDelay records time spent waiting on the token bucket.
func ObserveRateLimitDelay(source string, d time.Duration) {
	if rateLimitDelaySecs != nil {
		rateLimitDelaySecs.WithLabelValues(source).Observe(d.Seconds())
	}
}

// ObserveTask records a finished task outcome.
func ObserveTask(status string) {
	if tasksTotal != nil {
		tasksTotal.WithLabelValues(status).Inc()
	}
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
