// Package stats assembles point-in-time snapshots of scraping activity.
package stats

import (
	"time"

	"github.com/granthalaya/sanskritcrawl/internal/runner"
	"github.com/granthalaya/sanskritcrawl/internal/store"
)

// Snapshot aggregates orchestrator counters, per-source runner stats and
// the state of the content store at one instant.
type Snapshot struct {
	StartedAt time.Time     `json:"started_at"`
	Uptime    time.Duration `json:"uptime"`

	TasksRun       uint64 `json:"tasks_run"`
	TasksCompleted uint64 `json:"tasks_completed"`
	TasksFailed    uint64 `json:"tasks_failed"`
	URLsScraped    uint64 `json:"urls_scraped"`
	URLsFailed     uint64 `json:"urls_failed"`
	Duplicates     uint64 `json:"duplicates"`
	StorageErrors  uint64 `json:"storage_errors"`

	Sources map[string]runner.Stats `json:"sources"`
	Store   store.Stats             `json:"store"`
}

// SuccessRate is the fraction of scraped URLs that succeeded, in [0, 1].
func (s Snapshot) SuccessRate() float64 {
	total := s.URLsScraped + s.URLsFailed
	if total == 0 {
		return 0
	}
	return float64(s.URLsScraped) / float64(total)
}
