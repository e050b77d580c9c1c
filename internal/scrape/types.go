// Package scrape defines core types shared across the scraping subsystems.
package scrape

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Format identifies the representation of a scraped document.
type Format string

// Supported content formats.
const (
	FormatHTML      Format = "html"
	FormatPDF       Format = "pdf"
	FormatPlainText Format = "plaintext"
	FormatXML       Format = "xml"
	FormatJSON      Format = "json"
)

// AllFormats lists every supported format.
func AllFormats() []Format {
	return []Format{FormatHTML, FormatPDF, FormatPlainText, FormatXML, FormatJSON}
}

// ParseFormat normalizes a format string.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatHTML, FormatPDF, FormatPlainText, FormatXML, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// Ext returns the file extension used when persisting this format.
func (f Format) Ext() string {
	if f == FormatPlainText {
		return "txt"
	}
	return string(f)
}

// Status represents the lifecycle state of a task or a per-URL result.
type Status string

// Status values recorded on tasks and results.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRetrying  Status = "retrying"
)

// SourceConfig describes one external text repository. Immutable once loaded.
type SourceConfig struct {
	Name             string   `mapstructure:"name" json:"name"`
	BaseURL          string   `mapstructure:"base_url" json:"base_url"`
	Description      string   `mapstructure:"description" json:"description,omitempty"`
	Language         string   `mapstructure:"language" json:"language"`
	Encoding         string   `mapstructure:"encoding" json:"encoding"`
	RobotsTxtURL     string   `mapstructure:"robots_txt_url" json:"robots_txt_url,omitempty"`
	RateLimit        float64  `mapstructure:"rate_limit" json:"rate_limit"`
	MaxPages         int      `mapstructure:"max_pages" json:"max_pages"`
	SupportedFormats []Format `mapstructure:"supported_formats" json:"supported_formats"`
}

// Validate checks for obviously bad source configuration.
func (s SourceConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("source name must be set")
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("source %s: base_url %q is not an absolute URL", s.Name, s.BaseURL)
	}
	if s.RateLimit <= 0 {
		return fmt.Errorf("source %s: rate_limit must be > 0", s.Name)
	}
	if s.MaxPages <= 0 {
		return fmt.Errorf("source %s: max_pages must be > 0", s.Name)
	}
	for _, f := range s.SupportedFormats {
		if _, err := ParseFormat(string(f)); err != nil {
			return fmt.Errorf("source %s: %w", s.Name, err)
		}
	}
	return nil
}

// Content is the structured representation of one scraped page. A Content is
// produced by a SourceAdapter, validated before persistence, and never
// mutated afterwards; each retry attempt produces a fresh value.
type Content struct {
	Text  string `json:"-"`
	Title string `json:"title"`
	URL   string `json:"url"`

	Source   string `json:"source"`
	Format   Format `json:"format"`
	Language string `json:"language"`
	Category string `json:"category,omitempty"`
	Author   string `json:"author,omitempty"`

	ScrapedAt time.Time `json:"scraped_at"`
	FileSize  int64     `json:"file_size"`
	Encoding  string    `json:"encoding"`
	PageCount int       `json:"page_count,omitempty"`

	ProcessingTime  time.Duration `json:"processing_time_ns"`
	RetryCount      int           `json:"retry_count"`
	ConfidenceScore float64       `json:"confidence_score"`

	Tags       []string       `json:"tags,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Task is one batch scraping operation over a list of URLs for one source.
// A Task is mutated only by its owning runner and is terminal once its
// status reaches Completed or Failed.
type Task struct {
	ID     string   `json:"id"`
	Source string   `json:"source"`
	URLs   []string `json:"urls"`

	MaxRetries int           `json:"max_retries"`
	Timeout    time.Duration `json:"timeout"`
	RateLimit  float64       `json:"rate_limit"`

	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	TotalURLs      int `json:"total_urls"`
	ProcessedURLs  int `json:"processed_urls"`
	SuccessfulURLs int `json:"successful_urls"`
	FailedURLs     int `json:"failed_urls"`
}

// NewTask builds a pending Task. URLs must be non-empty; the caller is
// expected to have truncated the list to its page budget already.
func NewTask(id, source string, urls []string, maxRetries int, timeout time.Duration, rateLimit float64) (*Task, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("task %s: urls must not be empty", id)
	}
	return &Task{
		ID:         id,
		Source:     source,
		URLs:       urls,
		MaxRetries: maxRetries,
		Timeout:    timeout,
		RateLimit:  rateLimit,
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
		TotalURLs:  len(urls),
	}, nil
}

// Start marks the task running.
func (t *Task) Start() {
	now := time.Now().UTC()
	t.Status = StatusRunning
	t.StartedAt = &now
}

// Complete marks the task completed.
func (t *Task) Complete() {
	now := time.Now().UTC()
	t.Status = StatusCompleted
	t.CompletedAt = &now
}

// Fail marks the task failed.
func (t *Task) Fail() {
	now := time.Now().UTC()
	t.Status = StatusFailed
	t.CompletedAt = &now
}

// AddResult records the outcome of one URL.
func (t *Task) AddResult(success bool) {
	t.ProcessedURLs++
	if success {
		t.SuccessfulURLs++
	} else {
		t.FailedURLs++
	}
}

// Progress returns the fraction of URLs processed, in percent.
func (t *Task) Progress() float64 {
	if t.TotalURLs == 0 {
		return 0
	}
	return float64(t.ProcessedURLs) / float64(t.TotalURLs) * 100
}

// Result is the outcome record for one URL within a Task. On each retry the
// result is superseded in place: the retry count increments and the error
// fields are cleared.
type Result struct {
	TaskID string `json:"task_id"`
	URL    string `json:"url"`
	Status Status `json:"status"`

	Content *Content `json:"content,omitempty"`

	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	ProcessingTime time.Duration `json:"processing_time_ns"`

	ErrorMessage string `json:"error_message,omitempty"`
	ErrorType    string `json:"error_type,omitempty"`
	RetryCount   int    `json:"retry_count"`
}

// NewResult builds a running Result for one URL attempt sequence.
func NewResult(taskID, rawURL string) *Result {
	return &Result{
		TaskID:    taskID,
		URL:       rawURL,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Complete marks the result completed with its extracted content.
func (r *Result) Complete(content *Content) {
	now := time.Now().UTC()
	r.Status = StatusCompleted
	r.CompletedAt = &now
	r.ProcessingTime = now.Sub(r.StartedAt)
	r.Content = content
}

// Fail marks the result terminally failed.
func (r *Result) Fail(message, errorType string) {
	now := time.Now().UTC()
	r.Status = StatusFailed
	r.CompletedAt = &now
	r.ProcessingTime = now.Sub(r.StartedAt)
	r.ErrorMessage = message
	r.ErrorType = errorType
}

// Retry marks the result for another attempt, clearing the previous error.
func (r *Result) Retry() {
	r.Status = StatusRetrying
	r.RetryCount++
	r.ErrorMessage = ""
	r.ErrorType = ""
}
