package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/granthalaya/sanskritcrawl/internal/robots"
	"github.com/granthalaya/sanskritcrawl/internal/scrape"
	"github.com/granthalaya/sanskritcrawl/internal/validate"
)

// fakeAdapter returns canned content or errors per URL, recording call counts.
type fakeAdapter struct {
	mu     sync.Mutex
	calls  map[string]int
	handle func(url string, attempt int) (*scrape.Content, error)
}

func (f *fakeAdapter) Source() string { return "gretil" }

func (f *fakeAdapter) Discover(ctx context.Context, baseURL string, maxPages int) ([]string, error) {
	return nil, nil
}

func (f *fakeAdapter) FetchAndExtract(ctx context.Context, url string) (*scrape.Content, error) {
	f.mu.Lock()
	f.calls[url]++
	attempt := f.calls[url]
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.handle(url, attempt)
}

func (f *fakeAdapter) Close() error { return nil }

func (f *fakeAdapter) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func goodContent(url string) *scrape.Content {
	return &scrape.Content{
		Text:            strings.Repeat("agnim ile purohitam ", 20),
		Title:           "Rigveda 1.1",
		URL:             url,
		Source:          "gretil",
		Format:          scrape.FormatHTML,
		Language:        "sanskrit",
		ScrapedAt:       time.Now().UTC(),
		Encoding:        "utf-8",
		ConfidenceScore: 1.0,
	}
}

func testSource(rps float64) scrape.SourceConfig {
	return scrape.SourceConfig{
		Name:      "gretil",
		BaseURL:   "https://gretil.example.org",
		Language:  "sanskrit",
		Encoding:  "utf-8",
		RateLimit: rps,
		MaxPages:  100,
	}
}

func newTestRunner(t *testing.T, adapter *fakeAdapter, rps float64, maxConcurrent int) *Runner {
	t.Helper()
	logger := zaptest.NewLogger(t)
	gate := robots.New(robots.Config{UserAgent: "SanskritCrawl/1.0", Respect: false}, logger)
	validator, err := validate.New(validate.Config{MinTextLength: 50, MaxTextLength: 1 << 20})
	require.NoError(t, err)
	r, err := New(testSource(rps), adapter, gate, validator, maxConcurrent, logger)
	require.NoError(t, err)
	return r
}

func newTestTask(t *testing.T, urls []string, maxRetries int) *scrape.Task {
	t.Helper()
	task, err := scrape.NewTask("gretil_20260830_deadbeef", "gretil", urls, maxRetries, 5*time.Second, 100)
	require.NoError(t, err)
	return task
}

func TestRunTask_AllSucceed(t *testing.T) {
	adapter := &fakeAdapter{
		calls: map[string]int{},
		handle: func(url string, attempt int) (*scrape.Content, error) {
			return goodContent(url), nil
		},
	}
	r := newTestRunner(t, adapter, 100, 4)
	urls := []string{
		"https://gretil.example.org/texts/1.htm",
		"https://gretil.example.org/texts/2.htm",
		"https://gretil.example.org/texts/3.htm",
	}
	task := newTestTask(t, urls, 2)

	results := r.RunTask(context.Background(), task)

	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, scrape.StatusCompleted, res.Status)
		assert.Equal(t, urls[i], res.URL, "results keep task order")
		require.NotNil(t, res.Content)
		assert.Contains(t, res.Content.Properties, "quality_score")
		assert.Greater(t, res.Content.Properties["quality_score"], 0.0)
	}
	assert.Equal(t, scrape.StatusCompleted, task.Status)
	assert.Equal(t, 3, task.SuccessfulURLs)
	assert.Equal(t, 0, task.FailedURLs)
	assert.InDelta(t, 100.0, task.Progress(), 0.001)

	stats := r.Stats()
	assert.Equal(t, uint64(3), stats.RequestsMade)
	assert.Equal(t, uint64(3), stats.SuccessfulRequests)
	assert.Zero(t, stats.FailedRequests)
}

func TestRunTask_RetryableFailureRecovers(t *testing.T) {
	adapter := &fakeAdapter{
		calls: map[string]int{},
		handle: func(url string, attempt int) (*scrape.Content, error) {
			if attempt < 3 {
				return nil, scrape.Retryable(scrape.ErrorTypeNetwork, errors.New("connection reset"))
			}
			return goodContent(url), nil
		},
	}
	r := newTestRunner(t, adapter, 1000, 1)
	url := "https://gretil.example.org/texts/flaky.htm"
	task := newTestTask(t, []string{url}, 3)

	results := r.RunTask(context.Background(), task)

	require.Len(t, results, 1)
	assert.Equal(t, scrape.StatusCompleted, results[0].Status)
	assert.Equal(t, 2, results[0].RetryCount)
	assert.Equal(t, 2, results[0].Content.RetryCount)
	assert.Equal(t, 3, adapter.callCount(url))
	assert.Equal(t, scrape.StatusCompleted, task.Status)
	assert.Equal(t, uint64(2), r.Stats().Retries)
}

func TestRunTask_ExhaustsRetriesAndFails(t *testing.T) {
	adapter := &fakeAdapter{
		calls: map[string]int{},
		handle: func(url string, attempt int) (*scrape.Content, error) {
			return nil, scrape.Retryable(scrape.ErrorTypeHTTP, errors.New("503 service unavailable"))
		},
	}
	r := newTestRunner(t, adapter, 1000, 1)
	url := "https://gretil.example.org/texts/down.htm"
	task := newTestTask(t, []string{url}, 2)

	results := r.RunTask(context.Background(), task)

	require.Len(t, results, 1)
	assert.Equal(t, scrape.StatusFailed, results[0].Status)
	assert.Equal(t, scrape.ErrorTypeHTTP, results[0].ErrorType)
	assert.Equal(t, 2, results[0].RetryCount)
	// initial attempt plus two retries
	assert.Equal(t, 3, adapter.callCount(url))
	assert.Equal(t, scrape.StatusFailed, task.Status)
	assert.Equal(t, 1, task.FailedURLs)
}

func TestRunTask_TerminalErrorNotRetried(t *testing.T) {
	adapter := &fakeAdapter{
		calls: map[string]int{},
		handle: func(url string, attempt int) (*scrape.Content, error) {
			return nil, scrape.Terminal(scrape.ErrorTypeHTTP, errors.New("404 not found"))
		},
	}
	r := newTestRunner(t, adapter, 1000, 1)
	url := "https://gretil.example.org/texts/gone.htm"
	task := newTestTask(t, []string{url}, 5)

	results := r.RunTask(context.Background(), task)

	assert.Equal(t, scrape.StatusFailed, results[0].Status)
	assert.Equal(t, 0, results[0].RetryCount)
	assert.Equal(t, 1, adapter.callCount(url))
}

func TestRunTask_MixedOutcomesFailTask(t *testing.T) {
	adapter := &fakeAdapter{
		calls: map[string]int{},
		handle: func(url string, attempt int) (*scrape.Content, error) {
			if strings.Contains(url, "bad") {
				return nil, scrape.Terminal(scrape.ErrorTypeHTTP, errors.New("404 not found"))
			}
			return goodContent(url), nil
		},
	}
	r := newTestRunner(t, adapter, 1000, 2)
	task := newTestTask(t, []string{
		"https://gretil.example.org/texts/good.htm",
		"https://gretil.example.org/texts/bad.htm",
	}, 1)

	r.RunTask(context.Background(), task)

	assert.Equal(t, scrape.StatusFailed, task.Status, "one failed URL fails the task")
	assert.Equal(t, 1, task.SuccessfulURLs)
	assert.Equal(t, 1, task.FailedURLs)
}

func TestRunTask_ValidationFailureIsRetried(t *testing.T) {
	adapter := &fakeAdapter{
		calls: map[string]int{},
		handle: func(url string, attempt int) (*scrape.Content, error) {
			c := goodContent(url)
			if attempt == 1 {
				c.Text = "too short"
			}
			return c, nil
		},
	}
	r := newTestRunner(t, adapter, 1000, 1)
	url := "https://gretil.example.org/texts/thin.htm"
	task := newTestTask(t, []string{url}, 2)

	results := r.RunTask(context.Background(), task)

	assert.Equal(t, scrape.StatusCompleted, results[0].Status)
	assert.Equal(t, 2, adapter.callCount(url))
	assert.Equal(t, uint64(1), r.Stats().ValidationFailures)
}

func TestRunTask_RobotsDisallowedIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/robots.txt" {
			fmt.Fprintln(w, "User-agent: *\nDisallow: /private/")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	adapter := &fakeAdapter{
		calls: map[string]int{},
		handle: func(url string, attempt int) (*scrape.Content, error) {
			return goodContent(url), nil
		},
	}
	logger := zaptest.NewLogger(t)
	gate := robots.New(robots.Config{UserAgent: "SanskritCrawl/1.0", Respect: true}, logger)
	validator, err := validate.New(validate.Config{MinTextLength: 50, MaxTextLength: 1 << 20})
	require.NoError(t, err)
	source := testSource(1000)
	source.BaseURL = srv.URL
	r, err := New(source, adapter, gate, validator, 1, logger)
	require.NoError(t, err)

	blocked := srv.URL + "/private/secret.htm"
	task := newTestTask(t, []string{blocked, srv.URL + "/public/ok.htm"}, 3)
	results := r.RunTask(context.Background(), task)

	assert.Equal(t, scrape.StatusFailed, results[0].Status)
	assert.Equal(t, scrape.ErrorTypeRobots, results[0].ErrorType)
	assert.Equal(t, 0, results[0].RetryCount, "robots denial is not retried")
	assert.Zero(t, adapter.callCount(blocked), "blocked URL is never fetched")
	assert.Equal(t, scrape.StatusCompleted, results[1].Status)
	assert.Equal(t, uint64(1), r.Stats().RobotsBlocks)
}

func TestRunTask_MalformedURLIsTerminal(t *testing.T) {
	adapter := &fakeAdapter{
		calls: map[string]int{},
		handle: func(url string, attempt int) (*scrape.Content, error) {
			return goodContent(url), nil
		},
	}
	r := newTestRunner(t, adapter, 1000, 1)
	bad := "texts/relative.htm"
	task := newTestTask(t, []string{bad}, 3)

	results := r.RunTask(context.Background(), task)

	assert.Equal(t, scrape.StatusFailed, results[0].Status)
	assert.Equal(t, scrape.ErrorTypeMalformedURL, results[0].ErrorType)
	assert.Equal(t, 0, results[0].RetryCount, "a bad URL cannot improve with retries")
	assert.Zero(t, adapter.callCount(bad))
	assert.Zero(t, r.Stats().RobotsBlocks, "a bad URL is not a robots denial")
}

func TestRunTask_CancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	adapter := &fakeAdapter{
		calls: map[string]int{},
		handle: func(url string, attempt int) (*scrape.Content, error) {
			cancel()
			return nil, scrape.Retryable(scrape.ErrorTypeNetwork, errors.New("connection reset"))
		},
	}
	r := newTestRunner(t, adapter, 0.01, 1)
	url := "https://gretil.example.org/texts/slow.htm"
	task := newTestTask(t, []string{url}, 10)

	results := r.RunTask(ctx, task)

	assert.Equal(t, scrape.StatusFailed, results[0].Status)
	// the retry re-enters the limiter, which honors the canceled context
	assert.Equal(t, 1, adapter.callCount(url))
}

func TestRunTask_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	adapter := &fakeAdapter{
		calls: map[string]int{},
		handle: func(url string, attempt int) (*scrape.Content, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			return goodContent(url), nil
		},
	}
	r := newTestRunner(t, adapter, 10000, 2)
	urls := make([]string, 8)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://gretil.example.org/texts/%d.htm", i)
	}
	task := newTestTask(t, urls, 0)

	r.RunTask(context.Background(), task)

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 8, task.SuccessfulURLs)
}

func TestNew_RejectsBadRate(t *testing.T) {
	logger := zaptest.NewLogger(t)
	gate := robots.New(robots.Config{Respect: false}, logger)
	validator, err := validate.New(validate.Config{MinTextLength: 1, MaxTextLength: 100})
	require.NoError(t, err)
	_, err = New(testSource(0), &fakeAdapter{calls: map[string]int{}}, gate, validator, 1, logger)
	assert.Error(t, err)
}
