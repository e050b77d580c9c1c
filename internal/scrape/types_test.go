package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	for _, f := range AllFormats() {
		got, err := ParseFormat(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	got, err := ParseFormat("HTML")
	require.NoError(t, err, "parsing is case-insensitive")
	assert.Equal(t, FormatHTML, got)

	_, err = ParseFormat("papyrus")
	assert.Error(t, err)
}

func TestFormatExt(t *testing.T) {
	assert.Equal(t, ".html", FormatHTML.Ext())
	assert.Equal(t, ".txt", FormatPlainText.Ext())
	assert.Equal(t, ".pdf", FormatPDF.Ext())
}

func TestSourceConfigValidate(t *testing.T) {
	valid := SourceConfig{
		Name:      "gretil",
		BaseURL:   "https://gretil.example.org",
		RateLimit: 0.5,
		MaxPages:  10,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*SourceConfig)
	}{
		{"empty name", func(s *SourceConfig) { s.Name = "" }},
		{"relative base url", func(s *SourceConfig) { s.BaseURL = "/texts" }},
		{"zero rate", func(s *SourceConfig) { s.RateLimit = 0 }},
		{"zero max pages", func(s *SourceConfig) { s.MaxPages = 0 }},
		{"bad format", func(s *SourceConfig) { s.SupportedFormats = []Format{"papyrus"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestTaskLifecycle(t *testing.T) {
	task, err := NewTask("gretil_20260830_0a1b2c3d", "gretil",
		[]string{"https://gretil.example.org/a", "https://gretil.example.org/b"},
		3, 30*time.Second, 0.5)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, task.Status)
	assert.Zero(t, task.Progress())

	task.Start()
	assert.Equal(t, StatusRunning, task.Status)
	assert.False(t, task.StartedAt.IsZero())

	task.AddResult(true)
	assert.InDelta(t, 50.0, task.Progress(), 0.001)
	task.AddResult(false)
	assert.InDelta(t, 100.0, task.Progress(), 0.001)

	task.Fail()
	assert.Equal(t, StatusFailed, task.Status)
	assert.False(t, task.CompletedAt.IsZero())
}

func TestNewTaskRequiresURLs(t *testing.T) {
	_, err := NewTask("id", "gretil", nil, 3, time.Second, 1)
	assert.Error(t, err)
}

func TestResultRetryClearsFailure(t *testing.T) {
	res := NewResult("task", "https://gretil.example.org/a")
	res.Fail("connection reset", ErrorTypeNetwork)
	assert.Equal(t, StatusFailed, res.Status)

	res.Retry()
	assert.Equal(t, StatusRetrying, res.Status)
	assert.Equal(t, 1, res.RetryCount)
	assert.Empty(t, res.ErrorMessage)
	assert.Empty(t, res.ErrorType)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsRetryable(Retryable(ErrorTypeNetwork, errors.New("reset"))))
	assert.False(t, IsRetryable(Terminal(ErrorTypeRobots, errors.New("disallowed"))))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(errors.New("mystery")), "unclassified errors default to transient")
	assert.False(t, IsRetryable(nil))

	// explicit classification wins over a wrapped context error
	wrapped := Retryable(ErrorTypeNetwork, context.DeadlineExceeded)
	assert.True(t, IsRetryable(wrapped))
	assert.Equal(t, ErrorTypeNetwork, ErrorTypeOf(wrapped))

	assert.Equal(t, ErrorTypeCanceled, ErrorTypeOf(context.Canceled))
	assert.Equal(t, ErrorTypeUnknown, ErrorTypeOf(errors.New("mystery")))
	assert.Equal(t, "", ErrorTypeOf(nil))
}
