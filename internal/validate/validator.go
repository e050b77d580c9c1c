// Package validate performs structural and quality checks on scraped content.
package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/granthalaya/sanskritcrawl/internal/scrape"
)

// Config controls validation thresholds.
type Config struct {
	MinTextLength     int
	MaxTextLength     int
	AllowedFormats    []scrape.Format
	ForbiddenPatterns []string
	ValidateEncoding  bool
}

// Report is the outcome of validating one Content. Errors fail validation;
// warnings only lower the advisory quality score.
type Report struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Score    float64  `json:"score"`
}

// Validator checks content against configured thresholds.
type Validator struct {
	cfg      Config
	allowed  map[scrape.Format]struct{}
	patterns []*regexp.Regexp
}

// New builds a Validator, compiling the forbidden patterns up front.
func New(cfg Config) (*Validator, error) {
	if cfg.MinTextLength < 0 || cfg.MaxTextLength <= 0 || cfg.MinTextLength > cfg.MaxTextLength {
		return nil, fmt.Errorf("invalid text length bounds [%d, %d]", cfg.MinTextLength, cfg.MaxTextLength)
	}
	allowed := make(map[scrape.Format]struct{})
	formats := cfg.AllowedFormats
	if len(formats) == 0 {
		formats = scrape.AllFormats()
	}
	for _, f := range formats {
		allowed[f] = struct{}{}
	}
	patterns := make([]*regexp.Regexp, 0, len(cfg.ForbiddenPatterns))
	for _, p := range cfg.ForbiddenPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile forbidden pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return &Validator{cfg: cfg, allowed: allowed, patterns: patterns}, nil
}

// Validate checks one Content. The returned score is advisory metadata and
// never gates storage on its own.
func (v *Validator) Validate(c *scrape.Content) Report {
	r := Report{Valid: true, Score: 1.0}

	textLen := len(c.Text)
	switch {
	case textLen < v.cfg.MinTextLength:
		r.fail(fmt.Sprintf("text too short: %d < %d", textLen, v.cfg.MinTextLength))
	case textLen > v.cfg.MaxTextLength:
		r.fail(fmt.Sprintf("text too long: %d > %d", textLen, v.cfg.MaxTextLength))
	}

	if _, ok := v.allowed[c.Format]; !ok {
		r.fail(fmt.Sprintf("format not allowed: %s", c.Format))
	}

	if !validAbsoluteURL(c.URL) {
		r.fail(fmt.Sprintf("invalid URL: %q", c.URL))
	}

	if strings.TrimSpace(c.Title) == "" {
		r.fail("title is empty")
	}

	if v.cfg.ValidateEncoding && !encodable(c.Text, c.Encoding) {
		r.fail(fmt.Sprintf("text not encodable as %s", c.Encoding))
	}

	for _, re := range v.patterns {
		if re.MatchString(c.Text) {
			r.warn(fmt.Sprintf("forbidden pattern found: %s", re.String()))
		}
	}
	if c.Author == "" {
		r.warn("author missing")
	}
	if c.Category == "" {
		r.warn("category missing")
	}

	r.Score = v.score(c, &r)
	return r
}

// score computes the multiplicative quality score, clamped to [0, 1].
func (v *Validator) score(c *scrape.Content, r *Report) float64 {
	score := 1.0
	for range r.Warnings {
		score *= 0.9
	}
	if c.Author != "" {
		score *= 1.1
	}
	if c.Category != "" {
		score *= 1.05
	}
	if len(c.Tags) > 0 {
		score *= 1.02
	}
	textLen := len(c.Text)
	if textLen >= v.cfg.MinTextLength && textLen <= v.cfg.MaxTextLength {
		optimal := float64(v.cfg.MinTextLength+v.cfg.MaxTextLength) / 2
		ratio := min(float64(textLen), optimal) / max(float64(textLen), optimal)
		score *= 0.8 + 0.2*ratio
	}
	score *= c.ConfidenceScore
	return clamp01(score)
}

func (r *Report) fail(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}

func (r *Report) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func validAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// encodable reports whether text survives a round through the named
// encoding. Unknown encoding names count as failures when validation is on.
func encodable(text, name string) bool {
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return utf8.ValidString(text)
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return false
	}
	if enc == unicode.UTF8 || enc == encoding.Nop {
		return utf8.ValidString(text)
	}
	_, _, err = transform.String(enc.NewEncoder(), text)
	return err == nil
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
