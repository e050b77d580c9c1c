package adapters

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/granthalaya/sanskritcrawl/internal/scrape"
)

// VedicHeritage scrapes vedicheritage.gov.in, a CMS-driven portal where
// category lives in the breadcrumb rather than the URL.
type VedicHeritage struct {
	source scrape.SourceConfig
	client *Client
	logger *zap.Logger
}

// NewVedicHeritage builds a Vedic Heritage adapter on the shared client.
func NewVedicHeritage(source scrape.SourceConfig, client *Client, logger *zap.Logger) *VedicHeritage {
	return &VedicHeritage{
		source: source,
		client: client,
		logger: logger.With(zap.String("adapter", source.Name)),
	}
}

// Source returns the adapter's source name.
func (v *VedicHeritage) Source() string { return v.source.Name }

// Close releases adapter resources.
func (v *VedicHeritage) Close() error { return nil }

var vedicContentSelectors = []string{
	"div.entry-content", "article", "div.content", "div.main-content", "main", "body",
}

var vedicTitleSelectors = []string{"h1.entry-title", "h1", "title", ".page-title"}

var vedicBreadcrumbTerms = []string{
	"veda", "upanishad", "purana", "gita", "sutra", "mantra", "stotra",
}

// FetchAndExtract downloads one portal page and extracts its text.
func (v *VedicHeritage) FetchAndExtract(ctx context.Context, rawURL string) (*scrape.Content, error) {
	page, err := v.client.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	format := formatFor(rawURL, page.ContentType)
	if format == scrape.FormatPDF {
		return nil, scrape.Terminal(scrape.ErrorTypeValidation,
			errors.New("pdf extraction is not supported for "+rawURL))
	}
	doc, err := parseHTML(page.Body)
	if err != nil {
		return nil, scrape.Retryable(scrape.ErrorTypeValidation, err)
	}

	category := vedicCategory(rawURL, firstText(doc, []string{".breadcrumb", ".nav-path", ".category"}))
	stripUnwanted(doc)

	title := firstText(doc, vedicTitleSelectors)
	if title == "" {
		title = titleFromURL(rawURL, "Vedic Heritage Text")
	}
	return &scrape.Content{
		Text:            cleanText(selectText(doc, vedicContentSelectors)),
		Title:           title,
		URL:             rawURL,
		Source:          v.source.Name,
		Format:          scrape.FormatHTML,
		Language:        v.source.Language,
		Category:        category,
		Author:          firstText(doc, []string{".author", ".byline"}),
		ScrapedAt:       time.Now().UTC(),
		FileSize:        int64(len(page.Body)),
		Encoding:        charsetOf(page.ContentType),
		ConfidenceScore: 1.0,
	}, nil
}

// Discover collects content links from the portal landing page, one level
// deep into its category pages.
func (v *VedicHeritage) Discover(ctx context.Context, baseURL string, maxPages int) ([]string, error) {
	if maxPages <= 0 {
		maxPages = v.source.MaxPages
	}
	page, err := v.client.Fetch(ctx, baseURL)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(page.Body)
	if err != nil {
		return nil, err
	}

	var discovered []string
	seen := make(map[string]struct{})
	var categoryPages []string
	for _, link := range collectLinks(doc, page.FinalURL) {
		switch {
		case isContentURL(link):
			if _, ok := seen[link]; !ok {
				seen[link] = struct{}{}
				discovered = append(discovered, link)
			}
		case isIndexURL(link):
			categoryPages = append(categoryPages, link)
		}
	}

	for _, cat := range categoryPages {
		if len(discovered) >= maxPages {
			break
		}
		if err := ctx.Err(); err != nil {
			return discovered, err
		}
		sub, err := v.client.Fetch(ctx, cat)
		if err != nil {
			v.logger.Warn("discovery fetch failed", zap.String("url", cat), zap.Error(err))
			continue
		}
		subDoc, err := parseHTML(sub.Body)
		if err != nil {
			continue
		}
		for _, link := range collectLinks(subDoc, sub.FinalURL) {
			if len(discovered) >= maxPages {
				break
			}
			if !isContentURL(link) {
				continue
			}
			if _, ok := seen[link]; !ok {
				seen[link] = struct{}{}
				discovered = append(discovered, link)
			}
		}
	}
	if len(discovered) > maxPages {
		discovered = discovered[:maxPages]
	}
	return discovered, nil
}

// vedicCategory prefers breadcrumb text over URL segments.
func vedicCategory(rawURL, breadcrumb string) string {
	crumb := strings.ToLower(breadcrumb)
	for _, term := range vedicBreadcrumbTerms {
		if strings.Contains(crumb, term) {
			return titleCaser.String(term)
		}
	}
	p := strings.ToLower(urlPath(rawURL))
	for _, term := range vedicBreadcrumbTerms {
		if strings.Contains(p, term) {
			return titleCaser.String(term)
		}
	}
	return ""
}
