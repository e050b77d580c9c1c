package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/granthalaya/sanskritcrawl/internal/scrape"
)

// Ambuda scrapes ambuda.org, preferring its JSON API and falling back to
// HTML parsing for pages the API does not cover.
type Ambuda struct {
	source  scrape.SourceConfig
	client  *Client
	logger  *zap.Logger
	apiBase string
}

// NewAmbuda builds an Ambuda adapter on the shared client.
func NewAmbuda(source scrape.SourceConfig, client *Client, logger *zap.Logger) *Ambuda {
	base, _ := url.Parse(source.BaseURL)
	apiBase := "https://ambuda.org/api"
	if base != nil && base.Host != "" {
		apiBase = base.Scheme + "://" + base.Host + "/api"
	}
	return &Ambuda{
		source:  source,
		client:  client,
		logger:  logger.With(zap.String("adapter", source.Name)),
		apiBase: apiBase,
	}
}

// Source returns the adapter's source name.
func (a *Ambuda) Source() string { return a.source.Name }

// Close releases adapter resources.
func (a *Ambuda) Close() error { return nil }

var ambudaIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/texts/([^/]+)/([^/]+)`),
	regexp.MustCompile(`/text/([^/]+)/([^/]+)`),
	regexp.MustCompile(`/works/([^/]+)`),
}

var ambudaContentSelectors = []string{
	"div.text-content", "div.verse", "main", "article", "div.content", "body",
}

var ambudaTitleSelectors = []string{"h1", "title", ".work-title"}

type ambudaWork struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Category string `json:"category"`
	Language string `json:"language"`
}

type ambudaText struct {
	Content string `json:"content"`
}

// FetchAndExtract tries the API route first; any API miss degrades to HTML.
func (a *Ambuda) FetchAndExtract(ctx context.Context, rawURL string) (*scrape.Content, error) {
	workID, textID := ambudaIDs(rawURL)
	if workID != "" && textID != "" {
		content, err := a.fetchViaAPI(ctx, rawURL, workID, textID)
		if err == nil {
			return content, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		a.logger.Debug("api fetch failed, falling back to html",
			zap.String("url", rawURL), zap.Error(err))
	}
	return a.fetchViaHTML(ctx, rawURL)
}

func (a *Ambuda) fetchViaAPI(ctx context.Context, rawURL, workID, textID string) (*scrape.Content, error) {
	workPage, err := a.client.Fetch(ctx, fmt.Sprintf("%s/works/%s", a.apiBase, workID))
	if err != nil {
		return nil, err
	}
	var work ambudaWork
	if err := json.Unmarshal(workPage.Body, &work); err != nil {
		return nil, fmt.Errorf("decode work %s: %w", workID, err)
	}

	textPage, err := a.client.Fetch(ctx, fmt.Sprintf("%s/texts/%s/%s", a.apiBase, workID, textID))
	if err != nil {
		return nil, err
	}
	var text ambudaText
	if err := json.Unmarshal(textPage.Body, &text); err != nil {
		return nil, fmt.Errorf("decode text %s/%s: %w", workID, textID, err)
	}

	language := work.Language
	if language == "" {
		language = a.source.Language
	}
	title := work.Title
	if title == "" {
		title = titleFromURL(rawURL, "Ambuda Text")
	}
	return &scrape.Content{
		Text:            text.Content,
		Title:           title,
		URL:             rawURL,
		Source:          a.source.Name,
		Format:          scrape.FormatJSON,
		Language:        language,
		Category:        work.Category,
		Author:          work.Author,
		ScrapedAt:       time.Now().UTC(),
		FileSize:        int64(len(text.Content)),
		Encoding:        "utf-8",
		ConfidenceScore: 1.0,
		Properties: map[string]any{
			"work_id": workID,
			"text_id": textID,
		},
	}, nil
}

func (a *Ambuda) fetchViaHTML(ctx context.Context, rawURL string) (*scrape.Content, error) {
	page, err := a.client.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(page.Body)
	if err != nil {
		return nil, scrape.Retryable(scrape.ErrorTypeValidation, err)
	}
	stripUnwanted(doc)

	title := firstText(doc, ambudaTitleSelectors)
	if title == "" {
		title = titleFromURL(rawURL, "Ambuda Text")
	}
	return &scrape.Content{
		Text:            cleanText(selectText(doc, ambudaContentSelectors)),
		Title:           title,
		URL:             rawURL,
		Source:          a.source.Name,
		Format:          scrape.FormatHTML,
		Language:        a.source.Language,
		Category:        firstText(doc, []string{".category", ".breadcrumb", ".work-category"}),
		Author:          firstText(doc, []string{".author", ".work-author"}),
		ScrapedAt:       time.Now().UTC(),
		FileSize:        int64(len(page.Body)),
		Encoding:        charsetOf(page.ContentType),
		ConfidenceScore: 1.0,
	}, nil
}

// Discover lists works from the catalogue page and keeps links under /texts/.
func (a *Ambuda) Discover(ctx context.Context, baseURL string, maxPages int) ([]string, error) {
	if maxPages <= 0 {
		maxPages = a.source.MaxPages
	}
	page, err := a.client.Fetch(ctx, baseURL)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(page.Body)
	if err != nil {
		return nil, err
	}

	var discovered []string
	for _, link := range collectLinks(doc, page.FinalURL) {
		if len(discovered) >= maxPages {
			break
		}
		if workID, _ := ambudaIDs(link); workID != "" {
			discovered = append(discovered, link)
		}
	}
	return discovered, nil
}

func ambudaIDs(rawURL string) (workID, textID string) {
	p := urlPath(rawURL)
	for _, pat := range ambudaIDPatterns {
		m := pat.FindStringSubmatch(p)
		if m == nil {
			continue
		}
		if len(m) == 3 {
			return m[1], m[2]
		}
		return m[1], ""
	}
	return "", ""
}
