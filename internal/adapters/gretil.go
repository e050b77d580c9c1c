package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/granthalaya/sanskritcrawl/internal/scrape"
)

// gretilCategories maps GRETIL directory names to catalogue categories.
var gretilCategories = []struct {
	needle   string
	category string
}{
	{"/veda/", "Vedas"},
	{"/vedic/", "Vedas"},
	{"/upanishad/", "Upanishads"},
	{"/purana/", "Puranas"},
	{"/gita/", "Bhagavad Gita"},
	{"/sutra/", "Sutras"},
	{"/mantra/", "Mantras"},
	{"/stotra/", "Stotras"},
	{"/epic/", "Epic Literature"},
	{"/drama/", "Drama"},
	{"/philosophy/", "Philosophy"},
	{"/grammar/", "Grammar"},
	{"/lexicon/", "Lexicon"},
}

var gretilAuthorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^([a-zA-Z]+)_`),
	regexp.MustCompile(`_([a-zA-Z]+)_`),
	regexp.MustCompile(`([a-zA-Z]+)\.`),
}

var gretilNonAuthors = map[string]struct{}{
	"text": {}, "work": {}, "book": {}, "chapter": {}, "part": {},
}

// Gretil scrapes gretil.sub.uni-goettingen.de, a static archive of
// transliterated Sanskrit e-texts organized by directory.
type Gretil struct {
	source scrape.SourceConfig
	client *Client
	logger *zap.Logger
}

// NewGretil builds a GRETIL adapter on the shared client.
func NewGretil(source scrape.SourceConfig, client *Client, logger *zap.Logger) *Gretil {
	return &Gretil{
		source: source,
		client: client,
		logger: logger.With(zap.String("adapter", source.Name)),
	}
}

// Source returns the adapter's source name.
func (g *Gretil) Source() string { return g.source.Name }

// Close releases adapter resources.
func (g *Gretil) Close() error { return nil }

// contentSelectors in priority order; GRETIL texts are usually inside <pre>.
var gretilContentSelectors = []string{"pre", "div.text", "div.content", "div.main", "body"}

var gretilTitleSelectors = []string{"title", "h1", "h2", ".title"}

// FetchAndExtract downloads one page and turns it into structured content.
func (g *Gretil) FetchAndExtract(ctx context.Context, rawURL string) (*scrape.Content, error) {
	page, err := g.client.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	format := formatFor(rawURL, page.ContentType)
	var text, title string
	switch format {
	case scrape.FormatHTML, scrape.FormatXML:
		doc, err := parseHTML(page.Body)
		if err != nil {
			return nil, scrape.Retryable(scrape.ErrorTypeValidation, err)
		}
		stripUnwanted(doc)
		text = cleanText(selectText(doc, gretilContentSelectors))
		title = firstText(doc, gretilTitleSelectors)
	case scrape.FormatPDF:
		return nil, scrape.Terminal(scrape.ErrorTypeValidation,
			fmt.Errorf("pdf extraction is not supported for %s", rawURL))
	default:
		text = cleanText(string(page.Body))
	}
	if title == "" {
		title = titleFromURL(rawURL, "GRETIL Text")
	}

	return &scrape.Content{
		Text:            text,
		Title:           title,
		URL:             rawURL,
		Source:          g.source.Name,
		Format:          format,
		Language:        g.source.Language,
		Category:        gretilCategory(rawURL),
		Author:          gretilAuthor(rawURL),
		ScrapedAt:       time.Now().UTC(),
		FileSize:        int64(len(page.Body)),
		Encoding:        charsetOf(page.ContentType),
		ConfidenceScore: 1.0,
	}, nil
}

// Discover walks index pages breadth-first, collecting text links until
// maxPages URLs are found or the frontier is exhausted.
func (g *Gretil) Discover(ctx context.Context, baseURL string, maxPages int) ([]string, error) {
	if maxPages <= 0 {
		maxPages = g.source.MaxPages
	}
	var discovered []string
	found := make(map[string]struct{})
	visited := make(map[string]struct{})
	frontier := []string{baseURL}

	for len(frontier) > 0 && len(discovered) < maxPages {
		if err := ctx.Err(); err != nil {
			return discovered, err
		}
		current := frontier[0]
		frontier = frontier[1:]
		if _, ok := visited[current]; ok {
			continue
		}
		visited[current] = struct{}{}

		page, err := g.client.Fetch(ctx, current)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return discovered, err
			}
			g.logger.Warn("discovery fetch failed", zap.String("url", current), zap.Error(err))
			continue
		}
		doc, err := parseHTML(page.Body)
		if err != nil {
			g.logger.Warn("discovery parse failed", zap.String("url", current), zap.Error(err))
			continue
		}

		for _, link := range collectLinks(doc, page.FinalURL) {
			if len(discovered) >= maxPages {
				break
			}
			if isContentURL(link) {
				if _, ok := found[link]; !ok {
					found[link] = struct{}{}
					discovered = append(discovered, link)
				}
				continue
			}
			if _, ok := visited[link]; !ok && isIndexURL(link) {
				frontier = append(frontier, link)
			}
		}
	}
	return discovered, nil
}

func gretilCategory(rawURL string) string {
	p := strings.ToLower(urlPath(rawURL))
	for _, c := range gretilCategories {
		if strings.Contains(p, c.needle) {
			return c.category
		}
	}
	return "Sanskrit Literature"
}

var titleCaser = cases.Title(language.English)

func gretilAuthor(rawURL string) string {
	filename := path.Base(urlPath(rawURL))
	for _, pat := range gretilAuthorPatterns {
		m := pat.FindStringSubmatch(filename)
		if m == nil {
			continue
		}
		if _, skip := gretilNonAuthors[strings.ToLower(m[1])]; skip {
			continue
		}
		return titleCaser.String(m[1])
	}
	return ""
}

func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Path
}

var (
	skipURLPattern    = regexp.MustCompile(`\.(css|js|png|jpg|jpeg|gif)$|/search|/contact|/about|/index\.html?$|/home$`)
	contentURLPattern = regexp.MustCompile(`\.(txt|html|htm|xml|pdf)$|/text/|/content/|/work/|/author/`)
	indexURLPattern   = regexp.MustCompile(`/$|/index\.html?$|/home$|/category/|/section/`)
)

func isContentURL(rawURL string) bool {
	p := strings.ToLower(urlPath(rawURL))
	if skipURLPattern.MatchString(p) {
		return false
	}
	return contentURLPattern.MatchString(p)
}

func isIndexURL(rawURL string) bool {
	return indexURLPattern.MatchString(strings.ToLower(urlPath(rawURL)))
}
