package adapters

import (
	"bytes"
	"fmt"
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/granthalaya/sanskritcrawl/internal/scrape"
)

// unwantedSelectors name the page chrome stripped before text extraction.
var unwantedSelectors = []string{
	"script", "style", "nav", "header", "footer",
	".navigation", ".menu", ".sidebar", ".advertisement", ".ads",
	".social-share", ".comments",
}

var (
	wsRun     = regexp.MustCompile(`[ \t]+`)
	blankRun  = regexp.MustCompile(`\n\s*\n+`)
	digitLine = regexp.MustCompile(`^\d+$`)
	pageLine  = regexp.MustCompile(`^Page \d+`)
)

var navWords = map[string]struct{}{
	"home": {}, "about": {}, "contact": {}, "search": {}, "back": {}, "next": {},
}

func parseHTML(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

func stripUnwanted(doc *goquery.Document) {
	for _, sel := range unwantedSelectors {
		doc.Find(sel).Remove()
	}
}

// selectText returns the text of the first selector that matches, falling
// back to the whole body.
func selectText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if s := doc.Find(sel); s.Length() > 0 {
			return s.First().Text()
		}
	}
	return doc.Find("body").Text()
}

// firstText returns the trimmed text of the first matching selector, or "".
func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if s := doc.Find(sel); s.Length() > 0 {
			if t := strings.TrimSpace(s.First().Text()); t != "" {
				return t
			}
		}
	}
	return ""
}

// cleanText normalizes whitespace and drops page-number and navigation lines.
func cleanText(text string) string {
	text = wsRun.ReplaceAllString(text, " ")
	text = blankRun.ReplaceAllString(text, "\n")
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) < 3 || digitLine.MatchString(line) || pageLine.MatchString(line) {
			continue
		}
		if _, nav := navWords[strings.ToLower(line)]; nav {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// collectLinks resolves every href on the page against base and returns the
// absolute URLs in document order, deduplicated.
func collectLinks(doc *goquery.Document, base string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := baseURL.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		u := abs.String()
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		links = append(links, u)
	})
	return links
}

// formatFor determines the content format from the URL extension, falling
// back to the response content type.
func formatFor(rawURL, contentType string) scrape.Format {
	u, err := url.Parse(rawURL)
	if err == nil {
		switch strings.ToLower(path.Ext(u.Path)) {
		case ".pdf":
			return scrape.FormatPDF
		case ".txt":
			return scrape.FormatPlainText
		case ".xml":
			return scrape.FormatXML
		case ".json":
			return scrape.FormatJSON
		case ".html", ".htm":
			return scrape.FormatHTML
		}
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return scrape.FormatHTML
	}
	switch {
	case strings.Contains(mt, "pdf"):
		return scrape.FormatPDF
	case strings.Contains(mt, "xml"):
		return scrape.FormatXML
	case strings.Contains(mt, "json"):
		return scrape.FormatJSON
	case strings.Contains(mt, "html"):
		return scrape.FormatHTML
	default:
		return scrape.FormatPlainText
	}
}

// titleFromURL derives a readable title from the last path segment.
func titleFromURL(rawURL, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	name := path.Base(u.Path)
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	if name == "" || name == "/" {
		return fallback
	}
	return name
}

// charsetOf extracts the charset parameter of a Content-Type header,
// defaulting to UTF-8.
func charsetOf(contentType string) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "utf-8"
	}
	if cs, ok := params["charset"]; ok && cs != "" {
		return strings.ToLower(cs)
	}
	return "utf-8"
}
