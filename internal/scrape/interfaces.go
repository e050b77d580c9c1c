package scrape

import "context"

// SourceAdapter is the per-site collaborator supplying URL discovery and
// page extraction. The core never assumes document structure; every
// site-specific selector lives behind this interface.
type SourceAdapter interface {
	// Source returns the source name this adapter serves.
	Source() string

	// Discover produces up to maxPages candidate URLs rooted at baseURL.
	// The sequence is finite and non-restartable; traversal strategy
	// (link-following, listing pages, sitemaps) is adapter-specific.
	Discover(ctx context.Context, baseURL string, maxPages int) ([]string, error)

	// FetchAndExtract downloads one page and extracts structured content.
	// Network, HTTP and parse failures return an error classified via the
	// scrape error taxonomy.
	FetchAndExtract(ctx context.Context, url string) (*Content, error)

	// Close releases adapter resources such as pooled connections.
	Close() error
}
