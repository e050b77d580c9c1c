package adapters

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/granthalaya/sanskritcrawl/internal/scrape"
)

// Names lists the sources this package has adapters for.
func Names() []string {
	return []string{"gretil", "vedicheritage", "ambuda"}
}

// New returns the adapter registered for the source, sharing one fetch
// client per call site.
func New(source scrape.SourceConfig, client *Client, logger *zap.Logger) (scrape.SourceAdapter, error) {
	switch source.Name {
	case "gretil":
		return NewGretil(source, client, logger), nil
	case "vedicheritage":
		return NewVedicHeritage(source, client, logger), nil
	case "ambuda":
		return NewAmbuda(source, client, logger), nil
	default:
		return nil, fmt.Errorf("no adapter registered for source %q", source.Name)
	}
}
