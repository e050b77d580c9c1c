package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/granthalaya/sanskritcrawl/internal/scrape"
)

const (
	uncategorized  = "uncategorized"
	sidecarSuffix  = "_metadata.json"
	indexFileName  = ".content_hashes.json"
	maxSlugLength  = 80
	timestampShape = "20060102_150405"
)

var slugStrip = regexp.MustCompile(`[^a-zA-Z0-9 _-]+`)

// ContentHash returns the dedup key for content: SHA-256 over the
// length-prefixed text, URL and source, so no field boundary is ambiguous.
func ContentHash(c *scrape.Content) string {
	h := sha256.New()
	for _, part := range []string{c.Text, c.URL, c.Source} {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(part)))
		_, _ = h.Write(n[:])
		_, _ = io.WriteString(h, part)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// contentDir returns the directory for content relative to the store root:
// {source}/{category|uncategorized}/{format}.
func contentDir(c *scrape.Content) string {
	category := c.Category
	if category == "" {
		category = uncategorized
	}
	return filepath.Join(c.Source, slugify(category), string(c.Format))
}

// contentFileName returns {slug}_{YYYYMMDD_HHMMSS}.{ext} for the content.
func contentFileName(c *scrape.Content, at time.Time) string {
	return fmt.Sprintf("%s_%s.%s", slugify(c.Title), at.UTC().Format(timestampShape), c.Format.Ext())
}

// sidecarPath maps a body path to its metadata sidecar path.
func sidecarPath(bodyPath string) string {
	return strings.TrimSuffix(bodyPath, filepath.Ext(bodyPath)) + sidecarSuffix
}

// bodyPathFor finds the body file belonging to a sidecar, or "" when none
// exists.
func bodyPathFor(sidecar string) string {
	base := strings.TrimSuffix(sidecar, sidecarSuffix)
	matches, err := filepath.Glob(base + ".*")
	if err != nil {
		return ""
	}
	for _, m := range matches {
		if !strings.HasSuffix(m, sidecarSuffix) {
			return m
		}
	}
	return ""
}

// slugify reduces a title to a filesystem-safe slug.
func slugify(s string) string {
	s = slugStrip.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), "_")
	if len(s) > maxSlugLength {
		s = s[:maxSlugLength]
	}
	s = strings.Trim(s, "_")
	if s == "" {
		return "untitled"
	}
	return s
}
