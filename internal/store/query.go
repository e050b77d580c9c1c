package store

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/granthalaya/sanskritcrawl/internal/scrape"
)

// Filters narrows List, Export and Stats traversals. Zero values match
// everything.
type Filters struct {
	Source   string
	Category string
	Format   scrape.Format
}

// Stats summarizes the stored corpus.
type Stats struct {
	TotalFiles     int            `json:"total_files"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	BySource       map[string]int `json:"by_source"`
	ByCategory     map[string]int `json:"by_category"`
	ByFormat       map[string]int `json:"by_format"`
}

// DuplicateGroup is one set of stored items sharing a content hash.
type DuplicateGroup struct {
	Hash  string          `json:"hash"`
	Items []DuplicateItem `json:"items"`
}

// DuplicateItem identifies one member of a duplicate group.
type DuplicateItem struct {
	Path      string    `json:"path"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// List enumerates stored body files matching the filters, sorted. Hidden
// files, the hash index and metadata sidecars are excluded.
func (s *Store) List(f Filters) ([]string, error) {
	root := s.root
	if f.Source != "" {
		root = filepath.Join(s.root, f.Source)
		if _, err := os.Stat(root); os.IsNotExist(err) {
			return nil, nil
		}
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, sidecarSuffix) {
			return nil
		}
		source, category, format, ok := s.pathParts(path)
		if !ok {
			return nil
		}
		if f.Source != "" && source != f.Source {
			return nil
		}
		if f.Category != "" && category != f.Category {
			return nil
		}
		if f.Format != "" && format != string(f.Format) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk storage: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Stats computes corpus statistics by traversing every stored item.
func (s *Store) Stats() (Stats, error) {
	st := Stats{
		BySource:   make(map[string]int),
		ByCategory: make(map[string]int),
		ByFormat:   make(map[string]int),
	}
	paths, err := s.List(Filters{})
	if err != nil {
		return Stats{}, err
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		st.TotalFiles++
		st.TotalSizeBytes += info.Size()
		if source, category, format, ok := s.pathParts(p); ok {
			st.BySource[source]++
			st.ByCategory[category]++
			st.ByFormat[format]++
		}
	}
	return st, nil
}

// CleanupOrphans removes body files lacking a sidecar and sidecars lacking a
// body, returning how many files were deleted.
func (s *Store) CleanupOrphans() (int, error) {
	removed := 0

	bodies, err := s.List(Filters{})
	if err != nil {
		return 0, err
	}
	for _, body := range bodies {
		if _, err := os.Stat(sidecarPath(body)); os.IsNotExist(err) {
			if err := os.Remove(body); err != nil {
				s.logger.Warn("remove orphaned body", zap.String("path", body), zap.Error(err))
				continue
			}
			removed++
		}
	}

	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), sidecarSuffix) {
			return err
		}
		if bodyPathFor(path) == "" {
			if rmErr := os.Remove(path); rmErr != nil {
				s.logger.Warn("remove orphaned sidecar", zap.String("path", path), zap.Error(rmErr))
				return nil
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("walk sidecars: %w", err)
	}
	return removed, nil
}

// FindDuplicateGroups recomputes hashes over every stored item, not just the
// index, and returns groups sharing a hash. This is the audit view; a
// healthy store with dedup enabled returns no groups.
func (s *Store) FindDuplicateGroups() ([]DuplicateGroup, error) {
	paths, err := s.List(Filters{})
	if err != nil {
		return nil, err
	}
	groups := make(map[string][]DuplicateItem)
	for _, p := range paths {
		c, err := s.Load(p)
		if err != nil {
			s.logger.Debug("skip unreadable item during duplicate scan", zap.String("path", p), zap.Error(err))
			continue
		}
		h := ContentHash(c)
		groups[h] = append(groups[h], DuplicateItem{
			Path:      p,
			URL:       c.URL,
			Title:     c.Title,
			Source:    c.Source,
			ScrapedAt: c.ScrapedAt,
		})
	}

	var out []DuplicateGroup
	for h, items := range groups {
		if len(items) > 1 {
			out = append(out, DuplicateGroup{Hash: h, Items: items})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out, nil
}

// Export copies matching body+sidecar pairs into dest, preserving the
// relative directory structure.
func (s *Store) Export(dest string, f Filters) error {
	if err := os.MkdirAll(dest, 0o750); err != nil {
		return fmt.Errorf("create export dir %s: %w", dest, err)
	}
	paths, err := s.List(f)
	if err != nil {
		return err
	}
	for _, body := range paths {
		rel, err := filepath.Rel(s.root, body)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", body, err)
		}
		if err := copyFile(body, filepath.Join(dest, rel)); err != nil {
			return fmt.Errorf("export %s: %w", body, err)
		}
		sidecar := sidecarPath(body)
		if _, err := os.Stat(sidecar); err == nil {
			if err := copyFile(sidecar, filepath.Join(dest, sidecarPath(rel))); err != nil {
				return fmt.Errorf("export %s: %w", sidecar, err)
			}
		}
	}
	return nil
}

// pathParts extracts (source, category, format) from a stored path.
func (s *Store) pathParts(path string) (string, string, string, bool) {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return "", "", "", false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) < 4 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = in.Close() }()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open target: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close target: %w", err)
	}
	return nil
}
