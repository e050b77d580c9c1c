// Package store persists scraped content to a deduplicating, hash-indexed
// filesystem layout with one JSON metadata sidecar per body file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/granthalaya/sanskritcrawl/internal/clock"
	"github.com/granthalaya/sanskritcrawl/internal/metrics"
	"github.com/granthalaya/sanskritcrawl/internal/scrape"
)

// Config controls store behavior.
type Config struct {
	Root               string
	DuplicateDetection bool
}

// Store is the filesystem content store. The hash index is shared
// process-wide across sources; all index mutations are serialized.
type Store struct {
	root   string
	dedup  bool
	logger *zap.Logger
	clock  clock.Clock

	mu     sync.Mutex
	hashes map[string]struct{}
}

// New builds a Store rooted at cfg.Root, creating the directory and probing
// it for writability. An unwritable root is a construction-time failure.
func New(cfg Config, logger *zap.Logger, clk clock.Clock) (*Store, error) {
	root := strings.TrimSpace(cfg.Root)
	if root == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	probe := filepath.Join(root, ".writable_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return nil, fmt.Errorf("storage root %s is not writable: %w", root, err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("remove writability probe: %w", err)
	}

	s := &Store{
		root:   root,
		dedup:  cfg.DuplicateDetection,
		logger: logger,
		clock:  clk,
		hashes: make(map[string]struct{}),
	}
	if s.dedup {
		if err := s.loadIndex(); err != nil {
			// A corrupt index degrades dedup, it does not block storage.
			logger.Warn("hash index unreadable; starting empty", zap.Error(err))
		}
	}
	return s, nil
}

// Store writes the content body and its metadata sidecar, then registers the
// content hash. Returns DuplicateError when dedup is enabled and the hash is
// already indexed. The body is written before the sidecar so a crash can
// only leave an orphaned body, never a sidecar without content.
func (s *Store) Store(c *scrape.Content) (string, error) {
	hash := ContentHash(c)
	if s.dedup {
		// Reserve the hash before any file work so concurrent Store calls
		// with identical content cannot both proceed.
		s.mu.Lock()
		if _, seen := s.hashes[hash]; seen {
			s.mu.Unlock()
			return "", &DuplicateError{URL: c.URL, Hash: hash}
		}
		s.hashes[hash] = struct{}{}
		s.mu.Unlock()
	}

	bodyPath, err := s.write(c)
	if err != nil {
		if s.dedup {
			s.mu.Lock()
			delete(s.hashes, hash)
			s.mu.Unlock()
		}
		return "", err
	}

	if s.dedup {
		s.mu.Lock()
		err = s.saveIndexLocked()
		s.mu.Unlock()
		if err != nil {
			return "", fmt.Errorf("persist hash index: %w", err)
		}
	}
	return bodyPath, nil
}

func (s *Store) write(c *scrape.Content) (string, error) {
	dir := filepath.Join(s.root, contentDir(c))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create content dir %s: %w", dir, err)
	}

	body, err := encodeText(c.Text, c.Encoding)
	if err != nil {
		return "", fmt.Errorf("encode body as %s: %w", c.Encoding, err)
	}

	stored := *c
	stored.FileSize = int64(len(body))

	bodyPath := filepath.Join(dir, contentFileName(&stored, s.clock.Now()))
	if err := os.WriteFile(bodyPath, body, 0o600); err != nil {
		return "", fmt.Errorf("write body %s: %w", bodyPath, err)
	}

	meta, err := json.MarshalIndent(&stored, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(sidecarPath(bodyPath), meta, 0o600); err != nil {
		return "", fmt.Errorf("write metadata sidecar: %w", err)
	}

	metrics.ObserveStoredBytes(c.Source, int64(len(body)))
	return bodyPath, nil
}

// Load reconstructs a Content from a body path and its sidecar, decoding the
// body with the sidecar-declared encoding.
func (s *Store) Load(bodyPath string) (*scrape.Content, error) {
	meta, err := os.ReadFile(sidecarPath(bodyPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: sidecarPath(bodyPath)}
		}
		return nil, fmt.Errorf("read metadata sidecar: %w", err)
	}

	var c scrape.Content
	if err := json.Unmarshal(meta, &c); err != nil {
		return nil, fmt.Errorf("unmarshal metadata %s: %w", sidecarPath(bodyPath), err)
	}

	body, err := os.ReadFile(bodyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: bodyPath}
		}
		return nil, fmt.Errorf("read body %s: %w", bodyPath, err)
	}
	text, err := decodeText(body, c.Encoding)
	if err != nil {
		return nil, fmt.Errorf("decode body as %s: %w", c.Encoding, err)
	}
	c.Text = text
	return &c, nil
}

// loadIndex reads the persisted hash list.
func (s *Store) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.root, indexFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read hash index: %w", err)
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("unmarshal hash index: %w", err)
	}
	s.mu.Lock()
	for _, h := range list {
		s.hashes[h] = struct{}{}
	}
	s.mu.Unlock()
	return nil
}

// saveIndexLocked writes the hash list via a temp file rename so readers
// never observe a torn index. Caller holds s.mu.
func (s *Store) saveIndexLocked() error {
	list := make([]string, 0, len(s.hashes))
	for h := range s.hashes {
		list = append(list, h)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal hash index: %w", err)
	}
	target := filepath.Join(s.root, indexFileName)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write hash index: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("replace hash index: %w", err)
	}
	return nil
}

// encodeText converts text to bytes in the named encoding. Empty and UTF-8
// names pass through.
func encodeText(text, name string) ([]byte, error) {
	if isUTF8(name) {
		return []byte(text), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	out, _, err := transform.Bytes(enc.NewEncoder(), []byte(text))
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	return out, nil
}

// decodeText converts stored bytes back to a string using the named encoding.
func decodeText(body []byte, name string) (string, error) {
	if isUTF8(name) {
		return string(body), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return "", fmt.Errorf("transform: %w", err)
	}
	return string(out), nil
}

func isUTF8(name string) bool {
	return name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8")
}
