// Package recency persists the bounded list of recently opened posts.
//
// The store is deliberately forgiving: a missing file, malformed JSON, or an
// unwritable directory all degrade to an empty list. Failures here must never
// surface to users.
package recency

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/keepgoing-web/keepgoing/internal/models"
)

// Capacity is the maximum number of entries kept.
const Capacity = 5

// Store is a file-backed, deduplicated, most-recent-first list of posts.
type Store struct {
	path string

	mu      sync.Mutex
	entries []models.RecentPost
	loaded  bool
}

// New creates a Store persisting to the given file path. The file is read
// lazily on first use.
func New(path string) *Store {
	return &Store{path: path}
}

// Get returns the persisted entries, most recent first. Storage failures and
// corruption yield an empty list.
func (s *Store) Get() []models.RecentPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
	out := make([]models.RecentPost, len(s.entries))
	copy(out, s.entries)
	return out
}

// Record dedupes by id, prepends the post, truncates to Capacity, and
// persists synchronously. The updated list is returned even when the write
// fails; persistence failure is silent.
func (s *Store) Record(post models.RecentPost) []models.RecentPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()

	next := make([]models.RecentPost, 0, len(s.entries)+1)
	next = append(next, post)
	for _, e := range s.entries {
		if e.ID == post.ID {
			continue
		}
		next = append(next, e)
	}
	if len(next) > Capacity {
		next = next[:Capacity]
	}
	s.entries = next
	s.persistLocked()

	out := make([]models.RecentPost, len(next))
	copy(out, next)
	return out
}

func (s *Store) loadLocked() {
	if s.loaded {
		return
	}
	s.loaded = true

	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var raw []models.RecentPost
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Debug("recency: ignoring corrupt store", slog.String("path", s.path), slog.String("error", err.Error()))
		return
	}
	// Dedupe on read; older copies of the file may predate dedup-on-write.
	seen := make(map[string]struct{}, len(raw))
	for _, e := range raw {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		s.entries = append(s.entries, e)
		if len(s.entries) == Capacity {
			break
		}
	}
}

func (s *Store) persistLocked() {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Debug("recency: persist skipped", slog.String("error", err.Error()))
			return
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		slog.Debug("recency: persist failed", slog.String("path", s.path), slog.String("error", err.Error()))
	}
}
