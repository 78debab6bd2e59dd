package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"budget/internal/core"
)

// Store keeps the last saved snapshot in process memory.
type Store struct {
	mu    sync.Mutex
	snap  *core.Snapshot
	saves int
}

func New() *Store {
	return &Store{}
}

// NewWithSnapshot returns a store that already holds s.
func NewWithSnapshot(s core.Snapshot) *Store {
	c := s.Clone()
	return &Store{snap: &c}
}

// NewFromFiles seeds the store with the categories listed one per line in
// base/seed_categories.txt. Without a seed file the store starts empty.
func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		return New()
	}
	return NewWithSnapshot(core.Snapshot{Categories: cats})
}

func (s *Store) Load(_ context.Context) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return core.Snapshot{}, core.ErrSnapshotNotFound
	}
	return s.snap.Clone(), nil
}

func (s *Store) Save(_ context.Context, snap core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := snap.Clone()
	s.snap = &c
	s.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = core.NormalizeCategory(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
