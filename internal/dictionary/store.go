// Package dictionary implements the persistent keyword store: a flat
// JSON mapping of keyword to placeholder ordinal, guarded by an
// advisory file lock so concurrent sessions never interleave writes.
package dictionary

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/nightlyone/lockfile"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/albertcande/docx-anonymizer/internal/config"
	"github.com/albertcande/docx-anonymizer/internal/logger"
)

// ErrLockTimeout is returned when the dictionary lock cannot be
// acquired within the configured wait.
var ErrLockTimeout = errors.New("dictionary lock acquisition timed out")

// StoreError wraps a dictionary load/save failure. Callers treat it as
// non-fatal to any anonymization result already computed in memory.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("dictionary %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Keyword is one effective dictionary entry: the raw text as first
// persisted and its assigned placeholder ordinal.
type Keyword struct {
	Raw     string
	Ordinal int
}

// Store provides exclusive-access persistence for the keyword mapping
type Store struct {
	path        string
	lockTimeout time.Duration
	maxEntries  int
	logger      *logger.Logger
}

// New creates a keyword store for the configured dictionary file
func New(cfg config.DictionaryConfig, log *logger.Logger) *Store {
	return &Store{
		path:        cfg.Path,
		lockTimeout: cfg.LockTimeout,
		maxEntries:  cfg.MaxEntries,
		logger:      log,
	}
}

// Load reads the persisted mapping. It fails softly: a missing or
// malformed file yields an empty mapping, never an error, so
// corruption can only cost the persisted dictionary for one run.
// Readers take no lock; a slightly stale snapshot is acceptable.
func (s *Store) Load() map[string]int {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read dictionary file", zap.String("path", s.path), zap.Error(err))
		}
		return map[string]int{}
	}

	var mapping map[string]int
	if err := json.Unmarshal(data, &mapping); err != nil {
		s.logger.Warn("Dictionary file is malformed, skipping persisted keywords this run",
			zap.String("path", s.path), zap.Error(err))
		return map[string]int{}
	}

	// Drop entries with non-positive ordinals; they cannot have been
	// written by us and would corrupt next-ordinal assignment.
	for kw, ord := range mapping {
		if ord <= 0 || strings.TrimSpace(kw) == "" {
			s.logger.Warn("Dropping invalid dictionary entry", zap.String("keyword", kw), zap.Int("ordinal", ord))
			delete(mapping, kw)
		}
	}
	return mapping
}

// Merge folds new keywords into an existing mapping. Keywords are
// trimmed and matched case-insensitively: a keyword differing from a
// persisted one only by case or surrounding whitespace reuses its
// ordinal. Genuinely new keywords receive the next unused ordinal in
// input order. The hard cap on persisted entries keeps insertion
// order: existing entries always survive, excess new keywords are
// dropped entirely.
//
// It returns the updated mapping, the effective keyword set
// (ordinal-ascending), and the raw texts that were newly added.
func (s *Store) Merge(existing map[string]int, keywords []string) (map[string]int, []Keyword, []string) {
	updated := make(map[string]int, len(existing))
	byFold := make(map[string]string, len(existing))
	for kw, ord := range existing {
		updated[kw] = ord
		byFold[foldKey(kw)] = kw
	}

	next := 1
	if len(updated) > 0 {
		next = lo.Max(lo.Values(updated)) + 1
	}

	var added []string
	for _, raw := range keywords {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if _, ok := byFold[foldKey(trimmed)]; ok {
			continue
		}
		if s.maxEntries > 0 && len(updated) >= s.maxEntries {
			s.logger.Warn("Keyword dictionary is full, dropping keyword",
				zap.Int("max_entries", s.maxEntries))
			continue
		}
		updated[trimmed] = next
		byFold[foldKey(trimmed)] = trimmed
		added = append(added, trimmed)
		next++
	}

	effective := make([]Keyword, 0, len(updated))
	for kw, ord := range updated {
		effective = append(effective, Keyword{Raw: kw, Ordinal: ord})
	}
	sort.Slice(effective, func(i, j int) bool { return effective[i].Ordinal < effective[j].Ordinal })

	return updated, effective, added
}

// Append persists new keywords, holding the file lock for the full
// read-merge-write cycle so concurrent writers cannot lose updates.
func (s *Store) Append(keywords []string) error {
	return s.withLock("append", func() error {
		current := s.Load()
		updated, _, added := s.Merge(current, keywords)
		if len(added) == 0 {
			return nil
		}
		return s.write(updated)
	})
}

// Save replaces the persisted mapping under the file lock
func (s *Store) Save(mapping map[string]int) error {
	return s.withLock("save", func() error {
		return s.write(mapping)
	})
}

// Clear removes every persisted keyword
func (s *Store) Clear() error {
	return s.Save(map[string]int{})
}

// withLock runs fn while holding the dictionary's advisory lock. The
// lock is released on every exit path, including write failure. Lock
// acquisition waits at most the configured timeout.
func (s *Store) withLock(op string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return &StoreError{Op: op, Err: err}
	}

	lockPath, err := filepath.Abs(s.path + ".lock")
	if err != nil {
		return &StoreError{Op: op, Err: err}
	}
	lock, err := lockfile.New(lockPath)
	if err != nil {
		return &StoreError{Op: op, Err: err}
	}

	deadline := time.Now().Add(s.lockTimeout)
	for {
		err = lock.TryLock()
		if err == nil {
			break
		}
		var temporary lockfile.TemporaryError
		if !errors.As(err, &temporary) {
			return &StoreError{Op: op, Err: err}
		}
		if time.Now().After(deadline) {
			s.logger.Error("Could not acquire dictionary lock within timeout",
				zap.String("path", lockPath), zap.Duration("timeout", s.lockTimeout))
			return &StoreError{Op: op, Err: ErrLockTimeout}
		}
		time.Sleep(25 * time.Millisecond)
	}
	defer func() {
		if uerr := lock.Unlock(); uerr != nil {
			s.logger.Warn("Failed to release dictionary lock", zap.Error(uerr))
		}
	}()

	if err := fn(); err != nil {
		return &StoreError{Op: op, Err: err}
	}
	return nil
}

// write serializes the mapping atomically: write to a temp file, then
// rename over the dictionary. Must be called with the lock held.
func (s *Store) write(mapping map[string]int) error {
	data, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return err
	}

	s.logger.Debug("Dictionary written", zap.String("path", s.path), zap.Int("entries", len(mapping)))
	return nil
}

// ValidateKeyword trims a keyword and rejects empty or oversized ones
func ValidateKeyword(keyword string, maxLength int) (string, error) {
	trimmed := strings.TrimSpace(keyword)
	if trimmed == "" {
		return "", errors.New("keyword cannot be empty")
	}
	if maxLength > 0 && len(trimmed) > maxLength {
		return "", fmt.Errorf("keyword exceeds %d characters", maxLength)
	}
	return trimmed, nil
}

func foldKey(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}
