package dictionary

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertcande/docx-anonymizer/internal/config"
	"github.com/albertcande/docx-anonymizer/internal/logger"
)

func newTestStore(t *testing.T, opts ...func(*config.DictionaryConfig)) *Store {
	t.Helper()
	cfg := config.DictionaryConfig{
		Path:        filepath.Join(t.TempDir(), "keyword_dictionary.json"),
		LockTimeout: 2 * time.Second,
		MaxEntries:  1000,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return New(cfg, logger.Nop())
}

func TestLoadMissingFile(t *testing.T) {
	store := newTestStore(t)
	assert.Empty(t, store.Load())
}

func TestLoadMalformedFile(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.path, []byte("not json at all"), 0o644))
	assert.Empty(t, store.Load())
}

func TestLoadDropsInvalidEntries(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.path,
		[]byte(`{"Acme Corp": 1, "bad": 0, "worse": -2, "  ": 5}`), 0o644))

	mapping := store.Load()
	assert.Equal(t, map[string]int{"Acme Corp": 1}, mapping)
}

func TestMerge(t *testing.T) {
	store := newTestStore(t)

	t.Run("AssignsOrdinalsInInputOrder", func(t *testing.T) {
		updated, effective, added := store.Merge(map[string]int{}, []string{"John Doe", "Acme Corp"})

		assert.Equal(t, map[string]int{"John Doe": 1, "Acme Corp": 2}, updated)
		assert.Equal(t, []string{"John Doe", "Acme Corp"}, added)
		require.Len(t, effective, 2)
		assert.Equal(t, Keyword{Raw: "John Doe", Ordinal: 1}, effective[0])
		assert.Equal(t, Keyword{Raw: "Acme Corp", Ordinal: 2}, effective[1])
	})

	t.Run("ContinuesPastHighestOrdinal", func(t *testing.T) {
		existing := map[string]int{"John Doe": 3}
		updated, _, added := store.Merge(existing, []string{"Jane Smith"})

		assert.Equal(t, 4, updated["Jane Smith"])
		assert.Equal(t, []string{"Jane Smith"}, added)
	})

	t.Run("CaseAndWhitespaceInsensitiveDedup", func(t *testing.T) {
		existing := map[string]int{"John Doe": 1}
		updated, effective, added := store.Merge(existing, []string{"  JOHN DOE  ", "john doe"})

		assert.Equal(t, existing, updated)
		assert.Empty(t, added)
		require.Len(t, effective, 1)
		// Persisted spelling wins over later variants.
		assert.Equal(t, "John Doe", effective[0].Raw)
	})

	t.Run("SkipsBlankKeywords", func(t *testing.T) {
		updated, _, added := store.Merge(map[string]int{}, []string{"  ", "", "Acme"})
		assert.Equal(t, map[string]int{"Acme": 1}, updated)
		assert.Equal(t, []string{"Acme"}, added)
	})
}

func TestMergeEnforcesEntryCap(t *testing.T) {
	store := newTestStore(t, func(cfg *config.DictionaryConfig) { cfg.MaxEntries = 2 })

	existing := map[string]int{"first": 1, "second": 2}
	updated, _, added := store.Merge(existing, []string{"third", "second"})

	// Existing entries survive; excess new keywords are dropped.
	assert.Equal(t, existing, updated)
	assert.Empty(t, added)
}

func TestAppendRoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append([]string{"John Doe", "Acme Corp"}))
	assert.Equal(t, map[string]int{"John Doe": 1, "Acme Corp": 2}, store.Load())

	// A second append dedupes case-insensitively and keeps numbering.
	require.NoError(t, store.Append([]string{"ACME CORP", "Jane Smith"}))
	assert.Equal(t, map[string]int{"John Doe": 1, "Acme Corp": 2, "Jane Smith": 3}, store.Load())
}

func TestSaveAndClear(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(map[string]int{"Acme": 1}))
	assert.Equal(t, map[string]int{"Acme": 1}, store.Load())

	require.NoError(t, store.Clear())
	assert.Empty(t, store.Load())

	// Atomic write leaves no temp file behind.
	_, err := os.Stat(store.path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestConcurrentAppends(t *testing.T) {
	store := newTestStore(t)

	keywords := [][]string{
		{"alpha", "beta"},
		{"gamma", "delta"},
		{"epsilon", "zeta"},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(keywords))
	for i, batch := range keywords {
		wg.Add(1)
		go func(i int, batch []string) {
			defer wg.Done()
			errs[i] = store.Append(batch)
		}(i, batch)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	mapping := store.Load()
	require.Len(t, mapping, 6)

	// The lock serializes writers, so ordinals are a permutation of 1..6.
	seen := make(map[int]string, len(mapping))
	for kw, ord := range mapping {
		assert.NotContains(t, seen, ord, "duplicate ordinal %d for %s and %s", ord, kw, seen[ord])
		assert.GreaterOrEqual(t, ord, 1)
		assert.LessOrEqual(t, ord, 6)
		seen[ord] = kw
	}
}

func TestLockTimeout(t *testing.T) {
	store := newTestStore(t, func(cfg *config.DictionaryConfig) { cfg.LockTimeout = 150 * time.Millisecond })

	// Write a lock owned by a live foreign process (our parent). A lock
	// held by our own PID would be reclaimed instead of honored.
	lockPath, err := filepath.Abs(store.path + ".lock")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(lockPath, []byte(fmt.Sprintf("%d\n", os.Getppid())), 0o644))
	defer os.Remove(lockPath)

	err = store.Save(map[string]int{"Acme": 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockTimeout))

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "save", storeErr.Op)
}

func TestValidateKeyword(t *testing.T) {
	trimmed, err := ValidateKeyword("  Acme Corp  ", 200)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", trimmed)

	_, err = ValidateKeyword("   ", 200)
	assert.Error(t, err)

	_, err = ValidateKeyword("toolong", 3)
	assert.Error(t, err)
}
