package redact

import (
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// DefaultPlaceholderTemplate is used when options carry no template
const DefaultPlaceholderTemplate = "[REDACTED_{n}]"

// Options controls one anonymization session
type Options struct {
	// Keywords are explicit keywords to redact, merged with the
	// persisted dictionary when IncludeDictionary is set.
	Keywords []string

	IncludeDictionary  bool
	AnonymizeFinancial bool
	AnonymizePII       bool

	// PIICategories narrows PII detection to the named categories.
	// Empty (or "all") enables every category when AnonymizePII is set.
	PIICategories []string

	// PlaceholderTemplate must contain exactly one {n} slot.
	PlaceholderTemplate string
}

// ProcessingStats counts substitution operations per detector kind.
// It is created fresh per session and immutable once returned.
type ProcessingStats struct {
	KeywordsReplaced  int            `json:"keywords_replaced"`
	FinancialReplaced int            `json:"financial_replaced"`
	PIIReplaced       map[string]int `json:"pii_replaced"`
}

// TotalReplacements returns the sum over all detectors
func (s *ProcessingStats) TotalReplacements() int {
	return s.KeywordsReplaced + s.FinancialReplaced + lo.Sum(lo.Values(s.PIIReplaced))
}

// Result is the outcome of one session. A dictionary persistence
// failure is reported here without invalidating the stats or the
// processed document.
type Result struct {
	Stats *ProcessingStats

	// NewKeywords are explicit keywords first seen this session
	NewKeywords []string

	// DictionarySaveErr holds the non-fatal store error, if any
	DictionarySaveErr error
}

// ValidationError reports malformed or out-of-policy options. It is
// surfaced before any document mutation is attempted.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid anonymization options: " + strings.Join(e.Violations, "; ")
}

func renderPlaceholder(template string, n int) string {
	return strings.Replace(template, "{n}", strconv.Itoa(n), 1)
}
