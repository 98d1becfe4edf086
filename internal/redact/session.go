package redact

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/albertcande/docx-anonymizer/internal/config"
	"github.com/albertcande/docx-anonymizer/internal/dictionary"
	"github.com/albertcande/docx-anonymizer/internal/docx"
	"github.com/albertcande/docx-anonymizer/internal/logger"
	"github.com/albertcande/docx-anonymizer/internal/pattern"
)

// Session orchestrates one anonymization request: it resolves the
// effective keyword set, walks the document tree, applies the replacer
// per text run, and persists newly discovered keywords.
type Session struct {
	store  *dictionary.Store
	limits config.LimitsConfig
	logger *logger.Logger
}

// NewSession creates a session bound to a keyword store
func NewSession(store *dictionary.Store, limits config.LimitsConfig, log *logger.Logger) *Session {
	return &Session{
		store:  store,
		limits: limits,
		logger: log,
	}
}

// Process anonymizes an opened document in place and returns the
// session result. Validation failures abort before any mutation; a
// dictionary save failure is reported on the result, never by error.
func (s *Session) Process(doc *docx.Document, opts Options) (*Result, error) {
	template, piiCategories, err := s.validate(opts)
	if err != nil {
		return nil, err
	}

	existing := map[string]int{}
	if opts.IncludeDictionary {
		existing = s.store.Load()
	}
	_, effective, added := s.store.Merge(existing, opts.Keywords)

	s.logger.Info("Processing document",
		zap.Int("keywords", len(effective)),
		zap.Bool("financial", opts.AnonymizeFinancial),
		zap.Int("pii_categories", len(piiCategories)),
	)

	stats := &ProcessingStats{PIIReplaced: make(map[string]int)}
	replacer := newReplacer(effective, template, opts.AnonymizeFinancial, piiCategories, stats)

	// Body blocks first, in document order; header and footer parts
	// follow. This ordering decides which distinct match is first seen
	// and therefore which placeholder number it gets.
	s.walkBlocks(doc.Body(), replacer)
	for _, part := range doc.Extras() {
		s.walkBlocks(part.Blocks, replacer)
	}

	result := &Result{Stats: stats, NewKeywords: added}

	if opts.IncludeDictionary && len(added) > 0 {
		if err := s.store.Append(added); err != nil {
			s.logger.Error("Failed to persist new keywords; redaction result is unaffected",
				zap.Int("new_keywords", len(added)), zap.Error(err))
			result.DictionarySaveErr = err
		}
	}

	s.logger.Info("Processing complete",
		zap.Int("keywords_replaced", stats.KeywordsReplaced),
		zap.Int("financial_replaced", stats.FinancialReplaced),
		zap.Int("total_replacements", stats.TotalReplacements()),
	)

	return result, nil
}

// ProcessBytes opens a document package, anonymizes it, and returns
// the rewritten package bytes.
func (s *Session) ProcessBytes(data []byte, opts Options) ([]byte, *Result, error) {
	doc, err := docx.Open(data)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.Process(doc, opts)
	if err != nil {
		return nil, nil, err
	}

	out, err := doc.Bytes()
	if err != nil {
		return nil, nil, err
	}
	return out, result, nil
}

// walkBlocks visits paragraphs and tables in document order, rows
// top-to-bottom, cells left-to-right, recursing into nested tables
// before the next sibling cell.
func (s *Session) walkBlocks(blocks []docx.Block, replacer *Replacer) {
	for _, block := range blocks {
		switch b := block.(type) {
		case *docx.Paragraph:
			for _, run := range b.Runs {
				run.SetText(replacer.Apply(run.Text()))
			}
		case *docx.Table:
			for _, row := range b.Rows {
				for _, cell := range row.Cells {
					s.walkBlocks(cell.Blocks, replacer)
				}
			}
		}
	}
}

// validate checks options against policy before any mutation
func (s *Session) validate(opts Options) (string, []pattern.Category, error) {
	var violations []string

	if s.limits.MaxKeywords > 0 && len(opts.Keywords) > s.limits.MaxKeywords {
		violations = append(violations,
			fmt.Sprintf("too many keywords: %d (max %d)", len(opts.Keywords), s.limits.MaxKeywords))
	}
	for i, kw := range opts.Keywords {
		if _, err := dictionary.ValidateKeyword(kw, s.limits.MaxKeywordLength); err != nil {
			violations = append(violations, fmt.Sprintf("keyword %d: %v", i+1, err))
		}
	}

	template := opts.PlaceholderTemplate
	if template == "" {
		template = DefaultPlaceholderTemplate
	}
	if strings.Count(template, "{n}") != 1 {
		violations = append(violations,
			fmt.Sprintf("placeholder template %q must contain exactly one {n} slot", template))
	}

	var piiCategories []pattern.Category
	if opts.AnonymizePII {
		names := opts.PIICategories
		if len(names) == 0 {
			names = []string{"all"}
		}
		resolved, err := pattern.ResolvePII(names)
		if err != nil {
			violations = append(violations, err.Error())
		} else {
			piiCategories = resolved
		}
	}

	if len(violations) > 0 {
		return "", nil, &ValidationError{Violations: violations}
	}
	return template, piiCategories, nil
}
