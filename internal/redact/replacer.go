package redact

import (
	"regexp"
	"sort"
	"strings"

	"github.com/albertcande/docx-anonymizer/internal/dictionary"
	"github.com/albertcande/docx-anonymizer/internal/pattern"
)

// Replacer rewrites the text of one text-bearing node at a time,
// applying the three detectors in fixed precedence order: keywords,
// then financial amounts, then PII. A span consumed by an earlier
// detector is never re-matched by a later one.
type Replacer struct {
	keywords  []keywordMatcher
	template  string
	financial bool
	pii       []pattern.Category

	// ordinals assigns one placeholder number per distinct matched
	// string within a category; next continues past the highest
	// keyword ordinal so placeholder numbers stay unique per session.
	ordinals map[pattern.Category]map[string]int
	next     int

	stats *ProcessingStats
}

type keywordMatcher struct {
	re          *regexp.Regexp
	placeholder string
}

// newReplacer compiles the effective keyword set longest-first, so a
// longer keyword wins at an overlapping position over its prefix.
func newReplacer(keywords []dictionary.Keyword, template string, financial bool, pii []pattern.Category, stats *ProcessingStats) *Replacer {
	sorted := make([]dictionary.Keyword, len(keywords))
	copy(sorted, keywords)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Raw) > len(sorted[j].Raw)
	})

	next := 1
	matchers := make([]keywordMatcher, 0, len(sorted))
	for _, kw := range sorted {
		matchers = append(matchers, keywordMatcher{
			re:          regexp.MustCompile(`(?i)` + regexp.QuoteMeta(kw.Raw)),
			placeholder: renderPlaceholder(template, kw.Ordinal),
		})
		if kw.Ordinal >= next {
			next = kw.Ordinal + 1
		}
	}

	return &Replacer{
		keywords:  matchers,
		template:  template,
		financial: financial,
		pii:       pii,
		ordinals:  make(map[pattern.Category]map[string]int),
		next:      next,
		stats:     stats,
	}
}

// Apply rewrites one run of text and updates the session counters.
// Empty and whitespace-only runs are no-ops. Matches spanning two runs
// are not detected; detection operates within one contiguous node.
func (r *Replacer) Apply(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	for _, kw := range r.keywords {
		text = kw.re.ReplaceAllStringFunc(text, func(string) string {
			r.stats.KeywordsReplaced++
			return kw.placeholder
		})
	}

	if r.financial {
		rule := pattern.FinancialRule()
		text = rule.Pattern.ReplaceAllStringFunc(text, func(match string) string {
			r.stats.FinancialReplaced++
			return r.placeholderFor(pattern.Financial, match)
		})
	}

	for _, category := range r.pii {
		rule, ok := pattern.RuleFor(category)
		if !ok {
			continue
		}
		text = rule.Pattern.ReplaceAllStringFunc(text, func(match string) string {
			if !rule.Accepts(match) {
				// Failed the validation predicate; not PII.
				return match
			}
			r.stats.PIIReplaced[string(category)]++
			return r.placeholderFor(category, match)
		})
	}

	return text
}

// placeholderFor returns the placeholder for a matched string,
// assigning the next session ordinal on first sight and reusing it for
// repeated occurrences of the identical string.
func (r *Replacer) placeholderFor(category pattern.Category, match string) string {
	seen := r.ordinals[category]
	if seen == nil {
		seen = make(map[string]int)
		r.ordinals[category] = seen
	}

	ordinal, ok := seen[match]
	if !ok {
		ordinal = r.next
		r.next++
		seen[match] = ordinal
	}
	return renderPlaceholder(r.template, ordinal)
}
