// Package pattern holds the compiled detection rules for financial
// amounts and each PII category. The rule table is immutable; callers
// select rules by category and apply them in DetectionOrder.
package pattern

import (
	"fmt"
	"regexp"
)

// Category identifies one detection rule
type Category string

const (
	Financial  Category = "financial"
	CreditCard Category = "credit_card"
	Email      Category = "email"
	IPAddress  Category = "ip_address"
	SSN        Category = "ssn"
	Phone      Category = "phone"
	Date       Category = "date"
)

// Rule represents a single detection rule: a pattern plus an optional
// validation predicate. A candidate failing validation is not a match.
type Rule struct {
	Category Category
	Pattern  *regexp.Regexp
	Validate func(match string) bool
}

// Matches reports whether s is accepted by the rule's validator.
// Rules without a validator accept every pattern hit.
func (r Rule) Accepts(s string) bool {
	return r.Validate == nil || r.Validate(s)
}

// currencySymbols covers the major currency markers; bare numerals
// without one of these never match the financial rule.
const currencySymbols = `[\$\x{20AC}\x{00A3}\x{00A5}\x{20B9}\x{20BD}\x{20BF}\x{00A2}\x{20A9}\x{20AA}\x{20AB}\x{0E3F}\x{20B1}\x{20B4}\x{20B8}\x{20BA}\x{20BC}\x{20BE}]`

var financialRule = Rule{
	Category: Financial,
	Pattern: regexp.MustCompile(
		`(?:` + currencySymbols + `\s?\d+(?:,\d{3})*(?:\.\d{1,2})?` +
			`|\d+(?:,\d{3})*(?:\.\d{1,2})?\s?` + currencySymbols + `)`),
}

// piiRules are ordered to avoid overlap: more specific patterns first,
// phone after SSN so digit-grouped SSNs are consumed before the looser
// phone pattern sees them.
var piiRules = []Rule{
	{
		Category: CreditCard,
		Pattern:  regexp.MustCompile(`\b\d(?:[-.\s]?\d){12,18}\b`),
		Validate: luhnValid,
	},
	{
		Category: Email,
		Pattern:  regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	},
	{
		Category: IPAddress,
		Pattern:  regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`),
	},
	{
		Category: SSN,
		Pattern:  regexp.MustCompile(`\b\d{3}[-.\s]?\d{2}[-.\s]?\d{4}\b`),
	},
	{
		Category: Phone,
		Pattern:  regexp.MustCompile(`\b(?:\+?1[-.\s]?)?(?:\(?\d{3}\)?[-.\s]?)?\d{3}[-.\s]?\d{4}\b`),
	},
	{
		Category: Date,
		Pattern: regexp.MustCompile(`\b(?:\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}` +
			`|\d{4}[/\-]\d{1,2}[/\-]\d{1,2}` +
			`|(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|June?|July?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?\s+\d{1,2},?\s+\d{4})\b`),
	},
}

// FinancialRule returns the currency-amount detection rule
func FinancialRule() Rule {
	return financialRule
}

// RuleFor returns the detection rule for a category
func RuleFor(category Category) (Rule, bool) {
	if category == Financial {
		return financialRule, true
	}
	for _, rule := range piiRules {
		if rule.Category == category {
			return rule, true
		}
	}
	return Rule{}, false
}

// DetectionOrder returns the PII categories in scan order
func DetectionOrder() []Category {
	order := make([]Category, len(piiRules))
	for i, rule := range piiRules {
		order[i] = rule.Category
	}
	return order
}

// AllPIICategories returns the set of recognized PII category names
func AllPIICategories() []Category {
	return DetectionOrder()
}

// ResolvePII expands a category name list into PII categories in scan
// order. The name "all" enables every category; unknown names error.
func ResolvePII(names []string) ([]Category, error) {
	enabled := make(map[Category]bool)
	for _, name := range names {
		if name == "all" {
			for _, rule := range piiRules {
				enabled[rule.Category] = true
			}
			continue
		}

		found := false
		for _, rule := range piiRules {
			if rule.Category == Category(name) {
				enabled[rule.Category] = true
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown PII category: %s", name)
		}
	}

	var categories []Category
	for _, rule := range piiRules {
		if enabled[rule.Category] {
			categories = append(categories, rule.Category)
		}
	}
	return categories, nil
}
