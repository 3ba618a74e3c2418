package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/anthonydavila469-creator/billdock/internal/model"
)

// amountPattern is one labeled amount regex. Priority is explicit rather
// than implied by list order, so reordering cannot change precedence.
type amountPattern struct {
	re       *regexp.Regexp
	label    string
	priority int
	minimum  bool
}

var amountPatterns = []amountPattern{
	{
		label:    "total_due",
		priority: 100,
		re:       regexp.MustCompile(`(?i)\b(?:total\s+(?:amount\s+)?due|amount\s+due|total\s+due|amount\s+owed)\b[^\d$\n]{0,30}\$?\s*([\d,]+(?:\.\d{2})?)`),
	},
	{
		label:    "statement_balance",
		priority: 95,
		re:       regexp.MustCompile(`(?i)\b(?:statement\s+balance|new\s+balance|current\s+balance|balance\s+due)\b[^\d$\n]{0,30}\$?\s*([\d,]+(?:\.\d{2})?)`),
	},
	{
		label:    "payment_of",
		priority: 60,
		re:       regexp.MustCompile(`(?i)\bpayment\s+of\b[^\d$\n]{0,20}\$\s*([\d,]+(?:\.\d{2})?)`),
	},
	{
		label:    "minimum_payment",
		priority: 20,
		minimum:  true,
		re:       regexp.MustCompile(`(?i)\bminimum\s+(?:payment|amount)(?:\s+due)?\b[^\d$\n]{0,30}\$?\s*([\d,]+(?:\.\d{2})?)`),
	},
	{
		label:    "bare_dollar",
		priority: 10,
		re:       regexp.MustCompile(`\$\s*([\d,]+\.\d{2})\b`),
	},
}

const maxPlausibleAmount = 10000

// extractAmounts returns amount candidates sorted by preference. Minimum
// payment matches are excluded when anything better exists; implausible
// values (account numbers, zip codes) are dropped outright.
func extractAmounts(text string) []model.AmountCandidate {
	seen := make(map[string]bool)
	minValues := make(map[string]bool)
	var candidates []model.AmountCandidate
	var minimums []model.AmountCandidate

	match := func(p amountPattern) []model.AmountCandidate {
		var out []model.AmountCandidate
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			raw := text[m[2]:m[3]]
			value, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
			if err != nil {
				continue
			}
			if !plausibleAmount(value, raw) {
				continue
			}
			cand := model.AmountCandidate{
				Raw:        raw,
				Value:      value,
				Context:    surrounding(text, m[0], m[1], 60),
				Priority:   p.priority,
				Score:      float64(p.priority),
				HasDecimal: strings.Contains(raw, "."),
				NearDollar: strings.Contains(text[m[0]:m[1]], "$"),
				IsMinimum:  p.minimum,
			}
			if cand.NearDollar {
				cand.Score += 5
			}
			out = append(out, cand)
		}
		return out
	}

	// Minimum-payment matches first: their values also suppress unlabeled
	// matches of the same number further down.
	for _, p := range amountPatterns {
		if !p.minimum {
			continue
		}
		for _, cand := range match(p) {
			if minValues[cand.Value.String()] {
				continue
			}
			minValues[cand.Value.String()] = true
			minimums = append(minimums, cand)
		}
	}

	for _, p := range amountPatterns {
		if p.minimum {
			continue
		}
		for _, cand := range match(p) {
			key := cand.Value.String()
			if seen[key] {
				continue
			}
			// An unlabeled match of a known minimum-payment value is the
			// minimum payment seen again, not a new candidate.
			if p.priority < 90 && minValues[key] {
				continue
			}
			seen[key] = true
			candidates = append(candidates, cand)
		}
	}

	// Minimum-payment amounts only surface when nothing else matched.
	if len(candidates) == 0 {
		candidates = minimums
	}

	sortAmounts(candidates)
	return candidates
}

// sortAmounts orders candidates: higher pattern priority first, then real
// currency (decimal-bearing) over integral values, then larger amounts.
func sortAmounts(candidates []model.AmountCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.HasDecimal != b.HasDecimal {
			return a.HasDecimal
		}
		return a.Value.GreaterThan(b.Value)
	})
}

// plausibleAmount rejects values that look like zip codes or account
// numbers rather than money.
func plausibleAmount(value decimal.Decimal, raw string) bool {
	if value.LessThanOrEqual(decimal.Zero) {
		return false
	}
	if value.GreaterThan(decimal.NewFromInt(maxPlausibleAmount)) {
		return false
	}
	// Large round numbers without cents are usually identifiers.
	if !strings.Contains(raw, ".") && value.GreaterThanOrEqual(decimal.NewFromInt(1000)) {
		return false
	}
	return true
}

// surrounding returns up to width characters of context around a match.
func surrounding(text string, start, end, width int) string {
	lo := start - width
	if lo < 0 {
		lo = 0
	}
	hi := end + width
	if hi > len(text) {
		hi = len(text)
	}
	return strings.TrimSpace(strings.ReplaceAll(text[lo:hi], "\n", " "))
}
