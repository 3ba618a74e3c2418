package extract

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/anthonydavila469-creator/billdock/internal/model"
)

// dateToken matches one date expression in any of the supported shapes:
// 2026-01-05, 1/5/2026, 1/5, Jan 5, January 5th 2026, 5 January 2026.
const dateToken = `(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}(?:/\d{2,4})?|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?|\d{1,2}(?:st|nd|rd|th)?\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?(?:,?\s+\d{4})?)`

// datePattern is one labeled date regex with explicit priority.
type datePattern struct {
	re       *regexp.Regexp
	label    string
	priority int
}

var datePatterns = []datePattern{
	{label: "due_date_label", priority: 100, re: regexp.MustCompile(`(?i)\bdue\s+date\b[:\s]*` + dateToken)},
	{label: "due_on", priority: 90, re: regexp.MustCompile(`(?i)\b(?:due|payable)\s+(?:on|by)\b[:\s]*` + dateToken)},
	{label: "payment_due", priority: 85, re: regexp.MustCompile(`(?i)\bpayment\s+due\b[:\s]*` + dateToken)},
	{label: "by_date", priority: 70, re: regexp.MustCompile(`(?i)\bby\s+` + dateToken)},
	{label: "scheduled_for", priority: 60, re: regexp.MustCompile(`(?i)\bscheduled\s+for\b[:\s]*` + dateToken)},
	{label: "near_amount", priority: 40, re: regexp.MustCompile(`(?i)\$[\d,.]+[^\n]{0,40}?` + dateToken)},
	{label: "bare_date", priority: 10, re: regexp.MustCompile(`(?i)\b` + dateToken)},
}

var ordinalRe = regexp.MustCompile(`(\d{1,2})(st|nd|rd|th)\b`)

// withYearLayouts carry an explicit year; bare layouts do not and are
// subject to the year-rollover rule.
var withYearLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Jan. 2, 2006",
	"2 January 2006",
	"2 January, 2006",
	"2 Jan 2006",
}

var bareLayouts = []string{
	"January 2",
	"Jan 2",
	"Jan. 2",
	"2 January",
	"2 Jan",
	"1/2",
}

// NormalizeDueDate converts a raw date expression into YYYY-MM-DD. When the
// source text carried no year, a date falling more than 30 days before the
// reference date rolls forward one year: a "Jan 5" bill received in
// December means the next January. Unparsable input returns ok=false;
// already-normalized strings pass through unchanged.
func NormalizeDueDate(raw string, ref time.Time) (string, bool) {
	cleaned := strings.TrimSpace(ordinalRe.ReplaceAllString(raw, "$1"))
	if cleaned == "" {
		return "", false
	}
	cleaned = canonicalMonthCase(cleaned)

	for _, layout := range withYearLayouts {
		if d, err := time.Parse(layout, cleaned); err == nil {
			return d.Format("2006-01-02"), true
		}
	}

	for _, layout := range bareLayouts {
		d, err := time.Parse(layout, cleaned)
		if err != nil {
			continue
		}
		d = time.Date(ref.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		if ref.Sub(d) > 30*24*time.Hour {
			d = d.AddDate(1, 0, 0)
		}
		return d.Format("2006-01-02"), true
	}

	return "", false
}

// extractDates returns date candidates sorted by preference against the
// given reference time (the email's receipt date).
func extractDates(text string, ref time.Time) []model.DateCandidate {
	seen := make(map[string]bool)
	var candidates []model.DateCandidate

	for _, p := range datePatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			raw := text[m[2]:m[3]]
			normalized, ok := NormalizeDueDate(raw, ref)
			if !ok {
				continue
			}

			key := p.label + "|" + normalized
			if seen[key] {
				continue
			}
			seen[key] = true

			candidates = append(candidates, model.DateCandidate{
				Raw:        raw,
				Normalized: normalized,
				Context:    surrounding(text, m[0], m[1], 50),
				Priority:   p.priority,
				Score:      float64(p.priority),
			})
		}
	}

	sortDates(candidates, ref)
	return candidates
}

// sortDates orders candidates by pattern priority; among equal priority,
// future dates nearest the reference win, then nearest overall.
func sortDates(candidates []model.DateCandidate, ref time.Time) {
	refDay := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		da, _ := time.Parse("2006-01-02", a.Normalized)
		db, _ := time.Parse("2006-01-02", b.Normalized)
		aFuture := !da.Before(refDay)
		bFuture := !db.Before(refDay)
		if aFuture != bFuture {
			return aFuture
		}
		return absDuration(da.Sub(refDay)) < absDuration(db.Sub(refDay))
	})
}

// canonicalMonthCase rewrites alphabetic words to "Jan"/"January" casing so
// time.Parse accepts month names regardless of the source text's case.
func canonicalMonthCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) == 0 || w[0] == '$' {
			continue
		}
		first := w[0]
		if (first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z') {
			words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
		}
	}
	return strings.Join(words, " ")
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
