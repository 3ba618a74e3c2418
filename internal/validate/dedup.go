package validate

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/anthonydavila469-creator/billdock/internal/model"
	"github.com/anthonydavila469-creator/billdock/internal/service"
)

// amountTolerance is one cent. Two amounts within a cent of each other are
// the same bill as far as duplicate detection is concerned.
var amountTolerance = decimal.New(1, -2)

// last4Patterns pull trailing account digits out of subjects and snippets.
var last4Patterns = []*regexp.Regexp{
	regexp.MustCompile(`\(\.\.\.(\d{4})\)`),
	regexp.MustCompile(`(?i)ending in\s+(\d{4})`),
	regexp.MustCompile(`\*{2,}(\d{4})`),
}

// ExtractAccountLast4 returns the last-4 account digits found in the text,
// or empty.
func ExtractAccountLast4(text string) string {
	for _, re := range last4Patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// findDuplicate cross-references the AI result against the user's existing
// bills. A match requires the same vendor plus at least one corroborating
// signal: amount within a cent, the same due date, or matching account
// digits. Account digits come from the AI's hint or from the subject line,
// whichever has them.
func (v *Validator) findDuplicate(ai service.BillClassification, subject string, existing []model.Bill) *model.Bill {
	if ai.VendorKey == "" {
		return nil
	}

	var aiAmount *decimal.Decimal
	if ai.AmountDue != "" {
		if d, err := decimal.NewFromString(ai.AmountDue); err == nil {
			aiAmount = &d
		}
	}

	aiLast4 := ExtractAccountLast4(ai.AccountHint)
	if aiLast4 == "" {
		aiLast4 = ExtractAccountLast4(subject)
	}

	for i := range existing {
		bill := &existing[i]
		if !v.sameVendor(ai.VendorKey, bill.VendorKey) {
			continue
		}

		if aiAmount != nil && bill.Amount != nil &&
			aiAmount.Sub(*bill.Amount).Abs().LessThanOrEqual(amountTolerance) {
			return bill
		}

		if ai.DueDate != "" && ai.DueDate == bill.DueDate {
			return bill
		}

		if aiLast4 != "" && aiLast4 == bill.AccountLast4 {
			return bill
		}
	}

	return nil
}

// sameVendor compares vendor keys, falling back to a bounded edit distance
// for longer names. Short keys must match exactly so near-homonyms like
// "citi" and "city" stay distinct.
func (v *Validator) sameVendor(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if len(a) <= 4 || len(b) <= 4 {
		return false
	}
	return levenshtein(a, b) <= v.cfg.DupNameDistance
}

// levenshtein computes edit distance with the usual two-row table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}
