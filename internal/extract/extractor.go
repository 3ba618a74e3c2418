package extract

import (
	"fmt"
	"strings"

	"github.com/anthonydavila469-creator/billdock/internal/common"
	"github.com/anthonydavila469-creator/billdock/internal/model"
)

// maxEvidenceLen bounds each evidence snippet.
const maxEvidenceLen = 80

// Extractor runs the deterministic candidate extraction for one email.
// It holds only immutable tables and is safe for concurrent use.
type Extractor struct {
	tables Tables
}

// NewExtractor creates an extractor over the given reference tables.
func NewExtractor(tables Tables) *Extractor {
	return &Extractor{tables: tables}
}

// Extract runs the skip gate first, then amount, date, and name extraction
// over the preprocessed text. A skipped email carries no candidates; the
// gate is the primary cost control before the model call.
func (e *Extractor) Extract(email model.RawEmail, text string) model.CandidateSet {
	if skip, reason := e.shouldSkip(email.Subject, text); skip {
		return model.CandidateSet{ShouldSkip: true, SkipReason: reason}
	}

	set := model.CandidateSet{
		Amounts: extractAmounts(text),
		Dates:   extractDates(text, email.Date),
		Names:   e.extractNames(email, text),
	}
	set.Evidence = e.collectEvidence(email.Subject, text, set)
	return set
}

// Prefilter is the cheap gate run before preprocessing: it looks only at
// the sender domain and subject line. It returns whether the email is worth
// the full pipeline and, when skipping, why. Senders in the biller table
// always pass; a skip keyword in the subject always loses. An email
// matching neither is left to the caller's default policy.
func (e *Extractor) Prefilter(email model.RawEmail) (known, skip bool, reason string) {
	domain := email.FromDomain()
	for _, biller := range e.tables.Billers {
		if domain == biller.Domain || strings.HasSuffix(domain, "."+biller.Domain) {
			return true, false, ""
		}
	}

	subject := strings.ToLower(email.Subject)
	for _, kw := range e.tables.SkipKeywords {
		if strings.Contains(subject, kw) {
			return false, true, fmt.Sprintf("skip keyword in subject: %q", kw)
		}
	}
	promoHits := 0
	for _, kw := range e.tables.PromoKeywords {
		if strings.Contains(subject, kw) {
			promoHits++
			if promoHits >= 2 {
				return false, true, "promotional subject"
			}
		}
	}

	return false, false, ""
}

// shouldSkip applies the pre-classification gate: any skip keyword wins
// outright, and two or more promotional keywords mark a marketing email.
// Skip keywords take priority over bill keywords; bill keywords are never
// consulted here.
func (e *Extractor) shouldSkip(subject, text string) (bool, string) {
	haystack := strings.ToLower(subject + "\n" + text)

	for _, kw := range e.tables.SkipKeywords {
		if strings.Contains(haystack, kw) {
			return true, fmt.Sprintf("skip keyword: %q", kw)
		}
	}

	promoHits := 0
	var matched []string
	for _, kw := range e.tables.PromoKeywords {
		if strings.Contains(haystack, kw) {
			promoHits++
			matched = append(matched, kw)
			if promoHits >= 2 {
				return true, fmt.Sprintf("promotional keywords: %s", strings.Join(matched, ", "))
			}
		}
	}

	return false, ""
}

// collectEvidence gathers short snippets justifying a BILL signal from the
// strongest deterministic matches.
func (e *Extractor) collectEvidence(subject, text string, set model.CandidateSet) []string {
	var evidence []string

	haystack := strings.ToLower(subject + "\n" + text)
	for _, kw := range e.tables.BillKeywords {
		if idx := strings.Index(haystack, kw); idx >= 0 {
			evidence = append(evidence, clipEvidence(surrounding(subject+"\n"+text, idx, idx+len(kw), 30)))
			if len(evidence) >= 3 {
				break
			}
		}
	}

	if a := set.BestAmount(); a != nil {
		evidence = append(evidence, clipEvidence(a.Context))
	}
	if d := set.BestDate(); d != nil {
		evidence = append(evidence, clipEvidence(d.Context))
	}
	return evidence
}

func clipEvidence(s string) string {
	return common.Truncate(s, maxEvidenceLen)
}
