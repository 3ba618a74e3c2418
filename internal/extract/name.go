package extract

import (
	"strings"

	"github.com/anthonydavila469-creator/billdock/internal/model"
)

// localPartJunk are mailbox local parts that carry no vendor signal.
var localPartJunk = map[string]bool{
	"no-reply":      true,
	"noreply":       true,
	"donotreply":    true,
	"do-not-reply":  true,
	"billing":       true,
	"statements":    true,
	"alerts":        true,
	"notifications": true,
	"info":          true,
	"support":       true,
	"service":       true,
	"hello":         true,
	"mail":          true,
	"email":         true,
}

var subjectStopwords = map[string]bool{
	"your": true, "the": true, "a": true, "an": true, "re:": true,
	"fwd:": true, "fw:": true, "new": true, "important": true,
	"reminder:": true, "reminder": true,
}

// extractNames produces vendor name candidates, highest trust first. The
// biller table match is refined into a specific product when product
// keywords appear in the subject or body; refined name and category always
// come from the same refinement entry.
func (e *Extractor) extractNames(email model.RawEmail, text string) []model.NameCandidate {
	var candidates []model.NameCandidate
	haystack := strings.ToLower(email.Subject + "\n" + text)

	if entry := e.matchBiller(email.FromDomain()); entry != nil {
		name, category := entry.Name, entry.Category
		if ref := e.refineProduct(entry.Name, haystack); ref != nil {
			name, category = ref.Name, ref.Category
		}
		candidates = append(candidates, model.NameCandidate{
			Name:     name,
			Category: category,
			Source:   model.NameSourceBillerTable,
			Score:    1.0,
		})
		return candidates
	}

	if name := nameFromLocalPart(email.FromEmail()); name != "" {
		candidates = append(candidates, model.NameCandidate{
			Name:   name,
			Source: model.NameSourceLocalPart,
			Score:  0.6,
		})
	}
	if display := strings.TrimSpace(email.FromName()); display != "" {
		candidates = append(candidates, model.NameCandidate{
			Name:   display,
			Source: model.NameSourceDisplayName,
			Score:  0.5,
		})
	}
	if word := firstMeaningfulWord(email.Subject); word != "" {
		candidates = append(candidates, model.NameCandidate{
			Name:   word,
			Source: model.NameSourceSubject,
			Score:  0.3,
		})
	}

	return candidates
}

// matchBiller finds the biller table entry whose domain matches the sender
// domain exactly or as a parent domain.
func (e *Extractor) matchBiller(senderDomain string) *BillerEntry {
	if senderDomain == "" {
		return nil
	}
	for i := range e.tables.Billers {
		entry := &e.tables.Billers[i]
		if senderDomain == entry.Domain || strings.HasSuffix(senderDomain, "."+entry.Domain) {
			return entry
		}
	}
	return nil
}

// refineProduct returns the first refinement for the vendor whose keywords
// appear in the haystack, or nil when the generic vendor stands.
func (e *Extractor) refineProduct(vendor, haystack string) *ProductRefinement {
	for i := range e.tables.Refinements {
		ref := &e.tables.Refinements[i]
		if ref.Vendor != vendor {
			continue
		}
		for _, kw := range ref.Keywords {
			if strings.Contains(haystack, kw) {
				return ref
			}
		}
	}
	return nil
}

// nameFromLocalPart derives a vendor guess from the sender address. Junk
// local parts like no-reply fall through to the domain's first label.
func nameFromLocalPart(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return ""
	}
	local := strings.ToLower(addr[:at])
	if !localPartJunk[local] {
		return titleWord(local)
	}

	domain := addr[at+1:]
	if dot := strings.Index(domain, "."); dot > 0 {
		return titleWord(domain[:dot])
	}
	return ""
}

func firstMeaningfulWord(subject string) string {
	for _, w := range strings.Fields(subject) {
		if subjectStopwords[strings.ToLower(w)] {
			continue
		}
		return strings.Trim(w, `"':,.!`)
	}
	return ""
}

func titleWord(w string) string {
	w = strings.Trim(w, ".-_")
	if w == "" {
		return ""
	}
	return strings.ToUpper(w[:1]) + w[1:]
}
