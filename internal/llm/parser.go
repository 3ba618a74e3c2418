package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/anthonydavila469-creator/billdock/internal/common"
	"github.com/anthonydavila469-creator/billdock/internal/model"
	"github.com/anthonydavila469-creator/billdock/internal/service"
)

// rawBillResponse mirrors the JSON the model is instructed to emit. It is
// loosely typed on purpose and must not escape this package.
type rawBillResponse struct {
	Decision      string   `json:"decision"`
	Confidence    float64  `json:"confidence"`
	VendorName    string   `json:"vendorName"`
	VendorKey     string   `json:"vendorKey"`
	BillType      string   `json:"billType"`
	AmountDue     any      `json:"amountDue"`
	DueDate       string   `json:"dueDate"`
	Currency      string   `json:"currency"`
	AccountHint   string   `json:"accountHint"`
	PaymentStatus string   `json:"paymentStatus"`
	PaymentLink   string   `json:"paymentLink"`
	Recurring     bool     `json:"recurring"`
	Reason        string   `json:"reason"`
	Evidence      struct {
		BillSignals    []string `json:"billSignals"`
		NotBillSignals []string `json:"notBillSignals"`
	} `json:"evidence"`
}

type rawLinkResponse struct {
	URL       string `json:"url"`
	Rationale string `json:"rationale"`
}

// cleanMarkdownWrapper strips a ```json fence if the model wrapped its
// output despite instructions.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	return content
}

// parseBillResponse parses and normalizes the classification JSON. Any
// response that is not valid JSON with a recognizable decision is a hard
// failure; nothing is silently coerced.
func parseBillResponse(content string) (service.BillClassification, error) {
	var zero service.BillClassification

	var raw rawBillResponse
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(content)), &raw); err != nil {
		return zero, fmt.Errorf("%w: %v", common.ErrResponseNotJSON, err)
	}

	var decision model.Decision
	switch strings.ToUpper(strings.TrimSpace(raw.Decision)) {
	case string(model.DecisionBill):
		decision = model.DecisionBill
	case string(model.DecisionNotBill):
		decision = model.DecisionNotBill
	case string(model.DecisionUncertain):
		decision = model.DecisionUncertain
	default:
		return zero, fmt.Errorf("%w: unknown decision %q", common.ErrResponseNotJSON, raw.Decision)
	}

	vendorKey := strings.ToLower(strings.TrimSpace(raw.VendorKey))
	if vendorKey == "" && raw.VendorName != "" {
		vendorKey = model.VendorKeyFromName(raw.VendorName)
	}

	return service.BillClassification{
		Decision:      decision,
		Confidence:    model.ClampConfidence(raw.Confidence),
		VendorName:    strings.TrimSpace(raw.VendorName),
		VendorKey:     vendorKey,
		Category:      strings.ToLower(strings.TrimSpace(raw.BillType)),
		AmountDue:     normalizeAmount(raw.AmountDue),
		DueDate:       normalizeDueDateString(raw.DueDate),
		Currency:      strings.ToUpper(strings.TrimSpace(raw.Currency)),
		AccountHint:   strings.TrimSpace(raw.AccountHint),
		PaymentStatus: strings.ToUpper(strings.TrimSpace(raw.PaymentStatus)),
		PaymentLink:   strings.TrimSpace(raw.PaymentLink),
		Recurring:     raw.Recurring,
		Reason:        strings.TrimSpace(raw.Reason),
		Evidence: model.Evidence{
			BillSignals:    clipAll(raw.Evidence.BillSignals),
			NotBillSignals: clipAll(raw.Evidence.NotBillSignals),
		},
	}, nil
}

func parseLinkResponse(content string) (service.LinkSelection, error) {
	var raw rawLinkResponse
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(content)), &raw); err != nil {
		return service.LinkSelection{}, fmt.Errorf("%w: %v", common.ErrResponseNotJSON, err)
	}
	return service.LinkSelection{
		URL:       strings.TrimSpace(raw.URL),
		Rationale: strings.TrimSpace(raw.Rationale),
	}, nil
}

// normalizeAmount accepts a number, a numeric string (with optional $ and
// thousands separators), or null. Anything else yields empty.
func normalizeAmount(v any) string {
	switch a := v.(type) {
	case nil:
		return ""
	case float64:
		if a <= 0 {
			return ""
		}
		return strconv.FormatFloat(a, 'f', 2, 64)
	case string:
		cleaned := strings.TrimSpace(strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(a), "$"), ",", ""))
		if cleaned == "" {
			return ""
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil || f <= 0 {
			return ""
		}
		return strconv.FormatFloat(f, 'f', 2, 64)
	default:
		return ""
	}
}

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// normalizeDueDateString keeps only already-normalized dates; anything else
// is dropped here and re-derived by the validator from deterministic
// candidates. A fabricated date is worse than none.
func normalizeDueDateString(s string) string {
	s = strings.TrimSpace(s)
	if isoDateRe.MatchString(s) {
		return s
	}
	return ""
}

func clipAll(snippets []string) []string {
	const maxLen = 80
	out := make([]string, 0, len(snippets))
	for _, s := range snippets {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		s = common.Truncate(s, maxLen)
		out = append(out, s)
	}
	return out
}
