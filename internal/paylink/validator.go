package paylink

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/anthonydavila469-creator/billdock/internal/model"
)

// Validator applies the domain-trust chain to a chosen payment link. No
// link reaches the user without passing it, whatever the AI selector said.
type Validator struct {
	requireHTTPS bool
}

// NewValidator creates a validator. HTTPS enforcement is configurable but
// on by default.
func NewValidator(requireHTTPS bool) *Validator {
	return &Validator{requireHTTPS: requireHTTPS}
}

var vendorNameStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Validate checks a payment URL against the sender's domain, the vendor's
// allow-listed payment domains, and finally a fuzzy vendor-name match.
// Hard failures: non-HTTPS, shortener, unparsable URL, or no trust source
// passing.
func (v *Validator) Validate(rawURL, senderDomain, vendorName string, allowedDomains []string) model.LinkValidation {
	result := model.LinkValidation{}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		result.Errors = append(result.Errors, "payment link is not a valid URL")
		return result
	}

	domain := strings.ToLower(u.Hostname())
	result.FinalDomain = domain

	if v.requireHTTPS && strings.ToLower(u.Scheme) != "https" {
		result.Errors = append(result.Errors, "payment link is not HTTPS")
		return result
	}

	if shortenerDomains[domain] {
		result.Errors = append(result.Errors, fmt.Sprintf("payment link goes through URL shortener %s", domain))
		return result
	}

	// Trust chain, in decreasing order of confidence.
	if domainMatches(domain, strings.ToLower(senderDomain)) {
		result.IsValid = true
		return result
	}

	for _, allowed := range allowedDomains {
		if domainMatches(domain, strings.ToLower(allowed)) {
			result.IsValid = true
			return result
		}
	}

	normalized := vendorNameStrip.ReplaceAllString(strings.ToLower(vendorName), "")
	if len(normalized) >= 4 && strings.Contains(strings.ReplaceAll(domain, "-", ""), normalized) {
		result.IsValid = true
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("payment domain %s only matched vendor name %q fuzzily", domain, vendorName))
		return result
	}

	result.Errors = append(result.Errors,
		fmt.Sprintf("payment domain %s matches neither sender %s nor any allowed vendor domain", domain, senderDomain))
	return result
}

// domainMatches reports whether candidate equals the trusted domain, is a
// subdomain of it, or shares its registrable (last two label) domain.
func domainMatches(candidate, trusted string) bool {
	if candidate == "" || trusted == "" {
		return false
	}
	if candidate == trusted || strings.HasSuffix(candidate, "."+trusted) {
		return true
	}
	return registrable(candidate) == registrable(trusted)
}

func registrable(domain string) string {
	parts := strings.Split(domain, ".")
	if len(parts) <= 2 {
		return domain
	}
	return strings.Join(parts[len(parts)-2:], ".")
}
