package model

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9 ]+`)

// companyPrefixes are leading words that only identify a company together
// with the words that follow them. The value is how many tokens to join.
var companyPrefixes = map[string]int{
	"american": 2,
	"capital":  2,
	"wells":    2,
	"con":      2,
	"national": 2,
	"state":    2,
	"bank":     3,
}

// VendorKeyFromName normalizes a vendor name to a company-level key used
// for deduplication. Product qualifiers are stripped: "Chase Ink Business"
// and "Chase Auto" both key to "chase".
func VendorKeyFromName(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	lowered = nonAlnum.ReplaceAllString(lowered, "")
	tokens := strings.Fields(lowered)
	if len(tokens) == 0 {
		return ""
	}

	take := 1
	if n, ok := companyPrefixes[tokens[0]]; ok {
		take = n
	}
	if take > len(tokens) {
		take = len(tokens)
	}
	return strings.Join(tokens[:take], "")
}
