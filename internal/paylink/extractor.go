// Package paylink extracts payment-link candidates from email HTML and
// validates chosen links against domain-trust rules. Link handling is
// deliberately paranoid: shorteners and non-HTTPS links are dropped as a
// hard rule, never merely penalized.
package paylink

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	xhtml "golang.org/x/net/html"

	"github.com/anthonydavila469-creator/billdock/internal/common"
	"github.com/anthonydavila469-creator/billdock/internal/model"
)

// Options tunes the candidate extractor.
type Options struct {
	RequireHTTPS  bool
	MinScore      float64
	MaxCandidates int
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		RequireHTTPS:  true,
		MinScore:      3.0,
		MaxCandidates: 5,
	}
}

// shortenerDomains obscure their destination and are a known phishing
// vector. Hard reject, regardless of anchor text.
var shortenerDomains = map[string]bool{
	"bit.ly":      true,
	"tinyurl.com": true,
	"goo.gl":      true,
	"t.co":        true,
	"ow.ly":       true,
	"is.gd":       true,
	"buff.ly":     true,
	"rb.gy":       true,
	"tiny.cc":     true,
	"rebrand.ly":  true,
	"cutt.ly":     true,
	"shorturl.at": true,
}

// junkAnchorPatterns drop navigation and housekeeping links outright.
var junkAnchorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bunsubscribe\b`),
	regexp.MustCompile(`(?i)\bview (?:this email )?in (?:your )?browser\b`),
	regexp.MustCompile(`(?i)\bprivacy(?: policy)?\b`),
	regexp.MustCompile(`(?i)\bterms (?:of|and)\b`),
	regexp.MustCompile(`(?i)\b(?:facebook|twitter|instagram|linkedin|youtube)\b`),
	regexp.MustCompile(`(?i)\bmanage preferences\b`),
	regexp.MustCompile(`(?i)\bcontact us\b`),
	regexp.MustCompile(`(?i)\bhelp center\b`),
}

// anchorKeywords score anchor text by payment intent.
var anchorKeywords = []struct {
	phrase string
	weight float64
}{
	{"make a payment", 10},
	{"pay now", 10},
	{"pay your bill", 9},
	{"pay bill", 9},
	{"view & pay", 9},
	{"view and pay", 9},
	{"pay my bill", 9},
	{"schedule a payment", 8},
	{"view your statement", 6},
	{"view statement", 6},
	{"view bill", 6},
	{"view your bill", 6},
	{"pay", 5},
	{"billing", 4},
	{"statement", 3},
	{"account", 2},
	{"sign in", 1},
	{"log in", 1},
}

// contextKeywords add a small bonus when payment language surrounds the
// anchor even if the anchor text itself is generic.
var contextKeywords = []string{"payment", "amount due", "due date", "pay", "bill"}

const contextWidth = 80

// Extract parses all anchors out of the HTML and returns scored payment
// link candidates, best first, capped at MaxCandidates.
func Extract(htmlBody string, opts Options) []model.PaymentLinkCandidate {
	if strings.TrimSpace(htmlBody) == "" {
		return nil
	}

	doc, err := xhtml.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var candidates []model.PaymentLinkCandidate
	position := 0

	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode && strings.ToLower(n.Data) == "a" {
			position++
			if cand, ok := buildCandidate(n, position, opts); ok {
				key := strings.ToLower(cand.URL)
				if !seen[key] {
					seen[key] = true
					candidates = append(candidates, cand)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	var kept []model.PaymentLinkCandidate
	for _, c := range candidates {
		if c.Score >= opts.MinScore {
			kept = append(kept, c)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].Position < kept[j].Position
	})

	if opts.MaxCandidates > 0 && len(kept) > opts.MaxCandidates {
		kept = kept[:opts.MaxCandidates]
	}
	return kept
}

// buildCandidate filters and scores one anchor node.
func buildCandidate(n *xhtml.Node, position int, opts Options) (model.PaymentLinkCandidate, bool) {
	var zero model.PaymentLinkCandidate

	href := attrValue(n, "href")
	href = strings.TrimSpace(href)
	if href == "" {
		return zero, false
	}

	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return zero, false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return zero, false
	}
	if opts.RequireHTTPS && scheme != "https" {
		return zero, false
	}

	domain := strings.ToLower(u.Hostname())
	if shortenerDomains[domain] {
		return zero, false
	}

	anchor := strings.TrimSpace(nodeText(n))
	for _, junk := range junkAnchorPatterns {
		if junk.MatchString(anchor) || junk.MatchString(href) {
			return zero, false
		}
	}

	context := surroundingText(n)
	score := scoreAnchor(anchor, context)

	return model.PaymentLinkCandidate{
		URL:        href,
		AnchorText: anchor,
		Domain:     domain,
		Context:    context,
		Score:      score,
		Position:   position,
	}, true
}

func scoreAnchor(anchor, context string) float64 {
	lowered := strings.ToLower(anchor)
	var score float64
	for _, kw := range anchorKeywords {
		if strings.Contains(lowered, kw.phrase) {
			score = kw.weight
			break
		}
	}

	loweredCtx := strings.ToLower(context)
	for _, kw := range contextKeywords {
		if strings.Contains(loweredCtx, kw) {
			score += 0.5
		}
	}
	return score
}

func attrValue(n *xhtml.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *xhtml.Node) string {
	var b strings.Builder
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// surroundingText returns the parent (or grandparent) node text, truncated
// to about contextWidth characters centered on content.
func surroundingText(n *xhtml.Node) string {
	node := n
	if node.Parent != nil {
		node = node.Parent
		if node.Parent != nil && len(nodeText(node)) < 20 {
			node = node.Parent
		}
	}
	return common.Truncate(nodeText(node), contextWidth)
}
