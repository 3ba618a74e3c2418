// Package preprocess converts raw email bodies into bounded clean text
// suitable for candidate extraction and classification. Everything here is
// a pure function of its input.
package preprocess

import (
	"html"
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"

	"github.com/anthonydavila469-creator/billdock/internal/common"
	"github.com/anthonydavila469-creator/billdock/internal/model"
)

// Options bounds the working text handed to downstream stages.
type Options struct {
	// MaxTextLen caps the clean text length. The beginning of the body is
	// preserved; bill emails carry their high-value content up top.
	MaxTextLen int
	// MaxHTMLLen caps the raw HTML retained for the link extractor.
	MaxHTMLLen int
}

// DefaultOptions returns the bounds used in production.
func DefaultOptions() Options {
	return Options{
		MaxTextLen: 4000,
		MaxHTMLLen: 50000,
	}
}

// Preprocessed is the output of one preprocessing pass.
type Preprocessed struct {
	Text          string
	TruncatedHTML string
}

// footerMarkers flag the start of boilerplate blocks that pollute
// candidate scoring. Only matches in the bottom portion of the body count.
var footerMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bunsubscribe\b`),
	regexp.MustCompile(`(?i)\bmanage (?:your )?(?:email )?preferences\b`),
	regexp.MustCompile(`(?i)©|&copy;|\(c\)\s*20\d{2}`),
	regexp.MustCompile(`(?i)\ball rights reserved\b`),
	regexp.MustCompile(`(?i)\bprivacy policy\b`),
	regexp.MustCompile(`(?i)\bthis email was sent to\b`),
	regexp.MustCompile(`^[-_=*]{6,}\s*$`),
}

// Preprocess converts the email body into clean bounded text. HTML bodies
// are flattened with table structure preserved so labeled amounts and dates
// keep their proximity.
func Preprocess(email model.RawEmail, opts Options) Preprocessed {
	var text string
	var truncatedHTML string

	if email.BodyHTML != "" {
		text = htmlToText(email.BodyHTML)
		truncatedHTML = email.BodyHTML
		if opts.MaxHTMLLen > 0 {
			truncatedHTML = common.Truncate(truncatedHTML, opts.MaxHTMLLen)
		}
	}
	if strings.TrimSpace(text) == "" {
		text = email.BodyPlain
	}

	text = stripFooter(text)
	text = collapseWhitespace(text)

	if opts.MaxTextLen > 0 {
		text = common.Truncate(text, opts.MaxTextLen)
	}

	return Preprocessed{
		Text:          text,
		TruncatedHTML: truncatedHTML,
	}
}

// htmlToText walks the DOM and emits text with block-element line breaks.
// Table rows come out as "cell | cell" lines so "Amount Due" stays adjacent
// to its value.
func htmlToText(body string) string {
	doc, err := xhtml.Parse(strings.NewReader(html.UnescapeString(body)))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(n *xhtml.Node, inRow bool)
	walk = func(n *xhtml.Node, inRow bool) {
		switch n.Type {
		case xhtml.ElementNode:
			switch strings.ToLower(n.Data) {
			case "style", "script", "noscript", "iframe", "head", "meta", "link":
				return
			case "tr":
				inRow = true
			}
		case xhtml.TextNode:
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if b.Len() > 0 && !endsWithBreak(&b) {
					b.WriteString(" ")
				}
				b.WriteString(text)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inRow)
		}

		if n.Type == xhtml.ElementNode {
			switch strings.ToLower(n.Data) {
			case "td", "th":
				if inRow && b.Len() > 0 && !endsWithBreak(&b) {
					b.WriteString(" | ")
				}
			case "p", "div", "br", "h1", "h2", "h3", "h4", "h5", "h6", "li", "tr", "table":
				if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
					b.WriteString("\n")
				}
			case "hr":
				b.WriteString("\n------\n")
			}
		}
	}
	walk(doc, false)

	// Row separators left dangling at line ends are noise.
	out := strings.ReplaceAll(b.String(), " | \n", "\n")
	return out
}

func endsWithBreak(b *strings.Builder) bool {
	s := b.String()
	return strings.HasSuffix(s, "\n") || strings.HasSuffix(s, " | ")
}

// stripFooter cuts the body at the first footer marker found in the bottom
// 30% of the text. Markers higher up are left alone; legitimate content can
// mention a privacy policy.
func stripFooter(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) < 4 {
		return text
	}

	cutoff := int(float64(len(lines)) * 0.7)
	for i := cutoff; i < len(lines); i++ {
		for _, marker := range footerMarkers {
			if marker.MatchString(lines[i]) {
				return strings.Join(lines[:i], "\n")
			}
		}
	}
	return text
}

var multiBlank = regexp.MustCompile(`\n{3,}`)
var trailingSpace = regexp.MustCompile(`[ \t]+\n`)

func collapseWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = trailingSpace.ReplaceAllString(text, "\n")
	text = multiBlank.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
