package paylink

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_JunkAndShortenerFiltered(t *testing.T) {
	// Scenario: one junk anchor, one shortener with perfect anchor text.
	// Both must disappear; score is irrelevant for hard rules.
	htmlBody := `<html><body>
		<a href="https://example.com/unsub">Unsubscribe</a>
		<a href="https://bit.ly/xyz">Make a Payment</a>
	</body></html>`

	got := Extract(htmlBody, DefaultOptions())

	assert.Empty(t, got)
}

func TestExtract_ScoresAndOrders(t *testing.T) {
	htmlBody := `<html><body>
		<p>Your bill is ready. Amount due: $50.</p>
		<a href="https://pay.chase.com/bill">Make a Payment</a>
		<a href="https://chase.com/statements">View Statement</a>
		<a href="https://chase.com/misc">Click here</a>
	</body></html>`

	got := Extract(htmlBody, DefaultOptions())

	require.Len(t, got, 2, "generic anchor must fall below the score threshold")
	assert.Equal(t, "https://pay.chase.com/bill", got[0].URL)
	assert.Equal(t, "https://chase.com/statements", got[1].URL)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestExtract_RequiresHTTPS(t *testing.T) {
	htmlBody := `<a href="http://pay.example.com">Pay Now</a>`

	assert.Empty(t, Extract(htmlBody, DefaultOptions()))

	relaxed := DefaultOptions()
	relaxed.RequireHTTPS = false
	assert.Len(t, Extract(htmlBody, relaxed), 1)
}

func TestExtract_DropsNonHTTPSchemes(t *testing.T) {
	htmlBody := `<a href="mailto:billing@x.com">Pay Now</a>
		<a href="javascript:void(0)">Pay Now</a>`

	assert.Empty(t, Extract(htmlBody, DefaultOptions()))
}

func TestExtract_DeduplicatesCaseInsensitive(t *testing.T) {
	htmlBody := `<a href="https://pay.x.com/A">Pay Now</a>
		<a href="https://PAY.X.COM/A">Pay Now</a>`

	got := Extract(htmlBody, DefaultOptions())
	assert.Len(t, got, 1)
}

func TestExtract_CapsCandidateList(t *testing.T) {
	htmlBody := ""
	for i := 0; i < 10; i++ {
		htmlBody += fmt.Sprintf(`<a href="https://pay.x.com/%d">Pay Now</a>`, i)
	}

	got := Extract(htmlBody, DefaultOptions())
	assert.Len(t, got, DefaultOptions().MaxCandidates)
}

func TestExtract_TieBreaksByPosition(t *testing.T) {
	htmlBody := `<a href="https://pay.x.com/first">Pay Now</a>
		<a href="https://pay.x.com/second">Pay Now</a>`

	got := Extract(htmlBody, DefaultOptions())
	require.Len(t, got, 2)
	assert.Equal(t, "https://pay.x.com/first", got[0].URL)
}

func TestExtract_EmptyHTML(t *testing.T) {
	assert.Empty(t, Extract("", DefaultOptions()))
	assert.Empty(t, Extract("   ", DefaultOptions()))
}
