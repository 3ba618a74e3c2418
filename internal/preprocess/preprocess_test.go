package preprocess

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/anthonydavila469-creator/billdock/internal/model"
)

func TestPreprocess_PlainBody(t *testing.T) {
	got := Preprocess(model.RawEmail{
		BodyPlain: "Your statement is ready.\nAmount Due: $50.00\n",
	}, DefaultOptions())

	assert.Equal(t, "Your statement is ready.\nAmount Due: $50.00", got.Text)
	assert.Empty(t, got.TruncatedHTML)
}

func TestPreprocess_TableStructurePreserved(t *testing.T) {
	htmlBody := `<html><body>
		<table>
			<tr><td>Amount Due</td><td>$50.00</td></tr>
			<tr><td>Due Date</td><td>Jan 5, 2026</td></tr>
		</table>
	</body></html>`

	got := Preprocess(model.RawEmail{BodyHTML: htmlBody}, DefaultOptions())

	assert.Contains(t, got.Text, "Amount Due | $50.00")
	assert.Contains(t, got.Text, "Due Date | Jan 5, 2026")
}

func TestPreprocess_SkipsStyleAndScript(t *testing.T) {
	htmlBody := `<html><head><style>.x{color:red}</style></head>
		<body><script>alert(1)</script><p>Pay your bill</p></body></html>`

	got := Preprocess(model.RawEmail{BodyHTML: htmlBody}, DefaultOptions())

	assert.Contains(t, got.Text, "Pay your bill")
	assert.NotContains(t, got.Text, "color:red")
	assert.NotContains(t, got.Text, "alert")
}

func TestPreprocess_FooterStripped(t *testing.T) {
	lines := []string{"Your bill is ready", "Amount Due: $20.00"}
	for i := 0; i < 20; i++ {
		lines = append(lines, "filler line")
	}
	lines = append(lines, "Unsubscribe from these emails", "© 2026 MegaCorp")

	got := Preprocess(model.RawEmail{BodyPlain: strings.Join(lines, "\n")}, DefaultOptions())

	assert.Contains(t, got.Text, "Amount Due: $20.00")
	assert.NotContains(t, got.Text, "Unsubscribe")
	assert.NotContains(t, got.Text, "MegaCorp")
}

func TestPreprocess_FooterMarkerNearTopSurvives(t *testing.T) {
	body := "Privacy policy update\nline\nline\nline\nline\nline\nline\nline\nline\nline"

	got := Preprocess(model.RawEmail{BodyPlain: body}, DefaultOptions())

	assert.Contains(t, got.Text, "Privacy policy update")
}

func TestPreprocess_TruncationPreservesBeginning(t *testing.T) {
	body := "Amount Due: $10.00 " + strings.Repeat("x", 10000)

	got := Preprocess(model.RawEmail{BodyPlain: body}, Options{MaxTextLen: 100})

	assert.Len(t, got.Text, 100)
	assert.True(t, strings.HasPrefix(got.Text, "Amount Due: $10.00"))
}

func TestPreprocess_TruncationNeverSplitsRunes(t *testing.T) {
	body := "Montant dû: 42,00 € " + strings.Repeat("é", 200)

	got := Preprocess(model.RawEmail{BodyPlain: body}, Options{MaxTextLen: 101})

	assert.True(t, utf8.ValidString(got.Text), "truncation must land on a rune boundary")
	assert.LessOrEqual(t, len(got.Text), 101)
}

func TestPreprocess_EmptyHTMLFallsBackToPlain(t *testing.T) {
	got := Preprocess(model.RawEmail{
		BodyHTML:  "<html><body><style>x</style></body></html>",
		BodyPlain: "plain text body",
	}, DefaultOptions())

	assert.Equal(t, "plain text body", got.Text)
}
