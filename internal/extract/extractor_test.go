package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthonydavila469-creator/billdock/internal/model"
)

func testEmail(from, subject string) model.RawEmail {
	return model.RawEmail{
		ID:      "msg-1",
		From:    from,
		Subject: subject,
		Date:    time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
	}
}

func TestExtractor_SkipKeywordsTakePriority(t *testing.T) {
	e := NewExtractor(DefaultTables())

	// Bill keywords present but the skip keyword still wins.
	text := "Thank you for your payment of $50.00. Amount due next statement."
	got := e.Extract(testEmail("billing@chase.com", "Payment received"), text)

	assert.True(t, got.ShouldSkip)
	assert.Contains(t, got.SkipReason, "skip keyword")
	assert.Empty(t, got.Amounts)
}

func TestExtractor_PromotionalSkip(t *testing.T) {
	e := NewExtractor(DefaultTables())

	tests := []struct {
		name     string
		subject  string
		text     string
		wantSkip bool
	}{
		{
			name:     "two promo keywords skip",
			subject:  "20% off your next order!",
			text:     "Limited time only. Shop now.",
			wantSkip: true,
		},
		{
			name:     "single promo keyword passes",
			subject:  "Your invoice",
			text:     "A discount was applied to your bill. Amount Due: $10.00",
			wantSkip: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(testEmail("hello@store.example.com", tt.subject), tt.text)
			assert.Equal(t, tt.wantSkip, got.ShouldSkip)
		})
	}
}

func TestExtractor_VendorRefinementConsistency(t *testing.T) {
	e := NewExtractor(DefaultTables())

	text := "Your auto account statement is ready. Amount Due: $312.45"
	got := e.Extract(testEmail("no-reply@chase.com", "Chase statement"), text)

	require.False(t, got.ShouldSkip)
	name := got.BestName()
	require.NotNil(t, name)
	assert.Equal(t, "Chase Auto", name.Name)
	assert.Equal(t, "loan", name.Category, "refined name and category must move together")
	assert.Equal(t, model.NameSourceBillerTable, name.Source)
}

func TestExtractor_BillerTableGenericMatch(t *testing.T) {
	e := NewExtractor(DefaultTables())

	got := e.Extract(testEmail("alerts@chase.com", "Statement notice"), "Statement Balance: $100.00")

	name := got.BestName()
	require.NotNil(t, name)
	assert.Equal(t, "Chase", name.Name)
	assert.Equal(t, "credit_card", name.Category)
}

func TestExtractor_SubdomainMatchesBiller(t *testing.T) {
	e := NewExtractor(DefaultTables())

	got := e.Extract(testEmail("no-reply@alerts.chase.com", "Statement"), "Amount Due: $10.00")

	name := got.BestName()
	require.NotNil(t, name)
	assert.Equal(t, "Chase", name.Name)
}

func TestExtractor_NameFallbacks(t *testing.T) {
	e := NewExtractor(DefaultTables())

	tests := []struct {
		name       string
		from       string
		subject    string
		wantName   string
		wantSource model.NameSource
	}{
		{
			name:       "local part",
			from:       "acmewater@acmewater.example.com",
			subject:    "Bill ready",
			wantName:   "Acmewater",
			wantSource: model.NameSourceLocalPart,
		},
		{
			name:       "junk local part falls to domain label",
			from:       "no-reply@acmewater.example.com",
			subject:    "Bill ready",
			wantName:   "Acmewater",
			wantSource: model.NameSourceLocalPart,
		},
		{
			name:       "display name ranks above subject",
			from:       `"Acme Water" <@>`,
			subject:    "Bill ready",
			wantName:   "Acme Water",
			wantSource: model.NameSourceDisplayName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(testEmail(tt.from, tt.subject), "Amount Due: $10.00")
			name := got.BestName()
			require.NotNil(t, name)
			assert.Equal(t, tt.wantName, name.Name)
			assert.Equal(t, tt.wantSource, name.Source)
		})
	}
}

func TestExtractor_EvidenceBounded(t *testing.T) {
	e := NewExtractor(DefaultTables())

	got := e.Extract(testEmail("no-reply@chase.com", "Statement is ready"),
		"Your statement is ready.\nStatement Balance: $1,204.33\nDue Date: 02/14/2026")

	require.NotEmpty(t, got.Evidence)
	for _, ev := range got.Evidence {
		assert.LessOrEqual(t, len(ev), 80)
	}
}

func TestExtractor_FixtureTablesInjectable(t *testing.T) {
	e := NewExtractor(Tables{
		Billers:      []BillerEntry{{Domain: "tiny.example", Name: "Tiny", Category: "other"}},
		SkipKeywords: []string{"zzz-skip"},
	})

	got := e.Extract(testEmail("bill@tiny.example", "Bill"), "Amount Due: $5.00")
	name := got.BestName()
	require.NotNil(t, name)
	assert.Equal(t, "Tiny", name.Name)

	skipped := e.Extract(testEmail("bill@tiny.example", "zzz-skip"), "whatever")
	assert.True(t, skipped.ShouldSkip)
}
