package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNormalizeDueDate(t *testing.T) {
	ref := refDate("2026-01-20")

	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{name: "iso passthrough", raw: "2026-02-14", want: "2026-02-14", wantOK: true},
		{name: "us slash", raw: "02/14/2026", want: "2026-02-14", wantOK: true},
		{name: "two digit year", raw: "2/14/26", want: "2026-02-14", wantOK: true},
		{name: "month name with year", raw: "February 14, 2026", want: "2026-02-14", wantOK: true},
		{name: "abbreviated month", raw: "Feb 14, 2026", want: "2026-02-14", wantOK: true},
		{name: "day first", raw: "14 February 2026", want: "2026-02-14", wantOK: true},
		{name: "ordinal suffix", raw: "February 14th, 2026", want: "2026-02-14", wantOK: true},
		{name: "uppercase month", raw: "FEBRUARY 14, 2026", want: "2026-02-14", wantOK: true},
		{name: "bare month day uses ref year", raw: "Feb 14", want: "2026-02-14", wantOK: true},
		{name: "bare slash", raw: "2/14", want: "2026-02-14", wantOK: true},
		{name: "garbage", raw: "not a date", wantOK: false},
		{name: "empty", raw: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeDueDate(tt.raw, ref)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNormalizeDueDate_Idempotent(t *testing.T) {
	ref := refDate("2025-12-20")

	first, ok := NormalizeDueDate("Jan 5", ref)
	require.True(t, ok)

	second, ok := NormalizeDueDate(first, ref)
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestNormalizeDueDate_YearRollover(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ref  string
		want string
	}{
		{name: "january bill received in december", raw: "Jan 5", ref: "2025-12-20", want: "2026-01-05"},
		{name: "explicit year never rolls", raw: "Jan 5, 2025", ref: "2025-12-20", want: "2025-01-05"},
		{name: "recent past stays", raw: "Dec 1", ref: "2025-12-20", want: "2025-12-01"},
		{name: "future date stays", raw: "Dec 28", ref: "2025-12-20", want: "2025-12-28"},
		{name: "far past rolls forward", raw: "Mar 10", ref: "2025-12-20", want: "2026-03-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeDueDate(tt.raw, refDate(tt.ref))
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractDates_PriorityOrder(t *testing.T) {
	ref := refDate("2026-01-20")
	text := "Your statement from January 2, 2026.\nDue Date: 02/14/2026\nPay by March 1, 2026."

	got := extractDates(text, ref)

	require.NotEmpty(t, got)
	assert.Equal(t, "2026-02-14", got[0].Normalized, "Due Date label must outrank other matches")
}

func TestExtractDates_FuturePreferredAmongEqualPriority(t *testing.T) {
	ref := refDate("2026-01-20")
	text := "Mentioned on January 5, 2026 and again on February 3, 2026."

	got := extractDates(text, ref)

	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, "2026-02-03", got[0].Normalized)
}

func TestExtractDates_UnparsableYieldsNothing(t *testing.T) {
	got := extractDates("no dates here, just text", refDate("2026-01-20"))
	assert.Empty(t, got)
}
