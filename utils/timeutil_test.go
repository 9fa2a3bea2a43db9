package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cst = time.FixedZone("UTC+8", 8*3600)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, cst)
}

func TestAgeMonths(t *testing.T) {
	tests := []struct {
		name  string
		birth time.Time
		today time.Time
		want  int
	}{
		{"same day", day(2024, 3, 15), day(2024, 3, 15), 0},
		{"day before first month", day(2024, 3, 15), day(2024, 4, 14), 0},
		{"exactly one month", day(2024, 3, 15), day(2024, 4, 15), 1},
		{"across a year", day(2023, 11, 30), day(2024, 2, 29), 2},
		{"thirteen months", day(2023, 1, 1), day(2024, 2, 1), 13},
		{"birth in the future", day(2025, 1, 1), day(2024, 1, 1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AgeMonths(tt.birth, tt.today))
		})
	}
}

func TestAgeMonthsMonotonic(t *testing.T) {
	births := []time.Time{day(2023, 1, 31), day(2024, 2, 29), day(2023, 8, 15)}
	for _, b := range births {
		prev := 0
		for d := b; d.Before(b.AddDate(2, 0, 0)); d = d.AddDate(0, 0, 1) {
			got := AgeMonths(b, d)
			require.GreaterOrEqual(t, got, prev, "birth %s today %s", b.Format(DateLayout), d.Format(DateLayout))
			prev = got
		}
	}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		in   time.Time
		k    int
		want time.Time
	}{
		{day(2024, 1, 31), 1, day(2024, 2, 29)},
		{day(2023, 1, 31), 1, day(2023, 2, 28)},
		{day(2024, 3, 31), -1, day(2024, 2, 29)},
		{day(2024, 12, 15), 1, day(2025, 1, 15)},
		{day(2024, 1, 15), -1, day(2023, 12, 15)},
		{day(2024, 5, 10), -17, day(2022, 12, 10)},
		{day(2024, 5, 10), 0, day(2024, 5, 10)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AddMonths(tt.in, tt.k), "%s %+d", tt.in.Format(DateLayout), tt.k)
	}
}

func TestAddMonthsRoundTrip(t *testing.T) {
	for d := day(2023, 1, 1); d.Before(day(2025, 1, 1)); d = d.AddDate(0, 0, 1) {
		for _, k := range []int{1, 2, 5, 12, 13, -1, -7} {
			back := AddMonths(AddMonths(d, k), -k)
			require.False(t, back.After(d), "%s %+d came back as %s", d.Format(DateLayout), k, back.Format(DateLayout))
			if d.Day() <= 28 {
				require.True(t, back.Equal(d), "no clamping expected for %s %+d", d.Format(DateLayout), k)
			}
		}
	}
}

func TestAgeBreakdown(t *testing.T) {
	a := AgeBreakdown(day(2023, 1, 31), day(2024, 3, 5))
	// 2023-01-31 + 13 months = 2024-02-29, then 5 days
	assert.Equal(t, Age{Years: 1, Months: 1, Days: 5}, a)
	assert.Equal(t, "1 year 1 month 5 days", a.Text())

	assert.Equal(t, "0 days", AgeBreakdown(day(2024, 3, 5), day(2024, 3, 5)).Text())
	assert.Equal(t, "2 months 1 day", Age{Months: 2, Days: 1}.Text())
	assert.Equal(t, "3 years 0 days", Age{Years: 3}.Text())
	assert.Equal(t, Age{}, AgeBreakdown(day(2025, 1, 1), day(2024, 1, 1)))
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "00:00", FormatElapsed(0))
	assert.Equal(t, "00:00", FormatElapsed(-5*time.Minute))
	assert.Equal(t, "00:00", FormatElapsed(59*time.Second))
	assert.Equal(t, "01:05", FormatElapsed(65*time.Minute+30*time.Second))
	assert.Equal(t, "27:03", FormatElapsed(27*time.Hour+3*time.Minute))
}

func TestDayStart(t *testing.T) {
	got := DayStart(time.Date(2024, 6, 1, 23, 59, 59, 999, cst))
	assert.Equal(t, day(2024, 6, 1), got)
	assert.Equal(t, cst, got.Location())
}

func TestDateLabel(t *testing.T) {
	today := time.Date(2024, 3, 10, 0, 30, 0, 0, cst)
	assert.Equal(t, "Today", DateLabel(time.Date(2024, 3, 10, 23, 0, 0, 0, cst), today))
	assert.Equal(t, "Yesterday", DateLabel(time.Date(2024, 3, 9, 0, 0, 0, 0, cst), today))
	assert.Equal(t, "Mar 08", DateLabel(time.Date(2024, 3, 8, 12, 0, 0, 0, cst), today))
	// 2024-03-09 17:00 UTC is already 03-10 in UTC+8
	assert.Equal(t, "Today", DateLabel(time.Date(2024, 3, 9, 17, 0, 0, 0, time.UTC), today))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2024-02-29 ", cst)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 2, 29), d)

	_, err = ParseDate("2023-02-29", cst)
	assert.Error(t, err)
	_, err = ParseDate("29/02/2024", cst)
	assert.Error(t, err)
}
