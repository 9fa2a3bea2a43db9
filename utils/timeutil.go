package utils

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// DayStart truncates t to local midnight in t's own location.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FormatElapsed renders a duration as HH:MM. Hours are not wrapped at 24.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Minute)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths adds k calendar months to d. When the target month is shorter than d's
// day, the result is clamped to the last day of that month.
func AddMonths(d time.Time, k int) time.Time {
	m := int(d.Month()) - 1 + k
	y := d.Year() + m/12
	m %= 12
	if m < 0 {
		m += 12
		y--
	}
	month := time.Month(m + 1)
	day := d.Day()
	if last := DaysIn(y, month); day > last {
		day = last
	}
	return time.Date(y, month, day, d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), d.Location())
}

// AgeMonths returns the number of whole months between birth and today, never negative.
func AgeMonths(birth, today time.Time) int {
	months := 12*(today.Year()-birth.Year()) + int(today.Month()) - int(birth.Month())
	if today.Day() < birth.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// Age is an exact calendar age.
type Age struct {
	Years  int `json:"years"`
	Months int `json:"months"`
	Days   int `json:"days"`
}

// AgeBreakdown splits the age at today into years, months and the days left over
// after adding the whole months to birth.
func AgeBreakdown(birth, today time.Time) Age {
	b := DayStart(birth)
	t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, b.Location())

	total := AgeMonths(b, t)
	anchor := AddMonths(b, total)
	days := int(math.Round(t.Sub(anchor).Hours() / 24))
	if days < 0 {
		days = 0
	}
	return Age{Years: total / 12, Months: total % 12, Days: days}
}

// Text renders the age, omitting zero years and months. Days are always shown.
func (a Age) Text() string {
	var parts []string
	if a.Years > 0 {
		parts = append(parts, plural(a.Years, "year"))
	}
	if a.Months > 0 {
		parts = append(parts, plural(a.Months, "month"))
	}
	parts = append(parts, plural(a.Days, "day"))
	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// ParseDate parses a YYYY-MM-DD string in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return d, nil
}

// DateLabel is the heading used to group journal entries: Today, Yesterday or "Jan 02".
func DateLabel(d, today time.Time) string {
	day := DayStart(d.In(today.Location()))
	t := DayStart(today)
	switch {
	case day.Equal(t):
		return "Today"
	case day.Equal(t.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return day.Format("Jan 02")
	}
}
