// Package calendar holds the month arithmetic shared by the batch engines.
// All dates are calendar days represented as UTC midnight.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var monthAbbr = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// YearMonth identifies one calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

func Of(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// First returns the first day of the month.
func (ym YearMonth) First() time.Time {
	return Date(ym.Year, ym.Month, 1)
}

func (ym YearMonth) Next() YearMonth {
	if ym.Month == time.December {
		return YearMonth{Year: ym.Year + 1, Month: time.January}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

func (ym YearMonth) Prev() YearMonth {
	if ym.Month == time.January {
		return YearMonth{Year: ym.Year - 1, Month: time.December}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month - 1}
}

func (ym YearMonth) Before(o YearMonth) bool {
	return ym.Year < o.Year || (ym.Year == o.Year && ym.Month < o.Month)
}

// Label is the human month name stored on obligations, e.g. "2025 Apr".
func (ym YearMonth) Label() string {
	return fmt.Sprintf("%d %s", ym.Year, monthAbbr[ym.Month-1])
}

// Period is the sortable key used by the uniqueness constraints, e.g. "2025-04".
func (ym YearMonth) Period() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Day returns the given day of the month, clamped to the month's last day.
func (ym YearMonth) Day(day int) time.Time {
	if day < 1 {
		day = 1
	}
	if last := DaysIn(ym.Year, ym.Month); day > last {
		day = last
	}
	return Date(ym.Year, ym.Month, day)
}

// ParseLabel parses a "YYYY Mon" label.
func ParseLabel(s string) (YearMonth, bool) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return YearMonth{}, false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || year <= 0 {
		return YearMonth{}, false
	}
	for i, abbr := range monthAbbr {
		if parts[1] == abbr {
			return YearMonth{Year: year, Month: time.Month(i + 1)}, true
		}
	}
	return YearMonth{}, false
}

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Truncate drops the time of day, keeping the calendar date as seen in t's location.
func Truncate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

func DaysIn(year int, month time.Month) int {
	return Date(year, month+1, 0).Day()
}

// AddMonths moves t by n months, clamping the day to the end of the target month
// (Jan 31 + 1 month is Feb 28 or 29).
func AddMonths(t time.Time, n int) time.Time {
	total := t.Year()*12 + int(t.Month()) - 1 + n
	ym := YearMonth{Year: total / 12, Month: time.Month(total%12 + 1)}
	d := ym.Day(t.Day())
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Diff returns the whole months and remaining days between start and end, counting
// months the way a relative delta does: start plus the months never passes end.
// Both dates must be truncated and end must not precede start.
func Diff(start, end time.Time) (months, days int) {
	months = (end.Year()-start.Year())*12 + int(end.Month()-start.Month())
	for months > 0 && end.Before(AddMonths(start, months)) {
		months--
	}
	days = int(end.Sub(AddMonths(start, months)).Hours() / 24)
	return months, days
}

// MonthsOverdue counts overdue months from start to today, where a partially
// elapsed month counts as a whole one. It is zero when today is not after start.
func MonthsOverdue(start, today time.Time) int {
	if !today.After(start) {
		return 0
	}
	months, days := Diff(start, today)
	if today.Day() >= start.Day() || days > 0 {
		months++
	}
	return months
}

// ObligationMonths lists the months from start's month through today's month that
// need an obligation. The current month is included only once dueDay has been
// reached, unless start itself falls in the current month.
func ObligationMonths(start, today time.Time, dueDay int) []YearMonth {
	from, current := Of(start), Of(today)
	end := current
	if today.Day() < dueDay && from != current {
		end = current.Prev()
	}

	var months []YearMonth
	for ym := from; !end.Before(ym); ym = ym.Next() {
		months = append(months, ym)
	}
	return months
}
