// Package dates handles the YYYY-MM-DD calendar-day strings the task engine
// lives on: day arithmetic, weekend policy, and the punt-target rules.
package dates

import "time"

const Layout = "2006-01-02"

func Parse(day string) (time.Time, error) {
	return time.ParseInLocation(Layout, day, time.Local)
}

func Format(t time.Time) string {
	return t.Format(Layout)
}

// Today returns now's calendar day.
func Today(now time.Time) string {
	return Format(now)
}

// Noon returns 12:00 local time on day. New tasks are created at noon of
// their target day, not at wall-clock time, so punt spans count from the
// day the task conceptually belongs to.
func Noon(day string) time.Time {
	t, err := Parse(day)
	if err != nil {
		return time.Time{}
	}
	return t.Add(12 * time.Hour)
}

func AddDays(day string, n int) string {
	t, err := Parse(day)
	if err != nil {
		return day
	}
	return Format(t.AddDate(0, 0, n))
}

func IsWeekend(day string) bool {
	t, err := Parse(day)
	if err != nil {
		return false
	}
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// SkipWeekend advances day past Saturday/Sunday to the next weekday.
func SkipWeekend(day string) string {
	for IsWeekend(day) {
		day = AddDays(day, 1)
	}
	return day
}

// PuntTarget computes where a punted task lands. A past task catches up to
// today; a today-or-future task advances one calendar day. skipWeekends
// additionally moves the target off Saturday/Sunday (work category).
// YYYY-MM-DD strings compare correctly byte-wise.
func PuntTarget(current, today string, skipWeekends bool) string {
	target := today
	if current >= today {
		target = AddDays(current, 1)
	}
	if skipWeekends {
		target = SkipWeekend(target)
	}
	return target
}

// CalendarDaysBetween counts calendar days from the day containing "from"
// to the target day, clamped at zero. The difference is taken between the
// two dates pinned to UTC midnights, so a DST transition inside the span
// (a 23-hour local day) can't truncate the count.
func CalendarDaysBetween(from time.Time, day string) int {
	to, err := Parse(day)
	if err != nil {
		return 0
	}
	f := from.In(time.Local)
	start := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	n := int(end.Sub(start).Hours() / 24)
	if n < 0 {
		return 0
	}
	return n
}

// BusinessDaysBetween counts only weekdays in the span, stepping from the
// day containing "from" up to the target day.
func BusinessDaysBetween(from time.Time, day string) int {
	start := Format(from.In(time.Local))
	if day <= start {
		return 0
	}
	n := 0
	for d := AddDays(start, 1); d <= day; d = AddDays(d, 1) {
		if !IsWeekend(d) {
			n++
		}
	}
	return n
}

// Span computes puntDays for a task: business days for work, calendar days
// for life.
func Span(createdAt time.Time, day string, work bool) int {
	if work {
		return BusinessDaysBetween(createdAt, day)
	}
	return CalendarDaysBetween(createdAt, day)
}
