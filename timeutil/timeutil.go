// Package timeutil implements the service calendar: minute-resolution
// timestamps counted from 2025-06-01 00:00, covering June through
// December of 2025 (214 days).
package timeutil

import "fmt"

// DateTime is minutes since 2025-06-01 00:00. Offsets and durations
// use the same representation.
type DateTime int32

const (
	MinutesPerDay = 24 * 60

	// ScopeDays is the number of days in the service calendar.
	ScopeDays = 214
)

// epochMonth/epochDay anchor the calendar at June 1st.
var monthDays = [...]int32{30, 31, 31, 30, 31, 30, 31} // Jun..Dec

// monthStart[i] is the day index of the first day of month 6+i.
var monthStart = func() [8]int32 {
	var s [8]int32
	for i, d := range monthDays {
		s[i+1] = s[i] + d
	}
	return s
}()

// ParseDate parses "MM-DD" into midnight of that day.
func ParseDate(s string) (DateTime, error) {
	if len(s) != 5 || s[2] != '-' {
		return 0, fmt.Errorf("parse date %q: want MM-DD", s)
	}
	mm, err := atoi2(s[0:2])
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", s, err)
	}
	dd, err := atoi2(s[3:5])
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", s, err)
	}
	if mm < 6 || mm > 12 {
		return 0, fmt.Errorf("parse date %q: month out of range", s)
	}
	if dd < 1 || dd > monthDays[mm-6] {
		return 0, fmt.Errorf("parse date %q: day out of range", s)
	}
	day := monthStart[mm-6] + dd - 1
	return DateTime(day * MinutesPerDay), nil
}

// ParseTimeOfDay parses "hh:mm" into minutes past midnight.
func ParseTimeOfDay(s string) (DateTime, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("parse time %q: want hh:mm", s)
	}
	hh, err := atoi2(s[0:2])
	if err != nil {
		return 0, fmt.Errorf("parse time %q: %w", s, err)
	}
	mm, err := atoi2(s[3:5])
	if err != nil {
		return 0, fmt.Errorf("parse time %q: %w", s, err)
	}
	if hh > 23 || mm > 59 {
		return 0, fmt.Errorf("parse time %q: out of range", s)
	}
	return DateTime(hh*60 + mm), nil
}

func atoi2(s string) (int32, error) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, fmt.Errorf("bad digits %q", s)
	}
	return int32(s[0]-'0')*10 + int32(s[1]-'0'), nil
}

// RoundUpToDate rounds t up to the next midnight (t itself if already
// midnight). Correct for negative t as well, which occurs when an
// origin-date computation lands before the epoch.
func (t DateTime) RoundUpToDate() DateTime {
	d := int32(t)
	q := d / MinutesPerDay
	if d%MinutesPerDay != 0 {
		if d > 0 {
			q++
		}
		// negative non-multiples truncate toward zero, which is
		// already the rounded-up day
	}
	return DateTime(q * MinutesPerDay)
}

// RoundDownToDate rounds t down to its own midnight.
func (t DateTime) RoundDownToDate() DateTime {
	d := int32(t)
	q := d / MinutesPerDay
	if d%MinutesPerDay != 0 && d < 0 {
		q--
	}
	return DateTime(q * MinutesPerDay)
}

// DayIndex is the day number of t, 0 = June 1st.
func (t DateTime) DayIndex() int32 { return int32(t.RoundDownToDate()) / MinutesPerDay }

// FromDayIndex converts a day number back to midnight of that day.
func FromDayIndex(day int32) DateTime { return DateTime(day * MinutesPerDay) }

// InScope reports whether t falls on one of the calendar's days.
func (t DateTime) InScope() bool {
	day := t.DayIndex()
	return day >= 0 && day < ScopeDays
}

// MinutesOfDay is t's offset past its own midnight.
func (t DateTime) MinutesOfDay() int32 { return int32(t - t.RoundDownToDate()) }

// DateString formats the date part as "MM-DD".
func (t DateTime) DateString() string {
	day := t.DayIndex()
	m := 0
	for m+1 < len(monthStart) && monthStart[m+1] <= day {
		m++
	}
	return fmt.Sprintf("%02d-%02d", m+6, day-monthStart[m]+1)
}

// TimeString formats the time-of-day part as "hh:mm".
func (t DateTime) TimeString() string {
	mins := t.MinutesOfDay()
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// String formats t as "MM-DD hh:mm".
func (t DateTime) String() string { return t.DateString() + " " + t.TimeString() }
