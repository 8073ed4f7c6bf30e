// Package timemath holds the calendar arithmetic used for scheduling: the
// Western-European summer-time rule, ISO-8601 week numbers and "next weekday"
// lookups. Everything here is pure.
package timemath

import (
	"fmt"
	"time"
)

const (
	winterOffset = 1 * time.Hour
	summerOffset = 2 * time.Hour
)

// LastSunday returns the date of the last Sunday of the given month, at midnight
// in loc.
func LastSunday(year int, month time.Month, loc *time.Location) time.Time {
	// day 0 of the next month is the last day of this one
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc)
	return last.AddDate(0, 0, -int(last.Weekday()))
}

// IsSummerTime reports whether a wall-clock date-time falls inside summer time:
// from the last Sunday of March 02:00 (inclusive) to the last Sunday of October
// 03:00 (exclusive). Only the wall-clock fields of local are used.
func IsSummerTime(local time.Time) bool {
	wall := time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), 0, time.UTC)

	start := LastSunday(wall.Year(), time.March, time.UTC).Add(2 * time.Hour)
	end := LastSunday(wall.Year(), time.October, time.UTC).Add(3 * time.Hour)

	return !wall.Before(start) && wall.Before(end)
}

// OffsetFor returns the UTC offset for a wall-clock date-time.
func OffsetFor(local time.Time) time.Duration {
	if IsSummerTime(local) {
		return summerOffset
	}
	return winterOffset
}

// FormatOffset renders an offset as "+01:00".
func FormatOffset(d time.Duration) string {
	sign := '+'
	if d < 0 {
		sign = '-'
		d = -d
	}
	return fmt.Sprintf("%c%02d:%02d", sign, int(d/time.Hour), int((d%time.Hour)/time.Minute))
}

// ToLocal projects an instant into the summer/winter time zone described above.
// Transitions happen at 01:00 UTC on both boundary Sundays.
func ToLocal(t time.Time) time.Time {
	u := t.UTC()
	start := LastSunday(u.Year(), time.March, time.UTC).Add(time.Hour)
	end := LastSunday(u.Year(), time.October, time.UTC).Add(time.Hour)

	if !u.Before(start) && u.Before(end) {
		return u.In(time.FixedZone("CEST", int(summerOffset/time.Second)))
	}
	return u.In(time.FixedZone("CET", int(winterOffset/time.Second)))
}

// ISOWeek returns the ISO-8601 week number of t: weeks start on Monday and
// week 1 is the week containing the year's first Thursday.
func ISOWeek(t time.Time) int {
	// shift to the Thursday of the same ISO week; its ordinal day fixes the week
	wd := int(t.Weekday()+6) % 7 // Monday=0 .. Sunday=6
	thursday := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 3-wd)
	return (thursday.YearDay()-1)/7 + 1
}

// NextWeekday returns the next date strictly after now that falls on weekday,
// truncated to midnight in now's location. When now is already that weekday the
// result is seven days later.
func NextWeekday(now time.Time, weekday time.Weekday) time.Time {
	days := (int(weekday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	d := now.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, now.Location())
}

// NextThursday is NextWeekday(now, time.Thursday).
func NextThursday(now time.Time) time.Time {
	return NextWeekday(now, time.Thursday)
}
