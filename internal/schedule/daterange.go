package schedule

import (
	"strings"
	"time"

	"github.com/jmehdipour/mail-relay/internal/model"
	"github.com/jmehdipour/mail-relay/internal/timemath"
)

// Compose turns separate date and time fields into a record-store date range.
// Empty strings mean "absent". A missing startDate yields the zero DateRange.
func Compose(startDate, startTime, endDate, endTime string) model.DateRange {
	startDate = strings.TrimSpace(startDate)
	startTime = strings.TrimSpace(startTime)
	endDate = strings.TrimSpace(endDate)
	endTime = strings.TrimSpace(endTime)

	if startDate == "" {
		return model.DateRange{}
	}

	r := model.DateRange{Start: startDate}
	if startTime != "" {
		r.Start = composeDateTime(startDate, startTime)
	}

	if endDate == "" && endTime == "" {
		return r
	}

	var end string
	switch {
	case endTime != "":
		day := endDate
		if day == "" {
			day = startDate
		}
		end = composeDateTime(day, endTime)
	default:
		end = endDate
	}

	if end != r.Start {
		r.End = end
	}
	return r
}

// composeDateTime renders "YYYY-MM-DDTHH:MM:SS+hh:mm" using the summer-time
// offset of that wall-clock moment.
func composeDateTime(day, clock string) string {
	clock = normalizeClock(clock)

	offset := time.Hour
	if local, err := time.Parse(time.DateOnly+" "+time.TimeOnly, day+" "+clock); err == nil {
		offset = timemath.OffsetFor(local)
	}
	return day + "T" + clock + timemath.FormatOffset(offset)
}

// normalizeClock pads "H:MM" / "HH:MM" to "HH:MM:SS".
func normalizeClock(clock string) string {
	parts := strings.Split(clock, ":")
	if len(parts) == 1 {
		parts = append(parts, "00")
	}
	if len(parts) == 2 {
		parts = append(parts, "00")
	}
	for i, p := range parts {
		if len(p) == 1 {
			parts[i] = "0" + p
		}
	}
	return strings.Join(parts, ":")
}
