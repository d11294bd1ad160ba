package validate

import (
	"time"

	"computer-booking-backend/internal/model"
)

// Date rule messages.
const (
	MsgDateInvalid = "Not a valid date value."
	MsgDatePast    = "Selected date is in the past."
	MsgDateWeekend = "Selected date is on a weekend."
	MsgDateTooFar  = "Cannot book that far in advance."
)

// Today returns the calendar date of now in loc, as midnight UTC.
func Today(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(model.DateLayout, s)
}

// BookingDate applies the booking date rules to date, relative to today.
// Every failing rule contributes a message; nil means the date is bookable.
func BookingDate(today, date time.Time, maxDaysAhead int) []string {
	var msgs []string
	if date.Before(today) {
		msgs = append(msgs, MsgDatePast)
	}
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		msgs = append(msgs, MsgDateWeekend)
	}
	if date.After(today.AddDate(0, 0, maxDaysAhead)) {
		msgs = append(msgs, MsgDateTooFar)
	}
	return msgs
}
