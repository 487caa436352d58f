// Package expiry resolves option expiration dates against the NYSE
// trading calendar.
package expiry

import (
	"time"

	"github.com/scmhub/calendar"
)

// Calendar answers expiration and market-day questions for US equity options.
type Calendar struct {
	location *time.Location
	nyse     *calendar.Calendar
}

// NewCalendar creates a calendar in the given timezone (falls back to UTC).
func NewCalendar(timezone string) *Calendar {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Calendar{
		location: loc,
		nyse:     calendar.XNYS(),
	}
}

// NearestExpiration returns the next weekly (Friday) expiration strictly
// after now, rolled back to the preceding business day when that Friday is
// a market holiday.
func (c *Calendar) NearestExpiration(now time.Time) time.Time {
	now = now.In(c.location)

	daysAhead := int(time.Friday - now.Weekday())
	if daysAhead <= 0 {
		daysAhead += 7
	}
	friday := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, c.location).
		AddDate(0, 0, daysAhead)

	// Holiday Fridays move the weekly expiration to Thursday.
	for !c.nyse.IsBusinessDay(friday) {
		friday = friday.AddDate(0, 0, -1)
	}
	return friday
}

// IsMarketDay reports whether the given date is a NYSE trading day.
func (c *Calendar) IsMarketDay(t time.Time) bool {
	return c.nyse.IsBusinessDay(t.In(c.location))
}

// Location returns the calendar's timezone.
func (c *Calendar) Location() *time.Location {
	return c.location
}
