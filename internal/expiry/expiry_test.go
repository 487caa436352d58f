package expiry

import (
	"testing"
	"time"
)

func newTestCalendar(t *testing.T) *Calendar {
	t.Helper()
	return NewCalendar("America/New_York")
}

// date builds a noon timestamp in the calendar's timezone so the weekday
// does not shift when converted.
func date(t *testing.T, cal *Calendar, value string) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02", value, cal.Location())
	if err != nil {
		t.Fatalf("bad test date %q: %v", value, err)
	}
	return parsed.Add(12 * time.Hour)
}

func TestNearestExpiration_MidWeek(t *testing.T) {
	cal := newTestCalendar(t)

	// Monday resolves to the Friday of the same week.
	got := cal.NearestExpiration(date(t, cal, "2026-08-24"))
	if got.Format("2006-01-02") != "2026-08-28" {
		t.Errorf("expiration = %s, want 2026-08-28", got.Format("2006-01-02"))
	}
	if got.Weekday() != time.Friday {
		t.Errorf("weekday = %v, want Friday", got.Weekday())
	}
}

func TestNearestExpiration_OnFridayRollsForward(t *testing.T) {
	cal := newTestCalendar(t)

	// Friday itself is not a candidate; the expiration must be strictly ahead.
	got := cal.NearestExpiration(date(t, cal, "2026-08-28"))
	if got.Format("2006-01-02") != "2026-09-04" {
		t.Errorf("expiration = %s, want 2026-09-04", got.Format("2006-01-02"))
	}
}

func TestNearestExpiration_HolidayFridayRollsBack(t *testing.T) {
	cal := newTestCalendar(t)

	// Good Friday 2026 falls on April 3; weeklies expire Thursday instead.
	got := cal.NearestExpiration(date(t, cal, "2026-03-30"))
	if got.Format("2006-01-02") != "2026-04-02" {
		t.Errorf("expiration = %s, want 2026-04-02", got.Format("2006-01-02"))
	}
	if got.Weekday() != time.Thursday {
		t.Errorf("weekday = %v, want Thursday", got.Weekday())
	}
}

func TestIsMarketDay(t *testing.T) {
	cal := newTestCalendar(t)

	cases := []struct {
		date string
		want bool
	}{
		{"2026-08-26", true},  // Wednesday
		{"2026-08-29", false}, // Saturday
		{"2026-12-25", false}, // Christmas, a Friday
		{"2026-04-03", false}, // Good Friday
	}
	for _, tc := range cases {
		if got := cal.IsMarketDay(date(t, cal, tc.date)); got != tc.want {
			t.Errorf("IsMarketDay(%s) = %v, want %v", tc.date, got, tc.want)
		}
	}
}

func TestNewCalendar_BadTimezoneFallsBackToUTC(t *testing.T) {
	cal := NewCalendar("Not/AZone")
	if cal.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", cal.Location())
	}
}
