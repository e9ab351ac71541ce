package calendar

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat is the canonical day key, shared with snapshot dates.
const DateFormat = "2006-01-02"

// Calendar answers trading-day questions: weekends are always closed, plus an
// explicit holiday list from configuration. All arithmetic is done on UTC
// calendar days.
type Calendar struct {
	holidays map[string]struct{}
}

// New builds a calendar from holiday dates in "2006-01-02" form. Invalid
// entries are rejected so a typo in config fails at startup, not at the first
// return computation.
func New(holidays []string) (*Calendar, error) {
	set := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, err := time.Parse(DateFormat, h); err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", h, err)
		}
		set[h] = struct{}{}
	}
	return &Calendar{holidays: set}, nil
}

// IsTradingDay reports whether the market is open on the given date.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	day := date.UTC()
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if c == nil {
		return true
	}
	_, holiday := c.holidays[day.Format(DateFormat)]
	return !holiday
}

// PreviousTradingDay returns the last trading day strictly before date,
// skipping weekends and holidays. A Monday maps to the prior Friday, or
// earlier when that Friday is a holiday.
func (c *Calendar) PreviousTradingDay(date time.Time) time.Time {
	day := midnight(date)
	// A year of consecutive closed days would mean a broken holiday list;
	// bail out rather than loop forever.
	for i := 0; i < 366; i++ {
		day = day.AddDate(0, 0, -1)
		if c.IsTradingDay(day) {
			return day
		}
	}
	return day
}

func midnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
