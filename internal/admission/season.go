package admission

import (
	"errors"
	"fmt"
	"time"
)

// MonthDay is a calendar day without a year, e.g. June 17.
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay reads "MM-DD".
func ParseMonthDay(s string) (MonthDay, error) {
	t, err := time.Parse("01-02", s)
	if err != nil {
		return MonthDay{}, fmt.Errorf("invalid month-day %q: %w", s, err)
	}
	return MonthDay{Month: t.Month(), Day: t.Day()}, nil
}

// In anchors the month-day to year.
func (md MonthDay) In(year int) time.Time {
	return time.Date(year, md.Month, md.Day, 0, 0, 0, 0, time.UTC)
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%s %d", md.Month, md.Day)
}

// Season is the pickup window, inclusive on both ends, repeated every year.
type Season struct {
	Start MonthDay
	End   MonthDay
}

func (s Season) Validate() error {
	const leapYear = 2024
	if s.Start.In(leapYear).After(s.End.In(leapYear)) {
		return errors.New("season start must not be after season end")
	}
	return nil
}

// Window returns the season bounds for year.
func (s Season) Window(year int) (start, end time.Time) {
	return s.Start.In(year), s.End.In(year)
}

// Rules is the operator-tunable configuration the engine evaluates against.
type Rules struct {
	Season Season
	// DefaultLimit applies when no limit record exists at all; 0 means unbounded.
	DefaultLimit int
}

// ValidatePickupDate checks date against today and the season window of today's year.
// Both arguments are civil dates (see domain.DateOf).
func ValidatePickupDate(date, today time.Time, season Season) error {
	if date.IsZero() {
		return ErrDateRequired
	}
	if date.Before(today) {
		return ErrDateInPast
	}
	if date.Year() != today.Year() {
		return ErrOutOfYear
	}
	if !InSeason(date, today, season) {
		return ErrOutOfSeason
	}
	return nil
}

// InSeason is the non-failing form of the season rule used by ValidatePickupDate.
func InSeason(date, today time.Time, season Season) bool {
	start, end := season.Window(today.Year())
	return !date.Before(start) && !date.After(end)
}
