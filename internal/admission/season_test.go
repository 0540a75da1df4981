package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func summerSeason() Season {
	return Season{
		Start: MonthDay{Month: time.June, Day: 17},
		End:   MonthDay{Month: time.September, Day: 15},
	}
}

func TestParseMonthDay(t *testing.T) {
	md, err := ParseMonthDay("06-17")
	require.NoError(t, err)
	assert.Equal(t, MonthDay{Month: time.June, Day: 17}, md)
	assert.Equal(t, "June 17", md.String())

	_, err = ParseMonthDay("13-01")
	assert.Error(t, err)
	_, err = ParseMonthDay("June 17")
	assert.Error(t, err)
}

func TestSeason_Validate(t *testing.T) {
	assert.NoError(t, summerSeason().Validate())

	reversed := Season{Start: summerSeason().End, End: summerSeason().Start}
	assert.Error(t, reversed.Validate())
}

func TestValidatePickupDate(t *testing.T) {
	today := day(2024, time.June, 10)
	season := summerSeason()

	tests := []struct {
		name    string
		date    time.Time
		wantErr error
	}{
		{name: "in season", date: day(2024, time.July, 4)},
		{name: "first day", date: day(2024, time.June, 17)},
		{name: "last day", date: day(2024, time.September, 15)},
		{name: "before season", date: day(2024, time.June, 16), wantErr: ErrOutOfSeason},
		{name: "after season", date: day(2024, time.September, 16), wantErr: ErrOutOfSeason},
		{name: "next year", date: day(2025, time.July, 4), wantErr: ErrOutOfYear},
		{name: "yesterday", date: day(2024, time.June, 9), wantErr: ErrDateInPast},
		{name: "last year", date: day(2023, time.July, 4), wantErr: ErrDateInPast},
		{name: "missing", date: time.Time{}, wantErr: ErrDateRequired},
	}

	for _, tt := range tests {
		err := ValidatePickupDate(tt.date, today, season)
		if tt.wantErr == nil {
			assert.NoError(t, err, tt.name)
		} else {
			assert.ErrorIs(t, err, tt.wantErr, tt.name)
		}
	}
}

func TestValidatePickupDate_JuneFirstOutOfSeason(t *testing.T) {
	today := day(2024, time.May, 20)
	assert.ErrorIs(t, ValidatePickupDate(day(2024, time.June, 1), today, summerSeason()), ErrOutOfSeason)
	assert.NoError(t, ValidatePickupDate(day(2024, time.July, 4), today, summerSeason()))
}

func TestValidatePickupDate_AnyPastDate(t *testing.T) {
	today := day(2024, time.August, 1)
	for d := day(2024, time.January, 1); d.Before(today); d = d.AddDate(0, 0, 1) {
		require.ErrorIs(t, ValidatePickupDate(d, today, summerSeason()), ErrDateInPast, d.Format("2006-01-02"))
	}
}

func TestValidatePickupDate_AnyOtherYear(t *testing.T) {
	today := day(2024, time.January, 1)
	for y := 2025; y <= 2030; y++ {
		assert.ErrorIs(t, ValidatePickupDate(day(y, time.July, 4), today, summerSeason()), ErrOutOfYear)
	}
}

func TestInSeason_MatchesValidation(t *testing.T) {
	today := day(2024, time.June, 17)
	season := summerSeason()

	assert.True(t, InSeason(today, today, season))
	assert.False(t, InSeason(day(2024, time.December, 1), today, season))

	for d := today; d.Year() == 2024; d = d.AddDate(0, 0, 1) {
		valid := ValidatePickupDate(d, today, season) == nil
		assert.Equal(t, valid, InSeason(d, today, season), d.Format("2006-01-02"))
	}
}
