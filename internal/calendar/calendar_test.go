package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(DateFormat, s)
	require.NoError(t, err)
	return d
}

func TestIsTradingDay(t *testing.T) {
	cal, err := New([]string{"2026-08-27"})
	require.NoError(t, err)

	assert.True(t, cal.IsTradingDay(mustDay(t, "2026-08-26")))  // Wednesday
	assert.False(t, cal.IsTradingDay(mustDay(t, "2026-08-27"))) // Thursday holiday
	assert.False(t, cal.IsTradingDay(mustDay(t, "2026-08-29"))) // Saturday
	assert.False(t, cal.IsTradingDay(mustDay(t, "2026-08-30"))) // Sunday
	assert.True(t, cal.IsTradingDay(mustDay(t, "2026-08-31")))  // Monday
}

func TestPreviousTradingDayMondayToFriday(t *testing.T) {
	cal, err := New(nil)
	require.NoError(t, err)

	monday := mustDay(t, "2026-08-31")
	prev := cal.PreviousTradingDay(monday)
	assert.Equal(t, "2026-08-28", prev.Format(DateFormat))
}

func TestPreviousTradingDaySkipsHoliday(t *testing.T) {
	// Friday the 28th is a holiday, so Monday looks back to Thursday.
	cal, err := New([]string{"2026-08-28"})
	require.NoError(t, err)

	prev := cal.PreviousTradingDay(mustDay(t, "2026-08-31"))
	assert.Equal(t, "2026-08-27", prev.Format(DateFormat))
}

func TestPreviousTradingDayMidweek(t *testing.T) {
	cal, err := New(nil)
	require.NoError(t, err)

	prev := cal.PreviousTradingDay(mustDay(t, "2026-08-26"))
	assert.Equal(t, "2026-08-25", prev.Format(DateFormat))
}

func TestNewRejectsInvalidHoliday(t *testing.T) {
	_, err := New([]string{"26/08/2026"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid holiday")
}

func TestNewIgnoresBlankEntries(t *testing.T) {
	cal, err := New([]string{"", "  ", "2026-12-25"})
	require.NoError(t, err)
	assert.False(t, cal.IsTradingDay(mustDay(t, "2026-12-25")))
}
