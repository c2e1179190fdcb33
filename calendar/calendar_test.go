package calendar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdbl/leave-engine/calendar"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// dhaka returns the default deployment calendar: Asia/Dhaka with a
// Friday+Saturday weekend.
func dhaka(t *testing.T) *calendar.Calendar {
	c, err := calendar.New("Asia/Dhaka", []time.Weekday{time.Friday, time.Saturday})
	require.NoError(t, err)
	return c
}

func d(year int, month time.Month, day int) calendar.Date {
	return calendar.NewDate(year, month, day)
}

// =============================================================================
// NORMALIZATION TESTS
// =============================================================================

func TestNormalize_SameDayDifferentOffsets_SameDate(t *testing.T) {
	// GIVEN: Two instants on the same Dhaka calendar day, different UTC offsets
	// WHEN: Normalizing both
	// THEN: Both map to the same Date

	cal := dhaka(t)

	// 2025-03-10 01:00 Dhaka is 2025-03-09 19:00 UTC.
	early := time.Date(2025, time.March, 9, 19, 0, 0, 0, time.UTC)
	late := time.Date(2025, time.March, 10, 17, 30, 0, 0, time.UTC) // 23:30 Dhaka

	assert.Equal(t, d(2025, time.March, 10), cal.Normalize(early))
	assert.Equal(t, d(2025, time.March, 10), cal.Normalize(late))
}

func TestNormalize_Idempotent(t *testing.T) {
	// GIVEN: An already-normalized date turned back into a local instant
	// WHEN: Normalizing again
	// THEN: The same Date comes back

	cal := dhaka(t)
	once := cal.Normalize(time.Date(2025, time.June, 15, 23, 0, 0, 0, time.UTC))
	twice := cal.Normalize(once.In(cal.Location()))

	assert.True(t, once.Equal(twice))
}

func TestNormalize_Idempotent_WestOfUTC(t *testing.T) {
	// GIVEN: An org timezone with a negative UTC offset
	// WHEN: Round-tripping a normalized date through its local instant,
	//       repeatedly
	// THEN: The Date never drifts a day

	cal, err := calendar.New("America/New_York", []time.Weekday{time.Saturday, time.Sunday})
	require.NoError(t, err)

	once := cal.Normalize(time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, d(2025, time.June, 15), once)

	again := once
	for i := 0; i < 3; i++ {
		again = cal.Normalize(again.In(cal.Location()))
	}
	assert.True(t, once.Equal(again))
}

func TestNew_UnknownTimezone_Errors(t *testing.T) {
	_, err := calendar.New("Not/AZone", nil)
	assert.Error(t, err)
}

// =============================================================================
// CLASSIFICATION TESTS
// =============================================================================

func TestIsWeekend_FridaySaturday(t *testing.T) {
	// GIVEN: The Friday+Saturday weekend configuration
	// WHEN: Classifying a full week
	// THEN: Only Friday and Saturday are weekend days

	cal := dhaka(t)

	// 2025-03-02 is a Sunday.
	sunday := d(2025, time.March, 2)
	for i := 0; i < 7; i++ {
		day := sunday.AddDays(i)
		want := day.Weekday() == time.Friday || day.Weekday() == time.Saturday
		assert.Equal(t, want, cal.IsWeekend(day), "day %s (%s)", day, day.Weekday())
	}
}

func TestHolidaySet_NormalizedInstantLookup(t *testing.T) {
	// GIVEN: A holiday supplied as an offset instant that crosses midnight UTC
	// WHEN: Normalizing it through the Dhaka calendar into the set
	// THEN: Lookup on the Dhaka calendar day hits

	cal := dhaka(t)
	// 2025-03-26 00:30 Dhaka supplied as 2025-03-25 18:30 UTC.
	instant := time.Date(2025, time.March, 25, 18, 30, 0, 0, time.UTC)
	set := calendar.NewHolidaySet([]calendar.Holiday{
		{Date: cal.Normalize(instant), Name: "Independence Day"},
	})

	assert.True(t, set.Contains(d(2025, time.March, 26)))
	assert.False(t, set.Contains(d(2025, time.March, 25)))

	name, ok := set.Name(d(2025, time.March, 26))
	require.True(t, ok)
	assert.Equal(t, "Independence Day", name)
}

func TestHolidaySet_WestOfUTC_NoOffByOne(t *testing.T) {
	// GIVEN: A holiday keyed by its calendar day in a west-of-UTC org
	// WHEN: Looking it up after a local-instant round trip
	// THEN: The holiday is found on its own day, never the day before

	cal, err := calendar.New("America/New_York", []time.Weekday{time.Saturday, time.Sunday})
	require.NoError(t, err)

	fourth := d(2025, time.July, 4)
	set := calendar.NewHolidaySet([]calendar.Holiday{{Date: fourth, Name: "Independence Day"}})

	assert.True(t, set.Contains(fourth))
	assert.True(t, set.Contains(cal.Normalize(fourth.In(cal.Location()))))
	assert.False(t, set.Contains(d(2025, time.July, 3)))
}

func TestIsWorking_HolidayAndWeekend(t *testing.T) {
	// GIVEN: A holiday on a Wednesday
	// WHEN: Classifying the surrounding days
	// THEN: Holiday and weekend are non-working, plain weekdays working

	cal := dhaka(t)
	wednesday := d(2025, time.March, 26)
	set := calendar.NewHolidaySet([]calendar.Holiday{
		{Date: wednesday, Name: "Independence Day"},
	})

	assert.False(t, cal.IsWorking(wednesday, set))
	assert.True(t, cal.IsWorking(d(2025, time.March, 27), set))  // Thursday
	assert.False(t, cal.IsWorking(d(2025, time.March, 28), set)) // Friday
}

// =============================================================================
// DAY COUNTING TESTS
// =============================================================================

func TestTotalCalendarDaysInclusive(t *testing.T) {
	assert.Equal(t, 1, calendar.TotalCalendarDaysInclusive(d(2025, time.March, 10), d(2025, time.March, 10)))
	assert.Equal(t, 7, calendar.TotalCalendarDaysInclusive(d(2025, time.March, 10), d(2025, time.March, 16)))
	assert.Equal(t, 31, calendar.TotalCalendarDaysInclusive(d(2025, time.January, 1), d(2025, time.January, 31)))
}

func TestTotalCalendarDaysInclusive_ReversedRange_Zero(t *testing.T) {
	// GIVEN: A start after the end
	// WHEN: Counting
	// THEN: Zero, never negative

	assert.Equal(t, 0, calendar.TotalCalendarDaysInclusive(d(2025, time.March, 16), d(2025, time.March, 10)))
}

func TestCountWorkingDays_SkipsWeekendAndHoliday(t *testing.T) {
	// GIVEN: Sunday 2025-03-23 through Saturday 2025-03-29 with a
	//        Wednesday holiday
	// WHEN: Counting working days
	// THEN: 7 total - 2 weekend - 1 holiday = 4 working

	cal := dhaka(t)
	set := calendar.NewHolidaySet([]calendar.Holiday{
		{Date: d(2025, time.March, 26), Name: "Independence Day"},
	})

	got := cal.CountWorkingDays(d(2025, time.March, 23), d(2025, time.March, 29), set)
	assert.Equal(t, 4, got)
}

func TestCountDaysBreakdown_Invariant(t *testing.T) {
	// GIVEN: A range with weekends and holidays, one holiday on a Friday
	// WHEN: Computing the breakdown
	// THEN: Working + Weekends + Holidays == Total, and the weekend
	//       holiday counts in the weekend bucket

	cal := dhaka(t)
	set := calendar.NewHolidaySet([]calendar.Holiday{
		{Date: d(2025, time.March, 26), Name: "Independence Day"}, // Wednesday
		{Date: d(2025, time.March, 28), Name: "Shab-e-Qadr"},      // Friday
	})

	b := cal.CountDaysBreakdown(d(2025, time.March, 23), d(2025, time.March, 29), set)
	assert.Equal(t, 7, b.Total)
	assert.Equal(t, 2, b.Weekends)
	assert.Equal(t, 1, b.Holidays) // the Friday holiday lands in Weekends
	assert.Equal(t, 4, b.Working)
	assert.Equal(t, b.Total, b.Working+b.Weekends+b.Holidays)
}

func TestCountDaysBreakdown_ReversedRange_Zero(t *testing.T) {
	cal := dhaka(t)
	b := cal.CountDaysBreakdown(d(2025, time.March, 29), d(2025, time.March, 23), nil)
	assert.Equal(t, calendar.DaysBreakdown{}, b)
}

func TestDaysBetween_Negative(t *testing.T) {
	assert.Equal(t, -6, calendar.DaysBetween(d(2025, time.March, 16), d(2025, time.March, 10)))
	assert.Equal(t, 6, calendar.DaysBetween(d(2025, time.March, 10), d(2025, time.March, 16)))
}

func TestMonthBoundaries(t *testing.T) {
	assert.Equal(t, d(2025, time.February, 1), calendar.StartOfMonth(2025, time.February))
	assert.Equal(t, d(2025, time.February, 28), calendar.EndOfMonth(2025, time.February))
	assert.Equal(t, d(2024, time.February, 29), calendar.EndOfMonth(2024, time.February))
	assert.Equal(t, d(2025, time.December, 31), calendar.EndOfYear(2025))
}
