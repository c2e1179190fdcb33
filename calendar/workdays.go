/*
workdays.go - Working-day counters

PURPOSE:
  Counts calendar days and working days over inclusive date ranges.
  These feed every duration-based policy rule (consecutive-day caps,
  notice periods, overstay day counts).

FAILURE SEMANTICS:
  These functions never fail. A reversed range (start after end) degrades
  to zero counts so UIs that feed transient reversed ranges stay total.

TIE-BREAK:
  In the breakdown, a day that is both a weekend day and a holiday counts
  as a weekend day. Weekend classification wins; the holiday bucket only
  takes days that are not already weekend. Both still count as non-working.
*/
package calendar

// TotalCalendarDaysInclusive returns (end - start) + 1 whole days.
// Returns 0 when start is after end.
func TotalCalendarDaysInclusive(start, end Date) int {
	if start.After(end) {
		return 0
	}
	return DaysBetween(start, end) + 1
}

// CountWorkingDays returns the number of working days in [start, end].
// Returns 0 when start is after end.
func (c *Calendar) CountWorkingDays(start, end Date, holidays HolidaySet) int {
	if start.After(end) {
		return 0
	}
	count := 0
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		if c.IsWorking(d, holidays) {
			count++
		}
	}
	return count
}

// DaysBreakdown classifies every day in an inclusive range.
// Invariant: Working + Weekends + Holidays == Total.
type DaysBreakdown struct {
	Total    int
	Weekends int
	Holidays int
	Working  int
}

// CountDaysBreakdown returns the per-class day counts for [start, end].
// A reversed range yields the zero breakdown.
func (c *Calendar) CountDaysBreakdown(start, end Date, holidays HolidaySet) DaysBreakdown {
	var b DaysBreakdown
	if start.After(end) {
		return b
	}
	b.Total = TotalCalendarDaysInclusive(start, end)
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		switch {
		case c.IsWeekend(d):
			b.Weekends++
		case c.IsHoliday(d, holidays):
			b.Holidays++
		}
	}
	b.Working = b.Total - b.Weekends - b.Holidays
	return b
}
