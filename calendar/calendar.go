/*
Package calendar provides organizational calendar-day arithmetic.

PURPOSE:
  Every date comparison in the leave engine happens at midnight of the
  organization's timezone, never at a wall-clock instant. This package
  owns that normalization plus weekend/holiday classification, so the
  rest of the engine can reason about calendar days as opaque values.

KEY CONCEPTS:
  - Date:     A calendar day (pure year/month/day, no instant attached)
  - Calendar: Org timezone + configured weekend days
  - HolidaySet: Holiday lookup keyed by ISO day string

NORMALIZATION CONTRACT:
  Two instants falling on the same calendar day in the org timezone
  MUST normalize to the same Date, regardless of their original offset,
  and normalization is idempotent for any org timezone east or west of
  UTC. Date deliberately carries no instant of its own; an instant only
  enters the model through Calendar.Normalize and only leaves through
  Date.In, so no UTC pinning can drift a day across the round trip.
  Holiday instants from an external source pass through the same
  Normalize before they are compared - otherwise timezone drift causes
  off-by-one misses on holiday lookups.

WEEKEND CONFIGURATION:
  Weekend days are policy configuration, not an assumption. The default
  deployment uses Friday+Saturday; a different org may configure any set.

SEE ALSO:
  - workdays.go: Working-day counters built on this classification
*/
package calendar

import (
	"time"
)

// =============================================================================
// DATE - A calendar day, independent of any timezone
// =============================================================================

// Date is a calendar day held as plain year/month/day. It has no
// attached instant, so comparisons are pure day comparisons and
// normalization through any org timezone cannot shift it.
type Date struct {
	year  int
	month time.Month
	day   int
}

// NewDate constructs a Date from year/month/day. Out-of-range
// components are canonicalized the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{year: t.Year(), month: t.Month(), day: t.Day()}
}

// ref is the internal reference instant used for arithmetic. It never
// leaves this package as an instant.
func (d Date) ref() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// Comparison
func (d Date) Before(other Date) bool        { return d.ref().Before(other.ref()) }
func (d Date) After(other Date) bool         { return d.ref().After(other.ref()) }
func (d Date) Equal(other Date) bool         { return d == other }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }
func (d Date) IsZero() bool                  { return d == Date{} }

// Arithmetic
func (d Date) AddDays(n int) Date   { return dateOf(d.ref().AddDate(0, 0, n)) }
func (d Date) AddMonths(n int) Date { return dateOf(d.ref().AddDate(0, n, 0)) }
func (d Date) AddYears(n int) Date  { return dateOf(d.ref().AddDate(n, 0, 0)) }

// Properties
func (d Date) Year() int             { return d.year }
func (d Date) Month() time.Month     { return d.month }
func (d Date) Day() int              { return d.day }
func (d Date) Weekday() time.Weekday { return d.ref().Weekday() }

// In returns midnight of the calendar day in the given location. This
// is the only way a Date becomes an instant again; normalizing the
// result through a Calendar for the same location yields the same Date.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, loc)
}

// ISO returns the canonical YYYY-MM-DD form. This is the comparison key
// used for holiday lookups and storage.
func (d Date) ISO() string { return d.ref().Format("2006-01-02") }

func (d Date) String() string { return d.ISO() }

func dateOf(t time.Time) Date {
	return Date{year: t.Year(), month: t.Month(), day: t.Day()}
}

// DaysBetween returns whole days from a to b (negative if b precedes a).
func DaysBetween(a, b Date) int {
	return int(b.ref().Sub(a.ref()).Hours() / 24)
}

// StartOfMonth returns the first day of the given month.
func StartOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }

// EndOfMonth returns the last day of the given month.
func EndOfMonth(year int, month time.Month) Date { return NewDate(year, month+1, 0) }

// StartOfYear returns January 1 of the given year.
func StartOfYear(year int) Date { return NewDate(year, time.January, 1) }

// EndOfYear returns December 31 of the given year.
func EndOfYear(year int) Date { return NewDate(year, time.December, 31) }

// =============================================================================
// CALENDAR - Org timezone + weekend configuration
// =============================================================================

// Calendar holds the organizational timezone and weekend pattern.
// Construct once at startup and inject everywhere; it is immutable.
type Calendar struct {
	loc     *time.Location
	weekend map[time.Weekday]bool
}

// New builds a Calendar for the named IANA timezone and weekend days.
func New(timezone string, weekendDays []time.Weekday) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	weekend := make(map[time.Weekday]bool, len(weekendDays))
	for _, wd := range weekendDays {
		weekend[wd] = true
	}
	return &Calendar{loc: loc, weekend: weekend}, nil
}

// MustNew is New that panics on a bad timezone. For wiring and tests.
func MustNew(timezone string, weekendDays []time.Weekday) *Calendar {
	c, err := New(timezone, weekendDays)
	if err != nil {
		panic(err)
	}
	return c
}

// Normalize converts any instant to the Date of the calendar day it
// falls on in the organizational timezone. Idempotent through Date.In
// for every timezone: Normalize(Normalize(x).In(Location())) is always
// Normalize(x).
func (c *Calendar) Normalize(instant time.Time) Date {
	local := instant.In(c.loc)
	return Date{year: local.Year(), month: local.Month(), day: local.Day()}
}

// Today returns the current calendar day in the org timezone.
func (c *Calendar) Today() Date { return c.Normalize(time.Now()) }

// IsWeekend reports whether the date falls on a configured weekend day.
func (c *Calendar) IsWeekend(d Date) bool { return c.weekend[d.Weekday()] }

// IsHoliday reports whether the date matches a holiday in the set.
func (c *Calendar) IsHoliday(d Date, holidays HolidaySet) bool {
	return holidays.Contains(d)
}

// IsNonWorking reports whether the date is a weekend day or a holiday.
func (c *Calendar) IsNonWorking(d Date, holidays HolidaySet) bool {
	return c.IsWeekend(d) || c.IsHoliday(d, holidays)
}

// IsWorking reports whether the date is a working day.
func (c *Calendar) IsWorking(d Date, holidays HolidaySet) bool {
	return !c.IsNonWorking(d, holidays)
}

// Location exposes the org timezone (for formatting at the edges).
func (c *Calendar) Location() *time.Location { return c.loc }

// =============================================================================
// HOLIDAY SET - Holiday lookup on normalized days
// =============================================================================

// HolidaySet is a holiday lookup keyed by ISO day strings. Entries are
// calendar days, never instants, so the set is offset-independent.
type HolidaySet map[string]string // ISO date -> holiday name

// Holiday is a holiday on a specific calendar day. A source that
// supplies instants must pass them through Calendar.Normalize before
// constructing one.
type Holiday struct {
	Date Date
	Name string
}

// NewHolidaySet builds the lookup. At most one holiday per calendar
// day; later entries win.
func NewHolidaySet(holidays []Holiday) HolidaySet {
	set := make(HolidaySet, len(holidays))
	for _, h := range holidays {
		set[h.Date.ISO()] = h.Name
	}
	return set
}

// Contains reports whether the set has a holiday on the given day.
func (hs HolidaySet) Contains(d Date) bool {
	_, ok := hs[d.ISO()]
	return ok
}

// Name returns the holiday name for a day, if any.
func (hs HolidaySet) Name(d Date) (string, bool) {
	name, ok := hs[d.ISO()]
	return name, ok
}
