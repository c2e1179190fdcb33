package validation_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdbl/leave-engine/calendar"
	"github.com/cdbl/leave-engine/leave"
	"github.com/cdbl/leave-engine/policy"
	"github.com/cdbl/leave-engine/validation"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dhaka(t *testing.T) *calendar.Calendar {
	c, err := calendar.New("Asia/Dhaka", []time.Weekday{time.Friday, time.Saturday})
	require.NoError(t, err)
	return c
}

func d(year int, month time.Month, day int) calendar.Date {
	return calendar.NewDate(year, month, day)
}

func holidays(days ...calendar.Date) calendar.HolidaySet {
	var hs []calendar.Holiday
	for _, day := range days {
		hs = append(hs, calendar.Holiday{Date: day, Name: "holiday"})
	}
	return calendar.NewHolidaySet(hs)
}

func app(id string, kind leave.Kind, status leave.Status, start, end calendar.Date) leave.Application {
	return leave.Application{
		ID: leave.ApplicationID(id), MemberID: "emp-1", Kind: kind,
		Status: status, StartDate: start, EndDate: end,
	}
}

// =============================================================================
// CASUAL ADJACENCY TESTS
// =============================================================================

func TestCasualAdjacency_PlainMidweekDays_OK(t *testing.T) {
	// GIVEN: Monday-Tuesday with working days on both sides
	// WHEN: Validating adjacency
	// THEN: OK

	cal := dhaka(t)
	r := validation.CasualAdjacency(cal, nil, d(2025, time.March, 3), d(2025, time.March, 4))
	assert.True(t, r.OK())
}

func TestCasualAdjacency_ContainsWeekend_Violation(t *testing.T) {
	// GIVEN: Thursday through Sunday (contains Friday+Saturday weekend)
	// WHEN: Validating adjacency
	// THEN: Violation on the contained non-working day

	cal := dhaka(t)
	r := validation.CasualAdjacency(cal, nil, d(2025, time.March, 6), d(2025, time.March, 9))
	assert.True(t, r.Blocking())
	assert.Contains(t, r.Reason, "include")
}

func TestCasualAdjacency_EndsBeforeWeekend_Violation(t *testing.T) {
	// GIVEN: Wednesday-Thursday; the next day is Friday (weekend)
	// WHEN: Validating adjacency
	// THEN: Violation - casual leave may not run into the weekend

	cal := dhaka(t)
	r := validation.CasualAdjacency(cal, nil, d(2025, time.March, 5), d(2025, time.March, 6))
	assert.True(t, r.Blocking())
}

func TestCasualAdjacency_StartsAfterHoliday_Violation(t *testing.T) {
	// GIVEN: A Wednesday holiday and a casual leave starting Thursday
	// WHEN: Validating adjacency
	// THEN: Violation - the day before the leave is non-working

	cal := dhaka(t)
	hs := holidays(d(2025, time.March, 26))
	r := validation.CasualAdjacency(cal, hs, d(2025, time.March, 27), d(2025, time.March, 27))
	assert.True(t, r.Blocking())
	assert.Contains(t, r.Reason, "start immediately after")
}

func TestCasualAdjacency_SurroundedByWorkingDays_OK(t *testing.T) {
	// GIVEN: A single Tuesday with a holiday far away
	// WHEN: Validating adjacency
	// THEN: OK

	cal := dhaka(t)
	hs := holidays(d(2025, time.March, 26))
	r := validation.CasualAdjacency(cal, hs, d(2025, time.March, 4), d(2025, time.March, 4))
	assert.True(t, r.OK())
}

// =============================================================================
// CASUAL COMBINATION TESTS
// =============================================================================

func TestCasualCombination_AdjacentEarnedLeave_Violation(t *testing.T) {
	// GIVEN: An approved earned leave ending the day before the casual start
	// WHEN: Validating combination
	// THEN: Violation with the conflicting leave identified

	earned := app("app-el", leave.KindEarned, leave.StatusApproved,
		d(2025, time.March, 2), d(2025, time.March, 3))

	r := validation.CasualCombination(d(2025, time.March, 4), d(2025, time.March, 5),
		[]leave.Application{earned})
	assert.True(t, r.Blocking())
	require.NotNil(t, r.Conflict)
	assert.Equal(t, leave.ApplicationID("app-el"), r.Conflict.ID)
}

func TestCasualCombination_OverlappingPending_Violation(t *testing.T) {
	pending := app("app-2", leave.KindMedical, leave.StatusPending,
		d(2025, time.March, 4), d(2025, time.March, 6))

	r := validation.CasualCombination(d(2025, time.March, 5), d(2025, time.March, 5),
		[]leave.Application{pending})
	assert.True(t, r.Blocking())
}

func TestCasualCombination_RejectedHistoryIgnored(t *testing.T) {
	// GIVEN: A rejected leave overlapping the request
	// WHEN: Validating combination
	// THEN: OK - inactive statuses hold no days

	rejected := app("app-3", leave.KindEarned, leave.StatusRejected,
		d(2025, time.March, 4), d(2025, time.March, 6))

	r := validation.CasualCombination(d(2025, time.March, 5), d(2025, time.March, 5),
		[]leave.Application{rejected})
	assert.True(t, r.OK())
	assert.Nil(t, r.Conflict)
}

func TestCasualCombination_GapOfOneDay_OK(t *testing.T) {
	// GIVEN: An approved leave ending two days before the casual start
	// WHEN: Validating combination
	// THEN: OK - one working day between them breaks adjacency

	earned := app("app-el", leave.KindEarned, leave.StatusApproved,
		d(2025, time.March, 2), d(2025, time.March, 2))

	r := validation.CasualCombination(d(2025, time.March, 4), d(2025, time.March, 5),
		[]leave.Application{earned})
	assert.True(t, r.OK())
}

// =============================================================================
// DURATION, CERTIFICATE, NOTICE, BACKDATE TESTS
// =============================================================================

func TestCasualDuration_CapAtThree(t *testing.T) {
	cfg := policy.DefaultConfig()

	r := validation.CasualDuration(cfg, d(2025, time.March, 2), d(2025, time.March, 4))
	assert.True(t, r.OK())

	r = validation.CasualDuration(cfg, d(2025, time.March, 2), d(2025, time.March, 5))
	assert.True(t, r.Blocking())
}

func TestMedicalCertificate_RequiredOverThreshold(t *testing.T) {
	cfg := policy.DefaultConfig()

	assert.True(t, validation.MedicalCertificate(cfg, 3, false).OK())
	assert.True(t, validation.MedicalCertificate(cfg, 4, false).Blocking())
	assert.True(t, validation.MedicalCertificate(cfg, 4, true).OK())
}

func TestFitnessCertificateRequired(t *testing.T) {
	cfg := policy.DefaultConfig()
	assert.False(t, validation.FitnessCertificateRequired(cfg, 7))
	assert.True(t, validation.FitnessCertificateRequired(cfg, 8))
}

func TestNoticeWarning_ShortNotice_AdvisoryOnly(t *testing.T) {
	// GIVEN: Earned leave requested 5 days ahead against a 15-day rule
	// WHEN: Checking notice
	// THEN: A warning, never a violation

	cfg := policy.DefaultConfig()
	r := validation.NoticeWarning(cfg, leave.KindEarned, d(2025, time.March, 1), d(2025, time.March, 6))
	assert.True(t, r.Advisory())
	assert.False(t, r.Blocking())
}

func TestNoticeWarning_ExemptKind_NoWarning(t *testing.T) {
	// GIVEN: Casual leave applied for on the same day
	// WHEN: Checking notice
	// THEN: OK - the kind is notice-exempt by policy

	cfg := policy.DefaultConfig()
	r := validation.NoticeWarning(cfg, leave.KindCasual, d(2025, time.March, 6), d(2025, time.March, 6))
	assert.True(t, r.OK())
}

func TestBackdateLimit_MedicalWindow(t *testing.T) {
	cfg := policy.DefaultConfig()
	apply := d(2025, time.March, 31)

	r := validation.BackdateLimit(cfg, leave.KindMedical, apply, apply.AddDays(-30))
	assert.True(t, r.OK())

	r = validation.BackdateLimit(cfg, leave.KindMedical, apply, apply.AddDays(-31))
	assert.True(t, r.Blocking())
}

func TestBackdateLimit_NonBackdatableKind(t *testing.T) {
	cfg := policy.DefaultConfig()
	apply := d(2025, time.March, 31)

	r := validation.BackdateLimit(cfg, leave.KindEarned, apply, apply.AddDays(-1))
	assert.True(t, r.Blocking())

	r = validation.BackdateLimit(cfg, leave.KindEarned, apply, apply)
	assert.True(t, r.OK())
}

// =============================================================================
// PATERNITY TESTS
// =============================================================================

func TestPaternityEligibility_OccasionsExhausted(t *testing.T) {
	cfg := policy.DefaultConfig()
	prior := []validation.Occasion{
		{StartDate: d(2019, time.March, 1), EndDate: d(2019, time.March, 10)},
		{StartDate: d(2023, time.March, 1), EndDate: d(2023, time.March, 10)},
	}
	r := validation.PaternityEligibility(cfg, prior, d(2025, time.June, 1))
	assert.True(t, r.Blocking())
	assert.Contains(t, r.Reason, "2 occasions")
}

func TestPaternityEligibility_IntervalTooShort(t *testing.T) {
	// GIVEN: One prior occasion ending 24 months ago against a 36-month gate
	// WHEN: Requesting the second occasion
	// THEN: Violation reporting the shortfall

	cfg := policy.DefaultConfig()
	prior := []validation.Occasion{
		{StartDate: d(2023, time.May, 20), EndDate: d(2023, time.June, 1)},
	}
	r := validation.PaternityEligibility(cfg, prior, d(2025, time.June, 1))
	assert.True(t, r.Blocking())
	assert.Contains(t, r.Reason, "36 months")
}

func TestPaternityEligibility_IntervalSatisfied(t *testing.T) {
	cfg := policy.DefaultConfig()
	prior := []validation.Occasion{
		{StartDate: d(2021, time.May, 20), EndDate: d(2021, time.June, 1)},
	}
	r := validation.PaternityEligibility(cfg, prior, d(2025, time.June, 1))
	assert.True(t, r.OK())
}

func TestPaternityEligibility_FirstOccasion_NoIntervalGate(t *testing.T) {
	cfg := policy.DefaultConfig()
	r := validation.PaternityEligibility(cfg, nil, d(2025, time.June, 1))
	assert.True(t, r.OK())
}

// =============================================================================
// EXTRAORDINARY PREREQUISITE TESTS
// =============================================================================

func TestExtraordinaryPrerequisite_BalancesExhausted_OK(t *testing.T) {
	cfg := policy.DefaultConfig()
	remaining := map[leave.Kind]decimal.Decimal{
		leave.KindCasual:  decimal.NewFromInt(2),
		leave.KindEarned:  decimal.NewFromInt(5),
		leave.KindMedical: decimal.Zero,
	}
	r := validation.ExtraordinaryPrerequisite(cfg, remaining)
	assert.True(t, r.OK())
	assert.Empty(t, r.Violations)
}

func TestExtraordinaryPrerequisite_ItemizesEveryExcess(t *testing.T) {
	// GIVEN: Casual and medical balances above their residual thresholds
	// WHEN: Checking the prerequisite
	// THEN: Both kinds appear in the itemized violations

	cfg := policy.DefaultConfig()
	remaining := map[leave.Kind]decimal.Decimal{
		leave.KindCasual:  decimal.NewFromInt(7),
		leave.KindEarned:  decimal.NewFromInt(3),
		leave.KindMedical: decimal.NewFromInt(1),
	}
	r := validation.ExtraordinaryPrerequisite(cfg, remaining)
	assert.True(t, r.Blocking())
	require.Len(t, r.Violations, 2)
	assert.Equal(t, leave.KindCasual, r.Violations[0].Kind)
	assert.Equal(t, leave.KindMedical, r.Violations[1].Kind)
}

func TestExtraordinaryPrerequisite_MissingKindIsZero(t *testing.T) {
	// GIVEN: No balance records at all
	// WHEN: Checking the prerequisite
	// THEN: OK - a missing record is a zero balance

	cfg := policy.DefaultConfig()
	r := validation.ExtraordinaryPrerequisite(cfg, map[leave.Kind]decimal.Decimal{})
	assert.True(t, r.OK())
}

// =============================================================================
// INCIDENT WINDOW TESTS
// =============================================================================

func TestIncidentWindow_WithinWindow_OK(t *testing.T) {
	cfg := policy.DefaultConfig()
	r := validation.IncidentWindow(cfg,
		d(2025, time.March, 1), d(2025, time.April, 1), d(2025, time.March, 20))
	assert.True(t, r.OK())
}

func TestIncidentWindow_FutureIncident_Violation(t *testing.T) {
	cfg := policy.DefaultConfig()
	r := validation.IncidentWindow(cfg,
		d(2025, time.March, 25), d(2025, time.April, 1), d(2025, time.March, 20))
	assert.True(t, r.Blocking())
	assert.Contains(t, r.Reason, "future")
}

func TestIncidentWindow_TooFarBeforeStart_Violation(t *testing.T) {
	// GIVEN: An incident 91 days before the leave start
	// WHEN: Validating the 90-day window
	// THEN: Violation, with the valid range reported for correction

	cfg := policy.DefaultConfig()
	start := d(2025, time.June, 1)
	r := validation.IncidentWindow(cfg, start.AddDays(-91), start, d(2025, time.May, 20))
	assert.True(t, r.Blocking())
	assert.Equal(t, start.AddDays(-90), r.EarliestValid)
}

// =============================================================================
// ANNUAL OVERFLOW TESTS
// =============================================================================

func TestAnnualLimitOverflow_UnderCap_OK(t *testing.T) {
	cfg := policy.DefaultConfig()
	r := validation.AnnualLimitOverflow(cfg, leave.KindCasual, decimal.NewFromInt(7), 3)
	assert.True(t, r.OK())
	assert.True(t, r.ExceedsDays.IsZero())
}

func TestAnnualLimitOverflow_OverCap_AdvisorySplit(t *testing.T) {
	// GIVEN: 9 casual days used, 3 more requested against a cap of 10
	// WHEN: Checking the annual limit
	// THEN: A warning suggesting 2 days as earned leave; never blocking

	cfg := policy.DefaultConfig()
	r := validation.AnnualLimitOverflow(cfg, leave.KindCasual, decimal.NewFromInt(9), 3)
	assert.True(t, r.Advisory())
	assert.False(t, r.Blocking())
	assert.Equal(t, "2", r.ExceedsDays.String())
	assert.Contains(t, r.Reason, "earned leave")
}
