package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cdbl/leave-engine/calendar"
	"github.com/cdbl/leave-engine/jobs"
	"github.com/cdbl/leave-engine/leave"
	"github.com/cdbl/leave-engine/policy"
	"github.com/cdbl/leave-engine/store"
	"github.com/cdbl/leave-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(year int, month time.Month, day int) calendar.Date {
	return calendar.NewDate(year, month, day)
}

func newMember(t *testing.T, s *memory.Store, id string, join calendar.Date) {
	err := s.AddMember(context.Background(), store.Member{
		ID: leave.MemberID(id), Name: id, JoinDate: join, Active: true,
	})
	require.NoError(t, err)
}

func putBalance(t *testing.T, s *memory.Store, member string, kind leave.Kind, year int, opening, accrued, used int64) {
	b := leave.Balance{
		MemberID: leave.MemberID(member), Kind: kind, Year: year,
		Opening: decimal.NewFromInt(opening),
		Accrued: decimal.NewFromInt(accrued),
		Used:    decimal.NewFromInt(used),
	}
	b.Recompute()
	require.NoError(t, s.PutBalance(context.Background(), b))
}

func approvedLeave(t *testing.T, s *memory.Store, id, member string, kind leave.Kind, start, end calendar.Date) {
	err := s.CreateApplication(context.Background(), leave.Application{
		ID: leave.ApplicationID(id), MemberID: leave.MemberID(member),
		Kind: kind, StartDate: start, EndDate: end, Status: leave.StatusApproved,
	})
	require.NoError(t, err)
}

func auditActions(t *testing.T, s *memory.Store, target string) []leave.AuditAction {
	entries, err := s.Query(context.Background(), store.AuditFilter{TargetID: target})
	require.NoError(t, err)
	var actions []leave.AuditAction
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions
}

// =============================================================================
// ACCRUAL TESTS
// =============================================================================

func TestAccrual_AddsMonthlyIncrement(t *testing.T) {
	// GIVEN: One member with 10 earned days (opening) and no accrual yet
	// WHEN: Running the March accrual
	// THEN: 2 days are added and the closing balance recomputed

	s := memory.New()
	newMember(t, s, "emp-1", d(2020, time.January, 1))
	putBalance(t, s, "emp-1", leave.KindEarned, 2025, 10, 0, 3)

	job := &jobs.AccrualJob{
		Members: s, Balances: s, Leaves: s, Audit: s,
		Rules: policy.DefaultConfig(), Log: zap.NewNop(),
	}

	outcomes, err := job.Run(context.Background(), 2025, time.March)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, jobs.AccrualApplied, outcomes[0].Status)
	assert.Equal(t, "2", outcomes[0].Added.String())

	b, err := s.GetBalance(context.Background(), "emp-1", leave.KindEarned, 2025)
	require.NoError(t, err)
	assert.Equal(t, "2", b.Accrued.String())
	assert.Equal(t, "9", b.Closing.String()) // 10 + 2 - 3

	assert.Contains(t, auditActions(t, s, "emp-1"), leave.AuditAccrualApplied)
}

func TestAccrual_CapConvergesExactly(t *testing.T) {
	// GIVEN: A balance one day under the 60-day carry cap
	// WHEN: Running the accrual twice
	// THEN: The first run adds only 1 day (capped); the second adds 0;
	//       opening+accrued never exceeds 60

	s := memory.New()
	newMember(t, s, "emp-1", d(2015, time.January, 1))
	putBalance(t, s, "emp-1", leave.KindEarned, 2025, 59, 0, 0)

	job := &jobs.AccrualJob{
		Members: s, Balances: s, Leaves: s, Audit: s,
		Rules: policy.DefaultConfig(), Log: zap.NewNop(),
	}

	outcomes, err := job.Run(context.Background(), 2025, time.January)
	require.NoError(t, err)
	assert.Equal(t, jobs.AccrualCapped, outcomes[0].Status)
	assert.Equal(t, "1", outcomes[0].Added.String())

	outcomes, err = job.Run(context.Background(), 2025, time.February)
	require.NoError(t, err)
	assert.Equal(t, jobs.AccrualCapped, outcomes[0].Status)
	assert.True(t, outcomes[0].Added.IsZero())

	b, err := s.GetBalance(context.Background(), "emp-1", leave.KindEarned, 2025)
	require.NoError(t, err)
	assert.Equal(t, "60", b.Opening.Add(b.Accrued).String())

	assert.Contains(t, auditActions(t, s, "emp-1"), leave.AuditAccrualCapped)
}

func TestAccrual_SkipsMemberOnLeaveFullMonth(t *testing.T) {
	// GIVEN: Approved leaves covering every day of February between them
	// WHEN: Running the February accrual
	// THEN: The member is skipped with no balance change

	s := memory.New()
	newMember(t, s, "emp-1", d(2020, time.January, 1))
	putBalance(t, s, "emp-1", leave.KindEarned, 2025, 10, 0, 0)
	approvedLeave(t, s, "app-1", "emp-1", leave.KindMedical,
		d(2025, time.January, 20), d(2025, time.February, 14))
	approvedLeave(t, s, "app-2", "emp-1", leave.KindEarned,
		d(2025, time.February, 15), d(2025, time.March, 5))

	job := &jobs.AccrualJob{
		Members: s, Balances: s, Leaves: s, Audit: s,
		Rules: policy.DefaultConfig(), Log: zap.NewNop(),
	}

	outcomes, err := job.Run(context.Background(), 2025, time.February)
	require.NoError(t, err)
	assert.Equal(t, jobs.AccrualSkippedOnLeave, outcomes[0].Status)

	b, err := s.GetBalance(context.Background(), "emp-1", leave.KindEarned, 2025)
	require.NoError(t, err)
	assert.True(t, b.Accrued.IsZero())
}

func TestAccrual_PartialMonthLeave_StillAccrues(t *testing.T) {
	// GIVEN: An approved leave covering all but one day of February
	// WHEN: Running the February accrual
	// THEN: Coverage is exact, not approximate - the member accrues

	s := memory.New()
	newMember(t, s, "emp-1", d(2020, time.January, 1))
	putBalance(t, s, "emp-1", leave.KindEarned, 2025, 10, 0, 0)
	approvedLeave(t, s, "app-1", "emp-1", leave.KindMedical,
		d(2025, time.February, 2), d(2025, time.February, 28))

	job := &jobs.AccrualJob{
		Members: s, Balances: s, Leaves: s, Audit: s,
		Rules: policy.DefaultConfig(), Log: zap.NewNop(),
	}

	outcomes, err := job.Run(context.Background(), 2025, time.February)
	require.NoError(t, err)
	assert.Equal(t, jobs.AccrualApplied, outcomes[0].Status)
}

func TestAccrual_MissingBalance_CreatesZeroRecord(t *testing.T) {
	// GIVEN: A member with no earned balance record for the year
	// WHEN: Running the accrual
	// THEN: A record is created starting from zero and accrues 2

	s := memory.New()
	newMember(t, s, "emp-1", d(2024, time.January, 1))

	job := &jobs.AccrualJob{
		Members: s, Balances: s, Leaves: s, Audit: s,
		Rules: policy.DefaultConfig(), Log: zap.NewNop(),
	}

	outcomes, err := job.Run(context.Background(), 2025, time.March)
	require.NoError(t, err)
	assert.Equal(t, jobs.AccrualApplied, outcomes[0].Status)

	b, err := s.GetBalance(context.Background(), "emp-1", leave.KindEarned, 2025)
	require.NoError(t, err)
	assert.True(t, b.Opening.IsZero())
	assert.Equal(t, "2", b.Accrued.String())
}

func TestAccrual_FailureIsolatedPerMember(t *testing.T) {
	// GIVEN: Three members, the batch running normally
	// WHEN: One member's accrual would be capped at zero
	// THEN: The other members still accrue; the run reports all outcomes

	s := memory.New()
	newMember(t, s, "emp-1", d(2020, time.January, 1))
	newMember(t, s, "emp-2", d(2020, time.January, 1))
	newMember(t, s, "emp-3", d(2020, time.January, 1))
	putBalance(t, s, "emp-2", leave.KindEarned, 2025, 60, 0, 0) // at cap

	job := &jobs.AccrualJob{
		Members: s, Balances: s, Leaves: s, Audit: s,
		Rules: policy.DefaultConfig(), Log: zap.NewNop(),
	}

	outcomes, err := job.Run(context.Background(), 2025, time.June)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, jobs.AccrualApplied, outcomes[0].Status)
	assert.Equal(t, jobs.AccrualCapped, outcomes[1].Status)
	assert.Equal(t, jobs.AccrualApplied, outcomes[2].Status)
}

// =============================================================================
// LAPSE TESTS
// =============================================================================

func TestLapse_ZeroesPositiveCasualBalance(t *testing.T) {
	// GIVEN: A casual balance with 7 days remaining at year end
	// WHEN: Running the lapse
	// THEN: The balance is zeroed and the audit entry records the
	//       previous balance

	s := memory.New()
	putBalance(t, s, "emp-1", leave.KindCasual, 2025, 10, 0, 3)

	job := &jobs.LapseJob{Balances: s, Audit: s, Rules: policy.DefaultConfig(), Log: zap.NewNop()}

	outcomes, err := job.Run(context.Background(), 2025)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, jobs.LapseApplied, outcomes[0].Status)
	assert.Equal(t, "7", outcomes[0].Lapsed.String())

	b, err := s.GetBalance(context.Background(), "emp-1", leave.KindCasual, 2025)
	require.NoError(t, err)
	assert.True(t, b.Remaining().IsZero())
	assert.True(t, b.Closing.IsZero())

	entries, err := s.Query(context.Background(), store.AuditFilter{TargetID: "emp-1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, leave.AuditBalanceLapsed, entries[0].Action)
	assert.Equal(t, "7", entries[0].Details["previousBalance"])
}

func TestLapse_RerunIsNoOp(t *testing.T) {
	// GIVEN: A year already lapsed
	// WHEN: Running the lapse again
	// THEN: No outcomes and no extra audit entries

	s := memory.New()
	putBalance(t, s, "emp-1", leave.KindCasual, 2025, 10, 0, 4)

	job := &jobs.LapseJob{Balances: s, Audit: s, Rules: policy.DefaultConfig(), Log: zap.NewNop()}

	_, err := job.Run(context.Background(), 2025)
	require.NoError(t, err)

	outcomes, err := job.Run(context.Background(), 2025)
	require.NoError(t, err)
	assert.Empty(t, outcomes)

	entries, err := s.Query(context.Background(), store.AuditFilter{TargetID: "emp-1"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLapse_LeavesEarnedBalancesAlone(t *testing.T) {
	s := memory.New()
	putBalance(t, s, "emp-1", leave.KindEarned, 2025, 40, 8, 0)

	job := &jobs.LapseJob{Balances: s, Audit: s, Rules: policy.DefaultConfig(), Log: zap.NewNop()}
	outcomes, err := job.Run(context.Background(), 2025)
	require.NoError(t, err)
	assert.Empty(t, outcomes)

	b, err := s.GetBalance(context.Background(), "emp-1", leave.KindEarned, 2025)
	require.NoError(t, err)
	assert.Equal(t, "48", b.Remaining().String())
}

// =============================================================================
// OVERSTAY TESTS
// =============================================================================

func TestOverstay_FlagsLeavePastEndWithoutReturn(t *testing.T) {
	// GIVEN: An approved earned leave that ended 3 days ago, no return record
	// WHEN: Running the overstay check
	// THEN: Flagged with 3 days of overstay; status moves to overstay-pending

	s := memory.New()
	approvedLeave(t, s, "app-1", "emp-1", leave.KindEarned,
		d(2025, time.June, 1), d(2025, time.June, 5))

	job := &jobs.OverstayJob{Leaves: s, Audit: s, Log: zap.NewNop()}

	outcomes, err := job.Run(context.Background(), d(2025, time.June, 8))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, jobs.OverstayFlagged, outcomes[0].Status)
	assert.Equal(t, 3, outcomes[0].DaysOverstay)

	app, err := s.GetApplication(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusOverstayPending, app.Status)

	assert.Contains(t, auditActions(t, s, "app-1"), leave.AuditOverstayFlagged)
}

func TestOverstay_ReturnRecordSuppressesFlag(t *testing.T) {
	// GIVEN: An ended leave with a recorded return to duty
	// WHEN: Running the overstay check
	// THEN: Reported as returned, status untouched

	s := memory.New()
	approvedLeave(t, s, "app-1", "emp-1", leave.KindEarned,
		d(2025, time.June, 1), d(2025, time.June, 5))
	require.NoError(t, s.AddReturnRecord(context.Background(), leave.ReturnRecord{
		ApplicationID: "app-1", MemberID: "emp-1",
		ReturnedOn: d(2025, time.June, 6), RecordedBy: "hr-1",
	}))

	job := &jobs.OverstayJob{Leaves: s, Audit: s, Log: zap.NewNop()}

	outcomes, err := job.Run(context.Background(), d(2025, time.June, 8))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, jobs.OverstayReturned, outcomes[0].Status)

	app, err := s.GetApplication(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, app.Status)
}

func TestOverstay_MedicalUsesFitnessCertificate(t *testing.T) {
	// GIVEN: Two ended medical leaves, one with a fitness certificate
	// WHEN: Running the overstay check
	// THEN: The certified one counts as returned; the other is flagged

	s := memory.New()
	cert := "cert-42"
	require.NoError(t, s.CreateApplication(context.Background(), leave.Application{
		ID: "app-cert", MemberID: "emp-1", Kind: leave.KindMedical,
		StartDate: d(2025, time.June, 1), EndDate: d(2025, time.June, 10),
		Status: leave.StatusApproved, FitnessCertificateRef: &cert,
	}))
	approvedLeave(t, s, "app-nocert", "emp-2", leave.KindMedical,
		d(2025, time.June, 1), d(2025, time.June, 10))

	job := &jobs.OverstayJob{Leaves: s, Audit: s, Log: zap.NewNop()}

	outcomes, err := job.Run(context.Background(), d(2025, time.June, 13))
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	byID := map[leave.ApplicationID]jobs.OverstayOutcome{}
	for _, o := range outcomes {
		byID[o.ApplicationID] = o
	}
	assert.Equal(t, jobs.OverstayReturned, byID["app-cert"].Status)
	assert.Equal(t, jobs.OverstayFlagged, byID["app-nocert"].Status)
}

func TestOverstay_RerunSkipsAlreadyFlagged(t *testing.T) {
	// GIVEN: A leave flagged by a previous run
	// WHEN: Running the check again
	// THEN: No new outcome and no duplicate audit entry

	s := memory.New()
	approvedLeave(t, s, "app-1", "emp-1", leave.KindEarned,
		d(2025, time.June, 1), d(2025, time.June, 5))

	job := &jobs.OverstayJob{Leaves: s, Audit: s, Log: zap.NewNop()}

	_, err := job.Run(context.Background(), d(2025, time.June, 8))
	require.NoError(t, err)

	outcomes, err := job.Run(context.Background(), d(2025, time.June, 9))
	require.NoError(t, err)
	assert.Empty(t, outcomes)

	assert.Len(t, auditActions(t, s, "app-1"), 1)
}

func TestOverstay_EndDateTodayNotFlagged(t *testing.T) {
	// GIVEN: A leave ending today
	// WHEN: Running the check for today
	// THEN: Not a candidate - only strictly-past end dates count

	s := memory.New()
	approvedLeave(t, s, "app-1", "emp-1", leave.KindEarned,
		d(2025, time.June, 1), d(2025, time.June, 8))

	job := &jobs.OverstayJob{Leaves: s, Audit: s, Log: zap.NewNop()}
	outcomes, err := job.Run(context.Background(), d(2025, time.June, 8))
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}
