/*
Package jobs implements the periodic leave policy batch procedures.

PURPOSE:
  Three stateless-per-run jobs: monthly earned-leave accrual (capped),
  casual-leave annual lapse, and overstay detection. Each run scans the
  relevant records, requests state transitions through the stores, and
  emits audit entries through the audit sink.

FAILURE ISOLATION:
  A failure on one member or record never aborts the batch. Every record
  is processed independently and reported in the run's outcome list; the
  caller decides whether to alert.

IDEMPOTENCY:
  - Overstay: re-running for the same check date is a no-op for leaves
    already flagged (they are no longer in the approved status).
  - Lapse: balances already at zero are untouched and unreported.
  - Accrual: NOT idempotent per month by design. Re-running the same
    month double-accrues; the external scheduler owns at-most-once
    execution per period. This is a documented constraint of the job.

CONCURRENCY:
  Records are processed sequentially within a run. Two job types
  touching the same balance rows rely on the store's optimistic version
  check (leave.ErrConcurrentModification) to surface interleaving.
*/
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cdbl/leave-engine/calendar"
	"github.com/cdbl/leave-engine/leave"
	"github.com/cdbl/leave-engine/policy"
	"github.com/cdbl/leave-engine/store"
)

// =============================================================================
// MONTHLY EARNED-LEAVE ACCRUAL
// =============================================================================

// AccrualOutcomeStatus tags one member's accrual result.
type AccrualOutcomeStatus string

const (
	AccrualApplied        AccrualOutcomeStatus = "accrued"
	AccrualCapped         AccrualOutcomeStatus = "capped"
	AccrualSkippedOnLeave AccrualOutcomeStatus = "skipped_on_leave"
	AccrualFailed         AccrualOutcomeStatus = "failed"
)

// AccrualOutcome is one member's result in an accrual run.
type AccrualOutcome struct {
	MemberID leave.MemberID
	Status   AccrualOutcomeStatus
	Added    decimal.Decimal
	Reason   string
}

// AccrualJob applies the monthly earned-leave increment across the
// active roster, capped by the carry-forward ceiling.
type AccrualJob struct {
	Members  store.MemberStore
	Balances store.BalanceStore
	Leaves   store.LeaveStore
	Audit    store.AuditLog
	Rules    policy.Config
	Log      *zap.Logger
}

const accrualActor = "system:accrual"

// Run accrues the target month for every active member. The month is
// identified by year + month; the balance year is the target year.
func (j *AccrualJob) Run(ctx context.Context, year int, month time.Month) ([]AccrualOutcome, error) {
	members, err := j.Members.ListActiveMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("accrual: list members: %w", err)
	}

	monthStart := calendar.StartOfMonth(year, month)
	monthEnd := calendar.EndOfMonth(year, month)
	monthly := j.Rules.EarnedMonthlyAccrual
	cap := decimal.NewFromInt(int64(j.Rules.Rule(leave.KindEarned).CarryForwardCap))

	outcomes := make([]AccrualOutcome, 0, len(members))
	for _, m := range members {
		outcome := j.accrueMember(ctx, m, monthStart, monthEnd, monthly, cap, year)
		outcomes = append(outcomes, outcome)
		if outcome.Status == AccrualFailed {
			j.Log.Warn("accrual failed for member",
				zap.String("member", string(m.ID)), zap.String("reason", outcome.Reason))
		}
	}

	j.Log.Info("accrual run complete",
		zap.Int("year", year), zap.String("month", month.String()), zap.Int("members", len(outcomes)))
	return outcomes, nil
}

func (j *AccrualJob) accrueMember(
	ctx context.Context,
	m store.Member,
	monthStart, monthEnd calendar.Date,
	monthly, cap decimal.Decimal,
	year int,
) AccrualOutcome {
	out := AccrualOutcome{MemberID: m.ID, Added: decimal.Zero}

	onLeave, err := j.onLeaveFullMonth(ctx, m.ID, monthStart, monthEnd)
	if err != nil {
		out.Status = AccrualFailed
		out.Reason = err.Error()
		return out
	}
	if onLeave {
		out.Status = AccrualSkippedOnLeave
		out.Reason = "approved leave covers the entire month"
		return out
	}

	bal, err := j.Balances.GetBalance(ctx, m.ID, leave.KindEarned, year)
	created := false
	if leave.IsNotFound(err) {
		// Missing record defaults to a zero balance: documented contract,
		// not an accident.
		bal = leave.Balance{MemberID: m.ID, Kind: leave.KindEarned, Year: year}
		created = true
	} else if err != nil {
		out.Status = AccrualFailed
		out.Reason = err.Error()
		return out
	}

	// Cap: opening + accrued never exceeds the carry-forward ceiling.
	// If the full increment would exceed it, add only the remainder
	// needed to reach the cap exactly (possibly zero).
	headroom := cap.Sub(bal.Opening.Add(bal.Accrued))
	increment := monthly
	capped := false
	if headroom.LessThan(monthly) {
		increment = decimal.Max(decimal.Zero, headroom)
		capped = true
	}

	bal.Accrued = bal.Accrued.Add(increment)
	bal.Recompute()

	if created {
		err = j.Balances.PutBalance(ctx, bal)
	} else {
		err = j.Balances.UpdateBalance(ctx, bal)
	}
	if err != nil {
		out.Status = AccrualFailed
		out.Reason = err.Error()
		return out
	}

	out.Added = increment
	action := leave.AuditAccrualApplied
	if capped {
		out.Status = AccrualCapped
		out.Reason = fmt.Sprintf("carry-forward cap %s reached", cap)
		action = leave.AuditAccrualCapped
	} else {
		out.Status = AccrualApplied
	}

	j.appendAudit(ctx, accrualActor, action, string(m.ID), map[string]any{
		"year":    year,
		"month":   monthStart.Month().String(),
		"added":   increment.String(),
		"accrued": bal.Accrued.String(),
		"closing": bal.Closing.String(),
	})
	return out
}

// onLeaveFullMonth reports whether approved leaves cover every single
// day of the month. Coverage is exact calendar-day union, not an
// average-month approximation.
func (j *AccrualJob) onLeaveFullMonth(ctx context.Context, member leave.MemberID, monthStart, monthEnd calendar.Date) (bool, error) {
	approved, err := j.Leaves.ApprovedOverlapping(ctx, member, monthStart, monthEnd)
	if err != nil {
		return false, err
	}
	if len(approved) == 0 {
		return false, nil
	}

	covered := make(map[string]bool)
	for _, app := range approved {
		from := maxDate(app.StartDate, monthStart)
		to := minDate(app.EndDate, monthEnd)
		for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
			covered[d.ISO()] = true
		}
	}
	return len(covered) == calendar.TotalCalendarDaysInclusive(monthStart, monthEnd), nil
}

func (j *AccrualJob) appendAudit(ctx context.Context, actor string, action leave.AuditAction, target string, details map[string]any) {
	entry := leave.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		ActorID:   actor,
		Action:    action,
		TargetID:  target,
		Details:   details,
	}
	if err := j.Audit.Append(ctx, entry); err != nil {
		j.Log.Warn("audit append failed", zap.String("action", string(action)), zap.Error(err))
	}
}

func maxDate(a, b calendar.Date) calendar.Date {
	if a.After(b) {
		return a
	}
	return b
}

func minDate(a, b calendar.Date) calendar.Date {
	if a.Before(b) {
		return a
	}
	return b
}
