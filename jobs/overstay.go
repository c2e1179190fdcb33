/*
overstay.go - Overstay detection

An approved leave whose end date has passed without a recorded return
to duty is an overstay. Return evidence differs by kind: medical leave
counts a fitness-to-return certificate as returned; every other kind
requires an explicit return-to-duty record.

Leaves already flagged overstay-pending are no longer in the approved
status and therefore never re-flagged or re-audited on a repeat run.
*/
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cdbl/leave-engine/calendar"
	"github.com/cdbl/leave-engine/leave"
	"github.com/cdbl/leave-engine/store"
)

// OverstayOutcomeStatus tags one leave's overstay-check result.
type OverstayOutcomeStatus string

const (
	OverstayFlagged  OverstayOutcomeStatus = "flagged"
	OverstayReturned OverstayOutcomeStatus = "returned"
	OverstayFailed   OverstayOutcomeStatus = "failed"
)

// OverstayOutcome is one leave's result in an overstay run.
type OverstayOutcome struct {
	ApplicationID leave.ApplicationID
	MemberID      leave.MemberID
	Status        OverstayOutcomeStatus
	DaysOverstay  int
	Reason        string
}

// OverstayJob flags approved leaves past their end date without return
// evidence.
type OverstayJob struct {
	Leaves store.LeaveStore
	Audit  store.AuditLog
	Log    *zap.Logger
}

const overstayActor = "system:overstay"

// Run checks every approved leave ended before checkDate.
func (j *OverstayJob) Run(ctx context.Context, checkDate calendar.Date) ([]OverstayOutcome, error) {
	candidates, err := j.Leaves.ApprovedEndedBefore(ctx, checkDate)
	if err != nil {
		return nil, fmt.Errorf("overstay: list candidates: %w", err)
	}

	var outcomes []OverstayOutcome
	for _, app := range candidates {
		if app.Status != leave.StatusApproved {
			continue // already flagged or otherwise moved on; skip
		}

		out := OverstayOutcome{ApplicationID: app.ID, MemberID: app.MemberID}

		returned, err := j.hasReturned(ctx, app)
		if err != nil {
			out.Status = OverstayFailed
			out.Reason = err.Error()
			outcomes = append(outcomes, out)
			j.Log.Warn("overstay check failed",
				zap.String("application", string(app.ID)), zap.Error(err))
			continue
		}
		if returned {
			out.Status = OverstayReturned
			outcomes = append(outcomes, out)
			continue
		}

		days := calendar.DaysBetween(app.EndDate, checkDate)
		if err := j.Leaves.SetStatus(ctx, app.ID, leave.StatusOverstayPending, app.CurrentStep); err != nil {
			out.Status = OverstayFailed
			out.Reason = err.Error()
			outcomes = append(outcomes, out)
			continue
		}

		j.appendAudit(ctx, app, days)
		out.Status = OverstayFlagged
		out.DaysOverstay = days
		outcomes = append(outcomes, out)
	}

	j.Log.Info("overstay run complete",
		zap.String("checkDate", checkDate.String()), zap.Int("checked", len(outcomes)))
	return outcomes, nil
}

// hasReturned applies the per-kind return-to-duty evidence rule.
func (j *OverstayJob) hasReturned(ctx context.Context, app leave.Application) (bool, error) {
	if app.Kind == leave.KindMedical {
		return app.FitnessCertificateRef != nil, nil
	}
	return j.Leaves.HasReturnRecord(ctx, app.ID)
}

func (j *OverstayJob) appendAudit(ctx context.Context, app leave.Application, days int) {
	entry := leave.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		ActorID:   overstayActor,
		Action:    leave.AuditOverstayFlagged,
		TargetID:  string(app.ID),
		Details: map[string]any{
			"member":       string(app.MemberID),
			"kind":         app.Kind.String(),
			"endDate":      app.EndDate.String(),
			"daysOverstay": days,
		},
	}
	if err := j.Audit.Append(ctx, entry); err != nil {
		j.Log.Warn("audit append failed", zap.Error(err))
	}
}
