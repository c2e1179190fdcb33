/*
lapse.go - Casual-leave annual lapse

Casual leave does not carry forward: at year end every positive casual
balance is zeroed, with one audit entry per affected member recording
the lapsed amount. Balances already at zero are untouched and do not
appear in the outcome list - no event happened.
*/
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cdbl/leave-engine/leave"
	"github.com/cdbl/leave-engine/policy"
	"github.com/cdbl/leave-engine/store"
)

// LapseOutcomeStatus tags one balance's lapse result.
type LapseOutcomeStatus string

const (
	LapseApplied LapseOutcomeStatus = "lapsed"
	LapseFailed  LapseOutcomeStatus = "failed"
)

// LapseOutcome is one balance record's result in a lapse run.
type LapseOutcome struct {
	MemberID leave.MemberID
	Status   LapseOutcomeStatus
	Lapsed   decimal.Decimal
	Reason   string
}

// LapseJob zeroes positive casual-leave balances for a target year.
type LapseJob struct {
	Balances store.BalanceStore
	Audit    store.AuditLog
	Rules    policy.Config
	Log      *zap.Logger
}

const lapseActor = "system:lapse"

// Run lapses every positive casual balance for the year. Re-running on
// a year already at zero is a no-op with no audit entries.
func (j *LapseJob) Run(ctx context.Context, year int) ([]LapseOutcome, error) {
	balances, err := j.Balances.ListBalances(ctx, leave.KindCasual, year)
	if err != nil {
		return nil, fmt.Errorf("lapse: list balances: %w", err)
	}

	var outcomes []LapseOutcome
	for _, bal := range balances {
		remaining := bal.Remaining()
		if !remaining.IsPositive() {
			continue // nothing to lapse, not an event
		}

		previous := remaining
		bal.Opening = decimal.Zero
		bal.Accrued = decimal.Zero
		bal.Used = decimal.Zero
		bal.Recompute()

		if err := j.Balances.UpdateBalance(ctx, bal); err != nil {
			outcomes = append(outcomes, LapseOutcome{
				MemberID: bal.MemberID, Status: LapseFailed, Reason: err.Error(),
			})
			j.Log.Warn("lapse failed for member",
				zap.String("member", string(bal.MemberID)), zap.Error(err))
			continue
		}

		j.appendAudit(ctx, string(bal.MemberID), map[string]any{
			"year":            year,
			"previousBalance": previous.String(),
		})
		outcomes = append(outcomes, LapseOutcome{
			MemberID: bal.MemberID, Status: LapseApplied, Lapsed: previous,
		})
	}

	j.Log.Info("lapse run complete", zap.Int("year", year), zap.Int("lapsed", len(outcomes)))
	return outcomes, nil
}

func (j *LapseJob) appendAudit(ctx context.Context, target string, details map[string]any) {
	entry := leave.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		ActorID:   lapseActor,
		Action:    leave.AuditBalanceLapsed,
		TargetID:  target,
		Details:   details,
	}
	if err := j.Audit.Append(ctx, entry); err != nil {
		j.Log.Warn("audit append failed", zap.Error(err))
	}
}
