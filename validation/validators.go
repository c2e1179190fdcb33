/*
validators.go - Casual-leave, duration, notice, backdate, certificate rules

RULE NAMES:
  casual_adjacency    Range and its boundary days must all be working days
  casual_combination  No overlap/adjacency with other active leaves
  casual_duration     Per-spell cap for the strictest kind
  medical_certificate Supporting certificate over the day threshold
  notice_period       Minimum advance notice (exempt kinds skip it)
  backdate            Retroactive-application window

CASUAL ADJACENCY:
  Casual leave may not contain, touch, or be bridged by non-working days.
  Two independent conditions, both required:
    (A) every day inside [start, end] is a working day
    (B) the day before start AND the day after end are working days
  The holiday set must therefore cover [start-1, end+1].
*/
package validation

import (
	"github.com/cdbl/leave-engine/calendar"
	"github.com/cdbl/leave-engine/leave"
	"github.com/cdbl/leave-engine/policy"
)

// =============================================================================
// CASUAL-LEAVE ADJACENCY
// =============================================================================

// CasualAdjacency validates the strict adjacency rule for casual leave.
// holidays must cover the window [start-1, end+1].
func CasualAdjacency(cal *calendar.Calendar, holidays calendar.HolidaySet, start, end calendar.Date) Result {
	const rule = "casual_adjacency"

	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		if cal.IsNonWorking(d, holidays) {
			return Violate(rule, "casual leave may not include the non-working day %s", d)
		}
	}

	if before := start.AddDays(-1); cal.IsNonWorking(before, holidays) {
		return Violate(rule, "casual leave may not start immediately after the non-working day %s", before)
	}
	if after := end.AddDays(1); cal.IsNonWorking(after, holidays) {
		return Violate(rule, "casual leave may not end immediately before the non-working day %s", after)
	}

	return Ok(rule)
}

// =============================================================================
// CASUAL-LEAVE COMBINATION
// =============================================================================

// LeaveRef identifies a conflicting leave for UI display.
type LeaveRef struct {
	ID        leave.ApplicationID
	Kind      leave.Kind
	StartDate calendar.Date
	EndDate   calendar.Date
}

// CombinationResult reports the first conflicting leave found.
// Existence, not enumeration, is the contract.
type CombinationResult struct {
	Result
	Conflict *LeaveRef
}

// CasualCombination rejects a casual leave that overlaps with, or is
// immediately adjacent to, any other active leave by the same requester.
// history is the requester's other leave applications; inactive statuses
// are skipped here so callers can pass unfiltered history.
func CasualCombination(start, end calendar.Date, history []leave.Application) CombinationResult {
	const rule = "casual_combination"

	for _, other := range history {
		if !other.Status.Active() {
			continue
		}
		if other.Overlaps(start, end) || other.AdjacentTo(start, end) {
			ref := LeaveRef{ID: other.ID, Kind: other.Kind, StartDate: other.StartDate, EndDate: other.EndDate}
			return CombinationResult{
				Result: Violate(rule,
					"casual leave may not overlap or touch %s leave %s (%s to %s)",
					other.Kind, other.ID, other.StartDate, other.EndDate),
				Conflict: &ref,
			}
		}
	}

	return CombinationResult{Result: Ok(rule)}
}

// =============================================================================
// CASUAL-LEAVE DURATION
// =============================================================================

// CasualDuration enforces the per-spell cap on casual leave.
func CasualDuration(cfg policy.Config, start, end calendar.Date) Result {
	const rule = "casual_duration"

	max := cfg.Rule(leave.KindCasual).MaxConsecutiveDays
	if max == 0 {
		return Ok(rule)
	}
	if days := calendar.TotalCalendarDaysInclusive(start, end); days > max {
		return Violate(rule, "casual leave is limited to %d consecutive days; requested %d", max, days)
	}
	return Ok(rule)
}

// =============================================================================
// MEDICAL CERTIFICATES
// =============================================================================

// MedicalCertificate requires a supporting certificate at submission when
// the leave exceeds the certificate threshold.
func MedicalCertificate(cfg policy.Config, days int, hasCertificate bool) Result {
	const rule = "medical_certificate"

	if days > cfg.CertificateRequiredOverDays && !hasCertificate {
		return Violate(rule, "medical leave over %d days requires a supporting certificate",
			cfg.CertificateRequiredOverDays)
	}
	return Ok(rule)
}

// FitnessCertificateRequired reports whether a fitness-to-return
// certificate is needed before the member may resume duty.
func FitnessCertificateRequired(cfg policy.Config, days int) bool {
	return days > cfg.FitnessRequiredOverDays
}

// =============================================================================
// NOTICE PERIOD
// =============================================================================

// NoticeWarning checks the minimum advance-notice requirement.
// Exempt kinds return no warning by explicit policy decision - the early
// return below is deliberate and must not be folded into a zero threshold.
func NoticeWarning(cfg policy.Config, kind leave.Kind, applyDate, start calendar.Date) Result {
	const rule = "notice_period"

	r := cfg.Rule(kind)
	if r.NoticeExempt {
		return Ok(rule)
	}
	if r.MinNoticeDays == 0 {
		return Ok(rule)
	}

	notice := calendar.DaysBetween(applyDate, start)
	if notice < r.MinNoticeDays {
		return Warn(rule, "%s leave requires %d days notice; only %d given",
			kind, r.MinNoticeDays, notice)
	}
	return Ok(rule)
}

// =============================================================================
// BACKDATE
// =============================================================================

// CanBackdate reports whether a kind permits retroactive applications.
func CanBackdate(cfg policy.Config, kind leave.Kind) bool {
	return cfg.Rule(kind).AllowBackdate
}

// BackdateLimit validates a retroactive start date against the kind's
// backdate policy.
func BackdateLimit(cfg policy.Config, kind leave.Kind, applyDate, start calendar.Date) Result {
	const rule = "backdate"

	r := cfg.Rule(kind)
	gap := calendar.DaysBetween(start, applyDate)

	if !r.AllowBackdate {
		if gap > 0 {
			return Violate(rule, "%s leave may not be applied retroactively", kind)
		}
		return Ok(rule)
	}

	if gap > r.MaxBackdateDays {
		return Violate(rule, "%s leave may be backdated at most %d days; start is %d days past",
			kind, r.MaxBackdateDays, gap)
	}
	return Ok(rule)
}
