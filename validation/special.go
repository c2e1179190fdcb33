/*
special.go - Occasion-limited, prerequisite, incident-window, overflow rules

RULE NAMES:
  paternity_eligibility      Lifetime occasions + interval gate
  extraordinary_prerequisite Standard balances must be nearly exhausted
  incident_window            Disability incident date sanity
  annual_limit               Advisory overflow of the casual annual cap

ADVISORY vs HARD:
  AnnualLimitOverflow is deliberately a Warning: the employee is allowed
  to proceed, with a recommendation to split the excess into earned
  leave. Everything else in this file is a hard Violation.
*/
package validation

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cdbl/leave-engine/calendar"
	"github.com/cdbl/leave-engine/leave"
	"github.com/cdbl/leave-engine/policy"
)

// =============================================================================
// PATERNITY ELIGIBILITY
// =============================================================================

// Occasion is a prior use of an occasion-limited leave.
type Occasion struct {
	StartDate calendar.Date
	EndDate   calendar.Date
}

// PaternityEligibility gates paternity leave on lifetime occasions and
// the minimum interval before the final occasion.
//
// priorOccasions are the requester's previous paternity leaves in
// chronological order.
func PaternityEligibility(cfg policy.Config, priorOccasions []Occasion, proposedStart calendar.Date) Result {
	const rule = "paternity_eligibility"

	if len(priorOccasions) >= cfg.PaternityMaxOccasions {
		return Violate(rule, "paternity leave is limited to %d occasions", cfg.PaternityMaxOccasions)
	}

	// The interval gate applies to the final permitted occasion only.
	if len(priorOccasions) == cfg.PaternityMaxOccasions-1 {
		first := priorOccasions[0]
		months := float64(calendar.DaysBetween(first.EndDate, proposedStart)) / 30.44
		required := float64(cfg.PaternityMinIntervalMonths)
		if months < required {
			return Violate(rule,
				"second paternity occasion requires %.0f months since the first; only %.1f months have passed (%.1f short)",
				required, months, required-months)
		}
	}

	return Ok(rule)
}

// =============================================================================
// EXTRAORDINARY PREREQUISITE
// =============================================================================

// PrerequisiteViolation itemizes one standard kind whose remaining
// balance still exceeds its residual threshold.
type PrerequisiteViolation struct {
	Kind      leave.Kind
	Remaining decimal.Decimal
	Threshold decimal.Decimal
}

// PrerequisiteResult carries the itemized violations for UI display.
type PrerequisiteResult struct {
	Result
	Violations []PrerequisiteViolation
}

// ExtraordinaryPrerequisite requires each standard leave balance to be
// at or below its residual threshold before extraordinary leave may be
// taken. remaining maps kind to the member's remaining balance; a kind
// missing from the map is treated as zero balance (documented default
// for members without a balance record).
func ExtraordinaryPrerequisite(cfg policy.Config, remaining map[leave.Kind]decimal.Decimal) PrerequisiteResult {
	const rule = "extraordinary_prerequisite"

	var violations []PrerequisiteViolation
	for _, kind := range leave.Kinds {
		threshold, gated := cfg.PrerequisiteResiduals[kind]
		if !gated {
			continue
		}
		bal := remaining[kind]
		if bal.GreaterThan(threshold) {
			violations = append(violations, PrerequisiteViolation{
				Kind: kind, Remaining: bal, Threshold: threshold,
			})
		}
	}

	if len(violations) == 0 {
		return PrerequisiteResult{Result: Ok(rule)}
	}

	var parts []string
	for _, v := range violations {
		parts = append(parts, v.Kind.String()+" ("+v.Remaining.String()+" > "+v.Threshold.String()+")")
	}
	return PrerequisiteResult{
		Result: Violate(rule,
			"extraordinary leave requires standard balances to be exhausted: %s", strings.Join(parts, ", ")),
		Violations: violations,
	}
}

// =============================================================================
// INCIDENT WINDOW
// =============================================================================

// IncidentWindowResult reports the valid incident range for correction.
type IncidentWindowResult struct {
	Result
	EarliestValid calendar.Date
	LatestValid   calendar.Date
}

// IncidentWindow validates a special-disability incident date: not in
// the future, not after the leave start, and within the configured
// window before the start date.
func IncidentWindow(cfg policy.Config, incident, start, today calendar.Date) IncidentWindowResult {
	const rule = "incident_window"

	earliest := start.AddDays(-cfg.DisabilityIncidentWindowDays)
	latest := start
	if today.Before(latest) {
		latest = today
	}
	out := IncidentWindowResult{EarliestValid: earliest, LatestValid: latest}

	switch {
	case incident.After(today):
		out.Result = Violate(rule, "incident date %s is in the future", incident)
	case incident.After(start):
		out.Result = Violate(rule, "incident date %s is after the leave start %s", incident, start)
	case incident.Before(earliest):
		out.Result = Violate(rule, "incident must fall within %d days before the leave start (%s to %s)",
			cfg.DisabilityIncidentWindowDays, earliest, latest)
	default:
		out.Result = Ok(rule)
	}
	return out
}

// =============================================================================
// ANNUAL LIMIT OVERFLOW (advisory)
// =============================================================================

// OverflowResult is the advisory outcome of the annual-cap check.
// ExceedsDays > 0 means the request pushes usage past the cap; the
// request is still allowed, with a recommendation to split.
type OverflowResult struct {
	Result
	AnnualCap   int
	TotalUsage  decimal.Decimal
	ExceedsDays decimal.Decimal
}

// AnnualLimitOverflow checks a capped kind's annual usage. Exceeding the
// cap yields a Warning - advisory, never blocking - suggesting the
// employee split the excess into earned leave.
func AnnualLimitOverflow(cfg policy.Config, kind leave.Kind, usedThisYear decimal.Decimal, requestedDays int) OverflowResult {
	const rule = "annual_limit"

	cap := cfg.Rule(kind).AccrualPerYear
	total := usedThisYear.Add(decimal.NewFromInt(int64(requestedDays)))
	exceeds := decimal.Max(decimal.Zero, total.Sub(decimal.NewFromInt(int64(cap))))

	out := OverflowResult{AnnualCap: cap, TotalUsage: total, ExceedsDays: exceeds}
	if exceeds.IsPositive() {
		out.Result = Warn(rule,
			"%s leave annual limit of %d days exceeded by %s; consider taking %s days as earned leave",
			kind, cap, exceeds, exceeds)
	} else {
		out.Result = Ok(rule)
	}
	return out
}
