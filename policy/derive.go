/*
derive.go - Pure derivations over the rule table

PURPOSE:
  Service tenure, eligibility checks, maternity pro-ration, disability
  pay tiers, duration checks, and encashment limits. Every function is
  a pure computation over the Config plus caller-supplied values.

CONVENTIONS:
  Tenure math uses average lengths: 365.25 days/year, 30.44 days/month.
  Eligibility shortfall messages state the threshold in the more natural
  unit - months when the threshold is under a year, years otherwise.
*/
package policy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cdbl/leave-engine/calendar"
	"github.com/cdbl/leave-engine/leave"
)

const (
	daysPerYear  = 365.25
	daysPerMonth = 30.44
)

// =============================================================================
// SERVICE TENURE
// =============================================================================

// ServiceYears returns tenure in fractional years as of the given day.
func ServiceYears(joinDate, asOf calendar.Date) float64 {
	return float64(calendar.DaysBetween(joinDate, asOf)) / daysPerYear
}

// ServiceMonths returns tenure in fractional months as of the given day.
func ServiceMonths(joinDate, asOf calendar.Date) float64 {
	return float64(calendar.DaysBetween(joinDate, asOf)) / daysPerMonth
}

// =============================================================================
// ELIGIBILITY
// =============================================================================

// Eligibility is the outcome of a tenure-threshold check.
type Eligibility struct {
	Eligible      bool
	Reason        string
	RequiredYears float64
	ServiceYears  float64
}

// CheckEligibility compares a member's tenure against the kind's
// service-eligibility threshold.
func (c Config) CheckEligibility(kind leave.Kind, joinDate, asOf calendar.Date) Eligibility {
	rule := c.Rule(kind)
	years := ServiceYears(joinDate, asOf)

	if rule.ServiceEligibilityYears == 0 || years >= rule.ServiceEligibilityYears {
		return Eligibility{Eligible: true, RequiredYears: rule.ServiceEligibilityYears, ServiceYears: years}
	}

	var reason string
	if rule.ServiceEligibilityYears < 1 {
		months := rule.ServiceEligibilityYears * 12
		reason = fmt.Sprintf("requires %.0f months of service; current service is %.1f months",
			months, ServiceMonths(joinDate, asOf))
	} else {
		reason = fmt.Sprintf("requires %.0f years of service; current service is %.1f years",
			rule.ServiceEligibilityYears, years)
	}

	return Eligibility{
		Eligible:      false,
		Reason:        reason,
		RequiredYears: rule.ServiceEligibilityYears,
		ServiceYears:  years,
	}
}

// =============================================================================
// MATERNITY PRO-RATION
// =============================================================================

// MaternityEntitlement is the computed maternity allowance.
type MaternityEntitlement struct {
	Days          int
	IsProrated    bool
	ServiceMonths float64
}

// MaternityDays returns the full entitlement at or beyond the service
// threshold, otherwise the proportional entitlement floored to whole days.
func (c Config) MaternityDays(joinDate, asOf calendar.Date) MaternityEntitlement {
	months := ServiceMonths(joinDate, asOf)
	threshold := float64(c.MaternityFullServiceMonths)

	if months >= threshold {
		return MaternityEntitlement{Days: c.MaternityFullDays, ServiceMonths: months}
	}

	prorated := int(float64(c.MaternityFullDays) * months / threshold)
	if prorated < 0 {
		prorated = 0
	}
	return MaternityEntitlement{Days: prorated, IsProrated: true, ServiceMonths: months}
}

// =============================================================================
// SPECIAL DISABILITY PAY TIERS
// =============================================================================

// DisabilityPay splits a disability leave into three non-overlapping pay
// buckets. The buckets always sum exactly to the input duration.
type DisabilityPay struct {
	FullPayDays int
	HalfPayDays int
	UnpaidDays  int
}

// SpecialDisabilityPay computes the tiered pay split for a total duration.
func (c Config) SpecialDisabilityPay(totalDays int) DisabilityPay {
	if totalDays <= 0 {
		return DisabilityPay{}
	}

	full := min(totalDays, c.DisabilityFullPayDays)
	half := min(totalDays-full, c.DisabilityHalfPayDays)
	return DisabilityPay{
		FullPayDays: full,
		HalfPayDays: half,
		UnpaidDays:  totalDays - full - half,
	}
}

// =============================================================================
// DURATION CHECKS
// =============================================================================

// QuarantineDuration is the outcome of the quarantine-length check.
type QuarantineDuration struct {
	Valid                       bool
	RequiresExceptionalApproval bool
}

// QuarantineDurationCheck applies the tiered quarantine limits:
// within the normal cap always valid; within the exceptional cap valid
// but flagged; beyond that invalid.
func (c Config) QuarantineDurationCheck(days int) QuarantineDuration {
	switch {
	case days <= c.QuarantineNormalMaxDays:
		return QuarantineDuration{Valid: true}
	case days <= c.QuarantineExceptionalMaxDays:
		return QuarantineDuration{Valid: true, RequiresExceptionalApproval: true}
	default:
		return QuarantineDuration{}
	}
}

// ExtraordinaryDuration is the outcome of the extraordinary-length check.
type ExtraordinaryDuration struct {
	Valid      bool
	MaxAllowed int
}

// ExtraordinaryDurationCheck caps extraordinary leave by tenure:
// the long-service maximum after the tenure threshold, else the
// short-service maximum.
func (c Config) ExtraordinaryDurationCheck(days int, joinDate, asOf calendar.Date) ExtraordinaryDuration {
	max := c.ExtraordinaryShortServiceMaxDays
	if ServiceYears(joinDate, asOf) >= c.ExtraordinaryLongServiceYears {
		max = c.ExtraordinaryMaxDays
	}
	return ExtraordinaryDuration{Valid: days <= max, MaxAllowed: max}
}

// =============================================================================
// ENCASHMENT
// =============================================================================

// Encashment is the outcome of an earned-leave encashment check.
type Encashment struct {
	Valid            bool
	Reason           string
	MaxEncashable    decimal.Decimal
	RemainingBalance decimal.Decimal
}

// EncashmentCheck validates encashing requestedDays against the current
// balance. A minimum retained balance must always remain.
func (c Config) EncashmentCheck(currentBalance decimal.Decimal, requestedDays int) Encashment {
	maxEncashable := decimal.Max(decimal.Zero, currentBalance.Sub(c.EncashmentMinRetain))
	requested := decimal.NewFromInt(int64(requestedDays))

	if requestedDays <= 0 {
		return Encashment{
			Reason:           "requested days must be positive",
			MaxEncashable:    maxEncashable,
			RemainingBalance: currentBalance,
		}
	}
	if requested.GreaterThan(maxEncashable) {
		return Encashment{
			Reason: fmt.Sprintf("at most %s days may be encashed; %s days must remain",
				maxEncashable, c.EncashmentMinRetain),
			MaxEncashable:    maxEncashable,
			RemainingBalance: currentBalance,
		}
	}

	return Encashment{
		Valid:            true,
		MaxEncashable:    maxEncashable,
		RemainingBalance: currentBalance.Sub(requested),
	}
}

// =============================================================================
// STUDY LEAVE
// =============================================================================

// StudyDuration is the outcome of the study-leave duration check.
type StudyDuration struct {
	Valid                 bool
	IsExtension           bool
	RequiresBoardApproval bool
	TotalDays             int
}

// StudyLeaveDurationCheck caps an initial study leave at the initial
// maximum and a cumulative extension at the cumulative maximum.
// Extensions always require board approval.
func (c Config) StudyLeaveDurationCheck(requestedDays, previousDays int) StudyDuration {
	total := requestedDays + previousDays

	if previousDays > 0 {
		return StudyDuration{
			Valid:                 total <= c.StudyCumulativeMaxDays,
			IsExtension:           true,
			RequiresBoardApproval: true,
			TotalDays:             total,
		}
	}

	return StudyDuration{
		Valid:     requestedDays <= c.StudyInitialMaxDays,
		TotalDays: total,
	}
}
