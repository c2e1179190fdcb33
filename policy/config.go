/*
Package policy holds the leave rule table and its pure derivations.

PURPOSE:
  Encodes the per-kind statutory constants (entitlements, caps, notice
  windows, tenure thresholds) and the derived calculations built on them
  (service tenure, maternity pro-ration, disability pay tiers, duration
  checks, encashment limits).

KEY CONCEPTS:
  - Rule:   Per-kind constants (one row of the rule table)
  - Config: The complete, immutable rule table plus cross-kind constants

DESIGN:
  Config is an explicitly constructed value injected into every engine
  entry point. There is NO module-level mutable policy state: deployments
  override rules by constructing a different Config, and tests get
  deterministic behavior without state reset.

  The Rules map is exhaustive over leave.Kinds; Validate() fails loudly
  on a missing entry, so adding a new kind is a visible obligation.

DEFAULTS:
  DefaultConfig() carries the CDBL Policy v2.0 values. A different
  jurisdiction or employer supplies its own Config.

SEE ALSO:
  - derive.go: Derivation functions over the table
  - validation/: Per-application validators consuming this table
*/
package policy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cdbl/leave-engine/leave"
)

// =============================================================================
// RULE - Per-kind constants
// =============================================================================

// Rule is one row of the rule table. Zero values mean "not applicable"
// for that kind (e.g. no annual accrual for maternity leave).
type Rule struct {
	// AccrualPerYear is the annual entitlement in days.
	AccrualPerYear int

	// CarryForwardCap is the maximum days that may roll into next year.
	// Zero means the balance does not carry forward.
	CarryForwardCap int

	// AllowBackdate permits retroactive applications for this kind.
	AllowBackdate bool

	// MaxBackdateDays is the retroactive window when AllowBackdate is set.
	MaxBackdateDays int

	// MinNoticeDays is the minimum advance notice. Only enforced when
	// NoticeExempt is false.
	MinNoticeDays int

	// NoticeExempt marks kinds deliberately excluded from the notice
	// rule. This is a policy decision, not a zero threshold: the notice
	// validator early-returns on it.
	NoticeExempt bool

	// MaxConsecutiveDays caps a single spell. Zero means uncapped.
	MaxConsecutiveDays int

	// ServiceEligibilityYears is the minimum tenure before the kind may
	// be used. Fractional values express month-based minimums.
	ServiceEligibilityYears float64
}

// =============================================================================
// CONFIG - The complete rule table
// =============================================================================

// Config is the full policy rule table. Treat as immutable after
// construction.
type Config struct {
	Rules map[leave.Kind]Rule

	// Earned-leave accrual and encashment.
	EarnedMonthlyAccrual decimal.Decimal
	EncashmentMinRetain  decimal.Decimal

	// Maternity entitlement.
	MaternityFullDays          int
	MaternityFullServiceMonths int

	// Medical certificates.
	CertificateRequiredOverDays int
	FitnessRequiredOverDays     int

	// Paternity occasions.
	PaternityMaxOccasions      int
	PaternityMinIntervalMonths int

	// Quarantine duration tiers.
	QuarantineNormalMaxDays      int
	QuarantineExceptionalMaxDays int

	// Extraordinary leave duration.
	ExtraordinaryMaxDays             int
	ExtraordinaryShortServiceMaxDays int
	ExtraordinaryLongServiceYears    float64

	// Extraordinary-leave prerequisite: residual days allowed to remain
	// on each standard kind before extraordinary leave may be taken.
	PrerequisiteResiduals map[leave.Kind]decimal.Decimal

	// Study leave duration.
	StudyInitialMaxDays    int
	StudyCumulativeMaxDays int

	// Special disability leave.
	DisabilityIncidentWindowDays int
	DisabilityFullPayDays        int
	DisabilityHalfPayDays        int
}

// DefaultConfig returns the CDBL Policy v2.0 rule table.
func DefaultConfig() Config {
	return Config{
		Rules: map[leave.Kind]Rule{
			leave.KindCasual: {
				AccrualPerYear:     10,
				MaxConsecutiveDays: 3,
				NoticeExempt:       true,
			},
			leave.KindEarned: {
				AccrualPerYear:          24,
				CarryForwardCap:         60,
				MinNoticeDays:           15,
				ServiceEligibilityYears: 1,
			},
			leave.KindMedical: {
				AccrualPerYear:  14,
				AllowBackdate:   true,
				MaxBackdateDays: 30,
				NoticeExempt:    true,
			},
			leave.KindMaternity: {
				NoticeExempt: true,
			},
			leave.KindPaternity: {
				ServiceEligibilityYears: 0.5,
				NoticeExempt:            true,
			},
			leave.KindQuarantine: {
				NoticeExempt: true,
			},
			leave.KindExtraordinary: {
				ServiceEligibilityYears: 1,
				NoticeExempt:            true,
			},
			leave.KindStudy: {
				ServiceEligibilityYears: 2,
				MinNoticeDays:           60,
			},
			leave.KindSpecialDisability: {
				NoticeExempt: true,
			},
		},

		EarnedMonthlyAccrual: decimal.NewFromInt(2),
		EncashmentMinRetain:  decimal.NewFromInt(10),

		MaternityFullDays:          56,
		MaternityFullServiceMonths: 6,

		CertificateRequiredOverDays: 3,
		FitnessRequiredOverDays:     7,

		PaternityMaxOccasions:      2,
		PaternityMinIntervalMonths: 36,

		QuarantineNormalMaxDays:      21,
		QuarantineExceptionalMaxDays: 30,

		ExtraordinaryMaxDays:             365,
		ExtraordinaryShortServiceMaxDays: 180,
		ExtraordinaryLongServiceYears:    5,

		PrerequisiteResiduals: map[leave.Kind]decimal.Decimal{
			leave.KindCasual:  decimal.NewFromInt(2),
			leave.KindEarned:  decimal.NewFromInt(5),
			leave.KindMedical: decimal.Zero,
		},

		StudyInitialMaxDays:    365,
		StudyCumulativeMaxDays: 730,

		DisabilityIncidentWindowDays: 90,
		DisabilityFullPayDays:        90,
		DisabilityHalfPayDays:        90,
	}
}

// Rule returns the rule row for a kind. Panics on an unknown kind:
// the enum is closed and the table exhaustive, so a miss is a setup
// defect that Validate() should have caught at startup.
func (c Config) Rule(kind leave.Kind) Rule {
	r, ok := c.Rules[kind]
	if !ok {
		panic(fmt.Sprintf("policy: no rule for kind %s", kind))
	}
	return r
}

// Validate checks table exhaustiveness and basic constant sanity.
// Call once at startup; a failure is a configuration defect.
func (c Config) Validate() error {
	for _, k := range leave.Kinds {
		if _, ok := c.Rules[k]; !ok {
			return fmt.Errorf("policy config missing rule for kind %s", k)
		}
	}
	for k, r := range c.Rules {
		if r.AllowBackdate && r.MaxBackdateDays <= 0 {
			return fmt.Errorf("kind %s allows backdate with no window", k)
		}
		if r.AccrualPerYear < 0 || r.CarryForwardCap < 0 || r.MaxConsecutiveDays < 0 {
			return fmt.Errorf("kind %s has negative rule constants", k)
		}
	}
	if c.EncashmentMinRetain.IsNegative() {
		return fmt.Errorf("encashment min retain is negative")
	}
	if c.MaternityFullServiceMonths <= 0 {
		return fmt.Errorf("maternity full-service months must be positive")
	}
	return nil
}
