/*
Package leave defines the core domain types for the leave engine.

PURPOSE:
  This package contains the entities every other package speaks in:
  leave kinds, application statuses, applications, balances, approval
  records, and audit entries. It has no behavior beyond derived-field
  recomputation; rules live in policy/, validation/, workflow/, jobs/.

KEY CONCEPTS IN THIS FILE (types.go):
  - Kind:        Closed enum of statutory leave categories
  - Status:      Application lifecycle status
  - Application: A leave request as the engine consumes it
  - Balance:     Per (member, kind, year) day accounting with a version
                 field for optimistic locking at the storage layer

DESIGN PRINCIPLES:
  1. Closed enums: rule tables are exhaustive over Kind; adding a kind
     is a compile-visible obligation, not a runtime fallback
  2. Precision: decimal.Decimal for day balances, never float64
  3. Derived cache: Balance.Closing is always recomputed, never trusted

SEE ALSO:
  - errors.go:  Sentinel errors shared across the engine
  - policy/:    Rule table keyed by Kind
  - workflow/:  Status transitions
*/
package leave

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cdbl/leave-engine/calendar"
)

// =============================================================================
// KIND - Closed enum of leave categories
// =============================================================================

// Kind is a statutory leave category. The set is closed: rule tables in
// policy/ and workflow/ enumerate every kind explicitly.
type Kind int

const (
	KindCasual Kind = iota
	KindEarned
	KindMedical
	KindMaternity
	KindPaternity
	KindQuarantine
	KindExtraordinary
	KindStudy
	KindSpecialDisability
)

// Kinds lists every leave kind, in declaration order.
// Rule tables range over this to stay exhaustive.
var Kinds = []Kind{
	KindCasual, KindEarned, KindMedical, KindMaternity, KindPaternity,
	KindQuarantine, KindExtraordinary, KindStudy, KindSpecialDisability,
}

var kindNames = map[Kind]string{
	KindCasual:            "casual",
	KindEarned:            "earned",
	KindMedical:           "medical",
	KindMaternity:         "maternity",
	KindPaternity:         "paternity",
	KindQuarantine:        "quarantine",
	KindExtraordinary:     "extraordinary",
	KindStudy:             "study",
	KindSpecialDisability: "special_disability",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is a declared leave kind.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind resolves a wire/storage name to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// =============================================================================
// STATUS - Application lifecycle
// =============================================================================

type Status string

const (
	StatusDraft                 Status = "DRAFT"
	StatusSubmitted             Status = "SUBMITTED"
	StatusPending               Status = "PENDING"
	StatusApproved              Status = "APPROVED"
	StatusRejected              Status = "REJECTED"
	StatusCancelled             Status = "CANCELLED"
	StatusReturned              Status = "RETURNED"
	StatusCancellationRequested Status = "CANCELLATION_REQUESTED"
	StatusRecalled              Status = "RECALLED"
	StatusOverstayPending       Status = "OVERSTAY_PENDING"
)

// Active reports whether a leave in this status still holds its days:
// approved, pending, or submitted. Used by combination/adjacency checks.
func (s Status) Active() bool {
	return s == StatusApproved || s == StatusPending || s == StatusSubmitted
}

// Terminal reports whether the approval workflow is finished.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// =============================================================================
// APPLICATION - A leave request as the engine consumes it
// =============================================================================

// MemberID identifies an employee. ApplicationID identifies a request.
type MemberID string
type ApplicationID string

// Application carries the fields the engine needs to rule on a request.
// The external store owns the full record; the engine never mutates it.
type Application struct {
	ID          ApplicationID
	MemberID    MemberID
	Kind        Kind
	StartDate   calendar.Date
	EndDate     calendar.Date
	Status      Status
	CurrentStep int // 1-indexed position in the kind's approval chain
	Reason      string

	// Medical-leave attachments. Nil means not supplied.
	CertificateRef        *string
	FitnessCertificateRef *string
}

// Overlaps reports whether two inclusive date ranges share a day.
func (a Application) Overlaps(start, end calendar.Date) bool {
	return !a.StartDate.After(end) && !a.EndDate.Before(start)
}

// AdjacentTo reports whether the application's range touches the day
// immediately before start or immediately after end.
func (a Application) AdjacentTo(start, end calendar.Date) bool {
	return a.EndDate.Equal(start.AddDays(-1)) || a.StartDate.Equal(end.AddDays(1))
}

// =============================================================================
// BALANCE - Per (member, kind, year) day accounting
// =============================================================================

// Balance tracks entitled days for one member, kind, and year.
// Closing is a derived cache: always opening + accrued - used.
// Version supports optimistic locking at the storage layer; two jobs
// touching the same row must not interleave read-modify-write cycles.
type Balance struct {
	MemberID MemberID
	Kind     Kind
	Year     int

	Opening decimal.Decimal
	Accrued decimal.Decimal
	Used    decimal.Decimal
	Closing decimal.Decimal

	Version int64
}

// Recompute refreshes the derived Closing field.
func (b *Balance) Recompute() {
	b.Closing = b.Opening.Add(b.Accrued).Sub(b.Used)
}

// Remaining returns opening + accrued - used.
func (b Balance) Remaining() decimal.Decimal {
	return b.Opening.Add(b.Accrued).Sub(b.Used)
}

// =============================================================================
// APPROVAL RECORD - Append-only per application
// =============================================================================

type Decision string

const (
	DecisionForwarded Decision = "FORWARDED"
	DecisionApproved  Decision = "APPROVED"
	DecisionRejected  Decision = "REJECTED"
)

// ApprovalRecord is one step of an application's approval history.
// Records are append-only; the chain's current position is the highest
// recorded step.
type ApprovalRecord struct {
	ApplicationID ApplicationID
	Step          int
	ApproverID    MemberID
	Decision      Decision
	ToRole        string
	DecidedAt     *time.Time
	Comment       string
}

// =============================================================================
// RETURN RECORD - Return-to-duty evidence for overstay detection
// =============================================================================

// ReturnRecord is an external attestation that a member resumed duty
// after a leave. Medical leaves use the fitness certificate instead.
type ReturnRecord struct {
	ApplicationID ApplicationID
	MemberID      MemberID
	ReturnedOn    calendar.Date
	RecordedBy    MemberID
}

// =============================================================================
// AUDIT ENTRY - Produced by jobs/workflow, persisted externally
// =============================================================================

// AuditEntry records who did what to whom. Jobs emit these as data;
// the audit sink owns persistence.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	ActorID   string // "system:accrual", "system:lapse", or a member id
	Action    AuditAction
	TargetID  string
	Details   map[string]any
}

type AuditAction string

const (
	AuditAccrualApplied  AuditAction = "accrual_applied"
	AuditAccrualCapped   AuditAction = "accrual_capped"
	AuditBalanceLapsed   AuditAction = "balance_lapsed"
	AuditOverstayFlagged AuditAction = "overstay_flagged"
	AuditActionForwarded AuditAction = "application_forwarded"
	AuditActionApproved  AuditAction = "application_approved"
	AuditActionRejected  AuditAction = "application_rejected"
)
