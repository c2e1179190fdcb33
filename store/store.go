/*
Package store defines the persistence interfaces for the leave engine.

PURPOSE:
  The engine itself is pure; these interfaces are the external
  collaborators it reads from and whose mutations it requests. Different
  implementations back them with SQLite or memory.

KEY INTERFACES:
  HolidayStore: Holiday reference data per date range
  MemberStore:  Employee roster (join dates drive tenure rules)
  BalanceStore: Per (member, kind, year) balances, version-checked writes
  LeaveStore:   Applications, approval history, return records
  AuditLog:     Append-only structured audit entries

OPTIMISTIC CONCURRENCY:
  Balance rows are read-modify-written by two independent jobs (accrual
  and lapse). UpdateBalance MUST compare the record's Version against
  the stored row and fail with leave.ErrConcurrentModification on a
  mismatch, incrementing Version on success. This makes the jobs'
  non-overlap assumption structurally safe instead of operational luck.

IMPLEMENTATIONS:
  - store/memory: In-memory, for tests and development
  - store/sqlite: SQLite with WAL, for production-shaped deployments
*/
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/cdbl/leave-engine/calendar"
	"github.com/cdbl/leave-engine/leave"
)

// =============================================================================
// MEMBERS
// =============================================================================

// Member is the roster record the engine needs: identity, join date
// (tenure rules), and active flag (jobs skip inactive members).
type Member struct {
	ID       leave.MemberID
	Name     string
	JoinDate calendar.Date
	Active   bool
}

type MemberStore interface {
	// GetMember returns a member by id.
	GetMember(ctx context.Context, id leave.MemberID) (Member, error)

	// ListActiveMembers returns every active member.
	ListActiveMembers(ctx context.Context) ([]Member, error)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

type HolidayStore interface {
	// HolidaysInRange returns holiday days whose dates fall in
	// [from, to]. Holidays are stored as normalized calendar days, so
	// reads round-trip without any instant conversion.
	HolidaysInRange(ctx context.Context, from, to calendar.Date) ([]calendar.Holiday, error)

	// AddHoliday registers a holiday. At most one per calendar day.
	AddHoliday(ctx context.Context, h calendar.Holiday) error
}

// =============================================================================
// BALANCES
// =============================================================================

type BalanceStore interface {
	// GetBalance returns the balance for (member, kind, year) or
	// leave.ErrBalanceNotFound.
	GetBalance(ctx context.Context, member leave.MemberID, kind leave.Kind, year int) (leave.Balance, error)

	// PutBalance inserts a new balance record at Version 1.
	PutBalance(ctx context.Context, b leave.Balance) error

	// UpdateBalance writes b if the stored Version matches b.Version,
	// then increments it. Mismatch returns leave.ErrConcurrentModification.
	UpdateBalance(ctx context.Context, b leave.Balance) error

	// ListBalances returns every balance record for a kind and year.
	ListBalances(ctx context.Context, kind leave.Kind, year int) ([]leave.Balance, error)
}

// BalanceOrZero fetches a member's balance, substituting an empty
// balance when no record exists. This zero-default is the documented
// contract for eligibility checks on members without a record; callers
// that must fail loudly use GetBalance directly.
func BalanceOrZero(ctx context.Context, s BalanceStore, member leave.MemberID, kind leave.Kind, year int) (leave.Balance, error) {
	b, err := s.GetBalance(ctx, member, kind, year)
	if errors.Is(err, leave.ErrBalanceNotFound) {
		return leave.Balance{
			MemberID: member, Kind: kind, Year: year,
			Opening: decimal.Zero, Accrued: decimal.Zero, Used: decimal.Zero, Closing: decimal.Zero,
		}, nil
	}
	return b, err
}

// =============================================================================
// LEAVES
// =============================================================================

type LeaveStore interface {
	// GetApplication returns an application or leave.ErrApplicationNotFound.
	GetApplication(ctx context.Context, id leave.ApplicationID) (leave.Application, error)

	// CreateApplication persists a new application.
	CreateApplication(ctx context.Context, app leave.Application) error

	// ApplicationsByMember returns a member's applications overlapping
	// [from, to], any status. Validators filter by Status.Active.
	ApplicationsByMember(ctx context.Context, member leave.MemberID, from, to calendar.Date) ([]leave.Application, error)

	// ApplicationsByMemberKind returns a member's full history for one
	// kind (paternity occasions, study-leave extensions).
	ApplicationsByMemberKind(ctx context.Context, member leave.MemberID, kind leave.Kind) ([]leave.Application, error)

	// ApprovedOverlapping returns approved leaves of a member that
	// overlap [from, to] (full-month coverage checks).
	ApprovedOverlapping(ctx context.Context, member leave.MemberID, from, to calendar.Date) ([]leave.Application, error)

	// ApprovedEndedBefore returns approved leaves whose end date is
	// strictly before the given day (overstay candidates).
	ApprovedEndedBefore(ctx context.Context, day calendar.Date) ([]leave.Application, error)

	// SetStatus moves an application to a new status and step.
	SetStatus(ctx context.Context, id leave.ApplicationID, status leave.Status, step int) error

	// AppendApproval appends an approval record. Append-only.
	AppendApproval(ctx context.Context, rec leave.ApprovalRecord) error

	// ApprovalsFor returns the approval history for an application,
	// ordered by step.
	ApprovalsFor(ctx context.Context, id leave.ApplicationID) ([]leave.ApprovalRecord, error)

	// HasReturnRecord reports whether a return-to-duty record exists
	// for the application.
	HasReturnRecord(ctx context.Context, id leave.ApplicationID) (bool, error)

	// AddReturnRecord registers a return-to-duty attestation.
	AddReturnRecord(ctx context.Context, rec leave.ReturnRecord) error
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditLog persists append-only audit entries. Jobs produce entries as
// data; this sink owns the actual write.
type AuditLog interface {
	Append(ctx context.Context, entry leave.AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]leave.AuditEntry, error)
}

type AuditFilter struct {
	ActorID  string
	TargetID string
	Actions  []leave.AuditAction
	Limit    int
}
