/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements MemberStore, HolidayStore, BalanceStore, LeaveStore, and
  AuditLog using SQLite. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  members:        Roster (join dates drive tenure rules)
  holidays:       Reference calendar (one row per calendar day)
  balances:       Per (member, kind, year) day accounting with version
  applications:   Leave applications + chain position
  approvals:      Append-only approval history
  return_records: Return-to-duty attestations
  audit_log:      Append-only audit trail

OPTIMISTIC LOCKING:
  balances.version implements the optimistic-concurrency contract:
  UPDATE ... WHERE version = ? - zero rows affected means another writer
  got there first, surfaced as leave.ErrConcurrentModification. This is
  what makes the accrual and lapse jobs safe against accidental overlap.

WAL MODE:
  SQLite is opened with WAL for better read concurrency and crash
  recovery. A sync.RWMutex serializes writers; with PostgreSQL the
  database's own concurrency control takes over.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a versioned
  migration tool.

SEE ALSO:
  - store/store.go: Interface definitions and contracts
  - store/memory:   In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/cdbl/leave-engine/calendar"
	"github.com/cdbl/leave-engine/leave"
	"github.com/cdbl/leave-engine/store"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Compile-time interface checks.
var (
	_ store.MemberStore  = (*Store)(nil)
	_ store.HolidayStore = (*Store)(nil)
	_ store.BalanceStore = (*Store)(nil)
	_ store.LeaveStore   = (*Store)(nil)
	_ store.AuditLog     = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		join_date TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	-- Holidays: at most one record per calendar day
	CREATE TABLE IF NOT EXISTS holidays (
		date TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Balances: version column backs the optimistic-lock contract
	CREATE TABLE IF NOT EXISTS balances (
		member_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		year INTEGER NOT NULL,
		opening TEXT NOT NULL,
		accrued TEXT NOT NULL,
		used TEXT NOT NULL,
		closing TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (member_id, kind, year)
	);

	CREATE INDEX IF NOT EXISTS idx_balances_kind_year
		ON balances(kind, year);

	CREATE TABLE IF NOT EXISTS applications (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL,
		current_step INTEGER NOT NULL DEFAULT 0,
		reason TEXT,
		certificate_ref TEXT,
		fitness_certificate_ref TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_applications_member_dates
		ON applications(member_id, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_applications_status_end
		ON applications(status, end_date);
	CREATE INDEX IF NOT EXISTS idx_applications_member_kind
		ON applications(member_id, kind);

	-- Approvals: append-only; chain position derives from MAX(step)
	CREATE TABLE IF NOT EXISTS approvals (
		application_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		approver_id TEXT NOT NULL,
		decision TEXT NOT NULL,
		to_role TEXT,
		decided_at TEXT,
		comment TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_approvals_application
		ON approvals(application_id, step);

	CREATE TABLE IF NOT EXISTS return_records (
		application_id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		returned_on TEXT NOT NULL,
		recorded_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Audit log: append-only
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		target_id TEXT NOT NULL,
		details_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_log(actor_id);
	CREATE INDEX IF NOT EXISTS idx_audit_target ON audit_log(target_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// MEMBERS
// =============================================================================

// AddMember inserts or replaces a roster record.
func (s *Store) AddMember(ctx context.Context, m store.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO members (id, name, join_date, active, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.JoinDate.ISO(), m.Active, nowISO())
	return err
}

func (s *Store) GetMember(ctx context.Context, id leave.MemberID) (store.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, join_date, active FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return store.Member{}, leave.ErrMemberNotFound
	}
	return m, err
}

func (s *Store) ListActiveMembers(ctx context.Context) ([]store.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, join_date, active FROM members WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var out []store.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanMember(r rowScanner) (store.Member, error) {
	var m store.Member
	var joinDate string
	if err := r.Scan(&m.ID, &m.Name, &joinDate, &m.Active); err != nil {
		return store.Member{}, err
	}
	d, err := parseISODate(joinDate)
	if err != nil {
		return store.Member{}, err
	}
	m.JoinDate = d
	return m, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) AddHoliday(ctx context.Context, h calendar.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO holidays (date, name, created_at) VALUES (?, ?, ?)`,
		h.Date.ISO(), h.Name, nowISO())
	return err
}

func (s *Store) HolidaysInRange(ctx context.Context, from, to calendar.Date) ([]calendar.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT date, name FROM holidays WHERE date >= ? AND date <= ? ORDER BY date`,
		from.ISO(), to.ISO())
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var out []calendar.Holiday
	for rows.Next() {
		var dateStr, name string
		if err := rows.Scan(&dateStr, &name); err != nil {
			return nil, err
		}
		d, err := parseISODate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("malformed holiday date %q: %w", dateStr, err)
		}
		out = append(out, calendar.Holiday{Date: d, Name: name})
	}
	return out, rows.Err()
}

// =============================================================================
// BALANCES
// =============================================================================

func (s *Store) GetBalance(ctx context.Context, member leave.MemberID, kind leave.Kind, year int) (leave.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT member_id, kind, year, opening, accrued, used, closing, version
		FROM balances WHERE member_id = ? AND kind = ? AND year = ?`,
		member, kind.String(), year)
	b, err := scanBalance(row)
	if err == sql.ErrNoRows {
		return leave.Balance{}, leave.ErrBalanceNotFound
	}
	return b, err
}

func (s *Store) PutBalance(ctx context.Context, b leave.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balances (member_id, kind, year, opening, accrued, used, closing, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		b.MemberID, b.Kind.String(), b.Year,
		b.Opening.String(), b.Accrued.String(), b.Used.String(), b.Closing.String(),
		nowISO())
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint") {
		return fmt.Errorf("balance already exists for %s/%s/%d", b.MemberID, b.Kind, b.Year)
	}
	return err
}

// UpdateBalance writes the record only when the stored version matches,
// then increments it. A version mismatch means another writer won.
func (s *Store) UpdateBalance(ctx context.Context, b leave.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE balances
		SET opening = ?, accrued = ?, used = ?, closing = ?, version = version + 1, updated_at = ?
		WHERE member_id = ? AND kind = ? AND year = ? AND version = ?`,
		b.Opening.String(), b.Accrued.String(), b.Used.String(), b.Closing.String(), nowISO(),
		b.MemberID, b.Kind.String(), b.Year, b.Version)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the row is missing or the version check failed.
		var count int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM balances WHERE member_id = ? AND kind = ? AND year = ?`,
			b.MemberID, b.Kind.String(), b.Year).Scan(&count); err != nil {
			return err
		}
		if count == 0 {
			return leave.ErrBalanceNotFound
		}
		return leave.ErrConcurrentModification
	}
	return nil
}

func (s *Store) ListBalances(ctx context.Context, kind leave.Kind, year int) ([]leave.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT member_id, kind, year, opening, accrued, used, closing, version
		FROM balances WHERE kind = ? AND year = ? ORDER BY member_id`,
		kind.String(), year)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var out []leave.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBalance(r rowScanner) (leave.Balance, error) {
	var b leave.Balance
	var kindStr, opening, accrued, used, closing string
	if err := r.Scan(&b.MemberID, &kindStr, &b.Year, &opening, &accrued, &used, &closing, &b.Version); err != nil {
		return leave.Balance{}, err
	}
	kind, err := leave.ParseKind(kindStr)
	if err != nil {
		return leave.Balance{}, err
	}
	b.Kind = kind
	if b.Opening, err = decimal.NewFromString(opening); err != nil {
		return leave.Balance{}, err
	}
	if b.Accrued, err = decimal.NewFromString(accrued); err != nil {
		return leave.Balance{}, err
	}
	if b.Used, err = decimal.NewFromString(used); err != nil {
		return leave.Balance{}, err
	}
	if b.Closing, err = decimal.NewFromString(closing); err != nil {
		return leave.Balance{}, err
	}
	return b, nil
}

// =============================================================================
// APPLICATIONS
// =============================================================================

const applicationColumns = `id, member_id, kind, start_date, end_date, status,
	current_step, reason, certificate_ref, fitness_certificate_ref`

func (s *Store) GetApplication(ctx context.Context, id leave.ApplicationID) (leave.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = ?`, id)
	app, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return leave.Application{}, leave.ErrApplicationNotFound
	}
	return app, err
}

func (s *Store) CreateApplication(ctx context.Context, app leave.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications
		(id, member_id, kind, start_date, end_date, status, current_step, reason,
		 certificate_ref, fitness_certificate_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID, app.MemberID, app.Kind.String(),
		app.StartDate.ISO(), app.EndDate.ISO(),
		app.Status, app.CurrentStep, app.Reason,
		nullString(app.CertificateRef), nullString(app.FitnessCertificateRef),
		nowISO(), nowISO())
	return err
}

func (s *Store) ApplicationsByMember(ctx context.Context, member leave.MemberID, from, to calendar.Date) ([]leave.Application, error) {
	return s.queryApplications(ctx, `
		SELECT `+applicationColumns+` FROM applications
		WHERE member_id = ? AND start_date <= ? AND end_date >= ?
		ORDER BY start_date, id`,
		member, to.ISO(), from.ISO())
}

func (s *Store) ApplicationsByMemberKind(ctx context.Context, member leave.MemberID, kind leave.Kind) ([]leave.Application, error) {
	return s.queryApplications(ctx, `
		SELECT `+applicationColumns+` FROM applications
		WHERE member_id = ? AND kind = ?
		ORDER BY start_date, id`,
		member, kind.String())
}

func (s *Store) ApprovedOverlapping(ctx context.Context, member leave.MemberID, from, to calendar.Date) ([]leave.Application, error) {
	return s.queryApplications(ctx, `
		SELECT `+applicationColumns+` FROM applications
		WHERE member_id = ? AND status = ? AND start_date <= ? AND end_date >= ?
		ORDER BY start_date, id`,
		member, leave.StatusApproved, to.ISO(), from.ISO())
}

func (s *Store) ApprovedEndedBefore(ctx context.Context, day calendar.Date) ([]leave.Application, error) {
	return s.queryApplications(ctx, `
		SELECT `+applicationColumns+` FROM applications
		WHERE status = ? AND end_date < ?
		ORDER BY end_date, id`,
		leave.StatusApproved, day.ISO())
}

func (s *Store) SetStatus(ctx context.Context, id leave.ApplicationID, status leave.Status, step int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE applications SET status = ?, current_step = ?, updated_at = ? WHERE id = ?`,
		status, step, nowISO(), id)
	if err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return leave.ErrApplicationNotFound
	}
	return nil
}

func (s *Store) queryApplications(ctx context.Context, query string, args ...any) ([]leave.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()

	var out []leave.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, rows.Err()
}

func scanApplication(r rowScanner) (leave.Application, error) {
	var app leave.Application
	var kindStr, startStr, endStr string
	var reason, certRef, fitnessRef sql.NullString
	if err := r.Scan(&app.ID, &app.MemberID, &kindStr, &startStr, &endStr,
		&app.Status, &app.CurrentStep, &reason, &certRef, &fitnessRef); err != nil {
		return leave.Application{}, err
	}

	kind, err := leave.ParseKind(kindStr)
	if err != nil {
		return leave.Application{}, err
	}
	app.Kind = kind
	if app.StartDate, err = parseISODate(startStr); err != nil {
		return leave.Application{}, err
	}
	if app.EndDate, err = parseISODate(endStr); err != nil {
		return leave.Application{}, err
	}
	app.Reason = reason.String
	if certRef.Valid {
		app.CertificateRef = &certRef.String
	}
	if fitnessRef.Valid {
		app.FitnessCertificateRef = &fitnessRef.String
	}
	return app, nil
}

// =============================================================================
// APPROVALS AND RETURN RECORDS
// =============================================================================

func (s *Store) AppendApproval(ctx context.Context, rec leave.ApprovalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var decidedAt any
	if rec.DecidedAt != nil {
		decidedAt = rec.DecidedAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approvals (application_id, step, approver_id, decision, to_role, decided_at, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ApplicationID, rec.Step, rec.ApproverID, rec.Decision, rec.ToRole, decidedAt, rec.Comment, nowISO())
	return err
}

func (s *Store) ApprovalsFor(ctx context.Context, id leave.ApplicationID) ([]leave.ApprovalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT application_id, step, approver_id, decision, to_role, decided_at, comment
		FROM approvals WHERE application_id = ? ORDER BY step`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}
	defer rows.Close()

	var out []leave.ApprovalRecord
	for rows.Next() {
		var rec leave.ApprovalRecord
		var decidedAt sql.NullString
		if err := rows.Scan(&rec.ApplicationID, &rec.Step, &rec.ApproverID,
			&rec.Decision, &rec.ToRole, &decidedAt, &rec.Comment); err != nil {
			return nil, err
		}
		if decidedAt.Valid {
			if t, err := time.Parse(time.RFC3339, decidedAt.String); err == nil {
				rec.DecidedAt = &t
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) HasReturnRecord(ctx context.Context, id leave.ApplicationID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM return_records WHERE application_id = ?`, id).Scan(&count)
	return count > 0, err
}

func (s *Store) AddReturnRecord(ctx context.Context, rec leave.ReturnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO return_records (application_id, member_id, returned_on, recorded_by, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ApplicationID, rec.MemberID, rec.ReturnedOn.ISO(), rec.RecordedBy, nowISO())
	return err
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) Append(ctx context.Context, entry leave.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	detailsJSON, _ := json.Marshal(entry.Details)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, actor_id, action, target_id, details_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Timestamp.UTC().Format(time.RFC3339),
		entry.ActorID, entry.Action, entry.TargetID, string(detailsJSON))
	return err
}

func (s *Store) Query(ctx context.Context, filter store.AuditFilter) ([]leave.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, timestamp, actor_id, action, target_id, details_json FROM audit_log WHERE 1=1`
	var args []any
	if filter.ActorID != "" {
		query += ` AND actor_id = ?`
		args = append(args, filter.ActorID)
	}
	if filter.TargetID != "" {
		query += ` AND target_id = ?`
		args = append(args, filter.TargetID)
	}
	if len(filter.Actions) > 0 {
		query += ` AND action IN (?` + strings.Repeat(",?", len(filter.Actions)-1) + `)`
		for _, a := range filter.Actions {
			args = append(args, a)
		}
	}
	query += ` ORDER BY timestamp DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []leave.AuditEntry
	for rows.Next() {
		var e leave.AuditEntry
		var ts, detailsJSON string
		if err := rows.Scan(&e.ID, &ts, &e.ActorID, &e.Action, &e.TargetID, &detailsJSON); err != nil {
			return nil, err
		}
		if e.Timestamp, err = time.Parse(time.RFC3339, ts); err != nil {
			return nil, err
		}
		if detailsJSON != "" {
			_ = json.Unmarshal([]byte(detailsJSON), &e.Details)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nowISO() string { return time.Now().UTC().Format(time.RFC3339) }

func parseISODate(s string) (calendar.Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return calendar.Date{}, fmt.Errorf("malformed date %q: %w", s, err)
	}
	return calendar.NewDate(t.Year(), t.Month(), t.Day()), nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
