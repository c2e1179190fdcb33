// Package memory provides in-memory store implementations (for testing/dev).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cdbl/leave-engine/calendar"
	"github.com/cdbl/leave-engine/leave"
	"github.com/cdbl/leave-engine/store"
)

// =============================================================================
// MEMORY STORE - Implements every store interface behind one mutex
// =============================================================================

type Store struct {
	mu sync.RWMutex

	members   map[leave.MemberID]store.Member
	holidays  map[string]calendar.Holiday // keyed by ISO day
	balances  map[balanceKey]leave.Balance
	apps      map[leave.ApplicationID]leave.Application
	approvals map[leave.ApplicationID][]leave.ApprovalRecord
	returns   map[leave.ApplicationID]leave.ReturnRecord
	audit     []leave.AuditEntry
}

type balanceKey struct {
	Member leave.MemberID
	Kind   leave.Kind
	Year   int
}

func New() *Store {
	return &Store{
		members:   make(map[leave.MemberID]store.Member),
		holidays:  make(map[string]calendar.Holiday),
		balances:  make(map[balanceKey]leave.Balance),
		apps:      make(map[leave.ApplicationID]leave.Application),
		approvals: make(map[leave.ApplicationID][]leave.ApprovalRecord),
		returns:   make(map[leave.ApplicationID]leave.ReturnRecord),
	}
}

// Compile-time interface checks.
var (
	_ store.MemberStore  = (*Store)(nil)
	_ store.HolidayStore = (*Store)(nil)
	_ store.BalanceStore = (*Store)(nil)
	_ store.LeaveStore   = (*Store)(nil)
	_ store.AuditLog     = (*Store)(nil)
)

// =============================================================================
// MEMBERS
// =============================================================================

func (s *Store) AddMember(_ context.Context, m store.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
	return nil
}

func (s *Store) GetMember(_ context.Context, id leave.MemberID) (store.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return store.Member{}, leave.ErrMemberNotFound
	}
	return m, nil
}

func (s *Store) ListActiveMembers(_ context.Context) ([]store.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Member
	for _, m := range s.members {
		if m.Active {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) AddHoliday(_ context.Context, h calendar.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holidays[h.Date.ISO()] = h
	return nil
}

func (s *Store) HolidaysInRange(_ context.Context, from, to calendar.Date) ([]calendar.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []calendar.Holiday
	for iso, h := range s.holidays {
		if iso >= from.ISO() && iso <= to.ISO() {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// =============================================================================
// BALANCES
// =============================================================================

func (s *Store) GetBalance(_ context.Context, member leave.MemberID, kind leave.Kind, year int) (leave.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.balances[balanceKey{member, kind, year}]
	if !ok {
		return leave.Balance{}, leave.ErrBalanceNotFound
	}
	return b, nil
}

func (s *Store) PutBalance(_ context.Context, b leave.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := balanceKey{b.MemberID, b.Kind, b.Year}
	if _, ok := s.balances[k]; ok {
		return fmt.Errorf("balance already exists for %s/%s/%d", b.MemberID, b.Kind, b.Year)
	}
	b.Version = 1
	s.balances[k] = b
	return nil
}

func (s *Store) UpdateBalance(_ context.Context, b leave.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := balanceKey{b.MemberID, b.Kind, b.Year}
	current, ok := s.balances[k]
	if !ok {
		return leave.ErrBalanceNotFound
	}
	if current.Version != b.Version {
		return leave.ErrConcurrentModification
	}
	b.Version++
	s.balances[k] = b
	return nil
}

func (s *Store) ListBalances(_ context.Context, kind leave.Kind, year int) ([]leave.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []leave.Balance
	for k, b := range s.balances {
		if k.Kind == kind && k.Year == year {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out, nil
}

// =============================================================================
// LEAVES
// =============================================================================

func (s *Store) GetApplication(_ context.Context, id leave.ApplicationID) (leave.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[id]
	if !ok {
		return leave.Application{}, leave.ErrApplicationNotFound
	}
	return app, nil
}

func (s *Store) CreateApplication(_ context.Context, app leave.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[app.ID] = app
	return nil
}

func (s *Store) ApplicationsByMember(_ context.Context, member leave.MemberID, from, to calendar.Date) ([]leave.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []leave.Application
	for _, app := range s.apps {
		if app.MemberID == member && app.Overlaps(from, to) {
			out = append(out, app)
		}
	}
	sortApps(out)
	return out, nil
}

func (s *Store) ApplicationsByMemberKind(_ context.Context, member leave.MemberID, kind leave.Kind) ([]leave.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []leave.Application
	for _, app := range s.apps {
		if app.MemberID == member && app.Kind == kind {
			out = append(out, app)
		}
	}
	sortApps(out)
	return out, nil
}

func (s *Store) ApprovedOverlapping(_ context.Context, member leave.MemberID, from, to calendar.Date) ([]leave.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []leave.Application
	for _, app := range s.apps {
		if app.MemberID == member && app.Status == leave.StatusApproved && app.Overlaps(from, to) {
			out = append(out, app)
		}
	}
	sortApps(out)
	return out, nil
}

func (s *Store) ApprovedEndedBefore(_ context.Context, day calendar.Date) ([]leave.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []leave.Application
	for _, app := range s.apps {
		if app.Status == leave.StatusApproved && app.EndDate.Before(day) {
			out = append(out, app)
		}
	}
	sortApps(out)
	return out, nil
}

func (s *Store) SetStatus(_ context.Context, id leave.ApplicationID, status leave.Status, step int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return leave.ErrApplicationNotFound
	}
	app.Status = status
	app.CurrentStep = step
	s.apps[id] = app
	return nil
}

func (s *Store) AppendApproval(_ context.Context, rec leave.ApprovalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals[rec.ApplicationID] = append(s.approvals[rec.ApplicationID], rec)
	return nil
}

func (s *Store) ApprovalsFor(_ context.Context, id leave.ApplicationID) ([]leave.ApprovalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]leave.ApprovalRecord, len(s.approvals[id]))
	copy(recs, s.approvals[id])
	sort.Slice(recs, func(i, j int) bool { return recs[i].Step < recs[j].Step })
	return recs, nil
}

func (s *Store) HasReturnRecord(_ context.Context, id leave.ApplicationID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.returns[id]
	return ok, nil
}

func (s *Store) AddReturnRecord(_ context.Context, rec leave.ReturnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.returns[rec.ApplicationID] = rec
	return nil
}

// =============================================================================
// AUDIT
// =============================================================================

func (s *Store) Append(_ context.Context, entry leave.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

func (s *Store) Query(_ context.Context, filter store.AuditFilter) ([]leave.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []leave.AuditEntry
	for _, e := range s.audit {
		if filter.ActorID != "" && e.ActorID != filter.ActorID {
			continue
		}
		if filter.TargetID != "" && e.TargetID != filter.TargetID {
			continue
		}
		if len(filter.Actions) > 0 && !containsAction(filter.Actions, e.Action) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func containsAction(actions []leave.AuditAction, a leave.AuditAction) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}

func sortApps(apps []leave.Application) {
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].StartDate.Equal(apps[j].StartDate) {
			return apps[i].ID < apps[j].ID
		}
		return apps[i].StartDate.Before(apps[j].StartDate)
	})
}
