/*
Package workflow implements the leave approval state machine.

PURPOSE:
  Per-leave-kind ordered approver chains. Given the acting role and the
  requested action, computes the next status and next role, validates
  permitted actions, and detects terminal (final-approver) roles.

STATE MODEL:
  SUBMITTED -> PENDING -> { APPROVED | REJECTED }
  Within PENDING the real state is the current position in the kind's
  chain. FORWARD advances the chain and keeps the application PENDING;
  only the final role of a chain may APPROVE or REJECT.

CHAIN SELECTION:
  The chain table is a deliberate per-kind lookup. Most kinds share the
  documented default chain; casual leave is a policy-carved exception
  with a shorter chain. ChainFor reports whether resolution went through
  the default entry, so callers can distinguish "uses default chain
  intentionally" from "unknown kind" (which is an error).

AUTHORIZATION:
  Actions by roles outside the chain, or terminal actions by non-final
  roles, are rejected with named errors BEFORE any state mutation. These
  are hard authorization failures, never downgraded to no-ops.
*/
package workflow

import (
	"fmt"

	"github.com/cdbl/leave-engine/leave"
)

// =============================================================================
// ROLES AND ACTIONS
// =============================================================================

// Role is an approver position in the organization.
type Role string

const (
	RoleDeptHead Role = "DEPT_HEAD"
	RoleHRHead   Role = "HR_HEAD"
	RoleMD       Role = "MD"
)

// Action is what an approver attempts at their chain position.
type Action string

const (
	ActionForward Action = "FORWARD"
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
)

// Chain is an ordered list of approver roles.
type Chain []Role

// =============================================================================
// CHAIN TABLE
// =============================================================================

// Table maps leave kinds to approval chains. Construct with NewTable
// (or DefaultTable) and treat as immutable.
type Table struct {
	defaultChain Chain
	overrides    map[leave.Kind]Chain
}

// NewTable builds a chain table from an explicit default chain and
// per-kind overrides. The default entry is deliberate configuration,
// not an accidental fallback.
func NewTable(defaultChain Chain, overrides map[leave.Kind]Chain) (*Table, error) {
	if len(defaultChain) == 0 {
		return nil, leave.ErrEmptyChain
	}
	for kind, chain := range overrides {
		if len(chain) == 0 {
			return nil, fmt.Errorf("%w: %s", leave.ErrEmptyChain, kind)
		}
	}
	return &Table{defaultChain: defaultChain, overrides: overrides}, nil
}

// DefaultTable returns the CDBL chain table: DeptHead -> HRHead -> MD
// for every kind, with casual leave carved down to DeptHead -> HRHead.
func DefaultTable() *Table {
	t, err := NewTable(
		Chain{RoleDeptHead, RoleHRHead, RoleMD},
		map[leave.Kind]Chain{
			leave.KindCasual: {RoleDeptHead, RoleHRHead},
		},
	)
	if err != nil {
		panic(err) // static configuration above is never empty
	}
	return t
}

// ChainFor returns the approval chain for a kind and whether the kind
// resolved through the shared default entry. Unknown kinds are a
// configuration error, not a silent default.
func (t *Table) ChainFor(kind leave.Kind) (Chain, bool, error) {
	if !kind.Valid() {
		return nil, false, fmt.Errorf("%w: %s", leave.ErrUnknownKind, kind)
	}
	if chain, ok := t.overrides[kind]; ok {
		return chain, false, nil
	}
	return t.defaultChain, true, nil
}

// =============================================================================
// CHAIN QUERIES
// =============================================================================

// StepOf returns the 1-indexed chain position of a role, or 0 when the
// role has no entry in the kind's chain. 0 is a "not applicable"
// sentinel, never a valid step.
func (t *Table) StepOf(role Role, kind leave.Kind) int {
	chain, _, err := t.ChainFor(kind)
	if err != nil {
		return 0
	}
	for i, r := range chain {
		if r == role {
			return i + 1
		}
	}
	return 0
}

// IsFinalApprover reports whether the role is the last element of the
// kind's chain.
func (t *Table) IsFinalApprover(role Role, kind leave.Kind) bool {
	chain, _, err := t.ChainFor(kind)
	if err != nil || len(chain) == 0 {
		return false
	}
	return chain[len(chain)-1] == role
}

// NextRoleInChain returns the role immediately after the given role,
// or false when the role is absent or last.
func (t *Table) NextRoleInChain(role Role, kind leave.Kind) (Role, bool) {
	chain, _, err := t.ChainFor(kind)
	if err != nil {
		return "", false
	}
	for i, r := range chain {
		if r == role {
			if i+1 < len(chain) {
				return chain[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

// CanPerformAction reports whether the role may take the action for the
// kind. FORWARD belongs to non-final chain members; APPROVE and REJECT
// belong to the final approver only. "Final" is relative to the kind's
// own chain, never a fixed role.
func (t *Table) CanPerformAction(role Role, action Action, kind leave.Kind) bool {
	step := t.StepOf(role, kind)
	if step == 0 {
		return false
	}
	final := t.IsFinalApprover(role, kind)
	switch action {
	case ActionForward:
		return !final
	case ActionApprove, ActionReject:
		return final
	default:
		return false
	}
}

// CanForwardTo reports whether actorRole may forward to targetRole.
// Only the immediately next role in the chain is a legal target;
// everything else is chain-skipping.
func (t *Table) CanForwardTo(actorRole, targetRole Role, kind leave.Kind) bool {
	next, ok := t.NextRoleInChain(actorRole, kind)
	return ok && next == targetRole
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Transition is the computed result of applying an action.
type Transition struct {
	NextStatus leave.Status
	NextRole   Role // set only when NextStatus is PENDING
	NextStep   int  // 1-indexed chain position of NextRole, 0 if terminal
	Decision   leave.Decision
}

// Apply validates the action for the role and computes the resulting
// status. Authorization failures return before any state is derived.
func (t *Table) Apply(role Role, action Action, kind leave.Kind) (Transition, error) {
	step := t.StepOf(role, kind)
	if step == 0 {
		return Transition{}, &leave.AuthorizationError{
			Role: string(role), Action: string(action), Kind: kind, Err: leave.ErrRoleNotInChain,
		}
	}
	if !t.CanPerformAction(role, action, kind) {
		cause := leave.ErrActionNotPermitted
		if action == ActionApprove || action == ActionReject {
			cause = leave.ErrNotFinalApprover
		}
		return Transition{}, &leave.AuthorizationError{
			Role: string(role), Action: string(action), Kind: kind, Err: cause,
		}
	}

	switch action {
	case ActionForward:
		next, _ := t.NextRoleInChain(role, kind)
		return Transition{
			NextStatus: leave.StatusPending,
			NextRole:   next,
			NextStep:   t.StepOf(next, kind),
			Decision:   leave.DecisionForwarded,
		}, nil
	case ActionApprove:
		return Transition{NextStatus: leave.StatusApproved, Decision: leave.DecisionApproved}, nil
	case ActionReject:
		return Transition{NextStatus: leave.StatusRejected, Decision: leave.DecisionRejected}, nil
	default:
		return Transition{}, &leave.AuthorizationError{
			Role: string(role), Action: string(action), Kind: kind, Err: leave.ErrActionNotPermitted,
		}
	}
}

// ApplyTo validates the action against an application's current state
// and returns the transition plus the approval record to append. The
// acting role must hold the application's current chain position:
// without this, a final approver could terminally decide an
// application the earlier steps never forwarded.
func (t *Table) ApplyTo(app leave.Application, role Role, action Action, approver leave.MemberID) (Transition, leave.ApprovalRecord, error) {
	if app.Status != leave.StatusPending && app.Status != leave.StatusSubmitted {
		return Transition{}, leave.ApprovalRecord{}, fmt.Errorf(
			"application %s is %s; only submitted or pending applications accept chain actions",
			app.ID, app.Status)
	}

	tr, err := t.Apply(role, action, app.Kind)
	if err != nil {
		return Transition{}, leave.ApprovalRecord{}, err
	}
	if step := t.StepOf(role, app.Kind); step != app.CurrentStep {
		return Transition{}, leave.ApprovalRecord{}, &leave.AuthorizationError{
			Role: string(role), Action: string(action), Kind: app.Kind, Err: leave.ErrNotCurrentApprover,
		}
	}

	rec := leave.ApprovalRecord{
		ApplicationID: app.ID,
		Step:          t.StepOf(role, app.Kind),
		ApproverID:    approver,
		Decision:      tr.Decision,
		ToRole:        string(tr.NextRole),
	}
	return tr, rec, nil
}
