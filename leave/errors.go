/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All sentinel errors in one place for consistency and discoverability.
  Business-rule outcomes are NOT errors - validators return result values
  (see validation/). Errors here mark authorization failures, configuration
  defects, and storage faults.

ERROR CATEGORIES:
  1. Authorization errors - chain actions by unpermitted roles (hard stop)
  2. Configuration errors - caller/setup defects (missing chain, bad kind)
  3. Storage errors       - concurrency conflicts, missing records

USAGE:
  if errors.Is(err, leave.ErrNotFinalApprover) {
      // surface 403 to the caller
  }
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnknownKind marks a kind value outside the closed enum.
	// This is a caller defect, not a business-rule violation.
	ErrUnknownKind = errors.New("unknown leave kind")

	// ErrRoleNotInChain is returned when a role attempts a chain action
	// but has no position in the kind's approval chain.
	ErrRoleNotInChain = errors.New("role not in approval chain")

	// ErrNotFinalApprover is returned when a non-final role attempts a
	// terminal approve/reject. Authorization failure, never advisory.
	ErrNotFinalApprover = errors.New("role is not the final approver")

	// ErrInvalidForwardTarget is returned when forwarding to any role
	// other than the next role in the chain (prevents chain-skipping).
	ErrInvalidForwardTarget = errors.New("invalid forward target")

	// ErrNotCurrentApprover is returned when a role acts on an
	// application that has not yet reached (or has already passed) the
	// role's chain position. Prevents the final approver from deciding
	// before the earlier steps forwarded.
	ErrNotCurrentApprover = errors.New("application is not at the role's approval step")

	// ErrActionNotPermitted covers remaining action/role mismatches,
	// e.g. the final approver attempting to forward.
	ErrActionNotPermitted = errors.New("action not permitted for role")

	// ErrEmptyChain indicates a configuration defect: a leave kind with
	// no approval chain. Fail loudly, never default.
	ErrEmptyChain = errors.New("empty approval chain for leave kind")

	// ErrBalanceNotFound is returned by stores when no balance record
	// exists. Callers that want the documented zero-balance default must
	// opt in explicitly (see store.BalanceOrZero).
	ErrBalanceNotFound = errors.New("balance record not found")

	// ErrApplicationNotFound is returned when a referenced application
	// does not exist.
	ErrApplicationNotFound = errors.New("application not found")

	// ErrMemberNotFound is returned when a referenced member does not
	// exist in the roster.
	ErrMemberNotFound = errors.New("member not found")

	// ErrConcurrentModification is returned when an optimistic version
	// check fails on a balance write.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AuthorizationError details a rejected approval-chain action.
type AuthorizationError struct {
	Role   string
	Action string
	Kind   Kind
	Err    error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %s may not %s %s leave: %v", e.Role, e.Action, e.Kind, e.Err)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// IsAuthorization reports whether err is any chain-authorization failure.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrRoleNotInChain) ||
		errors.Is(err, ErrNotFinalApprover) ||
		errors.Is(err, ErrInvalidForwardTarget) ||
		errors.Is(err, ErrNotCurrentApprover) ||
		errors.Is(err, ErrActionNotPermitted)
}

// IsNotFound reports whether err indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBalanceNotFound) ||
		errors.Is(err, ErrApplicationNotFound) ||
		errors.Is(err, ErrMemberNotFound)
}

// IsRetryable reports whether the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
