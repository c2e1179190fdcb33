/*
Package validation implements the per-application leave validators.

PURPOSE:
  Composable predicate functions over calendar + history that decide
  specific policy violations. Validators never mutate state and never
  throw for expected business conditions: every check returns a tagged
  result value the caller can pattern-match and display.

RESULT FAMILY:
  Ok        - the rule is satisfied
  Violation - a hard policy breach; callers must block the transaction
  Warning   - an advisory condition; callers inform, never block

  The distinction is structural (Outcome tag), not a convention on ad hoc
  fields, so call sites cannot accidentally block on an advisory result.

PURITY:
  Calendar and history lookups happen in the caller; validators receive
  already-fetched values. The validation logic itself is side-effect-free.

SEE ALSO:
  - validators.go: Casual-leave, notice, backdate, certificate rules
  - special.go:    Paternity, extraordinary, disability, overflow rules
*/
package validation

import "fmt"

// =============================================================================
// RESULT - Tagged validation outcome
// =============================================================================

type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeViolation
	OutcomeWarning
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeViolation:
		return "violation"
	case OutcomeWarning:
		return "warning"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the shared shape of every validator outcome. Richer
// validators embed it and add structured detail fields.
type Result struct {
	Outcome Outcome
	Rule    string // machine-readable rule name, e.g. "casual_adjacency"
	Reason  string // human-readable explanation when not OK
}

// Ok returns a passing result for the named rule.
func Ok(rule string) Result {
	return Result{Outcome: OutcomeOK, Rule: rule}
}

// Violate returns a hard violation of the named rule.
func Violate(rule, format string, args ...any) Result {
	return Result{Outcome: OutcomeViolation, Rule: rule, Reason: fmt.Sprintf(format, args...)}
}

// Warn returns an advisory warning for the named rule.
func Warn(rule, format string, args ...any) Result {
	return Result{Outcome: OutcomeWarning, Rule: rule, Reason: fmt.Sprintf(format, args...)}
}

// OK reports whether the rule passed cleanly.
func (r Result) OK() bool { return r.Outcome == OutcomeOK }

// Blocking reports whether the result must stop the transaction.
// Warnings are advisory and never block.
func (r Result) Blocking() bool { return r.Outcome == OutcomeViolation }

// Advisory reports whether the result should inform but not block.
func (r Result) Advisory() bool { return r.Outcome == OutcomeWarning }

// FirstBlocking returns the first violation in a set of results, if any.
func FirstBlocking(results ...Result) (Result, bool) {
	for _, r := range results {
		if r.Blocking() {
			return r, true
		}
	}
	return Result{}, false
}
