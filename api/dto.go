/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Wire-level shapes only. Dates travel as YYYY-MM-DD strings and are
  parsed into calendar.Date at the boundary; decimals travel as strings
  to avoid float rounding in clients.

SEE ALSO:
  - handlers.go: Parsing and serialization at the handler boundary
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cdbl/leave-engine/calendar"
	"github.com/cdbl/leave-engine/leave"
	"github.com/cdbl/leave-engine/validation"
)

// =============================================================================
// REQUESTS
// =============================================================================

// CreateMemberRequest registers a roster member.
type CreateMemberRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	JoinDate string `json:"joinDate"` // YYYY-MM-DD
}

// CreateHolidayRequest registers a holiday.
type CreateHolidayRequest struct {
	Date string `json:"date"` // YYYY-MM-DD
	Name string `json:"name"`
}

// SubmitApplicationRequest submits (or dry-run validates) a leave request.
type SubmitApplicationRequest struct {
	MemberID  string `json:"memberId"`
	Kind      string `json:"kind"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Reason    string `json:"reason,omitempty"`

	// Medical leave only.
	CertificateRef *string `json:"certificateRef,omitempty"`

	// Special disability leave only.
	IncidentDate string `json:"incidentDate,omitempty"`
}

// ChainActionRequest is an approval-chain action on an application.
type ChainActionRequest struct {
	Role       string `json:"role"`
	Action     string `json:"action"`
	ApproverID string `json:"approverId"`
	ToRole     string `json:"toRole,omitempty"`
	Comment    string `json:"comment,omitempty"`
}

// ReturnRequest records a return to duty after an approved leave.
type ReturnRequest struct {
	MemberID   string `json:"memberId"`
	ReturnedOn string `json:"returnedOn"`
	RecordedBy string `json:"recordedBy"`
}

// EncashmentRequest checks an earned-leave encashment.
type EncashmentRequest struct {
	Days int `json:"days"`
	Year int `json:"year"`
}

// AccrualJobRequest triggers a monthly accrual run.
type AccrualJobRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"` // 1-12
}

// LapseJobRequest triggers a casual-leave lapse run.
type LapseJobRequest struct {
	Year int `json:"year"`
}

// OverstayJobRequest triggers an overstay check.
type OverstayJobRequest struct {
	CheckDate string `json:"checkDate,omitempty"` // defaults to today
}

// =============================================================================
// RESPONSES
// =============================================================================

// MemberDTO is a roster member on the wire.
type MemberDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	JoinDate string `json:"joinDate"`
	Active   bool   `json:"active"`
}

// ApplicationDTO is a leave application on the wire.
type ApplicationDTO struct {
	ID          string  `json:"id"`
	MemberID    string  `json:"memberId"`
	Kind        string  `json:"kind"`
	StartDate   string  `json:"startDate"`
	EndDate     string  `json:"endDate"`
	Status      string  `json:"status"`
	CurrentStep int     `json:"currentStep"`
	Reason      string  `json:"reason,omitempty"`
	WorkingDays int     `json:"workingDays"`
	TotalDays   int     `json:"totalDays"`
	Certificate *string `json:"certificateRef,omitempty"`
	FitnessCert *string `json:"fitnessCertificateRef,omitempty"`
}

// CheckDTO is one validation rule's outcome on the wire.
type CheckDTO struct {
	Rule    string `json:"rule"`
	Outcome string `json:"outcome"` // ok | violation | warning
	Reason  string `json:"reason,omitempty"`
}

// ValidationDTO aggregates a request's rule outcomes.
type ValidationDTO struct {
	Valid    bool       `json:"valid"`
	Checks   []CheckDTO `json:"checks"`
	Warnings []CheckDTO `json:"warnings,omitempty"`
}

// SubmitResponse is the outcome of an application submission.
type SubmitResponse struct {
	Application *ApplicationDTO `json:"application,omitempty"`
	Validation  ValidationDTO   `json:"validation"`
}

// BalanceDTO is a leave balance on the wire.
type BalanceDTO struct {
	MemberID string `json:"memberId"`
	Kind     string `json:"kind"`
	Year     int    `json:"year"`
	Opening  string `json:"opening"`
	Accrued  string `json:"accrued"`
	Used     string `json:"used"`
	Closing  string `json:"closing"`
}

// ApprovalDTO is one approval-history step on the wire.
type ApprovalDTO struct {
	Step       int    `json:"step"`
	ApproverID string `json:"approverId"`
	Decision   string `json:"decision"`
	ToRole     string `json:"toRole,omitempty"`
	DecidedAt  string `json:"decidedAt,omitempty"`
	Comment    string `json:"comment,omitempty"`
}

// EligibilityDTO is a tenure-eligibility answer.
type EligibilityDTO struct {
	Kind          string  `json:"kind"`
	Eligible      bool    `json:"eligible"`
	Reason        string  `json:"reason,omitempty"`
	RequiredYears float64 `json:"requiredYears"`
	ServiceYears  float64 `json:"serviceYears"`
}

// EncashmentDTO is an encashment-check answer.
type EncashmentDTO struct {
	Valid            bool   `json:"valid"`
	Reason           string `json:"reason,omitempty"`
	MaxEncashable    string `json:"maxEncashable"`
	RemainingBalance string `json:"remainingBalance"`
}

// AuditEntryDTO is one audit entry on the wire.
type AuditEntryDTO struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	ActorID   string         `json:"actorId"`
	Action    string         `json:"action"`
	TargetID  string         `json:"targetId"`
	Details   map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS AND HELPERS
// =============================================================================

func memberDTO(id, name string, join calendar.Date, active bool) MemberDTO {
	return MemberDTO{ID: id, Name: name, JoinDate: join.ISO(), Active: active}
}

func applicationDTO(app leave.Application, workingDays int) ApplicationDTO {
	return ApplicationDTO{
		ID:          string(app.ID),
		MemberID:    string(app.MemberID),
		Kind:        app.Kind.String(),
		StartDate:   app.StartDate.ISO(),
		EndDate:     app.EndDate.ISO(),
		Status:      string(app.Status),
		CurrentStep: app.CurrentStep,
		Reason:      app.Reason,
		WorkingDays: workingDays,
		TotalDays:   calendar.TotalCalendarDaysInclusive(app.StartDate, app.EndDate),
		Certificate: app.CertificateRef,
		FitnessCert: app.FitnessCertificateRef,
	}
}

func balanceDTO(b leave.Balance) BalanceDTO {
	return BalanceDTO{
		MemberID: string(b.MemberID),
		Kind:     b.Kind.String(),
		Year:     b.Year,
		Opening:  b.Opening.String(),
		Accrued:  b.Accrued.String(),
		Used:     b.Used.String(),
		Closing:  b.Closing.String(),
	}
}

func checkDTO(r validation.Result) CheckDTO {
	return CheckDTO{Rule: r.Rule, Outcome: r.Outcome.String(), Reason: r.Reason}
}

func validationDTO(results []validation.Result) ValidationDTO {
	out := ValidationDTO{Valid: true}
	for _, r := range results {
		dto := checkDTO(r)
		out.Checks = append(out.Checks, dto)
		switch {
		case r.Blocking():
			out.Valid = false
		case r.Advisory():
			out.Warnings = append(out.Warnings, dto)
		}
	}
	return out
}

func parseDate(s string) (calendar.Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return calendar.Date{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return calendar.NewDate(t.Year(), t.Month(), t.Day()), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
