/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the policy engine via REST. Handlers parse HTTP, fetch what
  the pure rule packages need (calendar window, history, balances),
  run the rules, and persist outcomes through the store interfaces.

ENDPOINTS:
  Members:
    GET    /api/members                      List active members
    POST   /api/members                      Register a member
    GET    /api/members/{id}                 Get one member
    GET    /api/members/{id}/applications    Application history
    GET    /api/members/{id}/balances        Balances for a year
    GET    /api/members/{id}/eligibility     Tenure eligibility per kind
    POST   /api/members/{id}/encashment      Earned-leave encashment check

  Applications:
    POST   /api/applications                 Submit (validates, persists)
    POST   /api/applications/validate        Dry-run validation only
    GET    /api/applications/{id}            Get one application
    GET    /api/applications/{id}/approvals  Approval history
    POST   /api/applications/{id}/actions    Chain action (forward/approve/reject)
    POST   /api/applications/{id}/return     Record return to duty

  Holidays:
    GET    /api/holidays                     List holidays in a range
    POST   /api/holidays                     Register a holiday

  Admin:
    POST   /api/admin/jobs/accrual           Run monthly accrual
    POST   /api/admin/jobs/lapse             Run casual-leave lapse
    POST   /api/admin/jobs/overstay          Run overstay check
    GET    /api/admin/audit                  Query the audit log

ERROR MAPPING:
  400  malformed input (dates, kinds, JSON)
  403  chain authorization failures (leave.IsAuthorization)
  404  missing records (leave.IsNotFound)
  409  version conflicts (leave.IsRetryable)
  422  hard policy violations on submit
  500  everything else

SEE ALSO:
  - dto.go:    Wire shapes and JSON helpers
  - server.go: Router and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cdbl/leave-engine/calendar"
	"github.com/cdbl/leave-engine/jobs"
	"github.com/cdbl/leave-engine/leave"
	"github.com/cdbl/leave-engine/policy"
	"github.com/cdbl/leave-engine/store"
	"github.com/cdbl/leave-engine/validation"
	"github.com/cdbl/leave-engine/workflow"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the full persistence surface the handlers need. Both the
// memory and sqlite implementations satisfy it.
type Store interface {
	store.MemberStore
	store.HolidayStore
	store.BalanceStore
	store.LeaveStore
	store.AuditLog
	AddMember(ctx context.Context, m store.Member) error
}

// Handler holds all dependencies for the HTTP handlers.
type Handler struct {
	Store    Store
	Calendar *calendar.Calendar
	Rules    policy.Config
	Chains   *workflow.Table
	Log      *zap.Logger

	// Now is injectable for tests; defaults to the calendar's today.
	Now func() calendar.Date
}

// NewHandler wires a handler with the default clock.
func NewHandler(s Store, cal *calendar.Calendar, rules policy.Config, chains *workflow.Table, log *zap.Logger) *Handler {
	return &Handler{
		Store:    s,
		Calendar: cal,
		Rules:    rules,
		Chains:   chains,
		Log:      log,
		Now:      cal.Today,
	}
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.ListActiveMembers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list members", err)
		return
	}

	dtos := make([]MemberDTO, 0, len(members))
	for _, m := range members {
		dtos = append(dtos, memberDTO(string(m.ID), m.Name, m.JoinDate, m.Active))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	join, err := parseDate(req.JoinDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid joinDate", err)
		return
	}

	m := store.Member{ID: leave.MemberID(req.ID), Name: req.Name, JoinDate: join, Active: true}
	if err := h.Store.AddMember(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create member", err)
		return
	}
	writeJSON(w, http.StatusCreated, memberDTO(req.ID, req.Name, join, true))
}

func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	id := leave.MemberID(chi.URLParam(r, "id"))
	m, err := h.Store.GetMember(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "failed to get member", err)
		return
	}
	writeJSON(w, http.StatusOK, memberDTO(string(m.ID), m.Name, m.JoinDate, m.Active))
}

// ListMemberApplications returns a member's applications overlapping the
// requested year (default: the current year).
func (h *Handler) ListMemberApplications(w http.ResponseWriter, r *http.Request) {
	id := leave.MemberID(chi.URLParam(r, "id"))
	year := h.yearParam(r)

	apps, err := h.Store.ApplicationsByMember(r.Context(), id,
		calendar.StartOfYear(year), calendar.EndOfYear(year))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list applications", err)
		return
	}

	dtos := make([]ApplicationDTO, 0, len(apps))
	for _, app := range apps {
		working, err := h.workingDays(r.Context(), app.StartDate, app.EndDate)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to count working days", err)
			return
		}
		dtos = append(dtos, applicationDTO(app, working))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListMemberBalances(w http.ResponseWriter, r *http.Request) {
	id := leave.MemberID(chi.URLParam(r, "id"))
	year := h.yearParam(r)

	dtos := make([]BalanceDTO, 0, len(leave.Kinds))
	for _, kind := range leave.Kinds {
		b, err := store.BalanceOrZero(r.Context(), h.Store, id, kind, year)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to get balance", err)
			return
		}
		dtos = append(dtos, balanceDTO(b))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MemberEligibility answers the tenure gate for every kind at once.
func (h *Handler) MemberEligibility(w http.ResponseWriter, r *http.Request) {
	id := leave.MemberID(chi.URLParam(r, "id"))
	m, err := h.Store.GetMember(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "failed to get member", err)
		return
	}

	today := h.Now()
	dtos := make([]EligibilityDTO, 0, len(leave.Kinds))
	for _, kind := range leave.Kinds {
		e := h.Rules.CheckEligibility(kind, m.JoinDate, today)
		dtos = append(dtos, EligibilityDTO{
			Kind:          kind.String(),
			Eligible:      e.Eligible,
			Reason:        e.Reason,
			RequiredYears: e.RequiredYears,
			ServiceYears:  e.ServiceYears,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CheckEncashment validates an earned-leave encashment request against
// the member's current balance.
func (h *Handler) CheckEncashment(w http.ResponseWriter, r *http.Request) {
	id := leave.MemberID(chi.URLParam(r, "id"))
	var req EncashmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	year := req.Year
	if year == 0 {
		year = h.Now().Year()
	}

	b, err := store.BalanceOrZero(r.Context(), h.Store, id, leave.KindEarned, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get balance", err)
		return
	}

	enc := h.Rules.EncashmentCheck(b.Remaining(), req.Days)
	writeJSON(w, http.StatusOK, EncashmentDTO{
		Valid:            enc.Valid,
		Reason:           enc.Reason,
		MaxEncashable:    enc.MaxEncashable.String(),
		RemainingBalance: enc.RemainingBalance.String(),
	})
}

// =============================================================================
// APPLICATION HANDLERS
// =============================================================================

// SubmitApplication validates a request and, when no rule blocks it,
// persists the application in SUBMITTED at chain step 1.
func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, true)
}

// ValidateApplication runs the same rules as submission without
// persisting anything.
func (h *Handler) ValidateApplication(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, false)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, persist bool) {
	var req SubmitApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	parsed, err := h.parseSubmission(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid submission", err)
		return
	}

	results, err := h.validateSubmission(r.Context(), parsed)
	if err != nil {
		h.writeStoreError(w, "validation failed", err)
		return
	}

	vdto := validationDTO(results)
	if !vdto.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, SubmitResponse{Validation: vdto})
		return
	}

	app := leave.Application{
		ID:             leave.ApplicationID(uuid.NewString()),
		MemberID:       parsed.member.ID,
		Kind:           parsed.kind,
		StartDate:      parsed.start,
		EndDate:        parsed.end,
		Status:         leave.StatusSubmitted,
		CurrentStep:    1,
		Reason:         req.Reason,
		CertificateRef: req.CertificateRef,
	}

	working, err := h.workingDays(r.Context(), app.StartDate, app.EndDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count working days", err)
		return
	}

	if !persist {
		dto := applicationDTO(app, working)
		dto.ID = "" // dry run, nothing persisted
		writeJSON(w, http.StatusOK, SubmitResponse{Application: &dto, Validation: vdto})
		return
	}

	if err := h.Store.CreateApplication(r.Context(), app); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create application", err)
		return
	}

	h.Log.Info("application submitted",
		zap.String("application", string(app.ID)),
		zap.String("member", string(app.MemberID)),
		zap.String("kind", app.Kind.String()))

	dto := applicationDTO(app, working)
	writeJSON(w, http.StatusCreated, SubmitResponse{Application: &dto, Validation: vdto})
}

func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	id := leave.ApplicationID(chi.URLParam(r, "id"))
	app, err := h.Store.GetApplication(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "failed to get application", err)
		return
	}
	working, err := h.workingDays(r.Context(), app.StartDate, app.EndDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count working days", err)
		return
	}
	writeJSON(w, http.StatusOK, applicationDTO(app, working))
}

func (h *Handler) ListApprovals(w http.ResponseWriter, r *http.Request) {
	id := leave.ApplicationID(chi.URLParam(r, "id"))
	recs, err := h.Store.ApprovalsFor(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list approvals", err)
		return
	}

	dtos := make([]ApprovalDTO, 0, len(recs))
	for _, rec := range recs {
		dto := ApprovalDTO{
			Step:       rec.Step,
			ApproverID: string(rec.ApproverID),
			Decision:   string(rec.Decision),
			ToRole:     rec.ToRole,
			Comment:    rec.Comment,
		}
		if rec.DecidedAt != nil {
			dto.DecidedAt = rec.DecidedAt.UTC().Format(time.RFC3339)
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ChainAction applies a forward/approve/reject to an application.
// On approval the working-day cost is charged to the member's balance.
func (h *Handler) ChainAction(w http.ResponseWriter, r *http.Request) {
	id := leave.ApplicationID(chi.URLParam(r, "id"))
	var req ChainActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	app, err := h.Store.GetApplication(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "failed to get application", err)
		return
	}

	role := workflow.Role(req.Role)
	action := workflow.Action(req.Action)

	// Forwarding names its target explicitly; chain-skipping is rejected
	// before the transition is computed.
	if action == workflow.ActionForward && req.ToRole != "" {
		if !h.Chains.CanForwardTo(role, workflow.Role(req.ToRole), app.Kind) {
			writeError(w, http.StatusForbidden, "invalid forward target", leave.ErrInvalidForwardTarget)
			return
		}
	}

	tr, rec, err := h.Chains.ApplyTo(app, role, action, leave.MemberID(req.ApproverID))
	if err != nil {
		if leave.IsAuthorization(err) {
			writeError(w, http.StatusForbidden, "action not permitted", err)
			return
		}
		writeError(w, http.StatusConflict, "action rejected", err)
		return
	}

	now := time.Now()
	rec.DecidedAt = &now
	rec.Comment = req.Comment
	if err := h.Store.AppendApproval(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record approval", err)
		return
	}
	if err := h.Store.SetStatus(r.Context(), app.ID, tr.NextStatus, tr.NextStep); err != nil {
		h.writeStoreError(w, "failed to update application", err)
		return
	}

	if tr.NextStatus == leave.StatusApproved {
		if err := h.chargeBalance(r.Context(), app); err != nil {
			// The approval stands; the balance charge is reported for
			// operator follow-up.
			h.Log.Error("balance charge failed after approval",
				zap.String("application", string(app.ID)), zap.Error(err))
		}
	}

	h.appendActionAudit(r.Context(), app, req, tr)

	app.Status = tr.NextStatus
	app.CurrentStep = tr.NextStep
	working, err := h.workingDays(r.Context(), app.StartDate, app.EndDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count working days", err)
		return
	}
	writeJSON(w, http.StatusOK, applicationDTO(app, working))
}

// RecordReturn registers a return-to-duty attestation; an approved leave
// with one is not flagged by the overstay job.
func (h *Handler) RecordReturn(w http.ResponseWriter, r *http.Request) {
	id := leave.ApplicationID(chi.URLParam(r, "id"))
	var req ReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	returned, err := parseDate(req.ReturnedOn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid returnedOn", err)
		return
	}

	if _, err := h.Store.GetApplication(r.Context(), id); err != nil {
		h.writeStoreError(w, "failed to get application", err)
		return
	}

	rec := leave.ReturnRecord{
		ApplicationID: id,
		MemberID:      leave.MemberID(req.MemberID),
		ReturnedOn:    returned,
		RecordedBy:    leave.MemberID(req.RecordedBy),
	}
	if err := h.Store.AddReturnRecord(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record return", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := h.yearParam(r)
	holidays, err := h.Store.HolidaysInRange(r.Context(), calendar.StartOfYear(year), calendar.EndOfYear(year))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list holidays", err)
		return
	}

	type holidayDTO struct {
		Date string `json:"date"`
		Name string `json:"name"`
	}
	dtos := make([]holidayDTO, 0, len(holidays))
	for _, hd := range holidays {
		dtos = append(dtos, holidayDTO{Date: hd.Date.ISO(), Name: hd.Name})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	d, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}
	if err := h.Store.AddHoliday(r.Context(), calendar.Holiday{Date: d, Name: req.Name}); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create holiday", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

func (h *Handler) RunAccrual(w http.ResponseWriter, r *http.Request) {
	var req AccrualJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Month < 1 || req.Month > 12 {
		writeError(w, http.StatusBadRequest, "month must be 1-12", nil)
		return
	}

	job := &jobs.AccrualJob{
		Members: h.Store, Balances: h.Store, Leaves: h.Store,
		Audit: h.Store, Rules: h.Rules, Log: h.Log,
	}
	outcomes, err := job.Run(r.Context(), req.Year, time.Month(req.Month))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "accrual run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, outcomes)
}

func (h *Handler) RunLapse(w http.ResponseWriter, r *http.Request) {
	var req LapseJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	job := &jobs.LapseJob{Balances: h.Store, Audit: h.Store, Rules: h.Rules, Log: h.Log}
	outcomes, err := job.Run(r.Context(), req.Year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lapse run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, outcomes)
}

func (h *Handler) RunOverstay(w http.ResponseWriter, r *http.Request) {
	var req OverstayJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	checkDate := h.Now()
	if req.CheckDate != "" {
		d, err := parseDate(req.CheckDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid checkDate", err)
			return
		}
		checkDate = d
	}

	job := &jobs.OverstayJob{Leaves: h.Store, Audit: h.Store, Log: h.Log}
	outcomes, err := job.Run(r.Context(), checkDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "overstay run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, outcomes)
}

func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	filter := store.AuditFilter{
		ActorID:  r.URL.Query().Get("actor"),
		TargetID: r.URL.Query().Get("target"),
		Limit:    100,
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if a := r.URL.Query().Get("action"); a != "" {
		filter.Actions = []leave.AuditAction{leave.AuditAction(a)}
	}

	entries, err := h.Store.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query audit log", err)
		return
	}

	dtos := make([]AuditEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, AuditEntryDTO{
			ID:        e.ID,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			ActorID:   e.ActorID,
			Action:    string(e.Action),
			TargetID:  e.TargetID,
			Details:   e.Details,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SUBMISSION VALIDATION
// =============================================================================

// parsedSubmission is a submission after boundary parsing and lookups.
type parsedSubmission struct {
	member   store.Member
	kind     leave.Kind
	start    calendar.Date
	end      calendar.Date
	incident calendar.Date
	hasCert  bool
}

func (h *Handler) parseSubmission(ctx context.Context, req SubmitApplicationRequest) (parsedSubmission, error) {
	var p parsedSubmission
	var err error

	if p.kind, err = leave.ParseKind(req.Kind); err != nil {
		return p, err
	}
	if p.start, err = parseDate(req.StartDate); err != nil {
		return p, err
	}
	if p.end, err = parseDate(req.EndDate); err != nil {
		return p, err
	}
	if p.start.After(p.end) {
		return p, errStartAfterEnd
	}
	if req.IncidentDate != "" {
		if p.incident, err = parseDate(req.IncidentDate); err != nil {
			return p, err
		}
	}
	p.hasCert = req.CertificateRef != nil

	if p.member, err = h.Store.GetMember(ctx, leave.MemberID(req.MemberID)); err != nil {
		return p, err
	}
	return p, nil
}

// validateSubmission runs the full rule set for the submission's kind.
// Rule order matches the statutory checklist: tenure, backdate, notice,
// then kind-specific rules.
func (h *Handler) validateSubmission(ctx context.Context, p parsedSubmission) ([]validation.Result, error) {
	today := h.Now()
	var results []validation.Result

	if e := h.Rules.CheckEligibility(p.kind, p.member.JoinDate, today); !e.Eligible {
		results = append(results, validation.Violate("service_eligibility", "%s", e.Reason))
	} else {
		results = append(results, validation.Ok("service_eligibility"))
	}

	results = append(results,
		validation.BackdateLimit(h.Rules, p.kind, today, p.start),
		validation.NoticeWarning(h.Rules, p.kind, today, p.start))

	totalDays := calendar.TotalCalendarDaysInclusive(p.start, p.end)

	switch p.kind {
	case leave.KindCasual:
		r, err := h.validateCasual(ctx, p, today)
		if err != nil {
			return nil, err
		}
		results = append(results, r...)

	case leave.KindMedical:
		results = append(results, validation.MedicalCertificate(h.Rules, totalDays, p.hasCert))

	case leave.KindMaternity:
		ent := h.Rules.MaternityDays(p.member.JoinDate, p.start)
		if totalDays > ent.Days {
			results = append(results, validation.Violate("maternity_entitlement",
				"maternity entitlement is %d days (%.1f service months); requested %d",
				ent.Days, ent.ServiceMonths, totalDays))
		} else {
			results = append(results, validation.Ok("maternity_entitlement"))
		}

	case leave.KindPaternity:
		history, err := h.Store.ApplicationsByMemberKind(ctx, p.member.ID, leave.KindPaternity)
		if err != nil {
			return nil, err
		}
		var occasions []validation.Occasion
		for _, prior := range history {
			if prior.Status == leave.StatusApproved {
				occasions = append(occasions, validation.Occasion{
					StartDate: prior.StartDate, EndDate: prior.EndDate,
				})
			}
		}
		results = append(results, validation.PaternityEligibility(h.Rules, occasions, p.start))

	case leave.KindQuarantine:
		q := h.Rules.QuarantineDurationCheck(totalDays)
		switch {
		case !q.Valid:
			results = append(results, validation.Violate("quarantine_duration",
				"quarantine leave may not exceed %d days even with exceptional approval",
				h.Rules.QuarantineExceptionalMaxDays))
		case q.RequiresExceptionalApproval:
			results = append(results, validation.Warn("quarantine_duration",
				"quarantine beyond %d days requires exceptional approval",
				h.Rules.QuarantineNormalMaxDays))
		default:
			results = append(results, validation.Ok("quarantine_duration"))
		}

	case leave.KindExtraordinary:
		r, err := h.validateExtraordinary(ctx, p, today, totalDays)
		if err != nil {
			return nil, err
		}
		results = append(results, r...)

	case leave.KindStudy:
		history, err := h.Store.ApplicationsByMemberKind(ctx, p.member.ID, leave.KindStudy)
		if err != nil {
			return nil, err
		}
		previous := 0
		for _, prior := range history {
			if prior.Status == leave.StatusApproved {
				previous += calendar.TotalCalendarDaysInclusive(prior.StartDate, prior.EndDate)
			}
		}
		sd := h.Rules.StudyLeaveDurationCheck(totalDays, previous)
		switch {
		case !sd.Valid && sd.IsExtension:
			results = append(results, validation.Violate("study_duration",
				"cumulative study leave may not exceed %d days; total would be %d",
				h.Rules.StudyCumulativeMaxDays, sd.TotalDays))
		case !sd.Valid:
			results = append(results, validation.Violate("study_duration",
				"initial study leave may not exceed %d days", h.Rules.StudyInitialMaxDays))
		case sd.RequiresBoardApproval:
			results = append(results, validation.Warn("study_duration",
				"study leave extension requires board approval"))
		default:
			results = append(results, validation.Ok("study_duration"))
		}

	case leave.KindSpecialDisability:
		if p.incident.IsZero() {
			results = append(results, validation.Violate("incident_window",
				"special disability leave requires an incident date"))
		} else {
			iw := validation.IncidentWindow(h.Rules, p.incident, p.start, today)
			results = append(results, iw.Result)
		}
	}

	return results, nil
}

func (h *Handler) validateCasual(ctx context.Context, p parsedSubmission, today calendar.Date) ([]validation.Result, error) {
	// The adjacency rule inspects one day on each side of the range.
	holidays, err := h.holidaySet(ctx, p.start.AddDays(-1), p.end.AddDays(1))
	if err != nil {
		return nil, err
	}

	history, err := h.Store.ApplicationsByMember(ctx, p.member.ID,
		p.start.AddDays(-1), p.end.AddDays(1))
	if err != nil {
		return nil, err
	}

	used, err := h.casualUsedThisYear(ctx, p.member.ID, today.Year())
	if err != nil {
		return nil, err
	}

	comb := validation.CasualCombination(p.start, p.end, history)
	overflow := validation.AnnualLimitOverflow(h.Rules, leave.KindCasual, used,
		calendar.TotalCalendarDaysInclusive(p.start, p.end))

	return []validation.Result{
		validation.CasualAdjacency(h.Calendar, holidays, p.start, p.end),
		comb.Result,
		validation.CasualDuration(h.Rules, p.start, p.end),
		overflow.Result,
	}, nil
}

func (h *Handler) validateExtraordinary(ctx context.Context, p parsedSubmission, today calendar.Date, totalDays int) ([]validation.Result, error) {
	remaining := make(map[leave.Kind]decimal.Decimal)
	for kind := range h.Rules.PrerequisiteResiduals {
		b, err := store.BalanceOrZero(ctx, h.Store, p.member.ID, kind, today.Year())
		if err != nil {
			return nil, err
		}
		remaining[kind] = b.Remaining()
	}

	pre := validation.ExtraordinaryPrerequisite(h.Rules, remaining)

	var dur validation.Result
	ed := h.Rules.ExtraordinaryDurationCheck(totalDays, p.member.JoinDate, p.start)
	if ed.Valid {
		dur = validation.Ok("extraordinary_duration")
	} else {
		dur = validation.Violate("extraordinary_duration",
			"extraordinary leave may not exceed %d days at this tenure; requested %d",
			ed.MaxAllowed, totalDays)
	}

	return []validation.Result{pre.Result, dur}, nil
}

// casualUsedThisYear sums the total days of the member's active casual
// leaves in the year.
func (h *Handler) casualUsedThisYear(ctx context.Context, member leave.MemberID, year int) (decimal.Decimal, error) {
	apps, err := h.Store.ApplicationsByMember(ctx, member,
		calendar.StartOfYear(year), calendar.EndOfYear(year))
	if err != nil {
		return decimal.Zero, err
	}
	used := decimal.Zero
	for _, app := range apps {
		if app.Kind == leave.KindCasual && app.Status.Active() {
			used = used.Add(decimal.NewFromInt(int64(
				calendar.TotalCalendarDaysInclusive(app.StartDate, app.EndDate))))
		}
	}
	return used, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

var errStartAfterEnd = errors.New("startDate is after endDate")

func (h *Handler) holidaySet(ctx context.Context, from, to calendar.Date) (calendar.HolidaySet, error) {
	holidays, err := h.Store.HolidaysInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return calendar.NewHolidaySet(holidays), nil
}

func (h *Handler) workingDays(ctx context.Context, from, to calendar.Date) (int, error) {
	holidays, err := h.holidaySet(ctx, from, to)
	if err != nil {
		return 0, err
	}
	return h.Calendar.CountWorkingDays(from, to, holidays), nil
}

// chargeBalance debits the working-day cost of an approved leave from
// the member's balance for the start year.
func (h *Handler) chargeBalance(ctx context.Context, app leave.Application) error {
	working, err := h.workingDays(ctx, app.StartDate, app.EndDate)
	if err != nil {
		return err
	}

	year := app.StartDate.Year()
	b, err := h.Store.GetBalance(ctx, app.MemberID, app.Kind, year)
	if leave.IsNotFound(err) {
		b = leave.Balance{MemberID: app.MemberID, Kind: app.Kind, Year: year}
		b.Used = decimal.NewFromInt(int64(working))
		b.Recompute()
		return h.Store.PutBalance(ctx, b)
	}
	if err != nil {
		return err
	}

	b.Used = b.Used.Add(decimal.NewFromInt(int64(working)))
	b.Recompute()
	return h.Store.UpdateBalance(ctx, b)
}

func (h *Handler) appendActionAudit(ctx context.Context, app leave.Application, req ChainActionRequest, tr workflow.Transition) {
	var action leave.AuditAction
	switch tr.Decision {
	case leave.DecisionForwarded:
		action = leave.AuditActionForwarded
	case leave.DecisionApproved:
		action = leave.AuditActionApproved
	case leave.DecisionRejected:
		action = leave.AuditActionRejected
	default:
		return
	}

	entry := leave.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		ActorID:   req.ApproverID,
		Action:    action,
		TargetID:  string(app.ID),
		Details: map[string]any{
			"role":   req.Role,
			"kind":   app.Kind.String(),
			"member": string(app.MemberID),
		},
	}
	if err := h.Store.Append(ctx, entry); err != nil {
		h.Log.Warn("audit append failed", zap.Error(err))
	}
}

func (h *Handler) yearParam(r *http.Request) int {
	if y := r.URL.Query().Get("year"); y != "" {
		if n, err := strconv.Atoi(y); err == nil {
			return n
		}
	}
	return h.Now().Year()
}

func (h *Handler) writeStoreError(w http.ResponseWriter, msg string, err error) {
	switch {
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, msg, err)
	case leave.IsRetryable(err):
		writeError(w, http.StatusConflict, msg, err)
	default:
		writeError(w, http.StatusInternalServerError, msg, err)
	}
}
