package payrollhandler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"timeledger/internal/domain/auth"
	"timeledger/internal/domain/payroll"
	"timeledger/internal/transport/http/api"
	"timeledger/internal/transport/http/middleware"
	"timeledger/internal/transport/http/shared"
)

type PayrollService interface {
	CreatePeriod(ctx context.Context, session auth.Session, in payroll.PeriodInput) (payroll.Period, error)
	GetPeriod(ctx context.Context, session auth.Session, id string) (payroll.Period, error)
	ListPeriods(ctx context.Context, session auth.Session, filter payroll.PeriodFilter) ([]payroll.Period, int, error)
	UpdatePeriod(ctx context.Context, session auth.Session, id string, patch payroll.PeriodPatch) (payroll.Period, error)
	DeletePeriod(ctx context.Context, session auth.Session, id string, confirmed bool) (payroll.Period, error)
	Process(ctx context.Context, session auth.Session, id string) (payroll.ProcessResult, error)
	Approve(ctx context.Context, session auth.Session, id string) (payroll.Period, error)
	Void(ctx context.Context, session auth.Session, id string) (payroll.Period, error)
	MarkPaid(ctx context.Context, session auth.Session, id string) (payroll.Period, error)
	ListEntries(ctx context.Context, session auth.Session, periodID string) ([]payroll.Entry, error)
	AdjustEntry(ctx context.Context, session auth.Session, entryID string, amount decimal.Decimal) (payroll.Entry, error)
	Payslip(ctx context.Context, session auth.Session, entryID string) ([]byte, payroll.Entry, error)
	ListRates(ctx context.Context, session auth.Session, userID string) ([]payroll.PayRate, error)
	ActiveRate(ctx context.Context, session auth.Session, userID string, on time.Time) (payroll.PayRate, error)
	CreateRate(ctx context.Context, session auth.Session, in payroll.RateInput) (payroll.PayRate, error)
}

// Idempotency replays stored responses for repeated Idempotency-Key requests.
type Idempotency interface {
	Lookup(ctx context.Context, key middleware.IdempotencyKey) (json.RawMessage, bool, error)
	Remember(ctx context.Context, key middleware.IdempotencyKey, response json.RawMessage) error
}

type Handler struct {
	Payroll PayrollService
	Audit   shared.Auditor
	Idem    Idempotency
	Perms   middleware.PermissionStore
}

func NewHandler(service PayrollService, auditor shared.Auditor, idem Idempotency, perms middleware.PermissionStore) *Handler {
	return &Handler{Payroll: service, Audit: auditor, Idem: idem, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermRatesRead, h.Perms)).Get("/rates", h.handleListRates)
		r.With(middleware.RequirePermission(auth.PermRatesRead, h.Perms)).Get("/rates/active", h.handleActiveRate)
		r.With(middleware.RequirePermission(auth.PermRatesWrite, h.Perms)).Post("/rates", h.handleCreateRate)

		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/periods", h.handleListPeriods)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/periods", h.handleCreatePeriod)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/periods/{periodID}", h.handleGetPeriod)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Patch("/periods/{periodID}", h.handleUpdatePeriod)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Delete("/periods/{periodID}", h.handleDeletePeriod)
		r.With(middleware.RequirePermission(auth.PermPayrollProcess, h.Perms)).Post("/periods/{periodID}/process", h.handleProcess)
		r.With(middleware.RequirePermission(auth.PermPayrollApprove, h.Perms)).Post("/periods/{periodID}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/periods/{periodID}/void", h.handleVoid)
		r.With(middleware.RequirePermission(auth.PermPayrollPay, h.Perms)).Post("/periods/{periodID}/mark-paid", h.handleMarkPaid)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/periods/{periodID}/entries", h.handleListEntries)

		r.With(middleware.RequirePermission(auth.PermPayrollProcess, h.Perms)).Patch("/entries/{entryID}/adjustment", h.handleAdjustEntry)
		r.With(middleware.RequirePermission(auth.PermPayslipsReadOwn, h.Perms)).Get("/entries/{entryID}/payslip", h.handlePayslip)
	})
}

type periodPayload struct {
	Name       *string            `json:"name"`
	PeriodType *string            `json:"period_type"`
	StartDate  *string            `json:"start_date"`
	EndDate    *string            `json:"end_date"`
	Selection  *payroll.Selection `json:"employee_selection"`
}

type ratePayload struct {
	UserID             string          `json:"user_id"`
	RateType           string          `json:"rate_type"`
	BaseRate           decimal.Decimal `json:"base_rate"`
	Currency           string          `json:"currency"`
	OvertimeMultiplier decimal.Decimal `json:"overtime_multiplier"`
	EffectiveFrom      string          `json:"effective_from"`
}

type adjustmentPayload struct {
	AdjustmentsAmount *decimal.Decimal `json:"adjustments_amount"`
}

func (h *Handler) handleListRates(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	rates, err := h.Payroll.ListRates(r.Context(), session, strings.TrimSpace(r.URL.Query().Get("user_id")))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, rates, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleActiveRate(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	on, err := shared.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "date", Reason: "must be a valid date in YYYY-MM-DD format"}})
		return
	}
	rate, err := h.Payroll.ActiveRate(r.Context(), session, strings.TrimSpace(r.URL.Query().Get("user_id")), on)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, rate, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateRate(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	var payload ratePayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.Fail(w, r, err)
		return
	}

	in := payroll.RateInput{
		UserID:             payload.UserID,
		RateType:           strings.ToLower(strings.TrimSpace(payload.RateType)),
		BaseRate:           payload.BaseRate,
		Currency:           payload.Currency,
		OvertimeMultiplier: payload.OvertimeMultiplier,
	}
	if strings.TrimSpace(payload.EffectiveFrom) != "" {
		v := shared.NewValidator()
		from, _ := v.Date("effective_from", payload.EffectiveFrom)
		if v.Reject(w, middleware.GetRequestID(r.Context())) {
			return
		}
		in.EffectiveFrom = from
	}

	rate, err := h.Payroll.CreateRate(r.Context(), session, in)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, session, "payroll.rate.create", "pay_rate", rate.ID, nil, rate)
	api.Created(w, rate, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	page := shared.ParsePagination(r, 50, 200)
	filter := payroll.PeriodFilter{
		Status:     strings.TrimSpace(query.Get("status")),
		PeriodType: strings.TrimSpace(query.Get("period_type")),
		Limit:      page.Limit,
		Offset:     page.Offset,
	}

	v := shared.NewValidator()
	if raw := query.Get("start_date"); raw != "" {
		if from, ok := v.Date("start_date", raw); ok {
			filter.From = &from
		}
	}
	if raw := query.Get("end_date"); raw != "" {
		if to, ok := v.Date("end_date", raw); ok {
			filter.To = &to
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	periods, total, err := h.Payroll.ListPeriods(r.Context(), session, filter)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, periods, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	var payload periodPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.Fail(w, r, err)
		return
	}

	v := shared.NewValidator()
	in := payroll.PeriodInput{
		Name:       deref(payload.Name),
		PeriodType: deref(payload.PeriodType),
	}
	in.StartDate, _ = v.Date("start_date", deref(payload.StartDate))
	in.EndDate, _ = v.Date("end_date", deref(payload.EndDate))
	if payload.Selection != nil {
		in.Selection = *payload.Selection
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	period, err := h.Payroll.CreatePeriod(r.Context(), session, in)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, session, "payroll.period.create", "payroll_period", period.ID, nil, period)
	api.Created(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	period, err := h.Payroll.GetPeriod(r.Context(), session, chi.URLParam(r, "periodID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdatePeriod(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	periodID := chi.URLParam(r, "periodID")
	var payload periodPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.Fail(w, r, err)
		return
	}

	v := shared.NewValidator()
	patch := payroll.PeriodPatch{
		Name:       payload.Name,
		PeriodType: payload.PeriodType,
		Selection:  payload.Selection,
	}
	if payload.StartDate != nil {
		if start, ok := v.Date("start_date", *payload.StartDate); ok {
			patch.StartDate = &start
		}
	}
	if payload.EndDate != nil {
		if end, ok := v.Date("end_date", *payload.EndDate); ok {
			patch.EndDate = &end
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	before, err := h.Payroll.GetPeriod(r.Context(), session, periodID)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	period, err := h.Payroll.UpdatePeriod(r.Context(), session, periodID, patch)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, session, "payroll.period.update", "payroll_period", period.ID, before, period)
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeletePeriod(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	deleted, err := h.Payroll.DeletePeriod(r.Context(), session, chi.URLParam(r, "periodID"), shared.QueryBool(r, "confirm"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, session, "payroll.period.delete", "payroll_period", deleted.ID, deleted, nil)
	api.Success(w, map[string]string{"id": deleted.ID, "status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	periodID := chi.URLParam(r, "periodID")
	replay, done := h.checkReplay(w, r, session, "payroll.process", periodID)
	if done {
		return
	}

	result, err := h.Payroll.Process(r.Context(), session, periodID)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, session, "payroll.period.process", "payroll_period", periodID, nil, result.Report)
	h.saveReplay(r, replay, result)
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "payroll.period.approve", h.Payroll.Approve)
}

func (h *Handler) handleVoid(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "payroll.period.void", h.Payroll.Void)
}

func (h *Handler) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	periodID := chi.URLParam(r, "periodID")
	replay, done := h.checkReplay(w, r, session, "payroll.mark_paid", periodID)
	if done {
		return
	}

	period, err := h.Payroll.MarkPaid(r.Context(), session, periodID)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, session, "payroll.period.mark_paid", "payroll_period", period.ID, nil, map[string]string{"status": period.Status})
	h.saveReplay(r, replay, period)
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action string, apply func(context.Context, auth.Session, string) (payroll.Period, error)) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	period, err := apply(r.Context(), session, chi.URLParam(r, "periodID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, session, action, "payroll_period", period.ID, nil, map[string]string{"status": period.Status})
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	entries, err := h.Payroll.ListEntries(r.Context(), session, chi.URLParam(r, "periodID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, entries, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAdjustEntry(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	var payload adjustmentPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.Fail(w, r, err)
		return
	}
	if payload.AdjustmentsAmount == nil {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "adjustments_amount", Reason: "required"}})
		return
	}

	entry, err := h.Payroll.AdjustEntry(r.Context(), session, chi.URLParam(r, "entryID"), *payload.AdjustmentsAmount)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, session, "payroll.entry.adjust", "payroll_entry", entry.ID, nil, map[string]any{
		"adjustments_amount": entry.AdjustmentsAmount,
		"net_amount":         entry.NetAmount,
	})
	api.Success(w, entry, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePayslip(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	data, entry, err := h.Payroll.Payslip(r.Context(), session, chi.URLParam(r, "entryID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=payslip-"+entry.ID+".pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("payslip write failed", "entry_id", entry.ID, "err", err)
	}
}

// checkReplay answers from the idempotency store when the key was already
// used for the same period. done reports that a response has been written.
func (h *Handler) checkReplay(w http.ResponseWriter, r *http.Request, session auth.Session, endpoint, periodID string) (middleware.IdempotencyKey, bool) {
	raw := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if raw == "" || h.Idem == nil {
		return middleware.IdempotencyKey{}, false
	}
	key := middleware.IdempotencyKey{
		TenantID:    session.TenantID,
		UserID:      session.UserID,
		Endpoint:    endpoint,
		Key:         raw,
		RequestHash: middleware.RequestHash(r.Method, periodID),
	}
	stored, found, err := h.Idem.Lookup(r.Context(), key)
	if err != nil {
		shared.Fail(w, r, err)
		return middleware.IdempotencyKey{}, true
	}
	if found {
		api.Success(w, stored, middleware.GetRequestID(r.Context()))
		return middleware.IdempotencyKey{}, true
	}
	return key, false
}

func (h *Handler) saveReplay(r *http.Request, key middleware.IdempotencyKey, response any) {
	if key.Key == "" {
		return
	}
	encoded, err := json.Marshal(response)
	if err != nil {
		slog.Warn("idempotency response marshal failed", "endpoint", key.Endpoint, "err", err)
		return
	}
	if err := h.Idem.Remember(r.Context(), key, encoded); err != nil {
		slog.Warn("idempotency save failed", "endpoint", key.Endpoint, "err", err)
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
