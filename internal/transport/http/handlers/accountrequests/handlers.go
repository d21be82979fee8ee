package accountrequestshandler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"timeledger/internal/domain/accountrequests"
	"timeledger/internal/domain/auth"
	"timeledger/internal/transport/http/api"
	"timeledger/internal/transport/http/middleware"
	"timeledger/internal/transport/http/shared"
)

type RequestService interface {
	Submit(ctx context.Context, in accountrequests.Input) (accountrequests.Request, error)
	List(ctx context.Context, session auth.Session, status string, limit, offset int) ([]accountrequests.Request, int, error)
	Get(ctx context.Context, session auth.Session, id string) (accountrequests.Request, error)
	Approve(ctx context.Context, session auth.Session, id string) (accountrequests.Decision, error)
	Reject(ctx context.Context, session auth.Session, id, reason string) (accountrequests.Decision, error)
}

type Handler struct {
	Requests RequestService
	Audit    shared.Auditor
	Perms    middleware.PermissionStore
	// SubmitLimit is the number of public submissions allowed per IP per hour.
	SubmitLimit int
}

func NewHandler(service RequestService, auditor shared.Auditor, perms middleware.PermissionStore, submitLimit int) *Handler {
	return &Handler{Requests: service, Audit: auditor, Perms: perms, SubmitLimit: submitLimit}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/account-requests", func(r chi.Router) {
		r.With(middleware.RateLimit(h.SubmitLimit, time.Hour, middleware.WithKeyFunc(middleware.ClientIPKey))).Post("/", h.handleSubmit)
		r.With(middleware.RequirePermission(auth.PermAccountsReview, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermAccountsReview, h.Perms)).Get("/{requestID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermAccountsReview, h.Perms)).Post("/{requestID}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermAccountsReview, h.Perms)).Post("/{requestID}/reject", h.handleReject)
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload accountrequests.Input
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.Fail(w, r, err)
		return
	}
	req, err := h.Requests.Submit(r.Context(), payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, map[string]string{"id": req.ID, "status": req.Status}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	items, total, err := h.Requests.List(r.Context(), session, r.URL.Query().Get("status"), page.Limit, page.Offset)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	req, err := h.Requests.Get(r.Context(), session, chi.URLParam(r, "requestID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	decision, err := h.Requests.Approve(r.Context(), session, chi.URLParam(r, "requestID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, session, "account_request.approve", "account_request", decision.Request.ID, nil, decision.Request)
	api.Success(w, decision, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	var payload struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := shared.DecodeJSON(r, &payload); err != nil {
			shared.Fail(w, r, err)
			return
		}
	}
	decision, err := h.Requests.Reject(r.Context(), session, chi.URLParam(r, "requestID"), payload.Reason)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, session, "account_request.reject", "account_request", decision.Request.ID, nil, decision.Request)
	api.Success(w, decision, middleware.GetRequestID(r.Context()))
}
