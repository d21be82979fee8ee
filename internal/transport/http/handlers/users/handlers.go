package usershandler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"timeledger/internal/domain/auth"
	"timeledger/internal/domain/users"
	"timeledger/internal/transport/http/api"
	"timeledger/internal/transport/http/middleware"
	"timeledger/internal/transport/http/shared"
)

type UserService interface {
	List(ctx context.Context, session auth.Session, filter users.Filter) ([]users.User, int, error)
	Get(ctx context.Context, session auth.Session, id string) (users.User, error)
	Create(ctx context.Context, session auth.Session, in users.Input) (users.User, error)
	SetStatus(ctx context.Context, session auth.Session, id, status string) (users.User, error)
}

type Handler struct {
	Users UserService
	Audit shared.Auditor
	Perms middleware.PermissionStore
}

func NewHandler(service UserService, auditor shared.Auditor, perms middleware.PermissionStore) *Handler {
	return &Handler{Users: service, Audit: auditor, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermUsersRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermUsersWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermUsersRead, h.Perms)).Get("/{userID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermUsersWrite, h.Perms)).Patch("/{userID}/status", h.handleSetStatus)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	page := shared.ParsePagination(r, 100, 500)
	items, total, err := h.Users.List(r.Context(), session, users.Filter{
		Status:   strings.TrimSpace(r.URL.Query().Get("status")),
		RateType: strings.TrimSpace(r.URL.Query().Get("rate_type")),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	var payload users.Input
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.Fail(w, r, err)
		return
	}

	user, err := h.Users.Create(r.Context(), session, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, session, "user.create", "user", user.ID, nil, user)
	api.Created(w, user, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	user, err := h.Users.Get(r.Context(), session, chi.URLParam(r, "userID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, user, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.Fail(w, r, err)
		return
	}

	userID := chi.URLParam(r, "userID")
	before, err := h.Users.Get(r.Context(), session, userID)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	user, err := h.Users.SetStatus(r.Context(), session, userID, payload.Status)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, session, "user.status", "user", user.ID,
		map[string]string{"status": before.Status}, map[string]string{"status": user.Status})
	api.Success(w, user, middleware.GetRequestID(r.Context()))
}
