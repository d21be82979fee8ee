package timeentrieshandler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"timeledger/internal/domain/auth"
	"timeledger/internal/domain/timeentries"
	"timeledger/internal/transport/http/api"
	"timeledger/internal/transport/http/middleware"
	"timeledger/internal/transport/http/shared"
)

type TimeService interface {
	List(ctx context.Context, session auth.Session, filter timeentries.Filter) ([]timeentries.Entry, int, error)
	Get(ctx context.Context, session auth.Session, id string) (timeentries.Entry, error)
	Create(ctx context.Context, session auth.Session, in timeentries.Input) (timeentries.Entry, error)
	Update(ctx context.Context, session auth.Session, id string, patch timeentries.Patch) (timeentries.Entry, error)
	Complete(ctx context.Context, session auth.Session, id string, end *time.Time) (timeentries.Entry, error)
	Delete(ctx context.Context, session auth.Session, id string) error
}

type Handler struct {
	Entries TimeService
	Audit   shared.Auditor
	Perms   middleware.PermissionStore
}

func NewHandler(service TimeService, auditor shared.Auditor, perms middleware.PermissionStore) *Handler {
	return &Handler{Entries: service, Audit: auditor, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/time-entries", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermTimeRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermTimeWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermTimeRead, h.Perms)).Get("/{entryID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermTimeWrite, h.Perms)).Patch("/{entryID}", h.handleUpdate)
		r.With(middleware.RequirePermission(auth.PermTimeWrite, h.Perms)).Post("/{entryID}/complete", h.handleComplete)
		r.With(middleware.RequirePermission(auth.PermTimeWrite, h.Perms)).Delete("/{entryID}", h.handleDelete)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	page := shared.ParsePagination(r, 100, 500)
	filter := timeentries.Filter{
		UserID: strings.TrimSpace(query.Get("user_id")),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	v := shared.NewValidator()
	v.UUID("user_id", filter.UserID)
	if raw := query.Get("from"); raw != "" {
		if from, ok := v.Date("from", raw); ok {
			filter.From = &from
		}
	}
	if raw := query.Get("to"); raw != "" {
		if to, ok := v.Date("to", raw); ok {
			filter.To = &to
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	items, total, err := h.Entries.List(r.Context(), session, filter)
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
	var payload timeentries.Input
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.Fail(w, r, err)
		return
	}
	entry, err := h.Entries.Create(r.Context(), session, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, session, "time_entry.create", "time_entry", entry.ID, nil, entry)
	api.Created(w, entry, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	entry, err := h.Entries.Get(r.Context(), session, chi.URLParam(r, "entryID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, entry, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	var payload timeentries.Patch
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.Fail(w, r, err)
		return
	}
	entryID := chi.URLParam(r, "entryID")
	before, err := h.Entries.Get(r.Context(), session, entryID)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	entry, err := h.Entries.Update(r.Context(), session, entryID, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, session, "time_entry.update", "time_entry", entry.ID, before, entry)
	api.Success(w, entry, middleware.GetRequestID(r.Context()))
}

// handleComplete stops a running timer. The body is optional; without an
// end_time the timer stops now.
func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	var payload struct {
		EndTime *time.Time `json:"end_time"`
	}
	if r.ContentLength != 0 {
		if err := shared.DecodeJSON(r, &payload); err != nil {
			shared.Fail(w, r, err)
			return
		}
	}
	entry, err := h.Entries.Complete(r.Context(), session, chi.URLParam(r, "entryID"), payload.EndTime)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, session, "time_entry.complete", "time_entry", entry.ID, nil, entry)
	api.Success(w, entry, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	entryID := chi.URLParam(r, "entryID")
	before, err := h.Entries.Get(r.Context(), session, entryID)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	if err := h.Entries.Delete(r.Context(), session, entryID); err != nil {
		shared.Fail(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, session, "time_entry.delete", "time_entry", entryID, before, nil)
	api.Success(w, map[string]string{"id": entryID, "status": "deleted"}, middleware.GetRequestID(r.Context()))
}
