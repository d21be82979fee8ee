package authhandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"timeledger/internal/domain/auth"
	"timeledger/internal/transport/http/api"
	"timeledger/internal/transport/http/middleware"
	"timeledger/internal/transport/http/shared"
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (auth.LoginResult, error)
	Logout(ctx context.Context, session auth.Session, token string) error
	Me(ctx context.Context, session auth.Session) (auth.Profile, error)
}

type Handler struct {
	Service AuthService
	Audit   shared.Auditor
}

func NewHandler(service AuthService, auditor shared.Auditor) *Handler {
	return &Handler{Service: service, Audit: auditor}
}

// RegisterRoutes mounts the auth endpoints. Login throttling comes from
// middleware.SensitiveMutationRateLimit on the API router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.With(middleware.RequireAuth).Post("/logout", h.handleLogout)
		r.With(middleware.RequireAuth).Get("/me", h.handleMe)
	})
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.Fail(w, r, err)
		return
	}

	result, err := h.Service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	if err := h.Service.Logout(r.Context(), session, middleware.GetToken(r.Context())); err != nil {
		shared.Fail(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, session, "auth.logout", "session", session.UserID, nil, nil)
	api.Success(w, map[string]string{"status": "logged_out"}, middleware.GetRequestID(r.Context()))
}

// handleMe returns the session context alongside the caller's profile.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	session, ok := shared.Session(w, r)
	if !ok {
		return
	}
	profile, err := h.Service.Me(r.Context(), session)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, map[string]any{
		"session": session,
		"user":    profile,
	}, middleware.GetRequestID(r.Context()))
}
