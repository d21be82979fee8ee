package usershandler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"timeledger/internal/domain/audit"
	"timeledger/internal/domain/auth"
	"timeledger/internal/domain/users"
	"timeledger/internal/transport/http/middleware"
)

type stubUsers struct {
	UserService
	filter  users.Filter
	created users.Input
	status  map[string]string
}

func (s *stubUsers) List(_ context.Context, _ auth.Session, filter users.Filter) ([]users.User, int, error) {
	s.filter = filter
	return []users.User{{ID: "u1", ActiveRateType: "hourly"}}, 1, nil
}

func (s *stubUsers) Get(_ context.Context, _ auth.Session, id string) (users.User, error) {
	status, ok := s.status[id]
	if !ok {
		return users.User{}, users.ErrUserNotFound
	}
	return users.User{ID: id, Status: status}, nil
}

func (s *stubUsers) Create(_ context.Context, _ auth.Session, in users.Input) (users.User, error) {
	s.created = in
	return users.User{ID: "u2", Email: in.Email, Role: in.Role, Status: users.StatusActive}, nil
}

func (s *stubUsers) SetStatus(_ context.Context, _ auth.Session, id, status string) (users.User, error) {
	s.status[id] = status
	return users.User{ID: id, Status: status}, nil
}

type auditLog struct{ entries []audit.Entry }

func (a *auditLog) Record(_ context.Context, e audit.Entry) error {
	a.entries = append(a.entries, e)
	return nil
}

type rolePerms struct{}

func (rolePerms) HasPermission(_ context.Context, roleID, permission string) (bool, error) {
	for _, p := range auth.RolePermissions[roleID] {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

func serve(h *Handler, role, method, path, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req = req.WithContext(middleware.WithSession(req.Context(), auth.Session{UserID: "me", TenantID: "t1", RoleID: role, RoleName: role}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListPassesFilters(t *testing.T) {
	svc := &stubUsers{}
	rec := serve(NewHandler(svc, &auditLog{}, rolePerms{}), auth.RoleAdmin, http.MethodGet, "/users?status=active&rate_type=hourly", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.filter.Status != "active" || svc.filter.RateType != "hourly" {
		t.Fatalf("unexpected filter %+v", svc.filter)
	}
	if rec.Header().Get("X-Total-Count") != "1" {
		t.Fatalf("expected total header, got %q", rec.Header().Get("X-Total-Count"))
	}
}

func TestEmployeeCannotListUsers(t *testing.T) {
	rec := serve(NewHandler(&stubUsers{}, &auditLog{}, rolePerms{}), auth.RoleEmployee, http.MethodGet, "/users", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestCreateAuditsWithoutPassword(t *testing.T) {
	svc := &stubUsers{}
	log := &auditLog{}
	body := `{"email":"ada@example.com","full_name":"Ada","role":"employee","password":"Secret123"}`
	rec := serve(NewHandler(svc, log, rolePerms{}), auth.RoleOwner, http.MethodPost, "/users", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.created.Password != "Secret123" {
		t.Fatal("expected password to reach the service")
	}
	if len(log.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(log.entries))
	}
	if _, ok := log.entries[0].After.(users.User); !ok {
		t.Fatalf("expected audited user record, got %T", log.entries[0].After)
	}
}

func TestSetStatusRecordsBeforeAndAfter(t *testing.T) {
	svc := &stubUsers{status: map[string]string{"u1": users.StatusActive}}
	log := &auditLog{}
	rec := serve(NewHandler(svc, log, rolePerms{}), auth.RoleAdmin, http.MethodPatch, "/users/u1/status", `{"status":"inactive"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.status["u1"] != users.StatusInactive {
		t.Fatalf("expected user deactivated, got %q", svc.status["u1"])
	}
	if len(log.entries) != 1 || log.entries[0].Action != "user.status" {
		t.Fatalf("unexpected audit %+v", log.entries)
	}

	rec = serve(NewHandler(svc, log, rolePerms{}), auth.RoleAdmin, http.MethodPatch, "/users/missing/status", `{"status":"inactive"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
