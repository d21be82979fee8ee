package users

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"timeledger/internal/domain/auth"
	"timeledger/internal/platform/apperr"
)

type memStore struct {
	mu    sync.Mutex
	users map[string]User
	roles map[string]string
	hash  map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		users: map[string]User{},
		roles: map[string]string{auth.RoleOwner: "r-owner", auth.RoleAdmin: "r-admin", auth.RoleEmployee: "r-employee"},
		hash:  map[string]string{},
	}
}

func (m *memStore) List(_ context.Context, _ string, filter Filter) ([]User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []User
	for _, u := range m.users {
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		if filter.RateType != "" && u.ActiveRateType != filter.RateType {
			continue
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

func (m *memStore) Get(_ context.Context, _, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *memStore) RoleID(_ context.Context, _, role string) (string, error) {
	return m.roles[role], nil
}

func (m *memStore) Create(_ context.Context, _, roleID, passwordHash string, in Input) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, in.Email) {
			return User{}, ErrEmailExists
		}
	}
	u := User{ID: uuid.NewString(), Email: in.Email, FullName: in.FullName, Role: in.Role, Status: StatusActive, CreatedAt: time.Now()}
	m.users[u.ID] = u
	m.hash[u.ID] = passwordHash
	return u, nil
}

func (m *memStore) SetStatus(_ context.Context, _, id, status string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, pgx.ErrNoRows
	}
	u.Status = status
	m.users[id] = u
	return u, nil
}

var (
	owner = auth.Session{UserID: uuid.NewString(), TenantID: "t-1", RoleName: auth.RoleOwner}
	admin = auth.Session{UserID: uuid.NewString(), TenantID: "t-1", RoleName: auth.RoleAdmin}
)

func newService() (*Service, *memStore) {
	store := newMemStore()
	svc := NewService(store)
	svc.hash = func(p string) (string, error) { return "hashed:" + p, nil }
	return svc, store
}

func TestCreateUser(t *testing.T) {
	svc, store := newService()
	u, err := svc.Create(context.Background(), admin, Input{Email: "ada@example.com", FullName: " Ada Lovelace ", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Role != auth.RoleEmployee || u.FullName != "Ada Lovelace" {
		t.Fatalf("unexpected user %+v", u)
	}
	if store.hash[u.ID] != "hashed:correct-horse" {
		t.Fatalf("expected password to be hashed, got %q", store.hash[u.ID])
	}

	_, err = svc.Create(context.Background(), admin, Input{Email: "ada@example.com", FullName: "Ada", Password: "correct-horse"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Create(context.Background(), owner, Input{Email: "x", Role: "root", Password: "short"})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := map[string]bool{}
	for _, f := range appErr.Fields {
		fields[f.Field] = true
	}
	for _, want := range []string{"email", "full_name", "role", "password"} {
		if !fields[want] {
			t.Fatalf("expected %s issue, got %+v", want, appErr.Fields)
		}
	}
}

func TestOnlyOwnersCreatePrivilegedUsers(t *testing.T) {
	svc, _ := newService()
	in := Input{Email: "boss@example.com", FullName: "Boss", Role: auth.RoleAdmin, Password: "long-enough"}
	if _, err := svc.Create(context.Background(), admin, in); !errors.Is(err, ErrRoleForbidden) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if _, err := svc.Create(context.Background(), owner, in); err != nil {
		t.Fatalf("owner create: %v", err)
	}
}

func TestSetStatus(t *testing.T) {
	svc, _ := newService()
	u, err := svc.Create(context.Background(), admin, Input{Email: "grace@example.com", FullName: "Grace", Password: "long-enough"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.SetStatus(context.Background(), admin, u.ID, "INACTIVE")
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if updated.Status != StatusInactive {
		t.Fatalf("expected inactive, got %s", updated.Status)
	}

	items, _, err := svc.List(context.Background(), admin, Filter{Status: StatusActive})
	if err != nil || len(items) != 0 {
		t.Fatalf("expected no active users, got %v %v", items, err)
	}

	if _, err := svc.SetStatus(context.Background(), admin, admin.UserID, StatusInactive); !errors.Is(err, ErrOwnStatus) {
		t.Fatalf("expected own-status refusal, got %v", err)
	}
	if _, err := svc.SetStatus(context.Background(), admin, uuid.NewString(), StatusActive); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.SetStatus(context.Background(), admin, u.ID, "archived"); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListFilterValidation(t *testing.T) {
	svc, _ := newService()
	if _, _, err := svc.List(context.Background(), admin, Filter{RateType: "weekly"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
