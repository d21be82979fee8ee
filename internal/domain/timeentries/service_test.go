package timeentries

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"timeledger/internal/domain/auth"
	"timeledger/internal/domain/events"
	"timeledger/internal/platform/apperr"
)

type memStore struct {
	mu       sync.Mutex
	entries  map[string]Entry
	inactive map[string]bool
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]Entry{}, inactive: map[string]bool{}}
}

func (m *memStore) List(_ context.Context, _ string, filter Filter) ([]Entry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (m *memStore) Get(_ context.Context, _, id string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, pgx.ErrNoRows
	}
	return e, nil
}

func (m *memStore) HasRunning(_ context.Context, _, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.UserID == userID && e.Status == StatusRunning {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) UserActive(_ context.Context, _, userID string) (bool, error) {
	return !m.inactive[userID], nil
}

func (m *memStore) Create(_ context.Context, _ string, entry Entry) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = uuid.NewString()
	entry = entry.withHours()
	m.entries[entry.ID] = entry
	return entry, nil
}

func (m *memStore) Update(_ context.Context, _ string, entry Entry) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry = entry.withHours()
	m.entries[entry.ID] = entry
	return entry, nil
}

func (m *memStore) Delete(_ context.Context, _, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[id]
	delete(m.entries, id)
	return ok, nil
}

var (
	clock    = time.Date(2025, 3, 14, 17, 0, 0, 0, time.UTC)
	employee = auth.Session{UserID: uuid.NewString(), TenantID: "t-1", RoleName: auth.RoleEmployee}
	other    = auth.Session{UserID: uuid.NewString(), TenantID: "t-1", RoleName: auth.RoleEmployee}
	manager  = auth.Session{UserID: uuid.NewString(), TenantID: "t-1", RoleName: auth.RoleAdmin}
)

func newService() (*Service, *memStore, *events.Recorder) {
	store := newMemStore()
	recorder := &events.Recorder{}
	svc := NewService(store, recorder)
	svc.now = func() time.Time { return clock }
	return svc, store, recorder
}

func at(hour, minute int) *time.Time {
	t := time.Date(2025, 3, 14, hour, minute, 0, 0, time.UTC)
	return &t
}

func TestTimerLifecycleEmitsEvents(t *testing.T) {
	svc, _, recorder := newService()
	ctx := context.Background()

	entry, err := svc.Create(ctx, employee, Input{Project: "payroll", StartTime: at(9, 0)})
	if err != nil {
		t.Fatalf("start timer: %v", err)
	}
	if entry.Status != StatusRunning || entry.UserID != employee.UserID {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if _, err := svc.Create(ctx, employee, Input{StartTime: at(10, 0)}); !errors.Is(err, ErrTimerRunning) {
		t.Fatalf("expected running timer conflict, got %v", err)
	}

	done, err := svc.Complete(ctx, employee, entry.ID, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Hours.StringFixed(2) != "8.00" {
		t.Fatalf("expected 8 hours, got %s", done.Hours)
	}
	if _, err := svc.Complete(ctx, employee, entry.ID, nil); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected invalid_state, got %v", err)
	}

	desc := "reviewed rates"
	if _, err := svc.Update(ctx, employee, entry.ID, Patch{Description: &desc}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := svc.Delete(ctx, employee, entry.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []string{events.TypeTimeEntryCreated, events.TypeTimeEntryCompleted, events.TypeTimeEntryUpdated, events.TypeTimeEntryDeleted}
	got := recorder.Types()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	for _, evt := range recorder.Events() {
		if evt.Resource.Type != events.ResourceTimeEntry || evt.Resource.ID != entry.ID || evt.Resource.UserID != employee.UserID {
			t.Fatalf("unexpected resource %+v", evt.Resource)
		}
	}
}

func TestLogCompletedEntry(t *testing.T) {
	svc, _, _ := newService()
	entry, err := svc.Create(context.Background(), employee, Input{StartTime: at(8, 0), EndTime: at(12, 30)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if entry.Status != StatusCompleted || entry.Hours.StringFixed(2) != "4.50" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, store, _ := newService()
	tests := []struct {
		name string
		in   Input
		kind apperr.Kind
	}{
		{name: "end before start", in: Input{StartTime: at(12, 0), EndTime: at(11, 0)}, kind: apperr.KindValidation},
		{name: "future start", in: Input{StartTime: at(18, 0)}, kind: apperr.KindValidation},
		{name: "other user", in: Input{UserID: other.UserID, StartTime: at(9, 0)}, kind: apperr.KindPermission},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), employee, tc.in); apperr.KindOf(err) != tc.kind {
				t.Fatalf("expected %s, got %v", tc.kind, err)
			}
		})
	}

	long := time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)
	if _, err := svc.Create(context.Background(), employee, Input{StartTime: &long, EndTime: at(9, 0)}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected duration validation, got %v", err)
	}

	store.inactive[other.UserID] = true
	if _, err := svc.Create(context.Background(), manager, Input{UserID: other.UserID, StartTime: at(9, 0)}); !errors.Is(err, ErrUserInactive) {
		t.Fatalf("expected inactive user refusal, got %v", err)
	}
}

func TestOwnershipIsolation(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	mine, err := svc.Create(ctx, employee, Input{StartTime: at(8, 0), EndTime: at(9, 0)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, other, Input{StartTime: at(8, 0), EndTime: at(10, 0)}); err != nil {
		t.Fatalf("create other: %v", err)
	}

	if _, err := svc.Get(ctx, other, mine.ID); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected other employee to be refused, got %v", err)
	}
	if err := svc.Delete(ctx, other, mine.ID); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected delete refusal, got %v", err)
	}
	if _, err := svc.Get(ctx, manager, mine.ID); err != nil {
		t.Fatalf("expected admin access, got %v", err)
	}

	items, total, err := svc.List(ctx, employee, Filter{})
	if err != nil || total != 1 || items[0].ID != mine.ID {
		t.Fatalf("expected only own entry, got %v %d %v", items, total, err)
	}
	if _, _, err := svc.List(ctx, employee, Filter{UserID: other.UserID}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	all, _, err := svc.List(ctx, manager, Filter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("expected admin to see both, got %v %v", all, err)
	}
}
