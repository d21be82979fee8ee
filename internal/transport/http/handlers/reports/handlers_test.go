package reportshandler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"timeledger/internal/domain/audit"
	"timeledger/internal/domain/auth"
	"timeledger/internal/domain/reports"
	"timeledger/internal/transport/http/middleware"
)

type fakeStore struct {
	filter reports.Filter
	rows   []reports.Row
}

func (f *fakeStore) PayableRows(_ context.Context, _ string, filter reports.Filter) ([]reports.Row, error) {
	f.filter = filter
	return f.rows, nil
}

func (f *fakeStore) PeriodExists(_ context.Context, _, _ string) (bool, error) { return true, nil }

func (f *fakeStore) Dashboard(_ context.Context, _ string) (reports.Dashboard, error) {
	return reports.Dashboard{ActiveEmployees: 3}, nil
}

func (f *fakeStore) ListJobRuns(_ context.Context, _, _ string, _, _ int) ([]reports.JobRun, error) {
	return nil, nil
}

type auditLog struct{ actions []string }

func (a *auditLog) Record(_ context.Context, e audit.Entry) error {
	a.actions = append(a.actions, e.Action)
	return nil
}

type allowAll struct{}

func (allowAll) HasPermission(_ context.Context, roleID, _ string) (bool, error) {
	return roleID != auth.RoleEmployee, nil
}

func monthlyRows() []reports.Row {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	rows := make([]reports.Row, 0, 3)
	for _, id := range []string{"a", "b", "c"} {
		amount := decimal.RequireFromString("3000")
		rows = append(rows, reports.Row{
			EntryID: "e-" + id, PeriodID: "p1", PeriodName: "March 2025 - Monthly", PeriodType: "monthly",
			PeriodStatus: "processing", StartDate: start, EndDate: end, UserID: "u-" + id,
			UserName: "Employee " + id, UserEmail: id + "@example.com", RateType: "monthly", Currency: "USD",
			RegularRate: amount, GrossAmount: amount, NetAmount: amount, EntryStatus: "pending",
		})
	}
	return rows
}

func newHandler(store *fakeStore, log *auditLog) http.Handler {
	h := NewHandler(reports.NewService(store), log, allowAll{})
	h.now = func() time.Time { return time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func get(router http.Handler, role, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(middleware.WithSession(req.Context(), auth.Session{UserID: "u1", TenantID: "t1", RoleID: role, RoleName: role}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestExportCSVRoundTripsThroughHTTP(t *testing.T) {
	store := &fakeStore{rows: monthlyRows()}
	log := &auditLog{}
	rec := get(newHandler(store, log), auth.RoleAdmin, "/reports/admin/payables/export?format=csv&status=processing")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=payables-20250402.csv" {
		t.Fatalf("unexpected disposition %q", got)
	}
	if store.filter.Status != "processing" {
		t.Fatalf("expected status filter forwarded, got %+v", store.filter)
	}

	rows, err := reports.ReadCSV(rec.Body)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	summary := reports.Summarize(rows)
	if summary.TotalNetAmount.StringFixed(2) != "9000.00" || summary.TotalEmployees != 3 {
		t.Fatalf("unexpected round-trip summary %+v", summary)
	}
	if len(log.actions) != 1 || log.actions[0] != "reports.payables.export" {
		t.Fatalf("expected export audit, got %v", log.actions)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	rec := get(newHandler(&fakeStore{}, &auditLog{}), auth.RoleAdmin, "/reports/admin/payables/export?format=docx")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Disposition") != "" {
		t.Fatal("expected no attachment on failure")
	}
}

func TestPayablesRequiresReportsPermission(t *testing.T) {
	rec := get(newHandler(&fakeStore{}, &auditLog{}), auth.RoleEmployee, "/reports/admin/payables")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestPayablesRejectsBadDate(t *testing.T) {
	rec := get(newHandler(&fakeStore{}, &auditLog{}), auth.RoleOwner, "/reports/admin/payables?start_date=soon")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
