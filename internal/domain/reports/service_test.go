package reports

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"timeledger/internal/domain/auth"
	"timeledger/internal/platform/apperr"
)

type fakeStore struct {
	rows     []Row
	filters  []Filter
	periodID string
}

func (f *fakeStore) PayableRows(_ context.Context, _ string, filter Filter) ([]Row, error) {
	f.filters = append(f.filters, filter)
	var out []Row
	for _, row := range f.rows {
		if filter.PeriodID != "" && row.PeriodID != filter.PeriodID {
			continue
		}
		if filter.Status != "" && row.PeriodStatus != filter.Status {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeStore) PeriodExists(_ context.Context, _, periodID string) (bool, error) {
	return periodID == f.periodID, nil
}

func (f *fakeStore) Dashboard(context.Context, string) (Dashboard, error) {
	return Dashboard{}, nil
}

func (f *fakeStore) ListJobRuns(context.Context, string, string, int, int) ([]JobRun, error) {
	return nil, nil
}

var admin = auth.Session{UserID: "a-1", TenantID: "t-1", RoleName: auth.RoleAdmin}

func newFake() *fakeStore {
	rows := sampleRows()
	return &fakeStore{rows: rows, periodID: rows[0].PeriodID}
}

func TestPayablesSummary(t *testing.T) {
	svc := NewService(newFake())
	report, err := svc.Payables(context.Background(), admin, Filter{Status: "processing"})
	if err != nil {
		t.Fatalf("payables: %v", err)
	}
	if report.Summary.EntriesCount != 2 || report.Summary.TotalEmployees != 2 {
		t.Fatalf("unexpected summary %+v", report.Summary)
	}
	if report.Summary.TotalNetAmount.StringFixed(2) != "3899.75" {
		t.Fatalf("expected net 3899.75, got %s", report.Summary.TotalNetAmount)
	}
	if report.Summary.TotalOvertimeHours.StringFixed(2) != "5.00" {
		t.Fatalf("expected 5 overtime hours, got %s", report.Summary.TotalOvertimeHours)
	}
}

func TestPayablesEmptyIsNotNil(t *testing.T) {
	svc := NewService(newFake())
	report, err := svc.Payables(context.Background(), admin, Filter{Status: "paid"})
	if err != nil {
		t.Fatalf("payables: %v", err)
	}
	if report.Entries == nil || len(report.Entries) != 0 {
		t.Fatalf("expected empty entries slice, got %#v", report.Entries)
	}
	if !report.Summary.TotalNetAmount.IsZero() {
		t.Fatalf("expected zero total, got %s", report.Summary.TotalNetAmount)
	}
}

func TestPayablesRejectsBadFilter(t *testing.T) {
	svc := NewService(newFake())
	tests := map[string]Filter{
		"status":      {Status: "settled"},
		"period_type": {PeriodType: "daily"},
		"user_id":     {UserID: "not-a-uuid"},
	}
	for name, filter := range tests {
		_, err := svc.Payables(context.Background(), admin, filter)
		if apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestPeriodSummary(t *testing.T) {
	store := newFake()
	svc := NewService(store)

	sum, err := svc.PeriodSummary(context.Background(), admin, store.periodID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.EntriesCount != 2 {
		t.Fatalf("expected 2 entries, got %d", sum.EntriesCount)
	}

	_, err = svc.PeriodSummary(context.Background(), admin, "6f1c2f3e-0000-4000-8000-00000000ffff")
	if !errors.Is(err, ErrPeriodNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExportCSV(t *testing.T) {
	svc := NewService(newFake())
	var buf bytes.Buffer
	if err := svc.Export(context.Background(), admin, Filter{}, "csv", &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	rows, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	if err := svc.Export(context.Background(), admin, Filter{}, "odt", &buf); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for unknown format, got %v", err)
	}
}
