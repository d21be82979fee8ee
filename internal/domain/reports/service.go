package reports

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"timeledger/internal/domain/auth"
	"timeledger/internal/domain/payroll"
	"timeledger/internal/platform/apperr"
)

var ErrPeriodNotFound = apperr.New(apperr.KindNotFound, "payroll period not found")

type StoreAPI interface {
	PayableRows(ctx context.Context, tenantID string, filter Filter) ([]Row, error)
	PeriodExists(ctx context.Context, tenantID, periodID string) (bool, error)
	Dashboard(ctx context.Context, tenantID string) (Dashboard, error)
	ListJobRuns(ctx context.Context, tenantID, jobType string, limit, offset int) ([]JobRun, error)
}

type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

// Payables returns the matching entries with their summary.
func (s *Service) Payables(ctx context.Context, session auth.Session, filter Filter) (Report, error) {
	if err := validateFilter(filter); err != nil {
		return Report{}, err
	}
	rows, err := s.store.PayableRows(ctx, session.TenantID, filter)
	if err != nil {
		return Report{}, fmt.Errorf("load payables: %w", err)
	}
	if rows == nil {
		rows = []Row{}
	}
	return Report{Entries: rows, Summary: Summarize(rows)}, nil
}

func (s *Service) PeriodSummary(ctx context.Context, session auth.Session, periodID string) (Summary, error) {
	if _, err := uuid.Parse(periodID); err != nil {
		return Summary{}, ErrPeriodNotFound
	}
	exists, err := s.store.PeriodExists(ctx, session.TenantID, periodID)
	if err != nil {
		return Summary{}, fmt.Errorf("lookup period: %w", err)
	}
	if !exists {
		return Summary{}, ErrPeriodNotFound
	}
	report, err := s.Payables(ctx, session, Filter{PeriodID: periodID})
	if err != nil {
		return Summary{}, err
	}
	return report.Summary, nil
}

// Export writes the payables report to w in the given format.
func (s *Service) Export(ctx context.Context, session auth.Session, filter Filter, format string, w io.Writer) error {
	format, err := ParseFormat(format)
	if err != nil {
		return err
	}
	report, err := s.Payables(ctx, session, filter)
	if err != nil {
		return err
	}
	return Write(w, format, report)
}

func (s *Service) Dashboard(ctx context.Context, session auth.Session) (Dashboard, error) {
	return s.store.Dashboard(ctx, session.TenantID)
}

func (s *Service) JobRuns(ctx context.Context, session auth.Session, jobType string, limit, offset int) ([]JobRun, error) {
	return s.store.ListJobRuns(ctx, session.TenantID, jobType, limit, offset)
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func validateFilter(filter Filter) error {
	var issues []apperr.FieldIssue
	if filter.Status != "" && !contains(payroll.PeriodStatuses, filter.Status) {
		issues = append(issues, apperr.FieldIssue{Field: "status", Reason: "must be one of " + strings.Join(payroll.PeriodStatuses, ", ")})
	}
	if filter.PeriodType != "" && !contains(payroll.PeriodTypes, filter.PeriodType) {
		issues = append(issues, apperr.FieldIssue{Field: "period_type", Reason: "must be one of " + strings.Join(payroll.PeriodTypes, ", ")})
	}
	for field, id := range map[string]string{"period_id": filter.PeriodID, "user_id": filter.UserID} {
		if id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			issues = append(issues, apperr.FieldIssue{Field: field, Reason: "must be a valid id"})
		}
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		issues = append(issues, apperr.FieldIssue{Field: "end_date", Reason: "must be on or after start_date"})
	}
	if len(issues) > 0 {
		return apperr.Validation("payload validation failed", issues...)
	}
	return nil
}
