package reports

import (
	"context"
	"encoding/json"
	"fmt"

	"timeledger/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) PayableRows(ctx context.Context, tenantID string, filter Filter) ([]Row, error) {
	query := `
    SELECT e.id, p.id, p.name, p.period_type, p.status, p.start_date, p.end_date,
           e.user_id, COALESCE(u.full_name, ''), COALESCE(u.email, ''), e.rate_type, e.currency,
           e.regular_hours, e.overtime_hours, e.regular_rate, e.overtime_rate,
           e.gross_amount, e.adjustments_amount, e.net_amount, e.status
    FROM payroll_entries e
    JOIN payroll_periods p ON p.id = e.period_id
    LEFT JOIN users u ON u.id = e.user_id
    WHERE e.tenant_id = $1`
	args := []any{tenantID}
	add := func(clause string, value any) {
		args = append(args, value)
		query += fmt.Sprintf(clause, len(args))
	}
	if filter.PeriodID != "" {
		add(" AND p.id = $%d", filter.PeriodID)
	}
	if filter.Status != "" {
		add(" AND p.status = $%d", filter.Status)
	}
	if filter.PeriodType != "" {
		add(" AND p.period_type = $%d", filter.PeriodType)
	}
	if filter.UserID != "" {
		add(" AND e.user_id = $%d", filter.UserID)
	}
	if filter.StartDate != nil {
		add(" AND p.start_date >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add(" AND p.end_date <= $%d", *filter.EndDate)
	}
	query += " ORDER BY p.start_date DESC, u.full_name, e.user_id"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.EntryID, &r.PeriodID, &r.PeriodName, &r.PeriodType, &r.PeriodStatus, &r.StartDate, &r.EndDate,
			&r.UserID, &r.UserName, &r.UserEmail, &r.RateType, &r.Currency,
			&r.RegularHours, &r.OvertimeHours, &r.RegularRate, &r.OvertimeRate,
			&r.GrossAmount, &r.AdjustmentsAmount, &r.NetAmount, &r.EntryStatus); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) PeriodExists(ctx context.Context, tenantID, periodID string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM payroll_periods WHERE tenant_id = $1 AND id = $2)", tenantID, periodID).Scan(&exists)
	return exists, err
}

func (s *Store) Dashboard(ctx context.Context, tenantID string) (Dashboard, error) {
	out := Dashboard{PeriodsByStatus: map[string]int{}}
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM users WHERE tenant_id = $1 AND status = 'active'", tenantID).Scan(&out.ActiveEmployees); err != nil {
		return Dashboard{}, err
	}
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM account_requests WHERE tenant_id = $1 AND status = 'pending'", tenantID).Scan(&out.PendingAccountRequests); err != nil {
		return Dashboard{}, err
	}
	if err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(SUM(total_amount), 0)
    FROM payroll_periods
    WHERE tenant_id = $1 AND status IN ('processing', 'approved')
  `, tenantID).Scan(&out.OutstandingPayables); err != nil {
		return Dashboard{}, err
	}

	rows, err := s.DB.Query(ctx, "SELECT status, COUNT(1) FROM payroll_periods WHERE tenant_id = $1 GROUP BY status", tenantID)
	if err != nil {
		return Dashboard{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Dashboard{}, err
		}
		out.PeriodsByStatus[status] = count
	}
	return out, rows.Err()
}

func (s *Store) ListJobRuns(ctx context.Context, tenantID, jobType string, limit, offset int) ([]JobRun, error) {
	query := `
    SELECT id, job_type, status, details_json, started_at, completed_at
    FROM job_runs
    WHERE tenant_id = $1`
	args := []any{tenantID}
	if jobType != "" {
		query += " AND job_type = $2"
		args = append(args, jobType)
	}
	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JobRun
	for rows.Next() {
		var run JobRun
		var details []byte
		if err := rows.Scan(&run.ID, &run.JobType, &run.Status, &details, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			var decoded any
			if err := json.Unmarshal(details, &decoded); err == nil {
				run.Details = decoded
			}
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
