package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"timeledger/internal/platform/querier"
)

type Store struct {
	DB querier.TxQuerier
}

func NewStore(db querier.TxQuerier) *Store {
	return &Store{DB: db}
}

const periodColumns = `id, name, period_type, start_date, end_date, status,
    selection_mode, rate_type_filter, user_ids, entries_count, total_amount,
    COALESCE(created_by::text, ''), processed_at, approved_at, paid_at, voided_at,
    created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Name, &p.PeriodType, &p.StartDate, &p.EndDate, &p.Status,
		&p.Selection.Mode, &p.Selection.RateType, &p.Selection.UserIDs, &p.EntriesCount, &p.TotalAmount,
		&p.CreatedBy, &p.ProcessedAt, &p.ApprovedAt, &p.PaidAt, &p.VoidedAt,
		&p.CreatedAt, &p.UpdatedAt)
	if len(p.Selection.UserIDs) == 0 {
		p.Selection.UserIDs = nil
	}
	return p, err
}

func (s *Store) CreatePeriod(ctx context.Context, tenantID, createdBy string, in PeriodInput) (Period, error) {
	return scanPeriod(s.DB.QueryRow(ctx, `
    INSERT INTO payroll_periods (tenant_id, name, period_type, start_date, end_date, selection_mode, rate_type_filter, user_ids, created_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING `+periodColumns,
		tenantID, in.Name, in.PeriodType, in.StartDate, in.EndDate,
		in.Selection.Mode, in.Selection.RateType, userIDs(in.Selection.UserIDs), nullIfEmpty(createdBy)))
}

func (s *Store) GetPeriod(ctx context.Context, tenantID, id string) (Period, error) {
	period, err := scanPeriod(s.DB.QueryRow(ctx, `
    SELECT `+periodColumns+`
    FROM payroll_periods
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, ErrPeriodNotFound
	}
	return period, err
}

func (s *Store) ListPeriods(ctx context.Context, tenantID string, filter PeriodFilter) ([]Period, int, error) {
	where := " FROM payroll_periods WHERE tenant_id = $1"
	args := []any{tenantID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.PeriodType != "" {
		args = append(args, filter.PeriodType)
		where += fmt.Sprintf(" AND period_type = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where += fmt.Sprintf(" AND start_date >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where += fmt.Sprintf(" AND end_date <= $%d", len(args))
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1)"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT " + periodColumns + where +
		fmt.Sprintf(" ORDER BY start_date DESC, created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Period
	for rows.Next() {
		period, err := scanPeriod(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, period)
	}
	return out, total, rows.Err()
}

func (s *Store) UpdateDraftPeriod(ctx context.Context, tenantID, id string, in PeriodInput) (Period, bool, error) {
	period, err := scanPeriod(s.DB.QueryRow(ctx, `
    UPDATE payroll_periods
    SET name = $3, period_type = $4, start_date = $5, end_date = $6,
        selection_mode = $7, rate_type_filter = $8, user_ids = $9, updated_at = now()
    WHERE tenant_id = $1 AND id = $2 AND status = 'draft'
    RETURNING `+periodColumns,
		tenantID, id, in.Name, in.PeriodType, in.StartDate, in.EndDate,
		in.Selection.Mode, in.Selection.RateType, userIDs(in.Selection.UserIDs)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, false, nil
	}
	if err != nil {
		return Period{}, false, err
	}
	return period, true, nil
}

func (s *Store) DeletePeriod(ctx context.Context, tenantID, id string) (bool, error) {
	tag, err := s.DB.Exec(ctx, "DELETE FROM payroll_periods WHERE tenant_id = $1 AND id = $2", tenantID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ClaimForProcessing(ctx context.Context, tenantID, id string) (Period, bool, error) {
	period, err := scanPeriod(s.DB.QueryRow(ctx, `
    UPDATE payroll_periods
    SET status = 'processing', processed_at = now(), updated_at = now()
    WHERE tenant_id = $1 AND id = $2 AND status = 'draft'
    RETURNING `+periodColumns, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, false, nil
	}
	if err != nil {
		return Period{}, false, err
	}
	return period, true, nil
}

func (s *Store) ReleaseClaim(ctx context.Context, tenantID, id string) (bool, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
    UPDATE payroll_periods
    SET status = 'draft', processed_at = NULL, entries_count = 0, total_amount = 0, updated_at = now()
    WHERE tenant_id = $1 AND id = $2 AND status = 'processing'
  `, tenantID, id)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := tx.Exec(ctx, "DELETE FROM payroll_entries WHERE tenant_id = $1 AND period_id = $2", tenantID, id); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) TransitionPeriod(ctx context.Context, tenantID, id string, from []string, to, entryStatus string) (Period, bool, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Period{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	period, err := scanPeriod(tx.QueryRow(ctx, `
    UPDATE payroll_periods
    SET status = $3::text,
        approved_at = CASE WHEN $3::text = 'approved' THEN now() ELSE approved_at END,
        paid_at = CASE WHEN $3::text = 'paid' THEN now() ELSE paid_at END,
        voided_at = CASE WHEN $3::text = 'void' THEN now() ELSE voided_at END,
        updated_at = now()
    WHERE tenant_id = $1 AND id = $2 AND status = ANY($4)
    RETURNING `+periodColumns, tenantID, id, to, from))
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, false, nil
	}
	if err != nil {
		return Period{}, false, err
	}

	if entryStatus != "" {
		if _, err := tx.Exec(ctx, `
      UPDATE payroll_entries
      SET status = $3, updated_at = now()
      WHERE tenant_id = $1 AND period_id = $2 AND status <> 'void'
    `, tenantID, id, entryStatus); err != nil {
			return Period{}, false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Period{}, false, err
	}
	return period, true, nil
}

func (s *Store) RecomputeTotals(ctx context.Context, tenantID, id string) (Period, error) {
	period, err := scanPeriod(s.DB.QueryRow(ctx, `
    UPDATE payroll_periods
    SET entries_count = t.entries, total_amount = t.total, updated_at = now()
    FROM (
      SELECT COUNT(1) AS entries, COALESCE(SUM(net_amount), 0) AS total
      FROM payroll_entries
      WHERE tenant_id = $1 AND period_id = $2
    ) t
    WHERE tenant_id = $1 AND id = $2
    RETURNING `+periodColumns, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, ErrPeriodNotFound
	}
	return period, err
}

func (s *Store) ListCandidates(ctx context.Context, tenantID string, start, end time.Time) ([]Candidate, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT u.id, u.email, u.full_name, u.status = 'active',
           r.id, r.rate_type, r.base_rate, r.currency, r.overtime_multiplier,
           r.effective_from, r.effective_to, r.created_at
    FROM users u
    LEFT JOIN pay_rates r
      ON r.user_id = u.id AND r.tenant_id = u.tenant_id
     AND r.effective_from <= $3 AND (r.effective_to IS NULL OR r.effective_to >= $2)
    WHERE u.tenant_id = $1
    ORDER BY u.full_name, u.id, r.effective_from DESC
  `, tenantID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	index := map[string]int{}
	for rows.Next() {
		var c Candidate
		var rateID, rateType, currency *string
		var base, multiplier decimal.NullDecimal
		var from, to, created *time.Time
		if err := rows.Scan(&c.UserID, &c.Email, &c.FullName, &c.Active,
			&rateID, &rateType, &base, &currency, &multiplier, &from, &to, &created); err != nil {
			return nil, err
		}
		pos, seen := index[c.UserID]
		if !seen {
			out = append(out, c)
			pos = len(out) - 1
			index[c.UserID] = pos
		}
		if rateID == nil {
			continue
		}
		out[pos].Rates = append(out[pos].Rates, PayRate{
			ID:                 *rateID,
			UserID:             c.UserID,
			RateType:           *rateType,
			BaseRate:           base.Decimal,
			Currency:           *currency,
			OvertimeMultiplier: multiplier.Decimal,
			EffectiveFrom:      *from,
			EffectiveTo:        to,
			CreatedAt:          *created,
		})
	}
	return out, rows.Err()
}

// ListWorkLogs returns completed time entries overlapping [from, to), each
// clipped to that range.
func (s *Store) ListWorkLogs(ctx context.Context, tenantID, userID string, from, to time.Time) ([]WorkLog, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT GREATEST(start_time, $3::timestamptz),
      ROUND((EXTRACT(EPOCH FROM (LEAST(end_time, $4::timestamptz) - GREATEST(start_time, $3::timestamptz))) / 3600)::numeric, 4)
    FROM time_entries
    WHERE tenant_id = $1 AND user_id = $2 AND status = 'completed' AND end_time IS NOT NULL
      AND start_time < $4 AND end_time > $3
    ORDER BY start_time
  `, tenantID, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WorkLog
	for rows.Next() {
		var log WorkLog
		if err := rows.Scan(&log.Start, &log.Hours); err != nil {
			return nil, err
		}
		out = append(out, log)
	}
	return out, rows.Err()
}

func (s *Store) InsertEntry(ctx context.Context, tenantID string, entry Entry) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    INSERT INTO payroll_entries (tenant_id, period_id, user_id, pay_rate_id, rate_type, currency,
      regular_hours, overtime_hours, regular_rate, overtime_rate,
      gross_amount, adjustments_amount, net_amount, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
    ON CONFLICT (period_id, user_id) DO NOTHING
  `, tenantID, entry.PeriodID, entry.UserID, nullIfEmpty(entry.PayRateID), entry.RateType, entry.Currency,
		entry.RegularHours, entry.OvertimeHours, entry.RegularRate, entry.OvertimeRate,
		entry.GrossAmount, entry.AdjustmentsAmount, entry.NetAmount, entry.Status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const entryColumns = `e.id, e.period_id, e.user_id, COALESCE(u.full_name, ''), COALESCE(u.email, ''),
    COALESCE(e.pay_rate_id::text, ''), e.rate_type, e.currency, e.regular_hours, e.overtime_hours,
    e.regular_rate, e.overtime_rate, e.gross_amount, e.adjustments_amount, e.net_amount,
    e.status, e.payslip_path, e.created_at, e.updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.PeriodID, &e.UserID, &e.UserName, &e.UserEmail,
		&e.PayRateID, &e.RateType, &e.Currency, &e.RegularHours, &e.OvertimeHours,
		&e.RegularRate, &e.OvertimeRate, &e.GrossAmount, &e.AdjustmentsAmount, &e.NetAmount,
		&e.Status, &e.PayslipPath, &e.CreatedAt, &e.UpdatedAt)
	e.HasPayslip = e.PayslipPath != ""
	return e, err
}

func (s *Store) ListEntries(ctx context.Context, tenantID, periodID string) ([]Entry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+entryColumns+`
    FROM payroll_entries e
    LEFT JOIN users u ON u.id = e.user_id
    WHERE e.tenant_id = $1 AND e.period_id = $2
    ORDER BY u.full_name, e.user_id
  `, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) GetEntry(ctx context.Context, tenantID, id string) (Entry, error) {
	entry, err := scanEntry(s.DB.QueryRow(ctx, `
    SELECT `+entryColumns+`
    FROM payroll_entries e
    LEFT JOIN users u ON u.id = e.user_id
    WHERE e.tenant_id = $1 AND e.id = $2
  `, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	return entry, err
}

func (s *Store) UpdateEntryAdjustment(ctx context.Context, tenantID, id string, amount decimal.Decimal) (Entry, bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE payroll_entries e
    SET adjustments_amount = $3::numeric, net_amount = e.gross_amount + $3::numeric, updated_at = now()
    FROM payroll_periods p
    WHERE e.tenant_id = $1 AND e.id = $2 AND p.id = e.period_id AND p.status = 'processing'
  `, tenantID, id, amount)
	if err != nil {
		return Entry{}, false, err
	}
	if tag.RowsAffected() == 0 {
		return Entry{}, false, nil
	}
	entry, err := s.GetEntry(ctx, tenantID, id)
	return entry, err == nil, err
}

func (s *Store) SetPayslipPath(ctx context.Context, tenantID, entryID, path string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE payroll_entries SET payslip_path = $3, updated_at = now()
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, entryID, path)
	return err
}

const rateColumns = `id, user_id, rate_type, base_rate, currency, overtime_multiplier, effective_from, effective_to, created_at`

func scanRate(row pgx.Row) (PayRate, error) {
	var r PayRate
	err := row.Scan(&r.ID, &r.UserID, &r.RateType, &r.BaseRate, &r.Currency, &r.OvertimeMultiplier, &r.EffectiveFrom, &r.EffectiveTo, &r.CreatedAt)
	return r, err
}

func (s *Store) ListRates(ctx context.Context, tenantID, userID string) ([]PayRate, error) {
	query := "SELECT " + rateColumns + " FROM pay_rates WHERE tenant_id = $1"
	args := []any{tenantID}
	if userID != "" {
		query += " AND user_id = $2"
		args = append(args, userID)
	}
	query += " ORDER BY effective_from DESC, created_at DESC"
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PayRate
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rate)
	}
	return out, rows.Err()
}

// CreateRate closes the user's open rate the day before the new one starts,
// in the same transaction as the insert. A rate starting on the same day as
// the latest one replaces it. Writers for one user serialize on the user row.
func (s *Store) CreateRate(ctx context.Context, tenantID, createdBy string, in RateInput) (PayRate, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return PayRate{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT 1 FROM users WHERE tenant_id = $1 AND id = $2 FOR UPDATE", tenantID, in.UserID); err != nil {
		return PayRate{}, err
	}
	var later bool
	if err := tx.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM pay_rates WHERE tenant_id = $1 AND user_id = $2 AND effective_from > $3
    )
  `, tenantID, in.UserID, in.EffectiveFrom).Scan(&later); err != nil {
		return PayRate{}, err
	}
	if later {
		return PayRate{}, ErrRateOverlap
	}

	rate, err := scanRate(tx.QueryRow(ctx, `
    UPDATE pay_rates
    SET rate_type = $4, base_rate = $5, currency = $6, overtime_multiplier = $7,
        effective_to = NULL, created_by = $8, created_at = now()
    WHERE tenant_id = $1 AND user_id = $2 AND effective_from = $3
    RETURNING `+rateColumns,
		tenantID, in.UserID, in.EffectiveFrom, in.RateType, in.BaseRate, in.Currency, in.OvertimeMultiplier, nullIfEmpty(createdBy)))
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := tx.Exec(ctx, `
      UPDATE pay_rates
      SET effective_to = $3::date - 1
      WHERE tenant_id = $1 AND user_id = $2 AND (effective_to IS NULL OR effective_to >= $3::date)
    `, tenantID, in.UserID, in.EffectiveFrom); err != nil {
			return PayRate{}, err
		}
		rate, err = scanRate(tx.QueryRow(ctx, `
      INSERT INTO pay_rates (tenant_id, user_id, rate_type, base_rate, currency, overtime_multiplier, effective_from, created_by)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
      RETURNING `+rateColumns,
			tenantID, in.UserID, in.RateType, in.BaseRate, in.Currency, in.OvertimeMultiplier, in.EffectiveFrom, nullIfEmpty(createdBy)))
		if isUniqueViolation(err) {
			return PayRate{}, ErrRateOverlap
		}
		if err != nil {
			return PayRate{}, err
		}
	default:
		return PayRate{}, err
	}
	if err := tx.Commit(ctx); isUniqueViolation(err) {
		return PayRate{}, ErrRateOverlap
	} else if err != nil {
		return PayRate{}, err
	}
	return rate, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) UserExists(ctx context.Context, tenantID, userID string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE tenant_id = $1 AND id = $2)", tenantID, userID).Scan(&exists)
	return exists, err
}

func userIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
