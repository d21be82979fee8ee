package timeentries

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"timeledger/internal/platform/querier"
)

type StoreAPI interface {
	List(ctx context.Context, tenantID string, filter Filter) ([]Entry, int, error)
	Get(ctx context.Context, tenantID, id string) (Entry, error)
	HasRunning(ctx context.Context, tenantID, userID string) (bool, error)
	UserActive(ctx context.Context, tenantID, userID string) (bool, error)
	Create(ctx context.Context, tenantID string, entry Entry) (Entry, error)
	Update(ctx context.Context, tenantID string, entry Entry) (Entry, error)
	Delete(ctx context.Context, tenantID, id string) (bool, error)
}

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const entryColumns = "id, user_id, project, description, start_time, end_time, status, created_at, updated_at"

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	if err := row.Scan(&e.ID, &e.UserID, &e.Project, &e.Description, &e.StartTime, &e.EndTime, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Entry{}, err
	}
	return e.withHours(), nil
}

func (s *Store) List(ctx context.Context, tenantID string, filter Filter) ([]Entry, int, error) {
	where := " WHERE tenant_id = $1"
	args := []any{tenantID}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where += fmt.Sprintf(" AND start_time >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where += fmt.Sprintf(" AND start_time < $%d", len(args))
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM time_entries"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + entryColumns + " FROM time_entries" + where +
		fmt.Sprintf(" ORDER BY start_time DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (s *Store) Get(ctx context.Context, tenantID, id string) (Entry, error) {
	return scanEntry(s.DB.QueryRow(ctx, "SELECT "+entryColumns+" FROM time_entries WHERE tenant_id = $1 AND id = $2", tenantID, id))
}

func (s *Store) HasRunning(ctx context.Context, tenantID, userID string) (bool, error) {
	var running bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM time_entries WHERE tenant_id = $1 AND user_id = $2 AND status = 'running')
  `, tenantID, userID).Scan(&running)
	return running, err
}

func (s *Store) UserActive(ctx context.Context, tenantID, userID string) (bool, error) {
	var active bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM users WHERE tenant_id = $1 AND id = $2 AND status = 'active')
  `, tenantID, userID).Scan(&active)
	return active, err
}

func (s *Store) Create(ctx context.Context, tenantID string, entry Entry) (Entry, error) {
	return scanEntry(s.DB.QueryRow(ctx, `
    INSERT INTO time_entries (tenant_id, user_id, project, description, start_time, end_time, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING `+entryColumns,
		tenantID, entry.UserID, entry.Project, entry.Description, entry.StartTime, entry.EndTime, entry.Status))
}

func (s *Store) Update(ctx context.Context, tenantID string, entry Entry) (Entry, error) {
	return scanEntry(s.DB.QueryRow(ctx, `
    UPDATE time_entries
    SET project = $3, description = $4, start_time = $5, end_time = $6, status = $7, updated_at = now()
    WHERE tenant_id = $1 AND id = $2
    RETURNING `+entryColumns,
		tenantID, entry.ID, entry.Project, entry.Description, entry.StartTime, entry.EndTime, entry.Status))
}

func (s *Store) Delete(ctx context.Context, tenantID, id string) (bool, error) {
	tag, err := s.DB.Exec(ctx, "DELETE FROM time_entries WHERE tenant_id = $1 AND id = $2", tenantID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
