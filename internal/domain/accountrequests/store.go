package accountrequests

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"timeledger/internal/domain/auth"
	"timeledger/internal/platform/querier"
)

type StoreAPI interface {
	DefaultTenant(ctx context.Context) (string, error)
	EmailTaken(ctx context.Context, tenantID, email string) (bool, error)
	Create(ctx context.Context, tenantID string, in Input) (Request, error)
	Get(ctx context.Context, tenantID, id string) (Request, error)
	List(ctx context.Context, tenantID, status string, limit, offset int) ([]Request, int, error)
	Decide(ctx context.Context, tenantID, id, status, reason, decidedBy string) (Request, bool, error)
	ReviewerIDs(ctx context.Context, tenantID string) ([]string, error)
}

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const requestColumns = "id, email, full_name, message, status, rejection_reason, decided_by, decided_at, created_at"

func scanRequest(row pgx.Row) (Request, error) {
	var r Request
	err := row.Scan(&r.ID, &r.Email, &r.FullName, &r.Message, &r.Status, &r.RejectionReason, &r.DecidedBy, &r.DecidedAt, &r.CreatedAt)
	return r, err
}

// DefaultTenant is the tenant public submissions land in.
func (s *Store) DefaultTenant(ctx context.Context) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "SELECT id FROM tenants ORDER BY created_at LIMIT 1").Scan(&id)
	return id, err
}

func (s *Store) EmailTaken(ctx context.Context, tenantID, email string) (bool, error) {
	var taken bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM users WHERE tenant_id = $1 AND lower(email) = lower($2))
        OR EXISTS (SELECT 1 FROM account_requests WHERE tenant_id = $1 AND lower(email) = lower($2) AND status = 'pending')
  `, tenantID, email).Scan(&taken)
	return taken, err
}

func (s *Store) Create(ctx context.Context, tenantID string, in Input) (Request, error) {
	return scanRequest(s.DB.QueryRow(ctx, `
    INSERT INTO account_requests (tenant_id, email, full_name, message)
    VALUES ($1,$2,$3,$4)
    RETURNING `+requestColumns, tenantID, in.Email, in.FullName, in.Message))
}

func (s *Store) Get(ctx context.Context, tenantID, id string) (Request, error) {
	return scanRequest(s.DB.QueryRow(ctx, "SELECT "+requestColumns+" FROM account_requests WHERE tenant_id = $1 AND id = $2", tenantID, id))
}

func (s *Store) List(ctx context.Context, tenantID, status string, limit, offset int) ([]Request, int, error) {
	where := " WHERE tenant_id = $1"
	args := []any{tenantID}
	if status != "" {
		where += " AND status = $2"
		args = append(args, status)
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM account_requests"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + requestColumns + " FROM account_requests" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Decide moves a pending request to status. The bool is false when the
// request exists but is no longer pending.
func (s *Store) Decide(ctx context.Context, tenantID, id, status, reason, decidedBy string) (Request, bool, error) {
	r, err := scanRequest(s.DB.QueryRow(ctx, `
    UPDATE account_requests
    SET status = $3, rejection_reason = $4, decided_by = $5, decided_at = now()
    WHERE tenant_id = $1 AND id = $2 AND status = 'pending'
    RETURNING `+requestColumns, tenantID, id, status, reason, decidedBy))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, false, nil
	}
	if err != nil {
		return Request{}, false, err
	}
	return r, true, nil
}

func (s *Store) ReviewerIDs(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT u.id
    FROM users u
    JOIN roles r ON r.id = u.role_id
    WHERE u.tenant_id = $1 AND u.status = 'active' AND r.name = ANY($2)
  `, tenantID, []string{auth.RoleOwner, auth.RoleAdmin})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
