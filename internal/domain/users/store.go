package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"timeledger/internal/platform/querier"
)

// ErrEmailExists is returned by Create on a unique violation.
var ErrEmailExists = errors.New("email already exists")

type StoreAPI interface {
	List(ctx context.Context, tenantID string, filter Filter) ([]User, int, error)
	Get(ctx context.Context, tenantID, id string) (User, error)
	RoleID(ctx context.Context, tenantID, role string) (string, error)
	Create(ctx context.Context, tenantID, roleID, passwordHash string, in Input) (User, error)
	SetStatus(ctx context.Context, tenantID, id, status string) (User, error)
}

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const userSelect = `
    SELECT u.id, u.email, u.full_name, r.name, u.status,
           COALESCE((
             SELECT pr.rate_type FROM pay_rates pr
             WHERE pr.user_id = u.id AND pr.effective_from <= CURRENT_DATE
               AND (pr.effective_to IS NULL OR pr.effective_to >= CURRENT_DATE)
             ORDER BY pr.effective_from DESC LIMIT 1
           ), '') AS active_rate_type,
           u.last_login, u.created_at, u.updated_at
    FROM users u
    JOIN roles r ON r.id = u.role_id`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.Status, &u.ActiveRateType, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) List(ctx context.Context, tenantID string, filter Filter) ([]User, int, error) {
	query := "SELECT * FROM (" + userSelect + " WHERE u.tenant_id = $1) listed WHERE true"
	args := []any{tenantID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.RateType != "" {
		args = append(args, filter.RateType)
		query += fmt.Sprintf(" AND active_rate_type = $%d", len(args))
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM ("+query+") counted", args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(" ORDER BY full_name, email LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (s *Store) Get(ctx context.Context, tenantID, id string) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, userSelect+" WHERE u.tenant_id = $1 AND u.id = $2", tenantID, id))
}

func (s *Store) RoleID(ctx context.Context, tenantID, role string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "SELECT id FROM roles WHERE tenant_id = $1 AND name = $2", tenantID, role).Scan(&id)
	return id, err
}

func (s *Store) Create(ctx context.Context, tenantID, roleID, passwordHash string, in Input) (User, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO users (tenant_id, email, full_name, password_hash, role_id)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, tenantID, in.Email, in.FullName, passwordHash, roleID).Scan(&id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return User{}, ErrEmailExists
	}
	if err != nil {
		return User{}, err
	}
	return s.Get(ctx, tenantID, id)
}

func (s *Store) SetStatus(ctx context.Context, tenantID, id, status string) (User, error) {
	tag, err := s.DB.Exec(ctx, "UPDATE users SET status = $3, updated_at = now() WHERE tenant_id = $1 AND id = $2", tenantID, id, status)
	if err != nil {
		return User{}, err
	}
	if tag.RowsAffected() == 0 {
		return User{}, pgx.ErrNoRows
	}
	return s.Get(ctx, tenantID, id)
}
