package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	tokens "timeledger/internal/auth"
	"timeledger/internal/domain/auth"
	"timeledger/internal/domain/payroll"
	"timeledger/internal/platform/apperr"
)

var (
	ErrUserNotFound   = apperr.New(apperr.KindNotFound, "user not found")
	ErrDuplicateEmail = apperr.New(apperr.KindConflict, "a user with this email already exists")
	ErrRoleForbidden  = apperr.New(apperr.KindPermission, "only owners can create owner or admin accounts")
	ErrOwnStatus      = apperr.New(apperr.KindInvalidState, "you cannot change your own status")
)

const minPasswordLength = 8

type Service struct {
	store StoreAPI
	hash  func(string) (string, error)
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store, hash: tokens.HashPassword}
}

func (s *Service) List(ctx context.Context, session auth.Session, filter Filter) ([]User, int, error) {
	var issues []apperr.FieldIssue
	if filter.Status != "" && !contains(Statuses, filter.Status) {
		issues = append(issues, apperr.FieldIssue{Field: "status", Reason: "must be one of " + strings.Join(Statuses, ", ")})
	}
	if filter.RateType != "" && !contains(payroll.RateTypes, filter.RateType) {
		issues = append(issues, apperr.FieldIssue{Field: "rate_type", Reason: "must be one of " + strings.Join(payroll.RateTypes, ", ")})
	}
	if len(issues) > 0 {
		return nil, 0, apperr.Validation("payload validation failed", issues...)
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	items, total, err := s.store.List(ctx, session.TenantID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	if items == nil {
		items = []User{}
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, session auth.Session, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrUserNotFound
	}
	u, err := s.store.Get(ctx, session.TenantID, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

func (s *Service) Create(ctx context.Context, session auth.Session, in Input) (User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if in.Role == "" {
		in.Role = auth.RoleEmployee
	}

	var issues []apperr.FieldIssue
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		issues = append(issues, apperr.FieldIssue{Field: "email", Reason: "must be a valid email address"})
	}
	if in.FullName == "" {
		issues = append(issues, apperr.FieldIssue{Field: "full_name", Reason: "required"})
	}
	if !contains(auth.Roles, in.Role) {
		issues = append(issues, apperr.FieldIssue{Field: "role", Reason: "must be one of " + strings.Join(auth.Roles, ", ")})
	}
	if len(in.Password) < minPasswordLength {
		issues = append(issues, apperr.FieldIssue{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLength)})
	}
	if len(issues) > 0 {
		return User{}, apperr.Validation("payload validation failed", issues...)
	}
	if in.Role != auth.RoleEmployee && session.RoleName != auth.RoleOwner {
		return User{}, ErrRoleForbidden
	}

	roleID, err := s.store.RoleID(ctx, session.TenantID, in.Role)
	if err != nil {
		return User{}, fmt.Errorf("resolve role: %w", err)
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.store.Create(ctx, session.TenantID, roleID, hash, in)
	if errors.Is(err, ErrEmailExists) {
		return User{}, ErrDuplicateEmail
	}
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// SetStatus activates or deactivates a user. Inactive users lose their
// sessions at the next request and are skipped by payroll selection.
func (s *Service) SetStatus(ctx context.Context, session auth.Session, id, status string) (User, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !contains(Statuses, status) {
		return User{}, apperr.Validation("payload validation failed",
			apperr.FieldIssue{Field: "status", Reason: "must be one of " + strings.Join(Statuses, ", ")})
	}
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrUserNotFound
	}
	if id == session.UserID {
		return User{}, ErrOwnStatus
	}
	u, err := s.store.SetStatus(ctx, session.TenantID, id, status)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("set user status: %w", err)
	}
	return u, nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
