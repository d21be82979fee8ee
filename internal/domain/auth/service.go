package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	tokens "timeledger/internal/auth"
	"timeledger/internal/platform/apperr"
	"timeledger/internal/requestctx"
)

var (
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthorized, "invalid email or password")
	ErrSessionRevoked     = apperr.New(apperr.KindUnauthorized, "session is no longer active")
)

type StoreAPI interface {
	FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error)
	Profile(ctx context.Context, tenantID, userID string) (Profile, error)
	CreateSession(ctx context.Context, userID, tokenHash string, expires time.Time) error
	UpdateLastLogin(ctx context.Context, userID string) error
	RevokeSession(ctx context.Context, userID, tokenHash string) error
	SessionActive(ctx context.Context, tokenHash string) (bool, error)
	PurgeExpiredSessions(ctx context.Context) (int64, error)
	HasPermission(ctx context.Context, roleID, permission string) (bool, error)
}

type Service struct {
	store  StoreAPI
	secret string
	ttl    time.Duration
}

func NewService(store StoreAPI, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{store: store, secret: secret, ttl: ttl}
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Profile   `json:"user"`
}

func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, apperr.Validation("payload validation failed",
			apperr.FieldIssue{Field: "email", Reason: "email and password are required"})
	}

	user, err := s.store.FindActiveUserByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("find user: %w", err)
	}
	if err := tokens.CheckPassword(user.Password, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, expires, err := tokens.GenerateToken(s.secret, tokens.Claims{
		UserID:   user.ID,
		TenantID: user.TenantID,
		RoleID:   user.RoleID,
		RoleName: user.RoleName,
	}, s.ttl)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign token: %w", err)
	}
	if err := s.store.CreateSession(ctx, user.ID, tokens.TokenHash(token), expires); err != nil {
		return LoginResult{}, fmt.Errorf("create session: %w", err)
	}
	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		requestctx.Logger(ctx).Warn("last login update failed", "userId", user.ID, "err", err)
	}

	profile, err := s.store.Profile(ctx, user.TenantID, user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("load profile: %w", err)
	}
	return LoginResult{Token: token, ExpiresAt: expires, User: profile}, nil
}

// Authenticate turns a bearer token into a Session. Tokens whose session row
// was revoked or expired are rejected even if the signature is still valid.
func (s *Service) Authenticate(ctx context.Context, token string) (Session, error) {
	claims, err := tokens.ParseToken(s.secret, token)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindUnauthorized, "invalid token", err)
	}
	active, err := s.store.SessionActive(ctx, tokens.TokenHash(token))
	if err != nil {
		return Session{}, fmt.Errorf("session lookup: %w", err)
	}
	if !active {
		return Session{}, ErrSessionRevoked
	}
	return Session{
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		RoleID:   claims.RoleID,
		RoleName: claims.RoleName,
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, token string) error {
	return s.store.RevokeSession(ctx, session.UserID, tokens.TokenHash(token))
}

func (s *Service) Me(ctx context.Context, session Session) (Profile, error) {
	profile, err := s.store.Profile(ctx, session.TenantID, session.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, apperr.New(apperr.KindNotFound, "user not found")
	}
	return profile, err
}

func (s *Service) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	return s.store.HasPermission(ctx, roleID, permission)
}

func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.store.PurgeExpiredSessions(ctx)
}
