package notifications

import (
	"context"
	"fmt"
	"strings"

	"timeledger/internal/platform/apperr"
	"timeledger/internal/requestctx"
)

var ErrNotificationNotFound = apperr.New(apperr.KindNotFound, "notification not found")

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	store       StoreAPI
	Mailer      Mailer
	DefaultFrom string
}

func New(store StoreAPI, mailer Mailer) *Service {
	return &Service{store: store, Mailer: mailer, DefaultFrom: "no-reply@example.com"}
}

// Create stores an in-app notification and mirrors it by email when the
// tenant has email enabled. Email failures are logged only.
func (s *Service) Create(ctx context.Context, tenantID, userID, ntype, title, body string) error {
	if err := s.store.CreateNotification(ctx, tenantID, userID, ntype, title, body); err != nil {
		return err
	}

	if s.Mailer == nil {
		return nil
	}
	enabled, from := s.emailSettings(ctx, tenantID)
	if !enabled {
		return nil
	}

	email, err := s.store.UserEmail(ctx, tenantID, userID)
	if err != nil {
		requestctx.Logger(ctx).Warn("notification email lookup failed", "err", err)
		return nil
	}
	if email == "" {
		return nil
	}
	if err := s.Mailer.Send(ctx, from, email, title, body); err != nil {
		requestctx.Logger(ctx).Warn("notification email send failed", "err", err)
	}
	return nil
}

// Email sends a message to an address that has no user account yet, such as
// an account request applicant.
func (s *Service) Email(ctx context.Context, tenantID, to, subject, body string) error {
	if s.Mailer == nil || strings.TrimSpace(to) == "" {
		return nil
	}
	enabled, from := s.emailSettings(ctx, tenantID)
	if !enabled {
		return nil
	}
	if err := s.Mailer.Send(ctx, from, to, subject, body); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, tenantID, userID string, limit, offset int) ([]Notification, int, error) {
	total, err := s.store.CountNotifications(ctx, tenantID, userID)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.store.ListNotifications(ctx, tenantID, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) MarkRead(ctx context.Context, tenantID, userID, notificationID string) error {
	ok, err := s.store.MarkRead(ctx, tenantID, userID, notificationID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *Service) emailSettings(ctx context.Context, tenantID string) (bool, string) {
	enabled, from, err := s.store.EmailSettings(ctx, tenantID)
	if err != nil {
		return false, ""
	}
	if from == "" {
		from = s.DefaultFrom
	}
	return enabled, from
}
