package accountrequests

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"timeledger/internal/domain/auth"
	"timeledger/internal/domain/events"
	"timeledger/internal/domain/notifications"
	"timeledger/internal/platform/apperr"
	"timeledger/internal/requestctx"
)

var (
	ErrRequestNotFound = apperr.New(apperr.KindNotFound, "account request not found")
	ErrAlreadyDecided  = apperr.New(apperr.KindInvalidState, "only pending account requests can be decided")
	ErrDuplicate       = apperr.New(apperr.KindConflict, "an account or pending request already exists for this email")
)

// Notifier delivers in-app notices to staff and plain emails to applicants.
type Notifier interface {
	Create(ctx context.Context, tenantID, userID, ntype, title, body string) error
	Email(ctx context.Context, tenantID, to, subject, body string) error
}

type Service struct {
	store    StoreAPI
	notifier Notifier
	events   events.Publisher
}

func NewService(store StoreAPI, notifier Notifier, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{store: store, notifier: notifier, events: publisher}
}

// Submit records a public account request in the default tenant.
func (s *Service) Submit(ctx context.Context, in Input) (Request, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Message = strings.TrimSpace(in.Message)

	var issues []apperr.FieldIssue
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		issues = append(issues, apperr.FieldIssue{Field: "email", Reason: "must be a valid email address"})
	}
	if in.FullName == "" {
		issues = append(issues, apperr.FieldIssue{Field: "full_name", Reason: "required"})
	} else if len(in.FullName) > 200 {
		issues = append(issues, apperr.FieldIssue{Field: "full_name", Reason: "must be at most 200 characters"})
	}
	if len(in.Message) > 2000 {
		issues = append(issues, apperr.FieldIssue{Field: "message", Reason: "must be at most 2000 characters"})
	}
	if len(issues) > 0 {
		return Request{}, apperr.Validation("payload validation failed", issues...)
	}

	tenantID, err := s.store.DefaultTenant(ctx)
	if err != nil {
		return Request{}, fmt.Errorf("resolve tenant: %w", err)
	}
	taken, err := s.store.EmailTaken(ctx, tenantID, in.Email)
	if err != nil {
		return Request{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return Request{}, ErrDuplicate
	}

	req, err := s.store.Create(ctx, tenantID, in)
	if err != nil {
		return Request{}, fmt.Errorf("create account request: %w", err)
	}

	if s.notifier != nil {
		reviewers, err := s.store.ReviewerIDs(ctx, tenantID)
		if err != nil {
			requestctx.Logger(ctx).Warn("account request reviewer lookup failed", "err", err)
		}
		body := fmt.Sprintf("%s (%s) requested an account.", req.FullName, req.Email)
		for _, id := range reviewers {
			if err := s.notifier.Create(ctx, tenantID, id, notifications.TypeAccountRequestReceived, "New account request", body); err != nil {
				requestctx.Logger(ctx).Warn("account request notification failed", "userId", id, "err", err)
			}
		}
	}
	s.publish(ctx, tenantID, req)
	return req, nil
}

func (s *Service) List(ctx context.Context, session auth.Session, status string, limit, offset int) ([]Request, int, error) {
	status = strings.TrimSpace(status)
	if status != "" && !validStatus(status) {
		return nil, 0, apperr.Validation("payload validation failed",
			apperr.FieldIssue{Field: "status", Reason: "must be one of " + strings.Join(Statuses, ", ")})
	}
	items, total, err := s.store.List(ctx, session.TenantID, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []Request{}
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, session auth.Session, id string) (Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Request{}, ErrRequestNotFound
	}
	req, err := s.store.Get(ctx, session.TenantID, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrRequestNotFound
	}
	return req, err
}

// Approve marks the request approved and returns the staff pre-fill. The
// account itself is created separately through the users endpoint.
func (s *Service) Approve(ctx context.Context, session auth.Session, id string) (Decision, error) {
	req, err := s.decide(ctx, session, id, StatusApproved, "")
	if err != nil {
		return Decision{}, err
	}
	s.tell(ctx, session.TenantID, req, "Your account request was approved",
		fmt.Sprintf("Hello %s,\n\nYour account request has been approved. You will receive your login details shortly.", req.FullName))
	return Decision{
		Request: req,
		Prefill: &Prefill{Email: req.Email, FullName: req.FullName, Role: auth.RoleEmployee},
	}, nil
}

func (s *Service) Reject(ctx context.Context, session auth.Session, id, reason string) (Decision, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > 1000 {
		return Decision{}, apperr.Validation("payload validation failed",
			apperr.FieldIssue{Field: "reason", Reason: "must be at most 1000 characters"})
	}
	req, err := s.decide(ctx, session, id, StatusRejected, reason)
	if err != nil {
		return Decision{}, err
	}
	body := fmt.Sprintf("Hello %s,\n\nYour account request was not approved.", req.FullName)
	if reason != "" {
		body += "\n\nReason: " + reason
	}
	s.tell(ctx, session.TenantID, req, "Your account request was declined", body)
	return Decision{Request: req}, nil
}

func (s *Service) decide(ctx context.Context, session auth.Session, id, status, reason string) (Request, error) {
	current, err := s.Get(ctx, session, id)
	if err != nil {
		return Request{}, err
	}
	if current.Status != StatusPending {
		return Request{}, ErrAlreadyDecided
	}
	req, ok, err := s.store.Decide(ctx, session.TenantID, id, status, reason, session.UserID)
	if err != nil {
		return Request{}, fmt.Errorf("decide account request: %w", err)
	}
	if !ok {
		return Request{}, ErrAlreadyDecided
	}
	s.publish(ctx, session.TenantID, req)
	return req, nil
}

func (s *Service) tell(ctx context.Context, tenantID string, req Request, subject, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Email(ctx, tenantID, req.Email, subject, body); err != nil {
		requestctx.Logger(ctx).Warn("account request decision email failed", "requestId", req.ID, "err", err)
	}
}

func (s *Service) publish(ctx context.Context, tenantID string, req Request) {
	evt := events.New(events.TypeAccountRequest, tenantID, events.Resource{Type: events.ResourceAccountRequest, ID: req.ID})
	evt.Status = req.Status
	s.events.Publish(ctx, evt)
}

func validStatus(status string) bool {
	for _, v := range Statuses {
		if v == status {
			return true
		}
	}
	return false
}
