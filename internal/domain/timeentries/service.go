package timeentries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"timeledger/internal/domain/auth"
	"timeledger/internal/domain/events"
	"timeledger/internal/platform/apperr"
)

var (
	ErrEntryNotFound    = apperr.New(apperr.KindNotFound, "time entry not found")
	ErrForbidden        = apperr.New(apperr.KindPermission, "only admins or owners can manage other users' time entries")
	ErrTimerRunning     = apperr.New(apperr.KindConflict, "a timer is already running for this user")
	ErrAlreadyCompleted = apperr.New(apperr.KindInvalidState, "time entry is already completed")
	ErrUserInactive     = apperr.New(apperr.KindInvalidState, "user is not active")
)

const maxEntryDuration = 24 * time.Hour

type Service struct {
	store  StoreAPI
	events events.Publisher
	now    func() time.Time
}

func NewService(store StoreAPI, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{store: store, events: publisher, now: time.Now}
}

// List returns entries ordered newest first. Employees only ever see their own.
func (s *Service) List(ctx context.Context, session auth.Session, filter Filter) ([]Entry, int, error) {
	if !session.Privileged() {
		if filter.UserID != "" && filter.UserID != session.UserID {
			return nil, 0, ErrForbidden
		}
		filter.UserID = session.UserID
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, 0, apperr.Validation("payload validation failed",
			apperr.FieldIssue{Field: "to", Reason: "must be on or after from"})
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	items, total, err := s.store.List(ctx, session.TenantID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list time entries: %w", err)
	}
	if items == nil {
		items = []Entry{}
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, session auth.Session, id string) (Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Entry{}, ErrEntryNotFound
	}
	entry, err := s.store.Get(ctx, session.TenantID, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	if !session.CanActFor(entry.UserID) {
		return Entry{}, ErrEntryNotFound
	}
	return entry, nil
}

func (s *Service) Create(ctx context.Context, session auth.Session, in Input) (Entry, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		userID = session.UserID
	}
	if !session.CanActFor(userID) {
		return Entry{}, ErrForbidden
	}
	if _, err := uuid.Parse(userID); err != nil {
		return Entry{}, apperr.Validation("payload validation failed", apperr.FieldIssue{Field: "user_id", Reason: "must be a valid id"})
	}

	entry := Entry{
		UserID:      userID,
		Project:     strings.TrimSpace(in.Project),
		Description: strings.TrimSpace(in.Description),
		StartTime:   s.now().UTC(),
		EndTime:     in.EndTime,
		Status:      StatusRunning,
	}
	if in.StartTime != nil {
		entry.StartTime = *in.StartTime
	}
	if entry.EndTime != nil {
		entry.Status = StatusCompleted
	}
	if err := s.validate(entry); err != nil {
		return Entry{}, err
	}

	active, err := s.store.UserActive(ctx, session.TenantID, userID)
	if err != nil {
		return Entry{}, fmt.Errorf("check user: %w", err)
	}
	if !active {
		return Entry{}, ErrUserInactive
	}
	if entry.Status == StatusRunning {
		running, err := s.store.HasRunning(ctx, session.TenantID, userID)
		if err != nil {
			return Entry{}, fmt.Errorf("check running timer: %w", err)
		}
		if running {
			return Entry{}, ErrTimerRunning
		}
	}

	created, err := s.store.Create(ctx, session.TenantID, entry)
	if err != nil {
		return Entry{}, fmt.Errorf("create time entry: %w", err)
	}
	s.publish(ctx, session.TenantID, events.TypeTimeEntryCreated, created)
	return created, nil
}

func (s *Service) Update(ctx context.Context, session auth.Session, id string, patch Patch) (Entry, error) {
	entry, err := s.Get(ctx, session, id)
	if err != nil {
		return Entry{}, err
	}
	if patch.Project != nil {
		entry.Project = strings.TrimSpace(*patch.Project)
	}
	if patch.Description != nil {
		entry.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.StartTime != nil {
		entry.StartTime = *patch.StartTime
	}
	eventType := events.TypeTimeEntryUpdated
	if patch.EndTime != nil {
		if entry.Status == StatusRunning {
			eventType = events.TypeTimeEntryCompleted
		}
		entry.EndTime = patch.EndTime
		entry.Status = StatusCompleted
	}
	if err := s.validate(entry); err != nil {
		return Entry{}, err
	}

	updated, err := s.store.Update(ctx, session.TenantID, entry)
	if err != nil {
		return Entry{}, fmt.Errorf("update time entry: %w", err)
	}
	s.publish(ctx, session.TenantID, eventType, updated)
	return updated, nil
}

// Complete stops a running timer at end, or now when end is nil.
func (s *Service) Complete(ctx context.Context, session auth.Session, id string, end *time.Time) (Entry, error) {
	entry, err := s.Get(ctx, session, id)
	if err != nil {
		return Entry{}, err
	}
	if entry.Status == StatusCompleted {
		return Entry{}, ErrAlreadyCompleted
	}
	stop := s.now().UTC()
	if end != nil {
		stop = *end
	}
	entry.EndTime = &stop
	entry.Status = StatusCompleted
	if err := s.validate(entry); err != nil {
		return Entry{}, err
	}

	updated, err := s.store.Update(ctx, session.TenantID, entry)
	if err != nil {
		return Entry{}, fmt.Errorf("complete time entry: %w", err)
	}
	s.publish(ctx, session.TenantID, events.TypeTimeEntryCompleted, updated)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, session auth.Session, id string) error {
	entry, err := s.Get(ctx, session, id)
	if err != nil {
		return err
	}
	ok, err := s.store.Delete(ctx, session.TenantID, id)
	if err != nil {
		return fmt.Errorf("delete time entry: %w", err)
	}
	if !ok {
		return ErrEntryNotFound
	}
	s.publish(ctx, session.TenantID, events.TypeTimeEntryDeleted, entry)
	return nil
}

func (s *Service) validate(entry Entry) error {
	var issues []apperr.FieldIssue
	if len(entry.Project) > 200 {
		issues = append(issues, apperr.FieldIssue{Field: "project", Reason: "must be at most 200 characters"})
	}
	if len(entry.Description) > 2000 {
		issues = append(issues, apperr.FieldIssue{Field: "description", Reason: "must be at most 2000 characters"})
	}
	if entry.StartTime.After(s.now().Add(time.Minute)) {
		issues = append(issues, apperr.FieldIssue{Field: "start_time", Reason: "cannot be in the future"})
	}
	if entry.EndTime != nil {
		switch {
		case entry.EndTime.Before(entry.StartTime):
			issues = append(issues, apperr.FieldIssue{Field: "end_time", Reason: "must be on or after start_time"})
		case entry.EndTime.Sub(entry.StartTime) > maxEntryDuration:
			issues = append(issues, apperr.FieldIssue{Field: "end_time", Reason: "entry cannot exceed 24 hours"})
		}
	}
	if len(issues) > 0 {
		return apperr.Validation("payload validation failed", issues...)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, tenantID, eventType string, entry Entry) {
	evt := events.New(eventType, tenantID, events.Resource{Type: events.ResourceTimeEntry, ID: entry.ID, UserID: entry.UserID})
	evt.Status = entry.Status
	s.events.Publish(ctx, evt)
}
