package events

import (
	"context"
	"sync"
	"time"
)

const (
	TypeTimeEntryCreated   = "time_entry_created"
	TypeTimeEntryUpdated   = "time_entry_updated"
	TypeTimeEntryCompleted = "time_entry_completed"
	TypeTimeEntryDeleted   = "time_entry_deleted"
	TypePayrollPeriod      = "payroll_period_updated"
	TypePayRateUpdated     = "pay_rate_updated"
	TypeAccountRequest     = "account_request_updated"

	ResourceTimeEntry      = "time_entry"
	ResourcePayrollPeriod  = "payroll_period"
	ResourcePayRate        = "pay_rate"
	ResourceAccountRequest = "account_request"
)

// Resource identifies what a client cache entry should be dropped for.
type Resource struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	UserID string `json:"user_id,omitempty"`
}

// Event is a cache-invalidation message emitted after a successful mutation.
type Event struct {
	Type       string    `json:"type"`
	TenantID   string    `json:"tenant_id"`
	Resource   Resource  `json:"resource"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func New(eventType, tenantID string, resource Resource) Event {
	return Event{Type: eventType, TenantID: tenantID, Resource: resource, OccurredAt: time.Now().UTC()}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Types() []string {
	var out []string
	for _, evt := range r.Events() {
		out = append(out, evt.Type)
	}
	return out
}
