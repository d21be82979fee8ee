package accountrequests

import "time"

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var Statuses = []string{StatusPending, StatusApproved, StatusRejected}

type Request struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	FullName        string     `json:"full_name"`
	Message         string     `json:"message"`
	Status          string     `json:"status"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	DecidedBy       *string    `json:"decided_by,omitempty"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type Input struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Message  string `json:"message"`
}

// Prefill seeds the staff creation form after an approval.
type Prefill struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type Decision struct {
	Request Request  `json:"request"`
	Prefill *Prefill `json:"prefill,omitempty"`
}
