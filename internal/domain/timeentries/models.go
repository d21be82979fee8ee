package timeentries

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

type Entry struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Project     string          `json:"project"`
	Description string          `json:"description"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     *time.Time      `json:"end_time,omitempty"`
	Status      string          `json:"status"`
	Hours       decimal.Decimal `json:"hours"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Input starts a timer when EndTime is nil, otherwise logs a finished entry.
type Input struct {
	UserID      string     `json:"user_id"`
	Project     string     `json:"project"`
	Description string     `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
}

type Patch struct {
	Project     *string    `json:"project"`
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
}

type Filter struct {
	UserID string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// withHours fills Hours from the start and end times, rounded to cents.
func (e Entry) withHours() Entry {
	if e.EndTime == nil {
		e.Hours = decimal.Zero
		return e
	}
	seconds := int64(e.EndTime.Sub(e.StartTime) / time.Second)
	e.Hours = decimal.NewFromInt(seconds).DivRound(decimal.NewFromInt(3600), 2)
	return e
}
