package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// Filter narrows the payables report. Status is the period status.
type Filter struct {
	PeriodID   string
	Status     string
	PeriodType string
	UserID     string
	StartDate  *time.Time
	EndDate    *time.Time
}

// Row is one payroll entry joined with its period and employee.
type Row struct {
	EntryID           string              `json:"entry_id"`
	PeriodID          string              `json:"period_id"`
	PeriodName        string              `json:"period_name"`
	PeriodType        string              `json:"period_type"`
	PeriodStatus      string              `json:"period_status"`
	StartDate         time.Time           `json:"start_date"`
	EndDate           time.Time           `json:"end_date"`
	UserID            string              `json:"user_id"`
	UserName          string              `json:"user_name"`
	UserEmail         string              `json:"user_email"`
	RateType          string              `json:"rate_type"`
	Currency          string              `json:"currency"`
	RegularHours      decimal.NullDecimal `json:"regular_hours"`
	OvertimeHours     decimal.NullDecimal `json:"overtime_hours"`
	RegularRate       decimal.Decimal     `json:"regular_rate"`
	OvertimeRate      decimal.Decimal     `json:"overtime_rate"`
	GrossAmount       decimal.Decimal     `json:"gross_amount"`
	AdjustmentsAmount decimal.Decimal     `json:"adjustments_amount"`
	NetAmount         decimal.Decimal     `json:"net_amount"`
	EntryStatus       string              `json:"entry_status"`
}

type Summary struct {
	EntriesCount       int             `json:"entries_count"`
	TotalEmployees     int             `json:"total_employees"`
	TotalRegularHours  decimal.Decimal `json:"total_regular_hours"`
	TotalOvertimeHours decimal.Decimal `json:"total_overtime_hours"`
	TotalGrossAmount   decimal.Decimal `json:"total_gross_amount"`
	TotalAdjustments   decimal.Decimal `json:"total_adjustments"`
	TotalNetAmount     decimal.Decimal `json:"total_net_amount"`
}

type Report struct {
	Entries []Row   `json:"entries"`
	Summary Summary `json:"summary"`
}

type Dashboard struct {
	ActiveEmployees        int             `json:"active_employees"`
	PeriodsByStatus        map[string]int  `json:"periods_by_status"`
	PendingAccountRequests int             `json:"pending_account_requests"`
	OutstandingPayables    decimal.Decimal `json:"outstanding_payables"`
}

type JobRun struct {
	ID          string     `json:"id"`
	JobType     string     `json:"job_type"`
	Status      string     `json:"status"`
	Details     any        `json:"details,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
