package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

type PayRate struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	RateType           string          `json:"rate_type"`
	BaseRate           decimal.Decimal `json:"base_rate"`
	Currency           string          `json:"currency"`
	OvertimeMultiplier decimal.Decimal `json:"overtime_multiplier"`
	EffectiveFrom      time.Time       `json:"effective_from"`
	EffectiveTo        *time.Time      `json:"effective_to,omitempty"`
	IsActive           bool            `json:"is_active"`
	CreatedAt          time.Time       `json:"created_at"`
}

// ActiveOn reports whether the rate covers the given calendar day.
func (r PayRate) ActiveOn(day time.Time) bool {
	d := dateOnly(day)
	if d.Before(dateOnly(r.EffectiveFrom)) {
		return false
	}
	return r.EffectiveTo == nil || !d.After(dateOnly(*r.EffectiveTo))
}

type RateInput struct {
	UserID             string
	RateType           string
	BaseRate           decimal.Decimal
	Currency           string
	OvertimeMultiplier decimal.Decimal
	EffectiveFrom      time.Time
}

// Selection decides which employees a period pays. A non-empty UserIDs list
// always wins over the rate type filter.
type Selection struct {
	Mode     string   `json:"mode"`
	RateType string   `json:"rate_type,omitempty"`
	UserIDs  []string `json:"user_ids,omitempty"`
}

type Period struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	PeriodType   string          `json:"period_type"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	Status       string          `json:"status"`
	Selection    Selection       `json:"employee_selection"`
	EntriesCount int             `json:"entries_count"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	CreatedBy    string          `json:"created_by,omitempty"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
	ApprovedAt   *time.Time      `json:"approved_at,omitempty"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
	VoidedAt     *time.Time      `json:"voided_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type PeriodInput struct {
	Name       string
	PeriodType string
	StartDate  time.Time
	EndDate    time.Time
	Selection  Selection
}

// PeriodPatch carries the fields of a draft period update; nil means unchanged.
type PeriodPatch struct {
	Name       *string
	PeriodType *string
	StartDate  *time.Time
	EndDate    *time.Time
	Selection  *Selection
}

type PeriodFilter struct {
	Status     string
	PeriodType string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

type Entry struct {
	ID                string              `json:"id"`
	PeriodID          string              `json:"period_id"`
	UserID            string              `json:"user_id"`
	UserName          string              `json:"user_name,omitempty"`
	UserEmail         string              `json:"user_email,omitempty"`
	PayRateID         string              `json:"pay_rate_id,omitempty"`
	RateType          string              `json:"rate_type"`
	Currency          string              `json:"currency"`
	RegularHours      decimal.NullDecimal `json:"regular_hours"`
	OvertimeHours     decimal.NullDecimal `json:"overtime_hours"`
	RegularRate       decimal.Decimal     `json:"regular_rate"`
	OvertimeRate      decimal.Decimal     `json:"overtime_rate"`
	GrossAmount       decimal.Decimal     `json:"gross_amount"`
	AdjustmentsAmount decimal.Decimal     `json:"adjustments_amount"`
	NetAmount         decimal.Decimal     `json:"net_amount"`
	Status            string              `json:"status"`
	HasPayslip        bool                `json:"has_payslip"`
	PayslipPath       string              `json:"-"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Candidate is a tenant user considered for a period together with the pay
// rates that overlap it.
type Candidate struct {
	UserID   string
	Email    string
	FullName string
	Active   bool
	Rates    []PayRate
}

// Selected is a candidate that made it through selection with its resolved rate.
type Selected struct {
	Candidate
	Rate PayRate
}

// WorkLog is one completed time entry inside a period.
type WorkLog struct {
	Start time.Time
	Hours decimal.Decimal
}

type SkippedEmployee struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

type GenerationReport struct {
	Generated   int               `json:"generated"`
	Skipped     []SkippedEmployee `json:"skipped"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
}

type ProcessResult struct {
	Period Period           `json:"period"`
	Report GenerationReport `json:"report"`
}
