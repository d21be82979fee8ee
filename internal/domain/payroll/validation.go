package payroll

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"timeledger/internal/platform/apperr"
)

const maxPeriodNameLength = 200

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func fieldError(field, reason string) error {
	return apperr.Validation("payload validation failed", apperr.FieldIssue{Field: field, Reason: reason})
}

// prepareInput validates a period payload and fills derived values: the end
// date for a bare start, the selection mode and the generated name.
func prepareInput(in PeriodInput) (PeriodInput, error) {
	var issues []apperr.FieldIssue
	in.Name = strings.TrimSpace(in.Name)
	in.PeriodType = strings.TrimSpace(in.PeriodType)

	if !contains(PeriodTypes, in.PeriodType) {
		issues = append(issues, apperr.FieldIssue{Field: "period_type", Reason: "must be one of " + strings.Join(PeriodTypes, ", ")})
	}
	if in.StartDate.IsZero() {
		issues = append(issues, apperr.FieldIssue{Field: "start_date", Reason: "is required"})
	} else {
		in.StartDate = dateOnly(in.StartDate)
		if in.EndDate.IsZero() {
			in.EndDate = SuggestEndDate(in.PeriodType, in.StartDate)
		}
		in.EndDate = dateOnly(in.EndDate)
		if in.EndDate.Before(in.StartDate) {
			issues = append(issues, apperr.FieldIssue{Field: "end_date", Reason: "must be on or after start_date"})
		}
	}
	if len(in.Name) > maxPeriodNameLength {
		issues = append(issues, apperr.FieldIssue{Field: "name", Reason: "must be at most 200 characters"})
	}

	sel := in.Selection
	if sel.Mode != "" && !contains(SelectionModes, sel.Mode) {
		issues = append(issues, apperr.FieldIssue{Field: "employee_selection.mode", Reason: "must be one of " + strings.Join(SelectionModes, ", ")})
	}
	if sel.RateType != "" && !contains(RateTypes, strings.TrimSpace(sel.RateType)) {
		issues = append(issues, apperr.FieldIssue{Field: "employee_selection.rate_type", Reason: "must be one of " + strings.Join(RateTypes, ", ")})
	}
	if sel.Mode == SelectionRateType && strings.TrimSpace(sel.RateType) == "" {
		issues = append(issues, apperr.FieldIssue{Field: "employee_selection.rate_type", Reason: "is required when mode is rate_type"})
	}
	for _, id := range sel.UserIDs {
		if strings.TrimSpace(id) != "" && !validID(strings.TrimSpace(id)) {
			issues = append(issues, apperr.FieldIssue{Field: "employee_selection.user_ids", Reason: "must contain valid ids"})
			break
		}
	}

	if len(issues) > 0 {
		return PeriodInput{}, apperr.Validation("payload validation failed", issues...)
	}

	in.Selection = NormalizeSelection(sel)
	if in.Selection.Mode == SelectionExplicit && len(in.Selection.UserIDs) == 0 {
		return PeriodInput{}, ErrNoEmployeesSelected
	}
	if in.Name == "" {
		in.Name = DefaultPeriodName(in.PeriodType, in.StartDate, in.EndDate)
	}
	return in, nil
}

func validateFilter(filter PeriodFilter) error {
	if filter.Status != "" && !contains(PeriodStatuses, filter.Status) {
		return fieldError("status", "must be one of "+strings.Join(PeriodStatuses, ", "))
	}
	if filter.PeriodType != "" && !contains(PeriodTypes, filter.PeriodType) {
		return fieldError("period_type", "must be one of "+strings.Join(PeriodTypes, ", "))
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return fieldError("end_date", "must be on or after start_date")
	}
	return nil
}

func prepareRate(in RateInput, now time.Time) (RateInput, error) {
	var issues []apperr.FieldIssue
	in.UserID = strings.TrimSpace(in.UserID)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = "USD"
	}
	if in.OvertimeMultiplier.IsZero() {
		in.OvertimeMultiplier = decimal.NewFromFloat(1.5)
	}
	if in.EffectiveFrom.IsZero() {
		in.EffectiveFrom = now
	}
	in.EffectiveFrom = dateOnly(in.EffectiveFrom)

	if !validID(in.UserID) {
		issues = append(issues, apperr.FieldIssue{Field: "user_id", Reason: "must be a valid id"})
	}
	if !contains(RateTypes, in.RateType) {
		issues = append(issues, apperr.FieldIssue{Field: "rate_type", Reason: "must be one of " + strings.Join(RateTypes, ", ")})
	}
	if !in.BaseRate.IsPositive() {
		issues = append(issues, apperr.FieldIssue{Field: "base_rate", Reason: "must be greater than 0"})
	}
	if in.OvertimeMultiplier.LessThan(decimal.NewFromInt(1)) {
		issues = append(issues, apperr.FieldIssue{Field: "overtime_multiplier", Reason: "must be at least 1.0"})
	}
	if _, err := currency.ParseISO(in.Currency); err != nil {
		issues = append(issues, apperr.FieldIssue{Field: "currency", Reason: "must be an ISO 4217 code"})
	}
	if len(issues) > 0 {
		return RateInput{}, apperr.Validation("payload validation failed", issues...)
	}
	in.BaseRate = in.BaseRate.Round(2)
	return in, nil
}
