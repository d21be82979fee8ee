package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy holds the tenant-wide pay calculation knobs.
type Policy struct {
	WeeklyOvertimeHours decimal.Decimal
	WorkdayHours        decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		WeeklyOvertimeHours: decimal.NewFromInt(40),
		WorkdayHours:        decimal.NewFromInt(8),
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// weekStart returns the Monday of the week containing t.
func weekStart(t time.Time) time.Time {
	d := dateOnly(t.UTC())
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// SplitOvertime buckets hours into Monday-start weeks. Hours past the weekly
// threshold inside one week are overtime.
func SplitOvertime(logs []WorkLog, threshold decimal.Decimal) (regular, overtime decimal.Decimal) {
	weeks := make(map[time.Time]decimal.Decimal)
	for _, log := range logs {
		if !log.Hours.IsPositive() {
			continue
		}
		key := weekStart(log.Start)
		weeks[key] = weeks[key].Add(log.Hours)
	}

	regular, overtime = decimal.Zero, decimal.Zero
	for _, hours := range weeks {
		if hours.GreaterThan(threshold) {
			regular = regular.Add(threshold)
			overtime = overtime.Add(hours.Sub(threshold))
			continue
		}
		regular = regular.Add(hours)
	}
	return regular.Round(2), overtime.Round(2)
}

// ProrateMonthly pays base for each calendar month the range touches, scaled
// by the share of that month's days inside the range.
func ProrateMonthly(base decimal.Decimal, start, end time.Time) decimal.Decimal {
	total := decimal.Zero
	cursor := dateOnly(start)
	last := dateOnly(end)
	for !cursor.After(last) {
		monthStart := time.Date(cursor.Year(), cursor.Month(), 1, 0, 0, 0, 0, time.UTC)
		monthEnd := monthStart.AddDate(0, 1, -1)
		segmentEnd := monthEnd
		if last.Before(segmentEnd) {
			segmentEnd = last
		}
		covered := int(segmentEnd.Sub(cursor).Hours()/24) + 1
		days := monthEnd.Day()
		if covered == days {
			total = total.Add(base)
		} else {
			total = total.Add(base.Mul(decimal.NewFromInt(int64(covered))).Div(decimal.NewFromInt(int64(days))))
		}
		cursor = segmentEnd.AddDate(0, 0, 1)
	}
	return total.Round(2)
}

func NetAmount(gross, adjustments decimal.Decimal) decimal.Decimal {
	return gross.Add(adjustments)
}

// ComputeEntry prices one employee for one period. logs are only read for
// hourly and daily rates.
func ComputeEntry(period Period, rate PayRate, logs []WorkLog, policy Policy) Entry {
	entry := Entry{
		PeriodID:          period.ID,
		UserID:            rate.UserID,
		PayRateID:         rate.ID,
		RateType:          rate.RateType,
		Currency:          rate.Currency,
		AdjustmentsAmount: decimal.Zero,
		OvertimeRate:      decimal.Zero,
		Status:            EntryStatusPending,
	}

	switch rate.RateType {
	case RateTypeHourly, RateTypeDaily:
		hourlyRate := rate.BaseRate
		if rate.RateType == RateTypeDaily {
			hourlyRate = rate.BaseRate.DivRound(policy.WorkdayHours, 4)
		}
		multiplier := rate.OvertimeMultiplier
		if multiplier.IsZero() {
			multiplier = decimal.NewFromFloat(1.5)
		}
		regular, overtime := SplitOvertime(logs, policy.WeeklyOvertimeHours)
		entry.RegularHours = decimal.NewNullDecimal(regular)
		entry.OvertimeHours = decimal.NewNullDecimal(overtime)
		entry.RegularRate = hourlyRate
		entry.OvertimeRate = hourlyRate.Mul(multiplier).Round(4)
		entry.GrossAmount = regular.Mul(entry.RegularRate).Add(overtime.Mul(entry.OvertimeRate)).Round(2)
	case RateTypeMonthly:
		entry.RegularRate = rate.BaseRate
		entry.GrossAmount = ProrateMonthly(rate.BaseRate, period.StartDate, period.EndDate)
	default:
		entry.RegularRate = rate.BaseRate
		entry.GrossAmount = rate.BaseRate.Round(2)
	}

	entry.NetAmount = NetAmount(entry.GrossAmount, entry.AdjustmentsAmount)
	return entry
}
