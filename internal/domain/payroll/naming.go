package payroll

import (
	"fmt"
	"time"
)

var periodTypeLabels = map[string]string{
	PeriodTypeWeekly:      "Weekly",
	PeriodTypeBiWeekly:    "Bi-Weekly",
	PeriodTypeSemiMonthly: "Semi-Monthly",
	PeriodTypeMonthly:     "Monthly",
}

// DefaultPeriodName names a period after its dates, e.g. "March 2025 - Monthly"
// for a whole calendar month.
func DefaultPeriodName(periodType string, start, end time.Time) string {
	label := periodTypeLabels[periodType]
	start, end = dateOnly(start), dateOnly(end)
	if start.Day() == 1 && end.Equal(start.AddDate(0, 1, -1)) {
		return fmt.Sprintf("%s - %s", start.Format("January 2006"), label)
	}
	return fmt.Sprintf("%s to %s - %s", start.Format("2006-01-02"), end.Format("2006-01-02"), label)
}

// SuggestEndDate derives the natural end of a period starting on start.
func SuggestEndDate(periodType string, start time.Time) time.Time {
	start = dateOnly(start)
	monthEnd := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
	switch periodType {
	case PeriodTypeWeekly:
		return start.AddDate(0, 0, 6)
	case PeriodTypeBiWeekly:
		return start.AddDate(0, 0, 13)
	case PeriodTypeSemiMonthly:
		if start.Day() <= 15 {
			return time.Date(start.Year(), start.Month(), 15, 0, 0, 0, 0, time.UTC)
		}
		return monthEnd
	default:
		return monthEnd
	}
}
