package reports

import "github.com/shopspring/decimal"

// Summarize totals a set of rows. Employees are counted once however many
// periods they appear in.
func Summarize(rows []Row) Summary {
	sum := Summary{
		EntriesCount:       len(rows),
		TotalRegularHours:  decimal.Zero,
		TotalOvertimeHours: decimal.Zero,
		TotalGrossAmount:   decimal.Zero,
		TotalAdjustments:   decimal.Zero,
		TotalNetAmount:     decimal.Zero,
	}
	users := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		users[row.UserID] = struct{}{}
		if row.RegularHours.Valid {
			sum.TotalRegularHours = sum.TotalRegularHours.Add(row.RegularHours.Decimal)
		}
		if row.OvertimeHours.Valid {
			sum.TotalOvertimeHours = sum.TotalOvertimeHours.Add(row.OvertimeHours.Decimal)
		}
		sum.TotalGrossAmount = sum.TotalGrossAmount.Add(row.GrossAmount)
		sum.TotalAdjustments = sum.TotalAdjustments.Add(row.AdjustmentsAmount)
		sum.TotalNetAmount = sum.TotalNetAmount.Add(row.NetAmount)
	}
	sum.TotalEmployees = len(users)
	return sum
}
