package payroll

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func day(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func workWeek(monday string, hoursPerDay ...string) []WorkLog {
	start := day(monday).Add(9 * time.Hour)
	logs := make([]WorkLog, 0, len(hoursPerDay))
	for i, h := range hoursPerDay {
		logs = append(logs, WorkLog{Start: start.AddDate(0, 0, i), Hours: dec(h)})
	}
	return logs
}

func TestComputeEntryHourlyOvertime(t *testing.T) {
	period := Period{ID: "p1", StartDate: day("2025-03-03"), EndDate: day("2025-03-09")}
	rate := PayRate{ID: "r1", UserID: "u1", RateType: RateTypeHourly, BaseRate: dec("20"), Currency: "USD", OvertimeMultiplier: dec("1.5")}

	entry := ComputeEntry(period, rate, workWeek("2025-03-03", "9", "9", "9", "9", "9"), DefaultPolicy())

	if !entry.RegularHours.Valid || !entry.RegularHours.Decimal.Equal(dec("40")) {
		t.Fatalf("expected 40 regular hours, got %+v", entry.RegularHours)
	}
	if !entry.OvertimeHours.Decimal.Equal(dec("5")) {
		t.Fatalf("expected 5 overtime hours, got %s", entry.OvertimeHours.Decimal)
	}
	if !entry.OvertimeRate.Equal(dec("30")) {
		t.Fatalf("expected overtime rate 30, got %s", entry.OvertimeRate)
	}
	if entry.GrossAmount.StringFixed(2) != "950.00" {
		t.Fatalf("expected gross 950.00, got %s", entry.GrossAmount.StringFixed(2))
	}
	if !entry.NetAmount.Equal(entry.GrossAmount) || entry.Status != EntryStatusPending {
		t.Fatalf("expected pending entry with net == gross, got %+v", entry)
	}
}

func TestSplitOvertimeIsPerWeek(t *testing.T) {
	logs := append(workWeek("2025-03-03", "6", "6", "6", "6", "6"), workWeek("2025-03-10", "9", "9", "9", "9", "9")...)
	regular, overtime := SplitOvertime(logs, dec("40"))
	if !regular.Equal(dec("70")) || !overtime.Equal(dec("5")) {
		t.Fatalf("expected 70/5, got %s/%s", regular, overtime)
	}
}

func TestSplitOvertimeSundayBelongsToPreviousWeek(t *testing.T) {
	logs := []WorkLog{
		{Start: day("2025-03-03"), Hours: dec("38")},
		{Start: day("2025-03-09"), Hours: dec("4")},
		{Start: day("2025-03-10"), Hours: dec("4")},
	}
	regular, overtime := SplitOvertime(logs, dec("40"))
	if !regular.Equal(dec("44")) || !overtime.Equal(dec("2")) {
		t.Fatalf("expected 44/2, got %s/%s", regular, overtime)
	}
}

func TestComputeEntryDailyUsesWorkdayHours(t *testing.T) {
	period := Period{StartDate: day("2025-03-03"), EndDate: day("2025-03-09")}
	rate := PayRate{RateType: RateTypeDaily, BaseRate: dec("160"), OvertimeMultiplier: dec("1.5"), Currency: "USD"}

	entry := ComputeEntry(period, rate, workWeek("2025-03-03", "8", "8", "8", "8", "8"), DefaultPolicy())
	if !entry.RegularRate.Equal(dec("20")) {
		t.Fatalf("expected hourly equivalent 20, got %s", entry.RegularRate)
	}
	if entry.GrossAmount.StringFixed(2) != "800.00" {
		t.Fatalf("expected gross 800.00, got %s", entry.GrossAmount.StringFixed(2))
	}
}

func TestComputeEntryMonthlyFullMonth(t *testing.T) {
	period := Period{StartDate: day("2025-03-01"), EndDate: day("2025-03-31")}
	rate := PayRate{RateType: RateTypeMonthly, BaseRate: dec("3000"), Currency: "USD"}

	entry := ComputeEntry(period, rate, nil, DefaultPolicy())
	if entry.GrossAmount.StringFixed(2) != "3000.00" {
		t.Fatalf("expected 3000.00, got %s", entry.GrossAmount.StringFixed(2))
	}
	if entry.RegularHours.Valid || entry.OvertimeHours.Valid {
		t.Fatalf("expected no hours for monthly rate, got %+v / %+v", entry.RegularHours, entry.OvertimeHours)
	}
}

func TestComputeEntryProjectBasedPaysOnce(t *testing.T) {
	period := Period{StartDate: day("2025-03-01"), EndDate: day("2025-04-30")}
	rate := PayRate{RateType: RateTypeProjectBased, BaseRate: dec("1200"), Currency: "EUR"}

	entry := ComputeEntry(period, rate, nil, DefaultPolicy())
	if entry.GrossAmount.StringFixed(2) != "1200.00" || entry.Currency != "EUR" {
		t.Fatalf("expected 1200.00 EUR, got %s %s", entry.GrossAmount.StringFixed(2), entry.Currency)
	}
}

func TestProrateMonthly(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		start string
		end   string
		want  string
	}{
		{name: "full month", base: "3000", start: "2025-03-01", end: "2025-03-31", want: "3000.00"},
		{name: "first half", base: "3100", start: "2025-03-01", end: "2025-03-15", want: "1500.00"},
		{name: "spans two months", base: "2800", start: "2025-02-15", end: "2025-03-14", want: "2664.52"},
		{name: "two full months", base: "1000", start: "2025-01-01", end: "2025-02-28", want: "2000.00"},
		{name: "single day", base: "3000", start: "2025-04-10", end: "2025-04-10", want: "100.00"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ProrateMonthly(dec(tc.base), day(tc.start), day(tc.end))
			if got.StringFixed(2) != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got.StringFixed(2))
			}
		})
	}
}

func TestNetAmountKeepsNegativeAdjustments(t *testing.T) {
	net := NetAmount(dec("950.00"), dec("-49.99"))
	if net.StringFixed(2) != "900.01" {
		t.Fatalf("expected 900.01, got %s", net.StringFixed(2))
	}
}
