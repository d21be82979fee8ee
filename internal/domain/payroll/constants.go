package payroll

const (
	PeriodStatusDraft      = "draft"
	PeriodStatusProcessing = "processing"
	PeriodStatusApproved   = "approved"
	PeriodStatusPaid       = "paid"
	PeriodStatusVoid       = "void"

	EntryStatusPending  = "pending"
	EntryStatusApproved = "approved"
	EntryStatusPaid     = "paid"
	EntryStatusVoid     = "void"

	RateTypeHourly       = "hourly"
	RateTypeDaily        = "daily"
	RateTypeMonthly      = "monthly"
	RateTypeProjectBased = "project_based"

	PeriodTypeWeekly      = "weekly"
	PeriodTypeBiWeekly    = "bi_weekly"
	PeriodTypeSemiMonthly = "semi_monthly"
	PeriodTypeMonthly     = "monthly"

	SelectionAll      = "all"
	SelectionRateType = "rate_type"
	SelectionExplicit = "explicit"

	ActionUpdate   = "update"
	ActionProcess  = "process"
	ActionApprove  = "approve"
	ActionMarkPaid = "mark_paid"
	ActionVoid     = "void"
	ActionAdjust   = "adjust"

	JobPayrollProcess = "payroll_process"

	SkipReasonNoRate       = "no active pay rate"
	SkipReasonInactive     = "user is inactive"
	SkipReasonUnknownUser  = "user not found"
	SkipReasonAlreadyExist = "entry already exists"
)

var (
	RateTypes      = []string{RateTypeHourly, RateTypeDaily, RateTypeMonthly, RateTypeProjectBased}
	PeriodTypes    = []string{PeriodTypeWeekly, PeriodTypeBiWeekly, PeriodTypeSemiMonthly, PeriodTypeMonthly}
	PeriodStatuses = []string{PeriodStatusDraft, PeriodStatusProcessing, PeriodStatusApproved, PeriodStatusPaid, PeriodStatusVoid}
	SelectionModes = []string{SelectionAll, SelectionRateType, SelectionExplicit}
)

func isHoursBased(rateType string) bool {
	return rateType == RateTypeHourly || rateType == RateTypeDaily
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
