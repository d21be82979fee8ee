package notifications

const (
	TypePaymentIssued          = "payment_issued"
	TypeAccountRequestReceived = "account_request_received"
	TypePayrollPeriodApproved  = "payroll_period_approved"
)
