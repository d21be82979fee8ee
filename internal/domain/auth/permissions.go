package auth

const (
	RoleOwner    = "owner"
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

const (
	PermUsersRead       = "users.read"
	PermUsersWrite      = "users.write"
	PermTimeRead        = "time.read"
	PermTimeWrite       = "time.write"
	PermTimeManage      = "time.manage"
	PermRatesRead       = "payroll.rates.read"
	PermRatesWrite      = "payroll.rates.write"
	PermPayrollRead     = "payroll.read"
	PermPayrollWrite    = "payroll.write"
	PermPayrollProcess  = "payroll.process"
	PermPayrollApprove  = "payroll.approve"
	PermPayrollPay      = "payroll.pay"
	PermReportsRead     = "reports.read"
	PermAccountsReview  = "accounts.review"
	PermAuditRead       = "audit.read"
	PermPayslipsReadOwn = "payroll.payslips.own"
)

var DefaultPermissions = []string{
	PermUsersRead,
	PermUsersWrite,
	PermTimeRead,
	PermTimeWrite,
	PermTimeManage,
	PermRatesRead,
	PermRatesWrite,
	PermPayrollRead,
	PermPayrollWrite,
	PermPayrollProcess,
	PermPayrollApprove,
	PermPayrollPay,
	PermReportsRead,
	PermAccountsReview,
	PermAuditRead,
	PermPayslipsReadOwn,
}

var adminPermissions = []string{
	PermUsersRead,
	PermUsersWrite,
	PermTimeRead,
	PermTimeWrite,
	PermTimeManage,
	PermRatesRead,
	PermRatesWrite,
	PermPayrollRead,
	PermPayrollWrite,
	PermPayrollProcess,
	PermPayrollApprove,
	PermReportsRead,
	PermAccountsReview,
	PermAuditRead,
	PermPayslipsReadOwn,
}

// RolePermissions is seeded into role_permissions. Only owners can pay out
// periods.
var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermTimeRead,
		PermTimeWrite,
		PermPayslipsReadOwn,
	},
	RoleAdmin: adminPermissions,
	RoleOwner: DefaultPermissions,
}

var Roles = []string{RoleOwner, RoleAdmin, RoleEmployee}

func IsPrivileged(roleName string) bool {
	return roleName == RoleOwner || roleName == RoleAdmin
}
