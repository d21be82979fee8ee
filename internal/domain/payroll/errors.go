package payroll

import (
	"fmt"
	"strings"

	"timeledger/internal/platform/apperr"
)

var (
	ErrPeriodNotFound        = apperr.New(apperr.KindNotFound, "payroll period not found")
	ErrEntryNotFound         = apperr.New(apperr.KindNotFound, "payroll entry not found")
	ErrUserNotFound          = apperr.New(apperr.KindNotFound, "user not found")
	ErrNoActiveRate          = apperr.New(apperr.KindNotFound, "no active pay rate")
	ErrPayslipNotFound       = apperr.New(apperr.KindNotFound, "payslip not available")
	ErrInvalidTransition     = apperr.New(apperr.KindInvalidState, "invalid payroll period transition")
	ErrNoEmployeesSelected   = apperr.Validation("select at least one employee", apperr.FieldIssue{Field: "employee_selection.user_ids", Reason: "select at least one employee"})
	ErrPaidDeleteUnconfirmed = apperr.Validation("deleting a paid period requires confirmation", apperr.FieldIssue{Field: "confirm", Reason: "must be true to delete a paid period"})
	ErrRateOverlap           = apperr.New(apperr.KindConflict, "a later pay rate already exists for this user")
	ErrPayslipForbidden      = apperr.New(apperr.KindPermission, "only admins or owners can read other employees' payslips")
)

var actionLabels = map[string]string{
	ActionUpdate:   "update",
	ActionProcess:  "process",
	ActionApprove:  "approve",
	ActionMarkPaid: "mark as paid",
	ActionVoid:     "void",
	ActionAdjust:   "adjust entries of",
}

// transitionError explains which action was refused from which status.
func transitionError(action, from string) error {
	allowed := transitions[action]
	return &apperr.Error{
		Kind:    apperr.KindInvalidState,
		Message: fmt.Sprintf("cannot %s a %s payroll period (allowed from: %s)", actionLabels[action], from, strings.Join(allowed, ", ")),
		Cause:   ErrInvalidTransition,
	}
}
