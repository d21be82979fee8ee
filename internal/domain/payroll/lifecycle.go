package payroll

// transitions lists the period statuses each action may start from.
var transitions = map[string][]string{
	ActionUpdate:   {PeriodStatusDraft},
	ActionProcess:  {PeriodStatusDraft},
	ActionApprove:  {PeriodStatusDraft, PeriodStatusProcessing},
	ActionMarkPaid: {PeriodStatusApproved},
	ActionVoid:     {PeriodStatusDraft, PeriodStatusProcessing},
	ActionAdjust:   {PeriodStatusProcessing},
}

var targetStatus = map[string]string{
	ActionProcess:  PeriodStatusProcessing,
	ActionApprove:  PeriodStatusApproved,
	ActionMarkPaid: PeriodStatusPaid,
	ActionVoid:     PeriodStatusVoid,
}

// entryStatusFor is the status entries move to alongside their period.
var entryStatusFor = map[string]string{
	ActionApprove:  EntryStatusApproved,
	ActionMarkPaid: EntryStatusPaid,
	ActionVoid:     EntryStatusVoid,
}

func AllowedFrom(action string) []string {
	return transitions[action]
}

func CanTransition(action, from string) bool {
	return contains(transitions[action], from)
}

// CheckTransition returns an invalid_state error when action is not legal
// from the given status.
func CheckTransition(action, from string) error {
	if CanTransition(action, from) {
		return nil
	}
	return transitionError(action, from)
}

func TargetStatus(action string) string {
	return targetStatus[action]
}

// Terminal reports whether no further lifecycle action applies.
func Terminal(status string) bool {
	return status == PeriodStatusPaid || status == PeriodStatusVoid
}
