package domain

// Violation and appeal statuses form small directed state machines. Earlier
// revisions let any status jump to any other; transitions are now checked
// against explicit tables and everything else is rejected.

var violationTransitions = map[ViolationStatus][]ViolationStatus{
	ViolationUnpaid:      {ViolationPaid, ViolationUnderReview},
	ViolationUnderReview: {ViolationDismissed, ViolationUnpaid},
	ViolationPaid:        nil,
	ViolationDismissed:   nil,
}

var appealTransitions = map[AppealStatus][]AppealStatus{
	AppealPending:     {AppealApproved, AppealDenied, AppealUnderReview},
	AppealUnderReview: {AppealApproved, AppealDenied},
	AppealApproved:    nil,
	AppealDenied:      nil,
}

// CanTransitionViolation reports whether a violation may move from -> to.
func CanTransitionViolation(from, to ViolationStatus) bool {
	for _, next := range violationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionAppeal reports whether an appeal may move from -> to.
func CanTransitionAppeal(from, to AppealStatus) bool {
	for _, next := range appealTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ViolationStatusForDecision maps an admin decision on an appeal to the status
// forced onto the linked violation.
func ViolationStatusForDecision(decision AppealStatus) (ViolationStatus, bool) {
	switch decision {
	case AppealApproved:
		return ViolationDismissed, true
	case AppealDenied:
		return ViolationUnpaid, true
	case AppealUnderReview:
		return ViolationUnderReview, true
	default:
		return "", false
	}
}

// ParseAppealDecision validates an admin-supplied decision string.
func ParseAppealDecision(raw string) (AppealStatus, bool) {
	switch AppealStatus(raw) {
	case AppealApproved, AppealDenied, AppealUnderReview:
		return AppealStatus(raw), true
	default:
		return "", false
	}
}
