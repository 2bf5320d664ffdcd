package domain

import "testing"

func TestViolationTransitions(t *testing.T) {
	allowed := []struct{ from, to ViolationStatus }{
		{ViolationUnpaid, ViolationPaid},
		{ViolationUnpaid, ViolationUnderReview},
		{ViolationUnderReview, ViolationDismissed},
		{ViolationUnderReview, ViolationUnpaid},
	}
	for _, tr := range allowed {
		if !CanTransitionViolation(tr.from, tr.to) {
			t.Errorf("expected %s -> %s to be allowed", tr.from, tr.to)
		}
	}
	rejected := []struct{ from, to ViolationStatus }{
		{ViolationPaid, ViolationUnpaid},
		{ViolationDismissed, ViolationPaid},
		{ViolationDismissed, ViolationUnpaid},
		{ViolationUnpaid, ViolationDismissed},
		{ViolationPaid, ViolationPaid},
	}
	for _, tr := range rejected {
		if CanTransitionViolation(tr.from, tr.to) {
			t.Errorf("expected %s -> %s to be rejected", tr.from, tr.to)
		}
	}
}

func TestAppealTransitions(t *testing.T) {
	if !CanTransitionAppeal(AppealPending, AppealApproved) {
		t.Error("pending -> approved should be allowed")
	}
	if !CanTransitionAppeal(AppealPending, AppealUnderReview) {
		t.Error("pending -> under_review should be allowed")
	}
	if !CanTransitionAppeal(AppealUnderReview, AppealDenied) {
		t.Error("under_review -> denied should be allowed")
	}
	// Approved and denied are terminal without an explicit reopen action.
	if CanTransitionAppeal(AppealApproved, AppealDenied) {
		t.Error("approved -> denied should be rejected")
	}
	if CanTransitionAppeal(AppealDenied, AppealApproved) {
		t.Error("denied -> approved should be rejected")
	}
	if CanTransitionAppeal(AppealUnderReview, AppealUnderReview) {
		t.Error("under_review -> under_review should be rejected")
	}
}

func TestViolationStatusForDecision(t *testing.T) {
	cases := map[AppealStatus]ViolationStatus{
		AppealApproved:    ViolationDismissed,
		AppealDenied:      ViolationUnpaid,
		AppealUnderReview: ViolationUnderReview,
	}
	for decision, want := range cases {
		got, ok := ViolationStatusForDecision(decision)
		if !ok || got != want {
			t.Errorf("decision %s: got %s ok=%v, want %s", decision, got, ok, want)
		}
	}
	if _, ok := ViolationStatusForDecision(AppealPending); ok {
		t.Error("pending is not a decision")
	}
}

func TestParseAppealDecision(t *testing.T) {
	if _, ok := ParseAppealDecision("approved"); !ok {
		t.Error("approved should parse")
	}
	if _, ok := ParseAppealDecision("pending"); ok {
		t.Error("pending should not parse as a decision")
	}
	if _, ok := ParseAppealDecision("bogus"); ok {
		t.Error("bogus should not parse")
	}
}
