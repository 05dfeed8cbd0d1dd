package types

import "testing"

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to InterviewStatus
		ok       bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusInProgress, StatusMerged, true},
		{StatusMerged, StatusValidated, true},
		{StatusValidated, StatusAccepted, true},
		{StatusValidated, StatusFlaggedForReview, true},
		{StatusPending, StatusMerged, false},
		{StatusInProgress, StatusValidated, false},
		{StatusAccepted, StatusPending, false},
		{StatusFlaggedForReview, StatusInProgress, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.ok {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []InterviewStatus{StatusAccepted, StatusFlaggedForReview} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []InterviewStatus{StatusPending, StatusInProgress, StatusMerged, StatusValidated} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestBatchTurnIDs(t *testing.T) {
	b := Batch{Index: 2, Turns: []Turn{
		{TurnID: 9, Speaker: RoleInterviewer, Text: "q"},
		{TurnID: 10, Speaker: RoleParticipant, Text: "a"},
	}}
	ids := b.TurnIDs()
	if len(ids) != 2 || ids[0] != 9 || ids[1] != 10 {
		t.Fatalf("unexpected turn ids: %v", ids)
	}
}
