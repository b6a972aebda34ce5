package models

import "testing"

func TestSessionStatusTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    SessionStatus
		to      SessionStatus
		allowed bool
	}{
		{"pending to approved", SessionPending, SessionApproved, true},
		{"pending to declined", SessionPending, SessionDeclined, true},
		{"pending to completed", SessionPending, SessionCompleted, false},
		{"approved to completed", SessionApproved, SessionCompleted, true},
		{"approved to pending", SessionApproved, SessionPending, true},
		{"approved to declined", SessionApproved, SessionDeclined, false},
		{"declined to approved", SessionDeclined, SessionApproved, false},
		{"declined to pending", SessionDeclined, SessionPending, false},
		{"completed to pending", SessionCompleted, SessionPending, false},
		{"completed to approved", SessionCompleted, SessionApproved, false},
		{"pending to pending", SessionPending, SessionPending, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
				t.Fatalf("CanTransitionTo(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
			}
		})
	}
}

func TestSessionStatusTerminal(t *testing.T) {
	if SessionPending.Terminal() || SessionApproved.Terminal() {
		t.Fatal("pending and approved must not be terminal")
	}
	if !SessionDeclined.Terminal() || !SessionCompleted.Terminal() {
		t.Fatal("declined and completed must be terminal")
	}
}

func TestSessionStatusValid(t *testing.T) {
	for _, status := range []SessionStatus{SessionPending, SessionApproved, SessionDeclined, SessionCompleted} {
		if !status.Valid() {
			t.Fatalf("expected %s to be valid", status)
		}
	}
	if SessionStatus("cancelled").Valid() {
		t.Fatal("unknown status must not be valid")
	}
}
