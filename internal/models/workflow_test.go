package models

import "testing"

func TestTimesheetMachineExhaustive(t *testing.T) {
	legal := map[TimesheetStatus]map[TimesheetAction]TimesheetStatus{
		TimesheetDraft:     {ActionSubmit: TimesheetSubmitted},
		TimesheetSubmitted: {ActionApprove: TimesheetApproved, ActionReject: TimesheetRejected},
		TimesheetRejected:  {ActionReopen: TimesheetDraft},
	}

	for _, from := range TimesheetStatuses {
		for _, action := range TimesheetActions {
			next, ok := TimesheetMachine.Next(from, action)
			want, wantOK := legal[from][action]
			if ok != wantOK {
				t.Errorf("%s --%s--> allowed=%v, want %v", from, action, ok, wantOK)
				continue
			}
			if ok && next != want {
				t.Errorf("%s --%s--> %s, want %s", from, action, next, want)
			}
		}
	}
}

func TestApprovedIsTerminal(t *testing.T) {
	for _, action := range TimesheetActions {
		if TimesheetMachine.Allows(TimesheetApproved, action) {
			t.Errorf("approved timesheet should not allow %s", action)
		}
	}
}

func TestTimesheetStatusPredicates(t *testing.T) {
	tests := []struct {
		status   TimesheetStatus
		editable bool
		locks    bool
		releases bool
	}{
		{TimesheetDraft, true, false, true},
		{TimesheetSubmitted, false, true, false},
		{TimesheetApproved, false, true, false},
		{TimesheetRejected, true, false, false},
	}

	for _, tt := range tests {
		if got := tt.status.Editable(); got != tt.editable {
			t.Errorf("%s.Editable() = %v, want %v", tt.status, got, tt.editable)
		}
		if got := tt.status.LocksEntries(); got != tt.locks {
			t.Errorf("%s.LocksEntries() = %v, want %v", tt.status, got, tt.locks)
		}
		if got := tt.status.ReleasesEntries(); got != tt.releases {
			t.Errorf("%s.ReleasesEntries() = %v, want %v", tt.status, got, tt.releases)
		}
		if !tt.status.Valid() {
			t.Errorf("%s should be valid", tt.status)
		}
	}
	if TimesheetStatus("pending").Valid() {
		t.Error("unknown status should not be valid")
	}
}

func TestSessionMachineExhaustive(t *testing.T) {
	legal := map[SessionState]map[SessionAction]SessionState{
		SessionActive: {ActionPause: SessionPaused, ActionUpdate: SessionActive, ActionStop: SessionStopped},
		SessionPaused: {ActionResume: SessionActive, ActionUpdate: SessionPaused, ActionStop: SessionStopped},
	}

	for _, from := range SessionStates {
		for _, action := range SessionActions {
			next, ok := SessionMachine.Next(from, action)
			want, wantOK := legal[from][action]
			if ok != wantOK {
				t.Errorf("%s --%s--> allowed=%v, want %v", from, action, ok, wantOK)
				continue
			}
			if ok && next != want {
				t.Errorf("%s --%s--> %s, want %s", from, action, next, want)
			}
		}
	}
}
