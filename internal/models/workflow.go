package models

// Machine is a transition table: state x action -> next state.
// Anything missing from the table is an illegal transition.
type Machine[S comparable, A comparable] map[S]map[A]S

// Next returns the state reached by applying action in state from.
func (m Machine[S, A]) Next(from S, action A) (S, bool) {
	next, ok := m[from][action]
	return next, ok
}

// Allows reports whether action is legal in state from.
func (m Machine[S, A]) Allows(from S, action A) bool {
	_, ok := m.Next(from, action)
	return ok
}

// TimesheetStatus is the approval state of a timesheet
type TimesheetStatus string

const (
	TimesheetDraft     TimesheetStatus = "draft"
	TimesheetSubmitted TimesheetStatus = "submitted"
	TimesheetApproved  TimesheetStatus = "approved"
	TimesheetRejected  TimesheetStatus = "rejected"
)

// TimesheetStatuses lists every status in workflow order.
var TimesheetStatuses = []TimesheetStatus{TimesheetDraft, TimesheetSubmitted, TimesheetApproved, TimesheetRejected}

// Valid reports whether s is a known status.
func (s TimesheetStatus) Valid() bool {
	switch s {
	case TimesheetDraft, TimesheetSubmitted, TimesheetApproved, TimesheetRejected:
		return true
	}
	return false
}

// Editable reports whether the owner may change the timesheet and its entries.
func (s TimesheetStatus) Editable() bool {
	return s == TimesheetDraft || s == TimesheetRejected
}

// LocksEntries reports whether linked entries are read-only in this status.
func (s TimesheetStatus) LocksEntries() bool {
	return s == TimesheetSubmitted || s == TimesheetApproved
}

// ReleasesEntries reports whether linked entries may be deleted. A rejected
// timesheet lets its entries be corrected but not removed until it is reopened.
func (s TimesheetStatus) ReleasesEntries() bool {
	return s == TimesheetDraft
}

// TimesheetAction drives a timesheet transition
type TimesheetAction string

const (
	ActionSubmit  TimesheetAction = "submit"
	ActionApprove TimesheetAction = "approve"
	ActionReject  TimesheetAction = "reject"
	ActionReopen  TimesheetAction = "reopen"
)

// TimesheetActions lists every workflow action.
var TimesheetActions = []TimesheetAction{ActionSubmit, ActionApprove, ActionReject, ActionReopen}

// TimesheetMachine is the approval workflow. Approved is terminal.
var TimesheetMachine = Machine[TimesheetStatus, TimesheetAction]{
	TimesheetDraft: {
		ActionSubmit: TimesheetSubmitted,
	},
	TimesheetSubmitted: {
		ActionApprove: TimesheetApproved,
		ActionReject:  TimesheetRejected,
	},
	TimesheetRejected: {
		ActionReopen: TimesheetDraft,
	},
}

// SessionState is the state of a live tracking session
type SessionState string

const (
	SessionActive  SessionState = "active"
	SessionPaused  SessionState = "paused"
	SessionStopped SessionState = "stopped" // terminal, never persisted
)

// SessionStates lists every session state.
var SessionStates = []SessionState{SessionActive, SessionPaused, SessionStopped}

// SessionAction drives a session transition
type SessionAction string

const (
	ActionPause  SessionAction = "pause"
	ActionResume SessionAction = "resume"
	ActionUpdate SessionAction = "update"
	ActionStop   SessionAction = "stop"
)

// SessionActions lists every session action.
var SessionActions = []SessionAction{ActionPause, ActionResume, ActionUpdate, ActionStop}

// SessionMachine is the per-user tracking clock.
var SessionMachine = Machine[SessionState, SessionAction]{
	SessionActive: {
		ActionPause:  SessionPaused,
		ActionUpdate: SessionActive,
		ActionStop:   SessionStopped,
	},
	SessionPaused: {
		ActionResume: SessionActive,
		ActionUpdate: SessionPaused,
		ActionStop:   SessionStopped,
	},
}
