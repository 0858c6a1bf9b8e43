package executor

import "strings"

// ExecutionState is the lifecycle state of a remote execution. Values outside the
// known set are kept verbatim as reported by the remote API.
type ExecutionState string

const (
	StatePending   ExecutionState = "PENDING"
	StateExecuting ExecutionState = "EXECUTING"
	StateCompleted ExecutionState = "COMPLETED"
	StateFailed    ExecutionState = "FAILED"
	StateCancelled ExecutionState = "CANCELLED"
	// StateTimedOut is never reported remotely; the poll loop assigns it when it gives up.
	StateTimedOut ExecutionState = "TIMED_OUT"

	remoteStatePrefix = "QUERY_STATE_"
)

// ParseState accepts both the bare and the QUERY_STATE_ prefixed spelling.
// Unknown values are returned unchanged.
func ParseState(raw string) ExecutionState {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, remoteStatePrefix)
	switch ExecutionState(s) {
	case StatePending, StateExecuting, StateCompleted, StateFailed, StateCancelled:
		return ExecutionState(s)
	}
	return ExecutionState(raw)
}

// IsRunning reports whether the execution has not reached a terminal state yet.
func (s ExecutionState) IsRunning() bool {
	return s == StatePending || s == StateExecuting
}

func (s ExecutionState) IsKnown() bool {
	switch s {
	case StatePending, StateExecuting, StateCompleted, StateFailed, StateCancelled, StateTimedOut:
		return true
	}
	return false
}

func (s ExecutionState) String() string {
	return string(s)
}
