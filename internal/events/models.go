package events

// ExecutionEvent is the payload of every execution lifecycle event.
type ExecutionEvent struct {
	QueryID     int64  `json:"query_id"`
	ExecutionID string `json:"execution_id,omitempty"`
	Phase       string `json:"phase"`
	Attempt     int    `json:"attempt,omitempty"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
	State       string `json:"state,omitempty"`
	RowCount    int    `json:"row_count,omitempty"`
	Error       string `json:"error,omitempty"`
}
