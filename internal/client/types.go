package client

import (
	"bytes"
	"encoding/json"

	"github.com/dunelink/dunelink/internal/formatter"
)

// ExecutionID is the opaque execution token. The remote API sends a string but a
// number is accepted as well. Null, zero and values of any other JSON type decode to
// the empty ID, which the caller treats as a rejected submission.
type ExecutionID string

func (id *ExecutionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*id = ""
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ExecutionID(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		if f, err := n.Float64(); err == nil && f == 0 {
			return nil
		}
		*id = ExecutionID(n.String())
	}
	return nil
}

type ExecuteResponse struct {
	ExecutionID ExecutionID `json:"execution_id"`
	State       string      `json:"state,omitempty"`
}

type StatusResponse struct {
	ExecutionID ExecutionID `json:"execution_id"`
	QueryID     int64       `json:"query_id,omitempty"`
	// State is nil when the field is absent from the response.
	State *string `json:"state"`
}

type ResultsResponse struct {
	ExecutionID         ExecutionID    `json:"execution_id"`
	QueryID             int64          `json:"query_id,omitempty"`
	State               string         `json:"state,omitempty"`
	ExecutionEndedAt    string         `json:"execution_ended_at,omitempty"`
	Result              *ResultPayload `json:"result"`
	NextOffset          *int64         `json:"next_offset,omitempty"`
	SubmittedAt         string         `json:"submitted_at,omitempty"`
	ExecutionStartedAt  string         `json:"execution_started_at,omitempty"`
	IsExecutionFinished bool           `json:"is_execution_finished,omitempty"`
}

type ResultPayload struct {
	Rows     []formatter.Row `json:"rows"`
	Metadata *ResultMetadata `json:"metadata,omitempty"`
}

type ResultMetadata struct {
	ColumnNames    []string `json:"column_names,omitempty"`
	RowCount       int      `json:"row_count,omitempty"`
	TotalRowCount  int      `json:"total_row_count,omitempty"`
	DatapointCount int      `json:"datapoint_count,omitempty"`
}

// Rows returns the result rows, nil when the payload or the rows are absent.
func (r *ResultsResponse) Rows() []formatter.Row {
	if r == nil || r.Result == nil {
		return nil
	}
	return r.Result.Rows
}
