package handlers

import (
	"net/http"
	"time"

	"github.com/dunelink/dunelink/internal/store/model"
)

type ResultReply struct {
	Result string `json:"result"`
	// Error is the failure classification; empty on success and in legacy mode.
	Error string `json:"error,omitempty"`
}

type HealthReply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type IndexReply struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Endpoints   []string    `json:"endpoints"`
	Tools       []ToolReply `json:"tools"`
}

type ToolReply struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ErrorReply struct {
	Error string `json:"error"`
}

type ExecutionReply struct {
	ID          string    `json:"id"`
	QueryID     int64     `json:"query_id"`
	ExecutionID string    `json:"execution_id,omitempty"`
	Outcome     string    `json:"outcome"`
	State       string    `json:"state,omitempty"`
	Attempts    int       `json:"attempts"`
	RowCount    int       `json:"row_count"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DurationMs  int64     `json:"duration_ms"`
}

type ExecutionsReply struct {
	QueryID int64 `json:"query_id"`
	// Total counts every recorded execution of the query, not only the listed ones.
	Total      int64            `json:"total"`
	Executions []ExecutionReply `json:"executions"`
}

func NewExecutionReply(e model.Execution) ExecutionReply {
	return ExecutionReply{
		ID:          e.ID.String(),
		QueryID:     e.QueryID,
		ExecutionID: e.ExecutionID,
		Outcome:     e.Outcome,
		State:       e.State,
		Attempts:    e.Attempts,
		RowCount:    e.RowCount,
		Error:       e.Error,
		StartedAt:   e.StartedAt,
		FinishedAt:  e.FinishedAt,
		DurationMs:  e.Duration().Milliseconds(),
	}
}

func NewExecutionsReply(queryID, total int64, executions model.ExecutionList) ExecutionsReply {
	reply := ExecutionsReply{QueryID: queryID, Total: total, Executions: make([]ExecutionReply, 0, len(executions))}
	for _, e := range executions {
		reply.Executions = append(reply.Executions, NewExecutionReply(e))
	}
	return reply
}

func (ResultReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (HealthReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (IndexReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (ErrorReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (ExecutionsReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (ExecutionReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}
