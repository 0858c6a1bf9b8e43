package service

import (
	"errors"
	"fmt"

	"github.com/dunelink/dunelink/internal/executor"
)

// Operation names the caller-facing action a result text is produced for.
type Operation int

const (
	OperationLatest Operation = iota
	OperationExecute
)

// ResultText flattens a result or an error into the single string handed to tool
// callers and to the legacy HTTP body.
func ResultText(op Operation, result *executor.Result, err error) string {
	if err == nil {
		return result.String()
	}

	var (
		invalidErr   *ErrInvalidQueryID
		rejectedErr  *executor.ErrSubmissionRejected
		failedErr    *executor.ErrExecutionFailed
		timeoutErr   *executor.ErrTimeout
		transportErr *executor.ErrTransportFailure
	)
	switch {
	case errors.As(err, &invalidErr):
		return invalidErr.Error()
	case errors.As(err, &rejectedErr):
		return "Failed to start query execution"
	case errors.As(err, &failedErr):
		return fmt.Sprintf("Query execution failed with state: %s", failedErr.State)
	case errors.As(err, &timeoutErr):
		return "Query execution timed out"
	case errors.As(err, &transportErr):
		if op == OperationLatest {
			return fmt.Sprintf("HTTP error fetching query results: %s", err)
		}
		return fmt.Sprintf("HTTP error running query: %s", err)
	}

	if op == OperationLatest {
		return fmt.Sprintf("Error processing query results: %s", err)
	}
	return fmt.Sprintf("Error processing query: %s", err)
}
