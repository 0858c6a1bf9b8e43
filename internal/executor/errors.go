package executor

import (
	"errors"
	"fmt"
	"time"
)

type Phase string

const (
	PhaseSubmission Phase = "submission"
	PhasePolling    Phase = "polling"
	PhaseFetch      Phase = "fetch"
)

// ErrTransportFailure covers network errors and non-2xx answers of the remote API.
type ErrTransportFailure struct {
	error
	Phase Phase
}

func NewErrTransportFailure(phase Phase, err error) *ErrTransportFailure {
	return &ErrTransportFailure{
		error: fmt.Errorf("%s failed: transport failure: %w", phase, err),
		Phase: phase,
	}
}

func (e *ErrTransportFailure) Unwrap() error {
	return errors.Unwrap(e.error)
}

// ErrSubmissionRejected is returned when the submission answer carries no execution id.
type ErrSubmissionRejected struct {
	error
	QueryID int64
}

func NewErrSubmissionRejected(queryID int64) *ErrSubmissionRejected {
	return &ErrSubmissionRejected{
		error:   fmt.Errorf("%s failed: query %d was not accepted: response carried no execution_id", PhaseSubmission, queryID),
		QueryID: queryID,
	}
}

// ErrExecutionFailed is returned when the remote execution ends in any state other
// than COMPLETED.
type ErrExecutionFailed struct {
	error
	State       ExecutionState
	ExecutionID string
}

func NewErrExecutionFailed(executionID string, state ExecutionState) *ErrExecutionFailed {
	return &ErrExecutionFailed{
		error:       fmt.Errorf("%s failed: execution %s ended in state %s", PhasePolling, executionID, state),
		State:       state,
		ExecutionID: executionID,
	}
}

// ErrTimeout is returned when the status check budget or the wall-clock bound runs
// out, and when the caller's deadline passes during any phase.
type ErrTimeout struct {
	error
	Phase       Phase
	ExecutionID string
	Attempts    int
	Elapsed     time.Duration
}

func NewErrTimeout(executionID string, attempts int, elapsed time.Duration) *ErrTimeout {
	return &ErrTimeout{
		error: fmt.Errorf("%s failed: execution %s still running after %d status checks (%s)",
			PhasePolling, executionID, attempts, elapsed.Round(time.Millisecond)),
		Phase:       PhasePolling,
		ExecutionID: executionID,
		Attempts:    attempts,
		Elapsed:     elapsed,
	}
}

// NewErrDeadlineExceeded reports a caller deadline that passed during phase.
func NewErrDeadlineExceeded(phase Phase, executionID string, attempts int, cause error) *ErrTimeout {
	return &ErrTimeout{
		error:       fmt.Errorf("%s timed out: %w", phase, cause),
		Phase:       phase,
		ExecutionID: executionID,
		Attempts:    attempts,
	}
}

func (e *ErrTimeout) Unwrap() error {
	return errors.Unwrap(e.error)
}

// ErrMalformedResponse is returned when a 2xx answer lacks the expected JSON shape.
type ErrMalformedResponse struct {
	error
	Phase Phase
}

func NewErrMalformedResponse(phase Phase, cause error) *ErrMalformedResponse {
	return &ErrMalformedResponse{
		error: fmt.Errorf("%s failed: malformed response: %w", phase, cause),
		Phase: phase,
	}
}

func (e *ErrMalformedResponse) Unwrap() error {
	return errors.Unwrap(e.error)
}

type ErrCancelled struct {
	error
	Phase Phase
}

func NewErrCancelled(phase Phase, cause error) *ErrCancelled {
	return &ErrCancelled{
		error: fmt.Errorf("%s cancelled: %w", phase, cause),
		Phase: phase,
	}
}

func (e *ErrCancelled) Unwrap() error {
	return errors.Unwrap(e.error)
}

const (
	OutcomeSuccess          = "success"
	OutcomeNoData           = "no_data"
	OutcomeTransportFailure = "transport_failure"
	OutcomeRejected         = "submission_rejected"
	OutcomeExecutionFailed  = "execution_failed"
	OutcomeTimeout          = "timeout"
	OutcomeMalformed        = "malformed_response"
	OutcomeCancelled        = "cancelled"
	OutcomeUnknown          = "unknown"
)

// Outcome names the classification of a result for metrics and history records.
func Outcome(result *Result, err error) string {
	if err == nil {
		if result != nil && result.NoData {
			return OutcomeNoData
		}
		return OutcomeSuccess
	}

	var (
		transportErr *ErrTransportFailure
		rejectedErr  *ErrSubmissionRejected
		failedErr    *ErrExecutionFailed
		timeoutErr   *ErrTimeout
		malformedErr *ErrMalformedResponse
		cancelledErr *ErrCancelled
	)
	switch {
	case errors.As(err, &transportErr):
		return OutcomeTransportFailure
	case errors.As(err, &rejectedErr):
		return OutcomeRejected
	case errors.As(err, &failedErr):
		return OutcomeExecutionFailed
	case errors.As(err, &timeoutErr):
		return OutcomeTimeout
	case errors.As(err, &malformedErr):
		return OutcomeMalformed
	case errors.As(err, &cancelledErr):
		return OutcomeCancelled
	}
	return OutcomeUnknown
}
