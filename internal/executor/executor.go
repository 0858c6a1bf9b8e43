package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	"github.com/dunelink/dunelink/internal/client"
	"github.com/dunelink/dunelink/internal/events"
	"github.com/dunelink/dunelink/internal/formatter"
	"github.com/dunelink/dunelink/pkg/metrics"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxAttempts  = 60
)

// Executor runs queries against the remote API: submit, poll until a terminal state,
// fetch and format. One Executor serves any number of concurrent invocations; each
// invocation is strictly sequential.
type Executor struct {
	dune        client.Dune
	interval    time.Duration
	jitter      time.Duration
	maxAttempts int
	maxWait     time.Duration
	events      EventWriter
}

func New(dune client.Dune, opts ...Option) *Executor {
	e := &Executor{
		dune:        dune,
		interval:    DefaultPollInterval,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.jitter = boundJitter(e.interval, e.jitter)
	return e
}

// ExecuteAndFetch submits the query, waits for it to complete and returns its rows as CSV.
func (e *Executor) ExecuteAndFetch(ctx context.Context, queryID int64) (*Result, error) {
	logger := zap.S().Named("executor").With("query_id", queryID)

	e.emit(ctx, events.SubmissionStartedKind, events.ExecutionEvent{QueryID: queryID, Phase: string(PhaseSubmission)})
	logger.Debug("submitting query")

	submitted, err := e.dune.ExecuteQuery(ctx, queryID)
	if err != nil {
		return nil, e.fail(ctx, queryID, "", classify(ctx, PhaseSubmission, err))
	}
	executionID := string(submitted.ExecutionID)
	if executionID == "" {
		return nil, e.fail(ctx, queryID, "", NewErrSubmissionRejected(queryID))
	}

	e.emit(ctx, events.SubmittedKind, events.ExecutionEvent{QueryID: queryID, ExecutionID: executionID, Phase: string(PhaseSubmission)})
	logger.Infow("query submitted", "execution_id", executionID)

	attempts, err := e.waitForCompletion(ctx, queryID, executionID)
	if err != nil {
		return nil, e.fail(ctx, queryID, executionID, err)
	}

	resp, err := e.dune.GetExecutionResults(ctx, submitted.ExecutionID)
	if err != nil {
		return nil, e.fail(ctx, queryID, executionID, classify(ctx, PhaseFetch, err))
	}

	result, err := materialize(resp.Rows())
	if err != nil {
		return nil, e.fail(ctx, queryID, executionID, err)
	}
	result.ExecutionID = executionID
	result.Attempts = attempts

	e.emit(ctx, events.CompletedKind, events.ExecutionEvent{
		QueryID:     queryID,
		ExecutionID: executionID,
		Phase:       string(PhaseFetch),
		Attempt:     attempts,
		State:       string(StateCompleted),
		RowCount:    result.RowCount,
	})
	logger.Infow("execution completed", "execution_id", executionID, "rows", result.RowCount, "status_checks", attempts)

	return result, nil
}

// FetchLatest returns the most recent stored result of the query without executing it.
func (e *Executor) FetchLatest(ctx context.Context, queryID int64) (*Result, error) {
	resp, err := e.dune.GetLatestResults(ctx, queryID)
	if err != nil {
		return nil, e.fail(ctx, queryID, "", classify(ctx, PhaseFetch, err))
	}

	result, err := materialize(resp.Rows())
	if err != nil {
		return nil, e.fail(ctx, queryID, "", err)
	}
	result.ExecutionID = string(resp.ExecutionID)

	e.emit(ctx, events.LatestFetchedKind, events.ExecutionEvent{
		QueryID:     queryID,
		ExecutionID: result.ExecutionID,
		Phase:       string(PhaseFetch),
		RowCount:    result.RowCount,
	})
	zap.S().Named("executor").Debugw("latest result fetched", "query_id", queryID, "rows", result.RowCount)

	return result, nil
}

// waitForCompletion polls the execution status until COMPLETED and returns the number of
// status checks made. The first check happens right after submission.
func (e *Executor) waitForCompletion(ctx context.Context, queryID int64, executionID string) (int, error) {
	ticker := jitterbug.New(e.interval, pollJitter(e.jitter))
	defer ticker.Stop()

	var deadline <-chan time.Time
	if e.maxWait > 0 {
		timer := time.NewTimer(e.maxWait)
		defer timer.Stop()
		deadline = timer.C
	}

	start := time.Now()
	for attempt := 1; ; attempt++ {
		state, err := e.checkStatus(ctx, executionID)
		if err != nil {
			return attempt, err
		}

		e.emit(ctx, events.PollAttemptKind, events.ExecutionEvent{
			QueryID:     queryID,
			ExecutionID: executionID,
			Phase:       string(PhasePolling),
			Attempt:     attempt,
			MaxAttempts: e.maxAttempts,
			State:       string(state),
		})
		zap.S().Named("executor").Debugw("status checked", "query_id", queryID, "execution_id", executionID,
			"attempt", attempt, "max_attempts", e.maxAttempts, "state", state)

		switch {
		case state == StateCompleted:
			return attempt, nil
		case !state.IsRunning():
			return attempt, NewErrExecutionFailed(executionID, state)
		case attempt >= e.maxAttempts:
			return attempt, NewErrTimeout(executionID, attempt, time.Since(start))
		}

		select {
		case <-ctx.Done():
			return attempt, contextError(ctx, PhasePolling, executionID, attempt)
		case <-deadline:
			return attempt, NewErrTimeout(executionID, attempt, time.Since(start))
		case <-ticker.C:
		}
	}
}

func (e *Executor) checkStatus(ctx context.Context, executionID string) (ExecutionState, error) {
	metrics.IncreaseStatusPolls()

	resp, err := e.dune.GetExecutionStatus(ctx, client.ExecutionID(executionID))
	if err != nil {
		return "", classify(ctx, PhasePolling, err)
	}
	if resp.State == nil {
		return "", NewErrMalformedResponse(PhasePolling, fmt.Errorf("status of execution %s has no state", executionID))
	}
	return ParseState(*resp.State), nil
}

func (e *Executor) fail(ctx context.Context, queryID int64, executionID string, err error) error {
	ev := events.ExecutionEvent{
		QueryID:     queryID,
		ExecutionID: executionID,
		Error:       err.Error(),
	}

	var (
		failedErr  *ErrExecutionFailed
		timeoutErr *ErrTimeout
	)
	switch {
	case errors.As(err, &failedErr):
		ev.Phase = string(PhasePolling)
		ev.State = string(failedErr.State)
	case errors.As(err, &timeoutErr):
		ev.Phase = string(timeoutErr.Phase)
		ev.State = string(StateTimedOut)
		ev.Attempt = timeoutErr.Attempts
	default:
		ev.Phase = string(phaseOf(err))
	}

	// Sent even when the caller has cancelled.
	e.emit(context.WithoutCancel(ctx), events.FailedKind, ev)
	zap.S().Named("executor").Warnw("execution failed", "query_id", queryID, "execution_id", executionID,
		"outcome", Outcome(nil, err), "error", err)

	return err
}

func (e *Executor) emit(ctx context.Context, kind string, ev events.ExecutionEvent) {
	if e.events == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := e.events.WriteWithSubject(ctx, kind, strconv.FormatInt(ev.QueryID, 10), bytes.NewReader(data)); err != nil {
		zap.S().Named("executor").Errorw("failed to write event", "error", err, "event_kind", kind)
	}
}

// classify maps a client error to the error taxonomy of the given phase.
func classify(ctx context.Context, phase Phase, err error) error {
	if ctx.Err() != nil {
		return contextError(ctx, phase, "", 0)
	}
	var decodeErr *client.ErrDecode
	if errors.As(err, &decodeErr) {
		return NewErrMalformedResponse(phase, err)
	}
	return NewErrTransportFailure(phase, err)
}

// contextError reports why the caller's context ended: a passed deadline is a timeout,
// anything else a cancellation.
func contextError(ctx context.Context, phase Phase, executionID string, attempts int) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewErrDeadlineExceeded(phase, executionID, attempts, ctx.Err())
	}
	return NewErrCancelled(phase, ctx.Err())
}

func phaseOf(err error) Phase {
	var (
		transportErr *ErrTransportFailure
		malformedErr *ErrMalformedResponse
		cancelledErr *ErrCancelled
	)
	switch {
	case errors.As(err, &transportErr):
		return transportErr.Phase
	case errors.As(err, &malformedErr):
		return malformedErr.Phase
	case errors.As(err, &cancelledErr):
		return cancelledErr.Phase
	}
	return PhaseSubmission
}

func boundJitter(interval, jitter time.Duration) time.Duration {
	switch {
	case jitter <= 0:
		return 0
	case jitter >= interval:
		return interval / 2
	}
	return jitter
}

// pollJitter never yields a delay outside [interval-jitter, interval).
func pollJitter(jitter time.Duration) jitterbug.Jitter {
	if jitter == 0 {
		return &jitterbug.Norm{}
	}
	return &pollDelay{jitter: jitter}
}

type pollDelay struct {
	jitter time.Duration
}

func (p *pollDelay) Jitter(interval time.Duration) time.Duration {
	return jitterbug.Uniform{Min: interval - p.jitter}.Jitter(interval)
}

func materialize(rows []formatter.Row) (*Result, error) {
	if len(rows) == 0 {
		return &Result{NoData: true}, nil
	}
	csv, err := formatter.Format(rows)
	if errors.Is(err, formatter.ErrNoColumns) {
		return &Result{NoData: true}, nil
	}
	if err != nil {
		return nil, NewErrMalformedResponse(PhaseFetch, err)
	}
	return &Result{CSV: csv, RowCount: len(rows)}, nil
}
