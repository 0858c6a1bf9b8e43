package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dunelink/dunelink/internal/archive"
	"github.com/dunelink/dunelink/internal/cache"
	"github.com/dunelink/dunelink/internal/executor"
	"github.com/dunelink/dunelink/internal/store"
	"github.com/dunelink/dunelink/internal/store/model"
	"github.com/dunelink/dunelink/pkg/metrics"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100

	latestFetchCacheHit = "cache_hit"
)

// Runner runs queries against the remote API. *executor.Executor implements it.
type Runner interface {
	ExecuteAndFetch(ctx context.Context, queryID int64) (*executor.Result, error)
	FetchLatest(ctx context.Context, queryID int64) (*executor.Result, error)
}

// QueryService is shared by the HTTP handlers and the tool server.
type QueryService struct {
	runner   Runner
	store    store.Store
	cache    cache.Cache
	cacheTTL time.Duration
	archiver archive.Archiver
	now      func() time.Time
}

func NewQueryService(runner Runner, opts ...Option) *QueryService {
	s := &QueryService{
		runner: runner,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Latest returns the most recent stored result of the query.
func (s *QueryService) Latest(ctx context.Context, queryID int64) (*executor.Result, error) {
	if queryID <= 0 {
		return nil, NewErrInvalidQueryID(queryID)
	}
	logger := zap.S().Named("query_service").With("query_id", queryID)
	logger.Infow("fetching latest results")

	if result, ok := s.cached(ctx, queryID); ok {
		metrics.IncreaseLatestResultFetches(latestFetchCacheHit)
		logger.Debugw("latest results served from cache")
		return result, nil
	}

	result, err := s.runner.FetchLatest(ctx, queryID)
	metrics.IncreaseLatestResultFetches(executor.Outcome(result, err))
	if err != nil {
		logger.Errorw("failed to fetch latest results", "error", err)
		return nil, err
	}

	if result.NoData {
		logger.Warnw("no data available")
	}
	s.remember(ctx, queryID, result)

	return result, nil
}

// Execute runs the query to completion and returns its rows.
func (s *QueryService) Execute(ctx context.Context, queryID int64) (*executor.Result, error) {
	if queryID <= 0 {
		return nil, NewErrInvalidQueryID(queryID)
	}
	logger := zap.S().Named("query_service").With("query_id", queryID)
	logger.Infow("executing query")

	startedAt := s.now()
	result, err := s.runner.ExecuteAndFetch(ctx, queryID)
	finishedAt := s.now()

	outcome := executor.Outcome(result, err)
	metrics.ObserveExecution(outcome, finishedAt.Sub(startedAt))
	metrics.UniqueQueriesPerWeek.Observe(queryID)

	// The bookkeeping below outlives a cancelled request.
	bgCtx := context.WithoutCancel(ctx)
	s.record(bgCtx, queryID, outcome, result, err, startedAt, finishedAt)

	if err != nil {
		logger.Errorw("query execution failed", "outcome", outcome, "error", err)
		return nil, err
	}

	if result.NoData {
		logger.Warnw("no data available in query results", "execution_id", result.ExecutionID)
	} else {
		s.archive(bgCtx, queryID, result)
	}
	s.remember(bgCtx, queryID, result)

	return result, nil
}

// Executions lists the recorded executions of the query, newest first, along with
// the number of executions on record. A zero limit selects the default.
func (s *QueryService) Executions(ctx context.Context, queryID int64, limit int) (model.ExecutionList, int64, error) {
	if queryID <= 0 {
		return nil, 0, NewErrInvalidQueryID(queryID)
	}
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit < 0 || limit > MaxHistoryLimit {
		return nil, 0, NewErrInvalidLimit(limit, MaxHistoryLimit)
	}
	if s.store == nil {
		return nil, 0, NewErrHistoryDisabled()
	}

	filter := store.NewExecutionQueryFilter().ByQueryID(queryID)
	total, err := s.store.Execution().Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	executions, err := s.store.Execution().List(ctx, filter,
		store.NewExecutionQueryOptions().WithNewestFirst().WithLimit(limit))
	if err != nil {
		return nil, 0, err
	}
	return executions, total, nil
}

// Execution returns one recorded execution by its record id.
func (s *QueryService) Execution(ctx context.Context, id string) (*model.Execution, error) {
	recordID, err := uuid.Parse(id)
	if err != nil {
		return nil, NewErrInvalidExecutionID(id)
	}
	if s.store == nil {
		return nil, NewErrHistoryDisabled()
	}

	execution, err := s.store.Execution().Get(ctx, recordID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrExecutionNotFound(recordID)
		}
		return nil, err
	}
	return execution, nil
}

// PruneHistory deletes the executions that started more than retention ago and
// returns how many were removed.
func (s *QueryService) PruneHistory(ctx context.Context, retention time.Duration) (int64, error) {
	if s.store == nil {
		return 0, NewErrHistoryDisabled()
	}
	if retention <= 0 {
		return 0, nil
	}

	cutoff := s.now().Add(-retention).UTC()
	deleted, err := s.store.Execution().Delete(ctx, store.NewExecutionQueryFilter().StartedBefore(cutoff))
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		zap.S().Named("query_service").Infow("pruned execution history", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

func (s *QueryService) record(ctx context.Context, queryID int64, outcome string, result *executor.Result, execErr error, startedAt, finishedAt time.Time) {
	if s.store == nil {
		return
	}

	execution := model.Execution{
		QueryID:    queryID,
		Outcome:    outcome,
		StartedAt:  startedAt.UTC(),
		FinishedAt: finishedAt.UTC(),
	}
	if result != nil {
		execution.ExecutionID = result.ExecutionID
		execution.State = string(executor.StateCompleted)
		execution.Attempts = result.Attempts
		execution.RowCount = result.RowCount
	}
	if execErr != nil {
		execution.Error = execErr.Error()
		execution.State = stateOf(execErr)

		var (
			failedErr  *executor.ErrExecutionFailed
			timeoutErr *executor.ErrTimeout
		)
		switch {
		case errors.As(execErr, &failedErr):
			execution.ExecutionID = failedErr.ExecutionID
		case errors.As(execErr, &timeoutErr):
			execution.ExecutionID = timeoutErr.ExecutionID
			execution.Attempts = timeoutErr.Attempts
		}
	}

	if _, err := s.store.Execution().Create(ctx, execution); err != nil {
		zap.S().Named("query_service").Errorw("failed to record execution", "query_id", queryID, "error", err)
	}
}

func (s *QueryService) archive(ctx context.Context, queryID int64, result *executor.Result) {
	if s.archiver == nil || result.ExecutionID == "" {
		return
	}
	name, err := s.archiver.Put(ctx, queryID, result.ExecutionID, result.CSV)
	if err != nil {
		zap.S().Named("query_service").Errorw("failed to archive results", "query_id", queryID, "error", err)
		return
	}
	zap.S().Named("query_service").Debugw("results archived", "query_id", queryID, "object", name)
}

func (s *QueryService) cached(ctx context.Context, queryID int64) (*executor.Result, bool) {
	if s.cache == nil {
		return nil, false
	}

	data, err := s.cache.Get(ctx, cache.LatestResultKey(queryID))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			zap.S().Named("query_service").Warnw("cache read failed", "query_id", queryID, "error", err)
		}
		return nil, false
	}

	var result executor.Result
	if err := json.Unmarshal(data, &result); err != nil {
		zap.S().Named("query_service").Warnw("dropping unreadable cache entry", "query_id", queryID, "error", err)
		_ = s.cache.Delete(ctx, cache.LatestResultKey(queryID))
		return nil, false
	}
	return &result, true
}

func (s *QueryService) remember(ctx context.Context, queryID int64, result *executor.Result) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cache.LatestResultKey(queryID), data, s.cacheTTL); err != nil {
		zap.S().Named("query_service").Warnw("cache write failed", "query_id", queryID, "error", err)
	}
}

func stateOf(err error) string {
	var (
		failedErr  *executor.ErrExecutionFailed
		timeoutErr *executor.ErrTimeout
	)
	switch {
	case errors.As(err, &failedErr):
		return string(failedErr.State)
	case errors.As(err, &timeoutErr):
		return string(executor.StateTimedOut)
	}
	return ""
}
