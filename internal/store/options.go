package store

import (
	"time"

	"gorm.io/gorm"
)

type BaseQuerier struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB
}

type ExecutionQueryFilter BaseQuerier

func NewExecutionQueryFilter() *ExecutionQueryFilter {
	return &ExecutionQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (f *ExecutionQueryFilter) ByQueryID(queryID int64) *ExecutionQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("query_id = ?", queryID)
	})
	return f
}

func (f *ExecutionQueryFilter) ByOutcome(outcome string) *ExecutionQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("outcome = ?", outcome)
	})
	return f
}

func (f *ExecutionQueryFilter) StartedBefore(t time.Time) *ExecutionQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("started_at < ?", t)
	})
	return f
}

type ExecutionQueryOptions BaseQuerier

func NewExecutionQueryOptions() *ExecutionQueryOptions {
	return &ExecutionQueryOptions{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

// Limit results
func (o *ExecutionQueryOptions) WithLimit(limit int) *ExecutionQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Limit(limit)
	})
	return o
}

// Offset results
func (o *ExecutionQueryOptions) WithOffset(offset int) *ExecutionQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Offset(offset)
	})
	return o
}

// Newest first
func (o *ExecutionQueryOptions) WithNewestFirst() *ExecutionQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Order("started_at DESC").Order("id")
	})
	return o
}
