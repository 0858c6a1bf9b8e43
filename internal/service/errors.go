package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrInvalidQueryID struct {
	error
}

func NewErrInvalidQueryID(queryID int64) *ErrInvalidQueryID {
	return &ErrInvalidQueryID{fmt.Errorf("query id must be a positive integer, got %d", queryID)}
}

type ErrInvalidLimit struct {
	error
}

func NewErrInvalidLimit(limit, max int) *ErrInvalidLimit {
	return &ErrInvalidLimit{fmt.Errorf("limit must be between 1 and %d, got %d", max, limit)}
}

type ErrHistoryDisabled struct {
	error
}

func NewErrHistoryDisabled() *ErrHistoryDisabled {
	return &ErrHistoryDisabled{fmt.Errorf("execution history is not enabled")}
}

type ErrInvalidExecutionID struct {
	error
}

func NewErrInvalidExecutionID(id string) *ErrInvalidExecutionID {
	return &ErrInvalidExecutionID{fmt.Errorf("execution id %q is not a valid uuid", id)}
}

type ErrExecutionNotFound struct {
	error
}

func NewErrExecutionNotFound(id uuid.UUID) *ErrExecutionNotFound {
	return &ErrExecutionNotFound{fmt.Errorf("execution %s not found", id)}
}
