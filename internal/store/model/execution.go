package model

import (
	"time"

	"github.com/google/uuid"
)

// Execution is one recorded run of a query, successful or not.
type Execution struct {
	ID          uuid.UUID `gorm:"primaryKey;type:VARCHAR(36)"`
	QueryID     int64     `gorm:"not null"`
	ExecutionID string
	Outcome     string `gorm:"not null"`
	State       string
	Attempts    int
	RowCount    int
	Error       string
	StartedAt   time.Time `gorm:"not null"`
	FinishedAt  time.Time `gorm:"not null"`
}

type ExecutionList []Execution

func (Execution) TableName() string {
	return "executions"
}

func (e Execution) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}
