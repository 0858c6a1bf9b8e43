package store

import (
	"gorm.io/gorm"
)

type Store interface {
	Execution() Execution
	Close() error
}

type DataStore struct {
	db        *gorm.DB
	execution Execution
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:        db,
		execution: NewExecutionStore(db),
	}
}

func (s *DataStore) Execution() Execution {
	return s.execution
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
