package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dunelink/dunelink/internal/store/model"
)

type Execution interface {
	Create(ctx context.Context, execution model.Execution) (*model.Execution, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Execution, error)
	List(ctx context.Context, filter *ExecutionQueryFilter, opts *ExecutionQueryOptions) (model.ExecutionList, error)
	Count(ctx context.Context, filter *ExecutionQueryFilter) (int64, error)
	Delete(ctx context.Context, filter *ExecutionQueryFilter) (int64, error)
}

type ExecutionStore struct {
	db *gorm.DB
}

// Make sure we conform to Execution interface
var _ Execution = (*ExecutionStore)(nil)

func NewExecutionStore(db *gorm.DB) Execution {
	return &ExecutionStore{db: db}
}

func (s *ExecutionStore) Create(ctx context.Context, execution model.Execution) (*model.Execution, error) {
	if execution.ID == uuid.Nil {
		execution.ID = uuid.New()
	}

	if err := s.db.WithContext(ctx).Create(&execution).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, pkgerrors.Wrapf(err, "failed to record execution of query %d", execution.QueryID)
	}

	return &execution, nil
}

func (s *ExecutionStore) Get(ctx context.Context, id uuid.UUID) (*model.Execution, error) {
	var execution model.Execution
	if err := s.db.WithContext(ctx).First(&execution, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, pkgerrors.Wrap(err, "failed to get execution")
	}
	return &execution, nil
}

func (s *ExecutionStore) List(ctx context.Context, filter *ExecutionQueryFilter, opts *ExecutionQueryOptions) (model.ExecutionList, error) {
	var executions model.ExecutionList
	tx := s.db.WithContext(ctx).Model(&executions)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}
	if opts != nil {
		for _, fn := range opts.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Find(&executions).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list executions")
	}
	return executions, nil
}

func (s *ExecutionStore) Count(ctx context.Context, filter *ExecutionQueryFilter) (int64, error) {
	var count int64
	tx := s.db.WithContext(ctx).Model(&model.Execution{})
	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}
	if err := tx.Count(&count).Error; err != nil {
		return 0, pkgerrors.Wrap(err, "failed to count executions")
	}
	return count, nil
}

// Delete removes the executions matching the filter. An empty filter is refused.
func (s *ExecutionStore) Delete(ctx context.Context, filter *ExecutionQueryFilter) (int64, error) {
	if filter == nil || len(filter.QueryFn) == 0 {
		return 0, errors.New("refusing to delete executions without a filter")
	}

	tx := s.db.WithContext(ctx)
	for _, fn := range filter.QueryFn {
		tx = fn(tx)
	}
	result := tx.Delete(&model.Execution{})
	if result.Error != nil {
		return 0, pkgerrors.Wrap(result.Error, "failed to delete executions")
	}
	return result.RowsAffected, nil
}
