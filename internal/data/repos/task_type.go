package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/schedulebud/backend/internal/domain"
	"github.com/schedulebud/backend/internal/pkg/dbctx"
	"github.com/schedulebud/backend/internal/pkg/logger"
)

type TaskTypeRepo interface {
	Create(dbc dbctx.Context, taskTypes []*types.TaskType) ([]*types.TaskType, error)
	GetByUserID(dbc dbctx.Context, userID uuid.UUID) ([]*types.TaskType, error)
	Update(dbc dbctx.Context, taskType *types.TaskType) error
}

type taskTypeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskTypeRepo(db *gorm.DB, baseLog *logger.Logger) TaskTypeRepo {
	return &taskTypeRepo{db: db, log: baseLog.With("repo", "TaskTypeRepo")}
}

func (r *taskTypeRepo) Create(dbc dbctx.Context, taskTypes []*types.TaskType) ([]*types.TaskType, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(taskTypes) == 0 {
		return []*types.TaskType{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&taskTypes).Error; err != nil {
		return nil, err
	}
	return taskTypes, nil
}

func (r *taskTypeRepo) GetByUserID(dbc dbctx.Context, userID uuid.UUID) ([]*types.TaskType, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.TaskType
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("name asc").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *taskTypeRepo) Update(dbc dbctx.Context, taskType *types.TaskType) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Save(taskType).Error
}
