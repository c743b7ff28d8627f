package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/schedulebud/backend/internal/domain"
	"github.com/schedulebud/backend/internal/pkg/dbctx"
	"github.com/schedulebud/backend/internal/pkg/logger"
)

type ClassRepo interface {
	Create(dbc dbctx.Context, classes []*types.Class) ([]*types.Class, error)
	GetByUserID(dbc dbctx.Context, userID uuid.UUID) ([]*types.Class, error)
	Update(dbc dbctx.Context, class *types.Class) error
	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type classRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClassRepo(db *gorm.DB, baseLog *logger.Logger) ClassRepo {
	return &classRepo{db: db, log: baseLog.With("repo", "ClassRepo")}
}

func (r *classRepo) Create(dbc dbctx.Context, classes []*types.Class) ([]*types.Class, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(classes) == 0 {
		return []*types.Class{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}

func (r *classRepo) GetByUserID(dbc dbctx.Context, userID uuid.UUID) ([]*types.Class, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Class
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("name asc").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *classRepo) Update(dbc dbctx.Context, class *types.Class) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Save(class).Error
}

func (r *classRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.Class{}).Error
}
