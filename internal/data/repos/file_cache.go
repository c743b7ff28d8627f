package repos

import (
	"errors"
	"time"

	"gorm.io/gorm"

	types "github.com/schedulebud/backend/internal/domain"
	"github.com/schedulebud/backend/internal/pkg/dbctx"
	"github.com/schedulebud/backend/internal/pkg/logger"
)

type FileCacheRepo interface {
	Create(dbc dbctx.Context, entry *types.FileProcessingCache) error
	GetByContentHash(dbc dbctx.Context, hash string) (*types.FileProcessingCache, error)
	UpdateByContentHash(dbc dbctx.Context, hash string, updates map[string]interface{}) (int64, error)
	Touch(dbc dbctx.Context, hash string, usedAt time.Time) error
	DeleteExpired(dbc dbctx.Context, now time.Time) (int64, error)
}

type fileCacheRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFileCacheRepo(db *gorm.DB, baseLog *logger.Logger) FileCacheRepo {
	return &fileCacheRepo{db: db, log: baseLog.With("repo", "FileCacheRepo")}
}

func (r *fileCacheRepo) Create(dbc dbctx.Context, entry *types.FileProcessingCache) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(entry).Error
}

func (r *fileCacheRepo) GetByContentHash(dbc dbctx.Context, hash string) (*types.FileProcessingCache, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var entry types.FileProcessingCache
	if err := transaction.WithContext(dbc.Ctx).
		Where("content_hash = ?", hash).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *fileCacheRepo) UpdateByContentHash(dbc dbctx.Context, hash string, updates map[string]interface{}) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.FileProcessingCache{}).
		Where("content_hash = ?", hash).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *fileCacheRepo) Touch(dbc dbctx.Context, hash string, usedAt time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.FileProcessingCache{}).
		Where("content_hash = ?", hash).
		Updates(map[string]interface{}{
			"use_count":    gorm.Expr("use_count + 1"),
			"last_used_at": usedAt,
		}).Error
}

func (r *fileCacheRepo) DeleteExpired(dbc dbctx.Context, now time.Time) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Unscoped().
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Delete(&types.FileProcessingCache{})
	return res.RowsAffected, res.Error
}
