package repository

import (
	"context"

	"gorm.io/gorm"

	"hwmun/backend/internal/model"
)

// OpLogRepository 操作日志数据访问接口
type OpLogRepository interface {
	Create(ctx context.Context, entry *model.OpLog) error
	ListBySchool(ctx context.Context, school string) ([]model.OpLog, error)
	DeleteBySchool(ctx context.Context, school string) error
}

type opLogRepo struct {
	db *gorm.DB
}

// NewOpLogRepo 创建 OpLogRepository 实例
func NewOpLogRepo(db *gorm.DB) OpLogRepository {
	return &opLogRepo{db: db}
}

func (r *opLogRepo) Create(ctx context.Context, entry *model.OpLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *opLogRepo) ListBySchool(ctx context.Context, school string) ([]model.OpLog, error) {
	var logs []model.OpLog
	err := r.db.WithContext(ctx).
		Where("school_id = ?", school).
		Order("time DESC, id DESC").
		Find(&logs).Error
	return logs, err
}

func (r *opLogRepo) DeleteBySchool(ctx context.Context, school string) error {
	return r.db.WithContext(ctx).Where("school_id = ?", school).Delete(&model.OpLog{}).Error
}
