package repository

import (
	"context"

	"gorm.io/gorm"

	"hwmun/backend/internal/model"
)

// ApplicationRepository 志愿者与会务报名数据访问接口
type ApplicationRepository interface {
	Create(ctx context.Context, app *model.Application) error
	ListByKind(ctx context.Context, kind string) ([]model.Application, error)
}

type applicationRepo struct {
	db *gorm.DB
}

// NewApplicationRepo 创建 ApplicationRepository 实例
func NewApplicationRepo(db *gorm.DB) ApplicationRepository {
	return &applicationRepo{db: db}
}

func (r *applicationRepo) Create(ctx context.Context, app *model.Application) error {
	return r.db.WithContext(ctx).Create(app).Error
}

func (r *applicationRepo) ListByKind(ctx context.Context, kind string) ([]model.Application, error) {
	var list []model.Application
	err := r.db.WithContext(ctx).
		Where("kind = ?", kind).
		Order("created_at ASC, id ASC").
		Find(&list).Error
	return list, err
}
