package repository

import (
	"context"

	"gorm.io/gorm"

	"hwmun/backend/internal/model"
)

// DaisRepository 主席团名册数据访问接口
type DaisRepository interface {
	Create(ctx context.Context, dais *model.Dais) error
	GetByID(ctx context.Context, id string) (*model.Dais, error)
	GetByUser(ctx context.Context, user string) (*model.Dais, error)
	List(ctx context.Context) ([]model.Dais, error)
	// Update 以 version 为条件更新并递增版本号，未命中返回 ErrOptimisticLock
	Update(ctx context.Context, id string, version int, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
}

type daisRepo struct {
	db *gorm.DB
}

// NewDaisRepo 创建 DaisRepository 实例
func NewDaisRepo(db *gorm.DB) DaisRepository {
	return &daisRepo{db: db}
}

func (r *daisRepo) Create(ctx context.Context, dais *model.Dais) error {
	return r.db.WithContext(ctx).Create(dais).Error
}

func (r *daisRepo) GetByID(ctx context.Context, id string) (*model.Dais, error) {
	var d model.Dais
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *daisRepo) GetByUser(ctx context.Context, user string) (*model.Dais, error) {
	var d model.Dais
	if err := r.db.WithContext(ctx).Where("user_id = ?", user).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *daisRepo) List(ctx context.Context) ([]model.Dais, error) {
	var list []model.Dais
	err := r.db.WithContext(ctx).Order("name ASC, id ASC").Find(&list).Error
	return list, err
}

func (r *daisRepo) Update(ctx context.Context, id string, version int, fields map[string]interface{}) error {
	fields["version"] = version + 1
	return affected(r.db.WithContext(ctx).
		Model(&model.Dais{}).
		Where("id = ? AND version = ?", id, version).
		Updates(fields))
}

func (r *daisRepo) Delete(ctx context.Context, id string) error {
	return affected(r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Dais{}))
}
