package repository

import (
	"context"

	"gorm.io/gorm"

	"hwmun/backend/internal/model"
)

// RepresentativeRepository 代表名单数据访问接口
type RepresentativeRepository interface {
	CreateBatch(ctx context.Context, reps []model.Representative) error
	ListBySchool(ctx context.Context, school string) ([]model.Representative, error)
	// List 全部代表，session 非空时按会场筛选
	List(ctx context.Context, session string) ([]model.Representative, error)
	GetByID(ctx context.Context, id string) (*model.Representative, error)
	// Update 按 id 更新指定字段，记录不存在时返回 ErrOptimisticLock
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	DeleteBySchool(ctx context.Context, school string) error
}

type representativeRepo struct {
	db *gorm.DB
}

// NewRepresentativeRepo 创建 RepresentativeRepository 实例
func NewRepresentativeRepo(db *gorm.DB) RepresentativeRepository {
	return &representativeRepo{db: db}
}

func (r *representativeRepo) CreateBatch(ctx context.Context, reps []model.Representative) error {
	if len(reps) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&reps).Error
}

func (r *representativeRepo) ListBySchool(ctx context.Context, school string) ([]model.Representative, error) {
	var reps []model.Representative
	err := r.db.WithContext(ctx).
		Where("school_id = ?", school).
		Order("round ASC, session_id ASC, is_leader DESC, id ASC").
		Find(&reps).Error
	return reps, err
}

func (r *representativeRepo) List(ctx context.Context, session string) ([]model.Representative, error) {
	var reps []model.Representative
	db := r.db.WithContext(ctx)
	if session != "" {
		db = db.Where("session_id = ?", session)
	}
	err := db.Order("school_id ASC, round ASC, session_id ASC, is_leader DESC, id ASC").Find(&reps).Error
	return reps, err
}

func (r *representativeRepo) GetByID(ctx context.Context, id string) (*model.Representative, error) {
	var rep model.Representative
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rep).Error; err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *representativeRepo) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return affected(r.db.WithContext(ctx).
		Model(&model.Representative{}).
		Where("id = ?", id).
		Updates(fields))
}

func (r *representativeRepo) DeleteBySchool(ctx context.Context, school string) error {
	return r.db.WithContext(ctx).Where("school_id = ?", school).Delete(&model.Representative{}).Error
}
