package repository

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"hwmun/backend/internal/model"
)

// SchoolRepository 学校数据访问接口
type SchoolRepository interface {
	Create(ctx context.Context, school *model.School) error
	GetByID(ctx context.Context, id string) (*model.School, error)
	List(ctx context.Context, stage string) ([]model.School, error)
	// Transition 阶段 CAS：仅当当前阶段为 from 时改为 to
	Transition(ctx context.Context, id, from, to string) error
	// TransitionWithMessage 阶段 CAS 并同时写入 last_msg
	TransitionWithMessage(ctx context.Context, id, from, to, msg string) error
	// HoldStage 确认学校仍处于 stage；在事务内调用时同时锁住该行，阻止并发流转
	HoldStage(ctx context.Context, id, stage string) error
	// MarkNuking 置为 x.nuking，已处于删除中则失败
	MarkNuking(ctx context.Context, id string) error
	UpdateNgQuota(ctx context.Context, id string, summary map[string]int) error
	SetPreallocation(ctx context.Context, id string, seats map[string]int) error
	Delete(ctx context.Context, id string) error
}

type schoolRepo struct {
	db *gorm.DB
}

// NewSchoolRepo 创建 SchoolRepository 实例
func NewSchoolRepo(db *gorm.DB) SchoolRepository {
	return &schoolRepo{db: db}
}

func (r *schoolRepo) Create(ctx context.Context, school *model.School) error {
	return r.db.WithContext(ctx).Create(school).Error
}

func (r *schoolRepo) GetByID(ctx context.Context, id string) (*model.School, error) {
	var school model.School
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&school).Error; err != nil {
		return nil, err
	}
	return &school, nil
}

func (r *schoolRepo) List(ctx context.Context, stage string) ([]model.School, error) {
	var schools []model.School
	db := r.db.WithContext(ctx).Order("created_at ASC")
	if stage != "" {
		db = db.Where("stage = ?", stage)
	}
	if err := db.Find(&schools).Error; err != nil {
		return nil, err
	}
	return schools, nil
}

func (r *schoolRepo) Transition(ctx context.Context, id, from, to string) error {
	return affected(r.db.WithContext(ctx).
		Model(&model.School{}).
		Where("id = ? AND stage = ?", id, from).
		Update("stage", to))
}

func (r *schoolRepo) TransitionWithMessage(ctx context.Context, id, from, to, msg string) error {
	return affected(r.db.WithContext(ctx).
		Model(&model.School{}).
		Where("id = ? AND stage = ?", id, from).
		Updates(map[string]interface{}{"stage": to, "last_msg": msg}))
}

func (r *schoolRepo) HoldStage(ctx context.Context, id, stage string) error {
	return affected(r.db.WithContext(ctx).
		Model(&model.School{}).
		Where("id = ? AND stage = ?", id, stage).
		Update("stage", stage))
}

func (r *schoolRepo) MarkNuking(ctx context.Context, id string) error {
	return affected(r.db.WithContext(ctx).
		Model(&model.School{}).
		Where("id = ? AND stage <> ?", id, model.StageTeardown.String()).
		Update("stage", model.StageTeardown.String()))
}

func (r *schoolRepo) UpdateNgQuota(ctx context.Context, id string, summary map[string]int) error {
	return r.db.WithContext(ctx).
		Model(&model.School{}).
		Where("id = ?", id).
		Update("ng_quota", datatypes.NewJSONType(summary)).Error
}

func (r *schoolRepo) SetPreallocation(ctx context.Context, id string, seats map[string]int) error {
	var value interface{}
	if seats != nil {
		raw, err := json.Marshal(seats)
		if err != nil {
			return err
		}
		value = datatypes.JSON(raw)
	}
	return affected(r.db.WithContext(ctx).
		Model(&model.School{}).
		Where("id = ?", id).
		Update("seat_preallocated", value))
}

func (r *schoolRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.School{}).Error
}
