package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hwmun/backend/internal/model"
)

// PaymentRepository 缴费凭证数据访问接口
type PaymentRepository interface {
	// Upsert 同一 ID 重复提交时覆盖
	Upsert(ctx context.Context, p *model.Payment) error
	ListBySchool(ctx context.Context, school string) ([]model.Payment, error)
	DeleteBySchool(ctx context.Context, school string) error
}

type paymentRepo struct {
	db *gorm.DB
}

// NewPaymentRepo 创建 PaymentRepository 实例
func NewPaymentRepo(db *gorm.DB) PaymentRepository {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) Upsert(ctx context.Context, p *model.Payment) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "images", "created_at"}),
		}).
		Create(p).Error
}

func (r *paymentRepo) ListBySchool(ctx context.Context, school string) ([]model.Payment, error) {
	var list []model.Payment
	err := r.db.WithContext(ctx).
		Where("school_id = ?", school).
		Order("round ASC").
		Find(&list).Error
	return list, err
}

func (r *paymentRepo) DeleteBySchool(ctx context.Context, school string) error {
	return r.db.WithContext(ctx).Where("school_id = ?", school).Delete(&model.Payment{}).Error
}
