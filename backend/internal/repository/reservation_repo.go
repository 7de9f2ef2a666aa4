package repository

import (
	"context"

	"gorm.io/gorm"

	"hwmun/backend/internal/model"
)

// ReservationRepository 住宿预订数据访问接口
type ReservationRepository interface {
	Create(ctx context.Context, items []model.Reservation) error
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	ListBySchool(ctx context.Context, school string) ([]model.Reservation, error)
	ListAll(ctx context.Context) ([]model.Reservation, error)
	// ListIncoming 其他学校向本校发起的拼房
	ListIncoming(ctx context.Context, school string) ([]model.Reservation, error)
	// UpdateRoomshare 拼房状态 CAS
	UpdateRoomshare(ctx context.Context, id, fromState, toState, partner string) error
	DeleteBySchool(ctx context.Context, school string) error
}

type reservationRepo struct {
	db *gorm.DB
}

// NewReservationRepo 创建 ReservationRepository 实例
func NewReservationRepo(db *gorm.DB) ReservationRepository {
	return &reservationRepo{db: db}
}

func (r *reservationRepo) Create(ctx context.Context, items []model.Reservation) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *reservationRepo) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	var res model.Reservation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&res).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepo) ListBySchool(ctx context.Context, school string) ([]model.Reservation, error) {
	var list []model.Reservation
	err := r.db.WithContext(ctx).
		Where("school_id = ?", school).
		Order("check_in ASC, id ASC").
		Find(&list).Error
	return list, err
}

func (r *reservationRepo) ListAll(ctx context.Context) ([]model.Reservation, error) {
	var list []model.Reservation
	err := r.db.WithContext(ctx).Order("school_id ASC, check_in ASC, id ASC").Find(&list).Error
	return list, err
}

func (r *reservationRepo) ListIncoming(ctx context.Context, school string) ([]model.Reservation, error) {
	var list []model.Reservation
	err := r.db.WithContext(ctx).
		Where("roomshare_school = ? AND school_id <> ?", school, school).
		Order("check_in ASC, id ASC").
		Find(&list).Error
	return list, err
}

func (r *reservationRepo) UpdateRoomshare(ctx context.Context, id, fromState, toState, partner string) error {
	return affected(r.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("id = ? AND COALESCE(roomshare_state, '') = ?", id, fromState).
		Updates(map[string]interface{}{"roomshare_state": toState, "roomshare_school": partner}))
}

func (r *reservationRepo) DeleteBySchool(ctx context.Context, school string) error {
	return r.db.WithContext(ctx).Where("school_id = ?", school).Delete(&model.Reservation{}).Error
}
