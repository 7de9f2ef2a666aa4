package repository

import (
	"context"

	"gorm.io/gorm"

	"hwmun/backend/internal/model"
)

// HotelRepository 酒店房型数据访问接口
type HotelRepository interface {
	Create(ctx context.Context, hotel *model.Hotel) error
	GetByID(ctx context.Context, id string) (*model.Hotel, error)
	List(ctx context.Context) ([]model.Hotel, error)
	// Take 以 available > 0 为条件占用一间房
	Take(ctx context.Context, id string) error
	// Give 归还 n 间房
	Give(ctx context.Context, id string, n int) error
	// AdjustStock 库存与可用数同步增减，以 available + delta >= 0 为条件
	AdjustStock(ctx context.Context, id string, delta int) error
}

type hotelRepo struct {
	db *gorm.DB
}

// NewHotelRepo 创建 HotelRepository 实例
func NewHotelRepo(db *gorm.DB) HotelRepository {
	return &hotelRepo{db: db}
}

func (r *hotelRepo) Create(ctx context.Context, hotel *model.Hotel) error {
	return r.db.WithContext(ctx).Create(hotel).Error
}

func (r *hotelRepo) GetByID(ctx context.Context, id string) (*model.Hotel, error) {
	var hotel model.Hotel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&hotel).Error; err != nil {
		return nil, err
	}
	return &hotel, nil
}

func (r *hotelRepo) List(ctx context.Context) ([]model.Hotel, error) {
	var hotels []model.Hotel
	err := r.db.WithContext(ctx).Order("name ASC, type ASC").Find(&hotels).Error
	return hotels, err
}

func (r *hotelRepo) Take(ctx context.Context, id string) error {
	return affected(r.db.WithContext(ctx).
		Model(&model.Hotel{}).
		Where("id = ? AND available > 0", id).
		UpdateColumn("available", gorm.Expr("available - 1")))
}

func (r *hotelRepo) Give(ctx context.Context, id string, n int) error {
	return r.db.WithContext(ctx).
		Model(&model.Hotel{}).
		Where("id = ?", id).
		UpdateColumn("available", gorm.Expr("available + ?", n)).Error
}

func (r *hotelRepo) AdjustStock(ctx context.Context, id string, delta int) error {
	return affected(r.db.WithContext(ctx).
		Model(&model.Hotel{}).
		Where("id = ? AND available + ? >= 0", id, delta).
		UpdateColumns(map[string]interface{}{
			"stock":     gorm.Expr("stock + ?", delta),
			"available": gorm.Expr("available + ?", delta),
		}))
}
