package repository

import (
	"context"

	"gorm.io/gorm"

	pkgerrors "hwmun/backend/pkg/errors"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	School         SchoolRepository
	Seat           SeatRepository
	Session        SessionRepository
	Quota          QuotaRepository
	Exchange       ExchangeRepository
	OpLog          OpLogRepository
	Representative RepresentativeRepository
	Hotel          HotelRepository
	Reservation    ReservationRepository
	Payment        PaymentRepository
	User           UserRepository
	Dais           DaisRepository
	Application    ApplicationRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:             db,
		School:         NewSchoolRepo(db),
		Seat:           NewSeatRepo(db),
		Session:        NewSessionRepo(db),
		Quota:          NewQuotaRepo(db),
		Exchange:       NewExchangeRepo(db),
		OpLog:          NewOpLogRepo(db),
		Representative: NewRepresentativeRepo(db),
		Hotel:          NewHotelRepo(db),
		Reservation:    NewReservationRepo(db),
		Payment:        NewPaymentRepo(db),
		User:           NewUserRepo(db),
		Dais:           NewDaisRepo(db),
		Application:    NewApplicationRepo(db),
	}
}

// Transaction 在同一数据库事务内执行 fn，fn 内只能使用参数 tx 上的 Repository
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(NewRepository(db))
	})
}

// affected 将条件更新的命中行数转换为乐观锁错误
func affected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}
