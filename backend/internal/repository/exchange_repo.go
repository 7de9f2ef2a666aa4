package repository

import (
	"context"

	"gorm.io/gorm"

	"hwmun/backend/internal/model"
)

// ExchangeFilter 交换列表筛选条件，空字段不参与筛选
type ExchangeFilter struct {
	From   string
	To     string
	School string // 发起方或接收方
	State  model.ExchangeState
}

// ExchangeRepository 名额交换数据访问接口
type ExchangeRepository interface {
	Create(ctx context.Context, ex *model.Exchange) error
	GetByID(ctx context.Context, id string) (*model.Exchange, error)
	List(ctx context.Context, filter ExchangeFilter) ([]model.Exchange, error)
	// Transition 状态 CAS，仅当当前状态为 from 时改为 to
	Transition(ctx context.Context, id string, from, to model.ExchangeState) error
	// CountPendingOffers 某校在某会场上发出且仍待处理的交换数
	CountPendingOffers(ctx context.Context, school, session string) (int64, error)
	// CloseBySchool 关闭与该校相关的全部待处理交换
	CloseBySchool(ctx context.Context, school string, to model.ExchangeState) (int64, error)
	// CloseBySeat 关闭引用 (学校, 会场) 的全部待处理交换
	CloseBySeat(ctx context.Context, school, session string, to model.ExchangeState) (int64, error)
	DeleteBySchool(ctx context.Context, school string) error
}

type exchangeRepo struct {
	db *gorm.DB
}

// NewExchangeRepo 创建 ExchangeRepository 实例
func NewExchangeRepo(db *gorm.DB) ExchangeRepository {
	return &exchangeRepo{db: db}
}

func (r *exchangeRepo) Create(ctx context.Context, ex *model.Exchange) error {
	return r.db.WithContext(ctx).Create(ex).Error
}

func (r *exchangeRepo) GetByID(ctx context.Context, id string) (*model.Exchange, error) {
	var ex model.Exchange
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ex).Error; err != nil {
		return nil, err
	}
	return &ex, nil
}

func (r *exchangeRepo) List(ctx context.Context, filter ExchangeFilter) ([]model.Exchange, error) {
	db := r.db.WithContext(ctx).Model(&model.Exchange{})
	if filter.From != "" {
		db = db.Where("from_school = ?", filter.From)
	}
	if filter.To != "" {
		db = db.Where("to_school = ?", filter.To)
	}
	if filter.School != "" {
		db = db.Where("from_school = ? OR to_school = ?", filter.School, filter.School)
	}
	if filter.State != "" {
		db = db.Where("state = ?", filter.State)
	}

	var list []model.Exchange
	if err := db.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *exchangeRepo) Transition(ctx context.Context, id string, from, to model.ExchangeState) error {
	return affected(r.db.WithContext(ctx).
		Model(&model.Exchange{}).
		Where("id = ? AND state = ?", id, from).
		Update("state", to))
}

func (r *exchangeRepo) CountPendingOffers(ctx context.Context, school, session string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Exchange{}).
		Where("from_school = ? AND from_session = ? AND state = ?", school, session, model.ExchangeStatePending).
		Count(&n).Error
	return n, err
}

func (r *exchangeRepo) CloseBySchool(ctx context.Context, school string, to model.ExchangeState) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Exchange{}).
		Where("state = ? AND (from_school = ? OR to_school = ?)", model.ExchangeStatePending, school, school).
		Update("state", to)
	return res.RowsAffected, res.Error
}

func (r *exchangeRepo) CloseBySeat(ctx context.Context, school, session string, to model.ExchangeState) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Exchange{}).
		Where("state = ? AND ((from_school = ? AND from_session = ?) OR (to_school = ? AND to_session = ?))",
			model.ExchangeStatePending, school, session, school, session).
		Update("state", to)
	return res.RowsAffected, res.Error
}

func (r *exchangeRepo) DeleteBySchool(ctx context.Context, school string) error {
	return r.db.WithContext(ctx).
		Where("from_school = ? OR to_school = ?", school, school).
		Delete(&model.Exchange{}).Error
}
