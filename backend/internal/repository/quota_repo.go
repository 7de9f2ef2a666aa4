package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"hwmun/backend/internal/model"
	pkgerrors "hwmun/backend/pkg/errors"
)

// QuotaRepository 名额影子账本数据访问接口
type QuotaRepository interface {
	// ListActive 有效令牌；session 为空时返回该校全部会场
	ListActive(ctx context.Context, school, session string) ([]model.Quota, error)
	CountActive(ctx context.Context, school string) (map[string]int, error)
	Create(ctx context.Context, tokens []model.Quota) error
	// Retire 以 active=true 为条件作废令牌
	Retire(ctx context.Context, id, reason string) error
	// Reactivate 撤销 Retire，仅对 active=false 的令牌生效
	Reactivate(ctx context.Context, id string) error
	// Lock 以 active=true 为条件锁定令牌并转移归属
	Lock(ctx context.Context, id, school, session string) error
	// Restore 恢复令牌归属并重新激活
	Restore(ctx context.Context, id, school, session, state string) error
	Unlock(ctx context.Context, id string) error
	// MoveLeaderToken 将领队出席令牌移到指定会场，不存在则返回 ErrOptimisticLock
	MoveLeaderToken(ctx context.Context, school, session string) error
	// FlagDelegate 将该校该会场一个 delegate != flag 的有效令牌改为 flag，
	// 没有可改的令牌时返回 ErrOptimisticLock
	FlagDelegate(ctx context.Context, school, session string, flag bool) error
	// MarkPaid 将该校全部有效令牌标记为已缴费
	MarkPaid(ctx context.Context, school string) (int64, error)
	DeleteBySchool(ctx context.Context, school string) error

	CreateError(ctx context.Context, e *model.QuotaError) error
	ListErrors(ctx context.Context, school string) ([]model.QuotaError, error)
}

type quotaRepo struct {
	db *gorm.DB
}

// NewQuotaRepo 创建 QuotaRepository 实例
func NewQuotaRepo(db *gorm.DB) QuotaRepository {
	return &quotaRepo{db: db}
}

func (r *quotaRepo) ListActive(ctx context.Context, school, session string) ([]model.Quota, error) {
	var tokens []model.Quota
	db := r.db.WithContext(ctx).Where("school_id = ? AND active = ?", school, true)
	if session != "" {
		db = db.Where("session_id = ?", session)
	}
	if err := db.Order("created_at ASC, id ASC").Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *quotaRepo) CountActive(ctx context.Context, school string) (map[string]int, error) {
	var rows []struct {
		SessionID string
		N         int
	}
	err := r.db.WithContext(ctx).
		Model(&model.Quota{}).
		Select("session_id, COUNT(*) AS n").
		Where("school_id = ? AND active = ?", school, true).
		Group("session_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.SessionID] = row.N
	}
	return counts, nil
}

func (r *quotaRepo) Create(ctx context.Context, tokens []model.Quota) error {
	if len(tokens) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&tokens).Error
}

func (r *quotaRepo) Retire(ctx context.Context, id, reason string) error {
	return affected(r.db.WithContext(ctx).
		Model(&model.Quota{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]interface{}{"active": false, "reason": reason}))
}

func (r *quotaRepo) Reactivate(ctx context.Context, id string) error {
	return affected(r.db.WithContext(ctx).
		Model(&model.Quota{}).
		Where("id = ? AND active = ?", id, false).
		Updates(map[string]interface{}{"active": true, "reason": ""}))
}

func (r *quotaRepo) Lock(ctx context.Context, id, school, session string) error {
	return affected(r.db.WithContext(ctx).
		Model(&model.Quota{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]interface{}{
			"active":     false,
			"state":      model.QuotaStateInExchange,
			"school_id":  school,
			"session_id": session,
		}))
}

func (r *quotaRepo) Restore(ctx context.Context, id, school, session, state string) error {
	return r.db.WithContext(ctx).
		Model(&model.Quota{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"active":     true,
			"state":      state,
			"school_id":  school,
			"session_id": session,
		}).Error
}

func (r *quotaRepo) Unlock(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&model.Quota{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"active": true, "state": model.QuotaStateExchanged}).Error
}

func (r *quotaRepo) MoveLeaderToken(ctx context.Context, school, session string) error {
	return affected(r.db.WithContext(ctx).
		Model(&model.Quota{}).
		Where("school_id = ? AND active = ? AND internal = ? AND reason = ?",
			school, true, true, model.QuotaReasonLeaderAttendance).
		Update("session_id", session))
}

func (r *quotaRepo) FlagDelegate(ctx context.Context, school, session string, flag bool) error {
	// 标记优先已缴费的令牌，取消标记优先未缴费的令牌
	order := "paid DESC, created_at ASC, id ASC"
	if !flag {
		order = "paid ASC, created_at DESC, id DESC"
	}
	var token model.Quota
	err := r.db.WithContext(ctx).
		Where("school_id = ? AND session_id = ? AND active = ? AND delegate = ?", school, session, true, !flag).
		Order(order).
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.ErrOptimisticLock
	}
	if err != nil {
		return err
	}
	return affected(r.db.WithContext(ctx).
		Model(&model.Quota{}).
		Where("id = ? AND active = ? AND delegate = ?", token.ID, true, !flag).
		Update("delegate", flag))
}

func (r *quotaRepo) MarkPaid(ctx context.Context, school string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Quota{}).
		Where("school_id = ? AND active = ? AND internal = ?", school, true, false).
		Update("paid", true)
	return res.RowsAffected, res.Error
}

func (r *quotaRepo) DeleteBySchool(ctx context.Context, school string) error {
	if err := r.db.WithContext(ctx).Where("school_id = ?", school).Delete(&model.Quota{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("school_id = ?", school).Delete(&model.QuotaError{}).Error
}

func (r *quotaRepo) CreateError(ctx context.Context, e *model.QuotaError) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *quotaRepo) ListErrors(ctx context.Context, school string) ([]model.QuotaError, error) {
	var errs []model.QuotaError
	err := r.db.WithContext(ctx).
		Where("school_id = ?", school).
		Order("created_at DESC").
		Find(&errs).Error
	return errs, err
}
