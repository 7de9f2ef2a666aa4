package repository

import (
	"context"

	"gorm.io/gorm"

	"hwmun/backend/internal/model"
)

// SessionRepository 会场目录数据访问接口
type SessionRepository interface {
	List(ctx context.Context) ([]model.Session, error)
	// ReplaceNonReserved 删除全部非保留会场后写入新目录，需在事务内调用
	ReplaceNonReserved(ctx context.Context, sessions []model.Session) error
}

type sessionRepo struct {
	db *gorm.DB
}

// NewSessionRepo 创建 SessionRepository 实例
func NewSessionRepo(db *gorm.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) List(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) ReplaceNonReserved(ctx context.Context, sessions []model.Session) error {
	if err := r.db.WithContext(ctx).
		Where("reserved = ?", false).
		Delete(&model.Session{}).Error; err != nil {
		return err
	}
	if len(sessions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&sessions).Error
}
