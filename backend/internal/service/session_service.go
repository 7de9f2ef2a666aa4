package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"hwmun/backend/internal/access"
	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/model"
	"hwmun/backend/internal/repository"
)

var ErrReservedSession = errors.New("不能覆盖系统保留会场")

// SessionService 会场目录业务接口
type SessionService interface {
	List(ctx context.Context) ([]model.Session, error)
	// Replace 整体替换非保留会场，领队会场保持不变
	Replace(ctx context.Context, p *access.Principal, reqs []dto.SessionRequest) ([]model.Session, error)
}

type sessionService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewSessionService 创建 SessionService 实例
func NewSessionService(repo *repository.Repository, logger *zap.Logger) SessionService {
	return &sessionService{repo: repo, logger: logger}
}

func (s *sessionService) List(ctx context.Context) ([]model.Session, error) {
	list, err := s.repo.Session.List(ctx)
	if err != nil {
		s.logger.Error("查询会场目录失败", zap.Error(err))
		return nil, err
	}
	return list, nil
}

func (s *sessionService) Replace(ctx context.Context, p *access.Principal, reqs []dto.SessionRequest) ([]model.Session, error) {
	if !p.HasAccess(access.Admin) {
		return nil, ErrForbidden
	}

	sessions := make([]model.Session, 0, len(reqs))
	for _, r := range reqs {
		if model.IsInternal(r.ID) {
			return nil, ErrReservedSession
		}
		exchangeable := true
		if r.Exchangeable != nil {
			exchangeable = *r.Exchangeable
		}
		sessions = append(sessions, model.Session{
			ID:               r.ID,
			Name:             r.Name,
			Type:             r.Type,
			Dual:             r.Dual,
			RequiresChairman: r.RequiresChairman,
			Exchangeable:     exchangeable,
			Price:            r.Price,
		})
	}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		return tx.Session.ReplaceNonReserved(ctx, sessions)
	})
	if err != nil {
		s.logger.Error("替换会场目录失败", zap.Error(err))
		return nil, fmt.Errorf("替换会场目录失败: %w", err)
	}

	s.logger.Info("会场目录已更新", zap.String("operator", p.User), zap.Int("count", len(sessions)))
	return s.List(ctx)
}
