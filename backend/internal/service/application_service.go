package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"hwmun/backend/internal/access"
	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/model"
	"hwmun/backend/internal/repository"
)

var ErrInvalidApplication = errors.New("报名表须为 JSON 对象")

// ApplicationService 志愿者与会务报名业务接口
type ApplicationService interface {
	// Submit 公开提交，无需登录；内容原样保存
	Submit(ctx context.Context, kind string, payload json.RawMessage) (string, error)
	List(ctx context.Context, p *access.Principal, kind string) ([]dto.ApplicationResponse, error)
}

type applicationService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewApplicationService 创建 ApplicationService 实例
func NewApplicationService(repo *repository.Repository, logger *zap.Logger) ApplicationService {
	return &applicationService{repo: repo, logger: logger}
}

func (s *applicationService) Submit(ctx context.Context, kind string, payload json.RawMessage) (string, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(payload, &obj); err != nil || obj == nil {
		return "", ErrInvalidApplication
	}
	app := &model.Application{
		ID:        model.NewID(),
		Kind:      kind,
		Payload:   datatypes.JSON(payload),
		CreatedAt: time.Now(),
	}
	if err := s.repo.Application.Create(ctx, app); err != nil {
		s.logger.Error("保存报名表失败", zap.String("kind", kind), zap.Error(err))
		return "", err
	}
	s.logger.Info("收到报名表", zap.String("kind", kind), zap.String("id", app.ID))
	return app.ID, nil
}

func (s *applicationService) List(ctx context.Context, p *access.Principal, kind string) ([]dto.ApplicationResponse, error) {
	if !p.HasAny(access.Staff, access.Finance, access.Admin) {
		return nil, ErrForbidden
	}
	list, err := s.repo.Application.ListByKind(ctx, kind)
	if err != nil {
		s.logger.Error("查询报名表失败", zap.String("kind", kind), zap.Error(err))
		return nil, err
	}
	result := make([]dto.ApplicationResponse, 0, len(list))
	for _, a := range list {
		result = append(result, dto.ApplicationResponse{
			ID:        a.ID,
			Payload:   json.RawMessage(a.Payload),
			CreatedAt: formatTime(a.CreatedAt),
		})
	}
	return result, nil
}
