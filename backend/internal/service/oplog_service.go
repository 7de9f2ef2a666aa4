package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hwmun/backend/internal/access"
	"hwmun/backend/internal/model"
	"hwmun/backend/internal/repository"
)

// 操作日志的流程分类
const (
	WorkflowSeat        = "seat"
	WorkflowExchange    = "exchange"
	WorkflowStage       = "stage"
	WorkflowReservation = "reservation"
	WorkflowPayment     = "payment"
	WorkflowSchool      = "school"
)

// OpLogService 操作日志业务接口
type OpLogService interface {
	// Write 写入失败只记录日志，不影响主流程
	Write(ctx context.Context, p *access.Principal, school, workflow, text string)
	List(ctx context.Context, p *access.Principal, school string) ([]model.OpLog, error)
}

type opLogService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewOpLogService 创建 OpLogService 实例
func NewOpLogService(repo *repository.Repository, logger *zap.Logger) OpLogService {
	return &opLogService{repo: repo, logger: logger}
}

func (s *opLogService) Write(ctx context.Context, p *access.Principal, school, workflow, text string) {
	entry := &model.OpLog{
		ID:       model.NewID(),
		SchoolID: school,
		Workflow: workflow,
		Text:     text,
		Time:     time.Now(),
	}
	if p != nil {
		entry.User = p.User
		entry.IP = p.IP
		entry.UserAgent = p.UserAgent
	}

	if err := s.repo.OpLog.Create(ctx, entry); err != nil {
		s.logger.Error("写入操作日志失败",
			zap.String("school", school),
			zap.String("workflow", workflow),
			zap.Error(err),
		)
	}
}

func (s *opLogService) List(ctx context.Context, p *access.Principal, school string) ([]model.OpLog, error) {
	if !p.HasAny(access.Staff, access.Finance, access.Admin) {
		return nil, ErrForbidden
	}
	list, err := s.repo.OpLog.ListBySchool(ctx, school)
	if err != nil {
		s.logger.Error("查询操作日志失败", zap.Error(err))
		return nil, err
	}
	return list, nil
}
