package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hwmun/backend/config"
	"hwmun/backend/internal/model"
	"hwmun/backend/internal/repository"
	"hwmun/backend/pkg/jwt"
	"hwmun/backend/pkg/mailer"
	"hwmun/backend/pkg/redis"
)

// ── 跨模块通用业务错误 ──

var (
	ErrSchoolNotFound = errors.New("学校不存在")
	ErrForbidden      = errors.New("无权执行该操作")
	ErrStageConflict  = errors.New("学校当前阶段不允许该操作")
	ErrInvalidAction  = errors.New("不支持的操作")
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth           AuthService
	Session        SessionService
	OpLog          OpLogService
	Quota          QuotaService
	Seat           SeatService
	Stage          StageService
	Exchange       ExchangeService
	School         SchoolService
	Reservation    ReservationService
	Payment        PaymentService
	Representative RepresentativeService
	Export         ExportService
	Billing        BillingService
	Dais           DaisService
	Application    ApplicationService
}

// NewService 创建 Service 聚合
// rdb 可为 nil（Redis 不可用时登出不写黑名单）
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	mail mailer.Mailer,
	logger *zap.Logger,
) *Service {
	opLog := NewOpLogService(repo, logger)
	quota := NewQuotaService(repo, logger)
	stage := NewStageService(repo, opLog, logger)

	return &Service{
		Auth:           NewAuthService(cfg, repo, jwtMgr, rdb, logger),
		Session:        NewSessionService(repo, logger),
		OpLog:          opLog,
		Quota:          quota,
		Seat:           NewSeatService(repo, quota, opLog, logger),
		Stage:          stage,
		Exchange:       NewExchangeService(repo, quota, opLog, logger),
		School:         NewSchoolService(repo, quota, opLog, logger),
		Reservation:    NewReservationService(repo, opLog, logger),
		Payment:        NewPaymentService(cfg, repo, quota, opLog, mail, logger),
		Representative: NewRepresentativeService(repo, quota, logger),
		Export:         NewExportService(repo, logger),
		Billing:        NewBillingService(repo, logger),
		Dais:           NewDaisService(cfg, repo, mail, logger),
		Application:    NewApplicationService(repo, logger),
	}
}

// loadSchool 读取学校，记录不存在时返回 ErrSchoolNotFound
func loadSchool(ctx context.Context, repo *repository.Repository, logger *zap.Logger, id string) (*model.School, error) {
	school, err := repo.School.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSchoolNotFound
		}
		logger.Error("查询学校失败", zap.String("school", id), zap.Error(err))
		return nil, err
	}
	return school, nil
}

// seatMapOf 读取学校名额表
func seatMapOf(ctx context.Context, repo *repository.Repository, school string) (model.SeatMap, error) {
	rows, err := repo.Seat.ListBySchool(ctx, school)
	if err != nil {
		return nil, err
	}
	return model.NewSeatMap(rows), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
