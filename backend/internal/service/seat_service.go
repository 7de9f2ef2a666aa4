package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"hwmun/backend/internal/access"
	"hwmun/backend/internal/model"
	"hwmun/backend/internal/repository"
	pkgerrors "hwmun/backend/pkg/errors"
)

// ── 名额账本业务错误 ──

var (
	ErrInsufficientSeats = errors.New("名额不足")
	ErrInvalidAmount     = errors.New("名额变动数量无效")
	ErrInvalidSession    = errors.New("会场不存在或不可操作")
	ErrInvalidRound      = errors.New("轮次无效")
	ErrNoPreallocation   = errors.New("尚未设置第二轮预分配名额")
)

// SeatService 名额账本业务接口
type SeatService interface {
	SeatMap(ctx context.Context, p *access.Principal, school string) (model.SeatMap, error)
	// Relinquish amount<0 为释放，amount>0 为会务分配
	Relinquish(ctx context.Context, p *access.Principal, school, round, session string, amount int) (model.SeatMap, error)
	LeaderAttend(ctx context.Context, p *access.Principal, school string, attend bool) (model.SeatMap, error)
	// PreallocateRound2 seats 为 nil 时复制第一轮名额
	PreallocateRound2(ctx context.Context, p *access.Principal, school string, seats map[string]int) (map[string]int, error)
	ConfirmRound2(ctx context.Context, p *access.Principal, school string) (model.SeatMap, error)
}

type seatService struct {
	repo   *repository.Repository
	quota  QuotaService
	opLog  OpLogService
	logger *zap.Logger
}

// NewSeatService 创建 SeatService 实例
func NewSeatService(repo *repository.Repository, quota QuotaService, opLog OpLogService, logger *zap.Logger) SeatService {
	return &seatService{repo: repo, quota: quota, opLog: opLog, logger: logger}
}

func (s *seatService) SeatMap(ctx context.Context, p *access.Principal, school string) (model.SeatMap, error) {
	if !p.CanManageSchool(school) {
		return nil, ErrForbidden
	}
	if _, err := loadSchool(ctx, s.repo, s.logger, school); err != nil {
		return nil, err
	}
	seats, err := seatMapOf(ctx, s.repo, school)
	if err != nil {
		s.logger.Error("查询名额失败", zap.Error(err))
		return nil, err
	}
	return seats, nil
}

// ────────────────────── 释放 / 分配 ──────────────────────

func (s *seatService) Relinquish(ctx context.Context, p *access.Principal, schoolID, round, session string, amount int) (model.SeatMap, error) {
	if !p.CanManageSchool(schoolID) {
		return nil, ErrForbidden
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := model.ParseStage(round + "." + string(model.PhaseRelinquishment)); err != nil {
		return nil, ErrInvalidRound
	}

	school, err := loadSchool(ctx, s.repo, s.logger, schoolID)
	if err != nil {
		return nil, err
	}
	cat := newCatalog(s.repo.Session)
	sess, ok, err := cat.Get(ctx, session)
	if err != nil {
		s.logger.Error("查询会场目录失败", zap.Error(err))
		return nil, err
	}
	if !ok || sess.Reserved {
		return nil, ErrInvalidSession
	}

	if amount > 0 {
		return s.allocate(ctx, p, schoolID, round, session, amount)
	}

	// 1. 阶段检查：仅 {round}.relinquishment 可释放
	if !p.IsStaff() {
		stage, err := model.ParseStage(school.Stage)
		if err != nil || stage.Round != round || stage.Phase != model.PhaseRelinquishment {
			return nil, ErrStageConflict
		}
	}

	// 2. 账本扣减，count >= -amount 为条件
	if err := s.repo.Seat.Increment(ctx, schoolID, round, session, amount); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrInsufficientSeats
		}
		s.logger.Error("扣减名额失败", zap.Error(err))
		return nil, err
	}

	// 3. 影子账本仅作参考，失败记录诊断后继续
	if err := s.quota.RelinquishQuota(ctx, schoolID, session, -amount); err != nil {
		s.quota.Report(ctx, "relinquishQuota", schoolID, err, map[string]interface{}{
			"session": session,
			"amount":  amount,
		})
	}

	// 4. 第一轮名额清零后，涉及该名额的待处理交换失效
	if round == "1" {
		left, err := s.repo.Seat.Get(ctx, schoolID, round, session)
		if err != nil {
			s.logger.Error("查询名额失败", zap.Error(err))
		} else if left == 0 {
			if _, err := s.repo.Exchange.CloseBySeat(ctx, schoolID, session, model.ExchangeStateUnavailable); err != nil {
				s.logger.Error("关闭失效交换失败", zap.Error(err))
			}
		}
	}

	s.opLog.Write(ctx, p, schoolID, WorkflowSeat,
		fmt.Sprintf("释放名额：第 %s 轮「%s」%d 个", round, sess.Name, -amount))

	return seatMapOf(ctx, s.repo, schoolID)
}

func (s *seatService) allocate(ctx context.Context, p *access.Principal, school, round, session string, amount int) (model.SeatMap, error) {
	if !p.IsStaff() {
		return nil, ErrForbidden
	}
	if err := s.repo.Seat.Increment(ctx, school, round, session, amount); err != nil {
		s.logger.Error("分配名额失败", zap.Error(err))
		return nil, err
	}
	s.syncQuota(ctx, school)

	s.opLog.Write(ctx, p, school, WorkflowSeat,
		fmt.Sprintf("分配名额：第 %s 轮「%s」%d 个", round, newCatalog(s.repo.Session).Name(ctx, session), amount))

	return seatMapOf(ctx, s.repo, school)
}

// ────────────────────── 领队出席 ──────────────────────

func (s *seatService) LeaderAttend(ctx context.Context, p *access.Principal, schoolID string, attend bool) (model.SeatMap, error) {
	if !p.CanManageSchool(schoolID) {
		return nil, ErrForbidden
	}
	school, err := loadSchool(ctx, s.repo, s.logger, schoolID)
	if err != nil {
		return nil, err
	}
	if !p.IsStaff() {
		stage, err := model.ParseStage(school.Stage)
		if err != nil || stage.Round != "1" ||
			(stage.Phase != model.PhaseRelinquishment && stage.Phase != model.PhaseExchange) {
			return nil, ErrStageConflict
		}
	}

	chosen, opposite := model.SessionLeaderNonRep, model.SessionLeaderRep
	if attend {
		chosen, opposite = opposite, chosen
	}

	// 两个领队会场互斥，删除与写入在同一事务内完成
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Seat.Remove(ctx, schoolID, "1", opposite); err != nil {
			return err
		}
		return tx.Seat.Set(ctx, schoolID, "1", chosen, 1)
	})
	if err != nil {
		s.logger.Error("设置领队出席失败", zap.Error(err))
		return nil, err
	}

	if err := s.quota.SetLeaderAttend(ctx, schoolID, attend); err != nil {
		s.quota.Report(ctx, "setLeaderAttend", schoolID, err, map[string]interface{}{"attend": attend})
	}

	text := "领队不作为代表参会"
	if attend {
		text = "领队作为代表参会"
	}
	s.opLog.Write(ctx, p, schoolID, WorkflowSeat, text)

	return seatMapOf(ctx, s.repo, schoolID)
}

// ────────────────────── 第二轮 ──────────────────────

func (s *seatService) PreallocateRound2(ctx context.Context, p *access.Principal, schoolID string, seats map[string]int) (map[string]int, error) {
	if !p.IsStaff() {
		return nil, ErrForbidden
	}
	if _, err := loadSchool(ctx, s.repo, s.logger, schoolID); err != nil {
		return nil, err
	}

	if seats == nil {
		current, err := seatMapOf(ctx, s.repo, schoolID)
		if err != nil {
			s.logger.Error("查询名额失败", zap.Error(err))
			return nil, err
		}
		seats = map[string]int{}
		for session, n := range current["1"] {
			if !model.IsInternal(session) && n > 0 {
				seats[session] = n
			}
		}
	}
	for _, n := range seats {
		if n < 0 {
			return nil, ErrInvalidAmount
		}
	}

	if err := s.repo.School.SetPreallocation(ctx, schoolID, seats); err != nil {
		s.logger.Error("写入第二轮预分配失败", zap.Error(err))
		return nil, err
	}
	return seats, nil
}

func (s *seatService) ConfirmRound2(ctx context.Context, p *access.Principal, schoolID string) (model.SeatMap, error) {
	if !p.IsStaff() {
		return nil, ErrForbidden
	}
	school, err := loadSchool(ctx, s.repo, s.logger, schoolID)
	if err != nil {
		return nil, err
	}
	pre, err := school.Preallocation()
	if err != nil {
		s.logger.Error("解析第二轮预分配失败", zap.Error(err))
		return nil, err
	}
	if pre == nil {
		return nil, ErrNoPreallocation
	}

	from := model.Stage{Round: "1", Phase: model.PhaseComplete}
	to := model.Stage{Round: "2", Phase: model.PhaseRelinquishment}
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.School.Transition(ctx, schoolID, from.String(), to.String()); err != nil {
			return err
		}
		if err := tx.Seat.ReplaceRound(ctx, schoolID, to.Round, pre); err != nil {
			return err
		}
		return tx.School.SetPreallocation(ctx, schoolID, nil)
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrStageConflict
		}
		s.logger.Error("确认第二轮名额失败", zap.Error(err))
		return nil, err
	}

	s.syncQuota(ctx, schoolID)
	s.opLog.Write(ctx, p, schoolID, WorkflowStage, "确认第二轮名额，进入第二轮名额释放")

	return seatMapOf(ctx, s.repo, schoolID)
}

func (s *seatService) syncQuota(ctx context.Context, school string) {
	if _, err := s.quota.SyncQuotaToSchool(ctx, school); err != nil {
		s.quota.Report(ctx, "syncQuotaToSchool", school, err, nil)
	}
}
