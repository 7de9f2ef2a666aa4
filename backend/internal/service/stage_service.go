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

// ── 阶段流转业务错误 ──

var (
	ErrDualSessionOdd      = errors.New("双代表会场名额须为偶数")
	ErrRoomshareUnresolved = errors.New("存在未处理的拼房申请")
	ErrNotSchoolType       = errors.New("仅学校类型可生成代表名单")
)

// StageService 学校阶段流转业务接口
// 每次流转都是一次 "WHERE stage = 期望阶段" 的条件更新，不命中即返回 ErrStageConflict，不重试
type StageService interface {
	ConfirmRelinquish(ctx context.Context, p *access.Principal, school string) (model.Stage, error)
	ConfirmExchange(ctx context.Context, p *access.Principal, school string) (model.Stage, error)
	ConfirmReservation(ctx context.Context, p *access.Principal, school string) (model.Stage, error)
	StartConfirm(ctx context.Context, p *access.Principal, school string) (model.Stage, error)
	ConfirmAttend(ctx context.Context, p *access.Principal, school string) (model.Stage, error)
	Nuke(ctx context.Context, p *access.Principal, school string) error
}

type stageService struct {
	repo   *repository.Repository
	opLog  OpLogService
	logger *zap.Logger
}

// NewStageService 创建 StageService 实例
func NewStageService(repo *repository.Repository, opLog OpLogService, logger *zap.Logger) StageService {
	return &stageService{repo: repo, opLog: opLog, logger: logger}
}

// current 读取学校并解析阶段，要求处于 phase
func (s *stageService) current(ctx context.Context, p *access.Principal, schoolID string, phase model.Phase) (*model.School, model.Stage, error) {
	if !p.CanManageSchool(schoolID) {
		return nil, model.Stage{}, ErrForbidden
	}
	school, err := loadSchool(ctx, s.repo, s.logger, schoolID)
	if err != nil {
		return nil, model.Stage{}, err
	}
	stage, err := model.ParseStage(school.Stage)
	if err != nil || stage.Phase != phase {
		return nil, model.Stage{}, ErrStageConflict
	}
	return school, stage, nil
}

// transition 执行阶段 CAS 并写操作日志
func (s *stageService) transition(ctx context.Context, p *access.Principal, school string, from, to model.Stage) (model.Stage, error) {
	if err := s.repo.School.Transition(ctx, school, from.String(), to.String()); err != nil {
		return model.Stage{}, s.transitionError(err)
	}
	s.opLog.Write(ctx, p, school, WorkflowStage, fmt.Sprintf("阶段变更：%s → %s", from, to))
	return to, nil
}

func (s *stageService) transitionError(err error) error {
	if errors.Is(err, pkgerrors.ErrOptimisticLock) {
		return ErrStageConflict
	}
	s.logger.Error("阶段流转失败", zap.Error(err))
	return err
}

// ────────────────────── 各阶段确认 ──────────────────────

func (s *stageService) ConfirmRelinquish(ctx context.Context, p *access.Principal, school string) (model.Stage, error) {
	_, stage, err := s.current(ctx, p, school, model.PhaseRelinquishment)
	if err != nil {
		return model.Stage{}, err
	}
	return s.transition(ctx, p, school, stage, stage.In(model.PhaseExchange))
}

func (s *stageService) ConfirmExchange(ctx context.Context, p *access.Principal, school string) (model.Stage, error) {
	_, stage, err := s.current(ctx, p, school, model.PhaseExchange)
	if err != nil {
		return model.Stage{}, err
	}

	// 双代表会场检查先于任何写入
	if !p.IsStaff() {
		if err := s.checkDualSessions(ctx, school, stage.Round); err != nil {
			return model.Stage{}, err
		}
	}

	next, err := s.transition(ctx, p, school, stage, stage.In(model.PhaseReservation))
	if err != nil {
		return model.Stage{}, err
	}

	n, err := s.repo.Exchange.CloseBySchool(ctx, school, model.ExchangeStateGone)
	if err != nil {
		s.logger.Error("关闭待处理交换失败", zap.String("school", school), zap.Error(err))
	} else if n > 0 {
		s.logger.Info("交换阶段结束，关闭待处理交换", zap.String("school", school), zap.Int64("count", n))
	}
	return next, nil
}

func (s *stageService) checkDualSessions(ctx context.Context, school, round string) error {
	seats, err := seatMapOf(ctx, s.repo, school)
	if err != nil {
		s.logger.Error("查询名额失败", zap.Error(err))
		return err
	}
	sessions, err := newCatalog(s.repo.Session).All(ctx)
	if err != nil {
		s.logger.Error("查询会场目录失败", zap.Error(err))
		return err
	}
	for _, sess := range sessions {
		if sess.Dual && seats.Get(round, sess.ID)%2 != 0 {
			return ErrDualSessionOdd
		}
	}
	return nil
}

func (s *stageService) ConfirmReservation(ctx context.Context, p *access.Principal, school string) (model.Stage, error) {
	_, stage, err := s.current(ctx, p, school, model.PhaseReservation)
	if err != nil {
		return model.Stage{}, err
	}

	own, err := s.repo.Reservation.ListBySchool(ctx, school)
	if err != nil {
		s.logger.Error("查询住宿预订失败", zap.Error(err))
		return model.Stage{}, err
	}
	for i := range own {
		if !own[i].Resolved() {
			return model.Stage{}, ErrRoomshareUnresolved
		}
	}
	incoming, err := s.repo.Reservation.ListIncoming(ctx, school)
	if err != nil {
		s.logger.Error("查询拼房申请失败", zap.Error(err))
		return model.Stage{}, err
	}
	for _, r := range incoming {
		if r.RoomshareState == model.RoomsharePending {
			return model.Stage{}, ErrRoomshareUnresolved
		}
	}

	return s.transition(ctx, p, school, stage, stage.In(model.PhasePayment))
}

// StartConfirm 进入代表名单确认，同一事务内为每个名额生成代表占位
func (s *stageService) StartConfirm(ctx context.Context, p *access.Principal, schoolID string) (model.Stage, error) {
	if !p.IsStaff() {
		return model.Stage{}, ErrForbidden
	}
	school, stage, err := s.current(ctx, p, schoolID, model.PhaseComplete)
	if err != nil {
		return model.Stage{}, err
	}
	if school.Type != model.SchoolTypeSchool {
		return model.Stage{}, ErrNotSchoolType
	}
	next := stage.In(model.PhaseConfirm)

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.School.Transition(ctx, schoolID, stage.String(), next.String()); err != nil {
			return err
		}
		rows, err := tx.Seat.ListBySchool(ctx, schoolID)
		if err != nil {
			return err
		}
		reps := make([]model.Representative, 0)
		for _, row := range rows {
			if row.SessionID == model.SessionLeaderNonRep {
				continue
			}
			for i := 0; i < row.Count; i++ {
				reps = append(reps, model.Representative{
					ID:        model.NewID(),
					SchoolID:  schoolID,
					SessionID: row.SessionID,
					Round:     row.Round,
					IsLeader:  row.SessionID == model.SessionLeaderRep,
				})
			}
		}
		return tx.Representative.CreateBatch(ctx, reps)
	})
	if err != nil {
		return model.Stage{}, s.transitionError(err)
	}

	s.opLog.Write(ctx, p, schoolID, WorkflowStage, fmt.Sprintf("阶段变更：%s → %s，已生成代表名单", stage, next))
	return next, nil
}

func (s *stageService) ConfirmAttend(ctx context.Context, p *access.Principal, school string) (model.Stage, error) {
	_, stage, err := s.current(ctx, p, school, model.PhaseConfirm)
	if err != nil {
		return model.Stage{}, err
	}
	return s.transition(ctx, p, school, stage, model.StageFinal)
}

// ────────────────────── 删除学校 ──────────────────────

// Nuke 先置 x.nuking 阻止后续流转，再在事务内级联删除
func (s *stageService) Nuke(ctx context.Context, p *access.Principal, school string) error {
	if !p.HasAccess(access.Admin) {
		return ErrForbidden
	}
	if _, err := loadSchool(ctx, s.repo, s.logger, school); err != nil {
		return err
	}
	if err := s.repo.School.MarkNuking(ctx, school); err != nil {
		return s.transitionError(err)
	}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		reservations, err := tx.Reservation.ListBySchool(ctx, school)
		if err != nil {
			return err
		}
		held := map[string]int{}
		for _, r := range reservations {
			held[r.HotelID]++
		}
		for hotel, n := range held {
			if err := tx.Hotel.Give(ctx, hotel, n); err != nil {
				return err
			}
		}

		if _, err := tx.Exchange.CloseBySchool(ctx, school, model.ExchangeStateGone); err != nil {
			return err
		}
		steps := []func(context.Context, string) error{
			tx.Exchange.DeleteBySchool,
			tx.Seat.DeleteBySchool,
			tx.Quota.DeleteBySchool,
			tx.Reservation.DeleteBySchool,
			tx.Payment.DeleteBySchool,
			tx.Representative.DeleteBySchool,
			tx.User.DeleteBySchool,
			tx.OpLog.DeleteBySchool,
			tx.School.Delete,
		}
		for _, step := range steps {
			if err := step(ctx, school); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("删除学校失败", zap.String("school", school), zap.Error(err))
		return err
	}

	s.logger.Info("学校已删除", zap.String("school", school), zap.String("operator", p.User))
	return nil
}
