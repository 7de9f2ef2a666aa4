package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hwmun/backend/internal/access"
	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/model"
	"hwmun/backend/internal/repository"
	pkgerrors "hwmun/backend/pkg/errors"
)

// ── 名额交换业务错误 ──

var (
	ErrExchangeNotFound    = errors.New("交换申请不存在")
	ErrExchangeSelf        = errors.New("不能与本校交换名额")
	ErrExchangeProcessed   = errors.New("交换申请已处理")
	ErrExchangeUnavailable = errors.New("交换所涉名额已不存在")
	ErrExchangeConflict    = errors.New("名额正在参与其他交换，请稍后重试")
	ErrOverbid             = errors.New("该会场的待处理交换数已达名额上限")
)

// 名额交换只在第一轮进行
var exchangeStage = model.Stage{Round: "1", Phase: model.PhaseExchange}

// ExchangeService 名额交换业务接口
type ExchangeService interface {
	List(ctx context.Context, p *access.Principal, q *dto.ExchangeListQuery) ([]dto.ExchangeResponse, error)
	Propose(ctx context.Context, p *access.Principal, req *dto.CreateExchangeRequest) (*dto.ExchangeResponse, error)
	// Respond 接受 / 拒绝 / 撤回，返回调用方学校的最新名额表
	Respond(ctx context.Context, p *access.Principal, id, action string) (model.SeatMap, error)
}

type exchangeService struct {
	repo   *repository.Repository
	quota  QuotaService
	opLog  OpLogService
	logger *zap.Logger
}

// NewExchangeService 创建 ExchangeService 实例
func NewExchangeService(repo *repository.Repository, quota QuotaService, opLog OpLogService, logger *zap.Logger) ExchangeService {
	return &exchangeService{repo: repo, quota: quota, opLog: opLog, logger: logger}
}

// ────────────────────── 查询 ──────────────────────

func (s *exchangeService) List(ctx context.Context, p *access.Principal, q *dto.ExchangeListQuery) ([]dto.ExchangeResponse, error) {
	filter := repository.ExchangeFilter{From: q.From, To: q.To}
	if q.State != "" {
		filter.State = model.ParseExchangeState(q.State)
	}

	if !p.IsStaff() {
		if !p.HasAccess(access.Leader) || p.School == "" {
			return nil, ErrForbidden
		}
		switch {
		case q.From == "" && q.To == "":
			filter.School = p.School
		case q.From != p.School && q.To != p.School:
			return nil, ErrForbidden
		}
	}

	list, err := s.repo.Exchange.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询交换列表失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.ExchangeResponse, 0, len(list))
	for i := range list {
		result = append(result, toExchangeResponse(&list[i]))
	}
	return result, nil
}

// ────────────────────── 发起 ──────────────────────

func (s *exchangeService) Propose(ctx context.Context, p *access.Principal, req *dto.CreateExchangeRequest) (*dto.ExchangeResponse, error) {
	if !p.HasAccess(access.Leader) || p.School == "" {
		return nil, ErrForbidden
	}
	if req.Target == p.School {
		return nil, ErrExchangeSelf
	}

	// 1. 双方学校均处于 1.exchange
	self, err := loadSchool(ctx, s.repo, s.logger, p.School)
	if err != nil {
		return nil, err
	}
	target, err := loadSchool(ctx, s.repo, s.logger, req.Target)
	if err != nil {
		return nil, err
	}
	if self.Stage != exchangeStage.String() || target.Stage != exchangeStage.String() {
		return nil, ErrStageConflict
	}

	// 2. 会场存在且允许交换
	cat := newCatalog(s.repo.Session)
	for _, id := range []string{req.SelfSession, req.TargetSession} {
		sess, ok, err := cat.Get(ctx, id)
		if err != nil {
			s.logger.Error("查询会场目录失败", zap.Error(err))
			return nil, err
		}
		if !ok || sess.Reserved || !sess.Exchangeable {
			return nil, ErrInvalidSession
		}
	}

	// 3. 双方都持有对应名额
	selfSeats, err := s.repo.Seat.Get(ctx, self.ID, "1", req.SelfSession)
	if err != nil {
		s.logger.Error("查询名额失败", zap.Error(err))
		return nil, err
	}
	targetSeats, err := s.repo.Seat.Get(ctx, target.ID, "1", req.TargetSession)
	if err != nil {
		s.logger.Error("查询名额失败", zap.Error(err))
		return nil, err
	}
	if selfSeats < 1 || targetSeats < 1 {
		return nil, ErrInsufficientSeats
	}

	// 4. 同一会场的待处理报价不超过持有名额
	pending, err := s.repo.Exchange.CountPendingOffers(ctx, self.ID, req.SelfSession)
	if err != nil {
		s.logger.Error("统计待处理交换失败", zap.Error(err))
		return nil, err
	}
	if pending >= int64(selfSeats) {
		return nil, ErrOverbid
	}

	now := time.Now()
	ex := &model.Exchange{
		ID:        model.NewID(),
		From:      model.ExchangeSide{School: self.ID, Name: displayName(self), Session: req.SelfSession},
		To:        model.ExchangeSide{School: target.ID, Name: displayName(target), Session: req.TargetSession},
		Note:      req.Note,
		State:     model.ExchangeStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Exchange.Create(ctx, ex); err != nil {
		s.logger.Error("创建交换申请失败", zap.Error(err))
		return nil, err
	}

	selfName, targetName := cat.Name(ctx, req.SelfSession), cat.Name(ctx, req.TargetSession)
	s.opLog.Write(ctx, p, self.ID, WorkflowExchange,
		fmt.Sprintf("发起名额交换：用「%s」交换「%s」的「%s」（%s）", selfName, ex.To.Name, targetName, ex.ID))
	s.opLog.Write(ctx, p, target.ID, WorkflowExchange,
		fmt.Sprintf("收到名额交换：「%s」希望用「%s」交换本校的「%s」（%s）", ex.From.Name, selfName, targetName, ex.ID))

	resp := toExchangeResponse(ex)
	return &resp, nil
}

// ────────────────────── 处理 ──────────────────────

func (s *exchangeService) Respond(ctx context.Context, p *access.Principal, id, action string) (model.SeatMap, error) {
	ex, err := s.repo.Exchange.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExchangeNotFound
		}
		s.logger.Error("查询交换申请失败", zap.Error(err))
		return nil, err
	}

	caller := ex.To.School
	if action == dto.ExchangeCancel {
		caller = ex.From.School
	}
	if !p.HasAccess(access.Leader) || p.School != caller {
		return nil, ErrForbidden
	}

	switch ex.State {
	case model.ExchangeStatePending:
	case model.ExchangeStateUnavailable:
		return nil, ErrExchangeUnavailable
	default:
		return nil, ErrExchangeProcessed
	}

	switch action {
	case dto.ExchangeAccept:
		err = s.accept(ctx, p, ex)
	case dto.ExchangeRefuse:
		err = s.close(ctx, p, ex, model.ExchangeStateRefused)
	case dto.ExchangeCancel:
		err = s.close(ctx, p, ex, model.ExchangeStateCancelled)
	default:
		return nil, ErrInvalidAction
	}
	if err != nil {
		return nil, err
	}
	return seatMapOf(ctx, s.repo, caller)
}

// close 拒绝或撤回
func (s *exchangeService) close(ctx context.Context, p *access.Principal, ex *model.Exchange, to model.ExchangeState) error {
	if err := s.repo.Exchange.Transition(ctx, ex.ID, model.ExchangeStatePending, to); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return ErrExchangeProcessed
		}
		s.logger.Error("更新交换状态失败", zap.Error(err))
		return err
	}

	verb := "拒绝"
	if to == model.ExchangeStateCancelled {
		verb = "撤回"
	}
	text := fmt.Sprintf("%s名额交换（%s）", verb, ex.ID)
	s.opLog.Write(ctx, p, ex.From.School, WorkflowExchange, text)
	s.opLog.Write(ctx, p, ex.To.School, WorkflowExchange, text)
	return nil
}

// accept 接受交换：
// 复核名额 → 影子账本互换 → 事务内 CAS 交换状态并调整双方名额 → 失效清零名额上的其他交换
func (s *exchangeService) accept(ctx context.Context, p *access.Principal, ex *model.Exchange) error {
	// 1. 复核双方名额
	fromSeats, err := s.repo.Seat.Get(ctx, ex.From.School, "1", ex.From.Session)
	if err != nil {
		s.logger.Error("查询名额失败", zap.Error(err))
		return err
	}
	toSeats, err := s.repo.Seat.Get(ctx, ex.To.School, "1", ex.To.Session)
	if err != nil {
		s.logger.Error("查询名额失败", zap.Error(err))
		return err
	}
	if fromSeats < 1 || toSeats < 1 {
		s.markUnavailable(ctx, ex.ID)
		return ErrExchangeUnavailable
	}

	// 双方须仍处于交换阶段；任一方已离开则该交换作废
	if err := s.checkExchangeStage(ctx, ex); err != nil {
		return err
	}

	// 2. 影子账本互换；令牌缺失不阻塞账本，结束后重新对账
	drifted := false
	pair, err := s.quota.ExchangeQuota(ctx,
		QuotaSide{School: ex.From.School, Session: ex.From.Session},
		QuotaSide{School: ex.To.School, Session: ex.To.Session},
	)
	switch {
	case err == nil:
	case errors.Is(err, ErrQuotaLockContended):
		return ErrExchangeConflict
	default:
		drifted = true
		s.quota.Report(ctx, "exchangeQuota", ex.From.School, err, map[string]interface{}{
			"exchange": ex.ID,
			"to":       ex.To.School,
		})
	}

	// 3. 账本：交换状态与四处名额变动同一事务
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		for _, school := range []string{ex.From.School, ex.To.School} {
			if err := tx.School.HoldStage(ctx, school, exchangeStage.String()); err != nil {
				if errors.Is(err, pkgerrors.ErrOptimisticLock) {
					return ErrStageConflict
				}
				return err
			}
		}
		if err := tx.Exchange.Transition(ctx, ex.ID, model.ExchangeStatePending, model.ExchangeStateAccepted); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return ErrExchangeProcessed
			}
			return err
		}
		moves := []struct {
			school, session string
			delta           int
		}{
			{ex.From.School, ex.From.Session, -1},
			{ex.To.School, ex.To.Session, -1},
			{ex.From.School, ex.To.Session, 1},
			{ex.To.School, ex.From.Session, 1},
		}
		for _, m := range moves {
			if err := tx.Seat.Increment(ctx, m.school, "1", m.session, m.delta); err != nil {
				if errors.Is(err, pkgerrors.ErrOptimisticLock) {
					return ErrExchangeUnavailable
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		if pair != nil {
			if rErr := s.quota.RevertExchange(ctx, pair); rErr != nil {
				s.quota.Report(ctx, "revertExchange", ex.From.School, rErr, map[string]interface{}{"exchange": ex.ID})
			}
		}
		if errors.Is(err, ErrExchangeUnavailable) {
			s.markUnavailable(ctx, ex.ID)
			return err
		}
		if errors.Is(err, ErrStageConflict) {
			s.markGone(ctx, ex.ID)
			return err
		}
		if !errors.Is(err, ErrExchangeProcessed) {
			s.logger.Error("接受交换失败", zap.String("exchange", ex.ID), zap.Error(err))
		}
		return err
	}

	if drifted {
		for _, school := range []string{ex.From.School, ex.To.School} {
			if _, err := s.quota.SyncQuotaToSchool(ctx, school); err != nil {
				s.quota.Report(ctx, "syncQuotaToSchool", school, err, nil)
			}
		}
	}

	// 4. 名额清零后相关的其他待处理交换失效
	s.closeIfEmptied(ctx, ex.From.School, ex.From.Session)
	s.closeIfEmptied(ctx, ex.To.School, ex.To.Session)

	// 5. 操作日志
	cat := newCatalog(s.repo.Session)
	fromName, toName := cat.Name(ctx, ex.From.Session), cat.Name(ctx, ex.To.Session)
	s.opLog.Write(ctx, p, ex.From.School, WorkflowExchange,
		fmt.Sprintf("名额交换被接受：「%s」的「%s」换入本校的「%s」（%s）", ex.To.Name, toName, fromName, ex.ID))
	s.opLog.Write(ctx, p, ex.To.School, WorkflowExchange,
		fmt.Sprintf("接受名额交换：用本校的「%s」换入「%s」的「%s」（%s）", toName, ex.From.Name, fromName, ex.ID))
	return nil
}

// checkExchangeStage 交换双方须均处于 1.exchange
func (s *exchangeService) checkExchangeStage(ctx context.Context, ex *model.Exchange) error {
	for _, id := range []string{ex.From.School, ex.To.School} {
		school, err := loadSchool(ctx, s.repo, s.logger, id)
		if err != nil {
			return err
		}
		if school.Stage != exchangeStage.String() {
			s.markGone(ctx, ex.ID)
			return ErrStageConflict
		}
	}
	return nil
}

func (s *exchangeService) markGone(ctx context.Context, id string) {
	err := s.repo.Exchange.Transition(ctx, id, model.ExchangeStatePending, model.ExchangeStateGone)
	if err != nil && !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		s.logger.Error("关闭交换失败", zap.String("exchange", id), zap.Error(err))
	}
}

func (s *exchangeService) markUnavailable(ctx context.Context, id string) {
	err := s.repo.Exchange.Transition(ctx, id, model.ExchangeStatePending, model.ExchangeStateUnavailable)
	if err != nil && !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		s.logger.Error("标记交换失效失败", zap.String("exchange", id), zap.Error(err))
	}
}

func (s *exchangeService) closeIfEmptied(ctx context.Context, school, session string) {
	left, err := s.repo.Seat.Get(ctx, school, "1", session)
	if err != nil {
		s.logger.Error("查询名额失败", zap.Error(err))
		return
	}
	if left > 0 {
		return
	}
	if _, err := s.repo.Exchange.CloseBySeat(ctx, school, session, model.ExchangeStateUnavailable); err != nil {
		s.logger.Error("关闭失效交换失败", zap.Error(err))
	}
}

// displayName 交换记录中展示的学校名称
func displayName(school *model.School) string {
	if school.Identifier != "" {
		return school.Identifier
	}
	return school.Name
}

func toExchangeResponse(ex *model.Exchange) dto.ExchangeResponse {
	return dto.ExchangeResponse{
		ID:        ex.ID,
		From:      dto.ExchangeSideResponse{School: ex.From.School, Name: ex.From.Name, Session: ex.From.Session},
		To:        dto.ExchangeSideResponse{School: ex.To.School, Name: ex.To.Name, Session: ex.To.Session},
		Note:      ex.Note,
		State:     ex.State,
		CreatedAt: formatTime(ex.CreatedAt),
	}
}
