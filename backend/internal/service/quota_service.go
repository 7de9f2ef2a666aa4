package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"hwmun/backend/internal/model"
	"hwmun/backend/internal/repository"
	pkgerrors "hwmun/backend/pkg/errors"
)

// ── 名额影子账本业务错误 ──
// 影子账本仅作参考，名额账本才是权威数据；调用方一般记录诊断后继续

var (
	ErrQuotaTokensMissing = errors.New("名额令牌不足")
	ErrQuotaLockContended = errors.New("名额令牌已被并发操作占用")
)

// QuotaSide 交换中的一方
type QuotaSide struct {
	School  string
	Session string
}

// TokenPair 交换前双方令牌的原始归属，用于补偿
type TokenPair struct {
	Left  model.Quota
	Right model.Quota
}

// QuotaService 名额影子账本业务接口
type QuotaService interface {
	// SetQuota 按目标数量增删令牌，以下划线开头的会场不参与
	SetQuota(ctx context.Context, school string, target map[string]int) error
	// SyncQuotaToSchool 令牌对齐名额账本各轮合计，并刷新学校上的汇总
	SyncQuotaToSchool(ctx context.Context, school string) (map[string]int, error)
	// RelinquishQuota 作废 n 个最不重要的令牌
	RelinquishQuota(ctx context.Context, school, session string, n int) error
	// ExchangeQuota 锁定并交换双方各一个令牌，返回原始归属
	ExchangeQuota(ctx context.Context, left, right QuotaSide) (*TokenPair, error)
	// RevertExchange ExchangeQuota 成功后的补偿操作
	RevertExchange(ctx context.Context, pair *TokenPair) error
	SetLeaderAttend(ctx context.Context, school string, attend bool) error
	MarkPaid(ctx context.Context, school string) error
	// Report 写入诊断记录，不返回错误
	Report(ctx context.Context, op, school string, err error, args interface{})
	Errors(ctx context.Context, school string) ([]model.QuotaError, error)
}

type quotaService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewQuotaService 创建 QuotaService 实例
func NewQuotaService(repo *repository.Repository, logger *zap.Logger) QuotaService {
	return &quotaService{repo: repo, logger: logger}
}

// pickLeastImportant 按重要度升序取前 n 个，同分保持原有顺序
func pickLeastImportant(tokens []model.Quota, n int) []model.Quota {
	sorted := make([]model.Quota, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Importance() < sorted[j].Importance()
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// ────────────────────── SetQuota ──────────────────────

func (s *quotaService) SetQuota(ctx context.Context, school string, target map[string]int) error {
	sessions, err := newCatalog(s.repo.Session).All(ctx)
	if err != nil {
		return fmt.Errorf("读取会场目录失败: %w", err)
	}
	tokens, err := s.repo.Quota.ListActive(ctx, school, "")
	if err != nil {
		return fmt.Errorf("读取令牌失败: %w", err)
	}
	bySession := map[string][]model.Quota{}
	for _, t := range tokens {
		bySession[t.SessionID] = append(bySession[t.SessionID], t)
	}

	var shortfall error
	for _, session := range sessions {
		if model.IsInternal(session.ID) {
			continue
		}
		want, ok := target[session.ID]
		if !ok {
			continue
		}
		current := bySession[session.ID]
		delta := want - len(current)

		switch {
		case delta > 0:
			fresh := make([]model.Quota, 0, delta)
			for i := 0; i < delta; i++ {
				fresh = append(fresh, model.Quota{
					ID:        model.NewID(),
					SchoolID:  school,
					SessionID: session.ID,
					Active:    true,
				})
			}
			if err := s.repo.Quota.Create(ctx, fresh); err != nil {
				return fmt.Errorf("写入令牌失败: %w", err)
			}
		case delta < 0:
			if err := s.retireExactly(ctx, school, session.ID, current, -delta); err != nil {
				if !errors.Is(err, ErrQuotaTokensMissing) {
					return err
				}
				shortfall = err
				s.Report(ctx, "setQuota", school, err, map[string]interface{}{
					"session": session.ID,
					"target":  want,
					"current": len(current),
				})
			}
		}
	}

	if _, err := s.refreshSummary(ctx, school); err != nil {
		return err
	}
	return shortfall
}

// retireExactly 作废 n 个令牌；不足 n 个时放弃本会场的调整，已作废的重新激活
func (s *quotaService) retireExactly(ctx context.Context, school, session string, current []model.Quota, n int) error {
	picked := pickLeastImportant(current, n)
	if len(picked) < n {
		return ErrQuotaTokensMissing
	}

	retired := make([]string, 0, n)
	failure := ErrQuotaTokensMissing
	for _, t := range picked {
		err := s.repo.Quota.Retire(ctx, t.ID, model.QuotaReasonAdjusted)
		if err == nil {
			retired = append(retired, t.ID)
			continue
		}
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			failure = fmt.Errorf("作废令牌失败: %w", err)
		}
		break
	}
	if len(retired) == n {
		return nil
	}

	for _, id := range retired {
		if err := s.repo.Quota.Reactivate(ctx, id); err != nil {
			s.logger.Error("恢复令牌失败", zap.String("school", school), zap.String("session", session),
				zap.String("quota", id), zap.Error(err))
		}
	}
	return failure
}

// ────────────────────── SyncQuotaToSchool ──────────────────────

func (s *quotaService) SyncQuotaToSchool(ctx context.Context, school string) (map[string]int, error) {
	seats, err := seatMapOf(ctx, s.repo, school)
	if err != nil {
		return nil, fmt.Errorf("读取名额失败: %w", err)
	}

	sessions, err := newCatalog(s.repo.Session).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取会场目录失败: %w", err)
	}
	total := seats.Total()
	target := map[string]int{}
	for _, session := range sessions {
		if !model.IsInternal(session.ID) {
			target[session.ID] = total[session.ID]
		}
	}

	syncErr := s.SetQuota(ctx, school, target)
	if err := s.syncLeaderToken(ctx, school, seats); err != nil && syncErr == nil {
		syncErr = err
	}

	summary, err := s.refreshSummary(ctx, school)
	if err != nil {
		return nil, err
	}
	return summary, syncErr
}

// syncLeaderToken 领队出席令牌对齐第一轮的领队会场
func (s *quotaService) syncLeaderToken(ctx context.Context, school string, seats model.SeatMap) error {
	want := ""
	switch {
	case seats.Get("1", model.SessionLeaderRep) > 0:
		want = model.SessionLeaderRep
	case seats.Get("1", model.SessionLeaderNonRep) > 0:
		want = model.SessionLeaderNonRep
	}

	var leaderTokens []model.Quota
	tokens, err := s.repo.Quota.ListActive(ctx, school, "")
	if err != nil {
		return err
	}
	for _, t := range tokens {
		if model.IsInternal(t.SessionID) {
			leaderTokens = append(leaderTokens, t)
		}
	}

	keep := 0
	if want != "" {
		keep = 1
	}
	for i, t := range leaderTokens {
		if i < keep {
			continue
		}
		if err := s.repo.Quota.Retire(ctx, t.ID, model.QuotaReasonAdjusted); err != nil && !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return err
		}
	}
	if want == "" {
		return nil
	}
	return s.placeLeaderToken(ctx, school, want)
}

// refreshSummary 按会场统计有效令牌并写回 schools.ng_quota
func (s *quotaService) refreshSummary(ctx context.Context, school string) (map[string]int, error) {
	counts, err := s.repo.Quota.CountActive(ctx, school)
	if err != nil {
		return nil, fmt.Errorf("统计令牌失败: %w", err)
	}
	sessions, err := newCatalog(s.repo.Session).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取会场目录失败: %w", err)
	}
	summary := make(map[string]int, len(sessions))
	for _, session := range sessions {
		summary[session.ID] = counts[session.ID]
	}
	if err := s.repo.School.UpdateNgQuota(ctx, school, summary); err != nil {
		return nil, fmt.Errorf("写入令牌汇总失败: %w", err)
	}
	return summary, nil
}

// ────────────────────── RelinquishQuota ──────────────────────

func (s *quotaService) RelinquishQuota(ctx context.Context, school, session string, n int) error {
	tokens, err := s.repo.Quota.ListActive(ctx, school, session)
	if err != nil {
		return fmt.Errorf("读取令牌失败: %w", err)
	}

	retired := 0
	for _, t := range pickLeastImportant(tokens, n) {
		err := s.repo.Quota.Retire(ctx, t.ID, model.QuotaReasonRelinquished)
		if err == nil {
			retired++
			continue
		}
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return fmt.Errorf("作废令牌失败: %w", err)
		}
	}

	if _, err := s.refreshSummary(ctx, school); err != nil {
		return err
	}
	if retired < n {
		return ErrQuotaTokensMissing
	}
	return nil
}

// ────────────────────── ExchangeQuota ──────────────────────

func (s *quotaService) ExchangeQuota(ctx context.Context, left, right QuotaSide) (*TokenPair, error) {
	lefts, err := s.repo.Quota.ListActive(ctx, left.School, left.Session)
	if err != nil {
		return nil, fmt.Errorf("读取令牌失败: %w", err)
	}
	rights, err := s.repo.Quota.ListActive(ctx, right.School, right.Session)
	if err != nil {
		return nil, fmt.Errorf("读取令牌失败: %w", err)
	}
	if len(lefts) == 0 || len(rights) == 0 {
		return nil, ErrQuotaTokensMissing
	}
	l := pickLeastImportant(lefts, 1)[0]
	r := pickLeastImportant(rights, 1)[0]

	// 锁定并转移：令牌保留会场、更换学校；各自以 active=true 为条件
	errL := s.repo.Quota.Lock(ctx, l.ID, r.SchoolID, l.SessionID)
	errR := s.repo.Quota.Lock(ctx, r.ID, l.SchoolID, r.SessionID)

	if errL != nil || errR != nil {
		if errL == nil {
			if err := s.repo.Quota.Restore(ctx, l.ID, l.SchoolID, l.SessionID, model.QuotaStateReverted); err != nil {
				s.logger.Error("回滚令牌失败", zap.String("quota", l.ID), zap.Error(err))
			}
		}
		if errR == nil {
			if err := s.repo.Quota.Restore(ctx, r.ID, r.SchoolID, r.SessionID, model.QuotaStateReverted); err != nil {
				s.logger.Error("回滚令牌失败", zap.String("quota", r.ID), zap.Error(err))
			}
		}
		for _, e := range []error{errL, errR} {
			if e != nil && !errors.Is(e, pkgerrors.ErrOptimisticLock) {
				return nil, fmt.Errorf("锁定令牌失败: %w", e)
			}
		}
		return nil, ErrQuotaLockContended
	}

	if err := s.repo.Quota.Unlock(ctx, l.ID); err != nil {
		return nil, fmt.Errorf("解锁令牌失败: %w", err)
	}
	if err := s.repo.Quota.Unlock(ctx, r.ID); err != nil {
		return nil, fmt.Errorf("解锁令牌失败: %w", err)
	}

	s.refreshBoth(ctx, left.School, right.School)
	return &TokenPair{Left: l, Right: r}, nil
}

func (s *quotaService) RevertExchange(ctx context.Context, pair *TokenPair) error {
	if pair == nil {
		return nil
	}
	for _, t := range []model.Quota{pair.Left, pair.Right} {
		if err := s.repo.Quota.Restore(ctx, t.ID, t.SchoolID, t.SessionID, model.QuotaStateReverted); err != nil {
			return fmt.Errorf("恢复令牌失败: %w", err)
		}
	}
	s.refreshBoth(ctx, pair.Left.SchoolID, pair.Right.SchoolID)
	return nil
}

func (s *quotaService) refreshBoth(ctx context.Context, a, b string) {
	for _, school := range []string{a, b} {
		if _, err := s.refreshSummary(ctx, school); err != nil {
			s.Report(ctx, "refreshSummary", school, err, nil)
		}
	}
}

// ────────────────────── SetLeaderAttend ──────────────────────

func (s *quotaService) SetLeaderAttend(ctx context.Context, school string, attend bool) error {
	session := model.SessionLeaderNonRep
	if attend {
		session = model.SessionLeaderRep
	}
	if err := s.placeLeaderToken(ctx, school, session); err != nil {
		return err
	}
	_, err := s.refreshSummary(ctx, school)
	return err
}

// placeLeaderToken 将唯一的领队出席令牌放到指定会场，不存在则创建
func (s *quotaService) placeLeaderToken(ctx context.Context, school, session string) error {
	err := s.repo.Quota.MoveLeaderToken(ctx, school, session)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		return fmt.Errorf("移动领队令牌失败: %w", err)
	}
	return s.repo.Quota.Create(ctx, []model.Quota{{
		ID:        model.NewID(),
		SchoolID:  school,
		SessionID: session,
		Active:    true,
		Internal:  true,
		Reason:    model.QuotaReasonLeaderAttendance,
	}})
}

func (s *quotaService) MarkPaid(ctx context.Context, school string) error {
	n, err := s.repo.Quota.MarkPaid(ctx, school)
	if err != nil {
		return fmt.Errorf("标记令牌缴费失败: %w", err)
	}
	s.logger.Debug("令牌已标记缴费", zap.String("school", school), zap.Int64("count", n))
	return nil
}

// ────────────────────── 诊断 ──────────────────────

func (s *quotaService) Report(ctx context.Context, op, school string, err error, args interface{}) {
	s.logger.Warn("名额影子账本不一致",
		zap.String("op", op),
		zap.String("school", school),
		zap.Error(err),
		zap.Any("args", args),
	)

	record := &model.QuotaError{
		ID:        model.NewID(),
		Op:        op,
		SchoolID:  school,
		Message:   err.Error(),
		CreatedAt: time.Now(),
	}
	if args != nil {
		if raw, mErr := json.Marshal(args); mErr == nil {
			record.Args = datatypes.JSON(raw)
		}
	}
	if cErr := s.repo.Quota.CreateError(ctx, record); cErr != nil {
		s.logger.Error("写入影子账本诊断记录失败", zap.Error(cErr))
	}
}

func (s *quotaService) Errors(ctx context.Context, school string) ([]model.QuotaError, error) {
	list, err := s.repo.Quota.ListErrors(ctx, school)
	if err != nil {
		s.logger.Error("查询影子账本诊断记录失败", zap.Error(err))
		return nil, err
	}
	return list, nil
}
