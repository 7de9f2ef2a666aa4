package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"hwmun/backend/internal/model"
	"hwmun/backend/internal/repository"
	"hwmun/backend/internal/testutil"
	pkgerrors "hwmun/backend/pkg/errors"
)

// flakyQuotaRepo 对指定令牌模拟并发占用
type flakyQuotaRepo struct {
	repository.QuotaRepository
	lockFail   map[string]bool
	retireFail bool
	// retireOK 大于 0 时前 retireOK 次作废成功，其后全部失败
	retireOK int
	retired  int
}

func (r *flakyQuotaRepo) Lock(ctx context.Context, id, school, session string) error {
	if r.lockFail[id] {
		return pkgerrors.ErrOptimisticLock
	}
	return r.QuotaRepository.Lock(ctx, id, school, session)
}

func (r *flakyQuotaRepo) Retire(ctx context.Context, id, reason string) error {
	if r.retireFail {
		return pkgerrors.ErrOptimisticLock
	}
	if r.retireOK > 0 {
		if r.retired >= r.retireOK {
			return pkgerrors.ErrOptimisticLock
		}
		r.retired++
	}
	return r.QuotaRepository.Retire(ctx, id, reason)
}

func activeToken(t *testing.T, env *testEnv, school, session string) model.Quota {
	t.Helper()
	tokens, err := env.repo.Quota.ListActive(context.Background(), school, session)
	if err != nil || len(tokens) == 0 {
		t.Fatalf("%s/%s 应有有效令牌: %v", school, session, err)
	}
	return tokens[0]
}

func TestPickLeastImportant_StableAscending(t *testing.T) {
	tokens := []model.Quota{
		{ID: "a", Paid: true},
		{ID: "b"},
		{ID: "c", Delegate: true},
		{ID: "d"},
	}
	got := pickLeastImportant(tokens, 3)
	want := []string{"b", "d", "c"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("第 %d 个期望 %s，实际 %s", i, id, got[i].ID)
		}
	}
	if tokens[0].ID != "a" {
		t.Error("不应修改输入切片顺序")
	}
	if len(pickLeastImportant(tokens, 10)) != 4 {
		t.Error("n 超过长度时应返回全部")
	}
}

func TestQuotaService_SyncQuotaToSchool_RepairsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutil.SeedSchool(t, env.db, "x", "1.relinquishment", map[string]int{"GA": 3, "SC": 1, model.SessionLeaderRep: 1})
	testutil.SeedSeats(t, env.db, "x", "2", map[string]int{"SC": 2})

	// 人为制造漂移
	testutil.SeedTokens(t, env.db, "x", "GA", 1)
	testutil.SeedTokens(t, env.db, "x", "SC", 5)
	testutil.SeedTokens(t, env.db, "x", "HRC", 2)

	summary, err := env.svc.Quota.SyncQuotaToSchool(ctx, "x")
	if err != nil {
		t.Fatalf("对账失败: %v", err)
	}

	want := map[string]int{"GA": 3, "SC": 3, "HRC": 0, model.SessionLeaderRep: 1, model.SessionLeaderNonRep: 0}
	for session, n := range want {
		if got := testutil.ActiveTokens(t, env.db, "x", session); got != n {
			t.Errorf("%s 有效令牌期望 %d，实际 %d", session, n, got)
		}
		if summary[session] != n {
			t.Errorf("%s 汇总期望 %d，实际 %d", session, n, summary[session])
		}
	}

	school, _ := env.repo.School.GetByID(ctx, "x")
	if school.NgQuota.Data()["GA"] != 3 {
		t.Errorf("学校 ng-quota 未刷新: %v", school.NgQuota.Data())
	}
}

func TestQuotaService_SyncQuotaToSchool_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutil.SeedSchool(t, env.db, "x", "1.relinquishment", map[string]int{"GA": 2})

	for i := 0; i < 2; i++ {
		if _, err := env.svc.Quota.SyncQuotaToSchool(ctx, "x"); err != nil {
			t.Fatalf("第 %d 次对账失败: %v", i+1, err)
		}
	}
	if got := testutil.ActiveTokens(t, env.db, "x", "GA"); got != 2 {
		t.Errorf("重复对账后 GA 令牌应为 2，实际 %d", got)
	}
}

func TestQuotaService_RelinquishQuota_RetiresLeastImportant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutil.SeedSchool(t, env.db, "x", "1.relinquishment", map[string]int{"GA": 2})
	paid := model.Quota{ID: "paid-token", SchoolID: "x", SessionID: "GA", Active: true, Paid: true}
	if err := env.db.Create(&paid).Error; err != nil {
		t.Fatalf("写入令牌失败: %v", err)
	}
	testutil.SeedTokens(t, env.db, "x", "GA", 1)

	if err := env.svc.Quota.RelinquishQuota(ctx, "x", "GA", 1); err != nil {
		t.Fatalf("作废令牌失败: %v", err)
	}
	left := activeToken(t, env, "x", "GA")
	if left.ID != "paid-token" {
		t.Errorf("应保留已缴费令牌，实际保留 %s", left.ID)
	}

	err := env.svc.Quota.RelinquishQuota(ctx, "x", "GA", 2)
	if !errors.Is(err, ErrQuotaTokensMissing) {
		t.Errorf("令牌不足应返回 ErrQuotaTokensMissing，实际: %v", err)
	}
}

func TestQuotaService_SetQuota_ShortfallReported(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutil.SeedSchool(t, env.db, "x", "1.relinquishment", nil)
	testutil.SeedTokens(t, env.db, "x", "GA", 3)

	repo := repository.NewRepository(env.db)
	repo.Quota = &flakyQuotaRepo{QuotaRepository: repo.Quota, retireFail: true}
	svc := NewQuotaService(repo, zap.NewNop())

	err := svc.SetQuota(ctx, "x", map[string]int{"GA": 1, "SC": 2})
	if !errors.Is(err, ErrQuotaTokensMissing) {
		t.Fatalf("期望 ErrQuotaTokensMissing，实际: %v", err)
	}
	// GA 不足不影响 SC 的补齐
	if got := testutil.ActiveTokens(t, env.db, "x", "SC"); got != 2 {
		t.Errorf("SC 令牌应补齐为 2，实际 %d", got)
	}

	errs, _ := svc.Errors(ctx, "x")
	if len(errs) != 1 || errs[0].Op != "setQuota" {
		t.Fatalf("应写入一条诊断记录，实际 %+v", errs)
	}
}

func TestQuotaService_SetQuota_ShortfallAbortsSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutil.SeedSchool(t, env.db, "x", "1.relinquishment", nil)
	testutil.SeedTokens(t, env.db, "x", "GA", 3)

	// 需作废 2 个，第 2 个被并发占用
	repo := repository.NewRepository(env.db)
	repo.Quota = &flakyQuotaRepo{QuotaRepository: repo.Quota, retireOK: 1}
	svc := NewQuotaService(repo, zap.NewNop())

	err := svc.SetQuota(ctx, "x", map[string]int{"GA": 1})
	if !errors.Is(err, ErrQuotaTokensMissing) {
		t.Fatalf("期望 ErrQuotaTokensMissing，实际: %v", err)
	}
	if got := testutil.ActiveTokens(t, env.db, "x", "GA"); got != 3 {
		t.Errorf("调整中止后 GA 令牌应保持 3 个，实际 %d", got)
	}
	errs, _ := svc.Errors(ctx, "x")
	if len(errs) != 1 {
		t.Errorf("应写入一条诊断记录，实际 %d", len(errs))
	}
}

// ── 交换 saga ──

func TestQuotaService_ExchangeQuota_SwapsOwners(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutil.SeedTokens(t, env.db, "x", "GA", 1)
	testutil.SeedTokens(t, env.db, "y", "SC", 1)

	pair, err := env.svc.Quota.ExchangeQuota(ctx, QuotaSide{"x", "GA"}, QuotaSide{"y", "SC"})
	if err != nil {
		t.Fatalf("交换令牌失败: %v", err)
	}
	if pair.Left.SchoolID != "x" || pair.Right.SchoolID != "y" {
		t.Errorf("应返回原始归属: %+v", pair)
	}

	if testutil.ActiveTokens(t, env.db, "x", "SC") != 1 || testutil.ActiveTokens(t, env.db, "y", "GA") != 1 {
		t.Error("交换后 x 应持有 SC，y 应持有 GA")
	}
	if testutil.ActiveTokens(t, env.db, "x", "GA") != 0 || testutil.ActiveTokens(t, env.db, "y", "SC") != 0 {
		t.Error("交换后原令牌不应留在原学校")
	}
	if tok := activeToken(t, env, "x", "SC"); tok.State != model.QuotaStateExchanged {
		t.Errorf("令牌状态期望 exchanged，实际 %s", tok.State)
	}
}

func TestQuotaService_RevertExchange_RestoresOwners(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutil.SeedTokens(t, env.db, "x", "GA", 1)
	testutil.SeedTokens(t, env.db, "y", "SC", 1)

	pair, err := env.svc.Quota.ExchangeQuota(ctx, QuotaSide{"x", "GA"}, QuotaSide{"y", "SC"})
	if err != nil {
		t.Fatalf("交换令牌失败: %v", err)
	}
	if err := env.svc.Quota.RevertExchange(ctx, pair); err != nil {
		t.Fatalf("补偿失败: %v", err)
	}

	tok := activeToken(t, env, "x", "GA")
	if tok.State != model.QuotaStateReverted {
		t.Errorf("补偿后状态期望 %s，实际 %s", model.QuotaStateReverted, tok.State)
	}
	if testutil.ActiveTokens(t, env.db, "y", "SC") != 1 || testutil.ActiveTokens(t, env.db, "x", "SC") != 0 {
		t.Error("补偿后 y 应重新持有 SC")
	}
}

func TestQuotaService_ExchangeQuota_PartialLockRolledBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutil.SeedTokens(t, env.db, "x", "GA", 1)
	testutil.SeedTokens(t, env.db, "y", "SC", 1)
	right := activeToken(t, env, "y", "SC")

	repo := repository.NewRepository(env.db)
	repo.Quota = &flakyQuotaRepo{QuotaRepository: repo.Quota, lockFail: map[string]bool{right.ID: true}}
	svc := NewQuotaService(repo, zap.NewNop())

	_, err := svc.ExchangeQuota(ctx, QuotaSide{"x", "GA"}, QuotaSide{"y", "SC"})
	if !errors.Is(err, ErrQuotaLockContended) {
		t.Fatalf("期望 ErrQuotaLockContended，实际: %v", err)
	}

	left := activeToken(t, env, "x", "GA")
	if left.State != model.QuotaStateReverted {
		t.Errorf("已锁定的一侧应回滚为 %s，实际 %s", model.QuotaStateReverted, left.State)
	}
	if testutil.ActiveTokens(t, env.db, "y", "GA") != 0 {
		t.Error("回滚后 y 不应持有 GA 令牌")
	}
}

func TestQuotaService_ExchangeQuota_MissingTokens(t *testing.T) {
	env := newTestEnv(t)
	testutil.SeedTokens(t, env.db, "x", "GA", 1)

	_, err := env.svc.Quota.ExchangeQuota(context.Background(), QuotaSide{"x", "GA"}, QuotaSide{"y", "SC"})
	if !errors.Is(err, ErrQuotaTokensMissing) {
		t.Fatalf("期望 ErrQuotaTokensMissing，实际: %v", err)
	}
	if testutil.ActiveTokens(t, env.db, "x", "GA") != 1 {
		t.Error("失败时不应改动令牌")
	}
}

func TestQuotaService_SetLeaderAttend_SingleToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutil.SeedSchool(t, env.db, "x", "1.relinquishment", nil)

	for _, attend := range []bool{true, false, true} {
		if err := env.svc.Quota.SetLeaderAttend(ctx, "x", attend); err != nil {
			t.Fatalf("设置领队令牌失败: %v", err)
		}
		r := testutil.ActiveTokens(t, env.db, "x", model.SessionLeaderRep)
		nr := testutil.ActiveTokens(t, env.db, "x", model.SessionLeaderNonRep)
		if r+nr != 1 {
			t.Fatalf("领队令牌应恰好一个，实际 r=%d nr=%d", r, nr)
		}
		if attend && r != 1 {
			t.Errorf("attend=true 时令牌应在 %s", model.SessionLeaderRep)
		}
	}
}
