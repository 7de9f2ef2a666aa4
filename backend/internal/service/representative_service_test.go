package service

import (
	"context"
	"errors"
	"testing"

	"hwmun/backend/internal/access"
	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/model"
	"hwmun/backend/internal/testutil"
)

func TestRepresentativeService_List_Scoped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutil.SeedSchool(t, env.db, "x", "1.complete", map[string]int{"GA": 1, model.SessionLeaderRep: 1})
	testutil.SeedSchool(t, env.db, "y", "1.complete", map[string]int{"SC": 1})

	if _, err := env.svc.Stage.StartConfirm(ctx, staff(), "x"); err != nil {
		t.Fatalf("开始名单确认失败: %v", err)
	}

	reps, err := env.svc.Representative.List(ctx, leaderOf("x"), "x")
	if err != nil {
		t.Fatalf("领队查询本校名单失败: %v", err)
	}
	if len(reps) != 2 {
		t.Fatalf("期望 2 个代表，实际 %d", len(reps))
	}

	if _, err := env.svc.Representative.List(ctx, finance(), "x"); err != nil {
		t.Errorf("财务应可查看代表名单，实际: %v", err)
	}

	if _, err := env.svc.Representative.List(ctx, leaderOf("y"), "x"); !errors.Is(err, ErrForbidden) {
		t.Errorf("他校领队应返回 ErrForbidden，实际: %v", err)
	}

	reps, err = env.svc.Representative.List(ctx, staff(), "y")
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(reps) != 0 {
		t.Errorf("未进入名单确认的学校应无代表，实际 %d", len(reps))
	}
}

func delegateTokens(t *testing.T, env *testEnv, school, session string) int64 {
	t.Helper()
	var n int64
	if err := env.db.Model(&model.Quota{}).
		Where("school_id = ? AND session_id = ? AND active = ? AND delegate = ?", school, session, true, true).
		Count(&n).Error; err != nil {
		t.Fatalf("统计代表标记失败: %v", err)
	}
	return n
}

func firstRepIn(t *testing.T, reps []dto.RepresentativeResponse, session string) dto.RepresentativeResponse {
	t.Helper()
	for _, r := range reps {
		if r.Session == session {
			return r
		}
	}
	t.Fatalf("名单中没有 %s 会场的代表", session)
	return dto.RepresentativeResponse{}
}

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }

func TestRepresentativeService_Update_ScopeAndDelegate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutil.SeedSchool(t, env.db, "x", "1.complete", map[string]int{"GA": 2, model.SessionLeaderRep: 1})
	testutil.SeedSchool(t, env.db, "y", "1.complete", map[string]int{"SC": 1})
	testutil.SeedTokens(t, env.db, "x", "GA", 2)

	if _, err := env.svc.Stage.StartConfirm(ctx, staff(), "x"); err != nil {
		t.Fatalf("开始名单确认失败: %v", err)
	}
	reps, _ := env.svc.Representative.List(ctx, staff(), "x")
	rep := firstRepIn(t, reps, "GA")

	// 领队填写姓名：标记一个令牌；改会场被忽略
	got, err := env.svc.Representative.Update(ctx, leaderOf("x"), "x", rep.ID,
		&dto.UpdateRepresentativeRequest{Name: strp("张三"), Session: strp("SC")})
	if err != nil {
		t.Fatalf("领队修改代表失败: %v", err)
	}
	if got.Name != "张三" || got.Session != "GA" {
		t.Errorf("期望姓名已更新且会场不变，实际 %+v", got)
	}
	if n := delegateTokens(t, env, "x", "GA"); n != 1 {
		t.Errorf("期望 GA 有 1 个代表标记，实际 %d", n)
	}

	// 财务不能修改退会标记
	got, err = env.svc.Representative.Update(ctx, finance(), "x", rep.ID,
		&dto.UpdateRepresentativeRequest{Withdraw: boolp(true)})
	if err != nil {
		t.Fatalf("财务修改代表失败: %v", err)
	}
	if got.Withdraw {
		t.Error("财务无权修改退会标记")
	}

	// 领队标记退会：释放代表标记
	got, err = env.svc.Representative.Update(ctx, leaderOf("x"), "x", rep.ID,
		&dto.UpdateRepresentativeRequest{Withdraw: boolp(true)})
	if err != nil {
		t.Fatalf("领队标记退会失败: %v", err)
	}
	if !got.Withdraw {
		t.Error("领队应能修改退会标记")
	}
	if n := delegateTokens(t, env, "x", "GA"); n != 0 {
		t.Errorf("退会后期望 GA 无代表标记，实际 %d", n)
	}

	// 会务可改会场；SC 无令牌可标记，记录诊断但不失败
	got, err = env.svc.Representative.Update(ctx, staff(), "x", rep.ID,
		&dto.UpdateRepresentativeRequest{Withdraw: boolp(false), Session: strp("SC")})
	if err != nil {
		t.Fatalf("会务修改代表失败: %v", err)
	}
	if got.Session != "SC" || got.Withdraw {
		t.Errorf("期望会场 SC 且未退会，实际 %+v", got)
	}
	errs, _ := env.svc.Quota.Errors(ctx, "x")
	if len(errs) != 1 || errs[0].Op != "flagDelegate" {
		t.Errorf("期望 1 条 flagDelegate 诊断记录，实际 %+v", errs)
	}

	if _, err := env.svc.Representative.Update(ctx, staff(), "x", rep.ID,
		&dto.UpdateRepresentativeRequest{Session: strp(model.SessionLeaderNonRep)}); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("改到保留会场应返回 ErrInvalidSession，实际: %v", err)
	}
	if _, err := env.svc.Representative.Update(ctx, leaderOf("y"), "x", rep.ID,
		&dto.UpdateRepresentativeRequest{Name: strp("李四")}); !errors.Is(err, ErrForbidden) {
		t.Errorf("他校领队应返回 ErrForbidden，实际: %v", err)
	}
	if _, err := env.svc.Representative.Update(ctx, staff(), "y", rep.ID,
		&dto.UpdateRepresentativeRequest{Name: strp("李四")}); !errors.Is(err, ErrRepresentativeNotFound) {
		t.Errorf("学校与代表不匹配应返回 ErrRepresentativeNotFound，实际: %v", err)
	}
}

func TestRepresentativeService_UpdateNote_DaisOwnsSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutil.SeedSchool(t, env.db, "x", "1.complete", map[string]int{"GA": 1, model.SessionLeaderRep: 1})
	if _, err := env.svc.Stage.StartConfirm(ctx, staff(), "x"); err != nil {
		t.Fatalf("开始名单确认失败: %v", err)
	}
	reps, _ := env.svc.Representative.List(ctx, staff(), "x")
	rep := firstRepIn(t, reps, "GA")

	gaDais := &access.Principal{User: "dais-ga", Session: "GA", Access: []string{access.Dais}}
	scDais := &access.Principal{User: "dais-sc", Session: "SC", Access: []string{access.Dais}}

	got, err := env.svc.Representative.UpdateNote(ctx, gaDais, rep.ID, &dto.RepresentativeNoteRequest{Note: strp("表现优秀")})
	if err != nil {
		t.Fatalf("本会场主席团修改备注失败: %v", err)
	}
	if got.Note != "表现优秀" {
		t.Errorf("期望备注已更新，实际 %q", got.Note)
	}

	if _, err := env.svc.Representative.UpdateNote(ctx, scDais, rep.ID, &dto.RepresentativeNoteRequest{Note: strp("x")}); !errors.Is(err, ErrRepresentativeNotFound) {
		t.Errorf("他会场主席团应返回 ErrRepresentativeNotFound，实际: %v", err)
	}
	if _, err := env.svc.Representative.UpdateNote(ctx, leaderOf("x"), rep.ID, &dto.RepresentativeNoteRequest{Note: strp("x")}); !errors.Is(err, ErrForbidden) {
		t.Errorf("领队应返回 ErrForbidden，实际: %v", err)
	}
	if _, err := env.svc.Representative.UpdateNote(ctx, admin(), rep.ID, &dto.RepresentativeNoteRequest{Note: strp("管理员备注")}); err != nil {
		t.Errorf("管理员应可修改任意代表备注，实际: %v", err)
	}

	if _, err := env.svc.Representative.ListAll(ctx, scDais, "GA"); !errors.Is(err, ErrForbidden) {
		t.Errorf("主席团查看他会场名单应返回 ErrForbidden，实际: %v", err)
	}
	list, err := env.svc.Representative.ListAll(ctx, gaDais, "GA")
	if err != nil || len(list) != 1 {
		t.Errorf("本会场主席团期望 1 个代表，实际 %d, %v", len(list), err)
	}
}
