package service

import (
	"context"
	"errors"
	"testing"

	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/model"
	"hwmun/backend/internal/testutil"
)

func registerRequest() *dto.RegisterSchoolRequest {
	return &dto.RegisterSchoolRequest{
		Name:       "第一中学",
		Identifier: "一中",
		Type:       string(model.SchoolTypeSchool),
		Leader:     dto.LeaderRequest{Name: "王老师", Email: "wang@school.cn"},
		Seat:       map[string]int{"GA": 2, "SC": 1, model.SessionLeaderNonRep: 1},
		Password:   "password-123",
	}
}

func TestSchoolService_Register_CreatesLedgerAndTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.svc.School.Register(ctx, admin(), registerRequest())
	if err != nil {
		t.Fatalf("录入学校失败: %v", err)
	}
	if resp.Stage != model.StageInitial.String() {
		t.Errorf("新学校应处于 %s，实际 %s", model.StageInitial, resp.Stage)
	}
	if resp.Seat.Get("1", "GA") != 2 || resp.Seat.Get("1", "SC") != 1 {
		t.Errorf("名额表不符: %v", resp.Seat)
	}
	if resp.NgQuota["GA"] != 2 || resp.NgQuota["SC"] != 1 {
		t.Errorf("令牌汇总不符: %v", resp.NgQuota)
	}
	if testutil.ActiveTokens(t, env.db, resp.ID, "GA") != 2 {
		t.Error("应为 GA 生成 2 个令牌")
	}

	// 领队账号可登录
	tok, err := env.svc.Auth.Login(ctx, &dto.LoginRequest{User: "wang@school.cn", Password: "password-123"})
	if err != nil {
		t.Fatalf("领队登录失败: %v", err)
	}
	if tok.User.School != resp.ID {
		t.Errorf("领队账号应绑定学校 %s，实际 %s", resp.ID, tok.User.School)
	}

	if _, err := env.svc.School.Register(ctx, admin(), registerRequest()); !errors.Is(err, ErrUserExists) {
		t.Errorf("领队邮箱重复应返回 ErrUserExists，实际: %v", err)
	}
}

func TestSchoolService_Register_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.School.Register(ctx, staff(), registerRequest()); !errors.Is(err, ErrForbidden) {
		t.Errorf("会务不能录入学校，实际: %v", err)
	}

	req := registerRequest()
	req.Seat = map[string]int{"UNKNOWN": 1}
	if _, err := env.svc.School.Register(ctx, admin(), req); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("未知会场应返回 ErrInvalidSession，实际: %v", err)
	}

	req = registerRequest()
	req.Seat = map[string]int{"GA": -1}
	if _, err := env.svc.School.Register(ctx, admin(), req); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("负数名额应返回 ErrInvalidAmount，实际: %v", err)
	}

	list, _ := env.svc.School.List(ctx, staff(), "")
	if len(list) != 0 {
		t.Errorf("校验失败不应写入学校，实际 %d", len(list))
	}
}

func TestSchoolService_GetAndList_Scoped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutil.SeedSchool(t, env.db, "x", "1.exchange", map[string]int{"GA": 1})
	testutil.SeedSchool(t, env.db, "y", "1.payment", map[string]int{"SC": 1})

	if _, err := env.svc.School.Get(ctx, leaderOf("y"), "x"); !errors.Is(err, ErrForbidden) {
		t.Errorf("领队不能查看他校，实际: %v", err)
	}
	got, err := env.svc.School.Get(ctx, leaderOf("x"), "x")
	if err != nil || got.Seat.Get("1", "GA") != 1 {
		t.Fatalf("查询本校失败: %v", err)
	}
	if _, err := env.svc.School.Get(ctx, staff(), "nobody"); !errors.Is(err, ErrSchoolNotFound) {
		t.Errorf("期望 ErrSchoolNotFound，实际: %v", err)
	}

	list, err := env.svc.School.List(ctx, staff(), "1.payment")
	if err != nil || len(list) != 1 || list[0].ID != "y" {
		t.Errorf("按阶段筛选应只返回 y，实际 %+v, err=%v", list, err)
	}
	if _, err := env.svc.School.List(ctx, staff(), "bad"); !errors.Is(err, model.ErrInvalidStage) {
		t.Errorf("非法阶段筛选应返回 ErrInvalidStage，实际: %v", err)
	}
	if _, err := env.svc.School.List(ctx, leaderOf("x"), ""); !errors.Is(err, ErrForbidden) {
		t.Errorf("领队不能列出全部学校，实际: %v", err)
	}
}

func TestSchoolService_Resync_StaffOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutil.SeedSchool(t, env.db, "x", "1.exchange", map[string]int{"GA": 3})

	if _, err := env.svc.School.Resync(ctx, leaderOf("x"), "x"); !errors.Is(err, ErrForbidden) {
		t.Errorf("领队不能触发对账，实际: %v", err)
	}
	summary, err := env.svc.School.Resync(ctx, staff(), "x")
	if err != nil {
		t.Fatalf("对账失败: %v", err)
	}
	if summary["GA"] != 3 {
		t.Errorf("对账后 GA 应为 3，实际 %v", summary)
	}
	errs, err := env.svc.School.QuotaErrors(ctx, staff(), "x")
	if err != nil {
		t.Fatalf("查询诊断失败: %v", err)
	}
	if len(errs) != 0 {
		t.Errorf("正常对账不应产生诊断，实际 %d", len(errs))
	}
}
