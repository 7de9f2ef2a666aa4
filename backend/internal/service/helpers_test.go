package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hwmun/backend/config"
	"hwmun/backend/internal/access"
	"hwmun/backend/internal/repository"
	"hwmun/backend/internal/testutil"
	"hwmun/backend/pkg/jwt"
	"hwmun/backend/pkg/mailer"
)

// ── 测试辅助 ──

// fakeMailer 记录发送内容，fail 为 true 时模拟发送失败
type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail bool
}

func (m *fakeMailer) SendMail(_ context.Context, msg mailer.Message) mailer.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return mailer.Result{Err: errors.New("sendgrid 返回 503")}
	}
	m.sent = append(m.sent, msg)
	return mailer.Result{Success: true}
}

type testEnv struct {
	db   *gorm.DB
	repo *repository.Repository
	svc  *Service
	mail *fakeMailer
	cfg  *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	testutil.SeedSessions(t, db, []string{"GA", "SC", "HRC"}, "HRC")

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:      "test-secret-key-for-unit-testing-2026",
			AccessTokenTTL: 15 * time.Minute,
		},
		Mail: config.MailConfig{
			Provider: "log",
			Templates: config.MailTemplates{
				PaymentSuccess: "<p>{school} 第一轮缴费已确认</p>",
				PaymentFailure: "<p>{school} 缴费未通过：{reason}</p>",
			},
		},
		Conference: config.ConferenceConfig{MaxPaymentRound: 3},
	}
	repo := repository.NewRepository(db)
	mail := &fakeMailer{}
	svc := NewService(cfg, repo, jwt.NewManager(&cfg.Auth), nil, mail, zap.NewNop())

	return &testEnv{db: db, repo: repo, svc: svc, mail: mail, cfg: cfg}
}

func leaderOf(school string) *access.Principal {
	return &access.Principal{User: school + "@school.cn", School: school, Access: []string{access.Leader}}
}

func staff() *access.Principal {
	return &access.Principal{User: "staff-1", Access: []string{access.Staff}}
}

func admin() *access.Principal {
	return &access.Principal{User: "admin-1", Access: []string{access.Admin}}
}

func finance() *access.Principal {
	return &access.Principal{User: "finance-1", Access: []string{access.Finance}}
}
