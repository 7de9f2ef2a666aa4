package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"hwmun/backend/config"
)

func TestNew_Providers(t *testing.T) {
	logger := zap.NewNop()

	m, err := New(&config.MailConfig{Provider: "log"}, logger)
	if err != nil {
		t.Fatalf("log 实现创建失败: %v", err)
	}
	if _, ok := m.(*logMailer); !ok {
		t.Errorf("期望 logMailer，实际 %T", m)
	}

	m, err = New(&config.MailConfig{Provider: "sendgrid", SendgridAPIKey: "SG.key"}, logger)
	if err != nil {
		t.Fatalf("sendgrid 实现创建失败: %v", err)
	}
	if _, ok := m.(*sendgridMailer); !ok {
		t.Errorf("期望 sendgridMailer，实际 %T", m)
	}

	if _, err := New(&config.MailConfig{Provider: "smtp"}, logger); err == nil {
		t.Error("未知邮件服务应返回错误")
	}
}

func TestLogMailer_Success(t *testing.T) {
	res := NewLog(zap.NewNop()).SendMail(context.Background(), Message{To: "a@b.c", Subject: "s"})
	if !res.Success || res.Err != nil {
		t.Errorf("日志实现应始终成功，实际 %+v", res)
	}
}

func TestLogMailer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := NewLog(zap.NewNop()).SendMail(ctx, Message{To: "a@b.c"})
	if res.Success || res.Err == nil {
		t.Error("已取消的 context 应返回失败")
	}
}

func newTestSendgrid(url string) *sendgridMailer {
	m := NewSendgrid("SG.test", "noreply@hwmun.org", "组委会", zap.NewNop()).(*sendgridMailer)
	m.host = url
	return m
}

func TestSendgridMailer_Success(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != sendgridEndpoint {
			t.Errorf("期望请求 %s，实际 %s", sendgridEndpoint, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer SG.test" {
			t.Errorf("Authorization 头错误: %s", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	res := newTestSendgrid(srv.URL).SendMail(context.Background(), Message{
		To:      "leader@school.cn",
		Name:    "王老师",
		Subject: "缴费审核结果",
		HTML:    "<p>通过</p>",
	})
	if !res.Success {
		t.Fatalf("期望发送成功，实际 %+v", res)
	}

	ps, _ := got["personalizations"].([]interface{})
	if len(ps) != 1 {
		t.Fatalf("期望 1 个 personalization，实际 %v", got["personalizations"])
	}
	p := ps[0].(map[string]interface{})
	if p["subject"] != "缴费审核结果" {
		t.Errorf("主题错误: %v", p["subject"])
	}
}

func TestSendgridMailer_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	res := newTestSendgrid(srv.URL).SendMail(context.Background(), Message{To: "x@y.z"})
	if res.Success || res.Err == nil {
		t.Errorf("4xx 应视为发送失败，实际 %+v", res)
	}
}

func TestSendgridMailer_HonorsContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := newTestSendgrid(srv.URL).SendMail(ctx, Message{To: "leader@school.cn"})
	if res.Success || res.Err == nil {
		t.Fatalf("超时后应返回错误，实际 %+v", res)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("请求应随 ctx 取消，实际耗时 %v", elapsed)
	}
}
