// Package mailer 通知邮件发送。发送失败只影响响应状态，不回滚业务状态
package mailer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"hwmun/backend/config"
)

// Message 一封待发送的邮件
type Message struct {
	To      string
	Name    string
	Subject string
	HTML    string
}

// Result 发送结果
type Result struct {
	Success bool
	Err     error
}

// Mailer 邮件发送接口
type Mailer interface {
	SendMail(ctx context.Context, msg Message) Result
}

// New 按配置选择邮件实现
func New(cfg *config.MailConfig, logger *zap.Logger) (Mailer, error) {
	switch cfg.Provider {
	case "sendgrid":
		return NewSendgrid(cfg.SendgridAPIKey, cfg.From, cfg.Nickname, logger), nil
	case "log", "":
		return NewLog(logger), nil
	default:
		return nil, fmt.Errorf("未知的邮件服务: %s", cfg.Provider)
	}
}

// logMailer 仅记录日志，开发环境使用
type logMailer struct {
	logger *zap.Logger
}

// NewLog 创建日志邮件实现
func NewLog(logger *zap.Logger) Mailer {
	return &logMailer{logger: logger}
}

func (m *logMailer) SendMail(ctx context.Context, msg Message) Result {
	if err := ctx.Err(); err != nil {
		return Result{Err: err}
	}
	m.logger.Info("邮件（未实际发送）",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("html_len", len(msg.HTML)),
	)
	return Result{Success: true}
}
