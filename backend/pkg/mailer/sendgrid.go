package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type sendgridMailer struct {
	key    string
	host   string
	from   *sgmail.Email
	logger *zap.Logger
}

// NewSendgrid 创建 SendGrid 邮件实现
func NewSendgrid(key, from, nickname string, logger *zap.Logger) Mailer {
	return &sendgridMailer{
		key:    key,
		host:   sendgridHost,
		from:   sgmail.NewEmail(nickname, from),
		logger: logger,
	}
}

func (m *sendgridMailer) SendMail(ctx context.Context, msg Message) Result {
	if err := ctx.Err(); err != nil {
		return Result{Err: err}
	}

	req := sendgrid.GetRequest(m.key, sendgridEndpoint, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		m.logger.Error("邮件发送失败", zap.String("to", msg.To), zap.Error(err))
		return Result{Err: err}
	}
	if res.StatusCode >= http.StatusBadRequest {
		err := fmt.Errorf("sendgrid 返回 %d: %s", res.StatusCode, res.Body)
		m.logger.Error("邮件发送被拒绝", zap.String("to", msg.To), zap.Error(err))
		return Result{Err: err}
	}
	return Result{Success: true}
}

func (m *sendgridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.Name, msg.To))

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)
	v3.AddContent(sgmail.NewContent("text/html", msg.HTML))
	return v3
}
