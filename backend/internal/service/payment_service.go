package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"hwmun/backend/config"
	"hwmun/backend/internal/access"
	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/model"
	"hwmun/backend/internal/repository"
	pkgerrors "hwmun/backend/pkg/errors"
	"hwmun/backend/pkg/mailer"
)

var (
	ErrPaymentStage    = errors.New("当前阶段不能提交或审核缴费")
	ErrMailUnavailable = errors.New("未配置通知邮件模板")
)

const paymentMailSubject = "汇文国际中学生模拟联合国大会缴费审核结果"

// PaymentService 缴费业务接口
type PaymentService interface {
	// Submit 提交凭证：{r}.payment → {r}.paid
	Submit(ctx context.Context, p *access.Principal, school string, req *dto.SubmitPaymentRequest) (model.Stage, error)
	// Review 财务审核，通过进入 {r}.complete，驳回退回 {r}.payment；邮件失败不回滚
	Review(ctx context.Context, p *access.Principal, school string, req *dto.ReviewPaymentRequest) (*dto.ReviewResult, error)
	List(ctx context.Context, p *access.Principal, school string) ([]dto.PaymentResponse, error)
}

type paymentService struct {
	cfg    *config.Config
	repo   *repository.Repository
	quota  QuotaService
	opLog  OpLogService
	mail   mailer.Mailer
	logger *zap.Logger
}

// NewPaymentService 创建 PaymentService 实例
func NewPaymentService(
	cfg *config.Config,
	repo *repository.Repository,
	quota QuotaService,
	opLog OpLogService,
	mail mailer.Mailer,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		cfg:    cfg,
		repo:   repo,
		quota:  quota,
		opLog:  opLog,
		mail:   mail,
		logger: logger,
	}
}

func (s *paymentService) Submit(ctx context.Context, p *access.Principal, schoolID string, req *dto.SubmitPaymentRequest) (model.Stage, error) {
	if !p.CanManageSchool(schoolID) {
		return model.Stage{}, ErrForbidden
	}
	school, err := loadSchool(ctx, s.repo, s.logger, schoolID)
	if err != nil {
		return model.Stage{}, err
	}
	stage, err := model.ParseStage(school.Stage)
	if err != nil || stage.Phase != model.PhasePayment || stage.RoundNumber() >= s.cfg.Conference.MaxPaymentRound {
		return model.Stage{}, ErrPaymentStage
	}

	payment := &model.Payment{
		ID:        model.PaymentID(schoolID, stage.Round),
		SchoolID:  schoolID,
		Round:     stage.Round,
		Type:      req.Type,
		Images:    datatypes.NewJSONType(req.Images),
		CreatedAt: time.Now(),
	}
	next := stage.In(model.PhasePaid)

	// 阶段 CAS 在前：不命中则整笔回滚，凭证不被覆盖
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.School.Transition(ctx, schoolID, stage.String(), next.String()); err != nil {
			return err
		}
		return tx.Payment.Upsert(ctx, payment)
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return model.Stage{}, ErrPaymentStage
		}
		s.logger.Error("提交缴费凭证失败", zap.Error(err))
		return model.Stage{}, err
	}

	s.opLog.Write(ctx, p, schoolID, WorkflowPayment, fmt.Sprintf("提交第 %s 轮缴费凭证（%s）", stage.Round, req.Type))
	return next, nil
}

func (s *paymentService) Review(ctx context.Context, p *access.Principal, schoolID string, req *dto.ReviewPaymentRequest) (*dto.ReviewResult, error) {
	if !p.HasAccess(access.Finance) {
		return nil, ErrForbidden
	}
	school, err := loadSchool(ctx, s.repo, s.logger, schoolID)
	if err != nil {
		return nil, err
	}
	stage, err := model.ParseStage(school.Stage)
	if err != nil || stage.Phase != model.PhasePaid {
		return nil, ErrPaymentStage
	}

	// 1. 阶段流转
	var next model.Stage
	var text string
	if req.Confirm {
		next = stage.In(model.PhaseComplete)
		err = s.repo.School.Transition(ctx, schoolID, stage.String(), next.String())
		text = fmt.Sprintf("第 %s 轮缴费审核通过", stage.Round)
	} else {
		next = stage.In(model.PhasePayment)
		err = s.repo.School.TransitionWithMessage(ctx, schoolID, stage.String(), next.String(), "付款未通过审核："+req.Reason)
		text = fmt.Sprintf("第 %s 轮缴费审核未通过：%s", stage.Round, req.Reason)
	}
	if err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrPaymentStage
		}
		s.logger.Error("阶段流转失败", zap.Error(err))
		return nil, err
	}

	if req.Confirm {
		if err := s.quota.MarkPaid(ctx, schoolID); err != nil {
			s.quota.Report(ctx, "markPaid", schoolID, err, nil)
		}
	}
	s.opLog.Write(ctx, p, schoolID, WorkflowPayment, text)

	// 2. 通知领队
	result := &dto.ReviewResult{Stage: next.String(), Mailed: true}
	if err := s.notify(ctx, school, stage.Round, req); err != nil {
		s.logger.Warn("缴费审核通知发送失败", zap.String("school", schoolID), zap.Error(err))
		result.Mailed = false
		result.MailError = err.Error()
	}
	return result, nil
}

func (s *paymentService) notify(ctx context.Context, school *model.School, round string, req *dto.ReviewPaymentRequest) error {
	tpl := s.template(round, req.Confirm)
	if tpl == "" {
		return ErrMailUnavailable
	}
	leader := school.Leader.Data()
	html := strings.NewReplacer("{school}", school.Name, "{reason}", req.Reason).Replace(tpl)

	res := s.mail.SendMail(ctx, mailer.Message{
		To:      leader.Email,
		Name:    leader.Name,
		Subject: paymentMailSubject,
		HTML:    html,
	})
	if !res.Success {
		if res.Err != nil {
			return res.Err
		}
		return errors.New("邮件发送失败")
	}
	return nil
}

// template 第一轮与之后的轮次使用不同模板
func (s *paymentService) template(round string, confirm bool) string {
	t := s.cfg.Mail.Templates
	switch {
	case round == "1" && confirm:
		return t.PaymentSuccess
	case round == "1":
		return t.PaymentFailure
	case confirm:
		return t.PaymentSuccess2
	default:
		return t.PaymentFailure2
	}
}

func (s *paymentService) List(ctx context.Context, p *access.Principal, school string) ([]dto.PaymentResponse, error) {
	if !p.CanManageSchool(school) && !p.HasAccess(access.Finance) {
		return nil, ErrForbidden
	}
	list, err := s.repo.Payment.ListBySchool(ctx, school)
	if err != nil {
		s.logger.Error("查询缴费凭证失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.PaymentResponse, 0, len(list))
	for _, pm := range list {
		result = append(result, dto.PaymentResponse{
			ID:        pm.ID,
			Round:     pm.Round,
			Type:      pm.Type,
			Images:    pm.Images.Data(),
			CreatedAt: formatTime(pm.CreatedAt),
		})
	}
	return result, nil
}
