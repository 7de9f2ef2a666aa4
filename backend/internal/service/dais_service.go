package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"hwmun/backend/config"
	"hwmun/backend/internal/access"
	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/model"
	"hwmun/backend/internal/repository"
	pkgerrors "hwmun/backend/pkg/errors"
	"hwmun/backend/pkg/mailer"
)

// ── 主席团模块业务错误 ──

var (
	ErrDaisNotFound  = errors.New("主席团成员不存在")
	ErrDaisExists    = errors.New("该账号已登记为主席团成员")
	ErrUserNotFound  = errors.New("登录账号不存在")
	ErrTripLocked    = errors.New("报销已审核或已打款，不能修改")
	ErrDaisConflict  = errors.New("主席团资料已被其他操作修改，请刷新后重试")
	ErrNoDaisAction  = errors.New("未指定任何操作")
	ErrInvalidReview = errors.New("审核操作只能选择一项")
)

// SelfDais 路径中的 "~" 表示调用方本人
const SelfDais = "~"

const (
	daisRolePrefix    = "主席-"
	daisMailSubject   = "汇文国际中学生模拟联合国大会行程费用报销通知"
	daisUpdateRetries = 3
)

// DaisService 主席团名册与差旅报销业务接口
type DaisService interface {
	Create(ctx context.Context, p *access.Principal, req *dto.CreateDaisRequest) (*dto.DaisResponse, error)
	List(ctx context.Context, p *access.Principal) ([]dto.DaisResponse, error)
	Get(ctx context.Context, p *access.Principal, id string) (*dto.DaisResponse, error)
	Update(ctx context.Context, p *access.Principal, id string, req *dto.UpdateDaisRequest) (*dto.DaisResponse, error)
	// Act 分配会场并同步账号，或启用、停用账号
	Act(ctx context.Context, p *access.Principal, id string, req *dto.DaisActionRequest) (*dto.DaisResponse, error)
	// Delete 删除名册记录并收回账号权限
	Delete(ctx context.Context, p *access.Principal, id string) error

	ListReimbursements(ctx context.Context, p *access.Principal) ([]dto.ReimbursementSummary, error)
	GetReimbursement(ctx context.Context, p *access.Principal, id string) (*dto.ReimbursementResponse, error)
	UpdateReimbursement(ctx context.Context, p *access.Principal, id string, req *dto.ReimbursementRequest) (*dto.ReimbursementResponse, error)
	// ProcessReimbursement 审核或确认打款；确认打款后发送通知邮件，邮件失败不回滚
	ProcessReimbursement(ctx context.Context, p *access.Principal, id string, req *dto.ProcessReimbursementRequest) (*dto.ReimbursementResponse, error)
}

type daisService struct {
	cfg    *config.Config
	repo   *repository.Repository
	mail   mailer.Mailer
	logger *zap.Logger
}

// NewDaisService 创建 DaisService 实例
func NewDaisService(cfg *config.Config, repo *repository.Repository, mail mailer.Mailer, logger *zap.Logger) DaisService {
	return &daisService{cfg: cfg, repo: repo, mail: mail, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// 名册
// ═══════════════════════════════════════════════════════════

func (s *daisService) Create(ctx context.Context, p *access.Principal, req *dto.CreateDaisRequest) (*dto.DaisResponse, error) {
	if !p.HasAccess(access.Admin) {
		return nil, ErrForbidden
	}
	if _, err := s.repo.User.GetByID(ctx, req.User); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if _, err := s.repo.Dais.GetByUser(ctx, req.User); err == nil {
		return nil, ErrDaisExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	d := &model.Dais{
		ID:     model.NewID(),
		UserID: req.User,
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		School: req.School,
	}
	if req.Session != "" {
		sess, err := s.session(ctx, req.Session)
		if err != nil {
			return nil, err
		}
		d.SessionID = sess.ID
		d.Role = daisRolePrefix + sess.Name
	}
	if err := s.repo.Dais.Create(ctx, d); err != nil {
		s.logger.Error("登记主席团成员失败", zap.Error(err))
		return nil, err
	}
	s.logger.Info("主席团成员已登记", zap.String("dais", d.ID), zap.String("user", d.UserID), zap.String("operator", p.User))
	return s.profile(ctx, d), nil
}

func (s *daisService) List(ctx context.Context, p *access.Principal) ([]dto.DaisResponse, error) {
	if !p.HasAccess(access.Admin) {
		return nil, ErrForbidden
	}
	list, err := s.repo.Dais.List(ctx)
	if err != nil {
		s.logger.Error("查询主席团名册失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.DaisResponse, 0, len(list))
	for i := range list {
		result = append(result, *s.profile(ctx, &list[i]))
	}
	return result, nil
}

func (s *daisService) Get(ctx context.Context, p *access.Principal, id string) (*dto.DaisResponse, error) {
	d, err := s.resolve(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, d), nil
}

func (s *daisService) Update(ctx context.Context, p *access.Principal, id string, req *dto.UpdateDaisRequest) (*dto.DaisResponse, error) {
	d, err := s.resolve(ctx, p, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	set := func(col string, v *string) {
		if v != nil {
			fields[col] = *v
		}
	}
	set("phone", req.Phone)
	set("photo_id", req.PhotoID)
	set("comment", req.Comment)
	set("arrive_date", req.ArriveDate)
	set("depart_date", req.DepartDate)
	set("check_in_date", req.CheckInDate)
	set("check_out_date", req.CheckOutDate)
	if len(fields) == 0 {
		return s.profile(ctx, d), nil
	}

	if err := s.repo.Dais.Update(ctx, d.ID, d.Version, fields); err != nil {
		return nil, s.updateError(err)
	}
	return s.Get(ctx, access.System(), d.ID)
}

func (s *daisService) Act(ctx context.Context, p *access.Principal, id string, req *dto.DaisActionRequest) (*dto.DaisResponse, error) {
	if !p.HasAccess(access.Admin) {
		return nil, ErrForbidden
	}
	if req.Session == nil && !req.Activate && !req.Deactivate {
		return nil, ErrNoDaisAction
	}
	d, err := s.byID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Session != nil {
		sess, err := s.session(ctx, *req.Session)
		if err != nil {
			return nil, err
		}
		err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			if err := tx.Dais.Update(ctx, d.ID, d.Version, map[string]interface{}{
				"session_id": sess.ID,
				"role":       daisRolePrefix + sess.Name,
			}); err != nil {
				return err
			}
			return tx.User.SetAccess(ctx, d.UserID, []string{access.Dais}, &sess.ID)
		})
		if err != nil {
			return nil, s.updateError(err)
		}
		s.logger.Info("主席团会场已分配", zap.String("dais", d.ID), zap.String("session", sess.ID), zap.String("operator", p.User))
	}

	// 与原账号权限无关，启用即恢复为主席团，停用即清空
	switch {
	case req.Deactivate:
		err = s.repo.User.SetAccess(ctx, d.UserID, []string{}, nil)
	case req.Activate:
		err = s.repo.User.SetAccess(ctx, d.UserID, []string{access.Dais}, nil)
	}
	if err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("更新主席团账号失败", zap.String("user", d.UserID), zap.Error(err))
		return nil, err
	}
	return s.Get(ctx, access.System(), d.ID)
}

func (s *daisService) Delete(ctx context.Context, p *access.Principal, id string) error {
	if !p.HasAccess(access.Admin) {
		return ErrForbidden
	}
	d, err := s.byID(ctx, id)
	if err != nil {
		return err
	}
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Dais.Delete(ctx, d.ID); err != nil {
			return err
		}
		err := tx.User.SetAccess(ctx, d.UserID, []string{}, nil)
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			// 账号已不存在，只删名册
			return nil
		}
		return err
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return ErrDaisNotFound
		}
		s.logger.Error("删除主席团成员失败", zap.String("dais", d.ID), zap.Error(err))
		return err
	}
	s.logger.Info("主席团成员已删除", zap.String("dais", d.ID), zap.String("operator", p.User))
	return nil
}

// ═══════════════════════════════════════════════════════════
// 差旅报销
// ═══════════════════════════════════════════════════════════

func (s *daisService) ListReimbursements(ctx context.Context, p *access.Principal) ([]dto.ReimbursementSummary, error) {
	if !p.HasAny(access.Admin, access.Finance) {
		return nil, ErrForbidden
	}
	list, err := s.repo.Dais.List(ctx)
	if err != nil {
		s.logger.Error("查询主席团名册失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.ReimbursementSummary, 0)
	for _, d := range list {
		r := d.Reimbursement.Data()
		if !r.Submitted() {
			continue
		}
		item := dto.ReimbursementSummary{ID: d.ID, Role: d.Role, User: d.UserID, Name: d.Name}
		if r.Inbound != nil {
			item.InboundState = r.Inbound.State
		}
		if r.Outbound != nil {
			item.OutboundState = r.Outbound.State
		}
		result = append(result, item)
	}
	return result, nil
}

func (s *daisService) GetReimbursement(ctx context.Context, p *access.Principal, id string) (*dto.ReimbursementResponse, error) {
	d, err := s.resolve(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return toReimbursementResponse(d), nil
}

func (s *daisService) UpdateReimbursement(ctx context.Context, p *access.Principal, id string, req *dto.ReimbursementRequest) (*dto.ReimbursementResponse, error) {
	d, err := s.resolve(ctx, p, id)
	if err != nil {
		return nil, err
	}

	var updated *model.Dais
	err = s.mutate(ctx, d, func(r *model.Reimbursement) error {
		if req.SchoolRegion != nil {
			r.SchoolRegion = req.SchoolRegion
		}
		if req.ResidenceRegion != nil {
			r.ResidenceRegion = req.ResidenceRegion
		}
		if req.PaymentMethod != nil {
			r.PaymentMethod = *req.PaymentMethod
		}
		if req.Bank != nil {
			r.Bank = *req.Bank
		}
		if req.Alipay != nil {
			r.Alipay = *req.Alipay
		}
		for name, tr := range map[string]*dto.TripRequest{model.TripInbound: req.Inbound, model.TripOutbound: req.Outbound} {
			if tr == nil {
				continue
			}
			trip := r.Trip(name)
			if trip.Locked() {
				return ErrTripLocked
			}
			next := model.Trip{}
			if trip != nil {
				next = *trip
			}
			if tr.Region != nil {
				next.Region = tr.Region
			}
			if tr.Cost != nil {
				next.Cost = *tr.Cost
			}
			if tr.Credential != nil {
				next.Credential = *tr.Credential
			}
			if tr.Note != nil {
				next.Note = *tr.Note
			}
			next.State = model.TripSubmitted
			r.SetTrip(name, &next)
		}
		return nil
	}, &updated)
	if err != nil {
		return nil, err
	}
	return toReimbursementResponse(updated), nil
}

func (s *daisService) ProcessReimbursement(ctx context.Context, p *access.Principal, id string, req *dto.ProcessReimbursementRequest) (*dto.ReimbursementResponse, error) {
	if !p.HasAny(access.Admin, access.Finance) {
		return nil, ErrForbidden
	}
	picked := 0
	for _, v := range []bool{req.Approve, req.Reject, req.ConfirmPayment} {
		if v {
			picked++
		}
	}
	if picked == 0 {
		return nil, ErrNoDaisAction
	}
	if picked > 1 {
		return nil, ErrInvalidReview
	}
	d, err := s.byID(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *model.Dais
	err = s.mutate(ctx, d, func(r *model.Reimbursement) error {
		trip := r.Trip(req.Trip)
		if trip == nil {
			trip = &model.Trip{}
		}
		if trip.State == model.TripCompleted {
			return ErrTripLocked
		}
		next := *trip
		switch {
		case req.Approve:
			next.State = model.TripApproved
			next.ReviewNote = req.ReviewNote
		case req.Reject:
			next.State = model.TripRejected
			next.ReviewNote = req.ReviewNote
		case req.ConfirmPayment:
			next.State = model.TripCompleted
		}
		r.SetTrip(req.Trip, &next)
		return nil
	}, &updated)
	if err != nil {
		return nil, err
	}
	s.logger.Info("主席团报销已处理",
		zap.String("dais", d.ID),
		zap.String("trip", req.Trip),
		zap.Bool("approve", req.Approve),
		zap.Bool("reject", req.Reject),
		zap.Bool("confirm_payment", req.ConfirmPayment),
		zap.String("operator", p.User),
	)

	resp := toReimbursementResponse(updated)
	if req.ConfirmPayment {
		mailed := true
		if err := s.notify(ctx, updated, req.Trip); err != nil {
			s.logger.Warn("报销通知发送失败", zap.String("dais", d.ID), zap.Error(err))
			mailed = false
			resp.MailError = err.Error()
		}
		resp.Mailed = &mailed
	}
	return resp, nil
}

// mutate 读改写报销 JSON；版本冲突时重新读取后重试，fn 的业务错误直接返回
func (s *daisService) mutate(ctx context.Context, d *model.Dais, fn func(r *model.Reimbursement) error, out **model.Dais) error {
	cur := d
	for attempt := 0; attempt < daisUpdateRetries; attempt++ {
		r := cur.Reimbursement.Data()
		if err := fn(&r); err != nil {
			return err
		}
		err := s.repo.Dais.Update(ctx, cur.ID, cur.Version, map[string]interface{}{
			"reimbursement": datatypes.NewJSONType(r),
		})
		if err == nil {
			fresh, err := s.byID(ctx, cur.ID)
			if err != nil {
				return err
			}
			*out = fresh
			return nil
		}
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("更新报销失败", zap.String("dais", cur.ID), zap.Error(err))
			return err
		}
		if cur, err = s.byID(ctx, cur.ID); err != nil {
			return err
		}
	}
	return ErrDaisConflict
}

func (s *daisService) notify(ctx context.Context, d *model.Dais, tripName string) error {
	tpl := s.cfg.Mail.Templates.DaisReimbursementComplete
	if tpl == "" {
		return ErrMailUnavailable
	}
	r := d.Reimbursement.Data()
	var region []string
	if t := r.Trip(tripName); t != nil {
		region = t.Region
	}
	html := strings.NewReplacer(
		"{name}", d.Name,
		"{region}", strings.Join(region, "/"),
		"{trip}", tripText(tripName),
	).Replace(tpl)

	to := d.Email
	if to == "" {
		to = d.UserID
	}
	res := s.mail.SendMail(ctx, mailer.Message{To: to, Name: d.Name, Subject: daisMailSubject, HTML: html})
	if !res.Success {
		if res.Err != nil {
			return res.Err
		}
		return errors.New("邮件发送失败")
	}
	return nil
}

func tripText(name string) string {
	switch name {
	case model.TripInbound:
		return "来程"
	case model.TripOutbound:
		return "回程"
	}
	return "行程"
}

// ── 辅助函数 ──

// resolve 主席团本人只能用 "~" 访问自己；管理员与财务可按 ID 访问任意成员
func (s *daisService) resolve(ctx context.Context, p *access.Principal, id string) (*model.Dais, error) {
	if !p.HasAny(access.Dais, access.Admin, access.Finance) {
		return nil, ErrForbidden
	}
	if id == SelfDais {
		d, err := s.repo.Dais.GetByUser(ctx, p.User)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrDaisNotFound
			}
			return nil, err
		}
		return d, nil
	}
	if !p.HasAny(access.Admin, access.Finance) {
		return nil, ErrForbidden
	}
	return s.byID(ctx, id)
}

func (s *daisService) byID(ctx context.Context, id string) (*model.Dais, error) {
	d, err := s.repo.Dais.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDaisNotFound
		}
		s.logger.Error("查询主席团成员失败", zap.String("dais", id), zap.Error(err))
		return nil, err
	}
	return d, nil
}

func (s *daisService) session(ctx context.Context, id string) (*model.Session, error) {
	sess, ok, err := newCatalog(s.repo.Session).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok || sess.Reserved {
		return nil, ErrInvalidSession
	}
	return sess, nil
}

func (s *daisService) updateError(err error) error {
	if errors.Is(err, pkgerrors.ErrOptimisticLock) {
		return ErrDaisConflict
	}
	s.logger.Error("更新主席团资料失败", zap.Error(err))
	return err
}

// profile 资料视图，账号有任一权限域即视为启用
func (s *daisService) profile(ctx context.Context, d *model.Dais) *dto.DaisResponse {
	active := false
	if u, err := s.repo.User.GetByID(ctx, d.UserID); err == nil {
		active = len(u.Access.Data()) > 0
	}
	return &dto.DaisResponse{
		ID:            d.ID,
		User:          d.UserID,
		Session:       d.SessionID,
		Role:          d.Role,
		Name:          d.Name,
		Email:         d.Email,
		Phone:         d.Phone,
		School:        d.School,
		PhotoID:       d.PhotoID,
		Comment:       d.Comment,
		ArriveDate:    d.ArriveDate,
		DepartDate:    d.DepartDate,
		CheckInDate:   d.CheckInDate,
		CheckOutDate:  d.CheckOutDate,
		AccountActive: active,
	}
}

func toTripResponse(t *model.Trip) *dto.TripResponse {
	if t == nil {
		return nil
	}
	return &dto.TripResponse{
		Region:     t.Region,
		Cost:       t.Cost,
		Credential: t.Credential,
		Note:       t.Note,
		State:      t.State,
		ReviewNote: t.ReviewNote,
	}
}

func toReimbursementResponse(d *model.Dais) *dto.ReimbursementResponse {
	r := d.Reimbursement.Data()
	return &dto.ReimbursementResponse{
		ID:              d.ID,
		User:            d.UserID,
		Role:            d.Role,
		Name:            d.Name,
		SchoolRegion:    r.SchoolRegion,
		ResidenceRegion: r.ResidenceRegion,
		PaymentMethod:   r.PaymentMethod,
		Bank:            r.Bank,
		Alipay:          r.Alipay,
		Inbound:         toTripResponse(r.Inbound),
		Outbound:        toTripResponse(r.Outbound),
	}
}
