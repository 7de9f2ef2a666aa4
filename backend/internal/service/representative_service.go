package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hwmun/backend/internal/access"
	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/model"
	"hwmun/backend/internal/repository"
	pkgerrors "hwmun/backend/pkg/errors"
)

var ErrRepresentativeNotFound = errors.New("代表不存在")

// RepresentativeService 代表名单业务接口
type RepresentativeService interface {
	List(ctx context.Context, p *access.Principal, school string) ([]dto.RepresentativeResponse, error)
	// ListAll 跨校代表名单；主席团只能查看本会场
	ListAll(ctx context.Context, p *access.Principal, session string) ([]dto.RepresentativeResponse, error)
	// Update 学校范围内修改代表，无权修改的字段静默忽略
	Update(ctx context.Context, p *access.Principal, school, id string, req *dto.UpdateRepresentativeRequest) (*dto.RepresentativeResponse, error)
	// UpdateNote 仅修改备注；主席团只能修改本会场代表
	UpdateNote(ctx context.Context, p *access.Principal, id string, req *dto.RepresentativeNoteRequest) (*dto.RepresentativeResponse, error)
}

type representativeService struct {
	repo   *repository.Repository
	quota  QuotaService
	logger *zap.Logger
}

// NewRepresentativeService 创建 RepresentativeService 实例
func NewRepresentativeService(repo *repository.Repository, quota QuotaService, logger *zap.Logger) RepresentativeService {
	return &representativeService{repo: repo, quota: quota, logger: logger}
}

func (s *representativeService) List(ctx context.Context, p *access.Principal, school string) ([]dto.RepresentativeResponse, error) {
	if !p.CanManageSchool(school) && !p.HasAccess(access.Finance) {
		return nil, ErrForbidden
	}
	reps, err := s.repo.Representative.ListBySchool(ctx, school)
	if err != nil {
		s.logger.Error("查询代表名单失败", zap.Error(err))
		return nil, err
	}
	return toRepresentativeResponses(reps), nil
}

// onlyDais 仅有主席团权限，没有财务或管理员权限
func onlyDais(p *access.Principal) bool {
	return p.HasAccess(access.Dais) && !p.HasAny(access.Finance, access.Admin)
}

func (s *representativeService) ListAll(ctx context.Context, p *access.Principal, session string) ([]dto.RepresentativeResponse, error) {
	if !p.HasAny(access.Dais, access.Finance, access.Admin) {
		return nil, ErrForbidden
	}
	if onlyDais(p) && session != p.Session {
		return nil, ErrForbidden
	}
	reps, err := s.repo.Representative.List(ctx, session)
	if err != nil {
		s.logger.Error("查询代表名单失败", zap.Error(err))
		return nil, err
	}
	return toRepresentativeResponses(reps), nil
}

func (s *representativeService) Update(ctx context.Context, p *access.Principal, school, id string, req *dto.UpdateRepresentativeRequest) (*dto.RepresentativeResponse, error) {
	if !p.CanManageSchool(school) && !p.HasAccess(access.Finance) {
		return nil, ErrForbidden
	}
	rep, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rep.SchoolID != school {
		return nil, ErrRepresentativeNotFound
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Note != nil {
		fields["note"] = *req.Note
	}
	if req.Withdraw != nil && p.HasAny(access.StaffRepresentative, access.Leader) {
		fields["withdraw"] = *req.Withdraw
	}
	if req.Session != nil && *req.Session != rep.SessionID && p.HasAccess(access.StaffRepresentative) {
		if err := s.checkSession(ctx, *req.Session); err != nil {
			return nil, err
		}
		fields["session_id"] = *req.Session
	}

	after, err := s.apply(ctx, rep, fields)
	if err != nil {
		return nil, err
	}
	s.syncDelegate(ctx, rep, after)
	resp := toRepresentativeResponse(*after)
	return &resp, nil
}

func (s *representativeService) UpdateNote(ctx context.Context, p *access.Principal, id string, req *dto.RepresentativeNoteRequest) (*dto.RepresentativeResponse, error) {
	if !p.HasAny(access.Dais, access.Finance, access.Admin) {
		return nil, ErrForbidden
	}
	rep, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	// 主席团看不到他会场的代表，按不存在处理
	if onlyDais(p) && rep.SessionID != p.Session {
		return nil, ErrRepresentativeNotFound
	}

	fields := map[string]interface{}{}
	if req.Note != nil {
		fields["note"] = *req.Note
	}
	after, err := s.apply(ctx, rep, fields)
	if err != nil {
		return nil, err
	}
	resp := toRepresentativeResponse(*after)
	return &resp, nil
}

func (s *representativeService) load(ctx context.Context, id string) (*model.Representative, error) {
	rep, err := s.repo.Representative.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRepresentativeNotFound
		}
		s.logger.Error("查询代表失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return rep, nil
}

func (s *representativeService) checkSession(ctx context.Context, session string) error {
	sess, ok, err := newCatalog(s.repo.Session).Get(ctx, session)
	if err != nil {
		return err
	}
	if !ok || sess.Reserved {
		return ErrInvalidSession
	}
	return nil
}

// apply 写入变更并返回更新后的记录
func (s *representativeService) apply(ctx context.Context, rep *model.Representative, fields map[string]interface{}) (*model.Representative, error) {
	if len(fields) == 0 {
		return rep, nil
	}
	if err := s.repo.Representative.Update(ctx, rep.ID, fields); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrRepresentativeNotFound
		}
		s.logger.Error("更新代表失败", zap.String("id", rep.ID), zap.Error(err))
		return nil, err
	}
	return s.load(ctx, rep.ID)
}

// holdsDelegate 已填写姓名且未退会的代表占用一个令牌的代表标记
func holdsDelegate(r *model.Representative) bool {
	return r.Name != "" && !r.Withdraw
}

// syncDelegate 按代表变更前后的状态调整影子账本的 delegate 标记
func (s *representativeService) syncDelegate(ctx context.Context, before, after *model.Representative) {
	had, has := holdsDelegate(before), holdsDelegate(after)
	if had == has && before.SessionID == after.SessionID {
		return
	}
	args := map[string]interface{}{"representative": after.ID, "from": before.SessionID, "to": after.SessionID}
	if had {
		if err := s.repo.Quota.FlagDelegate(ctx, before.SchoolID, before.SessionID, false); err != nil {
			s.quota.Report(ctx, "unflagDelegate", before.SchoolID, err, args)
		}
	}
	if has {
		if err := s.repo.Quota.FlagDelegate(ctx, after.SchoolID, after.SessionID, true); err != nil {
			s.quota.Report(ctx, "flagDelegate", after.SchoolID, err, args)
		}
	}
}

func toRepresentativeResponse(r model.Representative) dto.RepresentativeResponse {
	return dto.RepresentativeResponse{
		ID:       r.ID,
		School:   r.SchoolID,
		Session:  r.SessionID,
		Round:    r.Round,
		IsLeader: r.IsLeader,
		Withdraw: r.Withdraw,
		Name:     r.Name,
		Note:     r.Note,
	}
}

func toRepresentativeResponses(reps []model.Representative) []dto.RepresentativeResponse {
	result := make([]dto.RepresentativeResponse, 0, len(reps))
	for _, r := range reps {
		result = append(result, toRepresentativeResponse(r))
	}
	return result
}
