package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"hwmun/backend/internal/access"
	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/model"
	"hwmun/backend/internal/repository"
)

// SchoolService 学校业务接口
type SchoolService interface {
	// Register 录入学校，同一事务内写入第一轮名额与领队账号，随后生成名额令牌
	Register(ctx context.Context, p *access.Principal, req *dto.RegisterSchoolRequest) (*dto.SchoolResponse, error)
	Get(ctx context.Context, p *access.Principal, id string) (*dto.SchoolResponse, error)
	List(ctx context.Context, p *access.Principal, stage string) ([]dto.SchoolResponse, error)
	// Resync 以名额账本为准重建影子账本
	Resync(ctx context.Context, p *access.Principal, id string) (map[string]int, error)
	QuotaErrors(ctx context.Context, p *access.Principal, id string) ([]model.QuotaError, error)
}

type schoolService struct {
	repo   *repository.Repository
	quota  QuotaService
	opLog  OpLogService
	logger *zap.Logger
}

// NewSchoolService 创建 SchoolService 实例
func NewSchoolService(repo *repository.Repository, quota QuotaService, opLog OpLogService, logger *zap.Logger) SchoolService {
	return &schoolService{repo: repo, quota: quota, opLog: opLog, logger: logger}
}

func (s *schoolService) Register(ctx context.Context, p *access.Principal, req *dto.RegisterSchoolRequest) (*dto.SchoolResponse, error) {
	if !p.HasAccess(access.Admin) {
		return nil, ErrForbidden
	}

	cat := newCatalog(s.repo.Session)
	for session, n := range req.Seat {
		if n < 0 {
			return nil, ErrInvalidAmount
		}
		if _, ok, err := cat.Get(ctx, session); err != nil {
			s.logger.Error("查询会场目录失败", zap.Error(err))
			return nil, err
		} else if !ok {
			return nil, ErrInvalidSession
		}
	}

	if _, err := s.repo.User.GetByID(ctx, req.Leader.Email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码加密失败", zap.Error(err))
		return nil, err
	}

	school := &model.School{
		ID:         model.NewID(),
		Name:       req.Name,
		Identifier: req.Identifier,
		Type:       model.SchoolType(req.Type),
		Stage:      model.StageInitial.String(),
		NgQuota:    datatypes.NewJSONType(map[string]int{}),
		Leader: datatypes.NewJSONType(model.Leader{
			Name:  req.Leader.Name,
			Email: req.Leader.Email,
			Phone: req.Leader.Phone,
		}),
	}
	schoolID := school.ID
	leader := &model.User{
		ID:           req.Leader.Email,
		PasswordHash: string(hash),
		Access:       datatypes.NewJSONType([]string{access.Leader}),
		SchoolID:     &schoolID,
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.School.Create(ctx, school); err != nil {
			return err
		}
		if err := tx.Seat.ReplaceRound(ctx, school.ID, "1", req.Seat); err != nil {
			return err
		}
		return tx.User.Create(ctx, leader)
	})
	if err != nil {
		s.logger.Error("录入学校失败", zap.Error(err))
		return nil, fmt.Errorf("录入学校失败: %w", err)
	}

	if _, err := s.quota.SyncQuotaToSchool(ctx, school.ID); err != nil {
		s.quota.Report(ctx, "syncQuotaToSchool", school.ID, err, nil)
	}
	s.opLog.Write(ctx, p, school.ID, WorkflowSchool, fmt.Sprintf("录入学校「%s」", school.Name))
	s.logger.Info("学校已录入", zap.String("school", school.ID), zap.String("leader", leader.ID))

	return s.Get(ctx, p, school.ID)
}

func (s *schoolService) Get(ctx context.Context, p *access.Principal, id string) (*dto.SchoolResponse, error) {
	if !p.CanManageSchool(id) {
		return nil, ErrForbidden
	}
	school, err := loadSchool(ctx, s.repo, s.logger, id)
	if err != nil {
		return nil, err
	}
	seats, err := seatMapOf(ctx, s.repo, id)
	if err != nil {
		s.logger.Error("查询名额失败", zap.Error(err))
		return nil, err
	}
	resp, err := toSchoolResponse(school, seats)
	if err != nil {
		s.logger.Error("解析学校数据失败", zap.Error(err))
		return nil, err
	}
	return resp, nil
}

func (s *schoolService) List(ctx context.Context, p *access.Principal, stage string) ([]dto.SchoolResponse, error) {
	if !p.IsStaff() {
		return nil, ErrForbidden
	}
	if stage != "" {
		if _, err := model.ParseStage(stage); err != nil {
			return nil, err
		}
	}

	schools, err := s.repo.School.List(ctx, stage)
	if err != nil {
		s.logger.Error("查询学校列表失败", zap.Error(err))
		return nil, err
	}
	rows, err := s.repo.Seat.ListAll(ctx)
	if err != nil {
		s.logger.Error("查询名额失败", zap.Error(err))
		return nil, err
	}
	bySchool := map[string][]model.SchoolSeat{}
	for _, r := range rows {
		bySchool[r.SchoolID] = append(bySchool[r.SchoolID], r)
	}

	result := make([]dto.SchoolResponse, 0, len(schools))
	for i := range schools {
		resp, err := toSchoolResponse(&schools[i], model.NewSeatMap(bySchool[schools[i].ID]))
		if err != nil {
			s.logger.Error("解析学校数据失败", zap.String("school", schools[i].ID), zap.Error(err))
			return nil, err
		}
		result = append(result, *resp)
	}
	return result, nil
}

func (s *schoolService) Resync(ctx context.Context, p *access.Principal, id string) (map[string]int, error) {
	if !p.IsStaff() {
		return nil, ErrForbidden
	}
	if _, err := loadSchool(ctx, s.repo, s.logger, id); err != nil {
		return nil, err
	}
	summary, err := s.quota.SyncQuotaToSchool(ctx, id)
	if err != nil {
		// 对账不完整时仍返回当前汇总，差异已记入诊断表
		s.quota.Report(ctx, "syncQuotaToSchool", id, err, nil)
		if summary == nil {
			return nil, err
		}
	}
	return summary, nil
}

func (s *schoolService) QuotaErrors(ctx context.Context, p *access.Principal, id string) ([]model.QuotaError, error) {
	if !p.IsStaff() {
		return nil, ErrForbidden
	}
	return s.quota.Errors(ctx, id)
}

func toSchoolResponse(school *model.School, seats model.SeatMap) (*dto.SchoolResponse, error) {
	pre, err := school.Preallocation()
	if err != nil {
		return nil, err
	}
	return &dto.SchoolResponse{
		ID:               school.ID,
		Name:             school.Name,
		Identifier:       school.Identifier,
		Type:             school.Type,
		Stage:            school.Stage,
		Seat:             seats,
		NgQuota:          school.NgQuota.Data(),
		SeatPreallocated: pre,
		Leader:           school.Leader.Data(),
		LastMsg:          school.LastMsg,
		CreatedAt:        formatTime(school.CreatedAt),
	}, nil
}
