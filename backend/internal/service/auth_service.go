package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"hwmun/backend/config"
	"hwmun/backend/internal/access"
	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/model"
	"hwmun/backend/internal/repository"
	"hwmun/backend/pkg/jwt"
	"hwmun/backend/pkg/redis"
)

var (
	ErrInvalidCredentials = errors.New("账号或密码错误")
	ErrUserExists         = errors.New("账号已存在")
	ErrInvalidAccess      = errors.New("无效的权限域")
)

var knownScopes = map[string]bool{
	access.Root:    true,
	access.Admin:   true,
	access.Staff:   true,
	access.Finance: true,
	access.Leader:  true,
	access.Dais:    true,

	access.StaffRepresentative: true,
}

// AuthService 认证业务接口
type AuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	// Logout 将 Token 的 jti 加入黑名单直至其过期
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
	CreateUser(ctx context.Context, p *access.Principal, req *dto.CreateUserRequest) (*dto.UserResponse, error)
}

type authService struct {
	cfg    *config.Config
	repo   *repository.Repository
	jwtMgr *jwt.Manager
	rdb    *redis.Client
	logger *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:    cfg,
		repo:   repo,
		jwtMgr: jwtMgr,
		rdb:    rdb,
		logger: logger,
	}
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// 1. 查询账号
	user, err := s.repo.User.GetByID(ctx, req.User)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 3. 签发 Token
	resp := toUserResponse(user)
	token, _, err := s.jwtMgr.GenerateAccessToken(jwt.Identity{
		UserID:  resp.ID,
		School:  resp.School,
		Session: resp.Session,
		Access:  resp.Access,
	})
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int(s.cfg.Auth.AccessTokenTTL.Seconds()),
		User:        resp,
	}, nil
}

func (s *authService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.rdb == nil || jti == "" {
		s.logger.Warn("Redis 未启用，Token 无法加入黑名单", zap.String("jti", jti))
		return nil
	}
	if err := s.rdb.BlacklistToken(ctx, jti, time.Until(expiresAt)); err != nil {
		s.logger.Error("写入 Token 黑名单失败", zap.Error(err))
		return err
	}
	return nil
}

func (s *authService) CreateUser(ctx context.Context, p *access.Principal, req *dto.CreateUserRequest) (*dto.UserResponse, error) {
	if !p.HasAccess(access.Admin) {
		return nil, ErrForbidden
	}
	for _, scope := range req.Access {
		if !knownScopes[scope] {
			return nil, ErrInvalidAccess
		}
		// 只有 root 可以授予 root
		if scope == access.Root && !p.HasAccess(access.Root) {
			return nil, ErrForbidden
		}
	}

	if _, err := s.repo.User.GetByID(ctx, req.ID); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	if req.School != "" {
		if _, err := loadSchool(ctx, s.repo, s.logger, req.School); err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码加密失败", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		ID:           req.ID,
		PasswordHash: string(hash),
		Access:       datatypes.NewJSONType(req.Access),
	}
	if req.School != "" {
		user.SchoolID = &req.School
	}
	if req.Session != "" {
		user.SessionID = &req.Session
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		s.logger.Error("创建用户失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("账号已创建", zap.String("user", user.ID), zap.Strings("access", req.Access), zap.String("operator", p.User))
	resp := toUserResponse(user)
	return &resp, nil
}

func toUserResponse(u *model.User) dto.UserResponse {
	resp := dto.UserResponse{ID: u.ID, Access: u.Access.Data()}
	if u.SchoolID != nil {
		resp.School = *u.SchoolID
	}
	if u.SessionID != nil {
		resp.Session = *u.SessionID
	}
	return resp
}
