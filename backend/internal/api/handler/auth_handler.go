package handler

import (
	"github.com/gin-gonic/gin"

	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/service"
	"hwmun/backend/pkg/response"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Login 登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, result)
}

// Logout 登出，当前 Token 加入黑名单
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if _, ok := MustGetPrincipal(c); !ok {
		return
	}
	jti, exp := tokenMeta(c)
	if err := h.authSvc.Logout(c.Request.Context(), jti, exp); err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, nil)
}

// CreateUser 创建登录账号
// POST /api/v1/users
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	user, err := h.authSvc.CreateUser(c.Request.Context(), p, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, user)
}
