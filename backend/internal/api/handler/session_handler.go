package handler

import (
	"github.com/gin-gonic/gin"

	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/service"
	"hwmun/backend/pkg/response"
)

// SessionHandler 会场目录 HTTP 处理器
type SessionHandler struct {
	sessionSvc service.SessionService
}

// NewSessionHandler 创建 SessionHandler
func NewSessionHandler(sessionSvc service.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// ListSessions 会场目录
// GET /api/v1/sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	list, err := h.sessionSvc.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ReplaceSessions 整体替换非保留会场
// PUT /api/v1/sessions
func (h *SessionHandler) ReplaceSessions(c *gin.Context) {
	var req []dto.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	list, err := h.sessionSvc.Replace(c.Request.Context(), p, req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}
