package handler

import (
	"github.com/gin-gonic/gin"

	"hwmun/backend/internal/service"
	"hwmun/backend/pkg/response"
)

// ApplicationHandler 志愿者与会务报名 HTTP 处理器
type ApplicationHandler struct {
	appSvc service.ApplicationService
}

// NewApplicationHandler 创建 ApplicationHandler
func NewApplicationHandler(appSvc service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{appSvc: appSvc}
}

// Submit 公开报名，kind 由路由决定
// POST /api/v1/volunteers | /api/v1/committees
func (h *ApplicationHandler) Submit(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			response.BadRequest(c, 10001, "参数校验失败")
			return
		}
		id, err := h.appSvc.Submit(c.Request.Context(), kind, raw)
		if err != nil {
			handleError(c, err)
			return
		}
		response.OK(c, gin.H{"id": id})
	}
}

// List 报名表列表
// GET /api/v1/volunteers | /api/v1/committees
func (h *ApplicationHandler) List(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := MustGetPrincipal(c)
		if !ok {
			return
		}
		list, err := h.appSvc.List(c.Request.Context(), p, kind)
		if err != nil {
			handleError(c, err)
			return
		}
		response.OK(c, gin.H{"list": list})
	}
}
