package handler

import (
	"github.com/gin-gonic/gin"

	"hwmun/backend/internal/service"
	"hwmun/backend/pkg/response"
)

// BillingHandler 账单 HTTP 处理器
type BillingHandler struct {
	billingSvc service.BillingService
}

// NewBillingHandler 创建 BillingHandler
func NewBillingHandler(billingSvc service.BillingService) *BillingHandler {
	return &BillingHandler{billingSvc: billingSvc}
}

// GetBilling 学校账单，round 缺省取当前阶段轮次
// GET /api/v1/schools/:id/billing?round=1
func (h *BillingHandler) GetBilling(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	bill, err := h.billingSvc.Detail(c.Request.Context(), p, c.Param("id"), c.Query("round"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, bill)
}
