package handler

import (
	"github.com/gin-gonic/gin"

	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/service"
	"hwmun/backend/pkg/response"
)

// PaymentHandler 缴费 HTTP 处理器
type PaymentHandler struct {
	paymentSvc service.PaymentService
}

// NewPaymentHandler 创建 PaymentHandler
func NewPaymentHandler(paymentSvc service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// ListPayments 缴费凭证列表
// GET /api/v1/schools/:id/payments
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	list, err := h.paymentSvc.List(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// SubmitPayment 提交缴费凭证
// POST /api/v1/schools/:id/payments
func (h *PaymentHandler) SubmitPayment(c *gin.Context) {
	var req dto.SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	stage, err := h.paymentSvc.Submit(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, dto.StageResponse{Stage: stage.String()})
}

// ReviewPayment 财务审核；通知邮件失败时返回 202
// PATCH /api/v1/schools/:id/payments
func (h *PaymentHandler) ReviewPayment(c *gin.Context) {
	var req dto.ReviewPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	result, err := h.paymentSvc.Review(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	if !result.Mailed {
		response.Accepted(c, "审核已完成，通知邮件发送失败", result)
		return
	}
	response.OK(c, result)
}
