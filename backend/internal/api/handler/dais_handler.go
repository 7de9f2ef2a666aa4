package handler

import (
	"github.com/gin-gonic/gin"

	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/service"
	"hwmun/backend/pkg/response"
)

// DaisHandler 主席团名册与差旅报销 HTTP 处理器
type DaisHandler struct {
	daisSvc service.DaisService
}

// NewDaisHandler 创建 DaisHandler
func NewDaisHandler(daisSvc service.DaisService) *DaisHandler {
	return &DaisHandler{daisSvc: daisSvc}
}

// ListDaises 主席团名册
// GET /api/v1/daises
func (h *DaisHandler) ListDaises(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	list, err := h.daisSvc.List(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// CreateDais 登记主席团成员
// POST /api/v1/daises
func (h *DaisHandler) CreateDais(c *gin.Context) {
	var req dto.CreateDaisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	d, err := h.daisSvc.Create(c.Request.Context(), p, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, d)
}

// GetDais 主席团资料，id 为 ~ 时取本人
// GET /api/v1/daises/:id
func (h *DaisHandler) GetDais(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	d, err := h.daisSvc.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, d)
}

// UpdateDais 修改主席团资料
// PATCH /api/v1/daises/:id
func (h *DaisHandler) UpdateDais(c *gin.Context) {
	var req dto.UpdateDaisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	d, err := h.daisSvc.Update(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, d)
}

// ActDais 分配会场、启用或停用
// POST /api/v1/daises/:id
func (h *DaisHandler) ActDais(c *gin.Context) {
	var req dto.DaisActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	d, err := h.daisSvc.Act(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, d)
}

// DeleteDais 删除主席团成员
// DELETE /api/v1/daises/:id
func (h *DaisHandler) DeleteDais(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	if err := h.daisSvc.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"message": "nuked"})
}

// ListReimbursements 已提交的报销
// GET /api/v1/dais-reimbursements
func (h *DaisHandler) ListReimbursements(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	list, err := h.daisSvc.ListReimbursements(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// GetReimbursement 报销详情
// GET /api/v1/daises/:id/reimbursement
func (h *DaisHandler) GetReimbursement(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	r, err := h.daisSvc.GetReimbursement(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, r)
}

// UpdateReimbursement 提交或修改报销
// PATCH /api/v1/daises/:id/reimbursement
func (h *DaisHandler) UpdateReimbursement(c *gin.Context) {
	var req dto.ReimbursementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	r, err := h.daisSvc.UpdateReimbursement(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, r)
}

// ProcessReimbursement 财务审核报销；打款通知失败时返回 202
// POST /api/v1/daises/:id/reimbursement/process
func (h *DaisHandler) ProcessReimbursement(c *gin.Context) {
	var req dto.ProcessReimbursementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	r, err := h.daisSvc.ProcessReimbursement(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	if r.Mailed != nil && !*r.Mailed {
		response.Accepted(c, "报销已处理，通知邮件发送失败", r)
		return
	}
	response.OK(c, r)
}
