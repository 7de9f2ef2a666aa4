package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/service"
	"hwmun/backend/pkg/response"
)

// SchoolHandler 学校模块 HTTP 处理器（含操作日志、代表名单、影子账本维护）
type SchoolHandler struct {
	schoolSvc service.SchoolService
	stageSvc  service.StageService
	opLogSvc  service.OpLogService
	repSvc    service.RepresentativeService
}

// NewSchoolHandler 创建 SchoolHandler
func NewSchoolHandler(
	schoolSvc service.SchoolService,
	stageSvc service.StageService,
	opLogSvc service.OpLogService,
	repSvc service.RepresentativeService,
) *SchoolHandler {
	return &SchoolHandler{
		schoolSvc: schoolSvc,
		stageSvc:  stageSvc,
		opLogSvc:  opLogSvc,
		repSvc:    repSvc,
	}
}

// ListSchools 学校列表，可按阶段筛选
// GET /api/v1/schools?stage=1.exchange
func (h *SchoolHandler) ListSchools(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	list, err := h.schoolSvc.List(c.Request.Context(), p, c.Query("stage"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// RegisterSchool 录入学校
// POST /api/v1/schools
func (h *SchoolHandler) RegisterSchool(c *gin.Context) {
	var req dto.RegisterSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	school, err := h.schoolSvc.Register(c.Request.Context(), p, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, school)
}

// GetSchool 学校详情
// GET /api/v1/schools/:id
func (h *SchoolHandler) GetSchool(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	school, err := h.schoolSvc.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, school)
}

// DeleteSchool 删除学校及其全部数据
// DELETE /api/v1/schools/:id
func (h *SchoolHandler) DeleteSchool(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	if err := h.stageSvc.Nuke(c.Request.Context(), p, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, nil)
}

// SyncQuota 以名额账本为准重建影子账本
// POST /api/v1/schools/:id/quota/sync
func (h *SchoolHandler) SyncQuota(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	summary, err := h.schoolSvc.Resync(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"ng-quota": summary})
}

// QuotaErrors 影子账本诊断记录
// GET /api/v1/schools/:id/quota/errors
func (h *SchoolHandler) QuotaErrors(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	list, err := h.schoolSvc.QuotaErrors(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ListLogs 学校操作日志
// GET /api/v1/schools/:id/logs
func (h *SchoolHandler) ListLogs(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	logs, err := h.opLogSvc.List(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	list := make([]dto.OpLogResponse, 0, len(logs))
	for _, l := range logs {
		list = append(list, dto.OpLogResponse{
			ID:        l.ID,
			Workflow:  l.Workflow,
			Text:      l.Text,
			User:      l.User,
			IP:        l.IP,
			UserAgent: l.UserAgent,
			Time:      l.Time.Format(time.RFC3339),
		})
	}
	response.OK(c, gin.H{"list": list})
}

// ListRepresentatives 代表名单
// GET /api/v1/schools/:id/representatives
func (h *SchoolHandler) ListRepresentatives(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	list, err := h.repSvc.List(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// UpdateRepresentative 修改本校代表
// PATCH /api/v1/schools/:id/representatives/:rid
func (h *SchoolHandler) UpdateRepresentative(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	var req dto.UpdateRepresentativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	rep, err := h.repSvc.Update(c.Request.Context(), p, c.Param("id"), c.Param("rid"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, rep)
}

// ListAllRepresentatives 跨校代表名单，可按会场筛选
// GET /api/v1/representatives?session=GA
func (h *SchoolHandler) ListAllRepresentatives(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	list, err := h.repSvc.ListAll(c.Request.Context(), p, c.Query("session"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// UpdateRepresentativeNote 修改代表备注
// PATCH /api/v1/representatives/:rid
func (h *SchoolHandler) UpdateRepresentativeNote(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	var req dto.RepresentativeNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	rep, err := h.repSvc.UpdateNote(c.Request.Context(), p, c.Param("rid"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, rep)
}
