package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"hwmun/backend/internal/service"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	icsContentType  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportSeats 导出名额分配总表
// GET /api/v1/export/seats
func (h *ExportHandler) ExportSeats(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportSeats(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}

	attachment(c, filename, xlsxContentType, buf.Bytes())
}

// ExportReservations 导出学校住宿预订日历
// GET /api/v1/schools/:id/reservations.ics
func (h *ExportHandler) ExportReservations(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportReservationCalendar(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	attachment(c, filename, icsContentType, buf.Bytes())
}

// attachment 以下载方式写出文件
func attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, contentType, data)
}

// ExportRepresentatives 导出代表名单
// GET /api/v1/export/representatives
func (h *ExportHandler) ExportRepresentatives(c *gin.Context) {
	h.exportRepresentatives(c, false)
}

// ExportLeaders 导出领队名单
// GET /api/v1/export/leaders
func (h *ExportHandler) ExportLeaders(c *gin.Context) {
	h.exportRepresentatives(c, true)
}

func (h *ExportHandler) exportRepresentatives(c *gin.Context, leadersOnly bool) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportRepresentatives(c.Request.Context(), p, leadersOnly)
	if err != nil {
		handleError(c, err)
		return
	}
	attachment(c, filename, xlsxContentType, buf.Bytes())
}

// ExportAllReservations 导出全部学校的住宿预订
// GET /api/v1/export/reservations
func (h *ExportHandler) ExportAllReservations(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportReservations(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}
	attachment(c, filename, xlsxContentType, buf.Bytes())
}

// ExportBillings 导出账单
// GET /api/v1/export/billings
func (h *ExportHandler) ExportBillings(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportBillings(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}
	attachment(c, filename, xlsxContentType, buf.Bytes())
}
