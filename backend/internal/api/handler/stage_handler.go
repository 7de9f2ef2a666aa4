package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"hwmun/backend/internal/access"
	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/model"
	"hwmun/backend/internal/service"
	"hwmun/backend/pkg/response"
)

// StageHandler 阶段推进 HTTP 处理器
type StageHandler struct {
	stageSvc service.StageService
	seatSvc  service.SeatService
}

// NewStageHandler 创建 StageHandler
func NewStageHandler(stageSvc service.StageService, seatSvc service.SeatService) *StageHandler {
	return &StageHandler{stageSvc: stageSvc, seatSvc: seatSvc}
}

// Advance 按动作推进学校阶段
// POST /api/v1/schools/:id/stage
func (h *StageHandler) Advance(c *gin.Context) {
	var req dto.StageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	school := c.Param("id")

	// 第二轮确认同时替换名额表，一并返回
	if req.Action == dto.ActionConfirmRound2 {
		seats, err := h.seatSvc.ConfirmRound2(ctx, p, school)
		if err != nil {
			handleError(c, err)
			return
		}
		response.OK(c, gin.H{
			"stage": model.Stage{Round: "2", Phase: model.PhaseRelinquishment}.String(),
			"seat":  seats,
		})
		return
	}

	var advance func(context.Context, *access.Principal, string) (model.Stage, error)
	switch req.Action {
	case dto.ActionConfirmRelinquish:
		advance = h.stageSvc.ConfirmRelinquish
	case dto.ActionConfirmExchange:
		advance = h.stageSvc.ConfirmExchange
	case dto.ActionConfirmReservation:
		advance = h.stageSvc.ConfirmReservation
	case dto.ActionStartConfirm:
		advance = h.stageSvc.StartConfirm
	case dto.ActionConfirmAttend:
		advance = h.stageSvc.ConfirmAttend
	default:
		handleError(c, service.ErrInvalidAction)
		return
	}

	stage, err := advance(ctx, p, school)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, dto.StageResponse{Stage: stage.String()})
}
