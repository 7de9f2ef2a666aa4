package handler

import (
	"github.com/gin-gonic/gin"

	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/service"
	"hwmun/backend/pkg/response"
)

// SeatHandler 名额账本 HTTP 处理器
type SeatHandler struct {
	seatSvc service.SeatService
}

// NewSeatHandler 创建 SeatHandler
func NewSeatHandler(seatSvc service.SeatService) *SeatHandler {
	return &SeatHandler{seatSvc: seatSvc}
}

// GetSeat 学校名额表
// GET /api/v1/schools/:id/seat
func (h *SeatHandler) GetSeat(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	seats, err := h.seatSvc.SeatMap(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, seats)
}

// UpdateSeat 释放 / 分配名额，或切换领队是否兼任代表
// POST /api/v1/schools/:id/seat
func (h *SeatHandler) UpdateSeat(c *gin.Context) {
	var req dto.SeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	school := c.Param("id")

	if req.LeaderAttend != nil {
		seats, err := h.seatSvc.LeaderAttend(c.Request.Context(), p, school, *req.LeaderAttend)
		if err != nil {
			handleError(c, err)
			return
		}
		response.OK(c, seats)
		return
	}

	if req.Amount == nil || req.Session == "" {
		response.BadRequest(c, 10001, "session 与 amount 不能为空")
		return
	}
	round := req.Round
	if round == "" {
		round = "1"
	}

	seats, err := h.seatSvc.Relinquish(c.Request.Context(), p, school, round, req.Session, *req.Amount)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, seats)
}

// Preallocate 设置第二轮预分配名额，seat 为空时复制第一轮
// PUT /api/v1/schools/:id/preallocation
func (h *SeatHandler) Preallocate(c *gin.Context) {
	var req dto.PreallocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	seats, err := h.seatSvc.PreallocateRound2(c.Request.Context(), p, c.Param("id"), req.Seat)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"seat_preallocated": seats})
}
