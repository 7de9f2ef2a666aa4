package handler

import (
	"github.com/gin-gonic/gin"

	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/service"
	"hwmun/backend/pkg/response"
)

// ReservationHandler 酒店与住宿预订 HTTP 处理器
type ReservationHandler struct {
	reservationSvc service.ReservationService
}

// NewReservationHandler 创建 ReservationHandler
func NewReservationHandler(reservationSvc service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationSvc: reservationSvc}
}

// ListHotels 酒店房型列表
// GET /api/v1/hotels
func (h *ReservationHandler) ListHotels(c *gin.Context) {
	list, err := h.reservationSvc.ListHotels(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// CreateHotel 新增房型
// POST /api/v1/hotels
func (h *ReservationHandler) CreateHotel(c *gin.Context) {
	var req dto.CreateHotelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	hotel, err := h.reservationSvc.CreateHotel(c.Request.Context(), p, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, hotel)
}

// PatchHotel 调整房型库存
// PATCH /api/v1/hotels/:id
func (h *ReservationHandler) PatchHotel(c *gin.Context) {
	var req dto.PatchHotelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	hotel, err := h.reservationSvc.AdjustStock(c.Request.Context(), p, c.Param("id"), req.Stock)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, hotel)
}

// ListReservations 学校预订列表
// GET /api/v1/schools/:id/reservations
func (h *ReservationHandler) ListReservations(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	list, err := h.reservationSvc.List(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// Reserve 批量预订
// POST /api/v1/schools/:id/reservations
func (h *ReservationHandler) Reserve(c *gin.Context) {
	var req dto.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	list, err := h.reservationSvc.Reserve(c.Request.Context(), p, c.Param("id"), req.Items)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, gin.H{"list": list})
}

// Roomshare 拼房：发起 / 接受 / 拒绝 / 撤回
// POST /api/v1/schools/:id/reservations/:rid/roomshare
func (h *ReservationHandler) Roomshare(c *gin.Context) {
	var req dto.RoomshareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	r, err := h.reservationSvc.Roomshare(c.Request.Context(), p, c.Param("id"), c.Param("rid"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, r)
}
