package handler

import (
	"github.com/gin-gonic/gin"

	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/service"
	"hwmun/backend/pkg/response"
)

// ExchangeHandler 名额交换 HTTP 处理器
type ExchangeHandler struct {
	exchangeSvc service.ExchangeService
}

// NewExchangeHandler 创建 ExchangeHandler
func NewExchangeHandler(exchangeSvc service.ExchangeService) *ExchangeHandler {
	return &ExchangeHandler{exchangeSvc: exchangeSvc}
}

// ListExchanges 交换列表
// GET /api/v1/exchanges?from=&to=&state=
func (h *ExchangeHandler) ListExchanges(c *gin.Context) {
	var q dto.ExchangeListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	list, err := h.exchangeSvc.List(c.Request.Context(), p, &q)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ProposeExchange 发起交换
// POST /api/v1/exchanges
func (h *ExchangeHandler) ProposeExchange(c *gin.Context) {
	var req dto.CreateExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	ex, err := h.exchangeSvc.Propose(c.Request.Context(), p, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, ex)
}

// RespondExchange 接受 / 拒绝 / 撤回，返回调用方最新名额表
// POST /api/v1/exchanges/:id
func (h *ExchangeHandler) RespondExchange(c *gin.Context) {
	var req dto.RespondExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	seats, err := h.exchangeSvc.Respond(c.Request.Context(), p, c.Param("id"), req.Action)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, seats)
}
