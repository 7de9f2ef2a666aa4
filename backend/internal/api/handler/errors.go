package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hwmun/backend/internal/model"
	"hwmun/backend/internal/service"
	"hwmun/backend/pkg/response"
)

// errorMapping 业务错误 → HTTP 状态与业务码
// 业务码按模块分段：11 认证 / 12 学校与阶段 / 13 名额 / 14 交换 / 15 住宿 / 16 缴费 / 17 导出 / 18 主席团与报名
type errorMapping struct {
	err    error
	status int
	code   int
}

var errorTable = []errorMapping{
	{service.ErrForbidden, http.StatusForbidden, 10003},
	{service.ErrInvalidAction, http.StatusBadRequest, 10001},

	{service.ErrInvalidCredentials, http.StatusUnauthorized, 11001},
	{service.ErrUserExists, http.StatusConflict, 11002},
	{service.ErrInvalidAccess, http.StatusBadRequest, 11003},

	{service.ErrSchoolNotFound, http.StatusNotFound, 12001},
	{service.ErrStageConflict, http.StatusConflict, 12002},
	{service.ErrNotSchoolType, http.StatusConflict, 12003},
	{service.ErrDualSessionOdd, http.StatusConflict, 12004},
	{service.ErrRoomshareUnresolved, http.StatusConflict, 12005},
	{model.ErrInvalidStage, http.StatusBadRequest, 12006},
	{service.ErrRepresentativeNotFound, http.StatusNotFound, 12007},

	{service.ErrInsufficientSeats, http.StatusConflict, 13001},
	{service.ErrInvalidAmount, http.StatusBadRequest, 13002},
	{service.ErrInvalidSession, http.StatusBadRequest, 13003},
	{service.ErrInvalidRound, http.StatusBadRequest, 13004},
	{service.ErrNoPreallocation, http.StatusConflict, 13005},
	{service.ErrReservedSession, http.StatusBadRequest, 13006},

	{service.ErrExchangeNotFound, http.StatusNotFound, 14001},
	{service.ErrExchangeSelf, http.StatusBadRequest, 14002},
	{service.ErrExchangeProcessed, http.StatusConflict, 14003},
	{service.ErrExchangeUnavailable, http.StatusConflict, 14004},
	{service.ErrExchangeConflict, http.StatusConflict, 14005},
	{service.ErrOverbid, http.StatusConflict, 14006},

	{service.ErrHotelNotFound, http.StatusNotFound, 15001},
	{service.ErrReservationNotFound, http.StatusNotFound, 15002},
	{service.ErrInvalidDates, http.StatusBadRequest, 15003},
	{service.ErrRoomsGone, http.StatusGone, 15004},
	{service.ErrStockConflict, http.StatusConflict, 15005},
	{service.ErrRoomshareState, http.StatusConflict, 15006},
	{service.ErrRoomshareSelf, http.StatusBadRequest, 15007},

	{service.ErrPaymentStage, http.StatusPreconditionFailed, 16001},

	{service.ErrExportGenerateFail, http.StatusInternalServerError, 17001},

	{service.ErrDaisNotFound, http.StatusNotFound, 18001},
	{service.ErrDaisExists, http.StatusConflict, 18002},
	{service.ErrUserNotFound, http.StatusBadRequest, 18003},
	{service.ErrTripLocked, http.StatusBadRequest, 18004},
	{service.ErrDaisConflict, http.StatusConflict, 18005},
	{service.ErrNoDaisAction, http.StatusBadRequest, 18006},
	{service.ErrInvalidReview, http.StatusBadRequest, 18007},
	{service.ErrInvalidApplication, http.StatusBadRequest, 18008},
}

// handleError 按错误表写出响应，未登记的错误一律 500
func handleError(c *gin.Context, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			response.Error(c, m.status, m.code, m.err.Error())
			return
		}
	}
	_ = c.Error(err)
	response.InternalError(c)
}
