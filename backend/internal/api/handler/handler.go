package handler

import "hwmun/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth        *AuthHandler
	Session     *SessionHandler
	School      *SchoolHandler
	Seat        *SeatHandler
	Stage       *StageHandler
	Exchange    *ExchangeHandler
	Reservation *ReservationHandler
	Payment     *PaymentHandler
	Export      *ExportHandler
	Billing     *BillingHandler
	Dais        *DaisHandler
	Application *ApplicationHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:        NewAuthHandler(svc.Auth),
		Session:     NewSessionHandler(svc.Session),
		School:      NewSchoolHandler(svc.School, svc.Stage, svc.OpLog, svc.Representative),
		Seat:        NewSeatHandler(svc.Seat),
		Stage:       NewStageHandler(svc.Stage, svc.Seat),
		Exchange:    NewExchangeHandler(svc.Exchange),
		Reservation: NewReservationHandler(svc.Reservation),
		Payment:     NewPaymentHandler(svc.Payment),
		Export:      NewExportHandler(svc.Export),
		Billing:     NewBillingHandler(svc.Billing),
		Dais:        NewDaisHandler(svc.Dais),
		Application: NewApplicationHandler(svc.Application),
	}
}
