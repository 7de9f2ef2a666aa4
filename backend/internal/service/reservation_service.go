package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hwmun/backend/internal/access"
	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/model"
	"hwmun/backend/internal/repository"
	pkgerrors "hwmun/backend/pkg/errors"
)

// ── 住宿业务错误 ──

var (
	ErrHotelNotFound       = errors.New("酒店房型不存在")
	ErrReservationNotFound = errors.New("预订不存在")
	ErrInvalidDates        = errors.New("入住日期无效")
	ErrRoomsGone           = errors.New("房间已订完")
	ErrStockConflict       = errors.New("库存已变动，请刷新后重试")
	ErrRoomshareState      = errors.New("拼房状态不允许该操作")
	ErrRoomshareSelf       = errors.New("不能与本校拼房")
)

// ReservationService 酒店与住宿预订业务接口
type ReservationService interface {
	ListHotels(ctx context.Context) ([]dto.HotelResponse, error)
	CreateHotel(ctx context.Context, p *access.Principal, req *dto.CreateHotelRequest) (*dto.HotelResponse, error)
	// AdjustStock 调整总库存到 stock，已售出的房间不回收
	AdjustStock(ctx context.Context, p *access.Principal, id string, stock int) (*dto.HotelResponse, error)
	Reserve(ctx context.Context, p *access.Principal, school string, items []dto.ReserveItem) ([]dto.ReservationResponse, error)
	List(ctx context.Context, p *access.Principal, school string) ([]dto.ReservationResponse, error)
	// Roomshare 发起（填 school）、接受 / 拒绝（被邀请方）、撤回（发起方）
	Roomshare(ctx context.Context, p *access.Principal, school, id string, req *dto.RoomshareRequest) (*dto.ReservationResponse, error)
}

type reservationService struct {
	repo   *repository.Repository
	opLog  OpLogService
	logger *zap.Logger
}

// NewReservationService 创建 ReservationService 实例
func NewReservationService(repo *repository.Repository, opLog OpLogService, logger *zap.Logger) ReservationService {
	return &reservationService{repo: repo, opLog: opLog, logger: logger}
}

// ────────────────────── 酒店 ──────────────────────

func (s *reservationService) ListHotels(ctx context.Context) ([]dto.HotelResponse, error) {
	hotels, err := s.repo.Hotel.List(ctx)
	if err != nil {
		s.logger.Error("查询酒店列表失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.HotelResponse, 0, len(hotels))
	for i := range hotels {
		result = append(result, toHotelResponse(&hotels[i]))
	}
	return result, nil
}

func (s *reservationService) CreateHotel(ctx context.Context, p *access.Principal, req *dto.CreateHotelRequest) (*dto.HotelResponse, error) {
	if !p.HasAccess(access.Root) {
		return nil, ErrForbidden
	}
	notBefore, err1 := parseDate(req.NotBefore)
	notAfter, err2 := parseDate(req.NotAfter)
	if err1 != nil || err2 != nil || !notBefore.Before(notAfter) {
		return nil, ErrInvalidDates
	}

	hotel := &model.Hotel{
		ID:        model.NewID(),
		Name:      req.Name,
		Type:      req.Type,
		Price:     req.Price,
		NotBefore: notBefore,
		NotAfter:  notAfter,
		Stock:     req.Stock,
		Available: req.Stock,
	}
	if err := s.repo.Hotel.Create(ctx, hotel); err != nil {
		s.logger.Error("创建酒店房型失败", zap.Error(err))
		return nil, err
	}
	resp := toHotelResponse(hotel)
	return &resp, nil
}

func (s *reservationService) AdjustStock(ctx context.Context, p *access.Principal, id string, stock int) (*dto.HotelResponse, error) {
	if !p.HasAccess(access.Root) {
		return nil, ErrForbidden
	}
	hotel, err := s.loadHotel(ctx, id)
	if err != nil {
		return nil, err
	}

	delta := stock - hotel.Stock
	if delta < -hotel.Available {
		delta = -hotel.Available
	}
	if delta != 0 {
		if err := s.repo.Hotel.AdjustStock(ctx, id, delta); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return nil, ErrStockConflict
			}
			s.logger.Error("调整库存失败", zap.Error(err))
			return nil, err
		}
	}

	hotel, err = s.loadHotel(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toHotelResponse(hotel)
	return &resp, nil
}

func (s *reservationService) loadHotel(ctx context.Context, id string) (*model.Hotel, error) {
	hotel, err := s.repo.Hotel.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHotelNotFound
		}
		s.logger.Error("查询酒店失败", zap.Error(err))
		return nil, err
	}
	return hotel, nil
}

// ────────────────────── 预订 ──────────────────────

// Reserve 逐间扣减可用房，任一失败即归还已扣减的房间
func (s *reservationService) Reserve(ctx context.Context, p *access.Principal, schoolID string, items []dto.ReserveItem) ([]dto.ReservationResponse, error) {
	if !p.CanManageSchool(schoolID) {
		return nil, ErrForbidden
	}
	school, err := loadSchool(ctx, s.repo, s.logger, schoolID)
	if err != nil {
		return nil, err
	}
	stage, err := model.ParseStage(school.Stage)
	if err != nil {
		return nil, ErrStageConflict
	}
	if stage.Phase != model.PhaseReservation && !p.IsStaff() {
		return nil, ErrStageConflict
	}

	// 1. 校验日期窗口
	reservations := make([]model.Reservation, 0, len(items))
	hotels := map[string]*model.Hotel{}
	now := time.Now()
	for _, item := range items {
		hotel, ok := hotels[item.Hotel]
		if !ok {
			hotel, err = s.loadHotel(ctx, item.Hotel)
			if err != nil {
				return nil, err
			}
			hotels[item.Hotel] = hotel
		}
		checkIn, err1 := parseDate(item.CheckIn)
		checkOut, err2 := parseDate(item.CheckOut)
		if err1 != nil || err2 != nil || !checkIn.Before(checkOut) ||
			checkIn.Before(hotel.NotBefore) || checkOut.After(hotel.NotAfter) {
			return nil, ErrInvalidDates
		}
		reservations = append(reservations, model.Reservation{
			ID:        model.NewID(),
			HotelID:   hotel.ID,
			SchoolID:  schoolID,
			Round:     stage.Round,
			CheckIn:   checkIn,
			CheckOut:  checkOut,
			CreatedAt: now,
		})
	}

	// 2. 逐间扣减
	taken := make([]string, 0, len(reservations))
	for _, r := range reservations {
		if err := s.repo.Hotel.Take(ctx, r.HotelID); err != nil {
			s.giveBack(ctx, taken)
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return nil, ErrRoomsGone
			}
			s.logger.Error("扣减房间失败", zap.Error(err))
			return nil, err
		}
		taken = append(taken, r.HotelID)
	}

	if err := s.repo.Reservation.Create(ctx, reservations); err != nil {
		s.giveBack(ctx, taken)
		s.logger.Error("写入预订失败", zap.Error(err))
		return nil, err
	}

	s.opLog.Write(ctx, p, schoolID, WorkflowReservation, fmt.Sprintf("预订房间 %d 间", len(reservations)))

	result := make([]dto.ReservationResponse, 0, len(reservations))
	for i := range reservations {
		result = append(result, toReservationResponse(&reservations[i], hotels[reservations[i].HotelID]))
	}
	return result, nil
}

func (s *reservationService) giveBack(ctx context.Context, hotels []string) {
	for _, id := range hotels {
		if err := s.repo.Hotel.Give(ctx, id, 1); err != nil {
			s.logger.Error("归还房间失败", zap.String("hotel", id), zap.Error(err))
		}
	}
}

func (s *reservationService) List(ctx context.Context, p *access.Principal, school string) ([]dto.ReservationResponse, error) {
	if !p.CanManageSchool(school) && !p.HasAccess(access.Finance) {
		return nil, ErrForbidden
	}
	list, err := s.repo.Reservation.ListBySchool(ctx, school)
	if err != nil {
		s.logger.Error("查询预订失败", zap.Error(err))
		return nil, err
	}
	hotels, err := s.hotelIndex(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]dto.ReservationResponse, 0, len(list))
	for i := range list {
		result = append(result, toReservationResponse(&list[i], hotels[list[i].HotelID]))
	}
	return result, nil
}

func (s *reservationService) hotelIndex(ctx context.Context) (map[string]*model.Hotel, error) {
	hotels, err := s.repo.Hotel.List(ctx)
	if err != nil {
		s.logger.Error("查询酒店列表失败", zap.Error(err))
		return nil, err
	}
	index := make(map[string]*model.Hotel, len(hotels))
	for i := range hotels {
		index[hotels[i].ID] = &hotels[i]
	}
	return index, nil
}

// ────────────────────── 拼房 ──────────────────────

func (s *reservationService) Roomshare(ctx context.Context, p *access.Principal, schoolID, id string, req *dto.RoomshareRequest) (*dto.ReservationResponse, error) {
	if !p.CanManageSchool(schoolID) {
		return nil, ErrForbidden
	}
	school, err := loadSchool(ctx, s.repo, s.logger, schoolID)
	if err != nil {
		return nil, err
	}
	if stage, err := model.ParseStage(school.Stage); err != nil || (stage.Phase != model.PhaseReservation && !p.IsStaff()) {
		return nil, ErrStageConflict
	}

	r, err := s.repo.Reservation.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		s.logger.Error("查询预订失败", zap.Error(err))
		return nil, err
	}

	switch req.Action {
	case "":
		err = s.proposeRoomshare(ctx, p, schoolID, r, req.School)
	case "accept", "refuse":
		err = s.respondRoomshare(ctx, p, schoolID, r, req.Action == "accept")
	case "withdraw":
		err = s.withdrawRoomshare(ctx, p, schoolID, r)
	default:
		return nil, ErrInvalidAction
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Reservation.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("查询预订失败", zap.Error(err))
		return nil, err
	}
	hotel, _ := s.repo.Hotel.GetByID(ctx, updated.HotelID)
	resp := toReservationResponse(updated, hotel)
	return &resp, nil
}

func (s *reservationService) proposeRoomshare(ctx context.Context, p *access.Principal, school string, r *model.Reservation, partner string) error {
	if r.SchoolID != school {
		return ErrForbidden
	}
	if partner == "" {
		return ErrInvalidAction
	}
	if partner == school {
		return ErrRoomshareSelf
	}
	if _, err := loadSchool(ctx, s.repo, s.logger, partner); err != nil {
		return err
	}
	switch r.RoomshareState {
	case model.RoomshareNone, model.RoomshareRefused, model.RoomshareWithdrawn:
	default:
		return ErrRoomshareState
	}
	if err := s.casRoomshare(ctx, r.ID, r.RoomshareState, model.RoomsharePending, partner); err != nil {
		return err
	}
	s.opLog.Write(ctx, p, school, WorkflowReservation, fmt.Sprintf("发起拼房（%s）", r.ID))
	s.opLog.Write(ctx, p, partner, WorkflowReservation, fmt.Sprintf("收到拼房邀请（%s）", r.ID))
	return nil
}

func (s *reservationService) respondRoomshare(ctx context.Context, p *access.Principal, school string, r *model.Reservation, accept bool) error {
	if r.RoomshareSchool != school {
		return ErrForbidden
	}
	to, verb := model.RoomshareRefused, "拒绝"
	if accept {
		to, verb = model.RoomshareAccepted, "接受"
	}
	if err := s.casRoomshare(ctx, r.ID, model.RoomsharePending, to, school); err != nil {
		return err
	}
	text := fmt.Sprintf("%s拼房（%s）", verb, r.ID)
	s.opLog.Write(ctx, p, school, WorkflowReservation, text)
	s.opLog.Write(ctx, p, r.SchoolID, WorkflowReservation, text)
	return nil
}

func (s *reservationService) withdrawRoomshare(ctx context.Context, p *access.Principal, school string, r *model.Reservation) error {
	if r.SchoolID != school {
		return ErrForbidden
	}
	// 被拒绝的申请也由发起方撤回，否则该预订无法结清
	switch r.RoomshareState {
	case model.RoomsharePending, model.RoomshareAccepted, model.RoomshareRefused:
	default:
		return ErrRoomshareState
	}
	if err := s.casRoomshare(ctx, r.ID, r.RoomshareState, model.RoomshareWithdrawn, r.RoomshareSchool); err != nil {
		return err
	}
	s.opLog.Write(ctx, p, school, WorkflowReservation, fmt.Sprintf("撤回拼房（%s）", r.ID))
	return nil
}

func (s *reservationService) casRoomshare(ctx context.Context, id, from, to, partner string) error {
	if err := s.repo.Reservation.UpdateRoomshare(ctx, id, from, to, partner); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return ErrRoomshareState
		}
		s.logger.Error("更新拼房状态失败", zap.Error(err))
		return err
	}
	return nil
}

// parseDate 接受 RFC3339 或 2006-01-02
func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func toHotelResponse(h *model.Hotel) dto.HotelResponse {
	return dto.HotelResponse{
		ID:        h.ID,
		Name:      h.Name,
		Type:      h.Type,
		Price:     h.Price,
		NotBefore: formatTime(h.NotBefore),
		NotAfter:  formatTime(h.NotAfter),
		Stock:     h.Stock,
		Available: h.Available,
	}
}

func toReservationResponse(r *model.Reservation, hotel *model.Hotel) dto.ReservationResponse {
	resp := dto.ReservationResponse{
		ID:              r.ID,
		School:          r.SchoolID,
		Round:           r.Round,
		CheckIn:         formatTime(r.CheckIn),
		CheckOut:        formatTime(r.CheckOut),
		RoomshareSchool: r.RoomshareSchool,
		RoomshareState:  r.RoomshareState,
	}
	if hotel != nil {
		resp.Hotel = toHotelResponse(hotel)
	} else {
		resp.Hotel = dto.HotelResponse{ID: r.HotelID}
	}
	return resp
}
