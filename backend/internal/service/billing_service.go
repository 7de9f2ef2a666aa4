package service

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"hwmun/backend/internal/access"
	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/model"
	"hwmun/backend/internal/repository"
)

// 账单条目类别
const (
	BillingTypeSession = "会场"
	BillingTypeHotel   = "住宿"
)

// BillingService 账单业务接口
type BillingService interface {
	// Detail 学校某一轮的账单；round 为空时取学校当前阶段的轮次
	Detail(ctx context.Context, p *access.Principal, school, round string) (*dto.BillingResponse, error)
}

type billingService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewBillingService 创建 BillingService 实例
func NewBillingService(repo *repository.Repository, logger *zap.Logger) BillingService {
	return &billingService{repo: repo, logger: logger}
}

func (s *billingService) Detail(ctx context.Context, p *access.Principal, schoolID, round string) (*dto.BillingResponse, error) {
	if !p.CanManageSchool(schoolID) && !p.HasAny(access.Admin, access.Finance) {
		return nil, ErrForbidden
	}
	school, err := loadSchool(ctx, s.repo, s.logger, schoolID)
	if err != nil {
		return nil, err
	}
	if round == "" {
		round = billingRound(school)
	}

	seats, err := seatMapOf(ctx, s.repo, schoolID)
	if err != nil {
		s.logger.Error("查询名额失败", zap.Error(err))
		return nil, err
	}
	reservations, err := s.repo.Reservation.ListBySchool(ctx, schoolID)
	if err != nil {
		s.logger.Error("查询住宿预订失败", zap.Error(err))
		return nil, err
	}
	b, err := newBiller(ctx, s.repo)
	if err != nil {
		s.logger.Error("加载计费目录失败", zap.Error(err))
		return nil, err
	}

	items := b.items(seats[round], reservations, round)
	return &dto.BillingResponse{
		School: schoolID,
		Round:  round,
		Items:  items,
		Total:  billingTotal(items),
	}, nil
}

// billingRound 学校当前阶段的轮次，阶段无法解析时按第一轮
func billingRound(school *model.School) string {
	if st, err := model.ParseStage(school.Stage); err == nil && st.Round != "" {
		return st.Round
	}
	return "1"
}

// biller 计费所需的会场与酒店目录
type biller struct {
	sessions []model.Session
	hotels   map[string]model.Hotel
}

func newBiller(ctx context.Context, repo *repository.Repository) (*biller, error) {
	sessions, err := newCatalog(repo.Session).All(ctx)
	if err != nil {
		return nil, err
	}
	hotels, err := repo.Hotel.List(ctx)
	if err != nil {
		return nil, err
	}
	b := &biller{sessions: sessions, hotels: make(map[string]model.Hotel, len(hotels))}
	for _, h := range hotels {
		b.hotels[h.ID] = h
	}
	return b, nil
}

// items 会场按目录顺序在前，住宿按入住日期在后；目录中不存在的会场与酒店跳过
func (b *biller) items(seats map[string]int, reservations []model.Reservation, round string) []dto.BillingItem {
	items := make([]dto.BillingItem, 0)
	for _, sess := range b.sessions {
		n := seats[sess.ID]
		if n <= 0 {
			continue
		}
		items = append(items, dto.BillingItem{
			Name:   sess.Name,
			Type:   BillingTypeSession,
			Price:  sess.Price,
			Amount: n,
			Sum:    sess.Price * n,
		})
	}
	for _, r := range reservations {
		if r.Round != round {
			continue
		}
		h, ok := b.hotels[r.HotelID]
		if !ok {
			continue
		}
		days := nights(r)
		items = append(items, dto.BillingItem{
			Name:   fmt.Sprintf("%s（%s）", h.Name, h.Type),
			Type:   BillingTypeHotel,
			Price:  h.Price,
			Amount: days,
			Sum:    h.Price * days,
		})
	}
	return items
}

// nights 入住天数，按整日四舍五入
func nights(r model.Reservation) int {
	return int(math.Round(r.CheckOut.Sub(r.CheckIn).Hours() / 24))
}

func billingTotal(items []dto.BillingItem) int {
	total := 0
	for _, it := range items {
		total += it.Sum
	}
	return total
}
