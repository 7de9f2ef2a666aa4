package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hwmun/backend/internal/model"
)

// SeatRepository 名额账本数据访问接口
type SeatRepository interface {
	ListBySchool(ctx context.Context, school string) ([]model.SchoolSeat, error)
	ListAll(ctx context.Context) ([]model.SchoolSeat, error)
	Get(ctx context.Context, school, round, session string) (int, error)
	// Increment 增减名额。delta<0 时以 count >= -delta 为条件，不满足返回 ErrOptimisticLock
	Increment(ctx context.Context, school, round, session string, delta int) error
	Set(ctx context.Context, school, round, session string, count int) error
	Remove(ctx context.Context, school, round, session string) error
	// ReplaceRound 整体替换某一轮的名额
	ReplaceRound(ctx context.Context, school, round string, seats map[string]int) error
	DeleteBySchool(ctx context.Context, school string) error
}

type seatRepo struct {
	db *gorm.DB
}

// NewSeatRepo 创建 SeatRepository 实例
func NewSeatRepo(db *gorm.DB) SeatRepository {
	return &seatRepo{db: db}
}

var seatKey = []clause.Column{{Name: "school_id"}, {Name: "round"}, {Name: "session_id"}}

func (r *seatRepo) ListBySchool(ctx context.Context, school string) ([]model.SchoolSeat, error) {
	var rows []model.SchoolSeat
	err := r.db.WithContext(ctx).
		Where("school_id = ?", school).
		Order("round ASC, session_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *seatRepo) ListAll(ctx context.Context) ([]model.SchoolSeat, error) {
	var rows []model.SchoolSeat
	err := r.db.WithContext(ctx).
		Where("count > 0").
		Order("school_id ASC, round ASC, session_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *seatRepo) Get(ctx context.Context, school, round, session string) (int, error) {
	var rows []model.SchoolSeat
	err := r.db.WithContext(ctx).
		Where("school_id = ? AND round = ? AND session_id = ?", school, round, session).
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return rows[0].Count, nil
}

func (r *seatRepo) Increment(ctx context.Context, school, round, session string, delta int) error {
	if delta < 0 {
		return affected(r.db.WithContext(ctx).
			Model(&model.SchoolSeat{}).
			Where("school_id = ? AND round = ? AND session_id = ? AND count >= ?", school, round, session, -delta).
			UpdateColumn("count", gorm.Expr("count + ?", delta)))
	}

	row := model.SchoolSeat{SchoolID: school, Round: round, SessionID: session, Count: delta}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   seatKey,
			DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("school_seats.count + ?", delta)}),
		}).
		Create(&row).Error
}

func (r *seatRepo) Set(ctx context.Context, school, round, session string, count int) error {
	row := model.SchoolSeat{SchoolID: school, Round: round, SessionID: session, Count: count}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   seatKey,
			DoUpdates: clause.Assignments(map[string]interface{}{"count": count}),
		}).
		Create(&row).Error
}

func (r *seatRepo) Remove(ctx context.Context, school, round, session string) error {
	return r.db.WithContext(ctx).
		Where("school_id = ? AND round = ? AND session_id = ?", school, round, session).
		Delete(&model.SchoolSeat{}).Error
}

func (r *seatRepo) ReplaceRound(ctx context.Context, school, round string, seats map[string]int) error {
	if err := r.db.WithContext(ctx).
		Where("school_id = ? AND round = ?", school, round).
		Delete(&model.SchoolSeat{}).Error; err != nil {
		return err
	}
	rows := make([]model.SchoolSeat, 0, len(seats))
	for session, n := range seats {
		if n <= 0 {
			continue
		}
		rows = append(rows, model.SchoolSeat{SchoolID: school, Round: round, SessionID: session, Count: n})
	}
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *seatRepo) DeleteBySchool(ctx context.Context, school string) error {
	return r.db.WithContext(ctx).Where("school_id = ?", school).Delete(&model.SchoolSeat{}).Error
}
