// Package testutil 仓储与业务层测试共用的内存数据库与数据构造
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hwmun/backend/internal/model"
)

// NewTestDB 打开内存 SQLite 并建表，预置两个领队会场。
// 仅保留一个连接，事务内必须使用事务句柄，否则会相互等待
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开内存数据库失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取 sql.DB 失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("AutoMigrate 失败: %v", err)
	}
	for _, s := range model.LeaderSessions() {
		s := s
		if err := db.Create(&s).Error; err != nil {
			t.Fatalf("预置领队会场失败: %v", err)
		}
	}
	return db
}

// SeedSessions 写入会场目录，dual 中列出的会场标记为双代表
func SeedSessions(t *testing.T, db *gorm.DB, ids []string, dual ...string) {
	t.Helper()
	isDual := map[string]bool{}
	for _, d := range dual {
		isDual[d] = true
	}
	for _, id := range ids {
		s := model.Session{ID: id, Name: id + " 委员会", Dual: isDual[id], Exchangeable: true}
		if err := db.Create(&s).Error; err != nil {
			t.Fatalf("写入会场 %s 失败: %v", id, err)
		}
	}
}

// SeedSchool 创建学校及其第一轮名额
func SeedSchool(t *testing.T, db *gorm.DB, id, stage string, seats map[string]int) *model.School {
	t.Helper()
	school := &model.School{
		ID:      id,
		Name:    id + " 中学",
		Type:    model.SchoolTypeSchool,
		Stage:   stage,
		NgQuota: datatypes.NewJSONType(map[string]int{}),
		Leader:  datatypes.NewJSONType(model.Leader{Name: id + " 领队", Email: id + "@school.cn"}),
	}
	if err := db.Create(school).Error; err != nil {
		t.Fatalf("创建学校 %s 失败: %v", id, err)
	}
	SeedSeats(t, db, id, "1", seats)
	return school
}

// SeedSeats 写入某一轮名额
func SeedSeats(t *testing.T, db *gorm.DB, school, round string, seats map[string]int) {
	t.Helper()
	for session, n := range seats {
		row := model.SchoolSeat{SchoolID: school, Round: round, SessionID: session, Count: n}
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("写入名额失败: %v", err)
		}
	}
}

// SeedTokens 为 (学校, 会场) 写入 n 个有效令牌
func SeedTokens(t *testing.T, db *gorm.DB, school, session string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		q := model.Quota{ID: model.NewID(), SchoolID: school, SessionID: session, Active: true}
		if err := db.Create(&q).Error; err != nil {
			t.Fatalf("写入令牌失败: %v", err)
		}
	}
}

// SeatCount 读取账本名额，缺失行视为 0
func SeatCount(t *testing.T, db *gorm.DB, school, round, session string) int {
	t.Helper()
	var rows []model.SchoolSeat
	if err := db.Where("school_id = ? AND round = ? AND session_id = ?", school, round, session).Find(&rows).Error; err != nil {
		t.Fatalf("读取名额失败: %v", err)
	}
	if len(rows) == 0 {
		return 0
	}
	return rows[0].Count
}

// ActiveTokens 统计 (学校, 会场) 的有效令牌数
func ActiveTokens(t *testing.T, db *gorm.DB, school, session string) int {
	t.Helper()
	var n int64
	if err := db.Model(&model.Quota{}).
		Where("school_id = ? AND session_id = ? AND active = ?", school, session, true).
		Count(&n).Error; err != nil {
		t.Fatalf("统计令牌失败: %v", err)
	}
	return int(n)
}

// StageOf 读取学校当前阶段
func StageOf(t *testing.T, db *gorm.DB, school string) string {
	t.Helper()
	var s model.School
	if err := db.Select("stage").Where("id = ?", school).First(&s).Error; err != nil {
		t.Fatalf("读取学校阶段失败: %v", err)
	}
	return s.Stage
}
