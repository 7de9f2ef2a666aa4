package model

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel 通用审计字段（业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// NewID 生成实体主键。主键统一由应用侧生成，不依赖数据库默认值
func NewID() string {
	return uuid.NewString()
}

// All 返回全部需要建表的模型（测试环境 AutoMigrate 使用；生产环境走 SQL 迁移）
func All() []interface{} {
	return []interface{}{
		&School{},
		&SchoolSeat{},
		&Session{},
		&Quota{},
		&QuotaError{},
		&Exchange{},
		&OpLog{},
		&Representative{},
		&Hotel{},
		&Reservation{},
		&Payment{},
		&User{},
		&Dais{},
		&Application{},
	}
}
