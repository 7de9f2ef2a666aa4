package model

import (
	"time"

	"gorm.io/datatypes"
)

// 志愿者与会务报名类别
const (
	ApplicationVolunteer = "volunteer"
	ApplicationCommittee = "committee"
)

// Application 公开报名表，内容原样保存
type Application struct {
	ID        string         `gorm:"type:varchar(64);primaryKey" json:"id"`
	Kind      string         `gorm:"type:varchar(20);not null;index" json:"kind"`
	Payload   datatypes.JSON `gorm:"not null" json:"payload"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (Application) TableName() string { return "applications" }
