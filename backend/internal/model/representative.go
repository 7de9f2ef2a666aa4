package model

import "time"

// Representative 代表名单条目，由 startConfirm 按名额逐个生成
type Representative struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	SchoolID  string    `gorm:"type:varchar(64);not null;index" json:"school"`
	SessionID string    `gorm:"type:varchar(64);not null" json:"session"`
	Round     string    `gorm:"type:varchar(8);not null" json:"round"`
	IsLeader  bool      `gorm:"not null;default:false" json:"is_leader"`
	Withdraw  bool      `gorm:"not null;default:false" json:"withdraw"`
	Name      string    `gorm:"type:varchar(64)" json:"name,omitempty"`
	Note      string    `gorm:"type:text" json:"note,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Representative) TableName() string { return "representatives" }
