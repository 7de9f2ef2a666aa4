package model

import "time"

// OpLog 学校维度的操作日志
type OpLog struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	SchoolID  string    `gorm:"type:varchar(64);not null;index:idx_op_log_school" json:"school"`
	Workflow  string    `gorm:"type:varchar(32);not null;index:idx_op_log_school" json:"workflow"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	User      string    `gorm:"type:varchar(64)" json:"user"`
	IP        string    `gorm:"type:varchar(64)" json:"ip"`
	UserAgent string    `gorm:"type:varchar(255)" json:"user_agent"`
	Time      time.Time `gorm:"not null" json:"time"`
}

func (OpLog) TableName() string { return "op_logs" }
