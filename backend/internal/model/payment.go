package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Payment 学校某一轮的缴费凭证
type Payment struct {
	ID        string                       `gorm:"type:varchar(96);primaryKey" json:"id"`
	SchoolID  string                       `gorm:"type:varchar(64);not null;index" json:"school"`
	Round     string                       `gorm:"type:varchar(8);not null" json:"round"`
	Type      string                       `gorm:"type:varchar(32);not null" json:"type"`
	Images    datatypes.JSONType[[]string] `json:"images"`
	CreatedAt time.Time                    `gorm:"not null" json:"created_at"`
}

func (Payment) TableName() string { return "payments" }

// PaymentID 每校每轮仅一份凭证，重复提交覆盖
func PaymentID(schoolID, round string) string {
	return fmt.Sprintf("%s_mp%s", schoolID, round)
}
