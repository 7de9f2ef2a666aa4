package model

import (
	"time"

	"gorm.io/datatypes"
)

// 名额令牌在交换过程中的临时状态
const (
	QuotaStateInExchange = "in-exchange"
	QuotaStateExchanged  = "exchanged"
	QuotaStateReverted   = "exchange-transaction-reverted"
)

// 令牌 reason 字段取值
const (
	QuotaReasonLeaderAttendance = "leader-attendance"
	QuotaReasonRelinquished     = "relinquished"
	QuotaReasonAdjusted         = "adjusted"
)

// Quota 名额影子账本中的令牌，一条记录代表一个名额
type Quota struct {
	ID        string `gorm:"type:varchar(64);primaryKey" json:"id"`
	SchoolID  string `gorm:"type:varchar(64);not null;index:idx_quota_owner" json:"school"`
	SessionID string `gorm:"type:varchar(64);not null;index:idx_quota_owner" json:"session"`
	Active    bool   `gorm:"not null" json:"active"`
	Paid      bool   `gorm:"not null;default:false" json:"paid"`
	Delegate  bool   `gorm:"not null;default:false" json:"delegate"`
	State     string `gorm:"type:varchar(40)" json:"state,omitempty"`
	Reason    string `gorm:"type:varchar(40)" json:"reason,omitempty"`
	Internal  bool   `gorm:"not null;default:false" json:"internal"`
	BaseModel
}

func (Quota) TableName() string { return "ng_quotas" }

// Importance 令牌重要度：已缴费 8 分，已指派代表 4 分
func (q *Quota) Importance() int {
	score := 0
	if q.Paid {
		score += 8
	}
	if q.Delegate {
		score += 4
	}
	return score
}

// QuotaError 影子账本诊断记录
type QuotaError struct {
	ID        string         `gorm:"type:varchar(64);primaryKey" json:"id"`
	Op        string         `gorm:"type:varchar(64);not null" json:"op"`
	SchoolID  string         `gorm:"type:varchar(64);index" json:"school"`
	Message   string         `gorm:"type:text;not null" json:"message"`
	Args      datatypes.JSON `json:"args,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (QuotaError) TableName() string { return "ng_quota_errors" }
