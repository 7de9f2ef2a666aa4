package model

import (
	"encoding/json"
	"time"
)

// ExchangeState 名额交换状态；pending 以外均为终态
type ExchangeState string

const (
	ExchangeStatePending     ExchangeState = "pending"
	ExchangeStateAccepted    ExchangeState = "accepted"
	ExchangeStateRefused     ExchangeState = "refused"
	ExchangeStateCancelled   ExchangeState = "cancelled"
	ExchangeStateUnavailable ExchangeState = "unavailable"
	ExchangeStateGone        ExchangeState = "gone"
)

// MarshalJSON 待处理状态在接口中表示为 false，与前端约定一致
func (s ExchangeState) MarshalJSON() ([]byte, error) {
	if s == ExchangeStatePending || s == "" {
		return []byte("false"), nil
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON 接受 false 或状态字符串
func (s *ExchangeState) UnmarshalJSON(data []byte) error {
	if string(data) == "false" || string(data) == "null" {
		*s = ExchangeStatePending
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = ExchangeState(v)
	return nil
}

// ParseExchangeState 解析查询参数中的状态，false / 0 视为待处理
func ParseExchangeState(v string) ExchangeState {
	switch v {
	case "false", "0":
		return ExchangeStatePending
	}
	return ExchangeState(v)
}

// IsTerminal 是否为终态
func (s ExchangeState) IsTerminal() bool {
	return s != ExchangeStatePending
}

// ExchangeSide 交换的一方：学校与会场
type ExchangeSide struct {
	School  string `gorm:"type:varchar(64);not null;index" json:"school"`
	Name    string `gorm:"type:varchar(128)" json:"name"`
	Session string `gorm:"type:varchar(64);not null" json:"session"`
}

// Exchange 名额交换申请：用 From 的一个名额交换 To 的一个名额
type Exchange struct {
	ID        string        `gorm:"type:varchar(64);primaryKey" json:"id"`
	From      ExchangeSide  `gorm:"embedded;embeddedPrefix:from_" json:"from"`
	To        ExchangeSide  `gorm:"embedded;embeddedPrefix:to_" json:"to"`
	Note      string        `gorm:"type:text" json:"note"`
	State     ExchangeState `gorm:"type:varchar(20);not null;index" json:"state"`
	CreatedAt time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time     `gorm:"not null" json:"updated_at"`
}

func (Exchange) TableName() string { return "exchanges" }
