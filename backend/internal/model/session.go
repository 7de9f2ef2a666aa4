package model

import "strings"

// 领队占位会场：二者互斥，学校恰好持有其中之一
const (
	SessionLeaderRep    = "_leader_r"  // 代表兼任领队
	SessionLeaderNonRep = "_leader_nr" // 非代表领队
)

// Session 会场（委员会）目录项
type Session struct {
	ID               string  `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name             string  `gorm:"type:varchar(128);not null" json:"name"`
	Type             *string `gorm:"type:varchar(32)" json:"type"`
	Dual             bool    `gorm:"not null;default:false" json:"dual"`
	Reserved         bool    `gorm:"not null;default:false" json:"reserved"`
	RequiresChairman bool    `gorm:"not null;default:false" json:"requiresChairman"`
	Exchangeable     bool    `gorm:"not null" json:"exchangeable"`
	Price            int     `gorm:"not null;default:0" json:"price"`
}

func (Session) TableName() string { return "sessions" }

// IsInternal 以下划线开头的会场为系统内部占位，不参与名额影子账本的常规对账
func IsInternal(sessionID string) bool {
	return strings.HasPrefix(sessionID, "_")
}

// LeaderSessions 预置的领队会场
func LeaderSessions() []Session {
	return []Session{
		{ID: SessionLeaderNonRep, Name: "非代表领队", Reserved: true},
		{ID: SessionLeaderRep, Name: "代表兼任领队", Reserved: true},
	}
}
