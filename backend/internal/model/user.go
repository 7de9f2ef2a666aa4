package model

import "gorm.io/datatypes"

// User 登录账号（领队、会务、财务、主席团）
type User struct {
	ID           string                       `gorm:"type:varchar(64);primaryKey" json:"id"`
	PasswordHash string                       `gorm:"type:varchar(255);not null" json:"-"`
	Access       datatypes.JSONType[[]string] `json:"access"`
	SchoolID     *string                      `gorm:"type:varchar(64);index" json:"school,omitempty"`
	SessionID    *string                      `gorm:"type:varchar(64)" json:"session,omitempty"`
	Reserved     bool                         `gorm:"not null;default:false" json:"reserved"`
	BaseModel
}

func (User) TableName() string { return "users" }
