package model

import "time"

// Hotel 协议酒店房型
type Hotel struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(128);not null" json:"name"`
	Type      string    `gorm:"type:varchar(64);not null" json:"type"`
	Price     int       `gorm:"not null;default:0" json:"price"`
	NotBefore time.Time `gorm:"not null" json:"notBefore"`
	NotAfter  time.Time `gorm:"not null" json:"notAfter"`
	Stock     int       `gorm:"not null;default:0" json:"stock"`
	Available int       `gorm:"not null;default:0" json:"available"`
}

func (Hotel) TableName() string { return "hotels" }

// 拼房状态
const (
	RoomshareNone      = ""
	RoomsharePending   = "pending"
	RoomshareAccepted  = "accepted"
	RoomshareRefused   = "refused"
	RoomshareWithdrawn = "withdrawn"
)

// Reservation 学校的一间房预订
type Reservation struct {
	ID              string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	HotelID         string    `gorm:"type:varchar(64);not null;index" json:"hotel"`
	SchoolID        string    `gorm:"type:varchar(64);not null;index" json:"school"`
	Round           string    `gorm:"type:varchar(8);not null" json:"round"`
	CheckIn         time.Time `gorm:"not null" json:"checkIn"`
	CheckOut        time.Time `gorm:"not null" json:"checkOut"`
	RoomshareSchool string    `gorm:"type:varchar(64);index" json:"roomshare_school,omitempty"`
	RoomshareState  string    `gorm:"type:varchar(20)" json:"roomshare_state"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
}

func (Reservation) TableName() string { return "reservations" }

// Resolved 拼房是否已处理完毕
func (r *Reservation) Resolved() bool {
	switch r.RoomshareState {
	case RoomshareNone, RoomshareAccepted, RoomshareWithdrawn:
		return true
	}
	return false
}
