package model

import "gorm.io/datatypes"

// 报销行程
const (
	TripInbound  = "inbound"
	TripOutbound = "outbound"
)

// 报销行程状态
const (
	TripSubmitted = "submitted"
	TripApproved  = "approved"
	TripRejected  = "rejected"
	TripCompleted = "completed"
)

// Trip 单程交通报销
type Trip struct {
	Region     []string `json:"region,omitempty"`
	Cost       int      `json:"cost"`
	Credential string   `json:"credential,omitempty"`
	Note       string   `json:"note,omitempty"`
	State      string   `json:"state,omitempty"`
	ReviewNote string   `json:"review_note,omitempty"`
}

// Locked 审核通过或已打款后申请人不能再修改
func (t *Trip) Locked() bool {
	return t != nil && (t.State == TripApproved || t.State == TripCompleted)
}

// Reimbursement 主席团差旅报销
type Reimbursement struct {
	SchoolRegion    []string `json:"school_region,omitempty"`
	ResidenceRegion []string `json:"residence_region,omitempty"`
	PaymentMethod   string   `json:"payment_method,omitempty"`
	Bank            string   `json:"bank,omitempty"`
	Alipay          string   `json:"alipay,omitempty"`
	Inbound         *Trip    `json:"inbound,omitempty"`
	Outbound        *Trip    `json:"outbound,omitempty"`
}

// Trip 按行程名取出对应行程，不存在时返回 nil
func (r *Reimbursement) Trip(name string) *Trip {
	switch name {
	case TripInbound:
		return r.Inbound
	case TripOutbound:
		return r.Outbound
	}
	return nil
}

// SetTrip 写入行程
func (r *Reimbursement) SetTrip(name string, t *Trip) {
	switch name {
	case TripInbound:
		r.Inbound = t
	case TripOutbound:
		r.Outbound = t
	}
}

// Submitted 至少有一程提交过报销
func (r *Reimbursement) Submitted() bool {
	return (r.Inbound != nil && r.Inbound.State != "") || (r.Outbound != nil && r.Outbound.State != "")
}

// Dais 主席团成员，与一个登录账号对应
type Dais struct {
	ID            string                            `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID        string                            `gorm:"type:varchar(64);not null;uniqueIndex" json:"user"`
	SessionID     string                            `gorm:"type:varchar(64)" json:"session,omitempty"`
	Role          string                            `gorm:"type:varchar(160)" json:"role,omitempty"`
	Name          string                            `gorm:"type:varchar(64);not null" json:"name"`
	Email         string                            `gorm:"type:varchar(128);not null" json:"email"`
	Phone         string                            `gorm:"type:varchar(32)" json:"phone,omitempty"`
	School        string                            `gorm:"type:varchar(128)" json:"school,omitempty"`
	PhotoID       string                            `gorm:"type:varchar(255)" json:"photoId,omitempty"`
	Comment       string                            `gorm:"type:text" json:"comment,omitempty"`
	ArriveDate    string                            `gorm:"type:varchar(32)" json:"arriveDate,omitempty"`
	DepartDate    string                            `gorm:"type:varchar(32)" json:"departDate,omitempty"`
	CheckInDate   string                            `gorm:"type:varchar(32)" json:"checkInDate,omitempty"`
	CheckOutDate  string                            `gorm:"type:varchar(32)" json:"checkOutDate,omitempty"`
	Reimbursement datatypes.JSONType[Reimbursement] `json:"reimbursement"`
	Version       int                               `gorm:"not null;default:0" json:"-"`
	BaseModel
}

func (Dais) TableName() string { return "daises" }
