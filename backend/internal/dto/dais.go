package dto

import "encoding/json"

// ── 主席团与报名 DTO ──

// CreateDaisRequest 登记主席团成员，账号须已存在
type CreateDaisRequest struct {
	User    string `json:"user"    binding:"required,max=64"`
	Name    string `json:"name"    binding:"required,max=64"`
	Email   string `json:"email"   binding:"required,email"`
	Phone   string `json:"phone"   binding:"omitempty,max=32"`
	School  string `json:"school"  binding:"omitempty,max=128"`
	Session string `json:"session" binding:"omitempty,max=64"`
}

// UpdateDaisRequest 主席团本人可维护的资料
type UpdateDaisRequest struct {
	Phone        *string `json:"phone"        binding:"omitempty,max=32"`
	PhotoID      *string `json:"photoId"      binding:"omitempty,max=255"`
	Comment      *string `json:"comment"      binding:"omitempty,max=2000"`
	ArriveDate   *string `json:"arriveDate"   binding:"omitempty,max=32"`
	DepartDate   *string `json:"departDate"   binding:"omitempty,max=32"`
	CheckInDate  *string `json:"checkInDate"  binding:"omitempty,max=32"`
	CheckOutDate *string `json:"checkOutDate" binding:"omitempty,max=32"`
}

// DaisActionRequest 管理员操作：分配会场、启用、停用，可组合
type DaisActionRequest struct {
	Session    *string `json:"session"`
	Activate   bool    `json:"activate"`
	Deactivate bool    `json:"deactivate"`
}

// TripRequest 单程报销信息，提交后状态重置为 submitted
type TripRequest struct {
	Region     []string `json:"region"`
	Cost       *int     `json:"cost"       binding:"omitempty,min=0"`
	Credential *string  `json:"credential" binding:"omitempty,max=255"`
	Note       *string  `json:"note"       binding:"omitempty,max=2000"`
}

// ReimbursementRequest 报销资料
type ReimbursementRequest struct {
	SchoolRegion    []string     `json:"school_region"`
	ResidenceRegion []string     `json:"residence_region"`
	PaymentMethod   *string      `json:"payment_method" binding:"omitempty,max=32"`
	Bank            *string      `json:"bank"           binding:"omitempty,max=255"`
	Alipay          *string      `json:"alipay"         binding:"omitempty,max=128"`
	Inbound         *TripRequest `json:"inbound"`
	Outbound        *TripRequest `json:"outbound"`
}

// ProcessReimbursementRequest 财务处理报销：approve / reject / confirm_payment
type ProcessReimbursementRequest struct {
	Trip           string `json:"trip" binding:"required,oneof=inbound outbound"`
	Approve        bool   `json:"approve"`
	Reject         bool   `json:"reject"`
	ConfirmPayment bool   `json:"confirm_payment"`
	ReviewNote     string `json:"review_note" binding:"omitempty,max=2000"`
}

// DaisResponse 主席团资料（不含报销）
type DaisResponse struct {
	ID            string `json:"id"`
	User          string `json:"user"`
	Session       string `json:"session,omitempty"`
	Role          string `json:"role,omitempty"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	School        string `json:"school,omitempty"`
	PhotoID       string `json:"photoId,omitempty"`
	Comment       string `json:"comment,omitempty"`
	ArriveDate    string `json:"arriveDate,omitempty"`
	DepartDate    string `json:"departDate,omitempty"`
	CheckInDate   string `json:"checkInDate,omitempty"`
	CheckOutDate  string `json:"checkOutDate,omitempty"`
	AccountActive bool   `json:"account_active"`
}

// ReimbursementResponse 报销详情
type ReimbursementResponse struct {
	ID              string        `json:"id"`
	User            string        `json:"user"`
	Role            string        `json:"role,omitempty"`
	Name            string        `json:"name"`
	SchoolRegion    []string      `json:"school_region,omitempty"`
	ResidenceRegion []string      `json:"residence_region,omitempty"`
	PaymentMethod   string        `json:"payment_method,omitempty"`
	Bank            string        `json:"bank,omitempty"`
	Alipay          string        `json:"alipay,omitempty"`
	Inbound         *TripResponse `json:"inbound,omitempty"`
	Outbound        *TripResponse `json:"outbound,omitempty"`
	Mailed          *bool         `json:"mailed,omitempty"`
	MailError       string        `json:"mail_error,omitempty"`
}

// TripResponse 单程报销
type TripResponse struct {
	Region     []string `json:"region,omitempty"`
	Cost       int      `json:"cost"`
	Credential string   `json:"credential,omitempty"`
	Note       string   `json:"note,omitempty"`
	State      string   `json:"state,omitempty"`
	ReviewNote string   `json:"review_note,omitempty"`
}

// ReimbursementSummary 报销列表条目
type ReimbursementSummary struct {
	ID            string `json:"id"`
	Role          string `json:"role,omitempty"`
	User          string `json:"user"`
	Name          string `json:"name"`
	InboundState  string `json:"inbound_state,omitempty"`
	OutboundState string `json:"outbound_state,omitempty"`
}

// ApplicationResponse 报名表条目
type ApplicationResponse struct {
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt string          `json:"created_at"`
}
