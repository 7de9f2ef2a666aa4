package dto

import "hwmun/backend/internal/model"

// ── 认证模块响应 ──

// TokenResponse 登录成功响应
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int          `json:"expires_in"` // 有效期（秒）
	User        UserResponse `json:"user"`
}

// UserResponse 账号信息（脱敏）
type UserResponse struct {
	ID      string   `json:"id"`
	Access  []string `json:"access"`
	School  string   `json:"school,omitempty"`
	Session string   `json:"session,omitempty"`
}

// ── 学校模块响应 ──

// SchoolResponse 学校详情
type SchoolResponse struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Identifier       string           `json:"identifier,omitempty"`
	Type             model.SchoolType `json:"type"`
	Stage            string           `json:"stage"`
	Seat             model.SeatMap    `json:"seat"`
	NgQuota          map[string]int   `json:"ng-quota"`
	SeatPreallocated map[string]int   `json:"seat_preallocated,omitempty"`
	Leader           model.Leader     `json:"leader"`
	LastMsg          string           `json:"last_msg,omitempty"`
	CreatedAt        string           `json:"created_at"`
}

// StageResponse 阶段变更结果
type StageResponse struct {
	Stage string `json:"stage"`
}

// ── 交换模块响应 ──

// ExchangeSideResponse 交换一方
type ExchangeSideResponse struct {
	School  string `json:"school"`
	Name    string `json:"name"`
	Session string `json:"session"`
}

// ExchangeResponse 名额交换；待处理状态序列化为 false
type ExchangeResponse struct {
	ID        string               `json:"id"`
	From      ExchangeSideResponse `json:"from"`
	To        ExchangeSideResponse `json:"to"`
	Note      string               `json:"note"`
	State     model.ExchangeState  `json:"state"`
	CreatedAt string               `json:"created_at"`
}

// ── 日志与名单 ──

// OpLogResponse 操作日志条目
type OpLogResponse struct {
	ID        string `json:"id"`
	Workflow  string `json:"workflow"`
	Text      string `json:"text"`
	User      string `json:"user"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
	Time      string `json:"time"`
}

// RepresentativeResponse 代表名单条目
type RepresentativeResponse struct {
	ID       string `json:"id"`
	School   string `json:"school"`
	Session  string `json:"session"`
	Round    string `json:"round"`
	IsLeader bool   `json:"is_leader"`
	Withdraw bool   `json:"withdraw"`
	Name     string `json:"name,omitempty"`
	Note     string `json:"note,omitempty"`
}

// ── 酒店与缴费 ──

// HotelResponse 酒店房型
type HotelResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Price     int    `json:"price"`
	NotBefore string `json:"notBefore"`
	NotAfter  string `json:"notAfter"`
	Stock     int    `json:"stock"`
	Available int    `json:"available"`
}

// ReservationResponse 预订条目
type ReservationResponse struct {
	ID              string        `json:"id"`
	Hotel           HotelResponse `json:"hotel"`
	School          string        `json:"school"`
	Round           string        `json:"round"`
	CheckIn         string        `json:"checkIn"`
	CheckOut        string        `json:"checkOut"`
	RoomshareSchool string        `json:"roomshare_school,omitempty"`
	RoomshareState  string        `json:"roomshare_state"`
}

// PaymentResponse 缴费凭证
type PaymentResponse struct {
	ID        string   `json:"id"`
	Round     string   `json:"round"`
	Type      string   `json:"type"`
	Images    []string `json:"images"`
	CreatedAt string   `json:"created_at"`
}

// ReviewResult 缴费审核结果；邮件失败不影响阶段变更
type ReviewResult struct {
	Stage     string `json:"stage"`
	Mailed    bool   `json:"mailed"`
	MailError string `json:"mail_error,omitempty"`
}
