package dto

// ── 学校模块 DTO ──

// LeaderRequest 领队信息
type LeaderRequest struct {
	Name  string `json:"name"  binding:"required,max=64"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone" binding:"omitempty,max=32"`
}

// RegisterSchoolRequest 录入学校（管理员），同时创建领队账号
type RegisterSchoolRequest struct {
	Name       string         `json:"name"       binding:"required,max=128"`
	Identifier string         `json:"identifier" binding:"omitempty,max=128"`
	Type       string         `json:"type"       binding:"required,oneof=school individual foreigner-individual"`
	Leader     LeaderRequest  `json:"leader"     binding:"required"`
	Seat       map[string]int `json:"seat"       binding:"required"`
	Password   string         `json:"password"   binding:"required,min=8,max=64"`
}

// SeatRequest 名额变更：{session, round, amount} 或 {leaderAttend}
type SeatRequest struct {
	Session      string `json:"session"`
	Round        string `json:"round"`
	Amount       *int   `json:"amount"`
	LeaderAttend *bool  `json:"leaderAttend"`
}

// 阶段动作
const (
	ActionConfirmRelinquish  = "confirmRelinquish"
	ActionConfirmExchange    = "confirmExchange"
	ActionConfirmReservation = "confirmReservation"
	ActionStartConfirm       = "startConfirm"
	ActionConfirmAttend      = "confirmAttend"
	ActionConfirmRound2      = "confirmRound2"
)

// StageRequest 阶段推进请求
type StageRequest struct {
	Action string `json:"action" binding:"required,oneof=confirmRelinquish confirmExchange confirmReservation startConfirm confirmAttend confirmRound2"`
}

// PreallocationRequest 第二轮预分配；seat 为空时复制第一轮
type PreallocationRequest struct {
	Seat map[string]int `json:"seat"`
}

// SessionRequest 会场目录条目
type SessionRequest struct {
	ID               string  `json:"id"   binding:"required,max=64"`
	Name             string  `json:"name" binding:"required,max=128"`
	Type             *string `json:"type"`
	Dual             bool    `json:"dual"`
	RequiresChairman bool    `json:"requiresChairman"`
	Exchangeable     *bool   `json:"exchangeable"` // 缺省为 true
	Price            int     `json:"price" binding:"min=0"`
}

// UpdateRepresentativeRequest 修改代表信息，字段缺省表示不修改；
// 会场仅 staff.representative 可改，退会标记仅领队与 staff.representative 可改
type UpdateRepresentativeRequest struct {
	Name     *string `json:"name"     binding:"omitempty,max=64"`
	Note     *string `json:"note"     binding:"omitempty,max=2000"`
	Withdraw *bool   `json:"withdraw"`
	Session  *string `json:"session"  binding:"omitempty,max=64"`
}

// RepresentativeNoteRequest 主席团、财务、管理员修改代表备注
type RepresentativeNoteRequest struct {
	Note *string `json:"note" binding:"omitempty,max=2000"`
}
