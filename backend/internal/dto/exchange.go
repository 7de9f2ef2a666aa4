package dto

// ── 交换模块 DTO ──

// CreateExchangeRequest 发起交换：用本校 SelfSession 的一个名额换 Target 学校 TargetSession 的一个名额
type CreateExchangeRequest struct {
	Target        string `json:"target"        binding:"required"`
	TargetSession string `json:"targetSession" binding:"required"`
	SelfSession   string `json:"selfSession"   binding:"required"`
	Note          string `json:"note"          binding:"max=500"`
}

// 交换响应动作
const (
	ExchangeAccept = "accept"
	ExchangeRefuse = "refuse"
	ExchangeCancel = "cancel"
)

// RespondExchangeRequest 处理交换
type RespondExchangeRequest struct {
	Action string `json:"action" binding:"required,oneof=accept refuse cancel"`
}

// ExchangeListQuery 交换列表筛选；state=false 或 0 表示待处理，与响应中的表示一致
type ExchangeListQuery struct {
	From  string `form:"from"`
	To    string `form:"to"`
	State string `form:"state" binding:"omitempty,oneof=false 0 pending accepted refused cancelled unavailable gone"`
}
