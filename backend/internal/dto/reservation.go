package dto

// ── 酒店与预订 DTO ──

// CreateHotelRequest 新增酒店房型（root）
type CreateHotelRequest struct {
	Name      string `json:"name"      binding:"required,max=128"`
	Type      string `json:"type"      binding:"required,max=64"`
	Price     int    `json:"price"     binding:"min=0"`
	NotBefore string `json:"notBefore" binding:"required"` // RFC3339
	NotAfter  string `json:"notAfter"  binding:"required"`
	Stock     int    `json:"stock"     binding:"min=0"`
}

// PatchHotelRequest 调整库存到目标值
type PatchHotelRequest struct {
	Stock int `json:"stock" binding:"min=0"`
}

// ReserveItem 一间房
type ReserveItem struct {
	Hotel    string `json:"hotel"    binding:"required"`
	CheckIn  string `json:"checkIn"  binding:"required"`
	CheckOut string `json:"checkOut" binding:"required"`
}

// ReserveRequest 批量预订
type ReserveRequest struct {
	Items []ReserveItem `json:"items" binding:"required,min=1,dive"`
}

// RoomshareRequest 拼房：发起时填 school，处理时填 action
type RoomshareRequest struct {
	School string `json:"school"`
	Action string `json:"action" binding:"omitempty,oneof=accept refuse withdraw"`
}

// ── 缴费 DTO ──

// SubmitPaymentRequest 提交缴费凭证（图片为已上传的文件引用）
type SubmitPaymentRequest struct {
	Type   string   `json:"type"   binding:"required,max=32"`
	Images []string `json:"images" binding:"required,min=1,dive,required"`
}

// ReviewPaymentRequest 财务审核
type ReviewPaymentRequest struct {
	Confirm bool   `json:"confirm"`
	Reason  string `json:"reason" binding:"max=500"`
}

// BillingItem 账单条目：会场按名额计费，住宿按天数计费
type BillingItem struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Price  int    `json:"price"`
	Amount int    `json:"amount"`
	Sum    int    `json:"sum"`
}

// BillingResponse 学校某一轮的账单
type BillingResponse struct {
	School string        `json:"school"`
	Round  string        `json:"round"`
	Items  []BillingItem `json:"items"`
	Total  int           `json:"total"`
}
