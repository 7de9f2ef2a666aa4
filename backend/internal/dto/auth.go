package dto

// ── 认证模块 DTO ──

// LoginRequest 登录请求
type LoginRequest struct {
	User     string `json:"user"     binding:"required"`
	Password string `json:"password" binding:"required"`
}

// CreateUserRequest 创建登录账号（管理员）
type CreateUserRequest struct {
	ID       string   `json:"id"       binding:"required,min=2,max=64"`
	Password string   `json:"password" binding:"required,min=8,max=64"`
	Access   []string `json:"access"   binding:"required,min=1,dive,required"`
	School   string   `json:"school"`
	Session  string   `json:"session"`
}
