package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"hwmun/backend/internal/access"
	"hwmun/backend/pkg/response"
)

// MustGetPrincipal 从 Gin 上下文中提取调用方身份。
// JWT 中间件未注入时写入 401 响应并返回 false，调用方应直接 return
func MustGetPrincipal(c *gin.Context) (*access.Principal, bool) {
	v, exists := c.Get("principal")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	p, ok := v.(*access.Principal)
	if !ok || p == nil || p.User == "" {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return p, true
}

// tokenMeta 当前 Token 的 jti 与过期时间，登出时写入黑名单
func tokenMeta(c *gin.Context) (string, time.Time) {
	jti := c.GetString("token_jti")
	exp, _ := c.Get("token_exp")
	t, _ := exp.(time.Time)
	return jti, t
}
