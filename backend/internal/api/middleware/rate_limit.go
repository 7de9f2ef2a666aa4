package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hwmun/backend/internal/access"
	"hwmun/backend/pkg/redis"
	"hwmun/backend/pkg/response"
)

// RateLimit 基于 Redis 滑动窗口的速率限制
// 已认证请求按账号计数，其余按客户端 IP；rdb 为 nil 或 Redis 出错时降级放行
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}

		subject := c.ClientIP()
		if v, ok := c.Get("principal"); ok {
			if p, ok := v.(*access.Principal); ok {
				subject = p.User
			}
		}

		key := fmt.Sprintf("rate_limit:%s:%s:%s", subject, c.Request.Method, c.FullPath())
		allowed, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			c.Next()
			return
		}

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, 10004, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}
