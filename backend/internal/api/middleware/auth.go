package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"hwmun/backend/internal/access"
	"hwmun/backend/pkg/jwt"
	"hwmun/backend/pkg/redis"
	"hwmun/backend/pkg/response"
)

// JWTAuth JWT 认证中间件
// 从 Authorization: Bearer <token> 中提取并验证 Access Token，
// 通过后将调用方身份注入上下文（principal / token_jti / token_exp）。
// rdb 为 nil 或 Redis 出错时跳过黑名单检查
func JWTAuth(jwtMgr *jwt.Manager, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "缺少认证头")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, 10002, "认证头格式无效")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(parts[1])
		if err != nil {
			response.Unauthorized(c, 10002, "Token 无效或已过期")
			c.Abort()
			return
		}

		if rdb != nil {
			if revoked, err := rdb.IsBlacklisted(c.Request.Context(), claims.ID); err == nil && revoked {
				response.Unauthorized(c, 10002, "Token 已注销")
				c.Abort()
				return
			}
		}

		c.Set("principal", &access.Principal{
			User:      claims.UserID,
			School:    claims.School,
			Session:   claims.Session,
			Access:    claims.Access,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Set("token_jti", claims.ID)
		if claims.ExpiresAt != nil {
			c.Set("token_exp", claims.ExpiresAt.Time)
		}

		c.Next()
	}
}

// AccessFilter 权限域中间件
// 调用方持有任一所需权限域即放行（按 access.Match 的层级前缀规则）
func AccessFilter(required ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get("principal")
		if !exists {
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		}

		p, ok := v.(*access.Principal)
		if !ok || !p.HasAny(required...) {
			response.Forbidden(c, 10003, "无权限访问")
			c.Abort()
			return
		}

		c.Next()
	}
}
