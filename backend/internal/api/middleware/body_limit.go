package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hwmun/backend/pkg/response"
)

// BodyLimit 请求体大小限制
// 缴费凭证只提交已上传文件的引用，请求体都很小
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()
	}
}
