package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/codemorph_server/internal/pkg/response"
)

const InternalTokenHeader = "X-Internal-Token"

// InternalToken 内部接口鉴权（支付回调、管理员充值）
// token 未配置时拒绝所有请求
func InternalToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(InternalTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			response.PermissionError(c, "")
			c.Abort()
			return
		}
		c.Next()
	}
}
