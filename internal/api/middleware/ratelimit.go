package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/codemorph_server/internal/pkg/response"
)

// Limiter 限流器
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
}

// RateLimit 按登录用户限流，未登录时按客户端 IP
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userID, ok := GetUserID(c); ok {
			key = "user:" + strconv.FormatInt(userID, 10)
		}

		allowed, retryAfter := limiter.Allow(c.Request.Context(), key)
		if !allowed {
			if retryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			}
			response.RateLimited(c, "")
			c.Abort()
			return
		}

		c.Next()
	}
}
