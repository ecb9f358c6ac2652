package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/codemorph_server/config"
	"github.com/qs3c/codemorph_server/internal/api/handler"
	"github.com/qs3c/codemorph_server/internal/api/middleware"
	"github.com/qs3c/codemorph_server/internal/pkg/logger"
	"github.com/qs3c/codemorph_server/internal/pkg/metrics"
)

// Handlers 路由用到的全部 handler
type Handlers struct {
	Auth        *handler.AuthHandler
	User        *handler.UserHandler
	Convert     *handler.ConvertHandler
	Dashboard   *handler.DashboardHandler
	Transaction *handler.TransactionHandler
	Share       *handler.ShareHandler
	Payment     *handler.PaymentHandler
	WebSocket   *handler.WebSocketHandler
}

type Router struct {
	handlers     Handlers
	convertLimit middleware.Limiter
	log          *slog.Logger
	cfg          *config.Config
}

// NewRouter convertLimit 为 nil 时转换接口不限流
func NewRouter(handlers Handlers, convertLimit middleware.Limiter, log *slog.Logger, cfg *config.Config) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		handlers:     handlers,
		convertLimit: convertLimit,
		log:          log,
		cfg:          cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	h := r.handlers

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinLogger(r.log))
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", h.WebSocket.Handle)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/verify-email", h.Auth.VerifyEmail)
			auth.GET("/github", h.Auth.GithubAuth)
			auth.GET("/github/callback", h.Auth.GithubCallback)
		}

		// 公开接口 - 语言列表
		api.GET("/languages", middleware.OptionalAuth(r.cfg.JWT.Secret), h.Convert.Languages)

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			// 用户
			user := authenticated.Group("/user")
			{
				user.GET("/profile", h.User.GetProfile)
				user.PUT("/profile", h.User.UpdateProfile)
			}

			// 转换
			convert := []gin.HandlerFunc{h.Convert.Convert}
			if r.convertLimit != nil {
				convert = append([]gin.HandlerFunc{middleware.RateLimit(r.convertLimit)}, convert...)
			}
			authenticated.POST("/convert", convert...)

			authenticated.GET("/dashboard/summary", h.Dashboard.Summary)
			authenticated.GET("/transactions", h.Transaction.List)

			// 积分共享
			shares := authenticated.Group("/shared-credits")
			{
				shares.POST("", h.Share.Create)
				shares.GET("/sent", h.Share.ListSent)
				shares.GET("/received", h.Share.ListReceived)
			}

			authenticated.GET("/payments", h.Payment.History)
		}

		// 内部接口：支付网关与运维
		internal := api.Group("")
		internal.Use(middleware.InternalToken(r.cfg.Admin.Token))
		{
			internal.POST("/webhooks/payment", h.Payment.Webhook)
			internal.POST("/admin/topup", h.Payment.TopUp)
		}
	}

	return engine
}
