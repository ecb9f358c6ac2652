package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/qs3c/codemorph_server/internal/model/dto"
	"github.com/qs3c/codemorph_server/internal/pkg/oauth"
	"github.com/qs3c/codemorph_server/internal/pkg/response"
	"github.com/qs3c/codemorph_server/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	stateStore  *oauth.StateStore
}

func NewAuthHandler(authService *service.AuthService, stateStore *oauth.StateStore) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		stateStore:  stateStore,
	}
}

// Register 用户注册
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.Register(&req)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	response.SuccessWithMessage(c, "注册成功，请查收验证邮件", resp)
}

// Login 用户登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.Login(&req)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	response.SuccessWithMessage(c, "登录成功", resp)
}

// VerifyEmail 验证邮箱
// POST /api/v1/auth/verify-email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req dto.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.VerifyEmail(req.Code)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	response.SuccessWithMessage(c, "邮箱验证成功", resp)
}

func respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEmailExists), errors.Is(err, service.ErrUsernameExists):
		response.DuplicateError(c, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrEmailNotVerified):
		response.AuthError(c, err.Error())
	case errors.Is(err, service.ErrInvalidVerifyCode):
		response.ParamError(c, err.Error())
	default:
		slog.Error("auth request failed", "path", c.FullPath(), "error", err)
		response.ServerError(c, "")
	}
}

// GithubAuth 跳转到 GitHub 授权页
// GET /api/v1/auth/github
func (h *AuthHandler) GithubAuth(c *gin.Context) {
	var state string
	if h.stateStore != nil {
		s, err := h.stateStore.GenerateState(c.Request.Context(), safeRedirectPath(c.Query("redirect")))
		if err != nil {
			slog.Error("generate oauth state failed", "error", err)
			response.ServerError(c, "")
			return
		}
		state = s
	} else {
		// 未配置 Redis 时无法校验 state，仅开发环境使用
		state = uuid.NewString()
	}

	c.Redirect(http.StatusTemporaryRedirect, h.authService.GetGithubAuthURL(state))
}

// GithubCallback GitHub 授权回调，首次登录自动创建账户
// GET /api/v1/auth/github/callback
func (h *AuthHandler) GithubCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		response.ParamError(c, "缺少授权码")
		return
	}

	var redirect string
	if h.stateStore != nil {
		data, err := h.stateStore.ConsumeState(c.Request.Context(), c.Query("state"))
		if err != nil {
			if !errors.Is(err, oauth.ErrInvalidState) {
				slog.Error("consume oauth state failed", "error", err)
			}
			response.ParamError(c, "授权状态无效或已过期")
			return
		}
		redirect = data.RedirectPath
	}

	resp, err := h.authService.GithubCallback(c.Request.Context(), code)
	if err != nil {
		slog.Warn("github login failed", "error", err)
		response.AuthError(c, "GitHub 登录失败")
		return
	}
	resp.Redirect = redirect

	response.SuccessWithMessage(c, "登录成功", resp)
}

// safeRedirectPath 只接受站内路径，防止登录后跳转到外部站点
func safeRedirectPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.ContainsAny(p, "\\\r\n") {
		return ""
	}
	return p
}
