package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/qs3c/codemorph_server/config"
	"github.com/qs3c/codemorph_server/internal/model"
	"github.com/qs3c/codemorph_server/internal/model/dto"
	"github.com/qs3c/codemorph_server/internal/pkg/jwt"
	"github.com/qs3c/codemorph_server/internal/pkg/oauth"
	"github.com/qs3c/codemorph_server/internal/repository"
)

var (
	ErrEmailExists        = errors.New("邮箱已被注册")
	ErrUsernameExists     = errors.New("用户名已被使用")
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrEmailNotVerified   = errors.New("邮箱尚未验证")
	ErrInvalidVerifyCode  = errors.New("验证码无效或已过期")
	ErrUserNotFound       = errors.New("用户不存在")
)

// VerificationMailer 发送注册验证邮件
type VerificationMailer interface {
	Enabled() bool
	SendVerificationCode(to, code string, credits int) error
}

// GithubProvider GitHub 登录所需的授权与用户信息接口
type GithubProvider interface {
	GetAuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	GetUser(ctx context.Context, token *oauth2.Token) (*oauth.GithubUser, error)
}

const verificationTTL = 24 * time.Hour

type AuthService struct {
	userRepo *repository.UserRepository
	cfg      *config.Config
	github   GithubProvider
	mailer   VerificationMailer
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	gh := cfg.OAuth.Github
	return &AuthService{
		userRepo: userRepo,
		cfg:      cfg,
		github:   oauth.NewGithubOAuth(gh.ClientID, gh.ClientSecret, gh.RedirectURI),
	}
}

// SetMailer 设置验证邮件发送器
func (s *AuthService) SetMailer(m VerificationMailer) {
	s.mailer = m
}

// SetGithubProvider 替换 GitHub 登录实现
func (s *AuthService) SetGithubProvider(p GithubProvider) {
	s.github = p
}

// Register 用户注册，新账户获得注册赠送的免费积分
func (s *AuthService) Register(req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	email := normalizeEmail(req.Email)

	if exists, err := s.userRepo.ExistsByEmail(email); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrEmailExists
	}
	if exists, err := s.userRepo.ExistsByUsername(req.Username); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrUsernameExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	code, err := generateRandomCode(32)
	if err != nil {
		return nil, err
	}

	passwordHash := string(hash)
	expiresAt := time.Now().Add(verificationTTL)
	user := &model.User{
		Username:              req.Username,
		Email:                 &email,
		PasswordHash:          &passwordHash,
		FreeCredits:           s.cfg.Credits.SignupFree,
		VerificationCode:      &code,
		VerificationExpiresAt: &expiresAt,
		// 开发环境跳过邮箱验证
		EmailVerified: s.devMode(),
	}

	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	if s.mailer != nil && s.mailer.Enabled() {
		if err := s.mailer.SendVerificationCode(email, code, user.FreeCredits); err != nil {
			slog.Warn("verification email failed", "user_id", user.ID, "error", err)
		}
	}

	return &dto.RegisterResponse{UserID: user.ID}, nil
}

// Login 邮箱密码登录，生产环境要求邮箱已验证
func (s *AuthService) Login(req *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(normalizeEmail(req.Email))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !user.EmailVerified && !s.devMode() {
		return nil, ErrEmailNotVerified
	}
	if user.PasswordHash == nil ||
		bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueLogin(user)
}

// VerifyEmail 校验注册验证码，成功后直接登录
func (s *AuthService) VerifyEmail(code string) (*dto.LoginResponse, error) {
	user, err := s.userRepo.GetByVerificationCode(code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidVerifyCode
	}
	if err != nil {
		return nil, err
	}
	if user.VerificationExpiresAt == nil || time.Now().After(*user.VerificationExpiresAt) {
		return nil, ErrInvalidVerifyCode
	}

	// 只更新验证字段，积分和付费标记由账本维护
	if err := s.userRepo.UpdateFields(user.ID, map[string]interface{}{
		"email_verified":          true,
		"verification_code":       nil,
		"verification_expires_at": nil,
	}); err != nil {
		return nil, err
	}
	user.EmailVerified = true
	user.VerificationCode = nil
	user.VerificationExpiresAt = nil

	return s.issueLogin(user)
}

// GetUserByID 根据 ID 获取用户
func (s *AuthService) GetUserByID(id int64) (*model.User, error) {
	return s.userRepo.GetByID(id)
}

// GetGithubAuthURL 获取 GitHub 授权 URL
func (s *AuthService) GetGithubAuthURL(state string) string {
	return s.github.GetAuthURL(state)
}

// GithubCallback 处理 GitHub 回调，首次登录创建账户并赠送注册积分
func (s *AuthService) GithubCallback(ctx context.Context, code string) (*dto.LoginResponse, error) {
	token, err := s.github.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange github code: %w", err)
	}
	ghUser, err := s.github.GetUser(ctx, token)
	if err != nil {
		return nil, err
	}

	githubID := strconv.FormatInt(ghUser.ID, 10)
	user, err := s.userRepo.GetByGithubID(githubID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user, err = s.createGithubUser(githubID, ghUser)
	}
	if err != nil {
		return nil, err
	}

	return s.issueLogin(user)
}

func (s *AuthService) createGithubUser(githubID string, gh *oauth.GithubUser) (*model.User, error) {
	user := &model.User{
		Username:      gh.Login,
		GithubID:      &githubID,
		AvatarURL:     gh.AvatarURL,
		FreeCredits:   s.cfg.Credits.SignupFree,
		EmailVerified: true,
	}

	if gh.Email != "" {
		email := normalizeEmail(gh.Email)
		// 邮箱已被本地账户占用时不绑定
		if taken, err := s.userRepo.ExistsByEmail(email); err == nil && !taken {
			user.Email = &email
		}
	}
	if taken, err := s.userRepo.ExistsByUsername(user.Username); err == nil && taken {
		user.Username = gh.Login + "_" + githubID
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("create github user: %w", err)
	}
	slog.Info("github account created", "user_id", user.ID, "free_credits", user.FreeCredits)
	return user, nil
}

func (s *AuthService) issueLogin(user *model.User) (*dto.LoginResponse, error) {
	token, err := jwt.GenerateToken(user.ID, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{Token: token, User: buildUserInfo(user)}, nil
}

func (s *AuthService) devMode() bool {
	return s.cfg.Server.Mode == "debug"
}

func buildUserInfo(user *model.User) *dto.UserInfo {
	return &dto.UserInfo{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.DisplayEmail(),
		AvatarURL:     user.AvatarURL,
		Bio:           user.Bio,
		FreeCredits:   user.FreeCredits,
		IsPaid:        user.IsPaid,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateRandomCode(length int) (string, error) {
	buf := make([]byte, length/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
