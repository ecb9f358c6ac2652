package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/qs3c/codemorph_server/config"
	"github.com/qs3c/codemorph_server/internal/model"
	"github.com/qs3c/codemorph_server/internal/model/dto"
	"github.com/qs3c/codemorph_server/internal/pkg/oauth"
	"github.com/qs3c/codemorph_server/internal/repository"
	"github.com/qs3c/codemorph_server/internal/testutil"
)

type recordingMailer struct {
	enabled bool
	to      []string
	codes   []string
	credits []int
}

func (m *recordingMailer) Enabled() bool { return m.enabled }

func (m *recordingMailer) SendVerificationCode(to, code string, credits int) error {
	m.to = append(m.to, to)
	m.codes = append(m.codes, code)
	m.credits = append(m.credits, credits)
	return nil
}

func setupAuthService(t *testing.T) (*AuthService, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	userRepo := repository.NewUserRepository(db)

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:      "test-secret-key-for-testing",
			ExpireHours: 24,
		},
		OAuth: config.OAuthConfig{
			Github: config.GithubOAuthConfig{
				ClientID:     "test-client-id",
				ClientSecret: "test-client-secret",
				RedirectURI:  "http://localhost:8080/callback",
			},
		},
	}
	cfg.ApplyDefaults()

	service := NewAuthService(userRepo, cfg)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return service, db, cleanup
}

func TestAuthService_Register_Success(t *testing.T) {
	service, db, cleanup := setupAuthService(t)
	defer cleanup()

	req := &dto.RegisterRequest{
		Email:    "newuser@example.com",
		Username: "newuser",
		Password: "password123",
	}

	resp, err := service.Register(req)
	require.NoError(t, err)
	assert.NotZero(t, resp.UserID)

	user := reloadUser(t, db, resp.UserID)
	assert.Equal(t, 25, user.FreeCredits)
	assert.False(t, user.IsPaid)
	assert.False(t, user.EmailVerified)
	assert.NotNil(t, user.VerificationCode)
}

func TestAuthService_Register_NormalizesEmail(t *testing.T) {
	service, db, cleanup := setupAuthService(t)
	defer cleanup()

	resp, err := service.Register(&dto.RegisterRequest{
		Email:    "  Mixed.Case@Example.COM ",
		Username: "mixed",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, "mixed.case@example.com", reloadUser(t, db, resp.UserID).DisplayEmail())

	_, err = service.Register(&dto.RegisterRequest{
		Email:    "mixed.case@example.com",
		Username: "mixed2",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestAuthService_Register_SendsVerificationMail(t *testing.T) {
	service, db, cleanup := setupAuthService(t)
	defer cleanup()

	mailer := &recordingMailer{enabled: true}
	service.SetMailer(mailer)

	resp, err := service.Register(&dto.RegisterRequest{
		Email:    "mail@example.com",
		Username: "mailuser",
		Password: "password123",
	})
	require.NoError(t, err)

	user := reloadUser(t, db, resp.UserID)
	require.Len(t, mailer.to, 1)
	assert.Equal(t, "mail@example.com", mailer.to[0])
	assert.Equal(t, *user.VerificationCode, mailer.codes[0])
	assert.Equal(t, 25, mailer.credits[0])
}

func TestAuthService_Register_MailerDisabled(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	mailer := &recordingMailer{enabled: false}
	service.SetMailer(mailer)

	_, err := service.Register(&dto.RegisterRequest{
		Email:    "quiet@example.com",
		Username: "quiet",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.Empty(t, mailer.to)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	req := &dto.RegisterRequest{
		Email:    "duplicate@example.com",
		Username: "user1",
		Password: "password123",
	}
	_, err := service.Register(req)
	require.NoError(t, err)

	req2 := &dto.RegisterRequest{
		Email:    "duplicate@example.com",
		Username: "user2",
		Password: "password123",
	}
	_, err = service.Register(req2)
	assert.Equal(t, ErrEmailExists, err)
}

func TestAuthService_Register_DuplicateUsername(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	req := &dto.RegisterRequest{
		Email:    "user1@example.com",
		Username: "sameusername",
		Password: "password123",
	}
	_, err := service.Register(req)
	require.NoError(t, err)

	req2 := &dto.RegisterRequest{
		Email:    "user2@example.com",
		Username: "sameusername",
		Password: "password123",
	}
	_, err = service.Register(req2)
	assert.Equal(t, ErrUsernameExists, err)
}

func TestAuthService_Login_EmailNotVerified(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	_, err := service.Register(&dto.RegisterRequest{
		Email:    "unverified@example.com",
		Username: "unverified",
		Password: "password123",
	})
	require.NoError(t, err)

	_, err = service.Login(&dto.LoginRequest{
		Email:    "unverified@example.com",
		Password: "password123",
	})
	assert.Equal(t, ErrEmailNotVerified, err)
}

func TestAuthService_Login_AfterVerify(t *testing.T) {
	service, db, cleanup := setupAuthService(t)
	defer cleanup()

	resp, err := service.Register(&dto.RegisterRequest{
		Email:    "verified@example.com",
		Username: "verified",
		Password: "password123",
	})
	require.NoError(t, err)

	code := *reloadUser(t, db, resp.UserID).VerificationCode
	_, err = service.VerifyEmail(code)
	require.NoError(t, err)

	login, err := service.Login(&dto.LoginRequest{
		Email:    "Verified@Example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, 25, login.User.FreeCredits)
	assert.True(t, login.User.EmailVerified)

	_, err = service.Login(&dto.LoginRequest{
		Email:    "verified@example.com",
		Password: "wrong-password",
	})
	assert.Equal(t, ErrInvalidCredentials, err)
}

func TestAuthService_Login_InvalidCredentials(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	_, err := service.Login(&dto.LoginRequest{
		Email:    "nonexistent@example.com",
		Password: "password123",
	})
	assert.Equal(t, ErrInvalidCredentials, err)
}

func TestAuthService_VerifyEmail_Success(t *testing.T) {
	service, db, cleanup := setupAuthService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithUnverified())

	verifyCode := "testverifycode123456789012"
	require.NoError(t, db.Model(user).Updates(map[string]interface{}{
		"verification_code":       verifyCode,
		"verification_expires_at": time.Now().Add(24 * time.Hour),
	}).Error)

	resp, err := service.VerifyEmail(verifyCode)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	require.NotNil(t, resp.User)
	assert.True(t, resp.User.EmailVerified)

	updated := reloadUser(t, db, user.ID)
	assert.True(t, updated.EmailVerified)
	assert.Nil(t, updated.VerificationCode)
}

func TestAuthService_VerifyEmail_KeepsLedgerColumns(t *testing.T) {
	service, db, cleanup := setupAuthService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithUnverified(), testutil.WithFreeCredits(25))
	require.NoError(t, db.Model(user).Updates(map[string]interface{}{
		"verification_code":       "racecode",
		"verification_expires_at": time.Now().Add(time.Hour),
	}).Error)

	// 读取用户之后、写回之前，账本改了余额和付费标记
	var once sync.Once
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:ledger_write", func(tx *gorm.DB) {
		once.Do(func() {
			tx.Session(&gorm.Session{NewDB: true}).
				Exec("UPDATE users SET free_credits = ?, is_paid = ? WHERE id = ?", 99, true, user.ID)
		})
	}))

	_, err := service.VerifyEmail("racecode")
	require.NoError(t, err)

	updated := reloadUser(t, db, user.ID)
	assert.True(t, updated.EmailVerified)
	assert.Nil(t, updated.VerificationCode)
	assert.Nil(t, updated.VerificationExpiresAt)
	assert.Equal(t, 99, updated.FreeCredits)
	assert.True(t, updated.IsPaid)
}

func TestAuthService_VerifyEmail_Expired(t *testing.T) {
	service, db, cleanup := setupAuthService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithUnverified())
	require.NoError(t, db.Model(user).Updates(map[string]interface{}{
		"verification_code":       "expiredcode",
		"verification_expires_at": time.Now().Add(-time.Hour),
	}).Error)

	_, err := service.VerifyEmail("expiredcode")
	assert.Equal(t, ErrInvalidVerifyCode, err)
}

func TestAuthService_VerifyEmail_InvalidCode(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	_, err := service.VerifyEmail("invalidcode")
	assert.Equal(t, ErrInvalidVerifyCode, err)
}

func TestAuthService_GetUserByID(t *testing.T) {
	service, db, cleanup := setupAuthService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithUsername("testuser"))

	found, err := service.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "testuser", found.Username)
}

func TestAuthService_GetUserByID_NotFound(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	_, err := service.GetUserByID(99999)
	assert.Error(t, err)
}

func TestAuthService_GetGithubAuthURL(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	url := service.GetGithubAuthURL("test-state")
	assert.Contains(t, url, "github.com")
	assert.Contains(t, url, "test-state")
}

type fakeGithub struct {
	user        *oauth.GithubUser
	exchangeErr error
}

func (f *fakeGithub) GetAuthURL(state string) string { return "https://github.test/authorize?state=" + state }

func (f *fakeGithub) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &oauth2.Token{AccessToken: "token-" + code}, nil
}

func (f *fakeGithub) GetUser(context.Context, *oauth2.Token) (*oauth.GithubUser, error) {
	return f.user, nil
}

func TestAuthService_GithubCallback_FirstLogin(t *testing.T) {
	service, db, cleanup := setupAuthService(t)
	defer cleanup()

	service.SetGithubProvider(&fakeGithub{user: &oauth.GithubUser{
		ID: 4242, Login: "octo", Email: "Octo@Example.com", AvatarURL: "https://avatars.test/octo",
	}})

	resp, err := service.GithubCallback(context.Background(), "code")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "octo", resp.User.Username)
	assert.Equal(t, "octo@example.com", resp.User.Email)
	assert.Equal(t, 25, resp.User.FreeCredits)
	assert.True(t, resp.User.EmailVerified)

	// 再次登录复用同一账户，不重复赠送积分
	again, err := service.GithubCallback(context.Background(), "code2")
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, again.User.ID)

	var count int64
	db.Model(&model.User{}).Where("github_id = ?", "4242").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestAuthService_GithubCallback_Conflicts(t *testing.T) {
	service, db, cleanup := setupAuthService(t)
	defer cleanup()

	existing := testutil.TestUser(t, db, testutil.WithUsername("octo"), testutil.WithEmail("octo@example.com"))

	service.SetGithubProvider(&fakeGithub{user: &oauth.GithubUser{ID: 7, Login: "octo", Email: "octo@example.com"}})

	resp, err := service.GithubCallback(context.Background(), "code")
	require.NoError(t, err)
	assert.NotEqual(t, existing.ID, resp.User.ID)
	assert.Equal(t, "octo_7", resp.User.Username)
	assert.Empty(t, resp.User.Email)
}

func TestAuthService_GithubCallback_ExchangeFails(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	service.SetGithubProvider(&fakeGithub{exchangeErr: errors.New("bad_verification_code")})

	_, err := service.GithubCallback(context.Background(), "expired")
	assert.ErrorContains(t, err, "bad_verification_code")
}
