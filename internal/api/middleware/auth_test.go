package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/codemorph_server/internal/pkg/jwt"
	"github.com/qs3c/codemorph_server/internal/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testJWTSecret = "test-secret-key-for-middleware"

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func mustToken(t *testing.T, userID int64, secret string, hours int) string {
	t.Helper()
	token, err := jwt.GenerateToken(userID, secret, hours)
	require.NoError(t, err)
	return token
}

func TestAuth_Success(t *testing.T) {
	router := gin.New()
	router.Use(Auth(testJWTSecret))
	router.GET("/test", func(c *gin.Context) {
		userID, ok := GetUserID(c)
		assert.True(t, ok)
		response.Success(c, gin.H{"user_id": userID})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, 123, testJWTSecret, 24))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, float64(123), resp.Data.(map[string]interface{})["user_id"])
}

func TestAuth_Rejected(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		wantMessage string
	}{
		{"missing header", "", "请提供认证信息"},
		{"no bearer prefix", "some-token-without-bearer", "认证格式错误"},
		{"empty bearer", "Bearer ", "认证格式错误"},
		{"garbage token", "Bearer invalid-token", "认证失败"},
		{"wrong secret", "Bearer " + mustToken(t, 123, "different-secret", 24), "认证失败"},
		{"expired", "Bearer " + mustToken(t, 123, testJWTSecret, -1), "登录已过期，请重新登录"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			router := gin.New()
			router.Use(Auth(testJWTSecret))
			router.GET("/test", func(c *gin.Context) {
				reached = true
			})

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.False(t, reached)
			assert.Equal(t, http.StatusOK, w.Code)
			resp := parseResponse(t, w)
			assert.Equal(t, response.CodeAuthFailed, resp.Code)
			assert.Equal(t, tt.wantMessage, resp.Message)
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantUserID int64
		wantAuthed bool
	}{
		{"valid token", "Bearer " + mustToken(t, 456, testJWTSecret, 24), 456, true},
		{"no token", "", 0, false},
		{"invalid token", "Bearer invalid-token", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(OptionalAuth(testJWTSecret))
			router.GET("/test", func(c *gin.Context) {
				userID, ok := GetUserID(c)
				assert.Equal(t, tt.wantAuthed, ok)
				assert.Equal(t, tt.wantUserID, userID)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}
