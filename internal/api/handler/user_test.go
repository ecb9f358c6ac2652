package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/codemorph_server/internal/model/dto"
	"github.com/qs3c/codemorph_server/internal/pkg/response"
	"github.com/qs3c/codemorph_server/internal/repository"
	"github.com/qs3c/codemorph_server/internal/service"
	"github.com/qs3c/codemorph_server/internal/testutil"
)

func setupUserHandler(t *testing.T) (*UserHandler, *testContext) {
	t.Helper()

	ctx := newTestContext(t)
	userService := service.NewUserService(repository.NewUserRepository(ctx.DB), ctx.Ledger)
	return NewUserHandler(userService), ctx
}

func TestUserHandler_GetProfile_Success(t *testing.T) {
	handler, ctx := setupUserHandler(t)

	user := testutil.TestUser(t, ctx.DB, testutil.WithUsername("profileuser"), testutil.WithFreeCredits(7))
	testutil.TestGrant(t, ctx.DB, user.ID)

	router := gin.New()
	router.Use(mockAuth(user.ID))
	router.GET("/profile", handler.GetProfile)

	req := httptest.NewRequest("GET", "/profile", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, response.CodeSuccess, resp.Code)

	var info dto.UserInfo
	decodeData(t, resp, &info)
	assert.Equal(t, "profileuser", info.Username)
	assert.Equal(t, 7, info.FreeCredits)
	assert.True(t, info.IsPaid)
}

func TestUserHandler_GetProfile_Unauthorized(t *testing.T) {
	handler, _ := setupUserHandler(t)

	router := gin.New()
	router.GET("/profile", handler.GetProfile)

	w := performRequest(router, "GET", "/profile", nil)
	assert.Equal(t, response.CodeAuthFailed, parseResponse(t, w).Code)
}

func TestUserHandler_GetProfile_DeletedUser(t *testing.T) {
	handler, _ := setupUserHandler(t)

	router := gin.New()
	router.Use(mockAuth(99999))
	router.GET("/profile", handler.GetProfile)

	w := performRequest(router, "GET", "/profile", nil)
	assert.Equal(t, response.CodeResourceNotFound, parseResponse(t, w).Code)
}

func TestUserHandler_UpdateProfile(t *testing.T) {
	tests := []struct {
		name     string
		body     interface{}
		taken    string
		wantCode int
	}{
		{"success", map[string]string{"username": "newname", "bio": "hi"}, "", response.CodeSuccess},
		{"only bio", map[string]string{"bio": "only bio"}, "", response.CodeSuccess},
		{"duplicate username", map[string]string{"username": "taken"}, "taken", response.CodeParamError},
		{"username too short", map[string]string{"username": "ab"}, "", response.CodeParamError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, ctx := setupUserHandler(t)

			if tt.taken != "" {
				testutil.TestUser(t, ctx.DB, testutil.WithUsername(tt.taken))
			}
			user := testutil.TestUser(t, ctx.DB)

			router := gin.New()
			router.Use(mockAuth(user.ID))
			router.PUT("/profile", handler.UpdateProfile)

			w := performRequest(router, "PUT", "/profile", tt.body)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantCode, parseResponse(t, w).Code)
		})
	}
}

func TestUserHandler_UpdateProfile_Unauthorized(t *testing.T) {
	handler, _ := setupUserHandler(t)

	router := gin.New()
	router.PUT("/profile", handler.UpdateProfile)

	w := performRequest(router, "PUT", "/profile", map[string]string{"bio": "x"})
	assert.Equal(t, response.CodeAuthFailed, parseResponse(t, w).Code)
}
