package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/codemorph_server/internal/model"
	"github.com/qs3c/codemorph_server/internal/model/dto"
	"github.com/qs3c/codemorph_server/internal/pkg/response"
	"github.com/qs3c/codemorph_server/internal/pkg/upstream"
	"github.com/qs3c/codemorph_server/internal/service"
	"github.com/qs3c/codemorph_server/internal/testutil"
)

// newUpstream 模拟转换后端，status 非 200 时返回错误
func newUpstream(t *testing.T, status int) (*upstream.Client, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if status != http.StatusOK {
			http.Error(w, "model overloaded", status)
			return
		}
		var req upstream.ConvertRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(upstream.ConvertResult{
			ConvertedCode: "// " + req.TargetLanguage + "\n" + req.Code,
			Model:         "test-model",
		})
	}))
	t.Cleanup(server.Close)

	return upstream.NewClient(server.URL, "key", 5*time.Second), &calls
}

func setupConvertRouter(t *testing.T, status int, userID int64, ctx *testContext) (*gin.Engine, *atomic.Int32) {
	t.Helper()

	client, calls := newUpstream(t, status)
	handler := NewConvertHandler(service.NewConvertService(ctx.Ledger, ctx.Balance, client, ctx.Cfg))

	router := gin.New()
	router.GET("/languages", handler.Languages)
	authed := router.Group("")
	authed.Use(mockAuth(userID))
	authed.POST("/convert", handler.Convert)
	return router, calls
}

func TestConvertHandler_Success(t *testing.T) {
	ctx := newTestContext(t)
	user := testutil.TestUser(t, ctx.DB, testutil.WithFreeCredits(3))
	router, calls := setupConvertRouter(t, http.StatusOK, user.ID, ctx)

	w := performRequest(router, "POST", "/convert", dto.ConvertRequest{
		SourceLanguage: "python",
		TargetLanguage: "java",
		Code:           "print(1)",
	})
	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)

	var out dto.ConvertResponse
	decodeData(t, resp, &out)
	assert.Contains(t, out.ConvertedCode, "// java")
	assert.Equal(t, "test-model", out.Model)
	assert.Equal(t, model.SourceFree, out.CreditSource)
	assert.Equal(t, service.BillingCharged, out.BillingStatus)
	assert.Equal(t, int32(1), calls.Load())

	var u model.User
	require.NoError(t, ctx.DB.First(&u, user.ID).Error)
	assert.Equal(t, 2, u.FreeCredits)
}

func TestConvertHandler_Errors(t *testing.T) {
	tests := []struct {
		name      string
		credits   int
		status    int
		body      interface{}
		wantCode  int
		wantCalls int32
	}{
		{
			name:     "missing fields",
			credits:  3,
			status:   http.StatusOK,
			body:     map[string]string{"source_language": "python"},
			wantCode: response.CodeParamError,
		},
		{
			name:     "paid language for free user",
			credits:  3,
			status:   http.StatusOK,
			body:     dto.ConvertRequest{SourceLanguage: "python", TargetLanguage: "rust", Code: "x"},
			wantCode: response.CodeUpgradeRequired,
		},
		{
			name:     "no credits",
			credits:  0,
			status:   http.StatusOK,
			body:     dto.ConvertRequest{SourceLanguage: "python", TargetLanguage: "java", Code: "x"},
			wantCode: response.CodeInsufficientCredits,
		},
		{
			name:      "upstream failure",
			credits:   3,
			status:    http.StatusBadGateway,
			body:      dto.ConvertRequest{SourceLanguage: "python", TargetLanguage: "java", Code: "x"},
			wantCode:  response.CodeServerError,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(t)
			user := testutil.TestUser(t, ctx.DB, testutil.WithFreeCredits(tt.credits))
			router, calls := setupConvertRouter(t, tt.status, user.ID, ctx)

			w := performRequest(router, "POST", "/convert", tt.body)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantCode, parseResponse(t, w).Code)
			assert.Equal(t, tt.wantCalls, calls.Load())

			// 失败的请求不扣费
			var u model.User
			require.NoError(t, ctx.DB.First(&u, user.ID).Error)
			assert.Equal(t, tt.credits, u.FreeCredits)
		})
	}
}

func TestConvertHandler_Languages(t *testing.T) {
	ctx := newTestContext(t)
	router, _ := setupConvertRouter(t, http.StatusOK, 0, ctx)

	w := performRequest(router, "GET", "/languages", nil)
	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)

	var out dto.LanguagesResponse
	decodeData(t, resp, &out)
	assert.Contains(t, out.Free, "python")
	assert.Equal(t, []string{"rust", "go"}, out.Paid)
}
