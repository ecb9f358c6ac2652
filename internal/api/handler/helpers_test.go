package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/codemorph_server/config"
	"github.com/qs3c/codemorph_server/internal/api/middleware"
	"github.com/qs3c/codemorph_server/internal/pkg/response"
	"github.com/qs3c/codemorph_server/internal/repository"
	"github.com/qs3c/codemorph_server/internal/service"
	"github.com/qs3c/codemorph_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testContext 账本相关服务共用一个测试库
type testContext struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Ledger   *service.LedgerService
	Balance  *service.BalanceService
	Shares   *service.ShareService
	Payments *service.PaymentService
	Txs      *service.TransactionService
}

func newTestContext(t *testing.T) *testContext {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	cfg := &config.Config{
		JWT: config.JWTConfig{Secret: "test-secret-key", ExpireHours: 24},
	}
	cfg.ApplyDefaults()
	cfg.Conversion.PaidLanguages = []string{"rust", "go"}

	userRepo := repository.NewUserRepository(db)
	grantRepo := repository.NewPurchasedCreditRepository(db)
	shareRepo := repository.NewSharedCreditRepository(db)
	txRepo := repository.NewTransactionRepository(db)

	ledger := service.NewLedgerService(db, userRepo, grantRepo, shareRepo, txRepo, cfg)
	return &testContext{
		DB:       db,
		Cfg:      cfg,
		Ledger:   ledger,
		Balance:  service.NewBalanceService(userRepo, grantRepo, shareRepo, txRepo),
		Shares:   service.NewShareService(userRepo, grantRepo, shareRepo, txRepo),
		Payments: service.NewPaymentService(ledger, grantRepo, cfg),
		Txs:      service.NewTransactionService(txRepo),
	}
}

// mockAuth 模拟认证中间件
func mockAuth(userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

// decodeData 将响应 data 解码到 out
func decodeData(t *testing.T, resp response.Response, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}
