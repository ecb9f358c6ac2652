package handler

import (
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/codemorph_server/internal/model"
	"github.com/qs3c/codemorph_server/internal/model/dto"
	"github.com/qs3c/codemorph_server/internal/pkg/response"
	"github.com/qs3c/codemorph_server/internal/testutil"
)

func setupDashboardRouter(ctx *testContext, userID int64) *gin.Engine {
	handler := NewDashboardHandler(ctx.Balance)

	router := gin.New()
	router.Use(mockAuth(userID))
	router.GET("/dashboard/summary", handler.Summary)
	return router
}

func TestDashboardHandler_Summary(t *testing.T) {
	ctx := newTestContext(t)
	owner := testutil.TestUser(t, ctx.DB)
	testutil.TestGrant(t, ctx.DB, owner.ID, testutil.WithGrantCredits(100, 60))

	user := testutil.TestUser(t, ctx.DB, testutil.WithFreeCredits(5))
	testutil.TestGrant(t, ctx.DB, user.ID, testutil.WithGrantCredits(50, 20), testutil.WithGrantPlan("monthly"))
	testutil.TestShare(t, ctx.DB, owner.ID, user.ID)
	testutil.TestTransaction(t, ctx.DB, user.ID, model.TxKindUsage, -1, model.SourceFree)
	testutil.TestTransaction(t, ctx.DB, user.ID, model.TxKindUsage, -1, model.SourcePaid)

	w := performRequest(setupDashboardRouter(ctx, user.ID), "GET", "/dashboard/summary", nil)
	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)

	var summary dto.CreditSummary
	decodeData(t, resp, &summary)
	assert.Equal(t, 5, summary.FreeCredits)
	assert.Equal(t, 20, summary.PaidCredits)
	assert.Equal(t, 60, summary.SharedCredits)
	assert.Equal(t, 85, summary.AvailableCredits)
	assert.Equal(t, int64(1), summary.Received)
	assert.Equal(t, "monthly", summary.Plan)
	assert.Len(t, summary.RecentActivity, 2)
	assert.InDelta(t, 30, summary.DaysLeft, 1)
}

func TestDashboardHandler_Summary_FreeUser(t *testing.T) {
	ctx := newTestContext(t)
	user := testutil.TestUser(t, ctx.DB, testutil.WithFreeCredits(25))

	w := performRequest(setupDashboardRouter(ctx, user.ID), "GET", "/dashboard/summary", nil)
	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)

	var summary dto.CreditSummary
	decodeData(t, resp, &summary)
	assert.Equal(t, 25, summary.AvailableCredits)
	assert.Empty(t, summary.Plan)
	assert.Empty(t, summary.RecentActivity)

	now := time.Now().UTC()
	nextMonth := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	assert.InDelta(t, nextMonth.Sub(now).Hours()/24, summary.DaysLeft, 1)
}

func TestDashboardHandler_Summary_Errors(t *testing.T) {
	ctx := newTestContext(t)

	w := performRequest(setupDashboardRouter(ctx, 99999), "GET", "/dashboard/summary", nil)
	assert.Equal(t, response.CodeResourceNotFound, parseResponse(t, w).Code)

	router := gin.New()
	router.GET("/dashboard/summary", NewDashboardHandler(ctx.Balance).Summary)
	w = performRequest(router, "GET", "/dashboard/summary", nil)
	assert.Equal(t, response.CodeAuthFailed, parseResponse(t, w).Code)
}
