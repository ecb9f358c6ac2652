package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/codemorph_server/internal/model"
	"github.com/qs3c/codemorph_server/internal/repository"
	"github.com/qs3c/codemorph_server/internal/testutil"
)

func TestReconcileService_Check_ConsistentAfterDebits(t *testing.T) {
	ledger, db, cleanup := setupLedgerService(t)
	defer cleanup()

	owner := testutil.TestUser(t, db, testutil.WithFreeCredits(0))
	recipient := testutil.TestUser(t, db, testutil.WithFreeCredits(0))
	testutil.TestGrant(t, db, owner.ID, testutil.WithGrantCredits(10, 10))
	testutil.TestShare(t, db, owner.ID, recipient.ID)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := ledger.Debit(ctx, owner.ID, 1, nil)
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := ledger.Debit(ctx, recipient.ID, 1, nil)
		require.NoError(t, err)
	}

	svc := NewReconcileService(repository.NewPurchasedCreditRepository(db), repository.NewTransactionRepository(db))
	report, err := svc.Check(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.GrantsChecked)
	assert.True(t, report.OK())
}

func TestReconcileService_Check_ReportsDrift(t *testing.T) {
	_, db, cleanup := setupLedgerService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	clean := testutil.TestGrant(t, db, user.ID, testutil.WithGrantCredits(50, 48))
	testutil.TestTransaction(t, db, user.ID, model.TxKindUsage, -2, model.SourcePaid, testutil.WithTxGrant(clean.ID))

	// 扣了余额但流水丢失
	drifted := testutil.TestGrant(t, db, user.ID, testutil.WithGrantCredits(20, 17))
	testutil.TestTransaction(t, db, user.ID, model.TxKindUsage, -1, model.SourcePaid, testutil.WithTxGrant(drifted.ID))

	svc := NewReconcileService(repository.NewPurchasedCreditRepository(db), repository.NewTransactionRepository(db))
	report, err := svc.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.GrantsChecked)
	require.Len(t, report.Discrepancies, 1)

	d := report.Discrepancies[0]
	assert.Equal(t, drifted.ID, d.GrantID)
	assert.Equal(t, 1, d.Drawn)
	assert.Equal(t, 19, d.Expected)
	assert.Equal(t, 17, d.Remaining)
	assert.Equal(t, -2, d.Delta)
}

func TestReconcileService_Check_Empty(t *testing.T) {
	_, db, cleanup := setupLedgerService(t)
	defer cleanup()

	svc := NewReconcileService(repository.NewPurchasedCreditRepository(db), repository.NewTransactionRepository(db))
	report, err := svc.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.GrantsChecked)
	assert.True(t, report.OK())
	assert.NotNil(t, report.Discrepancies)
}
