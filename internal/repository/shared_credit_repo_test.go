package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/codemorph_server/internal/model"
	"github.com/qs3c/codemorph_server/internal/testutil"
)

func TestSharedCreditRepository_ActiveSlotUnique(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewSharedCreditRepository(db)
	owner := testutil.TestUser(t, db)
	recipient := testutil.TestUser(t, db)
	testutil.TestShare(t, db, owner.ID, recipient.ID)

	now := time.Now().UTC()
	slot := model.ShareSlotActive
	err := repo.Create(&model.SharedCredit{
		OwnerUserID:  owner.ID,
		SharedUserID: recipient.ID,
		ActiveSlot:   &slot,
		StartDate:    now,
		EndDate:      now.AddDate(0, 0, 30),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))
}

func TestSharedCreditRepository_HistoryKept(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewSharedCreditRepository(db)
	owner := testutil.TestUser(t, db)
	recipient := testutil.TestUser(t, db)
	now := time.Now().UTC()

	// 多条已释放槽位的历史记录可以共存
	testutil.TestShare(t, db, owner.ID, recipient.ID, testutil.WithShareRetired(),
		testutil.WithShareWindow(now.AddDate(0, 0, -90), now.AddDate(0, 0, -60)))
	testutil.TestShare(t, db, owner.ID, recipient.ID, testutil.WithShareRetired(),
		testutil.WithShareWindow(now.AddDate(0, 0, -50), now.AddDate(0, 0, -20)))
	current := testutil.TestShare(t, db, owner.ID, recipient.ID)

	active, err := repo.GetActive(owner.ID, recipient.ID, now)
	require.NoError(t, err)
	assert.Equal(t, current.ID, active.ID)
}

func TestSharedCreditRepository_ReleaseExpiredSlot(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewSharedCreditRepository(db)
	owner := testutil.TestUser(t, db)
	recipient := testutil.TestUser(t, db)
	now := time.Now().UTC()

	expired := testutil.TestShare(t, db, owner.ID, recipient.ID,
		testutil.WithShareWindow(now.AddDate(0, 0, -31), now.Add(-time.Minute)))

	_, err := repo.GetActive(owner.ID, recipient.ID, now)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repo.ReleaseExpiredSlot(owner.ID, recipient.ID, now))

	var reloaded model.SharedCredit
	require.NoError(t, db.First(&reloaded, "id = ?", expired.ID).Error)
	assert.Nil(t, reloaded.ActiveSlot)

	// 槽位释放后可以重新分享
	testutil.TestShare(t, db, owner.ID, recipient.ID)
}

func TestSharedCreditRepository_ReleaseAllExpiredSlots(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewSharedCreditRepository(db)
	now := time.Now().UTC()
	past := testutil.WithShareWindow(now.AddDate(0, 0, -31), now.Add(-time.Minute))

	owner := testutil.TestUser(t, db)
	r1 := testutil.TestUser(t, db)
	r2 := testutil.TestUser(t, db)
	r3 := testutil.TestUser(t, db)
	testutil.TestShare(t, db, owner.ID, r1.ID, past)
	testutil.TestShare(t, db, owner.ID, r2.ID, past)
	testutil.TestShare(t, db, owner.ID, r3.ID)

	released, err := repo.ReleaseAllExpiredSlots(now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), released)

	released, err = repo.ReleaseAllExpiredSlots(now)
	require.NoError(t, err)
	assert.Zero(t, released)
}

func TestSharedCreditRepository_ListAndCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewSharedCreditRepository(db)
	now := time.Now().UTC()

	owner := testutil.TestUser(t, db)
	r1 := testutil.TestUser(t, db)
	r2 := testutil.TestUser(t, db)
	other := testutil.TestUser(t, db)

	testutil.TestShare(t, db, owner.ID, r1.ID)
	testutil.TestShare(t, db, owner.ID, r2.ID)
	testutil.TestShare(t, db, other.ID, r1.ID)
	testutil.TestShare(t, db, other.ID, r2.ID, testutil.WithShareWindow(now.AddDate(0, 0, -31), now.Add(-time.Minute)))

	sent, err := repo.ListActiveByOwner(owner.ID, now)
	require.NoError(t, err)
	assert.Len(t, sent, 2)

	received, err := repo.ListActiveByRecipient(r1.ID, now)
	require.NoError(t, err)
	assert.Len(t, received, 2)

	count, err := repo.CountActiveByOwner(other.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.CountActiveByRecipient(r2.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
