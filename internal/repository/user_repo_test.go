package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/codemorph_server/internal/testutil"
)

func TestUserRepository_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	_ = NewUserRepository(db)

	email := "test@example.com"
	user := testutil.TestUser(t, db, testutil.WithEmail(email))

	assert.NotZero(t, user.ID)
	assert.Equal(t, email, *user.Email)
}

func TestUserRepository_GetByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	// 创建测试用户
	created := testutil.TestUser(t, db)

	// 查询用户
	found, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, created.Username, found.Username)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	_, err := repo.GetByID(99999)
	assert.Error(t, err)
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	email := "unique@example.com"
	testutil.TestUser(t, db, testutil.WithEmail(email))

	found, err := repo.GetByEmail(email)
	require.NoError(t, err)
	assert.Equal(t, email, *found.Email)
}

func TestUserRepository_ExistsByEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	email := "exists@example.com"
	testutil.TestUser(t, db, testutil.WithEmail(email))

	exists, err := repo.ExistsByEmail(email)
	require.NoError(t, err)
	assert.True(t, exists)

	notExists, err := repo.ExistsByEmail("notexists@example.com")
	require.NoError(t, err)
	assert.False(t, notExists)
}

func TestUserRepository_ExistsByUsername(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	username := "uniqueuser"
	testutil.TestUser(t, db, testutil.WithUsername(username))

	exists, err := repo.ExistsByUsername(username)
	require.NoError(t, err)
	assert.True(t, exists)

	notExists, err := repo.ExistsByUsername("notexistsuser")
	require.NoError(t, err)
	assert.False(t, notExists)
}

func TestUserRepository_DebitFree(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	user := testutil.TestUser(t, db, testutil.WithFreeCredits(2))

	ok, err := repo.DebitFree(user.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	// 余额不足时不更新
	ok, err = repo.DebitFree(user.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	updated, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.FreeCredits)
}

func TestUserRepository_CreditFree(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	user := testutil.TestUser(t, db, testutil.WithFreeCredits(3))

	require.NoError(t, repo.CreditFree(user.ID, 22))

	updated, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, updated.FreeCredits)
}

func TestUserRepository_ListBelowFreeCredits(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	low1 := testutil.TestUser(t, db, testutil.WithFreeCredits(0))
	testutil.TestUser(t, db, testutil.WithFreeCredits(25))
	low2 := testutil.TestUser(t, db, testutil.WithFreeCredits(24))

	users, err := repo.ListBelowFreeCredits(25, 1, 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, low1.ID, users[0].ID)

	users, err = repo.ListBelowFreeCredits(25, 10, low1.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, low2.ID, users[0].ID)
}

func TestUserRepository_RefreshPaidFlags(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	now := time.Now().UTC()

	stale := testutil.TestUser(t, db, testutil.WithPaid(true))
	testutil.TestGrant(t, db, stale.ID, testutil.WithGrantWindow(now.AddDate(0, 0, -40), now.AddDate(0, 0, -10)))

	fresh := testutil.TestUser(t, db, testutil.WithPaid(false))
	testutil.TestGrant(t, db, fresh.ID)

	unchanged := testutil.TestUser(t, db, testutil.WithPaid(false))

	changed, err := repo.RefreshPaidFlags(now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	for id, want := range map[int64]bool{stale.ID: false, fresh.ID: true, unchanged.ID: false} {
		u, err := repo.GetByID(id)
		require.NoError(t, err)
		assert.Equal(t, want, u.IsPaid, "user %d", id)
	}
}
