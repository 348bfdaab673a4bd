package users

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/jwtauth/internal/common"
	"github.com/dmitrijs2005/jwtauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	u := &models.User{ID: "id-1", UserName: "alice", PasswordHash: "h"}
	require.NoError(t, repo.Insert(ctx, u))
	assert.False(t, u.CreatedAt.IsZero())

	byName, err := repo.FindByUserName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "id-1", byName.ID)

	byID, err := repo.FindByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.UserName)

	_, err = repo.FindByUserName(ctx, "Alice")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	ok, err := repo.ExistsByUserName(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ExistsByUserName(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryRepository_InsertDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.Insert(ctx, &models.User{ID: "id-1", UserName: "alice"}))
	err := repo.Insert(ctx, &models.User{ID: "id-2", UserName: "alice"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestMemoryRepository_ConcurrentInsertSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	const n = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := &models.User{ID: string(rune('a' + i)), UserName: "race"}
			if err := repo.Insert(ctx, u); err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, common.ErrorAlreadyExists)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryRepository_ReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Insert(ctx, &models.User{ID: "id-1", UserName: "alice", PasswordHash: "h"}))

	got, err := repo.FindByID(ctx, "id-1")
	require.NoError(t, err)
	got.PasswordHash = "tampered"
	got.SetRefreshToken("x", time.Now())

	again, err := repo.FindByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "h", again.PasswordHash)
	assert.Nil(t, again.RefreshToken)
}

func TestMemoryRepository_SaveCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Insert(ctx, &models.User{ID: "id-1", UserName: "alice"}))

	a, err := repo.FindByID(ctx, "id-1")
	require.NoError(t, err)
	b, err := repo.FindByID(ctx, "id-1")
	require.NoError(t, err)

	exp := time.Now().Add(time.Hour).UTC()
	a.SetRefreshToken("first", exp)
	require.NoError(t, repo.Save(ctx, a))
	assert.Equal(t, int64(1), a.Version)

	b.SetRefreshToken("second", exp)
	assert.ErrorIs(t, repo.Save(ctx, b), common.ErrVersionConflict)

	stored, err := repo.FindByID(ctx, "id-1")
	require.NoError(t, err)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, "first", *stored.RefreshToken)

	assert.ErrorIs(t, repo.Save(ctx, &models.User{ID: "nope"}), common.ErrorNotFound)
}

func TestMemoryRepository_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := NewMemoryRepository()
	assert.ErrorIs(t, repo.Insert(ctx, &models.User{ID: "id-1", UserName: "alice"}), context.Canceled)
	_, err := repo.FindByID(ctx, "id-1")
	assert.ErrorIs(t, err, context.Canceled)
}
