package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockManager_AcquireLock(t *testing.T) {
	client := setupTestRedis(t)

	ctx := context.Background()
	manager := NewLockManager(client)

	t.Run("ロックを取得できる", func(t *testing.T) {
		lock, err := manager.AcquireLock(ctx, "test-room-1", 5*time.Second)
		require.NoError(t, err)
		require.NotNil(t, lock)
		defer lock.Release(ctx)
	})

	t.Run("同じキーのロックは取得できない", func(t *testing.T) {
		lock1, err := manager.AcquireLock(ctx, "test-room-2", 5*time.Second)
		require.NoError(t, err)
		defer lock1.Release(ctx)

		lock2, err := manager.AcquireLock(ctx, "test-room-2", 5*time.Second)
		assert.ErrorIs(t, err, ErrLockNotAcquired)
		assert.Nil(t, lock2)
	})

	t.Run("解放後は再取得できる", func(t *testing.T) {
		lock1, err := manager.AcquireLock(ctx, "test-room-3", 5*time.Second)
		require.NoError(t, err)

		err = lock1.Release(ctx)
		require.NoError(t, err)

		lock2, err := manager.AcquireLock(ctx, "test-room-3", 5*time.Second)
		require.NoError(t, err)
		defer lock2.Release(ctx)
	})

	t.Run("リトライで取得できる", func(t *testing.T) {
		lock1, err := manager.AcquireLock(ctx, "test-room-4", 500*time.Millisecond)
		require.NoError(t, err)

		go func() {
			time.Sleep(300 * time.Millisecond)
			lock1.Release(ctx)
		}()

		lock2, err := manager.AcquireLockWithRetry(ctx, "test-room-4", 5*time.Second, 5, 100*time.Millisecond)
		require.NoError(t, err)
		require.NotNil(t, lock2)
		defer lock2.Release(ctx)
	})

	t.Run("リトライ上限で諦める", func(t *testing.T) {
		lock1, err := manager.AcquireLock(ctx, "test-room-5", 10*time.Second)
		require.NoError(t, err)
		defer lock1.Release(ctx)

		lock2, err := manager.AcquireLockWithRetry(ctx, "test-room-5", 5*time.Second, 2, 50*time.Millisecond)
		assert.ErrorIs(t, err, ErrLockNotAcquired)
		assert.Nil(t, lock2)
	})
}

func TestDistributedLock_Release(t *testing.T) {
	client := setupTestRedis(t)

	ctx := context.Background()
	manager := NewLockManager(client)

	t.Run("二重解放はErrLockNotOwned", func(t *testing.T) {
		lock, err := manager.AcquireLock(ctx, "test-release-1", 5*time.Second)
		require.NoError(t, err)

		require.NoError(t, lock.Release(ctx))
		assert.ErrorIs(t, lock.Release(ctx), ErrLockNotOwned)
	})
}

func TestDistributedLock_Extend(t *testing.T) {
	client := setupTestRedis(t)

	ctx := context.Background()
	manager := NewLockManager(client)

	lock, err := manager.AcquireLock(ctx, "test-extend-1", 1*time.Second)
	require.NoError(t, err)
	defer lock.Release(ctx)

	require.NoError(t, lock.Extend(ctx, 10*time.Second))
}
