package redis

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLeaderboard(t *testing.T) (*LeaderboardRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewLeaderboardRepository(rdb), mr
}

func TestRaiseWithoutCacheDoesNotCreateKey(t *testing.T) {
	repo, mr := newLeaderboard(t)

	require.NoError(t, repo.Raise(context.Background(), "u-1", 10))
	assert.False(t, mr.Exists(LeaderboardKey))
}

func TestRaiseTrimsToCapacity(t *testing.T) {
	ctx := context.Background()
	repo, _ := newLeaderboard(t)

	entries := make([]LeaderboardEntry, 0, LeaderboardSize)
	for i := 0; i < LeaderboardSize; i++ {
		entries = append(entries, LeaderboardEntry{UserID: fmt.Sprintf("u-%03d", i), Points: int64(i + 1)})
	}
	require.NoError(t, repo.Warm(ctx, entries))

	require.NoError(t, repo.Raise(ctx, "newcomer", 1000))

	n, err := repo.RDB.ZCard(ctx, LeaderboardKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(LeaderboardSize), n)

	top, ok, err := repo.Top(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "newcomer", top[0].UserID)

	// 分数最低的 u-000 被挤出
	_, err = repo.RDB.ZScore(ctx, LeaderboardKey, "u-000").Result()
	assert.ErrorIs(t, err, redis.Nil)
	assert.Positive(t, repo.RDB.TTL(ctx, LeaderboardKey).Val())
}

func TestLockReleaseOnlyByOwner(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	lock := NewDistLock(rdb)

	ok, err := lock.Acquire(ctx, "job", "a", LeaderboardTTL)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = lock.Acquire(ctx, "job", "b", LeaderboardTTL)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release(ctx, "job", "b"))
	assert.True(t, mr.Exists(LockKeyPrefix+"job"))
	require.NoError(t, lock.Release(ctx, "job", "a"))
	assert.False(t, mr.Exists(LockKeyPrefix+"job"))
}
