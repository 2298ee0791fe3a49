package redis_test

import (
	"context"
	"testing"
	"time"

	rdsrepo "CommunityHub/internal/repository/redis"
	"CommunityHub/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientPings(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	client, err := rdsrepo.NewClient(context.Background(), rdsrepo.Options{Addr: addr})
	require.NoError(t, err)
	_ = client.Close()

	// Close 之后 miniredis 不再持有地址，提前取好
	mr.Close()
	_, err = rdsrepo.NewClient(context.Background(), rdsrepo.Options{Addr: addr})
	assert.Error(t, err)
}

func TestTokenRepository(t *testing.T) {
	client, mr := testutil.NewRedis(t)
	repo := rdsrepo.NewTokenRepository(client)
	ctx := context.Background()

	_, err := repo.GetUserToken(ctx, "u-1")
	assert.ErrorIs(t, err, rdsrepo.ErrTokenNotFound)

	require.NoError(t, repo.AddUserToken(ctx, "u-1", "tok"))
	got, err := repo.GetUserToken(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	mr.FastForward(20 * time.Minute)
	require.NoError(t, repo.ExtendUserToken(ctx, "u-1"))
	mr.FastForward(20 * time.Minute)
	_, err = repo.GetUserToken(ctx, "u-1")
	assert.NoError(t, err, "extend should reset the ttl")

	require.NoError(t, repo.DeleteUserToken(ctx, "u-1"))
	_, err = repo.GetUserToken(ctx, "u-1")
	assert.ErrorIs(t, err, rdsrepo.ErrTokenNotFound)
}

func TestEventRepository(t *testing.T) {
	client, mr := testutil.NewRedis(t)
	repo := rdsrepo.NewEventRepository(client)
	ctx := context.Background()

	done, err := repo.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, repo.MarkProcessed(ctx, "evt_1"))
	done, err = repo.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, done)

	mr.FastForward(rdsrepo.WebhookEventTTL + time.Second)
	done, err = repo.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, done)

	// 空 id 不去重
	require.NoError(t, repo.MarkProcessed(ctx, ""))
	done, err = repo.IsProcessed(ctx, "")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestLikeCache(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	cache := rdsrepo.NewLikeCacheRepository(client)
	ctx := context.Background()

	_, hit, err := cache.IsLikedCached(ctx, "u-1", "p-1")
	require.NoError(t, err)
	assert.False(t, hit)

	// 计数 key 不存在时 AddLike 不凭空创建计数
	require.NoError(t, cache.AddLike(ctx, "u-1", "p-1"))
	_, hit, err = cache.GetLikeCountCached(ctx, "p-1")
	require.NoError(t, err)
	assert.False(t, hit)

	liked, hit, err := cache.IsLikedCached(ctx, "u-1", "p-1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.True(t, liked)

	require.NoError(t, cache.SetLikeCount(ctx, "p-1", 1))
	require.NoError(t, cache.AddLike(ctx, "u-2", "p-1"))
	n, hit, err := cache.GetLikeCountCached(ctx, "p-1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.EqualValues(t, 2, n)

	require.NoError(t, cache.RemoveLike(ctx, "u-1", "p-1"))
	require.NoError(t, cache.RemoveLike(ctx, "u-2", "p-1"))
	require.NoError(t, cache.RemoveLike(ctx, "u-3", "p-1"))
	n, _, err = cache.GetLikeCountCached(ctx, "p-1")
	require.NoError(t, err)
	assert.Zero(t, n, "count never goes negative")

	require.NoError(t, cache.DeleteCount(ctx, "p-1"))
	_, hit, err = cache.GetLikeCountCached(ctx, "p-1")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestDistLock(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	lock := &rdsrepo.DistLock{RDB: client}
	ctx := context.Background()

	got, err := lock.Acquire(ctx, "p-1", "a")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = lock.Acquire(ctx, "p-1", "b")
	require.NoError(t, err)
	assert.False(t, got)

	// 非持有者释放无效
	require.NoError(t, lock.Release(ctx, "p-1", "b"))
	got, _ = lock.Acquire(ctx, "p-1", "b")
	assert.False(t, got)

	require.NoError(t, lock.Release(ctx, "p-1", "a"))
	got, err = lock.Acquire(ctx, "p-1", "b")
	require.NoError(t, err)
	assert.True(t, got)
}
