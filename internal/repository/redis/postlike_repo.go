package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	LikeSetTTL       = 24 * time.Hour
	LikeCntTTL       = 24 * time.Hour
	LockTTL          = 300 * time.Millisecond
	LikeSetKeyPrefix = "like:set:post"  // 存放某个帖子已点赞的用户ID集合
	LikeCntKeyPrefix = "like:cnt:post"  // 缓存某个帖子的点赞计数
	LockKeyPrefix    = "lock:like:post" // 分布式锁
)

type LikeCacheRepository struct {
	Client     *redis.Client
	likeSetTTL time.Duration
	likeCntTTL time.Duration
}

type DistLock struct {
	RDB *redis.Client
}

func NewLikeCacheRepository(client *redis.Client) *LikeCacheRepository {
	return &LikeCacheRepository{
		Client:     client,
		likeSetTTL: LikeSetTTL,
		likeCntTTL: LikeCntTTL,
	}
}

func (r *LikeCacheRepository) likeSetKey(postID string) string {
	return fmt.Sprintf("%s:%s", LikeSetKeyPrefix, postID)
}

func (r *LikeCacheRepository) likeCntKey(postID string) string {
	return fmt.Sprintf("%s:%s", LikeCntKeyPrefix, postID)
}

// AddLike 写路径：成功写库后再调用。计数 key 不存在时不 INCR，避免凭空造出错误计数
func (r *LikeCacheRepository) AddLike(ctx context.Context, userID, postID string) error {
	k := r.likeSetKey(postID)
	if err := r.Client.SAdd(ctx, k, userID).Err(); err != nil {
		return err
	}
	_ = r.Client.Expire(ctx, k, r.likeSetTTL).Err()

	ck := r.likeCntKey(postID)
	n, err := r.Client.Exists(ctx, ck).Result()
	if err != nil || n == 0 {
		return err
	}
	return r.Client.Incr(ctx, ck).Err()
}

func (r *LikeCacheRepository) RemoveLike(ctx context.Context, userID, postID string) error {
	k := r.likeSetKey(postID)
	if err := r.Client.SRem(ctx, k, userID).Err(); err != nil {
		return err
	}
	ck := r.likeCntKey(postID)
	// 计数防负数
	return r.Client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, ck).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if val <= 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Decr(ctx, ck)
			return nil
		})
		return err
	}, ck)
}

// IsLikedCached 返回 (是否点赞, 缓存是否命中, err)
func (r *LikeCacheRepository) IsLikedCached(ctx context.Context, userID, postID string) (bool, bool, error) {
	k := r.likeSetKey(postID)
	exists, err := r.Client.Exists(ctx, k).Result()
	if err != nil {
		return false, false, err
	}
	if exists == 0 {
		return false, false, nil
	}
	b, err := r.Client.SIsMember(ctx, k, userID).Result()
	return b, true, err
}

// GetLikeCountCached 从缓存读取帖子的点赞数量
func (r *LikeCacheRepository) GetLikeCountCached(ctx context.Context, postID string) (int64, bool, error) {
	val, err := r.Client.Get(ctx, r.likeCntKey(postID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return val, true, nil
}

// SetLikeCount 回填帖子点赞数
func (r *LikeCacheRepository) SetLikeCount(ctx context.Context, postID string, cnt int64) error {
	return r.Client.Set(ctx, r.likeCntKey(postID), cnt, r.likeCntTTL).Err()
}

// WarmIsLiked 惰性回填：只在集合已存在时写，避免无界扩张
func (r *LikeCacheRepository) WarmIsLiked(ctx context.Context, userID, postID string, liked bool) {
	k := r.likeSetKey(postID)
	if ok, _ := r.Client.Exists(ctx, k).Result(); ok > 0 {
		if liked {
			_ = r.Client.SAdd(ctx, k, userID).Err()
		} else {
			_ = r.Client.SRem(ctx, k, userID).Err()
		}
		_ = r.Client.Expire(ctx, k, r.likeSetTTL).Err()
	}
}

func (r *LikeCacheRepository) DeleteCount(ctx context.Context, postID string) error {
	if err := r.Client.Del(ctx, r.likeCntKey(postID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// Acquire 请求加分布式锁
func (l *DistLock) Acquire(ctx context.Context, postID, token string) (bool, error) {
	key := fmt.Sprintf("%s:%s", LockKeyPrefix, postID)
	return l.RDB.SetNX(ctx, key, token, LockTTL).Result()
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// Release 用lua保证只删除自己持有的锁
func (l *DistLock) Release(ctx context.Context, postID, token string) error {
	key := fmt.Sprintf("%s:%s", LockKeyPrefix, postID)
	return releaseScript.Run(ctx, l.RDB, []string{key}, token).Err()
}
