package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrRedisUnavailable = errors.New("redis unavailable")
	ErrExtendFailed     = errors.New("token extend failed")
	ErrTokenDeleted     = errors.New("token delete failed")
)

const (
	UserTokenPrefix = "login:user:token"
	UserTokenExpire = 30 * time.Minute
)

// TokenRepository 每个用户只保留最新一次登录的 access token
type TokenRepository struct {
	Client *redis.Client
}

func NewTokenRepository(client *redis.Client) *TokenRepository {
	return &TokenRepository{Client: client}
}

func (r *TokenRepository) key(userID string) string {
	return fmt.Sprintf("%s:%s", UserTokenPrefix, userID)
}

func (r *TokenRepository) AddUserToken(ctx context.Context, userID, token string) error {
	if err := r.Client.Set(ctx, r.key(userID), token, UserTokenExpire).Err(); err != nil {
		return ErrRedisUnavailable
	}
	return nil
}

func (r *TokenRepository) GetUserToken(ctx context.Context, userID string) (string, error) {
	token, err := r.Client.Get(ctx, r.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", ErrRedisUnavailable
	}
	return token, nil
}

func (r *TokenRepository) ExtendUserToken(ctx context.Context, userID string) error {
	if err := r.Client.Expire(ctx, r.key(userID), UserTokenExpire).Err(); err != nil {
		return ErrExtendFailed
	}
	return nil
}

func (r *TokenRepository) DeleteUserToken(ctx context.Context, userID string) error {
	if err := r.Client.Del(ctx, r.key(userID)).Err(); err != nil {
		return ErrTokenDeleted
	}
	return nil
}
