package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	WebhookEventPrefix = "webhook:stripe:event"
	WebhookEventTTL    = 24 * time.Hour
)

// EventRepository 记录已处理成功的 webhook event id，重投时直接确认。
// 只在处理成功后写入，处理失败的事件仍可被重投重试。
type EventRepository struct {
	Client *redis.Client
	ttl    time.Duration
}

func NewEventRepository(client *redis.Client) *EventRepository {
	return &EventRepository{Client: client, ttl: WebhookEventTTL}
}

func (r *EventRepository) key(eventID string) string {
	return fmt.Sprintf("%s:%s", WebhookEventPrefix, eventID)
}

func (r *EventRepository) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	err := r.Client.Get(ctx, r.key(eventID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *EventRepository) MarkProcessed(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	return r.Client.Set(ctx, r.key(eventID), time.Now().UTC().Format(time.RFC3339), r.ttl).Err()
}
