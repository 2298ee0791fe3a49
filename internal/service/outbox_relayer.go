package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"CommunityHub/internal/model"
	"CommunityHub/internal/pkg"
	"CommunityHub/internal/repository/mysql"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultOutboxBatch    = 200
	defaultOutboxInterval = time.Second
	defaultOutboxMaxRetry = 10
)

// Sender 投递一条 outbox 记录，返回 error 时该记录进入重试
type Sender func(ctx context.Context, ob *model.MembershipOutbox) error

// MessageProducer 生产实现为 pkg.KafkaProducer
type MessageProducer interface {
	Send(ctx context.Context, key, eventType string, value []byte) error
}

// Mailer 生产实现为 pkg.Mailer
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// OutboxRelayer 定时扫描 membership_outbox 并投递
type OutboxRelayer struct {
	repo      *mysql.OutboxRepository
	batchSize int
	interval  time.Duration
	maxRetry  int
	sender    Sender
	log       *zap.Logger
	metrics   *pkg.Metrics
}

type RelayerOption func(*OutboxRelayer)

func WithBatchSize(n int) RelayerOption {
	return func(r *OutboxRelayer) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) RelayerOption {
	return func(r *OutboxRelayer) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithMaxRetry(n int) RelayerOption {
	return func(r *OutboxRelayer) {
		if n > 0 {
			r.maxRetry = n
		}
	}
}

func NewOutboxRelayer(db *gorm.DB, sender Sender, log *zap.Logger, metrics *pkg.Metrics, opts ...RelayerOption) *OutboxRelayer {
	r := &OutboxRelayer{
		repo:      mysql.NewOutboxRepository(db),
		batchSize: defaultOutboxBatch,
		interval:  defaultOutboxInterval,
		maxRetry:  defaultOutboxMaxRetry,
		sender:    sender,
		log:       log,
		metrics:   metrics,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run 阻塞直到 ctx 取消
func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.DrainOnce(ctx)
		}
	}
}

// DrainOnce 投递一批，返回成功条数
func (r *OutboxRelayer) DrainOnce(ctx context.Context) int {
	rows, err := r.repo.List(ctx, r.batchSize, r.maxRetry)
	if err != nil {
		r.log.Error("outbox query", zap.Error(err))
		return 0
	}
	sent := 0
	for i := range rows {
		ob := rows[i]
		if err := r.sender(ctx, &ob); err != nil {
			r.log.Warn("outbox send failed",
				zap.Uint64("outbox_id", ob.ID),
				zap.String("event_type", ob.EventType),
				zap.Int("retry", ob.Retry),
				zap.Error(err))
			r.observe("failed")
			if err := r.repo.RetryUpdate(ctx, ob.ID); err != nil {
				r.log.Error("outbox retry update", zap.Uint64("outbox_id", ob.ID), zap.Error(err))
			}
			continue
		}
		if err := r.repo.SuccessUpdate(ctx, ob.ID); err != nil {
			r.log.Error("outbox success update", zap.Uint64("outbox_id", ob.ID), zap.Error(err))
			continue
		}
		r.observe("sent")
		sent++
	}
	return sent
}

func (r *OutboxRelayer) observe(outcome string) {
	if r.metrics == nil {
		return
	}
	r.metrics.OutboxRelayed.WithLabelValues(outcome).Inc()
}

const maxSinks = 32

// Sink 具名投递目标，在 MultiSender 中的位置决定它在 Delivered 位图中的 bit
type Sink struct {
	Name string
	Send Sender
}

// MultiSender 依次投递到各 sink。成功的 sink 写入 Delivered 位图并落库，
// 整条记录重试时只重投失败及其后的 sink。
// 位图落库失败时该 sink 可能被重投，语义为 at-least-once。
func MultiSender(db *gorm.DB, sinks ...Sink) Sender {
	if len(sinks) > maxSinks {
		panic(fmt.Sprintf("outbox: at most %d sinks, got %d", maxSinks, len(sinks)))
	}
	repo := mysql.NewOutboxRepository(db)
	return func(ctx context.Context, ob *model.MembershipOutbox) error {
		for i, sink := range sinks {
			bit := uint32(1) << i
			if ob.Delivered&bit != 0 {
				continue
			}
			if err := sink.Send(ctx, ob); err != nil {
				return fmt.Errorf("%s: %w", sink.Name, err)
			}
			ob.Delivered |= bit
			if err := repo.MarkDelivered(ctx, ob.ID, ob.Delivered); err != nil {
				return fmt.Errorf("mark %s delivered: %w", sink.Name, err)
			}
		}
		return nil
	}
}

// KafkaSender 以 community_id 为 key 发到 kafka
func KafkaSender(p MessageProducer) Sender {
	return func(ctx context.Context, ob *model.MembershipOutbox) error {
		return p.Send(ctx, ob.CommunityID, ob.EventType, []byte(ob.Payload))
	}
}

// LogSender 未配置 kafka 时使用
func LogSender(log *zap.Logger) Sender {
	return func(_ context.Context, ob *model.MembershipOutbox) error {
		log.Info("outbox event",
			zap.String("event_type", ob.EventType),
			zap.String("community_id", ob.CommunityID),
			zap.String("user_id", ob.UserID),
			zap.String("payload", ob.Payload))
		return nil
	}
}

// MailSender 给会员发开通/结束通知。
// 创建者随社区自动入会不发信；用户或社区已不存在时跳过
func MailSender(m Mailer, db *gorm.DB) Sender {
	users := mysql.NewUserRepository(db)
	communities := mysql.NewCommunityRepository(db)
	return func(ctx context.Context, ob *model.MembershipOutbox) error {
		if ob.Payload != "" {
			var ev model.MembershipEvent
			if err := json.Unmarshal([]byte(ob.Payload), &ev); err != nil {
				return fmt.Errorf("decode outbox payload: %w", err)
			}
			if ev.Reason == model.OutboxReasonCreator {
				return nil
			}
		}
		user, err := users.FindByID(ctx, ob.UserID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		community, err := communities.FindByID(ctx, ob.CommunityID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		switch ob.EventType {
		case model.EventMembershipCreated:
			return m.Send(user.Email,
				fmt.Sprintf("Welcome to %s", community.Name),
				pkg.MembershipJoinedHTML(user.DisplayName, community.Name))
		case model.EventMembershipDeleted:
			return m.Send(user.Email,
				fmt.Sprintf("Your %s membership has ended", community.Name),
				pkg.MembershipEndedHTML(user.DisplayName, community.Name))
		}
		return nil
	}
}
