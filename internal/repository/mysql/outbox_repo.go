package mysql

import (
	"context"

	"CommunityHub/internal/model"

	"gorm.io/gorm"
)

type OutboxRepository struct {
	DB *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{DB: db}
}

// List 取待投递与可重试的失败记录
func (r *OutboxRepository) List(ctx context.Context, batchSize, maxRetry int) ([]model.MembershipOutbox, error) {
	var list []model.MembershipOutbox
	if err := r.DB.WithContext(ctx).
		Where("status = ? OR (status = ? AND retry < ?)", model.OutboxPending, model.OutboxFailed, maxRetry).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// RetryUpdate outbox记录消息失败重试
func (r *OutboxRepository) RetryUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.MembershipOutbox{}).Where("id = ?", id).
		Updates(map[string]any{"status": model.OutboxFailed, "retry": gorm.Expr("retry + 1")}).Error
}

// SuccessUpdate outbox成功记录消息更新
func (r *OutboxRepository) SuccessUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.MembershipOutbox{}).Where("id = ?", id).
		Update("status", model.OutboxSent).Error
}

// MarkDelivered 记录已投递的 sink 位图
func (r *OutboxRepository) MarkDelivered(ctx context.Context, id uint64, mask uint32) error {
	return r.DB.WithContext(ctx).Model(&model.MembershipOutbox{}).Where("id = ?", id).
		Update("delivered", mask).Error
}
