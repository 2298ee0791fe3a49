package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"CommunityHub/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MembershipRepository struct {
	DB *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{DB: db}
}

// Join 幂等插入：(community_id, user_id) 已存在时不报错，created=false。
// 新插入时同一事务写 outbox。
func (r *MembershipRepository) Join(ctx context.Context, m *model.Membership, reason string) (bool, error) {
	var created bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "community_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(m)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		return insertOutbox(tx, model.EventMembershipCreated, m, reason)
	})
	return created, err
}

// Leave 删除单个会员关系；不存在时 removed=false
func (r *MembershipRepository) Leave(ctx context.Context, communityID, userID, reason string) (bool, error) {
	var removed bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.Membership
		err := tx.Where("community_id = ? AND user_id = ?", communityID, userID).First(&m).Error
		if err != nil {
			return err
		}
		res := tx.Where("id = ?", m.ID).Delete(&model.Membership{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		return insertOutbox(tx, model.EventMembershipDeleted, &m, reason)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return removed, err
}

// DeleteBySubscription 按外部订阅号删除（预期 0 或 1 行），返回实际删除的行
func (r *MembershipRepository) DeleteBySubscription(ctx context.Context, subscriptionID, reason string) ([]model.Membership, error) {
	var removed []model.Membership
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []model.Membership
		if err := tx.Where("stripe_subscription_id = ?", subscriptionID).Find(&rows).Error; err != nil {
			return err
		}
		for i := range rows {
			// 逐行删除，只为真正删掉的行写 outbox，并发重放时不会重复发事件
			res := tx.Where("id = ? AND stripe_subscription_id = ?", rows[i].ID, subscriptionID).
				Delete(&model.Membership{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}
			if err := insertOutbox(tx, model.EventMembershipDeleted, &rows[i], reason); err != nil {
				return err
			}
			removed = append(removed, rows[i])
		}
		return nil
	})
	return removed, err
}

func (r *MembershipRepository) Find(ctx context.Context, communityID, userID string) (*model.Membership, error) {
	var m model.Membership
	err := r.DB.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		First(&m).Error
	return &m, err
}

func (r *MembershipRepository) IsMember(ctx context.Context, communityID, userID string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Membership{}).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *MembershipRepository) ListByCommunity(ctx context.Context, communityID string, offset, limit int) ([]model.Membership, error) {
	var list []model.Membership
	err := r.DB.WithContext(ctx).
		Where("community_id = ?", communityID).
		Order("joined_at asc").Offset(offset).Limit(limit).
		Find(&list).Error
	return list, err
}

func insertOutbox(tx *gorm.DB, event string, m *model.Membership, reason string) error {
	ev := model.MembershipEvent{
		EventTime:   time.Now().UTC().Format(time.RFC3339Nano),
		CommunityID: m.CommunityID,
		UserID:      m.UserID,
		Role:        m.Role,
		Reason:      reason,
	}
	if m.StripeSubscriptionID != nil {
		ev.SubscriptionID = *m.StripeSubscriptionID
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return tx.Create(&model.MembershipOutbox{
		EventType:   event,
		CommunityID: m.CommunityID,
		UserID:      m.UserID,
		Payload:     string(payload),
		Status:      model.OutboxPending,
	}).Error
}
