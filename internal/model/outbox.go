package model

import "time"

const (
	EventMembershipCreated = "membership.created"
	EventMembershipDeleted = "membership.deleted"

	OutboxPending = 0
	OutboxSent    = 1
	OutboxFailed  = 2

	// OutboxReasonCreator 创建社区时创建者自动入会
	OutboxReasonCreator = "creator"
)

// MembershipOutbox 会员变更事件表，与会员写入同一事务
type MembershipOutbox struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	EventType   string `gorm:"size:32;not null"`
	CommunityID string `gorm:"size:36;not null"`
	UserID      string `gorm:"size:36;not null"`
	Payload     string `gorm:"type:text;not null"`
	Status      int8   `gorm:"not null;default:0;index"`
	Retry       int    `gorm:"not null;default:0"`
	// Delivered 已成功投递的 sink 位图，重试时跳过这些 sink
	Delivered uint32 `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (MembershipOutbox) TableName() string { return "membership_outbox" }

// MembershipEvent outbox payload 的结构
type MembershipEvent struct {
	EventTime      string `json:"event_time"`
	CommunityID    string `json:"community_id"`
	UserID         string `json:"user_id"`
	Role           string `json:"role,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	Reason         string `json:"reason"`
}
