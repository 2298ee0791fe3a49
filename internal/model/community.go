package model

import (
	"time"

	"gorm.io/gorm"
)

type CommunityStatus string

const (
	CommunityActive    CommunityStatus = "active"
	CommunitySuspended CommunityStatus = "suspended"
	CommunityDeleted   CommunityStatus = "deleted"
)

type Community struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	Name         string          `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Description  string          `gorm:"type:text" json:"description"`
	ImageURL     string          `gorm:"size:512" json:"image_url"`
	CreatorID    string          `gorm:"size:36;not null;index" json:"creator_id"`
	IsPublic     bool            `gorm:"not null" json:"is_public"`
	PriceInCents int64           `gorm:"not null;default:0" json:"price_in_cents"`
	Status       CommunityStatus `gorm:"size:16;not null;default:active;index" json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (c *Community) BeforeCreate(*gorm.DB) error {
	newID(&c.ID)
	return nil
}

// IsFree 价格为 0 的社区永远不需要 checkout
func (c *Community) IsFree() bool { return c.PriceInCents == 0 }

func (c *Community) IsActive() bool { return c.Status == CommunityActive }

const (
	MemberRoleCreator = "creator"
	MemberRoleMember  = "member"
)

// Membership (community_id, user_id) 唯一，是并发下幂等的最终保证
type Membership struct {
	ID                   string    `gorm:"primaryKey;size:36" json:"id"`
	CommunityID          string    `gorm:"size:36;not null;index;uniqueIndex:uk_community_user" json:"community_id"`
	UserID               string    `gorm:"size:36;not null;index;uniqueIndex:uk_community_user" json:"user_id"`
	Role                 string    `gorm:"size:16;not null;default:member" json:"role"`
	StripeSubscriptionID *string   `gorm:"size:255;index" json:"stripe_subscription_id,omitempty"`
	JoinedAt             time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (m *Membership) BeforeCreate(*gorm.DB) error {
	newID(&m.ID)
	return nil
}

// CommunityWithCount 列表页带成员数
type CommunityWithCount struct {
	Community
	MemberCount int64 `json:"member_count"`
}

// LeaderboardEntry 社区内按发帖+评论数排名
type LeaderboardEntry struct {
	UserID        string `json:"user_id"`
	DisplayName   string `json:"display_name"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	PostCount     int64  `json:"post_count"`
	CommentCount  int64  `json:"comment_count"`
	TotalActivity int64  `json:"total_activity"`
}
