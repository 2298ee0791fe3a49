package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	PostStatusNormal  = 0
	PostStatusDeleted = 1
)

type Post struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	CommunityID  string    `gorm:"size:36;not null;index:idx_community_time,priority:1" json:"community_id"`
	AuthorID     string    `gorm:"size:36;not null;index" json:"author_id"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	ImageURL     string    `gorm:"size:512" json:"image_url,omitempty"`
	IsPinned     bool      `gorm:"not null;default:false" json:"is_pinned"`
	Status       int       `gorm:"not null;default:0" json:"-"`
	LikeCount    int64     `gorm:"not null;default:0" json:"like_count"`
	CommentCount int64     `gorm:"not null;default:0" json:"comment_count"`
	CreatedAt    time.Time `gorm:"index:idx_community_time,priority:2,sort:desc" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p *Post) BeforeCreate(*gorm.DB) error {
	newID(&p.ID)
	return nil
}

type Comment struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PostID    string    `gorm:"size:36;not null;index" json:"post_id"`
	AuthorID  string    `gorm:"size:36;not null;index" json:"author_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Comment) BeforeCreate(*gorm.DB) error {
	newID(&c.ID)
	return nil
}
