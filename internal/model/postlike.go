package model

import (
	"time"

	"gorm.io/gorm"
)

type PostLike struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"size:36;not null;uniqueIndex:uk_post_user"`
	PostID    string `gorm:"size:36;not null;index;uniqueIndex:uk_post_user"`
	CreatedAt time.Time
}

func (PostLike) TableName() string {
	return "post_likes"
}

func (l *PostLike) BeforeCreate(*gorm.DB) error {
	newID(&l.ID)
	return nil
}
