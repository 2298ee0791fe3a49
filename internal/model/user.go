package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	UserRoleUser  = "user"
	UserRoleAdmin = "admin"
)

type User struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Email       string    `gorm:"uniqueIndex;size:128;not null" json:"email"`
	Password    string    `gorm:"size:255;not null" json:"-"`
	DisplayName string    `gorm:"size:64" json:"display_name"`
	AvatarURL   string    `gorm:"size:512" json:"avatar_url,omitempty"`
	Bio         string    `gorm:"type:text" json:"bio,omitempty"`
	Role        string    `gorm:"size:16;not null;default:user" json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	newID(&u.ID)
	return nil
}
