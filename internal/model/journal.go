package model

import (
	"time"

	"gorm.io/gorm"
)

// JournalEntry 用户私人日记，只有本人可见
type JournalEntry struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;not null;index:idx_journal_user_time,priority:1" json:"user_id"`
	Title     string    `gorm:"size:200" json:"title,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index:idx_journal_user_time,priority:2,sort:desc" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (j *JournalEntry) BeforeCreate(*gorm.DB) error {
	newID(&j.ID)
	return nil
}
