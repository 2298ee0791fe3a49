package mysql

import (
	"context"

	"CommunityHub/internal/model"

	"gorm.io/gorm"
)

type JournalRepository struct {
	DB *gorm.DB
}

func NewJournalRepository(db *gorm.DB) *JournalRepository {
	return &JournalRepository{DB: db}
}

func (r *JournalRepository) Create(ctx context.Context, e *model.JournalEntry) error {
	return r.DB.WithContext(ctx).Create(e).Error
}

// ListByUser 新的在前
func (r *JournalRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.JournalEntry, error) {
	var list []model.JournalEntry
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, err
}

// Delete 只删本人的记录，返回是否真的删掉
func (r *JournalRepository) Delete(ctx context.Context, userID, id string) (bool, error) {
	res := r.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.JournalEntry{})
	return res.RowsAffected > 0, res.Error
}
