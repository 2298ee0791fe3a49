package mysql

import (
	"context"
	"time"

	"CommunityHub/internal/model"

	"gorm.io/gorm"
)

type PostRepository struct {
	DB *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{DB: db}
}

func (r *PostRepository) Create(ctx context.Context, post *model.Post) error {
	return r.DB.WithContext(ctx).Create(post).Error
}

func (r *PostRepository) FindByID(ctx context.Context, id string) (*model.Post, error) {
	var post model.Post
	err := r.DB.WithContext(ctx).First(&post, "id = ? AND status = ?", id, model.PostStatusNormal).Error
	return &post, err
}

// ListByCommunity 基础分页查询，置顶优先
func (r *PostRepository) ListByCommunity(ctx context.Context, communityID string, offset, limit int) ([]model.Post, error) {
	var list []model.Post
	err := r.DB.WithContext(ctx).
		Where("community_id = ? AND status = ?", communityID, model.PostStatusNormal).
		Order("is_pinned DESC, created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&list).Error
	return list, err
}

// ListByCommunityCursor 基于 (created_at, id) 的严格游标；lastCreatedAt 为零值表示第一页
func (r *PostRepository) ListByCommunityCursor(ctx context.Context, communityID, lastID string, lastCreatedAt time.Time, limit int) ([]model.Post, error) {
	var list []model.Post
	q := r.DB.WithContext(ctx).Where("community_id = ? AND status = ?", communityID, model.PostStatusNormal)
	if !lastCreatedAt.IsZero() {
		// 先比时间，再在同一时间点用 id 打破并列
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", lastCreatedAt, lastCreatedAt, lastID)
	}
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&list).Error
	return list, err
}

// SoftDelete 幂等软删除，返回本次是否真的从 normal 变为 deleted
func (r *PostRepository) SoftDelete(ctx context.Context, id string) (int64, error) {
	tx := r.DB.WithContext(ctx).Model(&model.Post{}).
		Where("id = ? AND status = ?", id, model.PostStatusNormal).
		Update("status", model.PostStatusDeleted)
	return tx.RowsAffected, tx.Error
}

func (r *PostRepository) SetPinned(ctx context.Context, id string, pinned bool) error {
	return r.DB.WithContext(ctx).Model(&model.Post{}).
		Where("id = ? AND status = ?", id, model.PostStatusNormal).
		Update("is_pinned", pinned).Error
}
