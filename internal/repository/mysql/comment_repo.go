package mysql

import (
	"context"

	"CommunityHub/internal/model"

	"gorm.io/gorm"
)

type CommentRepository struct {
	DB *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{DB: db}
}

// Create 写评论并维护帖子评论计数
func (r *CommentRepository) Create(ctx context.Context, c *model.Comment) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return tx.Model(&model.Post{}).Where("id = ?", c.PostID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error
	})
}

func (r *CommentRepository) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	var c model.Comment
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&c).Error
	return &c, err
}

func (r *CommentRepository) ListByPost(ctx context.Context, postID string, offset, limit int) ([]model.Comment, error) {
	var list []model.Comment
	err := r.DB.WithContext(ctx).Where("post_id = ?", postID).
		Order("created_at ASC").Offset(offset).Limit(limit).Find(&list).Error
	return list, err
}

// Delete 幂等删除，返回是否真的删掉
func (r *CommentRepository) Delete(ctx context.Context, c *model.Comment) (bool, error) {
	var removed bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", c.ID).Delete(&model.Comment{})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		removed = true
		return tx.Model(&model.Post{}).Where("id = ?", c.PostID).
			UpdateColumn("comment_count", gorm.Expr("CASE WHEN comment_count > 0 THEN comment_count - 1 ELSE 0 END")).Error
	})
	return removed, err
}
