package mysql

import (
	"context"

	"CommunityHub/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostLikeRepository struct {
	DB *gorm.DB
}

func NewPostLikeRepository(db *gorm.DB) *PostLikeRepository {
	return &PostLikeRepository{DB: db}
}

// Like 唯一(user_id, post_id) 幂等插入，真正插入时计数+1
func (r *PostLikeRepository) Like(ctx context.Context, userID, postID string) (bool, error) {
	var changed bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
			DoNothing: true,
		}).Create(&model.PostLike{UserID: userID, PostID: postID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 已存在，幂等
			return nil
		}
		changed = true
		return tx.Model(&model.Post{}).
			Where("id = ?", postID).
			UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
	})
	return changed, err
}

func (r *PostLikeRepository) Unlike(ctx context.Context, userID, postID string) (bool, error) {
	var changed bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&model.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		// 未删除任何行 -> 幂等
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true
		// 计数-1，防止负数
		return tx.Model(&model.Post{}).
			Where("id = ?", postID).
			UpdateColumn("like_count", gorm.Expr("CASE WHEN like_count > 0 THEN like_count - 1 ELSE 0 END")).Error
	})
	return changed, err
}

func (r *PostLikeRepository) IsLiked(ctx context.Context, userID, postID string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).
		Model(&model.PostLike{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error
	return count > 0, err
}

func (r *PostLikeRepository) GetLikeCount(ctx context.Context, postID string) (int64, error) {
	var p model.Post
	err := r.DB.WithContext(ctx).Select("id", "like_count").Where("id = ?", postID).First(&p).Error
	if err != nil {
		return 0, err
	}
	return p.LikeCount, nil
}
