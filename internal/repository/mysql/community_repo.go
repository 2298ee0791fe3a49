package mysql

import (
	"context"
	"strings"

	"CommunityHub/internal/model"

	"gorm.io/gorm"
)

type CommunityRepository struct {
	DB *gorm.DB
}

func NewCommunityRepository(db *gorm.DB) *CommunityRepository {
	return &CommunityRepository{DB: db}
}

// Create 同一事务内创建社区并让创建者以 creator 角色加入
func (r *CommunityRepository) Create(ctx context.Context, c *model.Community) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		mRepo := &MembershipRepository{DB: tx}
		_, err := mRepo.Join(ctx, &model.Membership{
			CommunityID: c.ID,
			UserID:      c.CreatorID,
			Role:        model.MemberRoleCreator,
		}, model.OutboxReasonCreator)
		return err
	})
}

func (r *CommunityRepository) FindByID(ctx context.Context, id string) (*model.Community, error) {
	var community model.Community
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&community).Error
	return &community, err
}

type PriceFilter string

const (
	PriceAll  PriceFilter = ""
	PriceFree PriceFilter = "free"
	PricePaid PriceFilter = "paid"
)

// CommunityFilter 列表页的搜索条件，Query 同时匹配名称与简介
type CommunityFilter struct {
	Query string
	Price PriceFilter
}

const memberCountColumn = "(SELECT COUNT(*) FROM memberships m WHERE m.community_id = communities.id) AS member_count"

// ListPublic 只列出公开且 active 的社区，附带成员数
func (r *CommunityRepository) ListPublic(ctx context.Context, f CommunityFilter, offset, limit int) ([]model.CommunityWithCount, error) {
	q := r.DB.WithContext(ctx).Model(&model.Community{}).
		Select("communities.*, "+memberCountColumn).
		Where("communities.is_public = ? AND communities.status = ?", true, model.CommunityActive)
	if kw := strings.TrimSpace(f.Query); kw != "" {
		like := "%" + escapeLike(strings.ToLower(kw)) + "%"
		q = q.Where("(LOWER(communities.name) LIKE ? ESCAPE '!' OR LOWER(communities.description) LIKE ? ESCAPE '!')", like, like)
	}
	switch f.Price {
	case PriceFree:
		q = q.Where("communities.price_in_cents = 0")
	case PricePaid:
		q = q.Where("communities.price_in_cents > 0")
	}
	var list []model.CommunityWithCount
	err := q.Order("communities.created_at desc").Offset(offset).Limit(limit).Scan(&list).Error
	return list, err
}

// escapeLike 转义用户输入里的通配符，配合 ESCAPE '!'
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

// Leaderboard 成员按社区内有效帖子数与评论数之和排序
func (r *CommunityRepository) Leaderboard(ctx context.Context, communityID string, limit int) ([]model.LeaderboardEntry, error) {
	db := r.DB.WithContext(ctx)
	posts := db.Model(&model.Post{}).
		Select("author_id AS user_id, COUNT(*) AS n").
		Where("community_id = ? AND status = ?", communityID, model.PostStatusNormal).
		Group("author_id")
	comments := db.Model(&model.Comment{}).
		Select("comments.author_id AS user_id, COUNT(*) AS n").
		Joins("JOIN posts ON posts.id = comments.post_id").
		Where("posts.community_id = ? AND posts.status = ?", communityID, model.PostStatusNormal).
		Group("comments.author_id")

	var list []model.LeaderboardEntry
	err := db.Table("memberships AS m").
		Select("m.user_id, COALESCE(u.display_name, '') AS display_name, COALESCE(u.avatar_url, '') AS avatar_url, "+
			"COALESCE(pc.n, 0) AS post_count, COALESCE(cc.n, 0) AS comment_count, "+
			"COALESCE(pc.n, 0) + COALESCE(cc.n, 0) AS total_activity").
		Joins("JOIN users u ON u.id = m.user_id").
		Joins("LEFT JOIN (?) pc ON pc.user_id = m.user_id", posts).
		Joins("LEFT JOIN (?) cc ON cc.user_id = m.user_id", comments).
		Where("m.community_id = ?", communityID).
		Order("total_activity DESC, m.joined_at ASC, m.user_id ASC").
		Limit(limit).
		Scan(&list).Error
	return list, err
}

// ListJoined 用户加入（含创建）的社区
func (r *CommunityRepository) ListJoined(ctx context.Context, userID string) ([]model.Community, error) {
	var list []model.Community
	err := r.DB.WithContext(ctx).
		Joins("JOIN memberships m ON m.community_id = communities.id").
		Where("m.user_id = ? AND communities.status = ?", userID, model.CommunityActive).
		Order("m.joined_at desc").
		Find(&list).Error
	return list, err
}

func (r *CommunityRepository) CountMembers(ctx context.Context, communityID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Membership{}).
		Where("community_id = ?", communityID).Count(&n).Error
	return n, err
}
