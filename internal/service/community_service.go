package service

import (
	"context"
	"errors"
	"strings"

	"CommunityHub/internal/model"
	"CommunityHub/internal/pkg"
	"CommunityHub/internal/repository/mysql"

	"gorm.io/gorm"
)

type CommunityService struct {
	repo       *mysql.CommunityRepository
	memberRepo *mysql.MembershipRepository
}

func NewCommunityService(db *gorm.DB) *CommunityService {
	return &CommunityService{
		repo:       mysql.NewCommunityRepository(db),
		memberRepo: mysql.NewMembershipRepository(db),
	}
}

type CreateCommunityInput struct {
	Name         string
	Description  string
	ImageURL     string
	PriceInCents int64
	IsPublic     bool
}

// CreateCommunity 创建者同一事务内成为 creator 会员
func (s *CommunityService) CreateCommunity(ctx context.Context, userID string, in CreateCommunityInput) (*model.Community, error) {
	if userID == "" {
		return nil, pkg.ErrUnauthenticated
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, pkg.NewError(pkg.KindInvalidArgument, "community name required")
	}
	if in.PriceInCents < 0 {
		return nil, pkg.NewError(pkg.KindInvalidArgument, "price cannot be negative")
	}
	community := &model.Community{
		Name:         name,
		Description:  in.Description,
		ImageURL:     in.ImageURL,
		CreatorID:    userID,
		IsPublic:     in.IsPublic,
		PriceInCents: in.PriceInCents,
		Status:       model.CommunityActive,
	}
	if err := s.repo.Create(ctx, community); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, pkg.NewError(pkg.KindConflict, "community name already taken")
		}
		return nil, writeErr("failed to create community", err)
	}
	return community, nil
}

func (s *CommunityService) GetCommunity(ctx context.Context, communityID string) (*model.Community, error) {
	c, err := s.repo.FindByID(ctx, communityID)
	if err != nil {
		return nil, lookupErr(err, "community not found")
	}
	if !c.IsActive() {
		return nil, pkg.NewError(pkg.KindNotFound, "community not found")
	}
	return c, nil
}

// ListCommunitiesInput 浏览页条件；Price 为 ""、"all"、"free" 或 "paid"
type ListCommunitiesInput struct {
	Query string
	Price string
	Page  int
	Size  int
}

func (s *CommunityService) ListCommunities(ctx context.Context, in ListCommunitiesInput) ([]model.CommunityWithCount, error) {
	var price mysql.PriceFilter
	switch strings.ToLower(strings.TrimSpace(in.Price)) {
	case "", "all":
		price = mysql.PriceAll
	case "free":
		price = mysql.PriceFree
	case "paid":
		price = mysql.PricePaid
	default:
		return nil, pkg.NewError(pkg.KindInvalidArgument, "price must be all, free or paid")
	}
	offset, limit := pageOffset(in.Page, in.Size)
	list, err := s.repo.ListPublic(ctx, mysql.CommunityFilter{Query: in.Query, Price: price}, offset, limit)
	if err != nil {
		return nil, pkg.WrapError(pkg.KindInternal, "list communities", err)
	}
	return list, nil
}

func (s *CommunityService) ListJoined(ctx context.Context, userID string) ([]model.Community, error) {
	if userID == "" {
		return nil, pkg.ErrUnauthenticated
	}
	list, err := s.repo.ListJoined(ctx, userID)
	if err != nil {
		return nil, pkg.WrapError(pkg.KindInternal, "list joined communities", err)
	}
	return list, nil
}

func (s *CommunityService) ListMembers(ctx context.Context, communityID string, page, size int) ([]model.Membership, error) {
	if _, err := s.GetCommunity(ctx, communityID); err != nil {
		return nil, err
	}
	offset, limit := pageOffset(page, size)
	list, err := s.memberRepo.ListByCommunity(ctx, communityID, offset, limit)
	if err != nil {
		return nil, pkg.WrapError(pkg.KindInternal, "list members", err)
	}
	return list, nil
}

func (s *CommunityService) CountMembers(ctx context.Context, communityID string) (int64, error) {
	n, err := s.repo.CountMembers(ctx, communityID)
	if err != nil {
		return 0, pkg.WrapError(pkg.KindInternal, "count members", err)
	}
	return n, nil
}

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 50
)

// Leaderboard 只有社区成员能看
func (s *CommunityService) Leaderboard(ctx context.Context, userID, communityID string, limit int) ([]model.LeaderboardEntry, error) {
	if userID == "" {
		return nil, pkg.ErrUnauthenticated
	}
	if _, err := s.GetCommunity(ctx, communityID); err != nil {
		return nil, err
	}
	ok, err := s.memberRepo.IsMember(ctx, communityID, userID)
	if err != nil {
		return nil, pkg.WrapError(pkg.KindInternal, "check membership", err)
	}
	if !ok {
		return nil, pkg.NewError(pkg.KindForbidden, "not a member")
	}
	if limit <= 0 || limit > maxLeaderboardSize {
		limit = defaultLeaderboardSize
	}
	list, err := s.repo.Leaderboard(ctx, communityID, limit)
	if err != nil {
		return nil, pkg.WrapError(pkg.KindInternal, "load leaderboard", err)
	}
	return list, nil
}
