package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"CommunityHub/internal/model"
	"CommunityHub/internal/pkg"
	"CommunityHub/internal/repository/mysql"

	"gorm.io/gorm"
)

type PostService struct {
	repo       *mysql.PostRepository
	memberRepo *mysql.MembershipRepository
}

func NewPostService(db *gorm.DB) *PostService {
	return &PostService{
		repo:       mysql.NewPostRepository(db),
		memberRepo: mysql.NewMembershipRepository(db),
	}
}

// Cursor 游标分页位置，零值表示第一页
type Cursor struct {
	LastID        string
	LastCreatedAt time.Time
}

func (s *PostService) CreatePost(ctx context.Context, userID, communityID, content, imageURL string) (*model.Post, error) {
	if userID == "" {
		return nil, pkg.ErrUnauthenticated
	}
	if strings.TrimSpace(content) == "" {
		return nil, pkg.NewError(pkg.KindInvalidArgument, "content required")
	}
	// 只有社区成员能发帖
	if err := s.requireMember(ctx, communityID, userID); err != nil {
		return nil, err
	}
	post := &model.Post{
		CommunityID: communityID,
		AuthorID:    userID,
		Content:     content,
		ImageURL:    imageURL,
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, writeErr("failed to create post", err)
	}
	return post, nil
}

func (s *PostService) GetPost(ctx context.Context, postID string) (*model.Post, error) {
	post, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return nil, lookupErr(err, "post not found")
	}
	return post, nil
}

// ListByCommunity 社区帖子列表，置顶在前
func (s *PostService) ListByCommunity(ctx context.Context, communityID string, page, size int) ([]model.Post, error) {
	offset, limit := pageOffset(page, size)
	list, err := s.repo.ListByCommunity(ctx, communityID, offset, limit)
	if err != nil {
		return nil, pkg.WrapError(pkg.KindInternal, "list posts", err)
	}
	return list, nil
}

// ListByCommunityCursor 返回本页与下一页游标；本页为空时游标原样返回
func (s *PostService) ListByCommunityCursor(ctx context.Context, communityID string, cur Cursor, size int) ([]model.Post, Cursor, error) {
	_, limit := pageOffset(1, size)
	list, err := s.repo.ListByCommunityCursor(ctx, communityID, cur.LastID, cur.LastCreatedAt, limit)
	if err != nil {
		return nil, cur, pkg.WrapError(pkg.KindInternal, "list posts", err)
	}
	next := cur
	if len(list) > 0 {
		last := list[len(list)-1]
		next = Cursor{LastID: last.ID, LastCreatedAt: last.CreatedAt}
	}
	return list, next, nil
}

// DeletePost 幂等删除：作者或社区创建者可删，已删除/不存在视为成功
func (s *PostService) DeletePost(ctx context.Context, userID, postID string) error {
	post, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkg.WrapError(pkg.KindInternal, "load post", err)
	}
	if post.AuthorID != userID {
		isCreator, err := s.isCreator(ctx, post.CommunityID, userID)
		if err != nil {
			return err
		}
		if !isCreator {
			return pkg.NewError(pkg.KindForbidden, "no permission")
		}
	}
	if _, err := s.repo.SoftDelete(ctx, postID); err != nil {
		return writeErr("failed to delete post", err)
	}
	return nil
}

// SetPinned 仅社区创建者可置顶
func (s *PostService) SetPinned(ctx context.Context, userID, postID string, pinned bool) error {
	post, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return lookupErr(err, "post not found")
	}
	isCreator, err := s.isCreator(ctx, post.CommunityID, userID)
	if err != nil {
		return err
	}
	if !isCreator {
		return pkg.NewError(pkg.KindForbidden, "only the community creator can pin posts")
	}
	if err := s.repo.SetPinned(ctx, postID, pinned); err != nil {
		return writeErr("failed to pin post", err)
	}
	return nil
}

func (s *PostService) requireMember(ctx context.Context, communityID, userID string) error {
	ok, err := s.memberRepo.IsMember(ctx, communityID, userID)
	if err != nil {
		return pkg.WrapError(pkg.KindInternal, "check membership", err)
	}
	if !ok {
		return pkg.NewError(pkg.KindForbidden, "not a member")
	}
	return nil
}

func (s *PostService) isCreator(ctx context.Context, communityID, userID string) (bool, error) {
	m, err := s.memberRepo.Find(ctx, communityID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkg.WrapError(pkg.KindInternal, "check membership", err)
	}
	return m.Role == model.MemberRoleCreator, nil
}
