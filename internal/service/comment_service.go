package service

import (
	"context"
	"strings"

	"CommunityHub/internal/model"
	"CommunityHub/internal/pkg"
	"CommunityHub/internal/repository/mysql"

	"gorm.io/gorm"
)

type CommentService struct {
	repo       *mysql.CommentRepository
	postRepo   *mysql.PostRepository
	memberRepo *mysql.MembershipRepository
}

func NewCommentService(db *gorm.DB) *CommentService {
	return &CommentService{
		repo:       mysql.NewCommentRepository(db),
		postRepo:   mysql.NewPostRepository(db),
		memberRepo: mysql.NewMembershipRepository(db),
	}
}

// CreateComment 只有帖子所在社区的成员能评论
func (s *CommentService) CreateComment(ctx context.Context, userID, postID, content string) (*model.Comment, error) {
	if userID == "" {
		return nil, pkg.ErrUnauthenticated
	}
	if strings.TrimSpace(content) == "" {
		return nil, pkg.NewError(pkg.KindInvalidArgument, "content required")
	}
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, lookupErr(err, "post not found")
	}
	ok, err := s.memberRepo.IsMember(ctx, post.CommunityID, userID)
	if err != nil {
		return nil, pkg.WrapError(pkg.KindInternal, "check membership", err)
	}
	if !ok {
		return nil, pkg.NewError(pkg.KindForbidden, "not a member")
	}
	c := &model.Comment{PostID: postID, AuthorID: userID, Content: content}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, writeErr("failed to create comment", err)
	}
	return c, nil
}

func (s *CommentService) ListByPost(ctx context.Context, postID string, page, size int) ([]model.Comment, error) {
	if _, err := s.postRepo.FindByID(ctx, postID); err != nil {
		return nil, lookupErr(err, "post not found")
	}
	offset, limit := pageOffset(page, size)
	list, err := s.repo.ListByPost(ctx, postID, offset, limit)
	if err != nil {
		return nil, pkg.WrapError(pkg.KindInternal, "list comments", err)
	}
	return list, nil
}

// DeleteComment 仅作者本人可删
func (s *CommentService) DeleteComment(ctx context.Context, userID, commentID string) error {
	c, err := s.repo.FindByID(ctx, commentID)
	if err != nil {
		return lookupErr(err, "comment not found")
	}
	if c.AuthorID != userID {
		return pkg.NewError(pkg.KindForbidden, "no permission")
	}
	if _, err := s.repo.Delete(ctx, c); err != nil {
		return writeErr("failed to delete comment", err)
	}
	return nil
}
