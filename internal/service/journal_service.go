package service

import (
	"context"
	"strings"

	"CommunityHub/internal/model"
	"CommunityHub/internal/pkg"
	"CommunityHub/internal/repository/mysql"

	"gorm.io/gorm"
)

type JournalService struct {
	repo *mysql.JournalRepository
}

func NewJournalService(db *gorm.DB) *JournalService {
	return &JournalService{repo: mysql.NewJournalRepository(db)}
}

// CreateEntry title 可选，content 去掉首尾空白后不能为空
func (s *JournalService) CreateEntry(ctx context.Context, userID, title, content string) (*model.JournalEntry, error) {
	if userID == "" {
		return nil, pkg.ErrUnauthenticated
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, pkg.NewError(pkg.KindInvalidArgument, "content required")
	}
	e := &model.JournalEntry{UserID: userID, Title: strings.TrimSpace(title), Content: content}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, writeErr("failed to save journal entry", err)
	}
	return e, nil
}

func (s *JournalService) ListEntries(ctx context.Context, userID string, page, size int) ([]model.JournalEntry, error) {
	if userID == "" {
		return nil, pkg.ErrUnauthenticated
	}
	offset, limit := pageOffset(page, size)
	list, err := s.repo.ListByUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, pkg.WrapError(pkg.KindInternal, "list journal entries", err)
	}
	return list, nil
}

// DeleteEntry 别人的记录与不存在的记录一样返回 NotFound
func (s *JournalService) DeleteEntry(ctx context.Context, userID, id string) error {
	if userID == "" {
		return pkg.ErrUnauthenticated
	}
	removed, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return writeErr("failed to delete journal entry", err)
	}
	if !removed {
		return pkg.NewError(pkg.KindNotFound, "journal entry not found")
	}
	return nil
}
