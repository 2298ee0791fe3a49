package service

import (
	"context"
	"testing"

	"CommunityHub/internal/model"
	"CommunityHub/internal/pkg"
	"CommunityHub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type postFixture struct {
	db        *gorm.DB
	svc       *PostService
	creator   *model.User
	member    *model.User
	outsider  *model.User
	community *model.Community
}

func newPostFixture(t *testing.T) *postFixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &postFixture{
		db:       db,
		svc:      NewPostService(db),
		creator:  seedUser(t, db, "creator@example.com"),
		member:   seedUser(t, db, "member@example.com"),
		outsider: seedUser(t, db, "outsider@example.com"),
	}
	f.community = seedCommunity(t, db, f.creator.ID, "Gophers", 0)
	_, err := NewMembershipService(db, newFakeProcessor(), "", zap.NewNop(), nil).
		JoinFree(context.Background(), f.member.ID, f.community.ID)
	require.NoError(t, err)
	return f
}

func TestCreatePostRequiresMembership(t *testing.T) {
	f := newPostFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePost(ctx, f.member.ID, f.community.ID, "hello", "")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)

	_, err = f.svc.CreatePost(ctx, f.outsider.ID, f.community.ID, "hello", "")
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	_, err = f.svc.CreatePost(ctx, f.member.ID, f.community.ID, "   ", "")
	assert.ErrorIs(t, err, pkg.ErrInvalidArgument)

	_, err = f.svc.CreatePost(ctx, "", f.community.ID, "hello", "")
	assert.ErrorIs(t, err, pkg.ErrUnauthenticated)
}

func TestDeletePost(t *testing.T) {
	f := newPostFixture(t)
	ctx := context.Background()
	p, err := f.svc.CreatePost(ctx, f.member.ID, f.community.ID, "hello", "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeletePost(ctx, f.outsider.ID, p.ID), pkg.ErrForbidden)

	// 社区创建者可以删除他人的帖子
	require.NoError(t, f.svc.DeletePost(ctx, f.creator.ID, p.ID))
	_, err = f.svc.GetPost(ctx, p.ID)
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	// 重复删除与不存在的帖子都视为成功
	assert.NoError(t, f.svc.DeletePost(ctx, f.member.ID, p.ID))
	assert.NoError(t, f.svc.DeletePost(ctx, f.member.ID, "missing"))
}

func TestSetPinned(t *testing.T) {
	f := newPostFixture(t)
	ctx := context.Background()
	first, err := f.svc.CreatePost(ctx, f.member.ID, f.community.ID, "first", "")
	require.NoError(t, err)
	_, err = f.svc.CreatePost(ctx, f.member.ID, f.community.ID, "second", "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.SetPinned(ctx, f.member.ID, first.ID, true), pkg.ErrForbidden)
	require.NoError(t, f.svc.SetPinned(ctx, f.creator.ID, first.ID, true))

	list, err := f.svc.ListByCommunity(ctx, f.community.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.True(t, list[0].IsPinned)

	assert.ErrorIs(t, f.svc.SetPinned(ctx, f.creator.ID, "missing", true), pkg.ErrNotFound)
}

func TestListByCommunityCursor(t *testing.T) {
	f := newPostFixture(t)
	ctx := context.Background()
	for _, content := range []string{"a", "b", "c"} {
		_, err := f.svc.CreatePost(ctx, f.member.ID, f.community.ID, content, "")
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	cur := Cursor{}
	for i := 0; i < 3; i++ {
		page, next, err := f.svc.ListByCommunityCursor(ctx, f.community.ID, cur, 2)
		require.NoError(t, err)
		for _, p := range page {
			assert.False(t, seen[p.ID], "post %s returned twice", p.ID)
			seen[p.ID] = true
		}
		if len(page) == 0 {
			assert.Equal(t, cur, next)
			break
		}
		cur = next
	}
	assert.Len(t, seen, 3)
}
