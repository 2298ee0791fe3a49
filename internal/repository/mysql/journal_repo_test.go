package mysql_test

import (
	"context"
	"testing"
	"time"

	"CommunityHub/internal/model"
	"CommunityHub/internal/repository/mysql"
	"CommunityHub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalRepository(t *testing.T) {
	db := testutil.NewDB(t)
	repo := mysql.NewJournalRepository(db)
	ctx := context.Background()
	now := time.Now()

	older := &model.JournalEntry{UserID: "u-1", Content: "first", CreatedAt: now.Add(-time.Hour)}
	newer := &model.JournalEntry{UserID: "u-1", Title: "day two", Content: "second", CreatedAt: now}
	theirs := &model.JournalEntry{UserID: "u-2", Content: "private"}
	for _, e := range []*model.JournalEntry{older, newer, theirs} {
		require.NoError(t, repo.Create(ctx, e))
		require.NotEmpty(t, e.ID)
	}

	list, err := repo.ListByUser(ctx, "u-1", 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	list, err = repo.ListByUser(ctx, "u-1", 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, older.ID, list[0].ID)

	removed, err := repo.Delete(ctx, "u-1", theirs.ID)
	require.NoError(t, err)
	assert.False(t, removed, "cannot delete another user's entry")

	removed, err = repo.Delete(ctx, "u-1", older.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.Delete(ctx, "u-1", older.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	list, err = repo.ListByUser(ctx, "u-2", 0, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
