package service

import (
	"context"
	"testing"

	"CommunityHub/internal/pkg"
	"CommunityHub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewJournalService(db)
	ctx := context.Background()
	ann := seedUser(t, db, "ann@example.com")
	bob := seedUser(t, db, "bob@example.com")

	e, err := svc.CreateEntry(ctx, ann.ID, "  Monday ", "  shipped the webhook  ")
	require.NoError(t, err)
	assert.Equal(t, "Monday", e.Title)
	assert.Equal(t, "shipped the webhook", e.Content)

	_, err = svc.CreateEntry(ctx, ann.ID, "", "untitled is fine")
	require.NoError(t, err)

	_, err = svc.CreateEntry(ctx, ann.ID, "empty", "   ")
	assert.ErrorIs(t, err, pkg.ErrInvalidArgument)
	_, err = svc.CreateEntry(ctx, "", "", "x")
	assert.ErrorIs(t, err, pkg.ErrUnauthenticated)

	list, err := svc.ListEntries(ctx, ann.ID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	list, err = svc.ListEntries(ctx, bob.ID, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	// 看不到也删不掉别人的日记
	assert.ErrorIs(t, svc.DeleteEntry(ctx, bob.ID, e.ID), pkg.ErrNotFound)
	require.NoError(t, svc.DeleteEntry(ctx, ann.ID, e.ID))
	assert.ErrorIs(t, svc.DeleteEntry(ctx, ann.ID, e.ID), pkg.ErrNotFound)

	list, err = svc.ListEntries(ctx, ann.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "untitled is fine", list[0].Content)

	_, err = svc.ListEntries(ctx, "", 1, 10)
	assert.ErrorIs(t, err, pkg.ErrUnauthenticated)
}
